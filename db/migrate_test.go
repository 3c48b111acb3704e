package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithMigrations(t *testing.T) {
	t.Run("successfully opens database and runs migrations", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		// Verify all core tables exist after migrations
		for _, table := range []string{"schema_migrations", "jobs", "execution_log", "conversations", "messages", "trigger_queue"} {
			var exists int
			err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&exists)
			require.NoError(t, err)
			assert.Equal(t, 1, exists, "table %s should exist after migrations", table)
		}
	})

	t.Run("migrations are idempotent", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		db.Close()

		// Re-opening applies nothing and must not fail
		db, err = OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		var applied int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied)
		require.NoError(t, err)
		assert.Equal(t, 4, applied)
	})

	t.Run("execution_log rows cascade on job delete", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		_, err = db.Exec(`INSERT INTO jobs (id, title, instruction, schedule_kind, created_at)
			VALUES ('j1', 'test', 'do things', 'interval', datetime('now'))`)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO execution_log (job_id, started_at, status)
			VALUES ('j1', datetime('now'), 'started')`)
		require.NoError(t, err)

		_, err = db.Exec(`DELETE FROM jobs WHERE id = 'j1'`)
		require.NoError(t, err)

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM execution_log WHERE job_id = 'j1'").Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}
