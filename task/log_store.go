package task

import (
	"database/sql"
	"time"

	"github.com/GNHua/oneclaw-sub005/errors"
)

// LogStore persists the execution history. Rows are written in two steps:
// a started placeholder when the run begins, completed when it ends. Each
// step is a single-row write; there is no cross-table transaction with the
// job's lifecycle counters.
type LogStore struct {
	db *sql.DB
}

// NewLogStore creates a new execution log store.
func NewLogStore(db *sql.DB) *LogStore {
	return &LogStore{db: db}
}

// InsertStarted writes the started placeholder and returns the new row ID.
func (s *LogStore) InsertStarted(jobID string, startedAt time.Time) (int64, error) {
	query := `
		INSERT INTO execution_log (job_id, started_at, status)
		VALUES (?, ?, ?)
	`

	result, err := s.db.Exec(query, jobID, startedAt.UTC().Format(time.RFC3339), string(LogStarted))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to insert execution log for job %s", jobID)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get execution log ID")
	}

	return id, nil
}

// Complete finalizes a log entry with its outcome.
func (s *LogStore) Complete(logID int64, status LogStatus, summary, errMsg string) error {
	query := `
		UPDATE execution_log
		SET completed_at = ?,
		    status = ?,
		    result_summary = ?,
		    error_message = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		time.Now().UTC().Format(time.RFC3339),
		string(status),
		summary,
		errMsg,
		logID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to complete execution log %d", logID)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFound("execution log not found: %d", logID)
	}

	return nil
}

// ForJob returns a job's execution history, newest first.
func (s *LogStore) ForJob(jobID string, limit int) ([]*LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, job_id, started_at, completed_at, status, result_summary, error_message
		FROM execution_log
		WHERE job_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, jobID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list execution log for job %s", jobID)
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		var entry LogEntry
		var startedAt, status string
		var completedAt, summary, errMsg sql.NullString

		if err := rows.Scan(&entry.ID, &entry.JobID, &startedAt, &completedAt, &status, &summary, &errMsg); err != nil {
			return nil, errors.Wrap(err, "failed to scan execution log row")
		}

		entry.Status = LogStatus(status)
		entry.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse started_at for log %d", entry.ID)
		}
		if completedAt.Valid {
			t, err := time.Parse(time.RFC3339, completedAt.String)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse completed_at for log %d", entry.ID)
			}
			entry.CompletedAt = &t
		}
		if summary.Valid {
			entry.ResultSummary = summary.String
		}
		if errMsg.Valid {
			entry.ErrorMessage = errMsg.String
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
