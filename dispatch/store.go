package dispatch

import (
	"database/sql"
	"time"

	"github.com/GNHua/oneclaw-sub005/errors"
)

// Store persists the trigger queue.
type Store struct {
	db *sql.DB
}

// NewStore creates a new trigger queue store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Enqueue inserts a pending trigger.
func (s *Store) Enqueue(trigger *Trigger) error {
	query := `
		INSERT INTO trigger_queue (id, job_id, source, status, attempts, max_attempts,
		                           last_error, next_attempt_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?)
	`
	_, err := s.db.Exec(query,
		trigger.ID,
		trigger.JobID,
		string(trigger.Source),
		string(trigger.Status),
		trigger.Attempts,
		trigger.MaxAttempts,
		trigger.CreatedAt.Format(time.RFC3339),
		trigger.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to enqueue trigger for job %s", trigger.JobID)
	}
	return nil
}

// ClaimNext atomically claims the oldest claimable pending trigger and marks
// it running. Returns nil when the queue is empty. A trigger whose
// next_attempt_at is in the future is not yet claimable.
func (s *Store) ClaimNext(now time.Time) (*Trigger, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin claim transaction")
	}
	defer tx.Rollback()

	query := `
		SELECT id, job_id, source, status, attempts, max_attempts,
		       last_error, next_attempt_at, created_at, updated_at
		FROM trigger_queue
		WHERE status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY created_at ASC
		LIMIT 1
	`

	trigger, err := scanTrigger(tx.QueryRow(query, string(StatusPending), now.UTC().Format(time.RFC3339)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to claim trigger")
	}

	trigger.Status = StatusRunning
	trigger.UpdatedAt = now.UTC()
	_, err = tx.Exec(`UPDATE trigger_queue SET status = ?, updated_at = ? WHERE id = ?`,
		string(StatusRunning), trigger.UpdatedAt.Format(time.RFC3339), trigger.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mark trigger %s running", trigger.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit trigger claim")
	}

	return trigger, nil
}

// Complete marks a trigger done.
func (s *Store) Complete(id string) error {
	return s.setStatus(id, StatusDone, "")
}

// Retry re-queues a failed trigger with its attempt count bumped and a
// backoff before it becomes claimable again.
func (s *Store) Retry(trigger *Trigger, errMsg string, nextAttemptAt time.Time) error {
	query := `
		UPDATE trigger_queue
		SET status = ?,
		    attempts = ?,
		    last_error = ?,
		    next_attempt_at = ?,
		    updated_at = ?
		WHERE id = ?
	`
	_, err := s.db.Exec(query,
		string(StatusPending),
		trigger.Attempts,
		errMsg,
		nextAttemptAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		trigger.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to re-queue trigger %s", trigger.ID)
	}
	return nil
}

// MarkDead parks a trigger that exhausted its retry budget.
func (s *Store) MarkDead(id, errMsg string) error {
	return s.setStatus(id, StatusDead, errMsg)
}

func (s *Store) setStatus(id string, status Status, errMsg string) error {
	var lastError interface{}
	if errMsg != "" {
		lastError = errMsg
	}
	result, err := s.db.Exec(`
		UPDATE trigger_queue
		SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		string(status), lastError, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return errors.Wrapf(err, "failed to update trigger %s", id)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFound("trigger not found: %s", id)
	}
	return nil
}

// RecoverOrphans re-queues triggers left running by a previous process.
// Returns how many were recovered.
func (s *Store) RecoverOrphans() (int, error) {
	result, err := s.db.Exec(`
		UPDATE trigger_queue
		SET status = ?, next_attempt_at = NULL, updated_at = ?
		WHERE status = ?`,
		string(StatusPending), time.Now().UTC().Format(time.RFC3339), string(StatusRunning))
	if err != nil {
		return 0, errors.Wrap(err, "failed to recover orphaned triggers")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return int(rows), nil
}

// Stats counts queue rows by status.
type Stats struct {
	Pending int
	Running int
	Done    int
	Dead    int
}

// QueueStats returns current queue counts.
func (s *Store) QueueStats() (*Stats, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM trigger_queue GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count triggers")
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan trigger counts")
		}
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusRunning:
			stats.Running = count
		case StatusDone:
			stats.Done = count
		case StatusDead:
			stats.Dead = count
		}
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrigger(row rowScanner) (*Trigger, error) {
	var trigger Trigger
	var source, status, createdAt, updatedAt string
	var lastError, nextAttemptAt sql.NullString

	err := row.Scan(
		&trigger.ID,
		&trigger.JobID,
		&source,
		&status,
		&trigger.Attempts,
		&trigger.MaxAttempts,
		&lastError,
		&nextAttemptAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	trigger.Source = Source(source)
	trigger.Status = Status(status)
	if lastError.Valid {
		trigger.LastError = lastError.String
	}
	if nextAttemptAt.Valid {
		t, err := time.Parse(time.RFC3339, nextAttemptAt.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse next_attempt_at for trigger %s", trigger.ID)
		}
		trigger.NextAttemptAt = &t
	}
	trigger.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for trigger %s", trigger.ID)
	}
	trigger.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for trigger %s", trigger.ID)
	}

	return &trigger, nil
}
