package task

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/GNHua/oneclaw-sub005/agent"
	"github.com/GNHua/oneclaw-sub005/errors"
)

// Store handles persistence of scheduled jobs.
type Store struct {
	db *sql.DB
}

// NewStore creates a new job store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const jobColumns = `id, title, description, instruction, schedule_kind,
	       execute_at, interval_minutes, cron_expression, constraints, profile,
	       enabled, created_at, last_executed_at, execution_count,
	       max_executions, notify_on_completion, backend_handle,
	       origin_conversation_id`

// CreateJob persists a new job.
func (s *Store) CreateJob(job *Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var executeAt interface{}
	if job.Schedule.ExecuteAt != nil {
		executeAt = job.Schedule.ExecuteAt.UTC().Format(time.RFC3339)
	}

	var intervalMinutes interface{}
	if job.Schedule.IntervalMinutes != 0 {
		intervalMinutes = job.Schedule.IntervalMinutes
	}

	var cronExpr interface{}
	if job.Schedule.CronExpression != "" {
		cronExpr = job.Schedule.CronExpression
	}

	constraints, err := json.Marshal(job.Constraints)
	if err != nil {
		return errors.Wrap(err, "failed to encode job constraints")
	}

	var profile interface{}
	if job.Profile != nil {
		encoded, err := json.Marshal(job.Profile)
		if err != nil {
			return errors.Wrap(err, "failed to encode job profile")
		}
		profile = string(encoded)
	}

	var lastExecutedAt interface{}
	if job.LastExecutedAt != nil {
		lastExecutedAt = job.LastExecutedAt.UTC().Format(time.RFC3339)
	}

	var backendHandle interface{}
	if job.BackendHandle != "" {
		backendHandle = job.BackendHandle
	}

	var originConversation interface{}
	if job.OriginConversationID != "" {
		originConversation = job.OriginConversationID
	}

	_, err = s.db.Exec(query,
		job.ID,
		job.Title,
		job.Description,
		job.Instruction,
		string(job.Schedule.Kind),
		executeAt,
		intervalMinutes,
		cronExpr,
		string(constraints),
		profile,
		job.Enabled,
		job.CreatedAt.UTC().Format(time.RFC3339),
		lastExecutedAt,
		job.ExecutionCount,
		job.MaxExecutions,
		job.NotifyOnCompletion,
		backendHandle,
		originConversation,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create job %s", job.ID)
	}

	return nil
}

// GetJob retrieves a job by ID. Returns a not-found error when no row exists.
func (s *Store) GetJob(id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	job, err := scanJob(s.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound("job not found: %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get job %s", id)
	}

	return job, nil
}

// ListEnabled returns all enabled jobs, oldest first. Used at daemon start
// to re-derive backend schedules.
func (s *Store) ListEnabled() ([]*Job, error) {
	return s.list(`SELECT `+jobColumns+` FROM jobs WHERE enabled = 1 ORDER BY created_at ASC`)
}

// ListAll returns every job regardless of enabled state, newest first.
func (s *Store) ListAll() ([]*Job, error) {
	return s.list(`SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC`)
}

func (s *Store) list(query string, args ...interface{}) ([]*Job, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// UpdateEnabled flips the enabled flag.
func (s *Store) UpdateEnabled(id string, enabled bool) error {
	result, err := s.db.Exec(`UPDATE jobs SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return errors.Wrapf(err, "failed to update enabled state for job %s", id)
	}
	return requireRow(result, id)
}

// UpdateBackendHandle persists the periodic backend's entry identifier so
// the schedule can be cancelled after a restart.
func (s *Store) UpdateBackendHandle(id, handle string) error {
	var value interface{}
	if handle != "" {
		value = handle
	}
	result, err := s.db.Exec(`UPDATE jobs SET backend_handle = ? WHERE id = ?`, value, id)
	if err != nil {
		return errors.Wrapf(err, "failed to update backend handle for job %s", id)
	}
	return requireRow(result, id)
}

// UpdateLastExecution records a completed run: stamps last_executed_at and
// increments execution_count in one statement.
func (s *Store) UpdateLastExecution(id string, executedAt time.Time) error {
	query := `
		UPDATE jobs
		SET last_executed_at = ?,
		    execution_count = execution_count + 1
		WHERE id = ?
	`
	result, err := s.db.Exec(query, executedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return errors.Wrapf(err, "failed to record execution for job %s", id)
	}
	return requireRow(result, id)
}

// DeleteJob removes a job. Execution log rows cascade.
func (s *Store) DeleteJob(id string) error {
	result, err := s.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete job %s", id)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFound("job not found: %s", id)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var kind, createdAt string
	var description, executeAt, cronExpr, lastExecutedAt sql.NullString
	var constraints, profile, backendHandle, originConversation sql.NullString
	var intervalMinutes sql.NullInt64
	var maxExecutions sql.NullInt64

	err := row.Scan(
		&job.ID,
		&job.Title,
		&description,
		&job.Instruction,
		&kind,
		&executeAt,
		&intervalMinutes,
		&cronExpr,
		&constraints,
		&profile,
		&job.Enabled,
		&createdAt,
		&lastExecutedAt,
		&job.ExecutionCount,
		&maxExecutions,
		&job.NotifyOnCompletion,
		&backendHandle,
		&originConversation,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		job.Description = description.String
	}

	job.Schedule.Kind, err = ParseScheduleKind(kind)
	if err != nil {
		return nil, errors.Wrapf(err, "job %s has an invalid schedule kind", job.ID)
	}

	// Parse timestamps (a failure indicates data corruption or schema mismatch)
	job.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for job %s", job.ID)
	}

	if executeAt.Valid {
		t, err := time.Parse(time.RFC3339, executeAt.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse execute_at for job %s", job.ID)
		}
		job.Schedule.ExecuteAt = &t
	}
	if lastExecutedAt.Valid {
		t, err := time.Parse(time.RFC3339, lastExecutedAt.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse last_executed_at for job %s", job.ID)
		}
		job.LastExecutedAt = &t
	}

	if intervalMinutes.Valid {
		job.Schedule.IntervalMinutes = int(intervalMinutes.Int64)
	}
	if cronExpr.Valid {
		job.Schedule.CronExpression = cronExpr.String
	}
	if constraints.Valid && constraints.String != "" {
		if err := json.Unmarshal([]byte(constraints.String), &job.Constraints); err != nil {
			return nil, errors.Wrapf(err, "failed to decode constraints for job %s", job.ID)
		}
	}
	if profile.Valid && profile.String != "" {
		var p agent.Profile
		if err := json.Unmarshal([]byte(profile.String), &p); err != nil {
			return nil, errors.Wrapf(err, "failed to decode profile for job %s", job.ID)
		}
		job.Profile = &p
	}
	if maxExecutions.Valid {
		n := int(maxExecutions.Int64)
		job.MaxExecutions = &n
	}
	if backendHandle.Valid {
		job.BackendHandle = backendHandle.String
	}
	if originConversation.Valid {
		job.OriginConversationID = originConversation.String
	}

	return &job, nil
}
