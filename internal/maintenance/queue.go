package maintenance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	JobDecay       = "decay"
	JobConsolidate = "consolidate"
	JobResummarize = "resummarize"
	JobReindex     = "reindex"
	JobCleanup     = "cleanup"
	JobBackup      = "backup"
)

const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    job_type TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL DEFAULT 'pending',
    attempts INTEGER NOT NULL DEFAULT 0,
    max_attempts INTEGER NOT NULL DEFAULT 3,
    scheduled_for DATETIME NOT NULL,
    depends_on TEXT REFERENCES jobs(id),
    last_error TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, scheduled_for);
`

// Job is one unit of maintenance work. Jobs are durable: enqueued rows
// survive restarts, and a crashed worker's running jobs are recovered to
// pending on startup.
type Job struct {
	ID           string
	Type         string
	Payload      map[string]string
	Status       string
	Attempts     int
	MaxAttempts  int
	ScheduledFor time.Time
	DependsOn    *string
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Queue is the durable job store. Claims are transactional so concurrent
// workers never run the same job twice.
type Queue struct {
	db          *sql.DB
	maxAttempts int
	backoffBase time.Duration
}

func NewQueue(db *sql.DB, policy *Policy) (*Queue, error) {
	if _, err := db.Exec(jobsSchema); err != nil {
		return nil, fmt.Errorf("migrate jobs: %w", err)
	}
	return &Queue{
		db:          db,
		maxAttempts: policy.MaxAttempts,
		backoffBase: time.Duration(policy.BackoffBase) * time.Second,
	}, nil
}

// Enqueue schedules a job. A zero scheduledFor means "now"; dependsOn may
// be empty. Returns the job id.
func (q *Queue) Enqueue(jobType string, payload map[string]string, scheduledFor time.Time, dependsOn string) (string, error) {
	if payload == nil {
		payload = map[string]string{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if scheduledFor.IsZero() {
		scheduledFor = time.Now().UTC()
	}

	var dep any
	if dependsOn != "" {
		dep = dependsOn
	}

	id := uuid.NewString()
	_, err = q.db.Exec(
		`INSERT INTO jobs (id, job_type, payload, max_attempts, scheduled_for, depends_on)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, jobType, string(raw), q.maxAttempts, scheduledFor.UTC().Format(time.RFC3339), dep)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ClaimNext atomically takes the next runnable pending job. A job is
// runnable when its scheduled time has passed and its dependency, if any,
// is done. Jobs whose dependency failed are failed in turn rather than
// left to wait forever. Returns nil when nothing is runnable.
func (q *Queue) ClaimNext(ctx context.Context) (*Job, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	// Cascade dependency failures first so dependents do not wait on a
	// job that will never complete.
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, last_error = 'dependency failed', updated_at = datetime('now')
		 WHERE status = ? AND depends_on IN (SELECT id FROM jobs WHERE status = ?)`,
		JobFailed, JobPending, JobFailed); err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx,
		`SELECT id, job_type, payload, status, attempts, max_attempts, scheduled_for, depends_on, last_error, created_at, updated_at
		 FROM jobs
		 WHERE status = ? AND scheduled_for <= ?
		   AND (depends_on IS NULL OR depends_on IN (SELECT id FROM jobs WHERE status = ?))
		 ORDER BY scheduled_for ASC
		 LIMIT 1`,
		JobPending, now, JobDone)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, tx.Commit()
	}
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, attempts = attempts + 1, updated_at = datetime('now')
		 WHERE id = ? AND status = ?`,
		JobRunning, job.ID, JobPending)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, tx.Commit()
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	job.Status = JobRunning
	job.Attempts++
	return job, nil
}

// Complete marks a running job done.
func (q *Queue) Complete(id string) error {
	_, err := q.db.Exec(
		`UPDATE jobs SET status = ?, last_error = '', updated_at = datetime('now') WHERE id = ?`,
		JobDone, id)
	return err
}

// Fail records a job failure. Below the attempt limit the job is rescheduled
// with exponential backoff; at the limit it is marked failed and kept, so
// operators see it rather than losing it silently.
func (q *Queue) Fail(id string, jobErr error) error {
	var attempts, maxAttempts int
	err := q.db.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).
		Scan(&attempts, &maxAttempts)
	if err != nil {
		return err
	}

	msg := ""
	if jobErr != nil {
		msg = jobErr.Error()
	}

	if attempts >= maxAttempts {
		_, err = q.db.Exec(
			`UPDATE jobs SET status = ?, last_error = ?, updated_at = datetime('now') WHERE id = ?`,
			JobFailed, msg, id)
		return err
	}

	delay := time.Duration(math.Pow(2, float64(attempts-1))) * q.backoffBase
	next := time.Now().UTC().Add(delay).Format(time.RFC3339)
	_, err = q.db.Exec(
		`UPDATE jobs SET status = ?, last_error = ?, scheduled_for = ?, updated_at = datetime('now') WHERE id = ?`,
		JobPending, msg, next, id)
	return err
}

// Recover re-pends jobs left running by a crashed process. Handlers are
// idempotent, so rerunning a half-finished job is safe.
func (q *Queue) Recover() (int, error) {
	res, err := q.db.Exec(
		`UPDATE jobs SET status = ?, updated_at = datetime('now') WHERE status = ?`,
		JobPending, JobRunning)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Get fetches a job by id.
func (q *Queue) Get(id string) (*Job, error) {
	row := q.db.QueryRow(
		`SELECT id, job_type, payload, status, attempts, max_attempts, scheduled_for, depends_on, last_error, created_at, updated_at
		 FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// PendingCount reports how many jobs of a type are pending or running.
// The scheduler uses it to avoid stacking duplicate sweeps.
func (q *Queue) PendingCount(jobType string) (int, error) {
	var n int
	err := q.db.QueryRow(
		`SELECT COUNT(*) FROM jobs WHERE job_type = ? AND status IN (?, ?)`,
		jobType, JobPending, JobRunning).Scan(&n)
	return n, err
}

// HasPending reports whether a pending or running job of this type exists
// with exactly this payload. Map payloads marshal with sorted keys, so
// string comparison is exact.
func (q *Queue) HasPending(jobType string, payload map[string]string) (bool, error) {
	if payload == nil {
		payload = map[string]string{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	var n int
	err = q.db.QueryRow(
		`SELECT COUNT(*) FROM jobs WHERE job_type = ? AND payload = ? AND status IN (?, ?)`,
		jobType, string(raw), JobPending, JobRunning).Scan(&n)
	return n > 0, err
}

// Failed lists permanently failed jobs, newest first.
func (q *Queue) Failed(limit int) ([]*Job, error) {
	rows, err := q.db.Query(
		`SELECT id, job_type, payload, status, attempts, max_attempts, scheduled_for, depends_on, last_error, created_at, updated_at
		 FROM jobs WHERE status = ? ORDER BY updated_at DESC LIMIT ?`,
		JobFailed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j         Job
		payload   string
		scheduled string
		created   string
		updated   string
		dep       sql.NullString
	)
	err := row.Scan(&j.ID, &j.Type, &payload, &j.Status, &j.Attempts, &j.MaxAttempts,
		&scheduled, &dep, &j.LastError, &created, &updated)
	if err != nil {
		return nil, err
	}
	if dep.Valid {
		j.DependsOn = &dep.String
	}
	j.Payload = map[string]string{}
	if payload != "" {
		_ = json.Unmarshal([]byte(payload), &j.Payload)
	}
	j.ScheduledFor = parseJobTime(scheduled)
	j.CreatedAt = parseJobTime(created)
	j.UpdatedAt = parseJobTime(updated)
	return &j, nil
}

func parseJobTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
