package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fwojciec/webcrawl"
)

// Compile-time interface verification.
var _ webcrawl.JobService = (*JobService)(nil)

// JobService implements webcrawl.JobService using SQLite.
type JobService struct {
	db *DB
}

// NewJobService creates a new JobService.
func NewJobService(db *DB) *JobService {
	return &JobService{db: db}
}

const jobColumns = "id, seed_url, spec, status, message, stats, created_at, started_at, ended_at"

// CreateJob inserts a new job. Returns ECONFLICT if the ID is taken.
func (s *JobService) CreateJob(ctx context.Context, job *webcrawl.Job) error {
	if job.ID == "" {
		return webcrawl.Errorf(webcrawl.EINVALID, "job ID required")
	}
	spec, stats, err := encodeJob(job)
	if err != nil {
		return err
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE id = ?`, job.ID).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return webcrawl.Errorf(webcrawl.ECONFLICT, "job %q already exists", job.ID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.Spec.SeedURL, spec, job.Status, job.Message, stats,
		formatTime(job.CreatedAt), formatTime(job.StartedAt), formatTime(job.EndedAt))
	return err
}

// UpdateJob overwrites the mutable fields of a job.
func (s *JobService) UpdateJob(ctx context.Context, job *webcrawl.Job) error {
	_, stats, err := encodeJob(job)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, message = ?, stats = ?, started_at = ?, ended_at = ?
		WHERE id = ?
	`, job.Status, job.Message, stats, formatTime(job.StartedAt), formatTime(job.EndedAt), job.ID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return webcrawl.Errorf(webcrawl.ENOTFOUND, "job not found")
	}
	return nil
}

// FindJobByID retrieves a job by ID.
func (s *JobService) FindJobByID(ctx context.Context, id string) (*webcrawl.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, webcrawl.Errorf(webcrawl.ENOTFOUND, "job not found")
	}
	return job, err
}

// FindJobs retrieves jobs matching the filter, newest first.
func (s *JobService) FindJobs(ctx context.Context, filter webcrawl.JobFilter) ([]*webcrawl.Job, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT " + jobColumns + " FROM jobs WHERE 1=1")

	if filter.ID != nil {
		query.WriteString(" AND id = ?")
		args = append(args, *filter.ID)
	}
	if filter.Status != nil {
		query.WriteString(" AND status = ?")
		args = append(args, *filter.Status)
	}

	query.WriteString(" ORDER BY created_at DESC, rowid DESC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*webcrawl.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*webcrawl.Job, error) {
	var job webcrawl.Job
	var seed, spec, stats, createdAt, startedAt, endedAt string

	if err := row.Scan(&job.ID, &seed, &spec, &job.Status, &job.Message, &stats,
		&createdAt, &startedAt, &endedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(spec), &job.Spec); err != nil {
		return nil, fmt.Errorf("failed to decode spec: %w", err)
	}
	if err := json.Unmarshal([]byte(stats), &job.Stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}

	var err error
	if job.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if job.StartedAt, err = parseTime(startedAt, "started_at"); err != nil {
		return nil, err
	}
	if job.EndedAt, err = parseTime(endedAt, "ended_at"); err != nil {
		return nil, err
	}
	return &job, nil
}

func encodeJob(job *webcrawl.Job) (spec, stats string, err error) {
	b, err := json.Marshal(job.Spec)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode spec: %w", err)
	}
	spec = string(b)
	b, err = json.Marshal(job.Stats)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode stats: %w", err)
	}
	return spec, string(b), nil
}
