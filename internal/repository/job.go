package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/streetbite/pipeline/constants"
	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/entity"
)

type JobRepository interface {
	CreateJob(ctx context.Context, job *entity.ScrapingJob) error
	GetJobByID(ctx context.Context, id uuid.UUID) (*entity.ScrapingJob, error)
	GetJobsByStatus(ctx context.Context, status constants.JobStatus, limit int) ([]*entity.ScrapingJob, error)
	// ClaimJob moves pending -> running. Exactly one concurrent caller wins;
	// the rest get claimed=false with no error.
	ClaimJob(ctx context.Context, id uuid.UUID) (claimed bool, err error)
	MarkCompleted(ctx context.Context, id uuid.UUID, truckID *uuid.UUID) error
	// RetryOrFail moves running -> failed, then re-queues as pending with an
	// incremented retry_count when retryable and the budget allows. Returns
	// the job's resulting status.
	RetryOrFail(ctx context.Context, id uuid.UUID, failure string, retryable bool) (constants.JobStatus, error)
	HasActiveJobForURL(ctx context.Context, url string) (bool, error)
}

type jobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewJobRepository(db *sql.DB, logger *slog.Logger) JobRepository {
	return &jobRepository{db: db, logger: logger}
}

const jobColumns = `id, target_url, job_type, status, priority, retry_count, max_retries, errors, truck_id, created_at, updated_at, completed_at`

func (r *jobRepository) CreateJob(ctx context.Context, job *entity.ScrapingJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = constants.DefaultMaxRetries
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	errsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return common.WrapError(common.ErrPersistence, err.Error())
	}
	var truckID any
	if job.TruckID != nil {
		truckID = job.TruckID.String()
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO scraping_jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL)`,
		job.ID.String(), job.TargetURL, job.JobType, string(job.Status), job.Priority,
		job.RetryCount, job.MaxRetries, string(errsJSON), truckID,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt))
	if err != nil {
		r.logger.Error("job.create_failed", "job_id", job.ID, "error", err)
		return common.WrapError(common.ErrPersistence, err.Error())
	}
	r.logger.Info("job.created", "job_id", job.ID, "url", job.TargetURL, "priority", job.Priority)
	return nil
}

func (r *jobRepository) GetJobByID(ctx context.Context, id uuid.UUID) (*entity.ScrapingJob, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM scraping_jobs WHERE id = $1`, id.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "job "+id.String())
	}
	if err != nil {
		return nil, common.WrapError(common.ErrPersistence, err.Error())
	}
	return job, nil
}

func (r *jobRepository) GetJobsByStatus(ctx context.Context, status constants.JobStatus, limit int) ([]*entity.ScrapingJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM scraping_jobs
		 WHERE status = $1 ORDER BY priority DESC, created_at ASC LIMIT $2`,
		string(status), limit)
	if err != nil {
		return nil, common.WrapError(common.ErrPersistence, err.Error())
	}
	defer func() { _ = rows.Close() }()

	var jobs []*entity.ScrapingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, common.WrapError(common.ErrPersistence, err.Error())
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *jobRepository) ClaimJob(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE scraping_jobs SET status = $1, updated_at = $2
		 WHERE id = $3 AND status = $4`,
		string(constants.JobStatusRunning), formatTime(time.Now()),
		id.String(), string(constants.JobStatusPending))
	if err != nil {
		return false, common.WrapError(common.ErrPersistence, err.Error())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, common.WrapError(common.ErrPersistence, err.Error())
	}
	if n == 1 {
		r.logger.Info("job.claimed", "job_id", id)
	}
	return n == 1, nil
}

func (r *jobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, truckID *uuid.UUID) error {
	now := formatTime(time.Now())
	var truck any
	if truckID != nil {
		truck = truckID.String()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE scraping_jobs SET status = $1, truck_id = $2, updated_at = $3, completed_at = $4
		 WHERE id = $5 AND status = $6`,
		string(constants.JobStatusCompleted), truck, now, now,
		id.String(), string(constants.JobStatusRunning))
	if err != nil {
		return common.WrapError(common.ErrPersistence, err.Error())
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapError(common.ErrInvalidInput, "complete on a job that is not running")
	}
	r.logger.Info("job.completed", "job_id", id)
	return nil
}

func (r *jobRepository) RetryOrFail(ctx context.Context, id uuid.UUID, failure string, retryable bool) (constants.JobStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", common.WrapError(common.ErrPersistence, err.Error())
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT retry_count, max_retries, errors FROM scraping_jobs WHERE id = $1 AND status = $2`,
		id.String(), string(constants.JobStatusRunning))
	var retryCount, maxRetries int
	var errsJSON string
	if err := row.Scan(&retryCount, &maxRetries, &errsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.WrapError(common.ErrInvalidInput, "fail on a job that is not running")
		}
		return "", common.WrapError(common.ErrPersistence, err.Error())
	}

	var jobErrors []string
	_ = json.Unmarshal([]byte(errsJSON), &jobErrors)
	jobErrors = append(jobErrors, failure)
	merged, err := json.Marshal(jobErrors)
	if err != nil {
		return "", common.WrapError(common.ErrPersistence, err.Error())
	}

	// Retryable failures consume one retry, then re-queue while budget remains.
	next := constants.JobStatusFailed
	if retryable {
		retryCount++
		if retryCount < maxRetries {
			next = constants.JobStatusPending
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE scraping_jobs SET status = $1, retry_count = $2, errors = $3, updated_at = $4
		 WHERE id = $5`,
		string(next), retryCount, string(merged), formatTime(time.Now()), id.String())
	if err != nil {
		return "", common.WrapError(common.ErrPersistence, err.Error())
	}
	if err := tx.Commit(); err != nil {
		return "", common.WrapError(common.ErrPersistence, err.Error())
	}

	r.logger.Warn("job.failed",
		"job_id", id, "next_status", string(next),
		"retry_count", retryCount, "retryable", retryable, "reason", failure)
	return next, nil
}

func (r *jobRepository) HasActiveJobForURL(ctx context.Context, url string) (bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM scraping_jobs WHERE target_url = $1 AND status IN ($2, $3)`,
		url, string(constants.JobStatusPending), string(constants.JobStatusRunning))
	var n int
	if err := row.Scan(&n); err != nil {
		return false, common.WrapError(common.ErrPersistence, err.Error())
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*entity.ScrapingJob, error) {
	var (
		job         entity.ScrapingJob
		idStr       string
		status      string
		errsJSON    string
		truckID     sql.NullString
		createdAt   string
		updatedAt   string
		completedAt sql.NullString
	)
	err := row.Scan(&idStr, &job.TargetURL, &job.JobType, &status, &job.Priority,
		&job.RetryCount, &job.MaxRetries, &errsJSON, &truckID, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	job.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	job.Status = constants.JobStatus(status)
	_ = json.Unmarshal([]byte(errsJSON), &job.Errors)
	if truckID.Valid {
		if tid, err := uuid.Parse(truckID.String); err == nil {
			job.TruckID = &tid
		}
	}
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		job.CompletedAt = &t
	}
	return &job, nil
}
