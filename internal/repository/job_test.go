package repository

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetbite/pipeline/constants"
	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/entity"
)

func newTestDB(t *testing.T) *sqlDBWrapper {
	t.Helper()
	logger := slog.Default()
	db, err := Open(context.Background(), Config{DSN: ":memory:"}, logger)
	require.NoError(t, err)
	require.NoError(t, Migrate(context.Background(), db, logger))
	t.Cleanup(func() { Close(db, logger) })
	return &sqlDBWrapper{
		jobs:   NewJobRepository(db, logger),
		trucks: NewTruckRepository(db, logger),
		usage:  NewUsageRepository(db, logger),
	}
}

type sqlDBWrapper struct {
	jobs   JobRepository
	trucks TruckRepository
	usage  UsageRepository
}

func newPendingJob(t *testing.T, repos *sqlDBWrapper, url string) *entity.ScrapingJob {
	t.Helper()
	job := &entity.ScrapingJob{
		TargetURL: url,
		JobType:   "website_scrape",
		Priority:  constants.DefaultJobPriority,
	}
	require.NoError(t, repos.jobs.CreateJob(context.Background(), job))
	return job
}

func TestCreateJobDefaults(t *testing.T) {
	repos := newTestDB(t)
	job := newPendingJob(t, repos, "https://tacobus.example")

	got, err := repos.jobs.GetJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	assert.Equal(t, constants.DefaultMaxRetries, got.MaxRetries)
	assert.Nil(t, got.CompletedAt)
}

func TestGetJobByIDNotFound(t *testing.T) {
	repos := newTestDB(t)
	_, err := repos.jobs.GetJobByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestClaimJobExactlyOnce(t *testing.T) {
	repos := newTestDB(t)
	job := newPendingJob(t, repos, "https://tacobus.example")

	const workers = 2
	results := make([]bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claimed, err := repos.jobs.ClaimJob(context.Background(), job.ID)
			require.NoError(t, err)
			results[i] = claimed
		}(i)
	}
	wg.Wait()

	claims := 0
	for _, ok := range results {
		if ok {
			claims++
		}
	}
	assert.Equal(t, 1, claims, "exactly one worker should win the claim")

	got, err := repos.jobs.GetJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusRunning, got.Status)
}

func TestMarkCompletedRequiresRunning(t *testing.T) {
	repos := newTestDB(t)
	job := newPendingJob(t, repos, "https://tacobus.example")

	err := repos.jobs.MarkCompleted(context.Background(), job.ID, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	claimed, err := repos.jobs.ClaimJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	truckID := uuid.New()
	require.NoError(t, repos.jobs.MarkCompleted(context.Background(), job.ID, &truckID))

	got, err := repos.jobs.GetJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	require.NotNil(t, got.TruckID)
	assert.Equal(t, truckID, *got.TruckID)
	assert.NotNil(t, got.CompletedAt)
	assert.True(t, got.Terminal())
}

func TestRetryOrFailReQueuesUntilExhausted(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()
	job := newPendingJob(t, repos, "https://tacobus.example")

	// first two transient failures re-queue the job
	for attempt := 1; attempt < constants.DefaultMaxRetries; attempt++ {
		claimed, err := repos.jobs.ClaimJob(ctx, job.ID)
		require.NoError(t, err)
		require.True(t, claimed)

		next, err := repos.jobs.RetryOrFail(ctx, job.ID, "connection reset", true)
		require.NoError(t, err)
		assert.Equal(t, constants.JobStatusPending, next)
	}

	// the third consecutive failure exhausts the budget
	claimed, err := repos.jobs.ClaimJob(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	next, err := repos.jobs.RetryOrFail(ctx, job.ID, "connection reset", true)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, next)

	got, err := repos.jobs.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Equal(t, constants.DefaultMaxRetries, got.RetryCount)
	assert.Len(t, got.Errors, constants.DefaultMaxRetries)
	assert.True(t, got.Terminal())
}

func TestRetryOrFailNonRetryableIsTerminal(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()
	job := newPendingJob(t, repos, "https://tacobus.example")

	claimed, err := repos.jobs.ClaimJob(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	next, err := repos.jobs.RetryOrFail(ctx, job.ID, "json repair exhausted", false)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, next)

	got, err := repos.jobs.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RetryCount, "non-retryable failures do not consume the retry budget")
}

func TestHasActiveJobForURL(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()
	job := newPendingJob(t, repos, "https://tacobus.example")

	active, err := repos.jobs.HasActiveJobForURL(ctx, "https://tacobus.example")
	require.NoError(t, err)
	assert.True(t, active)

	claimed, err := repos.jobs.ClaimJob(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, repos.jobs.MarkCompleted(ctx, job.ID, nil))

	active, err = repos.jobs.HasActiveJobForURL(ctx, "https://tacobus.example")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestGetJobsByStatusOrdersByPriority(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()

	low := &entity.ScrapingJob{TargetURL: "https://a.example", JobType: "website_scrape", Priority: 1}
	require.NoError(t, repos.jobs.CreateJob(ctx, low))
	time.Sleep(2 * time.Millisecond)
	high := &entity.ScrapingJob{TargetURL: "https://b.example", JobType: "website_scrape", Priority: 9}
	require.NoError(t, repos.jobs.CreateJob(ctx, high))

	jobs, err := repos.jobs.GetJobsByStatus(ctx, constants.JobStatusPending, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, high.ID, jobs[0].ID)
}
