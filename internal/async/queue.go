package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streetbite/pipeline/internal/pipeline"
)

// Job is one queued unit of scrape work.
type Job struct {
	JobID       uuid.UUID
	SubmittedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// JobQueue fans queued jobs out to a bounded worker pool. Exclusivity per job
// is guaranteed by the repository claim, not by anything in here, so the same
// job id can be enqueued twice without harm.
type JobQueue struct {
	orch    *pipeline.Orchestrator
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*JobQueue)

func WithWorkers(n int) Option {
	return func(q *JobQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *JobQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *JobQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewJobQueue(orch *pipeline.Orchestrator, logger *slog.Logger, opts ...Option) *JobQueue {
	q := &JobQueue{
		orch:    orch,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *JobQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					result, err := q.orch.ProcessJob(ctx, job.JobID)
					cancel()

					if err != nil {
						q.logger.Error("job processing error",
							"worker_id", workerID, "job_id", job.JobID, "error", err)
					} else {
						q.logger.Info("job processed",
							"worker_id", workerID, "job_id", job.JobID,
							"status", string(result.OverallStatus),
							"queued_ms", time.Since(job.SubmittedAt).Milliseconds())
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *JobQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.JobID)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued job for processing", "job_id", job.JobID)
	default:
		q.logger.Warn("queue full, applying backpressure", "job_id", job.JobID)
		q.ch <- job
	}
	return nil
}

func (q *JobQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
