package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/streetbite/pipeline/constants"
	"github.com/streetbite/pipeline/internal/async"
	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/discovery"
	"github.com/streetbite/pipeline/internal/fetch"
	"github.com/streetbite/pipeline/internal/llm/gemini"
	"github.com/streetbite/pipeline/internal/pipeline"
	"github.com/streetbite/pipeline/internal/quality"
	"github.com/streetbite/pipeline/internal/repository"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, repository.Config{
		DSN:         cfg.Database.DSN,
		DialTimeout: cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)

	if err := repository.Migrate(ctx, db, logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	if err := repository.HealthCheck(ctx, db, cfg.Database.DialTimeout); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}

	jobs := repository.NewJobRepository(db, logger)
	trucks := repository.NewTruckRepository(db, logger)
	usage := repository.NewUsageRepository(db, logger)

	completer := gemini.NewClient(gemini.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		CallDelay:   cfg.LLM.CallDelay,
	}, repository.NewUsageGate(usage, "gemini", logger), logger)

	fetcher := fetch.NewHTTPFetcher(fetch.Config{
		UserAgent: cfg.Fetcher.UserAgent,
		Timeout:   cfg.Fetcher.Timeout,
	}, logger)

	runner := pipeline.NewStageRunner(fetcher, completer, logger)
	deduper := quality.NewDeduper(trucks, logger)
	orch := pipeline.NewOrchestrator(runner, jobs, deduper, cfg.Worker.RunDeadline, logger)

	queue := async.NewJobQueue(orch, logger,
		async.WithWorkers(cfg.Worker.BatchSize),
		async.WithQueueSize(cfg.Worker.QueueSize),
		async.WithProcessTimeout(cfg.Worker.RunDeadline),
	)

	engine := discovery.NewEngine(cfg.Discovery, fetcher, jobs, trucks, logger)

	logger.Info("pipelined started",
		"workers", cfg.Worker.BatchSize,
		"sweep_every", cfg.Worker.SweepEvery.String(),
		"seeds", len(cfg.Discovery.SeedURLs),
	)

	if len(cfg.Discovery.SeedURLs) > 0 {
		if queued, err := engine.Run(ctx); err != nil {
			logger.Error("discovery failed", "error", err)
		} else {
			logger.Info("discovery queued jobs", "count", queued)
		}
	}

	sweep(ctx, cfg, queue, jobs, engine, logger)

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}

// sweep polls for pending jobs and feeds them to the worker pool until the
// context is cancelled. Stale trucks are re-queued on the same cadence.
func sweep(ctx context.Context, cfg *common.Config, queue async.Queue, jobs repository.JobRepository, engine *discovery.Engine, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.Worker.SweepEvery)
	defer ticker.Stop()

	for {
		pending, err := jobs.GetJobsByStatus(ctx, constants.JobStatusPending, cfg.Worker.QueueSize)
		if err != nil {
			logger.Error("sweep: listing pending jobs failed", "error", err)
		}
		for _, job := range pending {
			_ = queue.Enqueue(ctx, async.Job{JobID: job.ID, SubmittedAt: time.Now()})
		}

		if _, err := engine.SweepStaleTrucks(ctx); err != nil {
			logger.Error("sweep: stale truck requeue failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
