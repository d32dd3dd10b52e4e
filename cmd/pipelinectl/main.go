package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/discovery"
	"github.com/streetbite/pipeline/internal/fetch"
	"github.com/streetbite/pipeline/internal/llm/gemini"
	"github.com/streetbite/pipeline/internal/pipeline"
	"github.com/streetbite/pipeline/internal/quality"
	"github.com/streetbite/pipeline/internal/repository"
)

func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		url      = flag.String("url", "", "run the pipeline against a single URL")
		rawFile  = flag.String("raw", "", "run the pipeline against raw page text from a file")
		persist  = flag.Bool("persist", false, "persist the result (default is a dry run)")
		seed     = flag.Bool("discover", false, "walk the configured seed URLs and queue jobs")
		rescore  = flag.Bool("rescore", false, "recompute quality scores for all stored trucks")
		logLevel = flag.String("log-level", "warn", "log level: debug, info, warn, error")
	)
	flag.Parse()

	_ = godotenv.Load()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := repository.Open(ctx, repository.Config{
		DSN:         cfg.Database.DSN,
		DialTimeout: cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		printError("Error: database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)
	if err := repository.Migrate(ctx, db, logger); err != nil {
		printError("Error: migration failed: %v\n", err)
		os.Exit(1)
	}

	jobs := repository.NewJobRepository(db, logger)
	trucks := repository.NewTruckRepository(db, logger)
	usage := repository.NewUsageRepository(db, logger)

	fetcher := fetch.NewHTTPFetcher(fetch.Config{
		UserAgent: cfg.Fetcher.UserAgent,
		Timeout:   cfg.Fetcher.Timeout,
	}, logger)

	switch {
	case *seed:
		engine := discovery.NewEngine(cfg.Discovery, fetcher, jobs, trucks, logger)
		queued, err := engine.Run(ctx)
		if err != nil {
			printError("Error: discovery failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("queued %d jobs from %d seeds\n", queued, len(cfg.Discovery.SeedURLs))

	case *rescore:
		scorer := quality.NewScorer(trucks, logger)
		changed, err := scorer.RescoreAll(ctx)
		if err != nil {
			printError("Error: rescore failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rescored trucks, %d changed\n", changed)

	case *url != "" || *rawFile != "":
		completer := gemini.NewClient(gemini.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
			CallDelay:   cfg.LLM.CallDelay,
		}, repository.NewUsageGate(usage, "gemini", logger), logger)

		runner := pipeline.NewStageRunner(fetcher, completer, logger)
		deduper := quality.NewDeduper(trucks, logger)
		orch := pipeline.NewOrchestrator(runner, jobs, deduper, cfg.Worker.RunDeadline, logger)

		input := pipeline.TestInput{URL: *url, DryRun: !*persist}
		if *rawFile != "" {
			raw, err := os.ReadFile(*rawFile)
			if err != nil {
				printError("Error: reading %s: %v\n", *rawFile, err)
				os.Exit(1)
			}
			input.RawText = string(raw)
		}

		result := orch.RunTestPipeline(ctx, input)
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			printError("Error: encoding result: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		if result.OverallStatus == pipeline.StatusError {
			os.Exit(1)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}
