package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/entity"
	"github.com/streetbite/pipeline/internal/mapper"
	"github.com/streetbite/pipeline/internal/quality"
	"github.com/streetbite/pipeline/internal/repository"
)

// Status is the run-level outcome aggregated from stage results.
type Status string

const (
	StatusSuccess        Status = "Success"
	StatusPartialFailure Status = "PartialFailure"
	StatusError          Status = "Error"
)

// RunResult is what a pipeline run hands back: every stage outcome, the full
// ordered log, and a coarse status. Callers never see a raw panic or error
// chain from inside a run.
type RunResult struct {
	Stages        []StageResult     `json:"stages"`
	Logs          []string          `json:"logs"`
	OverallStatus Status            `json:"overall_status"`
	Truck         *entity.FoodTruck `json:"truck,omitempty"`
	Action        quality.Action    `json:"action,omitempty"`
}

// Orchestrator sequences fetch -> extract -> map -> score -> dedup/persist for
// claimed jobs, and exposes the same sequence as an unclaimed test run.
type Orchestrator struct {
	runner      *StageRunner
	jobs        repository.JobRepository
	deduper     *quality.Deduper
	runDeadline time.Duration
	logger      *slog.Logger
}

func NewOrchestrator(runner *StageRunner, jobs repository.JobRepository, deduper *quality.Deduper, runDeadline time.Duration, logger *slog.Logger) *Orchestrator {
	if runDeadline <= 0 {
		runDeadline = 3 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		runner:      runner,
		jobs:        jobs,
		deduper:     deduper,
		runDeadline: runDeadline,
		logger:      logger,
	}
}

// ProcessJob claims the job and runs it to a terminal stage outcome. A lost
// claim race is not an error. Stage failures move the job to failed and
// consult the retry budget; deterministic parse and shape failures are
// terminal because the same input would fail the same way again.
func (o *Orchestrator) ProcessJob(ctx context.Context, jobID uuid.UUID) (RunResult, error) {
	job, err := o.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return RunResult{OverallStatus: StatusError}, err
	}

	claimed, err := o.jobs.ClaimJob(ctx, jobID)
	if err != nil {
		return RunResult{OverallStatus: StatusError}, err
	}
	if !claimed {
		o.logger.Info("pipeline.claim_lost", "job_id", jobID)
		return RunResult{OverallStatus: StatusError}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, o.runDeadline)
	defer cancel()

	result, truckID, runErr := o.runSequence(runCtx, job.TargetURL, "", false)
	if runErr != nil {
		retryable := common.Retryable(runErr)
		next, failErr := o.jobs.RetryOrFail(ctx, jobID, runErr.Error(), retryable)
		if failErr != nil {
			o.logger.Error("pipeline.fail_transition_error", "job_id", jobID, "error", failErr)
		}
		o.logger.Warn("pipeline.job_failed",
			"job_id", jobID, "status", result.OverallStatus,
			"retryable", retryable, "next_status", string(next))
		return result, nil
	}

	if err := o.jobs.MarkCompleted(ctx, jobID, truckID); err != nil {
		o.logger.Error("pipeline.complete_transition_error", "job_id", jobID, "error", err)
		return result, err
	}
	o.logger.Info("pipeline.job_completed", "job_id", jobID, "truck_id", truckID)
	return result, nil
}

// TestInput selects the entry point for a manual run: a URL to fetch or raw
// page text that skips the fetch stage.
type TestInput struct {
	URL     string
	RawText string
	DryRun  bool
}

// RunTestPipeline executes the stage sequence without touching the job table.
// With DryRun set, persistence is skipped and the mapped record is returned
// as it would have been stored.
func (o *Orchestrator) RunTestPipeline(ctx context.Context, in TestInput) RunResult {
	runCtx, cancel := context.WithTimeout(ctx, o.runDeadline)
	defer cancel()

	result, _, _ := o.runSequence(runCtx, in.URL, in.RawText, in.DryRun)
	return result
}

// runSequence is the shared linear stage sequence. It returns the aggregated
// result plus the first stage error (nil on full success) for retry
// classification.
func (o *Orchestrator) runSequence(ctx context.Context, url, rawText string, dryRun bool) (RunResult, *uuid.UUID, error) {
	log := &RunLog{}
	var stages []StageResult

	finish := func(err error) (RunResult, *uuid.UUID, error) {
		status := aggregateStatus(ctx, stages)
		return RunResult{Stages: stages, Logs: log.Lines(), OverallStatus: status}, nil, err
	}

	// fetch
	content := rawText
	sourceURL := url
	if rawText == "" {
		markdown, res := o.runner.RunFetchStage(ctx, url, log)
		stages = append(stages, res)
		if !res.Success {
			return finish(reasonError(res))
		}
		content = markdown
	} else {
		log.Appendf("fetch: skipped, raw text provided (%d chars)", len(rawText))
	}

	// extract
	details, res := o.runner.RunExtractStage(ctx, content, sourceURL, log)
	stages = append(stages, res)
	if !res.Success {
		return finish(reasonError(res))
	}

	// map
	mapStart := time.Now()
	name, err := mapper.ValidateExtractedName(details)
	if err != nil {
		stages = append(stages, failureResult("map", mapStart, err))
		log.Appendf("map: discarding record: %v", err)
		return finish(err)
	}
	schema := mapper.MapExtractedDetails(details, name, sourceURL, dryRun)
	stages = append(stages, successResult("map", mapStart))
	log.Appendf("map: built record for %q", name)

	// score
	scoreStart := time.Now()
	schema.DataQualityScore = quality.CalculateQualityScore(schema)
	stages = append(stages, successResult("score", scoreStart))
	log.Appendf("score: %.2f", schema.DataQualityScore)

	if dryRun {
		log.Appendf("persist: skipped (dry run)")
		result := RunResult{
			Stages:        stages,
			Logs:          log.Lines(),
			OverallStatus: aggregateStatus(ctx, stages),
			Truck:         &entity.FoodTruck{FoodTruckSchema: schema},
		}
		return result, nil, nil
	}

	// dedup + persist
	persistStart := time.Now()
	truck, action, err := o.deduper.CreateOrMerge(ctx, schema)
	if err != nil {
		stages = append(stages, failureResult("persist", persistStart, err))
		log.Appendf("persist: failed: %v", err)
		return finish(err)
	}
	stages = append(stages, successResult("persist", persistStart))
	log.Appendf("persist: %s truck %s", action, truck.ID)

	result := RunResult{
		Stages:        stages,
		Logs:          log.Lines(),
		OverallStatus: StatusSuccess,
		Truck:         truck,
		Action:        action,
	}
	truckID := truck.ID
	return result, &truckID, nil
}

// aggregateStatus folds stage results into the run-level status: all green is
// Success, progress before the first failure (or a tripped deadline) is
// PartialFailure, immediate failure is Error.
func aggregateStatus(ctx context.Context, stages []StageResult) Status {
	succeeded := 0
	failed := 0
	for _, s := range stages {
		if s.Success {
			succeeded++
		} else {
			failed++
		}
	}
	switch {
	case failed == 0 && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return StatusPartialFailure
	case failed == 0:
		return StatusSuccess
	case succeeded > 0:
		return StatusPartialFailure
	default:
		return StatusError
	}
}

func reasonError(res StageResult) error {
	return common.NewAppError(res.Reason, res.Detail, reasonSentinel(res.Reason))
}

// reasonSentinel maps a reason code back to its taxonomy sentinel so retry
// classification keeps working after an error crosses a stage boundary.
func reasonSentinel(reason string) error {
	switch reason {
	case ReasonFetchBlocked:
		return common.ErrFetchBlocked
	case ReasonEmptyContent:
		return common.ErrEmptyContent
	case ReasonFetchFailed:
		return common.ErrFetch
	case ReasonUsageExceeded:
		return common.ErrUsageExceeded
	case ReasonParseFailed:
		return common.ErrParse
	case ReasonSchemaMismatch:
		return common.ErrSchemaMismatch
	case ReasonInvalidData:
		return common.ErrInvalidInput
	case ReasonPersistence:
		return common.ErrPersistence
	default:
		return nil
	}
}
