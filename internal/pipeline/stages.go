package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/fetch"
	"github.com/streetbite/pipeline/internal/llm"
)

// Failure reason codes carried on StageResult.
const (
	ReasonFetchFailed    = "FETCH_FAILED"
	ReasonFetchBlocked   = "FETCH_BLOCKED"
	ReasonEmptyContent   = "EMPTY_CONTENT"
	ReasonLLMError       = "LLM_ERROR"
	ReasonUsageExceeded  = "USAGE_EXCEEDED"
	ReasonParseFailed    = "PARSE_FAILED"
	ReasonSchemaMismatch = "SCHEMA_MISMATCH"
	ReasonInvalidData    = "INVALID_DATA"
	ReasonPersistence    = "PERSISTENCE_FAILED"
	ReasonDeadline       = "RUN_DEADLINE"
)

// StageResult tags one stage's outcome. Failures carry a reason code instead
// of propagating an error past the stage boundary.
type StageResult struct {
	Stage     string `json:"stage"`
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

func successResult(stage string, started time.Time) StageResult {
	return StageResult{Stage: stage, Success: true, ElapsedMs: time.Since(started).Milliseconds()}
}

func failureResult(stage string, started time.Time, err error) StageResult {
	return StageResult{
		Stage:     stage,
		Reason:    classifyReason(err),
		Detail:    err.Error(),
		ElapsedMs: time.Since(started).Milliseconds(),
	}
}

func classifyReason(err error) string {
	switch {
	case errors.Is(err, common.ErrFetchBlocked):
		return ReasonFetchBlocked
	case errors.Is(err, common.ErrEmptyContent):
		return ReasonEmptyContent
	case errors.Is(err, common.ErrFetch):
		return ReasonFetchFailed
	case errors.Is(err, common.ErrUsageExceeded):
		return ReasonUsageExceeded
	case errors.Is(err, common.ErrParse):
		return ReasonParseFailed
	case errors.Is(err, common.ErrSchemaMismatch):
		return ReasonSchemaMismatch
	case errors.Is(err, common.ErrInvalidInput):
		return ReasonInvalidData
	case errors.Is(err, common.ErrPersistence):
		return ReasonPersistence
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonDeadline
	default:
		return ReasonLLMError
	}
}

// RunLog is the ordered, append-only, human-readable log for one pipeline run.
type RunLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *RunLog) Appendf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *RunLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// StageRunner executes the fetch and extraction stages. It has no storage
// side effects; every outcome is a tagged StageResult plus a log line.
type StageRunner struct {
	fetcher   fetch.ContentFetcher
	completer llm.Completer
	logger    *slog.Logger
}

func NewStageRunner(fetcher fetch.ContentFetcher, completer llm.Completer, logger *slog.Logger) *StageRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &StageRunner{fetcher: fetcher, completer: completer, logger: logger}
}

// RunFetchStage retrieves the page and returns its markdown rendering.
func (r *StageRunner) RunFetchStage(ctx context.Context, url string, log *RunLog) (string, StageResult) {
	started := time.Now()
	log.Appendf("fetch: requesting %s", url)

	page, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		res := failureResult("fetch", started, err)
		log.Appendf("fetch: failed (%s): %v", res.Reason, err)
		return "", res
	}
	log.Appendf("fetch: ok, %d bytes of markdown", len(page.Markdown))
	return page.Markdown, successResult("fetch", started)
}

// RunExtractStage prompts the model with the page content and repairs/decodes
// the response into the typed extraction bag. Parser failures are reported as
// extraction-stage failures, never as uncaught errors.
func (r *StageRunner) RunExtractStage(ctx context.Context, markdown, sourceURL string, log *RunLog) (llm.ExtractedFoodTruckDetails, StageResult) {
	started := time.Now()
	log.Appendf("extract: prompting model for %s", sourceURL)

	prompt := llm.BuildExtractionPrompt(markdown, sourceURL)
	text, tokens, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		res := failureResult("extract", started, err)
		log.Appendf("extract: model call failed (%s): %v", res.Reason, err)
		return llm.ExtractedFoodTruckDetails{}, res
	}
	log.Appendf("extract: model returned %d chars (%d tokens)", len(text), tokens)

	details, err := llm.DecodeExtractedDetails(text)
	if err != nil {
		res := failureResult("extract", started, err)
		log.Appendf("extract: decode failed (%s): %v", res.Reason, err)
		return llm.ExtractedFoodTruckDetails{}, res
	}
	log.Appendf("extract: decoded truck details")
	return details, successResult("extract", started)
}
