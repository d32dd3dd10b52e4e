package gemini

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string        // if empty, falls back to env GEMINI_API_KEY
	BaseURL     string        // default https://generativelanguage.googleapis.com/v1beta
	Model       string        // e.g., "gemini-1.5-flash"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout
	CallDelay   time.Duration // minimum spacing between consecutive calls
}

// UsageTracker gates calls against the daily request and token budgets and
// records what each call actually consumed.
type UsageTracker interface {
	// CheckBudget returns common.ErrUsageExceeded (wrapped) when the estimated
	// spend would cross a daily limit.
	CheckBudget(ctx context.Context, estimatedTokens int) error
	// RecordUsage adds one request and the given token count to today's row.
	RecordUsage(ctx context.Context, tokens int) error
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
	usage      UsageTracker

	mu       sync.Mutex
	lastCall time.Time
}

// NewClient builds a Gemini client. usage may be nil, in which case calls are
// not budget-gated (used by the dry-run CLI path).
func NewClient(cfg Config, usage UsageTracker, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.CallDelay <= 0 {
		cfg.CallDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
		usage:      usage,
	}
}
