package discovery

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/streetbite/pipeline/constants"
	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/entity"
	"github.com/streetbite/pipeline/internal/fetch"
	"github.com/streetbite/pipeline/internal/repository"
)

// Engine walks configured seed pages, extracts candidate truck URLs, and
// queues scrape jobs for anything not already known.
type Engine struct {
	cfg     common.DiscoveryConfig
	fetcher fetch.ContentFetcher
	jobs    repository.JobRepository
	trucks  repository.TruckRepository
	logger  *slog.Logger
}

func NewEngine(cfg common.DiscoveryConfig, fetcher fetch.ContentFetcher, jobs repository.JobRepository, trucks repository.TruckRepository, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, fetcher: fetcher, jobs: jobs, trucks: trucks, logger: logger}
}

// Run walks every seed URL and returns how many jobs were queued. Seed
// fetches are spaced by FetchDelay to stay polite to the directory hosts.
func (e *Engine) Run(ctx context.Context) (int, error) {
	queued := 0
	for i, seed := range e.cfg.SeedURLs {
		if i > 0 {
			if err := e.pause(ctx); err != nil {
				return queued, err
			}
		}
		n, err := e.walkSeed(ctx, seed)
		queued += n
		if err != nil {
			e.logger.Warn("discovery.seed_failed", "seed", seed, "error", err)
			continue
		}
	}
	e.logger.Info("discovery.done", "seeds", len(e.cfg.SeedURLs), "queued", queued)
	return queued, nil
}

func (e *Engine) pause(ctx context.Context) error {
	if e.cfg.FetchDelay <= 0 {
		return nil
	}
	t := time.NewTimer(e.cfg.FetchDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Engine) walkSeed(ctx context.Context, seed string) (int, error) {
	start := time.Now()
	page, err := e.fetcher.Fetch(ctx, seed)
	if err != nil {
		return 0, err
	}

	candidates := FilterCandidateURLs(ExtractLinks(page.HTML), seed)
	if e.cfg.MaxURLs > 0 && len(candidates) > e.cfg.MaxURLs {
		candidates = candidates[:e.cfg.MaxURLs]
	}
	e.logger.Info("discovery.seed_walked",
		"seed", seed, "candidates", len(candidates),
		"elapsed_ms", time.Since(start).Milliseconds())

	queued := 0
	for _, candidate := range candidates {
		ok, err := e.queueCandidate(ctx, candidate)
		if err != nil {
			return queued, err
		}
		if ok {
			queued++
		}
	}
	return queued, nil
}

// queueCandidate creates a pending job unless the URL already has an active
// job or a stored truck.
func (e *Engine) queueCandidate(ctx context.Context, candidate string) (bool, error) {
	active, err := e.jobs.HasActiveJobForURL(ctx, candidate)
	if err != nil {
		return false, err
	}
	if active {
		return false, nil
	}
	known, err := e.trucks.ExistsBySourceURL(ctx, candidate)
	if err != nil {
		return false, err
	}
	if known {
		return false, nil
	}
	job := &entity.ScrapingJob{
		TargetURL: candidate,
		JobType:   "website_scrape",
		Priority:  constants.DefaultJobPriority,
	}
	if err := e.jobs.CreateJob(ctx, job); err != nil {
		return false, err
	}
	return true, nil
}

// SweepStaleTrucks re-queues a scrape job for every truck whose record is
// older than the staleness threshold.
func (e *Engine) SweepStaleTrucks(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -constants.StalenessThresholdDays)
	stale, err := e.trucks.GetStaleTrucks(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, truck := range stale {
		if len(truck.SourceURLs) == 0 {
			continue
		}
		target := truck.SourceURLs[0]
		active, err := e.jobs.HasActiveJobForURL(ctx, target)
		if err != nil {
			return queued, err
		}
		if active {
			continue
		}
		truckID := truck.ID
		job := &entity.ScrapingJob{
			TargetURL: target,
			JobType:   "staleness_refresh",
			Priority:  constants.DefaultJobPriority - 1,
			TruckID:   &truckID,
		}
		if err := e.jobs.CreateJob(ctx, job); err != nil {
			return queued, err
		}
		queued++
	}
	if queued > 0 {
		e.logger.Info("discovery.stale_requeued", "count", queued)
	}
	return queued, nil
}

// ExtractLinks tokenizes the document and collects every anchor href.
func ExtractLinks(doc string) []string {
	var links []string
	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	for {
		t := tokenizer.Next()
		switch t {
		case html.ErrorToken:
			return links
		case html.StartTagToken:
			token := tokenizer.Token()
			if token.Data != "a" {
				continue
			}
			for _, attr := range token.Attr {
				if attr.Key == "href" {
					links = append(links, attr.Val)
					break
				}
			}
		}
	}
}

// FilterCandidateURLs resolves relative links against the seed, strips
// fragments, keeps only http(s), and de-duplicates while preserving order.
func FilterCandidateURLs(links []string, seedURL string) []string {
	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil
	}
	var out []string
	seen := make(map[string]struct{}, len(links))
	for _, raw := range links {
		parsed, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		parsed.Fragment = ""
		resolved := seed.ResolveReference(parsed)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		final := resolved.String()
		if final == seed.String() {
			continue
		}
		if _, dup := seen[final]; dup {
			continue
		}
		seen[final] = struct{}{}
		out = append(out, final)
	}
	return out
}
