package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/streetbite/pipeline/internal/common"
)

// maxBodyBytes caps how much of a page we read. Food truck sites are small;
// anything beyond this is media or an infinite response.
const maxBodyBytes = 2 << 20

// Result is one fetched page, both as raw HTML and as markdown ready for
// prompt assembly.
type Result struct {
	URL      string
	HTML     string
	Markdown string
	Status   int
}

// ContentFetcher retrieves a page and converts it for extraction.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (*Result, error)
}

// Config for the HTTP fetcher.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// HTTPFetcher is the production ContentFetcher.
type HTTPFetcher struct {
	cfg         Config
	httpClient  *http.Client
	log         *slog.Logger
	mdConverter *converter.Converter
}

func NewHTTPFetcher(cfg Config, logger *slog.Logger) *HTTPFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "streetbite-pipeline/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Fetch downloads url and converts the body to markdown. Blocked responses
// (403, 429) wrap common.ErrFetchBlocked; pages with no usable text wrap
// common.ErrEmptyContent. Both are terminal for the current attempt but a
// blocked fetch stays retryable.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, common.NewAppError("FETCH_FAILED", fmt.Sprintf("build request for %s", url), err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.log.Warn("fetch.http_error", "url", url, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.WrapError(common.ErrFetch, err.Error())
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.log.Warn("fetch.body_close_error", "url", url, "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, common.WrapError(common.ErrFetch, fmt.Sprintf("read body of %s: %v", url, err))
	}

	f.log.Info("fetch.response",
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, common.WrapError(common.ErrFetchBlocked, fmt.Sprintf("%s returned %d", url, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, common.WrapError(common.ErrFetch, fmt.Sprintf("%s returned %d", url, resp.StatusCode))
	}

	html := string(body)
	md := f.htmlToMarkdown(html, url)
	if strings.TrimSpace(md) == "" {
		return nil, common.WrapError(common.ErrEmptyContent, fmt.Sprintf("%s produced no text content", url))
	}

	return &Result{URL: url, HTML: html, Markdown: md, Status: resp.StatusCode}, nil
}

// htmlToMarkdown converts HTML to markdown. If conversion fails or produces
// nothing, it falls back to the raw HTML so extraction still has material.
func (f *HTTPFetcher) htmlToMarkdown(html, sourceURL string) string {
	if html == "" {
		return ""
	}
	result, err := f.mdConverter.ConvertString(html, converter.WithDomain(sourceURL))
	if err != nil || strings.TrimSpace(result) == "" {
		f.log.Warn("fetch.markdown_fallback", "url", sourceURL, "error", err)
		return html
	}
	return strings.TrimSpace(result)
}
