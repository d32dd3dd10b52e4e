package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streetbite/pipeline/constants"
	"github.com/streetbite/pipeline/internal/common"
)

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float32 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Complete implements llm.Completer against the generateContent endpoint.
// Calls are paced by CallDelay and gated by the usage tracker before any
// bytes go out.
func (c *Client) Complete(ctx context.Context, prompt string) (string, int, error) {
	rid := uuid.New().String()
	start := time.Now()

	estimated := len(prompt)/4 + constants.TokenBuffer
	if c.usage != nil {
		if err := c.usage.CheckBudget(ctx, estimated); err != nil {
			c.log.Warn("llm.gemini.budget_exceeded",
				"req_id", rid, "estimated_tokens", estimated, "error", err)
			return "", 0, err
		}
	}
	if err := c.pace(ctx); err != nil {
		return "", 0, err
	}

	c.log.Info("llm.gemini.request",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(prompt),
	)

	body := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      c.cfg.Temperature,
			ResponseMimeType: "application/json",
		},
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)

	raw, err := c.post(ctx, rid, endpoint, body)
	if err != nil {
		c.log.Error("llm.gemini.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", 0, err
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.log.Error("llm.gemini.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", 0, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		c.log.Error("llm.gemini.no_candidates",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", 0, common.NewAppError("LLM_EMPTY", "no candidates in gemini response", nil)
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())

	tokens := gr.UsageMetadata.TotalTokenCount
	if tokens == 0 {
		tokens = estimated
	}
	if c.usage != nil {
		if err := c.usage.RecordUsage(ctx, tokens); err != nil {
			c.log.Warn("llm.gemini.usage_record_error", "req_id", rid, "error", err)
		}
	}

	c.log.Info("llm.gemini.ok",
		"req_id", rid,
		"finish_reason", gr.Candidates[0].FinishReason,
		"tokens", tokens,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, tokens, nil
}

// pace blocks until CallDelay has passed since the previous call. The
// reservation is taken under the lock so concurrent callers queue behind each
// other instead of all reserving the same slot.
func (c *Client) pace(ctx context.Context) error {
	if c.cfg.CallDelay <= 0 {
		return nil
	}
	c.mu.Lock()
	now := time.Now()
	wait := c.cfg.CallDelay - now.Sub(c.lastCall)
	if wait <= 0 {
		c.lastCall = now
		c.mu.Unlock()
		return nil
	}
	c.lastCall = now.Add(wait)
	c.mu.Unlock()

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) post(ctx context.Context, rid, url string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("llm.gemini.body_close_error", "req_id", rid, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gemini status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
