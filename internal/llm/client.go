package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rakhadavedra/sow-analysis/internal"
)

// Client talks to an OpenAI-compatible chat completions endpoint. Rate limit
// responses are retried with exponential backoff; everything else fails fast
// so the pipeline can mark the single prompt as failed and move on.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxRetries  int
	backoffBase time.Duration
	httpClient  *http.Client
	logger      *slog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(config Config, logger *slog.Logger) *Client {
	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	backoffBase := config.RetryBackoffBase
	if backoffBase <= 0 {
		backoffBase = 15 * time.Second
	}

	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		baseURL:     config.BaseURL,
		apiKey:      config.APIKey,
		model:       config.Model,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
		sleep:       sleepCtx,
	}
}

func (c *Client) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	if c.baseURL == "" || c.model == "" {
		return "", ErrNotConfigured
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: 0,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// 15s, 30s, 60s with the default base.
			backoff := c.backoffBase * (1 << (attempt - 1))
			c.logger.Warn("model rate limited, backing off",
				"attempt", attempt,
				"backoff", backoff.String())
			if err := c.sleep(ctx, backoff); err != nil {
				return "", internal.NewExternalError("model request timed out", internal.ErrCodeLLMTimeout, err)
			}
		}

		content, retryable, err := c.doRequest(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}

	c.logger.Error("model retries exhausted", "retries", c.maxRetries)
	return "", lastErr
}

func (c *Client) doRequest(ctx context.Context, body []byte) (content string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", false, internal.NewExternalError("model request timed out", internal.ErrCodeLLMTimeout, err)
		}
		return "", false, internal.NewExternalError("model endpoint is unavailable", internal.ErrCodeLLMUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, internal.NewExternalError("model endpoint is unavailable", internal.ErrCodeLLMUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", false, ErrNotConfigured
	case resp.StatusCode >= 500:
		return "", false, internal.NewExternalError("model endpoint is unavailable", internal.ErrCodeLLMUnavailable, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return "", false, internal.NewExternalError("model endpoint is unavailable", internal.ErrCodeLLMUnavailable, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 200)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", false, internal.NewExternalError("model returned output in an unexpected format", internal.ErrCodeLLMInvalidFormat, err)
	}
	if parsed.Error != nil {
		return "", false, internal.NewExternalError("model endpoint is unavailable", internal.ErrCodeLLMUnavailable, fmt.Errorf("%s: %s", parsed.Error.Type, parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", false, internal.NewExternalError("model returned output in an unexpected format", internal.ErrCodeLLMInvalidFormat, fmt.Errorf("empty choices"))
	}

	return parsed.Choices[0].Message.Content, false, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
