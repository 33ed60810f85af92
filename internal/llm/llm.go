package llm

import (
	"context"
	"time"

	"github.com/rakhadavedra/sow-analysis/internal"
)

// ClientAPI is what the analysis pipeline depends on: one prompt plus the
// document text in, the model's raw completion out.
type ClientAPI interface {
	Complete(ctx context.Context, systemPrompt, userContent string) (string, error)
}

type Config struct {
	BaseURL          string
	APIKey           string
	Model            string
	RequestTimeout   time.Duration
	MaxRetries       int
	RetryBackoffBase time.Duration
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

var (
	ErrNotConfigured = &internal.AppError{
		Type:       internal.ErrorTypeInternal,
		Code:       internal.ErrCodeLLMConfiguration,
		Message:    "model endpoint is not configured",
		StatusCode: 500,
	}
	ErrRateLimited   = internal.NewExternalError("model is rate limiting requests", internal.ErrCodeLLMRateLimited, nil)
	ErrInvalidOutput = internal.NewExternalError("model returned output in an unexpected format", internal.ErrCodeLLMInvalidFormat, nil)
)
