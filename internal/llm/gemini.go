package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"swarmcap/internal/logging"
)

// GeminiClient talks to the Gemini API.
type GeminiClient struct {
	client     *genai.Client
	httpClient *http.Client
	model      string
}

// NewGeminiClient creates a Gemini client. timeout bounds each HTTP request
// (0 = none).
func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	httpClient := &http.Client{Timeout: timeout}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, httpClient: httpClient, model: model}, nil
}

// Complete implements Client.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	logging.APIDebug("gemini request: model=%s temperature=%.2f prompt_len=%d", model, req.Temperature, len(req.Prompt))

	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	})
	if err != nil {
		return "", classifyGeminiError(err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}

func classifyGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && geminiRetryable(apiErr.Code) {
		return &TransientError{Provider: "gemini", Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && geminiRetryable(apiErrPtr.Code) {
		return &TransientError{Provider: "gemini", Err: err}
	}
	if isNetworkError(err) {
		return &TransientError{Provider: "gemini", Err: err}
	}
	return fmt.Errorf("gemini: %w", err)
}

func geminiRetryable(code int) bool {
	switch code {
	case 429, 500, 503:
		return true
	}
	return false
}
