package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"swarmcap/internal/logging"
)

// OpenAIClient talks to the OpenAI chat completions API or any compatible gateway.
type OpenAIClient struct {
	client     *openai.Client
	httpClient *http.Client
	model      string
}

// NewOpenAIClient creates a client. An empty baseURL keeps the library
// default; timeout bounds each HTTP request (0 = none).
func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	conf := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		conf.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.GPT4o
	}
	httpClient := &http.Client{Timeout: timeout}
	conf.HTTPClient = httpClient
	return &OpenAIClient{
		client:     openai.NewClientWithConfig(conf),
		httpClient: httpClient,
		model:      model,
	}, nil
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	temperature := float32(req.Temperature)
	if temperature == 0 {
		// Zero is dropped by omitempty and the server would apply its default.
		temperature = math.SmallestNonzeroFloat32
	}

	logging.APIDebug("openai request: model=%s temperature=%.2f prompt_len=%d", model, req.Temperature, len(req.Prompt))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty response")
	}

	logging.APIDebug("openai response: finish=%s tokens=%d", resp.Choices[0].FinishReason, resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && retryableStatus(apiErr.HTTPStatusCode) {
		return &TransientError{Provider: "openai", Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && retryableStatus(reqErr.HTTPStatusCode) {
		return &TransientError{Provider: "openai", Err: err}
	}
	if isNetworkError(err) {
		return &TransientError{Provider: "openai", Err: err}
	}
	return fmt.Errorf("openai: %w", err)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
