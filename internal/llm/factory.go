package llm

import (
	"context"
	"fmt"

	"swarmcap/internal/config"
)

// NewClient creates the configured backend wrapped in a RetryClient. HTTP
// backends get llm.timeout as their per-request timeout.
func NewClient(ctx context.Context, cfg *config.Config) (Client, error) {
	var inner Client
	switch cfg.LLM.Provider {
	case "openai", "":
		c, err := NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.GetLLMTimeout())
		if err != nil {
			return nil, err
		}
		inner = c
	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.GetLLMTimeout())
		if err != nil {
			return nil, err
		}
		inner = c
	case "scripted":
		inner = NewScriptedClient(cfg.LLM.ScriptedReplies...)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.LLM.Provider)
	}
	return NewRetryClient(inner, WithBackoff(cfg.GetRetryBackoff())), nil
}
