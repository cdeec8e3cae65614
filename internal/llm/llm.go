// Package llm selects the configured chat-completion backend.
package llm

import (
	"context"
	"fmt"
	"time"

	"pdfchat/internal/config"
	"pdfchat/internal/domain"
	"pdfchat/internal/llm/gemini"
	"pdfchat/internal/llm/openai"
)

// New creates the Completer named by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (domain.Completer, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	switch cfg.Provider {
	case openai.Name, "":
		c, err := openai.NewClient(openai.Config{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			Temperature: cfg.SamplingTemperature(),
			Timeout:     timeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case gemini.Name:
		c, err := gemini.NewClient(ctx, gemini.Config{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			Temperature: cfg.SamplingTemperature(),
			Timeout:     timeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
