// Package embedding selects the configured text embedder.
package embedding

import (
	"fmt"
	"time"

	"pdfchat/internal/config"
	"pdfchat/internal/domain"
	"pdfchat/internal/embedding/openai"
	"pdfchat/internal/embedding/tfidf"
)

// Factory creates a fresh, unprepared embedder.
type Factory func() (domain.Embedder, error)

// NewFactory returns a Factory for cfg.Type.
func NewFactory(cfg config.EmbedderConfig) (Factory, error) {
	switch cfg.Type {
	case tfidf.Name, "":
		return func() (domain.Embedder, error) { return tfidf.NewEmbedder(), nil }, nil
	case openai.Name:
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		oc := openai.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKeyEnv:         cfg.OpenAI.APIKeyEnv,
			Model:             cfg.OpenAI.Model,
			Timeout:           time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
		}
		return func() (domain.Embedder, error) {
			c, err := openai.NewClient(oc)
			if err != nil {
				return nil, err
			}
			return c, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}
