package mock

import (
	"context"

	"pdfchat/internal/domain"
)

var _ domain.Embedder = (*Embedder)(nil)

// Embedder is a mock implementation of domain.Embedder.
type Embedder struct {
	NameValue string
	Dim       int
	PrepareFn func(corpus []string) error
	EmbedFn   func(ctx context.Context, text string) ([]float64, error)
}

func (e *Embedder) Name() string {
	if e.NameValue == "" {
		return "mock"
	}
	return e.NameValue
}

func (e *Embedder) Prepare(corpus []string) error {
	if e.PrepareFn == nil {
		return nil
	}
	return e.PrepareFn(corpus)
}

func (e *Embedder) Dimension() int { return e.Dim }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return e.EmbedFn(ctx, text)
}
