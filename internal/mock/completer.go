package mock

import (
	"context"

	"pdfchat/internal/domain"
)

var _ domain.Completer = (*Completer)(nil)

// Completer is a mock implementation of domain.Completer.
type Completer struct {
	NameFn     func() string
	CompleteFn func(ctx context.Context, system string, messages []domain.Message) (string, error)
}

func (c *Completer) Name() string {
	if c.NameFn == nil {
		return "mock"
	}
	return c.NameFn()
}

func (c *Completer) Complete(ctx context.Context, system string, messages []domain.Message) (string, error) {
	return c.CompleteFn(ctx, system, messages)
}
