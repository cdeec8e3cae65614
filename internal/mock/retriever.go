package mock

import (
	"context"

	"pdfchat/internal/domain"
)

var _ domain.Retriever = (*Retriever)(nil)

// Retriever is a mock implementation of domain.Retriever.
type Retriever struct {
	RetrieveFn func(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
}

func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	return r.RetrieveFn(ctx, query, topK)
}
