package main_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"pdfchat/internal/chat"
	"pdfchat/internal/chunker"
	"pdfchat/internal/domain"
	"pdfchat/internal/embedding/tfidf"
	"pdfchat/internal/index"
	"pdfchat/internal/service"
)

type fakeIndexes struct {
	IndexFn   func(ctx context.Context) (*service.Outcome, error)
	RebuildFn func(ctx context.Context) (*service.Outcome, error)
	ClearFn   func() error
	dataDir   string
	indexDir  string
}

func (f *fakeIndexes) Index(ctx context.Context) (*service.Outcome, error)   { return f.IndexFn(ctx) }
func (f *fakeIndexes) Rebuild(ctx context.Context) (*service.Outcome, error) { return f.RebuildFn(ctx) }
func (f *fakeIndexes) Clear() error                                          { return f.ClearFn() }
func (f *fakeIndexes) Status() service.Status                                { return service.Status{} }
func (f *fakeIndexes) DataDir() string                                       { return f.dataDir }
func (f *fakeIndexes) IndexDir() string                                      { return f.indexDir }

type fakeSession struct {
	SubmitFn func(ctx context.Context, text string) (*chat.Answer, error)
}

func (s *fakeSession) Submit(ctx context.Context, text string) (*chat.Answer, error) {
	return s.SubmitFn(ctx, text)
}

func (s *fakeSession) Transcript() []domain.Message { return nil }

func buildIndex(t *testing.T) *index.Index {
	t.Helper()
	c, err := chunker.NewTokenChunker(chunker.DefaultChunkSize, chunker.DefaultChunkOverlap)
	require.NoError(t, err)
	eng := index.NewEngine(func() (domain.Embedder, error) { return tfidf.NewEmbedder(), nil }, c)
	ix, err := eng.Build(context.Background(), []domain.TextUnit{
		{Source: "Data/warranty.pdf", Content: "The warranty covers hardware defects for two years."},
		{Source: "Data/shipping.pdf", Content: "Shipping takes five business days."},
	})
	require.NoError(t, err)
	return ix
}
