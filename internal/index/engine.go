package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"pdfchat/internal/chunker"
	"pdfchat/internal/domain"
	"pdfchat/internal/embedding"
	"pdfchat/internal/logging"
	"pdfchat/internal/vectorstore/memory"
)

// Engine turns text units into an Index and moves indexes to and from disk.
type Engine struct {
	newEmbedder  embedding.Factory
	chunker      *chunker.TokenChunker
	summarizer   domain.Summarizer
	maxSentences int
	concurrency  int
	logger       *slog.Logger

	// OnEmbed, when set, is called after each chunk is embedded.
	OnEmbed func(done, total int)

	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSummarizer computes a corpus summary of at most maxSentences at build time.
func WithSummarizer(s domain.Summarizer, maxSentences int) Option {
	return func(e *Engine) {
		e.summarizer = s
		e.maxSentences = maxSentences
	}
}

// WithConcurrency bounds the number of chunks embedded in parallel.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = n }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine that embeds with embedders from factory and
// splits units with c.
func NewEngine(factory embedding.Factory, c *chunker.TokenChunker, opts ...Option) *Engine {
	e := &Engine{
		newEmbedder: factory,
		chunker:     c,
		concurrency: 4,
		logger:      logging.Discard(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	e.logger = e.logger.With("component", "index")
	return e
}

// Build chunks and embeds units into a fresh in-memory index.
func (e *Engine) Build(ctx context.Context, units []domain.TextUnit) (*Index, error) {
	var (
		chunks []domain.Chunk
		docs   []Document
		texts  []string
	)
	for _, u := range units {
		cs, err := e.chunker.Chunk(u)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", u.Source, err)
		}
		docs = append(docs, Document{ID: u.ID(), Source: u.Source, Chars: len(u.Content), Chunks: len(cs)})
		chunks = append(chunks, cs...)
		texts = append(texts, u.Content)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("documents contain no extractable text: %w", domain.ErrNoDocumentsFound)
	}

	emb, err := e.newEmbedder()
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	corpus := make([]string, len(chunks))
	for i, ch := range chunks {
		corpus[i] = ch.Text
	}
	if err := emb.Prepare(corpus); err != nil {
		return nil, fmt.Errorf("prepare embedder: %w", err)
	}

	e.logger.Info("embedding chunks", "documents", len(docs), "chunks", len(chunks), "embedder", emb.Name())
	start := time.Now()
	vectors := make([][]float64, len(chunks))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range chunks {
		g.Go(func() error {
			vec, err := emb.Embed(gctx, chunks[i].Text)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunks[i].ID, err)
			}
			vectors[i] = vec
			n := done.Add(1)
			if e.OnEmbed != nil {
				e.OnEmbed(int(n), len(chunks))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.logger.Info("embedded chunks", "chunks", len(chunks), "elapsed", time.Since(start).Round(time.Millisecond))

	store := memory.NewStorage()
	if err := store.Init(len(vectors[0])); err != nil {
		return nil, err
	}
	if err := store.Upsert(chunks, vectors); err != nil {
		return nil, err
	}

	var summary string
	if e.summarizer != nil {
		summary, err = e.summarizer.Summarize(strings.Join(texts, "\n\n"), e.maxSentences)
		if err != nil {
			e.logger.Warn("summarize corpus", "error", err)
			summary = ""
		}
	}

	return &Index{
		embedder: emb,
		store:    store,
		chunks:   chunks,
		docs:     docs,
		settings: Settings{ChunkSize: e.chunker.Size(), ChunkOverlap: e.chunker.Overlap()},
		summary:  summary,
		builtAt:  e.now().UTC(),
	}, nil
}
