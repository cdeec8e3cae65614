package domain

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// TextUnit is the normalized text of one source file, tagged with its path.
// One unit is produced per file; splitting happens downstream in the Chunker.
type TextUnit struct {
	Content string
	Source  string
}

// ID derives a stable identifier from the unit's source path.
func (u TextUnit) ID() string {
	return HashString(u.Source)
}

// Chunk is a window of a text unit used for embedding and retrieval.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string
	Text       string
	Index      int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation transcript.
type Message struct {
	Role    Role
	Content string
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// StatefulEmbedder is an Embedder whose prepared state must travel with a
// persisted index so that queries embed the same way after a reload.
type StatefulEmbedder interface {
	Embedder
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}

// Chunker splits text units into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(unit TextUnit) ([]Chunk, error)
}

// VectorStore holds vectors and supports similarity search.
type VectorStore interface {
	Init(dimension int) error
	Upsert(chunks []Chunk, vectors [][]float64) error
	Search(vector []float64, topK int) ([]SearchResult, error)
	Clear() error
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Completer is a hosted chat-completion model.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// Retriever returns the chunks most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]SearchResult, error)
}

// HashString returns a short hex digest of s.
func HashString(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}
