package chunker

import (
	"errors"
	"strconv"
	"strings"

	"pdfchat/internal/domain"
)

// Defaults used when the configuration leaves chunking unset.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

var _ domain.Chunker = (*TokenChunker)(nil)

// TokenChunker splits text into windows of at most chunkSize tokens, with
// consecutive windows sharing chunkOverlap tokens. A window prefers to end on a
// sentence boundary when one falls within its last quarter.
type TokenChunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewTokenChunker validates the window parameters.
func NewTokenChunker(chunkSize, chunkOverlap int) (*TokenChunker, error) {
	if chunkSize <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, errors.New("chunk overlap must be in [0, chunk size)")
	}
	return &TokenChunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Size returns the configured window size in tokens.
func (c *TokenChunker) Size() int { return c.chunkSize }

// Overlap returns the configured overlap in tokens.
func (c *TokenChunker) Overlap() int { return c.chunkOverlap }

func (c *TokenChunker) Chunk(unit domain.TextUnit) ([]domain.Chunk, error) {
	tokens := strings.Fields(unit.Content)
	if len(tokens) == 0 {
		return nil, nil
	}
	docID := unit.ID()
	var chunks []domain.Chunk
	start := 0
	for idx := 0; ; idx++ {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		} else {
			end = c.snapToSentence(tokens, start, end)
		}
		chunks = append(chunks, domain.Chunk{
			ID:         docID + ":" + strconv.Itoa(idx),
			DocumentID: docID,
			Source:     unit.Source,
			Text:       strings.Join(tokens[start:end], " "),
			Index:      idx,
		})
		if end == len(tokens) {
			break
		}
		next := end - c.chunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks, nil
}

// snapToSentence moves end back to just after a sentence-final token when one
// exists in the last quarter of the window and the window still exceeds the
// overlap.
func (c *TokenChunker) snapToSentence(tokens []string, start, end int) int {
	floor := end - c.chunkSize/4
	if lo := start + c.chunkOverlap + 1; floor < lo {
		floor = lo
	}
	for i := end - 1; i >= floor; i-- {
		if endsSentence(tokens[i]) {
			return i + 1
		}
	}
	return end
}

func endsSentence(tok string) bool {
	tok = strings.TrimRight(tok, `"')]`)
	if tok == "" {
		return false
	}
	switch tok[len(tok)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
