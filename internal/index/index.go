// Package index builds, queries, persists and reloads the vector index over
// the loaded documents.
package index

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"pdfchat/internal/domain"
	"pdfchat/internal/vectorstore/memory"
)

// Settings is the chunking policy an index was built with.
type Settings struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

// Document describes one indexed text unit.
type Document struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Chars  int    `json:"chars"`
	Chunks int    `json:"chunks"`
}

// Index is a queryable vector index. It is immutable after Build or Load.
type Index struct {
	embedder domain.Embedder
	store    *memory.Storage
	chunks   []domain.Chunk
	docs     []Document
	settings Settings
	summary  string
	builtAt  time.Time
}

var _ domain.Retriever = (*Index)(nil)

// Retrieve embeds query and returns the topK most similar chunks. When the
// query shares no vocabulary with the corpus it falls back to lexical overlap.
func (ix *Index) Retrieve(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if isZero(vec) {
		return ix.lexicalSearch(query, topK), nil
	}
	res, err := ix.store.Search(vec, topK)
	if err != nil {
		return nil, err
	}
	for _, r := range res {
		if r.Score > 1e-9 {
			return res, nil
		}
	}
	return ix.lexicalSearch(query, topK), nil
}

// Documents lists the indexed documents in load order.
func (ix *Index) Documents() []Document { return append([]Document(nil), ix.docs...) }

// NumChunks returns the number of indexed chunks.
func (ix *Index) NumChunks() int { return len(ix.chunks) }

// Summary returns the corpus summary computed at build time, if any.
func (ix *Index) Summary() string { return ix.summary }

// Settings returns the chunking policy the index was built with.
func (ix *Index) Settings() Settings { return ix.settings }

// EmbedderName names the embedder whose vectors the index holds.
func (ix *Index) EmbedderName() string { return ix.embedder.Name() }

// BuiltAt returns when the index was originally built.
func (ix *Index) BuiltAt() time.Time { return ix.builtAt }

var unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

func (ix *Index) lexicalSearch(query string, topK int) []domain.SearchResult {
	qset := toTokenSet(query)
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(ix.chunks))
	for i, ch := range ix.chunks {
		scores[i] = pair{i, overlapOchiai(qset, ch.Text)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK <= 0 {
		topK = 5
	}
	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]domain.SearchResult, 0, topK)
	for _, p := range scores[:topK] {
		out = append(out, domain.SearchResult{Chunk: ix.chunks[p.idx], Score: p.score})
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlapOchiai scores |A∩B| / sqrt(|A||B|) over distinct tokens.
func overlapOchiai(qset map[string]struct{}, text string) float64 {
	seen := toTokenSet(text)
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	inter := 0
	for t := range seen {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}

func isZero(vec []float64) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
