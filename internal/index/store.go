package index

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pdfchat/internal/domain"
	"pdfchat/internal/vectorstore/memory"
)

// Files that make up a persisted index. DocStoreFile is written last and
// marks the directory as holding a complete index.
const (
	DocStoreFile    = "docstore.json"
	VectorStoreFile = "vector_store.gob"
	IndexStoreFile  = "index_store.json"
)

const formatVersion = 1

type docStore struct {
	Version   int           `json:"version"`
	Documents []Document    `json:"documents"`
	Chunks    []storedChunk `json:"chunks"`
}

type storedChunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Text       string `json:"text"`
	Index      int    `json:"index"`
}

type vectorStore struct {
	Dimension int
	Vectors   [][]float64
}

type indexStore struct {
	Version       int       `json:"version"`
	Embedder      string    `json:"embedder"`
	EmbedderState []byte    `json:"embedder_state,omitempty"`
	Dimension     int       `json:"dimension"`
	Settings      Settings  `json:"settings"`
	Summary       string    `json:"summary,omitempty"`
	BuiltAt       time.Time `json:"built_at"`
}

// Exists reports whether dir holds a persisted index.
func Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, DocStoreFile))
	return err == nil && info.Mode().IsRegular()
}

// Persist writes ix to dir, creating it if needed.
func (e *Engine) Persist(ix *Index, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	chunks, vectors := ix.store.Entries()

	meta := indexStore{
		Version:   formatVersion,
		Embedder:  ix.embedder.Name(),
		Dimension: ix.store.Dimension(),
		Settings:  ix.settings,
		Summary:   ix.summary,
		BuiltAt:   ix.builtAt,
	}
	if se, ok := ix.embedder.(domain.StatefulEmbedder); ok {
		state, err := se.MarshalState()
		if err != nil {
			return fmt.Errorf("marshal embedder state: %w", err)
		}
		meta.EmbedderState = state
	}

	ds := docStore{Version: formatVersion, Documents: ix.docs, Chunks: make([]storedChunk, len(chunks))}
	for i, ch := range chunks {
		ds.Chunks[i] = storedChunk(ch)
	}

	if err := writeAtomic(filepath.Join(dir, VectorStoreFile), func(f *os.File) error {
		return gob.NewEncoder(f).Encode(vectorStore{Dimension: meta.Dimension, Vectors: vectors})
	}); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, IndexStoreFile), meta); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, DocStoreFile), ds); err != nil {
		return err
	}
	e.logger.Info("persisted index", "dir", dir, "chunks", len(chunks))
	return nil
}

// Load reads the index persisted in dir. The configured embedder must match
// the one the index was built with.
func (e *Engine) Load(ctx context.Context, dir string) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ds docStore
	if err := readJSON(filepath.Join(dir, DocStoreFile), &ds); err != nil {
		return nil, err
	}
	var meta indexStore
	if err := readJSON(filepath.Join(dir, IndexStoreFile), &meta); err != nil {
		return nil, err
	}
	if ds.Version != formatVersion || meta.Version != formatVersion {
		return nil, fmt.Errorf("unsupported index format version %d/%d", ds.Version, meta.Version)
	}
	vs, err := readVectors(filepath.Join(dir, VectorStoreFile))
	if err != nil {
		return nil, err
	}
	if len(vs.Vectors) != len(ds.Chunks) {
		return nil, fmt.Errorf("index is inconsistent: %d chunks, %d vectors", len(ds.Chunks), len(vs.Vectors))
	}
	if len(ds.Chunks) == 0 {
		return nil, errors.New("index is empty")
	}

	emb, err := e.newEmbedder()
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	if emb.Name() != meta.Embedder {
		return nil, fmt.Errorf("index was built with embedder %q, configured embedder is %q", meta.Embedder, emb.Name())
	}
	if se, ok := emb.(domain.StatefulEmbedder); ok {
		if err := se.UnmarshalState(meta.EmbedderState); err != nil {
			return nil, fmt.Errorf("restore embedder state: %w", err)
		}
	}

	chunks := make([]domain.Chunk, len(ds.Chunks))
	for i, sc := range ds.Chunks {
		chunks[i] = domain.Chunk(sc)
	}
	store := memory.NewStorage()
	if err := store.Init(vs.Dimension); err != nil {
		return nil, err
	}
	if err := store.Upsert(chunks, vs.Vectors); err != nil {
		return nil, err
	}
	e.logger.Info("loaded index", "dir", dir, "documents", len(ds.Documents), "chunks", len(chunks))
	return &Index{
		embedder: emb,
		store:    store,
		chunks:   chunks,
		docs:     ds.Documents,
		settings: meta.Settings,
		summary:  meta.Summary,
		builtAt:  meta.BuiltAt,
	}, nil
}

func writeJSON(path string, v any) error {
	return writeAtomic(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// writeAtomic writes to path+".tmp" and renames it into place.
func writeAtomic(path string, write func(*os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readVectors(path string) (vectorStore, error) {
	var vs vectorStore
	f, err := os.Open(path)
	if err != nil {
		return vs, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(&vs); err != nil {
		return vs, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return vs, nil
}
