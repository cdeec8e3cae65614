// Package service owns the lifecycle of the document index: load it from
// disk when persisted, otherwise build it from the source documents and
// persist it, and remember the result until explicitly invalidated.
package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pdfchat/internal/domain"
	"pdfchat/internal/index"
	"pdfchat/internal/loader"
	"pdfchat/internal/logging"
)

// DocumentLoader reads the source directory into text units.
type DocumentLoader interface {
	Load(ctx context.Context, dir string) (loader.Result, error)
}

// IndexEngine builds, persists and reloads indexes.
type IndexEngine interface {
	Build(ctx context.Context, units []domain.TextUnit) (*index.Index, error)
	Persist(ix *index.Index, dir string) error
	Load(ctx context.Context, dir string) (*index.Index, error)
}

// State is the lifecycle state of an IndexManager.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateInvalidated
	StateRebuilding
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateInvalidated:
		return "invalidated"
	case StateRebuilding:
		return "rebuilding"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Origin tells how a ready index was obtained.
type Origin string

const (
	OriginLoaded Origin = "loaded"
	OriginBuilt  Origin = "built"
)

// Outcome is a ready index and how it came to be.
type Outcome struct {
	Index  *index.Index
	Origin Origin
	// Report is the loader result when the index was built.
	Report loader.Result
	// PersistErr wraps domain.ErrPersistence when a built index could not be
	// saved. The index is still usable.
	PersistErr error
	// ClearErr is set by Rebuild when the old index could not be fully
	// removed before the rebuild.
	ClearErr error
	Elapsed  time.Duration
}

// Status is a point-in-time view of the manager.
type Status struct {
	State   State
	Outcome *Outcome
	Err     error
}

// IndexManager memoizes one index per persisted location. Concurrent callers
// share a single load or build.
type IndexManager struct {
	dataDir  string
	indexDir string
	loader   DocumentLoader
	engine   IndexEngine
	logger   *slog.Logger

	runMu      sync.Mutex
	forceBuild bool

	mu      sync.Mutex
	state   State
	outcome *Outcome
	err     error
}

// NewIndexManager creates a manager reading sources from dataDir and
// persisting to indexDir.
func NewIndexManager(dataDir, indexDir string, l DocumentLoader, e IndexEngine, logger *slog.Logger) *IndexManager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &IndexManager{
		dataDir:  dataDir,
		indexDir: indexDir,
		loader:   l,
		engine:   e,
		logger:   logger.With("component", "index_manager"),
	}
}

// DataDir returns the source directory.
func (m *IndexManager) DataDir() string { return m.dataDir }

// IndexDir returns the persisted index directory.
func (m *IndexManager) IndexDir() string { return m.indexDir }

// State returns the current lifecycle state without waiting for a running
// load or build.
func (m *IndexManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns the current state with the memoized outcome or error.
func (m *IndexManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, Outcome: m.outcome, Err: m.err}
}

// Index returns the memoized index, loading or building it on first use.
// A failure is memoized as well; call Clear to try again. Cancellation of
// ctx is not memoized.
func (m *IndexManager) Index(ctx context.Context) (*Outcome, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.mu.Lock()
	prev := m.state
	switch prev {
	case StateReady:
		out := m.outcome
		m.mu.Unlock()
		return out, nil
	case StateFailed:
		err := m.err
		m.mu.Unlock()
		return nil, err
	}
	m.state = StateRebuilding
	m.mu.Unlock()

	start := time.Now()
	out, err := m.run(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			m.state = prev
			return nil, err
		}
		m.state, m.outcome, m.err = StateFailed, nil, err
		m.logger.Error("index unavailable", "err", err)
		return nil, err
	}
	out.Elapsed = time.Since(start)
	m.state, m.outcome, m.err = StateReady, out, nil
	return out, nil
}

// Retriever returns the current index for querying. Errors wrap
// domain.ErrIndexUnavailable.
func (m *IndexManager) Retriever(ctx context.Context) (domain.Retriever, error) {
	out, err := m.Index(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return out.Index, nil
}

func (m *IndexManager) run(ctx context.Context) (*Outcome, error) {
	if !m.forceBuild && index.Exists(m.indexDir) {
		m.logger.Info("loading saved index", "dir", m.indexDir)
		ix, err := m.engine.Load(ctx, m.indexDir)
		if err != nil {
			return nil, fmt.Errorf("%w: load saved index: %w", domain.ErrLifecycle, err)
		}
		m.logger.Info("loaded existing index", "documents", len(ix.Documents()), "chunks", ix.NumChunks())
		return &Outcome{Index: ix, Origin: OriginLoaded}, nil
	}
	m.forceBuild = false

	m.logger.Info("creating new index from documents", "dir", m.dataDir)
	res, err := m.loader.Load(ctx, m.dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLifecycle, err)
	}
	m.logger.Info("creating index", "documents", len(res.Units))
	ix, err := m.engine.Build(ctx, res.Units)
	if err != nil {
		return nil, fmt.Errorf("%w: build index: %w", domain.ErrLifecycle, err)
	}
	out := &Outcome{Index: ix, Origin: OriginBuilt, Report: res}
	if err := m.engine.Persist(ix, m.indexDir); err != nil {
		out.PersistErr = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		m.logger.Error("error saving index", "dir", m.indexDir, "err", err)
		return out, nil
	}
	m.logger.Info("created and saved new index", "dir", m.indexDir, "chunks", ix.NumChunks())
	return out, nil
}

// Clear deletes the persisted index and drops the memoized result. The next
// Index call builds from the source documents regardless of what remains on
// disk. Errors are returned for reporting only.
func (m *IndexManager) Clear() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	var errs []error
	marker := filepath.Join(m.indexDir, index.DocStoreFile)
	if err := os.Remove(marker); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("remove index marker: %w", err))
	}
	if err := os.RemoveAll(m.indexDir); err != nil {
		errs = append(errs, fmt.Errorf("remove index dir: %w", err))
	}
	m.forceBuild = true

	m.mu.Lock()
	m.state, m.outcome, m.err = StateInvalidated, nil, nil
	m.mu.Unlock()

	if err := errors.Join(errs...); err != nil {
		m.logger.Error("error clearing index", "dir", m.indexDir, "err", err)
		return err
	}
	m.logger.Info("index cleared", "dir", m.indexDir)
	return nil
}

// Rebuild clears the index and builds a new one. A failure to clear does not
// stop the rebuild; it is reported in Outcome.ClearErr, or joined with the
// rebuild error when the rebuild fails too.
func (m *IndexManager) Rebuild(ctx context.Context) (*Outcome, error) {
	clearErr := m.Clear()
	out, err := m.Index(ctx)
	if err != nil {
		return nil, errors.Join(clearErr, err)
	}
	if clearErr == nil {
		return out, nil
	}
	withClear := *out
	withClear.ClearErr = clearErr
	return &withClear, nil
}
