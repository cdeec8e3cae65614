package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/chunker"
	"pdfchat/internal/domain"
	"pdfchat/internal/embedding/tfidf"
	"pdfchat/internal/index"
	"pdfchat/internal/loader"
	"pdfchat/internal/service"
)

// textExtractor treats each file's bytes as its extracted text.
type textExtractor struct{}

func (textExtractor) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

// countingLoader counts Load calls.
type countingLoader struct {
	inner *loader.Loader
	calls atomic.Int32
}

func (l *countingLoader) Load(ctx context.Context, dir string) (loader.Result, error) {
	l.calls.Add(1)
	return l.inner.Load(ctx, dir)
}

// countingEngine counts builds and loads and can fail persistence.
type countingEngine struct {
	inner     *index.Engine
	builds    atomic.Int32
	loads     atomic.Int32
	PersistFn func(ix *index.Index, dir string) error
}

func (e *countingEngine) Build(ctx context.Context, units []domain.TextUnit) (*index.Index, error) {
	e.builds.Add(1)
	return e.inner.Build(ctx, units)
}

func (e *countingEngine) Persist(ix *index.Index, dir string) error {
	if e.PersistFn != nil {
		return e.PersistFn(ix, dir)
	}
	return e.inner.Persist(ix, dir)
}

func (e *countingEngine) Load(ctx context.Context, dir string) (*index.Index, error) {
	e.loads.Add(1)
	return e.inner.Load(ctx, dir)
}

type fixture struct {
	dataDir  string
	indexDir string
	loader   *countingLoader
	engine   *countingEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{dataDir: filepath.Join(root, "Data"), indexDir: filepath.Join(root, "saved_index")}
	require.NoError(t, os.Mkdir(f.dataDir, 0o755))
	f.writeDoc(t, "warranty.pdf", "The warranty covers hardware defects for two years.")
	f.writeDoc(t, "shipping.pdf", "Shipping takes five business days.")
	f.loader = &countingLoader{inner: loader.New(textExtractor{}, nil)}
	f.engine = newCountingEngine(t)
	return f
}

func newCountingEngine(t *testing.T) *countingEngine {
	t.Helper()
	c, err := chunker.NewTokenChunker(chunker.DefaultChunkSize, chunker.DefaultChunkOverlap)
	require.NoError(t, err)
	factory := func() (domain.Embedder, error) { return tfidf.NewEmbedder(), nil }
	return &countingEngine{inner: index.NewEngine(factory, c)}
}

func (f *fixture) writeDoc(t *testing.T, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dataDir, name), []byte(text), 0o644))
}

func (f *fixture) manager() *service.IndexManager {
	return service.NewIndexManager(f.dataDir, f.indexDir, f.loader, f.engine, nil)
}

func TestIndexManager_BuildsPersistsAndMemoizes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	m := f.manager()
	assert.Equal(t, service.StateUninitialized, m.State())

	out, err := m.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.OriginBuilt, out.Origin)
	assert.NoError(t, out.PersistErr)
	assert.Len(t, out.Report.Units, 2)
	assert.Equal(t, service.StateReady, m.State())
	assert.True(t, index.Exists(f.indexDir))

	again, err := m.Index(context.Background())
	require.NoError(t, err)
	assert.Same(t, out, again)
	assert.Equal(t, int32(1), f.engine.builds.Load())
	assert.Equal(t, int32(0), f.engine.loads.Load())
	assert.Equal(t, int32(1), f.loader.calls.Load())
}

func TestIndexManager_LoadsPersistedWithoutSources(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	built, err := f.manager().Index(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(f.dataDir))

	m := f.manager()
	out, err := m.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.OriginLoaded, out.Origin)
	assert.Equal(t, built.Index.Documents(), out.Index.Documents())
	assert.Equal(t, int32(1), f.engine.loads.Load())
	assert.Equal(t, int32(1), f.loader.calls.Load())

	res, err := out.Index.Retrieve(context.Background(), "hardware warranty", 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dataDir, "warranty.pdf"), res[0].Chunk.Source)
}

func TestIndexManager_MissingSourceDirectory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.dataDir))
	m := f.manager()

	_, err := m.Index(context.Background())
	require.ErrorIs(t, err, domain.ErrMissingSourceDirectory)
	require.ErrorIs(t, err, domain.ErrLifecycle)
	assert.Equal(t, service.StateFailed, m.State())
	assert.False(t, index.Exists(f.indexDir))

	// The failure is memoized until Clear.
	_, err = m.Index(context.Background())
	require.ErrorIs(t, err, domain.ErrMissingSourceDirectory)
	assert.Equal(t, int32(1), f.loader.calls.Load())
	assert.Equal(t, int32(0), f.engine.builds.Load())
}

func TestIndexManager_NoDocuments(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.dataDir, "warranty.pdf")))
	require.NoError(t, os.Remove(filepath.Join(f.dataDir, "shipping.pdf")))
	f.writeDoc(t, "notes.txt", "not a pdf")
	m := f.manager()

	out, err := m.Index(context.Background())
	require.ErrorIs(t, err, domain.ErrNoDocumentsFound)
	assert.Nil(t, out)
	assert.Equal(t, service.StateFailed, m.State())
	assert.Equal(t, int32(0), f.engine.builds.Load())

	st := m.Status()
	assert.Equal(t, service.StateFailed, st.State)
	assert.ErrorIs(t, st.Err, domain.ErrNoDocumentsFound)
	assert.Nil(t, st.Outcome)
}

func TestIndexManager_PersistFailureStillReady(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.engine.PersistFn = func(*index.Index, string) error { return errors.New("disk full") }
	m := f.manager()

	out, err := m.Index(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out.Index)
	assert.ErrorIs(t, out.PersistErr, domain.ErrPersistence)
	assert.ErrorContains(t, out.PersistErr, "disk full")
	assert.Equal(t, service.StateReady, m.State())
	assert.False(t, index.Exists(f.indexDir))
}

func TestIndexManager_LoadFailureIsLifecycleError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.indexDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.indexDir, index.DocStoreFile), []byte("{"), 0o644))
	m := f.manager()

	out, err := m.Index(context.Background())
	require.ErrorIs(t, err, domain.ErrLifecycle)
	assert.Nil(t, out)
	assert.Equal(t, service.StateFailed, m.State())
	assert.Equal(t, int32(0), f.engine.builds.Load())
}

func TestIndexManager_ClearForcesBuild(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	m := f.manager()
	first, err := m.Index(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Clear())
	assert.Equal(t, service.StateInvalidated, m.State())
	assert.NoDirExists(t, f.indexDir)

	// A marker that reappears after Clear is ignored.
	require.NoError(t, os.MkdirAll(f.indexDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.indexDir, index.DocStoreFile), []byte("{"), 0o644))

	second, err := m.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.OriginBuilt, second.Origin)
	assert.NotSame(t, first.Index, second.Index)
	assert.Equal(t, int32(2), f.engine.builds.Load())
	assert.Equal(t, int32(0), f.engine.loads.Load())
	assert.True(t, index.Exists(f.indexDir))

	// Later managers load what the rebuild persisted.
	loaded, err := f.manager().Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.OriginLoaded, loaded.Origin)
}

func TestIndexManager_ClearWithoutIndex(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	m := f.manager()
	require.NoError(t, m.Clear())
	assert.Equal(t, service.StateInvalidated, m.State())
}

func TestIndexManager_ClearRecoversFromFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.dataDir))
	m := f.manager()
	_, err := m.Index(context.Background())
	require.Error(t, err)

	require.NoError(t, os.Mkdir(f.dataDir, 0o755))
	f.writeDoc(t, "manual.pdf", "Press the red button to start the machine.")

	out, err := m.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.OriginBuilt, out.Origin)
	assert.Equal(t, service.StateReady, m.State())
}

func TestIndexManager_RebuildReportsClearFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))
	f.indexDir = filepath.Join(blocker, "saved_index")
	m := f.manager()

	out, err := m.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.OriginBuilt, out.Origin)
	require.Error(t, out.ClearErr)
	assert.Contains(t, out.ClearErr.Error(), "remove index")
	assert.ErrorIs(t, out.PersistErr, domain.ErrPersistence)
	assert.Equal(t, service.StateReady, m.State())

	again, err := m.Index(context.Background())
	require.NoError(t, err)
	assert.NoError(t, again.ClearErr)
}

func TestIndexManager_RebuildJoinsClearAndBuildErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.dataDir))
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	f.indexDir = filepath.Join(blocker, "saved_index")
	m := f.manager()

	out, err := m.Rebuild(context.Background())
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, domain.ErrMissingSourceDirectory)
	assert.Contains(t, err.Error(), "remove index")
}

func TestIndexManager_ConcurrentCallersShareOneBuild(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	m := f.manager()

	const callers = 8
	outs := make([]*service.Outcome, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := m.Index(context.Background())
			assert.NoError(t, err)
			outs[i] = out
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.engine.builds.Load())
	for _, out := range outs[1:] {
		assert.Same(t, outs[0], out)
	}
}

func TestIndexManager_CancellationIsNotMemoized(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	m := f.manager()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Index(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, service.StateUninitialized, m.State())

	out, err := m.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.OriginBuilt, out.Origin)
}

func TestIndexManager_Retriever(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.dataDir))
	_, err := f.manager().Retriever(context.Background())
	require.ErrorIs(t, err, domain.ErrIndexUnavailable)
	require.ErrorIs(t, err, domain.ErrMissingSourceDirectory)

	g := newFixture(t)
	r, err := g.manager().Retriever(context.Background())
	require.NoError(t, err)
	res, err := r.Retrieve(context.Background(), "shipping days", 1)
	require.NoError(t, err)
	assert.Equal(t, "shipping.pdf", filepath.Base(res[0].Chunk.Source))
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "uninitialized", service.StateUninitialized.String())
	assert.Equal(t, "ready", service.StateReady.String())
	assert.Equal(t, "invalidated", service.StateInvalidated.String())
	assert.Equal(t, "rebuilding", service.StateRebuilding.String())
	assert.Equal(t, "failed", service.StateFailed.String())
}
