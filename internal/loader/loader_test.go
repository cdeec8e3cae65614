package loader_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/domain"
	"pdfchat/internal/loader"
)

// fakeExtractor returns the file body as text and fails for names containing "corrupt".
type fakeExtractor struct{}

func (fakeExtractor) Extract(path string) (string, error) {
	if strings.Contains(filepath.Base(path), "corrupt") {
		return "", errors.New("malformed xref table")
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func writeFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("text of "+name), 0o644))
	}
	return dir
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	t.Run("non-PDF files only yields no documents", func(t *testing.T) {
		t.Parallel()

		dir := writeFiles(t, "notes.txt", "slides.pptx", "README")
		res, err := loader.New(fakeExtractor{}, nil).Load(context.Background(), dir)

		require.ErrorIs(t, err, domain.ErrNoDocumentsFound)
		assert.Empty(t, res.Units)
		assert.Empty(t, res.Failures)
		assert.Zero(t, res.Matched)
	})

	t.Run("skips corrupt files and keeps going", func(t *testing.T) {
		t.Parallel()

		dir := writeFiles(t, "a.pdf", "b-corrupt.pdf", "c.pdf", "d-corrupt.pdf", "e.pdf", "ignore.txt")
		var progress []loader.Progress
		l := loader.New(fakeExtractor{}, nil)
		l.OnProgress = func(p loader.Progress) { progress = append(progress, p) }

		res, err := l.Load(context.Background(), dir)
		require.NoError(t, err)

		require.Len(t, res.Units, 3)
		require.Len(t, res.Failures, 2)
		assert.Equal(t, 5, res.Matched)
		for _, f := range res.Failures {
			assert.ErrorIs(t, f, domain.ErrExtraction)
			assert.Contains(t, f.Path, "corrupt")
		}
		assert.Equal(t, "text of a.pdf", res.Units[0].Content)
		assert.Equal(t, filepath.Join(dir, "a.pdf"), res.Units[0].Source)

		require.Len(t, progress, 5)
		for i, p := range progress {
			assert.Equal(t, i+1, p.Done)
			assert.Equal(t, 5, p.Total)
		}
		assert.InDelta(t, 1.0, progress[4].Fraction(), 1e-9)
	})

	t.Run("all files failing yields no documents", func(t *testing.T) {
		t.Parallel()

		dir := writeFiles(t, "x-corrupt.pdf", "y-corrupt.pdf")
		res, err := loader.New(fakeExtractor{}, nil).Load(context.Background(), dir)

		require.ErrorIs(t, err, domain.ErrNoDocumentsFound)
		assert.Empty(t, res.Units)
		assert.Len(t, res.Failures, 2)
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()

		_, err := loader.New(fakeExtractor{}, nil).Load(context.Background(), filepath.Join(t.TempDir(), "Data"))
		require.ErrorIs(t, err, domain.ErrMissingSourceDirectory)
	})

	t.Run("path is a file", func(t *testing.T) {
		t.Parallel()

		dir := writeFiles(t, "a.pdf")
		_, err := loader.New(fakeExtractor{}, nil).Load(context.Background(), filepath.Join(dir, "a.pdf"))
		require.ErrorIs(t, err, domain.ErrMissingSourceDirectory)
	})

	t.Run("extension match is case-insensitive and skips directories", func(t *testing.T) {
		t.Parallel()

		dir := writeFiles(t, "REPORT.PDF")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755))

		res, err := loader.New(fakeExtractor{}, nil).Load(context.Background(), dir)
		require.NoError(t, err)
		require.Len(t, res.Units, 1)
		assert.Equal(t, "text of REPORT.PDF", res.Units[0].Content)
	})

	t.Run("stops on canceled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := loader.New(fakeExtractor{}, nil).Load(ctx, writeFiles(t, "a.pdf"))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestPDFExtractor_RejectsNonPDF(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, "fake.pdf")
	_, err := loader.PDFExtractor{}.Extract(filepath.Join(dir, "fake.pdf"))
	require.Error(t, err)

	res, err := loader.New(loader.PDFExtractor{}, nil).Load(context.Background(), dir)
	require.ErrorIs(t, err, domain.ErrNoDocumentsFound)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0], domain.ErrExtraction)
}

// writePDF writes a minimal PDF with one Helvetica text line per page.
func writePDF(t *testing.T, path string, pages ...string) {
	t.Helper()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // page tree, filled in below
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	var kids []string
	for _, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		pageNum := len(objects) + 1
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", pageNum+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
		kids = append(kids, fmt.Sprintf("%d 0 R", pageNum))
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestPDFExtractor_JoinsPages(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "greeting.pdf")
	writePDF(t, path, "Hello", "World")

	text, err := loader.PDFExtractor{}.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "Hello\n\nWorld", text)
}

func TestLoader_LoadRealPDFs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "a-manual.pdf"), "Press start", "Hold to stop")
	writePDF(t, filepath.Join(dir, "c-warranty.pdf"), "Two years")
	for _, name := range []string{"b-garbage.pdf", "d-garbage.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("definitely not a pdf"), 0o644))
	}

	res, err := loader.New(loader.PDFExtractor{}, nil).Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Matched)
	require.Len(t, res.Units, 2)
	assert.Equal(t, filepath.Join(dir, "a-manual.pdf"), res.Units[0].Source)
	assert.Equal(t, "Press start\n\nHold to stop", res.Units[0].Content)
	assert.Equal(t, "Two years", res.Units[1].Content)

	require.Len(t, res.Failures, 2)
	for _, f := range res.Failures {
		assert.ErrorIs(t, f, domain.ErrExtraction)
		assert.Contains(t, filepath.Base(f.Path), "garbage")
	}
}
