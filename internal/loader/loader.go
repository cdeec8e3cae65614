// Package loader turns a directory of PDF files into tagged text units.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pdfchat/internal/domain"
	"pdfchat/internal/logging"
)

// Extractor returns the plain text of one source file.
type Extractor interface {
	Extract(path string) (string, error)
}

// Progress describes one processed file.
type Progress struct {
	Name  string
	Size  int64
	Done  int
	Total int
}

// Fraction reports completion in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Done) / float64(p.Total)
}

// FileError records a file that was skipped.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e FileError) Unwrap() error { return e.Err }

// Result is the outcome of one Load.
type Result struct {
	Units    []domain.TextUnit
	Failures []FileError
	Matched  int
}

// Loader reads recognized files from a source directory.
type Loader struct {
	extractor  Extractor
	extensions []string
	logger     *slog.Logger

	// OnProgress, when set, is called after each file.
	OnProgress func(Progress)
}

// New creates a Loader that accepts .pdf files.
func New(extractor Extractor, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Loader{
		extractor:  extractor,
		extensions: []string{".pdf"},
		logger:     logger.With("component", "loader"),
	}
}

// Load extracts one text unit per recognized file in dir. A file that fails
// extraction is reported in Result.Failures and skipped. When nothing could
// be loaded the error is domain.ErrNoDocumentsFound.
func (l *Loader) Load(ctx context.Context, dir string) (Result, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", domain.ErrMissingSourceDirectory, dir)
		}
		return Result{}, err
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s is not a directory", domain.ErrMissingSourceDirectory, dir)
	}

	files, err := l.list(dir)
	if err != nil {
		return Result{}, err
	}
	res := Result{Matched: len(files)}
	if len(files) == 0 {
		l.logger.Warn("no matching files", "dir", dir, "extensions", l.extensions)
		return res, fmt.Errorf("%w in %s", domain.ErrNoDocumentsFound, dir)
	}

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		l.logger.Info("processing file", "name", f.name, "size_mb", fmt.Sprintf("%.2f", float64(f.size)/(1024*1024)))

		text, err := l.extractor.Extract(f.path)
		if err != nil {
			fe := FileError{Path: f.path, Err: fmt.Errorf("%w: %w", domain.ErrExtraction, err)}
			res.Failures = append(res.Failures, fe)
			l.logger.Error("skipping file", "name", f.name, "err", err)
		} else {
			res.Units = append(res.Units, domain.TextUnit{Content: text, Source: f.path})
		}

		p := Progress{Name: f.name, Size: f.size, Done: i + 1, Total: len(files)}
		l.logger.Debug("progress", "done", p.Done, "total", p.Total, "fraction", p.Fraction())
		if l.OnProgress != nil {
			l.OnProgress(p)
		}
	}

	if len(res.Units) == 0 {
		return res, fmt.Errorf("%w: all %d files failed to load", domain.ErrNoDocumentsFound, len(files))
	}
	l.logger.Info("documents loaded", "units", len(res.Units), "failed", len(res.Failures))
	return res, nil
}

type sourceFile struct {
	path string
	name string
	size int64
}

func (l *Loader) list(dir string) ([]sourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var files []sourceFile
	for _, e := range entries {
		if e.IsDir() || !l.recognized(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, sourceFile{
			path: filepath.Join(dir, e.Name()),
			name: e.Name(),
			size: info.Size(),
		})
	}
	return files, nil
}

func (l *Loader) recognized(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range l.extensions {
		if ext == want {
			return true
		}
	}
	return false
}
