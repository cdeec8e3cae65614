package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"pdfchat/internal/service"
)

// Run executes the index command.
func (c *IndexCmd) Run(deps *Dependencies) error {
	var (
		out *service.Outcome
		err error
	)
	if c.Rebuild {
		out, err = deps.Indexes.Rebuild(deps.Ctx)
	} else {
		out, err = deps.Indexes.Index(deps.Ctx)
	}
	if err != nil {
		return err
	}
	reportOutcome(deps.Stdout, out)

	ix := out.Index
	fmt.Fprintf(deps.Stdout, "Documents: %d\n", len(ix.Documents()))
	for _, d := range ix.Documents() {
		fmt.Fprintf(deps.Stdout, "  %s (%d chunks)\n", filepath.Base(d.Source), d.Chunks)
	}
	fmt.Fprintf(deps.Stdout, "Chunks: %d (size %d, overlap %d)\n", ix.NumChunks(), ix.Settings().ChunkSize, ix.Settings().ChunkOverlap)
	fmt.Fprintf(deps.Stdout, "Embedder: %s\n", ix.EmbedderName())
	if s := ix.Summary(); s != "" {
		fmt.Fprintf(deps.Stdout, "Summary: %s\n", s)
	}
	return nil
}

// reportOutcome prints how the index was obtained.
func reportOutcome(w io.Writer, out *service.Outcome) {
	if out.ClearErr != nil {
		fmt.Fprintf(w, "Error clearing index: %v\n", out.ClearErr)
	}
	if out.Origin == service.OriginLoaded {
		fmt.Fprintln(w, "Loaded existing index successfully!")
		return
	}
	for _, f := range out.Report.Failures {
		fmt.Fprintf(w, "Error loading %s: %v\n", filepath.Base(f.Path), f.Err)
	}
	if out.PersistErr != nil {
		fmt.Fprintf(w, "Error saving index: %v\n", out.PersistErr)
		fmt.Fprintf(w, "Created new index from %d documents (not saved).\n", len(out.Report.Units))
		return
	}
	fmt.Fprintf(w, "Created and saved new index from %d documents in %s.\n", len(out.Report.Units), out.Elapsed.Round(time.Millisecond))
}
