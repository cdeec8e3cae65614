package main

import (
	"fmt"
	"os"

	"pdfchat/internal/index"
)

// Run executes the status command.
func (c *StatusCmd) Run(deps *Dependencies) error {
	cfg := deps.Config
	d := deps.Diagnostics
	fmt.Fprintf(deps.Stdout, "%s set: %s\n", d.CredentialEnv, yesNo(d.CredentialSet))
	fmt.Fprintf(deps.Stdout, "Index directory exists: %t (%s)\n", dirExists(deps.Indexes.IndexDir()), deps.Indexes.IndexDir())
	fmt.Fprintf(deps.Stdout, "Saved index present: %t\n", index.Exists(deps.Indexes.IndexDir()))
	fmt.Fprintf(deps.Stdout, "Data directory exists: %t (%s)\n", dirExists(deps.Indexes.DataDir()), deps.Indexes.DataDir())
	if cfg != nil {
		fmt.Fprintf(deps.Stdout, "LLM: %s %s\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Fprintf(deps.Stdout, "Embedder: %s\n", cfg.Embedder.Type)
		fmt.Fprintf(deps.Stdout, "Chunking: size %d, overlap %d\n", cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
