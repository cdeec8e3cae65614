package main

import (
	"context"
	"io"
	"log/slog"

	"pdfchat/internal/config"
	"pdfchat/internal/tui"
)

// IndexService is the index lifecycle as seen by the commands.
type IndexService interface {
	tui.IndexControl
	Clear() error
}

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx         context.Context
	Stdout      io.Writer
	Stderr      io.Writer
	Config      *config.AppConfig
	Logger      *slog.Logger
	Indexes     IndexService
	Session     tui.Conversation
	Diagnostics tui.Diagnostics
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config   string `short:"c" type:"path" help:"Path to YAML config file (default ./pdfchat.yaml or ~/.config/pdfchat/config.yaml)"`
	DataDir  string `type:"path" help:"Folder with the source PDF files (overrides config)"`
	IndexDir string `type:"path" help:"Folder holding the saved index (overrides config)"`

	Chat   ChatCmd   `cmd:"" default:"1" help:"Open the chat interface (default)"`
	Ask    AskCmd    `cmd:"" help:"Ask a single question and print the answer"`
	Index  IndexCmd  `cmd:"" help:"Load or build the index and report on it"`
	Clear  ClearCmd  `cmd:"" help:"Delete the saved index"`
	Status StatusCmd `cmd:"" help:"Show configuration and index diagnostics"`
}

// ChatCmd is the "chat" subcommand.
type ChatCmd struct{}

// AskCmd is the "ask" subcommand.
type AskCmd struct {
	Question []string `arg:"" help:"Question to ask about the documents"`
}

// IndexCmd is the "index" subcommand.
type IndexCmd struct {
	Rebuild bool `short:"r" help:"Clear the saved index and rebuild it from the source folder"`
}

// ClearCmd is the "clear" subcommand.
type ClearCmd struct{}

// StatusCmd is the "status" subcommand.
type StatusCmd struct{}
