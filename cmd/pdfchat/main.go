package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"pdfchat/internal/chat"
	"pdfchat/internal/chunker"
	"pdfchat/internal/config"
	"pdfchat/internal/domain"
	"pdfchat/internal/embedding"
	"pdfchat/internal/index"
	"pdfchat/internal/llm"
	"pdfchat/internal/loader"
	"pdfchat/internal/logging"
	"pdfchat/internal/service"
	"pdfchat/internal/summarizer"
	"pdfchat/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_ = godotenv.Load()

	m := NewMain()
	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, domain.ErrMissingCredential) {
			fmt.Fprintln(os.Stderr, "Hint: set the API key in your environment or in a .env file")
		}
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Config is the loaded configuration. Set by Run.
	Config *config.AppConfig

	closeLog func() error
}

// NewMain returns a new instance of Main.
func NewMain() *Main {
	return &Main{}
}

// Close releases the log file, if any.
func (m *Main) Close() error {
	if m.closeLog != nil {
		return m.closeLog()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("pdfchat"),
		kong.Description("Chat with the PDF documents in a local folder."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) > 0 && (args[0] == "help" || args[0] == "--help" || args[0] == "-h") {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cmd := strings.Fields(kongCtx.Command())[0]

	cfg, err := loadConfig(cli)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	m.Config = cfg
	deps.Config = cfg

	// The TUI owns the terminal, so it only logs to a file.
	var fallback io.Writer = stderr
	if cmd == "chat" {
		fallback = io.Discard
	}
	logger, closeLog, err := logging.New(cfg.Log, fallback)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	m.closeLog = closeLog
	defer m.Close()
	deps.Logger = logger

	deps.Diagnostics = tui.Diagnostics{
		CredentialEnv: cfg.LLM.APIKeyEnv,
		CredentialSet: os.Getenv(cfg.LLM.APIKeyEnv) != "",
	}

	if err := checkCredentials(cfg, cmd); err != nil {
		return err
	}

	manager, err := newIndexManager(cfg, logger, cmd != "chat", stderr)
	if err != nil {
		return err
	}
	deps.Indexes = manager

	if cmd == "chat" || cmd == "ask" {
		completer, err := llm.New(ctx, cfg.LLM)
		if err != nil {
			return err
		}
		logger.Info("chat backend ready", "llm", completer.Name(), "embedder", cfg.Embedder.Type)
		deps.Session = chat.NewSession(manager.Retriever, completer, chat.Options{
			Mode:   cfg.Chat.Mode,
			TopK:   cfg.Chat.TopK,
			Logger: logger,
		}, cfg.Chat.Greeting)
	}

	return kongCtx.Run(deps)
}

func loadConfig(cli *CLI) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if cli.Config == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cli.Config)
	}
	if err != nil {
		return nil, err
	}
	if cli.DataDir != "" {
		cfg.DataDir = cli.DataDir
	}
	if cli.IndexDir != "" {
		cfg.IndexDir = cli.IndexDir
	}
	return cfg, nil
}

// checkCredentials fails fast when a hosted API the command needs has no key.
func checkCredentials(cfg *config.AppConfig, cmd string) error {
	var envs []string
	if cmd == "chat" || cmd == "ask" {
		envs = append(envs, cfg.LLM.APIKeyEnv)
	}
	if (cmd == "chat" || cmd == "ask" || cmd == "index") && cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		envs = append(envs, cfg.Embedder.OpenAI.APIKeyEnv)
	}
	for _, env := range envs {
		if env != "" && os.Getenv(env) == "" {
			return fmt.Errorf("%w: %s is not set", domain.ErrMissingCredential, env)
		}
	}
	return nil
}

func newIndexManager(cfg *config.AppConfig, logger *slog.Logger, verbose bool, progress io.Writer) (*service.IndexManager, error) {
	factory, err := embedding.NewFactory(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	ch, err := chunker.NewTokenChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	opts := []index.Option{
		index.WithConcurrency(cfg.Embedder.Concurrency),
		index.WithLogger(logger),
	}
	if s := summarizer.New(cfg.Summarizer.Type); s != nil {
		opts = append(opts, index.WithSummarizer(s, cfg.Summarizer.MaxSentences))
	}
	engine := index.NewEngine(factory, ch, opts...)

	l := loader.New(loader.PDFExtractor{}, logger)
	if verbose {
		l.OnProgress = func(p loader.Progress) {
			fmt.Fprintf(progress, "Processing %s (%.2f MB) [%d/%d]\n", p.Name, float64(p.Size)/(1024*1024), p.Done, p.Total)
		}
		var mu sync.Mutex
		engine.OnEmbed = func(done, total int) {
			if done == total || done%50 == 0 {
				mu.Lock()
				fmt.Fprintf(progress, "Embedded %d/%d chunks\n", done, total)
				mu.Unlock()
			}
		}
	}
	return service.NewIndexManager(cfg.DataDir, cfg.IndexDir, l, engine, logger), nil
}
