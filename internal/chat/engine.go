// Package chat answers questions about the indexed documents and keeps the
// conversation transcript.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"pdfchat/internal/domain"
	"pdfchat/internal/logging"
)

// ModeCondenseQuestion rewrites each follow-up into a standalone question
// before retrieval.
const ModeCondenseQuestion = "condense_question"

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 2

// Options configures an Engine.
type Options struct {
	Mode   string
	TopK   int
	Logger *slog.Logger
}

// Answer is the engine's reply to one user message.
type Answer struct {
	Text string
	// Standalone is the question used for retrieval.
	Standalone string
	// Sources lists the base names of the files the context came from, best first.
	Sources []string
}

// Engine is a retrieval-augmented chat engine.
type Engine struct {
	retriever domain.Retriever
	llm       domain.Completer
	topK      int
	logger    *slog.Logger
}

// NewEngine creates an engine that retrieves from r and answers with llm.
func NewEngine(r domain.Retriever, llm domain.Completer, opts Options) (*Engine, error) {
	if opts.Mode != "" && opts.Mode != ModeCondenseQuestion {
		return nil, fmt.Errorf("unsupported chat mode: %s", opts.Mode)
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{retriever: r, llm: llm, topK: opts.TopK, logger: logger.With("component", "chat")}, nil
}

// Chat answers message given the prior conversation in history.
func (e *Engine) Chat(ctx context.Context, history []domain.Message, message string) (Answer, error) {
	standalone, err := e.condense(ctx, history, message)
	if err != nil {
		return Answer{}, err
	}
	results, err := e.retriever.Retrieve(ctx, standalone, e.topK)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve context: %w", err)
	}
	e.logger.Debug("retrieved context", "question", standalone, "chunks", len(results))

	text, err := e.llm.Complete(ctx, BuildContextPrompt(results), []domain.Message{
		{Role: domain.RoleUser, Content: standalone},
	})
	if err != nil {
		return Answer{}, fmt.Errorf("answer question: %w", err)
	}
	return Answer{Text: text, Standalone: standalone, Sources: sources(results)}, nil
}

// condense rewrites message into a standalone question when history holds
// earlier user turns.
func (e *Engine) condense(ctx context.Context, history []domain.Message, message string) (string, error) {
	if !hasUserTurn(history) {
		return message, nil
	}
	out, err := e.llm.Complete(ctx, condenseSystemPrompt, []domain.Message{
		{Role: domain.RoleUser, Content: BuildCondensePrompt(history, message)},
	})
	if err != nil {
		return "", fmt.Errorf("condense question: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return message, nil
	}
	e.logger.Debug("condensed question", "original", message, "standalone", out)
	return out, nil
}

const condenseSystemPrompt = "You rewrite follow-up messages into standalone questions. Reply with the question only."

// BuildCondensePrompt renders history and the follow-up message for the
// condense step.
func BuildCondensePrompt(history []domain.Message, message string) string {
	var sb strings.Builder
	sb.WriteString("Given a conversation between a user and an assistant and a follow-up message from the user, ")
	sb.WriteString("rewrite the message to be a standalone question that captures all relevant context from the conversation.\n\n")
	sb.WriteString("<chat_history>\n")
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	sb.WriteString("</chat_history>\n\n")
	fmt.Fprintf(&sb, "<follow_up>%s</follow_up>\n\nStandalone question:", message)
	return sb.String()
}

// BuildContextPrompt builds the system prompt carrying the retrieved chunks.
func BuildContextPrompt(results []domain.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant answering questions about the user's local documents. ")
	sb.WriteString("Answer based only on the context below, not prior knowledge. If the answer is not in the context, say so.\n\n")
	sb.WriteString("<context>\n")
	for i, r := range results {
		sb.WriteString("<chunk>\n")
		fmt.Fprintf(&sb, "<index>%d</index>\n", i+1)
		fmt.Fprintf(&sb, "<source>%s</source>\n", filepath.Base(r.Chunk.Source))
		fmt.Fprintf(&sb, "<content>%s</content>\n", r.Chunk.Text)
		sb.WriteString("</chunk>\n")
	}
	sb.WriteString("</context>")
	return sb.String()
}

func hasUserTurn(history []domain.Message) bool {
	for _, m := range history {
		if m.Role == domain.RoleUser {
			return true
		}
	}
	return false
}

func sources(results []domain.SearchResult) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range results {
		name := filepath.Base(r.Chunk.Source)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
