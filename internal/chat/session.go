package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pdfchat/internal/domain"
)

// RetrieverSource yields the current index. A value different from the
// previous call means the index was rebuilt.
type RetrieverSource func(ctx context.Context) (domain.Retriever, error)

// Session is one conversation. Its transcript is append-only and starts with
// the assistant greeting.
type Session struct {
	ID string

	source RetrieverSource
	llm    domain.Completer
	opts   Options

	submitMu  sync.Mutex
	engine    *Engine
	engineFor domain.Retriever

	mu           sync.Mutex
	transcript   []domain.Message
	historyStart int
}

// NewSession starts a conversation. greeting may be empty.
func NewSession(source RetrieverSource, llm domain.Completer, opts Options, greeting string) *Session {
	s := &Session{ID: uuid.NewString(), source: source, llm: llm, opts: opts}
	if greeting != "" {
		s.transcript = append(s.transcript, domain.Message{Role: domain.RoleAssistant, Content: greeting})
		s.historyStart = 1
	}
	return s
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.transcript...)
}

// Submit sends text to the chat engine and records the exchange. Blank text
// is ignored and returns a nil Answer. When no index is available the
// transcript is left untouched and the error wraps domain.ErrIndexUnavailable.
func (s *Session) Submit(ctx context.Context, text string) (*Answer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	engine, err := s.currentEngine(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	history := append([]domain.Message(nil), s.transcript[s.historyStart:]...)
	s.transcript = append(s.transcript, domain.Message{Role: domain.RoleUser, Content: text})
	s.mu.Unlock()

	answer, err := engine.Chat(ctx, history, text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.transcript = append(s.transcript, domain.Message{Role: domain.RoleAssistant, Content: answer.Text})
	s.mu.Unlock()
	return &answer, nil
}

func (s *Session) currentEngine(ctx context.Context) (*Engine, error) {
	r, err := s.source(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrIndexUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	if r == nil {
		return nil, domain.ErrIndexUnavailable
	}
	if s.engine != nil && s.engineFor == r {
		return s.engine, nil
	}
	engine, err := NewEngine(r, s.llm, s.opts)
	if err != nil {
		return nil, err
	}
	s.engine, s.engineFor = engine, r
	return engine, nil
}
