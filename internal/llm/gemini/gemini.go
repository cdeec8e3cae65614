// Package gemini answers chat prompts with Google Gemini.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"pdfchat/internal/domain"
)

// Name identifies this backend in configuration.
const Name = "gemini"

const (
	roleUser  = "user"
	roleModel = "model"
)

var _ domain.Completer = (*Client)(nil)

// Config configures the Gemini client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Client implements domain.Completer using the Gemini API.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewClient reads the API key from cfg.APIKeyEnv and connects to the Gemini API.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: %s is not set. Get a key at https://aistudio.google.com/apikey", domain.ErrMissingCredential, cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cc := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Gemini API: %w", err)
	}
	return &Client{client: client, model: cfg.Model, temperature: cfg.Temperature}, nil
}

func (c *Client) Name() string { return Name + ":" + c.model }

// Complete generates a reply to messages under the system instruction.
func (c *Client) Complete(ctx context.Context, system string, messages []domain.Message) (string, error) {
	contents := BuildContents(messages)
	if len(contents) == 0 {
		return "", errors.New("gemini: no messages to send")
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, BuildConfig(system, c.temperature))
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if result == nil {
		return "", errors.New("gemini returned nil result")
	}
	return strings.TrimSpace(result.Text()), nil
}

// BuildConfig returns the GenerateContentConfig for a request.
func BuildConfig(system string, temperature float32) *genai.GenerateContentConfig {
	temp := temperature
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	return cfg
}

// BuildContents maps transcript messages to Gemini contents. Assistant turns
// use the "model" role; empty messages are dropped.
func BuildContents(messages []domain.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := roleUser
		if m.Role == domain.RoleAssistant {
			role = roleModel
		}
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	return out
}
