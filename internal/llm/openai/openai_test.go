package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/domain"
	"pdfchat/internal/llm/openai"
)

const keyEnv = "PDFCHAT_TEST_LLM_KEY"

type chatRequest struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv(keyEnv, "")

	_, err := openai.NewClient(openai.Config{APIKeyEnv: keyEnv})
	require.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestClient_Complete(t *testing.T) {
	t.Setenv(keyEnv, "secret")

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": "  Thirty days.\n"},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)

	c, err := openai.NewClient(openai.Config{BaseURL: srv.URL + "/v1", APIKeyEnv: keyEnv, Model: "test-model"})
	require.NoError(t, err)
	assert.Equal(t, "openai:test-model", c.Name())

	answer, err := c.Complete(context.Background(), "Answer from context.", []domain.Message{
		{Role: domain.RoleUser, Content: "When are invoices due?"},
		{Role: domain.RoleAssistant, Content: "Which invoices?"},
		{Role: domain.RoleUser, Content: "Supplier invoices."},
	})
	require.NoError(t, err)
	assert.Equal(t, "Thirty days.", answer)

	assert.Equal(t, "test-model", got.Model)
	require.NotNil(t, got.Temperature, "zero temperature must still be sent")
	assert.InDelta(t, 0, *got.Temperature, 1e-9)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Answer from context.", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "Supplier invoices.", got.Messages[3].Content)
}

func TestClient_CompleteNoChoices(t *testing.T) {
	t.Setenv(keyEnv, "secret")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	t.Cleanup(srv.Close)

	c, err := openai.NewClient(openai.Config{BaseURL: srv.URL + "/v1", APIKeyEnv: keyEnv})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "", []domain.Message{{Role: domain.RoleUser, Content: "hi"}})
	require.ErrorContains(t, err, "no choices")
}

func TestClient_CompleteServerError(t *testing.T) {
	t.Setenv(keyEnv, "secret")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	c, err := openai.NewClient(openai.Config{BaseURL: srv.URL + "/v1", APIKeyEnv: keyEnv})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "", []domain.Message{{Role: domain.RoleUser, Content: "hi"}})
	require.ErrorContains(t, err, "bad key")
}
