package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/redline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
}

func newTestClient(t *testing.T, handler http.HandlerFunc, jsonMode bool) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewOpenAIClient(OpenAIOptions{
		BaseURL:  srv.URL + "/",
		Model:    "test-model",
		APIKey:   "secret",
		JSONMode: jsonMode,
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestOpenAIClient_Propose(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		chatReply(w, `{"changes":[{"clause_title":"2. Payment","original_excerpt":"100 USD","revised_text":"250 USD","reason":"r"}]}`)
	}, true)

	clauses := []models.Clause{{Title: "2. Payment", Text: "The fee is 100 USD."}}
	proposals, err := c.Propose(context.Background(), clauses, "Change the fee to 250 USD")
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, "250 USD", proposals[0].RevisedText)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 0.0, got.Temperature)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, SystemPrompt, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Contains(t, got.Messages[1].Content, "Change the fee to 250 USD")
	assert.Contains(t, got.Messages[1].Content, "The fee is 100 USD.")
}

func TestOpenAIClient_NoJSONMode(t *testing.T) {
	var raw map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		chatReply(w, `{"changes": []}`)
	}, false)

	proposals, err := c.Propose(context.Background(), nil, "x")
	require.NoError(t, err)
	assert.Empty(t, proposals)
	assert.NotContains(t, raw, "response_format")
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "prose reply",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				chatReply(w, "I changed the fee for you.")
			},
			wantErr: ErrMalformedResponse,
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"choices": []}`))
			},
			wantErr: ErrMalformedResponse,
		},
		{
			name: "body not json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>gateway</html>`))
			},
			wantErr: ErrMalformedResponse,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
			},
			wantErr: ErrServiceUnavailable,
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "bad key", http.StatusUnauthorized)
			},
			wantErr: ErrServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler, true)
			_, err := c.Propose(context.Background(), nil, "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpenAIClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewOpenAIClient(OpenAIOptions{BaseURL: url, APIKey: "k", Timeout: time.Second})
	require.NoError(t, err)
	_, err = c.Propose(context.Background(), nil, "x")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestOpenAIClient_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		chatReply(w, `{"changes": []}`)
	}, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Propose(ctx, nil, "x")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenAIClient_ClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := NewOpenAIClient(OpenAIOptions{BaseURL: srv.URL, APIKey: "k", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	_, err = c.Propose(context.Background(), nil, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.NotContains(t, err.Error(), "%!w")

	var netErr net.Error
	require.True(t, errors.As(err, &netErr), "cause should be kept: %v", err)
	assert.True(t, netErr.Timeout())
}

func TestNewOpenAIClient_Defaults(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIOptions{})
	assert.Error(t, err)

	c, err := NewOpenAIClient(OpenAIOptions{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, defaultModel, c.Model())
	assert.Equal(t, defaultBaseURL+chatPath, c.url)
}
