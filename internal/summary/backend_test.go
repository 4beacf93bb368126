package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMBackendTag(t *testing.T) {
	b := NewLLMBackend("openai", "", "key", "", 0)
	assert.Equal(t, "openai:gpt-4o-mini", b.Tag())

	b = NewLLMBackend("anthropic", "claude-3-5-sonnet-20241022", "key", "", 0)
	assert.Equal(t, "anthropic:claude-3-5-sonnet-20241022", b.Tag())
}

func TestGenerateOpenAI(t *testing.T) {
	var gotAuth string
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		gotPrompt = req.Messages[0].Content

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "  A crisp briefing.  "}},
			},
		})
	}))
	defer srv.Close()

	b := NewLLMBackend("openai", "gpt-4o-mini", "sk-test", srv.URL, time.Second)
	got, err := b.Generate(context.Background(), "A Title", "Ada Lovelace", "The abstract.", "NeurIPS")
	require.NoError(t, err)
	assert.Equal(t, "A crisp briefing.", got, "response is trimmed")

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Contains(t, gotPrompt, "A Title")
	assert.Contains(t, gotPrompt, "Venue: NeurIPS")
	assert.Contains(t, gotPrompt, "The abstract.")
}

func TestGenerateAnthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "Briefing."}},
		})
	}))
	defer srv.Close()

	b := NewLLMBackend("anthropic", "", "sk-ant", srv.URL, time.Second)
	got, err := b.Generate(context.Background(), "T", "A", "Abs", "")
	require.NoError(t, err)
	assert.Equal(t, "Briefing.", got)
}

func TestGenerateStatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrBackendRateLimited},
		{"server error", http.StatusInternalServerError, ErrBackendUnavailable},
		{"unauthorized", http.StatusUnauthorized, ErrBackendUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			b := NewLLMBackend("openai", "m", "k", srv.URL, time.Second)
			_, err := b.Generate(context.Background(), "T", "A", "Abs", "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	b := NewLLMBackend("openai", "m", "k", srv.URL, time.Second)
	_, err := b.Generate(context.Background(), "T", "A", "Abs", "")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
