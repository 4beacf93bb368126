package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrBackendUnavailable marks a backend call that failed for reasons other
// than rate limiting. Recovered locally via retry and fallback.
var ErrBackendUnavailable = errors.New("summary backend unavailable")

// ErrBackendRateLimited marks a 429 from the backend.
var ErrBackendRateLimited = errors.New("summary backend rate limited")

const briefingPrompt = `You are a research paper analyst. Write a short briefing for the paper below.

Title: %s
Authors: %s
%sAbstract:
%s

The briefing must have:
- one sentence stating the core contribution
- two or three bullet points with the key method and results
- one sentence on why it matters

Keep it under 150 words. Return only the briefing text, no preamble.`

// Backend generates briefing text for one paper.
type Backend interface {
	Tag() string
	Generate(ctx context.Context, title, authors, abstract, venue string) (string, error)
}

// LLMBackend calls an OpenAI- or Anthropic-compatible chat API.
type LLMBackend struct {
	client   *http.Client
	provider string // "openai" or "anthropic"
	model    string
	apiKey   string
	baseURL  string
}

// NewLLMBackend creates a backend for the given provider.
func NewLLMBackend(provider, model, apiKey, baseURL string, timeout time.Duration) *LLMBackend {
	if model == "" {
		switch provider {
		case "anthropic":
			model = "claude-3-5-haiku-20241022"
		default:
			model = "gpt-4o-mini"
		}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LLMBackend{
		client:   &http.Client{Timeout: timeout},
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
	}
}

// Tag identifies which backend produced a summary; part of the summary
// uniqueness key.
func (b *LLMBackend) Tag() string {
	return b.provider + ":" + b.model
}

func (b *LLMBackend) Generate(ctx context.Context, title, authors, abstract, venue string) (string, error) {
	venueInfo := ""
	if venue != "" {
		venueInfo = "Venue: " + venue + "\n"
	}
	prompt := fmt.Sprintf(briefingPrompt, title, authors, venueInfo, abstract)

	switch b.provider {
	case "anthropic":
		return b.callAnthropic(ctx, prompt)
	default:
		return b.callOpenAI(ctx, prompt)
	}
}

func (b *LLMBackend) callOpenAI(ctx context.Context, prompt string) (string, error) {
	baseURL := b.baseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	payload := map[string]any{
		"model": b.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.3,
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode, "openai"); err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrBackendUnavailable, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrBackendUnavailable)
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (b *LLMBackend) callAnthropic(ctx context.Context, prompt string) (string, error) {
	baseURL := b.baseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	payload := map[string]any{
		"model":      b.model,
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", b.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode, "anthropic"); err != nil {
		return "", err
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrBackendUnavailable, err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("%w: no content returned", ErrBackendUnavailable)
	}
	return strings.TrimSpace(result.Content[0].Text), nil
}

func statusError(code int, provider string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s status %d", ErrBackendRateLimited, provider, code)
	default:
		return fmt.Errorf("%w: %s status %d", ErrBackendUnavailable, provider, code)
	}
}
