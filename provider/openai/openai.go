package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/prospector/internal/agent/core"
)

// Client implements core.LLMProvider against an OpenAI-compatible
// chat-completions API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
}

// NewClient creates an OpenAI chat-completions client. Transient
// failures are retried maxRetries times with increasing delay.
func NewClient(apiKey, baseURL, model string, maxTokens int, timeout time.Duration, maxRetries int, retryDelay time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		maxTokens:  maxTokens,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// request represents a request to the chat-completions API
type request struct {
	Model       string             `json:"model"`
	Messages    []core.ChatMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
}

// response represents a chat-completions API response
type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// retryDelayCap bounds the growth of the inter-attempt delay.
const retryDelayCap = 10 * time.Second

// Complete sends the conversation and returns the completion text.
// Network errors and 5xx/429 responses are transient and retried with
// increasing delay; other HTTP errors fail immediately.
func (c *Client) Complete(ctx context.Context, messages []core.ChatMessage, temperature float64) (string, error) {
	var lastErr error
	delay := c.retryDelay
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			}
			delay *= 2
			if delay > retryDelayCap {
				delay = retryDelayCap
			}
		}

		text, transient, err := c.sendRequest(ctx, messages, temperature)
		if err == nil {
			return text, nil
		}
		if !transient {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("completion failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) sendRequest(ctx context.Context, messages []core.ChatMessage, temperature float64) (string, bool, error) {
	body, err := json.Marshal(request{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", transient, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", false, fmt.Errorf("no choices in response")
	}
	return out.Choices[0].Message.Content, false, nil
}
