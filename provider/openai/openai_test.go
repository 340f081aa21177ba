package openai_provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/prospector/internal/agent/core"
)

const completionBody = `{"choices": [{"message": {"content": "hello from the model"}}]}`

func TestCompleteRetriesTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL, "gpt-4o-mini", 256, 5*time.Second, 3, time.Millisecond)
	out, err := client.Complete(context.Background(), []core.ChatMessage{{Role: "user", Content: "hi"}}, 0.7)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "hello from the model" {
		t.Fatalf("unexpected completion: %q", out)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 requests (1 retry), got %d", got)
	}
}

func TestCompleteDoesNotRetryClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL, "gpt-4o-mini", 256, 5*time.Second, 3, time.Millisecond)
	if _, err := client.Complete(context.Background(), nil, 0.7); err == nil {
		t.Fatalf("expected an error for a 400 response")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("client errors must not be retried, got %d requests", got)
	}
}

func TestCompleteExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL, "gpt-4o-mini", 256, 5*time.Second, 3, time.Millisecond)
	if _, err := client.Complete(context.Background(), nil, 0.7); err == nil {
		t.Fatalf("expected an error after retries were exhausted")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected all 3 attempts, got %d", got)
	}
}

func TestCompleteSendsAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL, "gpt-4o-mini", 256, 5*time.Second, 1, time.Millisecond)
	if _, err := client.Complete(context.Background(), nil, 0.2); err != nil {
		t.Fatalf("complete: %v", err)
	}
}
