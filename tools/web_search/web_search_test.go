package web_search

import (
	"errors"
	"testing"
)

func TestNewWebSearcher(t *testing.T) {
	for _, p := range []Provider{BraveProvider, SerperProvider} {
		s, err := NewWebSearcher(p, "key")
		if err != nil {
			t.Fatalf("provider %s: %v", p, err)
		}
		if s == nil {
			t.Fatalf("provider %s: nil searcher", p)
		}
	}
	if _, err := NewWebSearcher("bing", "key"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}
