package web_search

import (
	"errors"

	"github.com/mohammad-safakhou/prospector/internal/agent/core"
	"github.com/mohammad-safakhou/prospector/tools/web_search/brave"
	"github.com/mohammad-safakhou/prospector/tools/web_search/serper"
)

type Provider string

const (
	BraveProvider  Provider = "brave"
	SerperProvider Provider = "serper"
)

var ErrUnsupportedProvider = errors.New("unsupported search provider")

// NewWebSearcher creates the web-search capability for the Search action.
func NewWebSearcher(provider Provider, apiKey string) (core.SearchProvider, error) {
	switch provider {
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
