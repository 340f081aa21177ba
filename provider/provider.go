package provider

import (
	"errors"

	"github.com/mohammad-safakhou/prospector/config"
	"github.com/mohammad-safakhou/prospector/internal/agent/core"
	openai_provider "github.com/mohammad-safakhou/prospector/provider/openai"
)

// NewProvider creates the completion collaborator from configuration.
func NewProvider(cfg config.LLMConfig) (core.LLMProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm.api_key not configured")
	}
	return openai_provider.NewClient(
		cfg.APIKey,
		cfg.BaseURL,
		cfg.Model,
		cfg.MaxTokens,
		cfg.Timeout,
		cfg.MaxRetries,
		cfg.RetryDelay,
	), nil
}
