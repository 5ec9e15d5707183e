package llm

import (
	"fmt"

	"github.com/hyperjump/redline/internal/config"
	"go.uber.org/zap"
)

// NewProposer returns the Proposer selected by cfg.Provider.
func NewProposer(cfg *config.LLMConfig, logger *zap.Logger) (Proposer, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAIClient(OpenAIOptions{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			APIKey:      cfg.ResolveAPIKey(),
			Temperature: cfg.Temperature,
			JSONMode:    cfg.JSONModeOrDefault(),
			Timeout:     cfg.Timeout(),
			Logger:      logger,
		})
	case config.ProviderStatic:
		if cfg.StaticResponsePath == "" {
			return nil, fmt.Errorf("llm: static provider requires static_response_path")
		}
		return NewStaticProposer(cfg.StaticResponsePath), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
