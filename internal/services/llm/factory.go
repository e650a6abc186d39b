package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/common"
	"github.com/ternarybob/respondo/internal/interfaces"
)

// NewLLMServices creates the chat and embedding LLM services based on
// configuration.
//
// The chat service follows llm.default_provider ("gemini" or "claude").
// The embedding service is always Gemini, since Anthropic does not offer an
// embeddings API. When the chat provider is Gemini both roles share one
// client, so they also share one rate limiter.
func NewLLMServices(cfg *common.Config, logger arbor.ILogger) (chat interfaces.LLMService, embed interfaces.LLMService, err error) {
	logger.Info().
		Str("provider", string(cfg.LLM.DefaultProvider)).
		Msg("Initializing LLM services")

	gemini, err := NewGeminiService(&cfg.Gemini, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Gemini service: %w", err)
	}

	switch cfg.LLM.DefaultProvider {
	case common.LLMProviderGemini:
		return gemini, gemini, nil

	case common.LLMProviderClaude:
		claude, err := NewClaudeService(&cfg.Claude, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Claude service: %w", err)
		}
		return claude, gemini, nil

	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.DefaultProvider)
	}
}
