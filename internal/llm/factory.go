// Package llm turns transcript windows into validated action decisions.
// It holds the provider clients (OpenAI-compatible and Gemini), the
// system prompt, and the decision parser with its single corrective
// re-prompt.
package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/droverhq/drover-cli/api/schemas"
	"github.com/droverhq/drover-cli/internal/config"
)

// NewClient constructs the provider named by the configuration.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg, logger)
	case "gemini":
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
