package llm

import (
	"github.com/sashabaranov/go-openai"

	"github.com/planora-app/assistant-go/internal/config"
)

// NewClient creates an OpenAI-compatible client from configuration.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}
