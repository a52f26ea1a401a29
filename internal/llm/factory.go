package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	oaiembed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/cortexdesk/config"
)

const requestTimeout = 5 * time.Minute

// Models holds the two model tiers of a run. Quick serves analysts, debators
// and the trader; Deep serves the two managers.
type Models struct {
	Quick model.ToolCallingChatModel
	Deep  model.ToolCallingChatModel
}

func NewModels(ctx context.Context, cfg *config.Config) (*Models, error) {
	quick, err := NewChatModel(ctx, cfg, cfg.QuickThinkLLM)
	if err != nil {
		return nil, fmt.Errorf("quick-think model: %w", err)
	}
	deep, err := NewChatModel(ctx, cfg, cfg.DeepThinkLLM)
	if err != nil {
		return nil, fmt.Errorf("deep-think model: %w", err)
	}
	return &Models{Quick: quick, Deep: deep}, nil
}

// NewChatModel builds a retrying chat model for the configured provider.
func NewChatModel(ctx context.Context, cfg *config.Config, name string) (model.ToolCallingChatModel, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fatalf("model name is empty")
	}
	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.LLMMaxRetries

	switch cfg.LLMProvider {
	case "deepseek":
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.APIKey(),
			BaseURL:   deepseekBaseURL(cfg.BackendURL),
			Model:     name,
			MaxTokens: cfg.MaxTokens,
			Timeout:   requestTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create deepseek model: %w", err)
		}
		return WithRetry(cm, policy), nil
	case "openai", "ollama", "openrouter":
		maxTokens := cfg.MaxTokens
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BackendURL,
			APIKey:    cfg.APIKey(),
			Model:     name,
			MaxTokens: &maxTokens,
			Timeout:   requestTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return WithRetry(cm, policy), nil
	}
	return nil, fatalf("unsupported llm provider %q", cfg.LLMProvider)
}

func deepseekBaseURL(u string) string {
	if u == "" || strings.Contains(u, "api.openai.com") {
		return "https://api.deepseek.com/"
	}
	return u
}

// NewEmbedder returns the remote embedder, or nil when the provider has no
// embedding endpoint or no key is configured. Callers fall back to a local
// embedder on nil.
func NewEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, error) {
	if cfg.LLMProvider == "deepseek" || cfg.OpenAIAPIKey == "" || cfg.EmbeddingModel == "" {
		return nil, nil
	}
	emb, err := oaiembed.NewEmbedder(ctx, &oaiembed.EmbeddingConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.BackendURL,
		Model:   cfg.EmbeddingModel,
		Timeout: time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return emb, nil
}
