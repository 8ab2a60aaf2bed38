package model

import (
	"context"
	"fmt"

	"docchat/types"
)

// Embedder turns text into a fixed-dimension vector. The dimension is
// constant for the lifetime of an index; the store rejects mismatches.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Completer produces a natural-language answer from a system instruction
// and a single user turn. An empty string with a nil error means the
// model returned no usable content.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// New builds the embedder and completer selected by the configuration.
func New(cfg *types.Config) (Embedder, Completer, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return NewOpenAIEmbedder(cfg.OpenAIKey, cfg.EmbedModel, cfg.EmbedDimension),
			NewOpenAICompleter(cfg.OpenAIKey, cfg.ChatModel, cfg.Temperature), nil
	case "ollama":
		return NewOllamaEmbedder(cfg.OllamaEmbedURL, cfg.EmbedModel, cfg.EmbedDimension),
			NewOllamaCompleter(cfg.OllamaChatURL, cfg.ChatModel, cfg.Temperature), nil
	default:
		return nil, nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
