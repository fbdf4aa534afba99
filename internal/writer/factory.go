package writer

import (
	"context"
	"fmt"
	"strings"
)

type Options struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

func NewWriter(ctx context.Context, opts Options) (Writer, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "gemini":
		return NewGeminiWriter(ctx, opts.APIKey, opts.Model)
	case "openai":
		return NewOpenAIWriter(opts.APIKey, opts.Model, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported writer provider: %s", opts.Provider)
	}
}
