package llm

import (
	"fmt"
	"time"

	"github.com/manthysbr/curunir/internal/core/ports"
)

// Options selects and configures the LLM backend.
type Options struct {
	Provider   string // ollama | openai
	BaseURL    string
	Model      string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Build constructs the client for the configured provider.
func Build(opts Options) (ports.LLMClient, error) {
	switch opts.Provider {
	case "ollama", "":
		return NewOllamaClient(opts.BaseURL, opts.Model, opts.Timeout, opts.MaxRetries), nil
	case "openai", "lmstudio":
		return NewOpenAIClient(opts.BaseURL, opts.Model, opts.APIKey, opts.Timeout, opts.MaxRetries), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}
