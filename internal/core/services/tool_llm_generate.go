package services

import (
	"context"

	"github.com/manthysbr/curunir/internal/core/domain"
	"github.com/manthysbr/curunir/internal/core/ports"
)

// NewLLMGenerateTool wraps the configured LLM backend as a workflow
// tool, so plans can generate text as an ordinary step.
func NewLLMGenerateTool(llm ports.LLMClient) *domain.Tool {
	return &domain.Tool{
		Name:        "llm_generate",
		Description: "Generates text with the configured LLM. Accepts a prompt and an optional system prompt, returns the generated text.",
		InputSchema: domain.Schema{
			Type: "object",
			Properties: map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "The user prompt to generate from.",
				},
				"system_prompt": map[string]any{
					"type":        "string",
					"description": "Optional system instruction prepended to the conversation.",
				},
				"max_tokens": map[string]any{
					"type":        "integer",
					"description": "Generation token ceiling (default 1000).",
				},
				"temperature": map[string]any{
					"type":        "number",
					"description": "Sampling temperature (default 0.7).",
				},
			},
			Required: []string{"prompt"},
		},
		OutputSchema: domain.Schema{
			Type: "object",
			Properties: map[string]any{
				"generated": map[string]any{"type": "string"},
			},
		},
		Execute: func(ctx context.Context, inputs map[string]any) domain.ToolResult {
			prompt, _ := inputs["prompt"].(string)
			if prompt == "" {
				return domain.ToolFailure("prompt is required")
			}

			maxTokens := 1000
			if v, ok := inputs["max_tokens"].(float64); ok && v > 0 {
				maxTokens = int(v)
			}
			temperature := 0.7
			if v, ok := inputs["temperature"].(float64); ok {
				temperature = v
			}

			var (
				text string
				err  error
			)
			if system, _ := inputs["system_prompt"].(string); system != "" {
				text, err = llm.Chat(ctx, []ports.ChatMessage{
					{Role: "system", Content: system},
					{Role: "user", Content: prompt},
				}, maxTokens, temperature)
			} else {
				text, err = llm.Complete(ctx, prompt, maxTokens, temperature)
			}
			if err != nil {
				return domain.ToolFailure("generation failed: %v", err)
			}

			return domain.ToolResult{
				Success: true,
				Outputs: map[string]any{"generated": text},
			}
		},
	}
}
