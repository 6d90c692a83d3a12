package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/manthysbr/curunir/internal/core/ports"
)

// OpenAIClient implements ports.LLMClient against any OpenAI-compatible
// API (LM Studio, vLLM, OpenAI itself). Completion requests go through
// the chat endpoint, which every compatible server supports.
type OpenAIClient struct {
	baseURL    string
	model      string
	apiKey     string
	maxRetries int
	client     *http.Client
}

var _ ports.LLMClient = (*OpenAIClient)(nil)

func NewOpenAIClient(baseURL, model, apiKey string, timeout time.Duration, maxRetries int) *OpenAIClient {
	if baseURL == "" {
		baseURL = "http://localhost:1234/v1"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &OpenAIClient{
		baseURL:    baseURL,
		model:      model,
		apiKey:     apiKey,
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
	}
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []ports.ChatMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature"`
	Stream      bool                `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message ports.ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	return c.Chat(ctx, []ports.ChatMessage{{Role: "user", Content: prompt}}, maxTokens, temperature)
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []ports.ChatMessage, maxTokens int, temperature float64) (string, error) {
	reqBody := chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("llm connection failed: %w", err)
			continue
		}

		var parsed chatCompletionResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg := resp.Status
			if err == nil && parsed.Error != nil {
				msg = parsed.Error.Message
			}
			lastErr = fmt.Errorf("llm api error (%d): %s", resp.StatusCode, msg)
			continue
		}
		if err != nil {
			lastErr = fmt.Errorf("failed to decode response: %w", err)
			continue
		}
		if len(parsed.Choices) == 0 {
			lastErr = fmt.Errorf("llm response contained no choices")
			continue
		}
		return parsed.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("llm request failed after %d attempts: %w", c.maxRetries, lastErr)
}
