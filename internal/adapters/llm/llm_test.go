package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/curunir/internal/core/ports"
)

func TestOllamaClient_Complete(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{"response": "generated text", "done": true})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "test-model", 5*time.Second, 1)
	out, err := client.Complete(context.Background(), "hello", 100, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "generated text", out)

	assert.Equal(t, "test-model", gotReq["model"])
	assert.Equal(t, false, gotReq["stream"])
	opts := gotReq["options"].(map[string]any)
	assert.Equal(t, float64(100), opts["num_predict"])
	assert.Equal(t, 0.5, opts["temperature"])
}

func TestOllamaClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "chat reply"},
			"done":    true,
		})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "test-model", 5*time.Second, 1)
	out, err := client.Chat(context.Background(), []ports.ChatMessage{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
	}, 100, 0.2)
	require.NoError(t, err)
	assert.Equal(t, "chat reply", out)
}

func TestOllamaClient_RetriesThenSurfacesLastError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "m", 5*time.Second, 2)
	_, err := client.Complete(context.Background(), "hello", 10, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, int32(2), hits.Load())
}

func TestOpenAIClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-x", req["model"])

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "openai reply"}},
			},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/v1", "gpt-x", "sekrit", 5*time.Second, 1)
	out, err := client.Complete(context.Background(), "hello", 10, 0.1)
	require.NoError(t, err)
	assert.Equal(t, "openai reply", out)
}

func TestOpenAIClient_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key"},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL, "m", "bad", 5*time.Second, 1)
	_, err := client.Complete(context.Background(), "x", 10, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestBuild(t *testing.T) {
	c, err := Build(Options{Provider: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)

	c, err = Build(Options{Provider: "openai"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = Build(Options{Provider: "lmstudio"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = Build(Options{Provider: "mystery"})
	assert.Error(t, err)
}
