package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/c360studio/longform/llm"
	_ "github.com/c360studio/longform/llm/providers" // Register providers
	"github.com/c360studio/longform/model"
	"github.com/c360studio/longform/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAISuccessHandler(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id":    "chatcmpl-123",
			"model": "test-model",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]string{
						"role":    "assistant",
						"content": content,
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{
				"prompt_tokens":     10,
				"completion_tokens": 8,
				"total_tokens":      18,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func registryForServer(url string, names ...string) *model.Registry {
	endpoints := make(map[string]*model.EndpointConfig, len(names))
	for _, name := range names {
		endpoints[name] = &model.EndpointConfig{
			Provider: "ollama",
			URL:      url,
			Model:    name,
		}
	}
	return model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityFast: {
				Description: "Test capability",
				Preferred:   names,
			},
		},
		endpoints,
	)
}

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		openAISuccessHandler("Hello! How can I help you?")(w, r)
	}))
	defer server.Close()

	client := llm.NewClient(registryForServer(server.URL, "test-model"))

	resp, err := client.Complete(context.Background(), llm.Request{
		Capability: "fast",
		Messages:   []llm.Message{{Role: "user", Content: "Hi"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help you?", resp.Content)
	assert.Equal(t, 18, resp.Usage.TotalTokens)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_Complete_FallsBackOnTransientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// First endpoint rate-limited; client should try the fallback.
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		openAISuccessHandler("fallback content")(w, r)
	}))
	defer server.Close()

	client := llm.NewClient(registryForServer(server.URL, "primary", "secondary"))

	resp, err := client.Complete(context.Background(), llm.Request{
		Capability: "fast",
		Messages:   []llm.Message{{Role: "user", Content: "Hi"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "fallback content", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Complete_FatalStopsFallback(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := llm.NewClient(registryForServer(server.URL, "primary", "secondary"))

	_, err := client.Complete(context.Background(), llm.Request{
		Capability: "fast",
		Messages:   []llm.Message{{Role: "user", Content: "Hi"}},
	})

	require.Error(t, err)
	assert.True(t, resilience.IsFatal(err))
	assert.Equal(t, int32(1), calls.Load(), "auth failure must not burn fallbacks")
}

func TestClient_Complete_AllEndpointsFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := llm.NewClient(registryForServer(server.URL, "primary", "secondary"))

	_, err := client.Complete(context.Background(), llm.Request{
		Capability: "fast",
		Messages:   []llm.Message{{Role: "user", Content: "Hi"}},
	})

	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "all endpoints failed")
}

func TestClient_Complete_ValidatesRequest(t *testing.T) {
	client := llm.NewClient(model.NewDefaultRegistry())

	_, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "Hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capability is required")

	_, err = client.Complete(context.Background(), llm.Request{Capability: "fast"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one message")
}
