package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/futig/doctalk-backend/internal/config"
	"github.com/futig/doctalk-backend/internal/entity"
	pkghttp "github.com/futig/doctalk-backend/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openAIConfig(url string) config.OpenAIConfig {
	return config.OpenAIConfig{
		HTTPClientConfig:   config.HTTPClientConfig{Url: url, Token: "secret"},
		ChatModel:          "gpt-test",
		EmbeddingModel:     "embed-test",
		EmbeddingDimension: 2,
		ChatPath:           "/v1/chat/completions",
		EmbeddingPath:      "/v1/embeddings",
	}
}

func decode(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestOpenAIConnector_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		body := decode(t, r)
		assert.Equal(t, "embed-test", body["model"])
		assert.Equal(t, []any{"first", "second"}, body["input"])

		// out of order on purpose
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer server.Close()

	c := NewOpenAIConnector(config.ProviderOpenAI, openAIConfig(server.URL), zap.NewNop())
	vectors, err := c.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
	assert.Equal(t, 2, c.Dimension())
}

func TestOpenAIConnector_EmbedEmptyInput(t *testing.T) {
	c := NewOpenAIConnector(config.ProviderOpenAI, openAIConfig("http://127.0.0.1:1"), zap.NewNop())
	vectors, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestOpenAIConnector_EmbedMismatch(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "count", body: `{"data":[{"index":0,"embedding":[1,0]}]}`},
		{name: "dimension", body: `{"data":[{"index":0,"embedding":[1,0,0]},{"index":1,"embedding":[1,0,0]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewOpenAIConnector(config.ProviderOpenAI, openAIConfig(server.URL), zap.NewNop())
			_, err := c.Embed(context.Background(), []string{"a", "b"})
			assert.ErrorIs(t, err, entity.ErrEmbeddingProvider)
		})
	}
}

func TestOpenAIConnector_EmbedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewOpenAIConnector(config.ProviderOpenAI, openAIConfig(server.URL), zap.NewNop())
	_, err := c.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrEmbeddingProvider)

	var httpErr *pkghttp.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
}

func TestOpenAIConnector_SeparateEmbeddingService(t *testing.T) {
	var chatCalls, embedCalls atomic.Int32

	chat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatCalls.Add(1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer chat.Close()

	embed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		embedCalls.Add(1)
		assert.Equal(t, "Bearer embed-secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0]}]}`))
	}))
	defer embed.Close()

	cfg := openAIConfig(chat.URL)
	cfg.ChatPath = "/chat/completions"
	cfg.EmbeddingURL = embed.URL
	cfg.EmbeddingToken = "embed-secret"

	c := NewOpenAIConnector(config.ProviderPerplexity, cfg, zap.NewNop())
	assert.Equal(t, "perplexity", c.Name())

	_, err := c.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), &entity.CompletionRequest{UserPrompt: "q"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), chatCalls.Load())
	assert.Equal(t, int32(1), embedCalls.Load())
}

func TestOpenAIConnector_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		body := decode(t, r)
		assert.Equal(t, "gpt-test", body["model"])
		messages := body["messages"].([]any)
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]any)["role"])
		assert.Equal(t, "be grounded", messages[0].(map[string]any)["content"])
		assert.Equal(t, "user", messages[1].(map[string]any)["role"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  No.  "}}]}`))
	}))
	defer server.Close()

	c := NewOpenAIConnector(config.ProviderOpenAI, openAIConfig(server.URL), zap.NewNop())
	got, err := c.Complete(context.Background(), &entity.CompletionRequest{
		SystemPrompt: "be grounded",
		UserPrompt:   "Is offline mode in v1?",
	})
	require.NoError(t, err)
	assert.Equal(t, "No.", got)
}

func TestOpenAIConnector_CompleteNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := NewOpenAIConnector(config.ProviderOpenAI, openAIConfig(server.URL), zap.NewNop())
	_, err := c.Complete(context.Background(), &entity.CompletionRequest{UserPrompt: "q"})
	assert.ErrorIs(t, err, entity.ErrGeneration)
}

func TestOllamaConnector(t *testing.T) {
	var embedCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decode(t, r)
		switch r.URL.Path {
		case "/api/embeddings":
			embedCalls.Add(1)
			assert.Equal(t, "nomic", body["model"])
			if body["prompt"] == "first" {
				_, _ = w.Write([]byte(`{"embedding":[1,0]}`))
				return
			}
			_, _ = w.Write([]byte(`{"embedding":[0,1]}`))
		case "/api/chat":
			assert.Equal(t, false, body["stream"])
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"grounded"},"done":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewOllamaConnector(config.OllamaConfig{
		HTTPClientConfig:   config.HTTPClientConfig{Url: server.URL},
		ChatModel:          "llama",
		EmbeddingModel:     "nomic",
		EmbeddingDimension: 2,
	}, zap.NewNop())

	vectors, err := c.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
	assert.Equal(t, int32(2), embedCalls.Load())

	got, err := c.Complete(context.Background(), &entity.CompletionRequest{SystemPrompt: "s", UserPrompt: "u"})
	require.NoError(t, err)
	assert.Equal(t, "grounded", got)
}

func TestGeminiConnector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-goog-api-key"))
		body := decode(t, r)

		switch r.URL.Path {
		case "/v1beta/models/embed-test:batchEmbedContents":
			requests := body["requests"].([]any)
			assert.Len(t, requests, 2)
			assert.Equal(t, "models/embed-test", requests[0].(map[string]any)["model"])
			_, _ = w.Write([]byte(`{"embeddings":[{"values":[1,0]},{"values":[0,1]}]}`))
		case "/v1beta/models/chat-test:generateContent":
			assert.NotNil(t, body["systemInstruction"])
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Yes, "},{"text":"it is."}]}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewGeminiConnector(config.GeminiConfig{
		HTTPClientConfig:   config.HTTPClientConfig{Url: server.URL},
		APIKey:             "key",
		ChatModel:          "chat-test",
		EmbeddingModel:     "embed-test",
		EmbeddingDimension: 2,
	}, zap.NewNop())

	vectors, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)

	got, err := c.Complete(context.Background(), &entity.CompletionRequest{SystemPrompt: "s", UserPrompt: "u"})
	require.NoError(t, err)
	assert.Equal(t, "Yes, it is.", got)
}

func TestNewProvider(t *testing.T) {
	cfg := &config.Config{
		LLMProvider:       config.ProviderMock,
		EmbeddingProvider: config.ProviderMock,
		MockCfg:           config.MockConfig{EmbeddingDimension: 64},
	}

	p, err := NewProvider(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MockConnector{}, p)
	assert.Equal(t, 64, p.Dimension())

	cfg.LLMProvider = config.ProviderOllama
	p, err = NewProvider(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "mock+ollama", p.Name())
	assert.Equal(t, 64, p.Dimension())

	cfg.LLMProvider = "unknown"
	_, err = NewProvider(cfg, zap.NewNop())
	assert.ErrorIs(t, err, entity.ErrInvalidParameter)
}
