package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"crewline/internal/config"
	"crewline/internal/domain"
)

func TestNewSelectsProvider(t *testing.T) {
	g, err := New(config.GeneratorConfig{Provider: "none"})
	require.NoError(t, err)
	require.IsType(t, Disabled{}, g)

	_, err = New(config.GeneratorConfig{Provider: "oracle"})
	require.Error(t, err)
}

func TestDisabledFailsWithGenerationFailed(t *testing.T) {
	_, err := Disabled{}.Generate(context.Background(), "ctx")
	require.ErrorIs(t, err, domain.ErrGenerationFailed)
	_, err = Disabled{}.Elaborate(context.Background(), "ctx")
	require.ErrorIs(t, err, domain.ErrGenerationFailed)
}

func TestAnthropicGenerateReadsTextBlocks(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
  "content": [{"type": "text", "text": "{\"milestones\": []"}, {"type": "text", "text": ", \"tasks\": []}"}],
  "stop_reason": "end_turn", "usage": {"input_tokens": 10, "output_tokens": 5}
}`))
	}))
	defer srv.Close()

	g, err := NewAnthropic(config.GeneratorConfig{APIKey: "k", MaxTokens: 100}, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)
	out, err := g.Generate(context.Background(), "project context")
	require.NoError(t, err)
	require.Equal(t, `{"milestones": [], "tasks": []}`, out)
	require.Equal(t, "claude-sonnet-4-5", got["model"])
	require.EqualValues(t, 100, got["max_tokens"])
}

func TestAnthropicErrorIsGenerationFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	g, err := NewAnthropic(config.GeneratorConfig{APIKey: "k"}, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)
	_, err = g.Elaborate(context.Background(), "task")
	require.ErrorIs(t, err, domain.ErrGenerationFailed)
}
