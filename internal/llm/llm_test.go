package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/config"
	apperrors "github.com/Rafael-2109/frete-sistema-sub002/internal/common/errors"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
)

func TestNew_Providers(t *testing.T) {
	log := logger.NewTestLogger(t)

	tests := []struct {
		name     string
		cfg      config.LLMConfig
		provider string
		wantErr  bool
	}{
		{"none", config.LLMConfig{Provider: "none"}, ProviderNone, false},
		{"empty means none", config.LLMConfig{}, ProviderNone, false},
		{"anthropic", config.LLMConfig{Provider: "anthropic", APIKey: "k", RequestsPerSecond: 5, Burst: 5}, ProviderAnthropic, false},
		{"openai", config.LLMConfig{Provider: "openai", APIKey: "k"}, ProviderOpenAI, false},
		{"genai", config.LLMConfig{Provider: "genai", BaseURL: "http://localhost:9"}, ProviderGenAI, false},
		{"unknown", config.LLMConfig{Provider: "bard"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg, log)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, c.Provider())
		})
	}
}

func TestUnavailable(t *testing.T) {
	c, err := New(config.LLMConfig{Provider: ProviderNone}, logger.NewTestLogger(t))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), Request{UserMessage: "oi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeLLMCallFailed, stdErr.Code)
}

func TestInstrumented_Timeout(t *testing.T) {
	slow := CompleterFunc(func(ctx context.Context, _ Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	c := NewInstrumented(slow, 20*time.Millisecond, logger.NewTestLogger(t))

	_, err := c.Complete(context.Background(), Request{})
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeLLMTimeout, stdErr.Code)
}

func TestInstrumented_Success(t *testing.T) {
	ok := CompleterFunc(func(_ context.Context, req Request) (string, error) {
		return "eco: " + req.UserMessage, nil
	})
	c := NewInstrumented(ok, time.Second, nil)

	text, err := c.Complete(context.Background(), Request{UserMessage: "frete"})
	require.NoError(t, err)
	assert.Equal(t, "eco: frete", text)
	assert.Equal(t, "func", c.Provider())
}

func TestRateLimited_RespectsContext(t *testing.T) {
	calls := int32(0)
	inner := CompleterFunc(func(context.Context, Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "ok", nil
	})
	c := NewRateLimited(inner, 0.001, 1)

	_, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Complete(ctx, Request{})
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenAICompleter_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ai/generate", r.URL.Path)

		var body genAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Você é um analista de fretes.", body.SystemPrompt)
		assert.Equal(t, "Quanto custou o frete?", body.Prompt)
		assert.Equal(t, 300, body.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(genAIResponse{Text: "  R$ 1.200,00 em outubro  ", Confidence: 0.8})
	}))
	defer server.Close()

	c := NewGenAICompleter(server.URL+"/", "", time.Second, 0)
	text, err := c.Complete(context.Background(), Request{
		SystemPrompt: "Você é um analista de fretes.",
		UserMessage:  "Quanto custou o frete?",
		MaxTokens:    300,
	})
	require.NoError(t, err)
	assert.Equal(t, "R$ 1.200,00 em outubro", text)
}

func TestGenAICompleter_RetriesThenSucceeds(t *testing.T) {
	attempts := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(genAIResponse{Text: "ok"})
	}))
	defer server.Close()

	c := NewGenAICompleter(server.URL, "", time.Second, 2)
	text, err := c.Complete(context.Background(), Request{UserMessage: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestGenAICompleter_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name:    "bad status",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			wantErr: ErrGenAIStatus,
		},
		{
			name: "empty text",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(genAIResponse{Text: "   "})
			},
			wantErr: ErrEmptyResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewGenAICompleter(server.URL, "", time.Second, 1).Complete(context.Background(), Request{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
