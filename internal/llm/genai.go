package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	httpclient "github.com/Rafael-2109/frete-sistema-sub002/internal/common/http"
)

const genAIPath = "/api/ai/generate"

var ErrGenAIStatus = errors.New("GENAI_BAD_STATUS")

// GenAICompleter posts prompts to an internal generation service.
type GenAICompleter struct {
	baseURL    string
	model      string
	maxRetries int
	client     *httpclient.Client
}

func NewGenAICompleter(baseURL, model string, timeout time.Duration, maxRetries int) *GenAICompleter {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &GenAICompleter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		maxRetries: maxRetries,
		client:     httpclient.NewClient(timeout),
	}
}

func (c *GenAICompleter) Provider() string { return ProviderGenAI }

type genAIRequest struct {
	Model        string  `json:"model,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Prompt       string  `json:"prompt"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
}

type genAIResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Complete retries transport errors and non-200 answers with exponential
// backoff starting at 100ms.
func (c *GenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	payload := genAIRequest{
		Model:        c.model,
		SystemPrompt: req.SystemPrompt,
		Prompt:       req.UserMessage,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	}

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, lastErr = c.client.PostJSON(ctx, c.baseURL+genAIPath, payload)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d", ErrGenAIStatus, resp.StatusCode)
			resp = nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	defer resp.Body.Close()

	var out genAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode genai response: %w", err)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
