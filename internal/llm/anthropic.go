package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client *anthropic.Client
	model  anthropic.Model
}

func NewAnthropicCompleter(apiKey, model, baseURL string) *AnthropicCompleter {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return NewAnthropicCompleterFromClient(&client, model)
}

func NewAnthropicCompleterFromClient(client *anthropic.Client, model string) *AnthropicCompleter {
	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaude3_5Sonnet20241022
	}
	return &AnthropicCompleter{client: client, model: m}
}

func (c *AnthropicCompleter) Provider() string { return ProviderAnthropic }

func (c *AnthropicCompleter) Complete(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserMessage)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
