package agentproviders

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
)

// DefaultAnthropicModel is used when a CompletionRequest leaves Model empty.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Retry        RetryConfig
}

// AnthropicClient implements Client against the Anthropic Messages API.
type AnthropicClient struct {
	client       anthropic.Client
	defaultModel string
	retry        RetryConfig
}

// NewAnthropicClient builds a client; APIKey is required.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errkind.New(errkind.Config, "anthropic API key is required", nil)
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultAnthropicModel
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		retry:        cfg.Retry,
	}, nil
}

// Complete sends req as one non-streaming Messages.New call.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  toAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}

	var msg *anthropic.Message
	err := withRetry(ctx, c.retry, isRetryableAnthropicError, func() error {
		m, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return CompletionResponse{}, errkind.New(errkind.LLM, "anthropic completion failed", err)
	}

	return fromAnthropicMessage(msg), nil
}

// Embed is not offered by the Anthropic API and always returns an
// error; AnthropicClient is used for completion only. The kernel pairs
// it with an OpenAIClient for the vector channel when an OpenAI key is
// configured, and runs keyword-only search otherwise.
func (c *AnthropicClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errkind.New(errkind.LLM, "anthropic client does not support embeddings", nil)
}

func toAnthropicMessages(msgs []domain.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Text)
		switch m.Role {
		case domain.RoleUser, domain.RoleTool:
			out = append(out, anthropic.NewUserMessage(block))
		case domain.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(block))
		}
	}
	return out
}

func toAnthropicTools(tools []domain.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var properties map[string]any
		if len(t.ParametersSchema) > 0 {
			var schema struct {
				Properties map[string]any `json:"properties"`
			}
			if err := json.Unmarshal(t.ParametersSchema, &schema); err == nil {
				properties = schema.Properties
			}
		}
		out = append(out, anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{
			Properties: properties,
		}, t.Name))
	}
	return out
}

func fromAnthropicMessage(msg *anthropic.Message) CompletionResponse {
	resp := CompletionResponse{
		Usage: Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
		},
	}
	var text strings.Builder
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: variant.Input,
			})
			resp.StopTool = true
		}
	}
	resp.Text = text.String()
	return resp
}

func isRetryableAnthropicError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 529:
			return true
		}
		return false
	}
	return true // network/timeout errors without a status code are retried
}
