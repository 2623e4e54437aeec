package agentproviders

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
)

// DefaultOpenAIModel is used when a CompletionRequest leaves Model empty.
const DefaultOpenAIModel = openai.GPT4o

// DefaultEmbeddingModel is used for the memory system's vector channel.
const DefaultEmbeddingModel = openai.SmallEmbedding3

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	DefaultModel   string
	EmbeddingModel string
	Retry          RetryConfig
}

// OpenAIClient implements Client against the Chat Completions and
// Embeddings APIs.
type OpenAIClient struct {
	client         *openai.Client
	defaultModel   string
	embeddingModel string
	retry          RetryConfig
}

// NewOpenAIClient builds a client; APIKey is required.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errkind.New(errkind.Config, "openai API key is required", nil)
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultOpenAIModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(DefaultEmbeddingModel)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientCfg),
		defaultModel:   cfg.DefaultModel,
		embeddingModel: cfg.EmbeddingModel,
		retry:          cfg.Retry,
	}, nil
}

// Complete sends req as one non-streaming chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	messages := toOpenAIMessages(req.System, req.Messages)
	tools := toOpenAITools(req.Tools)

	var resp openai.ChatCompletionResponse
	err := withRetry(ctx, c.retry, isRetryableOpenAIError, func() error {
		r, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Tools:       tools,
			MaxTokens:   req.MaxTokens,
			Temperature: float32(req.Temperature),
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return CompletionResponse{}, errkind.New(errkind.LLM, "openai completion failed", err)
	}

	return fromOpenAIResponse(resp), nil
}

// Embed computes an embedding vector for text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp openai.EmbeddingResponse
	err := withRetry(ctx, c.retry, isRetryableOpenAIError, func() error {
		r, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: openai.EmbeddingModel(c.embeddingModel),
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, errkind.New(errkind.LLM, "openai embedding failed", err)
	}
	if len(resp.Data) == 0 {
		return nil, errkind.New(errkind.LLM, "openai returned no embedding data", nil)
	}
	return resp.Data[0].Embedding, nil
}

func toOpenAIMessages(system string, msgs []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case domain.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case domain.RoleTool:
			role = openai.ChatMessageRoleTool
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	return out
}

func toOpenAITools(defs []domain.ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		var params map[string]any
		if len(d.ParametersSchema) > 0 {
			_ = json.Unmarshal(d.ParametersSchema, &params)
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func fromOpenAIResponse(resp openai.ChatCompletionResponse) CompletionResponse {
	out := CompletionResponse{
		Usage: Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens},
	}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.Text = choice.Message.Content
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: []byte(tc.Function.Arguments),
		})
	}
	out.StopTool = len(out.ToolCalls) > 0
	return out
}

func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.APIError
	if strings.Contains(err.Error(), "429") {
		return true
	}
	if asAPIError(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= 500
	}
	return true
}

func asAPIError(err error, target **openai.APIError) bool {
	apiErr, ok := err.(*openai.APIError)
	if !ok {
		return false
	}
	*target = apiErr
	return true
}
