// Package agentproviders defines the narrow LLM client contract the
// agent runtime depends on, plus concrete Anthropic and OpenAI
// implementations with retry and embedding support.
//
// Grounded on a prior internal/agent/providers package (AnthropicProvider/
// OpenAIProvider, AnthropicConfig/OpenAIConfig, exponential-backoff retry
// via BaseProvider.Retry), narrowed from that package's full streaming
// agent.LLMProvider interface down to the single blocking Complete/Embed
// contract this kernel's turn loop needs.
package agentproviders

import (
	"context"
	"math/rand"
	"time"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
)

// ToolCall is one function call the model wants executed mid-turn.
type ToolCall struct {
	ID        string
	Name      string
	Arguments []byte // raw JSON
}

// CompletionRequest is a single turn's worth of context sent to the model.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []domain.Message
	Tools       []domain.ToolDefinition
	MaxTokens   int
	Temperature float64
}

// CompletionResponse is the model's reply for one turn.
type CompletionResponse struct {
	Text      string
	ToolCalls []ToolCall
	StopTool  bool // true if the model stopped specifically to call a tool
	Usage     Usage
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Client is the contract the agent runtime and memory system depend
// on; AnthropicClient and OpenAIClient both satisfy it.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetryConfig controls the exponential backoff applied around
// Complete/Embed calls against a provider's API.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      float64 // fraction of the delay, e.g. 0.3 for +/-30%
}

// DefaultRetryConfig matches the turn loop's documented retry policy:
// up to 3 attempts, base delay 1s doubling each attempt, +/-30% jitter.
var DefaultRetryConfig = RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, Jitter: 0.3}

// withRetry runs op, retrying on errors for which isRetryable returns
// true, up to cfg.MaxAttempts total attempts.
func withRetry(ctx context.Context, cfg RetryConfig, isRetryable func(error) bool, op func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	var lastErr error
	delay := cfg.BaseDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if isRetryable != nil && !isRetryable(err) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			break
		}
		jittered := applyJitter(delay, cfg.Jitter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered):
		}
		delay *= 2
	}
	return errkind.New(errkind.LLM, "exhausted retries", lastErr)
}

func applyJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	delta := float64(d) * jitter
	offset := (rand.Float64()*2 - 1) * delta
	result := float64(d) + offset
	if result < 0 {
		result = 0
	}
	return time.Duration(result)
}
