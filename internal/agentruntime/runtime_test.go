package agentruntime

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/therenovatio/teleton/internal/agentproviders"
	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/store"
	"github.com/therenovatio/teleton/internal/toolindex"
	"github.com/therenovatio/teleton/internal/toolregistry"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teleton.db")
	s, err := store.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeClient is a scripted agentproviders.Client: each call to
// Complete returns the next response in responses, in order.
type fakeClient struct {
	responses []agentproviders.CompletionResponse
	calls     int
}

func (f *fakeClient) Complete(ctx context.Context, req agentproviders.CompletionRequest) (agentproviders.CompletionResponse, error) {
	if f.calls >= len(f.responses) {
		return agentproviders.CompletionResponse{Text: "done"}, nil
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func newTestRuntime(t *testing.T, client agentproviders.Client) *Runtime {
	t.Helper()
	st := openTestStore(t)
	tools := toolregistry.New()
	idx := toolindex.New(st, nil, []string{"core_*"})
	return New(st, client, tools, idx, nil, Config{SystemPrompt: "you are a test agent"})
}

func TestRunTurnReturnsPlainTextReply(t *testing.T) {
	client := &fakeClient{responses: []agentproviders.CompletionResponse{
		{Text: "hello there"},
	}}
	rt := newTestRuntime(t, client)

	dc := domain.DispatchContext{ChatID: "chat-1"}
	reply, err := rt.RunTurn(context.Background(), dc, []domain.Message{
		{ChatID: "chat-1", Role: domain.RoleUser, Text: "hi"},
	})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if reply != "hello there" {
		t.Fatalf("reply = %q, want %q", reply, "hello there")
	}

	history, err := rt.store.GetHistory(context.Background(), "chat-1", 10)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2 (user + assistant)", len(history))
	}
}

func TestRunTurnDispatchesToolCallThenReplies(t *testing.T) {
	tools := toolregistry.New()
	tools.Register(domain.ToolDefinition{
		Name:             "echo",
		Description:      "echoes input",
		ParametersSchema: []byte(`{"type":"object"}`),
		Category:         domain.ToolCategoryDataBearing,
		Module:           "core",
		Scope:            domain.ScopeAlways,
	}, func(ctx context.Context, dc domain.DispatchContext, params json.RawMessage) (any, error) {
		return map[string]string{"echoed": string(params)}, nil
	})

	client := &fakeClient{responses: []agentproviders.CompletionResponse{
		{
			StopTool: true,
			ToolCalls: []agentproviders.ToolCall{
				{ID: "call-1", Name: "echo", Arguments: []byte(`{}`)},
			},
		},
		{Text: "final answer"},
	}}

	st := openTestStore(t)
	idx := toolindex.New(st, nil, []string{"echo"})
	rt := New(st, client, tools, idx, nil, Config{SystemPrompt: "sys"})

	dc := domain.DispatchContext{ChatID: "chat-2"}
	reply, err := rt.RunTurn(context.Background(), dc, []domain.Message{
		{ChatID: "chat-2", Role: domain.RoleUser, Text: "use echo"},
	})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if reply != "final answer" {
		t.Fatalf("reply = %q, want %q", reply, "final answer")
	}
	if client.calls != 2 {
		t.Fatalf("client.calls = %d, want 2", client.calls)
	}
}

func TestLoopStopsAtMaxIterationsWithoutFinalReply(t *testing.T) {
	tools := toolregistry.New()
	tools.Register(domain.ToolDefinition{
		Name:             "loopy",
		Description:      "never stops",
		ParametersSchema: []byte(`{"type":"object"}`),
		Category:         domain.ToolCategoryDataBearing,
		Module:           "core",
		Scope:            domain.ScopeAlways,
	}, func(ctx context.Context, dc domain.DispatchContext, params json.RawMessage) (any, error) {
		return "ok", nil
	})

	alwaysLoop := agentproviders.CompletionResponse{
		StopTool:  true,
		ToolCalls: []agentproviders.ToolCall{{ID: "x", Name: "loopy", Arguments: []byte(`{}`)}},
	}
	client := &fakeClient{responses: []agentproviders.CompletionResponse{
		alwaysLoop, alwaysLoop, alwaysLoop, alwaysLoop, alwaysLoop, alwaysLoop,
	}}

	st := openTestStore(t)
	idx := toolindex.New(st, nil, []string{"loopy"})
	rt := New(st, client, tools, idx, nil, Config{MaxToolIterations: 2})

	_, err := rt.loop(context.Background(), domain.DispatchContext{ChatID: "chat-3"}, "sys", nil, nil)
	if err == nil {
		t.Fatal("expected error when iteration cap exceeded")
	}
}

func TestNewClampsMaxToolIterations(t *testing.T) {
	st := openTestStore(t)
	idx := toolindex.New(st, nil, nil)
	rt := New(st, &fakeClient{}, toolregistry.New(), idx, nil, Config{MaxToolIterations: 999})
	if rt.cfg.MaxToolIterations != MaxToolIterationsCeiling {
		t.Fatalf("MaxToolIterations = %d, want %d", rt.cfg.MaxToolIterations, MaxToolIterationsCeiling)
	}

	rt2 := New(st, &fakeClient{}, toolregistry.New(), idx, nil, Config{})
	if rt2.cfg.MaxToolIterations != DefaultMaxToolIterations {
		t.Fatalf("MaxToolIterations = %d, want default %d", rt2.cfg.MaxToolIterations, DefaultMaxToolIterations)
	}
}
