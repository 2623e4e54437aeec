package agentruntime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/therenovatio/teleton/internal/agentproviders"
	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
	"github.com/therenovatio/teleton/internal/memorysystem"
	"github.com/therenovatio/teleton/internal/store"
	"github.com/therenovatio/teleton/internal/toolindex"
	"github.com/therenovatio/teleton/internal/toolregistry"
	"github.com/therenovatio/teleton/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxToolIterations caps how many tool-call round trips one
// turn may take; a turn that reaches the cap without a plain-text
// reply fails with an LLM error.
const DefaultMaxToolIterations = 5

// MinToolIterations and MaxToolIterationsCeiling bound the configurable range.
const (
	MinToolIterations        = 1
	MaxToolIterationsCeiling = 50
)

// HistoryWindow is how many recent messages are loaded for context
// hydration before the compaction check runs.
const HistoryWindow = 200

// Config configures a Runtime.
type Config struct {
	MaxToolIterations int
	SystemPrompt      string
	Logger            *slog.Logger
	Tracer            *tracing.Tracer
}

// Runtime executes one turn at a time for a chat: hydrate context,
// call the model, dispatch any requested tools, repeat until the
// model replies with plain text or the iteration cap is hit.
type Runtime struct {
	store  *store.Store
	llm    agentproviders.Client
	tools  *toolregistry.Registry
	index  *toolindex.Index
	memory *memorysystem.System
	cfg    Config
	cfgMu  sync.RWMutex
	logger *slog.Logger
}

// New builds a Runtime from its collaborators.
func New(st *store.Store, llm agentproviders.Client, tools *toolregistry.Registry, index *toolindex.Index, memory *memorysystem.System, cfg Config) *Runtime {
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = DefaultMaxToolIterations
	}
	if cfg.MaxToolIterations < MinToolIterations {
		cfg.MaxToolIterations = MinToolIterations
	}
	if cfg.MaxToolIterations > MaxToolIterationsCeiling {
		cfg.MaxToolIterations = MaxToolIterationsCeiling
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runtime{store: st, llm: llm, tools: tools, index: index, memory: memory, cfg: cfg, logger: cfg.Logger}
}

// UpdateTurnConfig swaps in a freshly reloaded system prompt and
// iteration cap, taking effect on the next turn. Called from a config
// file watcher; does not touch the store, LLM client, or tracer.
func (r *Runtime) UpdateTurnConfig(systemPrompt string, maxToolIterations int) {
	if maxToolIterations <= 0 {
		maxToolIterations = DefaultMaxToolIterations
	}
	if maxToolIterations < MinToolIterations {
		maxToolIterations = MinToolIterations
	}
	if maxToolIterations > MaxToolIterationsCeiling {
		maxToolIterations = MaxToolIterationsCeiling
	}

	r.cfgMu.Lock()
	defer r.cfgMu.Unlock()
	r.cfg.SystemPrompt = systemPrompt
	r.cfg.MaxToolIterations = maxToolIterations
}

func (r *Runtime) turnConfig() (systemPrompt string, maxToolIterations int) {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.cfg.SystemPrompt, r.cfg.MaxToolIterations
}

// RunTurn processes one batch of inbound messages for a chat: it
// appends them to the transcript, hydrates context, and drives the
// model/tool loop until a final reply is produced, which is appended
// to the transcript and returned.
func (r *Runtime) RunTurn(ctx context.Context, dc domain.DispatchContext, inbound []domain.Message) (string, error) {
	if r.cfg.Tracer != nil {
		var span trace.Span
		ctx, span = r.cfg.Tracer.Start(ctx, "agent.turn", attribute.String("chat_id", dc.ChatID))
		defer span.End()
	}

	sess, err := r.store.GetOrCreateSession(ctx, dc.ChatID)
	if err != nil {
		return "", err
	}

	for _, m := range inbound {
		if _, err := r.store.AppendMessage(ctx, m); err != nil {
			return "", err
		}
	}

	if err := r.maybeCompact(ctx, sess); err != nil {
		r.logger.Error("compaction failed", "chat_id", dc.ChatID, "error", err)
	}

	history, err := r.store.GetHistory(ctx, dc.ChatID, HistoryWindow)
	if err != nil {
		return "", err
	}

	systemPrompt, err := r.buildSystemPrompt(ctx, dc, sess)
	if err != nil {
		return "", err
	}

	relevantTools, err := r.relevantToolDefs(ctx, dc, inbound)
	if err != nil {
		return "", err
	}

	reply, err := r.loop(ctx, dc, systemPrompt, history, relevantTools)
	if err != nil {
		return "", err
	}

	if _, err := r.store.AppendMessage(ctx, domain.Message{
		ChatID: dc.ChatID,
		Role:   domain.RoleAssistant,
		Text:   reply,
	}); err != nil {
		return "", err
	}
	return reply, nil
}

// loop drives the model/tool-call cycle up to MaxToolIterations times.
func (r *Runtime) loop(ctx context.Context, dc domain.DispatchContext, systemPrompt string, history []domain.Message, tools []domain.ToolDefinition) (string, error) {
	working := append([]domain.Message(nil), history...)
	_, maxToolIterations := r.turnConfig()

	for iter := 0; iter < maxToolIterations; iter++ {
		llmCtx := ctx
		var llmSpan trace.Span
		if r.cfg.Tracer != nil {
			llmCtx, llmSpan = r.cfg.Tracer.Start(ctx, "agent.llm_complete", attribute.Int("iteration", iter))
		}
		resp, err := r.llm.Complete(llmCtx, agentproviders.CompletionRequest{
			System:   systemPrompt,
			Messages: working,
			Tools:    tools,
		})
		if llmSpan != nil {
			llmSpan.End()
		}
		if err != nil {
			return "", err
		}

		if !resp.StopTool || len(resp.ToolCalls) == 0 {
			return resp.Text, nil
		}

		for _, call := range resp.ToolCalls {
			toolCtx := ctx
			var toolSpan trace.Span
			if r.cfg.Tracer != nil {
				toolCtx, toolSpan = r.cfg.Tracer.Start(ctx, "agent.tool_invoke", attribute.String("tool", call.Name))
			}
			result, err := r.tools.Invoke(toolCtx, dc, call.Name, json.RawMessage(call.Arguments))
			if toolSpan != nil {
				toolSpan.End()
			}
			var resultText string
			if err != nil {
				resultText = fmt.Sprintf("error: %v", err)
			} else {
				raw, _ := json.Marshal(result)
				resultText = string(raw)
			}
			working = append(working, domain.Message{
				ChatID:        dc.ChatID,
				Role:          domain.RoleTool,
				Text:          resultText,
				ToolResultFor: call.ID,
				Timestamp:     time.Now().UTC(),
			})
		}
	}

	return "", errkind.New(errkind.LLM, fmt.Sprintf("exceeded %d tool iterations without a final reply", maxToolIterations), nil)
}

// relevantToolDefs resolves which tool definitions to offer the model
// this turn: the index's always-include set plus whatever the index's
// hybrid search surfaces for the inbound text, filtered by scope.
func (r *Runtime) relevantToolDefs(ctx context.Context, dc domain.DispatchContext, inbound []domain.Message) ([]domain.ToolDefinition, error) {
	var query string
	for _, m := range inbound {
		query += m.Text + " "
	}

	names, err := r.index.Search(ctx, query, 20)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var out []domain.ToolDefinition
	for _, def := range r.tools.VisibleTools(dc) {
		if wanted[def.Name] || r.index.MatchesAlwaysInclude(def.Name) {
			out = append(out, def)
		}
	}
	return out, nil
}

// buildSystemPrompt composes the turn's system prompt: the configured
// base prompt plus recent memory-system notes, with no identity
// leakage beyond what the base prompt itself states.
func (r *Runtime) buildSystemPrompt(ctx context.Context, dc domain.DispatchContext, sess domain.Session) (string, error) {
	prompt, _ := r.turnConfig()
	if r.memory != nil {
		notes, err := r.memory.ReadRecent()
		if err == nil && notes != "" {
			prompt += "\n\nRecent notes:\n" + notes
		}
	}
	return prompt, nil
}

// maybeCompact folds old history into the session summary once the
// session crosses either compaction threshold.
func (r *Runtime) maybeCompact(ctx context.Context, sess domain.Session) error {
	history, err := r.store.GetHistory(ctx, sess.ChatID, CompactionMessageThreshold+1)
	if err != nil {
		return err
	}
	if !NeedsCompaction(history) {
		return nil
	}

	toSummarize, _ := SplitForCompaction(history)
	if len(toSummarize) == 0 {
		return nil
	}

	var joined string
	for _, m := range toSummarize {
		joined += string(m.Role) + ": " + m.Text + "\n"
	}

	summaryReq := agentproviders.CompletionRequest{
		System:   "Summarize the following conversation history concisely, preserving any facts, decisions, or commitments made.",
		Messages: []domain.Message{{Role: domain.RoleUser, Text: joined}},
	}

	compactCtx := ctx
	var compactSpan trace.Span
	if r.cfg.Tracer != nil {
		compactCtx, compactSpan = r.cfg.Tracer.Start(ctx, "agent.compact", attribute.String("chat_id", sess.ChatID))
	}
	resp, err := r.llm.Complete(compactCtx, summaryReq)
	if compactSpan != nil {
		compactSpan.End()
	}
	if err != nil {
		return errkind.New(errkind.LLM, "compaction summary failed", err)
	}

	sess.Summary = resp.Text
	return r.store.UpdateSession(ctx, sess)
}
