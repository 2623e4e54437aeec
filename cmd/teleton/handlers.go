package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/therenovatio/teleton/internal/agentproviders"
	"github.com/therenovatio/teleton/internal/agentruntime"
	"github.com/therenovatio/teleton/internal/bridge"
	"github.com/therenovatio/teleton/internal/config"
	"github.com/therenovatio/teleton/internal/cronmgr"
	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/lifecycle"
	"github.com/therenovatio/teleton/internal/memorysystem"
	"github.com/therenovatio/teleton/internal/metrics"
	"github.com/therenovatio/teleton/internal/sessionscheduler"
	"github.com/therenovatio/teleton/internal/store"
	"github.com/therenovatio/teleton/internal/toolindex"
	"github.com/therenovatio/teleton/internal/toolregistry"
	"github.com/therenovatio/teleton/internal/tracing"
	"github.com/therenovatio/teleton/internal/webauth"
	"github.com/therenovatio/teleton/internal/webui"
)

// buildLLMClient selects and constructs the configured completion and
// embedding provider.
func buildLLMClient(cfg *config.Config) (agentproviders.Client, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return agentproviders.NewOpenAIClient(agentproviders.OpenAIConfig{
			APIKey:         cfg.LLM.OpenAIKey,
			DefaultModel:   cfg.LLM.OpenAIModel,
			EmbeddingModel: cfg.LLM.EmbeddingModel,
		})
	default:
		return agentproviders.NewAnthropicClient(agentproviders.AnthropicConfig{
			APIKey:       cfg.LLM.AnthropicKey,
			DefaultModel: cfg.LLM.AnthropicModel,
		})
	}
}

// kernel bundles every long-lived collaborator runServe wires
// together, so Start/Stop can close over one value instead of a dozen.
type kernel struct {
	configPath string
	cfg        *config.Config
	st        *store.Store
	llm       agentproviders.Client
	tools     *toolregistry.Registry
	index     *toolindex.Index
	memory    *memorysystem.System
	cron      *cronmgr.Manager
	scheduler *sessionscheduler.Scheduler
	runtime   *agentruntime.Runtime
	br        bridge.Bridge
	tracer    *tracing.Tracer
	watcher   *config.Watcher
	logger    *slog.Logger
}

func buildKernel(ctx context.Context, configPath string, cfg *config.Config, logger *slog.Logger) (*kernel, error) {
	st, err := store.Open(ctx, cfg.Store.Path, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	llm, err := buildLLMClient(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build llm client: %w", err)
	}

	// Anthropic offers no embeddings: with that provider an OpenAIClient
	// serves the vector channel when an OpenAI key is set; otherwise the
	// tool index and memory system search by keyword only.
	var embedder agentproviders.Client
	if cfg.LLM.Provider == "openai" {
		embedder = llm
	} else if cfg.LLM.OpenAIKey != "" {
		oc, err := agentproviders.NewOpenAIClient(agentproviders.OpenAIConfig{APIKey: cfg.LLM.OpenAIKey, EmbeddingModel: cfg.LLM.EmbeddingModel})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("build embedding client: %w", err)
		}
		embedder = oc
	}

	tools := toolregistry.New()
	index := toolindex.New(st, embedder, nil)
	mem := memorysystem.New(st, embedder, cfg.Memory.LogsDir)
	cron := cronmgr.New(st, cronmgr.WithLogger(logger))
	tracer := tracing.New("teleton")

	rt := agentruntime.New(st, llm, tools, index, mem, agentruntime.Config{
		MaxToolIterations: cfg.Agent.MaxToolIterations,
		SystemPrompt:      cfg.Agent.SystemPrompt,
		Logger:            logger,
		Tracer:            tracer,
	})

	k := &kernel{
		configPath: configPath, cfg: cfg, st: st, llm: llm, tools: tools, index: index,
		memory: mem, cron: cron, runtime: rt, tracer: tracer, logger: logger,
	}

	k.scheduler = sessionscheduler.New(500*time.Millisecond, k.runTurn, sessionscheduler.WithLogger(logger))

	if cfg.Bridge.Telegram.Enabled {
		admins := make(map[string]bool, len(cfg.Bridge.Telegram.AdminChatIDs))
		for _, id := range cfg.Bridge.Telegram.AdminChatIDs {
			admins[id] = true
		}
		tb, err := bridge.NewTelegramBridge(bridge.TelegramConfig{
			Token:        cfg.Bridge.Telegram.Token,
			AdminChatIDs: admins,
			Logger:       logger,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("build telegram bridge: %w", err)
		}
		k.br = tb
	}

	return k, nil
}

// runTurn is the sessionscheduler.TurnFunc: it folds one coalesced
// batch of inbound messages for a chat into a single agent turn and,
// if a bridge is attached, sends the reply back.
func (k *kernel) runTurn(ctx context.Context, chatID string, batch []sessionscheduler.Inbound) error {
	if len(batch) == 0 {
		return nil
	}
	dc := batch[0].Dispatch
	inbound := make([]domain.Message, 0, len(batch))
	for _, item := range batch {
		inbound = append(inbound, item.Message)
	}

	reply, err := k.runtime.RunTurn(ctx, dc, inbound)
	if err != nil {
		k.logger.Error("turn failed", "chat_id", chatID, "error", err)
		return err
	}
	if k.br != nil && reply != "" {
		if err := k.br.Send(ctx, chatID, reply); err != nil {
			k.logger.Error("send reply failed", "chat_id", chatID, "error", err)
			return err
		}
	}
	return nil
}

// applyConfig installs a freshly loaded Config's tool-gating and
// turn-procedure settings into the running kernel, without touching
// the store, LLM client, or bridge connection.
func (k *kernel) applyConfig(cfg *config.Config) {
	k.cfg = cfg
	disabled := make(map[string]bool, len(cfg.Agent.DisabledTools))
	for _, name := range cfg.Agent.DisabledTools {
		disabled[name] = true
	}
	for _, def := range k.tools.Definitions() {
		k.tools.ApplyOverride(domain.ToolConfig{
			ToolName: def.Name,
			Enabled:  !disabled[def.Name],
		})
	}
	k.runtime.UpdateTurnConfig(cfg.Agent.SystemPrompt, cfg.Agent.MaxToolIterations)
	k.logger.Info("config reloaded", "disabled_tools", len(disabled))
}

func (k *kernel) start(ctx context.Context) error {
	if _, err := k.cron.Restore(ctx); err != nil {
		return fmt.Errorf("restore cron jobs: %w", err)
	}
	if err := k.cron.StartAll(ctx); err != nil {
		return fmt.Errorf("start cron jobs: %w", err)
	}
	if k.br != nil {
		go func() {
			err := k.br.Connect(ctx, func(ctx context.Context, msg domain.Message, dc domain.DispatchContext) {
				k.scheduler.Enqueue(sessionscheduler.Inbound{
					ChatID: dc.ChatID, Message: msg, Dispatch: dc, Timestamp: time.Now(),
				})
			})
			if err != nil && ctx.Err() == nil {
				k.logger.Error("bridge connect failed", "bridge", k.br.Name(), "error", err)
			}
		}()
	}

	watcher, err := config.Watch(k.configPath, k.applyConfig, k.logger)
	if err != nil {
		k.logger.Warn("config hot-reload disabled", "path", k.configPath, "error", err)
	} else {
		k.watcher = watcher
	}
	return nil
}

func (k *kernel) stop(ctx context.Context) error {
	if k.watcher != nil {
		_ = k.watcher.Close()
	}
	k.cron.StopAll()
	if k.br != nil {
		_ = k.br.Close()
	}
	k.scheduler.Shutdown(20 * time.Second)
	if k.tracer != nil {
		_ = k.tracer.Shutdown(ctx)
	}
	k.st.Close()
	return nil
}

// runServe implements the serve command: load config, build the
// kernel, wire it under a lifecycle supervisor, and serve the control
// plane until a shutdown signal arrives.
func runServe(ctx context.Context, configPath string, debug bool) error {
	var level slog.LevelVar
	if debug {
		level.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	logger.Info("starting teleton kernel", "version", version, "commit", commit, "config", configPath, "debug", debug)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !debug {
		if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
			logger.Warn("ignoring invalid logging level", "level", cfg.Logging.Level)
		}
	}

	k, err := buildKernel(ctx, configPath, cfg, logger)
	if err != nil {
		return fmt.Errorf("build kernel: %w", err)
	}

	sup := lifecycle.New(logger)
	sup.RegisterFuncs(k.start, k.stop)

	reg := metrics.New()
	auth := webauth.New(cfg.Server.JWTSecret, cfg.Server.TokenTTL)

	handler := webui.NewHandler(webui.Config{
		Supervisor: sup,
		Store:      k.st,
		Tools:      k.tools,
		Cron:       k.cron,
		Memory:     k.memory,
		Metrics:    reg,
		Auth:       auth,
		LoginToken: cfg.Server.LoginToken,
		StaticDir:  cfg.Server.StaticDir,
		Logger:     logger,
	})

	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: handler}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("start kernel: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("control plane listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("shutdown signal received, initiating graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if err := sup.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop kernel: %w", err)
	}

	logger.Info("teleton kernel stopped gracefully")
	return nil
}

// runMigrate opens the store (which applies migrations as a side
// effect of Open) and reports the resulting schema version, without
// standing up the rest of the kernel.
func runMigrate(ctx context.Context, cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "store %s migrated to schema version %s\n", cfg.Store.Path, store.SchemaVersion)
	return nil
}

// runStatus reports the configured store's coarse state without
// starting the bridge, cron jobs, or control plane.
func runStatus(ctx context.Context, cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	printStatusLine(out, "store", cfg.Store.Path)
	printStatusLine(out, "schema version", store.SchemaVersion)
	printStatusLine(out, "llm provider", cfg.LLM.Provider)
	printStatusLine(out, "control plane addr", cfg.Server.Addr)

	bridgeStatus := "disabled"
	if cfg.Bridge.Telegram.Enabled {
		bridgeStatus = "telegram enabled"
	}
	printStatusLine(out, "bridge", bridgeStatus)

	knowledgeCount, err := st.CountKnowledge(ctx)
	if err != nil {
		return fmt.Errorf("count knowledge: %w", err)
	}
	printStatusLine(out, "knowledge chunks", fmt.Sprintf("%d", knowledgeCount))

	return nil
}

func printStatusLine(out io.Writer, label, value string) {
	fmt.Fprintf(out, "%-20s %s\n", label+":", value)
}
