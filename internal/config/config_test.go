package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teleton.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: anthropic\n  anthropic_api_key: test-key\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "teleton.db" {
		t.Fatalf("expected default store path, got %q", cfg.Store.Path)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default server addr, got %q", cfg.Server.Addr)
	}
	if cfg.Agent.MaxToolIterations != 5 {
		t.Fatalf("expected default max tool iterations 5, got %d", cfg.Agent.MaxToolIterations)
	}
}

func TestLoadRejectsMissingLLMKey(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: anthropic\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing anthropic api key")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: anthropic\n  anthropic_api_key: test-key\nbogus_field: true\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestLoadRejectsMultiDocument(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: anthropic\n  anthropic_api_key: test-key\n---\nllm:\n  provider: openai\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for multi-document yaml")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: anthropic\n  anthropic_api_key: test-key\n")

	t.Setenv("TELETON_SERVER_ADDR", ":9090")
	t.Setenv("TELETON_MAX_TOOL_ITERATIONS", "10")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tg-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("expected env override addr, got %q", cfg.Server.Addr)
	}
	if cfg.Agent.MaxToolIterations != 10 {
		t.Fatalf("expected env override max tool iterations 10, got %d", cfg.Agent.MaxToolIterations)
	}
	if !cfg.Bridge.Telegram.Enabled || cfg.Bridge.Telegram.Token != "tg-token" {
		t.Fatalf("expected telegram bridge enabled with token from env, got %+v", cfg.Bridge.Telegram)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: anthropic\n  anthropic_api_key: test-key\n")

	reloaded := make(chan *Config, 1)
	w, err := Watch(path, func(cfg *Config) { reloaded <- cfg }, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	updated := "llm:\n  provider: anthropic\n  anthropic_api_key: test-key\nagent:\n  disabled_tools: [\"shell_exec\"]\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if len(cfg.Agent.DisabledTools) != 1 || cfg.Agent.DisabledTools[0] != "shell_exec" {
			t.Fatalf("expected reloaded config to carry disabled tools, got %+v", cfg.Agent.DisabledTools)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
