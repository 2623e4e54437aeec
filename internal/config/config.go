// Package config loads teleton.yaml into a typed Config, applying
// TELETON_*/ANTHROPIC_*/OPENAI_*/TELEGRAM_* environment overrides
// after the YAML decode.
//
// Grounded on a prior internal/config package's section-struct layout
// (Config embedding one struct per concern), its yaml.v3 decode with
// KnownFields(true), and its applyEnvOverrides pass, narrowed from
// that package's ~20 sections down to the handful this kernel needs.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/therenovatio/teleton/internal/errkind"
)

// Config is the root configuration loaded from teleton.yaml.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Agent   AgentConfig   `yaml:"agent"`
	Memory  MemoryConfig  `yaml:"memory"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig locates the embedded database file.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the webui control plane.
type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	StaticDir  string        `yaml:"static_dir"`
	JWTSecret  string        `yaml:"jwt_secret"`
	LoginToken string        `yaml:"login_token"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
}

// LLMConfig selects and authenticates the completion/embedding providers.
type LLMConfig struct {
	Provider       string `yaml:"provider"` // "anthropic" or "openai"
	AnthropicKey   string `yaml:"anthropic_api_key"`
	AnthropicModel string `yaml:"anthropic_model"`
	OpenAIKey      string `yaml:"openai_api_key"`
	OpenAIModel    string `yaml:"openai_model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// BridgeConfig configures the chat-platform adapter.
type BridgeConfig struct {
	Telegram TelegramBridgeConfig `yaml:"telegram"`
}

// TelegramBridgeConfig configures the reference Telegram bridge.
type TelegramBridgeConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Token        string   `yaml:"token"`
	AdminChatIDs []string `yaml:"admin_chat_ids"`
}

// AgentConfig tunes the turn procedure.
type AgentConfig struct {
	SystemPrompt      string   `yaml:"system_prompt"`
	MaxToolIterations int      `yaml:"max_tool_iterations"`
	DisabledTools     []string `yaml:"disabled_tools"`
}

// MemoryConfig locates the daily-log directory.
type MemoryConfig struct {
	LogsDir string `yaml:"logs_dir"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug|info|warn|error
}

// Load reads path as YAML, applies defaults, overlays environment
// variables, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.New(errkind.Config, "read config file", err)
	}

	cfg := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, errkind.New(errkind.Config, "parse config file", err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, errkind.New(errkind.Config, "expected a single YAML document", nil)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Path == "" {
		cfg.Store.Path = "teleton.db"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.TokenTTL == 0 {
		cfg.Server.TokenTTL = 24 * time.Hour
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.Agent.MaxToolIterations == 0 {
		cfg.Agent.MaxToolIterations = 5
	}
	if cfg.Memory.LogsDir == "" {
		cfg.Memory.LogsDir = "memory-logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides lets deployment secrets and ports come from the
// environment instead of the checked-in YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TELETON_STORE_PATH")); v != "" {
		cfg.Store.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("TELETON_SERVER_ADDR")); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("TELETON_STATIC_DIR")); v != "" {
		cfg.Server.StaticDir = v
	}
	if v := strings.TrimSpace(os.Getenv("TELETON_JWT_SECRET")); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("TELETON_LOGIN_TOKEN")); v != "" {
		cfg.Server.LoginToken = v
	}
	if v := strings.TrimSpace(os.Getenv("TELETON_TOKEN_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.TokenTTL = d
		}
	}

	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.LLM.AnthropicKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.LLM.OpenAIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("TELETON_LLM_PROVIDER")); v != "" {
		cfg.LLM.Provider = v
	}

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")); v != "" {
		cfg.Bridge.Telegram.Token = v
		cfg.Bridge.Telegram.Enabled = true
	}

	if v := strings.TrimSpace(os.Getenv("TELETON_MAX_TOOL_ITERATIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.MaxToolIterations = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("TELETON_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

func validate(cfg *Config) error {
	var issues []string

	switch cfg.LLM.Provider {
	case "anthropic":
		if cfg.LLM.AnthropicKey == "" {
			issues = append(issues, "llm.anthropic_api_key is required when llm.provider is anthropic")
		}
	case "openai":
		if cfg.LLM.OpenAIKey == "" {
			issues = append(issues, "llm.openai_api_key is required when llm.provider is openai")
		}
	default:
		issues = append(issues, fmt.Sprintf("llm.provider %q is not one of anthropic|openai", cfg.LLM.Provider))
	}

	if cfg.Agent.MaxToolIterations < 1 || cfg.Agent.MaxToolIterations > 50 {
		issues = append(issues, "agent.max_tool_iterations must be between 1 and 50")
	}

	if cfg.Bridge.Telegram.Enabled && cfg.Bridge.Telegram.Token == "" {
		issues = append(issues, "bridge.telegram.token is required when bridge.telegram.enabled is true")
	}

	if len(issues) == 0 {
		return nil
	}
	return errkind.New(errkind.Config, "invalid configuration:\n- "+strings.Join(issues, "\n- "), nil)
}
