package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for codepilot.
type Config struct {
	General   GeneralConfig             `json:"general"`
	Providers map[string]ProviderConfig `json:"providers"`
	Agent     AgentConfig               `json:"agent"`
	Tools     ToolsConfig               `json:"tools"`
	Sessions  SessionsConfig            `json:"sessions"`
	Skills    SkillsConfig              `json:"skills"`
}

type GeneralConfig struct {
	Workspace       string `json:"workspace"`
	LogLevel        string `json:"logLevel"`
	DefaultProducer string `json:"defaultProducer"`
}

// ProviderConfig configures one reasoning back-end, keyed by producer name.
type ProviderConfig struct {
	Enabled        bool   `json:"enabled"`
	APIBase        string `json:"apiBase,omitempty"`
	APIKey         string `json:"apiKey,omitempty"`
	DefaultModel   string `json:"defaultModel,omitempty"`
	EnableThinking bool   `json:"enableThinking,omitempty"`
}

// AgentConfig holds the run budget and prompt tuning.
type AgentConfig struct {
	MaxIterations       int     `json:"maxIterations"`
	MaxExecutionSeconds float64 `json:"maxExecutionSeconds"`
	StepDelayMs         int     `json:"stepDelayMs"`
	SystemPromptExtra   string  `json:"systemPromptExtra,omitempty"`
}

type ToolsConfig struct {
	Bash BashToolConfig `json:"bash"`
}

// BashToolConfig tunes the command-execution tool. The idle timeout is the
// maximum gap between consecutive output lines, not a total duration.
type BashToolConfig struct {
	IdleTimeoutSeconds int `json:"idleTimeoutSeconds"`
	GraceSeconds       int `json:"graceSeconds"`
}

type SessionsConfig struct {
	DBPath string `json:"dbPath"`
}

type SkillsConfig struct {
	Dir string `json:"dir,omitempty"`
}

// DefaultConfigDir returns the default config directory (~/.codepilot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codepilot"
	}
	return filepath.Join(home, ".codepilot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.Workspace = expandPath(cfg.General.Workspace)
	cfg.Sessions.DBPath = expandPath(cfg.Sessions.DBPath)
	cfg.Skills.Dir = expandPath(cfg.Skills.Dir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

func Validate(cfg *Config) error {
	if cfg.Agent.MaxIterations < 1 || cfg.Agent.MaxIterations > 500 {
		return fmt.Errorf("agent.maxIterations must be between 1 and 500, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.MaxExecutionSeconds <= 0 {
		return fmt.Errorf("agent.maxExecutionSeconds must be positive, got %v", cfg.Agent.MaxExecutionSeconds)
	}
	if cfg.Agent.StepDelayMs < 0 {
		return fmt.Errorf("agent.stepDelayMs cannot be negative, got %d", cfg.Agent.StepDelayMs)
	}
	if cfg.Tools.Bash.IdleTimeoutSeconds < 1 {
		return fmt.Errorf("tools.bash.idleTimeoutSeconds must be at least 1, got %d", cfg.Tools.Bash.IdleTimeoutSeconds)
	}
	if cfg.General.DefaultProducer != "" {
		if _, ok := cfg.Providers[cfg.General.DefaultProducer]; !ok {
			return fmt.Errorf("defaultProducer %q has no providers entry", cfg.General.DefaultProducer)
		}
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logLevel %q (use debug|info|warn|error)", cfg.General.LogLevel)
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
