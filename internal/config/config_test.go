package config

import (
	"os"
	"path/filepath"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_MaxIterations_TooLow(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.MaxIterations = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxIterations=0")
	}
}

func TestValidate_MaxIterations_TooHigh(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.MaxIterations = 999
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxIterations=999")
	}
}

func TestValidate_IdleTimeout_Zero(t *testing.T) {
	cfg := Defaults()
	cfg.Tools.Bash.IdleTimeoutSeconds = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for idleTimeoutSeconds=0")
	}
}

func TestValidate_UnknownDefaultProducer(t *testing.T) {
	cfg := Defaults()
	cfg.General.DefaultProducer = "nonexistent"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown defaultProducer")
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for bad logLevel")
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_Set(t *testing.T) {
	t.Setenv("CODEPILOT_TEST_KEY", "sk-123")
	got := ExpandEnvVars(`{"apiKey": "${CODEPILOT_TEST_KEY}"}`)
	want := `{"apiKey": "sk-123"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExpandEnvVars_DefaultValue(t *testing.T) {
	os.Unsetenv("CODEPILOT_UNSET_VAR")
	got := ExpandEnvVars(`${CODEPILOT_UNSET_VAR:-fallback}`)
	if got != "fallback" {
		t.Fatalf("got %q, want fallback", got)
	}
}

func TestExpandEnvVars_UnsetNoDefault_Preserved(t *testing.T) {
	os.Unsetenv("CODEPILOT_UNSET_VAR")
	input := "${CODEPILOT_UNSET_VAR}"
	if got := ExpandEnvVars(input); got != input {
		t.Fatalf("got %q, want original %q", got, input)
	}
}

// --- Load/Save round trip ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Defaults()
	cfg.Agent.MaxIterations = 42
	cfg.General.Workspace = dir
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Agent.MaxIterations != 42 {
		t.Errorf("maxIterations: got %d, want 42", loaded.Agent.MaxIterations)
	}
	if loaded.Tools.Bash.IdleTimeoutSeconds != 5 {
		t.Errorf("idleTimeoutSeconds: got %d, want 5", loaded.Tools.Bash.IdleTimeoutSeconds)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
