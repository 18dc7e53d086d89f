package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestSetDefaults(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	if c.LLM.Remote.Model != "gpt-4o" {
		t.Fatalf("expected gpt-4o, got %s", c.LLM.Remote.Model)
	}
	if c.LLM.Remote.MaxTokens != 2048 {
		t.Fatalf("expected 2048 max tokens, got %d", c.LLM.Remote.MaxTokens)
	}
	if c.Synth.Functional != 3 || c.Synth.Validation != 3 || c.Synth.BusinessRules != 2 || c.Synth.ErrorConditions != 2 {
		t.Fatalf("unexpected synth limits: %+v", c.Synth)
	}
	if c.Runner.CaseTimeoutSeconds != 10 || c.Runner.CallTimeoutSeconds != 30 {
		t.Fatalf("unexpected runner timeouts: %+v", c.Runner)
	}
	if c.Server.Port != 8000 {
		t.Fatalf("expected port 8000")
	}
	if c.Log.Level != "info" {
		t.Fatalf("expected info level")
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	yml := "llm:\n  remote:\n    model: gpt-4.1\n  local:\n    base_url: http://127.0.0.1:8080/v1\nsynth:\n  functional: 5\nserver:\n  port: 8080\noutput:\n  dir: ./out\n"
	if err := os.WriteFile(cfgPath, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Remote.Model != "gpt-4.1" {
		t.Fatalf("unexpected model %s", cfg.LLM.Remote.Model)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected port %d", cfg.Server.Port)
	}
	if cfg.Synth.Functional != 5 || cfg.Synth.Validation != 3 {
		t.Fatalf("unexpected synth limits: %+v", cfg.Synth)
	}
	if !cfg.LocalConfigured() {
		t.Fatalf("expected local model configured")
	}
	if cfg.RemoteConfigured() {
		t.Fatalf("expected remote not configured")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MODEL_PATH", "/models/llama.gguf")
	t.Setenv("FEATUREGEN_SERVER_PORT", "9090")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Remote.APIKey != "sk-test" {
		t.Fatalf("expected api key from env")
	}
	if cfg.LLM.Local.ModelPath != "/models/llama.gguf" {
		t.Fatalf("expected model path from env")
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port override, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	c.Output.Dir = t.TempDir()
	if err := c.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	c.Server.Port = 70000
	if err := c.ValidateServe(); err == nil {
		t.Fatalf("expected serve validation error")
	}
	c.Server.Port = 8000
	c.Synth.Validation = -1
	if err := c.Validate(); err == nil {
		t.Fatalf("expected negative limit error")
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := (LogConfig{Level: in}).SlogLevel(); got != want {
			t.Fatalf("level %q: got %v want %v", in, got, want)
		}
	}
}
