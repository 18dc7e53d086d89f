package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigRelPath = ".featuregen/config.yaml"

// RemoteLLMConfig configures the hosted chat-completions model.
type RemoteLLMConfig struct {
	Provider            string  `yaml:"provider"`
	APIKey              string  `yaml:"api_key"`
	BaseURL             string  `yaml:"base_url"`
	Model               string  `yaml:"model"`
	MaxTokens           int     `yaml:"max_tokens"`
	Temperature         float64 `yaml:"temperature"`
	TopP                float64 `yaml:"top_p"`
	TimeoutSeconds      int     `yaml:"timeout_seconds"`
	ProbeTimeoutSeconds int     `yaml:"probe_timeout_seconds"`
	MaxRetries          int     `yaml:"max_retries"`
}

// LocalLLMConfig configures a locally hosted completions server.
type LocalLLMConfig struct {
	BaseURL        string  `yaml:"base_url"`
	ModelPath      string  `yaml:"model_path"`
	Model          string  `yaml:"model"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	TopP           float64 `yaml:"top_p"`
	ContextSize    int     `yaml:"context_size"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type LLMConfig struct {
	Remote RemoteLLMConfig `yaml:"remote"`
	Local  LocalLLMConfig  `yaml:"local"`
}

// SynthConfig caps how many scenarios per category the deterministic
// synthesizer emits.
type SynthConfig struct {
	Functional      int `yaml:"functional"`
	Validation      int `yaml:"validation"`
	BusinessRules   int `yaml:"business_rules"`
	ErrorConditions int `yaml:"error_conditions"`
}

type RunnerConfig struct {
	CaseTimeoutSeconds      int `yaml:"case_timeout_seconds"`
	CallTimeoutSeconds      int `yaml:"call_timeout_seconds"`
	ResponseTimeThresholdMs int `yaml:"response_time_threshold_ms"`
	ResponsePreviewChars    int `yaml:"response_preview_chars"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type SanitizeConfig struct {
	Headers     []string `yaml:"headers"`
	BodyFields  []string `yaml:"body_fields"`
	Replacement string   `yaml:"replacement"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type ReportConfig struct {
	S3 S3Config `yaml:"s3"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Synth    SynthConfig    `yaml:"synth"`
	Runner   RunnerConfig   `yaml:"runner"`
	Output   OutputConfig   `yaml:"output"`
	Store    StoreConfig    `yaml:"store"`
	Sanitize SanitizeConfig `yaml:"sanitize"`
	Report   ReportConfig   `yaml:"report"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// Load loads YAML config, then .env, then applies env overrides.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		configPath = filepath.Join(home, defaultConfigRelPath)
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.SetDefaults()
	return cfg, nil
}

// DefaultHomeDir returns ~/.featuregen.
func DefaultHomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, filepath.Dir(defaultConfigRelPath)), nil
}

func (c *Config) SetDefaults() {
	r := &c.LLM.Remote
	if r.Provider == "" {
		r.Provider = "openai"
	}
	if r.BaseURL == "" {
		r.BaseURL = "https://api.openai.com/v1"
	}
	if r.Model == "" {
		r.Model = "gpt-4o"
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = 2048
	}
	if r.Temperature == 0 {
		r.Temperature = 0.7
	}
	if r.TopP == 0 {
		r.TopP = 0.9
	}
	if r.TimeoutSeconds == 0 {
		r.TimeoutSeconds = 60
	}
	if r.ProbeTimeoutSeconds == 0 {
		r.ProbeTimeoutSeconds = 10
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 1
	}

	l := &c.LLM.Local
	if l.MaxTokens == 0 {
		l.MaxTokens = 2048
	}
	if l.Temperature == 0 {
		l.Temperature = 0.7
	}
	if l.TopP == 0 {
		l.TopP = 0.9
	}
	if l.ContextSize == 0 {
		l.ContextSize = 2048
	}
	if l.TimeoutSeconds == 0 {
		l.TimeoutSeconds = 120
	}

	if c.Synth.Functional == 0 {
		c.Synth.Functional = 3
	}
	if c.Synth.Validation == 0 {
		c.Synth.Validation = 3
	}
	if c.Synth.BusinessRules == 0 {
		c.Synth.BusinessRules = 2
	}
	if c.Synth.ErrorConditions == 0 {
		c.Synth.ErrorConditions = 2
	}

	if c.Runner.CaseTimeoutSeconds == 0 {
		c.Runner.CaseTimeoutSeconds = 10
	}
	if c.Runner.CallTimeoutSeconds == 0 {
		c.Runner.CallTimeoutSeconds = 30
	}
	if c.Runner.ResponseTimeThresholdMs == 0 {
		c.Runner.ResponseTimeThresholdMs = 3000
	}
	if c.Runner.ResponsePreviewChars == 0 {
		c.Runner.ResponsePreviewChars = 500
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Store.Path == "" {
		if dir, err := DefaultHomeDir(); err == nil {
			c.Store.Path = filepath.Join(dir, "featuregen.db")
		} else {
			c.Store.Path = "featuregen.db"
		}
	}
	if len(c.Sanitize.Headers) == 0 {
		c.Sanitize.Headers = []string{"Authorization", "Cookie", "Set-Cookie", "X-Api-Key", "X-Auth-Token"}
	}
	if len(c.Sanitize.BodyFields) == 0 {
		c.Sanitize.BodyFields = []string{"password", "secret", "token", "api_key", "access_token", "refresh_token", "credential"}
	}
	if c.Sanitize.Replacement == "" {
		c.Sanitize.Replacement = "***REDACTED***"
	}
	if c.Report.S3.Region == "" {
		c.Report.S3.Region = "us-east-1"
	}
	if c.Report.S3.Prefix == "" {
		c.Report.S3.Prefix = "reports"
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Output.Dir) == "" {
		return errors.New("output.dir cannot be empty")
	}
	if err := ensureWritableDir(c.Output.Dir); err != nil {
		return fmt.Errorf("output.dir not writable: %w", err)
	}
	if c.Synth.Functional < 0 || c.Synth.Validation < 0 || c.Synth.BusinessRules < 0 || c.Synth.ErrorConditions < 0 {
		return errors.New("synth limits cannot be negative")
	}
	if c.Runner.CaseTimeoutSeconds < 0 || c.Runner.CallTimeoutSeconds < 0 {
		return errors.New("runner timeouts cannot be negative")
	}
	return nil
}

// ValidateServe enforces serve-specific requirements.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// RemoteConfigured reports whether a remote model key is present.
func (c *Config) RemoteConfigured() bool {
	return strings.TrimSpace(c.LLM.Remote.APIKey) != ""
}

// LocalConfigured reports whether a local model server is configured.
func (c *Config) LocalConfigured() bool {
	return strings.TrimSpace(c.LLM.Local.BaseURL) != ""
}

// SlogLevel maps log.level onto slog levels, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func applyEnvOverrides(c *Config) {
	setString(&c.LLM.Remote.APIKey, "OPENAI_API_KEY")
	setString(&c.LLM.Remote.BaseURL, "OPENAI_BASE_URL")
	setString(&c.LLM.Local.ModelPath, "MODEL_PATH")
	setString(&c.LLM.Local.BaseURL, "LOCAL_MODEL_URL")

	setString(&c.LLM.Remote.Provider, "FEATUREGEN_REMOTE_PROVIDER")
	setString(&c.LLM.Remote.APIKey, "FEATUREGEN_REMOTE_API_KEY")
	setString(&c.LLM.Remote.BaseURL, "FEATUREGEN_REMOTE_BASE_URL")
	setString(&c.LLM.Remote.Model, "FEATUREGEN_REMOTE_MODEL")
	setInt(&c.LLM.Remote.MaxTokens, "FEATUREGEN_REMOTE_MAX_TOKENS")
	setFloat(&c.LLM.Remote.Temperature, "FEATUREGEN_REMOTE_TEMPERATURE")
	setInt(&c.LLM.Remote.TimeoutSeconds, "FEATUREGEN_REMOTE_TIMEOUT_SECONDS")
	setString(&c.LLM.Local.BaseURL, "FEATUREGEN_LOCAL_BASE_URL")
	setString(&c.LLM.Local.Model, "FEATUREGEN_LOCAL_MODEL")
	setInt(&c.LLM.Local.ContextSize, "FEATUREGEN_LOCAL_CONTEXT_SIZE")
	setInt(&c.Runner.CaseTimeoutSeconds, "FEATUREGEN_RUNNER_CASE_TIMEOUT_SECONDS")
	setInt(&c.Runner.CallTimeoutSeconds, "FEATUREGEN_RUNNER_CALL_TIMEOUT_SECONDS")
	setString(&c.Output.Dir, "FEATUREGEN_OUTPUT_DIR")
	setString(&c.Store.Path, "FEATUREGEN_STORE_PATH")
	setString(&c.Report.S3.Bucket, "FEATUREGEN_REPORT_S3_BUCKET")
	setString(&c.Report.S3.Region, "FEATUREGEN_REPORT_S3_REGION")
	setString(&c.Report.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&c.Report.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.Server.Host, "FEATUREGEN_SERVER_HOST")
	setInt(&c.Server.Port, "FEATUREGEN_SERVER_PORT")
	setString(&c.Log.Level, "FEATUREGEN_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = n
		}
	}
}
