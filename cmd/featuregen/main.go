package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/featuregen/internal/config"
	"github.com/yourorg/featuregen/internal/filter"
	"github.com/yourorg/featuregen/internal/generator"
	"github.com/yourorg/featuregen/internal/runner"
	"github.com/yourorg/featuregen/internal/store"
)

var version = "dev"

const defaultConfigContent = `llm:
  remote:
    provider: "openai"
    api_key: ""
    base_url: "https://api.openai.com/v1"
    model: "gpt-4o"
    max_tokens: 2048
    temperature: 0.7
    top_p: 0.9
    timeout_seconds: 60
    probe_timeout_seconds: 10
  local:
    base_url: ""
    model_path: ""
    max_tokens: 2048
    context_size: 2048
    timeout_seconds: 120

synth:
  functional: 3
  validation: 3
  business_rules: 2
  error_conditions: 2

runner:
  case_timeout_seconds: 10
  call_timeout_seconds: 30
  response_time_threshold_ms: 3000
  response_preview_chars: 500

output:
  dir: "./output"

sanitize:
  headers:
    - Authorization
    - Cookie
    - Set-Cookie
    - X-Api-Key
    - X-Auth-Token
  body_fields:
    - password
    - secret
    - token
    - api_key
    - access_token
    - refresh_token
    - credential
  replacement: "***REDACTED***"

report:
  s3:
    bucket: ""
    region: "us-east-1"
    prefix: "reports"

server:
  host: "127.0.0.1"
  port: 8000
  cors_origin: ""

log:
  level: "info"
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every command.
type globals struct {
	cfgPath string
	debug   bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "featuregen",
		Short:         "Generate and run API test scenarios from requirements",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.cfgPath, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug output")

	root.AddCommand(newInitCmd())
	root.AddCommand(newServeCmd(g))
	root.AddCommand(newGenerateCmd(g))
	root.AddCommand(newValidateCmd())
	root.AddCommand(newParseCmd())
	root.AddCommand(newRunCmd(g))
	root.AddCommand(newStatusCmd(g))
	root.AddCommand(newHistoryCmd(g))
	root.AddCommand(newMCPCmd(g))

	return root
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize ~/.featuregen directory and default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseDir, err := config.DefaultHomeDir()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(baseDir, 0o755); err != nil {
				return err
			}

			cfgFile := filepath.Join(baseDir, "config.yaml")
			if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(cfgFile, []byte(defaultConfigContent), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", cfgFile)
			} else if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "exists", cfgFile)
			} else {
				return err
			}

			dbPath := filepath.Join(baseDir, "featuregen.db")
			s, err := store.NewSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "database ready", dbPath)
			fmt.Fprintln(cmd.OutOrStdout(), "set llm.remote.api_key or llm.local.base_url in", cfgFile, "to enable model generation")
			return nil
		},
	}
}

// app is the wiring shared by the commands that touch the pipeline.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.SQLiteStore
}

func loadApp(g *globals) (*app, error) {
	cfg, err := config.Load(g.cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level := cfg.Log.SlogLevel()
	if g.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &app{cfg: cfg, logger: logger, store: st}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) capabilities(ctx context.Context) generator.Capabilities {
	return generator.Detect(ctx, a.cfg.LLM, &http.Client{Timeout: 30 * time.Second}, a.logger)
}

func (a *app) controller(ctx context.Context) *generator.Controller {
	return generator.NewController(a.cfg, a.capabilities(ctx), a.store, a.logger)
}

func (a *app) engine() *runner.Engine {
	return runner.NewEngine(a.cfg.Runner, filter.NewRedactor(a.cfg.Sanitize), a.store, a.logger)
}
