package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/yourorg/featuregen/internal/config"
)

// RemoteState is the startup probe outcome for the hosted model.
type RemoteState string

const (
	RemoteActive        RemoteState = "active"
	RemoteInactive      RemoteState = "inactive"
	RemoteQuotaExceeded RemoteState = "quota_exceeded"
	RemoteTimeout       RemoteState = "timeout"
	RemoteError         RemoteState = "error"
	RemoteNotConfigured RemoteState = "not_configured"
)

// LocalState is the readiness of the local model server.
type LocalState string

const (
	LocalReady         LocalState = "ready"
	LocalLoading       LocalState = "loading"
	LocalUnavailable   LocalState = "unavailable"
	LocalNotConfigured LocalState = "not_configured"
)

// Capabilities is detected once at startup and never mutated afterwards.
type Capabilities struct {
	Remote        RemoteState
	RemoteMessage string
	Local         LocalState
	LocalMessage  string
}

// RemoteAvailable reports whether the remote tier may be used.
func (c Capabilities) RemoteAvailable() bool { return c.Remote == RemoteActive }

// LocalAvailable reports whether the local tier may be used.
func (c Capabilities) LocalAvailable() bool { return c.Local == LocalReady }

// Detect probes the configured model backends.
func Detect(ctx context.Context, cfg config.LLMConfig, httpClient *http.Client, logger *slog.Logger) Capabilities {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	caps := Capabilities{}
	caps.Remote, caps.RemoteMessage = probeRemote(ctx, cfg.Remote, httpClient)
	caps.Local, caps.LocalMessage = probeLocal(ctx, cfg.Local, httpClient)
	logger.Info("model capabilities detected",
		"remote", caps.Remote, "remote_message", caps.RemoteMessage,
		"local", caps.Local, "local_message", caps.LocalMessage)
	return caps
}

func probeRemote(ctx context.Context, cfg config.RemoteLLMConfig, httpClient *http.Client) (RemoteState, string) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return RemoteNotConfigured, "No remote API key configured"
	}
	timeout := time.Duration(cfg.ProbeTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &Client{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		MaxTokens:  5,
		HTTPClient: httpClient,
	}
	if _, err := client.Chat(ctx, "", "Hello"); err != nil {
		return classifyProbe(err)
	}
	return RemoteActive, "Remote model API is active"
}

func classifyProbe(err error) (RemoteState, string) {
	var apiErr *APIError
	status := 0
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout"):
		return RemoteTimeout, "Remote API connection timeout"
	case status == http.StatusUnauthorized || strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid"):
		return RemoteInactive, "Remote API key is invalid or inactive"
	case strings.Contains(msg, "quota") || strings.Contains(msg, "billing"):
		return RemoteQuotaExceeded, "Remote API quota exceeded"
	}
	return RemoteError, fmt.Sprintf("Remote API error: %s", clipMessage(err.Error(), 100))
}

func probeLocal(ctx context.Context, cfg config.LocalLLMConfig, httpClient *http.Client) (LocalState, string) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		if cfg.ModelPath != "" {
			return LocalUnavailable, fmt.Sprintf("Model file %s configured but no local server URL", cfg.ModelPath)
		}
		return LocalNotConfigured, "No local model configured"
	}
	if cfg.ModelPath != "" {
		if _, err := os.Stat(cfg.ModelPath); err != nil {
			return LocalUnavailable, fmt.Sprintf("Model file not found: %s", cfg.ModelPath)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/v1")+"/health", nil)
	if err != nil {
		return LocalUnavailable, err.Error()
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return LocalUnavailable, fmt.Sprintf("Local model server unreachable: %s", clipMessage(err.Error(), 100))
	}
	_ = resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return LocalReady, "Local model is ready"
	case http.StatusServiceUnavailable:
		return LocalLoading, "Local model is loading"
	}
	return LocalUnavailable, fmt.Sprintf("Local model health check returned %d", resp.StatusCode)
}

// ComponentStatus is one row of the status table.
type ComponentStatus struct {
	Status    string `json:"status"`
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

// StatusReport is the JSON body served by /api-status.
type StatusReport struct {
	Remote        ComponentStatus `json:"remote"`
	Local         ComponentStatus `json:"local"`
	Deterministic ComponentStatus `json:"deterministic"`
	PrimaryMethod string          `json:"primary_method"`
	FallbackInfo  string          `json:"fallback_info"`
	TokenWarning  *string         `json:"token_warning"`
}

// Report summarizes the capabilities for display.
func (c Capabilities) Report() StatusReport {
	rep := StatusReport{
		Remote:        ComponentStatus{Status: string(c.Remote), Available: c.RemoteAvailable(), Message: c.RemoteMessage},
		Local:         ComponentStatus{Status: string(c.Local), Available: c.LocalAvailable(), Message: c.LocalMessage},
		Deterministic: ComponentStatus{Status: "ready", Available: true, Message: "Deterministic synthesis is always available"},
		TokenWarning:  c.TokenWarning(),
	}
	switch {
	case c.RemoteAvailable():
		rep.PrimaryMethod = "Tier 1: Remote Model API (Primary)"
		rep.FallbackInfo = "Fallback: Local Model -> Deterministic Synthesis"
	case c.LocalAvailable():
		rep.PrimaryMethod = "Tier 2: Local Model (Primary)"
		rep.FallbackInfo = "Fallback: Deterministic Synthesis"
	default:
		rep.PrimaryMethod = "Tier 3: Deterministic Synthesis (Primary)"
		rep.FallbackInfo = "No fallback needed - fully local"
	}
	return rep
}

// TokenWarning explains a degraded remote state, nil when there is none.
func (c Capabilities) TokenWarning() *string {
	var msg string
	switch c.Remote {
	case RemoteInactive:
		msg = "Remote API key inactive - refresh your API key"
	case RemoteQuotaExceeded:
		msg = "Remote API quota exceeded - check billing status"
	case RemoteTimeout:
		msg = "Remote API connectivity timeout detected"
	case RemoteError:
		msg = "Remote API connectivity issues detected"
	default:
		return nil
	}
	return &msg
}

func clipMessage(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
