package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/featuregen/internal/config"
	"github.com/yourorg/featuregen/internal/feature"
	"github.com/yourorg/featuregen/internal/filter"
	"github.com/yourorg/featuregen/internal/store"
	"github.com/yourorg/featuregen/pkg/types"
)

var (
	ErrUnsupportedMethod = errors.New("unsupported HTTP method")
	ErrNoEndpoint        = errors.New("apiEndpoint is required")
	ErrTimeout           = errors.New("request timed out")
	ErrConnection        = errors.New("connection failed")
)

var supportedMethods = map[string]bool{"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true}

const logBodyChars = 200

// Engine sends scenario requests and collects their results.
type Engine struct {
	HTTPClient            *http.Client
	Redactor              *filter.Redactor
	Store                 store.Store
	Logger                *slog.Logger
	CaseTimeout           time.Duration
	CallTimeout           time.Duration
	ResponseTimeThreshold time.Duration
	PreviewChars          int
	NewID                 func() string
}

// NewEngine builds an Engine from the runner settings.
func NewEngine(cfg config.RunnerConfig, redactor *filter.Redactor, st store.Store, logger *slog.Logger) *Engine {
	return &Engine{
		HTTPClient:            &http.Client{},
		Redactor:              redactor,
		Store:                 st,
		Logger:                logger,
		CaseTimeout:           time.Duration(cfg.CaseTimeoutSeconds) * time.Second,
		CallTimeout:           time.Duration(cfg.CallTimeoutSeconds) * time.Second,
		ResponseTimeThreshold: time.Duration(cfg.ResponseTimeThresholdMs) * time.Millisecond,
		PreviewChars:          cfg.ResponsePreviewChars,
	}
}

// credentials selects the Authorization header of a request.
type credentials struct {
	Username string
	Password string
	Token    string
}

func credentialsOf(req types.ExecRequest) credentials {
	return credentials{Username: req.Username, Password: req.Password, Token: req.Token}
}

// outbound is one fully resolved request.
type outbound struct {
	Method  string
	URL     string
	Body    any
	Headers map[string]string
	Accept  string
	Auth    credentials
}

type response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	Elapsed    time.Duration
}

// Run executes the generated cases of base, or the default battery when it
// carries none. Failures of single scenarios are recorded as results.
func (e *Engine) Run(ctx context.Context, base types.ExecRequest) (*types.ResultsSummary, error) {
	if strings.TrimSpace(base.APIEndpoint) == "" {
		return nil, ErrNoEndpoint
	}
	base.Method = strings.ToUpper(strings.TrimSpace(base.Method))
	if base.Method == "" {
		base.Method = "GET"
	}
	if !supportedMethods[base.Method] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, base.Method)
	}

	summary := &types.ResultsSummary{RunID: e.newID(), StartedAt: time.Now().UTC()}
	cases := feature.Ingest(base.GeneratedTestCases, e.logger())
	if len(cases) > 0 {
		summary.ExecutionType = types.ExecParsedScenarios
		summary.FeatureFile = ParsedFeature(cases, base.APIEndpoint)
		for _, tc := range cases {
			summary.TestResults = append(summary.TestResults, e.runCase(ctx, Interpret(tc, base), base))
		}
	} else {
		summary.ExecutionType = types.ExecDefaultScenarios
		summary.TestResults = e.runBattery(ctx, base)
		summary.FeatureFile = BatteryFeature(summary.TestResults, base.APIEndpoint)
	}
	summary.Summary = Summarize(summary.TestResults)

	e.logger().Info("automation run complete",
		"run_id", summary.RunID, "type", summary.ExecutionType,
		"total", summary.Summary.Total, "passed", summary.Summary.Passed, "failed", summary.Summary.Failed)
	e.persist(base, summary)
	return summary, nil
}

// Summarize counts results; the rate is "0%" for an empty run.
func Summarize(results []types.ExecutionResult) types.Summary {
	s := types.Summary{Total: len(results)}
	for _, r := range results {
		if r.Status == types.StatusPassed {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	if s.Total == 0 {
		s.SuccessRate = "0%"
	} else {
		s.SuccessRate = fmt.Sprintf("%.1f%%", float64(s.Passed)/float64(s.Total)*100)
	}
	return s
}

// Call performs exactly one request and returns the full response body.
func (e *Engine) Call(ctx context.Context, req types.ExecRequest) (*types.CallResult, error) {
	if strings.TrimSpace(req.APIEndpoint) == "" {
		return nil, ErrNoEndpoint
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = "GET"
	}
	o := outbound{
		Method: method,
		URL:    withResourceID(req.APIEndpoint, method, req.ResourceID),
		Accept: req.AcceptHeader,
		Auth:   credentialsOf(req),
	}
	if req.Body != "" {
		o.Body = req.Body
	}
	resp, err := e.send(ctx, o, e.CallTimeout)
	if err != nil {
		return nil, err
	}
	return &types.CallResult{StatusCode: resp.StatusCode, Response: formatBody(resp.Body, 0)}, nil
}

func (e *Engine) runCase(ctx context.Context, p ExecParams, base types.ExecRequest) types.ExecutionResult {
	o := outbound{
		Method:  p.Method,
		URL:     p.URL,
		Body:    p.Body,
		Headers: p.Headers,
		Accept:  base.AcceptHeader,
		Auth:    credentialsOf(base),
	}
	res := types.ExecutionResult{
		Scenario:       p.Scenario,
		Details:        p.Details,
		ExpectedResult: fmt.Sprintf("Status %d", p.ExpectedStatus),
		TestData:       p.TestData,
		KarateStep:     e.karateStep(o, p.ExpectedStatus),
		Curl:           e.curl(o),
	}
	if !hasBody(o.Method) {
		o.Body = nil
	}

	resp, err := e.send(ctx, o, e.CaseTimeout)
	if err != nil {
		return failed(res, err)
	}
	res.DurationMs = resp.Elapsed.Milliseconds()
	res.StatusCode = resp.StatusCode
	res.ActualResult = fmt.Sprintf("Status %d", resp.StatusCode)
	res.Response = formatBody(resp.Body, e.previewChars())
	res.Status = types.StatusFailed
	if Passed(p.ExpectedStatus, resp.StatusCode) {
		res.Status = types.StatusPassed
	}
	return res
}

func failed(res types.ExecutionResult, err error) types.ExecutionResult {
	res.Status = types.StatusFailed
	res.StatusCode = 0
	res.ActualResult = "Error"
	res.Response = "Error: " + err.Error()
	res.Details = "Execution error: " + err.Error()
	return res
}

// send builds, logs and performs o. Transport failures are wrapped in
// ErrTimeout or ErrConnection.
func (e *Engine) send(ctx context.Context, o outbound, timeout time.Duration) (*response, error) {
	method := strings.ToUpper(o.Method)
	if !supportedMethods[method] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, o.Method)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var payload []byte
	if hasBody(method) && o.Body != nil {
		var err error
		if payload, err = encodeBody(o.Body); err != nil {
			return nil, err
		}
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, o.URL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.Accept != "" {
		req.Header.Set("Accept", o.Accept)
	}
	for k, v := range o.Headers {
		req.Header.Set(k, v)
	}
	applyAuth(req, o.Auth)

	e.logger().Info("outbound request",
		"method", method, "url", o.URL,
		"headers", e.redactor().Headers(req.Header),
		"body", clip(e.redactor().Body(string(payload)), logBodyChars))

	client := e.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}
	elapsed := time.Since(start)
	e.logger().Debug("response received", "status", resp.StatusCode, "elapsed_ms", elapsed.Milliseconds(), "bytes", len(data))
	return &response{StatusCode: resp.StatusCode, Body: data, Header: resp.Header, Elapsed: elapsed}, nil
}

// encodeBody sends strings verbatim (JSON or raw text) and marshals
// everything else.
func encodeBody(body any) ([]byte, error) {
	if s, ok := body.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(body)
}

func applyAuth(req *http.Request, c credentials) {
	if c.Username != "" && c.Password != "" {
		req.SetBasicAuth(c.Username, c.Password)
		return
	}
	if c.Token != "" {
		req.Header.Set("Authorization", authorizationValue(c.Token))
	}
}

func authorizationValue(token string) string {
	token = strings.TrimSpace(token)
	for _, scheme := range []string{"Basic ", "Bearer ", "Digest "} {
		if strings.HasPrefix(token, scheme) {
			return token
		}
	}
	return "Bearer " + token
}

func classifyTransport(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return err
}

// formatBody pretty-prints JSON bodies; limit > 0 truncates the text.
func formatBody(data []byte, limit int) string {
	text := string(data)
	var pretty bytes.Buffer
	if json.Valid(data) && json.Indent(&pretty, data, "", "  ") == nil {
		text = pretty.String()
	}
	if limit > 0 && len([]rune(text)) > limit {
		return string([]rune(text)[:limit]) + "..."
	}
	return text
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (e *Engine) persist(base types.ExecRequest, s *types.ResultsSummary) {
	if e.Store == nil {
		return
	}
	rec := &types.RunRecord{
		ID:            s.RunID,
		Endpoint:      base.APIEndpoint,
		Method:        base.Method,
		ExecutionType: s.ExecutionType,
		Total:         s.Summary.Total,
		Passed:        s.Summary.Passed,
		Failed:        s.Summary.Failed,
		SuccessRate:   s.Summary.SuccessRate,
		Results:       s.TestResults,
		CreatedAt:     s.StartedAt,
	}
	if err := e.Store.SaveRun(rec); err != nil {
		e.logger().Warn("persist run failed", "run_id", s.RunID, "err", err)
	}
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e *Engine) previewChars() int {
	if e.PreviewChars > 0 {
		return e.PreviewChars
	}
	return 500
}

func (e *Engine) threshold() time.Duration {
	if e.ResponseTimeThreshold > 0 {
		return e.ResponseTimeThreshold
	}
	return 3 * time.Second
}

func (e *Engine) redactor() *filter.Redactor {
	if e.Redactor != nil {
		return e.Redactor
	}
	return filter.NewRedactor(filter.SanitizeConfig{Headers: []string{"Authorization"}})
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
