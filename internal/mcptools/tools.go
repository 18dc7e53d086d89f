// Package mcptools exposes the generation and execution pipeline as MCP
// tools over stdio.
package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/yourorg/featuregen/internal/analyzer"
	"github.com/yourorg/featuregen/internal/feature"
	"github.com/yourorg/featuregen/internal/generator"
	"github.com/yourorg/featuregen/internal/runner"
	"github.com/yourorg/featuregen/pkg/types"
)

// Tools holds the collaborators the tool handlers call into.
type Tools struct {
	Gen    *generator.Controller
	Engine *runner.Engine
}

// NewServer returns an MCP server with every tool registered.
func NewServer(t *Tools, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "featuregen",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_requirement",
		Description: "Extract categorized testable statements from a requirement document.",
	}, t.analyze)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_feature",
		Description: "Check Karate feature text for structural errors and warnings.",
	}, t.validate)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "parse_feature",
		Description: "Parse Karate feature text into structured test cases.",
	}, t.parse)
	if t.Gen != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "generate_feature",
			Description: "Generate Karate scenarios from a requirement using the available model tiers.",
		}, t.generate)
	}
	if t.Engine != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "run_feature",
			Description: "Execute feature text (or the default checks) against a live endpoint.",
		}, t.run)
	}
	return server
}

func textResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type RequirementInput struct {
	Requirement string `json:"requirement" jsonschema:"requirement document text"`
}

type AnalyzeOutput struct {
	Categories map[string][]string `json:"categories"`
	Enhanced   string              `json:"enhanced"`
}

func (t *Tools) analyze(_ context.Context, _ *mcp.CallToolRequest, in RequirementInput) (*mcp.CallToolResult, AnalyzeOutput, error) {
	if strings.TrimSpace(in.Requirement) == "" {
		return nil, AnalyzeOutput{}, generator.ErrNoRequirement
	}
	a := analyzer.Analyze(in.Requirement)
	out := AnalyzeOutput{Categories: make(map[string][]string, len(analyzer.Categories)), Enhanced: analyzer.EnhanceWith(a, in.Requirement)}
	total := 0
	for _, c := range analyzer.Categories {
		out.Categories[c.String()] = nonNil(a.Get(c))
		total += a.Count(c)
	}
	return textResult("analysis found %d statements", total), out, nil
}

type FeatureInput struct {
	Feature string `json:"feature" jsonschema:"Karate feature text"`
}

type ValidateOutput struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

func (t *Tools) validate(_ context.Context, _ *mcp.CallToolRequest, in FeatureInput) (*mcp.CallToolResult, ValidateOutput, error) {
	rep := feature.Validate(in.Feature)
	out := ValidateOutput{
		Valid:       rep.IsValid,
		Errors:      nonNil(rep.Errors),
		Warnings:    nonNil(rep.Warnings),
		Suggestions: nonNil(rep.Suggestions),
	}
	if !out.Valid {
		return textResult("feature invalid: %d error(s)", len(out.Errors)), out, nil
	}
	return textResult("feature is valid"), out, nil
}

type CaseOutput struct {
	Scenario       string   `json:"scenario"`
	Method         string   `json:"method"`
	Path           string   `json:"path"`
	ExpectedStatus int      `json:"expected_status"`
	Type           string   `json:"type"`
	Steps          []string `json:"steps"`
}

type ParseOutput struct {
	Count int          `json:"count"`
	Cases []CaseOutput `json:"cases"`
}

func (t *Tools) parse(_ context.Context, _ *mcp.CallToolRequest, in FeatureInput) (*mcp.CallToolResult, ParseOutput, error) {
	cases := feature.Parse(in.Feature)
	out := ParseOutput{Count: len(cases), Cases: make([]CaseOutput, 0, len(cases))}
	for _, tc := range cases {
		out.Cases = append(out.Cases, CaseOutput{
			Scenario:       tc.Scenario,
			Method:         tc.Method,
			Path:           tc.Path,
			ExpectedStatus: tc.ExpectedStatus,
			Type:           string(tc.Type),
			Steps:          nonNil(tc.Steps),
		})
	}
	return textResult("parsed %d scenario(s)", out.Count), out, nil
}

type GenerateInput struct {
	Requirement string `json:"requirement" jsonschema:"requirement document text"`
	Operation   string `json:"operation" jsonschema:"POSITIVE, NEGATIVE or BOTH"`
	APIEndpoint string `json:"api_endpoint,omitempty" jsonschema:"target endpoint URL"`
	APIMethod   string `json:"api_method,omitempty" jsonschema:"HTTP method every scenario must use"`
}

type GenerateOutput struct {
	ID        string   `json:"id"`
	Output    string   `json:"output"`
	Tier      string   `json:"tier"`
	TierLabel string   `json:"tier_label"`
	Operation string   `json:"operation"`
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors"`
	CreatedAt string   `json:"created_at"`
}

func (t *Tools) generate(ctx context.Context, _ *mcp.CallToolRequest, in GenerateInput) (*mcp.CallToolResult, GenerateOutput, error) {
	res, err := t.Gen.Generate(ctx, generator.Request{
		Requirement: in.Requirement,
		Operation:   in.Operation,
		APIContext:  types.APIContext{Endpoint: in.APIEndpoint, Method: in.APIMethod},
	})
	if err != nil {
		return nil, GenerateOutput{}, err
	}
	out := GenerateOutput{
		ID:        res.ID,
		Output:    res.Output,
		Tier:      string(res.Tier),
		TierLabel: res.TierLabel,
		Operation: string(res.Operation),
		Valid:     res.Validation.IsValid,
		Errors:    nonNil(res.Validation.Errors),
		CreatedAt: res.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	return textResult("generated with %s", res.TierLabel), out, nil
}

type RunInput struct {
	Endpoint string `json:"endpoint" jsonschema:"target endpoint URL"`
	Method   string `json:"method,omitempty" jsonschema:"HTTP method, GET when empty"`
	Feature  string `json:"feature,omitempty" jsonschema:"feature text; the default checks run when empty"`
	Token    string `json:"token,omitempty" jsonschema:"bearer token"`
	Username string `json:"username,omitempty" jsonschema:"basic auth user"`
	Password string `json:"password,omitempty" jsonschema:"basic auth password"`
	Body     string `json:"body,omitempty" jsonschema:"request body for POST, PUT and PATCH"`
}

type ResultOutput struct {
	Scenario   string `json:"scenario"`
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Details    string `json:"details"`
	DurationMs int64  `json:"duration_ms"`
}

type RunOutput struct {
	RunID         string         `json:"run_id"`
	ExecutionType string         `json:"execution_type"`
	Total         int            `json:"total"`
	Passed        int            `json:"passed"`
	Failed        int            `json:"failed"`
	SuccessRate   string         `json:"success_rate"`
	Results       []ResultOutput `json:"results"`
	FeatureFile   string         `json:"feature_file"`
}

var errNoEndpoint = errors.New("endpoint is required")

func (t *Tools) run(ctx context.Context, _ *mcp.CallToolRequest, in RunInput) (*mcp.CallToolResult, RunOutput, error) {
	if strings.TrimSpace(in.Endpoint) == "" {
		return nil, RunOutput{}, errNoEndpoint
	}
	req := types.ExecRequest{
		APIEndpoint: in.Endpoint,
		Method:      in.Method,
		Token:       in.Token,
		Username:    in.Username,
		Password:    in.Password,
		Body:        in.Body,
	}
	if strings.TrimSpace(in.Feature) != "" {
		req.GeneratedTestCases = []types.TestCaseInput{types.RawText(in.Feature)}
	}
	s, err := t.Engine.Run(ctx, req)
	if err != nil {
		return nil, RunOutput{}, err
	}
	out := RunOutput{
		RunID:         s.RunID,
		ExecutionType: string(s.ExecutionType),
		Total:         s.Summary.Total,
		Passed:        s.Summary.Passed,
		Failed:        s.Summary.Failed,
		SuccessRate:   s.Summary.SuccessRate,
		Results:       make([]ResultOutput, 0, len(s.TestResults)),
		FeatureFile:   s.FeatureFile,
	}
	for _, r := range s.TestResults {
		out.Results = append(out.Results, ResultOutput{
			Scenario:   r.Scenario,
			Status:     string(r.Status),
			StatusCode: r.StatusCode,
			Details:    r.Details,
			DurationMs: r.DurationMs,
		})
	}
	return textResult("run finished: total=%d passed=%d failed=%d", out.Total, out.Passed, out.Failed), out, nil
}
