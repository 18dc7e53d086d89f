package types

import (
	"bytes"
	"encoding/json"
	"time"
)

// CaseType classifies a test case by its expected status.
type CaseType string

const (
	CasePositive CaseType = "Positive"
	CaseNegative CaseType = "Negative"
)

// TestCase is one executable scenario extracted from feature text or
// supplied as a structured object.
type TestCase struct {
	Scenario         string         `json:"scenario"`
	Steps            []string       `json:"steps"`
	Comments         []string       `json:"comments,omitempty"`
	Method           string         `json:"method"`
	Path             string         `json:"path"`
	ExpectedStatus   int            `json:"expectedStatus"`
	ExpectedResult   string         `json:"expectedResult"`
	Type             CaseType       `json:"type"`
	Requirement      string         `json:"requirement,omitempty"`
	Description      string         `json:"description"`
	Objective        string         `json:"objective"`
	ValidationPoints []string       `json:"validationPoints,omitempty"`
	TestData         map[string]any `json:"testData,omitempty"`

	// Fields is the JSON object the case was built from, keyed by the
	// front end's field names ("Test Scenario", "Expected Result", ...).
	Fields json.RawMessage `json:"-"`
}

// InputKind tags a TestCaseInput.
type InputKind int

const (
	InputUnknown InputKind = iota
	InputRawText
	InputStructured
)

// TestCaseInput is one element of generatedTestCases: either raw feature
// text or a structured object.
type TestCaseInput struct {
	Kind   InputKind
	Raw    string
	Fields json.RawMessage
}

// RawText wraps feature text as an input.
func RawText(s string) TestCaseInput {
	return TestCaseInput{Kind: InputRawText, Raw: s}
}

// Structured wraps a JSON object as an input.
func Structured(obj json.RawMessage) TestCaseInput {
	return TestCaseInput{Kind: InputStructured, Fields: obj}
}

func (in *TestCaseInput) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		*in = TestCaseInput{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*in = RawText(s)
	case '{':
		*in = Structured(append(json.RawMessage(nil), trimmed...))
	default:
		*in = TestCaseInput{Kind: InputUnknown, Fields: append(json.RawMessage(nil), trimmed...)}
	}
	return nil
}

func (in TestCaseInput) MarshalJSON() ([]byte, error) {
	switch in.Kind {
	case InputRawText:
		return json.Marshal(in.Raw)
	case InputStructured, InputUnknown:
		if len(in.Fields) > 0 {
			return in.Fields, nil
		}
	}
	return []byte("null"), nil
}

// ExecRequest is the base request shared by the execution endpoints.
type ExecRequest struct {
	APIEndpoint        string          `json:"apiEndpoint"`
	Method             string          `json:"method"`
	Username           string          `json:"username,omitempty"`
	Password           string          `json:"password,omitempty"`
	Token              string          `json:"token,omitempty"`
	Body               string          `json:"body,omitempty"`
	ResourceID         string          `json:"resourceId,omitempty"`
	AcceptHeader       string          `json:"acceptHeader,omitempty"`
	GeneratedTestCases []TestCaseInput `json:"generatedTestCases,omitempty"`
}

// HasBasicAuth reports whether both basic credentials are present.
func (r ExecRequest) HasBasicAuth() bool {
	return r.Username != "" && r.Password != ""
}

// CaseStatus is the outcome of one executed scenario.
type CaseStatus string

const (
	StatusPassed CaseStatus = "PASSED"
	StatusFailed CaseStatus = "FAILED"
)

// ExecutionType tells which scenario source a run used.
type ExecutionType string

const (
	ExecParsedScenarios  ExecutionType = "parsed_karate_scenarios"
	ExecDefaultScenarios ExecutionType = "default_scenarios"
)

// ExecutionResult is the outcome of one scenario.
type ExecutionResult struct {
	Scenario       string         `json:"scenario"`
	Status         CaseStatus     `json:"status"`
	StatusCode     int            `json:"statusCode"`
	Response       string         `json:"response"`
	Details        string         `json:"details"`
	ExpectedResult string         `json:"expectedResult,omitempty"`
	ActualResult   string         `json:"actualResult,omitempty"`
	KarateStep     string         `json:"karateStep,omitempty"`
	Curl           string         `json:"curl,omitempty"`
	TestData       map[string]any `json:"testData,omitempty"`
	DurationMs     int64          `json:"durationMs"`
}

// Summary aggregates pass/fail counts.
type Summary struct {
	Total       int    `json:"total"`
	Passed      int    `json:"passed"`
	Failed      int    `json:"failed"`
	SuccessRate string `json:"success_rate"`
}

// ResultsSummary is the full outcome of an automation run.
type ResultsSummary struct {
	RunID         string            `json:"runId,omitempty"`
	FeatureFile   string            `json:"featureFile"`
	Summary       Summary           `json:"summary"`
	TestResults   []ExecutionResult `json:"testResults"`
	ExecutionType ExecutionType     `json:"executionType"`
	StartedAt     time.Time         `json:"startedAt"`
}

// CallResult is the outcome of a single direct API call.
type CallResult struct {
	StatusCode int    `json:"statusCode"`
	Response   string `json:"response"`
}
