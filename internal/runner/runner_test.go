package runner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/featuregen/internal/config"
	"github.com/yourorg/featuregen/internal/filter"
	"github.com/yourorg/featuregen/internal/store"
	"github.com/yourorg/featuregen/pkg/types"
)

func newTestEngine(st store.Store) *Engine {
	cfg := config.Config{}
	cfg.SetDefaults()
	e := NewEngine(cfg.Runner, filter.NewRedactor(cfg.Sanitize), st, nil)
	e.NewID = func() string { return "run-test" }
	return e
}

func caseWithFields(t *testing.T, fields map[string]any) types.TestCase {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	tc := types.TestCase{Fields: raw}
	if s, ok := fields["Test Scenario"].(string); ok {
		tc.Scenario = s
	}
	if s, ok := fields["Expected Result"].(string); ok {
		tc.ExpectedResult = s
	}
	return tc
}

func TestExpectedStatusLadder(t *testing.T) {
	cases := map[string]int{
		"Status 200":                 200,
		"201 Created":                201,
		"Should return 400":          400,
		"401 Unauthorized":           401,
		"Forbidden (403)":            403,
		"Status 404":                 404,
		"500 Internal Server Error":  500,
		"Returns a validation error": 400,
		"Request should fail":        400,
		"Widget list is returned":    200,
		"":                           200,
	}
	for text, want := range cases {
		assert.Equal(t, want, ExpectedStatus(types.TestCase{ExpectedResult: text}), text)
	}
}

func TestExpectedStatusOffLadderCodes(t *testing.T) {
	assert.Equal(t, 200, ExpectedStatus(types.TestCase{ExpectedResult: "Status 422"}))
	assert.Equal(t, 200, ExpectedStatus(types.TestCase{ExpectedResult: "Status 503"}))
	assert.Equal(t, 400, ExpectedStatus(types.TestCase{ExpectedResult: "Status 422 validation error"}))

	p := Interpret(types.TestCase{Scenario: "Reject widget", ExpectedResult: "Status 422"}, types.ExecRequest{APIEndpoint: "http://h/widgets", Method: "POST"})
	assert.Equal(t, 200, p.ExpectedStatus)
	assert.False(t, Passed(p.ExpectedStatus, 422))
}

func TestPassedClassification(t *testing.T) {
	assert.True(t, Passed(404, 404))
	assert.True(t, Passed(400, 500))
	assert.True(t, Passed(200, 204))
	assert.False(t, Passed(200, 500))
	assert.False(t, Passed(200, 302))
	assert.False(t, Passed(404, 200))
}

func TestExtractTestDataBodyAliases(t *testing.T) {
	td := ExtractTestData(caseWithFields(t, map[string]any{"Test Data": `{"name":"w"}`}), "POST")
	assert.Equal(t, map[string]any{"name": "w"}, td.Body)

	td = ExtractTestData(caseWithFields(t, map[string]any{"Test Data": "", "Input": "plain text"}), "POST")
	assert.Equal(t, map[string]any{"data": "plain text"}, td.Body)

	td = ExtractTestData(caseWithFields(t, map[string]any{"Payload": map[string]any{"a": 1.0}}), "GET")
	assert.Equal(t, map[string]any{"a": 1.0}, td.Body)

	td = ExtractTestData(caseWithFields(t, map[string]any{"Data": 42}), "GET")
	assert.Equal(t, map[string]any{"value": 42.0}, td.Body)
}

func TestExtractTestDataParams(t *testing.T) {
	td := ExtractTestData(caseWithFields(t, map[string]any{
		"Headers":          `{"X-Trace":"abc"}`,
		"Query Parameters": map[string]any{"page": 2},
		"Path Params":      map[string]any{"id": "42"},
		"Params":           "not json",
	}), "GET")
	assert.Equal(t, map[string]string{"X-Trace": "abc"}, td.Headers)
	assert.Equal(t, map[string]string{"page": "2"}, td.QueryParams)
	assert.Equal(t, map[string]string{"id": "42"}, td.PathParams)
	assert.Nil(t, td.Body)
}

func TestExtractTestDataFallbacks(t *testing.T) {
	orig := nowFn
	nowFn = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	defer func() { nowFn = orig }()

	tc := types.TestCase{Scenario: `Create widget {"name": "inline"}`}
	assert.Equal(t, map[string]any{"name": "inline"}, ExtractTestData(tc, "GET").Body)

	tc = types.TestCase{Scenario: "Create widget"}
	assert.Equal(t, map[string]any{"testCase": "Create widget", "timestamp": "2024-05-01T10:00:00Z"}, ExtractTestData(tc, "PATCH").Body)
	assert.Nil(t, ExtractTestData(tc, "GET").Body)
}

func TestInterpretOverridesAndParams(t *testing.T) {
	tc := caseWithFields(t, map[string]any{
		"Test Scenario":    "Delete widget",
		"Test Description": "removes one widget",
		"Expected Result":  "Status 404",
		"API Endpoint":     "https://api.example.com/v1/{tenant}/widgets",
		"HTTP Method":      "delete",
		"Path Parameters":  map[string]any{"tenant": "acme"},
		"Query Params":     map[string]any{"force": "true"},
	})
	tc.Description = "removes one widget"
	p := Interpret(tc, types.ExecRequest{APIEndpoint: "https://other.example.com", Method: "GET", ResourceID: "7"})
	assert.Equal(t, "DELETE", p.Method)
	assert.Equal(t, "https://api.example.com/v1/acme/widgets/7?force=true", p.URL)
	assert.Equal(t, 404, p.ExpectedStatus)
	assert.Equal(t, "Description: removes one widget | Expected: Status 404", p.Details)

	p = Interpret(types.TestCase{Scenario: "x"}, types.ExecRequest{APIEndpoint: "http://h/a"})
	assert.Equal(t, "GET", p.Method)
	assert.Equal(t, "Generated test case execution", p.Details)
}

func TestRunParsedScenarioAgainstLiveEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close()

	e := newTestEngine(st)
	summary, err := e.Run(context.Background(), types.ExecRequest{
		APIEndpoint: srv.URL + "/api/v1/health",
		Method:      "GET",
		GeneratedTestCases: []types.TestCaseInput{
			types.RawText("Feature: x\nScenario: Health\n  Given path '/health'\n  When method GET\n  Then status 200\n"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, types.ExecParsedScenarios, summary.ExecutionType)
	assert.Equal(t, types.Summary{Total: 1, Passed: 1, Failed: 0, SuccessRate: "100.0%"}, summary.Summary)
	require.Len(t, summary.TestResults, 1)
	res := summary.TestResults[0]
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "{\n  \"ok\": true\n}", res.Response)
	assert.Contains(t, summary.FeatureFile, "* url '"+srv.URL+"'")
	assert.Contains(t, summary.FeatureFile, "Scenario: Health")

	rec, err := st.GetRun("run-test")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Passed)
}

func TestRunParsedScenarioFailureAndError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestEngine(nil)
	summary, err := e.Run(context.Background(), types.ExecRequest{
		APIEndpoint: srv.URL,
		GeneratedTestCases: []types.TestCaseInput{
			types.Structured(json.RawMessage(`{"Test Scenario":"list","Expected Result":"Status 200"}`)),
			types.Structured(json.RawMessage(`{"Test Scenario":"bad method","HTTP Method":"TRACE"}`)),
		},
	})
	require.NoError(t, err)
	require.Len(t, summary.TestResults, 2)
	assert.Equal(t, types.StatusFailed, summary.TestResults[0].Status)
	assert.Equal(t, 500, summary.TestResults[0].StatusCode)
	assert.Equal(t, types.StatusFailed, summary.TestResults[1].Status)
	assert.Equal(t, 0, summary.TestResults[1].StatusCode)
	assert.Contains(t, summary.TestResults[1].Response, "unsupported HTTP method")
	assert.Equal(t, "0.0%", summary.Summary.SuccessRate)
}

func TestRunDefaultBatteryWithToken(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.RequestURI()+" "+r.Header.Get("Authorization"))
		mu.Unlock()
		switch {
		case r.Header.Get("Authorization") != "Bearer good":
			w.WriteHeader(http.StatusUnauthorized)
		case strings.HasSuffix(r.URL.Path, "/invalid"), strings.HasSuffix(r.URL.Path, "/999999"):
			w.WriteHeader(http.StatusNotFound)
		case r.Header.Get("Accept") == "application/xml":
			w.WriteHeader(http.StatusNotAcceptable)
		default:
			_, _ = w.Write([]byte(`[{"id":1}]`))
		}
	}))
	defer srv.Close()

	e := newTestEngine(nil)
	summary, err := e.Run(context.Background(), types.ExecRequest{APIEndpoint: srv.URL + "/api/widgets", Method: "get", Token: "good"})
	require.NoError(t, err)
	assert.Equal(t, types.ExecDefaultScenarios, summary.ExecutionType)

	names := make([]string, 0, len(summary.TestResults))
	for _, r := range summary.TestResults {
		names = append(names, r.Scenario)
		assert.Equal(t, types.StatusPassed, r.Status, r.Scenario+": "+r.Response)
		assert.True(t, strings.HasPrefix(r.Response, "Request Details:\n"), r.Scenario)
		assert.NotContains(t, r.Curl, "Bearer good")
	}
	assert.Equal(t, []string{
		"Valid Request Test",
		"Invalid Endpoint Test",
		"Authentication Required Test",
		"Response Validation Test",
		"Request Validation Test",
		"Data Boundary Test",
		"Response Time Performance Test",
		"Content Type Validation Test",
		"Error Handling Test",
	}, names)
	assert.Equal(t, "100.0%", summary.Summary.SuccessRate)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, "GET /api/widgets?invalid_param=invalid_value&malformed_query=true Bearer good")
	assert.Contains(t, seen, "GET /api/widgets Bearer invalid-token-12345")
	assert.Contains(t, summary.FeatureFile, "Scenario: Error Handling Test")
}

func TestRunDefaultBatteryPostWithoutCredentials(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, r.Method+" "+string(data))
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	e := newTestEngine(nil)
	summary, err := e.Run(context.Background(), types.ExecRequest{APIEndpoint: srv.URL + "/items?x=1", Method: "POST", Body: `{"title":"t"}`})
	require.NoError(t, err)
	assert.Len(t, summary.TestResults, 8)
	for _, r := range summary.TestResults {
		assert.NotContains(t, r.Scenario, "Authentication")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, bodies, `POST {"title":"t"}`)
	assert.Contains(t, bodies, `POST {"invalid":"data"}`)
	assert.Contains(t, bodies, "GET ", "error handling uses GET without body")
}

func TestRunRejectsBadBase(t *testing.T) {
	e := newTestEngine(nil)
	_, err := e.Run(context.Background(), types.ExecRequest{Method: "GET"})
	assert.ErrorIs(t, err, ErrNoEndpoint)
	_, err = e.Run(context.Background(), types.ExecRequest{APIEndpoint: "http://x", Method: "HEAD"})
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestCallAuthAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		data, _ := io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"basic": ok, "user": user, "pass": pass,
			"auth": r.Header.Get("Authorization"), "accept": r.Header.Get("Accept"),
			"ctype": r.Header.Get("Content-Type"), "body": string(data), "path": r.URL.Path,
		})
	}))
	defer srv.Close()

	e := newTestEngine(nil)
	decode := func(res *types.CallResult) map[string]any {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.Response), &m))
		return m
	}

	res, err := e.Call(context.Background(), types.ExecRequest{APIEndpoint: srv.URL + "/w", Method: "post", Username: "u", Password: "p", Body: "raw text", AcceptHeader: "text/plain"})
	require.NoError(t, err)
	m := decode(res)
	assert.Equal(t, true, m["basic"])
	assert.Equal(t, "raw text", m["body"])
	assert.Equal(t, "text/plain", m["accept"])
	assert.Equal(t, "application/json", m["ctype"])

	res, err = e.Call(context.Background(), types.ExecRequest{APIEndpoint: srv.URL + "/w", Method: "GET", Token: "abc", Body: `{"ignored":true}`})
	require.NoError(t, err)
	m = decode(res)
	assert.Equal(t, "Bearer abc", m["auth"])
	assert.Equal(t, "", m["body"])

	res, err = e.Call(context.Background(), types.ExecRequest{APIEndpoint: srv.URL + "/w", Method: "DELETE", Token: "Digest xyz", ResourceID: "9"})
	require.NoError(t, err)
	m = decode(res)
	assert.Equal(t, "Digest xyz", m["auth"])
	assert.Equal(t, "/w/9", m["path"])

	_, err = e.Call(context.Background(), types.ExecRequest{APIEndpoint: srv.URL, Method: "OPTIONS"})
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestCallTransportErrors(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	e := newTestEngine(nil)
	e.CallTimeout = 50 * time.Millisecond
	_, err := e.Call(context.Background(), types.ExecRequest{APIEndpoint: slow.URL, Method: "GET"})
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)

	closed := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := closed.URL
	closed.Close()
	_, err = e.Call(context.Background(), types.ExecRequest{APIEndpoint: addr, Method: "GET"})
	assert.True(t, errors.Is(err, ErrConnection), "got %v", err)
}

func TestAuditTextMasksCredentials(t *testing.T) {
	e := newTestEngine(nil)
	o := outbound{Method: "POST", URL: "http://h/x", Body: map[string]any{"password": "pw"}, Auth: credentials{Username: "alice", Password: "s3cret"}}

	step := e.karateStep(o, 201)
	assert.Contains(t, step, "* url 'http://h/x'")
	assert.Contains(t, step, "* def username = 'alice'")
	assert.NotContains(t, step, "s3cret")
	assert.NotContains(t, step, `"pw"`)
	assert.Contains(t, step, "* method post")
	assert.True(t, strings.HasSuffix(step, "* status 201"))

	curl := e.curl(o)
	assert.True(t, strings.HasPrefix(curl, "curl -X POST http://h/x"))
	assert.Contains(t, curl, "'Authorization: ***REDACTED***'")
	assert.NotContains(t, curl, "s3cret")
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, types.Summary{SuccessRate: "0%"}, Summarize(nil))
	s := Summarize([]types.ExecutionResult{{Status: types.StatusPassed}, {Status: types.StatusPassed}, {Status: types.StatusFailed}})
	assert.Equal(t, types.Summary{Total: 3, Passed: 2, Failed: 1, SuccessRate: "66.7%"}, s)
}

func TestFeatureBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.example.com", FeatureBaseURL("https://api.example.com/api/v1/widgets"))
	assert.Equal(t, "https://h.example.com/v1", FeatureBaseURL("https://h.example.com/v1/widgets"))
	assert.Equal(t, "http://h", FeatureBaseURL("http://h"))
}
