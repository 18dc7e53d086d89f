package runner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/yourorg/featuregen/pkg/types"
)

// check decides whether a battery response passes.
type check func(e *Engine, r *response) bool

type batteryTest struct {
	name     string
	expected string
	// status is the nominal expected status for the audit steps.
	status  int
	details string
	req     outbound
	pass    check
}

func statusIn(codes ...int) check {
	return func(_ *Engine, r *response) bool {
		for _, c := range codes {
			if r.StatusCode == c {
				return true
			}
		}
		return false
	}
}

func statusBelow(limit int) check {
	return func(_ *Engine, r *response) bool { return r.StatusCode < limit }
}

// defaultBattery lists the generic checks run when no scenarios were
// supplied. Checks that do not apply to base are left out.
func (e *Engine) defaultBattery(base types.ExecRequest) []batteryTest {
	method := base.Method
	mutating := hasBody(method)
	auth := credentialsOf(base)
	endpoint := withResourceID(base.APIEndpoint, method, base.ResourceID)
	var baseBody any
	if base.Body != "" {
		baseBody = base.Body
	}
	req := func(m, u string, body any) outbound {
		return outbound{Method: m, URL: u, Body: body, Accept: base.AcceptHeader, Auth: auth}
	}

	tests := []batteryTest{
		{
			name: "Valid Request Test", expected: "Status < 400", status: 200,
			details: "Sends the configured request and expects a non-error status",
			req:     req(method, endpoint, baseBody),
			pass:    statusBelow(400),
		},
		{
			name: "Invalid Endpoint Test", expected: "Status 404", status: 404,
			details: "Requests an unknown sub-path and expects not found",
			req:     req(method, appendPath(base.APIEndpoint, "invalid"), baseBody),
			pass:    statusIn(404),
		},
	}

	switch {
	case base.HasBasicAuth():
		r := req(method, endpoint, baseBody)
		r.Auth = credentials{Username: "invalid_user", Password: "invalid_pass"}
		tests = append(tests, batteryTest{
			name: "Authentication Test", expected: "Status 401 or 403", status: 401,
			details: "Sends invalid basic credentials and expects rejection",
			req:     r, pass: statusIn(401, 403),
		})
	case base.Token != "":
		r := req(method, endpoint, baseBody)
		r.Auth = credentials{Token: "Bearer invalid-token-12345"}
		tests = append(tests, batteryTest{
			name: "Authentication Required Test", expected: "Status 401 or 403", status: 401,
			details: "Sends an invalid bearer token and expects rejection",
			req:     r, pass: statusIn(401, 403),
		})
	}

	if method == "GET" || method == "POST" {
		tests = append(tests, batteryTest{
			name: "Response Validation Test", expected: "Status 200 with a body", status: 200,
			details: "Expects a 200 response carrying a non-empty body",
			req:     req(method, endpoint, baseBody),
			pass: func(_ *Engine, r *response) bool {
				return r.StatusCode == 200 && len(strings.TrimSpace(string(r.Body))) > 0
			},
		})
	}

	if mutating {
		tests = append(tests, batteryTest{
			name: "Request Validation Test", expected: "Status >= 400", status: 400,
			details: "Sends a payload with unknown fields and expects rejection",
			req:     req(method, endpoint, map[string]any{"invalid": "data"}),
			pass: func(_ *Engine, r *response) bool { return r.StatusCode >= 400 },
		})
	} else {
		tests = append(tests, batteryTest{
			name: "Request Validation Test", expected: "Status 200 or 400", status: 200,
			details: "Sends unexpected query parameters",
			req:     req(method, joinQuery(endpoint, "invalid_param=invalid_value&malformed_query=true"), nil),
			pass:    statusIn(200, 400),
		})
	}

	if mutating {
		tests = append(tests, batteryTest{
			name: "Data Boundary Test", expected: "Status < 500", status: 200,
			details: "Sends an oversized field and expects no server error",
			req: req(method, endpoint, map[string]any{
				"data":       uuid.NewString(),
				"largeField": strings.Repeat("x", 1000),
			}),
			pass: statusBelow(500),
		})
	} else {
		tests = append(tests, batteryTest{
			name: "Data Boundary Test", expected: "Status < 500", status: 200,
			details: "Requests extreme paging values and expects no server error",
			req:     req(method, joinQuery(endpoint, "limit=99999&offset=999999&test_boundary=true"), nil),
			pass:    statusBelow(500),
		})
	}

	tests = append(tests, batteryTest{
		name: "Response Time Performance Test", expected: fmt.Sprintf("Response within %dms", e.threshold().Milliseconds()), status: 200,
		details: "Measures the response time of the configured request",
		req:     req(method, endpoint, baseBody),
		pass: func(e *Engine, r *response) bool { return r.Elapsed < e.threshold() },
	})

	if mutating {
		body := baseBody
		if body == nil {
			body = map[string]any{"test": "data"}
		}
		tests = append(tests, batteryTest{
			name: "Content Type Validation Test", expected: "Status < 400", status: 200,
			details: "Sends a JSON payload with a JSON content type",
			req:     req(method, endpoint, body),
			pass:    statusBelow(400),
		})
	} else {
		r := req(method, endpoint, nil)
		r.Accept = "application/xml"
		tests = append(tests, batteryTest{
			name: "Content Type Validation Test", expected: "Status 200, 406 or 415", status: 200,
			details: "Asks for XML and expects it served or refused cleanly",
			req:     r, pass: statusIn(200, 406, 415),
		})
	}

	tests = append(tests, batteryTest{
		name: "Error Handling Test", expected: "Status 404", status: 404,
		details: "Requests a resource id that does not exist",
		req:     req("GET", appendPath(base.APIEndpoint, "999999"), nil),
		pass:    statusIn(404),
	})
	return tests
}

func (e *Engine) runBattery(ctx context.Context, base types.ExecRequest) []types.ExecutionResult {
	tests := e.defaultBattery(base)
	results := make([]types.ExecutionResult, 0, len(tests))
	for _, t := range tests {
		res := types.ExecutionResult{
			Scenario:       t.name,
			Details:        t.details,
			ExpectedResult: t.expected,
			KarateStep:     e.karateStep(t.req, t.status),
			Curl:           e.curl(t.req),
		}
		details := e.requestDetails(t.req)
		resp, err := e.send(ctx, t.req, e.CaseTimeout)
		if err != nil {
			res = failed(res, err)
			res.Response = details + res.Response
			results = append(results, res)
			continue
		}
		res.StatusCode = resp.StatusCode
		res.DurationMs = resp.Elapsed.Milliseconds()
		res.ActualResult = fmt.Sprintf("Status %d in %dms", resp.StatusCode, res.DurationMs)
		res.Response = details + formatBody(resp.Body, e.previewChars())
		res.Status = types.StatusFailed
		if t.pass(e, resp) {
			res.Status = types.StatusPassed
		}
		results = append(results, res)
	}
	return results
}

// requestDetails describes the request that produced a response.
func (e *Engine) requestDetails(o outbound) string {
	b := &strings.Builder{}
	b.WriteString("Request Details:\n")
	fmt.Fprintf(b, "Method: %s\n", o.Method)
	fmt.Fprintf(b, "URL: %s\n", o.URL)
	if o.Accept != "" {
		fmt.Fprintf(b, "Accept: %s\n", o.Accept)
	}
	switch {
	case o.Auth.Username != "" && o.Auth.Password != "":
		fmt.Fprintf(b, "Auth: Basic (%s / %s)\n", o.Auth.Username, e.redactor().Secret(o.Auth.Password))
	case o.Auth.Token != "":
		fmt.Fprintf(b, "Auth: %s\n", e.redactor().Header("Authorization", authorizationValue(o.Auth.Token)))
	}
	if hasBody(o.Method) && o.Body != nil {
		if payload, err := encodeBody(o.Body); err == nil {
			fmt.Fprintf(b, "Body: %s\n", clip(e.redactor().Body(string(payload)), logBodyChars))
		}
	}
	b.WriteString("\nResponse:\n")
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
