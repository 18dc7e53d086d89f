// Package runner executes parsed or default test scenarios against a live
// HTTP API and classifies the outcomes.
package runner

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/yourorg/featuregen/internal/feature"
	"github.com/yourorg/featuregen/pkg/types"
)

var (
	bodyAliases     = []string{"Test Data", "Input", "Request Body", "Payload", "Body", "Data"}
	headerAliases   = []string{"Headers", "Request Headers", "HTTP Headers"}
	queryAliases    = []string{"Query Parameters", "Query Params", "Parameters", "Params"}
	pathAliases     = []string{"Path Parameters", "Path Params", "URL Parameters"}
	endpointAliases = []string{"Endpoint", "API Endpoint"}
	methodAliases   = []string{"Method", "HTTP Method"}
)

var inlineJSONRe = regexp.MustCompile(`\{[^{}]*\}`)

var nowFn = time.Now

// statusLadder is checked in order against the expected result text.
var statusLadder = []int{200, 201, 400, 401, 403, 404, 500}

// ExpectedStatus derives the expected HTTP status from the case's expected
// result text. Only codes on statusLadder are recognized: "Status 422" or
// "Status 503" fall through to the error/fail words and otherwise mean 200,
// so such a case passes only on a 2xx.
func ExpectedStatus(tc types.TestCase) int {
	text := tc.ExpectedResult
	for _, code := range statusLadder {
		if strings.Contains(text, fmt.Sprint(code)) {
			return code
		}
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "error") || strings.Contains(lower, "fail") {
		return 400
	}
	return 200
}

// Passed applies the pass rule: an expected error passes on any error
// status, an expected success only on a 2xx.
func Passed(expected, actual int) bool {
	if expected >= 400 {
		return actual >= 400
	}
	return actual >= 200 && actual < 300
}

// TestData is what a case contributes to its outbound request.
type TestData struct {
	Body        any
	Headers     map[string]string
	QueryParams map[string]string
	PathParams  map[string]string
}

// ExtractTestData reads the request parts of tc from its fields. method is
// the effective method and decides whether a default body is synthesized.
func ExtractTestData(tc types.TestCase, method string) TestData {
	var root gjson.Result
	if len(tc.Fields) > 0 && gjson.ValidBytes(tc.Fields) {
		root = gjson.ParseBytes(tc.Fields)
	}

	td := TestData{
		Body:        firstBody(root),
		Headers:     firstStringMap(root, headerAliases),
		QueryParams: firstStringMap(root, queryAliases),
		PathParams:  firstStringMap(root, pathAliases),
	}
	if td.Body == nil {
		for _, text := range []string{tc.Scenario, tc.Description} {
			if m := inlineJSON(text); m != nil {
				td.Body = m
				break
			}
		}
	}
	if td.Body == nil && hasBody(method) {
		td.Body = map[string]any{
			"testCase":  tc.Scenario,
			"timestamp": nowFn().UTC().Format(time.RFC3339),
		}
	}
	return td
}

// ExecParams is a case resolved against the base request.
type ExecParams struct {
	Scenario       string
	Method         string
	URL            string
	Body           any
	Headers        map[string]string
	ExpectedStatus int
	Details        string
	TestData       map[string]any
}

// Interpret resolves tc against base: overrides, test data, path and query
// parameters and the expected status.
func Interpret(tc types.TestCase, base types.ExecRequest) ExecParams {
	var root gjson.Result
	if len(tc.Fields) > 0 && gjson.ValidBytes(tc.Fields) {
		root = gjson.ParseBytes(tc.Fields)
	}

	method := strings.ToUpper(strings.TrimSpace(base.Method))
	if m := firstString(root, methodAliases); m != "" {
		method = strings.ToUpper(m)
	}
	if method == "" {
		method = "GET"
	}
	endpoint := base.APIEndpoint
	if ep := firstString(root, endpointAliases); ep != "" {
		endpoint = ep
	}

	td := ExtractTestData(tc, method)
	target := substitutePathParams(endpoint, td.PathParams)
	target = appendQuery(target, td.QueryParams)
	target = withResourceID(target, method, base.ResourceID)

	p := ExecParams{
		Scenario:       tc.Scenario,
		Method:         method,
		URL:            target,
		Body:           td.Body,
		Headers:        td.Headers,
		ExpectedStatus: ExpectedStatus(tc),
		Details:        caseDetails(tc),
	}
	if m, ok := td.Body.(map[string]any); ok {
		p.TestData = m
	} else if td.Body != nil {
		p.TestData = map[string]any{"value": td.Body}
	}
	return p
}

func caseDetails(tc types.TestCase) string {
	var parts []string
	if tc.Description != "" {
		parts = append(parts, "Description: "+tc.Description)
	}
	if tc.Objective != "" {
		parts = append(parts, "Objective: "+tc.Objective)
	}
	if tc.ExpectedResult != "" {
		parts = append(parts, "Expected: "+tc.ExpectedResult)
	}
	if len(parts) == 0 {
		return "Generated test case execution"
	}
	return strings.Join(parts, " | ")
}

func firstBody(root gjson.Result) any {
	if !root.IsObject() {
		return nil
	}
	for _, alias := range bodyAliases {
		v := feature.Lookup(root, alias)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		switch {
		case v.Type == gjson.String:
			s := strings.TrimSpace(v.Str)
			if s == "" {
				continue
			}
			var parsed any
			if err := json.Unmarshal([]byte(s), &parsed); err == nil {
				return parsed
			}
			return map[string]any{"data": s}
		case v.IsObject(), v.IsArray():
			return v.Value()
		default:
			return map[string]any{"value": v.Value()}
		}
	}
	return nil
}

func firstString(root gjson.Result, aliases []string) string {
	if !root.IsObject() {
		return ""
	}
	for _, alias := range aliases {
		v := feature.Lookup(root, alias)
		if v.Type == gjson.String {
			if s := strings.TrimSpace(v.Str); s != "" {
				return s
			}
		}
	}
	return ""
}

// firstStringMap returns the first alias holding an object, given either
// inline or as a JSON string. Values that do not decode are skipped.
func firstStringMap(root gjson.Result, aliases []string) map[string]string {
	if !root.IsObject() {
		return nil
	}
	for _, alias := range aliases {
		v := feature.Lookup(root, alias)
		if v.Type == gjson.String {
			if !gjson.Valid(v.Str) {
				continue
			}
			v = gjson.Parse(v.Str)
		}
		if !v.IsObject() {
			continue
		}
		out := map[string]string{}
		v.ForEach(func(k, val gjson.Result) bool {
			out[k.String()] = val.String()
			return true
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func inlineJSON(text string) map[string]any {
	for _, match := range inlineJSONRe.FindAllString(text, -1) {
		var m map[string]any
		if err := json.Unmarshal([]byte(match), &m); err == nil {
			return m
		}
	}
	return nil
}

func hasBody(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

func substitutePathParams(endpoint string, params map[string]string) string {
	for k, v := range params {
		endpoint = strings.ReplaceAll(endpoint, "{"+k+"}", url.PathEscape(v))
	}
	return endpoint
}

func appendQuery(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return joinQuery(endpoint, q.Encode())
}

// joinQuery appends a raw query string, using '&' when one is present.
func joinQuery(endpoint, rawQuery string) string {
	if rawQuery == "" {
		return endpoint
	}
	if strings.Contains(endpoint, "?") {
		return endpoint + "&" + rawQuery
	}
	return endpoint + "?" + rawQuery
}

// appendPath adds a path segment ahead of any query string.
func appendPath(endpoint, segment string) string {
	base, query, hasQuery := strings.Cut(endpoint, "?")
	out := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(segment, "/")
	if hasQuery {
		out += "?" + query
	}
	return out
}

func withResourceID(endpoint, method, id string) string {
	if method != "DELETE" || strings.TrimSpace(id) == "" {
		return endpoint
	}
	return appendPath(endpoint, url.PathEscape(strings.TrimSpace(id)))
}
