package feature

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yourorg/featuregen/pkg/types"
)

var stepPrefixes = []string{"Given", "When", "Then", "And", "*"}

var requestPrefixes = []string{"And request", "* request", "Given request", "When request"}

type scenario struct {
	name     string
	steps    []string
	comments []string
}

// Parse extracts one TestCase per scenario block that has a name and at
// least one step, in source order. Text before the first scenario is ignored.
func Parse(text string) []types.TestCase {
	var cases []types.TestCase
	var cur *scenario

	flush := func() {
		if cur != nil && cur.name != "" && len(cur.steps) > 0 {
			cases = append(cases, buildCase(*cur))
		}
		cur = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "Scenario Outline:"):
			flush()
			cur = &scenario{name: strings.TrimSpace(strings.TrimPrefix(line, "Scenario Outline:"))}
		case strings.HasPrefix(line, "Scenario:"):
			flush()
			cur = &scenario{name: strings.TrimSpace(strings.TrimPrefix(line, "Scenario:"))}
		case cur == nil:
		case strings.HasPrefix(line, "#"):
			cur.comments = append(cur.comments, strings.TrimSpace(line[1:]))
		case hasAnyPrefix(line, stepPrefixes):
			cur.steps = append(cur.steps, line)
		}
	}
	flush()
	return cases
}

func buildCase(sc scenario) types.TestCase {
	status := deriveStatus(sc.steps)
	method := deriveMethod(sc.steps)
	path := derivePath(sc.steps)

	caseType := types.CasePositive
	if status >= 400 {
		caseType = types.CaseNegative
	}

	// Description and requirement keep the whole comment, prefix included.
	var description, requirement, objective string
	for _, c := range sc.comments {
		switch {
		case strings.HasPrefix(c, "Positive Test Case:"), strings.HasPrefix(c, "Negative Test Case:"):
			description = c
		case strings.HasPrefix(c, "Requirement:"):
			requirement = c
		case objective == "" && len(c) > 10:
			objective = c
		}
	}
	if description == "" {
		description = fmt.Sprintf("%s test scenario", caseType)
	}
	if objective == "" {
		objective = fmt.Sprintf("Validate %s %s returns %d", method, path, status)
	}

	var points []string
	for _, s := range sc.steps {
		if strings.HasPrefix(s, "Then") || strings.HasPrefix(s, "And match") {
			points = append(points, s)
		}
	}

	data := requestPayload(sc.steps)
	if data == nil {
		data = map[string]any{"method": method, "path": path, "expectedStatus": status}
	}

	tc := types.TestCase{
		Scenario:         sc.name,
		Steps:            append([]string(nil), sc.steps...),
		Comments:         append([]string(nil), sc.comments...),
		Method:           method,
		Path:             path,
		ExpectedStatus:   status,
		ExpectedResult:   fmt.Sprintf("Status %d", status),
		Type:             caseType,
		Requirement:      requirement,
		Description:      description,
		Objective:        objective,
		ValidationPoints: points,
		TestData:         data,
	}
	tc.Fields = caseFields(tc, hasMethodStep(sc.steps))
	return tc
}

// caseFields renders tc under the field names structured inputs use, so
// parsed and structured cases share one interpretation path. The method is
// only carried when the scenario names one, so the run's method applies
// otherwise.
func caseFields(tc types.TestCase, explicitMethod bool) json.RawMessage {
	m := map[string]any{
		"Test Scenario":     tc.Scenario,
		"Test Description":  tc.Description,
		"Test Objective":    tc.Objective,
		"Test Type":         string(tc.Type),
		"HTTP Method":       tc.Method,
		"API Path":          tc.Path,
		"Expected Result":   tc.ExpectedResult,
		"Expected Status":   tc.ExpectedStatus,
		"Karate Steps":      strings.Join(tc.Steps, "\n"),
		"Requirements":      tc.Requirement,
		"Validation Points": tc.ValidationPoints,
		"Test Data":         tc.TestData,
	}
	if !explicitMethod {
		delete(m, "HTTP Method")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}

// deriveStatus scans every "Then status" step; the last one wins. A token
// containing '<' ends the scan for that step.
func deriveStatus(steps []string) int {
	status := 200
	for _, s := range steps {
		if !strings.Contains(s, "Then status") {
			continue
		}
		for _, part := range strings.Fields(s) {
			if isDigits(part) {
				if n, err := strconv.Atoi(part); err == nil {
					status = n
				}
				break
			}
			if strings.Contains(part, "<") {
				if strings.Contains(part, "400") {
					status = 200
				}
				break
			}
		}
	}
	return status
}

func deriveMethod(steps []string) string {
	for _, s := range steps {
		if strings.Contains(s, "When method") {
			parts := strings.Split(s, "method")
			return strings.ToUpper(strings.TrimSpace(parts[1]))
		}
	}
	return "GET"
}

func hasMethodStep(steps []string) bool {
	for _, s := range steps {
		if strings.Contains(s, "When method") {
			return true
		}
	}
	return false
}

func derivePath(steps []string) string {
	for _, s := range steps {
		if strings.Contains(s, "Given path") {
			parts := strings.Split(s, "'")
			if len(parts) > 1 {
				return parts[1]
			}
			return ""
		}
	}
	return ""
}

func requestPayload(steps []string) map[string]any {
	for _, s := range steps {
		for _, p := range requestPrefixes {
			if !strings.HasPrefix(s, p+" ") {
				continue
			}
			var m map[string]any
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(s, p))), &m); err == nil {
				return m
			}
			return nil
		}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
