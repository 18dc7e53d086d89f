package runner

import (
	"fmt"
	"strings"

	"github.com/yourorg/featuregen/pkg/types"
)

// FeatureBaseURL is the part of endpoint before "/api", or before its last
// path segment when it has none.
func FeatureBaseURL(endpoint string) string {
	start := 0
	if i := strings.Index(endpoint, "://"); i >= 0 {
		start = i + 3
	}
	if i := strings.Index(endpoint[start:], "/api"); i >= 0 {
		return endpoint[:start+i]
	}
	trimmed := strings.TrimRight(endpoint, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= start {
		return trimmed[:i]
	}
	return trimmed
}

// ParsedFeature renders the executed cases as a feature file.
func ParsedFeature(cases []types.TestCase, endpoint string) string {
	b := &strings.Builder{}
	b.WriteString("Feature: Automated API Test Execution\n")
	b.WriteString("  Scenarios executed from generated test cases\n\n")
	writeBackground(b, endpoint)
	for _, tc := range cases {
		fmt.Fprintf(b, "  Scenario: %s\n", tc.Scenario)
		for _, c := range tc.Comments {
			fmt.Fprintf(b, "    # %s\n", c)
		}
		if len(tc.Steps) == 0 {
			fmt.Fprintf(b, "    Given path '%s'\n", tc.Path)
			fmt.Fprintf(b, "    When method %s\n", strings.ToLower(orDefault(tc.Method, "GET")))
			fmt.Fprintf(b, "    Then status %d\n", ExpectedStatus(tc))
		}
		for _, s := range tc.Steps {
			fmt.Fprintf(b, "    %s\n", s)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// BatteryFeature renders the default battery results as a feature file.
func BatteryFeature(results []types.ExecutionResult, endpoint string) string {
	b := &strings.Builder{}
	b.WriteString("Feature: Automated API Test Execution\n")
	b.WriteString("  Default API checks\n\n")
	writeBackground(b, endpoint)
	for _, r := range results {
		fmt.Fprintf(b, "  Scenario: %s\n", r.Scenario)
		if r.ExpectedResult != "" {
			fmt.Fprintf(b, "    # Expected: %s\n", r.ExpectedResult)
		}
		for _, line := range strings.Split(r.KarateStep, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				fmt.Fprintf(b, "    %s\n", line)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeBackground(b *strings.Builder, endpoint string) {
	b.WriteString("  Background:\n")
	fmt.Fprintf(b, "    * url '%s'\n", FeatureBaseURL(endpoint))
	b.WriteString("    * configure connectTimeout = 10000\n")
	b.WriteString("    * configure readTimeout = 10000\n\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
