// Package feature validates, parses and ingests Given/When/Then API test
// feature text.
package feature

import (
	"regexp"
	"strings"

	"github.com/yourorg/featuregen/pkg/types"
)

var requiredSections = []struct {
	token   string
	message string
}{
	{"Feature:", "Feature declaration is missing"},
	{"Background:", "Background section is recommended"},
	{"Scenario:", "At least one scenario is required"},
	{"Given", "Given steps are required"},
	{"When", "When steps are required"},
	{"Then", "Then steps are required"},
}

var dslPatterns = []string{"Given path", "When method", "Then status", "And match"}

const minDSLPatterns = 3

var methodTokenRe = regexp.MustCompile(`\b(GET|POST|PUT|DELETE|PATCH)\b`)

// Validate reports structural problems in feature text. Only errors make
// the report invalid; callers treat the report as advisory.
func Validate(text string) types.ValidationReport {
	rep := types.ValidationReport{
		IsValid:     true,
		Errors:      []string{},
		Warnings:    []string{},
		Suggestions: []string{},
	}

	for _, sec := range requiredSections {
		if !strings.Contains(text, sec.token) {
			rep.IsValid = false
			rep.Errors = append(rep.Errors, sec.message)
		}
	}

	found := 0
	for _, p := range dslPatterns {
		if strings.Contains(text, p) {
			found++
		}
	}
	if found < minDSLPatterns {
		rep.Warnings = append(rep.Warnings, "Limited use of Karate DSL patterns detected")
	}

	if !methodTokenRe.MatchString(text) {
		rep.IsValid = false
		rep.Errors = append(rep.Errors, "No HTTP method found in test cases")
	}

	if !strings.Contains(text, "* def") {
		rep.Suggestions = append(rep.Suggestions, "Consider using variable definitions with '* def' for better test maintenance")
	}
	if !strings.Contains(text, "* print") {
		rep.Suggestions = append(rep.Suggestions, "Consider adding debug prints for better test debugging")
	}
	return rep
}
