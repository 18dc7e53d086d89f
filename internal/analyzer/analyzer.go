// Package analyzer extracts testable statements from free-form requirement
// documents using keyword heuristics.
package analyzer

import (
	"fmt"
	"regexp"
	"strings"
)

// Category is a kind of testable statement.
type Category int

const (
	Functional Category = iota
	Validation
	BusinessRule
	ErrorCondition
	Integration
	Data
)

// Categories lists every category in report order.
var Categories = []Category{Functional, Validation, BusinessRule, ErrorCondition, Integration, Data}

var categoryKeys = map[Category]string{
	Functional:     "functional_requirements",
	Validation:     "validation_points",
	BusinessRule:   "business_rules",
	ErrorCondition: "error_conditions",
	Integration:    "integration_points",
	Data:           "data_requirements",
}

func (c Category) String() string {
	if k, ok := categoryKeys[c]; ok {
		return k
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// MarshalText lets Analysis encode with string keys.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	for k, v := range categoryKeys {
		if v == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", string(b))
}

var keywords = map[Category][]string{
	Functional:     {"must", "should", "shall", "will", "can", "able to", "create", "update", "delete", "retrieve"},
	Validation:     {"validate", "verify", "check", "ensure", "confirm", "required", "mandatory", "optional"},
	BusinessRule:   {"business rule", "constraint", "limit", "maximum", "minimum", "not exceed"},
	ErrorCondition: {"error", "fail", "invalid", "unauthorized", "forbidden", "not found", "exception"},
	Integration:    {"api", "endpoint", "service", "database", "external", "integration"},
	Data:           {"field", "parameter", "input", "output", "response", "request", "data"},
}

var headerPhrases = []string{
	"exception handling",
	"business logic",
	"precondition",
	"flow & steps",
	"validation rules",
	"user interface",
}

var actionWords = []string{
	"must", "should", "will", "shall", "can", "may", "able",
	"create", "update", "delete", "manage", "validate", "display", "handle",
}

const (
	minLineLen     = 10
	maxLineLen     = 300
	maxAcceptedLen = 150
	maxSummaryLen  = 100
)

var (
	bulletRe    = regexp.MustCompile(`^[*\-•]\s*`)
	numberingRe = regexp.MustCompile(`^\d+[.)]\s*`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// Analysis maps each category to its de-duplicated summaries in source order.
type Analysis map[Category][]string

// Get returns the summaries for c.
func (a Analysis) Get(c Category) []string {
	return a[c]
}

// Count returns the number of summaries for c.
func (a Analysis) Count(c Category) int {
	return len(a[c])
}

func (a Analysis) add(c Category, summary string) {
	for _, existing := range a[c] {
		if existing == summary {
			return
		}
	}
	a[c] = append(a[c], summary)
}

// Analyze classifies each line of text. It never fails; the functional
// category always has at least one entry.
func Analyze(text string) Analysis {
	a := make(Analysis, len(Categories))
	for _, c := range Categories {
		a[c] = []string{}
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		n := len([]rune(line))
		if n < minLineLen || n > maxLineLen {
			continue
		}
		lower := strings.ToLower(line)
		if containsAny(lower, headerPhrases) {
			continue
		}
		if n >= maxAcceptedLen {
			continue
		}
		for _, c := range Categories {
			if !containsAny(lower, keywords[c]) {
				continue
			}
			if s := Summarize(line); s != "" {
				a.add(c, s)
			}
		}
	}

	if len(a[Functional]) == 0 {
		if strings.Contains(strings.ToLower(text), "feed") {
			a[Functional] = append(a[Functional], "Create and manage feed collections")
		} else {
			a[Functional] = append(a[Functional], "Core API functionality")
		}
	}
	return a
}

// Summarize strips list markers, rejects short header-like lines, collapses
// whitespace and truncates. It returns "" for rejected lines.
func Summarize(line string) string {
	s := strings.TrimSpace(line)
	s = bulletRe.ReplaceAllString(s, "")
	s = numberingRe.ReplaceAllString(s, "")

	words := strings.Fields(s)
	if len(words) <= 3 && !containsAny(strings.ToLower(s), actionWords) {
		return ""
	}

	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if r := []rune(s); len(r) > maxSummaryLen {
		s = string(r[:maxSummaryLen]) + "..."
	}
	return s
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
