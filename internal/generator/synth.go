package generator

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/featuregen/internal/analyzer"
	"github.com/yourorg/featuregen/pkg/types"
)

const quoteChars = 30

// Limits caps how many analyzed items of each category become scenarios.
type Limits struct {
	Functional      int
	Validation      int
	BusinessRules   int
	ErrorConditions int
}

// DefaultLimits mirrors the configured defaults.
var DefaultLimits = Limits{Functional: 3, Validation: 3, BusinessRules: 2, ErrorConditions: 2}

// Synthesizer builds a Karate feature from an analysis without any model.
// It never fails.
type Synthesizer struct {
	Limits Limits
	Now    func() time.Time
	NewID  func() string
}

// NewSynthesizer returns a synthesizer with the given caps.
func NewSynthesizer(limits Limits) *Synthesizer {
	return &Synthesizer{Limits: limits}
}

// Synthesize analyzes text and renders a feature for it.
func (s *Synthesizer) Synthesize(text string, op types.Operation, apiCtx types.APIContext) string {
	return s.FromAnalysis(analyzer.Analyze(text), op, apiCtx)
}

// FromAnalysis renders the feature text for an existing analysis.
func (s *Synthesizer) FromAnalysis(a analyzer.Analysis, op types.Operation, apiCtx types.APIContext) string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	newID := uuid.NewString
	if s.NewID != nil {
		newID = s.NewID
	}
	method := synthMethod(apiCtx)

	b := &strings.Builder{}
	fmt.Fprintf(b, "Feature: %s API Test Cases - Comprehensive Coverage (%d functional requirements identified)\n", method, a.Count(analyzer.Functional))
	fmt.Fprintf(b, "  Generated from requirement analysis with %d functional requirements,\n", a.Count(analyzer.Functional))
	fmt.Fprintf(b, "  %d validation points, and %d business rules identified.\n", a.Count(analyzer.Validation), a.Count(analyzer.BusinessRule))
	fmt.Fprintf(b, "  # Synthesized at: %s (%s)\n\n", now().Format("2006-01-02 15:04:05"), strings.ToUpper(string(op)))

	b.WriteString("Background:\n")
	if base := baseURL(apiCtx.Endpoint); base != "" {
		fmt.Fprintf(b, "  * url '%s'\n", base)
	}
	b.WriteString("  * configure connectTimeout = 5000\n")
	b.WriteString("  * configure readTimeout = 5000\n")
	b.WriteString("  * configure logPrettyRequest = true\n")
	b.WriteString("  * configure logPrettyResponse = true\n\n")

	w := &scenarioWriter{b: b, n: 1}
	sections := []struct {
		category analyzer.Category
		limit    int
		title    string
		label    string
		path     string
		status   int
		negative bool
	}{
		{analyzer.Functional, s.Limits.Functional, "Functional Requirement Test %d - Core Functionality", "Requirement", "/api/v1/resource", 200, false},
		{analyzer.Validation, s.Limits.Validation, "Validation Test %d - Input Data Validation", "Validation", "/api/v1/resource", 200, false},
		{analyzer.BusinessRule, s.Limits.BusinessRules, "Business Rule Test %d - System Constraints", "Business Rule", "/api/v1/resource", 200, false},
		{analyzer.ErrorCondition, s.Limits.ErrorConditions, "Error Condition Test %d - Error Handling", "Error Condition", "/api/v1/invalid", 400, true},
	}
	for _, sec := range sections {
		items := a.Get(sec.category)
		if sec.limit >= 0 && len(items) > sec.limit {
			items = items[:sec.limit]
		}
		for i, item := range items {
			w.open(fmt.Sprintf(sec.title, i+1), fmt.Sprintf("%s: %s", sec.label, quote(item)))
			if sec.category == analyzer.Functional {
				fmt.Fprintf(b, "  # Requirement: %s\n", quote(item))
			}
			fmt.Fprintf(b, "  Given path '%s'\n", sec.path)
			fmt.Fprintf(b, "  When method %s\n", method)
			fmt.Fprintf(b, "  Then status %d\n", sec.status)
			if sec.negative {
				b.WriteString("  And match response.error != null\n")
			} else {
				b.WriteString("  And match response != null\n")
				fmt.Fprintf(b, "  * print 'Verified: %s'\n", quote(item))
			}
			b.WriteString("\n")
		}
	}

	w.open("Authentication Required Test", "Verifies protected resources reject invalid credentials")
	b.WriteString("  Given path '/api/v1/secure'\n")
	b.WriteString("  * header Authorization = 'Bearer invalid-token'\n")
	fmt.Fprintf(b, "  When method %s\n", method)
	b.WriteString("  Then status 401\n\n")

	w.open("Performance Test", "Verifies the API answers within 5 seconds")
	b.WriteString("  Given path '/api/v1/resource'\n")
	fmt.Fprintf(b, "  When method %s\n", method)
	b.WriteString("  Then status 200\n")
	b.WriteString("  * assert responseTime < 5000\n\n")

	w.open("Content Type Validation", "Verifies JSON content negotiation")
	b.WriteString("  Given path '/api/v1/resource'\n")
	b.WriteString("  * header Accept = 'application/json'\n")
	fmt.Fprintf(b, "  When method %s\n", method)
	b.WriteString("  Then status 200\n")
	b.WriteString("  And match header Content-Type contains 'application/json'\n\n")

	w.open("Invalid Endpoint Test", "Verifies unknown paths return not found")
	b.WriteString("  Given path '/api/v1/nonexistent'\n")
	fmt.Fprintf(b, "  When method %s\n", method)
	b.WriteString("  Then status 404\n")

	switch method {
	case "POST":
		b.WriteString("\n")
		w.open("Create Resource With Valid Payload", "Verifies creation with a complete payload")
		b.WriteString("  Given path '/api/v1/resource'\n")
		fmt.Fprintf(b, "  And request {\"name\": \"Test Resource\", \"description\": \"Created by synthesized test\", \"referenceId\": \"%s\"}\n", newID())
		b.WriteString("  When method POST\n")
		b.WriteString("  Then status 201\n")
		b.WriteString("  And match response.id != null\n\n")

		w.open("Create Resource With Invalid Payload", "Verifies malformed payloads are rejected")
		b.WriteString("  Given path '/api/v1/resource'\n")
		b.WriteString("  And request {\"invalid\": \"data\"}\n")
		b.WriteString("  When method POST\n")
		b.WriteString("  Then status 400\n\n")

		w.open("Create Resource With Empty Payload", "Verifies empty payloads are rejected")
		b.WriteString("  Given path '/api/v1/resource'\n")
		b.WriteString("  And request {}\n")
		b.WriteString("  When method POST\n")
		b.WriteString("  Then status 400\n")
	case "PUT":
		b.WriteString("\n")
		w.open("Update Existing Resource", "Verifies an existing resource can be replaced")
		b.WriteString("  Given path '/api/v1/resource/1'\n")
		b.WriteString("  And request {\"name\": \"Updated Resource\"}\n")
		b.WriteString("  When method PUT\n")
		b.WriteString("  Then status 200\n\n")

		w.open("Update Missing Resource", "Verifies updates to unknown resources return not found")
		b.WriteString("  Given path '/api/v1/resource/999'\n")
		b.WriteString("  And request {\"name\": \"Updated Resource\"}\n")
		b.WriteString("  When method PUT\n")
		b.WriteString("  Then status 404\n")
	case "DELETE":
		b.WriteString("\n")
		w.open("Delete Existing Resource", "Verifies an existing resource can be removed")
		b.WriteString("  Given path '/api/v1/resource/1'\n")
		b.WriteString("  When method DELETE\n")
		b.WriteString("  Then status 204\n\n")

		w.open("Delete Missing Resource", "Verifies deletes of unknown resources return not found")
		b.WriteString("  Given path '/api/v1/resource/999'\n")
		b.WriteString("  When method DELETE\n")
		b.WriteString("  Then status 404\n")
	}
	return b.String()
}

// synthMethods are the methods a synthesized feature may name. Anything else
// renders as GET so the output always carries a recognizable method.
var synthMethods = map[string]bool{"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true}

func synthMethod(apiCtx types.APIContext) string {
	if m := apiCtx.MethodOrDefault(); synthMethods[m] {
		return m
	}
	return "GET"
}

type scenarioWriter struct {
	b *strings.Builder
	n int
}

func (w *scenarioWriter) open(title, comment string) {
	fmt.Fprintf(w.b, "Scenario: %s\n", title)
	fmt.Fprintf(w.b, "  # Test %d: %s\n", w.n, comment)
	w.n++
}

func quote(s string) string {
	s = strings.ReplaceAll(s, "'", "")
	r := []rune(s)
	if len(r) <= quoteChars {
		return s
	}
	return string(r[:quoteChars]) + "..."
}

// baseURL returns scheme://host of endpoint, or "" when it has none.
func baseURL(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
