// Package report renders automation results as downloadable spreadsheets
// and optionally publishes them to object storage.
package report

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/yourorg/featuregen/pkg/types"
)

const (
	SheetName    = "Automation Report"
	Title        = "API Automation Test Report"
	previewChars = 200
	maxColWidth  = 50

	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv; charset=utf-8"
)

var tableHeader = []string{"Scenario", "Status", "Status Code", "Details", "Response Preview"}

// Artifact is a rendered report held in memory.
type Artifact struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Render builds the xlsx report for summary. When the workbook cannot be
// produced the same content is returned as CSV.
func Render(summary *types.ResultsSummary, base types.ExecRequest, now time.Time) (*Artifact, error) {
	return RenderWith(summary, base, now, nil)
}

// RenderWith is Render with a logger for the CSV fallback.
func RenderWith(summary *types.ResultsSummary, base types.ExecRequest, now time.Time, logger *slog.Logger) (*Artifact, error) {
	if summary == nil {
		summary = &types.ResultsSummary{}
	}
	l := newLayout(summary, base, now)
	stamp := now.Format("20060102_150405")

	data, err := renderXLSX(l)
	if err == nil {
		return &Artifact{Data: data, ContentType: ContentTypeXLSX, Filename: "automation_report_" + stamp + ".xlsx"}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("xlsx rendering failed, falling back to csv", "error", err)

	data, err = renderCSV(l)
	if err != nil {
		return nil, fmt.Errorf("render csv report: %w", err)
	}
	return &Artifact{Data: data, ContentType: ContentTypeCSV, Filename: "automation_report_" + stamp + ".csv"}, nil
}

// layout is the format-neutral content of a report.
type layout struct {
	header  []string
	summary []string
	rows    [][]any
	status  []types.CaseStatus
}

func newLayout(s *types.ResultsSummary, base types.ExecRequest, now time.Time) *layout {
	method := base.Method
	if method == "" {
		method = "GET"
	}
	l := &layout{
		header: []string{
			Title,
			"Generated on: " + now.Format("2006-01-02 15:04:05"),
			"API Endpoint: " + base.APIEndpoint,
			"Method: " + method,
			"Authentication: " + authKind(base),
		},
		summary: []string{
			"Test Summary",
			fmt.Sprintf("Total Tests: %d", s.Summary.Total),
			fmt.Sprintf("Passed: %d", s.Summary.Passed),
			fmt.Sprintf("Failed: %d", s.Summary.Failed),
			"Success Rate: " + successRate(s.Summary.SuccessRate),
		},
	}
	for _, r := range s.TestResults {
		l.rows = append(l.rows, []any{r.Scenario, string(r.Status), r.StatusCode, r.Details, Preview(r.Response)})
		l.status = append(l.status, r.Status)
	}
	return l
}

// Preview clips a response body for the results table.
func Preview(s string) string {
	if utf8.RuneCountInString(s) <= previewChars {
		return s
	}
	return string([]rune(s)[:previewChars]) + "..."
}

func authKind(base types.ExecRequest) string {
	switch {
	case base.Token != "":
		return "Token"
	case base.Username != "":
		return "Basic"
	}
	return "None"
}

func successRate(s string) string {
	if s == "" {
		return "0%"
	}
	return s
}
