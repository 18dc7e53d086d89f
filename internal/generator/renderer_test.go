package generator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yourorg/featuregen/internal/analyzer"
	"github.com/yourorg/featuregen/pkg/types"
)

func TestRenderAnalysisReport(t *testing.T) {
	a := analyzer.Analyze(widgetRequirement)
	res := &types.GenerationResult{
		ID:        "gen_20240501_001",
		Output:    "Feature: x\nScenario: y\n",
		Tier:      types.TierDeterministic,
		TierLabel: "Deterministic Synthesis (Tier 3)",
		Operation: types.OperationBoth,
		Validation: types.ValidationReport{
			IsValid: false,
			Errors:  []string{"Background section is recommended"},
		},
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	out, err := RenderAnalysisReport(a, res)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(out, "---\n") {
		t.Fatalf("expected front matter")
	}
	parts := strings.SplitN(out, "---\n", 3)
	var meta map[string]interface{}
	if err := yaml.Unmarshal([]byte(parts[1]), &meta); err != nil {
		t.Fatalf("front matter is not yaml: %v", err)
	}
	if meta["id"] != "gen_20240501_001" || meta["tier"] != "deterministic" {
		t.Fatalf("unexpected meta %v", meta)
	}
	for _, want := range []string{"### Functional Requirements (", "**Errors:**", "- Background section is recommended", "```gherkin\nFeature: x\nScenario: y\n```"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if _, err := RenderAnalysisReport(a, nil); err == nil {
		t.Fatalf("expected error for nil result")
	}
}

func TestWriteReportReplacesAtomically(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	if _, err := WriteReport(dir, LatestReportName, "first"); err != nil {
		t.Fatalf("write: %v", err)
	}
	path, err := WriteReport(dir, LatestReportName, "second")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Fatalf("unexpected content %q", data)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}
