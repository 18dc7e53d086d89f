package generator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yourorg/featuregen/internal/analyzer"
	"github.com/yourorg/featuregen/pkg/types"
)

// LatestReportName is the file refreshed after every generation.
const LatestReportName = "latest_test_cases.md"

type reportMeta struct {
	ID        string         `yaml:"id,omitempty"`
	Tier      string         `yaml:"tier"`
	TierLabel string         `yaml:"tier_label"`
	Operation string         `yaml:"operation"`
	Valid     bool           `yaml:"valid"`
	Generated string         `yaml:"generated_at"`
	Counts    map[string]int `yaml:"analysis"`
}

// RenderAnalysisReport renders the markdown report: YAML front matter,
// the requirement analysis, validation findings and the feature text.
func RenderAnalysisReport(a analyzer.Analysis, res *types.GenerationResult) (string, error) {
	if res == nil {
		return "", errors.New("generation result is nil")
	}
	meta := reportMeta{
		ID:        res.ID,
		Tier:      string(res.Tier),
		TierLabel: res.TierLabel,
		Operation: string(res.Operation),
		Valid:     res.Validation.IsValid,
		Generated: res.CreatedAt.Format("2006-01-02 15:04:05"),
		Counts:    make(map[string]int, len(analyzer.Categories)),
	}
	for _, c := range analyzer.Categories {
		meta.Counts[c.String()] = a.Count(c)
	}
	front, err := yaml.Marshal(meta)
	if err != nil {
		return "", err
	}

	b := &strings.Builder{}
	b.WriteString("---\n")
	b.Write(front)
	b.WriteString("---\n\n")
	b.WriteString("# Generated Test Cases\n\n")

	b.WriteString("## Requirement Analysis\n")
	for _, c := range analyzer.Categories {
		items := a.Get(c)
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(b, "\n### %s (%d)\n", sectionTitle(c), len(items))
		for _, item := range items {
			fmt.Fprintf(b, "- %s\n", item)
		}
	}

	b.WriteString("\n## Validation\n")
	if res.Validation.IsValid {
		b.WriteString("\nStructure is valid.\n")
	}
	writeFindings(b, "Errors", res.Validation.Errors)
	writeFindings(b, "Warnings", res.Validation.Warnings)
	writeFindings(b, "Suggestions", res.Validation.Suggestions)

	b.WriteString("\n## Feature\n\n```gherkin\n")
	b.WriteString(strings.TrimRight(res.Output, "\n"))
	b.WriteString("\n```\n")
	return b.String(), nil
}

func sectionTitle(c analyzer.Category) string {
	words := strings.Split(c.String(), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func writeFindings(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n**%s:**\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

// WriteReport replaces outputDir/name atomically.
func WriteReport(outputDir, name, content string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(outputDir, "."+name+".*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	dst := filepath.Join(outputDir, name)
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	return dst, nil
}
