package analyzer

import (
	"fmt"
	"strings"
)

const enhanceLimit = 10

var enhanceSections = []struct {
	title    string
	category Category
}{
	{"FUNCTIONAL REQUIREMENTS IDENTIFIED", Functional},
	{"VALIDATION POINTS IDENTIFIED", Validation},
	{"BUSINESS RULES IDENTIFIED", BusinessRule},
	{"ERROR CONDITIONS TO TEST", ErrorCondition},
	{"INTEGRATION POINTS IDENTIFIED", Integration},
}

// Enhance prefixes the requirement with a structured analysis block for
// model prompts.
func Enhance(text string) string {
	return EnhanceWith(Analyze(text), text)
}

// EnhanceWith renders the block from an existing analysis.
func EnhanceWith(a Analysis, text string) string {
	b := &strings.Builder{}
	b.WriteString("\nSTRUCTURED REQUIREMENT ANALYSIS:\n\n")
	for _, sec := range enhanceSections {
		fmt.Fprintf(b, "%s:\n", sec.title)
		items := a.Get(sec.category)
		if len(items) > enhanceLimit {
			items = items[:enhanceLimit]
		}
		for _, item := range items {
			fmt.Fprintf(b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
	b.WriteString("ORIGINAL REQUIREMENT DOCUMENT:\n")
	b.WriteString(text)
	b.WriteString("\n\nBASED ON THIS ANALYSIS, generate comprehensive test cases that cover all identified requirements.\n")
	return b.String()
}
