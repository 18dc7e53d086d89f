package feature

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/yourorg/featuregen/pkg/types"
)

var (
	scenarioAliases       = []string{"Test Scenario", "scenario", "Scenario", "name"}
	descriptionAliases    = []string{"Test Description", "Description", "description"}
	objectiveAliases      = []string{"Test Objective", "Objective", "objective"}
	methodAliases         = []string{"HTTP Method", "Method", "method"}
	pathAliases           = []string{"API Path", "Path", "path"}
	expectedResultAliases = []string{"Expected Result", "expectedResult"}
	expectedStatusAliases = []string{"Expected Status", "expectedStatus"}
)

// Ingest resolves generatedTestCases into TestCases. Any raw-text input
// switches to parsing: all raw-text inputs are joined and parsed together.
// Otherwise each structured object becomes one case.
func Ingest(inputs []types.TestCaseInput, logger *slog.Logger) []types.TestCase {
	if logger == nil {
		logger = slog.Default()
	}

	var raw []string
	for _, in := range inputs {
		if in.Kind == types.InputRawText {
			raw = append(raw, in.Raw)
		}
	}
	if len(raw) > 0 {
		cases := Parse(strings.Join(raw, "\n"))
		logger.Info("parsed feature text", "inputs", len(raw), "scenarios", len(cases))
		return cases
	}

	var cases []types.TestCase
	for i, in := range inputs {
		if in.Kind != types.InputStructured {
			logger.Warn("skipping unknown test case format", "index", i)
			continue
		}
		tc, ok := FromStructured(in.Fields, i+1)
		if !ok {
			logger.Warn("skipping malformed structured test case", "index", i)
			continue
		}
		cases = append(cases, tc)
	}
	return cases
}

// FromStructured builds a TestCase from a JSON object. position names
// cases that carry no scenario field.
func FromStructured(obj []byte, position int) (types.TestCase, bool) {
	if !gjson.ValidBytes(obj) {
		return types.TestCase{}, false
	}
	root := gjson.ParseBytes(obj)
	if !root.IsObject() {
		return types.TestCase{}, false
	}

	tc := types.TestCase{
		Scenario:    firstString(root, scenarioAliases),
		Description: firstString(root, descriptionAliases),
		Objective:   firstString(root, objectiveAliases),
		Method:      strings.ToUpper(firstString(root, methodAliases)),
		Path:        firstString(root, pathAliases),
		Fields:      append([]byte(nil), obj...),
	}
	if tc.Scenario == "" {
		tc.Scenario = fmt.Sprintf("Generated Test Case %d", position)
	}

	tc.ExpectedResult = firstString(root, expectedResultAliases)
	if status := firstInt(root, expectedStatusAliases); status > 0 {
		tc.ExpectedStatus = status
		if tc.ExpectedResult == "" {
			tc.ExpectedResult = fmt.Sprintf("Status %d", status)
		}
	}
	if steps := Lookup(root, "Karate Steps"); steps.IsArray() {
		steps.ForEach(func(_, v gjson.Result) bool {
			tc.Steps = appendStepLines(tc.Steps, v.String())
			return true
		})
	} else if steps.Exists() {
		tc.Steps = appendStepLines(tc.Steps, steps.String())
	}
	if tc.ExpectedStatus >= 400 {
		tc.Type = types.CaseNegative
	} else {
		tc.Type = types.CasePositive
	}
	return tc, true
}

func appendStepLines(dst []string, text string) []string {
	for _, s := range strings.Split(text, "\n") {
		if s = strings.TrimSpace(s); s != "" {
			dst = append(dst, s)
		}
	}
	return dst
}

func firstString(root gjson.Result, keys []string) string {
	for _, k := range keys {
		if v := Lookup(root, k); v.Exists() && v.Type != gjson.Null {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstInt(root gjson.Result, keys []string) int {
	for _, k := range keys {
		v := Lookup(root, k)
		switch v.Type {
		case gjson.Number:
			return int(v.Int())
		case gjson.String:
			if isDigits(strings.TrimSpace(v.Str)) {
				return int(v.Int())
			}
		}
	}
	return 0
}

// Lookup fetches a top-level field by its literal name.
func Lookup(root gjson.Result, name string) gjson.Result {
	return root.Get(escapeKey(name))
}

func escapeKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
