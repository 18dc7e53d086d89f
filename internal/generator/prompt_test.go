package generator

import (
	"strings"
	"testing"

	"github.com/yourorg/featuregen/pkg/types"
)

func TestBuildModelContextWithAPIContext(t *testing.T) {
	apiCtx := types.APIContext{Endpoint: "https://api.example.com/v1/widgets", Method: "post", Username: "u", Password: "p"}
	mc := BuildModelContext("Users must be able to create widgets.", apiCtx, types.OperationNegative)

	if !strings.Contains(mc.System, "STRICT RULES") {
		t.Fatalf("system prompt missing rules")
	}
	for _, want := range []string{
		"Users must be able to create widgets.",
		"TEST CASE GENERATION FOCUS: NEGATIVE",
		"- Endpoint: https://api.example.com/v1/widgets",
		"- Method: POST",
		"- Authentication: Basic Auth",
		"**CRITICAL: All test scenarios must use HTTP method 'POST' unless testing error conditions.**",
		"VALIDATION REQUIREMENTS:",
	} {
		if !strings.Contains(mc.User, want) {
			t.Fatalf("user prompt missing %q", want)
		}
	}
	if strings.Contains(mc.User, "p\n") && strings.Contains(mc.User, "Password") {
		t.Fatalf("password must not leak into the prompt")
	}
}

func TestBuildModelContextWithoutAPIContext(t *testing.T) {
	mc := BuildModelContext("req", types.APIContext{}, types.OperationBoth)
	if strings.Contains(mc.User, "API CONTEXT FOR TEST GENERATION") {
		t.Fatalf("unexpected api context block")
	}
	if strings.Contains(mc.User, "CRITICAL") {
		t.Fatalf("unexpected method emphasis")
	}
	if !strings.HasPrefix(mc.Joined(), mc.System+"\n\n") {
		t.Fatalf("joined prompt should start with system prompt")
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Fatalf("expected 0")
	}
	if got := EstimateTokens("abcdefgh"); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := EstimateTokens("你好"); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}
