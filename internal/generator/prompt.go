package generator

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/yourorg/featuregen/pkg/types"
)

const systemPrompt = "You are a senior software engineer and a professional Karate DSL test case generator with expertise in requirement analysis. " +
	"Analyze requirement documents thoroughly and generate complete, executable Karate feature files that cover every documented requirement. " +
	"STRICT RULES: " +
	"1. Never hallucinate or assume requirements not explicitly stated " +
	"2. Base ALL test cases on actual documented requirements " +
	"3. Ensure proper Karate DSL syntax with executable scenarios " +
	"4. Generate both positive and negative test cases as specified " +
	"5. Include validation for all identified requirements"

const analysisInstructions = `ANALYSIS INSTRUCTIONS:
1. READ AND ANALYZE every line of the requirement document carefully
2. IDENTIFY all functional requirements, business rules, validation points, and constraints
3. EXTRACT all testable conditions including:
   - Input validation requirements
   - Business logic validations
   - Data persistence requirements
   - Error handling scenarios
   - Authentication/authorization rules
   - Integration points and dependencies
   - Performance and boundary conditions
4. MAP each identified requirement to specific test scenarios
5. ENSURE complete coverage of all documented requirements

`

const generationInstructions = `GENERATE A COMPLETE KARATE FEATURE FILE:
Create a .feature file that includes:
- Feature description reflecting the analyzed requirements
- Background section with setup and configuration
- Multiple test scenarios covering ALL identified requirements
- Given-When-Then structure with Karate DSL syntax
- Data validation using 'match' assertions
- Error handling and boundary condition tests
- Authentication/authorization tests where applicable
- Performance validation where specified

VALIDATION REQUIREMENTS:
- Each scenario must test a specific requirement from the document
- Use Karate syntax: Given path, When method, Then status, And match
- Include request/response validation appropriate to the requirement
- Add comments linking test scenarios to specific requirements
- Ensure all test cases are executable and realistic

OUTPUT: Complete Karate .feature file ready for execution.`

// ModelContext is the prompt pair sent to a model tier.
type ModelContext struct {
	System string
	User   string
}

// Joined concatenates both prompts for completion-style models.
func (m ModelContext) Joined() string {
	return m.System + "\n\n" + m.User
}

// BuildModelContext builds the prompts for requirement (usually the
// analyzer-enhanced document), the optional API context and the operation.
func BuildModelContext(requirement string, apiCtx types.APIContext, op types.Operation) ModelContext {
	b := &strings.Builder{}
	b.WriteString("COMPREHENSIVE REQUIREMENT ANALYSIS AND TEST GENERATION\n\n")
	b.WriteString("REQUIREMENT DOCUMENT TO ANALYZE:\n")
	b.WriteString("===========================================\n")
	b.WriteString(requirement)
	b.WriteString("\n===========================================\n\n")
	b.WriteString(analysisInstructions)

	fmt.Fprintf(b, "TEST CASE GENERATION FOCUS: %s\n", strings.ToUpper(string(op)))
	b.WriteString("- If 'POSITIVE': Focus on happy path scenarios and valid use cases\n")
	b.WriteString("- If 'NEGATIVE': Focus on error conditions, invalid inputs, and failure scenarios\n")
	b.WriteString("- If 'BOTH': Generate positive AND negative test cases\n\n")

	if block := apiCtx.String(); block != "" {
		b.WriteString("API CONTEXT FOR TEST GENERATION:\n")
		b.WriteString(block)
		fmt.Fprintf(b, "\n**CRITICAL: All test scenarios must use HTTP method '%s' unless testing error conditions.**\n", apiCtx.MethodOrDefault())
		b.WriteString("\n\n")
	}

	b.WriteString(generationInstructions)
	return ModelContext{System: systemPrompt, User: b.String()}
}

// EstimateTokens provides a rough token estimate.
// CJK text is ~2 chars/token, others ~4 chars/token.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	var cjk, other int
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			cjk++
			continue
		}
		other++
	}
	return (cjk+1)/2 + (other+3)/4
}
