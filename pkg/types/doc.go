package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Operation selects which kind of scenarios a generation emphasises.
type Operation string

const (
	OperationPositive Operation = "POSITIVE"
	OperationNegative Operation = "NEGATIVE"
	OperationBoth     Operation = "BOTH"
)

// ErrInvalidOperation is returned for an operation outside POSITIVE, NEGATIVE and BOTH.
var ErrInvalidOperation = errors.New("operation must be POSITIVE, NEGATIVE or BOTH")

// ParseOperation normalises s case-insensitively.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToUpper(strings.TrimSpace(s)))
	switch op {
	case OperationPositive, OperationNegative, OperationBoth:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOperation, s)
}

// AuthType is the authentication scheme of the target API.
type AuthType string

const (
	AuthNone  AuthType = "none"
	AuthBasic AuthType = "basic"
	AuthToken AuthType = "token"
)

// APIContext carries the target API details supplied with a requirement.
type APIContext struct {
	Endpoint      string   `json:"apiEndpoint,omitempty"`
	Method        string   `json:"apiMethod,omitempty"`
	AuthType      AuthType `json:"authType,omitempty"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"-"`
	Token         string   `json:"-"`
	Payload       string   `json:"payload,omitempty"`
	ResourceID    string   `json:"resourceId,omitempty"`
	AcceptHeader  string   `json:"acceptHeader,omitempty"`
	CustomHeaders string   `json:"customHeaders,omitempty"`
}

// MethodOrDefault returns the upper-cased method, GET when unset.
func (c APIContext) MethodOrDefault() string {
	if m := strings.ToUpper(strings.TrimSpace(c.Method)); m != "" {
		return m
	}
	return "GET"
}

// AuthLabel describes the authentication in prompt text.
func (c APIContext) AuthLabel() string {
	switch {
	case c.Username != "" && c.Password != "" && c.AuthType != AuthToken:
		return "Basic Auth"
	case c.Token != "" && c.AuthType != AuthBasic:
		return "Bearer Token"
	}
	return "None"
}

// String renders the context block embedded into model prompts. It is
// empty when no endpoint is set.
func (c APIContext) String() string {
	if strings.TrimSpace(c.Endpoint) == "" {
		return ""
	}
	b := &strings.Builder{}
	b.WriteString("\nAPI Context:\n")
	fmt.Fprintf(b, "- Endpoint: %s\n", c.Endpoint)
	fmt.Fprintf(b, "- Method: %s\n", c.MethodOrDefault())
	fmt.Fprintf(b, "- Authentication: %s\n", c.AuthLabel())
	if c.Payload != "" {
		fmt.Fprintf(b, "- Payload: %s...\n", clip(c.Payload, 100))
	}
	if c.AcceptHeader != "" {
		fmt.Fprintf(b, "- Accept Header: %s\n", c.AcceptHeader)
	}
	if c.CustomHeaders != "" {
		fmt.Fprintf(b, "- Custom Headers: %s...\n", clip(c.CustomHeaders, 100))
	}
	return b.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ValidationReport lists structural findings on feature text.
type ValidationReport struct {
	IsValid     bool     `json:"is_valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

// Tier identifies which generator produced an output.
type Tier string

const (
	TierRemote        Tier = "remote"
	TierLocal         Tier = "local"
	TierDeterministic Tier = "deterministic"
)

// GenerationResult is the output of one generation request.
type GenerationResult struct {
	ID         string           `json:"id,omitempty"`
	Output     string           `json:"output"`
	Tier       Tier             `json:"tier"`
	TierLabel  string           `json:"tier_label"`
	Operation  Operation        `json:"operation"`
	Validation ValidationReport `json:"validation"`
	CreatedAt  time.Time        `json:"created_at"`
}
