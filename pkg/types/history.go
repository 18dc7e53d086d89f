package types

import "time"

// GenerationRecord is one persisted generation.
type GenerationRecord struct {
	ID          string    `json:"id"`
	Operation   string    `json:"operation"`
	Tier        Tier      `json:"tier"`
	TierLabel   string    `json:"tier_label"`
	Requirement string    `json:"requirement"`
	APIContext  string    `json:"api_context"`
	Output      string    `json:"output"`
	Valid       bool      `json:"valid"`
	Errors      []string  `json:"errors,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RunRecord is one persisted automation run.
type RunRecord struct {
	ID            string            `json:"id"`
	Endpoint      string            `json:"endpoint"`
	Method        string            `json:"method"`
	ExecutionType ExecutionType     `json:"execution_type"`
	Total         int               `json:"total"`
	Passed        int               `json:"passed"`
	Failed        int               `json:"failed"`
	SuccessRate   string            `json:"success_rate"`
	Results       []ExecutionResult `json:"results,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
