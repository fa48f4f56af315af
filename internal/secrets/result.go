package secrets

import "time"

// Result contains the scrubbing result.
type Result struct {
	// Scrubbed is the content with secrets redacted.
	Scrubbed string `json:"scrubbed"`

	// Findings describes each detected secret, without its value.
	Findings []Finding `json:"findings,omitempty"`

	// ByRule maps rule IDs to finding counts.
	ByRule map[string]int `json:"by_rule,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Finding represents a detected secret.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	// Source is "regex" or "gitleaks".
	Source     string `json:"source"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// HasFindings returns true if any secrets were found.
func (r *Result) HasFindings() bool {
	return len(r.Findings) > 0
}
