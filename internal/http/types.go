package http

import (
	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/search"
)

// AddMemoryRequest is the request body for POST /api/v1/memories.
type AddMemoryRequest struct {
	WorkspaceID    string   `json:"workspace_id"`
	Content        string   `json:"content"`
	Category       string   `json:"category,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Visibility     string   `json:"visibility,omitempty"`
	ConfidenceHint *float64 `json:"confidence_hint,omitempty"`
}

// AddMemoryResponse is the response body for POST /api/v1/memories.
type AddMemoryResponse struct {
	Memory     *memory.Memory `json:"memory"`
	LinkedIDs  []string       `json:"linked_ids"`
	LinkStatus string         `json:"link_status"`
}

// DefaultSearchLimit is the result count when a search names none.
const DefaultSearchLimit = 5

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Query       string `json:"query"`
	// Limit defaults to DefaultSearchLimit when absent.
	Limit      *int   `json:"limit,omitempty"`
	Category   string `json:"category,omitempty"`
	Visibility string `json:"visibility,omitempty"`
}

// SearchResponse is the response body for POST /api/v1/search.
type SearchResponse struct {
	Results []search.ScoredMemory `json:"results"`
	Count   int                   `json:"count"`
}

// DeleteResponse acknowledges DELETE /api/v1/memories/:id.
type DeleteResponse struct {
	MemoryID string `json:"memory_id"`
	Deleted  bool   `json:"deleted"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Telemetry string `json:"telemetry,omitempty"`
}

// ErrorResponse wraps every API error.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the error class and a caller-safe message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
