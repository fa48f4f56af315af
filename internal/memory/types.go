package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bparpette/MistralHackathon/internal/vectorstore"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

// Visibility controls who may read a memory.
type Visibility string

const (
	// VisibilityPrivate memories are readable by their owner only.
	VisibilityPrivate Visibility = "private"

	// VisibilityTeam memories are readable by workspace members.
	VisibilityTeam Visibility = "team"

	// VisibilityPublic memories are readable by any authenticated requester.
	VisibilityPublic Visibility = "public"
)

// ParseVisibility validates s. Empty means team.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return VisibilityTeam, nil
	case VisibilityPrivate, VisibilityTeam, VisibilityPublic:
		return v, nil
	default:
		return "", fmt.Errorf("%w: visibility must be private, team or public, got %q", v1.ErrValidation, s)
	}
}

// DefaultCategory is used when a memory is created without one.
const DefaultCategory = "general"

var categoryPattern = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

// NormalizeCategory lowercases c and maps spaces and hyphens to underscores.
// Empty means DefaultCategory.
func NormalizeCategory(c string) (string, error) {
	c = strings.TrimSpace(c)
	if c == "" {
		return DefaultCategory, nil
	}
	normalized := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(c))
	if !categoryPattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: category %q must match %s after normalization", v1.ErrValidation, c, categoryPattern)
	}
	return normalized, nil
}

// Memory is one unit of shared team knowledge.
type Memory struct {
	ID               string     `json:"id"`
	Content          string     `json:"content"`
	Embedding        []float32  `json:"-"`
	OwnerID          string     `json:"owner_id"`
	WorkspaceID      string     `json:"workspace_id"`
	Category         string     `json:"category"`
	Tags             []string   `json:"tags"`
	Visibility       Visibility `json:"visibility"`
	Confidence       float64    `json:"confidence"`
	Verifiers        []string   `json:"verifiers"`
	InteractionCount int64      `json:"interaction_count"`
	CreatedAt        time.Time  `json:"created_at"`
	RelatedIDs       []string   `json:"related_ids"`
	Version          int64      `json:"version"`
}

// Clone returns a deep copy of m.
func (m *Memory) Clone() *Memory {
	if m == nil {
		return nil
	}
	c := *m
	c.Embedding = append([]float32(nil), m.Embedding...)
	c.Tags = append([]string(nil), m.Tags...)
	c.Verifiers = append([]string(nil), m.Verifiers...)
	c.RelatedIDs = append([]string(nil), m.RelatedIDs...)
	return &c
}

// VerifiedBy reports whether userID already corroborated m.
func (m *Memory) VerifiedBy(userID string) bool {
	return contains(m.Verifiers, userID)
}

// CreateRequest holds the caller-supplied fields of a new memory.
type CreateRequest struct {
	Content     string
	OwnerID     string
	WorkspaceID string
	Category    string
	Tags        []string
	Visibility  string
	// ConfidenceHint is the caller's initial confidence. Nil means the
	// configured default.
	ConfidenceHint *float64
}

// Page selects a window of a listing.
type Page struct {
	Offset int
	Limit  int
}

// PageResult is one window of a listing.
type PageResult struct {
	Memories []*Memory `json:"memories"`
	// NextOffset is the offset of the following page, or -1 when exhausted.
	NextOffset int `json:"next_offset"`
	Total      int `json:"total"`
}

// Candidate is a nearest-neighbor hit.
type Candidate struct {
	Memory     *Memory
	Similarity float64
}

// Authorizer makes the permission decisions Store needs.
type Authorizer interface {
	// ReadFilter returns the index filter selecting what requesterID may
	// read in workspaceID.
	ReadFilter(ctx context.Context, requesterID, workspaceID string) (*vectorstore.Filter, error)

	// AuthorizeDelete returns nil if requesterID may delete m.
	AuthorizeDelete(ctx context.Context, requesterID string, m *Memory) error
}

// normalizeTags trims, drops empties, dedupes and sorts.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" && !contains(out, t) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func addToSet(set []string, v string) ([]string, bool) {
	if contains(set, v) {
		return set, false
	}
	return append(set, v), true
}

func removeFromSet(set []string, v string) ([]string, bool) {
	for i, s := range set {
		if s == v {
			out := make([]string, 0, len(set)-1)
			out = append(out, set[:i]...)
			return append(out, set[i+1:]...), true
		}
	}
	return set, false
}
