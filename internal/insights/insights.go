// Package insights summarizes a workspace's shared memories.
package insights

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/vectorstore"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

// Timeframe bounds which memories a report considers.
type Timeframe string

const (
	Day   Timeframe = "day"
	Week  Timeframe = "week"
	Month Timeframe = "month"
	All   Timeframe = "all"
)

const (
	topN           = 5
	mostAccessedN  = 3
	recentWindow   = 24 * time.Hour
	importantAbove = 0.7
)

// ParseTimeframe reports whether s names a known timeframe.
func ParseTimeframe(s string) (Timeframe, bool) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(s))); tf {
	case Day, Week, Month, All:
		return tf, true
	default:
		return Week, false
	}
}

func (tf Timeframe) window() time.Duration {
	switch tf {
	case Day:
		return 24 * time.Hour
	case Week:
		return 7 * 24 * time.Hour
	case Month:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Count is a ranked aggregate entry.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// MemorySummary is a compact view of a memory in a report.
type MemorySummary struct {
	ID               string    `json:"id"`
	Content          string    `json:"content"`
	Author           string    `json:"author"`
	Category         string    `json:"category"`
	Confidence       float64   `json:"confidence"`
	InteractionCount int64     `json:"interaction_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// Report aggregates a workspace's non-private memories.
type Report struct {
	WorkspaceID          string          `json:"workspace_id"`
	Timeframe            Timeframe       `json:"timeframe"`
	GeneratedAt          time.Time       `json:"generated_at"`
	TotalMemories        int             `json:"total_memories"`
	RecentMemories24h    int             `json:"recent_memories_24h"`
	ImportantRecent      int             `json:"important_recent"`
	TopCategories        []Count         `json:"top_categories"`
	TopTags              []Count         `json:"top_tags"`
	TopContributors      []Count         `json:"top_contributors"`
	MostAccessedMemories []MemorySummary `json:"most_accessed_memories"`
}

// Scanner lists memories matching a filter.
type Scanner interface {
	Scan(ctx context.Context, filter *vectorstore.Filter) ([]*memory.Memory, error)
}

// Aggregator builds reports.
type Aggregator struct {
	store  Scanner
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an Aggregator.
func NewAggregator(store Scanner, logger *zap.Logger, opts ...Option) (*Aggregator, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{store: store, logger: logger, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Insights reports on the team and public memories of workspaceID created
// within timeframe. An empty or unknown timeframe means week.
func (a *Aggregator) Insights(ctx context.Context, workspaceID, timeframe string) (*Report, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, fmt.Errorf("%w: workspace id cannot be empty", v1.ErrValidation)
	}
	tf, ok := ParseTimeframe(timeframe)
	if !ok {
		a.logger.Warn("unknown timeframe, using week",
			zap.String("timeframe", timeframe),
			zap.String("workspace_id", workspaceID))
	}

	filter := (&vectorstore.Filter{}).And(
		vectorstore.Eq(memory.FieldWorkspaceID, workspaceID),
		vectorstore.Nested(&vectorstore.Filter{Should: []vectorstore.Condition{
			vectorstore.Eq(memory.FieldVisibility, string(memory.VisibilityTeam)),
			vectorstore.Eq(memory.FieldVisibility, string(memory.VisibilityPublic)),
		}}),
	)
	memories, err := a.store.Scan(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := a.now().UTC()
	var inWindow []*memory.Memory
	for _, m := range memories {
		if w := tf.window(); w > 0 && m.CreatedAt.Before(now.Add(-w)) {
			continue
		}
		inWindow = append(inWindow, m)
	}
	return summarize(workspaceID, tf, now, inWindow), nil
}

func summarize(workspaceID string, tf Timeframe, now time.Time, memories []*memory.Memory) *Report {
	categories := map[string]int{}
	tags := map[string]int{}
	authors := map[string]int{}
	r := &Report{
		WorkspaceID:   workspaceID,
		Timeframe:     tf,
		GeneratedAt:   now,
		TotalMemories: len(memories),
	}

	for _, m := range memories {
		categories[m.Category]++
		for _, t := range m.Tags {
			tags[t]++
		}
		authors[m.OwnerID]++
		if !m.CreatedAt.Before(now.Add(-recentWindow)) {
			r.RecentMemories24h++
			if m.Confidence > importantAbove {
				r.ImportantRecent++
			}
		}
	}
	r.TopCategories = top(categories, topN)
	r.TopTags = top(tags, topN)
	r.TopContributors = top(authors, topN)

	sorted := append([]*memory.Memory(nil), memories...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.InteractionCount != b.InteractionCount {
			return a.InteractionCount > b.InteractionCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	if len(sorted) > mostAccessedN {
		sorted = sorted[:mostAccessedN]
	}
	r.MostAccessedMemories = make([]MemorySummary, 0, len(sorted))
	for _, m := range sorted {
		r.MostAccessedMemories = append(r.MostAccessedMemories, MemorySummary{
			ID:               m.ID,
			Content:          m.Content,
			Author:           m.OwnerID,
			Category:         m.Category,
			Confidence:       m.Confidence,
			InteractionCount: m.InteractionCount,
			CreatedAt:        m.CreatedAt,
		})
	}
	return r
}

// top returns the n largest counts, ties broken by name.
func top(counts map[string]int, n int) []Count {
	out := make([]Count, 0, len(counts))
	for name, c := range counts {
		out = append(out, Count{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
