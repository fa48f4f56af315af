// Package search ranks memories by similarity weighted with confidence.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/vectorstore"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

// maxParallelCollections bounds concurrent per-collection queries.
const maxParallelCollections = 8

// Store is the subset of memory.Store the engine needs.
type Store interface {
	Options() *memory.Options
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Nearest(ctx context.Context, collection string, vector []float32, k int, filter *vectorstore.Filter) ([]memory.Candidate, error)
	Collections(ctx context.Context) ([]string, error)
	CollectionFor(category string) (string, error)
	Touch(ctx context.Context, id string) (*memory.Memory, error)
}

// ReadFilterer builds the read predicate for a requester.
type ReadFilterer interface {
	ReadFilter(ctx context.Context, requesterID, workspaceID string) (*vectorstore.Filter, error)
}

// Query describes one search.
type Query struct {
	Text        string
	RequesterID string
	WorkspaceID string
	Limit       int
	// Category restricts the search to one collection when set.
	Category string
	// Visibility narrows results to one visibility when set.
	Visibility string
}

// ScoredMemory is a ranked search hit.
type ScoredMemory struct {
	Memory     *memory.Memory `json:"memory"`
	Score      float64        `json:"score"`
	Similarity float64        `json:"similarity"`
}

// Engine runs ranked searches.
type Engine struct {
	store  Store
	authz  ReadFilterer
	logger *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(store Store, authz ReadFilterer, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if authz == nil {
		return nil, errors.New("read filterer cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, authz: authz, logger: logger}, nil
}

// Search returns up to q.Limit memories readable by the requester, ranked
// by similarity × confidence. Each returned memory has its interaction
// count incremented.
func (e *Engine) Search(ctx context.Context, q Query) ([]ScoredMemory, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", v1.ErrValidation)
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be > 0, got %d", v1.ErrValidation, q.Limit)
	}
	opts := e.store.Options()
	if q.Limit > opts.MaxSearchLimit() {
		q.Limit = opts.MaxSearchLimit()
	}

	filter, err := e.authz.ReadFilter(ctx, q.RequesterID, q.WorkspaceID)
	if err != nil {
		return nil, err
	}

	var collections []string
	if q.Category != "" {
		collection, err := e.store.CollectionFor(q.Category)
		if err != nil {
			return nil, err
		}
		category, _ := memory.NormalizeCategory(q.Category)
		filter = filter.And(vectorstore.Eq(memory.FieldCategory, category))
		collections = []string{collection}
	} else {
		if collections, err = e.store.Collections(ctx); err != nil {
			return nil, err
		}
	}
	if q.Visibility != "" {
		visibility, err := memory.ParseVisibility(q.Visibility)
		if err != nil {
			return nil, err
		}
		filter = filter.And(vectorstore.Eq(memory.FieldVisibility, string(visibility)))
	}
	if len(collections) == 0 {
		return []ScoredMemory{}, nil
	}

	vector, err := e.store.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	pool := q.Limit * opts.SearchOversample()
	perCollection := make([][]memory.Candidate, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelCollections)
	for i, collection := range collections {
		g.Go(func() error {
			candidates, err := e.store.Nearest(gctx, collection, vector, pool, filter)
			if err != nil {
				return err
			}
			perCollection[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := rank(perCollection, q.Limit)
	results := make([]ScoredMemory, 0, len(ranked))
	for _, r := range ranked {
		touched, err := e.store.Touch(ctx, r.Memory.ID)
		switch {
		case errors.Is(err, v1.ErrNotFound):
			continue
		case err != nil:
			e.logger.Warn("failed to record interaction",
				zap.String("memory_id", r.Memory.ID), zap.Error(err))
		default:
			r.Memory = touched
		}
		results = append(results, r)
	}

	e.logger.Debug("search completed",
		zap.String("workspace_id", q.WorkspaceID),
		zap.Int("collections", len(collections)),
		zap.Int("limit", q.Limit),
		zap.Int("results", len(results)))

	return results, nil
}

// rank merges per-collection candidates, drops duplicate ids and returns
// the best limit by score, then recency, then id.
func rank(perCollection [][]memory.Candidate, limit int) []ScoredMemory {
	seen := make(map[string]struct{})
	var all []ScoredMemory
	for _, candidates := range perCollection {
		for _, c := range candidates {
			if _, dup := seen[c.Memory.ID]; dup {
				continue
			}
			seen[c.Memory.ID] = struct{}{}
			all = append(all, ScoredMemory{
				Memory:     c.Memory,
				Score:      c.Similarity * c.Memory.Confidence,
				Similarity: c.Similarity,
			})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Memory.CreatedAt.Equal(b.Memory.CreatedAt) {
			return a.Memory.CreatedAt.After(b.Memory.CreatedAt)
		}
		return a.Memory.ID < b.Memory.ID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}
