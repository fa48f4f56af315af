// Package linking connects a new memory to its closest neighbors in the
// same workspace.
package linking

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/vectorstore"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

// Status is the outcome of a linking pass.
type Status int

const (
	StatusLinked Status = iota
	StatusSkipped
)

func (s Status) String() string {
	if s == StatusSkipped {
		return "skipped"
	}
	return "linked"
}

// Result reports what a linking pass did. Failures are carried in Err and
// never abort the caller.
type Result struct {
	Status    Status
	LinkedIDs []string
	Reason    string
	Err       error
}

func (r Result) String() string {
	if r.Status == StatusSkipped {
		return "linking skipped: " + r.Reason
	}
	return fmt.Sprintf("linked to %d neighbors", len(r.LinkedIDs))
}

// maxParallelCollections bounds concurrent neighbor queries.
const maxParallelCollections = 8

// Store is the subset of memory.Store the linker needs.
type Store interface {
	Options() *memory.Options
	Collections(ctx context.Context) ([]string, error)
	Nearest(ctx context.Context, collection string, vector []float32, k int, filter *vectorstore.Filter) ([]memory.Candidate, error)
	Link(ctx context.Context, a, b string) error
}

// Linker links memories to similar ones.
type Linker struct {
	store  Store
	logger *zap.Logger
}

// NewLinker creates a Linker.
func NewLinker(store Store, logger *zap.Logger) (*Linker, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Linker{store: store, logger: logger}, nil
}

// Link finds the nearest neighbors of m within scope and links those above
// the similarity threshold. scope must restrict to m's workspace.
func (l *Linker) Link(ctx context.Context, m *memory.Memory, scope *vectorstore.Filter) Result {
	opts := l.store.Options()
	k := opts.LinkNeighborCount()

	collections, err := l.store.Collections(ctx)
	if err != nil {
		return l.skipped(m, err)
	}

	perCollection := make([][]memory.Candidate, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelCollections)
	for i, collection := range collections {
		g.Go(func() error {
			// One extra slot since m itself is usually its own nearest hit.
			hits, err := l.store.Nearest(gctx, collection, m.Embedding, k+1, scope)
			if err != nil {
				return err
			}
			perCollection[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return l.skipped(m, err)
	}

	var candidates []memory.Candidate
	for _, hits := range perCollection {
		for _, c := range hits {
			if c.Memory.ID == m.ID || c.Memory.WorkspaceID != m.WorkspaceID {
				continue
			}
			candidates = append(candidates, c)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Memory.ID < candidates[j].Memory.ID
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	linked := []string{}
	for _, c := range candidates {
		if c.Similarity <= opts.LinkThreshold() {
			break
		}
		if err := l.store.Link(ctx, m.ID, c.Memory.ID); err != nil {
			l.logger.Warn("failed to link neighbor",
				zap.String("memory_id", m.ID),
				zap.String("neighbor_id", c.Memory.ID),
				zap.Error(err))
			continue
		}
		linked = append(linked, c.Memory.ID)
	}

	res := Result{Status: StatusLinked, LinkedIDs: linked}
	l.logger.Debug(res.String(), zap.String("memory_id", m.ID), zap.Strings("linked_ids", linked))
	return res
}

func (l *Linker) skipped(m *memory.Memory, err error) Result {
	reason := "index unavailable"
	if errors.Is(err, v1.ErrTimeout) {
		reason = "timeout"
	}
	res := Result{Status: StatusSkipped, LinkedIDs: []string{}, Reason: reason, Err: err}
	l.logger.Warn(res.String(), zap.String("memory_id", m.ID), zap.Error(err))
	return res
}
