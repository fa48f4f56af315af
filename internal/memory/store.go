package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/secrets"
	"github.com/bparpette/MistralHackathon/internal/vectorstore"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

const (
	// DefaultPageLimit is the listing page size when none is given.
	DefaultPageLimit = 20

	// MaxPageLimit caps the listing page size.
	MaxPageLimit = 100

	// deleteLockAttempts bounds how often Delete re-reads the related set
	// when links change between read and lock.
	deleteLockAttempts = 5
)

// Mutation edits a memory in place and reports whether anything changed.
type Mutation func(m *Memory) (changed bool, err error)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithScrubber redacts secrets from content before it is embedded.
func WithScrubber(s secrets.Scrubber) StoreOption {
	return func(st *Store) { st.scrubber = s }
}

// WithClock overrides the time source used for creation timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(st *Store) { st.now = now }
}

// Store persists memories in a vector index, one collection per category.
//
// Mutations of the same id are serialized by a process-local lock table;
// a version check on every write detects writers outside this process.
type Store struct {
	index    vectorstore.Index
	embedder vectorstore.Embedder
	authz    Authorizer
	opts     *Options
	scrubber secrets.Scrubber
	logger   *zap.Logger
	now      func() time.Time

	locks   *lockTable
	locator *locator
	ensured sync.Map
}

// NewStore creates a Store.
func NewStore(index vectorstore.Index, embedder vectorstore.Embedder, authz Authorizer, opts *Options, logger *zap.Logger, options ...StoreOption) (*Store, error) {
	if index == nil {
		return nil, errors.New("index cannot be nil")
	}
	if embedder == nil {
		return nil, errors.New("embedder cannot be nil")
	}
	if authz == nil {
		return nil, errors.New("authorizer cannot be nil")
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := newLocator()
	if err != nil {
		return nil, err
	}

	s := &Store{
		index:    index,
		embedder: embedder,
		authz:    authz,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		locks:    newLockTable(),
		locator:  loc,
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// Options returns the tunables the store was built with.
func (s *Store) Options() *Options {
	return s.opts
}

// Close releases the store's caches. The index is owned by the caller.
func (s *Store) Close() error {
	s.locator.close()
	return nil
}

// Create validates req, embeds its content and persists a new memory.
// Nothing is written when embedding fails.
func (s *Store) Create(ctx context.Context, req CreateRequest) (*Memory, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, validation("content cannot be empty")
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, validation("owner id cannot be empty")
	}
	if strings.TrimSpace(req.WorkspaceID) == "" {
		return nil, validation("workspace id cannot be empty")
	}
	visibility, err := ParseVisibility(req.Visibility)
	if err != nil {
		return nil, err
	}
	category, err := NormalizeCategory(req.Category)
	if err != nil {
		return nil, err
	}
	collection, err := s.CollectionFor(category)
	if err != nil {
		return nil, err
	}
	hint := s.opts.DefaultConfidence()
	if req.ConfidenceHint != nil {
		hint = *req.ConfidenceHint
		if hint < 0 || hint > 1 {
			return nil, validation("confidence hint must be within [0,1], got %v", hint)
		}
	}

	if s.scrubber != nil && s.scrubber.IsEnabled() {
		res := s.scrubber.Scrub(content)
		if res.HasFindings() {
			s.logger.Warn("redacted secrets from memory content",
				zap.String("workspace_id", req.WorkspaceID),
				zap.Int("findings", len(res.Findings)),
				zap.Any("by_rule", res.ByRule))
			content = res.Scrubbed
		}
	}

	vector, err := s.embedDocument(ctx, content)
	if err != nil {
		return nil, err
	}

	m := &Memory{
		ID:          uuid.New().String(),
		Content:     content,
		Embedding:   vector,
		OwnerID:     req.OwnerID,
		WorkspaceID: req.WorkspaceID,
		Category:    category,
		Tags:        normalizeTags(req.Tags),
		Visibility:  visibility,
		Confidence:  s.opts.initialConfidence(content, hint),
		Verifiers:   []string{req.OwnerID},
		CreatedAt:   s.now().UTC(),
		RelatedIDs:  []string{},
		Version:     1,
	}

	if err := s.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}
	if err := s.upsert(ctx, collection, m); err != nil {
		return nil, err
	}
	s.locator.remember(m.ID, collection)

	s.logger.Debug("memory created",
		zap.String("memory_id", m.ID),
		zap.String("workspace_id", m.WorkspaceID),
		zap.String("collection", collection),
		zap.Float64("confidence", m.Confidence))

	return m.Clone(), nil
}

// Get returns the memory with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Memory, error) {
	m, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Update applies mutate to the current record under the id's lock. The
// write fails with ErrConflict if the stored version moved in between.
// Identity fields and content cannot be changed.
func (s *Store) Update(ctx context.Context, id string, mutate Mutation) (*Memory, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	m, collection, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next := m.Clone()
	changed, err := mutate(next)
	if err != nil {
		return nil, err
	}
	if !changed {
		return m, nil
	}
	if next.ID != m.ID || next.Content != m.Content || next.OwnerID != m.OwnerID ||
		next.WorkspaceID != m.WorkspaceID || next.Category != m.Category || !next.CreatedAt.Equal(m.CreatedAt) {
		return nil, validation("memory %s: identity fields and content are immutable", id)
	}
	if err := s.write(ctx, collection, m.Version, next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// Touch increments the interaction count of id.
func (s *Store) Touch(ctx context.Context, id string) (*Memory, error) {
	return s.Update(ctx, id, func(m *Memory) (bool, error) {
		m.InteractionCount++
		return true, nil
	})
}

// Link records a and b as related to each other. Linking already linked
// memories is a no-op.
func (s *Store) Link(ctx context.Context, a, b string) error {
	if a == b {
		return validation("cannot link memory %s to itself", a)
	}
	unlock := s.locks.lock(a, b)
	defer unlock()

	ma, colA, err := s.load(ctx, a)
	if err != nil {
		return err
	}
	mb, colB, err := s.load(ctx, b)
	if err != nil {
		return err
	}
	if ma.WorkspaceID != mb.WorkspaceID {
		return validation("cannot link memories across workspaces")
	}

	nextA := ma.Clone()
	nextB := mb.Clone()
	var changedA, changedB bool
	nextA.RelatedIDs, changedA = addToSet(nextA.RelatedIDs, b)
	nextB.RelatedIDs, changedB = addToSet(nextB.RelatedIDs, a)

	if changedA {
		if err := s.write(ctx, colA, ma.Version, nextA); err != nil {
			return err
		}
	}
	if changedB {
		if err := s.write(ctx, colB, mb.Version, nextB); err != nil {
			if changedA {
				s.restore(ctx, colA, nextA.Version, ma)
			}
			return err
		}
	}
	return nil
}

// Delete removes id after AuthorizeDelete allows it, pruning the id from
// every related memory. On failure every pruned record is restored.
func (s *Store) Delete(ctx context.Context, id, requesterID string) error {
	for attempt := 0; attempt < deleteLockAttempts; attempt++ {
		target, _, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		locked := append([]string{id}, target.RelatedIDs...)
		unlock := s.locks.lock(locked...)
		done, err := s.deleteLocked(ctx, id, requesterID, locked)
		unlock()
		if done {
			return err
		}
	}
	return fmt.Errorf("%w: related memories of %s kept changing", v1.ErrConflict, id)
}

type snapshot struct {
	collection string
	original   *Memory
	version    int64
}

// deleteLocked returns done=false when the related set grew beyond the
// locked ids and the caller must retry.
func (s *Store) deleteLocked(ctx context.Context, id, requesterID string, locked []string) (bool, error) {
	target, collection, err := s.load(ctx, id)
	if err != nil {
		return true, err
	}
	for _, rid := range target.RelatedIDs {
		if !contains(locked, rid) {
			return false, nil
		}
	}
	if err := s.authz.AuthorizeDelete(ctx, requesterID, target.Clone()); err != nil {
		return true, err
	}

	var pruned []snapshot
	rollback := func() {
		for i := len(pruned) - 1; i >= 0; i-- {
			p := pruned[i]
			s.restore(ctx, p.collection, p.version, p.original)
		}
	}

	for _, rid := range target.RelatedIDs {
		related, rcol, err := s.load(ctx, rid)
		if errors.Is(err, v1.ErrNotFound) {
			continue
		}
		if err != nil {
			rollback()
			return true, err
		}
		next := related.Clone()
		var changed bool
		if next.RelatedIDs, changed = removeFromSet(next.RelatedIDs, id); !changed {
			continue
		}
		if err := s.write(ctx, rcol, related.Version, next); err != nil {
			rollback()
			return true, err
		}
		pruned = append(pruned, snapshot{collection: rcol, original: related, version: next.Version})
	}

	ictx, cancel := context.WithTimeout(ctx, s.opts.IndexTimeout())
	err = s.index.Delete(ictx, collection, id)
	cancel()
	if err != nil {
		rollback()
		return true, indexError("delete", err)
	}
	s.locator.forget(id)

	s.logger.Debug("memory deleted",
		zap.String("memory_id", id),
		zap.String("requester_id", requesterID),
		zap.Int("pruned_links", len(pruned)))
	return true, nil
}

// restore writes original back over a record currently at version. It
// runs detached from ctx cancellation so a failed operation can still be
// compensated.
func (s *Store) restore(ctx context.Context, collection string, version int64, original *Memory) {
	rctx := context.WithoutCancel(ctx)
	if err := s.write(rctx, collection, version, original.Clone()); err != nil {
		s.logger.Error("rollback failed",
			zap.String("memory_id", original.ID),
			zap.String("collection", collection),
			zap.Error(err))
	}
}

// ListByWorkspace pages through the memories of workspaceID that
// requesterID may read, newest first.
func (s *Store) ListByWorkspace(ctx context.Context, workspaceID, requesterID string, page Page) (PageResult, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return PageResult{}, validation("workspace id cannot be empty")
	}
	if page.Offset < 0 {
		return PageResult{}, validation("offset must be >= 0, got %d", page.Offset)
	}
	switch {
	case page.Limit < 0:
		return PageResult{}, validation("limit must be >= 0, got %d", page.Limit)
	case page.Limit == 0:
		page.Limit = DefaultPageLimit
	case page.Limit > MaxPageLimit:
		page.Limit = MaxPageLimit
	}

	filter, err := s.authz.ReadFilter(ctx, requesterID, workspaceID)
	if err != nil {
		return PageResult{}, err
	}
	all, err := s.Scan(ctx, filter)
	if err != nil {
		return PageResult{}, err
	}
	SortNewestFirst(all)

	result := PageResult{Memories: []*Memory{}, NextOffset: -1, Total: len(all)}
	if page.Offset >= len(all) {
		return result, nil
	}
	end := page.Offset + page.Limit
	if end > len(all) {
		end = len(all)
	}
	result.Memories = all[page.Offset:end]
	if end < len(all) {
		result.NextOffset = end
	}
	return result, nil
}

// SortNewestFirst orders memories by creation time descending, then id.
func SortNewestFirst(ms []*Memory) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.After(ms[j].CreatedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}

// EmbedQuery embeds search text.
func (s *Store) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout())
	defer cancel()
	vector, err := s.embedder.EmbedQuery(ectx, text)
	if err != nil {
		return nil, embedError(err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", v1.ErrEmbeddingUnavailable)
	}
	return vector, nil
}

// Nearest returns up to k memories of collection matching filter, most
// similar to vector first. A missing collection has no candidates.
func (s *Store) Nearest(ctx context.Context, collection string, vector []float32, k int, filter *vectorstore.Filter) ([]Candidate, error) {
	ictx, cancel := context.WithTimeout(ctx, s.opts.IndexTimeout())
	defer cancel()

	hits, err := s.index.Search(ictx, collection, vector, k, filter)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, indexError("search "+collection, err)
	}

	out := make([]Candidate, 0, len(hits))
	for i := range hits {
		m, err := fromPoint(&hits[i].Point)
		if err != nil {
			s.logger.Warn("skipping undecodable point", zap.String("collection", collection), zap.Error(err))
			continue
		}
		out = append(out, Candidate{Memory: m, Similarity: float64(hits[i].Score)})
	}
	return out, nil
}

// Scan returns every memory matching filter across all memory collections.
func (s *Store) Scan(ctx context.Context, filter *vectorstore.Filter) ([]*Memory, error) {
	collections, err := s.Collections(ctx)
	if err != nil {
		return nil, err
	}

	var out []*Memory
	for _, collection := range collections {
		ictx, cancel := context.WithTimeout(ctx, s.opts.IndexTimeout())
		points, err := s.index.Scroll(ictx, collection, filter)
		cancel()
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			continue
		}
		if err != nil {
			return nil, indexError("scroll "+collection, err)
		}
		for i := range points {
			m, err := fromPoint(&points[i])
			if err != nil {
				s.logger.Warn("skipping undecodable point", zap.String("collection", collection), zap.Error(err))
				continue
			}
			out = append(out, m)
		}
	}
	return out, nil
}

// Collections lists the memory collections present in the index.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	ictx, cancel := context.WithTimeout(ctx, s.opts.IndexTimeout())
	defer cancel()

	names, err := s.index.ListCollections(ictx)
	if err != nil {
		return nil, indexError("list collections", err)
	}
	prefix := s.opts.CollectionPrefix() + "_"
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// CollectionFor returns the collection holding memories of category.
func (s *Store) CollectionFor(category string) (string, error) {
	normalized, err := NormalizeCategory(category)
	if err != nil {
		return "", err
	}
	name := s.opts.CollectionPrefix() + "_" + normalized
	if err := vectorstore.ValidateCollectionName(name); err != nil {
		return "", validation("category %q: %v", category, err)
	}
	return name, nil
}

// load finds id, first in the cached collection, then by probing.
func (s *Store) load(ctx context.Context, id string) (*Memory, string, error) {
	if strings.TrimSpace(id) == "" {
		return nil, "", validation("memory id cannot be empty")
	}
	if collection, ok := s.locator.lookup(id); ok {
		m, err := s.getFrom(ctx, collection, id)
		if err == nil {
			return m, collection, nil
		}
		if !errors.Is(err, v1.ErrNotFound) {
			return nil, "", err
		}
		s.locator.forget(id)
	}

	collections, err := s.Collections(ctx)
	if err != nil {
		return nil, "", err
	}
	for _, collection := range collections {
		m, err := s.getFrom(ctx, collection, id)
		if errors.Is(err, v1.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		s.locator.remember(id, collection)
		return m, collection, nil
	}
	return nil, "", notFound(id)
}

func (s *Store) getFrom(ctx context.Context, collection, id string) (*Memory, error) {
	ictx, cancel := context.WithTimeout(ctx, s.opts.IndexTimeout())
	defer cancel()

	p, err := s.index.Get(ictx, collection, id)
	if errors.Is(err, vectorstore.ErrPointNotFound) || errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, indexError("get "+id, err)
	}
	m, err := fromPoint(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", v1.ErrIndexUnavailable, err)
	}
	return m, nil
}

// write stores m if the record is still at expected, bumping its version.
func (s *Store) write(ctx context.Context, collection string, expected int64, m *Memory) error {
	current, err := s.getFrom(ctx, collection, m.ID)
	if err != nil {
		return err
	}
	if current.Version != expected {
		return fmt.Errorf("%w: memory %s is at version %d, expected %d", v1.ErrConflict, m.ID, current.Version, expected)
	}
	m.Version = expected + 1
	return s.upsert(ctx, collection, m)
}

func (s *Store) upsert(ctx context.Context, collection string, m *Memory) error {
	ictx, cancel := context.WithTimeout(ctx, s.opts.IndexTimeout())
	defer cancel()
	if err := s.index.Upsert(ictx, collection, toPoint(m)); err != nil {
		return indexError("upsert "+m.ID, err)
	}
	return nil
}

func (s *Store) ensureCollection(ctx context.Context, collection string) error {
	if _, ok := s.ensured.Load(collection); ok {
		return nil
	}
	ictx, cancel := context.WithTimeout(ctx, s.opts.IndexTimeout())
	defer cancel()
	if err := s.index.EnsureCollection(ictx, collection); err != nil {
		return indexError("ensure collection "+collection, err)
	}
	s.ensured.Store(collection, struct{}{})
	return nil
}

func (s *Store) embedDocument(ctx context.Context, content string) ([]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout())
	defer cancel()
	vectors, err := s.embedder.EmbedDocuments(ectx, []string{content})
	if err != nil {
		return nil, embedError(err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: provider returned %d vectors", v1.ErrEmbeddingUnavailable, len(vectors))
	}
	return vectors[0], nil
}
