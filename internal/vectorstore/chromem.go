package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("brain.vectorstore.chromem")

// errNoEmbeddingFunc is what chromem gets as its embedding function: every
// point arrives with a precomputed vector, so chromem must never embed.
var errNoEmbeddingFunc = errors.New("chromem index expects precomputed embeddings")

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the persistence directory. Empty keeps everything in memory.
	Path string

	// Compress gzips persisted documents.
	Compress bool

	// VectorSize is the embedding dimension every point must have.
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemIndex implements Index on chromem-go.
//
// chromem only filters on metadata equality, so filters are expanded with
// Filter.Branches and each branch is queried separately. Hits are unioned
// by id.
type ChromemIndex struct {
	db         *chromem.DB
	config     ChromemConfig
	logger     *zap.Logger
	scanVector []float32
}

// NewChromemIndex opens (or creates) a chromem database.
func NewChromemIndex(config ChromemConfig, logger *zap.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		config.Path = path
	}

	// Scroll queries with a fixed unit vector; chromem requires a query
	// vector of the stored dimension even when only the filter matters.
	scanVector := make([]float32, config.VectorSize)
	scanVector[0] = 1

	logger.Info("chromem index initialized",
		zap.String("path", config.Path),
		zap.Bool("persistent", config.Path != ""),
		zap.Int("vector_size", config.VectorSize),
	)

	return &ChromemIndex{db: db, config: config, logger: logger, scanVector: scanVector}, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

func (s *ChromemIndex) collection(name string) (*chromem.Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	col := s.db.GetCollection(name, noEmbedding)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return col, nil
}

// EnsureCollection implements Index.
func (s *ChromemIndex) EnsureCollection(_ context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if _, err := s.db.GetOrCreateCollection(name, nil, noEmbedding); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	return nil
}

// ListCollections implements Index.
func (s *ChromemIndex) ListCollections(_ context.Context) ([]string, error) {
	cols := s.db.ListCollections()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Upsert implements Index.
func (s *ChromemIndex) Upsert(ctx context.Context, collection string, points ...Point) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("points", len(points)))

	col, err := s.collection(collection)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for _, p := range points {
		if len(p.Vector) != s.config.VectorSize {
			err := fmt.Errorf("%w: point %s has %d dimensions, want %d", ErrDimensionMismatch, p.ID, len(p.Vector), s.config.VectorSize)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		doc := chromem.Document{
			ID:        p.ID,
			Metadata:  clonePayload(p.Payload),
			Embedding: append([]float32(nil), p.Vector...),
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("upserting %s into %s: %w", p.ID, collection, err)
		}
	}
	return nil
}

// Get implements Index.
func (s *ChromemIndex) Get(ctx context.Context, collection, id string) (*Point, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPointNotFound, id)
	}
	return &Point{ID: doc.ID, Vector: doc.Embedding, Payload: doc.Metadata}, nil
}

// Delete implements Index.
func (s *ChromemIndex) Delete(ctx context.Context, collection string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	col, err := s.collection(collection)
	if err != nil {
		return err
	}

	// Removing an unknown id from a persistent collection fails on the
	// missing file, so only pass ids that exist.
	present := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := col.GetByID(ctx, id); err == nil {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, present...); err != nil {
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}
	return nil
}

// Search implements Index.
func (s *ChromemIndex) Search(ctx context.Context, collection string, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Search")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("limit", limit))

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if len(vector) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d", ErrDimensionMismatch, len(vector), s.config.VectorSize)
	}

	col, err := s.collection(collection)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	hits, err := s.query(ctx, col, vector, limit, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	s.logger.Debug("searched chromem collection",
		zap.String("collection", collection),
		zap.Int("limit", limit),
		zap.Stringer("filter", filter),
		zap.Int("results", len(hits)),
	)
	return hits, nil
}

// Scroll implements Index.
func (s *ChromemIndex) Scroll(ctx context.Context, collection string, filter *Filter) ([]Point, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	hits, err := s.query(ctx, col, s.scanVector, col.Count(), filter)
	if err != nil {
		return nil, fmt.Errorf("scrolling collection %s: %w", collection, err)
	}
	points := make([]Point, len(hits))
	for i, h := range hits {
		points[i] = h.Point
	}
	return points, nil
}

// query runs one chromem query per filter branch and unions the hits.
func (s *ChromemIndex) query(ctx context.Context, col *chromem.Collection, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error) {
	count := col.Count()
	if count == 0 || limit <= 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	seen := make(map[string]struct{})
	var hits []ScoredPoint
	for _, where := range filter.Branches() {
		if len(where) == 0 {
			where = nil
		}
		results, err := col.QueryEmbedding(ctx, vector, limit, where, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			hits = append(hits, ScoredPoint{
				Point: Point{
					ID:      r.ID,
					Vector:  append([]float32(nil), r.Embedding...),
					Payload: clonePayload(r.Metadata),
				},
				Score: r.Similarity,
			})
		}
	}
	return hits, nil
}

// Close implements Index. chromem persists on every write.
func (s *ChromemIndex) Close() error {
	return nil
}

var _ Index = (*ChromemIndex)(nil)
