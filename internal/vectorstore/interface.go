package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrPointNotFound is returned when no point has the requested id.
	ErrPointNotFound = errors.New("point not found")

	// ErrInvalidConfig indicates invalid index configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates a collection name outside ^[a-z0-9_]{1,64}$.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch indicates a vector of the wrong length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("connection failed")
)

// Embedder turns text into vectors.
type Embedder interface {
	// EmbedDocuments embeds texts meant to be stored.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Point is one stored vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]string
}

// ScoredPoint is a search hit. Score is cosine similarity.
type ScoredPoint struct {
	Point
	Score float32
}

// Index is a collection-partitioned vector index.
type Index interface {
	// EnsureCollection creates the collection if missing.
	EnsureCollection(ctx context.Context, name string) error

	// ListCollections returns every collection name.
	ListCollections(ctx context.Context) ([]string, error)

	// Upsert inserts or replaces points by id.
	Upsert(ctx context.Context, collection string, points ...Point) error

	// Get returns the point with id, or ErrPointNotFound.
	Get(ctx context.Context, collection, id string) (*Point, error)

	// Delete removes points by id. Missing ids are ignored.
	Delete(ctx context.Context, collection string, ids ...string) error

	// Search returns up to limit points matching filter, most similar first.
	Search(ctx context.Context, collection string, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error)

	// Scroll returns every point matching filter, in no particular order.
	Scroll(ctx context.Context, collection string, filter *Filter) ([]Point, error)

	// Close releases backend resources.
	Close() error
}

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName checks name against the portable collection name
// pattern shared by both backends.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return nil
}

func clonePayload(p map[string]string) map[string]string {
	if p == nil {
		return nil
	}
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
