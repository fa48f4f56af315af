package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/bparpette/MistralHackathon/internal/vectorstore"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

// indexError maps an index failure onto the error taxonomy.
func indexError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", v1.ErrTimeout, op, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, vectorstore.ErrPointNotFound):
		return fmt.Errorf("%w: %s: %w", v1.ErrNotFound, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", v1.ErrIndexUnavailable, op, err)
	}
}

// embedError maps an embedding failure onto the error taxonomy.
func embedError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: embedding: %w", v1.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("embedding: %w", err)
	default:
		return fmt.Errorf("%w: %w", v1.ErrEmbeddingUnavailable, err)
	}
}

func notFound(id string) error {
	return fmt.Errorf("%w: memory %s", v1.ErrNotFound, id)
}

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", v1.ErrValidation, fmt.Sprintf(format, args...))
}
