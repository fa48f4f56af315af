// Package verification lets team members corroborate memories, raising
// their confidence.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/memory"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

// conflictRetries bounds retries when a verification loses a version race
// against a writer in another process.
const conflictRetries = 3

// Store is the subset of memory.Store the verifier needs.
type Store interface {
	Options() *memory.Options
	Get(ctx context.Context, id string) (*memory.Memory, error)
	Update(ctx context.Context, id string, mutate memory.Mutation) (*memory.Memory, error)
}

// ReadAuthorizer decides whether a requester may read a memory.
type ReadAuthorizer interface {
	AuthorizeRead(ctx context.Context, requesterID string, m *memory.Memory) error
}

// Verifier records verifications.
type Verifier struct {
	store  Store
	authz  ReadAuthorizer
	logger *zap.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(store Store, authz ReadAuthorizer, logger *zap.Logger) (*Verifier, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if authz == nil {
		return nil, errors.New("read authorizer cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{store: store, authz: authz, logger: logger}, nil
}

// Verify adds userID to the memory's verifiers and raises its confidence
// by the configured increment, capped at 1. Verifying twice is a no-op.
func (v *Verifier) Verify(ctx context.Context, memoryID, userID string) (*memory.Memory, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id cannot be empty", v1.ErrValidation)
	}

	m, err := v.store.Get(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if err := v.authz.AuthorizeRead(ctx, userID, m); err != nil {
		return nil, err
	}
	if m.VerifiedBy(userID) {
		return m, nil
	}

	increment := v.store.Options().VerificationIncrement()
	mutate := func(m *memory.Memory) (bool, error) {
		if m.VerifiedBy(userID) {
			return false, nil
		}
		m.Verifiers = append(m.Verifiers, userID)
		m.Confidence = math.Min(1, m.Confidence+increment)
		return true, nil
	}

	for attempt := 1; ; attempt++ {
		updated, err := v.store.Update(ctx, memoryID, mutate)
		if errors.Is(err, v1.ErrConflict) && attempt < conflictRetries {
			v.logger.Debug("verification lost a version race, retrying",
				zap.String("memory_id", memoryID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		v.logger.Debug("memory verified",
			zap.String("memory_id", memoryID),
			zap.String("user_id", userID),
			zap.Float64("confidence", updated.Confidence))
		return updated, nil
	}
}
