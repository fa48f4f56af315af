package brain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/events"
	"github.com/bparpette/MistralHackathon/internal/insights"
	"github.com/bparpette/MistralHackathon/internal/linking"
	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/search"
	"github.com/bparpette/MistralHackathon/internal/verification"
	"github.com/bparpette/MistralHackathon/internal/workspace"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

// Options configures a Service.
type Options struct {
	Store     *memory.Store
	Guard     *workspace.Guard
	Publisher events.Publisher
	Logger    *zap.Logger
	// Meter defaults to the global OTel meter provider.
	Meter  metric.Meter
	Tracer trace.Tracer
	// Now overrides the clock used for insights and event timestamps.
	Now func() time.Time
}

// Service implements the brain operations.
type Service struct {
	store     *memory.Store
	guard     *workspace.Guard
	search    *search.Engine
	verifier  *verification.Verifier
	linker    *linking.Linker
	insights  *insights.Aggregator
	publisher events.Publisher
	metrics   *knowledgeMetrics
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if opts.Guard == nil {
		return nil, errors.New("guard cannot be nil")
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(instrumentationName)
	}

	engine, err := search.NewEngine(opts.Store, opts.Guard, opts.Logger.Named("search"))
	if err != nil {
		return nil, fmt.Errorf("creating search engine: %w", err)
	}
	verifier, err := verification.NewVerifier(opts.Store, opts.Guard, opts.Logger.Named("verification"))
	if err != nil {
		return nil, fmt.Errorf("creating verifier: %w", err)
	}
	linker, err := linking.NewLinker(opts.Store, opts.Logger.Named("linking"))
	if err != nil {
		return nil, fmt.Errorf("creating linker: %w", err)
	}
	aggregator, err := insights.NewAggregator(opts.Store, opts.Logger.Named("insights"), insights.WithClock(opts.Now))
	if err != nil {
		return nil, fmt.Errorf("creating insights aggregator: %w", err)
	}

	return &Service{
		store:     opts.Store,
		guard:     opts.Guard,
		search:    engine,
		verifier:  verifier,
		linker:    linker,
		insights:  aggregator,
		publisher: opts.Publisher,
		metrics:   newKnowledgeMetrics(opts.Meter, opts.Logger),
		tracer:    opts.Tracer,
		logger:    opts.Logger,
		now:       opts.Now,
	}, nil
}

// AddMemoryRequest is the input of AddMemory. The requester becomes the
// owner.
type AddMemoryRequest struct {
	RequesterID    string
	WorkspaceID    string
	Content        string
	Category       string
	Tags           []string
	Visibility     string
	ConfidenceHint *float64
}

// AddMemoryResult is the outcome of AddMemory.
type AddMemoryResult struct {
	Memory *memory.Memory
	Link   linking.Result
}

// AddMemory stores a memory and links it to similar ones. Linking failures
// are reported in the result, not as an error.
func (s *Service) AddMemory(ctx context.Context, req AddMemoryRequest) (_ *AddMemoryResult, err error) {
	ctx, span := s.startSpan(ctx, "brain.AddMemory",
		attribute.String("workspace_id", req.WorkspaceID),
		attribute.String("category", req.Category))
	defer func() { endSpan(span, err) }()

	if err := s.guard.AuthorizeWrite(ctx, req.RequesterID, req.WorkspaceID); err != nil {
		return nil, err
	}
	m, err := s.store.Create(ctx, memory.CreateRequest{
		Content:        req.Content,
		OwnerID:        req.RequesterID,
		WorkspaceID:    req.WorkspaceID,
		Category:       req.Category,
		Tags:           req.Tags,
		Visibility:     req.Visibility,
		ConfidenceHint: req.ConfidenceHint,
	})
	if err != nil {
		return nil, err
	}

	var link linking.Result
	scope, err := s.guard.ReadFilter(ctx, req.RequesterID, req.WorkspaceID)
	if err != nil {
		link = linking.Result{Status: linking.StatusSkipped, LinkedIDs: []string{}, Reason: "permission lookup failed", Err: err}
	} else {
		link = s.linker.Link(ctx, m, scope)
	}
	if len(link.LinkedIDs) > 0 {
		if fresh, err := s.store.Get(ctx, m.ID); err == nil {
			m = fresh
		}
	}
	s.hideUnreadableLinks(ctx, req.RequesterID, m)

	span.SetAttributes(
		attribute.String("memory_id", m.ID),
		attribute.String("link_status", link.String()),
		attribute.Int("linked_count", len(link.LinkedIDs)))
	s.metrics.recordAdded(ctx, m.WorkspaceID, m.Category, link)
	s.publish(ctx, events.Event{
		Type:        events.MemoryCreated,
		WorkspaceID: m.WorkspaceID,
		MemoryID:    m.ID,
		ActorID:     req.RequesterID,
		Attributes: map[string]string{
			"category":    m.Category,
			"visibility":  string(m.Visibility),
			"link_status": link.String(),
		},
	})
	return &AddMemoryResult{Memory: m, Link: link}, nil
}

// SearchMemories runs a ranked search.
func (s *Service) SearchMemories(ctx context.Context, q search.Query) (_ []search.ScoredMemory, err error) {
	ctx, span := s.startSpan(ctx, "brain.SearchMemories",
		attribute.String("workspace_id", q.WorkspaceID),
		attribute.Int("limit", q.Limit))
	defer func() { endSpan(span, err) }()

	results, err := s.search.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		s.hideUnreadableLinks(ctx, q.RequesterID, r.Memory)
	}
	span.SetAttributes(attribute.Int("result_count", len(results)))
	s.metrics.recordSearch(ctx, q.WorkspaceID, len(results))
	return results, nil
}

// GetMemory returns a memory the requester may read.
func (s *Service) GetMemory(ctx context.Context, memoryID, requesterID string) (*memory.Memory, error) {
	m, err := s.store.Get(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AuthorizeRead(ctx, requesterID, m); err != nil {
		return nil, err
	}
	s.hideUnreadableLinks(ctx, requesterID, m)
	return m, nil
}

// ListMemories pages through the memories the requester may read.
func (s *Service) ListMemories(ctx context.Context, workspaceID, requesterID string, page memory.Page) (memory.PageResult, error) {
	res, err := s.store.ListByWorkspace(ctx, workspaceID, requesterID, page)
	if err != nil {
		return res, err
	}
	s.hideUnreadableLinks(ctx, requesterID, res.Memories...)
	return res, nil
}

// VerifyMemory records the requester's corroboration.
func (s *Service) VerifyMemory(ctx context.Context, memoryID, requesterID string) (_ *memory.Memory, err error) {
	ctx, span := s.startSpan(ctx, "brain.VerifyMemory", attribute.String("memory_id", memoryID))
	defer func() { endSpan(span, err) }()

	m, err := s.verifier.Verify(ctx, memoryID, requesterID)
	if err != nil {
		return nil, err
	}
	s.hideUnreadableLinks(ctx, requesterID, m)
	s.metrics.recordVerified(ctx, m.WorkspaceID)
	s.publish(ctx, events.Event{
		Type:        events.MemoryVerified,
		WorkspaceID: m.WorkspaceID,
		MemoryID:    m.ID,
		ActorID:     requesterID,
		Attributes: map[string]string{
			"confidence": strconv.FormatFloat(m.Confidence, 'f', -1, 64),
			"verifiers":  strconv.Itoa(len(m.Verifiers)),
		},
	})
	return m, nil
}

// DeleteMemory removes a memory owned by the requester, or any memory of a
// workspace the requester administers.
func (s *Service) DeleteMemory(ctx context.Context, memoryID, requesterID string) (err error) {
	ctx, span := s.startSpan(ctx, "brain.DeleteMemory", attribute.String("memory_id", memoryID))
	defer func() { endSpan(span, err) }()

	if requesterID == "" {
		return fmt.Errorf("%w: requester id cannot be empty", v1.ErrValidation)
	}
	m, err := s.store.Get(ctx, memoryID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, memoryID, requesterID); err != nil {
		return err
	}
	s.metrics.recordDeleted(ctx, m.WorkspaceID)
	s.publish(ctx, events.Event{
		Type:        events.MemoryDeleted,
		WorkspaceID: m.WorkspaceID,
		MemoryID:    m.ID,
		ActorID:     requesterID,
	})
	return nil
}

// TeamInsights reports on a workspace. Only members may ask.
func (s *Service) TeamInsights(ctx context.Context, workspaceID, requesterID, timeframe string) (_ *insights.Report, err error) {
	ctx, span := s.startSpan(ctx, "brain.TeamInsights",
		attribute.String("workspace_id", workspaceID),
		attribute.String("timeframe", timeframe))
	defer func() { endSpan(span, err) }()

	role, err := s.guard.Role(ctx, requesterID, workspaceID)
	if err != nil {
		return nil, err
	}
	if !role.IsMember() {
		return nil, fmt.Errorf("%w: not a member of workspace %s", v1.ErrForbidden, workspaceID)
	}
	return s.insights.Insights(ctx, workspaceID, timeframe)
}

// Health checks that the index answers.
func (s *Service) Health(ctx context.Context) error {
	_, err := s.store.Collections(ctx)
	return err
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, v1.Code(err))
	}
	span.End()
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("type", string(e.Type)),
			zap.String("memory_id", e.MemoryID),
			zap.Error(err))
	}
}
