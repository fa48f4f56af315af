package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("brain.vectorstore.qdrant")

// scrollBatch is the page size used when scrolling a collection.
const scrollBatch = 256

// QdrantConfig holds configuration for the Qdrant gRPC backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Default: 6334
	Port int

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// APIKey is the optional API key for authentication.
	APIKey string

	// VectorSize is the dimensionality of embeddings. New collections are
	// created with this size.
	VectorSize uint64

	// MaxRetries is the number of retry attempts for transient failures.
	// Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff between retries. Doubles on each
	// retry. Default: 1 second
	RetryBackoff time.Duration

	// RequestTimeout bounds each individual request.
	// Default: 30 seconds
	RequestTimeout time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidConfig)
	}
	return nil
}

// QdrantIndex implements Index over Qdrant's native gRPC client. Point ids
// must be UUIDs.
type QdrantIndex struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
}

// NewQdrantIndex connects to Qdrant and performs a health check.
func NewQdrantIndex(config QdrantConfig, logger *zap.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	qdrantConfig := &qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	}
	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)")
		qdrantConfig.GrpcOptions = append(qdrantConfig.GrpcOptions,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	}

	client, err := qdrant.NewClient(qdrantConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	idx := &QdrantIndex{client: client, config: config, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	logger.Info("qdrant connection established",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
	)
	return idx, nil
}

// EnsureCollection implements Index.
func (s *QdrantIndex) EnsureCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	return s.retryOperation(ctx, "ensure collection", func() error {
		exists, err := s.client.CollectionExists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.config.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if status.Code(err) == grpccodes.AlreadyExists {
			return nil
		}
		return err
	})
}

// ListCollections implements Index.
func (s *QdrantIndex) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	var names []string
	err := s.retryOperation(ctx, "list collections", func() error {
		res, err := s.client.ListCollections(ctx)
		names = res
		return err
	})
	return names, err
}

// Upsert implements Index.
func (s *QdrantIndex) Upsert(ctx context.Context, collection string, points ...Point) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("points", len(points)))

	if len(points) == 0 {
		return nil
	}
	qpoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		if uint64(len(p.Vector)) != s.config.VectorSize {
			return fmt.Errorf("%w: point %s has %d dimensions, want %d", ErrDimensionMismatch, p.ID, len(p.Vector), s.config.VectorSize)
		}
		qpoints[i] = toQdrantPoint(p)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()
	err := s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         qpoints,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return mapQdrantError(err, collection)
	}
	return nil
}

// Get implements Index.
func (s *QdrantIndex) Get(ctx context.Context, collection, id string) (*Point, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	var found []*qdrant.RetrievedPoint
	err := s.retryOperation(ctx, "get", func() error {
		res, err := s.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: collection,
			Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id)},
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		found = res
		return err
	})
	if err != nil {
		return nil, mapQdrantError(err, collection)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPointNotFound, id)
	}
	p := fromRetrievedPoint(found[0])
	return &p, nil
}

// Delete implements Index.
func (s *QdrantIndex) Delete(ctx context.Context, collection string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}
	err := s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         qdrant.NewPointsSelector(pointIDs...),
		})
		return err
	})
	return mapQdrantError(err, collection)
}

// Search implements Index.
func (s *QdrantIndex) Search(ctx context.Context, collection string, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Search")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("limit", limit))

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	var results []*qdrant.ScoredPoint
	err := s.retryOperation(ctx, "search", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(limit)),
			Filter:         toQdrantFilter(filter),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		results = res
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, mapQdrantError(err, collection)
	}

	hits := make([]ScoredPoint, len(results))
	for i, r := range results {
		hits[i] = ScoredPoint{
			Point: Point{
				ID:      pointID(r.GetId()),
				Vector:  denseVector(r.GetVectors()),
				Payload: stringPayload(r.GetPayload()),
			},
			Score: r.GetScore(),
		}
	}
	span.SetAttributes(attribute.Int("results_count", len(hits)))
	return hits, nil
}

// Scroll implements Index.
func (s *QdrantIndex) Scroll(ctx context.Context, collection string, filter *Filter) ([]Point, error) {
	var (
		points []Point
		offset *qdrant.PointId
	)
	qfilter := toQdrantFilter(filter)
	for {
		var (
			batch []*qdrant.RetrievedPoint
			next  *qdrant.PointId
		)
		err := s.retryOperation(ctx, "scroll", func() error {
			reqCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
			defer cancel()
			var err error
			batch, next, err = s.client.ScrollAndOffset(reqCtx, &qdrant.ScrollPoints{
				CollectionName: collection,
				Filter:         qfilter,
				Offset:         offset,
				Limit:          qdrant.PtrOf(uint32(scrollBatch)),
				WithPayload:    qdrant.NewWithPayload(true),
				WithVectors:    qdrant.NewWithVectors(true),
			})
			return err
		})
		if err != nil {
			return nil, mapQdrantError(err, collection)
		}
		for _, p := range batch {
			points = append(points, fromRetrievedPoint(p))
		}
		if next == nil || len(batch) == 0 {
			return points, nil
		}
		offset = next
	}
}

// Close closes the gRPC connection.
func (s *QdrantIndex) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// retryOperation retries operation with exponential backoff while it fails
// with a transient gRPC status.
func (s *QdrantIndex) retryOperation(ctx context.Context, name string, operation func() error) error {
	backoff := s.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 {
				s.logger.Info("qdrant operation recovered after retries",
					zap.String("operation", name),
					zap.Int("attempts", attempt),
				)
			}
			return nil
		}
		if !isTransientError(err) || attempt >= s.config.MaxRetries {
			return err
		}
		s.logger.Debug("retrying qdrant operation after transient error",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func isTransientError(err error) bool {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// mapQdrantError translates gRPC statuses into package errors.
func mapQdrantError(err error, collection string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	switch status.Code(err) {
	case grpccodes.NotFound:
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	case grpccodes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	case grpccodes.Unavailable:
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return err
}

func toQdrantPoint(p Point) *qdrant.PointStruct {
	payload := make(map[string]*qdrant.Value, len(p.Payload))
	for k, v := range p.Payload {
		payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(p.ID),
		Vectors: qdrant.NewVectors(p.Vector...),
		Payload: payload,
	}
}

func fromRetrievedPoint(p *qdrant.RetrievedPoint) Point {
	return Point{
		ID:      pointID(p.GetId()),
		Vector:  denseVector(p.GetVectors()),
		Payload: stringPayload(p.GetPayload()),
	}
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func denseVector(v *qdrant.VectorsOutput) []float32 {
	vec := v.GetVector()
	if vec == nil {
		return nil
	}
	if dense := vec.GetDense(); dense != nil {
		return dense.GetData()
	}
	return vec.GetData()
}

func stringPayload(payload map[string]*qdrant.Value) map[string]string {
	if payload == nil {
		return nil
	}
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		out[k] = v.GetStringValue()
	}
	return out
}

// toQdrantFilter converts f into Qdrant's filter tree. Nested filters
// become filter conditions, so no DNF expansion is needed.
func toQdrantFilter(f *Filter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	out := &qdrant.Filter{}
	for _, c := range f.Must {
		out.Must = append(out.Must, toQdrantCondition(c))
	}
	for _, c := range f.Should {
		out.Should = append(out.Should, toQdrantCondition(c))
	}
	return out
}

func toQdrantCondition(c Condition) *qdrant.Condition {
	if c.Filter != nil {
		return qdrant.NewFilterAsCondition(toQdrantFilter(c.Filter))
	}
	return qdrant.NewMatchKeyword(c.Field, c.Match)
}

var _ Index = (*QdrantIndex)(nil)
