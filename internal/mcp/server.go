package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/brain"
)

// Server serves the brain tools over MCP.
type Server struct {
	mcp     *mcp.Server
	svc     *brain.Service
	metrics *Metrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "collective-brain")
	Name string

	// Version is the server version (default: "0.1.0")
	Version string

	// Logger for structured logging
	Logger *zap.Logger

	// Meter records tool metrics. Nil uses the global meter provider.
	Meter metric.Meter
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "collective-brain",
		Version: "0.1.0",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server backed by svc.
func NewServer(cfg *Config, svc *brain.Service) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if svc == nil {
		return nil, errors.New("brain service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:     mcpServer,
		svc:     svc,
		metrics: NewMetrics(cfg.Meter, logger),
		logger:  logger,
	}
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Close releases server resources. The brain service is owned by the
// caller and stays open.
func (s *Server) Close() error {
	s.logger.Info("closing MCP server")
	return nil
}
