package embeddings

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/config"
	"github.com/bparpette/MistralHackathon/internal/vectorstore"
)

// Provider is the interface for embedding providers.
type Provider interface {
	vectorstore.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is "fastembed", "tei" or "hash".
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the TEI URL (TEI only).
	BaseURL string
	// CacheDir is the model cache directory (FastEmbed only).
	CacheDir string
	// RateLimit caps TEI requests per second. Zero disables limiting.
	RateLimit float64
	// Dimension overrides the model's dimension (hash only, required there).
	Dimension int
	// Meter records embedding latency and failures. Nil uses the global
	// meter provider.
	Meter metric.Meter
}

// ProviderConfigFrom maps service configuration onto a ProviderConfig.
func ProviderConfigFrom(cfg *config.Config) ProviderConfig {
	return ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		CacheDir:  cfg.Embeddings.CacheDir,
		RateLimit: cfg.Embeddings.RateLimit,
		Dimension: cfg.VectorStore.VectorSize,
	}
}

// NewProvider creates an embedding provider based on the configuration.
// Every provider it returns is instrumented.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p, err := newBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	name := cfg.Provider
	if name == "" {
		name = "fastembed"
	}
	return instrument(p, name, cfg.Model, cfg.Meter, logger), nil
}

func newBackend(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "fastembed", "":
		p, err := NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "tei":
		svc, err := NewService(Config{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			RateLimit: cfg.RateLimit,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &teiProvider{Service: svc, dimension: detectDimensionFromModel(cfg.Model)}, nil
	case "hash":
		p, err := NewHashProvider(cfg.Dimension)
		if err != nil {
			return nil, err
		}
		logger.Warn("using hash embeddings; similarity reflects shared words only")
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// teiProvider wraps Service to implement Provider.
type teiProvider struct {
	*Service
	dimension int
}

// Dimension returns the embedding dimension based on the configured model.
func (t *teiProvider) Dimension() int {
	return t.dimension
}

// Close is a no-op for TEI since it uses HTTP.
func (t *teiProvider) Close() error {
	return nil
}
