package vectorstore

import (
	"fmt"

	"github.com/bparpette/MistralHackathon/internal/config"
	"go.uber.org/zap"
)

// NewIndex creates the Index named by cfg.VectorStore.Provider and wraps it
// with Prometheus instrumentation.
//
//   - "chromem" (default): embedded, optionally persistent
//   - "qdrant": external Qdrant server over gRPC
func NewIndex(cfg *config.Config, logger *zap.Logger) (Index, error) {
	var (
		idx Index
		err error
	)

	switch cfg.VectorStore.Provider {
	case "chromem", "":
		idx, err = NewChromemIndex(ChromemConfig{
			Path:       cfg.VectorStore.Path,
			Compress:   cfg.VectorStore.Compress,
			VectorSize: cfg.VectorStore.VectorSize,
		}, logger)

	case "qdrant":
		idx, err = NewQdrantIndex(QdrantConfig{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			UseTLS:         cfg.Qdrant.UseTLS,
			APIKey:         cfg.Qdrant.APIKey.Value(),
			VectorSize:     uint64(cfg.VectorStore.VectorSize),
			MaxRetries:     cfg.Qdrant.RetryAttempts,
			RequestTimeout: cfg.Qdrant.RequestTimeout.Duration(),
		}, logger)

	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", cfg.VectorStore.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s index: %w", cfg.VectorStore.Provider, err)
	}
	return NewInstrumented(idx, cfg.VectorStore.Provider), nil
}
