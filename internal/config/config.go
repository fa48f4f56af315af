// Package config loads brain service configuration with koanf.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	MCP         MCPConfig         `koanf:"mcp"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Memory      MemoryConfig      `koanf:"memory"`
	Workspaces  WorkspacesConfig  `koanf:"workspaces"`
	Events      EventsConfig      `koanf:"events"`
	Secrets     SecretsConfig     `koanf:"secrets"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Enabled         bool     `koanf:"enabled"`
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// MCPConfig configures the MCP tool server.
type MCPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// VectorStoreConfig selects and configures the vector index.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded) or "qdrant".
	Provider   string `koanf:"provider"`
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	VectorSize int    `koanf:"vector_size"`
}

// QdrantConfig configures the Qdrant gRPC client.
type QdrantConfig struct {
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port"`
	UseTLS         bool     `koanf:"use_tls"`
	APIKey         Secret   `koanf:"api_key"`
	RetryAttempts  int      `koanf:"retry_attempts"`
	RequestTimeout Duration `koanf:"request_timeout"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "fastembed" (local ONNX) or "tei" (remote HTTP).
	Provider  string  `koanf:"provider"`
	Model     string  `koanf:"model"`
	BaseURL   string  `koanf:"base_url"`
	CacheDir  string  `koanf:"cache_dir"`
	RateLimit float64 `koanf:"rate_limit"`
}

// MemoryConfig carries the tunables of the memory core.
type MemoryConfig struct {
	CollectionPrefix      string   `koanf:"collection_prefix"`
	LinkThreshold         float64  `koanf:"link_threshold"`
	LinkNeighborCount     int      `koanf:"link_neighbor_count"`
	ConfidenceBoostTerms  []string `koanf:"confidence_boost_terms"`
	BoostFloor            float64  `koanf:"boost_floor"`
	DefaultConfidence     float64  `koanf:"default_confidence"`
	VerificationIncrement float64  `koanf:"verification_increment"`
	EmbedTimeout          Duration `koanf:"embed_timeout"`
	IndexTimeout          Duration `koanf:"index_timeout"`
	SearchOversample      int      `koanf:"search_oversample"`
	MaxSearchLimit        int      `koanf:"max_search_limit"`
}

// WorkspacesConfig describes workspace membership.
type WorkspacesConfig struct {
	// DirectoryFile points at a YAML membership file that is watched for
	// changes. When set it takes precedence over the inline maps.
	DirectoryFile string              `koanf:"directory_file"`
	Members       map[string][]string `koanf:"members"`
	Admins        map[string][]string `koanf:"admins"`
}

// EventsConfig configures lifecycle event publishing.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// SecretsConfig configures secret scrubbing of memory content.
type SecretsConfig struct {
	Scrub bool `koanf:"scrub"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level    string            `koanf:"level"`
	Format   string            `koanf:"format"`
	OTEL     bool              `koanf:"otel"`
	Sampling bool              `koanf:"sampling"`
	Fields   map[string]string `koanf:"fields"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	ServiceName    string   `koanf:"service_name"`
	ServiceVersion string   `koanf:"service_version"`
	Insecure       bool     `koanf:"insecure"`
	Protocol       string   `koanf:"protocol"`
	SampleRate     float64  `koanf:"sample_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled:         true,
			Host:            "localhost",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		MCP: MCPConfig{
			Enabled: true,
			Name:    "collective-brain",
			Version: "0.1.0",
		},
		VectorStore: VectorStoreConfig{
			Provider:   "chromem",
			Path:       "~/.local/share/brain/vectorstore",
			Compress:   true,
			VectorSize: 384,
		},
		Qdrant: QdrantConfig{
			Host:           "localhost",
			Port:           6334,
			RetryAttempts:  3,
			RequestTimeout: Duration(30 * time.Second),
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "fastembed",
			Model:     "BAAI/bge-small-en-v1.5",
			BaseURL:   "http://localhost:8080",
			RateLimit: 20,
		},
		Memory: MemoryConfig{
			CollectionPrefix:      "memories",
			LinkThreshold:         0.7,
			LinkNeighborCount:     5,
			BoostFloor:            0.8,
			DefaultConfidence:     0.5,
			VerificationIncrement: 0.1,
			EmbedTimeout:          Duration(10 * time.Second),
			IndexTimeout:          Duration(5 * time.Second),
			SearchOversample:      4,
			MaxSearchLimit:        100,
		},
		Events: EventsConfig{
			SubjectPrefix: "brain",
		},
		Secrets: SecretsConfig{Scrub: true},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Sampling: true,
		},
		Telemetry: TelemetryConfig{
			Endpoint:       "localhost:4317",
			ServiceName:    "brain",
			ServiceVersion: "0.1.0",
			Insecure:       true,
			SampleRate:     1.0,
			ExportInterval: Duration(15 * time.Second),
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if !c.Server.Enabled && !c.MCP.Enabled {
		errs = append(errs, errors.New("at least one of server.enabled or mcp.enabled must be set"))
	}

	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		errs = append(errs, fmt.Errorf("vectorstore.provider must be chromem or qdrant, got %q", c.VectorStore.Provider))
	}
	if c.VectorStore.VectorSize <= 0 {
		errs = append(errs, fmt.Errorf("vectorstore.vector_size must be > 0, got %d", c.VectorStore.VectorSize))
	}
	if c.VectorStore.Provider == "qdrant" && (c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535) {
		errs = append(errs, fmt.Errorf("qdrant.port must be 1-65535, got %d", c.Qdrant.Port))
	}

	switch c.Embeddings.Provider {
	case "fastembed", "tei", "hash":
	default:
		errs = append(errs, fmt.Errorf("embeddings.provider must be fastembed, tei or hash, got %q", c.Embeddings.Provider))
	}

	m := c.Memory
	if m.LinkThreshold < -1 || m.LinkThreshold > 1 {
		errs = append(errs, fmt.Errorf("memory.link_threshold must be within [-1,1], got %v", m.LinkThreshold))
	}
	if m.LinkNeighborCount <= 0 {
		errs = append(errs, fmt.Errorf("memory.link_neighbor_count must be > 0, got %d", m.LinkNeighborCount))
	}
	for name, v := range map[string]float64{
		"memory.boost_floor":            m.BoostFloor,
		"memory.default_confidence":     m.DefaultConfidence,
		"memory.verification_increment": m.VerificationIncrement,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, v))
		}
	}
	if m.EmbedTimeout <= 0 || m.IndexTimeout <= 0 {
		errs = append(errs, errors.New("memory.embed_timeout and memory.index_timeout must be > 0"))
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
	}

	return errors.Join(errs...)
}
