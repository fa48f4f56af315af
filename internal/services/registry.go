package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/brain"
	"github.com/bparpette/MistralHackathon/internal/config"
	"github.com/bparpette/MistralHackathon/internal/embeddings"
	"github.com/bparpette/MistralHackathon/internal/events"
	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/secrets"
	"github.com/bparpette/MistralHackathon/internal/vectorstore"
	"github.com/bparpette/MistralHackathon/internal/workspace"
)

// Registry provides access to the brain and the components it is built on.
// Use accessor methods to retrieve individual services.
type Registry interface {
	Brain() *brain.Service
	Store() *memory.Store
	Guard() *workspace.Guard
	Directory() workspace.Directory
	Index() vectorstore.Index
	Embedder() embeddings.Provider
	Scrubber() secrets.Scrubber
	Publisher() events.Publisher

	// Start begins background work, such as following the membership file.
	Start(ctx context.Context) error

	// Close releases every component the registry created, in reverse
	// order of construction. Injected components are left open.
	Close() error
}

// Options overrides components that would otherwise be built from the
// configuration. Nil fields are built.
type Options struct {
	Index     vectorstore.Index
	Embedder  embeddings.Provider
	Directory workspace.Directory
	Scrubber  secrets.Scrubber
	Publisher events.Publisher
	Meter     metric.Meter
	Tracer    trace.Tracer
	Logger    *zap.Logger
}

// registry is the concrete implementation of Registry.
type registry struct {
	brain     *brain.Service
	store     *memory.Store
	guard     *workspace.Guard
	directory workspace.Directory
	index     vectorstore.Index
	embedder  embeddings.Provider
	scrubber  secrets.Scrubber
	publisher events.Publisher
	logger    *zap.Logger

	closers []func() error
}

// NewRegistry builds the service graph described by cfg.
func NewRegistry(cfg *config.Config, opts Options) (_ Registry, err error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := &registry{logger: opts.Logger}
	defer func() {
		if err != nil {
			_ = r.Close()
		}
	}()

	r.index = opts.Index
	if r.index == nil {
		if r.index, err = vectorstore.NewIndex(cfg, opts.Logger.Named("vectorstore")); err != nil {
			return nil, err
		}
		r.closers = append(r.closers, r.index.Close)
	}

	r.embedder = opts.Embedder
	if r.embedder == nil {
		pc := embeddings.ProviderConfigFrom(cfg)
		pc.Meter = opts.Meter
		if r.embedder, err = embeddings.NewProvider(pc, opts.Logger.Named("embeddings")); err != nil {
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
		r.closers = append(r.closers, r.embedder.Close)
	}
	if dim := r.embedder.Dimension(); dim > 0 && dim != cfg.VectorStore.VectorSize {
		return nil, fmt.Errorf("embedding dimension %d does not match vectorstore.vector_size %d", dim, cfg.VectorStore.VectorSize)
	}

	r.scrubber = opts.Scrubber
	if r.scrubber == nil {
		sc := secrets.DefaultConfig()
		sc.Enabled = cfg.Secrets.Scrub
		if r.scrubber, err = secrets.New(sc, opts.Logger.Named("secrets")); err != nil {
			return nil, fmt.Errorf("creating scrubber: %w", err)
		}
	}

	r.directory = opts.Directory
	if r.directory == nil {
		if path := cfg.Workspaces.DirectoryFile; path != "" {
			fd, err := workspace.NewFileDirectory(path, opts.Logger.Named("workspace"))
			if err != nil {
				return nil, err
			}
			r.directory = fd
			r.closers = append(r.closers, fd.Close)
		} else {
			r.directory = workspace.StaticDirectoryFromConfig(cfg.Workspaces)
		}
	}
	if r.guard, err = workspace.NewGuard(r.directory, opts.Logger.Named("workspace")); err != nil {
		return nil, err
	}

	memOpts, err := memory.NewOptions(cfg.Memory)
	if err != nil {
		return nil, fmt.Errorf("invalid memory options: %w", err)
	}
	r.store, err = memory.NewStore(r.index, r.embedder, r.guard, memOpts, opts.Logger.Named("memory"),
		memory.WithScrubber(r.scrubber))
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, r.store.Close)

	r.publisher = opts.Publisher
	if r.publisher == nil {
		if url := cfg.Events.NATSURL; url != "" {
			pub, err := events.ConnectNATS(url, cfg.Events.SubjectPrefix, opts.Logger.Named("events"))
			if err != nil {
				return nil, err
			}
			r.publisher = pub
			r.closers = append(r.closers, pub.Close)
		} else {
			r.publisher = events.NopPublisher{}
		}
	}

	r.brain, err = brain.New(brain.Options{
		Store:     r.store,
		Guard:     r.guard,
		Publisher: r.publisher,
		Logger:    opts.Logger.Named("brain"),
		Meter:     opts.Meter,
		Tracer:    opts.Tracer,
	})
	if err != nil {
		return nil, err
	}

	opts.Logger.Info("services initialized",
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.Bool("scrubbing", r.scrubber.IsEnabled()),
		zap.Bool("membership_file", cfg.Workspaces.DirectoryFile != ""),
		zap.Bool("nats", cfg.Events.NATSURL != ""),
	)
	return r, nil
}

func (r *registry) Brain() *brain.Service          { return r.brain }
func (r *registry) Store() *memory.Store           { return r.store }
func (r *registry) Guard() *workspace.Guard        { return r.guard }
func (r *registry) Directory() workspace.Directory { return r.directory }
func (r *registry) Index() vectorstore.Index       { return r.index }
func (r *registry) Embedder() embeddings.Provider  { return r.embedder }
func (r *registry) Scrubber() secrets.Scrubber     { return r.scrubber }
func (r *registry) Publisher() events.Publisher    { return r.publisher }

func (r *registry) Start(ctx context.Context) error {
	fd, ok := r.directory.(*workspace.FileDirectory)
	if !ok {
		return nil
	}
	if err := fd.Watch(ctx); err != nil {
		return fmt.Errorf("watching membership file: %w", err)
	}
	return nil
}

func (r *registry) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
