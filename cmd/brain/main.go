// Brain is the collective memory server.
//
// It serves the MCP tools over stdio and the REST API over HTTP, both backed
// by the same brain service. Either transport can be disabled in the
// configuration.
//
// Usage:
//
//	# Start with defaults and an optional config file
//	brain -config /etc/brain/config.yaml
//
//	# Override through the environment
//	BRAIN_SERVER_PORT=8080 BRAIN_EMBEDDINGS_PROVIDER=tei brain
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bparpette/MistralHackathon/internal/config"
	httpapi "github.com/bparpette/MistralHackathon/internal/http"
	"github.com/bparpette/MistralHackathon/internal/logging"
	"github.com/bparpette/MistralHackathon/internal/mcp"
	"github.com/bparpette/MistralHackathon/internal/services"
	"github.com/bparpette/MistralHackathon/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const instrumentationName = "github.com/bparpette/MistralHackathon/cmd/brain"

func main() {
	configPath := flag.String("config", os.Getenv("BRAIN_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  brain [-config file]   Start the server\n")
			fmt.Fprintf(os.Stderr, "  brain version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "brain: %v\n", err)
		os.Exit(1)
	}
	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "brain: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("brain\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the service graph and blocks until ctx is cancelled or a
// transport fails.
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logger, err := newLogger(cfg, tel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if s := tel.Status(); s.State == telemetry.StateDegraded {
		logger.Warn(ctx, "telemetry degraded", zap.String("reason", s.Reason))
	}

	reg, err := services.NewRegistry(cfg, services.Options{
		Logger: logger.Underlying(),
		Meter:  tel.Meter(instrumentationName),
		Tracer: tel.Tracer(instrumentationName),
	})
	if err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn(context.Background(), "closing services", zap.Error(err))
		}
	}()
	if err := reg.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.Enabled {
		srv, err := httpapi.NewServer(reg.Brain(), logger.Named("http"), &httpapi.Config{
			Host:      cfg.Server.Host,
			Port:      cfg.Server.Port,
			Meter:     tel.Meter(instrumentationName),
			Telemetry: tel,
		})
		if err != nil {
			return fmt.Errorf("creating http server: %w", err)
		}
		g.Go(func() error {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.MCP.Enabled {
		ms, err := mcp.NewServer(&mcp.Config{
			Name:    cfg.MCP.Name,
			Version: cfg.MCP.Version,
			Logger:  logger.Underlying().Named("mcp"),
			Meter:   tel.Meter(instrumentationName),
		}, reg.Brain())
		if err != nil {
			return fmt.Errorf("creating mcp server: %w", err)
		}
		g.Go(func() error {
			defer func() { _ = ms.Close() }()
			return ms.Run(gctx)
		})
	}

	logger.Info(ctx, "brain started",
		zap.String("version", version),
		zap.Bool("http", cfg.Server.Enabled),
		zap.Bool("mcp", cfg.MCP.Enabled))

	err = g.Wait()
	logger.Info(context.Background(), "brain stopped")
	return err
}

// newLogger builds the process logger. The MCP stdio transport owns stdout,
// so console output moves to stderr when it is enabled.
func newLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	logCfg.Output.Stderr = cfg.MCP.Enabled
	logCfg.Fields["version"] = version

	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return logger, nil
}
