package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"obsflow/internal/config"
	"obsflow/internal/core"
	"obsflow/internal/httpapi"
	"obsflow/internal/infra/persistence/postgres"
	"obsflow/internal/infra/persistence/sqlite"
	"obsflow/internal/itc"
	"obsflow/internal/telemetry"
)

func newServeCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow HTTP API",
		Long: `Run the read/check HTTP API over the configured store.

Endpoints:
  GET  /v1/observations/{id}/workflow
  POST /v1/observations/edit-check
  GET  /healthz
  GET  /metrics`,
		Example: `  # Serve with in-memory defaults
  obsflow serve

  # Serve with a config file, overriding the listen address
  obsflow serve -c obsflow.yaml --listen 0.0.0.0:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.HTTP.Listen = listen
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}

	env, err := buildEnvironment(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	api := httpapi.New(env.Service, logger, env.Registry)
	server := httpapi.NewServer(cfg.HTTP.Listen, api.Handler(), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// environment bundles the wired runtime collaborators for a command.
type environment struct {
	Service  *core.Service
	Registry *prometheus.Registry

	closers []io.Closer
}

// Close releases store and cache resources in reverse wiring order.
func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i].Close()
	}
}

// buildEnvironment wires the store, ITC cache, metrics, and service from the
// configuration.
func buildEnvironment(ctx context.Context, cfg config.Config, logger *telemetry.Logger) (*environment, error) {
	env := &environment{Registry: prometheus.NewRegistry()}
	engine := core.NewDefaultRulesEngine()

	var store core.Store
	switch cfg.Store.Driver {
	case "", "memory":
		store = core.NewMemoryStore(engine)
	case "sqlite":
		s, err := sqlite.NewStore(cfg.Store.Path, engine)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		env.closers = append(env.closers, s)
		store = s
	case "postgres":
		s, err := postgres.NewStore(cfg.Store.DSN, engine)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		env.closers = append(env.closers, s)
		store = s
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	cache, err := itc.Open(ctx, itc.Options{
		Driver: itc.Driver(cfg.ITC.Driver),
		Root:   cfg.ITC.Root,
		S3: itc.S3Config{
			Region:          cfg.ITC.S3.Region,
			Bucket:          cfg.ITC.S3.Bucket,
			Prefix:          cfg.ITC.S3.Prefix,
			Endpoint:        cfg.ITC.S3.Endpoint,
			AccessKeyID:     cfg.ITC.S3.AccessKeyID,
			SecretAccessKey: cfg.ITC.S3.SecretAccessKey,
			PathStyle:       cfg.ITC.S3.PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open itc cache: %w", err)
	}

	metrics, err := core.NewPrometheusMetricsRecorder(env.Registry)
	if err != nil {
		return nil, err
	}

	env.Service = core.NewService(store,
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithITCCache(cache),
	)
	return env, nil
}
