package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/svcstore/internal/config"
	"github.com/roach88/svcstore/internal/metrics"
	"github.com/roach88/svcstore/internal/server"
	"github.com/roach88/svcstore/internal/store"
	"github.com/roach88/svcstore/internal/transport"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Addr     string
	Config   string
	Services []string
	Metrics  bool

	// ready, when set, receives the bound address once the listener is up.
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve SQLite-backed services over REST and WebSocket",
		Long: `Start an HTTP server exposing the configured services from a SQLite
database. Every service answers GET/POST /<service> and
GET/PUT/PATCH/DELETE /<service>/<id>; /ws streams their events.

Services come from --config (or $SVCSTORE_CONFIG) and --service flags.

Example:
  svcstore serve --db ./svcstore.db --service todos
  svcstore serve --config svcstore.yaml --addr :8080 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (defaults to the config's server.db)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (defaults to the config's server.addr or "+config.DefaultAddr+")")
	cmd.Flags().StringVar(&opts.Config, "config", "", "configuration file (YAML, TOML, CUE or JSON)")
	cmd.Flags().StringArrayVar(&opts.Services, "service", nil, "serve a service with default options (repeatable)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "expose Prometheus metrics at /metrics")

	return cmd
}

// resolveServeConfig merges the config file with the command's flags.
func resolveServeConfig(opts *ServeOptions) (*config.Config, error) {
	cfg := &config.Config{Server: config.ServerConfig{Addr: config.DefaultAddr}}
	if path := config.Path(opts.Config); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	for _, name := range opts.Services {
		if _, ok := cfg.Service(name); !ok {
			cfg.Services = append(cfg.Services, config.ServiceConfig{Name: name})
		}
	}
	if opts.Database != "" {
		cfg.Server.DB = opts.Database
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.Metrics {
		cfg.Server.Metrics = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Server.DB == "" {
		return nil, errors.New("no database: pass --db or set server.db")
	}
	if len(cfg.Services) == 0 {
		return nil, errors.New("no services: pass --service or a config file")
	}
	return cfg, nil
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	cfg, err := resolveServeConfig(opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalid, "invalid configuration", err)
	}

	logger.Info("opening database", "path", cfg.Server.DB)
	st, err := store.Open(cfg.Server.DB, store.WithLogger(logger))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	if stored, err := st.Services(parentCtx); err == nil {
		logger.Debug("database contents", "services", stored)
	}

	var handlerOpts []server.Option
	handlerOpts = append(handlerOpts, server.WithLogger(logger))
	var rec *metrics.Recorder
	if cfg.Server.Metrics {
		if rec, err = metrics.NewRecorder(nil); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to create metrics", err)
		}
		handlerOpts = append(handlerOpts, server.WithMetrics(rec.Handler()))
	}
	handler := server.New(handlerOpts...)
	defer handler.Close()

	for _, sc := range cfg.Services {
		var svc transport.Service = st.Service(sc.StoreOptions(), logger)
		if rec != nil {
			svc = rec.Instrument(sc.Name, svc)
		}
		if err := handler.Register(sc.Name, svc); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInvalid, "failed to register service", err)
		}
		logger.Debug("service registered", "service", sc.Name)
	}

	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to listen", err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	addr := ln.Addr().String()
	logger.Info("server started", "addr", addr, "services", len(cfg.Services))
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d service(s) on %s. Press Ctrl-C to stop.\n", len(cfg.Services), addr)
	if opts.ready != nil {
		opts.ready <- addr
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		handler.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}
	logger.Info("server stopped gracefully", slog.String("addr", addr))
	return nil
}
