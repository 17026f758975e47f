package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wkalt/i3s/routes"
	"github.com/wkalt/i3s/source"
	"github.com/wkalt/i3s/util"
	"github.com/wkalt/i3s/util/log"
)

/*
This file is the entrypoint for serving scene layers over HTTP. Every layer is
opened and its descriptor validated before the server starts listening, so a
bad location fails startup instead of the first request.
*/

////////////////////////////////////////////////////////////////////////////////

// Service serves a fixed set of layers.
type Service struct {
	opts    *Options
	layers  map[uint64]source.Backend
	handler http.Handler
}

func readOpts(opts ...Option) (*Options, error) {
	options := Options{
		ServiceName: "i3s",
		Port:        8089,
		LogLevel:    slog.LevelInfo,
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:8080",
		},
		CachePages: 256,
		Layers:     map[uint64]string{},
	}
	for _, opt := range opts {
		opt(&options)
	}
	if len(options.Layers) == 0 {
		return nil, errors.New("at least one layer is required")
	}
	return &options, nil
}

// New opens every configured layer. The context is retained by layers read
// from object storage and must outlive the service.
func New(ctx context.Context, options ...Option) (*Service, error) {
	opts, err := readOpts(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to read options: %w", err)
	}
	slog.SetLogLoggerLevel(opts.LogLevel)
	s := &Service{opts: opts, layers: make(map[uint64]source.Backend, len(opts.Layers))}
	for _, id := range util.Okeys(opts.Layers) {
		location := opts.Layers[id]
		backend, err := openLayer(ctx, location, opts)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to open layer %d: %w", id, err)
		}
		s.layers[id] = backend
		log.Infow(ctx, "Opened layer", "id", id, "location", location, "backend", backend)
	}
	log.Debugf(ctx, "Building routes with allowed origins %+v", opts.AllowedOrigins)
	s.handler = routes.MakeRoutes(opts.ServiceName, s.layers, opts.AllowedOrigins, opts.SharedKey)
	return s, nil
}

func openLayer(ctx context.Context, location string, opts *Options) (source.Backend, error) {
	backend, err := source.Open(ctx, location, source.Config{S3: opts.S3})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	cached := source.NewCachingSource(backend, opts.CachePages)
	descriptor, err := cached.Descriptor(ctx)
	if err != nil {
		_ = cached.Close()
		return nil, err //nolint:wrapcheck
	}
	if err := descriptor.Validate(); err != nil {
		_ = cached.Close()
		return nil, err //nolint:wrapcheck
	}
	return cached, nil
}

// Handler returns the HTTP handler serving the layers.
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Close releases every opened layer.
func (s *Service) Close() error {
	var errs []error
	for id, backend := range s.layers {
		if err := backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("layer %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Start serves until SIGINT, SIGTERM, or cancellation of ctx, then shuts down
// gracefully. A second SIGINT during shutdown forces an exit.
func (s *Service) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigint := make(chan os.Signal, 1)
	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT)
	signal.Notify(sigterm, syscall.SIGTERM)
	defer signal.Stop(sigint)
	defer signal.Stop(sigterm)

	startErr := make(chan error, 1)
	go func() {
		log.Infow(ctx, "Starting server",
			"port", s.opts.Port, "layers", len(s.layers), "cachePages", s.opts.CachePages)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			startErr <- err
		}
	}()

	select {
	case <-sigint:
		log.Infof(ctx, "Received SIGINT")
	case <-sigterm:
		log.Infof(ctx, "Received SIGTERM")
	case <-ctx.Done():
		log.Infof(ctx, "Context done")
	case err := <-startErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Infof(ctx, "Allowing 10 seconds for existing connections to close")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Shutdown(shutdownCtx)
	}()

	select {
	case <-sigint:
		return errors.New("forceful shutdown on second interrupt")
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Infof(ctx, "Server stopped")
		return nil
	}
}
