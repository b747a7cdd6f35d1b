package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okian/hackjudge/internal/adapters/blob"
	"github.com/okian/hackjudge/internal/adapters/http/api"
	"github.com/okian/hackjudge/internal/adapters/repository"
	service "github.com/okian/hackjudge/internal/app"
	"github.com/okian/hackjudge/internal/config"
	"github.com/okian/hackjudge/pkg/logger"
	"github.com/okian/hackjudge/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString("hackjudge: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "closing store", logger.Error(err))
		}
	}()

	blobs, files, err := openBlobs(cfg.Blob)
	if err != nil {
		return err
	}

	svc := service.New(store,
		service.WithEventID(cfg.EventID),
		service.WithBlobStore(blobs),
		service.WithWriteConcurrency(cfg.WriteConcurrency),
		service.WithBootstrapAdmin(cfg.Admin.Name, cfg.Admin.Code),
		service.WithLogger(log.Named("service")),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if err := metrics.StartRuntimeCollector(ctx); err != nil {
		log.Warn(ctx, "runtime metrics collector not started", logger.Error(err))
	}

	srv := newHTTPServer(cfg, svc, files)
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("event", cfg.EventID),
			logger.String("store", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// openStore connects the configured driver and wraps it with metrics.
func openStore(ctx context.Context, sc config.StoreConfig) (repository.Store, error) {
	opts := []repository.Option{repository.WithKeyPrefix(sc.KeyPrefix)}
	switch sc.Driver {
	case config.DriverPostgres:
		pg, err := repository.NewPostgresStore(ctx, sc.PostgresDSN, append(opts, repository.WithMaxConns(sc.PostgresMaxConns))...)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return repository.Instrument(pg, sc.Driver), nil
	case config.DriverRedis:
		rs, err := repository.NewRedisStore(ctx, repository.RedisConfig{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return repository.Instrument(rs, sc.Driver), nil
	default:
		return repository.Instrument(repository.NewMemoryStore(opts...), config.DriverMemory), nil
	}
}

// openBlobs returns the image store and, for a directory store, the
// handler that serves it.
func openBlobs(bc config.BlobConfig) (blob.Store, http.Handler, error) {
	if bc.Dir == "" {
		return blob.NewMemoryStore(bc.BaseURL), nil, nil
	}
	ds, err := blob.NewDirStore(bc.Dir, bc.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open blob dir: %w", err)
	}
	return ds, http.FileServer(http.Dir(ds.Root())), nil
}

func newHTTPServer(cfg *config.Config, svc *service.Service, files http.Handler) *http.Server {
	opts := []api.Option{
		api.WithLogger(logger.Get().Named("http")),
		api.WithCORSOrigins(cfg.HTTP.CORSOrigins),
		api.WithRequestTimeout(cfg.HTTP.RequestTimeout),
		api.WithSignInLimit(cfg.HTTP.SignInRate, cfg.HTTP.SignInBurst),
	}
	if files != nil && strings.HasPrefix(cfg.Blob.BaseURL, "/") {
		opts = append(opts, api.WithFiles(cfg.Blob.BaseURL, files))
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(svc, opts...).Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
