package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/framepoint/relaychat/internal/config"
	"github.com/framepoint/relaychat/internal/core"
	"github.com/framepoint/relaychat/internal/store/file"
	"github.com/framepoint/relaychat/internal/store/sqlite"
	transporthttp "github.com/framepoint/relaychat/internal/transport/http"
)

// App wires together persistence, the hub, and the transport layer.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	persister       core.Persister
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	persister, err := newPersister(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().
		Str("driver", cfg.Storage.Driver).
		Str("path", cfg.Storage.Path).
		Msg("history store initialized")

	hub := core.NewHub(persister, logger)
	server := transporthttp.NewServer(hub, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		persister:       persister,
		log:             logger,
	}, nil
}

func newPersister(cfg config.StorageConfig, logger *zerolog.Logger) (core.Persister, error) {
	switch cfg.Driver {
	case config.StorageDriverSQLite:
		return sqlite.New(cfg.Path)
	case config.StorageDriverFile, "":
		return file.New(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the persister.
func (a *App) cleanup() {
	if a.persister != nil {
		if err := a.persister.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
