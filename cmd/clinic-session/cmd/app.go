package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/vetclinic/clinic-session/internal/core/service"
	"github.com/vetclinic/clinic-session/internal/infrastructure/backend"
	"github.com/vetclinic/clinic-session/internal/infrastructure/db"
	"github.com/vetclinic/clinic-session/internal/pkg/config"
	"github.com/vetclinic/clinic-session/pkg/logger"
)

// app is the wired session core shared by every command.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   db.Backend
	manager *service.Manager
	cancel  context.CancelFunc
}

// bootstrap loads configuration, opens the credential store and starts the
// manager. The caller must call close.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty || cfg.IsDevelopment(),
		Service: "clinic-session",
	})

	store, err := db.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	client, err := backend.New(cfg.Backend.URL, cfg.Backend.Timeout, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	manager := service.NewManager(store, backend.NewExpiryAwareValidator(client), client, client, log)

	runCtx, cancel := context.WithCancel(ctx)
	if err := manager.Start(runCtx); err != nil {
		cancel()
		_ = store.Close()
		return nil, err
	}

	return &app{cfg: cfg, log: log, store: store, manager: manager, cancel: cancel}, nil
}

// ready blocks until the stored session has been restored.
func (a *app) ready(ctx context.Context) error {
	if err := a.manager.WaitReady(ctx); err != nil {
		return fmt.Errorf("waiting for session restore: %w", err)
	}
	return nil
}

func (a *app) close() {
	a.cancel()
	<-a.manager.Done()
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing credential store failed")
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
