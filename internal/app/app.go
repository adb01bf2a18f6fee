// Package app holds process-wide state for the service.
package app

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/omspatilgit/BolBharat-AI/internal/config"
	"github.com/omspatilgit/BolBharat-AI/internal/observability/logging"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) *Application {
	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a := &Application{
		Cfg:    cfg,
		Logger: logging.Logger(),
	}

	a.Logger.Info().
		Str("principal", cfg.Service.Principal).
		Msg("Recording orchestrator application created")
	return a
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Str("storeDriver", a.Cfg.Store.Driver).
		Str("blobDriver", a.Cfg.Blob.Driver).
		Str("sttProvider", a.Cfg.STT.Provider).
		Msg("Recording orchestrator starting")
	return nil
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	a.Logger.Info().Msg("Recording orchestrator shutting down")
}
