package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"

	"chathub/pkg/accounts"
	"chathub/pkg/config"
	"chathub/pkg/hub"
	"chathub/pkg/logger"
	"chathub/pkg/maintenance"
	"chathub/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.Effective
	version   string
	commit    string
	buildDate string

	accounts *accounts.Service
	hub      *hub.Hub

	srv *http.Server
}

// New validates the effective config and opens the store and registries. It
// does not start the HTTP server; call Run to start it and block until
// shutdown.
func New(eff config.Effective, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	acc := accounts.New(eff.Config.Security.Admin.Username, eff.Config.Security.Admin.Password)

	hubCfg := hub.DefaultConfig()
	hc := eff.Config.Hub
	if hc.SendBuffer > 0 {
		hubCfg.SendBuffer = hc.SendBuffer
	}
	if hc.MaxMessageSize > 0 {
		hubCfg.MaxMessageSize = hc.MaxMessageSize.Int64()
	}
	if hc.EventRate > 0 {
		hubCfg.EventRate = hc.EventRate
	}
	if hc.EventBurst > 0 {
		hubCfg.EventBurst = hc.EventBurst
	}
	if hc.RecentSize > 0 {
		hubCfg.RecentSize = hc.RecentSize
	}
	hubCfg.AllowedOrigins = append([]string{}, eff.Config.Security.CORS.AllowedOrigins...)

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		accounts:  acc,
		hub:       hub.New(hubCfg, acc),
	}
	return a, nil
}

// Run starts the maintenance scheduler and the HTTP server, and blocks
// until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	stopMaint, err := maintenance.Start(ctx, a.eff.Config.Maintenance)
	if err != nil {
		return err
	}
	defer stopMaint()

	a.printBanner()

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// shutdown drains websocket sessions, stops the HTTP listener and closes
// the store.
func (a *App) shutdown() {
	a.hub.Shutdown()
	if a.srv != nil {
		grace := a.eff.Config.Server.ShutdownGrace.Duration()
		if grace <= 0 {
			grace = defaultShutdownGrace
		}
		sctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := a.srv.Shutdown(sctx); err != nil {
			logger.Warn("http_shutdown_error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("server_stopped")
}

// Handler exposes the full HTTP surface for tests.
func (a *App) Handler() http.Handler {
	return a.buildHandler()
}
