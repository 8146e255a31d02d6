package app

import (
	"net/http"
	"time"

	"chathub/pkg/api"
	"chathub/pkg/auth"
	"chathub/pkg/banner"
	"chathub/pkg/store"
	"chathub/pkg/telemetry"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

const defaultShutdownGrace = 10 * time.Second

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.Print(a.eff, verStr)
}

// buildHandler assembles the routed API surface plus the ops endpoints and
// wraps it with the perimeter and telemetry middleware.
func (a *App) buildHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/readyz", a.readyzHandler)
	mux.Handle("/", api.New(a.hub, a.accounts).Router())
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))
	mux.Handle("/metrics", promhttp.Handler())

	secCfg := auth.SecConfig{
		AllowedOrigins: append([]string{}, a.eff.Config.Security.CORS.AllowedOrigins...),
		RPS:            a.eff.Config.Security.RateLimit.RPS,
		Burst:          a.eff.Config.Security.RateLimit.Burst,
	}
	wrapped := auth.Middleware(secCfg)(mux)
	wrapped = telemetry.Middleware(wrapped)
	return wrapped
}

// readyzHandler reports readiness: the store must be open.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","version":"` + ver + `"}`))
}

// startHTTP starts the HTTP server in a goroutine and returns a channel
// that will carry any server error.
func (a *App) startHTTP() <-chan error {
	a.srv = &http.Server{Addr: a.eff.Addr, Handler: a.buildHandler()}

	errCh := make(chan error, 1)
	go func() {
		cert := a.eff.Config.Server.TLS.CertFile
		key := a.eff.Config.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errCh <- a.srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- a.srv.ListenAndServe()
		}
	}()
	return errCh
}
