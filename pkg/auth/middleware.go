// Package auth holds the HTTP perimeter middleware: per-client request rate
// limiting and the CORS allow-list.
package auth

import (
	"net"
	"net/http"
	"strings"

	"chathub/pkg/logger"
	"chathub/pkg/utils"
)

// SecConfig configures the perimeter middleware.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
}

// Middleware applies CORS headers and per-IP rate limiting around next.
func Middleware(cfg SecConfig) func(http.Handler) http.Handler {
	pool := &limiterPool{rps: cfg.RPS, b: cfg.Burst}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				if allowed := corsAllowed(cfg.AllowedOrigins, origin); allowed != "" {
					w.Header().Set("Access-Control-Allow-Origin", allowed)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if cfg.RPS > 0 && !pool.Allow(clientIP(r)) {
				logger.Warn("request_rate_limited", "remote", r.RemoteAddr, "path", r.URL.Path)
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// corsAllowed returns the header value to emit, or empty when the origin is
// not in the allow-list. An empty list or "*" entry allows everything.
func corsAllowed(allowed []string, origin string) string {
	if len(allowed) == 0 {
		return "*"
	}
	for _, o := range allowed {
		if o == "*" {
			return "*"
		}
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
