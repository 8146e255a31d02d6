package app

import (
	"fmt"
	"os"
	"strings"

	"chathub/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.Effective) error {
	if eff.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, CHATHUB_DB_PATH env, or storage.db_path in config")
	}

	// TLS cert/key presence check if one is set
	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if strings.TrimSpace(eff.Config.Security.Admin.Username) == "" {
		return fmt.Errorf("admin username is empty: set security.admin.username or CHATHUB_ADMIN_USER")
	}

	if eff.Config.Security.RateLimit.RPS < 0 || eff.Config.Security.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}

	return nil
}
