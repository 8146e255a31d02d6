package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults for the reserved admin identity. The admin authenticates against
// this fixed credential and bypasses the account store.
const (
	DefaultAdminUser     = "simeon"
	DefaultAdminPassword = "123456"
)

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEffective loads config from the given path and applies environment
// overrides, returning the effective config and whether env vars were used.
// A missing file is not an error; env and defaults still apply.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		if os.IsNotExist(err) || cfg == nil {
			cfg = &Config{}
		} else {
			return nil, false, err
		}
	}
	envUsed := LoadEnvOverrides(cfg)
	if cfg.Security.Admin.Username == "" {
		cfg.Security.Admin.Username = DefaultAdminUser
	}
	if cfg.Security.Admin.Password == "" {
		cfg.Security.Admin.Password = DefaultAdminPassword
	}
	return cfg, envUsed, nil
}

// Effective is the fully resolved runtime configuration: the merged config
// plus the listen address and db path after flag precedence, and a label for
// where the values came from.
type Effective struct {
	Config *Config
	Addr   string
	DBPath string
	Source string
}

// Resolve merges flags onto the loaded config. Explicit flags win over env
// and file values.
func Resolve(cfg *Config, fl Flags, envUsed bool) Effective {
	eff := Effective{Config: cfg}
	if fl.Set["addr"] {
		eff.Addr = fl.Addr
	} else {
		eff.Addr = cfg.Addr()
	}
	if fl.Set["db"] || cfg.Storage.DBPath == "" {
		eff.DBPath = fl.DB
	} else {
		eff.DBPath = cfg.Storage.DBPath
	}
	switch {
	case len(fl.Set) > 0:
		eff.Source = "flags"
	case envUsed:
		eff.Source = "env"
	default:
		eff.Source = "file"
	}
	return eff
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and the CHATHUB_CONFIG environment variable when the flag was not
// set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("CHATHUB_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
