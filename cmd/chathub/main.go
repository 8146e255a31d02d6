package main

import (
	"context"

	"chathub/internal/app"
	"chathub/pkg/config"
	"chathub/pkg/logger"
	"chathub/pkg/shutdown"
)

// build metadata, set via ldflags during release builds
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	fl := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(fl.Config, fl.Set["config"])
	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		logger.Init()
		shutdown.Abort("failed to load config", err)
	}
	logger.InitWithLevel(cfg.Logging.Level)

	eff := config.Resolve(cfg, fl, envUsed)

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup failed", err)
	}
	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server error", err)
	}
}
