// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/luuxx/ccp/internal/config"
	"github.com/luuxx/ccp/internal/daemon"
	"github.com/luuxx/ccp/internal/health"
	xglog "github.com/luuxx/ccp/internal/log"
	buildinfo "github.com/luuxx/ccp/internal/version"
)

var version = buildinfo.Version

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String())
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "ccp",
		Version: version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Explicit --config wins; otherwise ${CCP_DATA_DIR}/ccp.yaml is used when present.
	explicitConfigPath := strings.TrimSpace(*configPath)
	effectiveConfigPath := explicitConfigPath
	if effectiveConfigPath == "" {
		effectiveConfigPath = resolveDefaultConfigPath()
	}

	loader := config.NewLoader(effectiveConfigPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	switch {
	case explicitConfigPath != "":
		source = "file"
	case effectiveConfigPath != "":
		source = "file(auto)"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", effectiveConfigPath).
		Msg("configuration loaded")

	// Pre-flight checks (fail fast)
	if err := health.PerformStartupChecks(cfg); err != nil {
		logger.Fatal().Err(err).Str("event", "startup.check_failed").Msg("startup checks failed")
	}

	holder := config.NewConfigHolder(cfg, loader)
	app, err := daemon.New(ctx, holder)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.build_failed").Msg("failed to assemble daemon")
	}

	logger.Info().
		Str("event", "daemon.start").
		Str("listen", cfg.API.ListenAddr).
		Str("commit", buildinfo.Commit).
		Str("build_date", buildinfo.Date).
		Msg("starting ccp daemon")

	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str("event", "daemon.failed").Msg("daemon exited with error")
		os.Exit(1)
	}
}
