// Package main is the entry point for the snippets API server.
//
// main stays minimal: load configuration, build the logger and the optional
// code executor, then hand everything to internal/server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/snippets-api/internal/config"
	"github.com/sakif/snippets-api/internal/executor"
	"github.com/sakif/snippets-api/internal/executor/docker"
	"github.com/sakif/snippets-api/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred cleanup (container pools,
// database) always happens.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	// Handler helpers log through the default logger.
	slog.SetDefault(logger)

	if cfg.GeneratedSecret {
		logger.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	// The executor is optional: without Docker the server still starts and
	// POST /snippets/{id}/run answers 503. exec stays a nil interface in that
	// case, never a typed nil pointer.
	var exec executor.Executor
	if cfg.Executor.Enabled {
		dockerCfg := docker.DefaultConfig()
		dockerCfg.Timeout = cfg.Executor.Timeout
		dockerCfg.PoolSize = cfg.Executor.PoolSize
		dockerCfg.MemoryLimit = cfg.Executor.MemoryMB * 1024 * 1024

		dockerExec, err := docker.New(context.Background(), dockerCfg, logger)
		if err != nil {
			logger.Warn("Docker executor unavailable, snippet runs are disabled",
				slog.String("error", err.Error()),
			)
		} else {
			defer dockerExec.Close()
			exec = dockerExec
		}
	}

	srv, err := server.New(cfg, logger, exec)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	return srv.Start()
}
