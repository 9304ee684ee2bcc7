// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// holdfast-authority runs the session authority: it seeds the world
// from config, accepts peers over TCP, WebSocket and WebRTC, and
// serves operator commands on a Unix admin socket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/holdfast/lib/config"
	"github.com/bureau-foundation/holdfast/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		verbose     bool
		showVersion bool
	)

	flags := pflag.NewFlagSet("holdfast-authority", pflag.ContinueOnError)
	flags.StringVarP(&configPath, "config", "c", "", "path to holdfast.yaml (default: $"+config.EnvConfig+", then built-in defaults)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if flags.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}

	if showVersion {
		fmt.Printf("holdfast-authority %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(cfg, logger)
	if err != nil {
		return err
	}
	return srv.run(ctx)
}

// loadConfig reads the explicit path, then HOLDFAST_CONFIG, then falls
// back to the defaults. The result is validated in every case.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case path != "":
		cfg, err = config.LoadFile(path)
	case os.Getenv(config.EnvConfig) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
		cfg.Authority.AdminSocket = config.DefaultAdminSocket()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
