package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/straga/scrivo-ftp/auth"
	"github.com/straga/scrivo-ftp/terminal"
)

func main() {
	config, err := terminal.LoadConfig(os.Args[1:])
	if err != nil {
		slog.Error("failed to parse configuration", "error", err)
		os.Exit(1)
	}
	if err := terminal.ValidateConfig(config); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	level, _ := terminal.ParseLogLevel(config.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	checker, err := buildChecker(config, logger)
	if err != nil {
		logger.Error("failed to set up authentication", "error", err)
		os.Exit(1)
	}

	server := NewFTPServer(config, checker, logger)
	terminal.PrintStartupInfo(logger, config)

	if err := server.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// buildChecker maps the configured auth mode to a credential policy. In
// users mode the store keeps watching its file for edits.
func buildChecker(config *terminal.Config, logger *slog.Logger) (auth.CredentialChecker, error) {
	switch config.AuthMode {
	case "secret":
		return auth.SharedSecret{Password: config.SharedSecret}, nil
	case "users":
		store, err := auth.NewUserStore(config.UsersFile, logger)
		if err != nil {
			return nil, err
		}
		go func() {
			if err := store.Watch(context.Background()); err != nil {
				logger.Warn("user file watcher stopped", "error", err)
			}
		}()
		return store, nil
	default:
		return auth.AllowAll{}, nil
	}
}
