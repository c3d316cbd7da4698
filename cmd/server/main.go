// Command server runs the Authors Haven API.
//
// Configuration comes from the environment (see internal/config). The only
// required variable is JWT_SECRET:
//
//	JWT_SECRET=$(openssl rand -hex 32) go run ./cmd/server
//
// Optional integrations switch on when their variables are set: SMTP_HOST
// for real reset emails, GITHUB_CLIENT_ID for social login, S3_BUCKET for
// image storage outside the local disk.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/authors-haven/internal/config"
	"github.com/sakif/authors-haven/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
