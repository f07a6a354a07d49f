// Command authserver runs the wildcore auth service: build check, rate
// limiting, SRP-6 credential verification, and ticket issuance.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ionforge/wildcore/internal/authserver"
	"github.com/ionforge/wildcore/internal/config"
	"github.com/ionforge/wildcore/internal/store/postgres"
)

const configPath = "config/authserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	slog.Info("wildcore auth server starting")

	cfgPath := configPath
	if p := os.Getenv("WILDCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadAuthServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "bind", cfg.BindAddress, "port", cfg.Port)

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()
	slog.Info("database connected")

	if err := postgres.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	server := authserver.New(cfg, db, authserver.NewCrypto())
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("running auth server: %w", err)
	}
	return nil
}
