// Command worldserver runs the wildcore world service: session
// install, character list/create/select, and world entry.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ionforge/wildcore/internal/config"
	"github.com/ionforge/wildcore/internal/registry"
	"github.com/ionforge/wildcore/internal/session"
	"github.com/ionforge/wildcore/internal/store/postgres"
	"github.com/ionforge/wildcore/internal/worldserver"
)

const configPath = "config/worldserver.yaml"

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
	slog.Info("wildcore world server starting")

	cfgPath := configPath
	if p := os.Getenv("WILDCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadWorldServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "bind", cfg.BindAddress, "port", cfg.Port, "realm_id", cfg.RealmID)

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

	reg := registry.New()
	entities := session.NewEntityAllocator()

	server := worldserver.New(cfg, db, db, db, reg, entities)
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("running world server: %w", err)
	}
	return nil
}
