// Migrate applies the embedded schema: go run ./cmd/migrate -direction up|down.
package main

import (
	"flag"

	"go.uber.org/zap"

	"chancafe-q/backend/internal/config"
	"chancafe-q/backend/internal/db/migrate"
	"chancafe-q/backend/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := logger.Must(cfg.Env, cfg.LogLevel, "chancafe-q-migrate")
	defer func() { _ = log.Sync() }()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if err := migrate.Run(cfg.DatabaseURL, *direction, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
}
