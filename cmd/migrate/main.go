package main

import (
	"flag"
	"log"

	"github.com/cartloop/recurbill/internal/config"
	"github.com/cartloop/recurbill/internal/logger"
	"github.com/cartloop/recurbill/internal/postgres"
)

func main() {
	migrationsDir := flag.String("dir", "migrations", "directory with migration files")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	lg.Infow("running migrations", "host", cfg.Postgres.Host, "dir", *migrationsDir)
	if err := postgres.RunMigrations(cfg.Postgres.GetDSN(), *migrationsDir); err != nil {
		lg.Fatalf("migrations failed: %v", err)
	}
	lg.Info("migrations applied")
}
