// migrate runs DB migrations from embedded SQL; use with go run ./cmd/migrate.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/abstracta/skywalking-copilot/internal/config"
	"github.com/abstracta/skywalking-copilot/internal/db/migrate"
	"github.com/abstracta/skywalking-copilot/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("migrations already at target version", zap.String("direction", *direction))
			return
		}
		log.Fatal("migrate", zap.String("direction", *direction), zap.Error(err))
	}
	version, dirty, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		log.Warn("read migration version", zap.Error(err))
		return
	}
	log.Info("migrations applied", zap.String("direction", *direction), zap.Uint("version", version), zap.Bool("dirty", dirty))
}
