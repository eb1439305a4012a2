// Command sweep-sessions deletes expired refresh-token sessions once and
// exits. Meant for cron; safe to run while the API's own sweeper runs.
package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"

	"citbif/internal/auth"
	"citbif/internal/config"
	"citbif/internal/database"
	"citbif/internal/logger"
	"citbif/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	lg := logger.New(cfg.LogLevel)
	defer lg.Sync()
	if err != nil {
		lg.Fatalw("config load failed", "error", err)
	}

	db, err := database.Open(cfg.DatabaseURL, lg)
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	defer database.Close(db)

	st := store.New(db)
	tokens := auth.NewService(auth.OptionsFromConfig(cfg), st, st, nil, lg)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := tokens.CleanupExpiredSessions(ctx)
	if err != nil {
		lg.Errorw("session sweep failed", "error", err)
		return
	}
	lg.Infow("session sweep", "removed", n)
}
