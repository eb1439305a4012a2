package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"citbif/internal/activity"
	"citbif/internal/auth"
	"citbif/internal/config"
	"citbif/internal/database"
	"citbif/internal/httpserver"
	"citbif/internal/httpserver/handlers"
	"citbif/internal/logger"
	"citbif/internal/metrics"
	"citbif/internal/models"
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
	defer func() {
		if err := database.Close(db); err != nil {
			lg.Warnw("db close failed", "error", err)
		}
	}()
	if err := database.Migrate(db); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}

	st := store.New(db)
	seedSuperAdmin(st, cfg, lg)

	m := metrics.New()
	sinks := []activity.Sink{activity.SinkFunc(st.CreateActivity)}
	if cfg.MongoURI != "" {
		ms, err := activity.NewMongoSink(context.Background(), cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			lg.Warnw("mongo activity mirror disabled", "error", err)
		} else {
			defer ms.Close(context.Background())
			sinks = append(sinks, ms)
		}
	}
	rec := activity.NewRecorder(st, lg, sinks...)

	tokens := auth.NewService(auth.OptionsFromConfig(cfg), st, st, m, lg)
	authn := auth.NewAuthenticator(tokens, st, rec, m, lg, !cfg.IsProduction())
	router := httpserver.NewRouter(&handlers.Deps{
		Accounts: st,
		Activity: st,
		Tokens:   tokens,
		Recorder: rec,
		Metrics:  m,
		Log:      lg,
	}, authn)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		tokens.RunSweeper(sweepCtx, cfg.SessionSweepInterval)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		lg.Infow("listening", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Errorw("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	lg.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warnw("http shutdown", "error", err)
	}
	stopSweep()
	<-sweepDone
	rec.Wait()
}

// seedSuperAdmin creates the first super admin when SEED_ADMIN_EMAIL and
// SEED_ADMIN_PASSWORD are set and no account uses that email yet.
func seedSuperAdmin(st *store.Store, cfg config.Config, lg *zap.SugaredLogger) {
	if cfg.SeedAdminEmail == "" || cfg.SeedAdminPassword == "" {
		return
	}
	ctx := context.Background()
	existing, err := st.FindAccountByEmail(ctx, cfg.SeedAdminEmail)
	if err != nil {
		lg.Warnw("seed admin lookup failed", "error", err)
		return
	}
	if existing != nil {
		return
	}
	hash, err := auth.HashPassword(cfg.SeedAdminPassword)
	if err != nil {
		lg.Warnw("seed admin hash failed", "error", err)
		return
	}
	acc := &models.Account{
		ID:              uuid.NewString(),
		Email:           strings.ToLower(cfg.SeedAdminEmail),
		Username:        "superadmin",
		FullName:        "Super Admin",
		PasswordHash:    hash,
		Role:            models.RoleIndividual,
		ProfileComplete: true,
		EmailVerified:   true,
	}
	if err := st.CreateAccount(ctx, acc); err != nil {
		lg.Warnw("seed admin create failed", "error", err)
		return
	}
	if err := st.PromoteToAdmin(ctx, acc, models.NewAdminProfile(acc.ID, models.LevelSuperAdmin)); err != nil {
		lg.Warnw("seed admin promote failed", "error", err)
		return
	}
	lg.Infow("seeded super admin", "email", acc.Email)
}
