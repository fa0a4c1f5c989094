package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"donato/backend/internal/app"
	"donato/backend/internal/config"
	"donato/backend/internal/db"
	"donato/backend/internal/donation"
	"donato/backend/internal/http/handlers"
	"donato/backend/internal/http/middleware"
	"donato/backend/internal/logging"
	"donato/backend/internal/rate"
	"donato/backend/internal/repository"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("log error: %v", err)
	}
	defer func() {
		_ = cleanup()
	}()
	logger = logger.With("service", "api")
	slog.SetDefault(logger)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db error", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate error", "error", err)
		os.Exit(1)
	}

	repo := repository.New(pool)
	svc, err := app.NewService(ctx, cfg, repo, logger)
	if err != nil {
		logger.Error("service error", "error", err)
		os.Exit(1)
	}

	h := handlers.New(handlers.Deps{
		Service: svc,
		Pending: donation.NewPendingStore(cfg.SessionTTL),
		Tokens:  repo,
		DB:      pool,
		Limiter: rate.NewPerMinute(cfg.Contribution.RatePerMinute),
	}, cfg, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Session(middleware.SessionOptions{
		Secret: cfg.SessionSecret,
		TTL:    cfg.SessionTTL,
		Secure: !cfg.IsTest(),
		Logger: logger,
	}))
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	h.Mount(r)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown", "service", "api")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
}
