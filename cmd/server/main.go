// cmd/server/main.go
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"hanumantlibrary/internal/activity"
	"hanumantlibrary/internal/attendance"
	"hanumantlibrary/internal/chat"
	"hanumantlibrary/internal/config"
	"hanumantlibrary/internal/fees"
	"hanumantlibrary/internal/identity"
	"hanumantlibrary/internal/membership"
	"hanumantlibrary/pkg/logger"
	"hanumantlibrary/pkg/realtimestore"
	"hanumantlibrary/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, "hanumant-library", cfg.OTLPEndpoint)
	if err != nil {
		log.Error("init tracing", "err", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	store, cleanup, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Error("init store", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	activities := activity.NewLog(store, log)
	feeEngine := fees.NewService(store, activities, log)
	tracker := attendance.NewService(store, activities, log, cfg.AllowMultipleOpenSessions)
	members := membership.NewService(store, feeEngine, activities, log, cfg.LoginRatePerMinute)
	relay := chat.NewRelay(store, log)
	resolver := identity.NewResolver(store, cfg.AuthRestoreTimeout)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Route("/api/v1", func(r chi.Router) {
		memberHandler := membership.NewHandler(members)
		r.Route("/members", memberHandler.Routes)
		r.Route("/auth", memberHandler.AuthRoutes)
		r.Route("/roles", identity.NewHandler(resolver).Routes)
		r.Route("/attendance", attendance.NewHandler(tracker).Routes)
		r.Route("/dues", fees.NewHandler(feeEngine).Routes)
		r.Route("/activities", activity.NewHandler(activities).Routes)

		chatHandler := chat.NewHandler(relay)
		r.Route("/chat", chatHandler.ChatRoutes)
		r.Route("/notifications", chatHandler.NotificationRoutes)
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown http server", "err", err)
		}
	}()

	log.Info("starting server", "port", cfg.HTTPPort, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("http server", "err", err)
		os.Exit(1)
	}
}

// buildStore wires the Postgres-backed store, or the in-memory one when no
// database is configured (development and tests).
func buildStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (realtimestore.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return realtimestore.NewMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	store, err := realtimestore.NewPostgresStore(db, cfg.DatabaseURL, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		store.Close()
		db.Close()
	}
	return store, cleanup, nil
}
