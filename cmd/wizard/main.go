package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/clearglass/quote-wizard/internal/api"
	"github.com/clearglass/quote-wizard/internal/backend"
	"github.com/clearglass/quote-wizard/internal/config"
	"github.com/clearglass/quote-wizard/internal/infra/db"
	httpx "github.com/clearglass/quote-wizard/internal/infra/http"
	"github.com/clearglass/quote-wizard/internal/infra/logger"
	"github.com/clearglass/quote-wizard/internal/infra/metrics"
	"github.com/clearglass/quote-wizard/internal/session"
	"github.com/clearglass/quote-wizard/internal/vehicles"
	"github.com/clearglass/quote-wizard/internal/wizard"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/subosito/gotenv"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Постоянное хранилище сессий выключено по умолчанию: без него мастер
	// живёт в памяти процесса, гарантий за пределами сессии нет.
	var sessions session.Repo = session.NewMemory(cfg.Session.TTL)
	if cfg.Postgres.Enabled {
		if err := runMigrations(cfg.Postgres.DSN); err != nil {
			log.Error("migrations failed", "err", err)
			return
		}
		log.Info("migrations applied")

		pool, err := db.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Error("db connect failed", "err", err)
			return
		}
		defer pool.Close()
		log.Info("db connected")

		sessions = session.NewPostgres(pool, cfg.Session.TTL)
	}

	if cfg.Metrics.Enabled {
		metrics.RegisterActiveSessions(func() float64 {
			list, err := sessions.List(ctx)
			if err != nil {
				return 0
			}
			return float64(len(list))
		})
	}

	quotes := backend.NewClient(cfg.Backend.BaseURL)
	lookup := vehicles.NewClient(cfg.Vehicles.BaseURL)
	pipeline := wizard.NewPipeline(log, quotes)
	poller := backend.NewPoller(log, quotes, cfg.Backend.PollInterval)

	handler := api.NewHandler(ctx, log, sessions, lookup, pipeline, poller, quotes)

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, handler)
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
