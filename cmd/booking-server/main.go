package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pkzinx/dlux-booking/internal/config"
	"github.com/pkzinx/dlux-booking/internal/httpx"
	"github.com/pkzinx/dlux-booking/internal/notify"
	"github.com/pkzinx/dlux-booking/internal/panel"
	"github.com/pkzinx/dlux-booking/internal/service/availability"
	"github.com/pkzinx/dlux-booking/internal/service/booking"
	"github.com/pkzinx/dlux-booking/internal/service/reservations"
	"github.com/pkzinx/dlux-booking/internal/store"
	"github.com/pkzinx/dlux-booking/internal/store/memory"
	"github.com/pkzinx/dlux-booking/internal/store/postgres"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "booking-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "booking-server"),
	)
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("panel_url", cfg.PanelURL),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repo store.ReservationRepository
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			log.Error("database connection failed", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := postgres.Close(db); err != nil {
				log.Warn("database close failed", slog.Any("err", err))
			}
		}()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("schema setup failed", slog.Any("err", err))
			os.Exit(1)
		}
		repo = postgres.NewReservationRepo(db)
	} else {
		log.Warn("no database configured; reservation cache is in-process only")
		repo = memory.NewReservationRepo()
	}

	var pub reservations.Publisher
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			_ = rdb.Close()
		}()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis connection failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
			os.Exit(1)
		}
		pub = notify.NewBroadcaster(rdb, log)
	} else {
		log.Warn("no redis configured; cross-view reservation updates disabled")
	}

	cache := reservations.NewStore(repo, pub, log)
	go cache.Run(ctx)

	panelClient := panel.NewClient(cfg.PanelURL, cfg.PanelTimeout, log)
	coordinator := availability.NewCoordinator(panelClient, log)
	workflow := booking.NewWorkflow(panelClient, cache, log)

	handler := httpx.NewHandler(coordinator, workflow, cache, panelClient, log)
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpx.NewRouter(handler),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, server, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func shutdown(log *slog.Logger, s *http.Server, timeout time.Duration) {
	log.Info("shutting down http server", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed; forcing close", slog.Any("err", err))
		_ = s.Close()
		return
	}
	log.Info("http server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
