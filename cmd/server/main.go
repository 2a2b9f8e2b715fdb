package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"tripmate/internal/audit"
	"tripmate/internal/platform/config"
	"tripmate/internal/platform/httpserver"
	"tripmate/internal/platform/jwt"
	"tripmate/internal/platform/logger"
	platformredis "tripmate/internal/platform/redis"
	httptransport "tripmate/internal/transport/http"
	"tripmate/internal/trip/metrics"
	"tripmate/internal/trip/service"
	"tripmate/internal/trip/sharecache"
	"tripmate/internal/trip/store"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages. Every external
// dependency is optional: without DATABASE_URL, REDIS_URL, or KAFKA_BROKERS
// the process runs fully in-memory, which is the local development mode.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx := context.Background()

	tripStore, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	opts := []service.Option{service.WithLogger(log), service.WithMetrics(metrics.New())}

	auditStore, closeAudit, err := buildAuditStore(cfg, log)
	if err != nil {
		log.Error("audit sink init failed", "error", err)
		os.Exit(1)
	}
	defer closeAudit()
	opts = append(opts, service.WithAuditPublisher(audit.NewPublisher(auditStore)))

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, service.WithShareCache(sharecache.New(redisClient.Client, cfg.ShareCacheTTL)))
		log.Info("share-token cache enabled", "ttl", cfg.ShareCacheTTL)
	}

	trips := service.New(tripStore, opts...)

	validator := jwt.NewService(cfg.JWTSigningKey, "tripmate")
	router := httptransport.NewRouter(httptransport.NewTripHandler(trips, log), validator, log)
	srv := httpserver.New(cfg.Addr, router)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting tripmate", "addr", cfg.Addr)
	g, runCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildStore picks Postgres when DATABASE_URL is set and falls back to the
// in-memory store otherwise.
func buildStore(ctx context.Context, cfg config.Server, log *slog.Logger) (store.Store, func(), error) {
	if cfg.PostgresURL == "" {
		log.Info("no DATABASE_URL set, using in-memory store")
		return store.NewInMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	pg := store.NewPostgres(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("postgres store ready")
	return pg, func() { db.Close() }, nil
}

// buildAuditStore emits audit events to Kafka when brokers are configured and
// keeps them in memory otherwise.
func buildAuditStore(cfg config.Server, log *slog.Logger) (audit.Store, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("no KAFKA_BROKERS set, keeping audit events in memory")
		return audit.NewMemoryStore(), func() {}, nil
	}

	kafkaStore, err := audit.NewKafkaStore(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, nil, err
	}
	log.Info("audit events publishing to kafka", "topic", cfg.KafkaTopic)
	return kafkaStore, kafkaStore.Close, nil
}
