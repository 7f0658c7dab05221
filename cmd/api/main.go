package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coophours/internal/api"
	"coophours/internal/config"
	"coophours/internal/database"
	"coophours/internal/domain"
	"coophours/internal/events"
	"coophours/internal/export"
	"coophours/internal/logging"
	"coophours/internal/metrics"
	"coophours/internal/models"
	"coophours/internal/service"
	"coophours/internal/session"
	"coophours/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	equipment, err := loadEquipment(&logger)
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, equipment, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := initSessions(cfg, db, redisClient, &logger)
	bus := events.NewEventBus()

	reservations := service.NewReservationService(db, bus, &logger)
	users := service.NewUserService(db, bus, &logger)
	exporter := export.NewExporter(db, &logger)

	exportWorker := worker.NewExportWorker(db, exporter, redisClient, cfg.Exports.Path, worker.RetryPolicy{}, &logger)
	go exportWorker.Start(ctx)

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	server := api.NewServer(cfg, sessions, reservations, users, exporter, exportWorker, &logger)
	return serve(ctx, server, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func loadEquipment(logger *zerolog.Logger) ([]models.Equipment, error) {
	equipmentPath := os.Getenv("EQUIPMENT_PATH")
	if equipmentPath == "" {
		equipmentPath = "configs/equipment.yaml"
	}
	data, err := os.ReadFile(equipmentPath)
	if err != nil {
		logger.Error().Err(err).Str("equipment_path", equipmentPath).Msg("read equipment catalog")
		return nil, err
	}

	var catalog struct {
		Equipment []models.Equipment `yaml:"equipment"`
	}
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Error().Err(err).Str("equipment_path", equipmentPath).Msg("parse equipment catalog")
		return nil, err
	}

	if err := config.ValidateEquipment(catalog.Equipment); err != nil {
		logger.Error().Err(err).Msg("invalid equipment catalog")
		return nil, err
	}

	return catalog.Equipment, nil
}

func initDatabase(cfg *config.Config, equipment []models.Equipment, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if err := db.SyncEquipment(context.Background(), equipment); err != nil {
		logger.Error().Err(err).Msg("sync equipment catalog")
		db.Close()
		return nil, err
	}
	return db, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := session.NewRedisClient(cfg.Redis)
	if err := session.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initSessions prefers Redis-backed sessions with an in-memory fallback;
// without Redis everything lives in memory.
func initSessions(cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) *session.Manager {
	var store domain.SessionStore = session.NewMemoryStore()
	if redisClient != nil {
		// Sessions outlive the idle window in Redis so expiry stays a
		// manager decision; the TTL only garbage-collects abandoned tokens.
		ttl := 24 * time.Hour
		store = session.NewFailoverStore(
			session.NewRedisStore(redisClient, ttl),
			session.NewMemoryStore(),
			logger,
		)
	}
	return session.NewManager(store, db, cfg.Session.IdleTimeout(), logger)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serve(ctx context.Context, server *api.Server, logger *zerolog.Logger) error {
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
