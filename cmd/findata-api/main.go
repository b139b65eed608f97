package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/config"
	httpapi "github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/http"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/progress"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/provider"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/repository"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/service"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/gocql/gocql"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg)
	defer logger.Sync()

	// Storage: Cassandra when reachable, in-memory fallback for local dev.
	var (
		stores  store.Stores
		session *gocql.Session
	)
	if cfg.Cassandra.Enabled {
		s, err := store.NewCassandraSession(store.CassandraConfig{
			Hosts:    cfg.Cassandra.Hosts,
			Port:     cfg.Cassandra.Port,
			Keyspace: cfg.Cassandra.Keyspace,
			Username: cfg.Cassandra.Username,
			Password: cfg.Cassandra.Password,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			logger.Warn("Cassandra enabled but connection failed, falling back to in-memory stores", zap.Error(err))
		} else {
			session = s
			stores = store.NewCassandraStores(s)
			logger.Info("Cassandra connected",
				zap.Strings("hosts", cfg.Cassandra.Hosts),
				zap.String("keyspace", cfg.Cassandra.Keyspace))
		}
	}
	if session == nil {
		stores = store.NewMemoryStores()
	}

	// Redis backs the current-version cache and the progress stream; both
	// degrade gracefully when it is absent.
	var (
		redisClient *redis.Client
		cache       store.KV
		sink        progress.Sink = progress.NewLogSink(logger)
	)
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis enabled but unreachable, continuing without cache and stream", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		} else {
			cache = store.NewRedisKV(redisClient)
			sink = progress.NewRedisStreamSink(redisClient, progress.DefaultStream)
		}
	}

	assetsRepo := repository.NewVersionedAssetsRepo(stores.Assets, cache, logger)
	sourcesRepo := repository.NewVersionedDataSourcesRepo(stores.DataSources, logger)
	seriesRepo := repository.NewVersionedTimeSeriesRepo(stores.Data, logger)

	fetcher := provider.NewNasdaqClient(cfg.Nasdaq.BaseURL, cfg.Nasdaq.APIKey, logger)

	dataSvc := service.NewDataService(assetsRepo, sourcesRepo, seriesRepo, logger)
	coverageSvc := service.NewCoverageService(assetsRepo, sourcesRepo, seriesRepo, logger)
	ingestionSvc := service.NewIngestionService(assetsRepo, sourcesRepo, seriesRepo, fetcher, sink, logger)

	router := httpapi.NewRouter(logger)
	router.RegisterAssetRoutes(httpapi.NewAssetsHandler(dataSvc, coverageSvc, logger))
	router.RegisterDataSourceRoutes(httpapi.NewDataSourcesHandler(dataSvc, logger))
	router.RegisterTimeSeriesRoutes(httpapi.NewTimeSeriesHandler(dataSvc, logger))
	router.RegisterIngestionRoutes(
		httpapi.NewIngestionHandler(ingestionSvc, logger),
		httpapi.NewCoverageHandler(coverageSvc, logger))
	router.RegisterOpsRoutes()

	srv := service.NewServer(cfg.HTTP.Addr, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		logger.Error("HTTP server stopped", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if session != nil {
		session.Close()
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	zc := zap.NewProductionConfig()
	if cfg.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	if lvl, err := zap.ParseAtomicLevel(cfg.Log.Level); err == nil {
		zc.Level = lvl
	}
	logger, err := zc.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
