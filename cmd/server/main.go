package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sifan077/tinyurl/config"
	"github.com/sifan077/tinyurl/internal/app/repository"
	appserver "github.com/sifan077/tinyurl/internal/app/server"
	"github.com/sifan077/tinyurl/internal/app/service"
	"github.com/sifan077/tinyurl/internal/http/middleware"
	"github.com/sifan077/tinyurl/internal/infra/logger"
	infraNATS "github.com/sifan077/tinyurl/internal/infra/nats"
	infraPostgres "github.com/sifan077/tinyurl/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/tinyurl/internal/infra/prometheus"
	infraRedis "github.com/sifan077/tinyurl/internal/infra/redis"
	infraSQLite "github.com/sifan077/tinyurl/internal/infra/sqlite"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCfg := logger.ConfigFromEnv()
	log := logger.MustInit(logCfg)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("addr", cfg.Server.Addr),
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("click_transport", cfg.Clicks.Transport),
		zap.Int("stats_workers", cfg.Stats.Workers),
	)

	var (
		urls   repository.URLRepository
		clicks repository.ClickRepository
	)

	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		db, err := infraSQLite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			log.Fatal("Failed to open SQLite database", zap.Error(err))
		}
		defer db.Close()

		store := repository.NewSQLiteStore(db)
		urls, clicks = store, store
		log.Info("Opened SQLite store", zap.String("path", cfg.Store.SQLitePath))

	default:
		if err := infraPostgres.Migrate(cfg.Postgres); err != nil {
			log.Fatal("Failed to run database migrations", zap.Error(err))
		}

		gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to open GORM connection", zap.Error(err))
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
		}
		defer sqlDB.Close()

		pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer pool.Close()

		urls = repository.NewURLRepository(gormDB)
		clicks = repository.NewClickRepository(pool)
		log.Info("Connected to Postgres successfully",
			zap.String("host", cfg.Postgres.Host),
			zap.Int("port", cfg.Postgres.Port),
			zap.String("database", cfg.Postgres.Database),
		)
	}

	var rdb *goredis.Client
	if cfg.Redis.CacheEnabled || cfg.RateLimit.Enabled {
		rdb, err = infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		log.Info("Connected to Redis successfully")

		if cfg.Redis.CacheEnabled {
			urls = repository.NewCachedURLRepository(urls, rdb, cfg.Redis.CacheTTL, log.Named("url_cache"))
		}
	}

	var sink service.ClickSink = clicks
	if cfg.Clicks.Transport == config.ClickTransportNATS {
		natsConn, js, err := infraNATS.Connect(cfg.NATS, log.Named("nats"))
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()

		consumer := service.NewClickConsumer(js, log.Named("click_consumer"), clicks)
		if err := consumer.Start(ctx); err != nil {
			log.Fatal("Failed to start click consumer", zap.Error(err))
		}
		sink = service.NewClickPublisher(js)
		log.Info("Connected to NATS successfully", zap.String("url", natsConn.ConnectedUrl()))
	}

	policy, err := service.ParseDropPolicy(cfg.Clicks.DropPolicy)
	if err != nil {
		log.Fatal("Invalid click drop policy", zap.Error(err))
	}
	recorder := service.NewClickRecorder(sink, service.RecorderConfig{
		QueueSize:    cfg.Clicks.QueueSize,
		Workers:      cfg.Clicks.Workers,
		Policy:       policy,
		WriteTimeout: cfg.Clicks.WriteTimeout,
	}, log.Named("click_recorder"))
	recorder.Start()

	var genOpts []service.GeneratorOption
	if cfg.Shortener.SecureRandom {
		genOpts = append(genOpts, service.WithSecureRandom())
	}
	generator, err := service.NewRandomGenerator(cfg.Shortener.Alphabet, cfg.Shortener.CodeLength, genOpts...)
	if err != nil {
		log.Fatal("Invalid shortener settings", zap.Error(err))
	}

	svc := service.NewURLService(service.Dependencies{
		Logger:      log.Named("url_service"),
		URLs:        urls,
		Generator:   generator,
		Recorder:    recorder,
		Aggregator:  service.NewWindowAggregator(clicks, cfg.Stats.Workers),
		MaxAttempts: cfg.Shortener.MaxAttempts,
	})

	if !logCfg.Development {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, nil)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	deps := appserver.Dependencies{
		Logger:    log,
		Service:   svc,
		URLPrefix: cfg.Server.URLPrefix,
	}
	if rdb != nil && cfg.RateLimit.Enabled {
		deps.Redis = rdb
		deps.RateLimit = middleware.RateLimitConfig{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
		}
	}
	server := appserver.New(deps)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", cfg.Server.Addr))
		serveErr <- server.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("Fiber server exited", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shut down HTTP server cleanly", zap.Error(err))
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		log.Warn("Click recorder did not drain before timeout", zap.Error(err))
	}
	log.Info("Server stopped")
}
