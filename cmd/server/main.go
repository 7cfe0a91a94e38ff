package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sifan077/redirector/config"
	appmodel "github.com/sifan077/redirector/internal/app/model"
	"github.com/sifan077/redirector/internal/app/nginx"
	"github.com/sifan077/redirector/internal/app/redirect"
	"github.com/sifan077/redirector/internal/app/reload"
	apprepository "github.com/sifan077/redirector/internal/app/repository"
	appserver "github.com/sifan077/redirector/internal/app/server"
	"github.com/sifan077/redirector/internal/app/service"
	inthttp "github.com/sifan077/redirector/internal/http/handler"
	"github.com/sifan077/redirector/internal/http/middleware"
	"github.com/sifan077/redirector/internal/infra/logger"
	infraNATS "github.com/sifan077/redirector/internal/infra/nats"
	infraPostgres "github.com/sifan077/redirector/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/redirector/internal/infra/prometheus"
	infraRedis "github.com/sifan077/redirector/internal/infra/redis"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.MustInit(logger.ConfigFromEnv("redirector"))
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("nats_host", cfg.NATS.Host),
		zap.String("nginx_config_dir", cfg.Nginx.ConfigDir),
		zap.String("reload_driver", cfg.Reload.Driver),
		zap.String("admin_addr", cfg.HTTP.Addr),
		zap.String("redirect_addr", cfg.HTTP.RedirectAddr),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.Domain{},
		&appmodel.Backlink{},
		&appmodel.RedirectRule{},
		&appmodel.HitEvent{},
	); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		// Only rate limiting depends on Redis.
		log.Warn("Redis unavailable, rate limiting disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Info("Connected to Redis successfully")
	}

	var hits inthttp.HitPublisher
	natsConn, js, err := infraNATS.Connect(cfg.NATS, log.Named("nats"))
	if err != nil {
		log.Warn("NATS unavailable, hit events disabled", zap.Error(err))
	} else {
		defer natsConn.Drain()
		log.Info("Connected to NATS successfully")

		hitConsumer := service.NewHitConsumer(js, log.Named("hits"), apprepository.NewHitEventRepository(gormDB))
		if err := hitConsumer.Start(ctx); err != nil {
			log.Error("Failed to start hit consumer", zap.Error(err))
		} else if cfg.HTTP.PublishHits {
			hits = service.NewHitPublisher(js)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := infraPrometheus.NewMetrics(registry)
	promServer := infraPrometheus.NewServer(cfg.Prometheus, registry)
	go func() {
		log.Info("Starting Prometheus metrics server", zap.Int("port", cfg.Prometheus.Port))
		if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
		}
	}()
	defer func() {
		if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("Failed to close Prometheus server", zap.Error(err))
		}
	}()

	reloader, reloaderCloser, err := reload.FromConfig(cfg.Reload, log.Named("reload"))
	if err != nil {
		log.Fatal("Failed to build proxy reloader", zap.Error(err))
	}
	defer reloaderCloser.Close()

	patterns := redirect.NewPatternCache(0)
	domainRepo := apprepository.NewDomainRepository(gormDB)
	backlinkRepo := apprepository.NewBacklinkRepository(gormDB)
	ruleRepo := apprepository.NewRuleRepository(gormDB)

	engine, err := service.NewRedirectService(service.RedirectDeps{
		Logger:    log.Named("engine"),
		Domains:   domainRepo,
		Backlinks: backlinkRepo,
		Rules:     ruleRepo,
		Snapshot:  infraPostgres.NewSnapshotReader(pool),
		Emitter: nginx.NewEmitter(nginx.Config{
			Dir:      cfg.Nginx.ConfigDir,
			Suffix:   cfg.Nginx.FileSuffix,
			Listen:   cfg.Nginx.Listen,
			Logger:   log.Named("nginx"),
			Patterns: patterns,
		}),
		Reloader: reload.NewCoordinator(reload.CoordinatorConfig{
			Reloader: reloader,
			Timeout:  cfg.Reload.Timeout,
			Logger:   log.Named("reload"),
			Observer: metrics,
		}),
		Filter:   service.NewActiveDomainFilter(uint(cfg.HTTP.ExpectedDomains)),
		Patterns: patterns,
		Metrics:  metrics,
	})
	if err != nil {
		log.Fatal("Failed to build redirect engine", zap.Error(err))
	}

	// Reconcile the config directory with the store before serving anything.
	if result, err := engine.RegenerateAndReload(ctx); err != nil {
		log.Error("Initial configuration emission failed", zap.Error(err))
	} else {
		log.Info("Initial configuration emitted", zap.Bool("success", result.Success), zap.String("message", result.Message))
	}

	resync := service.NewResyncScheduler(engine, cfg.Resync.Schedule, log.Named("resync"))
	if err := resync.Start(ctx); err != nil {
		log.Fatal("Failed to start resync scheduler", zap.Error(err))
	}
	defer resync.Stop()

	server := appserver.New(appserver.Dependencies{
		Logger: log,
		Redis:  redisClient,
		RateLimit: middleware.RateLimitConfig{
			MaxRequests: cfg.HTTP.RateLimit,
			Window:      cfg.HTTP.RateWindow,
		},
		Domains:   service.NewDomainService(domainRepo, engine, log.Named("domains")),
		Backlinks: service.NewBacklinkService(backlinkRepo, domainRepo, engine, log.Named("backlinks")),
		Rules:     service.NewRuleService(ruleRepo, domainRepo, engine, patterns, log.Named("rules")),
		Redirects: engine,
		Hits:      hits,
	})

	errCh := make(chan error, 2)
	go func() {
		log.Info("Starting admin API", zap.String("addr", cfg.HTTP.Addr))
		errCh <- server.ListenAdmin(cfg.HTTP.Addr)
	}()
	go func() {
		log.Info("Starting redirect listener", zap.String("addr", cfg.HTTP.RedirectAddr))
		errCh <- server.ListenRedirect(cfg.HTTP.RedirectAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-errCh:
		log.Error("HTTP listener exited", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shut down HTTP servers", zap.Error(err))
	}
}
