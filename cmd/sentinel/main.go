package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/telhawk-systems/sentinel/internal/bus"
	"github.com/telhawk-systems/sentinel/internal/config"
	"github.com/telhawk-systems/sentinel/internal/containment"
	"github.com/telhawk-systems/sentinel/internal/detector"
	"github.com/telhawk-systems/sentinel/internal/engine"
	"github.com/telhawk-systems/sentinel/internal/handlers"
	"github.com/telhawk-systems/sentinel/internal/kv"
	"github.com/telhawk-systems/sentinel/internal/logging"
	"github.com/telhawk-systems/sentinel/internal/notify"
	"github.com/telhawk-systems/sentinel/internal/repository"
	"github.com/telhawk-systems/sentinel/internal/scheduler"
	"github.com/telhawk-systems/sentinel/internal/server"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	// Pattern rule configuration: viper settings, optionally overridden by a
	// dedicated rules file.
	detCfg := detector.Config{
		FailedLoginThreshold: cfg.Engine.FailedLoginThreshold,
		FailedLoginWindow:    cfg.Engine.FailedLoginWindow,
		SuspiciousThreshold:  cfg.Engine.SuspiciousThreshold,
		SuspiciousWindow:     cfg.Engine.SuspiciousWindow,
		RateLimitThreshold:   cfg.Engine.RateLimitThreshold,
		RateLimitWindow:      cfg.Engine.RateLimitWindow,
	}
	if cfg.Engine.PatternRulesFile != "" {
		detCfg, err = detector.LoadConfig(cfg.Engine.PatternRulesFile)
		if err != nil {
			log.Fatalf("Failed to load pattern rules: %v", err)
		}
		logger.Info("pattern rules loaded", "file", cfg.Engine.PatternRulesFile)
	}

	deps := engine.Deps{Logger: logger}

	// Durable key-value store: Redis when enabled, in-memory otherwise.
	if cfg.Redis.Enabled {
		store, err := kv.NewRedis(context.Background(), cfg.Redis.URL, cfg.Redis.TTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer store.Close()
		deps.KV = store
		logger.Info("redis key-value store connected", "url", cfg.Redis.URL)
	}

	// PostgreSQL audit archive, with migrations run at startup.
	if cfg.Database.Enabled {
		connString := cfg.Database.ConnString()

		logger.Info("running database migrations")
		m, err := migrate.New("file://migrations", connString)
		if err != nil {
			log.Fatalf("Failed to initialize migrations: %v", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		logger.Info("database migrations completed")

		repo, err := repository.NewPostgresRepository(context.Background(), connString)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer repo.Close()
		deps.Archive = engine.ArchiveFunc{
			Alert:    repo.ArchiveAlert,
			Incident: repo.ArchiveIncident,
		}
	}

	// NATS carries notifications and containment commands when enabled.
	if cfg.NATS.Enabled {
		busCfg := bus.DefaultConfig()
		busCfg.URL = cfg.NATS.URL
		busCfg.MaxReconnects = cfg.NATS.MaxReconnects
		busCfg.ReconnectWait = cfg.NATS.ReconnectWait

		conn, err := bus.Connect(busCfg)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer conn.Close()
		deps.Notifier = notify.NewBus(conn)
		deps.Containment = containment.NewBusExecutor(conn)
		logger.Info("nats message bus connected", "url", cfg.NATS.URL)
	} else {
		deps.Containment = containment.Noop{}
	}

	engCfg := engine.Config{
		Detector:           detCfg,
		LookbackWindow:     cfg.Engine.LookbackWindow,
		DecayHorizon:       cfg.Engine.DecayHorizon,
		ContainmentTimeout: cfg.Containment.Timeout,
	}
	eng := engine.New(engCfg, deps)

	// Periodic drain and decay
	sched := scheduler.New(scheduler.Tasks{
		Drain: func(ctx context.Context) { eng.DrainOnce(ctx) },
		Decay: func(ctx context.Context) { eng.DecayOnce(ctx) },
	}, cfg.Scheduler.DrainInterval, cfg.Scheduler.DecayInterval, logger)

	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()
	go sched.Start(schedCtx)

	// Setup HTTP router
	handler := handlers.NewHandler(eng)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("sentinel service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	sched.Stop()

	// Final drain so queued events are not lost on shutdown.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancelDrain()
	eng.DrainOnce(drainCtx)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server stopped")
}
