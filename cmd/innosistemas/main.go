package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/udea/innosistemas/pkg/api"
	"github.com/udea/innosistemas/pkg/auth"
	"github.com/udea/innosistemas/pkg/blacklist"
	"github.com/udea/innosistemas/pkg/config"
	"github.com/udea/innosistemas/pkg/middleware"
	"github.com/udea/innosistemas/pkg/observability"
	"github.com/udea/innosistemas/pkg/rbac"
	"github.com/udea/innosistemas/pkg/session"
	"github.com/udea/innosistemas/pkg/storage/postgres"
)

var (
	migrateOnly   = flag.Bool("migrate-only", false, "Apply the user schema and exit")
	statsSchedule = flag.String("stats-schedule", "@every 1m", "Cron schedule for gauge refresh and replica health checks")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("innosistemas stopped with error")
	}
	logger.Info("innosistemas stopped")
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	defer func() {
		if err := shutdown.Shutdown(); err != nil {
			logger.WithError(err).Warn("shutdown finished with errors")
		}
	}()

	// Tracing
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("init opentelemetry: %w", err)
	}
	shutdown.Register("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)
	recorders := observability.Recorders{metrics}
	if otelProviders != nil {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			return fmt.Errorf("init otel metrics: %w", err)
		}
		metrics.AttachOTel(otelMetrics)
		recorders = append(recorders, otelMetrics)
	}

	// Storage
	conn, err := postgres.NewConnectionManager(postgres.ConnectionConfigFrom(cfg.Storage), logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	shutdown.Register("database", func(context.Context) error { return conn.Close() })

	redisClient, err := postgres.NewRedisClient(cfg.Storage)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })

	users := postgres.NewUserStore(conn, logger, postgres.WithUserCache(redisClient))
	if err := users.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate user schema: %w", err)
	}
	if *migrateOnly {
		logger.Info("user schema is up to date")
		return nil
	}

	// Revocation and sessions
	revocations := blacklist.NewStore(redisClient.GetClient(), blacklist.Config{
		Timeout:   cfg.Auth.StoreTimeout,
		FailOpen:  cfg.Auth.RevocationFailOpen,
		CacheSize: cfg.Auth.RevokedCacheSize,
		CacheTTL:  cfg.Auth.RefreshTokenTTL,
	}, logger, blacklist.WithErrorRecorder(recorders))

	sessions := session.NewRegistry(redisClient.GetClient(), cfg.Auth.AccessTokenTTL, cfg.Auth.StoreTimeout, logger,
		session.WithErrorRecorder(recorders))

	sweeper, err := session.NewSweeper(sessions, cfg.Auth.SessionSweepSchedule, logger, recorders)
	if err != nil {
		return err
	}
	sweeper.Start()
	shutdown.Register("session sweeper", func(ctx context.Context) error {
		select {
		case <-sweeper.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	stats, err := startStatsJob(*statsSchedule, conn, sessions, metrics, logger)
	if err != nil {
		return err
	}
	shutdown.Register("stats job", func(context.Context) error {
		stats.Stop()
		return nil
	})

	// Authentication
	codec, err := auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}
	service := auth.NewService(users, codec, revocations, sessions, logger, auth.WithRecorder(recorders))
	audit := auth.NewAuditLogger(logger)

	// Authorization
	rules, err := loadRules(ctx, cfg.RBAC, logger)
	if err != nil {
		return err
	}
	policy := rbac.NewPolicy(rbac.DefaultPermissionTable(), logger, rbac.WithDenialRecorder(metrics))

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(redisClient.GetClient(), cfg.RateLimit.Requests, cfg.RateLimit.Window,
			cfg.Auth.StoreTimeout, logger,
			middleware.WithLimitRecorder(metrics),
			middleware.WithAuditLogger(audit))
	}

	deps := api.Deps{
		Auth:      service,
		Directory: users,
		Policy:    policy,
		Rules:     rules,
		Audit:     audit,
		Health:    observability.NewHealthChecker(conn, redisClient.GetClient(), cfg.Observability.OTelServiceVersion),
		Limiter:   limiter,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics
		deps.Gatherer = registry
	}

	server, err := api.NewServer(cfg.Server, deps, logger)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"port":        cfg.Server.Port,
		"health_port": cfg.Server.HealthPort,
		"driver":      conn.Driver(),
		"fail_open":   cfg.Auth.RevocationFailOpen,
	}).Info("innosistemas auth service starting")

	return server.Run(ctx)
}

// loadRules returns the route rules from the configured file, or the built-in defaults.
// With watching enabled the file is reloaded in the background until ctx ends.
func loadRules(ctx context.Context, cfg config.RBACConfig, logger logrus.FieldLogger) (*rbac.RuleSet, error) {
	if cfg.RulesFile == "" {
		return rbac.NewRuleSet(rbac.DefaultAccessRules()), nil
	}

	initial, err := rbac.LoadAccessRulesFile(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load access rules: %w", err)
	}
	rules := rbac.NewRuleSet(initial)
	logger.WithField("file", cfg.RulesFile).Info("access rules loaded")

	if cfg.WatchRules {
		watcher, err := rbac.NewRulesWatcher(cfg.RulesFile, rules, logger)
		if err != nil {
			return nil, fmt.Errorf("watch access rules: %w", err)
		}
		go func() {
			defer observability.RecoverPanic(logger, "access rules watcher")
			if err := watcher.Run(ctx); err != nil {
				logger.WithError(err).Error("access rules watcher stopped")
			}
		}()
	}
	return rules, nil
}

// startStatsJob refreshes the session and pool gauges and prunes dead replicas on schedule
func startStatsJob(schedule string, conn *postgres.ConnectionManager, sessions *session.Registry, metrics *observability.Metrics, logger logrus.FieldLogger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if n, err := sessions.ActiveUsers(ctx); err != nil {
			logger.WithError(err).Warn("failed to count active users")
		} else {
			metrics.SetActiveUsers(n)
		}
		metrics.UpdateDBStats(conn.Primary().Stats())

		if removed := conn.RemoveUnhealthyReplicas(ctx); removed > 0 {
			logger.WithField("removed", removed).Warn("unhealthy replicas removed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule stats job %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}
