package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/meshfoundry/idhub/pkg/api"
	"github.com/meshfoundry/idhub/pkg/archive"
	"github.com/meshfoundry/idhub/pkg/audit"
	"github.com/meshfoundry/idhub/pkg/config"
	"github.com/meshfoundry/idhub/pkg/iam"
	"github.com/meshfoundry/idhub/pkg/identityproviders"
	"github.com/meshfoundry/idhub/pkg/maintenance"
	"github.com/meshfoundry/idhub/pkg/observability"
	"github.com/meshfoundry/idhub/pkg/sequence"
	"github.com/meshfoundry/idhub/pkg/serviceaccounts"
	"github.com/meshfoundry/idhub/pkg/store"
)

func main() {
	// Startup failures go through logrus before the structured logger exists
	boot := logrus.New()
	boot.SetFormatter(&logrus.JSONFormatter{})

	if err := run(boot); err != nil {
		boot.WithError(err).Fatal("idhub failed to start")
	}
}

func run(boot *logrus.Logger) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	var redisClient *redis.Client
	var allocator sequence.Allocator = sequence.NewPostgresAllocator(db, cfg.Database.SequenceName)
	if cfg.Redis.URL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		allocator = sequence.NewRedisAllocator(redisClient, cfg.Redis.SequenceKey)
	}

	persistence, err := store.NewCachingStore(store.NewPostgresStore(db), cfg.Provisioning.RoleCacheSize)
	if err != nil {
		return fmt.Errorf("failed to build store: %w", err)
	}

	gateway := iam.NewHTTPGateway(iam.HTTPConfig{
		BaseURL:      cfg.Gateway.BaseURL,
		TokenURL:     cfg.Gateway.TokenURL,
		ClientID:     cfg.Gateway.ClientID,
		ClientSecret: cfg.Gateway.ClientSecret,
		Timeout:      cfg.Gateway.Timeout,
	})

	settings := serviceaccounts.Settings{ClientIDPrefix: cfg.Provisioning.ClientIDPrefix}
	var rolesWatcher *config.TriggerRolesWatcher
	if cfg.Provisioning.TriggerRolesFile != "" {
		rolesWatcher, err = config.NewTriggerRolesWatcher(cfg.Provisioning.TriggerRolesFile, logger)
		if err != nil {
			return fmt.Errorf("failed to load trigger roles: %w", err)
		}
		settings.TriggerRolesFn = rolesWatcher.Roles
	}

	orchestrator := serviceaccounts.NewOrchestrator(gateway, persistence, allocator, settings, logger)
	reconciler := identityproviders.NewReconciler(gateway, persistence, identityproviders.DefaultCSVSettings(), logger)
	providers := identityproviders.NewService(persistence, logger)

	var archiver api.Archiver
	if cfg.Archive.Bucket != "" {
		archiver, err = archive.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			return fmt.Errorf("failed to build upload archiver: %w", err)
		}
	}

	var trail api.AuditRecorder
	var auditTrail *audit.Trail
	if cfg.Audit.SQLitePath != "" {
		auditTrail, err = audit.Open(cfg.Audit.SQLitePath, logger)
		if err != nil {
			return fmt.Errorf("failed to open audit trail: %w", err)
		}
		trail = auditTrail
	} else {
		trail = audit.NewLogTrail(logger)
	}

	var authenticator *api.Authenticator
	if cfg.Auth.Disabled {
		boot.Warn("API authentication is disabled")
		authenticator = api.NewDisabledAuthenticator(logger)
	} else {
		authenticator, err = api.NewAuthenticator(ctx, cfg.Auth.IssuerURL, cfg.Auth.ClientID, logger)
		if err != nil {
			return fmt.Errorf("failed to set up OIDC verification: %w", err)
		}
	}

	apiServer := api.NewServer(api.ServerOptions{
		Provisioner: orchestrator,
		Reconciler:  reconciler,
		Providers:   providers,
		Resolver:    persistence,
		Archiver:    archiver,
		Audit:       trail,
		Auth:        authenticator,
		Metrics:     metrics,
		Logger:      logger,
	})

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthSrv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	sweeper := maintenance.NewSweeper(persistence, metrics, cfg.Maintenance.StaleThreshold, boot)
	if err := sweeper.Start(cfg.Maintenance.Schedule); err != nil {
		return err
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, srv, healthSrv)
	shutdown.Register(func(context.Context) error {
		sweeper.Stop()
		return nil
	})
	if rolesWatcher != nil {
		shutdown.Register(func(context.Context) error { return rolesWatcher.Close() })
	}
	if auditTrail != nil {
		shutdown.Register(func(context.Context) error { return auditTrail.Close() })
	}
	if redisClient != nil {
		shutdown.Register(func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register(func(context.Context) error { return db.Close() })
	shutdown.Register(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("health server listening on %s", healthSrv.Addr)
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(shutdown.Wait)

	return g.Wait()
}
