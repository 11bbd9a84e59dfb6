package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/buildhub-payments/internal/budget"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/dashboard"
	"github.com/joseph-ayodele/buildhub-payments/internal/export"
	"github.com/joseph-ayodele/buildhub-payments/internal/gateway"
	"github.com/joseph-ayodele/buildhub-payments/internal/notify"
	"github.com/joseph-ayodele/buildhub-payments/internal/payments"
	"github.com/joseph-ayodele/buildhub-payments/internal/projects"
	"github.com/joseph-ayodele/buildhub-payments/internal/receipts"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository"
	"github.com/joseph-ayodele/buildhub-payments/internal/server"
	"github.com/joseph-ayodele/buildhub-payments/internal/storage"
)

// app holds the wired object graph for one process.
type app struct {
	db         *repository.DB
	dispatcher *notify.Dispatcher
	aggregator *dashboard.Aggregator
	exporter   *export.Service
	server     *server.Server
	logger     *slog.Logger
}

func openDB(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repository.DB, error) {
	logger.Info("connecting to database", "driver", cfg.Database.Driver)
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	logger.Info("successfully connected to database")
	return db, nil
}

func newResolver(db *repository.DB, cfg *common.Config, logger *slog.Logger) *projects.Resolver {
	legacy := repository.NewLegacyProjectRepository(db, logger)
	return projects.NewResolver(projects.DefaultSources(legacy), logger, projects.WithStrict(cfg.Resolver.Strict))
}

func newFileStore(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (storage.FileStore, error) {
	switch cfg.Backend {
	case "minio":
		store, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure receipt bucket: %w", err)
		}
		return store, nil
	case "", "local":
		return storage.NewLocalStore(cfg.LocalDir, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func newSender(cfg common.NotifyConfig, logger *slog.Logger) notify.Sender {
	if cfg.Backend == "webhook" {
		return notify.NewWebhookSender(cfg.WebhookURL, cfg.Timeout, cfg.MaxRetries, logger)
	}
	return notify.NewLogSender(logger)
}

func newGateway(cfg common.GatewayConfig, logger *slog.Logger) gateway.Gateway {
	if cfg.Backend == "http" {
		return gateway.NewHTTPGateway(cfg.BaseURL, cfg.APIKey, cfg.Timeout, logger)
	}
	return gateway.NewNoopGateway(logger)
}

// buildApp wires repositories, services and the HTTP server from cfg.
func buildApp(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*app, error) {
	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, cfg.Database.MigrateLegacy); err != nil {
			db.Close()
			return nil, err
		}
	}

	files, err := newFileStore(ctx, cfg.Storage, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	dispatcher := notify.NewDispatcher(newSender(cfg.Notify, logger), logger,
		notify.WithWorkers(cfg.Notify.Workers),
		notify.WithQueueSize(cfg.Notify.QueueSize),
		notify.WithSendTimeout(cfg.Notify.Timeout),
	)

	resolver := newResolver(db, cfg, logger)
	store := repository.NewRequestStore(db, logger)
	svc := payments.NewService(store, resolver, newGateway(cfg.Gateway, logger), dispatcher, logger,
		payments.WithMaxSinglePayment(cfg.Payments.MaxSinglePayment),
		payments.WithStageShareGuard(cfg.Payments.EnforceStageShare),
	)
	aggregator := dashboard.NewAggregator(store, resolver, cfg.Payments.OverdueAfter, logger)
	exporter := export.NewService(aggregator, logger)

	srv := server.New(server.Deps{
		DB:             db,
		Payments:       svc,
		Receipts:       receipts.NewWorkflow(svc, files, cfg.Storage.MaxFileSize, logger),
		Dashboard:      aggregator,
		Budget:         budget.NewReconciler(store, resolver, logger),
		Export:         exporter,
		Audit:          repository.NewAuditRepository(db, logger),
		Resolver:       resolver,
		Auth:           cfg.Auth,
		MaxUploadBytes: 8 * cfg.Storage.MaxFileSize,
		Logger:         logger,
	})

	return &app{
		db:         db,
		dispatcher: dispatcher,
		aggregator: aggregator,
		exporter:   exporter,
		server:     srv,
		logger:     logger,
	}, nil
}

// close drains pending notifications before the database goes away.
func (a *app) close(ctx context.Context) {
	a.dispatcher.Shutdown(ctx)
	a.db.Close()
}
