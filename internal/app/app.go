// Package app assembles the compilation pipeline from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/receipts-compiler/internal/access"
	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/events"
	"github.com/joseph-ayodele/receipts-compiler/internal/export"
	"github.com/joseph-ayodele/receipts-compiler/internal/fetch"
	"github.com/joseph-ayodele/receipts-compiler/internal/objectstore"
	"github.com/joseph-ayodele/receipts-compiler/internal/pipeline"
	"github.com/joseph-ayodele/receipts-compiler/internal/render"
	"github.com/joseph-ayodele/receipts-compiler/internal/repository"
	"github.com/joseph-ayodele/receipts-compiler/internal/resolver"
	"github.com/joseph-ayodele/receipts-compiler/internal/server"
)

// App owns every long-lived client of one process.
type App struct {
	Config     *common.Config
	Restricted *repository.DB
	Privileged *repository.DB
	Store      objectstore.Store
	Sessions   repository.SessionRepository
	Compiler   *pipeline.Compiler
	Publisher  events.Publisher
	logger     *slog.Logger
}

// New opens the datastores and object store and wires the pipeline.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	if err := a.openDatastores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	httpClient := &http.Client{}
	switch cfg.Storage.Backend {
	case "local":
		local, err := objectstore.NewLocalStore(cfg.Storage.LocalDir, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		httpClient.Transport = local.Transport()
		a.Store = local
	default:
		s3, err := objectstore.NewS3Store(objectstore.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Store = s3
	}

	a.Publisher = events.Noop{}
	if cfg.Events.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			logger.Warn("app.amqp_unavailable", "error", err)
		} else {
			a.Publisher = pub
		}
	}

	a.Sessions = repository.NewSessionRepository(a.Restricted, logger)
	gate := access.NewGate(
		a.Sessions,
		repository.NewProfileRepository(a.Restricted, logger),
		access.Datastores{Restricted: a.Restricted, Privileged: a.Privileged},
		logger,
	)
	fetcher := fetch.New(a.Store, cfg.Storage.ReceiptsBucket, logger,
		fetch.WithWorkers(cfg.Fetch.Workers),
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithMaxBytes(cfg.Fetch.MaxBytes),
		fetch.WithMaxReceipts(cfg.Fetch.MaxReceipts),
		fetch.WithURLTTL(cfg.Fetch.URLTTL),
		fetch.WithHTTPClient(httpClient),
	)
	persister := export.NewPersister(a.Store, render.NewPDFEncoder(logger), export.Config{
		Bucket:    cfg.Storage.ExportsBucket,
		HandleTTL: cfg.Compile.ExportTTL,
		Manifest:  cfg.Compile.Manifest,
	}, logger)

	a.Compiler = pipeline.NewCompiler(gate, resolver.New(logger), fetcher, persister, logger,
		pipeline.WithTimeout(cfg.Compile.Timeout),
		pipeline.WithPublisher(a.Publisher),
	)
	return a, nil
}

func (a *App) openDatastores(ctx context.Context) error {
	db := a.Config.Database
	if db.Driver == repository.DriverSQLite {
		local, err := repository.OpenLocal(ctx, db.DSN, a.logger)
		if err != nil {
			return fmt.Errorf("open local datastore: %w", err)
		}
		// sqlite has no roles; both capabilities share the file.
		a.Restricted, a.Privileged = local, local
		return nil
	}

	base := repository.Config{
		Driver:           db.Driver,
		MaxConns:         db.MaxConns,
		MinConns:         db.MinConns,
		MaxConnLifetime:  db.MaxConnLifetime,
		MaxConnIdleTime:  db.MaxConnIdleTime,
		DialTimeout:      db.DialTimeout,
		StatementTimeout: db.StatementTimeout,
	}
	restricted := base
	restricted.DSN = db.DSN
	restricted.ApplicationName = "receipts-compiler"
	var err error
	if a.Restricted, err = repository.Open(ctx, restricted, a.logger); err != nil {
		return fmt.Errorf("open restricted datastore: %w", err)
	}

	privileged := base
	privileged.DSN = db.PrivilegedDSN()
	privileged.ApplicationName = "receipts-compiler-service"
	if a.Privileged, err = repository.Open(ctx, privileged, a.logger); err != nil {
		return fmt.Errorf("open privileged datastore: %w", err)
	}
	return nil
}

// HealthChecks returns the probes served on /healthz.
func (a *App) HealthChecks() map[string]server.HealthCheck {
	return map[string]server.HealthCheck{
		"datastore": func(ctx context.Context) error {
			return repository.HealthCheck(ctx, a.Restricted, 2*time.Second, a.logger)
		},
		"privileged_datastore": func(ctx context.Context) error {
			return repository.HealthCheck(ctx, a.Privileged, 2*time.Second, a.logger)
		},
		"receipts_bucket": func(ctx context.Context) error {
			return a.Store.Ping(ctx, a.Config.Storage.ReceiptsBucket)
		},
		"exports_bucket": func(ctx context.Context) error {
			return a.Store.Ping(ctx, a.Config.Storage.ExportsBucket)
		},
	}
}

// Close releases everything New opened. It is safe on a partially built App.
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.logger.Warn("app.publisher_close_failed", "error", err)
		}
	}
	if a.Privileged != nil && a.Privileged != a.Restricted {
		repository.Close(a.Privileged, a.logger)
	}
	repository.Close(a.Restricted, a.logger)
}
