package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/caniclickit/internal/application/cache"
	appquota "github.com/bryanwahyu/caniclickit/internal/application/quota"
	appscans "github.com/bryanwahyu/caniclickit/internal/application/scans"
	"github.com/bryanwahyu/caniclickit/internal/config"
	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
	"github.com/bryanwahyu/caniclickit/internal/infra/db/memory"
	mysqlkv "github.com/bryanwahyu/caniclickit/internal/infra/db/mysql"
	"github.com/bryanwahyu/caniclickit/internal/infra/db/postgres"
	"github.com/bryanwahyu/caniclickit/internal/infra/db/sqlite"
	"github.com/bryanwahyu/caniclickit/internal/infra/db/sqlkv"
	"github.com/bryanwahyu/caniclickit/internal/infra/logging"
	"github.com/bryanwahyu/caniclickit/internal/infra/scanapi"
	"github.com/bryanwahyu/caniclickit/internal/infra/storage"
)

// store is a storage area that can also report its health.
type store interface {
	platform.Storage
	Check(ctx context.Context) error
}

// app holds what every subcommand needs: config, logger and both storage
// areas. close releases the database.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	sync   store
	local  store
	db     *sql.DB
}

// configPath resolves --config, then CONFIG_PATH, then ./config.yaml.
func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadOptional(configPath(cmd))
	if err != nil {
		return nil, fmt.Errorf("config load error: %w", err)
	}

	lc := logging.DefaultConfig()
	lc.Level = cfg.Logging.Level
	lc.Development = cfg.Logging.Development
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		lc.Level = "debug"
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.openStores(cmd.Context()); err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	var err error
	switch a.cfg.Storage.Driver {
	case "memory":
		a.sync, a.local = memory.New(), memory.New()
		return nil
	case "sqlite":
		a.db, err = sqlite.Open(ctx, a.cfg.Storage.Path)
		if err != nil {
			return err
		}
		a.sync, a.local = sqlite.NewStore(a.db, sqlkv.AreaSync), sqlite.NewStore(a.db, sqlkv.AreaLocal)
	case "postgres":
		a.db, err = postgres.Connect(ctx, a.cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("postgres connect error: %w", err)
		}
		if err := postgres.Migrate(ctx, a.db); err != nil {
			return errors.Join(err, a.db.Close())
		}
		a.sync, a.local = postgres.NewStore(a.db, sqlkv.AreaSync), postgres.NewStore(a.db, sqlkv.AreaLocal)
	case "mysql":
		a.db, err = mysqlkv.Connect(ctx, a.cfg.MySQLDSN())
		if err != nil {
			return fmt.Errorf("mysql connect error: %w", err)
		}
		if err := mysqlkv.Migrate(ctx, a.db); err != nil {
			return errors.Join(err, a.db.Close())
		}
		a.sync, a.local = mysqlkv.NewStore(a.db, sqlkv.AreaSync), mysqlkv.NewStore(a.db, sqlkv.AreaLocal)
	default:
		return fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
	}
	a.logger.Debug("storage opened", zap.String("driver", a.cfg.Storage.Driver))
	return nil
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *app) scanClient() *scanapi.Client {
	return scanapi.New(scanapi.Config{
		BaseURL:   a.cfg.Scan.APIBaseURL,
		APIKey:    a.cfg.Scan.APIKey,
		Timeout:   a.cfg.Scan.Timeout,
		Retries:   a.cfg.Scan.Retries,
		UserAgent: "caniclickit-coordinator/" + getVersion(),
	}, a.sync, a.logger.Named("scanapi"))
}

func (a *app) tracker() *appquota.Tracker {
	return appquota.NewTracker(a.local, nil)
}

// archive returns nil when archiving is off.
func (a *app) archive(ctx context.Context) (scans.Archive, error) {
	c := a.cfg.Archive
	switch c.Driver {
	case "", "none":
		return nil, nil
	case "minio":
		s, err := storage.New(ctx, c.Endpoint, c.Region, c.BucketName, c.AccessKey, c.SecretKey, c.UseSSL)
		if err != nil {
			return nil, fmt.Errorf("minio init error: %w", err)
		}
		return s, nil
	case "s3":
		s, err := storage.NewS3(ctx, c.Endpoint, c.Region, c.BucketName, c.AccessKey, c.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown archive driver %q", c.Driver)
}

// scanService wires the orchestrator. badge receives verdicts for tabs;
// observer may be nil.
func (a *app) scanService(ctx context.Context, tracker *appquota.Tracker, badge platform.Badge, observer appscans.Observer) (*appscans.Service, error) {
	archive, err := a.archive(ctx)
	if err != nil {
		return nil, err
	}
	svc := &appscans.Service{
		Scanner:  a.scanClient(),
		Cache:    cache.New(a.cfg.Cache.TTL, a.cfg.Cache.MaxEntries, nil),
		Quota:    tracker,
		Badge:    badge,
		Storage:  a.local,
		Archive:  archive,
		Logger:   a.logger.Named("scans"),
		Observer: observer,
	}
	// the client bounds each attempt, this bounds them together
	svc.ScanTimeout = a.cfg.Scan.Timeout*time.Duration(a.cfg.Scan.Retries+1) + time.Second
	return svc, nil
}
