package cmd

import (
	"context"
	"fmt"

	"lockcode-manager/core/config"
	"lockcode-manager/core/database"
	"lockcode-manager/core/devices"
	"lockcode-manager/core/lease"
	"lockcode-manager/core/logger"
	"lockcode-manager/core/reservations"
	"lockcode-manager/core/settings"
	"lockcode-manager/core/storage"
	"lockcode-manager/core/store"
	"lockcode-manager/feature/directory"
	"lockcode-manager/feature/failurelog"
	"lockcode-manager/feature/passcode"
	"lockcode-manager/feature/reconciliation"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *gorm.DB
	store  *store.Store
	redis  *redis.Client
	creds  *settings.Cache
	runner *reconciliation.Runner
	reaper *reconciliation.Reaper
	retry  *reconciliation.RetryWorker
	dir    devices.Directory
	sync   *directory.Service
}

// newApp loads configuration and builds every collaborator. The caller owns
// the returned app and must Close it.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(l)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	st := store.New(db)
	a := &app{cfg: cfg, log: l, db: db, store: st}
	if migrateOnBoot {
		if err := st.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	// Credentials come from the settings table first, then from static config.
	creds := settings.NewCache(settings.Chain{
		st,
		settings.Static{
			devices.SettingClientID:      cfg.Devices.ClientID,
			devices.SettingAccessToken:   cfg.Devices.AccessToken,
			reservations.SettingAPIToken: cfg.Reservations.ApiToken,
		},
	}, cfg.Sync.SettingsTTL())

	leaseOpts := lease.Options{TTL: cfg.Sync.LeaseTTL(), Wait: cfg.Sync.LeaseWait()}
	var locker lease.Locker
	if cfg.Redis.Enabled() {
		rdb, err := lease.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = rdb
		locker = lease.NewRedisLocker(rdb, leaseOpts)
		l.Info("Using redis lock leases", zap.String("address", cfg.Redis.Address))
	} else {
		locker = lease.NewLocalLocker(leaseOpts)
		l.Info("Using in-process lock leases")
	}

	failures, err := openFailureLog(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	dir := devices.NewClient(cfg.Devices, creds, l.Named("devices"))
	source := reservations.NewClient(cfg.Reservations, creds, l.Named("reservations"))
	updater := passcode.NewUpdater(st, dir, source, cfg.Devices, l.Named("passcode"))

	deps := reconciliation.Deps{
		Store:    st,
		Source:   source,
		Updater:  updater,
		Locker:   locker,
		Failures: failures,
		Logger:   l.Named("reconciliation"),
	}
	a.creds = creds
	a.dir = dir
	a.reaper = reconciliation.NewReaper(st, cfg.Sync.StuckTimeout(), deps.Logger)
	a.runner = reconciliation.NewRunner(deps, a.reaper, cfg.Reservations.MaxPages)
	a.retry = reconciliation.NewRetryWorker(deps)
	a.sync = directory.NewService(dir, st, l.Named("directory"))
	return a, nil
}

func openFailureLog(ctx context.Context, cfg *config.Config) (failurelog.Log, error) {
	var client storage.Client
	if cfg.Sync.FailureLogBackend == failurelog.BackendStorage {
		c, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		if err := storage.EnsureBucket(ctx, c, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket %s: %w", cfg.Storage.Bucket, err)
		}
		client = c
	}
	log, err := failurelog.Open(cfg.Sync.FailureLogBackend, cfg.Sync.FailureLogPath, client, cfg.Storage.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open failure log: %w", err)
	}
	return log, nil
}

// Close releases connections held by the app.
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if db, err := a.db.DB(); err == nil {
		_ = db.Close()
	}
	_ = a.log.Sync()
}
