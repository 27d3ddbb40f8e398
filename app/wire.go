// Package app wires the process environment into a vschallan.Service for the
// binaries under cmd/.
package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/invento-software-limited/Smart-Vat-Challan/config"
	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store/gormstore"
	"github.com/invento-software-limited/Smart-Vat-Challan/vschallan"
)

const redisConnectTimeout = 30 * time.Second

// Runtime is everything a binary needs after startup.
type Runtime struct {
	Settings config.Settings
	Logger   *logrus.Logger
	Repo     *gormstore.Store
	Secrets  *config.SecretBox
	Service  *vschallan.Service

	redis   *config.Redis
	closers []func()
}

// Close releases connections in reverse order of creation.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// Connect opens the database (running migrations unless skipped) and Redis.
// It does not require a vendor configuration, so operators can create one.
func Connect(ctx context.Context, settings config.Settings) (*Runtime, error) {
	rt := &Runtime{Settings: settings, Logger: config.GetLogger()}

	db, err := config.ConnectDatabase(ctx, config.LoadDatabaseSettings())
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		rt.closers = append(rt.closers, func() { _ = sqlDB.Close() })
	}
	if !settings.SkipMigrations {
		models.MigrateTable(db)
	} else {
		rt.Logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}
	rt.Repo = gormstore.New(db)

	if settings.SecretKey != "" {
		box, err := config.NewSecretBox(settings.SecretKey)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Secrets = box
	}

	redisCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()
	rdb, err := config.ConnectRedis(redisCtx)
	if err != nil {
		config.LogError(rt.Logger, "app", "Connect", "redis", nil, err)
		return rt, nil
	}
	rt.redis = rdb
	rt.closers = append(rt.closers, func() { _ = rdb.Close() })
	return rt, nil
}

// Build connects and constructs the service. Pub/Sub dispatch and the Redis
// cache and lock are used when available, otherwise the in-process variants.
func Build(ctx context.Context, settings config.Settings) (*Runtime, error) {
	rt, err := Connect(ctx, settings)
	if err != nil {
		return nil, err
	}

	opts := vschallan.Options{
		Repo:        rt.Repo,
		Logger:      rt.Logger,
		Secrets:     rt.Secrets,
		PhoneRegion: settings.PhoneRegion,
	}
	if rt.redis != nil {
		opts.Cache = vschallan.NewRedisReferenceCache(rt.redis.Client, settings.ReferenceCacheTTL)
		opts.Locker = vschallan.NewRedisLocker(rt.redis.Lock)
	} else {
		rt.Logger.WithFields(logrus.Fields{"field": "redis"}).Warn("redis unavailable; using in-process lock and no reference cache")
	}
	if settings.PubSubDispatch {
		dispatcher, err := vschallan.NewPubSubDispatcher(ctx, settings.SyncTopic, settings.CreateSyncTopic)
		if err != nil {
			rt.Close()
			return nil, err
		}
		opts.Dispatcher = dispatcher
		rt.closers = append(rt.closers, dispatcher.Stop)
	}

	svc, err := vschallan.New(ctx, opts)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}
