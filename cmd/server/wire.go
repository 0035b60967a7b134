package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/auth"
	"go-pos-engine/internal/catalog"
	"go-pos-engine/internal/config"
	"go-pos-engine/internal/database"
	"go-pos-engine/internal/handlers"
	"go-pos-engine/internal/ledger"
	"go-pos-engine/internal/lock"
	"go-pos-engine/internal/notify"
	"go-pos-engine/internal/pricing"
	"go-pos-engine/internal/redisx"
	"go-pos-engine/internal/sales"
	"go-pos-engine/internal/store"
	"go-pos-engine/internal/store/memory"
)

// engine is everything built from one Config.
type engine struct {
	cfg       *config.Config
	log       *logrus.Logger
	db        *gorm.DB
	rdb       *redis.Client
	store     store.Store
	publisher notify.Publisher
	tokens    *auth.TokenIssuer
	recorder  *audit.Recorder
	handler   *handlers.Handler
}

// openStore resolves the storage endpoint once for the whole process.
func openStore(cfg *config.Config, log *logrus.Logger) (store.Store, *gorm.DB, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("using in-memory store, data is lost on exit")
		return memory.New(), nil, nil
	}
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, err
	}
	return database.NewRepository(db), db, nil
}

func buildEngine(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*engine, error) {
	st, db, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	e := &engine{cfg: cfg, log: log, db: db, store: st}

	var locker lock.Locker = lock.NewLocalLocker()
	rdb, err := redisx.New(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, sale locks stay in-process")
	} else if rdb != nil {
		e.rdb = rdb
		locker = lock.NewRedisLocker(rdb)
	}

	e.publisher = notify.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		e.publisher = notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix, 1024, log)
	}

	e.recorder = audit.NewRecorder(st, st, cfg.Engine.AuditPurgePhrase, log)
	resolver := pricing.NewResolver(st, log)
	ldg := ledger.New(st, st, cfg.Engine.ReleaseAttempts, log)
	coordinator := sales.NewCoordinator(st, resolver, ldg, e.recorder, locker, e.publisher, sales.Options{
		ReserveAttempts: cfg.Engine.ReserveAttempts,
		LockTTL:         cfg.Engine.SaleLockTTL,
	}, log)
	e.tokens = auth.NewTokenIssuer(cfg.JWT)

	e.handler = &handlers.Handler{
		Store:   st,
		Sales:   coordinator,
		Catalog: catalog.NewService(st, ldg, e.recorder, log),
		Pricing: resolver,
		Audit:   e.recorder,
		Auth:    auth.NewService(st, e.tokens, e.recorder, log),
		Log:     log,
	}
	return e, nil
}

func (e *engine) Close() {
	if err := e.publisher.Close(); err != nil {
		e.log.WithError(err).Warn("close publisher")
	}
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	if e.db != nil {
		if sqlDB, err := e.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
