package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-bank-ledger/internal/api"
	"github.com/JhonesBR/go-bank-ledger/internal/config"
	"github.com/JhonesBR/go-bank-ledger/internal/db"
	"github.com/JhonesBR/go-bank-ledger/internal/events"
	"github.com/JhonesBR/go-bank-ledger/internal/events/kafka"
	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
	"github.com/JhonesBR/go-bank-ledger/internal/lock"
	"github.com/JhonesBR/go-bank-ledger/internal/logger"
	"github.com/JhonesBR/go-bank-ledger/internal/profile"
	"github.com/JhonesBR/go-bank-ledger/internal/receipt"
	"github.com/JhonesBR/go-bank-ledger/internal/storage/memory"
	"github.com/JhonesBR/go-bank-ledger/internal/storage/postgres"
	"github.com/JhonesBR/go-bank-ledger/internal/telemetry"
)

type store interface {
	ledger.Store
	profile.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	if !cfg.EnvFileLoaded {
		zl.Warn("could not load .env file, using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName, zl)
	if err != nil {
		zl.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			zl.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	// Storage
	var st store
	if cfg.DatabaseURL != "" {
		pool, err := db.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			zl.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		pg := postgres.NewStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			zl.Fatal("failed to create schema", zap.Error(err))
		}
		st = pg
	} else {
		zl.Warn("DATABASE_URL not set, using in-memory store")
		st = memory.NewStore()
	}

	// Account locks
	var locker ledger.Locker = lock.NewLocal()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			zl.Fatal("failed to connect to redis", zap.Error(err))
		}

		opts := lock.DefaultRedisOptions()
		if opts.Expiry < 2*cfg.PostingTimeout {
			opts.Expiry = 2 * cfg.PostingTimeout
		}
		locker = lock.NewRedis(client, opts, zl)
	}

	// Events
	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, zl)
		defer kp.Close()
		publisher = kp
	}

	engine := ledger.NewEngine(st, locker,
		ledger.WithReceiptEmitter(receipt.NewEmitter(receipt.NewFileStorage(cfg.ReceiptDir), publisher, zl)),
		ledger.WithLogger(zl),
		ledger.WithTimeout(cfg.PostingTimeout),
	)

	app := api.NewApp(api.Dependencies{
		Engine:      engine,
		Ledger:      st,
		Users:       st,
		Logger:      zl,
		CORSOrigins: cfg.CORSOrigins,
	})

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zl.Error("shutdown failed", zap.Error(err))
		}
	}()

	zl.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := app.Listen(cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
		zl.Fatal("server stopped", zap.Error(err))
	}
}
