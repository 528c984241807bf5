package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"storefront/internal/api"
	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/session"
	"storefront/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	appLog, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		Output:   cfg.LogOutput,
		FilePath: cfg.LogFile,
	})
	if err != nil {
		log.Fatal(err)
	}

	kv, closeStore, err := openStore(cfg, appLog)
	if err != nil {
		appLog.Error("state store unavailable", slog.String("backend", cfg.StoreBackend), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()
	kv = storage.WithNamespace(kv, cfg.StoreNamespace)

	m := metrics.New()
	client := api.New(cfg.APIBaseURL, cfg.APITimeout, appLog)

	sessions := session.NewManager(client, storage.NewTokenStore(kv), session.Options{
		Logger:         appLog,
		Metrics:        m,
		RenewLead:      cfg.RenewLead,
		RenewFloor:     cfg.RenewFloor,
		ValidityMargin: cfg.ValidityMargin,
	})
	defer sessions.Close()
	client.SetTokenSource(sessions.AccessToken)

	if sessions.Restore() {
		appLog.Info("previous session restored")
	}

	items := cart.New(kv, appLog)
	flow := checkout.New(checkout.Deps{
		Store:     storage.NewCheckoutStore(kv),
		Session:   sessions,
		Cart:      items,
		Orders:    client,
		Addresses: client,
	}, checkout.Options{
		Logger:  appLog,
		Metrics: m,
		TTL:     cfg.CheckoutTTL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, unsubscribe := sessions.Subscribe(16)
	defer unsubscribe()
	go flow.WatchSession(ctx, events)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	handlers.Routes(r, handlers.Gateway{
		Sessions:  sessions,
		Cart:      items,
		Checkout:  flow,
		Addresses: client,
		Catalog:   client,
		Metrics:   m,
		Logger:    appLog,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		appLog.Info("gateway listening", slog.String("addr", cfg.ListenAddr), slog.String("api", cfg.APIBaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("gateway stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("gateway shutdown", slog.String("error", err.Error()))
	}
}

// openStore builds the KV backend named by STORE_BACKEND.
func openStore(cfg *config.Config, appLog *slog.Logger) (storage.KV, func(), error) {
	storeLog := logger.Component(appLog, "storage")

	switch cfg.StoreBackend {
	case config.StoreNone:
		return storage.NopKV{}, func() {}, nil

	case config.StoreMongo:
		client, err := database.Connect(cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(cfg.DBName)
		storeLog.Info("MongoDB connected", slog.String("db", db.Name()))
		if err := database.EnsureStateIndexes(db, storage.StateCollection, storeLog); err != nil {
			storeLog.Warn("state index warning", slog.String("error", err.Error()))
		}
		return storage.NewMongoKV(db, cfg.StoreRetention, storeLog), func() {
			_ = client.Disconnect(context.Background())
		}, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		storeLog.Info("Redis connected", slog.String("addr", cfg.RedisAddr))
		return storage.NewRedisKV(rdb, cfg.StoreRetention, storeLog), func() { _ = rdb.Close() }, nil

	default:
		return storage.NewMemoryKV(), func() {}, nil
	}
}
