package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"timetable-backend/config"
	"timetable-backend/internal/api"
	"timetable-backend/internal/db"
	"timetable-backend/internal/fetcher"
	"timetable-backend/internal/kv"
	applog "timetable-backend/internal/logger"
	"timetable-backend/internal/notification"
	"timetable-backend/internal/schedule"
	"timetable-backend/internal/search"
	"timetable-backend/internal/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := applog.New(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		gormDB  *gorm.DB
		kvStore kv.Store
	)
	if cfg.Database.DSN != "" {
		gormDB, err = db.Init(&cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to initialize database", zap.Error(err))
		}
		kvStore = kv.NewGormStore(gormDB)
	} else {
		logger.Warn("no database configured, caches live in memory only")
		kvStore = kv.NewMemoryStore()
	}

	entries := store.NewEntryStore(kvStore, logger)
	prefs := store.NewPreferences(kvStore, cfg.Sync.DaysMargin, logger)
	client := fetcher.NewClient(cfg.Upstream, logger)
	searchSvc := search.NewService(client, store.NewSearchCache(kvStore, cfg.Sync.SearchCacheSize, logger), logger)

	deps := schedule.Deps{Fetcher: client, Cache: entries, Margin: prefs}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() && gormDB != nil {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions, logger)
		pool.Start(ctx)
		deps.OnBanner = func(identity string, n schedule.Notification) {
			pool.Dispatch(notification.Banner{Identity: identity, Message: n.Message})
		}
	} else {
		logger.Info("push delivery disabled")
	}

	registry := schedule.NewRegistry(deps, cfg.Sync, logger)
	defer registry.Close()
	registry.WatchDefault(ctx, prefs)

	handler := api.NewHandler(api.Deps{
		Registry:         registry,
		Entries:          entries,
		Prefs:            prefs,
		Search:           searchSvc,
		Checker:          client,
		DB:               gormDB,
		WebPush:          webpushOptions,
		RecurringSubject: cfg.Sync.RecurringSubject,
		Log:              logger,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler, cfg.Server, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping services")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("server gracefully stopped")
}
