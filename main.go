package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rameshbgm/belgaum-today-sub000/config"
	"github.com/rameshbgm/belgaum-today-sub000/internal/database"
	"github.com/rameshbgm/belgaum-today-sub000/internal/fetcher"
	"github.com/rameshbgm/belgaum-today-sub000/internal/handler"
	"github.com/rameshbgm/belgaum-today-sub000/internal/llm"
	"github.com/rameshbgm/belgaum-today-sub000/internal/logger"
	"github.com/rameshbgm/belgaum-today-sub000/internal/scheduler"
	"github.com/rameshbgm/belgaum-today-sub000/internal/service"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// 初始化数据库
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return err
	}

	ctx := context.Background()

	// 初始化订阅源
	registry := service.NewFeedRegistry(db, log)
	if n, err := registry.Seed(ctx, cfg.Ingestion.FeedsFile); err != nil {
		log.Warn("seed feeds", zap.Error(err))
	} else if n > 0 {
		log.Info("seeded feeds", zap.Int("count", n))
	}

	// 初始化服务
	strategies, err := fetcher.StrategiesFromConfig(cfg.Ingestion, &http.Client{})
	if err != nil {
		return err
	}
	feedFetcher := fetcher.New(strategies, cfg.Ingestion.FetchTimeout, log)
	runs := service.NewRunLogger(db, log)
	ingestion := service.NewIngestionService(db, registry, feedFetcher, runs, cfg.Ingestion.MaxConcurrentFeeds, log)

	resolver := llm.NewResolver(db, cfg.LLM)
	analyzer := service.NewAnalyzer(resolver, cfg.Trending.ModelTimeout, cfg.Trending.MaxAttempts, log)
	calls := service.NewCallLogger(db)
	trending := service.NewTrendingService(db, registry, analyzer, calls, cfg.Trending, log)

	if cfg.Server.TriggerSecret == "" {
		log.Warn("trigger secret is empty, manual triggers are disabled")
	}

	// 启动定时任务
	sched := scheduler.NewScheduler(ingestion, trending, cfg.Ingestion.Cron, cfg.Trending.Cron, log)
	if err := sched.Start(); err != nil {
		return err
	}

	// 初始化Gin
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())

	// 注册路由
	h := handler.NewHandler(handler.Deps{
		Registry:  registry,
		Runs:      runs,
		Calls:     calls,
		Status:    service.NewStatusService(db),
		Ingestion: ingestion,
		Trending:  trending,
		Secret:    cfg.Server.TriggerSecret,
		Log:       log,
	})
	h.SetScheduler(sched)
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sched.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return serveErr
}
