package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/autoflex/console/internal/autoflex"
	"github.com/autoflex/console/internal/config"
	"github.com/autoflex/console/internal/handler"
	"github.com/autoflex/console/internal/listview"
	"github.com/autoflex/console/internal/middleware"
	"github.com/autoflex/console/internal/session"
	"github.com/autoflex/console/internal/sse"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 开发环境从.env读取AUTOFLEX_*变量
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting autoflex-console",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("upstream", cfg.Upstream.BaseURL),
	)

	// 上游API客户端
	api := autoflex.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, zapLogger)

	// 会话存储
	store, err := initSessionStore(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to init session store", zap.Error(err))
	}
	defer store.Close()

	sessions := session.NewManager(api, store, cfg.Session.Secret, cfg.Session.TTL, zapLogger)

	// 页面控制器与SSE
	registry := listview.NewRegistry(cfg.UI.PageTTL, zapLogger)
	defer registry.Shutdown()
	hub := sse.NewHub(zapLogger)

	deps := &handler.Deps{
		API:      api,
		Sessions: sessions,
		Registry: registry,
		Hub:      hub,
		Cfg:      cfg,
		Logger:   zapLogger,
	}
	handlers := handler.NewHandlers(deps)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	if cfg.Metrics.Enabled {
		router.Use(middleware.Metrics())
	}

	handler.RegisterRoutes(router, handlers, deps)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

func initSessionStore(cfg *config.Config, logger *zap.Logger) (session.Store, error) {
	switch cfg.Session.Store {
	case "sqlite":
		return session.NewSQLiteStore(cfg.SQLite.Path, logger)
	case "redis", "":
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis不可用: %w", err)
		}
		return session.NewRedisStore(rdb, logger), nil
	default:
		return nil, fmt.Errorf("未知的会话存储类型: %s", cfg.Session.Store)
	}
}
