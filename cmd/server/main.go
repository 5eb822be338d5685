// Package main runs the community portal HTTP server: feed sync, polls and push subscriptions.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/civic-connect/portal/config"
	"github.com/civic-connect/portal/internal/auth"
	"github.com/civic-connect/portal/internal/feed"
	"github.com/civic-connect/portal/internal/middleware"
	"github.com/civic-connect/portal/internal/models"
	"github.com/civic-connect/portal/internal/polls"
	"github.com/civic-connect/portal/internal/realtime"
	"github.com/civic-connect/portal/pkg/database"
	"github.com/civic-connect/portal/pkg/redis"
	"github.com/civic-connect/portal/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	users, feedStore, pollStore, closeStore := openStores(ctx, cfg.Database, logger)
	defer closeStore()

	var hub *realtime.Hub
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
	} else {
		logger.Info("REDIS_ADDR not set, push events stay on this instance")
		hub = realtime.NewHub(logger, nil, nil)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(users, middleware.UserID, logger)

	pollService := polls.NewService(pollStore, logger)
	pollHandler := polls.NewHandler(pollService, hub, logger)

	feedService := feed.NewService(feedStore, pollService, feed.Options{
		DefaultLimit: cfg.Feed.Limit,
		MaxLimit:     cfg.Feed.MaxLimit,
		TimeFormat:   cfg.Feed.TimeFormat,
		Location:     cfg.Feed.Location(),
	}, logger)
	feedHandler := feed.NewHandler(feedService, hub, logger)

	validateToken := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}
	replay := func(ctx context.Context, cursor int64) (interface{}, error) {
		return feedService.PollNew(ctx, cursor)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger, "/health", "/metrics", "/feed/messages"))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/me", authHandler.Me)

		// Feed
		api.GET("/feed", feedHandler.Load)
		api.GET("/feed/messages", middleware.RateLimit("feed_poll", cfg.Feed.PollRPS, cfg.Feed.PollBurst), feedHandler.Poll)
		api.POST("/feed/messages", feedHandler.Post)

		// Polls
		api.GET("/polls/active", pollHandler.Active)
		api.GET("/polls/:id/results", pollHandler.Results)
		api.POST("/polls/:id/votes", pollHandler.Vote)
		api.POST("/polls", middleware.RequireRole(models.RoleAdmin), pollHandler.Create)
		api.POST("/polls/:id/open", middleware.RequireRole(models.RoleAdmin), pollHandler.Open)
		api.POST("/polls/:id/close", middleware.RequireRole(models.RoleAdmin), pollHandler.Close)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, validateToken, replay))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("db_driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// openStores connects the configured backend, runs migrations and returns the account, feed and poll stores.
func openStores(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (auth.UserReader, feed.Store, polls.Store, func()) {
	if cfg.Driver == config.DriverSQLite {
		db, err := database.NewSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		if err := database.MigrateSQLite(ctx, db); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		return auth.NewSQLiteRepository(db), feed.NewSQLiteRepository(db), polls.NewSQLiteRepository(db), func() { _ = db.Close() }
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DSN(), int32(cfg.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	return auth.NewRepository(pool), feed.NewRepository(pool), polls.NewRepository(pool), pool.Close
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
