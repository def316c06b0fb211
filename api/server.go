package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "portsight/docs"
	"portsight/logging"
)

const shutdownTimeout = 10 * time.Second

// Run initializes dependencies and serves the API until SIGINT or SIGTERM.
func Run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	logger := logging.Configure(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store   TaskStore
		limiter Limiter
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		store = NewRedisStore(redisClient, cfg.TaskTTL)
		limiter = NewRedisLimiter(redisClient, cfg.RateWindow)
		logger.Info("using redis task store", "redis_addr", cfg.RedisAddr)
	} else {
		store = NewMemoryStore(0, cfg.TaskTTL)
		limiter = NewMemoryLimiter(cfg.RateWindow)
		logger.Warn("REDIS_ADDR not set; tasks and rate limits are kept in process memory")
	}
	if cfg.APIKey == "" {
		logger.Warn("API_KEY not set; scan endpoints are unauthenticated")
	}

	workersCtx, cancelWorkers := context.WithCancel(context.Background())
	workers := StartWorkers(workersCtx, store, logger, cfg.APIWorkers, cfg.ScanWorkers)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(cfg, store, limiter, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting portsight API server", "addr", cfg.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		cancelWorkers()
		workers.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	cancelWorkers()
	workers.Wait()
	return err
}

// NewRouter builds the gin engine. A nil limiter or a non-positive RateLimit disables rate limiting.
func NewRouter(cfg Config, store TaskStore, limiter Limiter, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLoggingMiddleware(logger), SecurityHeadersMiddleware())

	router.GET("/healthz", healthHandler)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	if cfg.APIKey != "" {
		v1.Use(AuthMiddleware(cfg.APIKey, logger))
	}
	if limiter != nil && cfg.RateLimit > 0 {
		v1.Use(RateLimitMiddleware(limiter, cfg.RateLimit, logger))
	}

	NewServer(store, logger).RegisterRoutes(v1)
	return router
}
