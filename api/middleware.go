package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const requestIDHeader = "X-Request-ID"

// RequestLoggingMiddleware tags every request with an id and logs one line once it completes.
// Lookups of a scan carry the task id so a task can be followed through the logs.
func RequestLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID, _ = generateUUID()
		}
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		attrs := []any{
			"request_id", requestID,
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status_code", c.Writer.Status(),
			"latency_ms", float64(time.Since(start)) / float64(time.Millisecond),
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, "task_id", id)
		}
		logger.Log(c.Request.Context(), levelForStatus(c.Writer.Status()), "request completed", attrs...)
	}
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// AuthMiddleware requires "Authorization: Bearer <key>" matching expectedKey.
func AuthMiddleware(expectedKey string, logger *slog.Logger) gin.HandlerFunc {
	expected := []byte(expectedKey)
	return func(c *gin.Context) {
		token, reason := bearerToken(c.GetHeader("Authorization"))
		if reason == "" && subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			reason = "invalid api key"
		}
		if reason != "" {
			logger.Warn("request rejected", "reason", reason, "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header value.
// A non-empty reason explains why the header is unusable.
func bearerToken(header string) (token, reason string) {
	if header == "" {
		return "", "missing authorization header"
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", "unsupported authorization scheme"
	}
	return strings.TrimSpace(header[len(prefix):]), ""
}

// Limiter counts hits per key inside a fixed window.
type Limiter interface {
	// Hit records one request for key and returns the count within the current window.
	Hit(ctx context.Context, key string) (int64, error)
}

// RedisLimiter is a fixed-window counter shared by every API replica using the same Redis.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, window: window}
}

// Hit increments the counter for key and arms its expiry.
func (l *RedisLimiter) Hit(ctx context.Context, key string) (int64, error) {
	redisKey := "portsight:ratelimit:" + key
	pipe := l.client.TxPipeline()
	counter := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return counter.Val(), nil
}

// MemoryLimiter is a fixed-window counter local to this process.
type MemoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	count   int64
	resetAt time.Time
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{window: window, now: time.Now, buckets: make(map[string]*bucket)}
}

// Hit increments the counter for key, starting a new window once the previous one elapsed.
func (l *MemoryLimiter) Hit(_ context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		if len(l.buckets) > 4096 {
			l.pruneLocked(now)
		}
		b = &bucket{resetAt: now.Add(l.window)}
		l.buckets[key] = b
	}
	b.count++
	return b.count, nil
}

func (l *MemoryLimiter) pruneLocked(now time.Time) {
	for k, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, k)
		}
	}
}

// RateLimitMiddleware caps API requests per client IP. Scan traffic itself is never throttled.
func RateLimitMiddleware(limiter Limiter, limit int64, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := limiter.Hit(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Error("rate limiter error", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > limit {
			logger.Warn("rate limit exceeded", "client_ip", c.ClientIP(), "count", count)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware sets response headers shared by every route.
// Scan results describe live hosts and must not be cached.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Cache-Control", "no-store")
		// swagger UI needs inline styles and scripts
		h.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'")
		c.Next()
	}
}
