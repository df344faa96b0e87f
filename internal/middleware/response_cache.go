package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/clipstream/backend/internal/cache"
	"github.com/zfogg/clipstream/backend/internal/logger"
	"go.uber.org/zap"
)

// ResponseCacheMiddleware caches successful GET responses in Redis with the
// given TTL. Cache key is response:{path}:{query}:{user_id}, so authenticated
// callers never see each other's payloads. Adds an X-Cache: HIT/MISS header.
func ResponseCacheMiddleware(ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		redisClient := cache.GetRedisClient()
		if redisClient == nil {
			c.Next()
			return
		}

		userID := c.GetString("user_id")
		cacheKey := responseCacheKey(c.Request.URL.Path, c.Request.URL.RawQuery, userID)
		ctx := c.Request.Context()

		if cachedData, err := redisClient.Get(ctx, cacheKey); err == nil {
			RecordCacheHit("response_cache")
			c.Header("X-Cache", "HIT")
			c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(ttl.Seconds())))
			c.Data(http.StatusOK, "application/json", []byte(cachedData))
			c.Abort()
			return
		}

		RecordCacheMiss("response_cache")

		writer := &cachedResponseWriter{
			ResponseWriter: c.Writer,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}
		c.Writer = writer

		c.Header("X-Cache", "MISS")
		c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(ttl.Seconds())))

		c.Next()

		if writer.statusCode >= 200 && writer.statusCode < 300 && writer.body.Len() > 0 {
			if err := redisClient.SetEx(ctx, cacheKey, writer.body.String(), ttl); err != nil {
				logger.Log.Debug("Failed to write response to cache",
					zap.String("key", cacheKey),
					zap.Error(err),
				)
			}
		}
	}
}

// InvalidateResponseCache drops cached responses whose path matches the prefix.
// Called after writes that change catalog listings.
func InvalidateResponseCache(pathPrefix string) {
	redisClient := cache.GetRedisClient()
	if redisClient == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	keys, err := redisClient.Keys(ctx, fmt.Sprintf("response:%s*", pathPrefix))
	if err != nil || len(keys) == 0 {
		return
	}
	if err := redisClient.Del(ctx, keys...); err != nil {
		logger.Log.Debug("Failed to invalidate response cache",
			zap.String("prefix", pathPrefix),
			zap.Error(err),
		)
	}
}

// responseCacheKey creates a cache key from request path, query params, and user ID
func responseCacheKey(path, query, userID string) string {
	key := fmt.Sprintf("response:%s", path)
	if query != "" {
		key = fmt.Sprintf("%s:%s", key, query)
	}
	if userID != "" {
		key = fmt.Sprintf("%s:%s", key, userID)
	}
	return key
}

// cachedResponseWriter buffers the response body so it can be stored in Redis
type cachedResponseWriter struct {
	gin.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (w *cachedResponseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *cachedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
