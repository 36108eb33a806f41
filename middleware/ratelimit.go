package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"finwise/api/logger"
)

// RateLimit returns middleware enforcing a sliding-window limit per client.
// The window lives in Redis as a sorted set of request timestamps, so limits
// hold across process restarts and replicas. Authenticated requests are keyed
// by user id, everything else by client IP.
//
// Redis being unreachable fails open: rate limiting protects cost, not
// correctness, and must not take the API down with it.
func RateLimit(rdb *redis.Client, name string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", name, clientKey(c))
		now := time.Now()
		windowStart := now.Add(-window)

		pipe := rdb.TxPipeline()
		pipe.ZRemRangeByScore(c, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
		pipe.ZAdd(c, key, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
		count := pipe.ZCard(c, key)
		pipe.Expire(c, key, window)

		if _, err := pipe.Exec(c); err != nil {
			logger.Get().Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if count.Val() > int64(limit) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded, try again later"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func clientKey(c *gin.Context) string {
	if claims, ok := ClaimsFrom(c); ok {
		return claims.Sub
	}
	return c.ClientIP()
}
