package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pilgrimage/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimit allows limit requests per client per window using a redis
// counter. Without a client, or when redis fails, requests pass.
func RateLimit(client *redis.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || limit <= 0 {
			c.Next()
			return
		}
		identity := c.ClientIP()
		if actor := Actor(c); actor.UserID > 0 {
			identity = fmt.Sprintf("user:%d", actor.UserID)
		}
		key := fmt.Sprintf("ratelimit:%s:%s", scope, identity)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 200*time.Millisecond)
		defer cancel()
		// INCR and EXPIRE NX go out in one MULTI so a counter never outlives its window.
		var incr *redis.IntCmd
		_, err := client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			incr = p.Incr(ctx, key)
			p.ExpireNX(ctx, key, window)
			return nil
		})
		if err != nil {
			utils.LogEvent(GetRequestID(c), "ratelimit", "redis_error", err.Error())
			c.Next()
			return
		}
		count := incr.Val()
		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "too many requests",
				"code":       "rate_limited",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}
