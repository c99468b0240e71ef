// Package ratelimit provides a Redis-backed fixed-window rate limit for the
// admin API surface.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/checklanehq/checklane/internal/clock"
	"github.com/checklanehq/checklane/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Limiter struct {
	redis             *redis.Client
	log               *zap.Logger
	clock             clock.Clock
	requestsPerMinute int
	enabled           bool
}

type Params struct {
	fx.In

	Config config.Config
	Redis  *redis.Client `optional:"true"`
	Clock  clock.Clock
	Logger *zap.Logger
}

func NewLimiter(p Params) *Limiter {
	enabled := p.Config.RateLimit.Enabled && p.Redis != nil
	if p.Config.RateLimit.Enabled && p.Redis == nil {
		p.Logger.Warn("rate limiting enabled but no redis address configured, running without limits")
	}
	return &Limiter{
		redis:             p.Redis,
		log:               p.Logger.Named("ratelimit"),
		clock:             p.Clock,
		requestsPerMinute: p.Config.RateLimit.RequestsPerMinute,
		enabled:           enabled,
	}
}

// Allow counts the request against the caller's current one-minute window.
// A Redis failure fails open; refusing admin traffic over a cache outage
// would be worse than briefly losing the limit.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if !l.enabled {
		return true
	}

	window := l.clock.Now(ctx).Unix() / 60
	rkey := "ratelimit:" + key + ":" + strconv.FormatInt(window, 10)

	val, err := l.redis.Incr(ctx, rkey).Result()
	if err != nil {
		l.log.Warn("rate limit counter unavailable, allowing request", zap.Error(err))
		return true
	}
	if val == 1 {
		l.redis.Expire(ctx, rkey, 2*time.Minute)
	}
	return val <= int64(l.requestsPerMinute)
}

// Middleware limits by client IP.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.Request.Context(), c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"retry_after": 60,
			})
			return
		}
		c.Next()
	}
}

var Module = fx.Module("ratelimit",
	fx.Provide(NewLimiter),
)
