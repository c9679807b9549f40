package middleware

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the counter and starts the window on first use.
const fixedWindowScript = `
	local current = redis.call("INCR", KEYS[1])
	if current == 1 then
		redis.call("EXPIRE", KEYS[1], tonumber(ARGV[2]))
	end
	if current > tonumber(ARGV[1]) then
		return 0
	end
	return 1
`

type evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RateLimiter is a redis fixed-window counter shared by every process.
type RateLimiter struct {
	rdb    evaler
	limit  int
	window time.Duration
}

// NewRateLimiter returns nil when rdb is nil or limit is not positive; a nil
// limiter lets everything through.
func NewRateLimiter(rdb *redis.Client, limit int, window time.Duration) *RateLimiter {
	if rdb == nil || limit <= 0 {
		return nil
	}
	return &RateLimiter{rdb: rdb, limit: limit, window: window}
}

func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	result, err := l.rdb.Eval(ctx, fixedWindowScript, []string{key}, l.limit, int(l.window.Seconds())).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// MessageRateLimit caps how many messages one identity may post per window.
// Redis failures fail open.
func MessageRateLimit(l *RateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userId").(uint)
		if !ok || l == nil {
			return c.Next()
		}
		allowed, err := l.Allow(c.UserContext(), fmt.Sprintf("ratelimit:support:messages:%d", userID))
		if err != nil {
			log.Printf("[RATELIMIT] redis unavailable, allowing request: %v", err)
			return c.Next()
		}
		if !allowed {
			return JsonResponse(c, fiber.StatusTooManyRequests, false, "Too many messages, slow down!", nil)
		}
		return c.Next()
	}
}
