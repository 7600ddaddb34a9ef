package telegram

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// chatLimiter keeps one token bucket per chat.
type chatLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[int64]*rate.Limiter
}

// newChatLimiter allows perMinute messages per chat with the given burst.
// perMinute <= 0 disables limiting.
func newChatLimiter(perMinute, burst int) *chatLimiter {
	if perMinute <= 0 {
		return &chatLimiter{limit: rate.Inf}
	}
	if burst <= 0 {
		burst = 1
	}
	return &chatLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		limiters: make(map[int64]*rate.Limiter),
	}
}

func (c *chatLimiter) Allow(chatID int64) bool {
	if c.limit == rate.Inf {
		return true
	}
	c.mu.Lock()
	l, ok := c.limiters[chatID]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[chatID] = l
	}
	c.mu.Unlock()
	return l.Allow()
}
