package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// Window is the fixed accounting window; limits are requests per minute.
const Window = time.Minute

// Limiter is a thin wrapper around github.com/vnmchuo/ratelimiter
type Limiter struct {
	store extratelimit.Limiter
}

func NewLimiter(rdb *redis.Client, requestsPerMinute int64) *Limiter {
	store := extratelimit.NewRedisStore(rdb,
		extratelimit.WithLimit(int(requestsPerMinute)),
		extratelimit.WithWindow(Window),
	)
	return &Limiter{store: store}
}

func NewTestLimiter(store extratelimit.Limiter) *Limiter {
	return &Limiter{store: store}
}

func key(userID string) string {
	return fmt.Sprintf("ratelimit:user:%s", userID)
}

// Allow consumes one request from the user's budget.
func (l *Limiter) Allow(ctx context.Context, userID string) (bool, error) {
	res, err := l.store.Allow(ctx, key(userID))
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
