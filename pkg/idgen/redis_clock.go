package idgen

import (
	"context"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

// Clock abstracts the time source for the ID generator.
type Clock interface {
	// Now returns the current timestamp in milliseconds.
	Now() int64
}

// SystemClock uses the local system time.
type SystemClock struct{}

func (s *SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

// RedisClock reads the shared Redis TIME so gateways agree on millisecond ticks.
type RedisClock struct {
	client  redis.Cmdable
	timeout time.Duration
}

// NewRedisClock returns a clock backed by Redis TIME.
func NewRedisClock(client redis.Cmdable) *RedisClock {
	return &RedisClock{
		client:  client,
		timeout: 500 * time.Millisecond,
	}
}

func (r *RedisClock) Now() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	res, err := r.client.Time(ctx).Result()
	if err != nil {
		// Snowflake absorbs the small step back when Redis returns.
		logger.Warnw("Redis clock unavailable, using system time", "error", err.Error())
		return time.Now().UnixMilli()
	}
	return res.UnixMilli()
}
