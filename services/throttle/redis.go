package throttlesvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/tuitionbook/core/user"
)

// RedisThrottler allows one action per key and period.
type RedisThrottler struct {
	client *redis.Client
	period time.Duration
	prefix string
}

var _ user.Throttler = (*RedisThrottler)(nil)

func NewRedisThrottler(client *redis.Client, period time.Duration) *RedisThrottler {
	return &RedisThrottler{client: client, period: period, prefix: "tuitionbook:throttle:"}
}

// Allow returns true if key was not used during the last period.
func (th *RedisThrottler) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := th.client.SetNX(ctx, th.prefix+key, time.Now().Unix(), th.period).Result()
	if err != nil {
		return false, errors.Wrap(err, "setting throttle key")
	}
	return ok, nil
}
