package throttlesvc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisThrottler_Allow(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDRESS to run")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	th := NewRedisThrottler(client, 200*time.Millisecond)
	key := "test:" + uuid.New().String()

	ok, err := th.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = th.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "second call within the period must be throttled")

	ok, err = th.Allow(ctx, "other:"+key)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(300 * time.Millisecond)
	ok, err = th.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}
