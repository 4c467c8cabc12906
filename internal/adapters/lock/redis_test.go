package lock

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

func TestLockKey(t *testing.T) {
	assert.Equal(t, "timer:lock:12:3", lockKey(12, 3))
}

func TestLockReportsUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisLocker(client, time.Second, time.Second, logger.NewNop())
	_, err := l.Lock(context.Background(), 1, 1)
	require.Error(t, err)
	assert.True(t, entities.IsPersistence(err))
}

// The remaining tests need a live server, e.g. REDIS_ADDR=localhost:6379.
func liveLocker(t *testing.T, wait time.Duration) *RedisLocker {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return NewRedisLocker(client, 5*time.Second, wait, logger.NewNop())
}

func TestRedisLockerExcludes(t *testing.T) {
	l := liveLocker(t, 2*time.Second)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		holders int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, 900, 1)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			holders++
			maxSeen = max(maxSeen, holders)
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestRedisLockerGivesUp(t *testing.T) {
	l := liveLocker(t, 150*time.Millisecond)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, 901, 1)
	require.NoError(t, err)
	defer unlock()

	_, err = l.Lock(ctx, 901, 1)
	assert.ErrorIs(t, err, ErrBusy)

	other, err := l.Lock(ctx, 901, 2)
	require.NoError(t, err)
	other()
}
