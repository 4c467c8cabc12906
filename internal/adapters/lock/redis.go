// Package lock provides timer locks shared between server instances.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

const (
	retryInterval  = 50 * time.Millisecond
	releaseTimeout = 2 * time.Second
)

// ErrBusy is returned when the lock could not be taken within the wait time.
var ErrBusy = entities.NewConflictError("timer_busy", "the timer is being changed by another request")

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLocker serialises timer operations across processes with SET NX keys.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	logger *logger.Logger
}

// NewRedisLocker wraps an existing client
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, log *logger.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		logger: log.WithComponent("timer_lock"),
	}
}

// Connect dials redis, retrying with backoff until it answers or attempts run out.
func Connect(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*RedisLocker, error) {
	const maxRetries = 5
	retryDelay := 500 * time.Millisecond

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = client.Ping(ctx).Err(); err == nil {
			log.Infow("Redis connected", "addr", cfg.Addr, "db", cfg.DB)
			return NewRedisLocker(client, cfg.LockTTL, cfg.LockWait, log), nil
		}
		log.Warnw("Redis connection failed", "addr", cfg.Addr, "attempt", attempt, "error", err)

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", maxRetries, err)
}

func lockKey(taskID, employeeID int) string {
	return fmt.Sprintf("timer:lock:%d:%d", taskID, employeeID)
}

// Lock blocks until the pair's key is acquired, the wait time passes or ctx
// ends. The key expires after the ttl even if the holder dies.
func (l *RedisLocker) Lock(ctx context.Context, taskID, employeeID int) (func(), error) {
	key := lockKey(taskID, employeeID)
	token := uuid.NewString()

	deadline := time.NewTimer(l.wait)
	defer deadline.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, entities.NewPersistenceError("acquire timer lock", err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			l.logger.Warnw("Timer lock wait exceeded", "key", key, "wait", l.wait)
			return nil, ErrBusy
		case <-time.After(retryInterval):
		}
	}
}

func (l *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		l.logger.Warnw("Failed to release timer lock", "key", key, "error", err)
	}
}

// Ping checks that redis answers
func (l *RedisLocker) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return l.client.Ping(ctx).Err()
}

// Close closes the redis connection
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
