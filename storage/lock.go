package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PlanLocker serializes schedule writes for one plan. Lock blocks until the
// lock is held or ctx is done, in which case it returns ErrLocked.
type PlanLocker interface {
	Lock(ctx context.Context, planID string) (unlock func(), err error)
}

// LocalLocker is an in-process keyed mutex.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*planLock
}

type planLock struct {
	held chan struct{}
	refs int
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*planLock)}
}

// Lock acquires the lock for planID.
func (l *LocalLocker) Lock(ctx context.Context, planID string) (func(), error) {
	l.mu.Lock()
	pl, ok := l.locks[planID]
	if !ok {
		pl = &planLock{held: make(chan struct{}, 1)}
		l.locks[planID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	select {
	case pl.held <- struct{}{}:
	case <-ctx.Done():
		l.release(planID, pl)
		return nil, fmt.Errorf("%w: %v", ErrLocked, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-pl.held
			l.release(planID, pl)
		})
	}, nil
}

func (l *LocalLocker) release(planID string, pl *planLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, planID)
	}
}

// unlockScript deletes the lock key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a PlanLocker shared by every instance using the same Redis.
// Locks expire after ttl so a crashed holder cannot block a plan forever.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

// RedisLockerOption configures a RedisLocker.
type RedisLockerOption func(*RedisLocker)

// WithRetryInterval sets how often a blocked Lock polls.
func WithRetryInterval(d time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		l.retry = d
	}
}

// WithLockLogger sets the logger.
func WithLockLogger(logger *slog.Logger) RedisLockerOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(client *redis.Client, ttl time.Duration, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  250 * time.Millisecond,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func lockKey(planID string) string {
	return "skitrip:lock:plan:" + planID
}

// Lock acquires the lock for planID with SET NX PX.
func (l *RedisLocker) Lock(ctx context.Context, planID string) (func(), error) {
	key := lockKey(planID)
	token := uuid.New().String()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrLocked, ctx.Err())
			}
			return nil, fmt.Errorf("acquire plan lock: %w", err)
		}
		if ok {
			return l.unlockFunc(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLocked, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) unlockFunc(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn("Failed to release plan lock", "key", key, "error", err)
			}
		})
	}
}
