package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// NonceLocker serializes the nonce-read/sign/submit window for one signing credential.
type NonceLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type localNonceLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalNonceLocker serializes within this process only.
func NewLocalNonceLocker() NonceLocker {
	return &localNonceLocker{slots: map[string]chan struct{}{}}
}

func (l *localNonceLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisNonceLocker struct {
	rdb   *redis.Client
	ttl   time.Duration
	retry time.Duration
}

// NewRedisNonceLocker serializes across every replica sharing rdb. ttl bounds how long a crashed
// holder can block others.
func NewRedisNonceLocker(rdb *redis.Client, ttl time.Duration) NonceLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &redisNonceLocker{rdb: rdb, ttl: ttl, retry: 50 * time.Millisecond}
}

func (l *redisNonceLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	key = "nftminter:nonce:" + key
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("nonce lock %s: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// the caller's context may already be done
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
				})
			}, nil
		}
		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Join(errors.New("nonce lock wait aborted"), ctx.Err())
		case <-t.C:
		}
	}
}
