package redis

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix      = "lock:"
	defaultLockTTL     = 10 * time.Second
	defaultLockWait    = 5 * time.Second
	lockRetryInterval  = 25 * time.Millisecond
	lockReleaseTimeout = 2 * time.Second
)

// ErrLockNotAcquired is returned when a lock is still held by someone else
// after the wait period.
var ErrLockNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another holder is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the key's TTL only while it still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewLockStore creates a new LockStore. ttl bounds how long a crashed holder
// can keep a key; a live holder refreshes its keys every ttl/3 until it
// releases them. wait bounds how long Lock retries a held key.
func NewLockStore(client *redis.Client, ttl, wait time.Duration) *LockStore {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &LockStore{client: client, ttl: ttl, wait: wait}
}

// Lock acquires every key, in sorted order so concurrent callers cannot
// deadlock, and returns a function releasing all of them. If any key cannot
// be acquired within the wait period, the keys already taken are released.
// Held keys are kept alive until the returned function is called.
func (s *LockStore) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = uniqueSorted(keys)
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()

	held := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := s.acquire(waitCtx, lockKeyPrefix+key, token); err != nil {
			s.release(held, token)
			return nil, err
		}
		held = append(held, lockKeyPrefix+key)
	}

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.refresh(refreshCtx, held, token)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopRefresh()
			wg.Wait()
			s.release(held, token)
		})
	}, nil
}

func (s *LockStore) release(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
	defer cancel()
	for _, key := range keys {
		_ = releaseScript.Run(ctx, s.client, []string{key}, token).Err()
	}
}

func (s *LockStore) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := s.client.SetNX(ctx, key, token, s.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ErrLockNotAcquired
			}
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ErrLockNotAcquired
		case <-ticker.C:
		}
	}
}

// refresh extends the TTL of keys until ctx is cancelled.
func (s *LockStore) refresh(ctx context.Context, keys []string, token string) {
	ticker := time.NewTicker(max(s.ttl/3, time.Millisecond))
	defer ticker.Stop()

	ttl := max(s.ttl.Milliseconds(), 1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, key := range keys {
			_ = refreshScript.Run(ctx, s.client, []string{key}, token, ttl).Err()
		}
	}
}

func uniqueSorted(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}
