package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueSorted(t *testing.T) {
	in := []string{"driver:3", "booking:1", "customer:2", "booking:1", "driver:3"}

	got := uniqueSorted(in)

	assert.Equal(t, []string{"booking:1", "customer:2", "driver:3"}, got)
	assert.Equal(t, "driver:3", in[0], "input is left untouched")
}

func TestUniqueSorted_Empty(t *testing.T) {
	assert.Empty(t, uniqueSorted(nil))
}

func TestNewLockStore_Defaults(t *testing.T) {
	s := NewLockStore(nil, 0, -time.Second)

	assert.Equal(t, defaultLockTTL, s.ttl)
	assert.Equal(t, defaultLockWait, s.wait)

	s = NewLockStore(nil, time.Minute, time.Second)
	assert.Equal(t, time.Minute, s.ttl)
	assert.Equal(t, time.Second, s.wait)
}

// setupMiniredis starts an in-process Redis and a client connected to it.
func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestLockStore_AcquiresAllKeysWithOneToken(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewLockStore(client, time.Minute, time.Second)

	unlock, err := store.Lock(context.Background(), "driver:7", "booking:1", "customer:2", "booking:1")
	require.NoError(t, err)

	token, err := mr.Get("lock:booking:1")
	require.NoError(t, err)
	for _, key := range []string{"lock:customer:2", "lock:driver:7"} {
		got, err := mr.Get(key)
		require.NoError(t, err)
		assert.Equal(t, token, got, key)
	}
	assert.Equal(t, time.Minute, mr.TTL("lock:booking:1"))

	unlock()
	for _, key := range []string{"lock:booking:1", "lock:customer:2", "lock:driver:7"} {
		assert.False(t, mr.Exists(key), key)
	}

	unlock()
}

func TestLockStore_HeldKeyTimesOutAndReleasesTakenKeys(t *testing.T) {
	mr, client := setupMiniredis(t)
	require.NoError(t, mr.Set("lock:driver:7", "someone-else"))
	store := NewLockStore(client, time.Minute, 100*time.Millisecond)

	start := time.Now()
	unlock, err := store.Lock(context.Background(), "booking:1", "driver:7")

	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.Nil(t, unlock)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.False(t, mr.Exists("lock:booking:1"), "key taken before the failure is released")

	holder, err := mr.Get("lock:driver:7")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", holder)
}

func TestLockStore_RetriesUntilKeyIsFreed(t *testing.T) {
	mr, client := setupMiniredis(t)
	require.NoError(t, mr.Set("lock:booking:1", "someone-else"))
	store := NewLockStore(client, time.Minute, 2*time.Second)

	go func() {
		time.Sleep(100 * time.Millisecond)
		mr.Del("lock:booking:1")
	}()

	unlock, err := store.Lock(context.Background(), "booking:1")
	require.NoError(t, err)
	defer unlock()

	holder, err := mr.Get("lock:booking:1")
	require.NoError(t, err)
	assert.NotEqual(t, "someone-else", holder)
}

func TestLockStore_ReleaseLeavesForeignToken(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewLockStore(client, time.Minute, time.Second)

	unlock, err := store.Lock(context.Background(), "booking:1")
	require.NoError(t, err)

	// The key expired and another holder took it.
	require.NoError(t, mr.Set("lock:booking:1", "someone-else"))
	unlock()

	holder, err := mr.Get("lock:booking:1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", holder)
}

func TestLockStore_RefreshesHeldKeys(t *testing.T) {
	mr, client := setupMiniredis(t)
	ttl := 150 * time.Millisecond
	store := NewLockStore(client, ttl, time.Second)

	unlock, err := store.Lock(context.Background(), "booking:1")
	require.NoError(t, err)

	// Without refreshing, 200ms of Redis time would expire a 150ms key.
	mr.FastForward(100 * time.Millisecond)
	assert.Eventually(t, func() bool {
		return mr.TTL("lock:booking:1") == ttl
	}, time.Second, 10*time.Millisecond)
	mr.FastForward(100 * time.Millisecond)
	assert.True(t, mr.Exists("lock:booking:1"))

	unlock()
	assert.False(t, mr.Exists("lock:booking:1"))
}
