package redis

import (
	"context"
	"time"
)

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

// ResponseStoreInterface defines the interface for cached idempotent responses.
type ResponseStoreInterface interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface     = (*LockStore)(nil)
	_ ResponseStoreInterface = (*ResponseStore)(nil)
)
