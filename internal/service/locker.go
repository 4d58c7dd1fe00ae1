package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
)

const localLockStripes = 64

// Locker serializes work on a set of keys. Lock blocks until every key is
// held and returns a function that releases them.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

func bookingKey(id int64) string  { return fmt.Sprintf("booking:%d", id) }
func customerKey(id int64) string { return fmt.Sprintf("customer:%d", id) }
func driverKey(id int64) string   { return fmt.Sprintf("driver:%d", id) }

// LocalLocker is a Locker for a single process. Keys hash onto a fixed set of
// stripes; stripes are always taken in ascending order.
type LocalLocker struct {
	stripes [localLockStripes]chan struct{}
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	l := &LocalLocker{}
	for i := range l.stripes {
		l.stripes[i] = make(chan struct{}, 1)
	}
	return l
}

// Lock acquires the stripes covering keys, giving up if ctx ends first.
func (l *LocalLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	idx := l.stripeIndexes(keys)
	held := 0
	release := func() {
		for i := held - 1; i >= 0; i-- {
			<-l.stripes[idx[i]]
		}
	}

	for _, i := range idx {
		select {
		case l.stripes[i] <- struct{}{}:
			held++
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func (l *LocalLocker) stripeIndexes(keys []string) []int {
	seen := make(map[int]struct{}, len(keys))
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		h := fnv.New32a()
		_, _ = h.Write([]byte(k))
		i := int(h.Sum32() % localLockStripes)
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}
