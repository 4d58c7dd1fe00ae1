package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi/internal/domain"
	"taxi/internal/repository/memory"
)

type fakeResolver struct {
	mu      sync.Mutex
	known   map[string]domain.Coordinates
	calls   atomic.Int32
	gate    chan struct{}
	current atomic.Int32
	peak    atomic.Int32
}

func (r *fakeResolver) Resolve(ctx context.Context, address string) (domain.Coordinates, bool) {
	r.calls.Add(1)
	n := r.current.Add(1)
	defer r.current.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return domain.Coordinates{}, false
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.known[address]
	return c, ok
}

func newDirectory(t *testing.T, resolver AddressResolver, users ...*domain.User) *DriverDirectory {
	t.Helper()
	log, _ := test.NewNullLogger()
	return NewDriverDirectory(memory.NewUserRepository(users...), resolver, 2, log)
}

var directoryUsers = []*domain.User{
	{ID: 1, Username: "sita", Role: domain.RoleCustomer, Address: "Thamel"},
	{ID: 3, Username: "hari", Name: "Hari Bahadur", Role: domain.RoleDriver, Address: "Thamel"},
	{ID: 4, Username: "gita", Role: domain.RoleDriver, Address: "Nowhere"},
	{ID: 5, Username: "bikash", Role: domain.RoleDriver, Address: "Patan"},
	{ID: 6, Username: "noaddr", Role: domain.RoleDriver},
}

func knownPlaces() map[string]domain.Coordinates {
	return map[string]domain.Coordinates{
		"Thamel": {Lat: 27.7154, Lon: 85.3123},
		"Patan":  {Lat: 27.6727, Lon: 85.3250},
	}
}

func TestDirectory_ListDriversExcludesOtherRoles(t *testing.T) {
	dir := newDirectory(t, &fakeResolver{known: knownPlaces()}, directoryUsers...)

	drivers, err := dir.ListDrivers(context.Background())
	require.NoError(t, err)

	require.Len(t, drivers, 4)
	assert.Equal(t, int64(3), drivers[0].ID)
}

func TestDirectory_PreloadOmitsUnresolvedDrivers(t *testing.T) {
	resolver := &fakeResolver{known: knownPlaces()}
	dir := newDirectory(t, resolver, directoryUsers...)
	assert.False(t, dir.Loaded())

	task := dir.Preload(context.Background())
	require.NoError(t, task.Err())

	assert.True(t, dir.Loaded())
	snap := dir.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, int64(3), snap[0].DriverID)
	assert.Equal(t, "Hari Bahadur", snap[0].Name)
	assert.Equal(t, int64(5), snap[1].DriverID)
	assert.Equal(t, "bikash", snap[1].Name)
	assert.Equal(t, int32(3), resolver.calls.Load(), "drivers without an address are not looked up")
}

func TestDirectory_PreloadBoundsConcurrency(t *testing.T) {
	var users []*domain.User
	for i := int64(1); i <= 12; i++ {
		users = append(users, &domain.User{ID: i, Username: "d", Role: domain.RoleDriver, Address: "Thamel"})
	}
	resolver := &fakeResolver{known: knownPlaces(), gate: make(chan struct{})}
	dir := newDirectory(t, resolver, users...)

	task := dir.Preload(context.Background())
	go func() {
		for i := 0; i < 12; i++ {
			resolver.gate <- struct{}{}
		}
	}()
	require.NoError(t, task.Err())

	assert.LessOrEqual(t, resolver.peak.Load(), int32(2))
	assert.Len(t, dir.Snapshot(), 12)
}

func TestDirectory_CancelledPreloadIsNotPublished(t *testing.T) {
	resolver := &fakeResolver{known: knownPlaces(), gate: make(chan struct{})}
	dir := newDirectory(t, resolver, directoryUsers...)

	task := dir.Preload(context.Background())
	task.Cancel()

	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled preload did not finish")
	}
	assert.Error(t, task.Err())
	assert.False(t, dir.Loaded())
	assert.Empty(t, dir.Snapshot())
}

func TestDirectory_NewPreloadSupersedesPending(t *testing.T) {
	resolver := &fakeResolver{known: knownPlaces(), gate: make(chan struct{})}
	dir := newDirectory(t, resolver, directoryUsers...)

	first := dir.Preload(context.Background())
	second := dir.Preload(context.Background())

	<-first.Done()
	assert.Error(t, first.Err())
	close(resolver.gate)
	require.NoError(t, second.Err())
	assert.Len(t, dir.Snapshot(), 2)
}

func TestDirectory_LocationsFallsBackToSyncLoad(t *testing.T) {
	resolver := &fakeResolver{known: knownPlaces()}
	dir := newDirectory(t, resolver, directoryUsers...)

	locs, err := dir.Locations(context.Background())
	require.NoError(t, err)
	assert.Len(t, locs, 2)
	assert.False(t, dir.Loaded(), "a fallback load does not become the snapshot")
}
