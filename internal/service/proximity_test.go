package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi/internal/domain"
	"taxi/internal/geo"
)

var kathmandu = domain.Coordinates{Lat: 27.7172, Lon: 85.3240}

type staticLocations []domain.DriverLocation

func (s staticLocations) Locations(context.Context) ([]domain.DriverLocation, error) {
	return s, nil
}

type failingClusterer struct{}

func (failingClusterer) Cluster([]domain.Coordinates, float64, int) ([]int, error) {
	return nil, errors.New("boom")
}

// shift moves c north and east by the given kilometres.
func shift(c domain.Coordinates, northKm, eastKm float64) domain.Coordinates {
	kmPerDeg := geo.EarthRadiusKm * math.Pi / 180
	return domain.Coordinates{
		Lat: c.Lat + northKm/kmPerDeg,
		Lon: c.Lon + eastKm/(kmPerDeg*math.Cos(c.Lat*math.Pi/180)),
	}
}

func driversAround(groups ...domain.Coordinates) staticLocations {
	var out staticLocations
	id := int64(1)
	for _, g := range groups {
		for i := 0; i < 5; i++ {
			p := shift(g, float64(i)*0.05, float64(i%2)*0.05)
			out = append(out, domain.DriverLocation{DriverID: id, Name: "driver", Lat: p.Lat, Lon: p.Lon})
			id++
		}
	}
	return out
}

func newEngine(src LocationSource, clusterer geo.Clusterer, cfg ProximityConfig) *ProximityEngine {
	log, _ := test.NewNullLogger()
	return NewProximityEngine(src, clusterer, cfg, log)
}

func TestClusterEpsKm(t *testing.T) {
	assert.InDelta(t, 1.3, ClusterEpsKm(12), 1e-9)
	assert.InDelta(t, 15.6, ClusterEpsKm(0), 1e-9)
	assert.InDelta(t, 0.2, ClusterEpsKm(200), 1e-9)
}

func TestFindNearby_FewDriversAreSingles(t *testing.T) {
	src := staticLocations{
		{DriverID: 1, Name: "near", Lat: shift(kathmandu, 0.5, 0).Lat, Lon: kathmandu.Lon},
		{DriverID: 2, Name: "nearest", Lat: kathmandu.Lat, Lon: kathmandu.Lon},
		{DriverID: 3, Name: "far", Lat: shift(kathmandu, 10, 0).Lat, Lon: kathmandu.Lon},
	}
	engine := newEngine(src, geo.NewDBSCAN(), ProximityConfig{})

	markers, err := engine.FindNearby(context.Background(), NearbyQuery{Center: kathmandu, Zoom: 14})
	require.NoError(t, err)

	require.Len(t, markers, 2)
	assert.Equal(t, int64(2), markers[0].DriverID)
	assert.Equal(t, int64(1), markers[1].DriverID)
	for _, m := range markers {
		assert.Equal(t, domain.MarkerSingle, m.Kind)
		assert.LessOrEqual(t, m.DistanceKm, 3.0)
	}
}

func TestFindNearby_ClustersDenseGroups(t *testing.T) {
	src := driversAround(kathmandu, shift(kathmandu, 2, 0), shift(kathmandu, 0, 2))
	engine := newEngine(src, geo.NewDBSCAN(), ProximityConfig{})

	markers, err := engine.FindNearby(context.Background(), NearbyQuery{Center: kathmandu, RadiusKm: 3, Zoom: 12})
	require.NoError(t, err)

	require.Len(t, markers, 3)
	total := 0
	for i, m := range markers {
		assert.Equal(t, domain.MarkerCluster, m.Kind)
		assert.Equal(t, 5, m.Count)
		total += m.Count
		if i > 0 {
			assert.GreaterOrEqual(t, m.DistanceKm, markers[i-1].DistanceKm)
		}
	}
	assert.Equal(t, 15, total)
	assert.Less(t, markers[0].DistanceKm, 0.5, "the group at the centre comes first")
}

func TestFindNearby_ClusteringUnavailableFallsBackToNearest(t *testing.T) {
	src := driversAround(kathmandu, shift(kathmandu, 2, 0), shift(kathmandu, 0, 2))

	for name, clusterer := range map[string]geo.Clusterer{"nil": nil, "failing": failingClusterer{}} {
		t.Run(name, func(t *testing.T) {
			engine := newEngine(src, clusterer, ProximityConfig{})

			markers, err := engine.FindNearby(context.Background(), NearbyQuery{Center: kathmandu, RadiusKm: 3, Zoom: 12})
			require.NoError(t, err)

			require.Len(t, markers, 10)
			for i, m := range markers {
				assert.Equal(t, domain.MarkerSingle, m.Kind)
				if i > 0 {
					assert.GreaterOrEqual(t, m.DistanceKm, markers[i-1].DistanceKm)
				}
			}
		})
	}
}

func TestFindNearby_RespectsCandidateCap(t *testing.T) {
	src := driversAround(kathmandu, kathmandu, kathmandu)
	engine := newEngine(src, geo.NewDBSCAN(), ProximityConfig{MaxCandidates: 12})

	markers, err := engine.FindNearby(context.Background(), NearbyQuery{Center: kathmandu, Zoom: 12})
	require.NoError(t, err)

	total := 0
	for _, m := range markers {
		total += m.Count
	}
	assert.Equal(t, 12, total)
}

type countingSource struct {
	calls atomic.Int32
	src   staticLocations
}

func (c *countingSource) Locations(ctx context.Context) ([]domain.DriverLocation, error) {
	c.calls.Add(1)
	return c.src, nil
}

func TestSubmit_OnlyLatestQueryIsDelivered(t *testing.T) {
	src := &countingSource{src: driversAround(kathmandu)}
	engine := newEngine(src, geo.NewDBSCAN(), ProximityConfig{Debounce: 30 * time.Millisecond})
	defer engine.Close()

	var mu sync.Mutex
	var delivered []float64
	done := make(chan struct{}, 3)

	for _, radius := range []float64{1, 2, 3} {
		q := NearbyQuery{Center: kathmandu, RadiusKm: radius, Zoom: 15}
		engine.Submit("viewer", q, func(markers []domain.Marker, err error) {
			mu.Lock()
			delivered = append(delivered, q.RadiusKm)
			mu.Unlock()
			done <- struct{}{}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{3}, delivered)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestSubmit_CancelSuppressesDelivery(t *testing.T) {
	src := &countingSource{src: driversAround(kathmandu)}
	engine := newEngine(src, geo.NewDBSCAN(), ProximityConfig{Debounce: 20 * time.Millisecond})
	defer engine.Close()

	var delivered atomic.Bool
	engine.Submit("viewer", NearbyQuery{Center: kathmandu}, func([]domain.Marker, error) {
		delivered.Store(true)
	})
	engine.Cancel("viewer")

	time.Sleep(100 * time.Millisecond)
	assert.False(t, delivered.Load())
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestSubmit_KeysAreIndependent(t *testing.T) {
	engine := newEngine(driversAround(kathmandu), geo.NewDBSCAN(), ProximityConfig{Debounce: 10 * time.Millisecond})
	defer engine.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	for _, key := range []string{"a", "b"} {
		engine.Submit(key, NearbyQuery{Center: kathmandu}, func([]domain.Marker, error) { wg.Done() })
	}

	finished := make(chan struct{})
	go func() { wg.Wait(); close(finished) }()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("both keys should deliver")
	}
}

func TestDebouncer_CancelWhileRunningSuppressesEmit(t *testing.T) {
	d := NewDebouncer(time.Millisecond)
	defer d.Close()

	started := make(chan struct{})
	proceed := make(chan struct{})
	finished := make(chan struct{})
	var delivered atomic.Bool

	d.Submit("k", func(ctx context.Context, emit func(func())) {
		defer close(finished)
		close(started)
		<-proceed
		emit(func() { delivered.Store(true) })
	})

	<-started
	d.Cancel("k")
	close(proceed)
	<-finished

	assert.False(t, delivered.Load())
}

func TestDebouncer_ClosedRejectsSubmissions(t *testing.T) {
	d := NewDebouncer(time.Millisecond)
	d.Close()

	var ran atomic.Bool
	d.Submit("k", func(ctx context.Context, emit func(func())) { ran.Store(true) })

	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())
}
