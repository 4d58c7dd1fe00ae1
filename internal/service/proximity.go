package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"taxi/internal/domain"
	"taxi/internal/geo"
)

const (
	defaultRadiusKm         = 3.0
	defaultDisplayThreshold = 10
	defaultMaxCandidates    = 200
	defaultDebounce         = 250 * time.Millisecond
	clusterMinPoints        = 2
	minClusterEpsKm         = 0.2
)

// LocationSource provides the current driver locations.
type LocationSource interface {
	Locations(ctx context.Context) ([]domain.DriverLocation, error)
}

// ProximityConfig tunes ProximityEngine. Zero values take the defaults.
type ProximityConfig struct {
	DefaultRadiusKm  float64
	DisplayThreshold int
	MaxCandidates    int
	Debounce         time.Duration
}

func (c ProximityConfig) withDefaults() ProximityConfig {
	if c.DefaultRadiusKm <= 0 {
		c.DefaultRadiusKm = defaultRadiusKm
	}
	if c.DisplayThreshold <= 0 {
		c.DisplayThreshold = defaultDisplayThreshold
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = defaultMaxCandidates
	}
	if c.Debounce <= 0 {
		c.Debounce = defaultDebounce
	}
	return c
}

// NearbyQuery describes a map viewport.
type NearbyQuery struct {
	Center   domain.Coordinates
	RadiusKm float64
	Zoom     float64
}

// ProximityEngine finds drivers near a point and groups them into markers.
type ProximityEngine struct {
	locations LocationSource
	clusterer geo.Clusterer
	cfg       ProximityConfig
	debouncer *Debouncer
	log       logrus.FieldLogger
}

// NewProximityEngine creates a ProximityEngine. A nil clusterer disables
// clustering; large results then fall back to the nearest drivers.
func NewProximityEngine(locations LocationSource, clusterer geo.Clusterer, cfg ProximityConfig, log logrus.FieldLogger) *ProximityEngine {
	cfg = cfg.withDefaults()
	return &ProximityEngine{
		locations: locations,
		clusterer: clusterer,
		cfg:       cfg,
		debouncer: NewDebouncer(cfg.Debounce),
		log:       log.WithField("component", "proximity"),
	}
}

// ClusterEpsKm returns the clustering distance for a map zoom level.
// Lower zoom shows more ground, so points merge over longer distances.
func ClusterEpsKm(zoom float64) float64 {
	return math.Max(minClusterEpsKm, 1.2*13/math.Max(1, zoom))
}

type candidate struct {
	loc  domain.DriverLocation
	dist float64
}

// FindNearby returns markers for the drivers within the query radius.
func (e *ProximityEngine) FindNearby(ctx context.Context, q NearbyQuery) ([]domain.Marker, error) {
	radius := q.RadiusKm
	if radius <= 0 {
		radius = e.cfg.DefaultRadiusKm
	}

	locations, err := e.locations.Locations(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(locations))
	for _, loc := range locations {
		dist := geo.Distance(q.Center.Lat, q.Center.Lon, loc.Lat, loc.Lon)
		if dist <= radius {
			candidates = append(candidates, candidate{loc: loc, dist: dist})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})
	if len(candidates) > e.cfg.MaxCandidates {
		candidates = candidates[:e.cfg.MaxCandidates]
	}

	if len(candidates) <= e.cfg.DisplayThreshold {
		return singles(candidates, e.cfg.DisplayThreshold), nil
	}

	markers, err := e.cluster(q, candidates)
	if err != nil {
		e.log.WithError(err).Debug("clustering unavailable, returning nearest drivers")
		return singles(candidates, e.cfg.DisplayThreshold), nil
	}
	return markers, nil
}

func (e *ProximityEngine) cluster(q NearbyQuery, candidates []candidate) ([]domain.Marker, error) {
	if e.clusterer == nil {
		return nil, geo.ErrClusteringUnavailable
	}

	points := make([]domain.Coordinates, len(candidates))
	for i, c := range candidates {
		points[i] = domain.Coordinates{Lat: c.loc.Lat, Lon: c.loc.Lon}
	}

	labels, err := e.clusterer.Cluster(points, ClusterEpsKm(q.Zoom), clusterMinPoints)
	if err != nil {
		return nil, err
	}

	type group struct {
		sumLat, sumLon float64
		count          int
	}
	var groups []*group
	var noise []candidate
	for i, label := range labels {
		if label == geo.Noise {
			noise = append(noise, candidates[i])
			continue
		}
		for len(groups) <= label {
			groups = append(groups, &group{})
		}
		g := groups[label]
		g.sumLat += points[i].Lat
		g.sumLon += points[i].Lon
		g.count++
	}

	markers := make([]domain.Marker, 0, len(groups)+len(noise))
	for _, g := range groups {
		if g.count == 0 {
			continue
		}
		lat, lon := g.sumLat/float64(g.count), g.sumLon/float64(g.count)
		markers = append(markers, domain.Marker{
			Kind:       domain.MarkerCluster,
			Lat:        lat,
			Lon:        lon,
			DistanceKm: geo.Distance(q.Center.Lat, q.Center.Lon, lat, lon),
			Count:      g.count,
		})
	}
	sort.SliceStable(markers, func(i, j int) bool {
		return markers[i].DistanceKm < markers[j].DistanceKm
	})

	return append(markers, singles(noise, e.cfg.DisplayThreshold)...), nil
}

func singles(candidates []candidate, limit int) []domain.Marker {
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	markers := make([]domain.Marker, len(candidates))
	for i, c := range candidates {
		markers[i] = domain.Marker{
			Kind:       domain.MarkerSingle,
			DriverID:   c.loc.DriverID,
			Name:       c.loc.Name,
			Lat:        c.loc.Lat,
			Lon:        c.loc.Lon,
			DistanceKm: c.dist,
			Count:      1,
		}
	}
	return markers
}

// Submit runs FindNearby in the background after the debounce period.
// A newer Submit with the same key supersedes this one, in which case
// deliver is never called.
func (e *ProximityEngine) Submit(key string, q NearbyQuery, deliver func([]domain.Marker, error)) {
	e.debouncer.Submit(key, func(ctx context.Context, emit func(func())) {
		markers, err := e.FindNearby(ctx, q)
		if ctx.Err() != nil {
			return
		}
		emit(func() { deliver(markers, err) })
	})
}

// Cancel drops any pending lookup for key.
func (e *ProximityEngine) Cancel(key string) {
	e.debouncer.Cancel(key)
}

// Close cancels all pending lookups.
func (e *ProximityEngine) Close() {
	e.debouncer.Close()
}
