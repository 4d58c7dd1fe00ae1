package geo

import (
	"errors"
	"math"

	"github.com/mmcloughlin/geohash"

	"taxi/internal/domain"
)

// Noise is the label given to points that belong to no cluster.
const Noise = -1

const (
	kmPerDegree     = math.Pi * EarthRadiusKm / 180.0
	maxBucketLat    = 85.0
	maxGeohashChars = 9
)

// ErrClusteringUnavailable is returned when points cannot be clustered with
// the requested parameters. Callers fall back to unclustered results.
var ErrClusteringUnavailable = errors.New("clustering unavailable")

// Clusterer groups points that lie closer than epsKm to each other.
type Clusterer interface {
	// Cluster returns one label per point: a cluster index starting at 0, or
	// Noise. Cluster indexes are assigned in order of discovery.
	Cluster(points []domain.Coordinates, epsKm float64, minPoints int) ([]int, error)
}

// DBSCAN is a density-based Clusterer using the haversine metric. Neighbour
// queries are answered from geohash buckets sized to at least epsKm, so each
// query only scans the point's cell and its eight neighbours.
type DBSCAN struct{}

// NewDBSCAN creates a DBSCAN clusterer.
func NewDBSCAN() *DBSCAN {
	return &DBSCAN{}
}

// Cluster labels points. A point with at least minPoints points (itself
// included) closer than epsKm is a core point; clusters are the connected core
// points plus the border points they reach.
func (d *DBSCAN) Cluster(points []domain.Coordinates, epsKm float64, minPoints int) ([]int, error) {
	if epsKm <= 0 || math.IsNaN(epsKm) || minPoints < 1 {
		return nil, ErrClusteringUnavailable
	}

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = unvisited
	}
	if len(points) == 0 {
		return labels, nil
	}

	idx := newNeighbourIndex(points, epsKm)
	cluster := 0
	for i := range points {
		if labels[i] != unvisited {
			continue
		}

		neighbours := idx.within(i)
		if len(neighbours) < minPoints {
			labels[i] = Noise
			continue
		}

		labels[i] = cluster
		queue := neighbours
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			if labels[j] == Noise {
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster

			if more := idx.within(j); len(more) >= minPoints {
				queue = append(queue, more...)
			}
		}
		cluster++
	}

	return labels, nil
}

const unvisited = -2

// neighbourIndex answers "which points are closer than eps to point i".
type neighbourIndex struct {
	points  []domain.Coordinates
	eps     float64
	chars   uint
	hashes  []string
	buckets map[string][]int
}

func newNeighbourIndex(points []domain.Coordinates, eps float64) *neighbourIndex {
	idx := &neighbourIndex{points: points, eps: eps}

	maxAbsLat := 0.0
	for _, p := range points {
		maxAbsLat = math.Max(maxAbsLat, math.Abs(p.Lat))
	}
	idx.chars = bucketPrecision(eps, maxAbsLat)
	if idx.chars == 0 {
		return idx
	}

	idx.hashes = make([]string, len(points))
	idx.buckets = make(map[string][]int)
	for i, p := range points {
		h := geohash.EncodeWithPrecision(p.Lat, p.Lon, idx.chars)
		idx.hashes[i] = h
		idx.buckets[h] = append(idx.buckets[h], i)
	}
	return idx
}

// bucketPrecision returns the longest geohash whose cells are at least eps
// wide and tall at every latitude up to maxAbsLat, or 0 if bucketing cannot
// be used and every pair must be compared.
func bucketPrecision(eps, maxAbsLat float64) uint {
	if maxAbsLat > maxBucketLat {
		return 0
	}
	for chars := uint(maxGeohashChars); chars >= 1; chars-- {
		box := geohash.BoundingBox(geohash.EncodeWithPrecision(0, 0, chars))
		heightKm := (box.MaxLat - box.MinLat) * kmPerDegree
		widthKm := (box.MaxLng - box.MinLng) * kmPerDegree * math.Cos(maxAbsLat*math.Pi/180.0)
		if heightKm >= eps && widthKm >= eps {
			return chars
		}
	}
	return 0
}

func (idx *neighbourIndex) within(i int) []int {
	var out []int
	visit := func(j int) {
		if DistanceBetween(idx.points[i], idx.points[j]) < idx.eps {
			out = append(out, j)
		}
	}

	if idx.chars == 0 {
		for j := range idx.points {
			visit(j)
		}
		return out
	}

	cells := append([]string{idx.hashes[i]}, geohash.Neighbors(idx.hashes[i])...)
	seen := make(map[string]struct{}, len(cells))
	for _, cell := range cells {
		if _, dup := seen[cell]; dup {
			continue
		}
		seen[cell] = struct{}{}
		for _, j := range idx.buckets[cell] {
			visit(j)
		}
	}
	return out
}
