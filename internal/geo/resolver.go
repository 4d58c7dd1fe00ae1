package geo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"taxi/internal/domain"
)

const (
	defaultLookupTimeout = 8 * time.Second
	defaultSearchLimit   = 6
)

// ErrNoResult is returned by providers when an address has no match.
var ErrNoResult = errors.New("geocode: no result")

// Provider is an external geocoding service.
type Provider interface {
	Geocode(ctx context.Context, address string) (domain.Coordinates, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Place, error)
}

// Router returns a drivable path between two points.
type Router interface {
	Route(ctx context.Context, from, to domain.Coordinates) ([]domain.Coordinates, error)
}

// Bounds restricts search suggestions to a region. A place is kept if it
// falls inside the box or its address mentions Country.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	Country        string
}

// Contains reports whether the place belongs to the region.
func (b Bounds) Contains(p domain.Place) bool {
	if b.Country != "" && strings.Contains(p.Address, b.Country) {
		return true
	}
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	Timeout time.Duration
	Bounds  *Bounds
}

// Resolver turns addresses into coordinates through a Provider, remembering
// every successful lookup in a Cache. Failed lookups are not cached and are
// reported as "not found" rather than as errors.
type Resolver struct {
	provider Provider
	router   Router
	cache    Cache
	timeout  time.Duration
	bounds   *Bounds
	group    singleflight.Group
	log      logrus.FieldLogger
}

// NewResolver creates a Resolver. router may be nil, in which case Route
// always reports no path.
func NewResolver(provider Provider, router Router, cache Cache, cfg ResolverConfig, log logrus.FieldLogger) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultLookupTimeout
	}
	return &Resolver{
		provider: provider,
		router:   router,
		cache:    cache,
		timeout:  cfg.Timeout,
		bounds:   cfg.Bounds,
		log:      log.WithField("component", "geo_resolver"),
	}
}

// Resolve returns the coordinates of address. Concurrent calls for the same
// normalized address share a single provider request.
func (r *Resolver) Resolve(ctx context.Context, address string) (domain.Coordinates, bool) {
	key := NormalizeAddress(address)
	if key == "" {
		return domain.Coordinates{}, false
	}

	if coords, ok := r.cache.Get(key); ok {
		return coords, true
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if coords, ok := r.cache.Get(key); ok {
			return coords, nil
		}

		// The lookup is shared, so one caller going away must not fail the others.
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		coords, err := r.provider.Geocode(lookupCtx, strings.TrimSpace(address))
		if err != nil {
			return nil, err
		}
		r.cache.Set(key, coords)
		return coords, nil
	})
	if err != nil {
		r.log.WithError(err).WithField("address", key).Debug("geocode lookup failed")
		return domain.Coordinates{}, false
	}

	return v.(domain.Coordinates), true
}

// Search returns up to limit place suggestions for query, filtered to the
// configured bounds. Provider failures yield an empty list.
func (r *Resolver) Search(ctx context.Context, query string, limit int) []domain.Place {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	places, err := r.provider.Search(ctx, query, limit)
	if err != nil {
		r.log.WithError(err).WithField("query", query).Debug("place search failed")
		return nil
	}

	out := make([]domain.Place, 0, len(places))
	for _, p := range places {
		if r.bounds != nil && !r.bounds.Contains(p) {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Route returns the drivable path between two points, or false when no
// router is configured or the lookup fails.
func (r *Resolver) Route(ctx context.Context, from, to domain.Coordinates) ([]domain.Coordinates, bool) {
	if r.router == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	path, err := r.router.Route(ctx, from, to)
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{"from": from, "to": to}).Debug("route lookup failed")
		return nil, false
	}
	return path, len(path) > 0
}
