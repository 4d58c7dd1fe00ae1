package geo

import (
	"context"
	"fmt"

	"github.com/newrelic/go-agent/v3/newrelic"
	"googlemaps.github.io/maps"

	"taxi/internal/domain"
)

const mapsHost = "maps.googleapis.com"

// Ensure interfaces are satisfied.
var (
	_ Provider = (*MapsProvider)(nil)
	_ Router   = (*MapsProvider)(nil)
)

// MapsProvider implements Provider and Router on the Google Maps web services.
type MapsProvider struct {
	client   *maps.Client
	region   string
	language string
}

// NewMapsProvider creates a MapsProvider with the given API key. region is a
// ccTLD used to bias results (for example "np").
func NewMapsProvider(apiKey, region, language string) (*MapsProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &MapsProvider{client: client, region: region, language: language}, nil
}

// Geocode returns the coordinates of the best match for address.
func (p *MapsProvider) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	defer startExternalSegment(ctx, "geocode").End()

	results, err := p.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  address,
		Region:   p.region,
		Language: p.language,
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(results) == 0 {
		return domain.Coordinates{}, ErrNoResult
	}

	loc := results[0].Geometry.Location
	return domain.Coordinates{Lat: loc.Lat, Lon: loc.Lng}, nil
}

// Search returns place suggestions for a free-text query.
func (p *MapsProvider) Search(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	defer startExternalSegment(ctx, "textsearch").End()

	resp, err := p.client.TextSearch(ctx, &maps.TextSearchRequest{
		Query:    query,
		Region:   p.region,
		Language: p.language,
	})
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	places := make([]domain.Place, 0, len(resp.Results))
	for _, result := range resp.Results {
		places = append(places, domain.Place{
			Name:    result.Name,
			Address: result.FormattedAddress,
			Lat:     result.Geometry.Location.Lat,
			Lon:     result.Geometry.Location.Lng,
		})
		if limit > 0 && len(places) >= limit*2 {
			break
		}
	}
	return places, nil
}

// Route returns the decoded overview polyline of the first driving route.
func (p *MapsProvider) Route(ctx context.Context, from, to domain.Coordinates) ([]domain.Coordinates, error) {
	defer startExternalSegment(ctx, "directions").End()

	routes, _, err := p.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      latLngString(from),
		Destination: latLngString(to),
		Mode:        maps.TravelModeDriving,
		Region:      p.region,
	})
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 {
		return nil, ErrNoResult
	}

	points, err := routes[0].OverviewPolyline.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}

	path := make([]domain.Coordinates, len(points))
	for i, pt := range points {
		path[i] = domain.Coordinates{Lat: pt.Lat, Lon: pt.Lng}
	}
	return path, nil
}

func latLngString(c domain.Coordinates) string {
	return fmt.Sprintf("%f,%f", c.Lat, c.Lon)
}

// startExternalSegment records the call on the request's New Relic
// transaction, if there is one. The returned segment is safe to End either way.
func startExternalSegment(ctx context.Context, procedure string) *newrelic.ExternalSegment {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return &newrelic.ExternalSegment{}
	}
	return &newrelic.ExternalSegment{
		StartTime: txn.StartSegmentNow(),
		Host:      mapsHost,
		Procedure: procedure,
		Library:   "googlemaps",
	}
}
