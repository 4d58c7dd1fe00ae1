package domain

// Coordinates is a WGS84 point in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DriverLocation is a driver whose address has been resolved to coordinates.
// It lives only in memory and is rebuilt on every preload.
type DriverLocation struct {
	DriverID int64   `json:"driver_id"`
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// MarkerKind distinguishes individual drivers from grouped drivers on a map.
type MarkerKind string

const (
	MarkerSingle  MarkerKind = "single"
	MarkerCluster MarkerKind = "cluster"
)

// Marker is a display-ready map pin. For clusters, Lat/Lon is the centroid of
// the members and Count is the member count.
type Marker struct {
	Kind       MarkerKind `json:"kind"`
	DriverID   int64      `json:"driver_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Lat        float64    `json:"lat"`
	Lon        float64    `json:"lon"`
	DistanceKm float64    `json:"distance_km"`
	Count      int        `json:"count"`
}

// Place is a geocoding suggestion.
type Place struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}
