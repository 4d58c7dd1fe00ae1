package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"taxi/internal/domain"
	"taxi/internal/geo"
)

// GeoHandler exposes address lookup, place suggestions and routes.
type GeoHandler struct {
	resolver *geo.Resolver
}

// NewGeoHandler creates a new GeoHandler.
func NewGeoHandler(resolver *geo.Resolver) *GeoHandler {
	return &GeoHandler{resolver: resolver}
}

// RouteResponse is a drivable path between two points.
type RouteResponse struct {
	Found bool                 `json:"found"`
	Path  []domain.Coordinates `json:"path"`
}

// Resolve handles GET /v1/geo/resolve?address=
func (h *GeoHandler) Resolve(c *gin.Context) {
	address := strings.TrimSpace(c.Query("address"))
	if address == "" {
		badRequest(c, "Address is required.")
		return
	}

	coords, ok := h.resolver.Resolve(c.Request.Context(), address)
	if !ok {
		c.JSON(http.StatusNotFound, Response{OK: false, Message: "Address not found."})
		return
	}

	respondJSON(c, http.StatusOK, "", coords)
}

// Search handles GET /v1/geo/search?q=&limit=
func (h *GeoHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	places := h.resolver.Search(c.Request.Context(), c.Query("q"), limit)
	if places == nil {
		places = []domain.Place{}
	}

	respondJSON(c, http.StatusOK, "", places)
}

// Route handles GET /v1/geo/route?from_lat=&from_lon=&to_lat=&to_lon=
func (h *GeoHandler) Route(c *gin.Context) {
	var vals [4]float64
	for i, name := range []string{"from_lat", "from_lon", "to_lat", "to_lon"} {
		v, err := strconv.ParseFloat(c.Query(name), 64)
		if err != nil {
			badRequest(c, "from_lat, from_lon, to_lat and to_lon are required numbers.")
			return
		}
		vals[i] = v
	}

	from := domain.Coordinates{Lat: vals[0], Lon: vals[1]}
	to := domain.Coordinates{Lat: vals[2], Lon: vals[3]}
	path, ok := h.resolver.Route(c.Request.Context(), from, to)
	if !ok {
		path = []domain.Coordinates{}
	}

	respondJSON(c, http.StatusOK, "", RouteResponse{Found: ok, Path: path})
}
