package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taxi/internal/domain"
	"taxi/internal/service"
)

const defaultZoom = 13

// DriverHandler handles HTTP requests for drivers and their positions.
type DriverHandler struct {
	directory *service.DriverDirectory
	proximity *service.ProximityEngine
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(directory *service.DriverDirectory, proximity *service.ProximityEngine) *DriverHandler {
	return &DriverHandler{directory: directory, proximity: proximity}
}

// DriverResponse is the HTTP representation of a driver.
type DriverResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

// LocationsResponse lists geocoded drivers.
type LocationsResponse struct {
	Preloaded bool                    `json:"preloaded"`
	Drivers   []domain.DriverLocation `json:"drivers"`
}

// GetAll handles GET /v1/drivers
func (h *DriverHandler) GetAll(c *gin.Context) {
	drivers, err := h.directory.ListDrivers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]DriverResponse, len(drivers))
	for i, d := range drivers {
		out[i] = DriverResponse{
			ID:       d.ID,
			Username: d.Username,
			Name:     d.Name,
			Address:  d.Address,
			Phone:    d.Phone,
			Email:    d.Email,
		}
	}
	respondJSON(c, http.StatusOK, "", out)
}

// Preload handles POST /v1/drivers/preload. Geocoding continues after the
// response is sent.
func (h *DriverHandler) Preload(c *gin.Context) {
	h.directory.Preload(c.Request.Context())
	respondJSON(c, http.StatusAccepted, "Driver locations are loading.", nil)
}

// Locations handles GET /v1/drivers/locations
func (h *DriverHandler) Locations(c *gin.Context) {
	locations, err := h.directory.Locations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "", LocationsResponse{
		Preloaded: h.directory.Loaded(),
		Drivers:   locations,
	})
}

// Nearby handles GET /v1/drivers/nearby?lat=&lon=&radius_km=&zoom=
func (h *DriverHandler) Nearby(c *gin.Context) {
	q, ok := nearbyQuery(c)
	if !ok {
		badRequest(c, "lat and lon are required numbers.")
		return
	}

	markers, err := h.proximity.FindNearby(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "", markers)
}

func nearbyQuery(c *gin.Context) (service.NearbyQuery, bool) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return service.NearbyQuery{}, false
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		return service.NearbyQuery{}, false
	}

	q := service.NearbyQuery{
		Center: domain.Coordinates{Lat: lat, Lon: lon},
		Zoom:   defaultZoom,
	}
	if v, err := strconv.ParseFloat(c.Query("radius_km"), 64); err == nil {
		q.RadiusKm = v
	}
	if v, err := strconv.ParseFloat(c.Query("zoom"), 64); err == nil {
		q.Zoom = v
	}
	return q, true
}
