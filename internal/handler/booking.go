package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxi/internal/domain"
	"taxi/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	ledger *service.BookingLedger
	assign *service.AssignmentPolicy
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(ledger *service.BookingLedger, assign *service.AssignmentPolicy) *BookingHandler {
	return &BookingHandler{ledger: ledger, assign: assign}
}

// CreateBookingRequest is the HTTP request body for creating a booking.
type CreateBookingRequest struct {
	CustomerID int64  `json:"customer_id"`
	Pickup     string `json:"pickup"`
	Dropoff    string `json:"dropoff"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

// UpdateBookingRequest is the HTTP request body for editing a booking.
// Omitted fields keep their value.
type UpdateBookingRequest struct {
	Pickup  *string `json:"pickup"`
	Dropoff *string `json:"dropoff"`
	Date    *string `json:"date"`
	Time    *string `json:"time"`
}

// AssignDriverRequest is the HTTP request body for a manual assignment.
type AssignDriverRequest struct {
	DriverID int64 `json:"driver_id"`
}

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customer_id"`
	Pickup     string `json:"pickup"`
	Dropoff    string `json:"dropoff"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Status     string `json:"status"`
	DriverID   *int64 `json:"driver_id"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:         b.ID,
		CustomerID: b.CustomerID,
		Pickup:     b.Pickup,
		Dropoff:    b.Dropoff,
		Date:       b.Date,
		Time:       b.Time,
		Status:     string(b.Status),
		DriverID:   b.DriverID,
	}
}

func toBookingResponses(bookings []*domain.Booking) []BookingResponse {
	out := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		out[i] = toBookingResponse(b)
	}
	return out
}

// Create handles POST /v1/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, service.ErrValidation.Error())
		return
	}

	booking, err := h.ledger.Create(c.Request.Context(), service.CreateBookingRequest{
		CustomerID: req.CustomerID,
		Pickup:     req.Pickup,
		Dropoff:    req.Dropoff,
		Date:       req.Date,
		Time:       req.Time,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, "Booking created.", toBookingResponse(booking))
}

// Get handles GET /v1/bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "", toBookingResponse(booking))
}

// Update handles PATCH /v1/bookings/:id
func (h *BookingHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, service.ErrValidation.Error())
		return
	}

	booking, err := h.ledger.Update(c.Request.Context(), id, service.UpdateBookingRequest{
		Pickup:  req.Pickup,
		Dropoff: req.Dropoff,
		Date:    req.Date,
		Time:    req.Time,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "Booking updated.", toBookingResponse(booking))
}

// Cancel handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.ledger.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "Booking cancelled.", toBookingResponse(booking))
}

// Complete handles POST /v1/bookings/:id/complete
func (h *BookingHandler) Complete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.ledger.Complete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "Booking completed.", toBookingResponse(booking))
}

// Assign handles POST /v1/bookings/:id/assign
func (h *BookingHandler) Assign(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DriverID <= 0 {
		badRequest(c, "Driver ID is required.")
		return
	}

	result, err := h.assign.Assign(c.Request.Context(), id, req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, result.Message, toBookingResponse(result.Booking))
}

// AutoAssign handles POST /v1/bookings/:id/auto-assign
func (h *BookingHandler) AutoAssign(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	result, err := h.assign.AutoAssign(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, result.Message, toBookingResponse(result.Booking))
}

// GetAll handles GET /v1/bookings
func (h *BookingHandler) GetAll(c *gin.Context) {
	bookings, err := h.ledger.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "", toBookingResponses(bookings))
}

// ListByCustomer handles GET /v1/customers/:id/bookings
func (h *BookingHandler) ListByCustomer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	bookings, err := h.ledger.ListByCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "", toBookingResponses(bookings))
}

// ListByDriver handles GET /v1/drivers/:id/bookings
func (h *BookingHandler) ListByDriver(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	bookings, err := h.ledger.ListByDriver(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "", toBookingResponses(bookings))
}
