package handlers

import (
	"net/http"
	"time"

	"carrental/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateBooking - POST /api/bookings
func (h *Handlers) CreateBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.services.Bookings.Create(c.Request.Context(), p.UserID, &req)
	if err != nil {
		fail(c, "create booking", err)
		return
	}

	respond(c, http.StatusOK, "Car booked successfully", booking)
}

// ListBookings - GET /api/bookings?carId=&date=
func (h *Handlers) ListBookings(c *gin.Context) {
	filter := models.BookingFilter{CarID: c.Query("carId")}
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			respond(c, http.StatusBadRequest, "date must be a date in YYYY-MM-DD format", nil)
			return
		}
		filter.Date = &date
	}

	bookings, err := h.services.Bookings.ListAll(c.Request.Context(), filter)
	if err != nil {
		fail(c, "list bookings", err)
		return
	}
	if bookings == nil {
		bookings = []models.BookingView{}
	}

	respond(c, http.StatusOK, "Bookings retrieved successfully", bookings)
}

// BookingStats - GET /api/bookings/stats
func (h *Handlers) BookingStats(c *gin.Context) {
	stats, err := h.services.Bookings.Stats(c.Request.Context())
	if err != nil {
		fail(c, "booking stats", err)
		return
	}

	respond(c, http.StatusOK, "Booking stats retrieved successfully", stats)
}

// MyBookings - GET /api/bookings/my-bookings
func (h *Handlers) MyBookings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	bookings, err := h.services.Bookings.ListMine(c.Request.Context(), p.UserID)
	if err != nil {
		fail(c, "list my bookings", err)
		return
	}
	if len(bookings) == 0 {
		respond(c, http.StatusNotFound, noDataFound, []models.BookingView{})
		return
	}

	respond(c, http.StatusOK, "My Bookings retrieved successfully", bookings)
}

// GetBooking - GET /api/bookings/my-bookings/:id
func (h *Handlers) GetBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	booking, err := h.services.Bookings.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		fail(c, "get booking", err)
		return
	}

	respond(c, http.StatusOK, "Booking retrieved successfully.", booking)
}

// UpdateBooking - PUT /api/bookings/my-bookings/:id
func (h *Handlers) UpdateBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req models.UpdateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.services.Bookings.Update(c.Request.Context(), p.UserID, c.Param("id"), &req)
	if err != nil {
		fail(c, "update booking", err)
		return
	}

	respond(c, http.StatusOK, "Booking updated successfully.", booking)
}

// CancelBooking - DELETE /api/bookings/my-bookings/:id
func (h *Handlers) CancelBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	booking, err := h.services.Bookings.Cancel(c.Request.Context(), p.UserID, c.Param("id"))
	if err != nil {
		fail(c, "cancel booking", err)
		return
	}

	respond(c, http.StatusOK, "Booking canceled successfully.", booking)
}

// ApproveBooking - PATCH /api/bookings/approve/:id
func (h *Handlers) ApproveBooking(c *gin.Context) {
	booking, err := h.services.Bookings.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, "approve booking", err)
		return
	}

	respond(c, http.StatusOK, "Booking approved successfully.", booking)
}
