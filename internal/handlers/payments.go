package handlers

import (
	"net/http"

	"carrental/internal/models"

	"github.com/gin-gonic/gin"
)

// CreatePaymentIntent - POST /api/payments/create-payment-intent
func (h *Handlers) CreatePaymentIntent(c *gin.Context) {
	var req models.CreatePaymentIntentRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.services.Payments.CreateIntent(c.Request.Context(), req.BookingID, req.Amount)
	if err != nil {
		fail(c, "create payment intent", err)
		return
	}

	respond(c, http.StatusOK, "Payment intent created successfully", resp)
}

// ConfirmPayment - POST /api/payments/confirm-payment
func (h *Handlers) ConfirmPayment(c *gin.Context) {
	var req models.ConfirmPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.services.Payments.Confirm(c.Request.Context(), req.PaymentIntentID)
	if err != nil {
		fail(c, "confirm payment", err)
		return
	}

	respond(c, http.StatusOK, "Payment confirmed successfully", result)
}

// TotalRevenue - GET /api/payments/total-revenue
func (h *Handlers) TotalRevenue(c *gin.Context) {
	total, err := h.services.Payments.TotalRevenue(c.Request.Context())
	if err != nil {
		fail(c, "total revenue", err)
		return
	}

	respond(c, http.StatusOK, "Total revenue retrieved successfully", models.RevenueResponse{TotalRevenue: total})
}

// ReconcilePayments - POST /api/payments/reconcile
func (h *Handlers) ReconcilePayments(c *gin.Context) {
	repaired, err := h.services.Payments.Reconcile(c.Request.Context())
	if err != nil {
		fail(c, "reconcile payments", err)
		return
	}

	respond(c, http.StatusOK, "Payments reconciled successfully", models.ReconcileResponse{Repaired: repaired})
}
