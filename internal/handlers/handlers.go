package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	apperrors "carrental/internal/errors"
	"carrental/internal/logger"
	"carrental/internal/middleware"
	"carrental/internal/models"
	"carrental/internal/service"
	"carrental/internal/validation"

	"github.com/gin-gonic/gin"
)

const noDataFound = "No Data Found"

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		services: services,
	}
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, models.APIResponse{
		Success: status < http.StatusBadRequest,
		Message: message,
		Data:    data,
	})
}

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound),
		errors.Is(err, apperrors.ErrPaymentRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidRequest),
		errors.Is(err, apperrors.ErrInvalidTransition),
		errors.Is(err, apperrors.ErrConflictingBooking),
		errors.Is(err, apperrors.ErrCarUnavailable),
		errors.Is(err, apperrors.ErrInvalidDuration),
		errors.Is(err, apperrors.ErrPaymentNotSucceeded):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Upstream and unknown failures are logged and
// their details are kept from the client.
func fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		logger.WithContext(c.Request.Context()).Error("Request failed",
			"operation", op,
			"error", err)
		message = "Internal Server Error"
		if status == http.StatusBadGateway {
			message = "A dependent service failed, please retry"
		}
	}

	respond(c, status, message, nil)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respond(c, http.StatusBadRequest, validation.Message(err), nil)
		return false
	}
	return true
}

func principal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		respond(c, http.StatusUnauthorized, "User ID is missing from request.", nil)
	}
	return p, ok
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

// queryList accepts both repeated keys and comma separated values
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
