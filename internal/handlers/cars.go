package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"carrental/internal/models"
	"carrental/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateCar - POST /api/cars
func (h *Handlers) CreateCar(c *gin.Context) {
	var req models.CreateCarRequest
	if !bindJSON(c, &req) {
		return
	}

	car, err := h.services.Cars.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, "create car", err)
		return
	}

	respond(c, http.StatusCreated, "Car created successfully", car)
}

// parsePriceRange reads "min,max". The range only applies when min < max.
func parsePriceRange(raw string) *models.PriceRange {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return nil
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil
	}
	if lo >= hi {
		return nil
	}
	return &models.PriceRange{Min: lo, Max: hi}
}

func carFilterFromQuery(c *gin.Context) models.CarFilter {
	return models.CarFilter{
		Manufacturers: queryList(c, "manufacturers"),
		VehicleTypes:  queryList(c, "vehicleTypes"),
		PriceRange:    parsePriceRange(c.Query("priceRange")),
	}
}

func respondPage(c *gin.Context, page *models.CarPage) {
	if page.OutOfRange() {
		respond(c, http.StatusNotFound, noDataFound, []models.Car{})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Cars retrieved successfully",
		Data:    page.Cars,
		PageMeta: &models.PageMeta{
			TotalPages:  page.TotalPages,
			CurrentPage: page.CurrentPage,
			TotalItems:  page.Total,
		},
	})
}

// ListCars - GET /api/cars
func (h *Handlers) ListCars(c *gin.Context) {
	page, err := h.services.Cars.List(c.Request.Context(),
		carFilterFromQuery(c),
		queryInt(c, "page", service.DefaultPage),
		queryInt(c, "limit", service.DefaultPageSize))
	if err != nil {
		fail(c, "list cars", err)
		return
	}

	respondPage(c, page)
}

// SearchCars - GET /api/cars/search
func (h *Handlers) SearchCars(c *gin.Context) {
	page, err := h.services.Cars.Search(c.Request.Context(),
		c.Query("q"),
		queryInt(c, "page", service.DefaultPage),
		queryInt(c, "limit", service.DefaultPageSize))
	if err != nil {
		fail(c, "search cars", err)
		return
	}

	respondPage(c, page)
}

// GetCar - GET /api/cars/:id
func (h *Handlers) GetCar(c *gin.Context) {
	car, err := h.services.Cars.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			respond(c, http.StatusNotFound, noDataFound, nil)
			return
		}
		fail(c, "get car", err)
		return
	}

	respond(c, http.StatusOK, "A Car retrieved successfully", car)
}

// UpdateCar - PUT /api/cars/:id
func (h *Handlers) UpdateCar(c *gin.Context) {
	var req models.UpdateCarRequest
	if !bindJSON(c, &req) {
		return
	}

	car, err := h.services.Cars.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			respond(c, http.StatusNotFound, noDataFound, nil)
			return
		}
		fail(c, "update car", err)
		return
	}

	respond(c, http.StatusOK, "Car updated successfully", car)
}

// DeleteCar - DELETE /api/cars/:id
func (h *Handlers) DeleteCar(c *gin.Context) {
	car, err := h.services.Cars.SoftDelete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			respond(c, http.StatusNotFound, noDataFound, nil)
			return
		}
		fail(c, "delete car", err)
		return
	}

	respond(c, http.StatusOK, "Car Deleted successfully", car)
}

// ReturnCar - PUT /api/cars/return
func (h *Handlers) ReturnCar(c *gin.Context) {
	var req models.ReturnCarRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.services.Returns.Return(c.Request.Context(), req.BookingID, req.EndTime)
	if err != nil {
		fail(c, "return car", err)
		return
	}

	respond(c, http.StatusOK, "Car returned successfully", booking)
}
