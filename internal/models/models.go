package models

import (
	"fmt"
	"strings"
	"time"
)

// FlexibleBool accepts booleans sent as JSON booleans, strings or numbers (multipart forms send "true")
type FlexibleBool bool

func (fb *FlexibleBool) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)

	switch strings.ToLower(str) {
	case "true", "1", "yes", "on":
		*fb = true
	case "false", "0", "no", "off", "", "null":
		*fb = false
	default:
		return fmt.Errorf("invalid boolean value: %s", str)
	}
	return nil
}

func (fb FlexibleBool) Bool() bool {
	return bool(fb)
}

// DateLayout is the wire format of booking dates
const DateLayout = "2006-01-02"

// APIResponse is the envelope every endpoint answers with
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	*PageMeta
}

// PageMeta is inlined into list responses
type PageMeta struct {
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
	TotalItems  int `json:"totalItems"`
}

// Cars

type CreateCarRequest struct {
	Name         string       `json:"name" binding:"required"`
	Image        string       `json:"image" binding:"required"`
	Description  string       `json:"description" binding:"required"`
	Color        string       `json:"color" binding:"required"`
	IsElectric   FlexibleBool `json:"isElectric"`
	Features     []string     `json:"features"`
	PricePerHour float64      `json:"pricePerHour" binding:"required,gt=0"`
	Manufacturer string       `json:"Manufacturers" binding:"required"`
	VehicleType  string       `json:"vehicleType" binding:"required"`
}

// UpdateCarRequest carries the descriptive fields an admin may change. Status and the
// soft-delete flag are owned by the booking flows and are not accepted here.
type UpdateCarRequest struct {
	Name         *string       `json:"name" binding:"omitempty,min=2"`
	Image        *string       `json:"image"`
	Description  *string       `json:"description" binding:"omitempty,min=5"`
	Color        *string       `json:"color" binding:"omitempty,min=3"`
	IsElectric   *FlexibleBool `json:"isElectric"`
	Features     []string      `json:"features"`
	PricePerHour *float64      `json:"pricePerHour" binding:"omitempty,gt=0"`
	Manufacturer *string       `json:"Manufacturers"`
	VehicleType  *string       `json:"vehicleType"`
}

func (r *UpdateCarRequest) Empty() bool {
	return r.Name == nil && r.Image == nil && r.Description == nil && r.Color == nil &&
		r.IsElectric == nil && r.Features == nil && r.PricePerHour == nil &&
		r.Manufacturer == nil && r.VehicleType == nil
}

// Apply copies the provided fields onto car
func (r *UpdateCarRequest) Apply(car *Car) {
	if r.Name != nil {
		car.Name = *r.Name
	}
	if r.Image != nil {
		car.Image = *r.Image
	}
	if r.Description != nil {
		car.Description = *r.Description
	}
	if r.Color != nil {
		car.Color = *r.Color
	}
	if r.IsElectric != nil {
		car.IsElectric = r.IsElectric.Bool()
	}
	if r.Features != nil {
		car.Features = r.Features
	}
	if r.PricePerHour != nil {
		car.PricePerHour = *r.PricePerHour
	}
	if r.Manufacturer != nil {
		car.Manufacturer = *r.Manufacturer
	}
	if r.VehicleType != nil {
		car.VehicleType = *r.VehicleType
	}
}

// PriceRange is an inclusive price-per-hour interval
type PriceRange struct {
	Min float64
	Max float64
}

// CarFilter narrows the car listing. Nil or empty fields impose no constraint;
// present fields are combined with AND.
type CarFilter struct {
	Manufacturers []string
	VehicleTypes  []string
	PriceRange    *PriceRange
}

// Match evaluates the filter against a single car
func (f CarFilter) Match(car *Car) bool {
	if car.IsDeleted {
		return false
	}
	if len(f.Manufacturers) > 0 && !contains(f.Manufacturers, car.Manufacturer) {
		return false
	}
	if len(f.VehicleTypes) > 0 && !contains(f.VehicleTypes, car.VehicleType) {
		return false
	}
	if f.PriceRange != nil && (car.PricePerHour < f.PriceRange.Min || car.PricePerHour > f.PriceRange.Max) {
		return false
	}
	return true
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// CarPage is one page of the car listing
type CarPage struct {
	Cars        []Car
	Total       int
	TotalPages  int
	CurrentPage int
}

// OutOfRange reports a request for a page past the last one
func (p *CarPage) OutOfRange() bool {
	return p.TotalPages > 0 && p.CurrentPage > p.TotalPages
}

// TotalPages is ceil(total/pageSize)
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Bookings

type CreateBookingRequest struct {
	CarID         string         `json:"carId" binding:"required"`
	Date          string         `json:"date" binding:"required,bookingdate"`
	StartTime     string         `json:"startTime" binding:"required,hhmm"`
	EndTime       *string        `json:"endTime"`
	TotalCost     *float64       `json:"totalCost"`
	PersonalInfo  *PersonalInfo  `json:"personalInfo"`
	ExtraFeatures *ExtraFeatures `json:"extraFeatures"`
}

type UpdateBookingRequest struct {
	Date      *string `json:"date" binding:"omitempty,bookingdate"`
	StartTime *string `json:"startTime" binding:"omitempty,hhmm"`
}

// BookingFilter narrows the admin booking listing
type BookingFilter struct {
	CarID string
	Date  *time.Time
}

type BookingStats struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
}

type ReturnCarRequest struct {
	BookingID string `json:"bookingId" binding:"required"`
	EndTime   string `json:"endTime" binding:"omitempty,hhmm"`
}

// Payments

type CreatePaymentIntentRequest struct {
	BookingID string  `json:"bookingId"`
	Amount    float64 `json:"amount"`
}

type CreatePaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

type ConfirmPaymentResult struct {
	PaymentIntent  *PaymentIntent  `json:"paymentIntent"`
	BookingPayment *BookingPayment `json:"bookingPayment"`
}

type RevenueResponse struct {
	TotalRevenue float64 `json:"totalRevenue"`
}

type ReconcileResponse struct {
	Repaired int `json:"repaired"`
}
