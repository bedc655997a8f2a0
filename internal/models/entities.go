package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an account referenced by bookings
type User struct {
	ID        string    `json:"_id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	Phone     string    `json:"phone" db:"phone"`
	Address   string    `json:"address" db:"address"`
	Image     string    `json:"image,omitempty" db:"image"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// UserSummary is the subset of user fields exposed on populated bookings
type UserSummary struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    Role   `json:"role,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Role:    u.Role,
		Phone:   u.Phone,
		Address: u.Address,
	}
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type CarStatus string

const (
	CarAvailable    CarStatus = "available"
	CarNotAvailable CarStatus = "not available"
)

// Car represents a rentable car
type Car struct {
	ID           string    `json:"_id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Image        string    `json:"image" db:"image"`
	Description  string    `json:"description" db:"description"`
	Color        string    `json:"color" db:"color"`
	IsElectric   bool      `json:"isElectric" db:"is_electric"`
	Features     []string  `json:"features" db:"features"`
	PricePerHour float64   `json:"pricePerHour" db:"price_per_hour"`
	Manufacturer string    `json:"Manufacturers" db:"manufacturer"`
	VehicleType  string    `json:"vehicleType" db:"vehicle_type"`
	Status       CarStatus `json:"status" db:"status"`
	IsDeleted    bool      `json:"isDeleted" db:"is_deleted"`
	BookingCount int       `json:"bookingCount" db:"booking_count"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Bookable reports whether a new booking may claim the car
func (c *Car) Bookable() bool {
	return c != nil && !c.IsDeleted && c.Status == CarAvailable
}

type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingApproved BookingStatus = "approved"
	BookingCanceled BookingStatus = "canceled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:  {BookingApproved, BookingCanceled},
	BookingApproved: {},
	BookingCanceled: {},
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
)

// PersonalInfo is the renter's contact data captured with a booking
type PersonalInfo struct {
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`
	DrivingLicense string `json:"drivingLicense,omitempty"`
	NID            string `json:"nid,omitempty"`
}

// ExtraFeatures are optional add-ons chosen for a booking
type ExtraFeatures struct {
	GPS       bool `json:"gps"`
	ChildSeat bool `json:"childSeat"`
	Insurance bool `json:"insurance"`
}

// Booking represents a reservation of one car by one user
type Booking struct {
	ID            string         `json:"_id" db:"id"`
	Date          time.Time      `json:"date" db:"date"`
	StartTime     string         `json:"startTime" db:"start_time"`
	EndTime       *string        `json:"endTime" db:"end_time"`
	UserID        string         `json:"userId" db:"user_id"`
	CarID         string         `json:"carId" db:"car_id"`
	TotalCost     float64        `json:"totalCost" db:"total_cost"`
	Status        BookingStatus  `json:"status" db:"status"`
	PayStatus     PaymentStatus  `json:"payStatus" db:"pay_status"`
	PersonalInfo  *PersonalInfo  `json:"personalInfo,omitempty" db:"personal_info"`
	ExtraFeatures *ExtraFeatures `json:"extraFeatures,omitempty" db:"extra_features"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time      `json:"updatedAt" db:"updated_at"`
}

// Ongoing reports whether the booking is still open, i.e. not returned. A user may
// have at most one ongoing booking; canceling does not close it.
func (b *Booking) Ongoing() bool {
	return b.EndTime == nil
}

// OccupiesCar reports whether the booking still holds its car: open and not canceled.
func (b *Booking) OccupiesCar() bool {
	return b.Ongoing() && b.Status != BookingCanceled
}

// BookingPayment is one payment attempt for a booking
type BookingPayment struct {
	ID            string        `json:"_id" db:"id"`
	BookingID     string        `json:"booking" db:"booking_id"`
	TransactionID string        `json:"transactionId" db:"transaction_id"`
	PaymentStatus PaymentStatus `json:"paymentStatus" db:"payment_status"`
	Amount        float64       `json:"amount" db:"amount"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" db:"updated_at"`
}

// Ref names a reference field of a booking that Populate can resolve
type Ref string

const (
	RefUser Ref = "user"
	RefCar  Ref = "car"
)

// BookingView is a booking with its references resolved
type BookingView struct {
	Booking
	User *UserSummary `json:"user,omitempty"`
	Car  *Car         `json:"car,omitempty"`
}

// PaymentIntent is the provider's handle for an in-progress charge
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"-"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

const PaymentIntentSucceeded = "succeeded"
