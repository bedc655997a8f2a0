// Package memstore keeps every record in process memory behind one lock. It backs
// STORAGE_DRIVER=memory and the service tests; all multi-record writes happen under
// the same critical section, so they are atomic like their postgres counterparts.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "carrental/internal/errors"
	"carrental/internal/models"
	"carrental/internal/repository"
)

type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	seq      int64
	users    map[string]*models.User
	cars     map[string]*models.Car
	bookings map[string]*models.Booking
	payments map[string]*models.BookingPayment
	// insertion order keys, used for stable listings
	order map[string]int64
}

func New() *Store {
	return &Store{
		now:      time.Now,
		users:    make(map[string]*models.User),
		cars:     make(map[string]*models.Car),
		bookings: make(map[string]*models.Booking),
		payments: make(map[string]*models.BookingPayment),
		order:    make(map[string]int64),
	}
}

// Repositories exposes the store through the repository interfaces
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Cars:     &CarStore{s},
		Bookings: &BookingStore{s},
		Payments: &PaymentStore{s},
		Users:    &UserStore{s},
	}
}

func (s *Store) stamp(id string) time.Time {
	s.seq++
	s.order[id] = s.seq
	return s.now().UTC()
}

func (s *Store) sortByInsertion(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return s.order[ids[i]] < s.order[ids[j]] })
}

func cloneCar(c *models.Car) *models.Car {
	cp := *c
	cp.Features = append([]string(nil), c.Features...)
	return &cp
}

func cloneBooking(b *models.Booking) *models.Booking {
	cp := *b
	if b.EndTime != nil {
		end := *b.EndTime
		cp.EndTime = &end
	}
	if b.PersonalInfo != nil {
		info := *b.PersonalInfo
		cp.PersonalInfo = &info
	}
	if b.ExtraFeatures != nil {
		extra := *b.ExtraFeatures
		cp.ExtraFeatures = &extra
	}
	return &cp
}

// CarStore implements repository.CarStore
type CarStore struct{ s *Store }

func (c *CarStore) Create(ctx context.Context, car *models.Car) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if _, exists := c.s.cars[car.ID]; exists {
		return fmt.Errorf("car %s already exists", car.ID)
	}
	now := c.s.stamp(car.ID)
	car.CreatedAt, car.UpdatedAt = now, now
	c.s.cars[car.ID] = cloneCar(car)
	return nil
}

func (c *CarStore) GetByID(ctx context.Context, id string) (*models.Car, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	car, ok := c.s.cars[id]
	if !ok || car.IsDeleted {
		return nil, nil
	}
	return cloneCar(car), nil
}

func (c *CarStore) List(ctx context.Context, filter models.CarFilter, offset, limit int) ([]models.Car, int, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	var ids []string
	for id, car := range c.s.cars {
		if filter.Match(car) {
			ids = append(ids, id)
		}
	}
	c.s.sortByInsertion(ids)

	cars := []models.Car{}
	for i := offset; i < len(ids) && i < offset+limit; i++ {
		cars = append(cars, *cloneCar(c.s.cars[ids[i]]))
	}
	return cars, len(ids), nil
}

func (c *CarStore) Update(ctx context.Context, car *models.Car) (bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	stored, ok := c.s.cars[car.ID]
	if !ok || stored.IsDeleted {
		return false, nil
	}

	// status, soft-delete flag and counters are not part of a descriptive update
	updated := cloneCar(car)
	updated.Status = stored.Status
	updated.IsDeleted = stored.IsDeleted
	updated.BookingCount = stored.BookingCount
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = c.s.now().UTC()
	c.s.cars[car.ID] = updated

	car.UpdatedAt = updated.UpdatedAt
	return true, nil
}

func (c *CarStore) SetStatus(ctx context.Context, id string, status models.CarStatus) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if car, ok := c.s.cars[id]; ok {
		car.Status = status
		car.UpdatedAt = c.s.now().UTC()
	}
	return nil
}

func (c *CarStore) SoftDelete(ctx context.Context, id string) (bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	car, ok := c.s.cars[id]
	if !ok || car.IsDeleted {
		return false, nil
	}
	car.IsDeleted = true
	car.UpdatedAt = c.s.now().UTC()
	return true, nil
}

// BookingStore implements repository.BookingStore
type BookingStore struct{ s *Store }

func (b *BookingStore) ongoingLocked(userID string) *models.Booking {
	for _, booking := range b.s.bookings {
		if booking.UserID == userID && booking.Ongoing() {
			return booking
		}
	}
	return nil
}

func (b *BookingStore) CreateWithClaim(ctx context.Context, booking *models.Booking) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	car, ok := b.s.cars[booking.CarID]
	if !ok || !car.Bookable() {
		return apperrors.ErrCarUnavailable
	}
	if b.ongoingLocked(booking.UserID) != nil {
		return apperrors.ErrConflictingBooking
	}

	now := b.s.stamp(booking.ID)
	booking.CreatedAt, booking.UpdatedAt = now, now
	b.s.bookings[booking.ID] = cloneBooking(booking)

	car.Status = models.CarNotAvailable
	car.BookingCount++
	car.UpdatedAt = now
	return nil
}

func (b *BookingStore) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	booking, ok := b.s.bookings[id]
	if !ok {
		return nil, nil
	}
	return cloneBooking(booking), nil
}

func (b *BookingStore) FindOngoingByUser(ctx context.Context, userID string) (*models.Booking, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	if booking := b.ongoingLocked(userID); booking != nil {
		return cloneBooking(booking), nil
	}
	return nil, nil
}

func (b *BookingStore) collect(match func(*models.Booking) bool) []models.Booking {
	var ids []string
	for id, booking := range b.s.bookings {
		if match(booking) {
			ids = append(ids, id)
		}
	}
	b.s.sortByInsertion(ids)

	bookings := make([]models.Booking, 0, len(ids))
	for _, id := range ids {
		bookings = append(bookings, *cloneBooking(b.s.bookings[id]))
	}
	return bookings
}

func (b *BookingStore) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	return b.collect(func(booking *models.Booking) bool {
		return booking.UserID == userID
	}), nil
}

func (b *BookingStore) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	return b.collect(func(booking *models.Booking) bool {
		if filter.CarID != "" && booking.CarID != filter.CarID {
			return false
		}
		if filter.Date != nil && !sameDay(booking.Date, *filter.Date) {
			return false
		}
		return true
	}), nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (b *BookingStore) UpdateSchedule(ctx context.Context, booking *models.Booking) (bool, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	stored, ok := b.s.bookings[booking.ID]
	if !ok || stored.Status == models.BookingApproved {
		return false, nil
	}
	stored.Date = booking.Date
	stored.StartTime = booking.StartTime
	stored.UpdatedAt = b.s.now().UTC()
	booking.UpdatedAt = stored.UpdatedAt
	return true, nil
}

func (b *BookingStore) Cancel(ctx context.Context, id string) (bool, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	booking, ok := b.s.bookings[id]
	if !ok || !booking.Status.CanTransitionTo(models.BookingCanceled) {
		return false, apperrors.ErrInvalidTransition
	}

	now := b.s.now().UTC()
	holdsCar := booking.OccupiesCar()
	booking.Status = models.BookingCanceled
	booking.UpdatedAt = now

	if !holdsCar {
		return false, nil
	}
	if car, ok := b.s.cars[booking.CarID]; ok {
		car.Status = models.CarAvailable
		car.UpdatedAt = now
	}
	return true, nil
}

func (b *BookingStore) Approve(ctx context.Context, id string) (bool, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	booking, ok := b.s.bookings[id]
	if !ok || !booking.Status.CanTransitionTo(models.BookingApproved) {
		return false, nil
	}
	booking.Status = models.BookingApproved
	booking.UpdatedAt = b.s.now().UTC()
	return true, nil
}

func (b *BookingStore) CompleteReturn(ctx context.Context, id, endTime string, totalCost float64) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	booking, ok := b.s.bookings[id]
	if !ok || !booking.Ongoing() {
		return apperrors.ErrInvalidTransition
	}

	now := b.s.now().UTC()
	holdsCar := booking.OccupiesCar()
	end := endTime
	booking.EndTime = &end
	booking.TotalCost = totalCost
	booking.UpdatedAt = now

	if !holdsCar {
		return nil
	}
	if car, ok := b.s.cars[booking.CarID]; ok {
		car.Status = models.CarAvailable
		car.UpdatedAt = now
	}
	return nil
}

func (b *BookingStore) SetPayStatus(ctx context.Context, id string, status models.PaymentStatus) (bool, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	booking, ok := b.s.bookings[id]
	if !ok {
		return false, nil
	}
	booking.PayStatus = status
	booking.UpdatedAt = b.s.now().UTC()
	return true, nil
}

func (b *BookingStore) CountByStatus(ctx context.Context) (map[models.BookingStatus]int, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	counts := make(map[models.BookingStatus]int)
	for _, booking := range b.s.bookings {
		counts[booking.Status]++
	}
	return counts, nil
}

func (b *BookingStore) Populate(ctx context.Context, bookings []models.Booking, refs ...models.Ref) ([]models.BookingView, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	withUser, withCar := false, false
	for _, ref := range refs {
		switch ref {
		case models.RefUser:
			withUser = true
		case models.RefCar:
			withCar = true
		default:
			return nil, fmt.Errorf("unknown booking reference %q", ref)
		}
	}

	views := make([]models.BookingView, len(bookings))
	for i, booking := range bookings {
		views[i] = models.BookingView{Booking: booking}
		if user, ok := b.s.users[booking.UserID]; ok && withUser {
			views[i].User = user.Summary()
		}
		if car, ok := b.s.cars[booking.CarID]; ok && withCar {
			views[i].Car = cloneCar(car)
		}
	}
	return views, nil
}

// PaymentStore implements repository.PaymentStore
type PaymentStore struct{ s *Store }

func (p *PaymentStore) Create(ctx context.Context, payment *models.BookingPayment) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	for _, existing := range p.s.payments {
		if existing.TransactionID == payment.TransactionID {
			return fmt.Errorf("payment for transaction %s already exists", payment.TransactionID)
		}
	}
	now := p.s.stamp(payment.ID)
	payment.CreatedAt, payment.UpdatedAt = now, now
	cp := *payment
	p.s.payments[payment.ID] = &cp
	return nil
}

func (p *PaymentStore) byTransactionLocked(transactionID string) *models.BookingPayment {
	for _, payment := range p.s.payments {
		if payment.TransactionID == transactionID {
			return payment
		}
	}
	return nil
}

func (p *PaymentStore) GetByTransactionID(ctx context.Context, transactionID string) (*models.BookingPayment, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	if payment := p.byTransactionLocked(transactionID); payment != nil {
		cp := *payment
		return &cp, nil
	}
	return nil, nil
}

func (p *PaymentStore) MarkPaid(ctx context.Context, transactionID string) (*models.BookingPayment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	payment := p.byTransactionLocked(transactionID)
	if payment == nil {
		return nil, nil
	}
	payment.PaymentStatus = models.PaymentPaid
	payment.UpdatedAt = p.s.now().UTC()
	cp := *payment
	return &cp, nil
}

func (p *PaymentStore) TotalPaid(ctx context.Context) (float64, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	var total float64
	for _, payment := range p.s.payments {
		if payment.PaymentStatus == models.PaymentPaid {
			total += payment.Amount
		}
	}
	return total, nil
}

func (p *PaymentStore) ListUnsynced(ctx context.Context) ([]models.BookingPayment, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	var ids []string
	for id, payment := range p.s.payments {
		if payment.PaymentStatus != models.PaymentPaid {
			continue
		}
		if booking, ok := p.s.bookings[payment.BookingID]; ok && booking.PayStatus != models.PaymentPaid {
			ids = append(ids, id)
		}
	}
	p.s.sortByInsertion(ids)

	payments := make([]models.BookingPayment, 0, len(ids))
	for _, id := range ids {
		payments = append(payments, *p.s.payments[id])
	}
	return payments, nil
}

// UserStore implements repository.UserStore
type UserStore struct{ s *Store }

func (u *UserStore) Create(ctx context.Context, user *models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	for _, existing := range u.s.users {
		if existing.Email == user.Email {
			return nil
		}
	}
	user.CreatedAt = u.s.stamp(user.ID)
	cp := *user
	u.s.users[user.ID] = &cp
	return nil
}

func (u *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	if user, ok := u.s.users[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, nil
}

func (u *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	for _, user := range u.s.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, nil
}
