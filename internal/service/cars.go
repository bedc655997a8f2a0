package service

import (
	"context"
	"math"
	"strings"
	"time"

	apperrors "carrental/internal/errors"
	"carrental/internal/logger"
	"carrental/internal/models"
	"carrental/internal/repository"

	"github.com/google/uuid"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 4
)

type CarService struct {
	cars     repository.CarStore
	cache    CarCache
	searcher CarSearcher
	events   *notifier
}

func NewCarService(cars repository.CarStore, cache CarCache, searcher CarSearcher, events *notifier) *CarService {
	return &CarService{
		cars:     cars,
		cache:    cache,
		searcher: searcher,
		events:   events,
	}
}

func (s *CarService) Create(ctx context.Context, req *models.CreateCarRequest) (*models.Car, error) {
	if strings.TrimSpace(req.Name) == "" || req.PricePerHour <= 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidRequest, "name and a positive pricePerHour are required")
	}

	car := &models.Car{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Image:        req.Image,
		Description:  req.Description,
		Color:        req.Color,
		IsElectric:   req.IsElectric.Bool(),
		Features:     req.Features,
		PricePerHour: req.PricePerHour,
		Manufacturer: req.Manufacturer,
		VehicleType:  req.VehicleType,
		Status:       models.CarAvailable,
	}
	if car.Features == nil {
		car.Features = []string{}
	}

	if err := s.cars.Create(ctx, car); err != nil {
		return nil, apperrors.Upstream("create car", err)
	}

	logger.WithContext(ctx).Info("Car created", "car_id", car.ID, "name", car.Name)
	s.events.carChanged(ctx, car.ID, "created")
	return car, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

// List returns one page of non-deleted cars. A page past the last one comes back
// empty with OutOfRange set.
func (s *CarService) List(ctx context.Context, filter models.CarFilter, page, pageSize int) (*models.CarPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	var gen int64
	if s.cache != nil {
		cached, g, ok := s.cache.GetPage(ctx, filter, page, pageSize)
		if ok {
			return cached, nil
		}
		gen = g
	}

	cars, total, err := s.cars.List(ctx, filter, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, apperrors.Upstream("list cars", err)
	}

	result := &models.CarPage{
		Cars:        cars,
		Total:       total,
		TotalPages:  models.TotalPages(total, pageSize),
		CurrentPage: page,
	}

	if s.cache != nil {
		s.cache.SetPage(ctx, gen, filter, page, pageSize, result)
	}
	return result, nil
}

// Search runs a full-text query. Without a search index it falls back to a
// case-insensitive substring match over the catalogue.
func (s *CarService) Search(ctx context.Context, query string, page, pageSize int) (*models.CarPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	if s.searcher != nil {
		cars, total, err := s.searcher.SearchCars(ctx, query, page, pageSize)
		if err != nil {
			return nil, apperrors.Upstream("search cars", err)
		}
		return &models.CarPage{
			Cars:        cars,
			Total:       total,
			TotalPages:  models.TotalPages(total, pageSize),
			CurrentPage: page,
		}, nil
	}

	all, _, err := s.cars.List(ctx, models.CarFilter{}, 0, math.MaxInt32)
	if err != nil {
		return nil, apperrors.Upstream("search cars", err)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	matched := []models.Car{}
	for _, car := range all {
		if needle == "" || carMatches(&car, needle) {
			matched = append(matched, car)
		}
	}

	result := &models.CarPage{
		Cars:        []models.Car{},
		Total:       len(matched),
		TotalPages:  models.TotalPages(len(matched), pageSize),
		CurrentPage: page,
	}
	if start := (page - 1) * pageSize; start < len(matched) {
		result.Cars = matched[start:min(start+pageSize, len(matched))]
	}
	return result, nil
}

func carMatches(car *models.Car, needle string) bool {
	for _, field := range []string{car.Name, car.Description, car.Manufacturer, car.VehicleType} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (s *CarService) Get(ctx context.Context, id string) (*models.Car, error) {
	if !isID(id) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "car %s not found", id)
	}
	var gen int64
	if s.cache != nil {
		car, g, ok := s.cache.GetCar(ctx, id)
		if ok {
			return car, nil
		}
		gen = g
	}

	car, err := s.cars.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Upstream("get car", err)
	}
	if car == nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "car %s not found", id)
	}

	if s.cache != nil {
		s.cache.SetCar(ctx, gen, car)
	}
	return car, nil
}

func (s *CarService) Update(ctx context.Context, id string, req *models.UpdateCarRequest) (*models.Car, error) {
	if req.Empty() {
		return nil, apperrors.ErrNoFieldsProvided
	}
	if !isID(id) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "car %s not found", id)
	}

	car, err := s.cars.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Upstream("get car", err)
	}
	if car == nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "car %s not found", id)
	}

	req.Apply(car)
	if car.PricePerHour <= 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidRequest, "pricePerHour must be positive")
	}

	ok, err := s.cars.Update(ctx, car)
	if err != nil {
		return nil, apperrors.Upstream("update car", err)
	}
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "car %s not found", id)
	}

	s.events.carChanged(ctx, id, "updated")
	return car, nil
}

// SetStatus is an idempotent status write for the booking flows. Create, cancel and
// return do the same write inside their own transactions.
func (s *CarService) SetStatus(ctx context.Context, id string, status models.CarStatus) error {
	if !isID(id) {
		return apperrors.Wrap(apperrors.ErrNotFound, "car %s not found", id)
	}
	if err := s.cars.SetStatus(ctx, id, status); err != nil {
		return apperrors.Upstream("set car status", err)
	}
	s.events.carChanged(ctx, id, "status")
	return nil
}

// SoftDelete hides the car from listings and lookups. Bookings that reference it are kept.
func (s *CarService) SoftDelete(ctx context.Context, id string) (*models.Car, error) {
	if !isID(id) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "car %s not found", id)
	}
	car, err := s.cars.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Upstream("get car", err)
	}
	if car == nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "car %s not found", id)
	}

	ok, err := s.cars.SoftDelete(ctx, id)
	if err != nil {
		return nil, apperrors.Upstream("delete car", err)
	}
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "car %s not found", id)
	}

	car.IsDeleted = true
	car.UpdatedAt = time.Now().UTC()
	logger.WithContext(ctx).Info("Car deleted", "car_id", id)
	s.events.carChanged(ctx, id, "deleted")
	return car, nil
}
