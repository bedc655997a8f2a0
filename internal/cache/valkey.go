package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"carrental/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	carKeyPrefix  = "cars:car:"
	pageKeyPrefix = "cars:page:"
	generationKey = "cars:generation"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ValkeyClient caches car details and listing pages. Every key embeds a
// generation number; bumping it on any car change orphans every cached entry.
// Readers take the generation before loading from the store and write back under
// it, so a load that raced an invalidation lands under a dead key.
// Cache failures are logged and treated as misses.
type ValkeyClient struct {
	client *redis.Client
	ttl    time.Duration
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return newValkeyClient(rdb, cfg.TTL), nil
}

func newValkeyClient(rdb *redis.Client, ttl time.Duration) *ValkeyClient {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ValkeyClient{client: rdb, ttl: ttl}
}

func (v *ValkeyClient) getJSON(ctx context.Context, key string, dst any) bool {
	data, err := v.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Cache lookup failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		slog.Warn("Dropping undecodable cache entry", "key", key, "error", err)
		v.client.Del(ctx, key)
		return false
	}
	return true
}

func (v *ValkeyClient) setJSON(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("Failed to encode cache entry", "key", key, "error", err)
		return
	}
	if err := v.client.Set(ctx, key, data, v.ttl).Err(); err != nil {
		slog.Warn("Cache write failed", "key", key, "error", err)
	}
}

// NoGeneration marks a lookup that could not read the generation; writes under it are dropped.
const NoGeneration int64 = -1

func (v *ValkeyClient) generation(ctx context.Context) int64 {
	gen, err := v.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0
	}
	if err != nil {
		slog.Warn("Cache generation lookup failed", "error", err)
		return NoGeneration
	}
	return gen
}

// GetCar returns the cached car and the generation to write a fresh copy under on a miss
func (v *ValkeyClient) GetCar(ctx context.Context, id string) (*models.Car, int64, bool) {
	gen := v.generation(ctx)
	if gen == NoGeneration {
		return nil, gen, false
	}

	var car models.Car
	if !v.getJSON(ctx, CarKey(gen, id), &car) {
		return nil, gen, false
	}
	return &car, gen, true
}

func (v *ValkeyClient) SetCar(ctx context.Context, gen int64, car *models.Car) {
	if gen == NoGeneration {
		return
	}
	v.setJSON(ctx, CarKey(gen, car.ID), car)
}

func (v *ValkeyClient) GetPage(ctx context.Context, filter models.CarFilter, page, pageSize int) (*models.CarPage, int64, bool) {
	gen := v.generation(ctx)
	if gen == NoGeneration {
		return nil, gen, false
	}

	var result models.CarPage
	if !v.getJSON(ctx, PageKey(gen, filter, page, pageSize), &result) {
		return nil, gen, false
	}
	return &result, gen, true
}

func (v *ValkeyClient) SetPage(ctx context.Context, gen int64, filter models.CarFilter, page, pageSize int, result *models.CarPage) {
	if gen == NoGeneration {
		return
	}
	v.setJSON(ctx, PageKey(gen, filter, page, pageSize), result)
}

// Invalidate moves to a new generation, which orphans the car and every cached
// listing page. Orphans expire with their TTL.
func (v *ValkeyClient) Invalidate(ctx context.Context, carID string) {
	if err := v.client.Incr(ctx, generationKey).Err(); err != nil {
		slog.Error("Cache invalidation failed", "car_id", carID, "error", err)
	}
}

func (v *ValkeyClient) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}

// CarKey is the detail key of a car within a generation
func CarKey(gen int64, id string) string {
	return fmt.Sprintf("%s%d:%s", carKeyPrefix, gen, id)
}

// PageKey renders a listing request as a cache key. Filter values are sorted so
// equivalent filters share a key.
func PageKey(gen int64, filter models.CarFilter, page, pageSize int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%d:p%d:s%d", pageKeyPrefix, gen, page, pageSize)
	fmt.Fprintf(&b, ":m=%s", sortedJoin(filter.Manufacturers))
	fmt.Fprintf(&b, ":t=%s", sortedJoin(filter.VehicleTypes))
	if filter.PriceRange != nil {
		fmt.Fprintf(&b, ":r=%g-%g", filter.PriceRange.Min, filter.PriceRange.Max)
	}
	return b.String()
}

func sortedJoin(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
