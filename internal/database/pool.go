package database

import (
	"context"
	"log/slog"
	"time"
)

type PoolStats struct {
	MaxOpenConns      int           `json:"max_open_connections"`
	OpenConns         int           `json:"open_connections"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

type HealthCheck struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Stats        PoolStats     `json:"stats"`
	Timestamp    time.Time     `json:"timestamp"`
}

func (h HealthCheck) Healthy() bool {
	return h.Status == "healthy"
}

func (db *DB) GetPoolStats() PoolStats {
	stats := db.Stats()
	return PoolStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (db *DB) HealthCheck(ctx context.Context) HealthCheck {
	start := time.Now()
	healthCheck := HealthCheck{
		Timestamp: start,
		Stats:     db.GetPoolStats(),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := db.PingContext(pingCtx)
	healthCheck.ResponseTime = time.Since(start)

	if err != nil {
		healthCheck.Status = "unhealthy"
		healthCheck.Error = err.Error()
		slog.Error("Database health check failed", "error", err)
	} else {
		healthCheck.Status = "healthy"
		warnOnPoolPressure(healthCheck.Stats)
	}

	return healthCheck
}

func warnOnPoolPressure(stats PoolStats) {
	if stats.MaxOpenConns > 0 && stats.InUse > int(float64(stats.MaxOpenConns)*0.9) {
		slog.Warn("High connection usage detected",
			"in_use", stats.InUse, "max_open", stats.MaxOpenConns)
	}

	if stats.WaitCount > 0 && stats.WaitDuration > time.Second {
		slog.Warn("High database wait times detected",
			"wait_count", stats.WaitCount, "wait_duration", stats.WaitDuration)
	}
}
