// Package cache is an optional Redis layer for hot device state. When no
// Redis URL is configured every operation is a no-op, so callers never
// branch on availability.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fleettrack/internal/core/model"
)

const (
	deviceStatusPrefix = "fleettrack:device:"
	deviceStatusTTL    = 10 * time.Minute
	opTimeout          = 5 * time.Second
)

var (
	redisClient *redis.Client
	enabled     bool
	logger      = zap.NewNop()
)

// Initialize sets up the Redis connection if a URL is provided. Any
// failure disables caching instead of failing startup.
func Initialize(redisURL string, log *zap.Logger) {
	if log != nil {
		logger = log
	}
	if redisURL == "" {
		logger.Info("redis url not provided, caching disabled")
		enabled = false
		return
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("failed to parse redis url, caching disabled", zap.Error(err))
		enabled = false
		return
	}

	redisClient = redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("failed to connect to redis, caching disabled", zap.Error(err))
		enabled = false
		return
	}

	enabled = true
	logger.Info("redis cache initialized")
}

// Close closes the Redis connection.
func Close() {
	if redisClient != nil {
		_ = redisClient.Close()
	}
	enabled = false
}

// StoreDeviceStatus caches the device's latest presence and telemetry
// snapshot. Best effort: failures are logged, never surfaced.
func StoreDeviceStatus(device *model.Device) {
	if !enabled || device == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := json.Marshal(device)
	if err != nil {
		logger.Warn("failed to marshal device status", zap.Error(err))
		return
	}
	if err := redisClient.Set(ctx, deviceStatusPrefix+device.ID, data, deviceStatusTTL).Err(); err != nil {
		logger.Warn("failed to cache device status",
			zap.String("deviceId", device.ID), zap.Error(err))
	}
}

// GetDeviceStatus returns the cached snapshot, or nil on miss or when
// caching is disabled.
func GetDeviceStatus(deviceID string) *model.Device {
	if !enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := redisClient.Get(ctx, deviceStatusPrefix+deviceID).Bytes()
	if err != nil {
		return nil
	}
	var device model.Device
	if err := json.Unmarshal(data, &device); err != nil {
		return nil
	}
	return &device
}

// InvalidateDeviceStatus drops the cached snapshot for a device.
func InvalidateDeviceStatus(deviceID string) {
	if !enabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := redisClient.Del(ctx, deviceStatusPrefix+deviceID).Err(); err != nil {
		logger.Warn("failed to invalidate device status",
			zap.String("deviceId", deviceID), zap.Error(err))
	}
}
