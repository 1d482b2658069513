package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleettrack/internal/core/model"
)

func setupCache(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	Initialize("redis://"+mr.Addr(), nil)
	t.Cleanup(Close)
	require.True(t, enabled)
	return mr
}

func TestDeviceStatusRoundTrip(t *testing.T) {
	setupCache(t)

	device := &model.Device{
		ID:             "dev-1",
		IMEI:           "0355951094107389",
		Status:         model.StatusOnline,
		BatteryPercent: 80,
		LastLatitude:   -6.2,
		LastLongitude:  106.8,
		LastUpdate:     time.Now().UTC().Truncate(time.Second),
	}
	StoreDeviceStatus(device)

	got := GetDeviceStatus("dev-1")
	require.NotNil(t, got)
	assert.Equal(t, device.IMEI, got.IMEI)
	assert.Equal(t, device.Status, got.Status)
	assert.Equal(t, device.BatteryPercent, got.BatteryPercent)
}

func TestGetDeviceStatusMiss(t *testing.T) {
	setupCache(t)
	assert.Nil(t, GetDeviceStatus("missing"))
}

func TestInvalidateDeviceStatus(t *testing.T) {
	setupCache(t)

	StoreDeviceStatus(&model.Device{ID: "dev-2", IMEI: "0355951094107389"})
	require.NotNil(t, GetDeviceStatus("dev-2"))

	InvalidateDeviceStatus("dev-2")
	assert.Nil(t, GetDeviceStatus("dev-2"))
}

func TestDisabledCacheIsNoop(t *testing.T) {
	Initialize("", nil)
	StoreDeviceStatus(&model.Device{ID: "dev-3"})
	assert.Nil(t, GetDeviceStatus("dev-3"))
}

func TestStatusExpires(t *testing.T) {
	mr := setupCache(t)

	StoreDeviceStatus(&model.Device{ID: "dev-4"})
	mr.FastForward(deviceStatusTTL + time.Second)
	assert.Nil(t, GetDeviceStatus("dev-4"))
}
