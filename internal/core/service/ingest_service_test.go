package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleettrack/internal/core/model"
	"fleettrack/internal/core/repository"
	"fleettrack/internal/protocol/gt06"
)

type capturePublisher struct {
	mu        sync.Mutex
	locations []*model.Location
	alarms    []*model.Location
}

func (p *capturePublisher) PublishLocation(_ string, loc *model.Location) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locations = append(p.locations, loc)
}

func (p *capturePublisher) PublishAlarm(_ string, loc *model.Location) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alarms = append(p.alarms, loc)
}

func (p *capturePublisher) Close() {}

type ingestFixture struct {
	svc       *IngestService
	devices   repository.DeviceRepository
	locations repository.LocationRepository
	publisher *capturePublisher
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		devices:   repository.NewInMemoryDeviceRepository(),
		locations: repository.NewInMemoryLocationRepository(),
		publisher: &capturePublisher{},
	}
	logger := zap.NewNop()
	deviceService := NewDeviceService(f.devices, logger)
	tripService := NewTripService(
		repository.NewInMemoryTripRepository(), f.locations,
		repository.NewInMemoryTripSettingsRepository(), nil, logger)
	f.svc = NewIngestService(deviceService, f.locations, tripService, f.publisher, 3, logger)
	return f
}

func (f *ingestFixture) storedLocations(t *testing.T, deviceID string) []*model.Location {
	t.Helper()
	locs, err := f.locations.FindInRange(deviceID, time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return locs
}

func locationPacket(sats uint8, valid bool) *gt06.LocationPacket {
	return &gt06.LocationPacket{
		Timestamp:  time.Now().UTC().Add(-time.Minute).Truncate(time.Second),
		Latitude:   -6.2088,
		Longitude:  106.8456,
		Speed:      42,
		Course:     185,
		Satellites: sats,
		GPSValid:   valid,
	}
}

func TestAuthenticateRegistersDevice(t *testing.T) {
	f := newIngestFixture(t)

	device, err := f.svc.Authenticate("0355951094107389")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnline, device.Status)
	assert.Equal(t, "Tracker-107389", device.Name)

	// Second login resolves the same record.
	again, err := f.svc.Authenticate("0355951094107389")
	require.NoError(t, err)
	assert.Equal(t, device.ID, again.ID)

	_, err = f.svc.Authenticate("not-an-imei")
	assert.ErrorIs(t, err, ErrInvalidIMEI)
}

func TestHandleLocationValidSample(t *testing.T) {
	f := newIngestFixture(t)
	device, err := f.svc.Authenticate("0355951094107389")
	require.NoError(t, err)

	f.svc.HandleLocation(device, locationPacket(8, true))

	locs := f.storedLocations(t, device.ID)
	require.Len(t, locs, 1)
	assert.True(t, locs[0].GPSValid)
	assert.InDelta(t, -6.2088, locs[0].Latitude, 1e-6)

	stored, err := f.devices.FindByID(device.ID)
	require.NoError(t, err)
	assert.InDelta(t, -6.2088, stored.LastLatitude, 1e-6)
	assert.InDelta(t, 106.8456, stored.LastLongitude, 1e-6)

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	assert.Len(t, f.publisher.locations, 1)
}

func TestHandleLocationRejectsWeakFix(t *testing.T) {
	f := newIngestFixture(t)
	device, err := f.svc.Authenticate("0355951094107389")
	require.NoError(t, err)

	// GPS-valid bit set but below the satellite floor: the sample is
	// kept for forensics, flagged invalid, and never moves the device.
	f.svc.HandleLocation(device, locationPacket(2, true))

	locs := f.storedLocations(t, device.ID)
	require.Len(t, locs, 1)
	assert.False(t, locs[0].GPSValid)

	stored, err := f.devices.FindByID(device.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.LastLatitude)
	assert.Zero(t, stored.LastLongitude)
}

func TestHandleAlarm(t *testing.T) {
	f := newIngestFixture(t)
	device, err := f.svc.Authenticate("0355951094107389")
	require.NoError(t, err)

	pkt := &gt06.AlarmPacket{
		LocationPacket: *locationPacket(9, true),
		AlarmType:      "sos",
	}
	f.svc.HandleAlarm(device, pkt)

	locs := f.storedLocations(t, device.ID)
	require.Len(t, locs, 1)
	assert.True(t, locs[0].IsAlarm)
	assert.Equal(t, "sos", locs[0].AlarmType)

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	require.Len(t, f.publisher.alarms, 1)
	assert.Equal(t, "sos", f.publisher.alarms[0].AlarmType)
}

func TestHandleHeartbeat(t *testing.T) {
	f := newIngestFixture(t)
	device, err := f.svc.Authenticate("0355951094107389")
	require.NoError(t, err)

	f.svc.HandleHeartbeat(device, &gt06.HeartbeatPacket{
		BatteryPercent: 60,
		SignalBars:     3,
		ACCOn:          true,
		Charging:       true,
	})

	stored, err := f.devices.FindByID(device.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, stored.BatteryPercent)
	assert.Equal(t, 3, stored.SignalBars)
	assert.True(t, stored.ACCOn)
	assert.True(t, stored.Charging)
}

func TestDeviceOffline(t *testing.T) {
	f := newIngestFixture(t)
	device, err := f.svc.Authenticate("0355951094107389")
	require.NoError(t, err)

	f.svc.DeviceOffline(device)

	stored, err := f.devices.FindByID(device.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOffline, stored.Status)
}
