package service

import (
	"errors"
	"fmt"
	"time"

	"fleettrack/internal/cache"
	"fleettrack/internal/core/model"
	"fleettrack/internal/core/repository"

	"go.uber.org/zap"
)

var ErrInvalidIMEI = errors.New("device: malformed IMEI")

// DeviceService is the device registry: it resolves login IMEIs to device
// records and owns cached device status.
type DeviceService struct {
	devices repository.DeviceRepository
	logger  *zap.Logger
}

func NewDeviceService(devices repository.DeviceRepository, logger *zap.Logger) *DeviceService {
	return &DeviceService{devices: devices, logger: logger}
}

// LookupOrCreate resolves an IMEI to its device, registering unknown
// devices on first login.
func (s *DeviceService) LookupOrCreate(imei string) (*model.Device, error) {
	if !model.ValidIMEI(imei) {
		return nil, ErrInvalidIMEI
	}
	device, err := s.devices.FindByIMEI(imei)
	if err != nil {
		return nil, fmt.Errorf("looking up device: %w", err)
	}
	if device != nil {
		return device, nil
	}

	device = model.NewDevice(imei)
	if err := s.devices.Create(device); err != nil {
		return nil, fmt.Errorf("registering device: %w", err)
	}
	s.logger.Info("registered new device",
		zap.String("imei", imei), zap.String("deviceId", device.ID))
	return device, nil
}

func (s *DeviceService) FindByID(id string) (*model.Device, error) {
	return s.devices.FindByID(id)
}

func (s *DeviceService) MarkOnline(device *model.Device) {
	now := time.Now().UTC()
	device.Status = model.StatusOnline
	device.LastConnect = now
	device.LastUpdate = now
	s.persistStatus(device)
}

func (s *DeviceService) MarkOffline(device *model.Device) {
	device.Status = model.StatusOffline
	device.LastUpdate = time.Now().UTC()
	s.persistStatus(device)
}

// UpdateHeartbeat applies one heartbeat's status fields as a unit.
func (s *DeviceService) UpdateHeartbeat(device *model.Device, batteryPercent, signalBars int, accOn, charging bool) {
	device.BatteryPercent = batteryPercent
	device.SignalBars = signalBars
	device.ACCOn = accOn
	device.Charging = charging
	device.Status = model.StatusOnline
	device.LastUpdate = time.Now().UTC()
	s.persistStatus(device)
}

// UpdateLastPosition records the device's last known-good position.
// Callers only pass GPS-valid samples.
func (s *DeviceService) UpdateLastPosition(device *model.Device, loc *model.Location) {
	device.LastLatitude = loc.Latitude
	device.LastLongitude = loc.Longitude
	device.Status = model.StatusOnline
	device.LastUpdate = time.Now().UTC()
	s.persistStatus(device)
}

func (s *DeviceService) persistStatus(device *model.Device) {
	if err := s.devices.Update(device); err != nil {
		s.logger.Error("updating device status",
			zap.String("deviceId", device.ID), zap.Error(err))
		return
	}
	cache.StoreDeviceStatus(device)
}
