package service

import (
	"fleettrack/internal/core/model"
	"fleettrack/internal/core/repository"
	"fleettrack/internal/events"
	"fleettrack/internal/protocol/gt06"

	"go.uber.org/zap"
)

// IngestService is the location ingest pipeline: it validates and persists
// position and alarm samples, keeps cached device status current, and
// kicks incremental trip segmentation. It is the protocol layer's packet
// sink (it satisfies the TCP server's Handler interface).
type IngestService struct {
	devices       *DeviceService
	locations     repository.LocationRepository
	trips         *TripService
	publisher     events.Publisher
	minSatellites uint8
	logger        *zap.Logger
}

func NewIngestService(
	devices *DeviceService,
	locations repository.LocationRepository,
	trips *TripService,
	publisher events.Publisher,
	minSatellites uint8,
	logger *zap.Logger,
) *IngestService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &IngestService{
		devices:       devices,
		locations:     locations,
		trips:         trips,
		publisher:     publisher,
		minSatellites: minSatellites,
		logger:        logger,
	}
}

// Authenticate resolves a login packet's IMEI and marks the device online.
func (s *IngestService) Authenticate(imei string) (*model.Device, error) {
	device, err := s.devices.LookupOrCreate(imei)
	if err != nil {
		return nil, err
	}
	s.devices.MarkOnline(device)
	return device, nil
}

// HandleLocation persists one position sample. Samples failing GPS
// validation are stored flagged but never move the device's last known
// position. A failed write is contained to this sample.
func (s *IngestService) HandleLocation(device *model.Device, pkt *gt06.LocationPacket) {
	loc := s.sampleFrom(device, pkt)
	s.store(device, loc)
}

// HandleAlarm persists an alarm as a location sample carrying the alarm
// flag and type.
func (s *IngestService) HandleAlarm(device *model.Device, pkt *gt06.AlarmPacket) {
	loc := s.sampleFrom(device, &pkt.LocationPacket)
	loc.IsAlarm = true
	loc.AlarmType = pkt.AlarmType
	s.logger.Warn("device alarm",
		zap.String("deviceId", device.ID),
		zap.String("alarmType", pkt.AlarmType),
		zap.Float64("lat", loc.Latitude),
		zap.Float64("lon", loc.Longitude))
	s.store(device, loc)
	s.publisher.PublishAlarm(device.ID, loc)
}

// HandleHeartbeat applies the heartbeat's status fields to the device as
// one atomic update.
func (s *IngestService) HandleHeartbeat(device *model.Device, pkt *gt06.HeartbeatPacket) {
	s.devices.UpdateHeartbeat(device, pkt.BatteryPercent, pkt.SignalBars, pkt.ACCOn, pkt.Charging)
	s.logger.Debug("heartbeat",
		zap.String("deviceId", device.ID),
		zap.Int("batteryPercent", pkt.BatteryPercent),
		zap.Int("signalBars", pkt.SignalBars),
		zap.Bool("accOn", pkt.ACCOn))
}

// DeviceOffline marks the device offline and finalizes any open trip.
func (s *IngestService) DeviceOffline(device *model.Device) {
	s.devices.MarkOffline(device)
	s.trips.EndActiveTrips(device)
}

func (s *IngestService) sampleFrom(device *model.Device, pkt *gt06.LocationPacket) *model.Location {
	loc := model.NewLocation(device.ID, pkt.Latitude, pkt.Longitude)
	loc.Speed = pkt.Speed
	loc.Course = pkt.Course
	loc.Satellites = pkt.Satellites
	loc.Timestamp = pkt.Timestamp
	loc.GPSValid = pkt.GPSValid && pkt.Satellites >= s.minSatellites
	return loc
}

func (s *IngestService) store(device *model.Device, loc *model.Location) {
	if err := s.locations.Create(loc); err != nil {
		// Isolated per sample so one failed write cannot halt ingest.
		s.logger.Error("persisting location",
			zap.String("deviceId", device.ID), zap.Error(err))
		return
	}
	if loc.GPSValid {
		s.devices.UpdateLastPosition(device, loc)
	}
	s.publisher.PublishLocation(device.ID, loc)

	dev := *device
	go func() {
		if err := s.trips.ProcessIncremental(&dev); err != nil {
			s.logger.Error("incremental segmentation",
				zap.String("deviceId", dev.ID), zap.Error(err))
		}
	}()
}
