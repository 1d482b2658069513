package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fleettrack/internal/core/model"
	"fleettrack/internal/core/repository"
	"fleettrack/internal/geocode"

	"go.uber.org/zap"
)

var ErrNotEnoughLocations = errors.New("trip: not enough valid locations in window")

const geocodeTimeout = 15 * time.Second

// SuggestedTrip is an unsaved segmentation result offered for user
// confirmation before a trip record is created.
type SuggestedTrip struct {
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	PointCount      int       `json:"pointCount"`
	TotalDistanceKm float64   `json:"totalDistanceKm"`
	StartLatitude   float64   `json:"startLatitude"`
	StartLongitude  float64   `json:"startLongitude"`
	EndLatitude     float64   `json:"endLatitude"`
	EndLongitude    float64   `json:"endLongitude"`
}

// TripService derives trips from location history. One segmentation run
// per device is in flight at a time; runs for different devices proceed
// independently.
type TripService struct {
	trips     repository.TripRepository
	locations repository.LocationRepository
	settings  repository.TripSettingsRepository
	geocoder  geocode.ReverseGeocoder
	logger    *zap.Logger

	mu   sync.Mutex
	runs map[string]*sync.Mutex // deviceID -> run lock
}

func NewTripService(
	trips repository.TripRepository,
	locations repository.LocationRepository,
	settings repository.TripSettingsRepository,
	geocoder geocode.ReverseGeocoder,
	logger *zap.Logger,
) *TripService {
	return &TripService{
		trips:     trips,
		locations: locations,
		settings:  settings,
		geocoder:  geocoder,
		logger:    logger,
		runs:      make(map[string]*sync.Mutex),
	}
}

func (s *TripService) runLock(deviceID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.runs[deviceID]
	if !ok {
		l = &sync.Mutex{}
		s.runs[deviceID] = l
	}
	return l
}

// settingsFor loads the user's settings, falling back to defaults when
// they are absent or the lookup fails.
func (s *TripService) settingsFor(userID string) SegmentSettings {
	ts, err := s.settings.FindByUserID(userID)
	if err != nil {
		s.logger.Warn("trip settings lookup failed, using defaults",
			zap.String("userId", userID), zap.Error(err))
		ts = nil
	}
	return settingsFrom(ts)
}

// SuggestTrips runs segmentation over a historical window without
// persisting anything.
func (s *TripService) SuggestTrips(deviceID, userID string, from, to time.Time) ([]SuggestedTrip, error) {
	st := s.settingsFor(userID)
	locs, err := s.locations.FindValidInRange(deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetching locations: %w", err)
	}
	if len(locs) < 2 {
		return nil, nil
	}

	closed, open := splitSpans(locs, st)
	if open != nil {
		// The window is historical: the trailing episode is done growing.
		closed = append(closed, *open)
	}

	var out []SuggestedTrip
	for _, sp := range closed {
		if !qualifies(sp, locs, st) {
			continue
		}
		out = append(out, SuggestedTrip{
			StartTime:       sp.startTime(locs),
			EndTime:         sp.endTime(locs),
			PointCount:      sp.End - sp.Start + 1,
			TotalDistanceKm: sp.DistanceKm,
			StartLatitude:   locs[sp.Start].Latitude,
			StartLongitude:  locs[sp.Start].Longitude,
			EndLatitude:     locs[sp.End].Latitude,
			EndLongitude:    locs[sp.End].Longitude,
		})
	}
	return out, nil
}

// CreateTrip creates a closed trip over an explicit window, bypassing
// segmentation. Endpoints are the first and last valid samples in the
// window; distance is summed over all consecutive valid samples.
func (s *TripService) CreateTrip(deviceID, userID, name string, from, to time.Time) (*model.Trip, error) {
	locs, err := s.locations.FindValidInRange(deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetching locations: %w", err)
	}
	if len(locs) < 2 {
		return nil, ErrNotEnoughLocations
	}

	first, last := locs[0], locs[len(locs)-1]
	trip := model.NewTrip(deviceID, userID, first.Timestamp)
	trip.Name = name
	end := last.Timestamp
	trip.EndTime = &end
	trip.TotalDistanceKm = windowDistanceKm(locs)
	trip.StartLocationID = first.ID
	trip.EndLocationID = last.ID

	if err := s.trips.Create(trip); err != nil {
		return nil, fmt.Errorf("creating trip: %w", err)
	}
	go s.resolveDisplayName(trip, first, last)
	return trip, nil
}

// ProcessIncremental re-derives the device's open trip from the store and
// closes or extends it. The window starts at the open trip's start (or
// just after the last closed trip), so already-closed trips are never
// revisited and re-running after new samples arrive is idempotent.
func (s *TripService) ProcessIncremental(device *model.Device) error {
	lock := s.runLock(device.ID)
	lock.Lock()
	defer lock.Unlock()

	st := s.settingsFor(device.UserID)

	open, err := s.trips.FindOpenByDeviceID(device.ID)
	if err != nil {
		return fmt.Errorf("finding open trip: %w", err)
	}

	var from time.Time
	switch {
	case open != nil:
		from = open.StartTime
	default:
		last, err := s.trips.FindLatestClosedByDeviceID(device.ID)
		if err != nil {
			return fmt.Errorf("finding last trip: %w", err)
		}
		if last != nil {
			from = last.EndTime.Add(time.Nanosecond)
		}
	}

	locs, err := s.locations.FindValidInRange(device.ID, from, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("fetching locations: %w", err)
	}
	if len(locs) == 0 {
		return nil
	}

	closed, openSpan := splitSpans(locs, st)

	// The first episode in the window continues the persisted open trip,
	// if there is one; everything after it is new.
	for _, sp := range closed {
		if open != nil {
			if qualifies(sp, locs, st) {
				applySpan(open, sp, locs)
				if err := s.trips.Update(open); err != nil {
					s.logger.Error("closing trip", zap.String("tripId", open.ID), zap.Error(err))
				} else {
					go s.resolveDisplayName(open, locs[sp.Start], locs[sp.End])
				}
			} else if err := s.trips.Delete(open.ID); err != nil {
				s.logger.Error("deleting short trip", zap.String("tripId", open.ID), zap.Error(err))
			}
			open = nil
			continue
		}
		if !qualifies(sp, locs, st) {
			continue
		}
		trip := model.NewTrip(device.ID, device.UserID, sp.startTime(locs))
		applySpan(trip, sp, locs)
		if err := s.trips.Create(trip); err != nil {
			s.logger.Error("creating trip", zap.String("tripId", trip.ID), zap.Error(err))
			continue
		}
		go s.resolveDisplayName(trip, locs[sp.Start], locs[sp.End])
	}

	if openSpan == nil {
		return nil
	}
	if open == nil {
		open = model.NewTrip(device.ID, device.UserID, openSpan.startTime(locs))
		open.StartLocationID = locs[openSpan.Start].ID
		open.TotalDistanceKm = openSpan.DistanceKm
		open.EndLocationID = locs[openSpan.End].ID
		if err := s.trips.Create(open); err != nil {
			return fmt.Errorf("creating open trip: %w", err)
		}
		return nil
	}
	// Still the same episode: absorb the new samples.
	open.TotalDistanceKm = openSpan.DistanceKm
	open.EndLocationID = locs[openSpan.End].ID
	if err := s.trips.Update(open); err != nil {
		return fmt.Errorf("updating open trip: %w", err)
	}
	return nil
}

// EndActiveTrips closes any open trip for a device at its last valid
// sample, called when the device disconnects or goes idle. Returns the
// number of trips ended.
func (s *TripService) EndActiveTrips(device *model.Device) int {
	lock := s.runLock(device.ID)
	lock.Lock()
	defer lock.Unlock()

	open, err := s.trips.FindOpenByDeviceID(device.ID)
	if err != nil {
		s.logger.Error("finding open trip", zap.String("deviceId", device.ID), zap.Error(err))
		return 0
	}
	if open == nil {
		return 0
	}

	last, err := s.locations.FindLatestValid(device.ID)
	if err != nil || last == nil {
		end := time.Now().UTC()
		open.EndTime = &end
	} else {
		end := last.Timestamp
		open.EndTime = &end
		open.EndLocationID = last.ID
	}

	locs, err := s.locations.FindValidInRange(device.ID, open.StartTime, *open.EndTime)
	if err == nil {
		open.TotalDistanceKm = windowDistanceKm(locs)
	}
	if err := s.trips.Update(open); err != nil {
		s.logger.Error("ending trip", zap.String("tripId", open.ID), zap.Error(err))
		return 0
	}
	if len(locs) > 0 {
		go s.resolveDisplayName(open, locs[0], locs[len(locs)-1])
	}
	s.logger.Info("ended active trip",
		zap.String("deviceId", device.ID), zap.String("tripId", open.ID))
	return 1
}

// applySpan copies a closed episode's boundaries and distance onto a trip.
func applySpan(trip *model.Trip, sp span, locs []*model.Location) {
	end := sp.endTime(locs)
	trip.StartTime = sp.startTime(locs)
	trip.EndTime = &end
	trip.TotalDistanceKm = sp.DistanceKm
	trip.StartLocationID = locs[sp.Start].ID
	trip.EndLocationID = locs[sp.End].ID
}

// resolveDisplayName asks the reverse geocoder for endpoint names and
// stores "start → end". Best effort: failures leave the name unset.
func (s *TripService) resolveDisplayName(trip *model.Trip, start, end *model.Location) {
	if s.geocoder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), geocodeTimeout)
	defer cancel()

	name := geocode.TripDisplayName(ctx, s.geocoder,
		start.Latitude, start.Longitude, end.Latitude, end.Longitude)
	if name == "" {
		return
	}
	trip.DisplayName = name
	if err := s.trips.Update(trip); err != nil {
		s.logger.Warn("storing trip display name", zap.String("tripId", trip.ID), zap.Error(err))
	}
}
