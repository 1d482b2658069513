package repository

import (
	"sort"
	"sync"
	"time"

	"fleettrack/internal/core/model"
)

type inMemoryTripRepository struct {
	trips map[string]*model.Trip
	mutex sync.RWMutex
}

func NewInMemoryTripRepository() TripRepository {
	return &inMemoryTripRepository{
		trips: make(map[string]*model.Trip),
	}
}

func (r *inMemoryTripRepository) Create(trip *model.Trip) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	clone := *trip
	r.trips[trip.ID] = &clone
	return nil
}

func (r *inMemoryTripRepository) Update(trip *model.Trip) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	trip.UpdatedAt = time.Now().UTC()
	clone := *trip
	r.trips[trip.ID] = &clone
	return nil
}

func (r *inMemoryTripRepository) Delete(id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.trips, id)
	return nil
}

func (r *inMemoryTripRepository) FindByID(id string) (*model.Trip, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if trip, exists := r.trips[id]; exists {
		clone := *trip
		return &clone, nil
	}
	return nil, nil
}

func (r *inMemoryTripRepository) FindOpenByDeviceID(deviceID string) (*model.Trip, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	for _, trip := range r.trips {
		if trip.DeviceID == deviceID && trip.Open() {
			clone := *trip
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTripRepository) FindLatestClosedByDeviceID(deviceID string) (*model.Trip, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var latest *model.Trip
	for _, trip := range r.trips {
		if trip.DeviceID != deviceID || trip.Open() {
			continue
		}
		if latest == nil || trip.EndTime.After(*latest.EndTime) {
			latest = trip
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (r *inMemoryTripRepository) FindByDeviceID(deviceID string) ([]*model.Trip, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var result []*model.Trip
	for _, trip := range r.trips {
		if trip.DeviceID == deviceID {
			clone := *trip
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}
