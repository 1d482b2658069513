package repository

import (
	"sort"
	"sync"
	"time"

	"fleettrack/internal/core/model"
)

type inMemoryLocationRepository struct {
	locations []*model.Location
	mutex     sync.RWMutex
}

func NewInMemoryLocationRepository() LocationRepository {
	return &inMemoryLocationRepository{}
}

func (r *inMemoryLocationRepository) Create(location *model.Location) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	clone := *location
	r.locations = append(r.locations, &clone)
	return nil
}

func (r *inMemoryLocationRepository) FindInRange(deviceID string, from, to time.Time) ([]*model.Location, error) {
	return r.filter(deviceID, from, to, false), nil
}

func (r *inMemoryLocationRepository) FindValidInRange(deviceID string, from, to time.Time) ([]*model.Location, error) {
	return r.filter(deviceID, from, to, true), nil
}

func (r *inMemoryLocationRepository) filter(deviceID string, from, to time.Time, validOnly bool) []*model.Location {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*model.Location
	for _, l := range r.locations {
		if l.DeviceID != deviceID {
			continue
		}
		if validOnly && !l.GPSValid {
			continue
		}
		if l.Timestamp.Before(from) || l.Timestamp.After(to) {
			continue
		}
		clone := *l
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

func (r *inMemoryLocationRepository) FindLatestValid(deviceID string) (*model.Location, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var latest *model.Location
	for _, l := range r.locations {
		if l.DeviceID != deviceID || !l.GPSValid {
			continue
		}
		if latest == nil || l.Timestamp.After(latest.Timestamp) {
			latest = l
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}
