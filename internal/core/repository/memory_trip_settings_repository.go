package repository

import (
	"sync"

	"fleettrack/internal/core/model"
)

type inMemoryTripSettingsRepository struct {
	settings map[string]*model.TripSettings
	mutex    sync.RWMutex
}

func NewInMemoryTripSettingsRepository() TripSettingsRepository {
	return &inMemoryTripSettingsRepository{
		settings: make(map[string]*model.TripSettings),
	}
}

func (r *inMemoryTripSettingsRepository) FindByUserID(userID string) (*model.TripSettings, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if s, exists := r.settings[userID]; exists {
		clone := *s
		return &clone, nil
	}
	return nil, nil
}

func (r *inMemoryTripSettingsRepository) Upsert(settings *model.TripSettings) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	clone := *settings
	r.settings[settings.UserID] = &clone
	return nil
}
