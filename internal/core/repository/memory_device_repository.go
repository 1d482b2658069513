package repository

import (
	"sync"

	"fleettrack/internal/core/model"
)

type inMemoryDeviceRepository struct {
	devices map[string]*model.Device
	mutex   sync.RWMutex
}

func NewInMemoryDeviceRepository() DeviceRepository {
	return &inMemoryDeviceRepository{
		devices: make(map[string]*model.Device),
	}
}

func (r *inMemoryDeviceRepository) Create(device *model.Device) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	clone := *device
	r.devices[device.ID] = &clone
	return nil
}

func (r *inMemoryDeviceRepository) Update(device *model.Device) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	clone := *device
	r.devices[device.ID] = &clone
	return nil
}

func (r *inMemoryDeviceRepository) FindByID(id string) (*model.Device, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if device, exists := r.devices[id]; exists {
		clone := *device
		return &clone, nil
	}
	return nil, nil
}

func (r *inMemoryDeviceRepository) FindByIMEI(imei string) (*model.Device, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	for _, device := range r.devices {
		if device.IMEI == imei {
			clone := *device
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *inMemoryDeviceRepository) FindAll() ([]*model.Device, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	result := make([]*model.Device, 0, len(r.devices))
	for _, device := range r.devices {
		clone := *device
		result = append(result, &clone)
	}
	return result, nil
}
