package server

import (
	"sync"
	"time"
)

// SessionInfo is a read-only snapshot of one live session, safe to hand
// out without holding registry locks.
type SessionInfo struct {
	IMEI         string    `json:"imei"`
	DeviceID     string    `json:"deviceId"`
	RemoteAddr   string    `json:"remoteAddr"`
	State        string    `json:"state"`
	LastActivity time.Time `json:"lastActivity"`
}

// Registry maps bound device identities to their live sessions. It is the
// only state shared across connection goroutines; every mutation happens
// under one lock, reads take snapshots.
type Registry struct {
	mu       sync.RWMutex
	byIMEI   map[string]*Session
	byDevice map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		byIMEI:   make(map[string]*Session),
		byDevice: make(map[string]*Session),
	}
}

// bind installs s as the live session for its IMEI and device, returning
// the session it displaced, if any. Last writer wins.
func (r *Registry) bind(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.byIMEI[s.imei]
	if old == s {
		return nil
	}
	r.byIMEI[s.imei] = s
	r.byDevice[s.device.ID] = s
	return old
}

// unbind removes s if it is still the live session for its identity, and
// reports whether it was.
func (r *Registry) unbind(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byIMEI[s.imei] != s {
		return false
	}
	delete(r.byIMEI, s.imei)
	delete(r.byDevice, s.device.ID)
	return true
}

// Find returns the live Authenticated session for a device id, or nil.
func (r *Registry) Find(deviceID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byDevice[deviceID]
}

// IsOnline reports whether a device has a live session.
func (r *Registry) IsOnline(deviceID string) bool {
	return r.Find(deviceID) != nil
}

// Count returns the number of bound sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIMEI)
}

// Snapshot returns the state of every bound session.
func (r *Registry) Snapshot() []SessionInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.byIMEI))
	for _, s := range r.byIMEI {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	return infos
}
