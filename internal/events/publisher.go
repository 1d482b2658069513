// Package events pushes live telemetry to downstream consumers over
// MQTT. Publishing is best effort: the ingest path never waits on the
// broker and never fails because of it.
package events

import (
	"fleettrack/internal/core/model"
)

// Publisher fans telemetry out to external consumers.
type Publisher interface {
	PublishLocation(deviceID string, loc *model.Location)
	PublishAlarm(deviceID string, loc *model.Location)
	Close()
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) PublishLocation(string, *model.Location) {}
func (Noop) PublishAlarm(string, *model.Location)    {}
func (Noop) Close()                                  {}
