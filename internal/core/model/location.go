package model

import (
	"time"

	"github.com/google/uuid"
)

// Location is one persisted position or alarm sample. Samples are
// append-only: once stored they are never mutated.
type Location struct {
	ID         string    `bson:"_id" json:"id"`
	DeviceID   string    `bson:"deviceId" json:"deviceId"`
	Latitude   float64   `bson:"latitude" json:"latitude"`
	Longitude  float64   `bson:"longitude" json:"longitude"`
	Speed      float64   `bson:"speed" json:"speed"` // km/h
	Course     float64   `bson:"course" json:"course"`
	Satellites uint8     `bson:"satellites" json:"satellites"`
	GPSValid   bool      `bson:"gpsValid" json:"gpsValid"`
	IsAlarm    bool      `bson:"isAlarm" json:"isAlarm"`
	AlarmType  string    `bson:"alarmType,omitempty" json:"alarmType,omitempty"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`   // device clock
	ReceivedAt time.Time `bson:"receivedAt" json:"receivedAt"` // server clock
}

func NewLocation(deviceID string, lat, lon float64) *Location {
	return &Location{
		ID:         uuid.NewString(),
		DeviceID:   deviceID,
		Latitude:   lat,
		Longitude:  lon,
		ReceivedAt: time.Now().UTC(),
	}
}
