package model

import (
	"time"

	"github.com/google/uuid"
)

// Trip is a bounded movement episode derived from a device's samples.
// EndTime is nil while the trip is still open; a closed trip is immutable
// apart from the asynchronously resolved display name.
type Trip struct {
	ID              string     `bson:"_id" json:"id"`
	DeviceID        string     `bson:"deviceId" json:"deviceId"`
	UserID          string     `bson:"userId,omitempty" json:"userId,omitempty"`
	Name            string     `bson:"name,omitempty" json:"name,omitempty"`
	DisplayName     string     `bson:"displayName,omitempty" json:"displayName,omitempty"`
	StartTime       time.Time  `bson:"startTime" json:"startTime"`
	EndTime         *time.Time `bson:"endTime,omitempty" json:"endTime,omitempty"`
	TotalDistanceKm float64    `bson:"totalDistanceKm" json:"totalDistanceKm"`
	StartLocationID string     `bson:"startLocationId,omitempty" json:"startLocationId,omitempty"`
	EndLocationID   string     `bson:"endLocationId,omitempty" json:"endLocationId,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updatedAt"`
}

func NewTrip(deviceID, userID string, start time.Time) *Trip {
	now := time.Now().UTC()
	return &Trip{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		UserID:    userID,
		StartTime: start,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Open reports whether the trip is still accumulating samples.
func (t *Trip) Open() bool {
	return t.EndTime == nil
}
