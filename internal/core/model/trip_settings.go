package model

import "github.com/google/uuid"

// Segmentation defaults, applied when a user has no stored settings or the
// stored values are unusable.
const (
	DefaultStopSplitsTripAfterMinutes = 60
	DefaultMinimumTripDurationMinutes = 5
	DefaultStopSpeedThresholdKmh      = 5.0
)

// TripSettings are per-user knobs for trip segmentation.
type TripSettings struct {
	ID     string `bson:"_id" json:"id"`
	UserID string `bson:"userId" json:"userId"`

	// A stop lasting at least this many minutes splits the timeline into
	// two trips; shorter stops are absorbed.
	StopSplitsTripAfterMinutes int `bson:"stopSplitsTripAfterMinutes" json:"stopSplitsTripAfterMinutes"`

	// Trips shorter than this many minutes are discarded.
	MinimumTripDurationMinutes int `bson:"minimumTripDurationMinutes" json:"minimumTripDurationMinutes"`

	// Speeds at or below this are "stopped" for segmentation purposes.
	StopSpeedThresholdKmh float64 `bson:"stopSpeedThresholdKmh" json:"stopSpeedThresholdKmh"`
}

func DefaultTripSettings(userID string) *TripSettings {
	return &TripSettings{
		ID:                         uuid.NewString(),
		UserID:                     userID,
		StopSplitsTripAfterMinutes: DefaultStopSplitsTripAfterMinutes,
		MinimumTripDurationMinutes: DefaultMinimumTripDurationMinutes,
		StopSpeedThresholdKmh:      DefaultStopSpeedThresholdKmh,
	}
}
