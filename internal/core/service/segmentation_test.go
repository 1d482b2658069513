package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleettrack/internal/core/model"
)

var segBase = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// sampleAt builds a valid GPS sample minuteOffset minutes past segBase,
// stepping north ~1.11km per index so distances are predictable.
func sampleAt(idx int, minuteOffset int, speed float64) *model.Location {
	return &model.Location{
		ID:        "loc-" + string(rune('a'+idx)),
		DeviceID:  "dev-1",
		Latitude:  -6.2 + float64(idx)*0.01,
		Longitude: 106.8,
		Speed:     speed,
		GPSValid:  true,
		Timestamp: segBase.Add(time.Duration(minuteOffset) * time.Minute),
	}
}

func testSettings(stopAfter, minDur time.Duration) SegmentSettings {
	return SegmentSettings{
		StopSplitAfter:  stopAfter,
		MinimumDuration: minDur,
		StopSpeedKmh:    5.0,
	}
}

func TestSplitSpansContinuousMovement(t *testing.T) {
	var locs []*model.Location
	for i := 0; i < 5; i++ {
		locs = append(locs, sampleAt(i, i, 20))
	}

	closed, open := splitSpans(locs, testSettings(3*time.Minute, 0))
	assert.Empty(t, closed)
	require.NotNil(t, open)
	assert.Equal(t, 0, open.Start)
	assert.Equal(t, 4, open.End)
	assert.InDelta(t, windowDistanceKm(locs), open.DistanceKm, 1e-9)
}

func TestSplitSpansLongStopSplits(t *testing.T) {
	speeds := []float64{20, 20, 3, 3, 3, 3, 20}
	var locs []*model.Location
	for i, v := range speeds {
		locs = append(locs, sampleAt(i, i, v))
	}

	closed, open := splitSpans(locs, testSettings(3*time.Minute, 0))
	require.Len(t, closed, 1)
	assert.Equal(t, 0, closed[0].Start)
	assert.Equal(t, 1, closed[0].End)
	require.NotNil(t, open)
	assert.Equal(t, 6, open.Start)
}

func TestSplitSpansShortStopAbsorbed(t *testing.T) {
	// One moving sample after a sub-threshold stop cancels the stop
	// timer: the whole sequence stays a single episode.
	speeds := []float64{20, 20, 3, 3, 20}
	var locs []*model.Location
	for i, v := range speeds {
		locs = append(locs, sampleAt(i, i, v))
	}

	closed, open := splitSpans(locs, testSettings(3*time.Minute, 0))
	assert.Empty(t, closed)
	require.NotNil(t, open)
	assert.Equal(t, 0, open.Start)
	assert.Equal(t, 4, open.End)
	// Distance covered while stopped still counts once movement resumes.
	assert.InDelta(t, windowDistanceKm(locs), open.DistanceKm, 1e-9)
}

func TestSplitSpansClosingStopDistanceExcluded(t *testing.T) {
	speeds := []float64{20, 20, 3, 3, 3, 3}
	var locs []*model.Location
	for i, v := range speeds {
		locs = append(locs, sampleAt(i, i, v))
	}

	closed, open := splitSpans(locs, testSettings(3*time.Minute, 0))
	require.Len(t, closed, 1)
	assert.Nil(t, open)
	// The closed episode ends at the last moving sample: distance
	// crawled during the terminal stop is not part of the trip.
	assert.InDelta(t, windowDistanceKm(locs[:2]), closed[0].DistanceKm, 1e-9)
}

func TestSplitSpansSkipsInvalidSamples(t *testing.T) {
	locs := []*model.Location{
		sampleAt(0, 0, 20),
		sampleAt(1, 1, 20),
		{DeviceID: "dev-1", Latitude: 89.9, Longitude: 0, Speed: 500, GPSValid: false,
			Timestamp: segBase.Add(90 * time.Second)},
		sampleAt(2, 2, 20),
	}

	_, open := splitSpans(locs, testSettings(3*time.Minute, 0))
	require.NotNil(t, open)
	assert.Equal(t, 0, open.Start)
	assert.Equal(t, 3, open.End)
	// The bogus fix contributes nothing to distance.
	valid := []*model.Location{locs[0], locs[1], locs[3]}
	assert.InDelta(t, windowDistanceKm(valid), open.DistanceKm, 1e-9)
}

func TestSplitSpansDeterministic(t *testing.T) {
	speeds := []float64{20, 3, 20, 3, 3, 3, 3, 20, 20}
	var locs []*model.Location
	for i, v := range speeds {
		locs = append(locs, sampleAt(i, i, v))
	}
	st := testSettings(3*time.Minute, 0)

	closed1, open1 := splitSpans(locs, st)
	closed2, open2 := splitSpans(locs, st)
	assert.Equal(t, closed1, closed2)
	assert.Equal(t, open1, open2)
}

func TestQualifiesMinimumDuration(t *testing.T) {
	var locs []*model.Location
	for i := 0; i < 4; i++ {
		locs = append(locs, sampleAt(i, i, 20))
	}
	st := testSettings(30*time.Minute, 5*time.Minute)

	assert.False(t, qualifies(span{Start: 0, End: 3}, locs, st), "3 minutes is under the minimum")
	assert.False(t, qualifies(span{Start: 2, End: 2}, locs, st), "single-sample span never qualifies")

	st.MinimumDuration = 3 * time.Minute
	assert.True(t, qualifies(span{Start: 0, End: 3}, locs, st))
}

func TestSettingsFromDefaults(t *testing.T) {
	st := settingsFrom(nil)
	assert.Equal(t, 60*time.Minute, st.StopSplitAfter)
	assert.Equal(t, 5*time.Minute, st.MinimumDuration)
	assert.Equal(t, 5.0, st.StopSpeedKmh)

	st = settingsFrom(&model.TripSettings{
		StopSplitsTripAfterMinutes: 15,
		MinimumTripDurationMinutes: 2,
		StopSpeedThresholdKmh:      8,
	})
	assert.Equal(t, 15*time.Minute, st.StopSplitAfter)
	assert.Equal(t, 2*time.Minute, st.MinimumDuration)
	assert.Equal(t, 8.0, st.StopSpeedKmh)

	// Unusable stored values fall back per field.
	st = settingsFrom(&model.TripSettings{StopSplitsTripAfterMinutes: -1, StopSpeedThresholdKmh: -2})
	assert.Equal(t, 60*time.Minute, st.StopSplitAfter)
	assert.Equal(t, 5.0, st.StopSpeedKmh)
}
