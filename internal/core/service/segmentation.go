package service

import (
	"time"

	"fleettrack/internal/core/model"
	"fleettrack/internal/geo"
)

// SegmentSettings are the resolved segmentation knobs for one run.
type SegmentSettings struct {
	StopSplitAfter  time.Duration // a stop this long splits the timeline
	MinimumDuration time.Duration // shorter trips are discarded
	StopSpeedKmh    float64       // at or below this speed = stopped
}

// settingsFrom resolves per-user settings, substituting defaults for
// missing or unusable values instead of failing the run.
func settingsFrom(ts *model.TripSettings) SegmentSettings {
	s := SegmentSettings{
		StopSplitAfter:  time.Duration(model.DefaultStopSplitsTripAfterMinutes) * time.Minute,
		MinimumDuration: time.Duration(model.DefaultMinimumTripDurationMinutes) * time.Minute,
		StopSpeedKmh:    model.DefaultStopSpeedThresholdKmh,
	}
	if ts == nil {
		return s
	}
	if ts.StopSplitsTripAfterMinutes > 0 {
		s.StopSplitAfter = time.Duration(ts.StopSplitsTripAfterMinutes) * time.Minute
	}
	if ts.MinimumTripDurationMinutes >= 0 {
		s.MinimumDuration = time.Duration(ts.MinimumTripDurationMinutes) * time.Minute
	}
	if ts.StopSpeedThresholdKmh > 0 {
		s.StopSpeedKmh = ts.StopSpeedThresholdKmh
	}
	return s
}

// span is one movement episode over a sample slice: the half about to be
// persisted or suggested. Start/End index into the slice passed to
// splitSpans.
type span struct {
	Start, End int // inclusive sample indices
	DistanceKm float64
}

func (sp *span) startTime(locs []*model.Location) time.Time {
	return locs[sp.Start].Timestamp
}

func (sp *span) endTime(locs []*model.Location) time.Time {
	return locs[sp.End].Timestamp
}

func (sp *span) duration(locs []*model.Location) time.Duration {
	return sp.endTime(locs).Sub(sp.startTime(locs))
}

// splitSpans walks GPS-valid samples in time order and cuts them into
// movement episodes.
//
// A sample is moving when its speed exceeds the stop threshold. The first
// at-or-below-threshold sample starts a stop timer; any single later
// moving sample cancels it (the stop is absorbed into the trip). Once a
// stopped sample lands StopSplitAfter or more past the timer start, the
// episode closes at the last moving sample before the stop began. The
// next episode starts at the next moving sample.
//
// Closed spans are returned unfiltered — minimum-duration policy belongs
// to the caller, which may need to delete a persisted trip that closed
// short. The final still-growing episode, if any, is returned as open.
//
// The walk is pure: same samples and settings always produce the same
// spans, so re-running over an extended window is safe.
func splitSpans(locs []*model.Location, st SegmentSettings) (closed []span, open *span) {
	var cur *span
	lastMoving := -1
	stopStart := -1
	prev := -1
	pendingDist := 0.0

	for i, l := range locs {
		if !l.GPSValid {
			continue
		}
		moving := l.Speed > st.StopSpeedKmh

		if cur == nil {
			if moving {
				cur = &span{Start: i}
				lastMoving = i
				stopStart = -1
				pendingDist = 0
				prev = i
			}
			continue
		}

		step := geo.HaversineKm(locs[prev].Latitude, locs[prev].Longitude, l.Latitude, l.Longitude)
		prev = i

		if moving {
			// Distance held back during an absorbed stop counts too.
			cur.DistanceKm += pendingDist + step
			pendingDist = 0
			stopStart = -1
			lastMoving = i
			continue
		}

		pendingDist += step
		if stopStart < 0 {
			stopStart = i
		}
		if l.Timestamp.Sub(locs[stopStart].Timestamp) >= st.StopSplitAfter {
			cur.End = lastMoving
			closed = append(closed, *cur)
			cur = nil
		}
	}

	if cur != nil {
		cur.End = lastMoving
		open = cur
	}
	return closed, open
}

// qualifies applies the minimum-duration policy to a finished span.
func qualifies(sp span, locs []*model.Location, st SegmentSettings) bool {
	return sp.End > sp.Start && sp.duration(locs) >= st.MinimumDuration
}

// windowDistanceKm sums consecutive-sample haversine distances over an
// ordered slice, for explicit trip creation outside segmentation.
func windowDistanceKm(locs []*model.Location) float64 {
	total := 0.0
	for i := 1; i < len(locs); i++ {
		total += geo.HaversineKm(
			locs[i-1].Latitude, locs[i-1].Longitude,
			locs[i].Latitude, locs[i].Longitude)
	}
	return total
}
