// Package geocode resolves coordinates into human-readable place names
// for trip display. Resolution is best effort: every failure path falls
// back to formatted coordinates so trip naming never blocks or errors.
package geocode

import (
	"context"
	"fmt"
)

// ReverseGeocoder turns a coordinate into a short place name.
type ReverseGeocoder interface {
	Resolve(ctx context.Context, lat, lon float64) (string, error)
}

// Noop always falls back to coordinates.
type Noop struct{}

func (Noop) Resolve(_ context.Context, lat, lon float64) (string, error) {
	return coordinateName(lat, lon), nil
}

func coordinateName(lat, lon float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lon)
}

// TripDisplayName builds the "start → end" label for a trip. Either
// endpoint that fails to resolve is shown as coordinates.
func TripDisplayName(ctx context.Context, g ReverseGeocoder, startLat, startLon, endLat, endLon float64) string {
	start := resolveOrCoords(ctx, g, startLat, startLon)
	end := resolveOrCoords(ctx, g, endLat, endLon)
	return start + " → " + end
}

func resolveOrCoords(ctx context.Context, g ReverseGeocoder, lat, lon float64) string {
	if g == nil {
		return coordinateName(lat, lon)
	}
	name, err := g.Resolve(ctx, lat, lon)
	if err != nil || name == "" {
		return coordinateName(lat, lon)
	}
	return name
}
