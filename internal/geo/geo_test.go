package geo

import "testing"

func TestHaversineKm(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := HaversineKm(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestHaversineKmZero(t *testing.T) {
	if d := HaversineKm(45.0, 7.0, 45.0, 7.0); d != 0 {
		t.Fatalf("expected 0, got %v", d)
	}
}

func TestHaversineKmSymmetric(t *testing.T) {
	a := HaversineKm(-33.8688, 151.2093, 51.5074, -0.1278)
	b := HaversineKm(51.5074, -0.1278, -33.8688, 151.2093)
	if a != b {
		t.Fatalf("distance not symmetric: %v vs %v", a, b)
	}
}
