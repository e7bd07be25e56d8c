package geo

import "testing"

func TestHaversineKm(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := HaversineKm(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestDistanceKmZero(t *testing.T) {
	p := Point{Lat: 52.2405, Lng: -0.9027}
	if d := p.DistanceKm(p); d != 0 {
		t.Fatalf("expected zero distance, got %v", d)
	}
}

func TestNear(t *testing.T) {
	p := Point{Lat: 52.240512, Lng: -0.902656}
	if got := p.Near(); got != "Near 52.2405, -0.9027" {
		t.Fatalf("unexpected fallback: %q", got)
	}
}
