package geo

import (
	"math"
	"testing"
)

func TestDistanceM(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		tol                    float64
	}{
		{"same point", -8.1689, 113.7006, -8.1689, 113.7006, 0, 0.001},
		{"one degree latitude", 0, 0, 1, 0, 111195, 10},
		{"one degree longitude at equator", 0, 0, 0, 1, 111195, 10},
		{"campus scale", -8.16890, 113.70060, -8.16935, 113.70060, 50, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceM(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("DistanceM() = %.3f, want %.3f (±%.3f)", got, tt.want, tt.tol)
			}
		})
	}
}

func TestWithinRadius(t *testing.T) {
	centerLat, centerLon := -8.1689, 113.7006

	if !WithinRadius(centerLat, centerLon, centerLat, centerLon, 1) {
		t.Error("center point should be within any positive radius")
	}
	// ~50m south of center.
	if !WithinRadius(-8.16935, 113.70060, centerLat, centerLon, 100) {
		t.Error("point 50m away should be within a 100m radius")
	}
	if WithinRadius(-8.16935, 113.70060, centerLat, centerLon, 30) {
		t.Error("point 50m away should not be within a 30m radius")
	}
}
