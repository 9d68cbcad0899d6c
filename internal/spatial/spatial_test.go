package spatial

import (
	"math"
	"testing"
)

func TestHaversineDistance(t *testing.T) {
	// One degree of latitude on a 6371 km sphere
	want := 2 * math.Pi * EarthRadiusMeters / 360
	got := HaversineDistance(38.0, 27.0, 39.0, 27.0)
	if math.Abs(got-want) > 0.01 {
		t.Errorf("HaversineDistance = %f, want %f", got, want)
	}

	if d := HaversineDistance(38.46, 27.16, 38.46, 27.16); d != 0 {
		t.Errorf("distance to self should be 0, got %f", d)
	}
}

func TestDestinationPointRoundTrip(t *testing.T) {
	lat, lon := 38.4622, 27.1650
	for _, bearing := range []float64{0, 45, 90, 180, 270} {
		lat2, lon2 := DestinationPoint(lat, lon, bearing, 20)
		d := HaversineDistance(lat, lon, lat2, lon2)
		if math.Abs(d-20) > 1e-6 {
			t.Errorf("bearing %.0f: expected 20 m, got %f", bearing, d)
		}
	}
}

func TestCentroidIsVertexAverage(t *testing.T) {
	points := []Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 4}, {Lat: 2, Lon: 0}, {Lat: 2, Lon: 0}}
	c := Centroid(points)
	if c.Lat != 1 || c.Lon != 1 {
		t.Errorf("Centroid = %+v, want {1 1}", c)
	}
	if (Centroid(nil) != Point{}) {
		t.Error("Centroid of no points should be zero")
	}
}

func TestCollinear(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
		want   bool
	}{
		{"two points", []Point{{38.46, 27.16}, {38.47, 27.17}}, true},
		{"identical", []Point{{38.46, 27.16}, {38.46, 27.16}, {38.46, 27.16}}, true},
		{"on a meridian", []Point{{38.460, 27.16}, {38.461, 27.16}, {38.462, 27.16}}, true},
		{"diagonal", []Point{{38.460, 27.160}, {38.461, 27.161}, {38.462, 27.162}}, true},
		{"triangle", []Point{{38.460, 27.160}, {38.461, 27.160}, {38.460, 27.161}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Collinear(tt.points); got != tt.want {
				t.Errorf("Collinear() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGeohash(t *testing.T) {
	hash := EncodeGeohash(38.4622, 27.1650, 7)
	if len(hash) != 7 {
		t.Fatalf("expected 7 characters, got %q", hash)
	}
	lat, lon := DecodeGeohash(hash)
	if HaversineDistance(lat, lon, 38.4622, 27.1650) > GeohashCellSize(7) {
		t.Errorf("decoded center %f,%f too far from input", lat, lon)
	}

	if got := GeohashPrecisionForDistance(300); got != 7 {
		t.Errorf("precision for 300 m = %d, want 7", got)
	}
	if got := GeohashPrecisionForDistance(0.001); got != 12 {
		t.Errorf("precision for 1 mm = %d, want 12", got)
	}
	if got := EncodeGeohash(38.4622, 27.1650, 40); len(got) != 12 {
		t.Errorf("precision should clamp to 12, got %q", got)
	}
}

func TestCoverGeohash(t *testing.T) {
	center := Point{Lat: 38.4622, Lon: 27.1650}
	lat, lon := DestinationPoint(center.Lat, center.Lon, 90, 200)
	hash := CoverGeohash(center, []Point{center, {Lat: lat, Lon: lon}})
	// 200 m radius: 610 m cells are too wide, 120 m cells fit
	if len(hash) != 7 {
		t.Errorf("expected precision 7 for a 200 m group, got %q", hash)
	}
	if single := CoverGeohash(center, []Point{center}); len(single) != 12 {
		t.Errorf("a single point should use full precision, got %q", single)
	}
}
