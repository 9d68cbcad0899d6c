package spatial

import (
	"math"
)

// Point represents a 2D point with latitude and longitude
type Point struct {
	Lat float64
	Lon float64
}

// Centroid calculates the arithmetic mean of a set of points.
// It is not an area-weighted centroid.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}

	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}

	return Point{
		Lat: sumLat / float64(len(points)),
		Lon: sumLon / float64(len(points)),
	}
}

// MaxDistance returns the largest great-circle distance in meters from center to any point
func MaxDistance(center Point, points []Point) float64 {
	var max float64
	for _, p := range points {
		if d := HaversineDistance(center.Lat, center.Lon, p.Lat, p.Lon); d > max {
			max = d
		}
	}
	return max
}

// collinearTolerance is the largest off-line distance, in degrees, still treated as on the line
const collinearTolerance = 1e-9

// Collinear reports whether all points lie on one line (or coincide) in the
// local equirectangular plane. Fewer than three distinct points count as collinear.
func Collinear(points []Point) bool {
	if len(points) < 3 {
		return true
	}

	scale := math.Cos(points[0].Lat * math.Pi / 180)
	project := func(p Point) (float64, float64) {
		return p.Lon * scale, p.Lat
	}

	ax, ay := project(points[0])

	// Use the point farthest from the first one as the second anchor
	far := -1
	var farDist float64
	for i := 1; i < len(points); i++ {
		x, y := project(points[i])
		if d := (x-ax)*(x-ax) + (y-ay)*(y-ay); d > farDist {
			farDist = d
			far = i
		}
	}
	if far < 0 || farDist == 0 {
		return true
	}

	bx, by := project(points[far])
	length := math.Sqrt(farDist)
	for _, p := range points {
		x, y := project(p)
		cross := (bx-ax)*(y-ay) - (by-ay)*(x-ax)
		if math.Abs(cross)/length > collinearTolerance {
			return false
		}
	}
	return true
}
