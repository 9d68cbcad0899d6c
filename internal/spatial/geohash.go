package spatial

import (
	"github.com/mmcloughlin/geohash"
)

const maxGeohashPrecision = 12

// geohashCellMeters holds the approximate cell width at the equator, indexed by precision-1
var geohashCellMeters = [maxGeohashPrecision]float64{
	5000000, 625000, 123000, 19500, 3900, 610,
	120, 19, 3.7, 0.6, 0.12, 0.019,
}

// EncodeGeohash encodes a coordinate, clamping precision to 1..12 characters
func EncodeGeohash(lat, lon float64, precision int) string {
	precision = max(1, min(precision, maxGeohashPrecision))
	return geohash.EncodeWithPrecision(lat, lon, uint(precision))
}

// DecodeGeohash returns the center of a geohash cell
func DecodeGeohash(hash string) (lat, lon float64) {
	return geohash.DecodeCenter(hash)
}

// GeohashCellSize returns the approximate cell size in meters, or 0 for an invalid precision
func GeohashCellSize(precision int) float64 {
	if precision < 1 || precision > maxGeohashPrecision {
		return 0
	}
	return geohashCellMeters[precision-1]
}

// GeohashPrecisionForDistance returns the coarsest precision whose cell fits inside the given distance
func GeohashPrecisionForDistance(distanceMeters float64) int {
	for precision := 1; precision <= maxGeohashPrecision; precision++ {
		if GeohashCellSize(precision) <= distanceMeters {
			return precision
		}
	}
	return maxGeohashPrecision
}

// CoverGeohash labels a group of points by the geohash of center, at the
// coarsest precision whose cell is no wider than the group's radius
func CoverGeohash(center Point, points []Point) string {
	precision := GeohashPrecisionForDistance(MaxDistance(center, points))
	return EncodeGeohash(center.Lat, center.Lon, precision)
}
