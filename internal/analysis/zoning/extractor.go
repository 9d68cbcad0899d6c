package zoning

import (
	"fmt"

	"github.com/twpayne/go-geom"

	"github.com/bayrakli/etap-backend/internal/geodata"
)

// ExtractCoordinates derives one coordinate per building from its footprint.
//
// The coordinate is the unweighted mean of the outer ring's vertices (the
// first polygon's outer ring for a multipolygon), closing vertex included.
// It is an approximation, not the area centroid, and can be pulled toward
// densely digitised edges of irregular footprints.
//
// Records that yield no coordinate are reported as issues and have no entry
// in the returned map. When an id repeats, the first usable record wins.
func ExtractCoordinates(records []geodata.Record) (map[int64]Coordinate, []RecordIssue) {
	coords := make(map[int64]Coordinate, len(records))
	var issues []RecordIssue

	for _, rec := range records {
		issue := RecordIssue{FeatureIndex: rec.Index, BuildingID: rec.ID}

		if rec.Err != nil {
			issue.Reason = rec.Err.Error()
			issues = append(issues, issue)
			continue
		}

		c, err := vertexAverage(rec.Geometry)
		if err != nil {
			issue.Reason = err.Error()
			issues = append(issues, issue)
			continue
		}

		if _, exists := coords[rec.ID]; exists {
			issue.Reason = "duplicate building id"
			issues = append(issues, issue)
			continue
		}
		coords[rec.ID] = c
	}

	return coords, issues
}

// outerRing returns the ring whose vertices represent the footprint
func outerRing(g geom.T) (*geom.LinearRing, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil, fmt.Errorf("polygon has no rings")
		}
		return t.LinearRing(0), nil
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 || t.Polygon(0).NumLinearRings() == 0 {
			return nil, fmt.Errorf("multipolygon has no rings")
		}
		return t.Polygon(0).LinearRing(0), nil
	case nil:
		return nil, geodata.ErrMissingGeometry
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}
}

func vertexAverage(g geom.T) (Coordinate, error) {
	ring, err := outerRing(g)
	if err != nil {
		return Coordinate{}, err
	}

	n := ring.NumCoords()
	if n == 0 {
		return Coordinate{}, fmt.Errorf("outer ring has no vertices")
	}

	var sumLng, sumLat float64
	for i := 0; i < n; i++ {
		c := ring.Coord(i)
		sumLng += c.X()
		sumLat += c.Y()
	}

	return Coordinate{
		Lat: sumLat / float64(n),
		Lng: sumLng / float64(n),
	}, nil
}
