package zoning

import (
	"fmt"

	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/bayrakli/etap-backend/internal/spatial"
)

// DefaultBufferMeters is the padding applied around a zone's hull
const DefaultBufferMeters = 20.0

// bufferSegments is the number of vertices approximating each buffer circle
const bufferSegments = 16

// BuildBoundary returns the convex hull of the points padded outward by
// bufferMeters. Fewer than three points have no boundary and return nil
// without error. Points that do not span an area return ErrDegenerateHull.
func BuildBoundary(points []Point, bufferMeters float64) (*geom.Polygon, error) {
	if len(points) < 3 {
		return nil, nil
	}

	planar := make([]spatial.Point, len(points))
	for i, p := range points {
		planar[i] = spatial.Point{Lat: p.Lat, Lon: p.Lng}
	}
	if spatial.Collinear(planar) {
		return nil, ErrDegenerateHull
	}

	hull := s2.NewConvexHullQuery()
	for _, p := range points {
		hull.AddPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lng)))
	}
	loop := hull.ConvexHull()
	if err := checkLoop(loop); err != nil {
		return nil, err
	}

	if bufferMeters > 0 {
		// The hull of small circles around each hull vertex is the buffered hull
		padded := s2.NewConvexHullQuery()
		for _, v := range loop.Vertices() {
			ll := s2.LatLngFromPoint(v)
			lat, lng := ll.Lat.Degrees(), ll.Lng.Degrees()
			for i := 0; i < bufferSegments; i++ {
				bearing := float64(i) * 360 / bufferSegments
				dlat, dlng := spatial.DestinationPoint(lat, lng, bearing, bufferMeters)
				padded.AddPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(dlat, dlng)))
			}
		}
		loop = padded.ConvexHull()
		if err := checkLoop(loop); err != nil {
			return nil, fmt.Errorf("buffer: %w", err)
		}
	}

	return loopToPolygon(loop)
}

func checkLoop(loop *s2.Loop) error {
	if loop == nil || loop.IsEmpty() || loop.IsFull() || loop.NumVertices() < 3 {
		return ErrDegenerateHull
	}
	return nil
}

// loopToPolygon converts a loop to a closed GeoJSON-ordered ring
func loopToPolygon(loop *s2.Loop) (*geom.Polygon, error) {
	vertices := loop.Vertices()
	ring := make([]geom.Coord, 0, len(vertices)+1)
	for _, v := range vertices {
		ll := s2.LatLngFromPoint(v)
		ring = append(ring, geom.Coord{ll.Lng.Degrees(), ll.Lat.Degrees()})
	}
	ring = append(ring, ring[0])

	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
	if err != nil {
		return nil, fmt.Errorf("failed to build polygon: %w", err)
	}
	return poly, nil
}

// EncodeBoundary returns the GeoJSON geometry of a boundary, or nil for none
func EncodeBoundary(poly *geom.Polygon) (*string, error) {
	if poly == nil {
		return nil, nil
	}
	data, err := geojson.Marshal(poly)
	if err != nil {
		return nil, fmt.Errorf("failed to encode boundary: %w", err)
	}
	s := string(data)
	return &s, nil
}
