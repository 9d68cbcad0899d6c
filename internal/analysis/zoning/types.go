// Package zoning partitions each region's buildings into a fixed number of
// zones (etaps), derives zone boundaries, and ranks zones by average risk.
package zoning

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"
)

var (
	ErrTooFewPoints   = errors.New("not enough points for the requested zone count")
	ErrDegenerateHull = errors.New("points do not span an area")
)

// Coordinate is a representative position for one building
type Coordinate struct {
	Lat float64
	Lng float64
}

// Attribute is the per-building data needed for zoning
type Attribute struct {
	BuildingID int64
	RegionName string
	RiskScore  *float64
}

// Point is a building with coordinates, ready for clustering
type Point struct {
	ID        int64
	Lat       float64
	Lng       float64
	RiskScore float64 // missing scores count as 0
}

// RecordIssue describes a geometry record that produced no coordinate
type RecordIssue struct {
	FeatureIndex int    `json:"feature_index"`
	BuildingID   int64  `json:"building_id,omitempty"`
	Reason       string `json:"reason"`
}

func (i RecordIssue) String() string {
	if i.BuildingID != 0 {
		return fmt.Sprintf("building %d: %s", i.BuildingID, i.Reason)
	}
	return fmt.Sprintf("feature %d: %s", i.FeatureIndex, i.Reason)
}

// RegionGroup holds the clusterable points of one region in input order
type RegionGroup struct {
	Name               string
	Points             []Point
	MissingCoordinates int
}

// RegionSkip is a region with too few points to zone
type RegionSkip struct {
	Name               string `json:"name"`
	PointCount         int    `json:"point_count"`
	MissingCoordinates int    `json:"missing_coordinates"`
}

// HullFailure is a zone persisted without a boundary because its hull failed
type HullFailure struct {
	Zone   string `json:"zone"`
	Reason string `json:"reason"`
}

// Stats are the aggregate risk figures of one zone
type Stats struct {
	PointCount       int
	TotalRiskScore   float64
	AverageRiskScore float64
}

// ZoneDraft is a computed zone before it is persisted
type ZoneDraft struct {
	Region   string
	Sequence int // 1..K within the region
	Name     string
	Members  []Point
	Stats    Stats
	Center   Coordinate
	Geohash  string
	Boundary *geom.Polygon
	Rank     int

	// BoundaryJSON is the encoded Boundary, nil when there is none
	BoundaryJSON *string

	// ID is set once the zone row exists
	ID int64
}

// MemberIDs returns the building ids of the zone's members
func (d *ZoneDraft) MemberIDs() []int64 {
	ids := make([]int64, len(d.Members))
	for i, p := range d.Members {
		ids[i] = p.ID
	}
	return ids
}
