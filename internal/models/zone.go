package models

// Zone is one etap: a sub-partition of a region's buildings
type Zone struct {
	ID               int64    `json:"id" db:"id"`
	SequenceNumber   int      `json:"sequence_number" db:"sequence_number"` // 1..K within the region
	Name             string   `json:"name" db:"name"`
	RegionName       string   `json:"region_name" db:"region_name"`
	PointCount       int      `json:"point_count" db:"point_count"`
	TotalRiskScore   float64  `json:"total_risk_score" db:"total_risk_score"`
	AverageRiskScore float64  `json:"average_risk_score" db:"average_risk_score"`
	PriorityRank     int      `json:"priority_rank" db:"priority_rank"` // 1 = highest average risk
	Status           string   `json:"status" db:"status"`
	CenterLat        *float64 `json:"center_lat,omitempty" db:"center_lat"`
	CenterLng        *float64 `json:"center_lng,omitempty" db:"center_lng"`
	CenterGeohash    *string  `json:"center_geohash,omitempty" db:"center_geohash"`
	BoundaryGeoJSON  *string  `json:"boundary_geojson,omitempty" db:"boundary_geojson"`
	RunID            *string  `json:"run_id,omitempty" db:"run_id"`
	CreatedAt        *string  `json:"created_at,omitempty" db:"created_at"`
}

// Zone status constants
const (
	ZoneStatusUnplanned  = "unplanned"
	ZoneStatusPlanned    = "planned"
	ZoneStatusInProgress = "in_progress"
	ZoneStatusCompleted  = "completed"
)

// ZoneAssignment pairs a zone with the buildings assigned to it
type ZoneAssignment struct {
	Zone        *Zone
	BuildingIDs []int64
}

// RegionZoneSummary is a zone row with its risk category breakdown
type RegionZoneSummary struct {
	Zone
	LowRisk    int `json:"low_risk" db:"low_risk"`
	MediumRisk int `json:"medium_risk" db:"medium_risk"`
	HighRisk   int `json:"high_risk" db:"high_risk"`
}
