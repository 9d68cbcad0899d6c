package models

// Building is one building footprint with its zoning attributes
type Building struct {
	ID         int64    `json:"id" db:"id"`
	BuildingID int64    `json:"bina_id" db:"building_id"`
	OSMID      *string  `json:"osm_id,omitempty" db:"osm_id"`
	RegionName *string  `json:"region_name,omitempty" db:"region_name"` // neighbourhood (mahalle)
	RiskScore  *float64 `json:"risk_score,omitempty" db:"risk_score"`

	// Descriptive attributes imported from the footprint dataset
	BuildingType *string `json:"building_type,omitempty" db:"building_type"`
	Floors       *int64  `json:"floors,omitempty" db:"floors"`
	YearBuilt    *int64  `json:"year_built,omitempty" db:"year_built"`
	Material     *string `json:"material,omitempty" db:"material"`
	Street       *string `json:"street,omitempty" db:"street"`
	HouseNumber  *string `json:"house_number,omitempty" db:"house_number"`
	Flats        *int64  `json:"flats,omitempty" db:"flats"`

	// Zone back-reference written by the rebuild
	ZoneID   *int64  `json:"zone_id,omitempty" db:"zone_id"`
	ZoneName *string `json:"zone_name,omitempty" db:"zone_name"`

	CreatedAt *string `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt *string `json:"updated_at,omitempty" db:"updated_at"`
}

// Risk categories
const (
	RiskLow    = "dusuk"
	RiskMedium = "orta"
	RiskHigh   = "yuksek"
)

// RiskCategory buckets a risk score; buildings without a score count as low risk
func RiskCategory(score *float64) string {
	switch {
	case score == nil || *score < 30:
		return RiskLow
	case *score < 70:
		return RiskMedium
	default:
		return RiskHigh
	}
}
