package models

// ZoneFilter represents filter parameters for listing zones
type ZoneFilter struct {
	Region   string `form:"region"`
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// BuildingFilter represents filter parameters for listing a zone's buildings
type BuildingFilter struct {
	RiskCategory string `form:"riskCategory"` // dusuk, orta, yuksek
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}

// Normalize applies paging defaults and bounds
func (f *ZoneFilter) Normalize() {
	f.Page, f.PageSize = normalizePage(f.Page, f.PageSize)
}

// Normalize applies paging defaults and bounds
func (f *BuildingFilter) Normalize() {
	f.Page, f.PageSize = normalizePage(f.Page, f.PageSize)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}
	if pageSize > 1000 {
		pageSize = 1000
	}
	return page, pageSize
}
