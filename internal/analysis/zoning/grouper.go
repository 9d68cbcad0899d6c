package zoning

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeRegion returns the canonical form of a region name
func NormalizeRegion(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// GroupByRegion joins building attributes with their coordinates and groups
// them by region. Buildings without a region are ignored; buildings without a
// coordinate are counted but not clustered. Regions keep the order in which
// they first appear, and points keep their attribute order.
//
// Regions with fewer than k joined points are returned as skips.
func GroupByRegion(attrs []Attribute, coords map[int64]Coordinate, k int) ([]RegionGroup, []RegionSkip) {
	index := make(map[string]int)
	var all []RegionGroup

	for _, a := range attrs {
		name := NormalizeRegion(a.RegionName)
		if name == "" {
			continue
		}

		i, ok := index[name]
		if !ok {
			i = len(all)
			index[name] = i
			all = append(all, RegionGroup{Name: name})
		}

		c, ok := coords[a.BuildingID]
		if !ok {
			all[i].MissingCoordinates++
			continue
		}

		p := Point{ID: a.BuildingID, Lat: c.Lat, Lng: c.Lng}
		if a.RiskScore != nil {
			p.RiskScore = *a.RiskScore
		}
		all[i].Points = append(all[i].Points, p)
	}

	var groups []RegionGroup
	var skips []RegionSkip
	for _, g := range all {
		if len(g.Points) < k {
			skips = append(skips, RegionSkip{
				Name:               g.Name,
				PointCount:         len(g.Points),
				MissingCoordinates: g.MissingCoordinates,
			})
			continue
		}
		groups = append(groups, g)
	}

	return groups, skips
}
