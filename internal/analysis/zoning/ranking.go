package zoning

import (
	"fmt"
	"sort"
	"strings"
)

// Aggregate computes the risk statistics of a zone's members
func Aggregate(points []Point) Stats {
	s := Stats{PointCount: len(points)}
	for _, p := range points {
		s.TotalRiskScore += p.RiskScore
	}
	if s.PointCount > 0 {
		s.AverageRiskScore = s.TotalRiskScore / float64(s.PointCount)
	}
	return s
}

// ZoneName derives a zone's display name from its region and sequence number
func ZoneName(region string, sequence int) string {
	return strings.Replace(region, " Mahallesi", "", 1) + fmt.Sprintf(" - Etap %d", sequence)
}

// RankZones assigns priority ranks 1..len(zones) by descending average risk.
// Zones with equal averages keep their relative order in the slice.
func RankZones(zones []*ZoneDraft) {
	ordered := make([]*ZoneDraft, len(zones))
	copy(ordered, zones)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Stats.AverageRiskScore > ordered[j].Stats.AverageRiskScore
	})
	for i, z := range ordered {
		z.Rank = i + 1
	}
}
