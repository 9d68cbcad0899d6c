package zoning

import (
	"fmt"
	"math"
	"sort"

	"github.com/bayrakli/etap-backend/internal/spatial"
)

// Rounds is the fixed number of assignment/update rounds
const Rounds = 10

// Cluster partitions points into exactly k non-empty clusters.
//
// Seeds are taken evenly through the latitude-sorted points, offset to the
// middle of each slice. The assignment/update loop runs a fixed number of
// rounds with no convergence check; a point joins the nearest centroid by
// great-circle distance, lowest index on ties. Clusters left empty are
// filled afterwards by moving the second half of the largest cluster.
//
// The result depends only on the input order.
func Cluster(points []Point, k int) ([][]Point, error) {
	if k < 2 {
		return nil, fmt.Errorf("zone count must be at least 2, got %d", k)
	}
	if len(points) < k {
		return nil, fmt.Errorf("%w: %d points for %d zones", ErrTooFewPoints, len(points), k)
	}

	centers := seedCentroids(points, k)

	var clusters [][]Point
	for round := 0; round < Rounds; round++ {
		clusters = assign(points, centers)
		updateCentroids(centers, clusters)
	}

	repairEmpty(clusters)
	return clusters, nil
}

func seedCentroids(points []Point, k int) []Coordinate {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Lat < sorted[j].Lat
	})

	n := len(sorted)
	slice := float64(n) / float64(k)
	centers := make([]Coordinate, k)
	for i := 0; i < k; i++ {
		idx := int(math.Floor(float64(i)*slice + slice/2))
		if idx > n-1 {
			idx = n - 1
		}
		centers[i] = Coordinate{Lat: sorted[idx].Lat, Lng: sorted[idx].Lng}
	}
	return centers
}

func assign(points []Point, centers []Coordinate) [][]Point {
	clusters := make([][]Point, len(centers))
	for _, p := range points {
		best := 0
		bestDist := math.Inf(1)
		for i, c := range centers {
			// strict comparison keeps the lowest index on ties
			if d := spatial.HaversineDistance(p.Lat, p.Lng, c.Lat, c.Lng); d < bestDist {
				bestDist = d
				best = i
			}
		}
		clusters[best] = append(clusters[best], p)
	}
	return clusters
}

func updateCentroids(centers []Coordinate, clusters [][]Point) {
	for i, members := range clusters {
		if len(members) == 0 {
			continue
		}
		centers[i] = meanCoordinate(members)
	}
}

// repairEmpty fills each empty cluster, in index order, with the second half
// of the currently largest cluster. The split follows member order, not
// position, so the halves need not be spatially compact.
func repairEmpty(clusters [][]Point) {
	for i := range clusters {
		if len(clusters[i]) > 0 {
			continue
		}

		largest := 0
		for j := range clusters {
			if len(clusters[j]) > len(clusters[largest]) {
				largest = j
			}
		}

		donor := clusters[largest]
		half := len(donor) / 2
		moved := make([]Point, len(donor)-half)
		copy(moved, donor[half:])
		clusters[largest] = donor[:half:half]
		clusters[i] = moved
	}
}

func meanCoordinate(points []Point) Coordinate {
	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(points))
	return Coordinate{Lat: sumLat / n, Lng: sumLng / n}
}
