package zoning

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/bayrakli/etap-backend/internal/analysis"
	"github.com/bayrakli/etap-backend/internal/database"
	"github.com/bayrakli/etap-backend/internal/geodata"
	"github.com/bayrakli/etap-backend/internal/models"
	"github.com/bayrakli/etap-backend/internal/repository"
)

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, event string, payload interface{}) error {
	p.events = append(p.events, event)
	return nil
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.calls++
	return nil
}

func setupDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "etap.db")})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(ctx, db, "sqlite"); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// square returns a small closed ring whose vertex average is (lat, lng)
func square(lat, lng float64) [][][]float64 {
	const d = 0.00002
	return [][][]float64{{
		{lng - d, lat - d}, {lng + d, lat - d}, {lng + d, lat + d}, {lng - d, lat + d},
	}}
}

// seedFixture writes region A (12 buildings in tight pairs plus one without
// geometry) and region B (5 buildings), and returns the geometry file path.
func seedFixture(t *testing.T, db *sqlx.DB) string {
	t.Helper()
	ctx := context.Background()

	var buildings []models.Building
	var features []map[string]interface{}

	regionA := "Adalet Mahallesi"
	for _, p := range tightPairs() {
		risk := p.RiskScore
		buildings = append(buildings, models.Building{BuildingID: p.ID, RegionName: &regionA, RiskScore: &risk})
		features = append(features, footprint(p.ID, p.Lat, p.Lng))
	}
	// No footprint for this one
	buildings = append(buildings, models.Building{BuildingID: 13, RegionName: &regionA})

	regionB := "Bahar Mahallesi"
	for i := int64(0); i < 5; i++ {
		id := 100 + i
		buildings = append(buildings, models.Building{BuildingID: id, RegionName: &regionB})
		features = append(features, footprint(id, 38.5+float64(i)*0.001, 27.2))
	}
	// Broken footprint
	features = append(features, map[string]interface{}{
		"type":       "Feature",
		"properties": map[string]interface{}{"bina_id": 999},
		"geometry":   nil,
	})

	if err := repository.NewBuildingRepository(db).UpsertBatch(ctx, buildings); err != nil {
		t.Fatalf("failed to seed buildings: %v", err)
	}

	return writeCollection(t, features)
}

func footprint(id int64, lat, lng float64) map[string]interface{} {
	return map[string]interface{}{
		"type":       "Feature",
		"properties": map[string]interface{}{"bina_id": id},
		"geometry":   map[string]interface{}{"type": "Polygon", "coordinates": square(lat, lng)},
	}
}

func writeCollection(t *testing.T, features []map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{"type": "FeatureCollection", "features": features})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "binalar.geojson")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type zoneRow struct {
	Name             string  `db:"name"`
	RegionName       string  `db:"region_name"`
	PointCount       int     `db:"point_count"`
	TotalRiskScore   float64 `db:"total_risk_score"`
	AverageRiskScore float64 `db:"average_risk_score"`
	PriorityRank     int     `db:"priority_rank"`
}

func loadZones(t *testing.T, db *sqlx.DB) []zoneRow {
	t.Helper()
	var rows []zoneRow
	err := db.Select(&rows, `SELECT name, region_name, point_count, total_risk_score, average_risk_score, priority_rank
		FROM zones ORDER BY priority_rank`)
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestRebuildEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	path := seedFixture(t, db)

	pub := &recordingPublisher{}
	inv := &countingInvalidator{}
	a := NewAnalyzer(db, geodata.FileSource{Path: path}, Options{
		EtapCount:    6,
		BufferMeters: 20,
		Publisher:    pub,
		Invalidator:  inv,
	})

	summary, err := a.Rebuild(ctx, "run-1")
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	if summary.RegionsProcessed != 1 || summary.RegionsSkipped != 1 {
		t.Errorf("regions processed/skipped = %d/%d, want 1/1", summary.RegionsProcessed, summary.RegionsSkipped)
	}
	if summary.ZonesCreated != 6 || summary.PointsClustered != 12 {
		t.Errorf("zones/points = %d/%d, want 6/12", summary.ZonesCreated, summary.PointsClustered)
	}
	if summary.MissingCoordinates != 1 || summary.RecordIssueCount != 1 {
		t.Errorf("missing/issues = %d/%d, want 1/1", summary.MissingCoordinates, summary.RecordIssueCount)
	}
	if summary.MinPointsPerZone != 2 || summary.MaxPointsPerZone != 2 || summary.AvgPointsPerZone != 2 {
		t.Errorf("unexpected zone size stats: %+v", summary)
	}
	if summary.ZoneSizes.Count != 6 || summary.ZoneSizes.CV != 0 {
		t.Errorf("equal zones should have zero size spread: %+v", summary.ZoneSizes)
	}
	if summary.ZoneRisk.Max <= summary.ZoneRisk.Min {
		t.Errorf("expected a spread of zone risk averages: %+v", summary.ZoneRisk)
	}
	if len(summary.HullFailures) != 0 {
		t.Errorf("unexpected hull failures: %v", summary.HullFailures)
	}
	if len(pub.events) != 1 || pub.events[0] != EventRunCompleted || inv.calls != 1 {
		t.Errorf("hooks not run: events=%v invalidations=%d", pub.events, inv.calls)
	}

	zones := loadZones(t, db)
	if len(zones) != 6 {
		t.Fatalf("expected 6 zones, got %d", len(zones))
	}
	for i, z := range zones {
		if z.RegionName != "Adalet Mahallesi" || z.PointCount != 2 {
			t.Errorf("zone %s: region %q, %d points", z.Name, z.RegionName, z.PointCount)
		}
		if z.AverageRiskScore != z.TotalRiskScore/float64(z.PointCount) {
			t.Errorf("zone %s: average %f != %f/%d", z.Name, z.AverageRiskScore, z.TotalRiskScore, z.PointCount)
		}
		if z.PriorityRank != i+1 {
			t.Errorf("ranks are not a permutation: position %d has rank %d", i, z.PriorityRank)
		}
		if i > 0 && z.AverageRiskScore > zones[i-1].AverageRiskScore {
			t.Errorf("rank %d has higher average than rank %d", z.PriorityRank, zones[i-1].PriorityRank)
		}
	}
	var ranksByID []int
	if err := db.Select(&ranksByID, "SELECT priority_rank FROM zones ORDER BY id"); err != nil {
		t.Fatal(err)
	}
	seen := make(map[int]bool)
	for _, r := range ranksByID {
		if r < 1 || r > len(ranksByID) || seen[r] {
			t.Errorf("persisted ranks are not a permutation of 1..%d: %v", len(ranksByID), ranksByID)
			break
		}
		seen[r] = true
	}
	// Highest risk band is the northernmost pair, sequence 6
	if zones[0].Name != "Adalet - Etap 6" {
		t.Errorf("expected Adalet - Etap 6 first, got %s", zones[0].Name)
	}

	var nullBoundaries int
	if err := db.Get(&nullBoundaries, "SELECT COUNT(*) FROM zones WHERE boundary_geojson IS NULL"); err != nil {
		t.Fatal(err)
	}
	if nullBoundaries != 6 {
		t.Errorf("two-point zones should have no boundary, %d of 6 are null", nullBoundaries)
	}

	var assigned, unassignedB, mismatched int
	db.Get(&assigned, "SELECT COUNT(*) FROM buildings WHERE zone_id IS NOT NULL")
	db.Get(&unassignedB, "SELECT COUNT(*) FROM buildings WHERE region_name = 'Bahar Mahallesi' AND zone_id IS NULL")
	db.Get(&mismatched, `SELECT COUNT(*) FROM buildings b JOIN zones z ON z.id = b.zone_id WHERE b.zone_name <> z.name`)
	if assigned != 12 || unassignedB != 5 || mismatched != 0 {
		t.Errorf("assigned=%d unassignedB=%d mismatched=%d, want 12/5/0", assigned, unassignedB, mismatched)
	}

	var status string
	if err := db.Get(&status, "SELECT status FROM rebuild_runs WHERE id = 'run-1'"); err != nil {
		t.Fatal(err)
	}
	if status != models.RunStatusCompleted {
		t.Errorf("run status %q, want completed", status)
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	path := seedFixture(t, db)
	a := NewAnalyzer(db, geodata.FileSource{Path: path}, Options{EtapCount: 6, BufferMeters: 20})

	if _, err := a.Rebuild(ctx, "run-1"); err != nil {
		t.Fatal(err)
	}
	first := loadZones(t, db)

	if err := a.Analyze(ctx, "run-2", analysis.ModeFull); err != nil {
		t.Fatal(err)
	}
	second := loadZones(t, db)

	if len(first) != len(second) {
		t.Fatalf("zone count changed: %d then %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("zone at rank %d changed: %+v then %+v", i+1, first[i], second[i])
		}
	}

	var runs []string
	if err := db.Select(&runs, "SELECT status FROM rebuild_runs"); err != nil {
		t.Fatal(err)
	}
	sort.Strings(runs)
	if len(runs) != 2 || runs[0] != "completed" || runs[1] != "completed" {
		t.Errorf("unexpected run statuses: %v", runs)
	}
}

func TestRebuildMarksFailedRun(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	a := NewAnalyzer(db, geodata.FileSource{Path: filepath.Join(t.TempDir(), "missing.geojson")}, Options{EtapCount: 6})

	if _, err := a.Rebuild(ctx, "run-x"); err == nil {
		t.Fatal("expected error for missing geometry file")
	}

	var run models.RebuildRun
	if err := db.Get(&run, "SELECT id, status, etap_count, buffer_meters, error_message FROM rebuild_runs WHERE id = 'run-x'"); err != nil {
		t.Fatal(err)
	}
	if run.Status != models.RunStatusFailed || run.ErrorMessage == nil {
		t.Errorf("expected failed run with message, got %+v", run)
	}
}

func TestAnalyzeRejectsIncrementalMode(t *testing.T) {
	a := NewAnalyzer(nil, geodata.FileSource{}, Options{})
	if err := a.Analyze(context.Background(), "run", "incremental"); err == nil {
		t.Error("expected error for incremental mode")
	}
}

func TestRebuildKeepsZoneWithDegenerateHull(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	region := "Cumhuriyet Mahallesi"
	var buildings []models.Building
	var features []map[string]interface{}
	// Three buildings on one meridian, then a triangle about 5 km away
	for i, c := range []Coordinate{
		{38.4000, 27.1000}, {38.4001, 27.1000}, {38.4002, 27.1000},
		{38.4500, 27.1500}, {38.4500, 27.1520}, {38.4520, 27.1500},
	} {
		id := int64(i + 1)
		buildings = append(buildings, models.Building{BuildingID: id, RegionName: &region})
		features = append(features, footprint(id, c.Lat, c.Lng))
	}
	if err := repository.NewBuildingRepository(db).UpsertBatch(ctx, buildings); err != nil {
		t.Fatal(err)
	}

	a := NewAnalyzer(db, geodata.FileSource{Path: writeCollection(t, features)}, Options{EtapCount: 2, BufferMeters: 20})
	summary, err := a.Rebuild(ctx, "run-line")
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	if summary.ZonesCreated != 2 {
		t.Fatalf("expected 2 zones, got %d", summary.ZonesCreated)
	}
	if len(summary.HullFailures) != 1 || summary.HullFailures[0].Zone != "Cumhuriyet - Etap 1" {
		t.Errorf("expected one hull failure for Cumhuriyet - Etap 1, got %v", summary.HullFailures)
	}

	var rows []struct {
		Name       string  `db:"name"`
		PointCount int     `db:"point_count"`
		Boundary   *string `db:"boundary_geojson"`
	}
	if err := db.Select(&rows, "SELECT name, point_count, boundary_geojson FROM zones ORDER BY sequence_number"); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 persisted zones, got %d", len(rows))
	}
	if rows[0].PointCount != 3 || rows[0].Boundary != nil {
		t.Errorf("collinear zone should be kept without a boundary: %+v", rows[0])
	}
	if rows[1].PointCount != 3 || rows[1].Boundary == nil {
		t.Errorf("triangle zone should have a boundary: %+v", rows[1])
	}

	var hullFailures int
	if err := db.Get(&hullFailures, "SELECT hull_failures FROM rebuild_runs WHERE id = 'run-line'"); err != nil {
		t.Fatal(err)
	}
	if hullFailures != 1 {
		t.Errorf("run record has %d hull failures, want 1", hullFailures)
	}
}

// failingStore delegates to a real store until its nth SaveRegion call
type failingStore struct {
	ZoneStore
	failOn int
	saves  int
}

func (s *failingStore) SaveRegion(ctx context.Context, assignments []models.ZoneAssignment) error {
	s.saves++
	if s.saves == s.failOn {
		return errors.New("disk full")
	}
	return s.ZoneStore.SaveRegion(ctx, assignments)
}

func TestRebuildFailureKeepsCommittedRegions(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	path := seedFixture(t, db)

	// K=5 makes both regions eligible: Adalet is saved first, Bahar fails
	a := NewAnalyzer(db, geodata.FileSource{Path: path}, Options{EtapCount: 5})
	a.zones = &failingStore{ZoneStore: repository.NewZoneRepository(db), failOn: 2}

	if _, err := a.Rebuild(ctx, "run-partial"); err == nil {
		t.Fatal("expected the second region save to fail")
	}

	var run models.RebuildRun
	if err := db.Get(&run, "SELECT id, status, etap_count, buffer_meters, error_message FROM rebuild_runs WHERE id = 'run-partial'"); err != nil {
		t.Fatal(err)
	}
	if run.Status != models.RunStatusFailed || run.ErrorMessage == nil || !strings.Contains(*run.ErrorMessage, "Bahar Mahallesi") {
		t.Errorf("expected failed run naming the region, got %+v", run)
	}

	var adaletZones, baharZones, adaletAssigned, baharAssigned int
	db.Get(&adaletZones, "SELECT COUNT(*) FROM zones WHERE region_name = 'Adalet Mahallesi'")
	db.Get(&baharZones, "SELECT COUNT(*) FROM zones WHERE region_name = 'Bahar Mahallesi'")
	db.Get(&adaletAssigned, "SELECT COUNT(*) FROM buildings WHERE region_name = 'Adalet Mahallesi' AND zone_id IS NOT NULL")
	db.Get(&baharAssigned, "SELECT COUNT(*) FROM buildings WHERE region_name = 'Bahar Mahallesi' AND zone_id IS NOT NULL")
	if adaletZones != 5 || adaletAssigned != 12 {
		t.Errorf("committed region changed: %d zones, %d assigned buildings", adaletZones, adaletAssigned)
	}
	if baharZones != 0 || baharAssigned != 0 {
		t.Errorf("failed region left %d zones and %d assigned buildings", baharZones, baharAssigned)
	}
}
