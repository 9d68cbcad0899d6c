package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/bayrakli/etap-backend/internal/database"
	"github.com/bayrakli/etap-backend/internal/models"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "repo.db")})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(ctx, db, "sqlite"); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedBuildings(t *testing.T, db *sqlx.DB, region string, ids []int64) {
	t.Helper()
	buildings := make([]models.Building, len(ids))
	for i, id := range ids {
		buildings[i] = models.Building{BuildingID: id, RegionName: &region}
	}
	if err := NewBuildingRepository(db).UpsertBatch(context.Background(), buildings); err != nil {
		t.Fatalf("failed to seed buildings: %v", err)
	}
}

func idRange(from, n int64) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = from + int64(i)
	}
	return ids
}

func TestZoneRepositorySaveRankReset(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewZoneRepository(db)

	// The first zone spans more than one IN-clause chunk
	large := idRange(1, 1200)
	small := idRange(5000, 3)
	seedBuildings(t, db, "Adalet Mahallesi", append(append([]int64{}, large...), small...))

	assignments := []models.ZoneAssignment{
		{Zone: &models.Zone{SequenceNumber: 1, Name: "Adalet - Etap 1", RegionName: "Adalet Mahallesi", PointCount: len(large)}, BuildingIDs: large},
		{Zone: &models.Zone{SequenceNumber: 2, Name: "Adalet - Etap 2", RegionName: "Adalet Mahallesi", PointCount: len(small)}, BuildingIDs: small},
	}
	if err := repo.SaveRegion(ctx, assignments); err != nil {
		t.Fatalf("SaveRegion failed: %v", err)
	}

	first, second := assignments[0].Zone.ID, assignments[1].Zone.ID
	if first == 0 || second == 0 || first == second {
		t.Fatalf("expected distinct zone ids, got %d and %d", first, second)
	}

	var assigned []struct {
		ZoneID int64 `db:"zone_id"`
		N      int   `db:"n"`
	}
	if err := db.Select(&assigned, "SELECT zone_id, COUNT(*) AS n FROM buildings WHERE zone_id IS NOT NULL GROUP BY zone_id ORDER BY zone_id"); err != nil {
		t.Fatal(err)
	}
	if len(assigned) != 2 || assigned[0].ZoneID != first || assigned[0].N != 1200 || assigned[1].ZoneID != second || assigned[1].N != 3 {
		t.Errorf("unexpected assignments: %+v", assigned)
	}

	if err := repo.ApplyRanks(ctx, map[int64]int{first: 2, second: 1}); err != nil {
		t.Fatalf("ApplyRanks failed: %v", err)
	}
	z, err := repo.GetByID(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if z.PriorityRank != 2 || z.Status != models.ZoneStatusUnplanned {
		t.Errorf("zone %d: rank %d status %q, want 2 unplanned", first, z.PriorityRank, z.Status)
	}

	zones, total, err := repo.List(ctx, models.ZoneFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || zones[0].ID != second || zones[1].ID != first {
		t.Errorf("List should order by rank, got total=%d %+v", total, zones)
	}

	if err := repo.ResetZones(ctx); err != nil {
		t.Fatalf("ResetZones failed: %v", err)
	}
	var zoneCount, stillAssigned int
	db.Get(&zoneCount, "SELECT COUNT(*) FROM zones")
	db.Get(&stillAssigned, "SELECT COUNT(*) FROM buildings WHERE zone_id IS NOT NULL OR zone_name IS NOT NULL")
	if zoneCount != 0 || stillAssigned != 0 {
		t.Errorf("after reset: %d zones, %d buildings still assigned", zoneCount, stillAssigned)
	}
	if _, err := repo.GetByID(ctx, first); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after reset, got %v", err)
	}
}

func TestSaveRegionRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewZoneRepository(db)
	seedBuildings(t, db, "Adalet Mahallesi", idRange(1, 4))

	if _, err := db.Exec(`CREATE TRIGGER reject_second BEFORE INSERT ON zones
		WHEN NEW.sequence_number = 2 BEGIN SELECT RAISE(ABORT, 'rejected'); END`); err != nil {
		t.Fatal(err)
	}

	assignments := []models.ZoneAssignment{
		{Zone: &models.Zone{SequenceNumber: 1, Name: "Adalet - Etap 1", RegionName: "Adalet Mahallesi"}, BuildingIDs: []int64{1, 2}},
		{Zone: &models.Zone{SequenceNumber: 2, Name: "Adalet - Etap 2", RegionName: "Adalet Mahallesi"}, BuildingIDs: []int64{3, 4}},
	}
	if err := repo.SaveRegion(ctx, assignments); err == nil {
		t.Fatal("expected SaveRegion to fail")
	}
	if assignments[0].Zone.ID != 0 {
		t.Errorf("ids must not be set on failure, got %d", assignments[0].Zone.ID)
	}

	var zones, assigned int
	db.Get(&zones, "SELECT COUNT(*) FROM zones")
	db.Get(&assigned, "SELECT COUNT(*) FROM buildings WHERE zone_id IS NOT NULL")
	if zones != 0 || assigned != 0 {
		t.Errorf("region save should be atomic, found %d zones and %d assigned buildings", zones, assigned)
	}
}

func TestChunkIDs(t *testing.T) {
	tests := []struct {
		n      int64
		chunks []int
	}{
		{0, nil},
		{1, []int{1}},
		{500, []int{500}},
		{501, []int{500, 1}},
		{1200, []int{500, 500, 200}},
	}

	for _, tt := range tests {
		got := chunkIDs(idRange(1, tt.n), 500)
		if len(got) != len(tt.chunks) {
			t.Errorf("n=%d: %d chunks, want %d", tt.n, len(got), len(tt.chunks))
			continue
		}
		next := int64(1)
		for i, c := range got {
			if len(c) != tt.chunks[i] {
				t.Errorf("n=%d: chunk %d has %d ids, want %d", tt.n, i, len(c), tt.chunks[i])
			}
			for _, id := range c {
				if id != next {
					t.Errorf("n=%d: expected id %d, got %d", tt.n, next, id)
				}
				next++
			}
		}
	}
}
