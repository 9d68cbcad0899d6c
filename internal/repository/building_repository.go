package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/bayrakli/etap-backend/internal/database"
	"github.com/bayrakli/etap-backend/internal/models"
)

// BuildingRepository handles database operations for buildings
type BuildingRepository struct {
	db *sqlx.DB
}

// NewBuildingRepository creates a new building repository
func NewBuildingRepository(db *sqlx.DB) *BuildingRepository {
	return &BuildingRepository{db: db}
}

const buildingColumns = `id, building_id, osm_id, region_name, risk_score,
	building_type, floors, year_built, material, street, house_number, flats,
	zone_id, zone_name, created_at, updated_at`

// ListForZoning returns every building with a region, ordered by the stored
// region name then id. This order decides region processing order.
func (r *BuildingRepository) ListForZoning(ctx context.Context) ([]models.Building, error) {
	query := `SELECT building_id, region_name, risk_score
		FROM buildings
		WHERE region_name IS NOT NULL AND region_name <> ''
		ORDER BY region_name, building_id`

	var buildings []models.Building
	if err := r.db.SelectContext(ctx, &buildings, query); err != nil {
		return nil, fmt.Errorf("failed to query buildings for zoning: %w", err)
	}
	return buildings, nil
}

// UpsertBatch inserts or updates buildings by building_id in one transaction.
// An incoming null risk score keeps the stored one; zone assignments are left untouched.
func (r *BuildingRepository) UpsertBatch(ctx context.Context, buildings []models.Building) error {
	if len(buildings) == 0 {
		return nil
	}

	query := `INSERT INTO buildings (
			building_id, osm_id, region_name, building_type, floors, year_built,
			material, street, house_number, flats, risk_score
		) VALUES (
			:building_id, :osm_id, :region_name, :building_type, :floors, :year_built,
			:material, :street, :house_number, :flats, :risk_score
		)
		ON CONFLICT (building_id) DO UPDATE SET
			osm_id = excluded.osm_id,
			region_name = excluded.region_name,
			building_type = excluded.building_type,
			floors = excluded.floors,
			year_built = excluded.year_built,
			material = excluded.material,
			street = excluded.street,
			house_number = excluded.house_number,
			flats = excluded.flats,
			risk_score = COALESCE(excluded.risk_score, buildings.risk_score),
			updated_at = CURRENT_TIMESTAMP`

	return database.Transaction(ctx, r.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare building upsert: %w", err)
		}
		defer stmt.Close()

		for i := range buildings {
			if _, err := stmt.ExecContext(ctx, &buildings[i]); err != nil {
				return fmt.Errorf("failed to upsert building %d: %w", buildings[i].BuildingID, err)
			}
		}
		return nil
	})
}

// ListByZone returns a page of a zone's buildings and the matching total
func (r *BuildingRepository) ListByZone(ctx context.Context, zoneID int64, filter models.BuildingFilter) ([]models.Building, int, error) {
	filter.Normalize()

	conditions := []string{"zone_id = ?"}
	args := []interface{}{zoneID}

	switch filter.RiskCategory {
	case models.RiskLow:
		conditions = append(conditions, "(risk_score IS NULL OR risk_score < 30)")
	case models.RiskMedium:
		conditions = append(conditions, "risk_score >= 30 AND risk_score < 70")
	case models.RiskHigh:
		conditions = append(conditions, "risk_score >= 70")
	case "":
	default:
		return nil, 0, fmt.Errorf("unknown risk category %q", filter.RiskCategory)
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM buildings"+where), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count zone buildings: %w", err)
	}

	query := "SELECT " + buildingColumns + " FROM buildings" + where + " ORDER BY building_id LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	var buildings []models.Building
	if err := r.db.SelectContext(ctx, &buildings, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to query zone buildings: %w", err)
	}
	return buildings, total, nil
}
