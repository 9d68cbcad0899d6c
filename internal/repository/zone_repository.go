package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bayrakli/etap-backend/internal/database"
	"github.com/bayrakli/etap-backend/internal/models"
)

// ZoneRepository handles database operations for zones and their assignments
type ZoneRepository struct {
	db *sqlx.DB
}

// NewZoneRepository creates a new zone repository
func NewZoneRepository(db *sqlx.DB) *ZoneRepository {
	return &ZoneRepository{db: db}
}

const zoneColumns = `id, sequence_number, name, region_name, point_count,
	total_risk_score, average_risk_score, priority_rank, status,
	center_lat, center_lng, center_geohash, boundary_geojson, run_id, created_at`

// ResetZones deletes every zone and clears every building's zone reference
func (r *ZoneRepository) ResetZones(ctx context.Context) error {
	return database.Transaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE buildings SET zone_id = NULL, zone_name = NULL WHERE zone_id IS NOT NULL OR zone_name IS NOT NULL"); err != nil {
			return fmt.Errorf("failed to clear building zones: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM zones"); err != nil {
			return fmt.Errorf("failed to delete zones: %w", err)
		}
		return nil
	})
}

// SaveRegion inserts one region's zones and assigns their buildings in a
// single transaction. Each zone's ID is set on success.
func (r *ZoneRepository) SaveRegion(ctx context.Context, assignments []models.ZoneAssignment) error {
	insert := r.db.Rebind(`INSERT INTO zones (
			sequence_number, name, region_name, point_count, total_risk_score,
			average_risk_score, priority_rank, status, center_lat, center_lng,
			center_geohash, boundary_geojson, run_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	ids := make([]int64, len(assignments))
	err := database.Transaction(ctx, r.db, func(tx *sqlx.Tx) error {
		for i, a := range assignments {
			z := a.Zone
			status := z.Status
			if status == "" {
				status = models.ZoneStatusUnplanned
			}

			err := tx.QueryRowxContext(ctx, insert,
				z.SequenceNumber, z.Name, z.RegionName, z.PointCount, z.TotalRiskScore,
				z.AverageRiskScore, z.PriorityRank, status, z.CenterLat, z.CenterLng,
				z.CenterGeohash, z.BoundaryGeoJSON, z.RunID,
			).Scan(&ids[i])
			if err != nil {
				return fmt.Errorf("failed to insert zone %q: %w", z.Name, err)
			}

			for _, chunk := range chunkIDs(a.BuildingIDs, updateChunkSize) {
				query, args, err := sqlx.In("UPDATE buildings SET zone_id = ?, zone_name = ? WHERE building_id IN (?)", ids[i], z.Name, chunk)
				if err != nil {
					return fmt.Errorf("failed to build assignment for zone %q: %w", z.Name, err)
				}
				if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
					return fmt.Errorf("failed to assign buildings to zone %q: %w", z.Name, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, a := range assignments {
		a.Zone.ID = ids[i]
	}
	return nil
}

// ApplyRanks sets the priority rank of every listed zone in one transaction
func (r *ZoneRepository) ApplyRanks(ctx context.Context, ranks map[int64]int) error {
	return database.Transaction(ctx, r.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind("UPDATE zones SET priority_rank = ? WHERE id = ?"))
		if err != nil {
			return fmt.Errorf("failed to prepare rank update: %w", err)
		}
		defer stmt.Close()

		for id, rank := range ranks {
			if _, err := stmt.ExecContext(ctx, rank, id); err != nil {
				return fmt.Errorf("failed to rank zone %d: %w", id, err)
			}
		}
		return nil
	})
}

// List returns a page of zones ordered by priority rank, with the matching total
func (r *ZoneRepository) List(ctx context.Context, filter models.ZoneFilter) ([]models.Zone, int, error) {
	filter.Normalize()

	where := ""
	var args []interface{}
	if filter.Region != "" {
		where += " AND region_name = ?"
		args = append(args, filter.Region)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if where != "" {
		where = " WHERE" + where[len(" AND"):]
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM zones"+where), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count zones: %w", err)
	}

	query := "SELECT " + zoneColumns + " FROM zones" + where + " ORDER BY priority_rank, id LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	var zones []models.Zone
	if err := r.db.SelectContext(ctx, &zones, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to query zones: %w", err)
	}
	return zones, total, nil
}

// GetByID returns one zone
func (r *ZoneRepository) GetByID(ctx context.Context, id int64) (*models.Zone, error) {
	var z models.Zone
	err := r.db.GetContext(ctx, &z, r.db.Rebind("SELECT "+zoneColumns+" FROM zones WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zone %d: %w", id, err)
	}
	return &z, nil
}

// ListByRegion returns a region's zones in sequence order with the risk
// category counts of their buildings
func (r *ZoneRepository) ListByRegion(ctx context.Context, region string) ([]models.RegionZoneSummary, error) {
	query := `SELECT z.id, z.sequence_number, z.name, z.region_name, z.point_count,
			z.total_risk_score, z.average_risk_score, z.priority_rank, z.status,
			z.center_lat, z.center_lng, z.center_geohash, z.boundary_geojson, z.run_id, z.created_at,
			COALESCE(SUM(CASE WHEN b.id IS NOT NULL AND (b.risk_score IS NULL OR b.risk_score < 30) THEN 1 ELSE 0 END), 0) AS low_risk,
			COALESCE(SUM(CASE WHEN b.risk_score >= 30 AND b.risk_score < 70 THEN 1 ELSE 0 END), 0) AS medium_risk,
			COALESCE(SUM(CASE WHEN b.risk_score >= 70 THEN 1 ELSE 0 END), 0) AS high_risk
		FROM zones z
		LEFT JOIN buildings b ON b.zone_id = z.id
		WHERE z.region_name = ?
		GROUP BY z.id, z.sequence_number, z.name, z.region_name, z.point_count,
			z.total_risk_score, z.average_risk_score, z.priority_rank, z.status,
			z.center_lat, z.center_lng, z.center_geohash, z.boundary_geojson, z.run_id, z.created_at
		ORDER BY z.sequence_number`

	var zones []models.RegionZoneSummary
	if err := r.db.SelectContext(ctx, &zones, r.db.Rebind(query), region); err != nil {
		return nil, fmt.Errorf("failed to query zones of region %q: %w", region, err)
	}
	return zones, nil
}
