package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bayrakli/etap-backend/internal/models"
)

// RunRepository reads rebuild run records
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, status, etap_count, buffer_meters, regions_processed,
	regions_skipped, zones_created, points_clustered, record_issues, hull_failures,
	summary_json, error_message, started_at, completed_at`

// Latest returns the most recently started run
func (r *RunRepository) Latest(ctx context.Context) (*models.RebuildRun, error) {
	var run models.RebuildRun
	err := r.db.GetContext(ctx, &run, "SELECT "+runColumns+" FROM rebuild_runs ORDER BY started_at DESC, id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return &run, nil
}

// GetByID returns one run
func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.RebuildRun, error) {
	var run models.RebuildRun
	err := r.db.GetContext(ctx, &run, r.db.Rebind("SELECT "+runColumns+" FROM rebuild_runs WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return &run, nil
}
