package analysis

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Analyzer is the interface that all batch analyzers must implement
type Analyzer interface {
	// Analyze performs the analysis for a given run
	// runID: the rebuild run ID
	// mode: only "full" is supported; every run recomputes from scratch
	Analyze(ctx context.Context, runID string, mode string) error

	// GetName returns the name of the analyzer
	GetName() string
}

// ModeFull recomputes all derived data from scratch
const ModeFull = "full"

// BaseAnalyzer provides run bookkeeping shared by analyzers
type BaseAnalyzer struct {
	DB   *sqlx.DB
	Name string
}

// NewBaseAnalyzer creates a new base analyzer
func NewBaseAnalyzer(db *sqlx.DB, name string) *BaseAnalyzer {
	return &BaseAnalyzer{
		DB:   db,
		Name: name,
	}
}

// GetName returns the analyzer name
func (a *BaseAnalyzer) GetName() string {
	return a.Name
}

// RunCounters are the per-run totals recorded on completion
type RunCounters struct {
	RegionsProcessed int
	RegionsSkipped   int
	ZonesCreated     int
	PointsClustered  int
	RecordIssues     int
	HullFailures     int
}

// MarkRunAsRunning inserts the run row in the running state
func (a *BaseAnalyzer) MarkRunAsRunning(ctx context.Context, runID string, etapCount int, bufferMeters float64) error {
	query := a.DB.Rebind(`
		INSERT INTO rebuild_runs (id, status, etap_count, buffer_meters, started_at)
		VALUES (?, 'running', ?, ?, CURRENT_TIMESTAMP)
	`)

	if _, err := a.DB.ExecContext(ctx, query, runID, etapCount, bufferMeters); err != nil {
		return fmt.Errorf("failed to mark run %s as running: %w", runID, err)
	}
	return nil
}

// MarkRunAsCompleted marks a run as completed with its counters and summary
func (a *BaseAnalyzer) MarkRunAsCompleted(ctx context.Context, runID string, c RunCounters, summaryJSON string) error {
	query := a.DB.Rebind(`
		UPDATE rebuild_runs
		SET status = 'completed',
		    regions_processed = ?,
		    regions_skipped = ?,
		    zones_created = ?,
		    points_clustered = ?,
		    record_issues = ?,
		    hull_failures = ?,
		    summary_json = ?,
		    completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`)

	_, err := a.DB.ExecContext(ctx, query,
		c.RegionsProcessed, c.RegionsSkipped, c.ZonesCreated, c.PointsClustered,
		c.RecordIssues, c.HullFailures, summaryJSON, runID)
	if err != nil {
		return fmt.Errorf("failed to mark run %s as completed: %w", runID, err)
	}
	return nil
}

// MarkRunAsFailed marks a run as failed with an error message
func (a *BaseAnalyzer) MarkRunAsFailed(ctx context.Context, runID string, errorMsg string) error {
	query := a.DB.Rebind(`
		UPDATE rebuild_runs
		SET status = 'failed',
		    error_message = ?,
		    completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`)

	if _, err := a.DB.ExecContext(ctx, query, errorMsg, runID); err != nil {
		return fmt.Errorf("failed to mark run %s as failed: %w", runID, err)
	}
	return nil
}
