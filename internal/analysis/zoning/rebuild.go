package zoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bayrakli/etap-backend/internal/analysis"
	"github.com/bayrakli/etap-backend/internal/geodata"
	"github.com/bayrakli/etap-backend/internal/models"
	"github.com/bayrakli/etap-backend/internal/repository"
	"github.com/bayrakli/etap-backend/internal/spatial"
	"github.com/bayrakli/etap-backend/internal/stats"
)

// DefaultEtapCount is the number of zones per region
const DefaultEtapCount = 6

// maxReportedIssues caps the per-record issues kept in a run summary
const maxReportedIssues = 100

// EventRunCompleted is published after a successful rebuild
const EventRunCompleted = "zoning.run.completed"

// GeometrySource yields the building footprints
type GeometrySource interface {
	Load(ctx context.Context) ([]geodata.Record, error)
}

// BuildingSource yields the building attributes
type BuildingSource interface {
	ListForZoning(ctx context.Context) ([]models.Building, error)
}

// ZoneStore persists zones and building assignments
type ZoneStore interface {
	ResetZones(ctx context.Context) error
	SaveRegion(ctx context.Context, assignments []models.ZoneAssignment) error
	ApplyRanks(ctx context.Context, ranks map[int64]int) error
}

// Publisher announces finished runs
type Publisher interface {
	Publish(ctx context.Context, event string, payload interface{}) error
}

// Invalidator drops cached reads of zone data
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Options configures a rebuild
type Options struct {
	EtapCount    int
	BufferMeters float64

	// Optional hooks run after a successful rebuild
	Publisher   Publisher
	Invalidator Invalidator
}

// RunSummary reports the outcome of one rebuild
type RunSummary struct {
	RunID        string  `json:"run_id"`
	EtapCount    int     `json:"etap_count"`
	BufferMeters float64 `json:"buffer_meters"`

	RegionsProcessed int `json:"regions_processed"`
	RegionsSkipped   int `json:"regions_skipped"`
	ZonesCreated     int `json:"zones_created"`
	PointsClustered  int `json:"points_clustered"`

	MinPointsPerZone int     `json:"min_points_per_zone"`
	MaxPointsPerZone int     `json:"max_points_per_zone"`
	AvgPointsPerZone float64 `json:"avg_points_per_zone"`

	ZoneSizes stats.Summary `json:"zone_sizes"`
	ZoneRisk  stats.Summary `json:"zone_average_risk"`

	MissingCoordinates int           `json:"missing_coordinates"`
	RecordIssueCount   int           `json:"record_issue_count"`
	RecordIssues       []RecordIssue `json:"record_issues,omitempty"` // first maxReportedIssues only
	Skipped            []RegionSkip  `json:"skipped,omitempty"`
	HullFailures       []HullFailure `json:"hull_failures,omitempty"`
	Duration           time.Duration `json:"duration_ns"`
}

// Analyzer rebuilds all zones from scratch
type Analyzer struct {
	*analysis.BaseAnalyzer
	geometry  GeometrySource
	buildings BuildingSource
	zones     ZoneStore
	opts      Options
	logger    *slog.Logger
}

// NewAnalyzer creates a zoning analyzer backed by the given database
func NewAnalyzer(db *sqlx.DB, geometry GeometrySource, opts Options) *Analyzer {
	if opts.EtapCount == 0 {
		opts.EtapCount = DefaultEtapCount
	}
	return &Analyzer{
		BaseAnalyzer: analysis.NewBaseAnalyzer(db, "zoning"),
		geometry:     geometry,
		buildings:    repository.NewBuildingRepository(db),
		zones:        repository.NewZoneRepository(db),
		opts:         opts,
		logger:       slog.Default().With("component", "zoning"),
	}
}

// Analyze implements analysis.Analyzer
func (a *Analyzer) Analyze(ctx context.Context, runID string, mode string) error {
	if mode != analysis.ModeFull {
		return fmt.Errorf("zoning supports only %q mode, got %q", analysis.ModeFull, mode)
	}
	_, err := a.Rebuild(ctx, runID)
	return err
}

// Rebuild replaces every zone and assignment. A failure marks the run failed
// and may leave some regions zoned; the whole rebuild must then be rerun.
// Concurrent rebuilds against the same database are not guarded against.
func (a *Analyzer) Rebuild(ctx context.Context, runID string) (*RunSummary, error) {
	start := time.Now()
	log := a.logger.With("run_id", runID)
	log.Info("Starting rebuild", "etap_count", a.opts.EtapCount, "buffer_meters", a.opts.BufferMeters)

	if err := a.MarkRunAsRunning(ctx, runID, a.opts.EtapCount, a.opts.BufferMeters); err != nil {
		return nil, err
	}

	summary, err := a.rebuild(ctx, runID, log)
	if err != nil {
		if markErr := a.MarkRunAsFailed(context.WithoutCancel(ctx), runID, err.Error()); markErr != nil {
			log.Error("Failed to record run failure", "error", markErr)
		}
		log.Error("Rebuild failed", "error", err)
		return nil, fmt.Errorf("rebuild %s: %w", runID, err)
	}
	summary.Duration = time.Since(start)

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run summary: %w", err)
	}
	counters := analysis.RunCounters{
		RegionsProcessed: summary.RegionsProcessed,
		RegionsSkipped:   summary.RegionsSkipped,
		ZonesCreated:     summary.ZonesCreated,
		PointsClustered:  summary.PointsClustered,
		RecordIssues:     summary.RecordIssueCount,
		HullFailures:     len(summary.HullFailures),
	}
	if err := a.MarkRunAsCompleted(ctx, runID, counters, string(summaryJSON)); err != nil {
		return nil, err
	}

	log.Info("Rebuild completed",
		"regions", summary.RegionsProcessed,
		"regions_skipped", summary.RegionsSkipped,
		"zones", summary.ZonesCreated,
		"points", summary.PointsClustered,
		"avg_points_per_zone", summary.AvgPointsPerZone,
		"min_points_per_zone", summary.MinPointsPerZone,
		"max_points_per_zone", summary.MaxPointsPerZone,
		"zone_size_cv", summary.ZoneSizes.CV,
		"record_issues", summary.RecordIssueCount,
		"hull_failures", len(summary.HullFailures),
		"duration", summary.Duration,
	)

	a.afterRun(ctx, summary, log)
	return summary, nil
}

func (a *Analyzer) rebuild(ctx context.Context, runID string, log *slog.Logger) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:        runID,
		EtapCount:    a.opts.EtapCount,
		BufferMeters: a.opts.BufferMeters,
	}

	records, err := a.geometry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load geometry: %w", err)
	}
	coords, issues := ExtractCoordinates(records)
	summary.RecordIssueCount = len(issues)
	if len(issues) > maxReportedIssues {
		issues = issues[:maxReportedIssues]
	}
	summary.RecordIssues = issues
	log.Info("Extracted coordinates", "features", len(records), "coordinates", len(coords), "issues", summary.RecordIssueCount)

	buildings, err := a.buildings.ListForZoning(ctx)
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, 0, len(buildings))
	for _, b := range buildings {
		attr := Attribute{BuildingID: b.BuildingID, RiskScore: b.RiskScore}
		if b.RegionName != nil {
			attr.RegionName = *b.RegionName
		}
		attrs = append(attrs, attr)
	}

	groups, skips := GroupByRegion(attrs, coords, a.opts.EtapCount)
	summary.Skipped = skips
	summary.RegionsSkipped = len(skips)
	for _, s := range skips {
		summary.MissingCoordinates += s.MissingCoordinates
		log.Info("Skipping region", "region", s.Name, "points", s.PointCount, "required", a.opts.EtapCount)
	}

	if err := a.zones.ResetZones(ctx); err != nil {
		return nil, err
	}

	var drafts []*ZoneDraft
	for _, g := range groups {
		summary.MissingCoordinates += g.MissingCoordinates

		regionDrafts, failures, err := a.buildRegion(g, runID)
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", g.Name, err)
		}
		summary.HullFailures = append(summary.HullFailures, failures...)

		assignments := toAssignments(regionDrafts, runID)
		if err := a.zones.SaveRegion(ctx, assignments); err != nil {
			return nil, fmt.Errorf("region %q: %w", g.Name, err)
		}
		for i, d := range regionDrafts {
			d.ID = assignments[i].Zone.ID
			if d.ID == 0 {
				return nil, fmt.Errorf("zone %q was saved without an id", d.Name)
			}
		}
		for _, d := range regionDrafts {
			summary.PointsClustered += d.Stats.PointCount
		}
		drafts = append(drafts, regionDrafts...)
		summary.RegionsProcessed++

		log.Debug("Region zoned", "region", g.Name, "points", len(g.Points), "zones", len(regionDrafts))
	}

	RankZones(drafts)
	ranks := make(map[int64]int, len(drafts))
	for _, d := range drafts {
		ranks[d.ID] = d.Rank
	}
	if err := a.zones.ApplyRanks(ctx, ranks); err != nil {
		return nil, err
	}

	summary.ZonesCreated = len(drafts)
	fillZoneSizeStats(summary, drafts)
	return summary, nil
}

// buildRegion clusters one region and computes its zone drafts
func (a *Analyzer) buildRegion(g RegionGroup, runID string) ([]*ZoneDraft, []HullFailure, error) {
	clusters, err := Cluster(g.Points, a.opts.EtapCount)
	if err != nil {
		return nil, nil, err
	}

	var failures []HullFailure
	drafts := make([]*ZoneDraft, 0, len(clusters))
	for i, members := range clusters {
		d := &ZoneDraft{
			Region:   g.Name,
			Sequence: i + 1,
			Name:     ZoneName(g.Name, i+1),
			Members:  members,
			Stats:    Aggregate(members),
			Center:   meanCoordinate(members),
		}

		center := spatial.Point{Lat: d.Center.Lat, Lon: d.Center.Lng}
		planar := make([]spatial.Point, len(members))
		for j, p := range members {
			planar[j] = spatial.Point{Lat: p.Lat, Lon: p.Lng}
		}
		d.Geohash = spatial.CoverGeohash(center, planar)

		boundary, err := BuildBoundary(members, a.opts.BufferMeters)
		if err == nil {
			d.BoundaryJSON, err = EncodeBoundary(boundary)
		}
		if err != nil {
			failures = append(failures, HullFailure{Zone: d.Name, Reason: err.Error()})
			a.logger.Warn("Zone has no boundary", "run_id", runID, "zone", d.Name, "error", err)
			boundary, d.BoundaryJSON = nil, nil
		}
		d.Boundary = boundary
		drafts = append(drafts, d)
	}
	return drafts, failures, nil
}

func toAssignments(drafts []*ZoneDraft, runID string) []models.ZoneAssignment {
	assignments := make([]models.ZoneAssignment, 0, len(drafts))
	for _, d := range drafts {
		lat, lng, hash, run := d.Center.Lat, d.Center.Lng, d.Geohash, runID

		assignments = append(assignments, models.ZoneAssignment{
			Zone: &models.Zone{
				SequenceNumber:   d.Sequence,
				Name:             d.Name,
				RegionName:       d.Region,
				PointCount:       d.Stats.PointCount,
				TotalRiskScore:   d.Stats.TotalRiskScore,
				AverageRiskScore: d.Stats.AverageRiskScore,
				Status:           models.ZoneStatusUnplanned,
				CenterLat:        &lat,
				CenterLng:        &lng,
				CenterGeohash:    &hash,
				BoundaryGeoJSON:  d.BoundaryJSON,
				RunID:            &run,
			},
			BuildingIDs: d.MemberIDs(),
		})
	}
	return assignments
}

func fillZoneSizeStats(summary *RunSummary, drafts []*ZoneDraft) {
	sizes := make([]float64, len(drafts))
	risks := make([]float64, len(drafts))
	for i, d := range drafts {
		sizes[i] = float64(d.Stats.PointCount)
		risks[i] = d.Stats.AverageRiskScore
	}
	summary.ZoneSizes = stats.Describe(sizes)
	summary.ZoneRisk = stats.Describe(risks)

	summary.MinPointsPerZone = int(summary.ZoneSizes.Min)
	summary.MaxPointsPerZone = int(summary.ZoneSizes.Max)
	summary.AvgPointsPerZone = summary.ZoneSizes.Mean
}

// afterRun invalidates caches and announces the run. Failures only warn:
// the rebuild itself is already committed.
func (a *Analyzer) afterRun(ctx context.Context, summary *RunSummary, log *slog.Logger) {
	if a.opts.Invalidator != nil {
		if err := a.opts.Invalidator.Invalidate(ctx); err != nil {
			log.Warn("Failed to invalidate zone cache", "error", err)
		}
	}
	if a.opts.Publisher != nil {
		if err := a.opts.Publisher.Publish(ctx, EventRunCompleted, summary); err != nil {
			log.Warn("Failed to publish run summary", "error", err)
		}
	}
}
