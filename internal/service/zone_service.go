package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/bayrakli/etap-backend/internal/cache"
	"github.com/bayrakli/etap-backend/internal/models"
	"github.com/bayrakli/etap-backend/internal/repository"
)

// EtapColors is the map palette, assigned to a region's zones in sequence order
var EtapColors = []string{
	"#3b82f6", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6",
	"#06b6d4", "#f43f5e", "#84cc16", "#ec4899", "#14b8a6",
}

// ZonePage is one page of zones
type ZonePage struct {
	Zones    []models.Zone `json:"zones"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

// RegionOverview is a region's zones with their boundaries as a FeatureCollection
type RegionOverview struct {
	Region     string                     `json:"region"`
	Zones      []models.RegionZoneSummary `json:"zones"`
	Boundaries *geojson.FeatureCollection `json:"boundaries"`
}

// ZoneService handles business logic for zones
type ZoneService struct {
	zones     *repository.ZoneRepository
	buildings *repository.BuildingRepository
	runs      *repository.RunRepository
	cache     cache.Cache
}

// NewZoneService creates a new zone service; a nil cache disables caching
func NewZoneService(zones *repository.ZoneRepository, buildings *repository.BuildingRepository, runs *repository.RunRepository, c cache.Cache) *ZoneService {
	if c == nil {
		c = cache.Noop{}
	}
	return &ZoneService{zones: zones, buildings: buildings, runs: runs, cache: c}
}

// cached serves key from the cache or fills it with load
func cached[T any](ctx context.Context, c cache.Cache, key string, load func() (T, error)) (T, error) {
	var v T
	if found, err := c.Get(ctx, key, &v); err != nil {
		slog.Warn("Cache read failed", "key", key, "error", err)
	} else if found {
		return v, nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		slog.Warn("Cache write failed", "key", key, "error", err)
	}
	return v, nil
}

// ListZones returns zones ordered by priority rank
func (s *ZoneService) ListZones(ctx context.Context, filter models.ZoneFilter) (*ZonePage, error) {
	filter.Normalize()
	key := fmt.Sprintf("zones:r=%s:s=%s:p=%d:n=%d", filter.Region, filter.Status, filter.Page, filter.PageSize)

	return cached(ctx, s.cache, key, func() (*ZonePage, error) {
		zones, total, err := s.zones.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		if zones == nil {
			zones = []models.Zone{}
		}
		return &ZonePage{Zones: zones, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
	})
}

// GetZone returns one zone
func (s *ZoneService) GetZone(ctx context.Context, id int64) (*models.Zone, error) {
	return cached(ctx, s.cache, fmt.Sprintf("zone:%d", id), func() (*models.Zone, error) {
		return s.zones.GetByID(ctx, id)
	})
}

// ListZoneBuildings returns a page of a zone's buildings
func (s *ZoneService) ListZoneBuildings(ctx context.Context, id int64, filter models.BuildingFilter) ([]models.Building, int, error) {
	if _, err := s.zones.GetByID(ctx, id); err != nil {
		return nil, 0, err
	}
	buildings, total, err := s.buildings.ListByZone(ctx, id, filter)
	if err != nil {
		return nil, 0, err
	}
	if buildings == nil {
		buildings = []models.Building{}
	}
	return buildings, total, nil
}

// RegionOverview returns a region's zones with risk breakdown and boundaries
func (s *ZoneService) RegionOverview(ctx context.Context, region string) (*RegionOverview, error) {
	return cached(ctx, s.cache, "region:"+region, func() (*RegionOverview, error) {
		zones, err := s.zones.ListByRegion(ctx, region)
		if err != nil {
			return nil, err
		}
		if len(zones) == 0 {
			return nil, repository.ErrNotFound
		}
		return &RegionOverview{
			Region:     region,
			Zones:      zones,
			Boundaries: boundaryCollection(zones),
		}, nil
	})
}

// boundaryCollection builds one feature per zone that has a boundary
func boundaryCollection(zones []models.RegionZoneSummary) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for i, z := range zones {
		if z.BoundaryGeoJSON == nil {
			continue
		}

		var g geom.T
		if err := geojson.Unmarshal([]byte(*z.BoundaryGeoJSON), &g); err != nil {
			slog.Warn("Skipping unreadable zone boundary", "zone_id", z.ID, "error", err)
			continue
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       fmt.Sprintf("%d", z.ID),
			Geometry: g,
			Properties: map[string]interface{}{
				"etap_id":       z.ID,
				"etap_adi":      z.Name,
				"bina_sayisi":   z.PointCount,
				"ortalama_risk": z.AverageRiskScore,
				"oncelik":       z.PriorityRank,
				"color":         EtapColors[i%len(EtapColors)],
			},
		})
	}
	return fc
}

// LatestRun returns the most recent rebuild run
func (s *ZoneService) LatestRun(ctx context.Context) (*models.RebuildRun, error) {
	return s.runs.Latest(ctx)
}
