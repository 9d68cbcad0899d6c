package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bayrakli/etap-backend/internal/models"
	"github.com/bayrakli/etap-backend/internal/repository"
	"github.com/bayrakli/etap-backend/internal/service"
	"github.com/bayrakli/etap-backend/pkg/response"
)

// ZoneHandler handles HTTP requests for zones (etaps)
type ZoneHandler struct {
	service *service.ZoneService
}

// NewZoneHandler creates a new zone handler
func NewZoneHandler(service *service.ZoneService) *ZoneHandler {
	return &ZoneHandler{service: service}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid zone ID")
		return 0, false
	}
	return id, true
}

// ListZones handles GET /api/v1/etaps
func (h *ZoneHandler) ListZones(c *gin.Context) {
	var filter models.ZoneFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	page, err := h.service.ListZones(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, "Failed to list zones", err)
		return
	}

	response.Success(c, response.Page{
		Items:    page.Zones,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	})
}

// GetZone handles GET /api/v1/etaps/:id
func (h *ZoneHandler) GetZone(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	zone, err := h.service.GetZone(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		response.NotFound(c, "Zone not found")
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to get zone", err)
		return
	}

	response.Success(c, zone)
}

// ListZoneBuildings handles GET /api/v1/etaps/:id/buildings
func (h *ZoneHandler) ListZoneBuildings(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var filter models.BuildingFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	switch filter.RiskCategory {
	case "", models.RiskLow, models.RiskMedium, models.RiskHigh:
	default:
		response.BadRequest(c, "Invalid risk category")
		return
	}

	buildings, total, err := h.service.ListZoneBuildings(c.Request.Context(), id, filter)
	if errors.Is(err, repository.ErrNotFound) {
		response.NotFound(c, "Zone not found")
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to list zone buildings", err)
		return
	}

	filter.Normalize()
	response.Success(c, response.Page{
		Items:    buildings,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

// GetRegionZones handles GET /api/v1/regions/:name/etaps
func (h *ZoneHandler) GetRegionZones(c *gin.Context) {
	overview, err := h.service.RegionOverview(c.Request.Context(), c.Param("name"))
	if errors.Is(err, repository.ErrNotFound) {
		response.NotFound(c, "No zones for region")
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to get region zones", err)
		return
	}

	response.Success(c, overview)
}

// GetLatestRun handles GET /api/v1/runs/latest
func (h *ZoneHandler) GetLatestRun(c *gin.Context) {
	run, err := h.service.LatestRun(c.Request.Context())
	if errors.Is(err, repository.ErrNotFound) {
		response.NotFound(c, "No rebuild has run yet")
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to get latest run", err)
		return
	}

	response.Success(c, run)
}
