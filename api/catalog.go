package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/service/catalog"
)

type AvailabilityUseCase interface {
	AvailableSlots(ctx context.Context, serviceID int64, date, timezone string) ([]string, error)
}

// CatalogHandler serves workspaces, their services and the public slot listing.
type CatalogHandler struct {
	catalog      catalog.CatalogUseCase
	availability AvailabilityUseCase
}

type createWorkspaceRequest struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Timezone string `json:"timezone"`
}

type createServiceRequest struct {
	Name                      string                    `json:"name"`
	DurationMinutes           int                       `json:"duration_minutes"`
	Availability              domain.WeeklyAvailability `json:"availability"`
	Location                  string                    `json:"location"`
	InventoryItemID           *int64                    `json:"inventory_item_id"`
	InventoryQuantityRequired int                       `json:"inventory_quantity_required"`
}

type slotsResponse struct {
	ServiceID int64    `json:"service_id"`
	Date      string   `json:"date"`
	Timezone  string   `json:"timezone,omitempty"`
	Slots     []string `json:"slots"`
}

func NewCatalogHandler(catalog catalog.CatalogUseCase, availability AvailabilityUseCase) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, availability: availability}
}

func (h *CatalogHandler) Register(router *gin.RouterGroup) {
	router.POST("/workspaces", h.createWorkspace)
	router.GET("/workspaces/:id", h.getWorkspace)

	services := router.Group("/services")
	services.POST("", h.createService)
	services.GET("", h.listServices)
	services.GET("/:id", h.getService)
	services.GET("/:id/availability", h.availableSlots)
}

func (h *CatalogHandler) createWorkspace(c *gin.Context) {
	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, validationError(err.Error()))
		return
	}
	ws := &domain.Workspace{Name: req.Name, Slug: req.Slug, Timezone: req.Timezone}
	if err := h.catalog.CreateWorkspace(c.Request.Context(), ws); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ws)
}

func (h *CatalogHandler) getWorkspace(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	ws, err := h.catalog.GetWorkspace(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

func (h *CatalogHandler) createService(c *gin.Context) {
	actor, ok := requireStaff(c)
	if !ok {
		return
	}
	var req createServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, validationError(err.Error()))
		return
	}
	svc := &domain.Service{
		WorkspaceID:               actor.WorkspaceID,
		Name:                      req.Name,
		DurationMinutes:           req.DurationMinutes,
		Availability:              req.Availability,
		Location:                  req.Location,
		InventoryItemID:           req.InventoryItemID,
		InventoryQuantityRequired: req.InventoryQuantityRequired,
	}
	if err := h.catalog.CreateService(c.Request.Context(), svc); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, svc)
}

func (h *CatalogHandler) listServices(c *gin.Context) {
	actor, ok := requireStaff(c)
	if !ok {
		return
	}
	services, err := h.catalog.ListServices(c.Request.Context(), actor.WorkspaceID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

func (h *CatalogHandler) getService(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	svc, err := h.catalog.GetService(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

// availableSlots is public; date is YYYY-MM-DD and timezone defaults to the workspace's.
func (h *CatalogHandler) availableSlots(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	date := c.Query("date")
	if date == "" {
		writeError(c, apperr.New(apperr.CodeValidation, "date is required").
			WithDetails(map[string]string{"date": "required"}))
		return
	}
	timezone := c.Query("timezone")
	slots, err := h.availability.AvailableSlots(c.Request.Context(), id, date, timezone)
	if err != nil {
		writeError(c, err)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	c.JSON(http.StatusOK, slotsResponse{ServiceID: id, Date: date, Timezone: timezone, Slots: slots})
}
