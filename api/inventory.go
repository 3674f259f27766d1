package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/service/inventory"
)

type InventoryUseCase interface {
	CreateItem(ctx context.Context, item *domain.InventoryItem) error
	Adjust(ctx context.Context, workspaceID, itemID int64, delta int, actorID *string, reason string) (inventory.Movement, error)
	List(ctx context.Context, workspaceID int64) ([]domain.InventoryItem, error)
}

type ActivityUseCase interface {
	RecentActivity(ctx context.Context, workspaceID int64, limit int) ([]domain.TimelineEntry, error)
}

const defaultActivityLimit = 50

// InventoryHandler is the staff-only surface for stock levels and the workspace activity feed.
type InventoryHandler struct {
	inventory InventoryUseCase
	activity  ActivityUseCase
}

type createItemRequest struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Threshold int    `json:"threshold"`
}

type adjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type movementResponse struct {
	Item   domain.InventoryItem `json:"item"`
	Delta  int                  `json:"delta"`
	Before int                  `json:"before"`
	After  int                  `json:"after"`
	Low    bool                 `json:"low"`
}

func NewInventoryHandler(inventory InventoryUseCase, activity ActivityUseCase) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, activity: activity}
}

func (h *InventoryHandler) Register(router *gin.RouterGroup) {
	router.GET("/inventory", h.list)
	router.POST("/inventory", h.create)
	router.POST("/inventory/:id/adjust", h.adjust)
	router.GET("/activity", h.recentActivity)
}

func (h *InventoryHandler) list(c *gin.Context) {
	actor, ok := requireStaff(c)
	if !ok {
		return
	}
	items, err := h.inventory.List(c.Request.Context(), actor.WorkspaceID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *InventoryHandler) create(c *gin.Context) {
	actor, ok := requireStaff(c)
	if !ok {
		return
	}
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, validationError(err.Error()))
		return
	}
	item := &domain.InventoryItem{
		WorkspaceID: actor.WorkspaceID,
		Name:        req.Name,
		Quantity:    req.Quantity,
		Threshold:   req.Threshold,
	}
	if err := h.inventory.CreateItem(c.Request.Context(), item); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *InventoryHandler) adjust(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	actor, ok := requireStaff(c)
	if !ok {
		return
	}
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, validationError(err.Error()))
		return
	}
	mv, err := h.inventory.Adjust(c.Request.Context(), actor.WorkspaceID, id, req.Delta, actor.ID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, movementResponse{Item: mv.Item, Delta: mv.Delta, Before: mv.Before, After: mv.After, Low: mv.Low()})
}

func (h *InventoryHandler) recentActivity(c *gin.Context) {
	actor, ok := requireStaff(c)
	if !ok {
		return
	}
	limit := defaultActivityLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(c, validationError("limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	entries, err := h.activity.RecentActivity(c.Request.Context(), actor.WorkspaceID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
