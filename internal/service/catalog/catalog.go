package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/logger"
	"github.com/Domenick1991/appointments/internal/repository"
)

type CatalogUseCase interface {
	CreateWorkspace(ctx context.Context, ws *domain.Workspace) error
	GetWorkspace(ctx context.Context, id int64) (*domain.Workspace, error)
	CreateService(ctx context.Context, svc *domain.Service) error
	GetService(ctx context.Context, id int64) (*domain.Service, error)
	ListServices(ctx context.Context, workspaceID int64) ([]domain.Service, error)
}

// ServiceCache keeps a workspace's service list between catalog reads.
// Slot computation never goes through it.
type ServiceCache interface {
	GetServices(ctx context.Context, workspaceID int64) ([]domain.Service, error)
	SetServices(ctx context.Context, workspaceID int64, services []domain.Service, ttl time.Duration) error
	InvalidateServices(ctx context.Context, workspaceID int64) error
}

// Catalog owns the workspace and service definitions that bookings are made against.
type Catalog struct {
	store    *repository.Store
	cache    ServiceCache
	cacheTTL time.Duration
	logg     *logger.Logger
}

func NewCatalog(store *repository.Store, cache ServiceCache, cacheTTL time.Duration, logg *logger.Logger) *Catalog {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Catalog{store: store, cache: cache, cacheTTL: cacheTTL, logg: logg}
}

func (c *Catalog) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	ws.Name = strings.TrimSpace(ws.Name)
	ws.Slug = strings.ToLower(strings.TrimSpace(ws.Slug))
	if ws.Name == "" || ws.Slug == "" {
		return apperr.New(apperr.CodeValidation, "name and slug are required")
	}
	if _, err := ws.Location(); err != nil {
		return apperr.Newf(apperr.CodeValidation, "unknown timezone %q", ws.Timezone)
	}
	return c.store.InTx(ctx, func(repos repository.Repositories) error {
		return repos.Workspaces.Create(ctx, ws)
	})
}

func (c *Catalog) GetWorkspace(ctx context.Context, id int64) (*domain.Workspace, error) {
	return c.store.Repos().Workspaces.GetByID(ctx, id)
}

// CreateService validates the definition and links the inventory item, which
// must belong to the same workspace.
func (c *Catalog) CreateService(ctx context.Context, svc *domain.Service) error {
	svc.Name = strings.TrimSpace(svc.Name)
	if svc.Name == "" {
		return apperr.New(apperr.CodeValidation, "name is required")
	}
	if svc.DurationMinutes <= 0 {
		return apperr.New(apperr.CodeValidation, "duration_minutes must be positive")
	}
	if svc.InventoryQuantityRequired < 0 {
		return apperr.New(apperr.CodeValidation, "inventory_quantity_required must not be negative")
	}
	if svc.InventoryItemID == nil && svc.InventoryQuantityRequired > 0 {
		return apperr.New(apperr.CodeValidation, "inventory_quantity_required needs an inventory item")
	}

	err := c.store.InTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Workspaces.GetByID(ctx, svc.WorkspaceID); err != nil {
			return err
		}
		if svc.InventoryItemID != nil {
			item, err := repos.Inventory.GetByID(ctx, *svc.InventoryItemID)
			if err != nil {
				return err
			}
			if item.WorkspaceID != svc.WorkspaceID {
				return apperr.Newf(apperr.CodeValidation, "inventory item %d belongs to another workspace", item.ID)
			}
		}
		return repos.Services.Create(ctx, svc)
	})
	if err != nil {
		return err
	}
	if c.cache != nil {
		if err := c.cache.InvalidateServices(ctx, svc.WorkspaceID); err != nil {
			c.logg.Error(ctx, "failed to invalidate service cache", err)
		}
	}
	return nil
}

func (c *Catalog) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	return c.store.Repos().Services.GetByID(ctx, id)
}

func (c *Catalog) ListServices(ctx context.Context, workspaceID int64) ([]domain.Service, error) {
	if c.cache != nil {
		if cached, err := c.cache.GetServices(ctx, workspaceID); err == nil && cached != nil {
			return cached, nil
		}
	}

	services, err := c.store.Repos().Services.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		_ = c.cache.SetServices(ctx, workspaceID, services, c.cacheTTL)
	}
	return services, nil
}

var _ CatalogUseCase = (*Catalog)(nil)
