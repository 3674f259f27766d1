package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/appointments/internal/domain"
)

type ServiceRepository interface {
	Create(ctx context.Context, s *domain.Service) error
	GetByID(ctx context.Context, id int64) (*domain.Service, error)
	// GetForUpdate locks the service row. Every booking write for the service takes
	// this lock first, so overlap checks for one service run one at a time.
	GetForUpdate(ctx context.Context, id int64) (*domain.Service, error)
	ListByWorkspace(ctx context.Context, workspaceID int64) ([]domain.Service, error)
}

const serviceSelect = `SELECT id, workspace_id, name, duration_minutes, availability, location,
	inventory_item_id, inventory_quantity_required FROM services`

type SQLServiceRepository struct {
	sqlRepo
}

func (r *SQLServiceRepository) Create(ctx context.Context, s *domain.Service) error {
	if s.Availability == nil {
		s.Availability = domain.WeeklyAvailability{}
	}
	const query = `INSERT INTO services
		(workspace_id, name, duration_minutes, availability, location, inventory_item_id, inventory_quantity_required)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	err := r.get(ctx, &s.ID, query,
		s.WorkspaceID, s.Name, s.DurationMinutes, s.Availability, s.Location, s.InventoryItemID, s.InventoryQuantityRequired)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

func (r *SQLServiceRepository) GetByID(ctx context.Context, id int64) (*domain.Service, error) {
	return r.getService(ctx, id, "")
}

func (r *SQLServiceRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Service, error) {
	return r.getService(ctx, id, r.dialect.lockClause())
}

func (r *SQLServiceRepository) getService(ctx context.Context, id int64, lock string) (*domain.Service, error) {
	var s domain.Service
	if err := r.get(ctx, &s, serviceSelect+" WHERE id = ?"+lock, id); err != nil {
		return nil, notFound(err, "service", id)
	}
	return &s, nil
}

func (r *SQLServiceRepository) ListByWorkspace(ctx context.Context, workspaceID int64) ([]domain.Service, error) {
	var services []domain.Service
	if err := r.selectAll(ctx, &services, serviceSelect+" WHERE workspace_id = ? ORDER BY name, id", workspaceID); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}
