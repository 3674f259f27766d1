package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/domain"
)

type InventoryRepository interface {
	Create(ctx context.Context, item *domain.InventoryItem) error
	GetByID(ctx context.Context, id int64) (*domain.InventoryItem, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.InventoryItem, error)
	// Decrement subtracts quantity only when enough stock is left and returns the new level.
	Decrement(ctx context.Context, id int64, quantity int) (int, error)
	Increment(ctx context.Context, id int64, quantity int) (int, error)
	// ListLowStock returns items at or below threshold not alerted since alertedBefore.
	ListLowStock(ctx context.Context, alertedBefore time.Time, limit int) ([]domain.InventoryItem, error)
	// MarkAlerted stamps last_alert_at if the item is still low and due; false means another sweep won.
	MarkAlerted(ctx context.Context, id int64, at, alertedBefore time.Time) (bool, error)
	ListByWorkspace(ctx context.Context, workspaceID int64) ([]domain.InventoryItem, error)
}

const inventorySelect = "SELECT id, workspace_id, name, quantity, threshold, last_alert_at, updated_at FROM inventory_items"

type SQLInventoryRepository struct {
	sqlRepo
}

func (r *SQLInventoryRepository) Create(ctx context.Context, item *domain.InventoryItem) error {
	if item.Quantity < 0 {
		return apperr.New(apperr.CodeValidation, "quantity must not be negative")
	}
	item.UpdatedAt = r.now()
	const query = `INSERT INTO inventory_items (workspace_id, name, quantity, threshold, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`
	if err := r.get(ctx, &item.ID, query, item.WorkspaceID, item.Name, item.Quantity, item.Threshold, item.UpdatedAt); err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}
	return nil
}

func (r *SQLInventoryRepository) GetByID(ctx context.Context, id int64) (*domain.InventoryItem, error) {
	return r.getItem(ctx, id, "")
}

func (r *SQLInventoryRepository) GetForUpdate(ctx context.Context, id int64) (*domain.InventoryItem, error) {
	return r.getItem(ctx, id, r.dialect.lockClause())
}

func (r *SQLInventoryRepository) getItem(ctx context.Context, id int64, lock string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	if err := r.get(ctx, &item, inventorySelect+" WHERE id = ?"+lock, id); err != nil {
		return nil, notFound(err, "inventory item", id)
	}
	return &item, nil
}

func (r *SQLInventoryRepository) Decrement(ctx context.Context, id int64, quantity int) (int, error) {
	var remaining int
	const query = `UPDATE inventory_items SET quantity = quantity - ?, updated_at = ?
		WHERE id = ? AND quantity >= ?
		RETURNING quantity`
	err := r.get(ctx, &remaining, query, quantity, r.now(), id, quantity)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, errNoRows) {
		return 0, fmt.Errorf("decrement inventory item %d: %w", id, err)
	}
	item, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return 0, getErr
	}
	return 0, apperr.Newf(apperr.CodeInsufficientInventory, "%s: %d in stock, %d required", item.Name, item.Quantity, quantity).
		WithDetails(map[string]any{"inventory_item_id": id, "available": item.Quantity, "required": quantity})
}

func (r *SQLInventoryRepository) Increment(ctx context.Context, id int64, quantity int) (int, error) {
	var level int
	const query = `UPDATE inventory_items SET quantity = quantity + ?, updated_at = ?
		WHERE id = ?
		RETURNING quantity`
	if err := r.get(ctx, &level, query, quantity, r.now(), id); err != nil {
		return 0, notFound(err, "inventory item", id)
	}
	return level, nil
}

func (r *SQLInventoryRepository) ListLowStock(ctx context.Context, alertedBefore time.Time, limit int) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	err := r.selectAll(ctx, &items,
		inventorySelect+` WHERE quantity <= threshold AND (last_alert_at IS NULL OR last_alert_at < ?)
		ORDER BY id LIMIT ?`, dbTime(alertedBefore), limit)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return items, nil
}

func (r *SQLInventoryRepository) MarkAlerted(ctx context.Context, id int64, at, alertedBefore time.Time) (bool, error) {
	n, err := r.exec(ctx,
		`UPDATE inventory_items SET last_alert_at = ?
		WHERE id = ? AND quantity <= threshold AND (last_alert_at IS NULL OR last_alert_at < ?)`,
		dbTime(at), id, dbTime(alertedBefore))
	if err != nil {
		return false, fmt.Errorf("mark inventory item %d alerted: %w", id, err)
	}
	return n == 1, nil
}

func (r *SQLInventoryRepository) ListByWorkspace(ctx context.Context, workspaceID int64) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	if err := r.selectAll(ctx, &items, inventorySelect+" WHERE workspace_id = ? ORDER BY name, id", workspaceID); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}
