package domain

import "time"

type Service struct {
	ID                        int64              `db:"id" json:"id"`
	WorkspaceID               int64              `db:"workspace_id" json:"workspace_id"`
	Name                      string             `db:"name" json:"name"`
	DurationMinutes           int                `db:"duration_minutes" json:"duration_minutes"`
	Availability              WeeklyAvailability `db:"availability" json:"availability"`
	Location                  string             `db:"location" json:"location,omitempty"`
	InventoryItemID           *int64             `db:"inventory_item_id" json:"inventory_item_id,omitempty"`
	InventoryQuantityRequired int                `db:"inventory_quantity_required" json:"inventory_quantity_required"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// RequiresInventory reports whether each booking consumes stock of a linked item.
func (s Service) RequiresInventory() bool {
	return s.InventoryItemID != nil && s.InventoryQuantityRequired > 0
}
