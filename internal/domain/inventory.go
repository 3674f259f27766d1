package domain

import "time"

type InventoryItem struct {
	ID          int64      `db:"id" json:"id"`
	WorkspaceID int64      `db:"workspace_id" json:"workspace_id"`
	Name        string     `db:"name" json:"name"`
	Quantity    int        `db:"quantity" json:"quantity"`
	Threshold   int        `db:"threshold" json:"threshold"`
	LastAlertAt *time.Time `db:"last_alert_at" json:"last_alert_at,omitempty"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// IsLow reports quantity at or below threshold.
func (i InventoryItem) IsLow() bool {
	return i.Quantity <= i.Threshold
}
