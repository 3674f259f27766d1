package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Audit actions recorded by the booking engine.
const (
	ActionBookingCreated         = "booking.created"
	ActionBookingConfirmed       = "booking.confirmed"
	ActionBookingCancelled       = "booking.cancelled"
	ActionBookingRestored        = "booking.restored"
	ActionBookingRescheduled     = "booking.rescheduled"
	ActionBookingStatusChanged   = "booking.status_changed"
	ActionBookingDetailsUpdated  = "booking.details_updated"
	ActionBookingReminderSent    = "booking.reminder_sent"
	ActionBookingFollowUpSent    = "booking.follow_up_sent"
	ActionInventoryDeducted      = "inventory.deducted"
	ActionInventoryReturned      = "inventory.returned"
	ActionInventoryRestoreDeduct = "inventory.deducted_restore"
	ActionInventoryAdjusted      = "inventory.adjusted"
	ActionInventoryLowStock      = "inventory.low_stock_alerted"
)

// AuditDetails is the opaque key/value payload of an audit entry.
type AuditDetails map[string]any

func (d AuditDetails) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (d *AuditDetails) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*d = AuditDetails{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("audit details: unsupported source %T", src)
	}
	out := AuditDetails{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("audit details: %w", err)
		}
	}
	*d = out
	return nil
}

type AuditEntry struct {
	ID          int64        `db:"id" json:"id"`
	WorkspaceID int64        `db:"workspace_id" json:"workspace_id"`
	BookingID   *int64       `db:"booking_id" json:"booking_id,omitempty"`
	ActorID     *string      `db:"actor_id" json:"actor_id,omitempty"`
	Action      string       `db:"action" json:"action"`
	Details     AuditDetails `db:"details" json:"details"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// TimelineEntry is one row of a merged audit + notification history.
type TimelineEntry struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Action    string       `json:"action"`
	ActorID   *string      `json:"actor_id,omitempty"`
	Details   AuditDetails `json:"details"`
	CreatedAt time.Time    `json:"created_at"`
}

const (
	TimelineTypeAudit         = "audit"
	TimelineTypeCommunication = "communication"
)
