package domain

import "time"

type NotificationKind string

const (
	NotificationBookingConfirmation NotificationKind = "booking_confirmation"
	NotificationBookingCancellation NotificationKind = "booking_cancellation"
	NotificationBookingReschedule   NotificationKind = "booking_reschedule"
	NotificationBookingRestored     NotificationKind = "booking_restored"
	NotificationBookingReminder     NotificationKind = "booking_reminder"
	NotificationVisitFollowUp       NotificationKind = "visit_follow_up"
	NotificationLowStock            NotificationKind = "inventory_low_stock"
)

// NotificationEvent is published after a transaction commits.
type NotificationEvent struct {
	EventID         string           `json:"event_id"`
	Kind            NotificationKind `json:"kind"`
	WorkspaceID     int64            `json:"workspace_id"`
	BookingID       *int64           `json:"booking_id,omitempty"`
	ContactID       *int64           `json:"contact_id,omitempty"`
	InventoryItemID *int64           `json:"inventory_item_id,omitempty"`
	Attempt         int              `json:"attempt"`
	OccurredAt      time.Time        `json:"occurred_at"`
}

type NotificationStatus string

const (
	NotificationStatusSent     NotificationStatus = "success"
	NotificationStatusFailed   NotificationStatus = "failed"
	NotificationStatusRequeued NotificationStatus = "requeued"
)

// NotificationLog is the delivery record written by the notification consumer.
type NotificationLog struct {
	ID              int64              `db:"id" json:"id"`
	WorkspaceID     int64              `db:"workspace_id" json:"workspace_id"`
	BookingID       *int64             `db:"booking_id" json:"booking_id,omitempty"`
	ContactID       *int64             `db:"contact_id" json:"contact_id,omitempty"`
	InventoryItemID *int64             `db:"inventory_item_id" json:"inventory_item_id,omitempty"`
	EventID         string             `db:"event_id" json:"event_id"`
	Kind            NotificationKind   `db:"kind" json:"kind"`
	Recipient       string             `db:"recipient" json:"recipient"`
	Status          NotificationStatus `db:"status" json:"status"`
	ErrorMessage    *string            `db:"error_message" json:"error_message,omitempty"`
	Attempts        int                `db:"attempts" json:"attempts"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	SentAt          *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
}
