package email

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"

	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/logger"
	"github.com/Domenick1991/appointments/internal/metrics"
	"github.com/Domenick1991/appointments/internal/repository"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Delivery consumes notification events, sends them and records every attempt
// in the notification log. Failed rows are picked up by the resend sweep.
type Delivery struct {
	store   *repository.Store
	mailer  Mailer
	logg    *logger.Logger
	metrics *metrics.BookingMetrics
}

func NewDelivery(store *repository.Store, mailer Mailer, logg *logger.Logger, m *metrics.BookingMetrics) *Delivery {
	return &Delivery{store: store, mailer: mailer, logg: logg, metrics: m}
}

// HandleMessage decodes a Kafka message into an event and delivers it.
func (d *Delivery) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event domain.NotificationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("decode notification event: %w", err)
	}
	return d.Handle(ctx, event)
}

func (d *Delivery) Handle(ctx context.Context, event domain.NotificationEvent) error {
	ctx = d.logg.WithFields(ctx, map[string]any{
		"event_id": event.EventID,
		"kind":     string(event.Kind),
		"attempt":  event.Attempt,
	})
	if event.Attempt <= 0 {
		event.Attempt = 1
	}

	entry := &domain.NotificationLog{
		WorkspaceID:     event.WorkspaceID,
		BookingID:       event.BookingID,
		ContactID:       event.ContactID,
		InventoryItemID: event.InventoryItemID,
		EventID:         event.EventID,
		Kind:            event.Kind,
		Attempts:        event.Attempt,
	}

	msg, err := d.render(ctx, event)
	if err == nil {
		entry.Recipient = msg.To
		err = d.mailer.Send(ctx, msg)
	}
	if err != nil {
		cause := err.Error()
		entry.Status = domain.NotificationStatusFailed
		entry.ErrorMessage = &cause
	} else {
		sent := d.store.Now()
		entry.Status = domain.NotificationStatusSent
		entry.SentAt = &sent
	}
	d.metrics.Notification(string(event.Kind), string(entry.Status))

	if logErr := d.store.Repos().Notifications.Insert(ctx, entry); logErr != nil {
		d.logg.Error(ctx, "failed to record notification", logErr)
		if err == nil {
			return logErr
		}
	}
	if err != nil {
		d.logg.Error(ctx, "notification delivery failed", err)
		return err
	}
	d.logg.Info(ctx, "notification delivered")
	return nil
}

func (d *Delivery) render(ctx context.Context, event domain.NotificationEvent) (Message, error) {
	repos := d.store.Repos()
	if event.Kind == domain.NotificationLowStock {
		if event.InventoryItemID == nil {
			return Message{}, fmt.Errorf("low stock event without item")
		}
		item, err := repos.Inventory.GetByID(ctx, *event.InventoryItemID)
		if err != nil {
			return Message{}, err
		}
		ws, err := repos.Workspaces.GetByID(ctx, item.WorkspaceID)
		if err != nil {
			return Message{}, err
		}
		return Message{
			To:      "owners@" + ws.Slug,
			Subject: fmt.Sprintf("Low stock: %s", item.Name),
			Body:    fmt.Sprintf("%s is down to %d (threshold %d).", item.Name, item.Quantity, item.Threshold),
		}, nil
	}

	if event.BookingID == nil {
		return Message{}, fmt.Errorf("%s event without booking", event.Kind)
	}
	booking, err := repos.Bookings.GetByID(ctx, *event.BookingID)
	if err != nil {
		return Message{}, err
	}
	contact, err := repos.Contacts.GetByID(ctx, booking.ContactID)
	if err != nil {
		return Message{}, err
	}
	svc, err := repos.Services.GetByID(ctx, booking.ServiceID)
	if err != nil {
		return Message{}, err
	}
	ws, err := repos.Workspaces.GetByID(ctx, booking.WorkspaceID)
	if err != nil {
		return Message{}, err
	}
	loc, err := ws.Location()
	if err != nil {
		loc = time.UTC
	}
	when := booking.StartTime.In(loc).Format("Mon 02 Jan 2006 15:04 MST")

	subject, body := bookingCopy(event.Kind, svc.Name, when)
	return Message{To: contact.Email, Subject: subject, Body: body}, nil
}

func bookingCopy(kind domain.NotificationKind, service, when string) (string, string) {
	switch kind {
	case domain.NotificationBookingConfirmation:
		return "Booking received", fmt.Sprintf("Your %s is booked for %s.", service, when)
	case domain.NotificationBookingCancellation:
		return "Booking cancelled", fmt.Sprintf("Your %s on %s has been cancelled.", service, when)
	case domain.NotificationBookingReschedule:
		return "Booking rescheduled", fmt.Sprintf("Your %s has moved to %s.", service, when)
	case domain.NotificationBookingRestored:
		return "Booking restored", fmt.Sprintf("Your %s on %s is confirmed again.", service, when)
	case domain.NotificationBookingReminder:
		return "Reminder", fmt.Sprintf("See you for your %s on %s.", service, when)
	case domain.NotificationVisitFollowUp:
		return "Thanks for visiting", fmt.Sprintf("Thank you for your %s on %s.", service, when)
	default:
		return string(kind), fmt.Sprintf("%s on %s", service, when)
	}
}
