// Package notify publishes notification events after a transaction commits.
// Delivery is best effort: the caller never waits for or inspects the result.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/logger"
	"github.com/Domenick1991/appointments/internal/metrics"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.NotificationEvent)
}

// BookingEvent builds an event about b addressed to its contact.
func BookingEvent(kind domain.NotificationKind, b *domain.Booking) domain.NotificationEvent {
	bookingID, contactID := b.ID, b.ContactID
	return domain.NotificationEvent{
		Kind:        kind,
		WorkspaceID: b.WorkspaceID,
		BookingID:   &bookingID,
		ContactID:   &contactID,
	}
}

// LowStockEvent builds an owner alert for item.
func LowStockEvent(item *domain.InventoryItem) domain.NotificationEvent {
	itemID := item.ID
	return domain.NotificationEvent{
		Kind:            domain.NotificationLowStock,
		WorkspaceID:     item.WorkspaceID,
		InventoryItemID: &itemID,
	}
}

func prepare(event domain.NotificationEvent, now time.Time) domain.NotificationEvent {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Attempt <= 0 {
		event.Attempt = 1
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now.UTC()
	}
	return event
}

// EventKey keeps one booking's (or one item's) events on one partition.
func EventKey(event domain.NotificationEvent) string {
	switch {
	case event.BookingID != nil:
		return fmt.Sprintf("booking-%d", *event.BookingID)
	case event.InventoryItemID != nil:
		return fmt.Sprintf("inventory-%d", *event.InventoryItemID)
	default:
		return fmt.Sprintf("workspace-%d", event.WorkspaceID)
	}
}

type Publisher interface {
	PublishWithRetry(ctx context.Context, topic, key string, payload any, maxRetries int) error
}

type KafkaDispatcher struct {
	publisher Publisher
	topic     string
	retries   int
	timeout   time.Duration
	logg      *logger.Logger
	metrics   *metrics.BookingMetrics
	wg        sync.WaitGroup
}

type KafkaOption func(*KafkaDispatcher)

func WithRetries(n int) KafkaOption {
	return func(d *KafkaDispatcher) {
		if n > 0 {
			d.retries = n
		}
	}
}

func WithMetrics(m *metrics.BookingMetrics) KafkaOption {
	return func(d *KafkaDispatcher) {
		d.metrics = m
	}
}

func NewKafkaDispatcher(publisher Publisher, topic string, logg *logger.Logger, opts ...KafkaOption) *KafkaDispatcher {
	d := &KafkaDispatcher{
		publisher: publisher,
		topic:     topic,
		retries:   3,
		timeout:   10 * time.Second,
		logg:      logg,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch publishes in the background. The request context's values are kept
// for logging but its cancellation is not, so a finished request does not abort
// the publish.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, event domain.NotificationEvent) {
	event = prepare(event, time.Now())
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		pubCtx = d.logg.WithFields(pubCtx, map[string]any{
			"event_id": event.EventID,
			"kind":     string(event.Kind),
			"attempt":  event.Attempt,
		})
		if err := d.publisher.PublishWithRetry(pubCtx, d.topic, EventKey(event), event, d.retries); err != nil {
			d.metrics.Notification(string(event.Kind), "publish_failed")
			d.logg.Error(pubCtx, "notification publish failed", err)
			return
		}
		d.metrics.Notification(string(event.Kind), "published")
		d.logg.Info(pubCtx, "notification published")
	}()
}

// Wait blocks until in-flight publishes finish or ctx ends.
func (d *KafkaDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recorder keeps dispatched events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (r *Recorder) Dispatch(_ context.Context, event domain.NotificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, prepare(event, time.Now()))
}

func (r *Recorder) Events() []domain.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.NotificationEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Kinds() []domain.NotificationKind {
	events := r.Events()
	kinds := make([]domain.NotificationKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type nop struct{}

func (nop) Dispatch(context.Context, domain.NotificationEvent) {}

// Nop discards every event.
func Nop() Dispatcher { return nop{} }
