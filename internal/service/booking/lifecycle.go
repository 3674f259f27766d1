package booking

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/logger"
	"github.com/Domenick1991/appointments/internal/metrics"
	"github.com/Domenick1991/appointments/internal/notify"
	"github.com/Domenick1991/appointments/internal/repository"
	"github.com/Domenick1991/appointments/internal/service/audit"
	"github.com/Domenick1991/appointments/internal/service/inventory"
)

const tracerName = "github.com/Domenick1991/appointments/internal/service/booking"

// SlotHolder short-circuits duplicate submissions for the same start before the
// database is touched. The transactional overlap check stays authoritative.
type SlotHolder interface {
	AcquireSlotHold(ctx context.Context, serviceID int64, start time.Time, ttl time.Duration) (bool, error)
	ReleaseSlotHold(ctx context.Context, serviceID int64, start time.Time) error
}

// Lifecycle creates and moves bookings through their states. Every check and
// write of one operation runs in a single transaction; notifications go out
// only after it commits.
type Lifecycle struct {
	store      *repository.Store
	ledger     *inventory.Ledger
	trail      *audit.Trail
	dispatcher notify.Dispatcher
	holds      SlotHolder
	holdTTL    time.Duration
	metrics    *metrics.BookingMetrics
	logg       *logger.Logger
	tracer     trace.Tracer
}

type Option func(*Lifecycle)

func WithSlotHolds(holds SlotHolder, ttl time.Duration) Option {
	return func(l *Lifecycle) {
		if ttl > 0 {
			l.holds = holds
			l.holdTTL = ttl
		}
	}
}

func WithDispatcher(d notify.Dispatcher) Option {
	return func(l *Lifecycle) { l.dispatcher = d }
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(l *Lifecycle) { l.metrics = m }
}

func WithLogger(logg *logger.Logger) Option {
	return func(l *Lifecycle) { l.logg = logg }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Lifecycle) { l.tracer = tp.Tracer(tracerName) }
}

func NewLifecycle(store *repository.Store, ledger *inventory.Ledger, trail *audit.Trail, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:      store,
		ledger:     ledger,
		trail:      trail,
		dispatcher: notify.Nop(),
		logg:       logger.Nop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// outcome collects what a committed transaction must publish.
type outcome struct {
	booking   *domain.Booking
	events    []domain.NotificationKind
	movements []inventory.Movement
	action    string
}

func (l *Lifecycle) begin(ctx context.Context, op string, bookingID int64) (context.Context, trace.Span, time.Time) {
	ctx, span := l.tracer.Start(ctx, "booking."+op)
	if bookingID != 0 {
		span.SetAttributes(attribute.Int64("booking.id", bookingID))
		ctx = l.logg.WithBookingID(ctx, bookingID)
	}
	return ctx, span, time.Now()
}

func (l *Lifecycle) finish(ctx context.Context, span trace.Span, op string, started time.Time, out *outcome, err error) {
	defer span.End()
	l.metrics.Observe(op, started, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.CodeOf(err)))
		l.logg.Warn(l.logg.WithFields(ctx, map[string]any{"operation": op, "code": string(apperr.CodeOf(err)), "error": err.Error()}), "booking operation rejected")
		return
	}
	span.SetStatus(codes.Ok, "")
	if out == nil || out.booking == nil {
		return
	}
	ctx = l.logg.WithBookingID(ctx, out.booking.ID)
	if out.action != "" {
		l.logg.Info(l.logg.WithFields(ctx, map[string]any{"action": out.action, "status": string(out.booking.Status)}), "booking transition committed")
	}
	for _, kind := range out.events {
		l.dispatcher.Dispatch(ctx, notify.BookingEvent(kind, out.booking))
	}
	l.ledger.Observe(ctx, out.movements...)
}

// Create books input.StartTime for the service. It fails with CONFLICT when a
// non-cancelled booking of the service overlaps and with INSUFFICIENT_INVENTORY
// when the linked item is short; nothing is written in either case.
func (l *Lifecycle) Create(ctx context.Context, input CreateInput, actor Actor) (b *domain.Booking, err error) {
	ctx, span, started := l.begin(ctx, "create", 0)
	out := &outcome{}
	defer func() { l.finish(ctx, span, "create", started, out, err) }()

	if err := input.validate(); err != nil {
		return nil, err
	}
	start := input.StartTime.UTC()
	span.SetAttributes(attribute.Int64("service.id", input.ServiceID), attribute.String("booking.start", start.Format(time.RFC3339)))

	if l.holds != nil {
		held, holdErr := l.holds.AcquireSlotHold(ctx, input.ServiceID, start, l.holdTTL)
		switch {
		case holdErr != nil:
			l.logg.Error(ctx, "slot hold unavailable, relying on database check", holdErr)
		case !held:
			return nil, apperr.New(apperr.CodeConflict, "time slot is being booked by another request").
				WithDetails(map[string]any{"service_id": input.ServiceID, "start_time": start})
		default:
			defer func() {
				if relErr := l.holds.ReleaseSlotHold(context.WithoutCancel(ctx), input.ServiceID, start); relErr != nil {
					l.logg.Error(ctx, "failed to release slot hold", relErr)
				}
			}()
		}
	}

	err = l.store.InTx(ctx, func(repos repository.Repositories) error {
		svc, err := repos.Services.GetForUpdate(ctx, input.ServiceID)
		if err != nil {
			return err
		}
		if !actor.allows(svc.WorkspaceID) {
			return apperr.Newf(apperr.CodeNotFound, "service %d not found", input.ServiceID)
		}
		interval := domain.NewInterval(start, svc.Duration())
		if err := checkFree(ctx, repos, repository.OverlapQuery{
			ServiceID: svc.ID,
			Interval:  interval,
			Statuses:  domain.OccupyingStatuses,
		}); err != nil {
			return err
		}

		contact, err := resolveContact(ctx, repos, svc.WorkspaceID, input.Contact)
		if err != nil {
			return err
		}

		booking := &domain.Booking{
			WorkspaceID: svc.WorkspaceID,
			ServiceID:   svc.ID,
			ContactID:   contact.ID,
			StaffID:     input.StaffID,
			StartTime:   interval.Start,
			EndTime:     interval.End,
			Status:      domain.BookingStatusPending,
		}
		if err := repos.Bookings.Create(ctx, booking); err != nil {
			return err
		}
		if _, err := l.trail.Append(ctx, repos, audit.Entry{
			WorkspaceID: booking.WorkspaceID,
			BookingID:   &booking.ID,
			ActorID:     actor.ID,
			Action:      domain.ActionBookingCreated,
			Details: domain.AuditDetails{
				"service_id": svc.ID,
				"contact_id": contact.ID,
				"start_time": booking.StartTime,
				"end_time":   booking.EndTime,
				"source":     actor.source(),
			},
		}); err != nil {
			return err
		}
		if svc.RequiresInventory() {
			m, err := l.ledger.Reserve(ctx, repos, inventory.Change{
				ItemID:    *svc.InventoryItemID,
				Quantity:  svc.InventoryQuantityRequired,
				BookingID: &booking.ID,
				ActorID:   actor.ID,
				Action:    domain.ActionInventoryDeducted,
			})
			if err != nil {
				return err
			}
			out.movements = append(out.movements, m)
		}
		out.booking = booking
		return nil
	})
	if err != nil {
		out = nil
		return nil, err
	}
	out.action = domain.ActionBookingCreated
	out.events = []domain.NotificationKind{domain.NotificationBookingConfirmation}
	return out.booking, nil
}

// Confirm moves a PENDING booking to CONFIRMED. Confirming a confirmed booking is a no-op.
func (l *Lifecycle) Confirm(ctx context.Context, bookingID int64, actor Actor) (b *domain.Booking, err error) {
	ctx, span, started := l.begin(ctx, "confirm", bookingID)
	out := &outcome{}
	defer func() { l.finish(ctx, span, "confirm", started, out, err) }()

	err = l.store.InTx(ctx, func(repos repository.Repositories) error {
		booking, err := lockBooking(ctx, repos, bookingID, actor)
		if err != nil {
			return err
		}
		out.booking = booking
		if booking.Status == domain.TransitionConfirm.Target() {
			return nil
		}
		next, err := domain.TransitionConfirm.Apply(booking.Status)
		if err != nil {
			return err
		}
		booking.Status = next
		if err := repos.Bookings.Update(ctx, booking); err != nil {
			return err
		}
		_, err = l.trail.Append(ctx, repos, audit.Entry{
			WorkspaceID: booking.WorkspaceID,
			BookingID:   &booking.ID,
			ActorID:     actor.ID,
			Action:      domain.ActionBookingConfirmed,
			Details:     domain.AuditDetails{"source": actor.source()},
		})
		if err != nil {
			return err
		}
		out.action = domain.ActionBookingConfirmed
		out.events = []domain.NotificationKind{domain.NotificationBookingConfirmation}
		return nil
	})
	if err != nil {
		out = nil
		return nil, err
	}
	return out.booking, nil
}

// Cancel is idempotent: cancelling a cancelled booking succeeds without writing
// anything. Linked stock is returned in the same transaction.
func (l *Lifecycle) Cancel(ctx context.Context, bookingID int64, actor Actor, reason string) (b *domain.Booking, err error) {
	ctx, span, started := l.begin(ctx, "cancel", bookingID)
	out := &outcome{}
	defer func() { l.finish(ctx, span, "cancel", started, out, err) }()

	if reason == "" {
		reason = "cancelled"
	}
	err = l.store.InTx(ctx, func(repos repository.Repositories) error {
		booking, err := lockBooking(ctx, repos, bookingID, actor)
		if err != nil {
			return err
		}
		out.booking = booking
		if booking.Status == domain.TransitionCancel.Target() {
			return nil
		}
		next, err := domain.TransitionCancel.Apply(booking.Status)
		if err != nil {
			return err
		}
		svc, err := repos.Services.GetByID(ctx, booking.ServiceID)
		if err != nil {
			return err
		}
		previous := booking.Status
		booking.Status = next
		if err := repos.Bookings.Update(ctx, booking); err != nil {
			return err
		}
		if svc.RequiresInventory() {
			m, err := l.ledger.Release(ctx, repos, inventory.Change{
				ItemID:    *svc.InventoryItemID,
				Quantity:  svc.InventoryQuantityRequired,
				BookingID: &booking.ID,
				ActorID:   actor.ID,
				Action:    domain.ActionInventoryReturned,
			})
			if err != nil {
				return err
			}
			out.movements = append(out.movements, m)
		}
		_, err = l.trail.Append(ctx, repos, audit.Entry{
			WorkspaceID: booking.WorkspaceID,
			BookingID:   &booking.ID,
			ActorID:     actor.ID,
			Action:      domain.ActionBookingCancelled,
			Details: domain.AuditDetails{
				"reason":          reason,
				"source":          actor.source(),
				"previous_status": string(previous),
			},
		})
		if err != nil {
			return err
		}
		out.action = domain.ActionBookingCancelled
		out.events = []domain.NotificationKind{domain.NotificationBookingCancellation}
		return nil
	})
	if err != nil {
		out = nil
		return nil, err
	}
	return out.booking, nil
}

// Restore brings a CANCELLED booking back to CONFIRMED on its original window.
// The window must be free on the service and, when the booking has staff, for
// that staff member too. The slot checks and the stock re-acquisition succeed
// together or not at all. A confirmed booking is a no-op.
func (l *Lifecycle) Restore(ctx context.Context, bookingID int64, actor Actor) (b *domain.Booking, err error) {
	ctx, span, started := l.begin(ctx, "restore", bookingID)
	out := &outcome{}
	defer func() { l.finish(ctx, span, "restore", started, out, err) }()

	err = l.store.InTx(ctx, func(repos repository.Repositories) error {
		booking, err := lockBooking(ctx, repos, bookingID, actor)
		if err != nil {
			return err
		}
		out.booking = booking
		if booking.Status == domain.TransitionRestore.Target() {
			return nil
		}
		next, err := domain.TransitionRestore.Apply(booking.Status)
		if err != nil {
			return err
		}
		svc, err := repos.Services.GetForUpdate(ctx, booking.ServiceID)
		if err != nil {
			return err
		}
		serviceScope := repository.OverlapQuery{
			WorkspaceID:      booking.WorkspaceID,
			ServiceID:        booking.ServiceID,
			ExcludeBookingID: booking.ID,
			Interval:         booking.Interval(),
			Statuses:         domain.ActiveStatuses,
		}
		if err := checkFree(ctx, repos, serviceScope); err != nil {
			return err
		}
		if booking.StaffID != nil {
			staffScope := serviceScope
			staffScope.StaffID = booking.StaffID
			if err := checkFree(ctx, repos, staffScope); err != nil {
				return err
			}
		}
		if svc.RequiresInventory() {
			m, err := l.ledger.Reserve(ctx, repos, inventory.Change{
				ItemID:    *svc.InventoryItemID,
				Quantity:  svc.InventoryQuantityRequired,
				BookingID: &booking.ID,
				ActorID:   actor.ID,
				Action:    domain.ActionInventoryRestoreDeduct,
			})
			if err != nil {
				return err
			}
			out.movements = append(out.movements, m)
		}
		booking.Status = next
		if err := repos.Bookings.Update(ctx, booking); err != nil {
			return err
		}
		_, err = l.trail.Append(ctx, repos, audit.Entry{
			WorkspaceID: booking.WorkspaceID,
			BookingID:   &booking.ID,
			ActorID:     actor.ID,
			Action:      domain.ActionBookingRestored,
			Details:     domain.AuditDetails{"source": actor.source()},
		})
		if err != nil {
			return err
		}
		out.action = domain.ActionBookingRestored
		out.events = []domain.NotificationKind{domain.NotificationBookingRestored}
		return nil
	})
	if err != nil {
		out = nil
		return nil, err
	}
	return out.booking, nil
}

// Reschedule moves an active booking to newStart, keeping the service duration,
// and confirms it. The reminder flag is reset so the new time is reminded too.
func (l *Lifecycle) Reschedule(ctx context.Context, bookingID int64, newStart time.Time, actor Actor) (b *domain.Booking, err error) {
	ctx, span, started := l.begin(ctx, "reschedule", bookingID)
	out := &outcome{}
	defer func() { l.finish(ctx, span, "reschedule", started, out, err) }()

	if newStart.IsZero() {
		return nil, apperr.New(apperr.CodeValidation, "new start time is required").
			WithDetails(map[string]string{"start_time": "required"})
	}
	err = l.store.InTx(ctx, func(repos repository.Repositories) error {
		booking, err := lockBooking(ctx, repos, bookingID, actor)
		if err != nil {
			return err
		}
		next, err := domain.TransitionReschedule.Apply(booking.Status)
		if err != nil {
			return err
		}
		svc, err := repos.Services.GetForUpdate(ctx, booking.ServiceID)
		if err != nil {
			return err
		}
		interval := domain.NewInterval(newStart, svc.Duration())
		if err := checkFree(ctx, repos, repository.OverlapQuery{
			ServiceID:        booking.ServiceID,
			ExcludeBookingID: booking.ID,
			Interval:         interval,
			Statuses:         domain.ActiveStatuses,
		}); err != nil {
			return err
		}
		old := booking.Interval()
		booking.StartTime = interval.Start
		booking.EndTime = interval.End
		booking.Status = next
		booking.ReminderSent = false
		if err := repos.Bookings.Update(ctx, booking); err != nil {
			return err
		}
		_, err = l.trail.Append(ctx, repos, audit.Entry{
			WorkspaceID: booking.WorkspaceID,
			BookingID:   &booking.ID,
			ActorID:     actor.ID,
			Action:      domain.ActionBookingRescheduled,
			Details: domain.AuditDetails{
				"old_start_time": old.Start,
				"old_end_time":   old.End,
				"new_start_time": interval.Start,
				"new_end_time":   interval.End,
				"source":         actor.source(),
			},
		})
		if err != nil {
			return err
		}
		out.booking = booking
		out.action = domain.ActionBookingRescheduled
		out.events = []domain.NotificationKind{domain.NotificationBookingReschedule}
		return nil
	})
	if err != nil {
		out = nil
		return nil, err
	}
	return out.booking, nil
}

// UpdateStatus overwrites the status along the transition table without the
// overlap or stock machinery. CANCELLED goes through Cancel so stock is returned.
func (l *Lifecycle) UpdateStatus(ctx context.Context, bookingID int64, status domain.BookingStatus, actor Actor) (*domain.Booking, error) {
	if !status.Valid() {
		return nil, apperr.Newf(apperr.CodeValidation, "unknown status %q", status)
	}
	if status == domain.BookingStatusCancelled {
		return l.Cancel(ctx, bookingID, actor, "status_update")
	}
	return l.updateStatus(ctx, bookingID, status, actor)
}

func (l *Lifecycle) updateStatus(ctx context.Context, bookingID int64, status domain.BookingStatus, actor Actor) (b *domain.Booking, err error) {
	ctx, span, started := l.begin(ctx, "update_status", bookingID)
	out := &outcome{}
	defer func() { l.finish(ctx, span, "update_status", started, out, err) }()

	err = l.store.InTx(ctx, func(repos repository.Repositories) error {
		booking, err := lockBooking(ctx, repos, bookingID, actor)
		if err != nil {
			return err
		}
		out.booking = booking
		if booking.Status == status {
			return nil
		}
		transition, ok := domain.TransitionTo(status)
		if !ok {
			return apperr.Newf(apperr.CodeInvalidState, "cannot set status %s directly", status).
				WithDetails(map[string]any{"status": booking.Status, "target": status})
		}
		next, err := transition.Apply(booking.Status)
		if err != nil {
			return err
		}
		previous := booking.Status
		booking.Status = next
		if err := repos.Bookings.Update(ctx, booking); err != nil {
			return err
		}
		_, err = l.trail.Append(ctx, repos, audit.Entry{
			WorkspaceID: booking.WorkspaceID,
			BookingID:   &booking.ID,
			ActorID:     actor.ID,
			Action:      domain.ActionBookingStatusChanged,
			Details: domain.AuditDetails{
				"from":   string(previous),
				"to":     string(next),
				"source": actor.source(),
			},
		})
		if err != nil {
			return err
		}
		out.action = domain.ActionBookingStatusChanged
		return nil
	})
	if err != nil {
		out = nil
		return nil, err
	}
	return out.booking, nil
}

// UpdateDetails edits the booking's contact. Only non-empty fields change.
func (l *Lifecycle) UpdateDetails(ctx context.Context, bookingID int64, update domain.ContactUpdate, actor Actor) (c *domain.Contact, err error) {
	ctx, span, started := l.begin(ctx, "update_details", bookingID)
	out := &outcome{}
	defer func() { l.finish(ctx, span, "update_details", started, out, err) }()

	if err := validateStruct(update); err != nil {
		return nil, err
	}
	fields := update.Fields()
	if len(fields) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "no fields to update")
	}
	err = l.store.InTx(ctx, func(repos repository.Repositories) error {
		booking, err := lockBooking(ctx, repos, bookingID, actor)
		if err != nil {
			return err
		}
		contact, err := repos.Contacts.GetByID(ctx, booking.ContactID)
		if err != nil {
			return err
		}
		if update.FullName != "" {
			contact.FullName = update.FullName
		}
		if update.Email != "" {
			contact.Email = update.Email
		}
		if update.Phone != "" {
			contact.Phone = update.Phone
		}
		if err := repos.Contacts.Update(ctx, contact); err != nil {
			return err
		}
		_, err = l.trail.Append(ctx, repos, audit.Entry{
			WorkspaceID: booking.WorkspaceID,
			BookingID:   &booking.ID,
			ActorID:     actor.ID,
			Action:      domain.ActionBookingDetailsUpdated,
			Details:     domain.AuditDetails{"fields": fields, "source": actor.source()},
		})
		if err != nil {
			return err
		}
		c = contact
		out.booking = booking
		out.action = domain.ActionBookingDetailsUpdated
		return nil
	})
	if err != nil {
		out = nil
		return nil, err
	}
	return c, nil
}

var resendable = map[domain.NotificationKind]bool{
	domain.NotificationBookingConfirmation: true,
	domain.NotificationBookingCancellation: true,
	domain.NotificationBookingReschedule:   true,
	domain.NotificationBookingRestored:     true,
	domain.NotificationBookingReminder:     true,
	domain.NotificationVisitFollowUp:       true,
}

// ResendNotification republishes a booking notification; the default kind is a confirmation.
func (l *Lifecycle) ResendNotification(ctx context.Context, bookingID int64, kind domain.NotificationKind, actor Actor) (*domain.Booking, error) {
	if kind == "" {
		kind = domain.NotificationBookingConfirmation
	}
	if !resendable[kind] {
		return nil, apperr.Newf(apperr.CodeValidation, "notification kind %q cannot be resent", kind)
	}
	booking, err := l.Get(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	l.dispatcher.Dispatch(l.logg.WithBookingID(ctx, booking.ID), notify.BookingEvent(kind, booking))
	return booking, nil
}

// Get reads a booking visible to actor.
func (l *Lifecycle) Get(ctx context.Context, bookingID int64, actor Actor) (*domain.Booking, error) {
	booking, err := l.store.Repos().Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.allows(booking.WorkspaceID) {
		return nil, apperr.Newf(apperr.CodeNotFound, "booking %d not found", bookingID)
	}
	return booking, nil
}

// History is get_booking_history: audit entries and notification log, newest first.
func (l *Lifecycle) History(ctx context.Context, bookingID int64, actor Actor) ([]domain.TimelineEntry, error) {
	if _, err := l.Get(ctx, bookingID, actor); err != nil {
		return nil, err
	}
	return l.trail.History(ctx, bookingID)
}

func lockBooking(ctx context.Context, repos repository.Repositories, bookingID int64, actor Actor) (*domain.Booking, error) {
	booking, err := repos.Bookings.GetForUpdate(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.allows(booking.WorkspaceID) {
		return nil, apperr.Newf(apperr.CodeNotFound, "booking %d not found", bookingID)
	}
	return booking, nil
}

func checkFree(ctx context.Context, repos repository.Repositories, q repository.OverlapQuery) error {
	hit, err := repos.Bookings.FindOverlap(ctx, q)
	if err != nil {
		return err
	}
	if hit != nil {
		return apperr.New(apperr.CodeConflict, "time slot overlaps an existing booking").
			WithDetails(map[string]any{
				"conflicting_booking_id": hit.ID,
				"start_time":             q.Interval.Start,
				"end_time":               q.Interval.End,
			})
	}
	return nil
}

// resolveContact finds the workspace contact by email or creates it, filling a
// missing name or phone from the booking input.
func resolveContact(ctx context.Context, repos repository.Repositories, workspaceID int64, in domain.ContactInput) (*domain.Contact, error) {
	contact, err := repos.Contacts.GetByEmail(ctx, workspaceID, in.Email)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		contact = &domain.Contact{
			WorkspaceID: workspaceID,
			Email:       in.Email,
			FullName:    in.FullName,
			Phone:       in.Phone,
			Source:      "booking",
		}
		if err := repos.Contacts.Create(ctx, contact); err != nil {
			return nil, err
		}
		return contact, nil
	}
	changed := false
	if contact.Phone == "" && in.Phone != "" {
		contact.Phone = in.Phone
		changed = true
	}
	if contact.FullName == "" && in.FullName != "" {
		contact.FullName = in.FullName
		changed = true
	}
	if changed {
		if err := repos.Contacts.Update(ctx, contact); err != nil {
			return nil, err
		}
	}
	return contact, nil
}
