package inventory

import (
	"context"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/logger"
	"github.com/Domenick1991/appointments/internal/metrics"
	"github.com/Domenick1991/appointments/internal/notify"
	"github.com/Domenick1991/appointments/internal/repository"
	"github.com/Domenick1991/appointments/internal/service/audit"
)

// Movement describes one committed change of an item's quantity.
type Movement struct {
	Item   domain.InventoryItem
	Delta  int
	Before int
	After  int
	// Alert is set whenever the movement left the item at or below its threshold.
	Alert bool
}

// Low reports whether the item ended at or below its threshold.
func (m Movement) Low() bool {
	return m.After <= m.Item.Threshold
}

// Change is a request to move stock for a booking (or for none, on manual adjustments).
type Change struct {
	ItemID    int64
	Quantity  int
	BookingID *int64
	ActorID   *string
	Action    string
	Details   domain.AuditDetails
}

// Ledger is the only writer of inventory quantities. Reserve and Release run
// inside the caller's transaction and lock the item row before checking stock.
type Ledger struct {
	store      *repository.Store
	trail      *audit.Trail
	dispatcher notify.Dispatcher
	metrics    *metrics.BookingMetrics
	logg       *logger.Logger
}

type Option func(*Ledger)

func WithDispatcher(d notify.Dispatcher) Option {
	return func(l *Ledger) { l.dispatcher = d }
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func WithLogger(logg *logger.Logger) Option {
	return func(l *Ledger) { l.logg = logg }
}

func NewLedger(store *repository.Store, trail *audit.Trail, opts ...Option) *Ledger {
	l := &Ledger{
		store:      store,
		trail:      trail,
		dispatcher: notify.Nop(),
		logg:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve takes c.Quantity units or fails with InsufficientInventory, leaving stock untouched.
func (l *Ledger) Reserve(ctx context.Context, repos repository.Repositories, c Change) (Movement, error) {
	if c.Quantity <= 0 {
		return Movement{}, apperr.New(apperr.CodeValidation, "reserve quantity must be positive")
	}
	item, err := repos.Inventory.GetForUpdate(ctx, c.ItemID)
	if err != nil {
		return Movement{}, err
	}
	if item.Quantity < c.Quantity {
		return Movement{}, apperr.Newf(apperr.CodeInsufficientInventory, "%s: %d in stock, %d required", item.Name, item.Quantity, c.Quantity).
			WithDetails(map[string]any{"inventory_item_id": item.ID, "available": item.Quantity, "required": c.Quantity})
	}
	after, err := repos.Inventory.Decrement(ctx, item.ID, c.Quantity)
	if err != nil {
		return Movement{}, err
	}
	if c.Action == "" {
		c.Action = domain.ActionInventoryDeducted
	}
	return l.record(ctx, repos, *item, -c.Quantity, after, c)
}

// Release returns c.Quantity units. It has no upper bound and cannot run short.
func (l *Ledger) Release(ctx context.Context, repos repository.Repositories, c Change) (Movement, error) {
	if c.Quantity <= 0 {
		return Movement{}, apperr.New(apperr.CodeValidation, "release quantity must be positive")
	}
	item, err := repos.Inventory.GetForUpdate(ctx, c.ItemID)
	if err != nil {
		return Movement{}, err
	}
	after, err := repos.Inventory.Increment(ctx, item.ID, c.Quantity)
	if err != nil {
		return Movement{}, err
	}
	if c.Action == "" {
		c.Action = domain.ActionInventoryReturned
	}
	return l.record(ctx, repos, *item, c.Quantity, after, c)
}

func (l *Ledger) record(ctx context.Context, repos repository.Repositories, item domain.InventoryItem, delta, after int, c Change) (Movement, error) {
	details := domain.AuditDetails{
		"inventory_item_id": item.ID,
		"item":              item.Name,
		"delta":             delta,
		"quantity_before":   item.Quantity,
		"quantity_after":    after,
	}
	for k, v := range c.Details {
		details[k] = v
	}
	if _, err := l.trail.Append(ctx, repos, audit.Entry{
		WorkspaceID: item.WorkspaceID,
		BookingID:   c.BookingID,
		ActorID:     c.ActorID,
		Action:      c.Action,
		Details:     details,
	}); err != nil {
		return Movement{}, err
	}
	m := Movement{Item: item, Delta: delta, Before: item.Quantity, After: after}
	m.Item.Quantity = after
	m.Alert = m.Low()
	return m, nil
}

// IsLow reports quantity at or below threshold.
func (l *Ledger) IsLow(item domain.InventoryItem) bool {
	return item.IsLow()
}

// Observe publishes the post-commit side effects of committed movements.
func (l *Ledger) Observe(ctx context.Context, movements ...Movement) {
	for _, m := range movements {
		l.metrics.InventoryLevel(m.Item.Name, m.After)
		if m.Alert {
			item := m.Item
			l.dispatcher.Dispatch(ctx, notify.LowStockEvent(&item))
		}
	}
}

// CreateItem registers a new consumable for a workspace.
func (l *Ledger) CreateItem(ctx context.Context, item *domain.InventoryItem) error {
	if item.Name == "" {
		return apperr.New(apperr.CodeValidation, "name is required")
	}
	if item.Quantity < 0 || item.Threshold < 0 {
		return apperr.New(apperr.CodeValidation, "quantity and threshold must not be negative")
	}
	return l.store.InTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Workspaces.GetByID(ctx, item.WorkspaceID); err != nil {
			return err
		}
		return repos.Inventory.Create(ctx, item)
	})
}

// Adjust applies a manual stock correction in its own transaction.
func (l *Ledger) Adjust(ctx context.Context, workspaceID, itemID int64, delta int, actorID *string, reason string) (Movement, error) {
	if delta == 0 {
		return Movement{}, apperr.New(apperr.CodeValidation, "delta must not be zero")
	}
	var m Movement
	err := l.store.InTx(ctx, func(repos repository.Repositories) error {
		item, err := repos.Inventory.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if workspaceID != 0 && item.WorkspaceID != workspaceID {
			return apperr.Newf(apperr.CodeNotFound, "inventory item %d not found", itemID)
		}
		change := Change{
			ItemID:  itemID,
			ActorID: actorID,
			Action:  domain.ActionInventoryAdjusted,
			Details: domain.AuditDetails{"reason": reason},
		}
		if delta < 0 {
			change.Quantity = -delta
			m, err = l.Reserve(ctx, repos, change)
		} else {
			change.Quantity = delta
			m, err = l.Release(ctx, repos, change)
		}
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	l.logg.Info(l.logg.WithFields(ctx, map[string]any{
		"inventory_item_id": itemID,
		"delta":             delta,
		"quantity":          m.After,
	}), "inventory adjusted")
	l.Observe(ctx, m)
	return m, nil
}

// Item reads the current state of an item outside any transaction.
func (l *Ledger) Item(ctx context.Context, itemID int64) (*domain.InventoryItem, error) {
	return l.store.Repos().Inventory.GetByID(ctx, itemID)
}

// List returns the workspace's items.
func (l *Ledger) List(ctx context.Context, workspaceID int64) ([]domain.InventoryItem, error) {
	return l.store.Repos().Inventory.ListByWorkspace(ctx, workspaceID)
}
