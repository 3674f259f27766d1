package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Domenick1991/appointments/internal/apperr"
)

// Dialect selects SQL flavour and driver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func ParseDialect(value string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", value)
}

func (d Dialect) driverName() string {
	if d == DialectSQLite {
		return "sqlite"
	}
	return "pgx"
}

func (d Dialect) builder() goqu.DialectWrapper {
	if d == DialectSQLite {
		return goqu.Dialect("sqlite3")
	}
	return goqu.Dialect("postgres")
}

// lockClause is appended to row reads that must hold the row until commit.
// SQLite transactions are opened IMMEDIATE and already own the write lock.
func (d Dialect) lockClause() string {
	if d == DialectSQLite {
		return ""
	}
	return " FOR UPDATE"
}

func (d Dialect) rebind(query string) string {
	if d == DialectSQLite {
		return query
	}
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
}

type Store struct {
	db      *sqlx.DB
	dialect Dialect
	now     func() time.Time
}

type StoreOption func(*Store)

// WithClock overrides the timestamp source used for created_at/updated_at.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// Open connects and pings the database. SQLite DSNs get IMMEDIATE transactions,
// a busy timeout, enforced foreign keys and sortable timestamps.
func Open(ctx context.Context, dialect Dialect, dsn string, opts ...StoreOption) (*Store, error) {
	if dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sqlx.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return NewStore(db, dialect, opts...), nil
}

func NewStore(db *sqlx.DB, dialect Dialect, opts ...StoreOption) *Store {
	s := &Store{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sqliteDSN(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "_txlock=") {
		params = append(params, "_txlock=immediate")
	}
	if !strings.Contains(dsn, "busy_timeout") {
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if !strings.Contains(dsn, "foreign_keys") {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	if !strings.Contains(dsn, "_time_format=") {
		params = append(params, "_time_format=sqlite")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Now() time.Time {
	return dbTime(s.now())
}

// Repositories bundles the repositories bound to one connection or transaction.
type Repositories struct {
	Workspaces    WorkspaceRepository
	Services      ServiceRepository
	Bookings      BookingRepository
	Inventory     InventoryRepository
	Contacts      ContactRepository
	Audit         AuditRepository
	Notifications NotificationLogRepository
}

func (s *Store) reposFor(q Querier) Repositories {
	base := sqlRepo{q: q, dialect: s.dialect, now: s.Now}
	return Repositories{
		Workspaces:    &SQLWorkspaceRepository{base},
		Services:      &SQLServiceRepository{base},
		Bookings:      &SQLBookingRepository{base},
		Inventory:     &SQLInventoryRepository{base},
		Contacts:      &SQLContactRepository{base},
		Audit:         &SQLAuditRepository{base},
		Notifications: &SQLNotificationLogRepository{base},
	}
}

// Repos returns repositories running outside any transaction.
func (s *Store) Repos() Repositories {
	return s.reposFor(s.db)
}

// InTx runs fn inside a single transaction. Any error from fn rolls back every write.
func (s *Store) InTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(s.reposFor(tx)); err != nil {
		return classify(err, "transaction")
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "commit transaction")
	}
	return nil
}

type sqlRepo struct {
	q       Querier
	dialect Dialect
	now     func() time.Time
}

func (r sqlRepo) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, r.q, dest, r.dialect.rebind(query), args...)
}

func (r sqlRepo) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, r.q, dest, r.dialect.rebind(query), args...)
}

func (r sqlRepo) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.q.ExecContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// classify turns driver-level concurrency failures into conflicts so the losing
// writer surfaces an error instead of overwriting; typed errors pass through.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if apperr.As(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return apperr.Wrap(apperr.CodeConflict, err, "concurrent update, retry the request")
		case "23P01":
			return apperr.Wrap(apperr.CodeConflict, err, "time slot overlaps an active booking")
		case "23505":
			return apperr.Wrap(apperr.CodeConflict, err, "duplicate value")
		case "23514":
			if pgErr.ConstraintName == "inventory_items_quantity_check" {
				return apperr.Wrap(apperr.CodeInsufficientInventory, err, "stock would go negative")
			}
		}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return apperr.Wrap(apperr.CodeConflict, err, "duplicate value")
		}
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return apperr.Wrap(apperr.CodeConflict, err, "concurrent update, retry the request")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var errNoRows = sql.ErrNoRows

func notFound(err error, what string, id any) error {
	if errors.Is(err, errNoRows) {
		return apperr.Newf(apperr.CodeNotFound, "%s %v not found", what, id)
	}
	return err
}
