package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/showtime-booking/internal/booking"
)

// querier is the subset of *sql.DB and *sql.Tx the loaders need.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store is the MySQL implementation of booking.Store.  Seat status changes
// lock the showtime row and the affected show_seats rows with SELECT ...
// FOR UPDATE, so concurrent confirmations for one showtime serialise in
// the database; bookings rely on the unique hold_id key for idempotency.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store bound to db.  The schema must already exist;
// see database.Migrate.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

var _ booking.Store = (*Store)(nil)

// InTx implements booking.Store.  The transaction is rolled back unless
// fn succeeds and the commit goes through.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// inClause returns "?, ?, ?" for values and the values as arguments.
func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "), args
}
