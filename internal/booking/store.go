package booking

import (
	"context"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/seatmap"
)

// Tx is the write side of one storage transaction used by a confirmation.
// The seat map drives SetSeatStatus; the coordinator drives the booking
// writes.  Nothing written through a Tx is durable until InTx commits.
type Tx interface {
	seatmap.Writer

	// InsertBooking stores b.  A booking for the same hold or with the
	// same code already present fails with model.ErrConflict.
	InsertBooking(ctx context.Context, b *model.Booking) error
	// SetBookingStatus changes the status of the booking with code.
	SetBookingStatus(ctx context.Context, code string, status model.BookingStatus) error
	// DeleteBooking removes a pending booking during reconciliation.
	DeleteBooking(ctx context.Context, code string) error
}

// Store is the persistence the coordinator depends on.  Implementations
// live in internal/memory (single process) and internal/repository (MySQL).
type Store interface {
	seatmap.Reader

	// InTx runs fn inside a single transaction.  When fn returns an error
	// every write made through tx is rolled back and the error returned.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// BookingByHold returns the booking created from holdID, or an error
	// wrapping model.ErrNotFound.
	BookingByHold(ctx context.Context, holdID string) (*model.Booking, error)
	// BookingByCode returns the booking with code, or an error wrapping
	// model.ErrNotFound.
	BookingByCode(ctx context.Context, code string) (*model.Booking, error)
	// BookingsByHolder lists a holder's bookings, newest first, excluding
	// pending ones.
	BookingsByHolder(ctx context.Context, holderID string) ([]model.Booking, error)

	// Combos returns the catalog entries for ids keyed by id.  Unknown ids
	// are simply absent from the map.
	Combos(ctx context.Context, ids []string) (map[string]model.Combo, error)
	// ActiveCombos lists the purchasable combo catalog.
	ActiveCombos(ctx context.Context) ([]model.Combo, error)
}
