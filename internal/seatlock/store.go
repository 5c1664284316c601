package seatlock

import (
	"context"
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// LockStore persists holds and arbitrates seat ownership.  Every method
// that depends on liveness takes now and must evaluate expiry itself: a
// hold whose ExpiresAt is not after now is treated as absent, whether or
// not anything has reclaimed it yet.  Implementations: MemoryStore for a
// single process, RedisStore when several instances share seats.
type LockStore interface {
	// Acquire stores hold unless one of its seats is covered by another
	// hold active at now.  On conflict it returns the blocked seat numbers
	// and stores nothing.  The check and the insert are one atomic step.
	Acquire(ctx context.Context, hold *model.Hold, now time.Time) ([]string, error)

	// Get returns the stored hold.  Unknown ids wrap model.ErrNotFound.
	Get(ctx context.Context, holdID string) (*model.Hold, error)

	// ActiveHold returns the hold covering seatNumber that is active at
	// now, or nil when the seat is free.
	ActiveHold(ctx context.Context, showtimeID, seatNumber string, now time.Time) (*model.Hold, error)

	// ActiveHolds lists every hold of the showtime active at now.
	ActiveHolds(ctx context.Context, showtimeID string, now time.Time) ([]model.Hold, error)

	// Release moves an active hold owned by holderID to released.  Unknown
	// or no longer active holds wrap model.ErrNotFound; holds owned by
	// someone else wrap model.ErrForbidden.
	Release(ctx context.Context, holdID, holderID string, now time.Time) error

	// Consume moves an active hold to consumed and returns it.  Unknown
	// holds wrap model.ErrNotFound; holds not active at now wrap
	// model.ErrConflict.
	Consume(ctx context.Context, holdID string, now time.Time) (*model.Hold, error)

	// Sweep marks lapsed holds expired, frees their seats, and forgets
	// retired holds whose expiry is older than retention.  It returns the
	// number of holds it touched.
	Sweep(ctx context.Context, now time.Time, retention time.Duration) (int, error)
}
