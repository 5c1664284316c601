// Package seatlock grants, tracks and reclaims temporary exclusive holds
// on seats during checkout.  The Manager enforces the lifecycle rules and
// delegates atomic seat arbitration to a LockStore, which is either the
// in-process MemoryStore or the shared RedisStore.
package seatlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/showtime-booking/internal/model"
)

const (
	// DefaultTTL is the hold lifetime when the caller does not ask for one.
	DefaultTTL = 10 * time.Minute
	// DefaultMaxTTL caps the lifetime a caller may request.
	DefaultMaxTTL = 30 * time.Minute
	// DefaultRetention is how long retired holds stay readable so that a
	// retried confirmation can still be recognised.
	DefaultRetention = 24 * time.Hour
)

// SeatChecker classifies requested seats against the seat map.  It is
// satisfied by *seatmap.SeatMap.
type SeatChecker interface {
	Check(ctx context.Context, showtimeID string, seatNumbers []string) (*model.Showtime, []string, error)
}

// AcquireRequest describes a hold to grant.
//
// Fields:
//
//	ShowtimeID    – showtime the seats belong to.
//	SeatNumbers   – seats to hold; normalised before use.
//	HolderID      – authenticated caller.
//	HolderContact – contact recorded on the hold (email).
//	TTL           – requested lifetime; zero means DefaultTTL.
type AcquireRequest struct {
	ShowtimeID    string
	SeatNumbers   []string
	HolderID      string
	HolderContact string
	TTL           time.Duration
}

// Manager implements the hold lifecycle on top of a LockStore.
type Manager struct {
	store      LockStore
	seats      SeatChecker
	now        func() time.Time
	newID      func() string
	defaultTTL time.Duration
	maxTTL     time.Duration
	retention  time.Duration
	log        logrus.FieldLogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.  Tests use it to move past expiry without
// sleeping.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithTTL sets the default and maximum hold lifetime.  Non-positive values
// keep the defaults.
func WithTTL(def, max time.Duration) Option {
	return func(m *Manager) {
		if def > 0 {
			m.defaultTTL = def
		}
		if max > 0 {
			m.maxTTL = max
		}
	}
}

// WithRetention sets how long retired holds are kept before Sweep forgets them.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retention = d
		}
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

// WithIDGenerator replaces the hold id generator.
func WithIDGenerator(f func() string) Option {
	return func(m *Manager) { m.newID = f }
}

// NewManager returns a Manager arbitrating holds in store and checking
// seats against seats.
func NewManager(store LockStore, seats SeatChecker, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		seats:      seats,
		now:        time.Now,
		newID:      uuid.NewString,
		defaultTTL: DefaultTTL,
		maxTTL:     DefaultMaxTTL,
		retention:  DefaultRetention,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.maxTTL < m.defaultTTL {
		m.maxTTL = m.defaultTTL
	}
	return m
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time { return m.now() }

// Acquire grants a hold on every requested seat or on none.  Sold seats
// and seats covered by another active hold fail with a ConflictError
// naming them; unknown showtimes and seats fail with model.ErrNotFound.
func (m *Manager) Acquire(ctx context.Context, req AcquireRequest) (*model.Hold, error) {
	if req.ShowtimeID == "" {
		return nil, model.Invalid("showtime_id", "is required")
	}
	if req.HolderID == "" {
		return nil, model.Invalid("holder_id", "is required")
	}
	seats := model.NormalizeSeatNumbers(req.SeatNumbers)
	if len(seats) == 0 {
		return nil, model.Invalid("seat_numbers", "must contain at least one seat")
	}
	for _, n := range seats {
		if !model.ValidSeatNumber(n) {
			return nil, model.Invalid("seat_numbers", fmt.Sprintf("seat %q contains a reserved character", n))
		}
	}

	_, sold, err := m.seats.Check(ctx, req.ShowtimeID, seats)
	if err != nil {
		return nil, err
	}
	if len(sold) > 0 {
		return nil, &model.ConflictError{Seats: sold, Reason: "seats already sold"}
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	if ttl > m.maxTTL {
		ttl = m.maxTTL
	}
	now := m.now()
	hold := &model.Hold{
		ID:            m.newID(),
		ShowtimeID:    req.ShowtimeID,
		SeatNumbers:   seats,
		HolderID:      req.HolderID,
		HolderContact: req.HolderContact,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		State:         model.HoldActive,
	}

	conflicts, err := m.store.Acquire(ctx, hold, now)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire hold: %v", model.ErrInternal, err)
	}
	if len(conflicts) > 0 {
		return nil, &model.ConflictError{Seats: conflicts, Reason: "seats held by another customer"}
	}

	// A confirm may have sold a seat between the first check and the
	// insert, so look again now that the hold is visible.
	_, sold, err = m.seats.Check(ctx, req.ShowtimeID, seats)
	if err != nil || len(sold) > 0 {
		if rerr := m.store.Release(ctx, hold.ID, hold.HolderID, now); rerr != nil {
			m.log.WithError(rerr).WithField("hold_id", hold.ID).Warn("release of unsellable hold failed")
		}
		if err != nil {
			return nil, err
		}
		return nil, &model.ConflictError{Seats: sold, Reason: "seats already sold"}
	}

	m.log.WithFields(logrus.Fields{
		"hold_id":     hold.ID,
		"showtime_id": hold.ShowtimeID,
		"seats":       len(seats),
		"expires_at":  hold.ExpiresAt,
	}).Info("hold acquired")
	return hold, nil
}

// Release retires an active hold owned by holderID, freeing its seats at
// once.
func (m *Manager) Release(ctx context.Context, holdID, holderID string) error {
	if holdID == "" {
		return model.Invalid("hold_id", "is required")
	}
	if err := m.store.Release(ctx, holdID, holderID, m.now()); err != nil {
		return storeErr("release hold", err)
	}
	m.log.WithField("hold_id", holdID).Info("hold released")
	return nil
}

// Get returns the hold with its state as observed now.
func (m *Manager) Get(ctx context.Context, holdID string) (*model.Hold, error) {
	if holdID == "" {
		return nil, model.Invalid("hold_id", "is required")
	}
	h, err := m.store.Get(ctx, holdID)
	if err != nil {
		return nil, storeErr("get hold", err)
	}
	h.State = h.EffectiveState(m.now())
	return h, nil
}

// IsActive reports whether seatNumber is covered by an active hold and,
// if so, which one.
func (m *Manager) IsActive(ctx context.Context, showtimeID, seatNumber string) (string, bool, error) {
	h, err := m.store.ActiveHold(ctx, showtimeID, seatNumber, m.now())
	if err != nil {
		return "", false, storeErr("lookup hold", err)
	}
	if h == nil {
		return "", false, nil
	}
	return h.ID, true, nil
}

// ActiveHolds lists the active holds of a showtime, oldest first.
func (m *Manager) ActiveHolds(ctx context.Context, showtimeID string) ([]model.Hold, error) {
	if showtimeID == "" {
		return nil, model.Invalid("showtime_id", "is required")
	}
	holds, err := m.store.ActiveHolds(ctx, showtimeID, m.now())
	if err != nil {
		return nil, storeErr("list holds", err)
	}
	return holds, nil
}

// Consume retires an active hold as converted into a booking.  It fails
// with a conflict when the hold has lapsed, been released or was already
// consumed.
func (m *Manager) Consume(ctx context.Context, holdID string) (*model.Hold, error) {
	h, err := m.store.Consume(ctx, holdID, m.now())
	if err != nil {
		return nil, storeErr("consume hold", err)
	}
	m.log.WithField("hold_id", holdID).Info("hold consumed")
	return h, nil
}

// Sweep reclaims lapsed holds and forgets retired ones past retention.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.store.Sweep(ctx, m.now(), m.retention)
	if err != nil {
		return 0, storeErr("sweep holds", err)
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is cancelled.  Expiry is
// evaluated on every read, so the sweeper only bounds storage growth.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				m.log.WithError(err).Warn("hold sweep failed")
				continue
			}
			if n > 0 {
				m.log.WithField("holds", n).Debug("hold sweep")
			}
		}
	}
}

// storeErr passes the domain errors a LockStore reports through untouched
// and marks everything else internal.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrForbidden),
		errors.Is(err, model.ErrConflict),
		errors.Is(err, model.ErrValidation):
		return err
	}
	return fmt.Errorf("%w: %s: %v", model.ErrInternal, op, err)
}
