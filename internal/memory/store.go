// Package memory implements the seat map and booking storage in process.
// It backs single-instance deployments and the test suites.  Write
// transactions are serialised and keep an undo log, so a failed
// confirmation leaves no partial seat or booking state behind.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/model"
)

// Store holds showtimes, combos and bookings in maps guarded by mu.  txMu
// serialises write transactions so that an undo log always applies to a
// state no other transaction has touched.
type Store struct {
	mu        sync.RWMutex
	showtimes map[string]*model.Showtime
	combos    map[string]model.Combo
	bookings  map[string]*model.Booking // by booking code
	byHold    map[string]string         // hold id -> booking code

	txMu sync.Mutex
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		showtimes: make(map[string]*model.Showtime),
		combos:    make(map[string]model.Combo),
		bookings:  make(map[string]*model.Booking),
		byHold:    make(map[string]string),
	}
}

var _ booking.Store = (*Store)(nil)

// PutShowtime inserts or replaces a showtime.  Seats are ordered by row
// then number and the available counter is recomputed.
func (s *Store) PutShowtime(st model.Showtime) {
	c := cloneShowtime(&st)
	sort.SliceStable(c.Seats, func(i, j int) bool {
		if c.Seats[i].Row != c.Seats[j].Row {
			return c.Seats[i].Row < c.Seats[j].Row
		}
		return c.Seats[i].Number < c.Seats[j].Number
	})
	for i := range c.Seats {
		if c.Seats[i].Status == "" {
			c.Seats[i].Status = model.SeatAvailable
		}
	}
	c.AvailableSeats = c.CountAvailable()
	s.mu.Lock()
	s.showtimes[c.ID] = c
	s.mu.Unlock()
}

// PutCombo inserts or replaces a combo catalog entry.
func (s *Store) PutCombo(c model.Combo) {
	s.mu.Lock()
	s.combos[c.ID] = c
	s.mu.Unlock()
}

// Showtime implements seatmap.Reader.
func (s *Store) Showtime(_ context.Context, id string) (*model.Showtime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.showtimes[id]
	if !ok {
		return nil, fmt.Errorf("%w: showtime %s", model.ErrNotFound, id)
	}
	return cloneShowtime(st), nil
}

// BookingByHold implements booking.Store.
func (s *Store) BookingByHold(_ context.Context, holdID string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.byHold[holdID]
	if !ok {
		return nil, fmt.Errorf("%w: booking for hold %s", model.ErrNotFound, holdID)
	}
	return cloneBooking(s.bookings[code]), nil
}

// BookingByCode implements booking.Store.
func (s *Store) BookingByCode(_ context.Context, code string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[code]
	if !ok {
		return nil, fmt.Errorf("%w: booking %s", model.ErrNotFound, code)
	}
	return cloneBooking(b), nil
}

// BookingsByHolder implements booking.Store.
func (s *Store) BookingsByHolder(_ context.Context, holderID string) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Booking{}
	for _, b := range s.bookings {
		if b.HolderID != holderID || b.Status == model.BookingPending {
			continue
		}
		out = append(out, *cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code > out[j].Code
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Combos implements booking.Store.
func (s *Store) Combos(_ context.Context, ids []string) (map[string]model.Combo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Combo, len(ids))
	for _, id := range ids {
		if c, ok := s.combos[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

// ActiveCombos implements booking.Store.
func (s *Store) ActiveCombos(_ context.Context) ([]model.Combo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Combo{}
	for _, c := range s.combos {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InTx implements booking.Store.  Writes are applied as they happen and
// undone in reverse order when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{s: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func cloneShowtime(st *model.Showtime) *model.Showtime {
	c := *st
	c.Seats = make([]model.Seat, len(st.Seats))
	copy(c.Seats, st.Seats)
	c.PriceByCategory = make(map[model.SeatCategory]int64, len(st.PriceByCategory))
	for k, v := range st.PriceByCategory {
		c.PriceByCategory[k] = v
	}
	return &c
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	c.Seats = append([]model.BookedSeat(nil), b.Seats...)
	c.Combos = append([]model.BookedCombo{}, b.Combos...)
	return &c
}
