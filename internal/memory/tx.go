package memory

import (
	"context"
	"fmt"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// memTx applies writes directly to the store and records how to undo them.
type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// SetSeatStatus implements seatmap.Writer.
func (t *memTx) SetSeatStatus(_ context.Context, showtimeID string, seatNumbers []string, from, to model.SeatStatus) ([]string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	st, ok := t.s.showtimes[showtimeID]
	if !ok {
		return nil, fmt.Errorf("%w: showtime %s", model.ErrNotFound, showtimeID)
	}
	want := make(map[string]struct{}, len(seatNumbers))
	for _, n := range seatNumbers {
		want[n] = struct{}{}
	}
	var changed []string
	for i := range st.Seats {
		seat := &st.Seats[i]
		if _, ok := want[seat.Number]; !ok || seat.Status != from {
			continue
		}
		seat.Status = to
		changed = append(changed, seat.Number)
		idx := i
		t.undo = append(t.undo, func() { st.Seats[idx].Status = from })
	}
	if len(changed) > 0 {
		prev := st.AvailableSeats
		st.AvailableSeats = st.CountAvailable()
		t.undo = append(t.undo, func() { st.AvailableSeats = prev })
	}
	return changed, nil
}

// InsertBooking implements booking.Tx.
func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, ok := t.s.byHold[b.HoldID]; ok {
		return &model.ConflictError{Reason: "booking already exists for hold " + b.HoldID}
	}
	if _, ok := t.s.bookings[b.Code]; ok {
		return &model.ConflictError{Reason: "duplicate booking code " + b.Code}
	}
	t.s.bookings[b.Code] = cloneBooking(b)
	t.s.byHold[b.HoldID] = b.Code
	code, hold := b.Code, b.HoldID
	t.undo = append(t.undo, func() {
		delete(t.s.bookings, code)
		delete(t.s.byHold, hold)
	})
	return nil
}

// SetBookingStatus implements booking.Tx.
func (t *memTx) SetBookingStatus(_ context.Context, code string, status model.BookingStatus) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	b, ok := t.s.bookings[code]
	if !ok {
		return fmt.Errorf("%w: booking %s", model.ErrNotFound, code)
	}
	prev := b.Status
	b.Status = status
	t.undo = append(t.undo, func() { b.Status = prev })
	return nil
}

// DeleteBooking implements booking.Tx.
func (t *memTx) DeleteBooking(_ context.Context, code string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	b, ok := t.s.bookings[code]
	if !ok {
		return fmt.Errorf("%w: booking %s", model.ErrNotFound, code)
	}
	delete(t.s.bookings, code)
	delete(t.s.byHold, b.HoldID)
	t.undo = append(t.undo, func() {
		t.s.bookings[code] = b
		t.s.byHold[b.HoldID] = code
	})
	return nil
}
