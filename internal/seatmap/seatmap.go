// Package seatmap is the single source of truth for seat existence and
// sale status per showtime.  It is the only code that changes a seat's
// status; it does so through a transaction-bound Writer supplied by the
// booking coordinator so that the seat transition and the booking write
// commit together.
package seatmap

import (
	"context"
	"fmt"
	"strings"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// Reader loads a showtime with its seats ordered by row then number.  An
// unknown showtime is reported as an error wrapping model.ErrNotFound.
type Reader interface {
	Showtime(ctx context.Context, id string) (*model.Showtime, error)
}

// Writer changes seat status inside a storage transaction.  SetSeatStatus
// moves every listed seat currently in status from to status to, keeps
// the showtime's available counter in step, and returns the numbers of
// the seats it actually changed.  Seats in any other status, or unknown
// seats, are left untouched and omitted from the result.
type Writer interface {
	SetSeatStatus(ctx context.Context, showtimeID string, seatNumbers []string, from, to model.SeatStatus) ([]string, error)
}

// SeatMap exposes read access for display and pricing and the guarded
// available -> sold transition.
type SeatMap struct {
	store Reader
}

// New returns a SeatMap reading from store.
func New(store Reader) *SeatMap {
	return &SeatMap{store: store}
}

// Seats returns the showtime with its ordered seats and price table.
func (m *SeatMap) Seats(ctx context.Context, showtimeID string) (*model.Showtime, error) {
	if showtimeID == "" {
		return nil, model.Invalid("showtime_id", "is required")
	}
	return m.store.Showtime(ctx, showtimeID)
}

// Check loads the showtime and classifies seatNumbers against it.  Unknown
// seat numbers fail with model.ErrNotFound; the returned slice lists the
// requested seats that are already sold.
func (m *SeatMap) Check(ctx context.Context, showtimeID string, seatNumbers []string) (*model.Showtime, []string, error) {
	st, err := m.Seats(ctx, showtimeID)
	if err != nil {
		return nil, nil, err
	}
	var unknown, sold []string
	for _, n := range seatNumbers {
		seat, ok := st.Seat(n)
		switch {
		case !ok:
			unknown = append(unknown, n)
		case !seat.IsAvailable():
			sold = append(sold, n)
		}
	}
	if len(unknown) > 0 {
		return nil, nil, fmt.Errorf("%w: seats %s in showtime %s", model.ErrNotFound, strings.Join(unknown, ","), showtimeID)
	}
	return st, sold, nil
}

// SoldAmong returns the subset of seatNumbers already sold.
func (m *SeatMap) SoldAmong(ctx context.Context, showtimeID string, seatNumbers []string) ([]string, error) {
	_, sold, err := m.Check(ctx, showtimeID, seatNumbers)
	return sold, err
}

// MarkSold transitions every listed seat from available to sold through w.
// If any seat is not available (already sold or unknown) it fails with a
// ConflictError naming those seats; the caller must then roll back w's
// transaction, which undoes any seats that did change.
func (m *SeatMap) MarkSold(ctx context.Context, w Writer, showtimeID string, seatNumbers []string) error {
	if len(seatNumbers) == 0 {
		return model.Invalid("seat_numbers", "must not be empty")
	}
	changed, err := w.SetSeatStatus(ctx, showtimeID, seatNumbers, model.SeatAvailable, model.SeatSold)
	if err != nil {
		return fmt.Errorf("mark seats sold: %w", err)
	}
	if missing := difference(seatNumbers, changed); len(missing) > 0 {
		return &model.ConflictError{Seats: missing, Reason: "seats not available"}
	}
	return nil
}

// Revert puts seats sold by a confirmation that could not complete back to
// available.  It exists for the coordinator's reconciliation path only.
func (m *SeatMap) Revert(ctx context.Context, w Writer, showtimeID string, seatNumbers []string) error {
	if _, err := w.SetSeatStatus(ctx, showtimeID, seatNumbers, model.SeatSold, model.SeatAvailable); err != nil {
		return fmt.Errorf("revert seats: %w", err)
	}
	return nil
}

func difference(all, subset []string) []string {
	in := make(map[string]struct{}, len(subset))
	for _, s := range subset {
		in[s] = struct{}{}
	}
	var out []string
	for _, s := range all {
		if _, ok := in[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
