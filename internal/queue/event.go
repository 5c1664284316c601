// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// BookingConfirmedEvent is published when a booking is successfully confirmed.
// It contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingCode   string   `json:"booking_code"`
	HoldID        string   `json:"hold_id"`
	HolderID      string   `json:"holder_id"`
	HolderContact string   `json:"holder_contact"`
	ShowtimeID    string   `json:"showtime_id"`
	MovieTitle    string   `json:"movie_title"`
	HallName      string   `json:"hall_name"`
	StartsAt      string   `json:"starts_at"`
	Seats         []string `json:"seats"`
	Combos        int      `json:"combos"` // total combo quantity
	Total         int64    `json:"total"`
	PaymentMethod string   `json:"payment_method"`
	ConfirmedAt   string   `json:"confirmed_at"`
}

// NewBookingConfirmedEvent builds the event for b.  Times are RFC 3339 in UTC.
func NewBookingConfirmedEvent(b *model.Booking) BookingConfirmedEvent {
	ev := BookingConfirmedEvent{
		BookingCode:   b.Code,
		HoldID:        b.HoldID,
		HolderID:      b.HolderID,
		HolderContact: b.HolderContact,
		ShowtimeID:    b.ShowtimeID,
		MovieTitle:    b.MovieTitle,
		HallName:      b.HallName,
		Seats:         b.SeatNumbers(),
		Total:         b.Total,
		PaymentMethod: string(b.PaymentMethod),
		ConfirmedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !b.StartsAt.IsZero() {
		ev.StartsAt = b.StartsAt.UTC().Format(time.RFC3339)
	}
	for _, c := range b.Combos {
		ev.Combos += c.Quantity
	}
	return ev
}
