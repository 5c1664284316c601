package model

import "time"

// BookingStatus is the lifecycle state of a booking.  BookingPending is an
// internal marker that only exists while a confirmation is in flight; it is
// never returned by the read paths.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingExpired   BookingStatus = "expired"
)

// PaymentMethod names how the customer paid.
type PaymentMethod string

const (
	PaymentMomo  PaymentMethod = "momo"
	PaymentVNPay PaymentMethod = "vnpay"
	PaymentVisa  PaymentMethod = "visa"
	PaymentCOD   PaymentMethod = "cod"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMomo, PaymentVNPay, PaymentVisa, PaymentCOD:
		return true
	}
	return false
}

// PaymentStatus is decided by the payment collaborator before confirm.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentCancelled:
		return true
	}
	return false
}

// BookedSeat is the frozen price record of one purchased seat.
type BookedSeat struct {
	Number   string       `json:"seat_number"`
	Category SeatCategory `json:"type"`
	Price    int64        `json:"price"`
}

// BookedCombo is the frozen price record of one purchased combo line.
type BookedCombo struct {
	ComboID   string `json:"combo_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

// Booking is the immutable receipt produced by a successful confirmation.
// Seats and Combos are snapshots taken at confirm time; Total is always
// the sum of those snapshots and is never recomputed from live prices.
//
// Fields:
//
//	Code          – unique booking code handed to the customer.
//	HoldID        – hold consumed by this booking (unique).
//	HolderID      – owner of the booking.
//	HolderContact – contact (email) of the owner.
//	ShowtimeID    – showtime the seats belong to.
//	MovieTitle    – display copy of the showtime's movie.
//	HallName      – display copy of the showtime's hall.
//	StartsAt      – display copy of the showtime's start time.
//	Seats         – purchased seats with the price charged.
//	Combos        – purchased combo lines with the price charged.
//	Total         – seat prices plus combo line totals.
//	PaymentMethod – how the customer paid.
//	PaymentStatus – payment outcome supplied at confirm.
//	Status        – booking lifecycle state.
//	CreatedAt     – creation timestamp.
type Booking struct {
	Code          string        `json:"booking_code"`
	HoldID        string        `json:"hold_id"`
	HolderID      string        `json:"holder_id"`
	HolderContact string        `json:"holder_contact"`
	ShowtimeID    string        `json:"showtime_id"`
	MovieTitle    string        `json:"movie_title"`
	HallName      string        `json:"hall_name"`
	StartsAt      time.Time     `json:"starts_at"`
	Seats         []BookedSeat  `json:"seats"`
	Combos        []BookedCombo `json:"combos"`
	Total         int64         `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Status        BookingStatus `json:"booking_status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// SeatNumbers returns the seat numbers in the booking snapshot.
func (b *Booking) SeatNumbers() []string {
	out := make([]string, 0, len(b.Seats))
	for _, s := range b.Seats {
		out = append(out, s.Number)
	}
	return out
}

// SnapshotTotal sums the seat and combo snapshots.
func (b *Booking) SnapshotTotal() int64 {
	var total int64
	for _, s := range b.Seats {
		total += s.Price
	}
	for _, c := range b.Combos {
		total += c.LineTotal
	}
	return total
}
