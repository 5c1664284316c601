package model

import (
	"sort"
	"strings"
	"time"
)

// HoldState is the lifecycle state of a Hold.  Every state other than
// active is terminal: a hold is never reactivated.
type HoldState string

const (
	HoldActive   HoldState = "active"
	HoldReleased HoldState = "released"
	HoldExpired  HoldState = "expired"
	HoldConsumed HoldState = "consumed"
)

// Hold represents a temporary, exclusive claim on a set of seats during
// checkout.  Holds prevent concurrent buyers from grabbing the same seat
// while a purchase is in progress and lapse automatically at ExpiresAt.
//
// Fields:
//
//	ID            – opaque identifier returned to the client.
//	ShowtimeID    – showtime the seats belong to.
//	SeatNumbers   – sorted, de-duplicated, non-empty seat set.
//	HolderID      – authenticated identity owning the hold.
//	HolderContact – contact (email) of the holder.
//	CreatedAt     – when the hold was granted.
//	ExpiresAt     – when the hold lapses.
//	State         – stored lifecycle state; see EffectiveState.
type Hold struct {
	ID            string    `json:"hold_id"`
	ShowtimeID    string    `json:"showtime_id"`
	SeatNumbers   []string  `json:"seat_numbers"`
	HolderID      string    `json:"holder_id"`
	HolderContact string    `json:"holder_contact"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	State         HoldState `json:"state"`
}

// EffectiveState reports the state of the hold as observed at now.  An
// active hold whose expiry has passed reads as expired even if no sweep
// has physically reclaimed it yet.
func (h *Hold) EffectiveState(now time.Time) HoldState {
	if h.State == HoldActive && !now.Before(h.ExpiresAt) {
		return HoldExpired
	}
	return h.State
}

// IsActive is shorthand for EffectiveState(now) == HoldActive.
func (h *Hold) IsActive(now time.Time) bool {
	return h.EffectiveState(now) == HoldActive
}

// Covers reports whether the hold includes the given seat number.
func (h *Hold) Covers(seatNumber string) bool {
	for _, n := range h.SeatNumbers {
		if n == seatNumber {
			return true
		}
	}
	return false
}

// NormalizeSeatNumbers trims empty entries, removes duplicates and sorts
// the result so that equal seat sets always compare equal.
func NormalizeSeatNumbers(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, n := range in {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// seatNumberReserved holds the characters lock stores use as separators
// when they serialise seat lists.
const seatNumberReserved = ",|"

// ValidSeatNumber reports whether n can be stored as a seat number.
func ValidSeatNumber(n string) bool {
	return !strings.ContainsAny(n, seatNumberReserved)
}
