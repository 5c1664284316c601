package model

import "time"

// Showtime represents a scheduled screening with its own seat inventory
// and pricing.  The catalog layer populates it; the reservation engine
// only reads it and flips seat status through the seat map.
//
// Fields:
//
//	ID              – showtime identifier.
//	MovieTitle      – title shown on bookings.
//	HallName        – hall the screening takes place in.
//	StartsAt        – scheduled start time (UTC).
//	Price           – flat seat price; nil when the showtime has none.
//	PriceByCategory – seat price per category, consulted before Price.
//	Seats           – seats ordered by row then number.
//	AvailableSeats  – derived counter, equals the number of available seats.
type Showtime struct {
	ID              string                 `json:"id"`
	MovieTitle      string                 `json:"movie_title"`
	HallName        string                 `json:"hall_name"`
	StartsAt        time.Time              `json:"starts_at"`
	Price           *int64                 `json:"price,omitempty"`
	PriceByCategory map[SeatCategory]int64 `json:"price_by_category"`
	Seats           []Seat                 `json:"seats"`
	AvailableSeats  int                    `json:"available_seats"`
}

// Seat returns the seat with the given number and whether it exists.
func (s *Showtime) Seat(number string) (Seat, bool) {
	for _, seat := range s.Seats {
		if seat.Number == number {
			return seat, true
		}
	}
	return Seat{}, false
}

// CountAvailable recomputes the number of available seats from the seat
// collection.  Stores use it to keep AvailableSeats honest.
func (s *Showtime) CountAvailable() int {
	n := 0
	for _, seat := range s.Seats {
		if seat.IsAvailable() {
			n++
		}
	}
	return n
}
