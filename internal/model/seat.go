package model

// SeatCategory classifies a seat for pricing purposes.  The set is
// open: showtimes may carry prices for categories beyond the two
// defined here.
type SeatCategory string

const (
	CategoryRegular SeatCategory = "regular"
	CategoryVIP     SeatCategory = "vip"
)

// SeatStatus is the sale state of a seat within one showtime.  The only
// permitted transition is available -> sold; sold is terminal.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatSold      SeatStatus = "sold"
)

// Seat describes a numbered seat belonging to exactly one showtime.
//
// Fields:
//
//	Number   – seat number, unique within the showtime (e.g. A01).
//	Row      – row label used for display ordering.
//	Category – pricing category (regular, vip, ...).
//	Price    – seat-level price override; nil falls back to showtime pricing.
//	Status   – available or sold.
type Seat struct {
	Number   string       `json:"seat_number"`     // show_seats.seat_number
	Row      string       `json:"row"`             // show_seats.row_label
	Category SeatCategory `json:"type"`            // show_seats.category
	Price    *int64       `json:"price,omitempty"` // show_seats.price (nullable)
	Status   SeatStatus   `json:"status"`          // show_seats.status
}

// IsAvailable reports whether the seat can still be sold.
func (s Seat) IsAvailable() bool { return s.Status == SeatAvailable }
