// Package pricing resolves seat and combo prices at confirmation time.
// Every function here is pure: it operates only on the values passed in
// and never reaches storage, so results are deterministic and safe to
// freeze into a booking snapshot.
package pricing

import "github.com/iliyamo/showtime-booking/internal/model"

// SeatPrice returns the price charged for seat within showtime.  The first
// configured value wins, in this order: the seat's own override, the
// showtime's price for the seat category, the showtime's flat price, 0.
func SeatPrice(seat model.Seat, showtime *model.Showtime) int64 {
	if seat.Price != nil {
		return *seat.Price
	}
	if showtime == nil {
		return 0
	}
	if p, ok := showtime.PriceByCategory[seat.Category]; ok {
		return p
	}
	if showtime.Price != nil {
		return *showtime.Price
	}
	return 0
}

// ComboLineTotal returns unit price times quantity for one combo line.
func ComboLineTotal(combo model.Combo, quantity int) int64 {
	if quantity <= 0 {
		return 0
	}
	return combo.Price * int64(quantity)
}

// Quote is the priced result of a seat and combo selection.
type Quote struct {
	Seats  []model.BookedSeat
	Combos []model.BookedCombo
	Total  int64
}

// QuoteSelection prices every seat number against showtime and every combo
// line against catalog.  Seats must already exist in showtime and every
// selection must reference a catalog entry; callers validate beforehand.
func QuoteSelection(showtime *model.Showtime, seatNumbers []string, selections []model.ComboSelection, catalog map[string]model.Combo) Quote {
	var q Quote
	for _, n := range seatNumbers {
		seat, _ := showtime.Seat(n)
		price := SeatPrice(seat, showtime)
		q.Seats = append(q.Seats, model.BookedSeat{Number: n, Category: seat.Category, Price: price})
		q.Total += price
	}
	for _, sel := range selections {
		combo := catalog[sel.ComboID]
		line := ComboLineTotal(combo, sel.Quantity)
		q.Combos = append(q.Combos, model.BookedCombo{
			ComboID:   combo.ID,
			Name:      combo.Name,
			UnitPrice: combo.Price,
			Quantity:  sel.Quantity,
			LineTotal: line,
		})
		q.Total += line
	}
	return q
}
