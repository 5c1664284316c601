package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/pricing"
	"github.com/iliyamo/showtime-booking/internal/seatlock"
	"github.com/iliyamo/showtime-booking/internal/seatmap"
)

// PublicHandler serves the unauthenticated browsing endpoints: the seat
// map of a showtime, its currently held seats and the combo catalog.
type PublicHandler struct {
	Seats    *seatmap.SeatMap
	Locks    *seatlock.Manager
	Bookings *booking.Coordinator
	Log      logrus.FieldLogger
}

// SeatView is one seat in the public seat map.  Held is true while an
// active hold covers the seat.
type SeatView struct {
	Number   string             `json:"seat_number"`
	Row      string             `json:"row"`
	Category model.SeatCategory `json:"type"`
	Price    int64              `json:"price"`
	Status   model.SeatStatus   `json:"status"`
	Held     bool               `json:"held"`
}

// HeldSeat is one seat covered by an active hold.  Hold ids and holder
// identities are not exposed.
type HeldSeat struct {
	Number    string    `json:"seat_number"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetShowtimeSeats handles GET /v1/showtimes/:id/seats.
func (h *PublicHandler) GetShowtimeSeats(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	st, err := h.Seats.Seats(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	holds, err := h.Locks.ActiveHolds(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	held := make(map[string]bool)
	for _, hold := range holds {
		for _, n := range hold.SeatNumbers {
			held[n] = true
		}
	}

	seats := make([]SeatView, 0, len(st.Seats))
	for _, s := range st.Seats {
		seats = append(seats, SeatView{
			Number:   s.Number,
			Row:      s.Row,
			Category: s.Category,
			Price:    pricing.SeatPrice(s, st),
			Status:   s.Status,
			Held:     held[s.Number],
		})
	}
	priceByCategory := st.PriceByCategory
	if priceByCategory == nil {
		priceByCategory = map[model.SeatCategory]int64{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"showtime_id":       st.ID,
		"movie_title":       st.MovieTitle,
		"hall_name":         st.HallName,
		"starts_at":         st.StartsAt,
		"available_seats":   st.AvailableSeats,
		"seats":             seats,
		"price_by_category": priceByCategory,
	})
}

// GetShowtimeHolds handles GET /v1/showtimes/:id/holds and lists the seats
// currently held, ordered by seat number within each hold.
func (h *PublicHandler) GetShowtimeHolds(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := h.Seats.Seats(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	holds, err := h.Locks.ActiveHolds(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	items := make([]HeldSeat, 0)
	for _, hold := range holds {
		for _, n := range hold.SeatNumbers {
			items = append(items, HeldSeat{Number: n, ExpiresAt: hold.ExpiresAt})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"showtime_id": id, "items": items})
}

// GetCombos handles GET /v1/combos.
func (h *PublicHandler) GetCombos(c echo.Context) error {
	combos, err := h.Bookings.Combos(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if combos == nil {
		combos = []model.Combo{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": combos})
}
