package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/middleware"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/seatlock"
)

// CustomerHandler serves the authenticated checkout endpoints.  All
// methods expect JWTAuth to have run; the holder identity is taken from
// the token and never from the request body.
type CustomerHandler struct {
	Locks    *seatlock.Manager
	Bookings *booking.Coordinator
	Log      logrus.FieldLogger
}

type holdRequest struct {
	SeatNumbers []string `json:"seat_numbers"`
	TTLSeconds  int      `json:"ttl_seconds"`
}

type confirmRequest struct {
	Combos        []model.ComboSelection `json:"combos"`
	PaymentMethod string                 `json:"payment_method"`
	PaymentStatus string                 `json:"payment_status"`
}

// HoldSeats handles POST /v1/showtimes/:id/holds.  It grants the caller an
// exclusive hold on every requested seat or on none of them; a 409 lists
// the seats that blocked the request.
func (h *CustomerHandler) HoldSeats(c echo.Context) error {
	holderID, contact, ok := middleware.Holder(c)
	if !ok {
		return unauthorized(c)
	}
	var body holdRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.TTLSeconds < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ttl_seconds must not be negative"})
	}

	hold, err := h.Locks.Acquire(c.Request().Context(), seatlock.AcquireRequest{
		ShowtimeID:    c.Param("id"),
		SeatNumbers:   body.SeatNumbers,
		HolderID:      holderID,
		HolderContact: contact,
		TTL:           time.Duration(body.TTLSeconds) * time.Second,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"hold_id":      hold.ID,
		"showtime_id":  hold.ShowtimeID,
		"seat_numbers": hold.SeatNumbers,
		"expires_at":   hold.ExpiresAt,
	})
}

// ReleaseHold handles POST /v1/holds/:id/release.
func (h *CustomerHandler) ReleaseHold(c echo.Context) error {
	holderID, _, ok := middleware.Holder(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Locks.Release(c.Request().Context(), c.Param("id"), holderID); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"hold_id": c.Param("id"), "state": model.HoldReleased})
}

// ConfirmHold handles POST /v1/holds/:id/confirm.  Retrying a confirmation
// that already succeeded returns the same booking.
func (h *CustomerHandler) ConfirmHold(c echo.Context) error {
	holderID, _, ok := middleware.Holder(c)
	if !ok {
		return unauthorized(c)
	}
	var body confirmRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	b, err := h.Bookings.Confirm(c.Request().Context(), booking.ConfirmRequest{
		HoldID:        c.Param("id"),
		HolderID:      holderID,
		Combos:        body.Combos,
		PaymentMethod: model.PaymentMethod(strings.ToLower(strings.TrimSpace(body.PaymentMethod))),
		PaymentStatus: model.PaymentStatus(strings.ToLower(strings.TrimSpace(body.PaymentStatus))),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"booking_code": b.Code, "booking": b})
}

// ListBookings handles GET /v1/bookings.
func (h *CustomerHandler) ListBookings(c echo.Context) error {
	holderID, _, ok := middleware.Holder(c)
	if !ok {
		return unauthorized(c)
	}
	list, err := h.Bookings.ListBookings(c.Request().Context(), holderID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if list == nil {
		list = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// GetBooking handles GET /v1/bookings/:code.
func (h *CustomerHandler) GetBooking(c echo.Context) error {
	holderID, _, ok := middleware.Holder(c)
	if !ok {
		return unauthorized(c)
	}
	b, err := h.Bookings.GetBooking(c.Request().Context(), c.Param("code"), holderID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}
