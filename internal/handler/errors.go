package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// writeError maps a domain error to its HTTP response.  Unexpected errors
// are logged and answered with a generic message.
func writeError(c echo.Context, log logrus.FieldLogger, err error) error {
	switch {
	case errors.Is(err, model.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "hold belongs to another customer"})
	case errors.Is(err, model.ErrConflict):
		body := echo.Map{"error": err.Error()}
		if seats := model.ConflictingSeats(err); len(seats) > 0 {
			body["conflicting_seats"] = seats
		}
		return c.JSON(http.StatusConflict, body)
	}
	log.WithError(err).WithField("route", c.Path()).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
