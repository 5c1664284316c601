package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/middleware"
)

// RegisterCustomer registers customer-scoped endpoints under /v1.  All routes
// require a valid JWT.  The hold and confirm endpoints additionally pass
// through the rate limiter, which keys on the authenticated holder.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	g.POST("/showtimes/:id/holds", h.HoldSeats, limit)
	g.POST("/holds/:id/release", h.ReleaseHold)
	g.POST("/holds/:id/confirm", h.ConfirmHold, limit)

	g.GET("/bookings", h.ListBookings)
	g.GET("/bookings/:code", h.GetBooking)
}
