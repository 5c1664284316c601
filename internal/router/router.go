package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/handler"
)

// RegisterRoutes registers routes that do not belong to the booking API on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Check) {
	e.GET("/healthz", handler.Health(checks))
}

// RegisterPublic registers the unauthenticated browse endpoints.  The seat
// map and held seats change with every hold, so only the combo catalog
// goes through the response cache.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.GET("/showtimes/:id/seats", p.GetShowtimeSeats)
	g.GET("/showtimes/:id/holds", p.GetShowtimeHolds)
	g.GET("/combos", p.GetCombos, cache)
}
