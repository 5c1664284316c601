package middleware

import "github.com/labstack/echo/v4"

const (
	holderIDKey      = "holder_id"
	holderContactKey = "holder_email"
)

// Holder returns the authenticated holder id and contact stored by JWTAuth.
// ok is false on routes not wrapped by JWTAuth.
func Holder(c echo.Context) (id, contact string, ok bool) {
	id, _ = c.Get(holderIDKey).(string)
	contact, _ = c.Get(holderContactKey).(string)
	return id, contact, id != ""
}

// holderKey is the holder id used in rate-limit keys, "anon" when the
// request is unauthenticated.
func holderKey(c echo.Context) string {
	if id, _, ok := Holder(c); ok {
		return id
	}
	return "anon"
}
