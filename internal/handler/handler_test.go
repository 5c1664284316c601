package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/memory"
	"github.com/iliyamo/showtime-booking/internal/middleware"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/router"
	"github.com/iliyamo/showtime-booking/internal/seatlock"
	"github.com/iliyamo/showtime-booking/internal/seatmap"
	"github.com/iliyamo/showtime-booking/internal/utils"
)

const secret = "handler-test-secret"

type server struct {
	e *echo.Echo
	t *testing.T
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger, _ := test.NewNullLogger()

	store := memory.NewStore()
	store.PutShowtime(model.Showtime{
		ID:         "st1",
		MovieTitle: "Dune",
		HallName:   "Hall 1",
		StartsAt:   time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
		PriceByCategory: map[model.SeatCategory]int64{
			model.CategoryRegular: 100000,
			model.CategoryVIP:     140000,
		},
		Seats: []model.Seat{
			{Number: "A01", Row: "A", Category: model.CategoryRegular},
			{Number: "A02", Row: "A", Category: model.CategoryVIP},
			{Number: "B01", Row: "B", Category: model.CategoryRegular},
		},
	})
	store.PutCombo(model.Combo{ID: "C1", Name: "Popcorn + Coke", Price: 50000, IsActive: true})
	store.PutCombo(model.Combo{ID: "C2", Name: "Retired", Price: 10000, IsActive: false})

	seats := seatmap.New(store)
	locks := seatlock.NewManager(seatlock.NewMemoryStore(), seats, seatlock.WithLogger(logger))
	bookings := booking.New(store, seats, locks, booking.WithLogger(logger))

	e := echo.New()
	router.RegisterRoutes(e, map[string]handler.Check{
		"store": func(context.Context) error { return nil },
	})
	router.RegisterPublic(e,
		&handler.PublicHandler{Seats: seats, Locks: locks, Bookings: bookings, Log: logger},
		middleware.NewRedisCache(config.CacheConfig{}, nil, logger))
	router.RegisterCustomer(e,
		&handler.CustomerHandler{Locks: locks, Bookings: bookings, Log: logger},
		secret,
		middleware.NewTokenBucket(config.RateLimitConfig{}, nil, logger))
	return &server{e: e, t: t}
}

// do sends a request as holder (anonymous when holder is empty) and
// decodes the JSON response into a map.
func (s *server) do(method, path, holder, body string) (int, map[string]any) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if holder != "" {
		tok, err := utils.NewAccessToken(secret, holder, holder+"@example.com", time.Minute)
		require.NoError(s.t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (s *server) hold(holder string, seats ...string) string {
	s.t.Helper()
	body, _ := json.Marshal(map[string]any{"seat_numbers": seats})
	code, out := s.do(http.MethodPost, "/v1/showtimes/st1/holds", holder, string(body))
	require.Equal(s.t, http.StatusOK, code, out)
	return out["hold_id"].(string)
}

func TestCheckoutFlow(t *testing.T) {
	s := newServer(t)

	holdID := s.hold("u1", "A02", "A01", "A01")

	code, out := s.do(http.MethodGet, "/v1/showtimes/st1/holds", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["items"], 2)

	code, out = s.do(http.MethodGet, "/v1/showtimes/st1/seats", "", "")
	require.Equal(t, http.StatusOK, code)
	seats := out["seats"].([]any)
	require.Len(t, seats, 3)
	first := seats[0].(map[string]any)
	assert.Equal(t, "A01", first["seat_number"])
	assert.Equal(t, true, first["held"])
	assert.Equal(t, float64(100000), first["price"])
	assert.Equal(t, false, seats[2].(map[string]any)["held"])

	confirm := `{"combos":[{"combo_id":"C1","quantity":1}],"payment_method":"VNPAY"}`
	code, out = s.do(http.MethodPost, "/v1/holds/"+holdID+"/confirm", "u1", confirm)
	require.Equal(t, http.StatusCreated, code, out)
	bookingCode := out["booking_code"].(string)
	b := out["booking"].(map[string]any)
	assert.Equal(t, float64(290000), b["total"])
	assert.Equal(t, "confirmed", b["booking_status"])
	assert.Equal(t, "paid", b["payment_status"])
	assert.Equal(t, "u1@example.com", b["holder_contact"])

	code, out = s.do(http.MethodPost, "/v1/holds/"+holdID+"/confirm", "u1", confirm)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, bookingCode, out["booking_code"])

	code, out = s.do(http.MethodGet, "/v1/showtimes/st1/seats", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), out["available_seats"])
	assert.Equal(t, "sold", out["seats"].([]any)[0].(map[string]any)["status"])

	code, out = s.do(http.MethodGet, "/v1/bookings", "u1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["items"], 1)

	code, out = s.do(http.MethodGet, "/v1/bookings/"+bookingCode, "u1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, bookingCode, out["booking_code"])

	code, _ = s.do(http.MethodGet, "/v1/bookings/"+bookingCode, "u2", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, out = s.do(http.MethodPost, "/v1/showtimes/st1/holds", "u2", `{"seat_numbers":["A01","B01"]}`)
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, []any{"A01"}, out["conflicting_seats"])
}

func TestHoldConflictListsSeats(t *testing.T) {
	s := newServer(t)
	s.hold("u1", "A02")

	code, out := s.do(http.MethodPost, "/v1/showtimes/st1/holds", "u2", `{"seat_numbers":["A02","B01"]}`)
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, []any{"A02"}, out["conflicting_seats"])

	// all-or-nothing: B01 is still free
	s.hold("u2", "B01")
}

func TestHoldErrors(t *testing.T) {
	s := newServer(t)
	cases := []struct {
		name   string
		path   string
		holder string
		body   string
		status int
	}{
		{"anonymous", "/v1/showtimes/st1/holds", "", `{"seat_numbers":["A01"]}`, http.StatusUnauthorized},
		{"no seats", "/v1/showtimes/st1/holds", "u1", `{"seat_numbers":[]}`, http.StatusBadRequest},
		{"bad body", "/v1/showtimes/st1/holds", "u1", `{"seat_numbers":`, http.StatusBadRequest},
		{"negative ttl", "/v1/showtimes/st1/holds", "u1", `{"seat_numbers":["A01"],"ttl_seconds":-5}`, http.StatusBadRequest},
		{"unknown showtime", "/v1/showtimes/nope/holds", "u1", `{"seat_numbers":["A01"]}`, http.StatusNotFound},
		{"unknown seat", "/v1/showtimes/st1/holds", "u1", `{"seat_numbers":["Z99"]}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _ := s.do(http.MethodPost, tc.path, tc.holder, tc.body)
			assert.Equal(t, tc.status, code)
		})
	}
}

func TestReleaseHold(t *testing.T) {
	s := newServer(t)
	holdID := s.hold("u1", "A01")

	code, _ := s.do(http.MethodPost, "/v1/holds/"+holdID+"/release", "u2", "")
	assert.Equal(t, http.StatusForbidden, code)

	code, out := s.do(http.MethodPost, "/v1/holds/"+holdID+"/release", "u1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "released", out["state"])

	code, _ = s.do(http.MethodPost, "/v1/holds/"+holdID+"/release", "u1", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodPost, "/v1/holds/"+holdID+"/confirm", "u1", `{"payment_method":"momo"}`)
	assert.Equal(t, http.StatusConflict, code)

	s.hold("u2", "A01")
}

func TestConfirmErrors(t *testing.T) {
	s := newServer(t)
	holdID := s.hold("u1", "A01")

	cases := []struct {
		name   string
		holdID string
		holder string
		body   string
		status int
	}{
		{"anonymous", holdID, "", `{"payment_method":"momo"}`, http.StatusUnauthorized},
		{"other holder", holdID, "u2", `{"payment_method":"momo"}`, http.StatusForbidden},
		{"unknown hold", "missing", "u1", `{"payment_method":"momo"}`, http.StatusNotFound},
		{"bad payment method", holdID, "u1", `{"payment_method":"cash"}`, http.StatusBadRequest},
		{"failed payment", holdID, "u1", `{"payment_method":"momo","payment_status":"failed"}`, http.StatusBadRequest},
		{"inactive combo", holdID, "u1", `{"payment_method":"momo","combos":[{"combo_id":"C2"}]}`, http.StatusBadRequest},
		{"negative quantity", holdID, "u1", `{"payment_method":"momo","combos":[{"combo_id":"C1","quantity":-1}]}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _ := s.do(http.MethodPost, "/v1/holds/"+tc.holdID+"/confirm", tc.holder, tc.body)
			assert.Equal(t, tc.status, code)
		})
	}

	// none of the rejected attempts consumed the hold
	code, _ := s.do(http.MethodPost, "/v1/holds/"+holdID+"/confirm", "u1", `{"payment_method":"cod"}`)
	assert.Equal(t, http.StatusCreated, code)
}

func TestCombosListsActiveOnly(t *testing.T) {
	s := newServer(t)
	code, out := s.do(http.MethodGet, "/v1/combos", "", "")
	require.Equal(t, http.StatusOK, code)
	items := out["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "C1", items[0].(map[string]any)["id"])
}

func TestUnknownShowtimeSeats(t *testing.T) {
	s := newServer(t)
	code, _ := s.do(http.MethodGet, "/v1/showtimes/nope/seats", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodGet, "/v1/showtimes/nope/holds", "", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	code, out := s.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", out["status"])

	e := echo.New()
	router.RegisterRoutes(e, map[string]handler.Check{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
