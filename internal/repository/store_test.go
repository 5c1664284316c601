package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/database"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/seatlock"
	"github.com/iliyamo/showtime-booking/internal/seatmap"
)

var testDB *sql.DB

// TestMain connects to MYSQL_TEST_DSN when it is set.  Without it every
// test in this package is skipped.
func TestMain(m *testing.M) {
	if dsn := os.Getenv("MYSQL_TEST_DSN"); dsn != "" {
		db, err := database.OpenDSN(dsn)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open test database:", err)
			os.Exit(1)
		}
		if err := database.Migrate(context.Background(), db); err != nil {
			fmt.Fprintln(os.Stderr, "migrate test database:", err)
			os.Exit(1)
		}
		testDB = db
	}
	code := m.Run()
	if testDB != nil {
		_ = testDB.Close()
	}
	os.Exit(code)
}

// newTestStore returns a store with a freshly seeded showtime whose id is
// unique to the test.
func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	if testDB == nil {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	s := NewStore(testDB)
	id := "st-" + uuid.NewString()[:8]
	ctx := context.Background()
	require.NoError(t, s.UpsertShowtime(ctx, model.Showtime{
		ID:         id,
		MovieTitle: "Dune",
		HallName:   "Hall 1",
		StartsAt:   time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
		PriceByCategory: map[model.SeatCategory]int64{
			model.CategoryRegular: 100000,
			model.CategoryVIP:     140000,
		},
		Seats: []model.Seat{
			{Number: "A02", Row: "A", Category: model.CategoryVIP},
			{Number: "A01", Row: "A", Category: model.CategoryRegular},
			{Number: "B01", Row: "B", Category: model.CategoryRegular},
		},
	}))
	require.NoError(t, s.UpsertCombo(ctx, model.Combo{ID: "C1", Name: "Popcorn + Coke", Price: 50000, IsActive: true}))
	return s, id
}

func TestShowtimeRoundTrip(t *testing.T) {
	s, id := newTestStore(t)

	st, err := s.Showtime(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Dune", st.MovieTitle)
	assert.Equal(t, 3, st.AvailableSeats)
	assert.Equal(t, int64(140000), st.PriceByCategory[model.CategoryVIP])
	require.Len(t, st.Seats, 3)
	assert.Equal(t, "A01", st.Seats[0].Number)
	assert.Equal(t, model.SeatAvailable, st.Seats[0].Status)

	_, err = s.Showtime(context.Background(), "missing-"+id)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSetSeatStatusRollsBack(t *testing.T) {
	s, id := newTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		changed, err := tx.SetSeatStatus(ctx, id, []string{"A01", "A02"}, model.SeatAvailable, model.SeatSold)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"A01", "A02"}, changed)
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	st, err := s.Showtime(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, st.AvailableSeats)
}

func TestInsertBookingDuplicateHold(t *testing.T) {
	s, id := newTestStore(t)
	ctx := context.Background()
	hold := uuid.NewString()

	insert := func(code string) error {
		return s.InTx(ctx, func(ctx context.Context, tx booking.Tx) error {
			return tx.InsertBooking(ctx, &model.Booking{
				Code: code, HoldID: hold, HolderID: "u1", ShowtimeID: id,
				PaymentMethod: model.PaymentVisa, PaymentStatus: model.PaymentPaid,
				Status: model.BookingConfirmed, CreatedAt: time.Now().UTC(),
			})
		})
	}
	require.NoError(t, insert("BK"+uuid.NewString()[:8]))
	assert.ErrorIs(t, insert("BK"+uuid.NewString()[:8]), model.ErrConflict)
}

func TestConfirmAgainstMySQL(t *testing.T) {
	s, id := newTestStore(t)
	ctx := context.Background()
	logger, _ := test.NewNullLogger()

	seats := seatmap.New(s)
	locks := seatlock.NewManager(seatlock.NewMemoryStore(), seats, seatlock.WithLogger(logger))
	coord := booking.New(s, seats, locks, booking.WithLogger(logger))

	holder := "u-" + uuid.NewString()[:8]
	h, err := locks.Acquire(ctx, seatlock.AcquireRequest{ShowtimeID: id, SeatNumbers: []string{"A01", "A02"}, HolderID: holder})
	require.NoError(t, err)

	req := booking.ConfirmRequest{
		HoldID:        h.ID,
		HolderID:      holder,
		Combos:        []model.ComboSelection{{ComboID: "C1", Quantity: 1}},
		PaymentMethod: model.PaymentVNPay,
	}
	b, err := coord.Confirm(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(290000), b.Total)

	again, err := coord.Confirm(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, b.Code, again.Code)

	stored, err := s.BookingByCode(ctx, b.Code)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, stored.Status)
	assert.Len(t, stored.Seats, 2)
	assert.Len(t, stored.Combos, 1)
	assert.Equal(t, stored.SnapshotTotal(), stored.Total)

	st, err := s.Showtime(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, st.AvailableSeats)

	list, err := s.BookingsByHolder(ctx, holder)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.Code, list[0].Code)
}
