package seatmap_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/memory"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/seatmap"
)

func newMap(t *testing.T) (*seatmap.SeatMap, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.PutShowtime(model.Showtime{
		ID: "st1",
		Seats: []model.Seat{
			{Number: "A01", Row: "A", Category: model.CategoryRegular},
			{Number: "A02", Row: "A", Category: model.CategoryVIP},
			{Number: "B01", Row: "B", Category: model.CategoryRegular, Status: model.SeatSold},
		},
	})
	return seatmap.New(store), store
}

func TestCheck(t *testing.T) {
	m, _ := newMap(t)
	ctx := context.Background()

	st, sold, err := m.Check(ctx, "st1", []string{"A01", "B01"})
	require.NoError(t, err)
	assert.Equal(t, "st1", st.ID)
	assert.Equal(t, []string{"B01"}, sold)

	_, _, err = m.Check(ctx, "st1", []string{"A01", "Z09"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, _, err = m.Check(ctx, "missing", []string{"A01"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = m.Seats(ctx, "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestMarkSoldIsAllOrNothing(t *testing.T) {
	m, store := newMap(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		return m.MarkSold(ctx, tx, "st1", []string{"A01", "B01"})
	})
	require.ErrorIs(t, err, model.ErrConflict)
	assert.Equal(t, []string{"B01"}, model.ConflictingSeats(err))

	st, err := m.Seats(ctx, "st1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.AvailableSeats)

	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		return m.MarkSold(ctx, tx, "st1", []string{"A01", "A02"})
	}))
	st, err = m.Seats(ctx, "st1")
	require.NoError(t, err)
	assert.Equal(t, 0, st.AvailableSeats)
	sold, err := m.SoldAmong(ctx, "st1", []string{"A01", "A02"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A01", "A02"}, sold)
}

func TestRevert(t *testing.T) {
	m, store := newMap(t)
	ctx := context.Background()

	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		return m.MarkSold(ctx, tx, "st1", []string{"A01"})
	}))
	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		return m.Revert(ctx, tx, "st1", []string{"A01"})
	}))
	st, err := m.Seats(ctx, "st1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.AvailableSeats)
}

func TestMarkSoldRequiresSeats(t *testing.T) {
	m, store := newMap(t)
	err := store.InTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		return m.MarkSold(ctx, tx, "st1", nil)
	})
	assert.True(t, errors.Is(err, model.ErrValidation))
}
