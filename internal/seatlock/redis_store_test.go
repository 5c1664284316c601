package seatlock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// newTestRedisStore connects to REDIS_TEST_ADDR, or to an in-process
// miniredis when it is unset, and isolates keys under a random prefix.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rdb.Ping(ctx).Err())

	prefix := "seatlock-test-" + uuid.NewString()
	t.Cleanup(func() {
		ctx := context.Background()
		iter := rdb.Scan(ctx, 0, prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			rdb.Del(ctx, iter.Val())
		}
		_ = rdb.Close()
	})
	return NewRedisStore(rdb, prefix, time.Hour)
}

func testHold(id, holder string, now time.Time, seats ...string) *model.Hold {
	return &model.Hold{
		ID:          id,
		ShowtimeID:  "S1",
		SeatNumbers: seats,
		HolderID:    holder,
		CreatedAt:   now,
		ExpiresAt:   now.Add(10 * time.Minute),
		State:       model.HoldActive,
	}
}

func TestRedisStoreLifecycle(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	conflicts, err := s.Acquire(ctx, testHold("h1", "u1", now, "A01", "A02"), now)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	conflicts, err = s.Acquire(ctx, testHold("h2", "u2", now, "A02", "A03"), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"A02"}, conflicts)

	h, err := s.ActiveHold(ctx, "S1", "A03", now)
	require.NoError(t, err)
	assert.Nil(t, h, "failed acquire must not claim A03")

	got, err := s.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A01", "A02"}, got.SeatNumbers)
	assert.Equal(t, now.Add(10*time.Minute), got.ExpiresAt)

	assert.ErrorIs(t, s.Release(ctx, "h1", "u2", now), model.ErrForbidden)

	consumed, err := s.Consume(ctx, "h1", now)
	require.NoError(t, err)
	assert.Equal(t, model.HoldConsumed, consumed.State)

	_, err = s.Consume(ctx, "h1", now)
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.ErrorIs(t, s.Release(ctx, "h1", "u1", now), model.ErrNotFound)

	conflicts, err = s.Acquire(ctx, testHold("h3", "u2", now, "A02"), now)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestRedisStoreExpiryUsesCallerClock(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, err := s.Acquire(ctx, testHold("h1", "u1", now, "A01"), now)
	require.NoError(t, err)

	later := now.Add(10 * time.Minute)
	holds, err := s.ActiveHolds(ctx, "S1", later)
	require.NoError(t, err)
	assert.Empty(t, holds)

	conflicts, err := s.Acquire(ctx, testHold("h2", "u2", later, "A01"), later)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	_, err = s.Consume(ctx, "h1", later)
	assert.ErrorIs(t, err, model.ErrConflict)

	n, err := s.Sweep(ctx, later, time.Hour)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)
}

func TestRedisStoreSweepExpiresLapsedHolds(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, err := s.Acquire(ctx, testHold("h1", "u1", now, "A01"), now)
	require.NoError(t, err)
	_, err = s.Acquire(ctx, testHold("h2", "u2", now.Add(5*time.Minute), "A02"), now)
	require.NoError(t, err)

	later := now.Add(11 * time.Minute)
	n, err := s.Sweep(ctx, later, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, model.HoldExpired, got.State)
	got, err = s.Get(ctx, "h2")
	require.NoError(t, err)
	assert.Equal(t, model.HoldActive, got.State)

	n, err = s.Sweep(ctx, later, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStoreExpireLeavesReclaimedHashAlone(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	key := s.holdKey("gone")

	n, err := expireScript.Run(ctx, s.rdb, []string{key}, time.Now().UnixMilli()).Int()
	require.NoError(t, err)
	assert.Zero(t, n)

	exists, err := s.rdb.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestRedisStoreSkipsUndecodableHolds(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, err := s.Acquire(ctx, testHold("h1", "u1", now, "A01"), now)
	require.NoError(t, err)
	require.NoError(t, s.rdb.HSet(ctx, s.holdKey("partial"), "state", string(model.HoldExpired)).Err())
	require.NoError(t, s.rdb.SAdd(ctx, s.indexKey("S1"), "partial").Err())

	holds, err := s.ActiveHolds(ctx, "S1", now)
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, "h1", holds[0].ID)

	member, err := s.rdb.SIsMember(ctx, s.indexKey("S1"), "partial").Result()
	require.NoError(t, err)
	assert.False(t, member)

	_, err = s.Sweep(ctx, now.Add(time.Hour), time.Hour)
	require.NoError(t, err)
}

func TestRedisStoreRejectsReservedSeatCharacters(t *testing.T) {
	s := newTestRedisStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, err := s.Acquire(context.Background(), testHold("h1", "u1", now, "A01", "A,02"), now)
	assert.ErrorIs(t, err, model.ErrValidation)
}
