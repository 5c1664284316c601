package seatlock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// RedisStore keeps holds in Redis so that several server instances share
// one view of who holds which seat.  Layout, with p the key prefix:
//
//	p:hold:<id>                  hash with the hold's fields
//	p:seat:<showtime>:<seat>     "<hold id>|<expires ms>" while held
//	p:showtime:<showtime>:holds  set of hold ids granted for the showtime
//
// Liveness is always decided against the caller's now (passed to the Lua
// scripts as milliseconds), never against Redis' own clock; key TTLs only
// reclaim memory.
type RedisStore struct {
	rdb       redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore returns a store using rdb.  An empty prefix defaults to
// "seatlock"; retired holds stay readable for retention past their expiry.
func NewRedisStore(rdb redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "seatlock"
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{rdb: rdb, prefix: prefix, retention: retention}
}

var _ LockStore = (*RedisStore)(nil)

// expireScript marks a lapsed active hold expired.  A hash that has
// already been reclaimed is left alone.
//
// KEYS: hold
// ARGV: now_ms
//
// Returns 1 when the hold was expired, 0 otherwise.
var expireScript = redis.NewScript(`
	local fields = redis.call('HMGET', KEYS[1], 'state', 'expires_ms')
	if fields[1] ~= 'active' or not fields[2] then
		return 0
	end
	if tonumber(fields[2]) > tonumber(ARGV[1]) then
		return 0
	end
	redis.call('HSET', KEYS[1], 'state', 'expired')
	return 1
`)

func (s *RedisStore) holdKey(id string) string { return s.prefix + ":hold:" + id }
func (s *RedisStore) seatKey(showtimeID, seat string) string {
	return s.prefix + ":seat:" + showtimeID + ":" + seat
}
func (s *RedisStore) indexKey(showtimeID string) string {
	return s.prefix + ":showtime:" + showtimeID + ":holds"
}

// acquireScript checks every seat key and, only when none is held past
// now, claims them all and writes the hold.
//
// KEYS: hold, index, seat...
// ARGV: now_ms, hold_id, showtime, seats_csv, holder, contact,
// created_ms, expires_ms, retention_ms, seat numbers...
var acquireScript = redis.NewScript(`
	local now_ms = tonumber(ARGV[1])
	local expires_ms = tonumber(ARGV[8])
	local retention_ms = tonumber(ARGV[9])
	local nseats = #KEYS - 2

	local conflicts = {0}
	for i = 1, nseats do
		local v = redis.call('GET', KEYS[i + 2])
		if v then
			local sep = string.find(v, '|', 1, true)
			local exp = tonumber(string.sub(v, sep + 1))
			if exp ~= nil and exp > now_ms then
				table.insert(conflicts, ARGV[9 + i])
			end
		end
	end
	if #conflicts > 1 then
		return conflicts
	end

	local ttl = expires_ms - now_ms
	local value = ARGV[2] .. '|' .. ARGV[8]
	for i = 1, nseats do
		redis.call('SET', KEYS[i + 2], value, 'PX', ttl)
	end
	redis.call('HSET', KEYS[1],
		'id', ARGV[2], 'showtime', ARGV[3], 'seats', ARGV[4],
		'holder', ARGV[5], 'contact', ARGV[6],
		'created_ms', ARGV[7], 'expires_ms', ARGV[8], 'state', 'active')
	redis.call('PEXPIRE', KEYS[1], ttl + retention_ms)
	redis.call('SADD', KEYS[2], ARGV[2])
	if redis.call('PTTL', KEYS[2]) < ttl + retention_ms then
		redis.call('PEXPIRE', KEYS[2], ttl + retention_ms)
	end
	return {1}
`)

// transitionScript retires an active hold and frees the seat keys that
// still point at it.
//
// KEYS: hold, seat...
// ARGV: now_ms, holder ("" skips the owner check), target state, hold_id
//
// Returns {1} on success, {-1} unknown, {-2} not the owner, {-3, state}
// not active.
var transitionScript = redis.NewScript(`
	local now_ms = tonumber(ARGV[1])
	local fields = redis.call('HMGET', KEYS[1], 'state', 'holder', 'expires_ms')
	local state = fields[1]
	if not state then
		return {-1}
	end
	if ARGV[2] ~= '' and fields[2] ~= ARGV[2] then
		return {-2}
	end
	if state ~= 'active' or tonumber(fields[3]) <= now_ms then
		if state == 'active' then
			state = 'expired'
			redis.call('HSET', KEYS[1], 'state', state)
		end
		return {-3, state}
	end

	redis.call('HSET', KEYS[1], 'state', ARGV[3])
	local mine = ARGV[4] .. '|'
	for i = 2, #KEYS do
		local v = redis.call('GET', KEYS[i])
		if v and string.sub(v, 1, #mine) == mine then
			redis.call('DEL', KEYS[i])
		end
	end
	return {1}
`)

// Acquire implements LockStore.
func (s *RedisStore) Acquire(ctx context.Context, hold *model.Hold, now time.Time) ([]string, error) {
	if !hold.ExpiresAt.After(now) {
		return nil, fmt.Errorf("hold %s expires before it starts", hold.ID)
	}
	keys := make([]string, 0, len(hold.SeatNumbers)+2)
	keys = append(keys, s.holdKey(hold.ID), s.indexKey(hold.ShowtimeID))
	for _, n := range hold.SeatNumbers {
		if !model.ValidSeatNumber(n) {
			return nil, model.Invalid("seat_numbers", fmt.Sprintf("seat %q contains a reserved character", n))
		}
		keys = append(keys, s.seatKey(hold.ShowtimeID, n))
	}
	args := []interface{}{
		now.UnixMilli(),
		hold.ID,
		hold.ShowtimeID,
		strings.Join(hold.SeatNumbers, ","),
		hold.HolderID,
		hold.HolderContact,
		hold.CreatedAt.UnixMilli(),
		hold.ExpiresAt.UnixMilli(),
		s.retention.Milliseconds(),
	}
	for _, n := range hold.SeatNumbers {
		args = append(args, n)
	}

	res, err := acquireScript.Run(ctx, s.rdb, keys, args...).Slice()
	if err != nil {
		return nil, fmt.Errorf("acquire script: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("acquire script: empty result")
	}
	if asInt64(res[0]) == 1 {
		return nil, nil
	}
	conflicts := make([]string, 0, len(res)-1)
	for _, v := range res[1:] {
		conflicts = append(conflicts, fmt.Sprint(v))
	}
	return conflicts, nil
}

// Get implements LockStore.
func (s *RedisStore) Get(ctx context.Context, holdID string) (*model.Hold, error) {
	fields, err := s.rdb.HGetAll(ctx, s.holdKey(holdID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load hold %s: %w", holdID, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: hold %s", model.ErrNotFound, holdID)
	}
	return decodeHold(fields)
}

// ActiveHold implements LockStore.
func (s *RedisStore) ActiveHold(ctx context.Context, showtimeID, seatNumber string, now time.Time) (*model.Hold, error) {
	v, err := s.rdb.Get(ctx, s.seatKey(showtimeID, seatNumber)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load seat %s: %w", seatNumber, err)
	}
	holdID, _, _ := strings.Cut(v, "|")
	h, err := s.Get(ctx, holdID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !h.IsActive(now) {
		return nil, nil
	}
	return h, nil
}

// ActiveHolds implements LockStore.
func (s *RedisStore) ActiveHolds(ctx context.Context, showtimeID string, now time.Time) ([]model.Hold, error) {
	holds, err := s.loadIndex(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	out := []model.Hold{}
	for _, h := range holds {
		if h.IsActive(now) {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// loadIndex reads every hold listed for the showtime.  Ids whose hash has
// already been reclaimed, or no longer decodes, are dropped from the
// index on the way.
func (s *RedisStore) loadIndex(ctx context.Context, showtimeID string) ([]*model.Hold, error) {
	idx := s.indexKey(showtimeID)
	ids, err := s.rdb.SMembers(ctx, idx).Result()
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	pipe := s.rdb.Pipeline()
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.holdKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("load holds: %w", err)
	}

	var out []*model.Hold
	var stale []interface{}
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			stale = append(stale, ids[i])
			continue
		}
		h, err := decodeHold(fields)
		if err != nil {
			stale = append(stale, ids[i])
			s.rdb.Del(ctx, s.holdKey(ids[i]))
			continue
		}
		out = append(out, h)
	}
	if len(stale) > 0 {
		s.rdb.SRem(ctx, idx, stale...)
	}
	return out, nil
}

// Release implements LockStore.
func (s *RedisStore) Release(ctx context.Context, holdID, holderID string, now time.Time) error {
	_, err := s.transition(ctx, holdID, holderID, model.HoldReleased, now)
	if errors.Is(err, model.ErrConflict) {
		return fmt.Errorf("%w: %v", model.ErrNotFound, err)
	}
	return err
}

// Consume implements LockStore.
func (s *RedisStore) Consume(ctx context.Context, holdID string, now time.Time) (*model.Hold, error) {
	return s.transition(ctx, holdID, "", model.HoldConsumed, now)
}

func (s *RedisStore) transition(ctx context.Context, holdID, holderID string, to model.HoldState, now time.Time) (*model.Hold, error) {
	h, err := s.Get(ctx, holdID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(h.SeatNumbers)+1)
	keys = append(keys, s.holdKey(holdID))
	for _, n := range h.SeatNumbers {
		keys = append(keys, s.seatKey(h.ShowtimeID, n))
	}
	res, err := transitionScript.Run(ctx, s.rdb, keys, now.UnixMilli(), holderID, string(to), holdID).Slice()
	if err != nil {
		return nil, fmt.Errorf("%s script: %w", to, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%s script: empty result", to)
	}
	switch asInt64(res[0]) {
	case 1:
		h.State = to
		return h, nil
	case -1:
		return nil, fmt.Errorf("%w: hold %s", model.ErrNotFound, holdID)
	case -2:
		return nil, fmt.Errorf("%w: hold %s belongs to another holder", model.ErrForbidden, holdID)
	default:
		state := ""
		if len(res) > 1 {
			state = fmt.Sprint(res[1])
		}
		return nil, &model.ConflictError{Reason: fmt.Sprintf("hold %s is %s", holdID, state)}
	}
}

// Sweep implements LockStore.  Key TTLs already reclaim seat keys and
// retired hashes; Sweep records lapsed holds as expired and trims the
// per-showtime index sets.  retention is applied by the hash TTL set at
// acquire time.
func (s *RedisStore) Sweep(ctx context.Context, now time.Time, _ time.Duration) (int, error) {
	touched := 0
	iter := s.rdb.Scan(ctx, 0, s.prefix+":showtime:*:holds", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		showtimeID := strings.TrimSuffix(strings.TrimPrefix(key, s.prefix+":showtime:"), ":holds")
		holds, err := s.loadIndex(ctx, showtimeID)
		if err != nil {
			return touched, err
		}
		for _, h := range holds {
			if h.State != model.HoldActive || h.IsActive(now) {
				continue
			}
			n, err := expireScript.Run(ctx, s.rdb, []string{s.holdKey(h.ID)}, now.UnixMilli()).Int()
			if err != nil {
				return touched, fmt.Errorf("expire hold %s: %w", h.ID, err)
			}
			touched += n
		}
	}
	if err := iter.Err(); err != nil {
		return touched, fmt.Errorf("scan holds: %w", err)
	}
	return touched, nil
}

func decodeHold(f map[string]string) (*model.Hold, error) {
	created, err := strconv.ParseInt(f["created_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode hold %s: created_ms: %w", f["id"], err)
	}
	expires, err := strconv.ParseInt(f["expires_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode hold %s: expires_ms: %w", f["id"], err)
	}
	var seats []string
	if f["seats"] != "" {
		seats = strings.Split(f["seats"], ",")
	}
	return &model.Hold{
		ID:            f["id"],
		ShowtimeID:    f["showtime"],
		SeatNumbers:   seats,
		HolderID:      f["holder"],
		HolderContact: f["contact"],
		CreatedAt:     time.UnixMilli(created).UTC(),
		ExpiresAt:     time.UnixMilli(expires).UTC(),
		State:         model.HoldState(f["state"]),
	}, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
