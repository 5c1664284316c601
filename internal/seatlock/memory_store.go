package seatlock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// MemoryStore keeps holds in process.  Each showtime has its own mutex
// guarding its seat index, so holds on different showtimes never contend;
// the store-wide mutex only protects the two lookup maps and is never held
// while a showtime is locked.
type MemoryStore struct {
	mu        sync.Mutex
	showtimes map[string]*showtimeLocks
	index     map[string]string // hold id -> showtime id
}

type showtimeLocks struct {
	mu    sync.Mutex
	seats map[string]string // seat number -> id of the last hold that claimed it
	holds map[string]*model.Hold
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		showtimes: make(map[string]*showtimeLocks),
		index:     make(map[string]string),
	}
}

var _ LockStore = (*MemoryStore)(nil)

func (s *MemoryStore) showtime(id string, create bool) *showtimeLocks {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.showtimes[id]
	if !ok && create {
		sl = &showtimeLocks{seats: make(map[string]string), holds: make(map[string]*model.Hold)}
		s.showtimes[id] = sl
	}
	return sl
}

func (s *MemoryStore) lookup(holdID string) (*showtimeLocks, error) {
	s.mu.Lock()
	showtimeID, ok := s.index[holdID]
	var sl *showtimeLocks
	if ok {
		sl = s.showtimes[showtimeID]
	}
	s.mu.Unlock()
	if sl == nil {
		return nil, fmt.Errorf("%w: hold %s", model.ErrNotFound, holdID)
	}
	return sl, nil
}

// activeHolder returns the hold covering seat if it is active at now.
// Lapsed holds found on the way are retired in place.  sl.mu must be held.
func (sl *showtimeLocks) activeHolder(seat string, now time.Time) *model.Hold {
	hid, ok := sl.seats[seat]
	if !ok {
		return nil
	}
	h := sl.holds[hid]
	if h == nil || !h.IsActive(now) {
		if h != nil && h.State == model.HoldActive {
			sl.retire(h, model.HoldExpired)
		}
		delete(sl.seats, seat)
		return nil
	}
	return h
}

// retire moves h to a terminal state and frees its seats.  sl.mu must be held.
func (sl *showtimeLocks) retire(h *model.Hold, state model.HoldState) {
	h.State = state
	for _, n := range h.SeatNumbers {
		if sl.seats[n] == h.ID {
			delete(sl.seats, n)
		}
	}
}

// Acquire implements LockStore.
func (s *MemoryStore) Acquire(_ context.Context, hold *model.Hold, now time.Time) ([]string, error) {
	sl := s.showtime(hold.ShowtimeID, true)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	var conflicts []string
	for _, n := range hold.SeatNumbers {
		if h := sl.activeHolder(n, now); h != nil {
			conflicts = append(conflicts, n)
		}
	}
	if len(conflicts) > 0 {
		return conflicts, nil
	}

	stored := cloneHold(hold)
	sl.holds[stored.ID] = stored
	for _, n := range stored.SeatNumbers {
		sl.seats[n] = stored.ID
	}
	s.mu.Lock()
	s.index[stored.ID] = stored.ShowtimeID
	s.mu.Unlock()
	return nil, nil
}

// Get implements LockStore.
func (s *MemoryStore) Get(_ context.Context, holdID string) (*model.Hold, error) {
	sl, err := s.lookup(holdID)
	if err != nil {
		return nil, err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	h, ok := sl.holds[holdID]
	if !ok {
		return nil, fmt.Errorf("%w: hold %s", model.ErrNotFound, holdID)
	}
	return cloneHold(h), nil
}

// ActiveHold implements LockStore.
func (s *MemoryStore) ActiveHold(_ context.Context, showtimeID, seatNumber string, now time.Time) (*model.Hold, error) {
	sl := s.showtime(showtimeID, false)
	if sl == nil {
		return nil, nil
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if h := sl.activeHolder(seatNumber, now); h != nil {
		return cloneHold(h), nil
	}
	return nil, nil
}

// ActiveHolds implements LockStore.
func (s *MemoryStore) ActiveHolds(_ context.Context, showtimeID string, now time.Time) ([]model.Hold, error) {
	out := []model.Hold{}
	sl := s.showtime(showtimeID, false)
	if sl == nil {
		return out, nil
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	for _, h := range sl.holds {
		if h.IsActive(now) {
			out = append(out, *cloneHold(h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Release implements LockStore.
func (s *MemoryStore) Release(_ context.Context, holdID, holderID string, now time.Time) error {
	sl, err := s.lookup(holdID)
	if err != nil {
		return err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	h, ok := sl.holds[holdID]
	if !ok {
		return fmt.Errorf("%w: hold %s", model.ErrNotFound, holdID)
	}
	if h.HolderID != holderID {
		return fmt.Errorf("%w: hold %s belongs to another holder", model.ErrForbidden, holdID)
	}
	if !h.IsActive(now) {
		if h.State == model.HoldActive {
			sl.retire(h, model.HoldExpired)
		}
		return fmt.Errorf("%w: hold %s is %s", model.ErrNotFound, holdID, h.State)
	}
	sl.retire(h, model.HoldReleased)
	return nil
}

// Consume implements LockStore.
func (s *MemoryStore) Consume(_ context.Context, holdID string, now time.Time) (*model.Hold, error) {
	sl, err := s.lookup(holdID)
	if err != nil {
		return nil, err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	h, ok := sl.holds[holdID]
	if !ok {
		return nil, fmt.Errorf("%w: hold %s", model.ErrNotFound, holdID)
	}
	if !h.IsActive(now) {
		if h.State == model.HoldActive {
			sl.retire(h, model.HoldExpired)
		}
		return nil, &model.ConflictError{Reason: fmt.Sprintf("hold %s is %s", holdID, h.State)}
	}
	sl.retire(h, model.HoldConsumed)
	return cloneHold(h), nil
}

// Sweep implements LockStore.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time, retention time.Duration) (int, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.showtimes))
	for id := range s.showtimes {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	touched := 0
	for _, id := range ids {
		sl := s.showtime(id, false)
		if sl == nil {
			continue
		}
		var forgotten []string
		sl.mu.Lock()
		for hid, h := range sl.holds {
			if h.State == model.HoldActive && !h.IsActive(now) {
				sl.retire(h, model.HoldExpired)
				touched++
			}
			if h.State != model.HoldActive && !now.Before(h.ExpiresAt.Add(retention)) {
				delete(sl.holds, hid)
				forgotten = append(forgotten, hid)
				touched++
			}
		}
		sl.mu.Unlock()

		if len(forgotten) > 0 {
			s.mu.Lock()
			for _, hid := range forgotten {
				delete(s.index, hid)
			}
			s.mu.Unlock()
		}
	}
	return touched, nil
}

func cloneHold(h *model.Hold) *model.Hold {
	c := *h
	c.SeatNumbers = append([]string(nil), h.SeatNumbers...)
	return &c
}
