package memory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// Seed is the on-disk catalog snapshot loaded into a memory store at
// startup.  The catalog itself is managed elsewhere; this only gives a
// single-instance deployment something to sell.
type Seed struct {
	Showtimes []model.Showtime `json:"showtimes"`
	Combos    []model.Combo    `json:"combos"`
}

// ReadSeed parses a JSON seed file.
func ReadSeed(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed file: %w", err)
	}
	return seed, nil
}

// LoadSeedFile reads a JSON seed file and applies it to s.  It returns the
// number of showtimes and combos loaded.
func (s *Store) LoadSeedFile(path string) (int, int, error) {
	seed, err := ReadSeed(path)
	if err != nil {
		return 0, 0, err
	}
	s.Apply(seed)
	return len(seed.Showtimes), len(seed.Combos), nil
}

// Apply loads every showtime and combo in seed.
func (s *Store) Apply(seed Seed) {
	for _, st := range seed.Showtimes {
		s.PutShowtime(st)
	}
	for _, c := range seed.Combos {
		s.PutCombo(c)
	}
}
