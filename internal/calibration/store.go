// Package calibration owns the per-module FOV multipliers the matcher
// reads at query time.
package calibration

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/cjeanneret/ScoutCam/internal/logic/matching"
)

// Multiplier bounds exposed to users. Values outside are clamped on Set.
const (
	MinMultiplier     = 0.95
	MaxMultiplier     = 1.05
	DefaultMultiplier = 1.0
)

// Change describes a mutation of the store.
type Change struct {
	Role       string  `json:"role,omitempty"` // empty for ResetAll
	Multiplier float64 `json:"multiplier"`
	Reset      bool    `json:"reset"`
}

// Store is a concurrency-safe map from module role to multiplier.
type Store struct {
	mu        sync.RWMutex
	values    map[string]float64
	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func(Change)
}

// NewStore returns a store seeded with initial values (may be nil).
// Seed values are clamped like SetMultiplier.
func NewStore(initial map[string]float64) *Store {
	s := &Store{values: make(map[string]float64, len(initial))}
	for role, v := range initial {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		s.values[role] = clampMultiplier(v)
	}
	return s
}

// Multiplier returns the override for role, or 1.0 when none is set.
// It implements matching.Lookup.
func (s *Store) Multiplier(role string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[role]; ok {
		return v
	}
	return DefaultMultiplier
}

// SetMultiplier stores value for role, clamped into [MinMultiplier,
// MaxMultiplier], and returns the stored value. NaN and Inf are rejected.
func (s *Store) SetMultiplier(value float64, role string) (float64, error) {
	if role == "" {
		return 0, fmt.Errorf("calibration: role is required")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("calibration: multiplier for %q must be finite, got %g", role, value)
	}
	v := clampMultiplier(value)

	s.mu.Lock()
	s.values[role] = v
	s.mu.Unlock()

	s.notify(Change{Role: role, Multiplier: v})
	return v, nil
}

// ResetMultiplier removes the override for role, reverting it to 1.0.
func (s *Store) ResetMultiplier(role string) {
	s.mu.Lock()
	_, had := s.values[role]
	delete(s.values, role)
	s.mu.Unlock()

	if had {
		s.notify(Change{Role: role, Multiplier: DefaultMultiplier, Reset: true})
	}
}

// ResetAll removes the overrides for every listed role. A nil slice
// clears the whole store. Listeners are only told when an override was
// actually removed.
func (s *Store) ResetAll(roles []string) {
	s.mu.Lock()
	before := len(s.values)
	if roles == nil {
		clear(s.values)
	} else {
		for _, role := range roles {
			delete(s.values, role)
		}
	}
	removed := before - len(s.values)
	s.mu.Unlock()

	if removed > 0 {
		s.notify(Change{Multiplier: DefaultMultiplier, Reset: true})
	}
}

// Snapshot returns a consistent copy of the current overrides so a single
// match query never mixes two calibration states.
func (s *Store) Snapshot() matching.Multipliers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(matching.Multipliers, len(s.values))
	for role, v := range s.values {
		out[role] = v
	}
	return out
}

// OnChange registers fn to be called after every mutation. Callbacks run
// on the mutating goroutine, outside the store lock. The returned func
// removes fn; calling it more than once is a no-op.
func (s *Store) OnChange(fn func(Change)) (remove func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(l listener) bool { return l.id == id })
	}
}

// Listeners returns the number of registered change callbacks.
func (s *Store) Listeners() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		l.fn(c)
	}
}

func clampMultiplier(v float64) float64 {
	return math.Min(MaxMultiplier, math.Max(MinMultiplier, v))
}
