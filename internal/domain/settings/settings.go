// Package settings holds the provider's runtime switches.
// Every accessor is safe for concurrent use.
package settings

import (
	"fmt"
	"math"
	"sync/atomic"
)

// CommitMode selects when writes become visible to general search.
type CommitMode int32

// Commit modes.
const (
	// Immediate makes every write visible to the next query.
	Immediate CommitMode = iota
	// Deferred keeps writes hidden from general search until Commit.
	Deferred
)

func (m CommitMode) String() string {
	switch m {
	case Immediate:
		return "immediate"
	case Deferred:
		return "deferred"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// ParseCommitMode reads "immediate" or "deferred".
func ParseCommitMode(s string) (CommitMode, error) {
	switch s {
	case "", "immediate":
		return Immediate, nil
	case "deferred":
		return Deferred, nil
	default:
		return Immediate, fmt.Errorf("unknown commit mode %q", s)
	}
}

// EarthCircumferenceMeters bounds the nearest-distance setting.
const EarthCircumferenceMeters = 40_075_017.0

// DefaultNearestDistance is two degrees of arc at the equator.
const DefaultNearestDistance = 2 * 111_195.0

// Settings is the explicit, concurrently mutable configuration cell.
type Settings struct {
	commitMode   atomic.Int32
	structural   atomic.Bool
	nearestBits  atomic.Uint64
	onModeChange atomic.Pointer[func(CommitMode)]
}

// New returns settings with immediate commits, the structural index enabled
// and the default nearest distance.
func New() *Settings {
	s := &Settings{}
	s.structural.Store(true)
	s.nearestBits.Store(math.Float64bits(DefaultNearestDistance))
	return s
}

// CommitMode returns the current commit mode.
func (s *Settings) CommitMode() CommitMode { return CommitMode(s.commitMode.Load()) }

// SetCommitMode switches the commit mode. The change hook runs when the mode
// actually changes.
func (s *Settings) SetCommitMode(m CommitMode) {
	prev := CommitMode(s.commitMode.Swap(int32(m)))
	if prev == m {
		return
	}
	if fn := s.onModeChange.Load(); fn != nil {
		(*fn)(m)
	}
}

// OnCommitModeChange registers the hook run after the commit mode changes.
func (s *Settings) OnCommitModeChange(fn func(CommitMode)) {
	if fn == nil {
		s.onModeChange.Store(nil)
		return
	}
	s.onModeChange.Store(&fn)
}

// StructuralIndex reports whether the structural side index is enabled.
func (s *Settings) StructuralIndex() bool { return s.structural.Load() }

// SetStructuralIndex enables or disables the structural side index.
func (s *Settings) SetStructuralIndex(enabled bool) { s.structural.Store(enabled) }

// NearestDistance returns the "nearest" search radius in meters.
func (s *Settings) NearestDistance() float64 {
	return math.Float64frombits(s.nearestBits.Load())
}

// SetNearestDistance sets the "nearest" radius. Values outside
// (0, EarthCircumferenceMeters] are ignored and false is returned.
func (s *Settings) SetNearestDistance(meters float64) bool {
	if math.IsNaN(meters) || meters <= 0 || meters > EarthCircumferenceMeters {
		return false
	}
	s.nearestBits.Store(math.Float64bits(meters))
	return true
}
