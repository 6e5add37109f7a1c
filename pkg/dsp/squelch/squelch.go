// Package squelch measures signal level and gates audio with hysteresis.
package squelch

import "fmt"

const (
	// MaxThreshold bounds the configurable level, which is in raw sample units.
	MaxThreshold = 1 << 15

	DefaultConsecutive = 10
)

func ValidateThreshold(threshold int) error {
	if threshold < 0 || threshold > MaxThreshold {
		return fmt.Errorf("squelch level must be between 0 and %d, got %d", MaxThreshold, threshold)
	}
	return nil
}

// State is the squelch gate. It opens as soon as the level reaches the
// threshold and only closes after conseq consecutive evaluations below it.
// A zero threshold disables the gate.
type State struct {
	threshold int
	conseq    int
	hits      int
	open      bool
	level     int
}

func NewState(threshold, conseq int) *State {
	if conseq < 1 {
		conseq = 1
	}
	return &State{threshold: threshold, conseq: conseq}
}

// Evaluate records level and returns whether the gate is open.
func (s *State) Evaluate(level int) bool {
	s.level = level
	if !s.Enabled() {
		return true
	}
	if level >= s.threshold {
		s.hits = 0
		s.open = true
		return true
	}
	if s.hits < s.conseq {
		s.hits++
	}
	if s.hits >= s.conseq {
		s.open = false
	}
	return s.open
}

func (s *State) Enabled() bool {
	return s.threshold > 0
}

func (s *State) Open() bool {
	return !s.Enabled() || s.open
}

func (s *State) Threshold() int {
	return s.threshold
}

// SetThreshold changes the threshold and restarts the gate closed.
func (s *State) SetThreshold(threshold int) {
	s.threshold = threshold
	s.Reset()
}

func (s *State) Level() int {
	return s.level
}

func (s *State) Hits() int {
	return s.hits
}

func (s *State) Reset() {
	s.hits = 0
	s.open = false
	s.level = 0
}

func (s *State) HistoryZero() bool {
	return s.hits == 0 && !s.open && s.level == 0
}
