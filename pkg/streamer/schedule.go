package streamer

import (
	"fmt"
	"sync"

	"github.com/norasector/fmstream/pkg/streamer/config"
)

// MaxFrequencies bounds the hop schedule.
const MaxFrequencies = 1000

func validateFrequencies(freqs []int) error {
	if len(freqs) == 0 {
		return config.Invalid("frequencies", "must specify at least one frequency")
	}
	if len(freqs) > MaxFrequencies {
		return config.Invalid("frequencies", "at most %d frequencies, got %d", MaxFrequencies, len(freqs))
	}
	for _, f := range freqs {
		if f <= 0 {
			return config.Invalid("frequencies", "frequency must be positive, got %d", f)
		}
	}
	return nil
}

// Schedule is the ordered list of frequencies a tuner cycles through.
type Schedule struct {
	mu       sync.RWMutex
	freqs    []int
	index    int
	edge     bool
	wideband bool
}

func NewSchedule(freqs []int, edge, wideband bool) (*Schedule, error) {
	if err := validateFrequencies(freqs); err != nil {
		return nil, err
	}
	return &Schedule{
		freqs:    append([]int(nil), freqs...),
		edge:     edge,
		wideband: wideband,
	}, nil
}

func (s *Schedule) Current() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.freqs[s.index]
}

func (s *Schedule) Index() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

func (s *Schedule) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.freqs)
}

func (s *Schedule) Frequencies() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.freqs...)
}

// Advance moves to the next frequency, wrapping at the end. With a single
// entry there is nowhere to go and moved is false.
func (s *Schedule) Advance() (freq int, moved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.freqs) < 2 {
		return s.freqs[s.index], false
	}
	s.index = (s.index + 1) % len(s.freqs)
	return s.freqs[s.index], true
}

// Replace installs a new list and restarts at its first entry.
func (s *Schedule) Replace(freqs []int) error {
	if err := validateFrequencies(freqs); err != nil {
		return err
	}
	s.mu.Lock()
	s.freqs = append(s.freqs[:0:0], freqs...)
	s.index = 0
	s.mu.Unlock()
	return nil
}

// Append adds frequencies after the existing ones without moving the cursor.
func (s *Schedule) Append(freqs []int) error {
	if len(freqs) == 0 {
		return config.Invalid("frequencies", "nothing to append")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.freqs)+len(freqs) > MaxFrequencies {
		return config.Invalid("frequencies", "schedule would hold %d frequencies, limit is %d", len(s.freqs)+len(freqs), MaxFrequencies)
	}
	if err := validateFrequencies(freqs); err != nil {
		return err
	}
	s.freqs = append(s.freqs, freqs...)
	return nil
}

func (s *Schedule) Edge() bool {
	return s.edge
}

func (s *Schedule) WideBand() bool {
	return s.wideband
}

func (s *Schedule) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("%d/%d", s.index+1, len(s.freqs))
}
