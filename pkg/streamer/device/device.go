// Package device defines the Sample Source that feeds raw unsigned 8-bit I/Q
// into a pipeline.
package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// AutoGain selects the tuner's automatic gain control.
const AutoGain = -100

type Device interface {
	// Start streams until Stop is called or ctx is done. onBlock is called
	// from the driver's goroutine with interleaved u8 I/Q; the slice is only
	// valid for the duration of the call.
	Start(ctx context.Context, onBlock func([]byte)) error
	SetFrequency(hz int) error
	SetSampleRate(hz int) error
	// SetGain takes tenths of a dB, or AutoGain.
	SetGain(tenthsDB int) error
	Stop() error
	Close() error
	MaxSampleRate() int
}

// ParseGain turns "auto" or a dB value such as "49.6" into tenths of a dB.
func ParseGain(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "auto" {
		return AutoGain, nil
	}
	db, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid gain %q: %w", s, err)
	}
	if db < 0 || db > 100 {
		return 0, fmt.Errorf("gain must be between 0 and 100 dB, got %g", db)
	}
	return int(db*10 + 0.5), nil
}

// NearestGain picks the supported gain closest to want.
func NearestGain(want int, supported []int) int {
	if len(supported) == 0 {
		return want
	}
	best := supported[0]
	for _, g := range supported[1:] {
		if abs(g-want) < abs(best-want) {
			best = g
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
