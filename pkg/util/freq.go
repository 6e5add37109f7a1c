package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

func MHzToString(hz int) string {
	return fmt.Sprintf("%0.4f MHz", float64(hz)/1e6)
}

// FrequencyRange returns the lowest and highest of freqs, or zeros when freqs
// is empty.
func FrequencyRange(freqs ...int) (low, high int) {
	if len(freqs) == 0 {
		return 0, 0
	}
	low = math.MaxInt
	high = math.MinInt

	for _, freq := range freqs {
		if freq < low {
			low = freq
		}
		if freq > high {
			high = freq
		}
	}

	return
}

// ParseFrequency parses a frequency with an optional k, M or G suffix, such
// as "94.9M" or "162550k".
func ParseFrequency(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty frequency")
	}

	mult := 1.0
	switch s[len(s)-1] {
	case 'k', 'K':
		mult = 1e3
	case 'm', 'M':
		mult = 1e6
	case 'g', 'G':
		mult = 1e9
	}
	if mult != 1.0 {
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q: %w", s, err)
	}
	return int(math.Round(v * mult)), nil
}

// ExpandFrequencies turns "start:stop:step" into every frequency from start to
// stop inclusive. A plain frequency yields a single entry.
func ExpandFrequencies(s string, limit int) ([]int, error) {
	parts := strings.Split(s, ":")
	if len(parts) == 1 {
		f, err := ParseFrequency(parts[0])
		if err != nil {
			return nil, err
		}
		return []int{f}, nil
	}
	if len(parts) != 3 {
		return nil, fmt.Errorf("frequency range %q must be start:stop:step", s)
	}

	var vals [3]int
	for i, p := range parts {
		v, err := ParseFrequency(p)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	start, stop, step := vals[0], vals[1], vals[2]
	if step <= 0 {
		return nil, fmt.Errorf("frequency range %q needs a positive step", s)
	}
	if stop < start {
		return nil, fmt.Errorf("frequency range %q ends before it starts", s)
	}

	var ret []int
	for f := start; f <= stop; f += step {
		if len(ret) == limit {
			return nil, fmt.Errorf("frequency range %q expands past %d entries", s, limit)
		}
		ret = append(ret, f)
	}
	return ret, nil
}
