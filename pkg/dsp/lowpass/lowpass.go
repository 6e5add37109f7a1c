// Package lowpass implements the decimating low-pass filter bank that brings
// the tuner's capture rate down to the discriminator rate.
//
// A bank is a cascade of binomial halving passes (1-5-10-10-5-1, each halving
// the sample count), an optional 9-tap droop compensator, and a final boxcar
// pass for whatever odd factor is left. Two implementations share this
// layout: Integer, which accumulates and shifts in integer arithmetic, and
// Float, which carries float32 through the cascade and rounds once at the end.
package lowpass

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/norasector/fmstream/pkg/dsp/filters/fir"
)

const (
	// MaxDownsample is the largest supported decimation factor.
	MaxDownsample = 256

	historyLen = 5
)

type Mode int

const (
	ModeInteger Mode = iota
	ModeFloat
)

func (m Mode) String() string {
	switch m {
	case ModeInteger:
		return "integer"
	case ModeFloat:
		return "float"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "integer", "int":
		return ModeInteger, nil
	case "float":
		return ModeFloat, nil
	default:
		return ModeInteger, fmt.Errorf("unknown low-pass mode %q", s)
	}
}

type Config struct {
	// Downsample is the overall decimation factor, 1..MaxDownsample.
	Downsample int
	// Passes selects halving passes for the power-of-two part of Downsample.
	// Without it the whole factor is one boxcar pass.
	Passes bool
	// CompFIRSize is 0 (off) or 9.
	CompFIRSize int
	Mode        Mode
	// MaxInput is the largest input length in int16 values, used to size the
	// float path's working buffer.
	MaxInput int
}

// Plan splits the configured factor into halving passes and a trailing
// generic factor.
func (c Config) Plan() (passes, generic int, err error) {
	if c.Downsample < 1 || c.Downsample > MaxDownsample {
		return 0, 0, fmt.Errorf("downsample must be between 1 and %d, got %d", MaxDownsample, c.Downsample)
	}
	if c.CompFIRSize != 0 && c.CompFIRSize != fir.CompensatorTaps {
		return 0, 0, fmt.Errorf("comp fir size must be 0 or %d, got %d", fir.CompensatorTaps, c.CompFIRSize)
	}
	if c.Passes {
		passes = bits.TrailingZeros(uint(c.Downsample))
	}
	generic = c.Downsample >> passes
	if c.CompFIRSize > 0 && passes == 0 {
		return 0, 0, fmt.Errorf("comp fir needs at least one halving pass, downsample %d has none", c.Downsample)
	}
	return passes, generic, nil
}

// Filter is a stateful decimating low-pass over interleaved I/Q samples.
type Filter interface {
	// WorkBuffer filters in into out and returns the number of int16 values
	// written. out needs PredictOutputSize(len(in)) values and may alias in.
	WorkBuffer(in, out []int16) int
	PredictOutputSize(int) int
	Reset()
	HistoryZero() bool
	// Gain is the DC gain of the bank.
	Gain() int
}

func New(cfg Config) (Filter, error) {
	passes, generic, err := cfg.Plan()
	if err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case ModeInteger:
		return newInteger(passes, generic, cfg.CompFIRSize > 0, cfg.MaxInput)
	case ModeFloat:
		return newFloat(passes, generic, cfg.CompFIRSize > 0, cfg.MaxInput)
	default:
		return nil, fmt.Errorf("unknown low-pass mode %d", cfg.Mode)
	}
}

func predictOutputSize(inputSize, downsample int) int {
	return (inputSize/2/downsample + 1) * 2
}
