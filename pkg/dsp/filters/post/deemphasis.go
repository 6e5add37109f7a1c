package post

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/norasector/fmstream/pkg/dsp/filters/fir"
)

// Standard broadcast de-emphasis time constants, in seconds.
const (
	Deemph50us = 50e-6
	Deemph75us = 75e-6

	maxTau = 0.01
)

// ParseDeemphasis accepts "none", "50us", "75us", a number with a "us"
// suffix, or a plain number of seconds.
func ParseDeemphasis(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none", "off", "0":
		return 0, nil
	case "50us":
		return Deemph50us, nil
	case "75us":
		return Deemph75us, nil
	}

	var tau float64
	var err error
	if strings.HasSuffix(s, "us") {
		tau, err = strconv.ParseFloat(strings.TrimSuffix(s, "us"), 64)
		tau *= 1e-6
	} else {
		tau, err = strconv.ParseFloat(s, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid de-emphasis %q: %w", s, err)
	}
	if err := ValidateTau(tau); err != nil {
		return 0, err
	}
	return tau, nil
}

func ValidateTau(tau float64) error {
	if tau < 0 || tau > maxTau || math.IsNaN(tau) {
		return fmt.Errorf("de-emphasis time constant must be between 0 and %gs, got %g", maxTau, tau)
	}
	return nil
}

// Deemphasis is a single-pole IIR low-pass. A zero tau makes it a pass-through.
type Deemphasis struct {
	alpha float64
	avg   float64
	rate  int
	tau   float64
}

func NewDeemphasis(rate int, tau float64) *Deemphasis {
	d := &Deemphasis{rate: rate}
	d.SetTau(tau)
	return d
}

// SetTau changes the time constant. The running average is kept so the
// change does not click.
func (d *Deemphasis) SetTau(tau float64) {
	d.tau = tau
	d.alpha = 0
	if tau > 0 && d.rate > 0 {
		d.alpha = math.Exp(-1 / (float64(d.rate) * tau))
	}
}

func (d *Deemphasis) Tau() float64 {
	return d.tau
}

func (d *Deemphasis) Alpha() float64 {
	return d.alpha
}

func (d *Deemphasis) Enabled() bool {
	return d.tau > 0 && d.rate > 0
}

func (d *Deemphasis) WorkBuffer(input, output []int16) int {
	if !d.Enabled() {
		return copy(output, input)
	}
	for i, x := range input {
		d.avg = d.alpha*d.avg + (1-d.alpha)*float64(x)
		output[i] = fir.Clamp16(int64(math.Round(d.avg)))
	}
	return len(input)
}

func (d *Deemphasis) PredictOutputSize(inputSize int) int {
	return inputSize
}

func (d *Deemphasis) Reset() {
	d.avg = 0
}

func (d *Deemphasis) HistoryZero() bool {
	return d.avg == 0
}
