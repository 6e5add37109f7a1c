package squelch

import (
	"fmt"
	"math"
)

// RMS is the root mean square of samples after removing their mean.
func RMS(samples []int16) int {
	if len(samples) == 0 {
		return 0
	}
	return int(math.Sqrt(power(samples)))
}

func power(samples []int16) float64 {
	var t, p float64
	for _, s := range samples {
		v := float64(s)
		t += v
		p += v * v
	}
	n := float64(len(samples))
	mean := t / n
	v := p/n - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

// Meter tracks signal power across blocks. With alpha 1 every block is
// measured on its own; smaller alphas smooth the estimate.
type Meter struct {
	alpha   float64
	beta    float64
	average float64
}

func NewMeter(alpha float64) (*Meter, error) {
	if alpha <= 0 || alpha > 1 || math.IsNaN(alpha) {
		return nil, fmt.Errorf("squelch smoothing must be in (0, 1], got %g", alpha)
	}
	return &Meter{alpha: alpha, beta: 1 - alpha}, nil
}

// Measure updates the estimate with one block of interleaved I/Q and returns
// the level divided by the filter gain, so that thresholds are independent of
// the decimation setup.
func (m *Meter) Measure(iq []int16, gain int) int {
	if len(iq) == 0 {
		return m.level(gain)
	}
	m.average = m.beta*m.average + m.alpha*power(iq)
	return m.level(gain)
}

func (m *Meter) level(gain int) int {
	if gain < 1 {
		gain = 1
	}
	return int(math.Sqrt(m.average)) / gain
}

func (m *Meter) Reset() {
	m.average = 0
}

func (m *Meter) HistoryZero() bool {
	return m.average == 0
}
