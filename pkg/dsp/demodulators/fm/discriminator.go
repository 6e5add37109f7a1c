// Package fm implements the polar FM discriminator.
package fm

import (
	"fmt"
	"math"
	"strings"

	"github.com/racerxdl/segdsp/dsp"
)

// Output scale: an angle of pi maps to 1<<14.
const scale = 1 << 14

type AtanMode int

const (
	AtanExact AtanMode = iota
	AtanFast
	AtanLUT
)

func (m AtanMode) String() string {
	switch m {
	case AtanExact:
		return "exact"
	case AtanFast:
		return "fast"
	case AtanLUT:
		return "lut"
	default:
		return fmt.Sprintf("AtanMode(%d)", int(m))
	}
}

func ParseAtanMode(s string) (AtanMode, error) {
	switch strings.ToLower(s) {
	case "", "exact", "std":
		return AtanExact, nil
	case "fast":
		return AtanFast, nil
	case "lut":
		return AtanLUT, nil
	default:
		return AtanExact, fmt.Errorf("unknown atan mode %q", s)
	}
}

// Discriminator turns interleaved I/Q into one phase-difference sample per
// pair. The last pair of each block is carried into the next.
type Discriminator struct {
	mode       AtanMode
	preR, preJ int16
	samples    []complex64
}

// NewDiscriminator builds a discriminator for blocks of at most maxPairs pairs.
func NewDiscriminator(mode AtanMode, maxPairs int) *Discriminator {
	d := &Discriminator{mode: mode}
	if mode == AtanExact {
		d.samples = make([]complex64, 1, maxPairs+1)
	}
	if mode == AtanLUT {
		initLUT()
	}
	return d
}

func (d *Discriminator) WorkBuffer(input []int16, output []int16) int {
	pairs := len(input) / 2
	if pairs == 0 {
		return 0
	}

	switch d.mode {
	case AtanExact:
		d.exact(input[:pairs*2], output)
	default:
		pr, pj := int(d.preR), int(d.preJ)
		for k := 0; k < pairs; k++ {
			r, j := int(input[2*k]), int(input[2*k+1])
			// current times the conjugate of previous
			cr := r*pr + j*pj
			cj := j*pr - r*pj
			if d.mode == AtanFast {
				output[k] = int16(fastAtan2(float64(cj), float64(cr)) / math.Pi * scale)
			} else {
				output[k] = lutAtan2(cj, cr)
			}
			pr, pj = r, j
		}
	}

	d.preR, d.preJ = input[2*pairs-2], input[2*pairs-1]
	return pairs
}

func (d *Discriminator) exact(input []int16, output []int16) {
	pairs := len(input) / 2
	samples := append(d.samples[:0], complex(float32(d.preR), float32(d.preJ)))
	for k := 0; k < pairs; k++ {
		samples = append(samples, complex(float32(input[2*k]), float32(input[2*k+1])))
	}
	d.samples = samples

	tmp := dsp.MultiplyConjugate(samples[1:], samples, pairs)
	for k := 0; k < pairs; k++ {
		output[k] = int16(math.Atan2(float64(imag(tmp[k])), float64(real(tmp[k]))) / math.Pi * scale)
	}
}

func (d *Discriminator) PredictOutputSize(inputLength int) int {
	return inputLength / 2
}

func (d *Discriminator) Reset() {
	d.preR, d.preJ = 0, 0
}

func (d *Discriminator) HistoryZero() bool {
	return d.preR == 0 && d.preJ == 0
}
