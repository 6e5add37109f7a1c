// Package post holds the mono filters that run after the discriminator.
package post

import (
	"fmt"

	"github.com/norasector/fmstream/pkg/dsp/filters/fir"
)

// Decimator is a boxcar decimator for a mono stream. Partial sums carry over
// block boundaries.
type Decimator struct {
	factor int
	sum    int32
	count  int
}

func NewDecimator(factor int) (*Decimator, error) {
	if factor < 1 {
		return nil, fmt.Errorf("post downsample must be at least 1, got %d", factor)
	}
	return &Decimator{factor: factor}, nil
}

func (d *Decimator) WorkBuffer(input, output []int16) int {
	if d.factor == 1 {
		return copy(output, input)
	}
	out := 0
	for _, x := range input {
		d.sum += int32(x)
		d.count++
		if d.count == d.factor {
			output[out] = fir.Clamp16(int64(d.sum / int32(d.factor)))
			out++
			d.sum, d.count = 0, 0
		}
	}
	return out
}

func (d *Decimator) PredictOutputSize(inputSize int) int {
	return inputSize/d.factor + 1
}

func (d *Decimator) Reset() {
	d.sum, d.count = 0, 0
}

func (d *Decimator) HistoryZero() bool {
	return d.sum == 0 && d.count == 0
}
