package post

import (
	"fmt"

	"github.com/norasector/fmstream/pkg/dsp/filters/fir"
)

// Resampler reduces a mono stream from fast to slow samples per second by
// averaging the input that falls into each output period.
type Resampler struct {
	fast, slow int
	acc        int64
	count      int64
	index      int
}

func NewResampler(fast, slow int) (*Resampler, error) {
	if fast <= 0 || slow <= 0 {
		return nil, fmt.Errorf("resample rates must be positive, got %d -> %d", fast, slow)
	}
	if slow > fast {
		return nil, fmt.Errorf("can only resample downwards, got %d -> %d", fast, slow)
	}
	return &Resampler{fast: fast, slow: slow}, nil
}

func (r *Resampler) WorkBuffer(input, output []int16) int {
	out := 0
	for _, x := range input {
		r.acc += int64(x)
		r.count++
		r.index += r.slow
		if r.index < r.fast {
			continue
		}
		output[out] = fir.Clamp16(r.acc / r.count)
		out++
		r.index -= r.fast
		r.acc, r.count = 0, 0
	}
	return out
}

func (r *Resampler) PredictOutputSize(inputSize int) int {
	return inputSize*r.slow/r.fast + 1
}

func (r *Resampler) Reset() {
	r.acc, r.count, r.index = 0, 0, 0
}

func (r *Resampler) HistoryZero() bool {
	return r.acc == 0 && r.count == 0 && r.index == 0
}
