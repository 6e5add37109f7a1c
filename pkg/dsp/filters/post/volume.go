package post

import (
	"fmt"
	"math"

	"github.com/norasector/fmstream/pkg/dsp/filters/fir"
)

const MaxVolume = 64.0

func ValidateVolume(gain float64) error {
	if gain < 0 || gain > MaxVolume || math.IsNaN(gain) {
		return fmt.Errorf("volume must be between 0 and %g, got %g", MaxVolume, gain)
	}
	return nil
}

// Volume scales samples by a linear gain and saturates to int16.
type Volume struct {
	gain float64
}

func NewVolume(gain float64) *Volume {
	return &Volume{gain: gain}
}

func (v *Volume) Gain() float64 {
	return v.gain
}

func (v *Volume) SetGain(gain float64) {
	v.gain = gain
}

func (v *Volume) WorkBuffer(input, output []int16) int {
	if v.gain == 1 {
		return copy(output, input)
	}
	for i, x := range input {
		output[i] = fir.Clamp16(int64(math.Round(float64(x) * v.gain)))
	}
	return len(input)
}

func (v *Volume) PredictOutputSize(inputSize int) int {
	return inputSize
}
