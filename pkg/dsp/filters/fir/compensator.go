package fir

import "fmt"

// CompensatorTaps is the only supported compensator length.
const CompensatorTaps = 9

// cicTables holds the centre half of symmetric 9-tap droop compensation
// filters in Q15, indexed by the number of boxcar passes being corrected.
var cicTables = [...][5]int32{
	{},
	{-156, -97, 2798, -15489, 61019},
	{-128, -568, 5593, -24125, 74126},
	{-129, -639, 6187, -26281, 77511},
	{-122, -612, 6082, -26353, 77818},
	{-120, -602, 6015, -26269, 77757},
	{-120, -582, 5951, -26128, 77542},
	{-119, -580, 5931, -26101, 77478},
	{-119, -578, 5921, -26084, 77440},
	{-119, -577, 5917, -26076, 77423},
	{-199, -362, 5303, -25505, 77489},
}

// MaxCompensatedPasses is the largest pass count with a compensation table.
const MaxCompensatedPasses = len(cicTables) - 1

// CompensatorTable returns the full symmetric tap set for the given number of
// boxcar passes.
func CompensatorTable(passes int) ([CompensatorTaps]int32, error) {
	var taps [CompensatorTaps]int32
	if passes < 1 || passes > MaxCompensatedPasses {
		return taps, fmt.Errorf("no compensation table for %d passes", passes)
	}
	half := cicTables[passes]
	for i := 0; i < 5; i++ {
		taps[i] = half[i]
		taps[CompensatorTaps-1-i] = half[i]
	}
	return taps, nil
}

// Compensator is a fixed 9-tap integer FIR that flattens the passband droop of
// cascaded boxcar decimators. Channels are interleaved with a stride of
// channels (2 for I/Q, 1 for mono) and filtered independently.
type Compensator struct {
	taps     [CompensatorTaps]int32
	channels int
	history  [][CompensatorTaps - 1]int16
}

func NewCompensator(passes, channels int) (*Compensator, error) {
	taps, err := CompensatorTable(passes)
	if err != nil {
		return nil, err
	}
	if channels < 1 {
		return nil, fmt.Errorf("channels must be at least 1, got %d", channels)
	}
	return &Compensator{
		taps:     taps,
		channels: channels,
		history:  make([][CompensatorTaps - 1]int16, channels),
	}, nil
}

// WorkBuffer filters input into output. The buffers may alias.
func (c *Compensator) WorkBuffer(input, output []int16) int {
	n := len(input) - len(input)%c.channels
	for ch := 0; ch < c.channels; ch++ {
		h := &c.history[ch]
		for i := ch; i < n; i += c.channels {
			x := input[i]
			acc := int64(c.taps[CompensatorTaps-1]) * int64(x)
			for j := 0; j < CompensatorTaps-1; j++ {
				acc += int64(c.taps[j]) * int64(h[j])
			}
			copy(h[:], h[1:])
			h[CompensatorTaps-2] = x
			output[i] = Clamp16(acc >> 15)
		}
	}
	return n
}

func (c *Compensator) PredictOutputSize(inputSize int) int {
	return inputSize
}

func (c *Compensator) Reset() {
	for i := range c.history {
		c.history[i] = [CompensatorTaps - 1]int16{}
	}
}

func (c *Compensator) HistoryZero() bool {
	for _, h := range c.history {
		if h != [CompensatorTaps - 1]int16{} {
			return false
		}
	}
	return true
}

// FloatCompensator applies the same taps as Compensator without intermediate
// rounding.
type FloatCompensator struct {
	taps     [CompensatorTaps]float32
	channels int
	history  [][CompensatorTaps - 1]float32
}

func NewFloatCompensator(passes, channels int) (*FloatCompensator, error) {
	taps, err := CompensatorTable(passes)
	if err != nil {
		return nil, err
	}
	if channels < 1 {
		return nil, fmt.Errorf("channels must be at least 1, got %d", channels)
	}
	f := &FloatCompensator{
		channels: channels,
		history:  make([][CompensatorTaps - 1]float32, channels),
	}
	for i, t := range taps {
		f.taps[i] = float32(t) / (1 << 15)
	}
	return f, nil
}

// Work filters buf in place.
func (f *FloatCompensator) Work(buf []float32) {
	n := len(buf) - len(buf)%f.channels
	for ch := 0; ch < f.channels; ch++ {
		h := &f.history[ch]
		for i := ch; i < n; i += f.channels {
			x := buf[i]
			acc := f.taps[CompensatorTaps-1] * x
			for j := 0; j < CompensatorTaps-1; j++ {
				acc += f.taps[j] * h[j]
			}
			copy(h[:], h[1:])
			h[CompensatorTaps-2] = x
			buf[i] = acc
		}
	}
}

func (f *FloatCompensator) Reset() {
	for i := range f.history {
		f.history[i] = [CompensatorTaps - 1]float32{}
	}
}

func (f *FloatCompensator) HistoryZero() bool {
	for _, h := range f.history {
		if h != [CompensatorTaps - 1]float32{} {
			return false
		}
	}
	return true
}

// Clamp16 saturates v to the signed 16-bit range.
func Clamp16(v int64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
