package lowpass

import (
	"math"

	"github.com/norasector/fmstream/pkg/dsp/filters/fir"
)

type floatHalvingState struct {
	hist  [2][historyLen]float32
	phase bool
}

type floatBoxcarState struct {
	sumI, sumQ float32
	count      int
}

// Float is the floating-point filter bank. It computes the same cascade as
// Integer without truncating between passes.
type Float struct {
	passes  int
	generic int
	halving []floatHalvingState
	boxcar  floatBoxcarState
	comp    *fir.FloatCompensator
	work    []float32
}

func newFloat(passes, generic int, comp bool, maxInput int) (*Float, error) {
	f := &Float{
		passes:  passes,
		generic: generic,
		halving: make([]floatHalvingState, passes),
		work:    make([]float32, maxInput),
	}
	if comp {
		c, err := fir.NewFloatCompensator(passes, 2)
		if err != nil {
			return nil, err
		}
		f.comp = c
	}
	return f, nil
}

func (f *Float) WorkBuffer(in, out []int16) int {
	n := len(in) &^ 1
	if n == 0 {
		return 0
	}
	if n > len(f.work) {
		f.work = make([]float32, n)
	}
	buf := f.work[:n]
	for i, v := range in[:n] {
		buf[i] = float32(v)
	}

	pairs := n / 2
	for p := 0; p < f.passes; p++ {
		pairs = f.halve(buf, pairs, &f.halving[p])
	}
	if f.comp != nil {
		f.comp.Work(buf[:pairs*2])
	}
	if f.generic > 1 {
		pairs = f.decimate(buf, pairs)
	}

	for i, v := range buf[:pairs*2] {
		out[i] = fir.Clamp16(int64(math.Round(float64(v))))
	}
	return pairs * 2
}

func (f *Float) halve(buf []float32, pairs int, st *floatHalvingState) int {
	out := 0
	for k := 0; k < pairs; k++ {
		for ch := 0; ch < 2; ch++ {
			x := buf[2*k+ch]
			h := &st.hist[ch]
			if st.phase {
				acc := h[0] + x + 5*(h[1]+h[4]) + 10*(h[2]+h[3])
				buf[2*out+ch] = acc / 16
			}
			copy(h[:], h[1:])
			h[historyLen-1] = x
		}
		if st.phase {
			out++
		}
		st.phase = !st.phase
	}
	return out
}

func (f *Float) decimate(buf []float32, pairs int) int {
	b := &f.boxcar
	out := 0
	for k := 0; k < pairs; k++ {
		b.sumI += buf[2*k]
		b.sumQ += buf[2*k+1]
		b.count++
		if b.count == f.generic {
			buf[2*out] = b.sumI / float32(f.generic)
			buf[2*out+1] = b.sumQ / float32(f.generic)
			out++
			*b = floatBoxcarState{}
		}
	}
	return out
}

func (f *Float) PredictOutputSize(inputSize int) int {
	return predictOutputSize(inputSize, f.generic<<f.passes)
}

func (f *Float) Reset() {
	for i := range f.halving {
		f.halving[i] = floatHalvingState{}
	}
	f.boxcar = floatBoxcarState{}
	if f.comp != nil {
		f.comp.Reset()
	}
}

func (f *Float) HistoryZero() bool {
	for _, st := range f.halving {
		if st != (floatHalvingState{}) {
			return false
		}
	}
	if f.boxcar != (floatBoxcarState{}) {
		return false
	}
	return f.comp == nil || f.comp.HistoryZero()
}

func (f *Float) Gain() int {
	return 1 << f.passes
}
