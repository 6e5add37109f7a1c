package lowpass

import "github.com/norasector/fmstream/pkg/dsp/filters/fir"

type halvingState struct {
	hist  [2][historyLen]int16
	phase bool
}

type boxcarState struct {
	sumI, sumQ int32
	count      int
}

// Integer is the integer-arithmetic filter bank. Passes run in a private
// buffer, so out only needs PredictOutputSize(len(in)) values.
type Integer struct {
	passes  int
	generic int
	halving []halvingState
	boxcar  boxcarState
	comp    *fir.Compensator
	work    []int16
}

func newInteger(passes, generic int, comp bool, maxInput int) (*Integer, error) {
	f := &Integer{
		passes:  passes,
		generic: generic,
		halving: make([]halvingState, passes),
		work:    make([]int16, maxInput),
	}
	if comp {
		c, err := fir.NewCompensator(passes, 2)
		if err != nil {
			return nil, err
		}
		f.comp = c
	}
	return f, nil
}

func (f *Integer) WorkBuffer(in, out []int16) int {
	n := len(in) &^ 1
	if n == 0 {
		return 0
	}
	if n > len(f.work) {
		f.work = make([]int16, n)
	}
	buf := f.work[:n]
	copy(buf, in[:n])

	pairs := n / 2
	for p := 0; p < f.passes; p++ {
		pairs = f.halve(buf, pairs, &f.halving[p])
	}
	if f.comp != nil {
		f.comp.WorkBuffer(buf[:pairs*2], buf[:pairs*2])
	}
	if f.generic > 1 {
		pairs = f.decimate(buf, pairs)
	}
	return copy(out, buf[:pairs*2])
}

// halve runs one binomial pass in place and returns the new pair count.
func (f *Integer) halve(buf []int16, pairs int, st *halvingState) int {
	out := 0
	for k := 0; k < pairs; k++ {
		for ch := 0; ch < 2; ch++ {
			x := buf[2*k+ch]
			h := &st.hist[ch]
			if st.phase {
				acc := int32(h[0]) + int32(x) +
					5*(int32(h[1])+int32(h[4])) +
					10*(int32(h[2])+int32(h[3]))
				buf[2*out+ch] = fir.Clamp16(int64(acc >> 4))
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

// decimate averages every generic pairs in place.
func (f *Integer) decimate(buf []int16, pairs int) int {
	b := &f.boxcar
	out := 0
	for k := 0; k < pairs; k++ {
		b.sumI += int32(buf[2*k])
		b.sumQ += int32(buf[2*k+1])
		b.count++
		if b.count == f.generic {
			buf[2*out] = int16(b.sumI / int32(f.generic))
			buf[2*out+1] = int16(b.sumQ / int32(f.generic))
			out++
			*b = boxcarState{}
		}
	}
	return out
}

func (f *Integer) PredictOutputSize(inputSize int) int {
	return predictOutputSize(inputSize, f.generic<<f.passes)
}

func (f *Integer) Reset() {
	for i := range f.halving {
		f.halving[i] = halvingState{}
	}
	f.boxcar = boxcarState{}
	if f.comp != nil {
		f.comp.Reset()
	}
}

func (f *Integer) HistoryZero() bool {
	for _, st := range f.halving {
		if st != (halvingState{}) {
			return false
		}
	}
	if f.boxcar != (boxcarState{}) {
		return false
	}
	return f.comp == nil || f.comp.HistoryZero()
}

func (f *Integer) Gain() int {
	return 1 << f.passes
}
