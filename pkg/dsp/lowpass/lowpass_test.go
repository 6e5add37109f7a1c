package lowpass

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/mjibson/go-dsp/fft"
)

func tone(pairs int, cyclesPerSample, amplitude float64) []int16 {
	out := make([]int16, pairs*2)
	for k := 0; k < pairs; k++ {
		s, c := math.Sincos(2 * math.Pi * cyclesPerSample * float64(k))
		out[2*k] = int16(math.Round(amplitude * c))
		out[2*k+1] = int16(math.Round(amplitude * s))
	}
	return out
}

func pseudoRandom(n int) []int16 {
	out := make([]int16, n)
	x := uint32(2463534242)
	for i := range out {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		out[i] = int16(x%255) - 127
	}
	return out
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantPasses  int
		wantGeneric int
		wantErr     bool
	}{
		{"boxcar only", Config{Downsample: 5}, 0, 5, false},
		{"power of two", Config{Downsample: 8, Passes: true}, 3, 1, false},
		{"mixed", Config{Downsample: 12, Passes: true}, 2, 3, false},
		{"odd with passes", Config{Downsample: 3, Passes: true}, 0, 3, false},
		{"passthrough", Config{Downsample: 1}, 0, 1, false},
		{"zero", Config{Downsample: 0}, 0, 0, true},
		{"too large", Config{Downsample: 512, Passes: true}, 0, 0, true},
		{"bad comp size", Config{Downsample: 8, Passes: true, CompFIRSize: 5}, 0, 0, true},
		{"comp without passes", Config{Downsample: 3, Passes: true, CompFIRSize: 9}, 0, 0, true},
		{"comp in boxcar mode", Config{Downsample: 8, CompFIRSize: 9}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passes, generic, err := tt.cfg.Plan()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Plan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if passes != tt.wantPasses || generic != tt.wantGeneric {
				t.Errorf("Plan() = (%d, %d), want (%d, %d)", passes, generic, tt.wantPasses, tt.wantGeneric)
			}
		})
	}
}

func TestDecimationOutputLength(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		pairs  int
		want   int
		approx bool
	}{
		{"one pass", Config{Downsample: 2, Passes: true}, 1024, 512, false},
		{"four passes", Config{Downsample: 16, Passes: true}, 4096, 256, false},
		{"eight passes", Config{Downsample: 256, Passes: true}, 8192, 32, false},
		{"four passes with comp", Config{Downsample: 16, Passes: true, CompFIRSize: 9}, 4096, 256, false},
		{"boxcar five", Config{Downsample: 5}, 1000, 200, false},
		{"boxcar seven truncates", Config{Downsample: 7}, 1000, 142, true},
		{"mixed twelve", Config{Downsample: 12, Passes: true}, 1000, 83, true},
		{"passthrough", Config{Downsample: 1}, 100, 100, false},
	}
	for _, mode := range []Mode{ModeInteger, ModeFloat} {
		for _, tt := range tests {
			t.Run(mode.String()+"/"+tt.name, func(t *testing.T) {
				cfg := tt.cfg
				cfg.Mode = mode
				cfg.MaxInput = tt.pairs * 2
				f, err := New(cfg)
				if err != nil {
					t.Fatal(err)
				}
				in := pseudoRandom(tt.pairs * 2)
				out := make([]int16, f.PredictOutputSize(len(in)))
				got := f.WorkBuffer(in, out) / 2
				if tt.approx {
					if got < tt.want-1 || got > tt.want+1 {
						t.Errorf("got %d pairs, want %d±1", got, tt.want)
					}
				} else if got != tt.want {
					t.Errorf("got %d pairs, want %d", got, tt.want)
				}
			})
		}
	}
}

// A full-size capture block must fit an output buffer sized only for the
// decimated result.
func TestLargeBlockFitsPredictedOutput(t *testing.T) {
	const capacity = 16384 * 16
	for _, mode := range []Mode{ModeInteger, ModeFloat} {
		for _, ds := range []int{5, 8, 42} {
			cfg := Config{Downsample: ds, Passes: ds&(ds-1) == 0, Mode: mode, MaxInput: capacity}
			f, err := New(cfg)
			if err != nil {
				t.Fatal(err)
			}
			in := pseudoRandom(capacity)
			out := make([]int16, f.PredictOutputSize(capacity))
			for block := 0; block < 2; block++ {
				n := f.WorkBuffer(in, out)
				if n > len(out) || n < (capacity/2/ds-1)*2 {
					t.Errorf("%s downsample %d: %d values into %d", mode, ds, n, len(out))
				}
			}
		}
	}
}

func TestPassthroughCopies(t *testing.T) {
	f, err := New(Config{Downsample: 1})
	if err != nil {
		t.Fatal(err)
	}
	in := pseudoRandom(64)
	out := make([]int16, 64)
	if n := f.WorkBuffer(in, out); n != 64 {
		t.Fatalf("WorkBuffer() = %d, want 64", n)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("out[%d] = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestZeroLengthInput(t *testing.T) {
	f, err := New(Config{Downsample: 8, Passes: true})
	if err != nil {
		t.Fatal(err)
	}
	if n := f.WorkBuffer(nil, nil); n != 0 {
		t.Errorf("WorkBuffer(nil) = %d, want 0", n)
	}
	if !f.HistoryZero() {
		t.Error("zero-length input touched filter history")
	}
}

func TestSplitBlocksMatchWholeBlock(t *testing.T) {
	cfg := Config{Downsample: 24, Passes: true, CompFIRSize: 9}
	whole, _ := New(cfg)
	split, _ := New(cfg)

	in := pseudoRandom(4800)
	want := make([]int16, whole.PredictOutputSize(len(in)))
	n := whole.WorkBuffer(in, want)
	want = want[:n]

	var got []int16
	buf := make([]int16, split.PredictOutputSize(len(in)))
	// Odd-sized chunks exercise the carried parity and boxcar accumulators.
	for _, chunk := range [][2]int{{0, 1234}, {1234, 2002}, {2002, 4800}} {
		m := split.WorkBuffer(in[chunk[0]:chunk[1]], buf)
		got = append(got, buf[:m]...)
	}

	if len(got) != len(want) {
		t.Fatalf("split produced %d values, whole produced %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("value %d: split %d whole %d", i, got[i], want[i])
		}
	}
}

func TestFloatMatchesInteger(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"three passes", Config{Downsample: 8, Passes: true}},
		{"six passes", Config{Downsample: 64, Passes: true}},
		{"four passes with comp", Config{Downsample: 16, Passes: true, CompFIRSize: 9}},
		{"two passes and boxcar", Config{Downsample: 12, Passes: true}},
		{"boxcar", Config{Downsample: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := pseudoRandom(16384)

			icfg := tt.cfg
			icfg.Mode = ModeInteger
			icfg.MaxInput = len(in)
			fcfg := tt.cfg
			fcfg.Mode = ModeFloat
			fcfg.MaxInput = len(in)

			ifl, err := New(icfg)
			if err != nil {
				t.Fatal(err)
			}
			ffl, err := New(fcfg)
			if err != nil {
				t.Fatal(err)
			}

			passes, _, _ := tt.cfg.Plan()
			tol := (1 << passes) + 1
			if tt.cfg.CompFIRSize > 0 {
				tol *= 5
			}

			iout := make([]int16, ifl.PredictOutputSize(4096))
			fout := make([]int16, ffl.PredictOutputSize(4096))
			for block := 0; block < 4; block++ {
				chunk := in[block*4096 : (block+1)*4096]
				ni := ifl.WorkBuffer(chunk, iout)
				nf := ffl.WorkBuffer(chunk, fout)
				if ni != nf {
					t.Fatalf("block %d: integer produced %d values, float %d", block, ni, nf)
				}
				for i := 0; i < ni; i++ {
					diff := int(iout[i]) - int(fout[i])
					if diff < -tol || diff > tol {
						t.Fatalf("block %d value %d: integer %d float %d, tolerance %d", block, i, iout[i], fout[i], tol)
					}
				}
			}
		})
	}
}

func TestStopbandRejection(t *testing.T) {
	const (
		outPairs   = 1024
		downsample = 8
		inPairs    = outPairs * downsample
		passBin    = 51
		stopBin    = 2458 // 0.3 of the input rate, aliases to bin 410
	)

	in := tone(inPairs, float64(passBin)/inPairs, 60)
	stop := tone(inPairs, float64(stopBin)/inPairs, 60)
	for i := range in {
		in[i] += stop[i]
	}

	f, err := New(Config{Downsample: downsample, Passes: true})
	if err != nil {
		t.Fatal(err)
	}
	out := make([]int16, f.PredictOutputSize(len(in)))
	n := f.WorkBuffer(in, out)
	if n != outPairs*2 {
		t.Fatalf("got %d values, want %d", n, outPairs*2)
	}

	x := make([]complex128, outPairs)
	for k := range x {
		x[k] = complex(float64(out[2*k]), float64(out[2*k+1]))
	}
	spectrum := fft.FFT(x)

	pass := cmplx.Abs(spectrum[passBin])
	alias := cmplx.Abs(spectrum[stopBin%outPairs])

	expected := 60.0 * float64(f.Gain()) * outPairs
	if pass < 0.9*expected || pass > 1.05*expected {
		t.Errorf("passband magnitude %.0f, want about %.0f", pass, expected)
	}
	if alias > 0.02*pass {
		t.Errorf("aliased stopband magnitude %.0f is more than 2%% of passband %.0f", alias, pass)
	}
}

func TestResetClearsHistory(t *testing.T) {
	for _, mode := range []Mode{ModeInteger, ModeFloat} {
		t.Run(mode.String(), func(t *testing.T) {
			f, err := New(Config{Downsample: 48, Passes: true, CompFIRSize: 9, Mode: mode, MaxInput: 1000})
			if err != nil {
				t.Fatal(err)
			}
			in := pseudoRandom(1000)
			out := make([]int16, f.PredictOutputSize(len(in)))
			f.WorkBuffer(in, out)
			if f.HistoryZero() {
				t.Fatal("history unexpectedly zero after filtering noise")
			}
			f.Reset()
			if !f.HistoryZero() {
				t.Error("Reset() left history taps set")
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeInteger, false},
		{"integer", ModeInteger, false},
		{"Float", ModeFloat, false},
		{"double", ModeInteger, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}
