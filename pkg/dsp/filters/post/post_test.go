package post

import (
	"math"
	"testing"
)

func TestVolumeSaturates(t *testing.T) {
	tests := []struct {
		name string
		gain float64
		in   []int16
		want []int16
	}{
		{"unity", 1, []int16{32767, -32768, 5}, []int16{32767, -32768, 5}},
		{"double full scale", 2, []int16{32767, -32768, 100}, []int16{32767, -32768, 200}},
		{"large gain", 60, []int16{1000, -1000, 0}, []int16{32767, -32768, 0}},
		{"attenuate", 0.5, []int16{1000, -1000, 3}, []int16{500, -500, 2}},
		{"mute", 0, []int16{1000, -32768}, []int16{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVolume(tt.gain)
			out := make([]int16, len(tt.in))
			v.WorkBuffer(tt.in, out)
			for i := range out {
				if out[i] != tt.want[i] {
					t.Errorf("sample %d = %d, want %d", i, out[i], tt.want[i])
				}
			}
		})
	}
}

func TestValidateVolume(t *testing.T) {
	for _, g := range []float64{0, 1, MaxVolume} {
		if err := ValidateVolume(g); err != nil {
			t.Errorf("ValidateVolume(%g) = %v", g, err)
		}
	}
	for _, g := range []float64{-1, MaxVolume + 1, math.NaN()} {
		if err := ValidateVolume(g); err == nil {
			t.Errorf("ValidateVolume(%g) expected error", g)
		}
	}
}

func TestDeemphasisAlpha(t *testing.T) {
	d := NewDeemphasis(48000, Deemph75us)
	want := math.Exp(-1 / (48000 * Deemph75us))
	if math.Abs(d.Alpha()-want) > 1e-12 {
		t.Errorf("Alpha() = %f, want %f", d.Alpha(), want)
	}

	// A new rate gives a new coefficient.
	d2 := NewDeemphasis(24000, Deemph75us)
	if d2.Alpha() >= d.Alpha() {
		t.Errorf("alpha at 24k (%f) should be below alpha at 48k (%f)", d2.Alpha(), d.Alpha())
	}
}

func TestDeemphasisSetTau(t *testing.T) {
	d := NewDeemphasis(48000, 0)
	if d.Enabled() {
		t.Fatal("zero tau should be disabled")
	}
	d.SetTau(Deemph50us)
	if !d.Enabled() || d.Tau() != Deemph50us {
		t.Fatalf("SetTau did not enable, tau = %g", d.Tau())
	}
	if want := NewDeemphasis(48000, Deemph50us).Alpha(); d.Alpha() != want {
		t.Errorf("Alpha() = %f after SetTau, want %f", d.Alpha(), want)
	}
	d.SetTau(0)
	if d.Enabled() {
		t.Error("SetTau(0) should disable")
	}
}

func TestDeemphasisStepResponse(t *testing.T) {
	d := NewDeemphasis(48000, Deemph50us)
	in := make([]int16, 200)
	for i := range in {
		in[i] = 10000
	}
	out := make([]int16, len(in))
	d.WorkBuffer(in, out)

	a := d.Alpha()
	if want := int16(math.Round((1 - a) * 10000)); out[0] != want {
		t.Errorf("first sample = %d, want %d", out[0], want)
	}
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("step response not monotonic at %d: %d < %d", i, out[i], out[i-1])
		}
	}
	if out[len(out)-1] < 9990 {
		t.Errorf("step response settled at %d, want about 10000", out[len(out)-1])
	}

	d.Reset()
	if !d.HistoryZero() {
		t.Error("Reset() did not clear accumulator")
	}
}

func TestDeemphasisDisabledPassesThrough(t *testing.T) {
	d := NewDeemphasis(48000, 0)
	in := []int16{1, -2, 3000}
	out := make([]int16, 3)
	d.WorkBuffer(in, out)
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestParseDeemphasis(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"none", 0, false},
		{"", 0, false},
		{"50us", Deemph50us, false},
		{"75US", Deemph75us, false},
		{"100us", 100e-6, false},
		{"0.0002", 0.0002, false},
		{"-1", 0, true},
		{"1", 0, true},
		{"fast", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDeemphasis(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDeemphasis() error = %v, wantErr %v", err, tt.wantErr)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("ParseDeemphasis() = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestDecimatorCarriesAcrossBlocks(t *testing.T) {
	d, err := NewDecimator(4)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]int16, 8)
	n := d.WorkBuffer([]int16{4, 4, 4, 4, 8, 8}, out)
	if n != 1 || out[0] != 4 {
		t.Fatalf("first block: n=%d out=%v", n, out[:n])
	}
	n = d.WorkBuffer([]int16{8, 8, 1, 1, 1, 1}, out)
	if n != 2 || out[0] != 8 || out[1] != 1 {
		t.Fatalf("second block: n=%d out=%v", n, out[:n])
	}
	if !d.HistoryZero() {
		t.Error("expected empty accumulator on a factor boundary")
	}

	if _, err := NewDecimator(0); err == nil {
		t.Error("NewDecimator(0) expected error")
	}
}

func TestResamplerRate(t *testing.T) {
	r, err := NewResampler(170000, 32000)
	if err != nil {
		t.Fatal(err)
	}
	in := make([]int16, 170000)
	for i := range in {
		in[i] = 300
	}
	out := make([]int16, r.PredictOutputSize(len(in)))
	n := r.WorkBuffer(in, out)
	if n < 31999 || n > 32001 {
		t.Errorf("resampled %d samples to %d, want about 32000", len(in), n)
	}
	for i := 0; i < n; i++ {
		if out[i] != 300 {
			t.Fatalf("out[%d] = %d, want 300", i, out[i])
		}
	}

	if _, err := NewResampler(16000, 32000); err == nil {
		t.Error("upsampling expected error")
	}
}

func TestDCBlockRemovesOffset(t *testing.T) {
	d := NewDCBlock()
	in := make([]int16, 1000)
	out := make([]int16, len(in))
	for i := range in {
		in[i] = 500
		if i%2 == 0 {
			in[i] += 100
		} else {
			in[i] -= 100
		}
	}
	for block := 0; block < 100; block++ {
		d.WorkBuffer(in, out)
	}
	var sum int
	for _, v := range out {
		sum += int(v)
	}
	if mean := sum / len(out); mean < -10 || mean > 10 {
		t.Errorf("residual mean %d, want near 0", mean)
	}
}
