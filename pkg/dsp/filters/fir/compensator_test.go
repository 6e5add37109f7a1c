package fir

import "testing"

func TestCompensatorTableSymmetric(t *testing.T) {
	for passes := 1; passes <= MaxCompensatedPasses; passes++ {
		taps, err := CompensatorTable(passes)
		if err != nil {
			t.Fatalf("passes %d: %v", passes, err)
		}
		for i := 0; i < CompensatorTaps/2; i++ {
			if taps[i] != taps[CompensatorTaps-1-i] {
				t.Errorf("passes %d: tap %d (%d) != tap %d (%d)", passes, i, taps[i], CompensatorTaps-1-i, taps[CompensatorTaps-1-i])
			}
		}
	}

	if _, err := CompensatorTable(0); err == nil {
		t.Error("expected error for zero passes")
	}
	if _, err := CompensatorTable(MaxCompensatedPasses + 1); err == nil {
		t.Error("expected error for too many passes")
	}
}

func TestCompensatorImpulseResponse(t *testing.T) {
	c, err := NewCompensator(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	taps, _ := CompensatorTable(2)

	in := make([]int16, 12)
	in[0] = 1 << 14
	out := make([]int16, len(in))
	c.WorkBuffer(in, out)

	// The newest sample meets the last tap, so the impulse walks the taps backwards.
	// Taps above 1<<16 push a 1<<14 impulse past int16 and must saturate.
	saturated := false
	for i := 0; i < CompensatorTaps; i++ {
		acc := (int64(taps[CompensatorTaps-1-i]) << 14) >> 15
		want := Clamp16(acc)
		if acc != int64(want) {
			saturated = true
		}
		if out[i] != want {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want)
		}
	}
	if !saturated {
		t.Fatal("impulse never reached the clamp")
	}
}

func TestCompensatorChannelsIndependent(t *testing.T) {
	c, err := NewCompensator(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	in := make([]int16, 40)
	for i := 0; i < len(in); i += 2 {
		in[i] = 1000
	}
	c.WorkBuffer(in, in)
	for i := 1; i < len(in); i += 2 {
		if in[i] != 0 {
			t.Fatalf("quadrature channel leaked: in[%d] = %d", i, in[i])
		}
	}

	c.Reset()
	if !c.HistoryZero() {
		t.Error("Reset() did not clear history")
	}
}

func TestFloatCompensatorMatchesInteger(t *testing.T) {
	ic, _ := NewCompensator(4, 1)
	fc, _ := NewFloatCompensator(4, 1)

	in := make([]int16, 64)
	fin := make([]float32, len(in))
	for i := range in {
		in[i] = int16((i*7919)%2001 - 1000)
		fin[i] = float32(in[i])
	}
	out := make([]int16, len(in))
	ic.WorkBuffer(in, out)
	fc.Work(fin)

	for i := range out {
		diff := float64(out[i]) - float64(fin[i])
		if diff < -1.01 || diff > 1.01 {
			t.Errorf("sample %d: integer %d float %f", i, out[i], fin[i])
		}
	}
}

func TestClamp16(t *testing.T) {
	tests := []struct {
		in   int64
		want int16
	}{
		{0, 0},
		{40000, 32767},
		{-40000, -32768},
		{-32768, -32768},
		{1234, 1234},
	}
	for _, tt := range tests {
		if got := Clamp16(tt.in); got != tt.want {
			t.Errorf("Clamp16(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
