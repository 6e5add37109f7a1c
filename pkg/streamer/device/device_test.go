package device

import "testing"

func TestParseGain(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"auto", AutoGain, false},
		{"", AutoGain, false},
		{"49.6", 496, false},
		{"0", 0, false},
		{"-3", 0, true},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseGain(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseGain(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestNearestGain(t *testing.T) {
	supported := []int{0, 9, 14, 27, 37, 77, 87, 125, 144, 157, 166, 197, 207, 229, 254, 280, 297, 328, 338, 364, 372, 386, 402, 421, 434, 439, 445, 480, 496}
	tests := []struct {
		want int
		got  int
	}{
		{500, 496},
		{200, 197},
		{0, 0},
		{430, 434},
	}
	for _, tt := range tests {
		if got := NearestGain(tt.want, supported); got != tt.got {
			t.Errorf("NearestGain(%d) = %d, want %d", tt.want, got, tt.got)
		}
	}
	if got := NearestGain(123, nil); got != 123 {
		t.Errorf("NearestGain with no table = %d, want 123", got)
	}
}
