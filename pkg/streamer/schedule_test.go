package streamer

import (
	"errors"
	"testing"

	"github.com/norasector/fmstream/pkg/streamer/config"
)

func TestScheduleCycles(t *testing.T) {
	s, err := NewSchedule([]int{100, 200, 300}, false, false)
	if err != nil {
		t.Fatal(err)
	}
	got := []int{s.Current()}
	for i := 0; i < 6; i++ {
		f, moved := s.Advance()
		if !moved {
			t.Fatal("Advance() did not move")
		}
		got = append(got, f)
	}
	want := []int{100, 200, 300, 100, 200, 300, 100}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sequence = %v, want %v", got, want)
		}
	}
}

func TestScheduleSingleEntryIsNoOp(t *testing.T) {
	s, err := NewSchedule([]int{100}, false, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if f, moved := s.Advance(); moved || f != 100 {
			t.Fatalf("Advance() = (%d, %v), want (100, false)", f, moved)
		}
	}
}

func TestScheduleReplaceAndAppend(t *testing.T) {
	s, _ := NewSchedule([]int{1, 2}, false, false)
	s.Advance()
	if err := s.Replace([]int{7, 8, 9}); err != nil {
		t.Fatal(err)
	}
	if s.Index() != 0 || s.Current() != 7 {
		t.Errorf("after Replace index %d current %d, want 0 and 7", s.Index(), s.Current())
	}

	s.Advance()
	if err := s.Append([]int{10}); err != nil {
		t.Fatal(err)
	}
	if s.Current() != 8 || s.Len() != 4 {
		t.Errorf("after Append current %d len %d, want 8 and 4", s.Current(), s.Len())
	}

	// Returned slices are copies.
	fs := s.Frequencies()
	fs[0] = 0
	if s.Frequencies()[0] != 7 {
		t.Error("Frequencies() exposed internal state")
	}
}

func TestScheduleLimits(t *testing.T) {
	tooMany := make([]int, MaxFrequencies+1)
	for i := range tooMany {
		tooMany[i] = 100 + i
	}
	tests := []struct {
		name  string
		freqs []int
	}{
		{"empty", nil},
		{"too many", tooMany},
		{"negative", []int{100, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchedule(tt.freqs, false, false)
			if !errors.Is(err, config.ErrInvalid) {
				t.Errorf("NewSchedule() error = %v, want validation error", err)
			}
		})
	}

	s, _ := NewSchedule(tooMany[:MaxFrequencies], false, false)
	if err := s.Append([]int{5}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("Append() past limit error = %v", err)
	}
	if s.Len() != MaxFrequencies {
		t.Errorf("failed Append changed length to %d", s.Len())
	}
}
