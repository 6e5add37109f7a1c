package util

import (
	"reflect"
	"testing"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"94.9M", 94900000, false},
		{"162550k", 162550000, false},
		{"1.2G", 1200000000, false},
		{"100000000", 100000000, false},
		{" 88.1m ", 88100000, false},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFrequency() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFrequency() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExpandFrequencies(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		limit   int
		want    []int
		wantErr bool
	}{
		{"single", "100M", 10, []int{100000000}, false},
		{"range", "100M:100.05M:25k", 10, []int{100000000, 100025000, 100050000}, false},
		{"too many", "100M:101M:1k", 10, nil, true},
		{"bad step", "100M:101M:0", 10, nil, true},
		{"backwards", "101M:100M:1k", 10, nil, true},
		{"two parts", "100M:101M", 10, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandFrequencies(tt.in, tt.limit)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExpandFrequencies() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandFrequencies() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrequencyRange(t *testing.T) {
	tests := []struct {
		name      string
		freqs     []int
		low, high int
	}{
		{"unordered", []int{300, 100, 200}, 100, 300},
		{"single", []int{162550000}, 162550000, 162550000},
		{"empty", nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			low, high := FrequencyRange(tt.freqs...)
			if low != tt.low || high != tt.high {
				t.Errorf("FrequencyRange() = %d, %d, want %d, %d", low, high, tt.low, tt.high)
			}
		})
	}
}
