package config

import (
	"errors"
	"testing"
	"time"

	"gopkg.in/yaml.v2"
)

const example = `
log_level: debug
control:
  listen: ":2354"
tuners:
  - name: scanner
    device: rtlsdr
    frequencies: [162.4M, "162.425M:162.55M:25k"]
    hop_interval: 2s
    sample_rate: 24000
    squelch:
      level: 40
      terminate: true
    outputs:
      - type: file
        path: "-"
      - type: tcp
        listen: ":1234"
  - playback_location: capture.wav
    mode: wbfm
    frequencies: [94.9M]
`

func TestUnmarshalAndValidate(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(example), &cfg); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	if len(cfg.Tuners) != 2 {
		t.Fatalf("got %d tuners, want 2", len(cfg.Tuners))
	}
	scanner := cfg.Tuners[0]
	if scanner.HopInterval != 2*time.Second {
		t.Errorf("hop interval = %v, want 2s", scanner.HopInterval)
	}
	if len(scanner.Frequencies) != 2 || scanner.Frequencies[0] != "162.4M" {
		t.Errorf("frequencies = %v", scanner.Frequencies)
	}
	if !scanner.Squelch.Terminate || scanner.Squelch.Level != 40 {
		t.Errorf("squelch = %+v", scanner.Squelch)
	}

	second := cfg.Tuners[1]
	if second.Name != "tuner1" {
		t.Errorf("default name = %q, want tuner1", second.Name)
	}
	if second.Device != "file" {
		t.Errorf("playback location should force the file device, got %q", second.Device)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"no tuners", Config{}, "tuners"},
		{"no frequencies", Config{Tuners: []Tuner{{}}}, "frequencies"},
		{"unknown device", Config{Tuners: []Tuner{{Device: "airspy", Frequencies: []string{"1M"}}}}, "device"},
		{"file without path", Config{Tuners: []Tuner{{Device: "file", Frequencies: []string{"1M"}}}}, "playback_location"},
		{"bad mode", Config{Tuners: []Tuner{{Mode: "am", Frequencies: []string{"1M"}}}}, "mode"},
		{"bad output", Config{Tuners: []Tuner{{Frequencies: []string{"1M"}, Outputs: []Output{{Type: "opus"}}}}}, "outputs.type"},
		{"udp without port", Config{Tuners: []Tuner{{Frequencies: []string{"1M"}, Outputs: []Output{{Type: "udp", Host: "localhost"}}}}}, "outputs.host"},
		{"duplicate names", Config{Tuners: []Tuner{
			{Name: "a", Frequencies: []string{"1M"}},
			{Name: "a", Frequencies: []string{"1M"}},
		}}, "tuners.name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("Validate() field = %v, want %s", err, tt.field)
			}
		})
	}
}
