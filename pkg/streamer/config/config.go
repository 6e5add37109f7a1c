package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid matches every ValidationError with errors.Is.
var ErrInvalid = errors.New("invalid configuration")

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type Config struct {
	LogLevel string   `yaml:"log_level"`
	Tuners   []Tuner  `yaml:"tuners"`
	Control  Control  `yaml:"control"`
	InfluxDB InfluxDB `yaml:"influxdb"`
	MQTT     MQTT     `yaml:"mqtt"`
}

type Control struct {
	Listen string `yaml:"listen"`
}

type InfluxDB struct {
	Host         string `yaml:"host"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

type MQTT struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// Tuner configures one complete pipeline.
type Tuner struct {
	Name             string `yaml:"name"`
	Device           string `yaml:"device"`
	DeviceIndex      int    `yaml:"device_index"`
	PlaybackLocation string `yaml:"playback_location"`
	PlaybackRealtime *bool  `yaml:"playback_realtime"`

	// Mode is "fm" or "wbfm"; wbfm applies the broadcast preset.
	Mode        string        `yaml:"mode"`
	Frequencies []string      `yaml:"frequencies,flow"`
	HopInterval time.Duration `yaml:"hop_interval"`
	Edge        bool          `yaml:"edge"`
	WideBand    bool          `yaml:"wideband"`

	SampleRate   int    `yaml:"sample_rate"`
	ResampleRate int    `yaml:"resample_rate"`
	Gain         string `yaml:"gain"`
	PPM          int    `yaml:"ppm"`
	OffsetTuning *bool  `yaml:"offset_tuning"`

	Downsample        int      `yaml:"downsample"`
	DownsamplePasses  bool     `yaml:"downsample_passes"`
	CompFIRSize       int      `yaml:"comp_fir_size"`
	LowPassMode       string   `yaml:"lowpass_mode"`
	PostDownsample    int      `yaml:"post_downsample"`
	Atan              string   `yaml:"atan"`
	Deemphasis        string   `yaml:"deemphasis"`
	DroopCompensation bool     `yaml:"droop_compensation"`
	DCBlock           bool     `yaml:"dc_block"`
	Volume            *float64 `yaml:"volume"`

	Squelch Squelch `yaml:"squelch"`

	BufferLength  int `yaml:"buffer_length"`
	MaxOversample int `yaml:"max_oversample"`

	Outputs []Output `yaml:"outputs"`
}

type Squelch struct {
	Level       int     `yaml:"level"`
	Consecutive int     `yaml:"consecutive"`
	Smoothing   float64 `yaml:"smoothing"`
	Terminate   bool    `yaml:"terminate"`
}

// Output is one Stream Sink. Type is one of file, wav, tcp, udp or websocket.
type Output struct {
	Type   string `yaml:"type"`
	Path   string `yaml:"path"`
	Listen string `yaml:"listen"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
}

var outputTypes = map[string]struct{}{
	"file":      {},
	"wav":       {},
	"tcp":       {},
	"udp":       {},
	"websocket": {},
}

// Validate checks structure; numeric DSP settings are resolved and checked when
// the pipeline options are built.
func (c *Config) Validate() error {
	if len(c.Tuners) == 0 {
		return Invalid("tuners", "must configure at least one tuner")
	}
	names := make(map[string]struct{}, len(c.Tuners))
	for i := range c.Tuners {
		t := &c.Tuners[i]
		if t.Name == "" {
			t.Name = fmt.Sprintf("tuner%d", i)
		}
		if _, ok := names[t.Name]; ok {
			return Invalid("tuners.name", "duplicate tuner name %q", t.Name)
		}
		names[t.Name] = struct{}{}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tuner %s: %w", t.Name, err)
		}
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		c.MQTT.Topic = "fmstream"
	}
	return nil
}

func (t *Tuner) Validate() error {
	if t.PlaybackLocation != "" {
		t.Device = "file"
	}
	switch t.Device {
	case "", "rtlsdr":
		t.Device = "rtlsdr"
	case "hackrf", "file":
	default:
		return Invalid("device", "unknown device %q", t.Device)
	}
	if t.Device == "file" && t.PlaybackLocation == "" {
		return Invalid("playback_location", "file device needs a playback location")
	}
	if len(t.Frequencies) == 0 {
		return Invalid("frequencies", "must specify at least one frequency")
	}
	switch t.Mode {
	case "", "fm", "wbfm":
	default:
		return Invalid("mode", "unknown mode %q", t.Mode)
	}
	if t.HopInterval < 0 {
		return Invalid("hop_interval", "must not be negative")
	}
	for _, o := range t.Outputs {
		if _, ok := outputTypes[o.Type]; !ok {
			return Invalid("outputs.type", "unknown output type %q", o.Type)
		}
		switch o.Type {
		case "file", "wav":
			if o.Path == "" {
				return Invalid("outputs.path", "%s output needs a path", o.Type)
			}
		case "tcp":
			if o.Listen == "" {
				return Invalid("outputs.listen", "tcp output needs a listen address")
			}
		case "udp":
			if o.Host == "" || o.Port <= 0 {
				return Invalid("outputs.host", "udp output needs a host and port")
			}
		}
	}
	return nil
}
