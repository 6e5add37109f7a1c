package streamer

import (
	"math/bits"
	"time"

	"github.com/norasector/fmstream/pkg/dsp/demodulators/fm"
	"github.com/norasector/fmstream/pkg/dsp/filters/post"
	"github.com/norasector/fmstream/pkg/dsp/lowpass"
	"github.com/norasector/fmstream/pkg/dsp/squelch"
	"github.com/norasector/fmstream/pkg/streamer/config"
	"github.com/norasector/fmstream/pkg/streamer/device"
	"github.com/norasector/fmstream/pkg/util"
)

const (
	DefaultSampleRate    = 240000
	DefaultBufferLength  = 16384
	DefaultMaxOversample = 16

	// MaxPostDownsample is the largest factor lcmPost covers.
	MaxPostDownsample = 16

	// bufferDump is how many bytes are muted after a retune while the
	// tuner settles.
	bufferDump = 4096

	// wideBandOffset keeps the broadcast carrier off the DC spike.
	wideBandOffset = 16000

	captureRateTarget = 1000000
)

// lcmPost makes the block length a multiple of the post downsample factor so
// every block decimates to whole samples.
var lcmPost = [MaxPostDownsample + 1]int{1, 1, 1, 3, 1, 5, 3, 7, 1, 9, 5, 11, 3, 13, 7, 15, 1}

type SquelchOptions struct {
	Level       int
	Consecutive int
	Smoothing   float64
	Terminate   bool
}

// Options is the validated configuration of one pipeline.
type Options struct {
	Name        string
	Frequencies []int
	HopInterval time.Duration
	Edge        bool
	WideBand    bool

	// SampleRate is the rate after post decimation.
	SampleRate     int
	PostDownsample int
	ResampleRate   int
	// Downsample 0 picks a factor that brings the capture rate near 1 MS/s.
	Downsample        int
	DownsamplePasses  bool
	CompFIRSize       int
	LowPassMode       lowpass.Mode
	OffsetTuning      bool
	Atan              fm.AtanMode
	Deemphasis        float64
	DroopCompensation bool
	DCBlock           bool
	Volume            float64

	Gain int
	PPM  int

	Squelch SquelchOptions

	BufferLength  int
	MaxOversample int
}

// RatePlan is every rate and size derived from Options.
type RatePlan struct {
	// RateIn is the discriminator rate.
	RateIn int
	// RateOut follows post decimation.
	RateOut int
	// OutputRate is the PCM rate after resampling.
	OutputRate  int
	Downsample  int
	CaptureRate int
	// BlockLength is the number of raw bytes per block.
	BlockLength int
	RawCapacity int
}

func (o Options) Plan() (RatePlan, error) {
	p := RatePlan{
		RateIn:     o.SampleRate * o.PostDownsample,
		RateOut:    o.SampleRate,
		OutputRate: o.SampleRate,
		Downsample: o.Downsample,
	}
	if o.ResampleRate > 0 {
		p.OutputRate = o.ResampleRate
	}

	if p.Downsample == 0 {
		p.Downsample = captureRateTarget/p.RateIn + 1
		if o.DownsamplePasses {
			p.Downsample = 1 << bits.Len(uint(p.Downsample))
		}
	}
	if p.Downsample > lowpass.MaxDownsample {
		return p, config.Invalid("downsample", "rate %d needs downsample %d, limit is %d", p.RateIn, p.Downsample, lowpass.MaxDownsample)
	}
	p.CaptureRate = p.Downsample * p.RateIn

	p.BlockLength = lcmPost[o.PostDownsample] * o.BufferLength
	p.RawCapacity = o.BufferLength * o.MaxOversample
	if p.BlockLength > p.RawCapacity {
		return p, config.Invalid("max_oversample", "block of %d bytes exceeds capacity %d", p.BlockLength, p.RawCapacity)
	}
	return p, nil
}

// CaptureFrequency is the frequency the tuner is set to for freq.
func (o Options) CaptureFrequency(freq int, plan RatePlan) int {
	if o.WideBand {
		freq += wideBandOffset
	}
	if o.OffsetTuning {
		freq += plan.CaptureRate / 4
	}
	if o.Edge {
		freq += plan.RateIn / 2
	}
	return freq
}

func (o Options) lowpassConfig(plan RatePlan) lowpass.Config {
	return lowpass.Config{
		Downsample:  plan.Downsample,
		Passes:      o.DownsamplePasses,
		CompFIRSize: o.CompFIRSize,
		Mode:        o.LowPassMode,
		MaxInput:    plan.RawCapacity,
	}
}

// Validate checks every numeric setting, including the filter plan.
func (o Options) Validate() error {
	if err := validateFrequencies(o.Frequencies); err != nil {
		return err
	}
	if o.HopInterval < 0 {
		return config.Invalid("hop_interval", "must not be negative")
	}
	if o.SampleRate <= 0 {
		return config.Invalid("sample_rate", "must be positive, got %d", o.SampleRate)
	}
	if o.PostDownsample < 1 || o.PostDownsample > MaxPostDownsample {
		return config.Invalid("post_downsample", "must be between 1 and %d, got %d", MaxPostDownsample, o.PostDownsample)
	}
	if o.ResampleRate < 0 || o.ResampleRate > o.SampleRate {
		return config.Invalid("resample_rate", "must be between 0 and the sample rate %d, got %d", o.SampleRate, o.ResampleRate)
	}
	if o.Downsample < 0 || o.Downsample > lowpass.MaxDownsample {
		return config.Invalid("downsample", "must be between 0 and %d, got %d", lowpass.MaxDownsample, o.Downsample)
	}
	if err := post.ValidateTau(o.Deemphasis); err != nil {
		return config.Invalid("deemphasis", "%v", err)
	}
	if err := post.ValidateVolume(o.Volume); err != nil {
		return config.Invalid("volume", "%v", err)
	}
	if err := squelch.ValidateThreshold(o.Squelch.Level); err != nil {
		return config.Invalid("squelch.level", "%v", err)
	}
	if o.Squelch.Consecutive < 1 {
		return config.Invalid("squelch.consecutive", "must be at least 1, got %d", o.Squelch.Consecutive)
	}
	if o.Squelch.Smoothing <= 0 || o.Squelch.Smoothing > 1 {
		return config.Invalid("squelch.smoothing", "must be in (0, 1], got %g", o.Squelch.Smoothing)
	}
	if o.BufferLength <= 0 || o.BufferLength%2 != 0 {
		return config.Invalid("buffer_length", "must be a positive even number, got %d", o.BufferLength)
	}
	if o.MaxOversample < 1 {
		return config.Invalid("max_oversample", "must be at least 1, got %d", o.MaxOversample)
	}

	plan, err := o.Plan()
	if err != nil {
		return err
	}
	if _, _, err := o.lowpassConfig(plan).Plan(); err != nil {
		return config.Invalid("downsample", "%v", err)
	}
	return nil
}

// OptionsFromConfig resolves a tuner's configuration, applying the wbfm
// preset and defaults, and validates the result.
func OptionsFromConfig(t config.Tuner) (Options, error) {
	o := Options{
		Name:              t.Name,
		HopInterval:       t.HopInterval,
		Edge:              t.Edge,
		WideBand:          t.WideBand,
		SampleRate:        t.SampleRate,
		PostDownsample:    t.PostDownsample,
		ResampleRate:      t.ResampleRate,
		Downsample:        t.Downsample,
		DownsamplePasses:  t.DownsamplePasses,
		CompFIRSize:       t.CompFIRSize,
		DroopCompensation: t.DroopCompensation,
		DCBlock:           t.DCBlock,
		Volume:            1,
		PPM:               t.PPM,
		Squelch: SquelchOptions{
			Level:       t.Squelch.Level,
			Consecutive: t.Squelch.Consecutive,
			Smoothing:   t.Squelch.Smoothing,
			Terminate:   t.Squelch.Terminate,
		},
		BufferLength:  t.BufferLength,
		MaxOversample: t.MaxOversample,
	}

	atan := t.Atan
	deemph := t.Deemphasis
	if t.Mode == "wbfm" {
		if o.SampleRate == 0 {
			o.SampleRate = 170000
		}
		if o.PostDownsample == 0 {
			o.PostDownsample = 4
		}
		if o.ResampleRate == 0 {
			o.ResampleRate = 32000
		}
		if atan == "" {
			atan = "fast"
		}
		if deemph == "" {
			deemph = "75us"
		}
		o.WideBand = true
	}

	if o.SampleRate == 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.PostDownsample == 0 {
		o.PostDownsample = 1
	}
	if o.BufferLength == 0 {
		o.BufferLength = DefaultBufferLength
	}
	if o.MaxOversample == 0 {
		o.MaxOversample = DefaultMaxOversample
	}
	if o.Squelch.Consecutive == 0 {
		o.Squelch.Consecutive = squelch.DefaultConsecutive
	}
	if o.Squelch.Smoothing == 0 {
		o.Squelch.Smoothing = 1
	}
	if t.Volume != nil {
		o.Volume = *t.Volume
	}
	if t.OffsetTuning != nil {
		o.OffsetTuning = *t.OffsetTuning
	}

	var err error
	if o.Frequencies, err = ParseFrequencies(t.Frequencies); err != nil {
		return o, err
	}
	if o.Atan, err = fm.ParseAtanMode(atan); err != nil {
		return o, config.Invalid("atan", "%v", err)
	}
	if o.LowPassMode, err = lowpass.ParseMode(t.LowPassMode); err != nil {
		return o, config.Invalid("lowpass_mode", "%v", err)
	}
	if o.Deemphasis, err = post.ParseDeemphasis(deemph); err != nil {
		return o, config.Invalid("deemphasis", "%v", err)
	}
	if o.Gain, err = device.ParseGain(t.Gain); err != nil {
		return o, config.Invalid("gain", "%v", err)
	}

	return o, o.Validate()
}

// ParseFrequencies expands frequencies and start:stop:step ranges, keeping
// the total within MaxFrequencies.
func ParseFrequencies(specs []string) ([]int, error) {
	var ret []int
	for _, s := range specs {
		freqs, err := util.ExpandFrequencies(s, MaxFrequencies)
		if err != nil {
			return nil, config.Invalid("frequencies", "%v", err)
		}
		ret = append(ret, freqs...)
	}
	if err := validateFrequencies(ret); err != nil {
		return nil, err
	}
	return ret, nil
}
