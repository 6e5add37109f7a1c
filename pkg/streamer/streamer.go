// Package streamer runs one complete FM pipeline: acquisition, demodulation,
// output and frequency hopping, joined by single-slot handoffs.
package streamer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/norasector/fmstream/pkg/block"
	"github.com/norasector/fmstream/pkg/dsp/filters/post"
	"github.com/norasector/fmstream/pkg/dsp/squelch"
	"github.com/norasector/fmstream/pkg/events"
	"github.com/norasector/fmstream/pkg/metrics"
	"github.com/norasector/fmstream/pkg/streamer/config"
	"github.com/norasector/fmstream/pkg/streamer/device"
	"github.com/norasector/fmstream/pkg/streamer/output"
	"github.com/norasector/fmstream/pkg/util"
)

// Three buffers circulate per handoff: one with the producer, one in the
// slot and one with the consumer.
const buffersPerHandoff = 3

type settings struct {
	squelch    int
	volume     float64
	deemphasis float64
}

type Streamer struct {
	device   device.Device
	opts     Options
	plan     RatePlan
	writeAPI api.WriteAPI
	logger   zerolog.Logger
	metrics  *metrics.Pipeline
	events   events.Publisher
	sinks    []output.Sink

	arena      *block.Arena
	rawSlot    *Slot[*block.Raw]
	pcmSlot    *Slot[*block.PCM]
	schedule   *Schedule
	acq        *acquirer
	demod      *Demodulator
	controller *Controller
	out        *outputStage

	mu       sync.RWMutex
	settings settings

	stopCh   chan struct{}
	stopOnce sync.Once
}

type StreamerOption func(s *Streamer) error

func WithInfluxDB(writeAPI api.WriteAPI) StreamerOption {
	return func(s *Streamer) error {
		s.writeAPI = writeAPI
		return nil
	}
}

func WithLogger(logger zerolog.Logger) StreamerOption {
	return func(s *Streamer) error {
		s.logger = logger
		return nil
	}
}

func WithMetrics(m *metrics.Pipeline) StreamerOption {
	return func(s *Streamer) error {
		s.metrics = m
		return nil
	}
}

func WithEventPublisher(p events.Publisher) StreamerOption {
	return func(s *Streamer) error {
		s.events = p
		return nil
	}
}

func WithSinks(sinks ...output.Sink) StreamerOption {
	return func(s *Streamer) error {
		s.sinks = append(s.sinks, sinks...)
		return nil
	}
}

func NewStreamer(dev device.Device, options Options, opts ...StreamerOption) (*Streamer, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	plan, err := options.Plan()
	if err != nil {
		return nil, err
	}

	s := &Streamer{
		device:   dev,
		opts:     options,
		plan:     plan,
		writeAPI: &util.NopWriteAPI{},
		events:   events.NopPublisher{},
		logger:   log.Logger,
		stopCh:   make(chan struct{}),
		settings: settings{
			squelch:    options.Squelch.Level,
			volume:     options.Volume,
			deemphasis: options.Deemphasis,
		},
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.metrics == nil {
		s.metrics = metrics.Discard(options.Name)
	}
	if len(s.sinks) == 0 {
		return nil, fmt.Errorf("tuner %s has no outputs", options.Name)
	}

	if s.arena, err = block.NewArena(plan.RawCapacity, buffersPerHandoff); err != nil {
		return nil, err
	}
	if s.schedule, err = NewSchedule(options.Frequencies, options.Edge, options.WideBand); err != nil {
		return nil, err
	}

	s.rawSlot = NewSlot(s.arena.Raw(1))
	s.pcmSlot = NewSlot(s.arena.PCM(1))
	s.acq = newAcquirer(s.rawSlot, s.arena.Raw(0), plan.BlockLength, s.metrics)

	s.controller = &Controller{
		name:     options.Name,
		opts:     options,
		plan:     plan,
		schedule: s.schedule,
		device:   dev,
		acq:      s.acq,
		logger:   s.logger,
		metrics:  s.metrics,
		events:   s.events,
		trigger:  make(chan struct{}, 1),
	}

	s.demod, err = newDemodulator(options, plan, demodDeps{
		logger:   s.logger,
		writeAPI: s.writeAPI,
		metrics:  s.metrics,
		events:   s.events,
		schedule: s.schedule,
		hop:      s.controller.Trigger,
	})
	if err != nil {
		return nil, err
	}
	s.controller.demod = s.demod

	s.out = &outputStage{
		name:     options.Name,
		sinks:    s.sinks,
		logger:   s.logger,
		writeAPI: s.writeAPI,
		metrics:  s.metrics,
	}

	return s, nil
}

func (s *Streamer) Name() string {
	return s.opts.Name
}

func (s *Streamer) Plan() RatePlan {
	return s.plan
}

// Stop starts a cooperative shutdown; Start returns once every stage has
// drained.
func (s *Streamer) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Start configures the device and runs the pipeline until the source ends,
// Stop is called, ctx is done or a stage fails. Sinks are closed on return.
func (s *Streamer) Start(ctx context.Context) error {
	defer s.closeSinks()

	if s.plan.CaptureRate > s.device.MaxSampleRate() {
		return fmt.Errorf("error: capture rate %d > device max sample rate %d", s.plan.CaptureRate, s.device.MaxSampleRate())
	}
	if err := s.device.SetSampleRate(s.plan.CaptureRate); err != nil {
		return fmt.Errorf("set sample rate: %w", err)
	}
	if err := s.device.SetGain(s.opts.Gain); err != nil {
		return fmt.Errorf("set gain: %w", err)
	}
	if err := s.controller.tune(s.schedule.Current(), events.KindRetune); err != nil {
		return fmt.Errorf("initial tune: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(egCtx)
	defer cancel()
	// Demodulation and output only finish by draining their input slot.
	drainCtx := context.WithoutCancel(ctx)

	eg.Go(func() error {
		select {
		case <-runCtx.Done():
		case <-s.stopCh:
		}
		if err := s.device.Stop(); err != nil {
			s.logger.Warn().Err(err).Str("tuner", s.opts.Name).Msg("failed to stop device")
		}
		s.rawSlot.Close()
		return nil
	})

	eg.Go(func() error {
		err := s.device.Start(runCtx, s.acq.onBlock)
		s.rawSlot.Close()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	eg.Go(func() error {
		return s.demod.Run(drainCtx, s.rawSlot, s.pcmSlot, s.arena.Raw(2), s.arena.PCM(0))
	})

	eg.Go(func() error {
		defer cancel()
		return s.out.Run(drainCtx, s.pcmSlot, s.arena.PCM(2))
	})

	eg.Go(func() error {
		return s.controller.Run(runCtx)
	})

	for _, sink := range s.sinks {
		if r, ok := sink.(output.Runner); ok {
			eg.Go(func() error {
				return r.Start(runCtx)
			})
		}
	}

	s.logger.Info().
		Str("tuner", s.opts.Name).
		Str("frequency", util.MHzToString(s.schedule.Current())).
		Int("frequencies", s.schedule.Len()).
		Int("capture_rate", s.plan.CaptureRate).
		Int("output_rate", s.plan.OutputRate).
		Int("block_length", s.plan.BlockLength).
		Msg("Starting")

	err := eg.Wait()
	s.events.Publish(events.Event{
		Kind:      events.KindStopped,
		Tuner:     s.opts.Name,
		Frequency: s.controller.Frequency(),
		Timestamp: time.Now(),
	})
	s.logger.Info().Str("tuner", s.opts.Name).Msg("stopped")
	return err
}

func (s *Streamer) closeSinks() {
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			s.logger.Warn().Err(err).Str("sink", sink.Name()).Msg("failed to close sink")
		}
	}
}

func (s *Streamer) SetFrequency(hz int) error {
	return s.controller.Tune(hz)
}

func (s *Streamer) SetSquelch(level int) error {
	if err := squelch.ValidateThreshold(level); err != nil {
		return config.Invalid("squelch", "%v", err)
	}
	s.mu.Lock()
	s.settings.squelch = level
	s.mu.Unlock()
	s.demod.Request(Request{Squelch: &level})
	return nil
}

func (s *Streamer) SetVolume(gain float64) error {
	if err := post.ValidateVolume(gain); err != nil {
		return config.Invalid("volume", "%v", err)
	}
	s.mu.Lock()
	s.settings.volume = gain
	s.mu.Unlock()
	s.demod.Request(Request{Volume: &gain})
	return nil
}

// SetDeemphasis takes a time constant in seconds; 0 disables de-emphasis.
func (s *Streamer) SetDeemphasis(tau float64) error {
	if err := post.ValidateTau(tau); err != nil {
		return config.Invalid("deemphasis", "%v", err)
	}
	s.mu.Lock()
	s.settings.deemphasis = tau
	s.mu.Unlock()
	s.demod.Request(Request{Deemphasis: &tau})
	return nil
}

func (s *Streamer) ReplaceSchedule(freqs []int) error {
	return s.controller.Replace(freqs)
}

func (s *Streamer) AppendSchedule(freqs []int) error {
	return s.controller.Append(freqs)
}

// Hop advances to the next scheduled frequency. It does nothing with a
// single-entry schedule.
func (s *Streamer) Hop() {
	s.controller.Trigger()
}
