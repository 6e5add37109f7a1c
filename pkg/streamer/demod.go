package streamer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"

	"github.com/norasector/fmstream/pkg/block"
	"github.com/norasector/fmstream/pkg/dsp/demodulators/fm"
	"github.com/norasector/fmstream/pkg/dsp/filters/fir"
	"github.com/norasector/fmstream/pkg/dsp/filters/post"
	"github.com/norasector/fmstream/pkg/dsp/lowpass"
	"github.com/norasector/fmstream/pkg/dsp/mixer"
	"github.com/norasector/fmstream/pkg/dsp/processor"
	"github.com/norasector/fmstream/pkg/dsp/squelch"
	"github.com/norasector/fmstream/pkg/events"
	"github.com/norasector/fmstream/pkg/metrics"
	"github.com/norasector/fmstream/pkg/util"
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateReconfiguring
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateReconfiguring:
		return "reconfiguring"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Request asks the demodulator to change at the start of its next block.
// Nil fields are left alone. Requests made before the demodulator gets to
// them are merged, later values winning.
type Request struct {
	// Reset clears all filter state. With a non-zero Epoch the reset also
	// discards every block captured before that epoch, and is skipped if the
	// demodulator has already moved past it.
	Reset bool
	Epoch uint64

	// HopFailed reports that the last hop this demodulator asked for never
	// retuned, so the next closed block may ask again.
	HopFailed bool

	Squelch    *int
	Volume     *float64
	Deemphasis *float64
}

func (r *Request) merge(o Request) {
	if o.Reset {
		r.Reset = true
		if o.Epoch > r.Epoch {
			r.Epoch = o.Epoch
		}
	}
	if o.HopFailed {
		r.HopFailed = true
	}
	if o.Squelch != nil {
		r.Squelch = o.Squelch
	}
	if o.Volume != nil {
		r.Volume = o.Volume
	}
	if o.Deemphasis != nil {
		r.Deemphasis = o.Deemphasis
	}
}

const levelHistory = 64

// Demodulator owns the filter chain and squelch of one pipeline. Everything
// except Request and the read-only accessors runs on the goroutine in Run.
type Demodulator struct {
	name     string
	opts     Options
	plan     RatePlan
	schedule *Schedule
	hop      func()

	logger   zerolog.Logger
	writeAPI api.WriteAPI
	metrics  *metrics.Pipeline
	events   events.Publisher

	state atomic.Int32
	level atomic.Int64
	open  atomic.Bool

	reqMu   sync.Mutex
	pending Request
	queued  bool

	proc    *processor.Processor
	bank    lowpass.Filter
	deemph  *post.Deemphasis
	volume  *post.Volume
	meter   *squelch.Meter
	squelch *squelch.State

	conv         []int16
	epoch        uint64
	hopRequested bool

	levelsMu sync.Mutex
	levels   []float64
	levelPos int
}

type demodDeps struct {
	logger   zerolog.Logger
	writeAPI api.WriteAPI
	metrics  *metrics.Pipeline
	events   events.Publisher
	schedule *Schedule
	hop      func()
}

func newDemodulator(opts Options, plan RatePlan, deps demodDeps) (*Demodulator, error) {
	if deps.writeAPI == nil {
		deps.writeAPI = &util.NopWriteAPI{}
	}
	if deps.metrics == nil {
		deps.metrics = metrics.Discard(opts.Name)
	}
	if deps.events == nil {
		deps.events = events.NopPublisher{}
	}

	d := &Demodulator{
		name:     opts.Name,
		opts:     opts,
		plan:     plan,
		schedule: deps.schedule,
		hop:      deps.hop,
		logger:   deps.logger,
		writeAPI: deps.writeAPI,
		metrics:  deps.metrics,
		events:   deps.events,
		conv:     make([]int16, plan.RawCapacity),
		squelch:  squelch.NewState(opts.Squelch.Level, opts.Squelch.Consecutive),
		levels:   make([]float64, 0, levelHistory),
	}

	var err error
	if d.meter, err = squelch.NewMeter(opts.Squelch.Smoothing); err != nil {
		return nil, err
	}
	if err := d.build(); err != nil {
		return nil, err
	}
	d.open.Store(d.squelch.Open())
	return d, nil
}

func (d *Demodulator) build() error {
	plan := d.plan
	proc := processor.NewProcessor(d.name, plan.RawCapacity)

	if d.opts.OffsetTuning {
		proc.AddBlock(processor.NewDSPWorkerII(
			"rotator",
			"Offset Rotator",
			plan.CaptureRate,
			plan.CaptureRate,
			mixer.NewRotator(),
		))
	}

	bank, err := lowpass.New(d.opts.lowpassConfig(plan))
	if err != nil {
		return err
	}
	d.bank = bank
	proc.AddBlock(processor.NewDSPWorkerII(
		"lowpass",
		"Decimating Low Pass",
		plan.CaptureRate,
		plan.RateIn,
		bank,
		processor.WithTap(d.measure),
	))

	proc.AddBlock(processor.NewDSPWorkerIM(
		"discriminator",
		"FM Discriminator",
		plan.RateIn,
		plan.RateIn,
		fm.NewDiscriminator(d.opts.Atan, plan.RawCapacity/2),
	))

	if d.opts.PostDownsample > 1 {
		dec, err := post.NewDecimator(d.opts.PostDownsample)
		if err != nil {
			return err
		}
		proc.AddBlock(processor.NewDSPWorkerMM(
			"post_decimator",
			"Post Decimator",
			plan.RateIn,
			plan.RateOut,
			dec,
		))
	}

	d.deemph = post.NewDeemphasis(plan.RateOut, d.opts.Deemphasis)
	proc.AddBlock(processor.NewDSPWorkerMM(
		"deemphasis",
		"FM Deemphasis",
		plan.RateOut,
		plan.RateOut,
		d.deemph,
	))

	if d.opts.DroopCompensation && d.opts.PostDownsample > 1 {
		comp, err := fir.NewCompensator(1, 1)
		if err != nil {
			return err
		}
		proc.AddBlock(processor.NewDSPWorkerMM(
			"droop",
			"Droop Compensation",
			plan.RateOut,
			plan.RateOut,
			comp,
		))
	}

	if d.opts.DCBlock {
		proc.AddBlock(processor.NewDSPWorkerMM(
			"dc_block",
			"DC Block",
			plan.RateOut,
			plan.RateOut,
			post.NewDCBlock(),
		))
	}

	if plan.OutputRate < plan.RateOut {
		rs, err := post.NewResampler(plan.RateOut, plan.OutputRate)
		if err != nil {
			return err
		}
		proc.AddBlock(processor.NewDSPWorkerMM(
			"resampler",
			"Audio Resampler",
			plan.RateOut,
			plan.OutputRate,
			rs,
		))
	}

	d.volume = post.NewVolume(d.opts.Volume)
	proc.AddBlock(processor.NewDSPWorkerMM(
		"volume",
		"Volume",
		plan.OutputRate,
		plan.OutputRate,
		d.volume,
	))

	if err := proc.Initialize(); err != nil {
		return err
	}
	rate, err := proc.OutputRate()
	if err != nil {
		return err
	}
	if rate != plan.OutputRate {
		return fmt.Errorf("filter chain ends at %d Hz, planned %d Hz", rate, plan.OutputRate)
	}
	d.proc = proc

	d.logger.Info().
		Str("tuner", d.name).
		Strs("stages", proc.Names()).
		Int("capture_rate", plan.CaptureRate).
		Int("rate_in", plan.RateIn).
		Int("rate_out", plan.RateOut).
		Int("output_rate", plan.OutputRate).
		Int("downsample", plan.Downsample).
		Int("filter_gain", bank.Gain()).
		Msg("demodulator built")
	return nil
}

func (d *Demodulator) measure(iq []int16) {
	d.level.Store(int64(d.meter.Measure(iq, d.bank.Gain())))
}

// Request queues a change for the demodulator goroutine.
func (d *Demodulator) Request(r Request) {
	d.reqMu.Lock()
	d.pending.merge(r)
	d.queued = true
	d.reqMu.Unlock()
}

func (d *Demodulator) takeRequest() (Request, bool) {
	d.reqMu.Lock()
	defer d.reqMu.Unlock()
	if !d.queued {
		return Request{}, false
	}
	r := d.pending
	d.pending = Request{}
	d.queued = false
	return r, true
}

func (d *Demodulator) applyRequests() {
	r, ok := d.takeRequest()
	if !ok {
		return
	}
	if r.Squelch != nil {
		d.squelch.SetThreshold(*r.Squelch)
		d.open.Store(d.squelch.Open())
	}
	if r.Volume != nil {
		d.volume.SetGain(*r.Volume)
	}
	if r.Deemphasis != nil {
		d.deemph.SetTau(*r.Deemphasis)
	}
	if r.HopFailed {
		d.hopRequested = false
	}
	if r.Reset && (r.Epoch == 0 || r.Epoch > d.epoch) {
		d.reconfigure(r.Epoch)
	}
}

// reconfigure zeroes every piece of carried state.
func (d *Demodulator) reconfigure(epoch uint64) {
	d.setState(StateReconfiguring)
	if epoch > d.epoch {
		d.epoch = epoch
	}
	d.proc.Reset()
	d.meter.Reset()
	d.squelch.Reset()
	d.level.Store(0)
	d.open.Store(d.squelch.Open())
	d.hopRequested = false
	d.metrics.Reconfigurations.Inc()
	d.setState(StateRunning)
}

// HistoryZero reports whether all filter and squelch state is clear.
func (d *Demodulator) HistoryZero() bool {
	return d.proc.HistoryZero() && d.meter.HistoryZero() && d.squelch.HistoryZero()
}

func (d *Demodulator) terminateOnSquelch() bool {
	return d.opts.Squelch.Terminate && d.hop != nil && d.schedule != nil && d.schedule.Len() > 1
}

// process demodulates raw into pcm and reports whether pcm should be sent on.
func (d *Demodulator) process(raw *block.Raw, pcm *block.PCM) (bool, error) {
	d.applyRequests()

	if raw.Epoch < d.epoch {
		d.metrics.BlocksDropped.WithLabelValues("stale_epoch").Inc()
		return false, nil
	}
	if raw.Epoch > d.epoch {
		d.reconfigure(raw.Epoch)
	}
	if raw.Len == 0 {
		return false, nil
	}

	start := time.Now()
	m := map[string]interface{}{
		"sample_length": raw.Len / 2,
		"sample_bytes":  raw.Len,
	}

	conv := d.conv[:raw.Len]
	for i, b := range raw.Bytes() {
		conv[i] = int16(b) - 127
	}

	out, err := d.proc.Process(conv, m)
	if err != nil {
		return false, err
	}

	level := int(d.level.Load())
	wasOpen := d.open.Load()
	open := d.squelch.Evaluate(level)
	d.open.Store(open)
	d.recordLevel(level)
	d.metrics.SquelchLevel.Set(float64(level))
	if open != wasOpen {
		d.squelchTransition(open, level, raw.Frequency)
	}

	duration := time.Since(start)
	m["duration"] = duration.Microseconds()
	m["squelch_level"] = level
	m["squelch_open"] = open
	d.metrics.DemodDuration.Observe(duration.Seconds())
	d.metrics.BlocksDemodulated.Inc()

	go d.writeAPI.WritePoint(influxdb2.NewPoint("fm.processed",
		map[string]string{
			"tuner":     d.name,
			"frequency": util.MHzToString(raw.Frequency),
		},
		m, time.Now()))

	if !open && d.terminateOnSquelch() {
		d.metrics.BlocksDropped.WithLabelValues("squelch").Inc()
		if !d.hopRequested {
			d.hopRequested = true
			d.hop()
		}
		return false, nil
	}

	pcm.Len = copy(pcm.Data, out)
	pcm.Rate = d.plan.OutputRate
	pcm.Seq = raw.Seq
	pcm.Epoch = raw.Epoch
	pcm.Frequency = raw.Frequency
	if !open {
		pcm.Silence()
		d.metrics.BlocksSilenced.Inc()
	}
	return true, nil
}

func (d *Demodulator) squelchTransition(open bool, level, freq int) {
	kind := events.KindSquelchClose
	gauge := 0.0
	if open {
		kind = events.KindSquelchOpen
		gauge = 1
	}
	d.metrics.SquelchOpen.Set(gauge)
	d.logger.Debug().
		Str("tuner", d.name).
		Str("frequency", util.MHzToString(freq)).
		Int("level", level).
		Bool("open", open).
		Msg("squelch")
	d.events.Publish(events.Event{
		Kind:      kind,
		Tuner:     d.name,
		Frequency: freq,
		Level:     level,
		Timestamp: time.Now(),
	})
}

func (d *Demodulator) recordLevel(level int) {
	d.levelsMu.Lock()
	if len(d.levels) < levelHistory {
		d.levels = append(d.levels, float64(level))
	} else {
		d.levels[d.levelPos] = float64(level)
		d.levelPos = (d.levelPos + 1) % levelHistory
	}
	d.levelsMu.Unlock()
}

// Levels returns the most recent squelch levels, oldest first.
func (d *Demodulator) Levels() []float64 {
	d.levelsMu.Lock()
	defer d.levelsMu.Unlock()
	out := make([]float64, 0, len(d.levels))
	out = append(out, d.levels[d.levelPos:]...)
	return append(out, d.levels[:d.levelPos]...)
}

func (d *Demodulator) State() State {
	return State(d.state.Load())
}

func (d *Demodulator) setState(s State) {
	d.state.Store(int32(s))
}

func (d *Demodulator) Level() int {
	return int(d.level.Load())
}

func (d *Demodulator) SquelchOpen() bool {
	return d.open.Load()
}

// Run demodulates blocks from in into out until in is closed and drained,
// then closes out. raw and pcm are the buffers the demodulator starts with.
func (d *Demodulator) Run(ctx context.Context, in *Slot[*block.Raw], out *Slot[*block.PCM], raw *block.Raw, pcm *block.PCM) error {
	defer d.setState(StateStopped)
	defer out.Close()

	d.setState(StateRunning)
	for {
		var err error
		raw, err = in.Take(ctx, raw)
		if errors.Is(err, ErrClosed) {
			d.setState(StateDraining)
			d.logger.Debug().Str("tuner", d.name).Msg("demodulator drained")
			return nil
		}
		if err != nil {
			return err
		}

		emit, err := d.process(raw, pcm)
		if err != nil {
			return err
		}
		if !emit {
			continue
		}

		spare, overwrote := out.Put(pcm)
		pcm = spare
		if overwrote {
			d.metrics.PCMOverwrites.Inc()
		}
	}
}
