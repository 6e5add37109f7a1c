package streamer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/norasector/fmstream/pkg/events"
	"github.com/norasector/fmstream/pkg/metrics"
	"github.com/norasector/fmstream/pkg/streamer/config"
	"github.com/norasector/fmstream/pkg/streamer/device"
	"github.com/norasector/fmstream/pkg/util"
)

// Controller walks the hop schedule. A hop is triggered by the hop interval,
// by the demodulator when the squelch closes with termination enabled, or by
// Trigger.
type Controller struct {
	name     string
	opts     Options
	plan     RatePlan
	schedule *Schedule
	device   device.Device
	acq      *acquirer
	demod    *Demodulator

	logger  zerolog.Logger
	metrics *metrics.Pipeline
	events  events.Publisher

	trigger chan struct{}

	mu        sync.Mutex
	frequency int
}

// Trigger asks for a hop without waiting for it. Triggers that arrive while
// one is pending are coalesced.
func (c *Controller) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

func (c *Controller) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if c.opts.HopInterval > 0 {
		ticker := time.NewTicker(c.opts.HopInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			c.hop()
		case <-c.trigger:
			c.hop()
		}
	}
}

func (c *Controller) hop() {
	freq, moved := c.schedule.Advance()
	if !moved {
		return
	}
	if err := c.tune(freq, events.KindHop); err != nil {
		c.demod.Request(Request{HopFailed: true})
	}
}

// tune retunes the device and then starts a new epoch, so the demodulator
// never mixes filter state from two frequencies. A failed retune leaves
// everything as it was.
func (c *Controller) tune(freq int, kind events.Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	capture := c.opts.CaptureFrequency(freq, c.plan)
	if err := c.device.SetFrequency(capture); err != nil {
		c.metrics.RetuneErrors.Inc()
		c.logger.Warn().
			Err(err).
			Str("tuner", c.name).
			Str("frequency", util.MHzToString(freq)).
			Msg("failed to tune")
		return err
	}

	epoch := c.acq.beginEpoch(freq)
	c.demod.Request(Request{Reset: true, Epoch: epoch})
	c.frequency = freq

	c.metrics.Frequency.Set(float64(freq))
	if kind == events.KindHop {
		c.metrics.Hops.Inc()
	}
	c.logger.Info().
		Str("tuner", c.name).
		Str("frequency", util.MHzToString(freq)).
		Str("capture_frequency", util.MHzToString(capture)).
		Uint64("epoch", epoch).
		Str("schedule", c.schedule.String()).
		Msg(string(kind))
	c.events.Publish(events.Event{
		Kind:      kind,
		Tuner:     c.name,
		Frequency: freq,
		Timestamp: time.Now(),
	})
	return nil
}

// Tune moves to hz outside the schedule. The next hop resumes the schedule.
func (c *Controller) Tune(hz int) error {
	if hz <= 0 {
		return config.Invalid("frequency", "must be positive, got %d", hz)
	}
	if err := c.tune(hz, events.KindRetune); err != nil {
		return fmt.Errorf("tune %s: %w", util.MHzToString(hz), err)
	}
	return nil
}

// Replace installs a new schedule and tunes to its first entry.
func (c *Controller) Replace(freqs []int) error {
	if err := c.schedule.Replace(freqs); err != nil {
		return err
	}
	return c.tune(c.schedule.Current(), events.KindRetune)
}

func (c *Controller) Append(freqs []int) error {
	return c.schedule.Append(freqs)
}

func (c *Controller) Frequency() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frequency
}
