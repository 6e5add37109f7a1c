package streamer

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"

	"github.com/norasector/fmstream/pkg/block"
	"github.com/norasector/fmstream/pkg/metrics"
	"github.com/norasector/fmstream/pkg/streamer/output"
	"github.com/norasector/fmstream/pkg/util"
)

// outputStage writes every PCM block to all sinks.
type outputStage struct {
	name     string
	sinks    []output.Sink
	logger   zerolog.Logger
	writeAPI api.WriteAPI
	metrics  *metrics.Pipeline
}

// Run writes blocks from in until it is closed and drained. A write failure
// is fatal only when there is no other sink to fall back on.
func (o *outputStage) Run(ctx context.Context, in *Slot[*block.PCM], pcm *block.PCM) error {
	for {
		var err error
		pcm, err = in.Take(ctx, pcm)
		if errors.Is(err, ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := o.write(pcm); err != nil {
			return err
		}
	}
}

func (o *outputStage) write(pcm *block.PCM) error {
	bytes := pcm.Len * 2
	failed := 0
	for _, sink := range o.sinks {
		var err error
		elapsed := util.Elapsed(func() {
			err = sink.Write(pcm)
		})
		if cc, ok := sink.(output.ClientCounter); ok {
			o.metrics.SinkClients.WithLabelValues(sink.Name()).Set(float64(cc.Clients()))
		}
		if err != nil {
			failed++
			o.metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
			if len(o.sinks) == 1 {
				return fmt.Errorf("write to %s: %w", sink.Name(), err)
			}
			o.logger.Warn().Err(err).Str("sink", sink.Name()).Msg("sink write failed")
			continue
		}
		o.metrics.BytesWritten.WithLabelValues(sink.Name()).Add(float64(bytes))

		go o.writeAPI.WritePoint(influxdb2.NewPoint("fm.output",
			map[string]string{
				"tuner":     o.name,
				"sink":      sink.Name(),
				"frequency": util.MHzToString(pcm.Frequency),
			},
			map[string]interface{}{
				"samples_written": pcm.Len,
				"bytes_written":   bytes,
				"duration":        elapsed.Microseconds(),
			}, time.Now()))
	}
	if failed > 0 && failed == len(o.sinks) {
		o.logger.Error().Int("sinks", failed).Msg("every sink failed")
	}
	return nil
}
