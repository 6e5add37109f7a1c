// Package metrics holds the Prometheus collectors for one streaming pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fmstream"

// Pipeline is the set of collectors for one tuner. All collectors carry a
// constant "tuner" label so several pipelines can share a registry.
type Pipeline struct {
	BlocksAcquired    prometheus.Counter     // Raw blocks handed to the demodulator
	RawOverwrites     prometheus.Counter     // Raw blocks overwritten before the demodulator took them
	PCMOverwrites     prometheus.Counter     // PCM blocks overwritten before the output stage took them
	BlocksDemodulated prometheus.Counter     // Blocks run through the filter chain
	BlocksDropped     *prometheus.CounterVec // Blocks discarded (by reason)
	BlocksSilenced    prometheus.Counter     // Blocks replaced with silence by the squelch
	Reconfigurations  prometheus.Counter     // Filter state resets
	Hops              prometheus.Counter     // Completed frequency hops
	RetuneErrors      prometheus.Counter     // Failed device retunes
	SinkErrors        *prometheus.CounterVec // Write failures (by sink)
	BytesWritten      *prometheus.CounterVec // PCM bytes written (by sink)
	SinkClients       *prometheus.GaugeVec   // Connected network clients (by sink)

	Frequency     prometheus.Gauge     // Tuned frequency in Hz
	SquelchLevel  prometheus.Gauge     // Last measured signal level
	SquelchOpen   prometheus.Gauge     // 1 when audio passes the squelch
	DemodDuration prometheus.Histogram // Time spent demodulating one block
}

// NewPipeline registers the collectors for tuner with reg.
func NewPipeline(reg prometheus.Registerer, tuner string) *Pipeline {
	f := promauto.With(reg)
	labels := prometheus.Labels{"tuner": tuner}

	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	return &Pipeline{
		BlocksAcquired:    counter("blocks_acquired_total", "Raw I/Q blocks received from the tuner"),
		RawOverwrites:     counter("raw_overwrites_total", "Raw blocks overwritten before demodulation"),
		PCMOverwrites:     counter("pcm_overwrites_total", "PCM blocks overwritten before output"),
		BlocksDemodulated: counter("blocks_demodulated_total", "Blocks run through the demodulator"),
		BlocksDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "blocks_dropped_total",
			Help:        "Blocks discarded by the demodulator",
			ConstLabels: labels,
		}, []string{"reason"}),
		BlocksSilenced:   counter("blocks_silenced_total", "Blocks muted by the squelch"),
		Reconfigurations: counter("reconfigurations_total", "Demodulator filter state resets"),
		Hops:             counter("hops_total", "Frequency hops"),
		RetuneErrors:     counter("retune_errors_total", "Failed tuner frequency changes"),
		SinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sink_errors_total",
			Help:        "Stream sink write failures",
			ConstLabels: labels,
		}, []string{"sink"}),
		BytesWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sink_bytes_written_total",
			Help:        "PCM bytes written to stream sinks",
			ConstLabels: labels,
		}, []string{"sink"}),
		SinkClients: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "sink_clients",
			Help:        "Connected stream clients",
			ConstLabels: labels,
		}, []string{"sink"}),
		Frequency:    gauge("frequency_hz", "Tuned frequency"),
		SquelchLevel: gauge("squelch_level", "Last measured signal level"),
		SquelchOpen:  gauge("squelch_open", "Whether the squelch is passing audio"),
		DemodDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "demod_duration_seconds",
			Help:        "Time spent demodulating one block",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
}

// Discard returns collectors registered with a private registry, for
// pipelines that do not export metrics.
func Discard(tuner string) *Pipeline {
	return NewPipeline(prometheus.NewRegistry(), tuner)
}
