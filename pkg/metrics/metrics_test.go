package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		t.Fatal(err)
	}
	switch {
	case pb.Counter != nil:
		return pb.Counter.GetValue()
	case pb.Gauge != nil:
		return pb.Gauge.GetValue()
	}
	t.Fatal("metric is neither counter nor gauge")
	return 0
}

func TestPipelinesShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewPipeline(reg, "a")
	b := NewPipeline(reg, "b")

	a.Hops.Inc()
	a.Hops.Inc()
	b.Hops.Inc()
	a.BlocksDropped.WithLabelValues("stale_epoch").Inc()

	if got := value(t, a.Hops); got != 2 {
		t.Errorf("tuner a hops = %v, want 2", got)
	}
	if got := value(t, b.Hops); got != 1 {
		t.Errorf("tuner b hops = %v, want 1", got)
	}
	if got := value(t, a.BlocksDropped.WithLabelValues("stale_epoch")); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "fmstream_hops_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Errorf("got %d hop series, want 2", len(mf.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("fmstream_hops_total not gathered")
	}
}

func TestDiscardDoesNotCollide(t *testing.T) {
	Discard("x")
	Discard("x")
}
