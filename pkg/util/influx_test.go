package util

import (
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
)

func TestNopWriteAPICounts(t *testing.T) {
	w := &NopWriteAPI{}
	for i := 0; i < 3; i++ {
		w.WritePoint(influxdb2.NewPoint("fm.processed", nil, map[string]interface{}{"n": i}, time.Now()))
	}
	w.WritePoint(influxdb2.NewPoint("fm.output", nil, map[string]interface{}{"n": 1}, time.Now()))

	if got := w.Points("fm.processed"); got != 3 {
		t.Errorf("fm.processed = %d, want 3", got)
	}
	if got := w.Points("fm.output"); got != 1 {
		t.Errorf("fm.output = %d, want 1", got)
	}
	if got := w.Points("other"); got != 0 {
		t.Errorf("other = %d, want 0", got)
	}
}

func TestElapsed(t *testing.T) {
	d := Elapsed(func() { time.Sleep(2 * time.Millisecond) })
	if d < 2*time.Millisecond {
		t.Errorf("Elapsed = %s", d)
	}
}
