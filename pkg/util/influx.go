package util

import (
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/api/write"
)

// NopWriteAPI stands in for InfluxDB when no host is configured. Points are
// discarded, but counted per measurement.
type NopWriteAPI struct {
	mu     sync.Mutex
	counts map[string]int
}

func (n *NopWriteAPI) WriteRecord(line string) {}

func (n *NopWriteAPI) WritePoint(point *write.Point) {
	n.mu.Lock()
	if n.counts == nil {
		n.counts = make(map[string]int)
	}
	n.counts[point.Name()]++
	n.mu.Unlock()
}

// Points returns how many points of the given measurement were written.
func (n *NopWriteAPI) Points(measurement string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counts[measurement]
}

func (n *NopWriteAPI) Flush() {}

func (n *NopWriteAPI) Close() {}

func (n *NopWriteAPI) Errors() <-chan error { return nil }

// Elapsed runs op and reports how long it took.
func Elapsed(op func()) time.Duration {
	start := time.Now()
	op()
	return time.Since(start)
}
