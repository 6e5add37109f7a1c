package processor

import "fmt"

type DataType int

const (
	DataTypeIQ DataType = iota
	DataTypeMono
)

func (d DataType) String() string {
	switch d {
	case DataTypeIQ:
		return "iq"
	case DataTypeMono:
		return "mono"
	default:
		return fmt.Sprintf("DataType(%d)", int(d))
	}
}

type DSPWorker struct {
	Name        string
	DisplayName string
	InputRate   int
	OutputRate  int

	inputDataType  DataType
	outputDataType DataType

	worker       Worker
	outputBuffer []int16
	taps         []func([]int16)
}

type DSPWorkerOption func(r *DSPWorker)

// WithTap registers fn to observe the worker's output after every block. The
// slice is only valid for the duration of the call.
func WithTap(fn func([]int16)) DSPWorkerOption {
	return func(r *DSPWorker) {
		r.taps = append(r.taps, fn)
	}
}

func baseWorker(name, displayName string, inputRate, outputRate int) *DSPWorker {
	return &DSPWorker{
		Name:        name,
		DisplayName: displayName,
		InputRate:   inputRate,
		OutputRate:  outputRate,
	}
}

func newWorker(name, displayName string, inputRate, outputRate int, in, out DataType, worker Worker, opts []DSPWorkerOption) *DSPWorker {
	ret := baseWorker(name, displayName, inputRate, outputRate)
	ret.inputDataType = in
	ret.outputDataType = out
	ret.worker = worker

	for _, opt := range opts {
		opt(ret)
	}

	return ret
}

// NewDSPWorkerII wraps a worker that takes and returns interleaved I/Q.
func NewDSPWorkerII(name, displayName string, inputRate, outputRate int, worker Worker, opts ...DSPWorkerOption) *DSPWorker {
	return newWorker(name, displayName, inputRate, outputRate, DataTypeIQ, DataTypeIQ, worker, opts)
}

// NewDSPWorkerIM wraps a worker that turns interleaved I/Q into mono.
func NewDSPWorkerIM(name, displayName string, inputRate, outputRate int, worker Worker, opts ...DSPWorkerOption) *DSPWorker {
	return newWorker(name, displayName, inputRate, outputRate, DataTypeIQ, DataTypeMono, worker, opts)
}

// NewDSPWorkerMM wraps a mono filter.
func NewDSPWorkerMM(name, displayName string, inputRate, outputRate int, worker Worker, opts ...DSPWorkerOption) *DSPWorker {
	return newWorker(name, displayName, inputRate, outputRate, DataTypeMono, DataTypeMono, worker, opts)
}

// Worker processes one block of int16 samples.
type Worker interface {
	WorkBuffer(in, out []int16) int
	PredictOutputSize(int) int
}

// Resetter is implemented by workers that keep history between blocks.
type Resetter interface {
	Reset()
}

// HistoryChecker reports whether a worker's carried state is all zero.
type HistoryChecker interface {
	HistoryZero() bool
}
