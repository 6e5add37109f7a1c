package processor

import (
	"errors"
	"fmt"
	"time"
)

// Processor runs an ordered chain of workers over one block at a time. Every
// worker writes into its own output buffer, sized once by Initialize.
type Processor struct {
	Name        string
	blocks      []*DSPWorker
	maxInput    int
	initialized bool
}

// NewProcessor creates a chain whose input blocks hold at most maxInput values.
func NewProcessor(name string, maxInput int) *Processor {
	return &Processor{
		Name:     name,
		maxInput: maxInput,
	}
}

func (p *Processor) AddBlock(worker *DSPWorker) {
	p.blocks = append(p.blocks, worker)
	p.initialized = false
}

func (p *Processor) Initialize() error {
	if p.initialized {
		return nil
	}
	if len(p.blocks) < 2 {
		return fmt.Errorf("must specify at least 2 blocks")
	}
	if p.blocks[0].inputDataType != DataTypeIQ {
		return fmt.Errorf("first block %s must take %s input, takes %s", p.blocks[0].Name, DataTypeIQ, p.blocks[0].inputDataType)
	}
	if last := p.blocks[len(p.blocks)-1]; last.outputDataType != DataTypeMono {
		return fmt.Errorf("last block %s must produce %s output, produces %s", last.Name, DataTypeMono, last.outputDataType)
	}

	size := p.maxInput
	for i, cur := range p.blocks {
		if i > 0 {
			prev := p.blocks[i-1]
			if prev.outputDataType != cur.inputDataType {
				return fmt.Errorf("cur: %s next %s data type mismatch (%s %s)", prev.Name, cur.Name, prev.outputDataType, cur.inputDataType)
			}
			if prev.OutputRate != cur.InputRate {
				return fmt.Errorf("cur: %s next %s rate mismatch (%d %d)", prev.Name, cur.Name, prev.OutputRate, cur.InputRate)
			}
		}
		size = cur.worker.PredictOutputSize(size)
		if len(cur.outputBuffer) < size {
			cur.outputBuffer = make([]int16, size)
		}
	}

	p.initialized = true
	return nil
}

// Process runs input through every block and returns the last block's
// output, which stays valid until the next call. Per-block durations are
// recorded in metrics as "<name>_duration" in microseconds.
func (p *Processor) Process(input []int16, metrics map[string]interface{}) ([]int16, error) {
	if !p.initialized {
		if err := p.Initialize(); err != nil {
			return nil, err
		}
	}
	if len(input) > p.maxInput {
		return nil, fmt.Errorf("input of %d values exceeds capacity %d", len(input), p.maxInput)
	}

	data := input
	for _, block := range p.blocks {
		start := time.Now()
		length := block.worker.WorkBuffer(data, block.outputBuffer)
		data = block.outputBuffer[:length]
		if metrics != nil {
			metrics[fmt.Sprintf("%s_duration", block.Name)] = time.Since(start).Microseconds()
		}
		for _, tap := range block.taps {
			tap(data)
		}
	}
	return data, nil
}

// Reset clears the history of every block.
func (p *Processor) Reset() {
	for _, block := range p.blocks {
		if r, ok := block.worker.(Resetter); ok {
			r.Reset()
		}
	}
}

func (p *Processor) HistoryZero() bool {
	for _, block := range p.blocks {
		if h, ok := block.worker.(HistoryChecker); ok && !h.HistoryZero() {
			return false
		}
	}
	return true
}

// OutputRate is the sample rate leaving the last block.
func (p *Processor) OutputRate() (int, error) {
	if len(p.blocks) == 0 {
		return 0, errors.New("no blocks")
	}
	return p.blocks[len(p.blocks)-1].OutputRate, nil
}

// Names lists the blocks in order.
func (p *Processor) Names() []string {
	names := make([]string, len(p.blocks))
	for i, block := range p.blocks {
		names[i] = block.Name
	}
	return names
}
