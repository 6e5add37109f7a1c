package hackrf

import (
	"context"
	"sync"

	"github.com/norasector/fmstream/pkg/streamer/device"
	"github.com/samuel/go-hackrf/hackrf"
)

const (
	maxSampleRate = 20e6
	lnaStep       = 8
	maxLNAGain    = 40
	autoLNAGain   = 32
)

func (h *HackRFDevice) MaxSampleRate() int {
	return maxSampleRate
}

// HackRFDevice adapts the HackRF's signed 8-bit samples to unsigned I/Q.
// hackrf.Init must be called before NewHackRFDevice.
type HackRFDevice struct {
	device *hackrf.Device

	mu      sync.Mutex
	onBlock func([]byte)
	u8      []byte
	stop    chan struct{}
	once    sync.Once
}

func NewHackRFDevice() (*HackRFDevice, error) {
	dev, err := hackrf.Open()
	if err != nil {
		return nil, err
	}
	return &HackRFDevice{
		device: dev,
		stop:   make(chan struct{}),
	}, nil
}

func (h *HackRFDevice) SetFrequency(hz int) error {
	return h.device.SetFreq(uint64(hz))
}

func (h *HackRFDevice) SetSampleRate(hz int) error {
	if err := h.device.SetSampleRateManual(hz*2, 2); err != nil {
		return err
	}
	return h.device.SetBasebandFilterBandwidth(hz)
}

// SetGain maps the requested gain onto the LNA's 8 dB steps; auto picks a
// fixed mid-range setting since the HackRF has no AGC.
func (h *HackRFDevice) SetGain(tenthsDB int) error {
	lna := autoLNAGain
	if tenthsDB != device.AutoGain {
		lna = (tenthsDB / 10) / lnaStep * lnaStep
		if lna > maxLNAGain {
			lna = maxLNAGain
		}
	}
	if err := h.device.SetLNAGain(lna); err != nil {
		return err
	}
	return h.device.SetAmpEnable(true)
}

func (h *HackRFDevice) callback(buf []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cap(h.u8) < len(buf) {
		h.u8 = make([]byte, len(buf))
	}
	out := h.u8[:len(buf)]
	for i, b := range buf {
		out[i] = b ^ 0x80
	}
	h.onBlock(out)
	return nil
}

func (h *HackRFDevice) Start(ctx context.Context, onBlock func([]byte)) error {
	h.onBlock = onBlock
	if err := h.device.StartRX(h.callback); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-h.stop:
	}
	return h.device.StopRX()
}

func (h *HackRFDevice) Stop() error {
	h.once.Do(func() { close(h.stop) })
	return nil
}

func (h *HackRFDevice) Close() error {
	return h.device.Close()
}
