package rtlsdr

import (
	"context"
	"sync"

	gsdr "github.com/jpoirier/gortlsdr"
	"github.com/norasector/fmstream/pkg/streamer/device"
)

const maxSampleRate = 3.2e6

type RTLSDRDevice struct {
	deviceIdx int
	device    *gsdr.Context
	bufLen    int

	onBlock func([]byte)
	wg      sync.WaitGroup
}

// NewRTLSDRDevice opens the tuner at deviceIdx. bufLen is the async transfer
// size in bytes; 0 uses the driver default.
func NewRTLSDRDevice(deviceIdx, ppm, bufLen int) (*RTLSDRDevice, error) {
	dev, err := gsdr.Open(deviceIdx)
	if err != nil {
		return nil, err
	}
	if ppm != 0 {
		if err := dev.SetFreqCorrection(ppm); err != nil {
			dev.Close()
			return nil, err
		}
	}
	return &RTLSDRDevice{
		deviceIdx: deviceIdx,
		device:    dev,
		bufLen:    bufLen,
	}, nil
}

func (r *RTLSDRDevice) MaxSampleRate() int {
	return maxSampleRate
}

func (r *RTLSDRDevice) SetFrequency(hz int) error {
	return r.device.SetCenterFreq(hz)
}

func (r *RTLSDRDevice) SetSampleRate(hz int) error {
	return r.device.SetSampleRate(hz)
}

func (r *RTLSDRDevice) SetGain(tenthsDB int) error {
	if tenthsDB == device.AutoGain {
		return r.device.SetTunerGainMode(false)
	}
	if err := r.device.SetTunerGainMode(true); err != nil {
		return err
	}
	gains, err := r.device.GetTunerGains()
	if err != nil {
		return err
	}
	return r.device.SetTunerGain(device.NearestGain(tenthsDB, gains))
}

func (r *RTLSDRDevice) callback(buf []byte) {
	r.wg.Add(1)
	defer r.wg.Done()
	r.onBlock(buf)
}

func (r *RTLSDRDevice) Start(ctx context.Context, onBlock func([]byte)) error {
	r.onBlock = onBlock
	if err := r.device.ResetBuffer(); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.device.CancelAsync()
		case <-done:
		}
	}()

	r.wg.Add(1)
	defer r.wg.Done()
	return r.device.ReadAsync(r.callback, nil, 0, r.bufLen)
}

func (r *RTLSDRDevice) Stop() error {
	err := r.device.CancelAsync()
	r.wg.Wait()
	return err
}

func (r *RTLSDRDevice) Close() error {
	return r.device.Close()
}
