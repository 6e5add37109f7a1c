package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// FileDevice replays a capture as if it came from a tuner. Raw captures are
// interleaved u8 I/Q as written by rtl_sdr; WAV captures are two-channel 8- or
// 16-bit PCM. Tuning calls are accepted and ignored.
type FileDevice struct {
	readFile *os.File
	reader   io.Reader
	readSize int
	realtime bool

	mu         sync.Mutex
	sampleRate int
	stop       chan struct{}
	once       sync.Once
}

func NewFileDevice(file string, readSize int, realtime bool) (*FileDevice, error) {
	if readSize <= 0 || readSize%2 != 0 {
		return nil, fmt.Errorf("read size must be a positive even number, got %d", readSize)
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	d := &FileDevice{
		readFile: f,
		reader:   f,
		readSize: readSize,
		realtime: realtime,
		stop:     make(chan struct{}),
	}

	dec := wav.NewDecoder(f)
	if dec.IsValidFile() {
		r, err := newWAVReader(dec)
		if err != nil {
			f.Close()
			return nil, err
		}
		d.reader = r
		d.sampleRate = int(dec.SampleRate)
	} else if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	return d, nil
}

func (f *FileDevice) SetFrequency(hz int) error {
	return nil
}

// SetSampleRate sets the replay pace for raw captures. WAV captures keep
// their own rate.
func (f *FileDevice) SetSampleRate(hz int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reader.(*wavReader); !ok {
		f.sampleRate = hz
	}
	return nil
}

func (f *FileDevice) SetGain(tenthsDB int) error {
	return nil
}

func (f *FileDevice) interval() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.realtime || f.sampleRate <= 0 {
		return 0
	}
	pairs := f.readSize / 2
	return time.Duration(float64(pairs) / float64(f.sampleRate) * float64(time.Second))
}

// Start reads the capture until it ends, returning nil at end of file.
func (f *FileDevice) Start(ctx context.Context, onBlock func([]byte)) error {
	buf := make([]byte, f.readSize)

	var tick <-chan time.Time
	if iv := f.interval(); iv > 0 {
		ticker := time.NewTicker(iv)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.stop:
			return nil
		default:
		}

		n, err := io.ReadFull(f.reader, buf)
		if n > 0 {
			onBlock(buf[:n&^1])
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-f.stop:
				return nil
			case <-tick:
			}
		}
	}
}

func (f *FileDevice) Stop() error {
	f.once.Do(func() { close(f.stop) })
	return nil
}

func (f *FileDevice) Close() error {
	return f.readFile.Close()
}

func (f *FileDevice) MaxSampleRate() int {
	return 20e6
}

// wavReader presents a stereo WAV capture as u8 I/Q bytes.
type wavReader struct {
	dec      *wav.Decoder
	bitDepth int
	buf      *audio.IntBuffer
	pending  []byte
}

func newWAVReader(dec *wav.Decoder) (*wavReader, error) {
	if dec.NumChans != 2 {
		return nil, fmt.Errorf("wav capture must have 2 channels (I and Q), has %d", dec.NumChans)
	}
	if dec.BitDepth != 8 && dec.BitDepth != 16 {
		return nil, fmt.Errorf("wav capture must be 8 or 16 bit, is %d", dec.BitDepth)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, err
	}
	return &wavReader{
		dec:      dec,
		bitDepth: int(dec.BitDepth),
		buf: &audio.IntBuffer{
			Format: dec.Format(),
			Data:   make([]int, 8192),
		},
	}, nil
}

func (w *wavReader) Read(p []byte) (int, error) {
	if len(w.pending) == 0 {
		n, err := w.dec.PCMBuffer(w.buf)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		w.pending = w.pending[:0]
		for _, v := range w.buf.Data[:n] {
			w.pending = append(w.pending, toU8(v, w.bitDepth))
		}
	}
	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

func toU8(v, bitDepth int) byte {
	if bitDepth == 16 {
		return byte((v >> 8) + 128)
	}
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return byte(v)
}
