package output

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/norasector/fmstream/pkg/block"
)

// WAVSink records PCM into a 16-bit mono WAV file. The header is finalised
// on Close.
type WAVSink struct {
	path string
	f    *os.File
	enc  *wav.Encoder
	buf  *audio.IntBuffer
}

func NewWAVSink(path string, sampleRate int) (*WAVSink, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav sample rate must be positive, got %d", sampleRate)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return &WAVSink{
		path: path,
		f:    f,
		enc:  wav.NewEncoder(f, sampleRate, 16, 1, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

func (s *WAVSink) Name() string {
	return "wav:" + s.path
}

func (s *WAVSink) Write(pcm *block.PCM) error {
	data := s.buf.Data[:0]
	for _, v := range pcm.Samples() {
		data = append(data, int(v))
	}
	s.buf.Data = data
	return s.enc.Write(s.buf)
}

func (s *WAVSink) Close() error {
	if err := s.enc.Close(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
