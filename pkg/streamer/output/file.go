package output

import (
	"fmt"
	"io"
	"os"

	"github.com/norasector/fmstream/pkg/block"
)

// FileSink writes raw PCM to a file, a pipe or stdout.
type FileSink struct {
	name   string
	dest   io.Writer
	closer io.Closer
	buf    []byte
}

// NewFileSink opens path for writing. "-" is stdout.
func NewFileSink(path string) (*FileSink, error) {
	if path == "-" {
		return NewWriterSink("stdout", os.Stdout), nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	s := NewWriterSink("file:"+path, f)
	s.closer = f
	return s, nil
}

// NewWriterSink writes to dest, which is not closed by Close.
func NewWriterSink(name string, dest io.Writer) *FileSink {
	return &FileSink{
		name: name,
		dest: dest,
	}
}

func (s *FileSink) Name() string {
	return s.name
}

func (s *FileSink) Write(pcm *block.PCM) error {
	s.buf = pcm.AppendLE(s.buf[:0])
	_, err := s.dest.Write(s.buf)
	return err
}

func (s *FileSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
