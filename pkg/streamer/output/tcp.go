package output

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/norasector/fmstream/pkg/block"
)

const writeTimeout = 5 * time.Second

// TCPSink serves the raw PCM stream to every connected TCP client. Clients
// that cannot keep up miss blocks.
type TCPSink struct {
	ln     net.Listener
	hub    *hub
	logger zerolog.Logger
	buf    []byte
}

// NewTCPSink listens on addr immediately so that a bad address fails
// startup.
func NewTCPSink(addr string, logger zerolog.Logger) (*TCPSink, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &TCPSink{
		ln:     ln,
		hub:    newHub(),
		logger: logger,
	}, nil
}

func (s *TCPSink) Name() string {
	return "tcp:" + s.ln.Addr().String()
}

func (s *TCPSink) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *TCPSink) Clients() int {
	return s.hub.count()
}

func (s *TCPSink) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	s.logger.Info().Str("addr", s.ln.Addr().String()).Msg("tcp stream listening")
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			continue
		}
		c := s.hub.add(conn.RemoteAddr().String())
		s.logger.Info().Str("client", c.id.String()).Str("remote", c.addr).Msg("tcp client connected")
		go s.serve(conn, c)
	}
}

func (s *TCPSink) serve(conn net.Conn, c *client) {
	defer conn.Close()
	for b := range c.send {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := conn.Write(b); err != nil {
			s.logger.Info().Err(err).Str("client", c.id.String()).Msg("tcp client disconnected")
			s.hub.remove(c)
			return
		}
	}
}

func (s *TCPSink) Write(pcm *block.PCM) error {
	s.buf = pcm.AppendLE(s.buf[:0])
	s.hub.broadcast(s.buf)
	return nil
}

func (s *TCPSink) Close() error {
	s.hub.closeAll()
	err := s.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
