package output

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/norasector/fmstream/pkg/block"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketSink streams raw PCM to browsers as binary messages, one block
// per message. It is an http.Handler mounted on the control server.
type WebSocketSink struct {
	name   string
	hub    *hub
	logger zerolog.Logger
	buf    []byte
}

func NewWebSocketSink(name string, logger zerolog.Logger) *WebSocketSink {
	return &WebSocketSink{
		name:   name,
		hub:    newHub(),
		logger: logger,
	}
}

func (s *WebSocketSink) Name() string {
	return "websocket:" + s.name
}

func (s *WebSocketSink) Clients() int {
	return s.hub.count()
}

func (s *WebSocketSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	c := s.hub.add(r.RemoteAddr)
	s.logger.Info().Str("client", c.id.String()).Str("remote", c.addr).Msg("websocket client connected")

	// Reads only serve to notice the client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.remove(c)
				return
			}
		}
	}()

	for b := range c.send {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
			s.hub.remove(c)
			break
		}
	}
	s.logger.Info().Str("client", c.id.String()).Msg("websocket client disconnected")
}

func (s *WebSocketSink) Write(pcm *block.PCM) error {
	s.buf = pcm.AppendLE(s.buf[:0])
	s.hub.broadcast(s.buf)
	return nil
}

func (s *WebSocketSink) Close() error {
	s.hub.closeAll()
	return nil
}
