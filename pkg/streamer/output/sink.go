// Package output contains the Stream Sinks that PCM blocks are written to.
// Every sink receives raw signed 16-bit little-endian mono samples.
package output

import (
	"context"

	"github.com/norasector/fmstream/pkg/block"
)

type Sink interface {
	Name() string
	// Write sends one block. The block is only valid for the duration of
	// the call.
	Write(pcm *block.PCM) error
	Close() error
}

// Runner is implemented by sinks with background work, such as accepting
// connections. Start blocks until ctx is done.
type Runner interface {
	Start(ctx context.Context) error
}

// ClientCounter is implemented by sinks that serve network clients.
type ClientCounter interface {
	Clients() int
}
