package streamer

import (
	"sync"

	"github.com/norasector/fmstream/pkg/block"
	"github.com/norasector/fmstream/pkg/metrics"
)

// muteByte is the u8 value closest to zero amplitude.
const muteByte = 127

// acquirer turns device callbacks into Raw blocks. onBlock runs on the
// device's goroutine; beginEpoch runs on the controller's.
type acquirer struct {
	slot        *Slot[*block.Raw]
	spare       *block.Raw
	blockLength int
	seq         uint64
	metrics     *metrics.Pipeline

	mu        sync.Mutex
	epoch     uint64
	frequency int
	mute      int
}

func newAcquirer(slot *Slot[*block.Raw], spare *block.Raw, blockLength int, m *metrics.Pipeline) *acquirer {
	if blockLength <= 0 || blockLength > spare.Cap() {
		blockLength = spare.Cap()
	}
	return &acquirer{
		slot:        slot,
		spare:       spare,
		blockLength: blockLength,
		metrics:     m,
	}
}

// beginEpoch marks every block captured from now on as belonging to freq and
// mutes the first bytes while the tuner settles.
func (a *acquirer) beginEpoch(freq int) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.epoch++
	a.frequency = freq
	a.mute = bufferDump
	return a.epoch
}

func (a *acquirer) current() (epoch uint64, freq int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epoch, a.frequency
}

func (a *acquirer) onBlock(buf []byte) {
	for len(buf) > 0 {
		n := len(buf)
		if n > a.blockLength {
			n = a.blockLength
		}
		a.spare.Fill(buf[:n])
		buf = buf[n:]

		a.mu.Lock()
		epoch, freq := a.epoch, a.frequency
		mute := a.mute
		if mute > n {
			mute = n
		}
		a.mute -= mute
		a.mu.Unlock()

		data := a.spare.Bytes()
		for i := 0; i < mute; i++ {
			data[i] = muteByte
		}

		a.seq++
		a.spare.Seq = a.seq
		a.spare.Epoch = epoch
		a.spare.Frequency = freq

		spare, overwrote := a.slot.Put(a.spare)
		a.spare = spare
		a.metrics.BlocksAcquired.Inc()
		if overwrote {
			a.metrics.RawOverwrites.Inc()
		}
	}
}
