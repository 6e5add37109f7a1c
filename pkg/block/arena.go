package block

import "fmt"

// Arena carves every Raw and PCM block of one pipeline out of two backing
// allocations made at startup.
type Arena struct {
	raw []Raw
	pcm []PCM
}

// NewArena allocates count raw blocks of rawCap bytes and count PCM blocks of
// rawCap/2 samples.
func NewArena(rawCap, count int) (*Arena, error) {
	if rawCap <= 0 || rawCap%2 != 0 {
		return nil, fmt.Errorf("raw block capacity must be a positive even number, got %d", rawCap)
	}
	if count <= 0 {
		return nil, fmt.Errorf("block count must be positive, got %d", count)
	}

	pcmCap := rawCap / 2
	rawBacking := make([]byte, rawCap*count)
	pcmBacking := make([]int16, pcmCap*count)

	a := &Arena{
		raw: make([]Raw, count),
		pcm: make([]PCM, count),
	}
	for i := 0; i < count; i++ {
		a.raw[i].Data = rawBacking[i*rawCap : (i+1)*rawCap : (i+1)*rawCap]
		a.pcm[i].Data = pcmBacking[i*pcmCap : (i+1)*pcmCap : (i+1)*pcmCap]
	}

	return a, nil
}

// Raw returns the i-th raw block.
func (a *Arena) Raw(i int) *Raw {
	return &a.raw[i]
}

// PCM returns the i-th PCM block.
func (a *Arena) PCM(i int) *PCM {
	return &a.pcm[i]
}

func (a *Arena) Len() int {
	return len(a.raw)
}
