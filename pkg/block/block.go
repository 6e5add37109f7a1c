// Package block holds the fixed-capacity sample containers that move between
// pipeline stages.
package block

import "encoding/binary"

// Raw is a block of interleaved unsigned 8-bit I/Q samples as delivered by a
// tuner. Data is allocated once and never resized; Len is the valid prefix.
type Raw struct {
	Data      []byte
	Len       int
	Seq       uint64
	Epoch     uint64
	Frequency int
}

// Bytes returns the valid portion of the block.
func (r *Raw) Bytes() []byte {
	return r.Data[:r.Len]
}

// Cap is the fixed capacity of the block in bytes.
func (r *Raw) Cap() int {
	return len(r.Data)
}

// Fill copies as much of src as fits and returns the number of bytes taken.
func (r *Raw) Fill(src []byte) int {
	r.Len = copy(r.Data, src)
	return r.Len
}

// PCM is a block of signed 16-bit mono samples.
type PCM struct {
	Data      []int16
	Len       int
	Rate      int
	Seq       uint64
	Epoch     uint64
	Frequency int
}

func (p *PCM) Samples() []int16 {
	return p.Data[:p.Len]
}

func (p *PCM) Cap() int {
	return len(p.Data)
}

// Silence zeroes the valid samples.
func (p *PCM) Silence() {
	for i := range p.Data[:p.Len] {
		p.Data[i] = 0
	}
}

// AppendLE appends the samples to dst as raw little-endian s16 bytes.
func (p *PCM) AppendLE(dst []byte) []byte {
	for _, s := range p.Data[:p.Len] {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}
