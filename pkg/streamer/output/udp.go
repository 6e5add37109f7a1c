package output

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/norasector/fmstream/pkg/block"
)

// Frame field numbers on the wire.
const (
	fieldSeq       protowire.Number = 1
	fieldEpoch     protowire.Number = 2
	fieldRate      protowire.Number = 3
	fieldFrequency protowire.Number = 4
	fieldPCM       protowire.Number = 5
)

// maxFrameSamples keeps each datagram well under the UDP payload limit.
const maxFrameSamples = 16000

// Frame is one datagram of the UDP stream. PCM holds raw s16le mono bytes.
type Frame struct {
	Seq       uint64
	Epoch     uint64
	Rate      int
	Frequency int
	PCM       []byte
}

// AppendFrame encodes f behind a little-endian uint16 length prefix.
func AppendFrame(dst []byte, f Frame) []byte {
	start := len(dst)
	dst = append(dst, 0, 0)
	dst = protowire.AppendTag(dst, fieldSeq, protowire.VarintType)
	dst = protowire.AppendVarint(dst, f.Seq)
	dst = protowire.AppendTag(dst, fieldEpoch, protowire.VarintType)
	dst = protowire.AppendVarint(dst, f.Epoch)
	dst = protowire.AppendTag(dst, fieldRate, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(f.Rate))
	dst = protowire.AppendTag(dst, fieldFrequency, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(f.Frequency))
	dst = protowire.AppendTag(dst, fieldPCM, protowire.BytesType)
	dst = protowire.AppendBytes(dst, f.PCM)
	binary.LittleEndian.PutUint16(dst[start:], uint16(len(dst)-start-2))
	return dst
}

// DecodeFrame parses one length-prefixed frame. Unknown fields are skipped.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	if len(b) < 2 {
		return f, errors.New("frame too short")
	}
	size := int(binary.LittleEndian.Uint16(b))
	b = b[2:]
	if len(b) < size {
		return f, fmt.Errorf("frame truncated: header says %d bytes, have %d", size, len(b))
	}
	b = b[:size]

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return f, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return f, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case fieldSeq:
				f.Seq = v
			case fieldEpoch:
				f.Epoch = v
			case fieldRate:
				f.Rate = int(v)
			case fieldFrequency:
				f.Frequency = int(v)
			}
		case typ == protowire.BytesType && num == fieldPCM:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return f, protowire.ParseError(n)
			}
			b = b[n:]
			f.PCM = v
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return f, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return f, nil
}

// UDPSink sends every block to a fixed destination as framed datagrams.
type UDPSink struct {
	dest *net.UDPAddr
	conn *net.UDPConn
	pcm  []byte
	msg  []byte
}

func NewUDPSink(host string, port int) (*UDPSink, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no IPs returned for %s", host)
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, err
	}
	return &UDPSink{
		dest: &net.UDPAddr{IP: ips[0], Port: port},
		conn: conn,
	}, nil
}

func (s *UDPSink) Name() string {
	return "udp:" + s.dest.String()
}

func (s *UDPSink) Write(pcm *block.PCM) error {
	s.pcm = pcm.AppendLE(s.pcm[:0])
	for off := 0; off < len(s.pcm); off += maxFrameSamples * 2 {
		end := off + maxFrameSamples*2
		if end > len(s.pcm) {
			end = len(s.pcm)
		}
		s.msg = AppendFrame(s.msg[:0], Frame{
			Seq:       pcm.Seq,
			Epoch:     pcm.Epoch,
			Rate:      pcm.Rate,
			Frequency: pcm.Frequency,
			PCM:       s.pcm[off:end],
		})
		if _, err := s.conn.WriteToUDP(s.msg, s.dest); err != nil {
			return err
		}
	}
	return nil
}

func (s *UDPSink) Close() error {
	return s.conn.Close()
}
