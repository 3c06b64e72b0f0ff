package sham

import (
	"encoding/binary"
	"fmt"
)

// Protocol-wide constants, grounded on sham.h.
const (
	headerSize    = 12
	// MSS is the maximum segment size: payload bytes per data packet.
	MSS = 1024
	// MaxDatagramSize is the largest wire datagram this protocol ever sends.
	MaxDatagramSize = headerSize + MSS
	// Window is the sender's window capacity in segments (W in the GLOSSARY).
	Window = 10
	// RTOMillis is the fixed retransmission timeout.
	RTOMillis = 500
	// MaxRetries is the retransmit budget per window entry.
	MaxRetries = 5
	// DefaultRecvBufferSize is the default advertised receive-buffer budget.
	DefaultRecvBufferSize = 16 * 1024
)

// Flag bits, per §3.
const (
	FlagSYN uint16 = 0x1
	FlagACK uint16 = 0x2
	FlagFIN uint16 = 0x4
)

// Packet is the in-memory, host-order representation of a wire packet.
// Per §9 Open Question 4, segments are stored in this host-order form
// everywhere except at the moment of egress/ingress; Encode/Decode are the
// only byte-swapping boundary.
type Packet struct {
	Seq        uint32
	Ack        uint32
	Flags      uint16
	WindowSize uint16
	Payload    []byte
}

func (p Packet) HasFlag(f uint16) bool {
	return p.Flags&f != 0
}

func (p Packet) String() string {
	return fmt.Sprintf("seq=%d ack=%d flags=%#x win=%d len=%d", p.Seq, p.Ack, p.Flags, p.WindowSize, len(p.Payload))
}

// end returns the sequence number one past the last payload byte of a
// data-bearing packet.
func (p Packet) end() uint32 {
	return seqAdd(p.Seq, len(p.Payload))
}

// Encode serializes p into wire format: a fixed 12-byte big-endian header
// followed by the payload. The caller must ensure len(p.Payload) <= MSS.
func Encode(p Packet) []byte {
	buf := make([]byte, headerSize+len(p.Payload))
	binary.BigEndian.PutUint32(buf[0:4], p.Seq)
	binary.BigEndian.PutUint32(buf[4:8], p.Ack)
	binary.BigEndian.PutUint16(buf[8:10], p.Flags)
	binary.BigEndian.PutUint16(buf[10:12], p.WindowSize)
	copy(buf[headerSize:], p.Payload)
	return buf
}

// Decode parses a wire-format datagram into a Packet. It fails with a
// MalformedDatagram error if the buffer is shorter than the header or the
// implied payload exceeds MSS.
func Decode(buf []byte) (Packet, error) {
	if len(buf) < headerSize {
		return Packet{}, MalformedDatagram.Newf("datagram too short: %d bytes", len(buf))
	}
	payloadLen := len(buf) - headerSize
	if payloadLen > MSS {
		return Packet{}, MalformedDatagram.Newf("payload too large: %d bytes", payloadLen)
	}
	p := Packet{
		Seq:        binary.BigEndian.Uint32(buf[0:4]),
		Ack:        binary.BigEndian.Uint32(buf[4:8]),
		Flags:      binary.BigEndian.Uint16(buf[8:10]),
		WindowSize: binary.BigEndian.Uint16(buf[10:12]),
	}
	if payloadLen > 0 {
		p.Payload = make([]byte, payloadLen)
		copy(p.Payload, buf[headerSize:])
	}
	return p, nil
}
