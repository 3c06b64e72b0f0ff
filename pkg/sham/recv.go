package sham

import (
	"context"
	"io"
	"time"

	"github.com/datawire/dlib/dlog"
)

// Recv blocks until at least one byte has been delivered in order, or the
// per-packet timeout expires (one RTO with no inbound packet), per §4.5.
// It returns 0 with a nil error on a bare timeout, n (possibly 0) with
// io.EOF once the peer's FIN has been observed — following the ordinary
// io.Reader convention of allowing a final n>0 read to carry io.EOF in the
// same call — and a Kind-tagged error on protocol failure.
func Recv(ctx context.Context, c *Connection, buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Established {
		return 0, InvalidState.Newf("recv called in state %s", c.state)
	}

	bytesReceived := 0
	for bytesReceived < len(buf) {
		res, err := c.io.receive(ctx, RTOMillis*time.Millisecond)
		if err != nil {
			return bytesReceived, err
		}
		if res.timeout {
			break
		}
		p := res.packet

		if p.HasFlag(FlagFIN) {
			c.recvSeq = seqAdd(p.Seq, 1)
			c.peerFinObserved = true
			ack := Packet{Seq: c.sendSeq, Ack: c.recvSeq, Flags: FlagACK, WindowSize: c.advertisedWindow()}
			_ = c.io.send(ack)
			c.trace.Event("RCV FIN")
			c.trace.Event("SND ACK FOR FIN")
			return bytesReceived, io.EOF
		}

		if p.HasFlag(FlagACK) && len(p.Payload) == 0 {
			// Bidirectional traffic can interleave the peer's ACKs of our
			// sends with the data we're waiting for here; apply them and
			// keep waiting within the same call.
			c.processAck(ctx, p)
			continue
		}

		if len(p.Payload) == 0 {
			continue
		}

		switch {
		case p.Seq == c.recvSeq:
			bytesReceived = c.deliverInOrder(ctx, p, buf, bytesReceived)
		case seqLess(c.recvSeq, p.Seq):
			c.bufferOOO(p)
			dlog.Debugf(ctx, "sham %s: buffered out-of-order seq=%d", c.id, p.Seq)
		default:
			// seq < recv_seq: already delivered, drop the payload; the ACK
			// below is still sent.
			dlog.Debugf(ctx, "sham %s: dropping already-delivered seq=%d", c.id, p.Seq)
		}

		ack := Packet{Seq: c.sendSeq, Ack: c.recvSeq, Flags: FlagACK, WindowSize: c.advertisedWindow()}
		if err := c.io.send(ack); err != nil {
			return bytesReceived, err
		}
		c.metrics.ackSent()
		c.trace.Event("SND ACK=%d", c.recvSeq)
	}
	return bytesReceived, nil
}

// deliverInOrder copies an in-order data packet into buf, advances
// recv_seq, then drains any now-contiguous out-of-order entries (§4.5).
func (c *Connection) deliverInOrder(ctx context.Context, p Packet, buf []byte, bytesReceived int) int {
	L := len(p.Payload)
	c.recvBufferUsed += L
	copyLen := len(p.Payload)
	if space := len(buf) - bytesReceived; copyLen > space {
		copyLen = space
	}
	copy(buf[bytesReceived:], p.Payload[:copyLen])
	delivered := copyLen
	c.recvSeq = seqAdd(c.recvSeq, L)
	c.trace.Event("RCV DATA SEQ=%d LEN=%d", p.Seq, L)
	c.metrics.dataSegmentReceived()
	dlog.Debugf(ctx, "sham %s: delivered in-order seq=%d len=%d", c.id, p.Seq, L)

	bytesReceived += copyLen
	bytesReceived, delivered2 := c.drainOOO(ctx, buf, bytesReceived)
	delivered += delivered2

	if delivered > c.recvBufferUsed {
		c.recvBufferUsed = 0
	} else {
		c.recvBufferUsed -= delivered
	}
	c.metrics.setRecvBufferUsed(c.recvBufferUsed)
	return bytesReceived
}

// drainOOO repeatedly scans the out-of-order buffer for the slot matching
// the current recv_seq, delivering it and advancing recv_seq, until no
// slot matches (§4.5's OOO drain).
func (c *Connection) drainOOO(ctx context.Context, buf []byte, bytesReceived int) (int, int) {
	delivered := 0
	for {
		idx := c.findOOO(c.recvSeq)
		if idx < 0 {
			return bytesReceived, delivered
		}
		entry := &c.oooBuffer[idx]
		L := len(entry.packet.Payload)
		copyLen := L
		if space := len(buf) - bytesReceived; copyLen > space {
			copyLen = space
		}
		copy(buf[bytesReceived:], entry.packet.Payload[:copyLen])
		bytesReceived += copyLen
		delivered += copyLen
		c.recvSeq = seqAdd(c.recvSeq, L)
		entry.valid = false
		dlog.Debugf(ctx, "sham %s: delivered buffered seq=%d len=%d", c.id, entry.packet.Seq, L)
	}
}

func (c *Connection) findOOO(seq uint32) int {
	for i := range c.oooBuffer {
		if c.oooBuffer[i].valid && c.oooBuffer[i].packet.Seq == seq {
			return i
		}
	}
	return -1
}

// bufferOOO stores an out-of-order packet in the first free slot,
// dropping it silently if the buffer is full (§4.5, §7 BufferFull —
// recovered locally by relying on the sender's RTO).
func (c *Connection) bufferOOO(p Packet) {
	for i := range c.oooBuffer {
		if !c.oooBuffer[i].valid {
			c.oooBuffer[i] = oooEntry{packet: p, valid: true}
			return
		}
	}
}
