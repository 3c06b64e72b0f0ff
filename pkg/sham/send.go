package sham

import (
	"context"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/dlib/dtime"
)

// pollInterval is how long drainACKs waits for an already-buffered
// datagram before concluding there is nothing more to read right now; it
// approximates the "readiness poll with timeout=0" suspension point of §5.
const pollInterval = time.Microsecond

// windowSleep and flowSleep are the §4.4 step 3/5 cooperative backoff
// sleeps when the window is saturated or flow control forbids sending.
const (
	windowSleep = time.Millisecond
	flowSleep   = 10 * time.Millisecond
)

// Send blocks until every byte of data has been transmitted and
// acknowledged by the peer, per the §6 byte-stream contract. It returns the
// number of bytes sent (always len(data) on success) or a Kind-tagged error
// (InvalidState, PeerUnreachable, SocketFailure).
func Send(ctx context.Context, c *Connection, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Established {
		return 0, InvalidState.Newf("send called in state %s", c.state)
	}

	bytesSent := 0
	for bytesSent < len(data) {
		if err := c.drainACKs(ctx); err != nil {
			return bytesSent, err
		}
		if err := c.timeoutSweep(ctx); err != nil {
			return bytesSent, err
		}
		if c.windowCount == len(c.sendWindow) {
			dtime.SleepWithContext(ctx, windowSleep)
			continue
		}

		remaining := len(data) - bytesSent
		chunk := remaining
		if chunk > c.cfg.MSS {
			chunk = c.cfg.MSS
		}
		if !c.canSendData(chunk) {
			dtime.SleepWithContext(ctx, flowSleep)
			continue
		}

		seg := Packet{
			Seq:        c.sendSeq,
			Ack:        c.recvSeq,
			Flags:      0,
			WindowSize: c.advertisedWindow(),
			Payload:    append([]byte(nil), data[bytesSent:bytesSent+chunk]...),
		}
		if err := c.io.send(seg); err != nil {
			return bytesSent, err
		}
		c.trace.Event("SND DATA SEQ=%d LEN=%d", seg.Seq, len(seg.Payload))
		c.metrics.dataSegmentSent()
		dlog.Debugf(ctx, "sham %s: sent DATA seq=%d len=%d", c.id, seg.Seq, len(seg.Payload))

		idx := (c.windowStart + c.windowCount) % len(c.sendWindow)
		c.sendWindow[idx] = windowEntry{packet: seg, sendTime: nowMillis()}
		c.windowCount++
		c.metrics.setWindowCount(c.windowCount)

		c.sendSeq = seqAdd(c.sendSeq, chunk)
		c.lastByteSent = seqAdd(c.lastByteSent, chunk)
		bytesSent += chunk
	}

	for c.windowCount > 0 {
		if err := c.drainACKs(ctx); err != nil {
			return bytesSent, err
		}
		if err := c.timeoutSweep(ctx); err != nil {
			return bytesSent, err
		}
		if c.windowCount > 0 {
			dtime.SleepWithContext(ctx, windowSleep)
		}
	}
	return bytesSent, nil
}

// drainACKs reads and applies every ACK currently available without
// blocking (§4.4 step 1).
func (c *Connection) drainACKs(ctx context.Context) error {
	for {
		res, err := c.io.receive(ctx, pollInterval)
		if err != nil {
			return err
		}
		if res.timeout {
			return nil
		}
		p := res.packet
		if p.HasFlag(FlagACK) {
			c.processAck(ctx, p)
		}
	}
}

// processAck applies a cumulative ACK to the send window (§4.4.1).
// Duplicate ACKs are idempotent: re-applying the same ack_num is a no-op
// beyond updating peer_window_size.
func (c *Connection) processAck(ctx context.Context, p Packet) {
	c.peerWindowSize = p.WindowSize
	if seqLess(c.lastByteAcked, p.Ack) {
		c.lastByteAcked = p.Ack
	}
	for c.windowCount > 0 {
		entry := &c.sendWindow[c.windowStart]
		packetEnd := entry.packet.end()
		if !seqLessEq(packetEnd, p.Ack) {
			break
		}
		entry.acked = true
		c.sendBase = packetEnd
		c.windowStart = (c.windowStart + 1) % len(c.sendWindow)
		c.windowCount--
	}
	c.metrics.setWindowCount(c.windowCount)
	dlog.Debugf(ctx, "sham %s: processed ACK=%d win=%d, send_base now %d", c.id, p.Ack, p.WindowSize, c.sendBase)
}

// timeoutSweep retransmits any unacked window entry older than one RTO,
// failing the connection with PeerUnreachable once an entry's retry
// budget is exhausted (§4.4.2).
func (c *Connection) timeoutSweep(ctx context.Context) error {
	for i := 0; i < c.windowCount; i++ {
		idx := (c.windowStart + i) % len(c.sendWindow)
		entry := &c.sendWindow[idx]
		if entry.acked || !isTimeout(entry.sendTime, c.cfg.RTOMillis) {
			continue
		}
		if entry.retries >= c.cfg.MaxRetries {
			c.trace.Event("TIMEOUT SEQ=%d", entry.packet.Seq)
			return PeerUnreachable.Newf("max retries exceeded for seq=%d", entry.packet.Seq)
		}
		c.trace.Event("TIMEOUT SEQ=%d", entry.packet.Seq)
		if err := c.io.send(entry.packet); err != nil {
			return err
		}
		entry.retries++
		entry.sendTime = nowMillis()
		c.metrics.retransmit()
		c.trace.Event("RETX DATA SEQ=%d LEN=%d", entry.packet.Seq, len(entry.packet.Payload))
		dlog.Debugf(ctx, "sham %s: retransmitted seq=%d attempt=%d", c.id, entry.packet.Seq, entry.retries)
	}
	return nil
}

// canSendData reports whether a segment of length n may be sent under the
// current flow-control window, per the §4.5 can-send predicate.
func (c *Connection) canSendData(n int) bool {
	inFlight := c.bytesInFlight()
	var available uint32
	if uint32(c.peerWindowSize) > inFlight {
		available = uint32(c.peerWindowSize) - inFlight
	}
	return uint32(n) <= available
}
