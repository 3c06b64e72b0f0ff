package sham

import (
	"context"
	"time"

	"github.com/datawire/dlib/dlog"
)

// Close performs the active-close half of §4.6: send FIN, wait for the
// peer's ACK of it, then wait for the peer's own FIN and acknowledge it,
// before releasing the socket. It tolerates the peer's FIN and ACK
// arriving in either order or combined, since nothing in §4.6 requires a
// strict ordering beyond "both directions must be acknowledged."
func Close(ctx context.Context, c *Connection) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Established {
		return InvalidState.Newf("close called in state %s", c.state)
	}

	finSeq := c.sendSeq
	fin := Packet{Seq: finSeq, Ack: c.recvSeq, Flags: FlagFIN, WindowSize: c.advertisedWindow()}
	c.setState(FinWait1)

	ackSeen := false
	// A passive closer that already drained the peer's FIN via Recv (which
	// returns io.EOF the moment it sees one) will never see a second one;
	// seed finSeen from that prior observation so Close only has to wait on
	// the ack of its own FIN in that case.
	finSeen := c.peerFinObserved

	for attempt := 0; attempt < handshakeAttempts && !(ackSeen && finSeen); attempt++ {
		if err := c.io.send(fin); err != nil {
			return ShutdownFailed.New(err)
		}
		c.trace.Event("SND FIN")
		dlog.Debugf(ctx, "sham %s: sent FIN seq=%d (attempt %d)", c.id, finSeq, attempt+1)

		deadline := nowMillis() + RTOMillis
		for !(ackSeen && finSeen) && nowMillis() < deadline {
			res, err := c.io.receive(ctx, time.Duration(deadline-nowMillis())*time.Millisecond)
			if err != nil {
				return ShutdownFailed.New(err)
			}
			if res.timeout {
				break
			}
			p := res.packet

			if p.HasFlag(FlagFIN) {
				c.recvSeq = seqAdd(p.Seq, 1)
				c.peerFinObserved = true
				finAck := Packet{Seq: c.sendSeq, Ack: c.recvSeq, Flags: FlagACK, WindowSize: c.advertisedWindow()}
				if err := c.io.send(finAck); err != nil {
					return ShutdownFailed.New(err)
				}
				c.trace.Event("RCV FIN")
				c.trace.Event("SND ACK FOR FIN")
				finSeen = true
				continue
			}
			if p.HasFlag(FlagACK) && p.Ack == seqAdd(finSeq, 1) {
				ackSeen = true
				c.setState(FinWait2)
				dlog.Debugf(ctx, "sham %s: FIN acked", c.id)
			}
		}
	}

	c.setState(Closed)
	if err := c.closeSocket(); err != nil {
		return ShutdownFailed.New(err)
	}
	if !ackSeen || !finSeen {
		// Best-effort teardown: the local socket is released either way,
		// since holding it open serves nothing once the retry budget is
		// spent (mirrors the handshake's bounded-retry philosophy).
		return ShutdownFailed.Newf("shutdown incomplete: ack_seen=%v fin_seen=%v", ackSeen, finSeen)
	}
	return nil
}
