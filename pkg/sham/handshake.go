package sham

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/datawire/dlib/dlog"
)

// handshakeAttempts bounds the number of SYN (or SYN-ACK) transmissions,
// each followed by one RTO of waiting, that the handshake itself performs
// before giving up (Close reuses it for its FIN), resolving §9 Open Question 1:
// since control packets are exempt from simulated loss (datagramio.go), a
// real network drop of a handshake packet is still possible and the
// handshake needs its own bounded retry rather than relying on the data
// pipeline's RTO machinery, which only starts once ESTABLISHED.
const handshakeAttempts = 3

// Connect performs the active-open three-way handshake of §4.3, resolving
// host:port, sending a SYN, and waiting for a matching SYN-ACK.
func Connect(ctx context.Context, c *Connection, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Closed {
		return InvalidState.Newf("connect called in state %s", c.state)
	}

	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return HandshakeFailed.New(err)
	}
	c.io.setPeer(addr)

	isn := generateISN()
	c.sendSeq = isn
	c.setState(SynSent)

	syn := Packet{Seq: isn, Ack: 0, Flags: FlagSYN, WindowSize: c.advertisedWindow()}

	for attempt := 0; attempt < handshakeAttempts; attempt++ {
		if err := c.io.send(syn); err != nil {
			c.setState(Closed)
			return HandshakeFailed.New(err)
		}
		c.trace.Event("SND SYN SEQ=%d", isn)
		dlog.Debugf(ctx, "sham %s: sent SYN seq=%d (attempt %d)", c.id, isn, attempt+1)

		res, err := c.io.receive(ctx, RTOMillis*time.Millisecond)
		if err != nil {
			c.setState(Closed)
			return HandshakeFailed.New(err)
		}
		if res.timeout {
			continue
		}
		p := res.packet
		if p.HasFlag(FlagSYN) && p.HasFlag(FlagACK) && p.Ack == seqAdd(isn, 1) {
			c.trace.Event("RCV SYN-ACK SEQ=%d ACK=%d", p.Seq, p.Ack)
			dlog.Debugf(ctx, "sham %s: got SYN-ACK seq=%d ack=%d", c.id, p.Seq, p.Ack)

			// Migrate to the address the SYN-ACK actually arrived from: a
			// passive-opened peer answers from a fresh per-connection
			// socket (§9 re-architecture guidance, option (a)).
			if res.from != nil {
				c.io.setPeer(res.from)
			}

			c.recvSeq = seqAdd(p.Seq, 1)
			c.sendSeq = seqAdd(isn, 1)
			c.peerWindowSize = p.WindowSize

			ack := Packet{Seq: c.sendSeq, Ack: c.recvSeq, Flags: FlagACK, WindowSize: c.advertisedWindow()}
			if err := c.io.send(ack); err != nil {
				c.setState(Closed)
				return HandshakeFailed.New(err)
			}
			c.trace.Event("SND ACK=%d", c.recvSeq)

			c.sendBase = c.sendSeq
			c.lastByteSent = c.sendSeq
			c.lastByteAcked = c.sendSeq
			c.setState(Established)
			return nil
		}
		dlog.Debugf(ctx, "sham %s: ignoring unexpected packet during handshake: %s", c.id, p)
	}

	c.setState(Closed)
	return HandshakeFailed.New("no SYN-ACK received within handshake retry budget")
}

