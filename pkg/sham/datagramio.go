package sham

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"github.com/datawire/dlib/dlog"
)

// datagramIO wraps a single UDP socket and the peer address currently
// associated with a connection (§4.2). It is not safe for concurrent use;
// exactly one goroutine drives a connection's send/receive loop at a time,
// per §5.
type datagramIO struct {
	conn     *net.UDPConn
	peerAddr *net.UDPAddr
	lossRate float64
	invalid  bool
	trace    *Trace
	metrics  *Metrics
}

func newDatagramIO(conn *net.UDPConn, lossRate float64, trace *Trace, metrics *Metrics) *datagramIO {
	return &datagramIO{conn: conn, lossRate: lossRate, trace: trace, metrics: metrics}
}

// setPeer adopts addr as the peer for subsequent egress sends. Once set it
// is never cleared for the lifetime of the connection.
func (d *datagramIO) setPeer(addr *net.UDPAddr) {
	d.peerAddr = addr
}

// send serializes and transmits p to the current peer address.
func (d *datagramIO) send(p Packet) error {
	if d.peerAddr == nil {
		return SocketFailure.New("send with no peer address set")
	}
	buf := Encode(p)
	_, err := d.conn.WriteToUDP(buf, d.peerAddr)
	if err != nil {
		if isFatalSocketErr(err) {
			d.invalid = true
			return SocketFailure.New(err)
		}
		return err
	}
	return nil
}

// ingressResult distinguishes a decoded packet from a transient
// no-packet condition (timeout or simulated loss), per §4.2.
type ingressResult struct {
	packet  Packet
	from    *net.UDPAddr
	timeout bool
}

// receive blocks (up to deadline if non-zero) for one inbound datagram,
// applying simulated loss to data-bearing packets only (§4.2 step 2;
// control packets are exempted per the §9 Open Question 1 resolution in
// SPEC_FULL.md). The first datagram received adopts its source as the
// peer address if none is set yet.
func (d *datagramIO) receive(ctx context.Context, timeout time.Duration) (ingressResult, error) {
	if d.invalid {
		return ingressResult{}, SocketFailure.New("socket is invalid")
	}
	buf := make([]byte, MaxDatagramSize)
	if timeout > 0 {
		if err := d.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return ingressResult{}, SocketFailure.New(err)
		}
	} else {
		_ = d.conn.SetReadDeadline(time.Time{})
	}
	n, from, err := d.conn.ReadFromUDP(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return ingressResult{timeout: true}, nil
		}
		if ctx.Err() != nil {
			return ingressResult{timeout: true}, nil
		}
		if isFatalSocketErr(err) {
			d.invalid = true
			return ingressResult{}, SocketFailure.New(err)
		}
		return ingressResult{timeout: true}, nil
	}
	p, decErr := Decode(buf[:n])
	if decErr != nil {
		dlog.Debugf(ctx, "dropping malformed datagram from %s: %v", from, decErr)
		return ingressResult{timeout: true}, nil
	}
	if d.peerAddr == nil {
		d.peerAddr = from
	}
	// Only data-bearing packets are subject to simulated loss: control
	// packets (SYN, SYN-ACK, FIN, bare ACK) are exempt so the handshake
	// and shutdown sequences — which have no retransmit of their own
	// below the RTO-driven handshake retry — remain completable under
	// loss (§9 Open Question 1).
	if len(p.Payload) > 0 && d.shouldDrop() {
		d.trace.Event("DROP DATA SEQ=%d", p.Seq)
		d.metrics.drop()
		return ingressResult{timeout: true}, nil
	}
	return ingressResult{packet: p, from: from}, nil
}

// shouldDrop rolls a uniform random number in [0,1) against lossRate,
// per sham_should_drop_packet in the original C implementation.
func (d *datagramIO) shouldDrop() bool {
	if d.lossRate <= 0 {
		return false
	}
	return rand.Float64() < d.lossRate
}

func (d *datagramIO) close() error {
	return d.conn.Close()
}

// isFatalSocketErr reports whether err indicates the descriptor itself is
// unusable (as opposed to a transient read/write failure), matching §7's
// distinction between SocketFailure and a recoverable condition.
func isFatalSocketErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
