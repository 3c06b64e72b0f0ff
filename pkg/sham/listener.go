package sham

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/datawire/dlib/dlog"
)

// Listener is the passive-open half of §4.3: it owns the bound listening
// socket and produces one fresh Connection per completed handshake, each
// on its own freshly dialed per-peer socket (§9 re-architecture guidance
// option (a)) so concurrent passive opens never collide on ingress the
// way the C original's single shared socket does.
type Listener struct {
	sock    *net.UDPConn
	port    int
	cfg     Config
	trace   *Trace
	metrics *Metrics
}

// ListenUDP binds port and enters LISTEN, per the §6 `listen` contract.
func ListenUDP(port int, cfg Config, trace *Trace, metrics *Metrics) (*Listener, error) {
	pc, err := listenConfig.ListenPacket(context.Background(), "udp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return nil, SocketFailure.New(err)
	}
	return &Listener{sock: pc.(*net.UDPConn), port: port, cfg: cfg, trace: trace, metrics: metrics}, nil
}

func (l *Listener) Close() error {
	return l.sock.Close()
}

// Addr returns the address the listener is bound to, useful when port 0
// was requested and the kernel picked an ephemeral one.
func (l *Listener) Addr() *net.UDPAddr {
	return l.sock.LocalAddr().(*net.UDPAddr)
}

// Accept performs one passive-open handshake (§4.3): it waits for a SYN on
// the listening socket, then hands the connection off to a fresh per-peer
// UDP socket so that two clients dialing concurrently never collide on
// ingress.
func (l *Listener) Accept(ctx context.Context) (*Connection, error) {
	buf := make([]byte, MaxDatagramSize)
	for {
		if err := l.sock.SetReadDeadline(time.Time{}); err != nil {
			return nil, SocketFailure.New(err)
		}
		n, from, err := l.sock.ReadFromUDP(buf)
		if err != nil {
			if isFatalSocketErr(err) {
				return nil, SocketFailure.New(err)
			}
			continue
		}
		p, decErr := Decode(buf[:n])
		if decErr != nil {
			continue
		}
		if !p.HasFlag(FlagSYN) || p.HasFlag(FlagACK) {
			// Not an initial SYN (could be a stray retransmit addressed
			// to an already-accepted connection's old listening-socket
			// address); ignore and keep listening.
			continue
		}

		conn, established := l.completeHandshake(ctx, p, from)
		if !established {
			continue
		}
		return conn, nil
	}
}

// completeHandshake runs the passive-open SYN-ACK/ACK exchange for one
// inbound SYN on a fresh per-peer socket.
func (l *Listener) completeHandshake(ctx context.Context, syn Packet, from *net.UDPAddr) (*Connection, bool) {
	newSock, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, false
	}
	conn := newConnection(newSock, l.cfg, l.trace, l.metrics)
	conn.io.setPeer(from)
	conn.recvSeq = seqAdd(syn.Seq, 1)
	conn.setState(SynReceived)

	ourISN := generateISN()
	conn.sendSeq = ourISN
	synAck := Packet{Seq: ourISN, Ack: conn.recvSeq, Flags: FlagSYN | FlagACK, WindowSize: conn.advertisedWindow()}

	for attempt := 0; attempt < handshakeAttempts; attempt++ {
		if err := conn.io.send(synAck); err != nil {
			break
		}
		conn.trace.Event("SND SYN-ACK SEQ=%d ACK=%d", ourISN, conn.recvSeq)
		dlog.Debugf(ctx, "sham %s: sent SYN-ACK seq=%d ack=%d (attempt %d)", conn.id, ourISN, conn.recvSeq, attempt+1)

		res, rerr := conn.io.receive(ctx, RTOMillis*time.Millisecond)
		if rerr != nil {
			break
		}
		if res.timeout {
			continue
		}
		fp := res.packet
		if fp.HasFlag(FlagACK) && !fp.HasFlag(FlagSYN) && fp.Ack == seqAdd(ourISN, 1) {
			conn.trace.Event("RCV ACK=%d", fp.Ack)
			conn.sendSeq = seqAdd(ourISN, 1)
			conn.sendBase = conn.sendSeq
			conn.lastByteSent = conn.sendSeq
			conn.lastByteAcked = conn.sendSeq
			conn.peerWindowSize = fp.WindowSize
			conn.setState(Established)
			return conn, true
		}
	}
	_ = newSock.Close()
	return nil, false
}
