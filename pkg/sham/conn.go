package sham

import (
	"net"
	"sync"

	"github.com/google/uuid"
)

// State is one of the connection lifecycle states of §3. Additional
// TCP-style closing states are reserved but not required for conforming
// behavior, per spec.
type State int

const (
	Closed State = iota
	Listen
	SynSent
	SynReceived
	Established
	FinWait1
	FinWait2
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Listen:
		return "LISTEN"
	case SynSent:
		return "SYN_SENT"
	case SynReceived:
		return "SYN_RECEIVED"
	case Established:
		return "ESTABLISHED"
	case FinWait1:
		return "FIN_WAIT_1"
	case FinWait2:
		return "FIN_WAIT_2"
	default:
		return "UNKNOWN"
	}
}

// windowEntry is one in-flight sliding-window entry for the sender (§3).
type windowEntry struct {
	packet   Packet
	sendTime int64
	retries  int
	acked    bool
}

// oooEntry is one out-of-order receive-buffer slot (§3).
type oooEntry struct {
	packet Packet
	valid  bool
}

// Connection is the single abstract engine object the protocol core
// exposes. One value per logical connection (§5: single-threaded
// cooperative per connection). Every exported operation on it (Connect,
// Send, Recv, Close, State) holds mu for its whole duration, so calls
// from several goroutines are serialized rather than interleaved.
type Connection struct {
	id      string
	io      *datagramIO
	trace   *Trace
	metrics *Metrics
	cfg     Config

	mu    sync.Mutex
	state State

	sendSeq       uint32
	recvSeq       uint32
	sendBase      uint32
	lastByteSent  uint32
	lastByteAcked uint32

	sendWindow  []windowEntry
	windowStart int
	windowCount int

	oooBuffer []oooEntry

	peerWindowSize uint16
	recvBufferSize int
	recvBufferUsed int

	lossRate float64

	establishedOnce bool
	peerFinObserved bool
}

// newConnection builds a CLOSED connection bound to the given UDP socket.
func newConnection(udpConn *net.UDPConn, cfg Config, trace *Trace, metrics *Metrics) *Connection {
	return &Connection{
		id:             uuid.NewString(),
		io:             newDatagramIO(udpConn, cfg.LossRate, trace, metrics),
		trace:          trace,
		metrics:        metrics,
		cfg:            cfg,
		state:          Closed,
		sendWindow:     make([]windowEntry, cfg.Window),
		oooBuffer:      make([]oooEntry, cfg.Window),
		recvBufferSize: cfg.RecvBufferSize,
		lossRate:       cfg.LossRate,
	}
}

// CreateConnection allocates a fresh CLOSED connection bound to an
// ephemeral local UDP port, per the §6 `create_connection` contract. It
// carries no trace log or metrics recorder; use CreateConnectionWith for
// that.
func CreateConnection(cfg Config) (*Connection, error) {
	return CreateConnectionWith(cfg, nil, nil)
}

// CreateConnectionWith is CreateConnection with an explicit trace log and
// metrics recorder attached from the start, for drivers that want the
// handshake itself traced and measured.
func CreateConnectionWith(cfg Config, trace *Trace, metrics *Metrics) (*Connection, error) {
	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, SocketFailure.New(err)
	}
	return newConnection(udpConn, cfg, trace, metrics), nil
}

// ID returns a short, log-friendly identifier for this connection,
// distinguishing interleaved log lines from concurrently accepted peers
// (see SPEC_FULL.md's rationale for wiring google/uuid).
func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState transitions the connection and records in establishedOnce that
// ESTABLISHED has been entered (invariant 6). It does not itself refuse a
// second transition to ESTABLISHED.
func (c *Connection) setState(s State) {
	if s == Established {
		c.establishedOnce = true
	}
	c.state = s
}

// bytesInFlight returns last_byte_sent - last_byte_acked, saturating to
// zero on apparent underflow (§4.5's can-send predicate).
func (c *Connection) bytesInFlight() uint32 {
	if seqLessEq(c.lastByteAcked, c.lastByteSent) {
		return c.lastByteSent - c.lastByteAcked
	}
	return 0
}

// advertisedWindow computes the receiver's currently advertised free
// buffer space, clamped to at least one MSS to prevent deadlock (§4.5,
// invariant 5).
func (c *Connection) advertisedWindow() uint16 {
	available := c.recvBufferSize - c.recvBufferUsed
	if available < c.cfg.MSS {
		available = c.cfg.MSS
	}
	if available > 0xFFFF {
		available = 0xFFFF
	}
	return uint16(available)
}

// closeSocket releases the underlying socket without performing the FIN
// handshake; used internally on abort paths. Callers should use the
// exported Close (shutdown.go) for an orderly teardown.
func (c *Connection) closeSocket() error {
	return c.io.close()
}
