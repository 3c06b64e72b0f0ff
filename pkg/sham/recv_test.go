package sham

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// puppetPeer is a bare UDP socket standing in for a peer whose packets we
// construct and send by hand, so out-of-order scenarios can be driven
// deterministically instead of relying on real network reordering.
type puppetPeer struct {
	sock *net.UDPConn
	to   *net.UDPAddr
}

func newPuppetPeer(t *testing.T, to *net.UDPAddr) *puppetPeer {
	t.Helper()
	sock, err := net.ListenUDP("udp", &net.UDPAddr{})
	require.NoError(t, err)
	return &puppetPeer{sock: sock, to: to}
}

func (p *puppetPeer) send(t *testing.T, pkt Packet) {
	t.Helper()
	_, err := p.sock.WriteToUDP(Encode(pkt), p.to)
	require.NoError(t, err)
}

func (p *puppetPeer) close() { p.sock.Close() }

// newEstablishedConnection builds a Connection in ESTABLISHED state bound
// to a fresh local socket, with a puppetPeer wired as its counterpart, so
// Recv's branches can be exercised directly without a real handshake.
func newEstablishedConnection(t *testing.T, cfg Config) (*Connection, *puppetPeer) {
	t.Helper()
	sock, err := net.ListenUDP("udp", &net.UDPAddr{})
	require.NoError(t, err)
	conn := newConnection(sock, cfg, nil, nil)

	local := sock.LocalAddr().(*net.UDPAddr)
	peer := newPuppetPeer(t, local)
	conn.io.setPeer(peer.sock.LocalAddr().(*net.UDPAddr))
	conn.recvSeq = 1000
	conn.sendSeq = 5000
	conn.peerWindowSize = 4096
	conn.sendBase = conn.sendSeq
	conn.lastByteSent = conn.sendSeq
	conn.lastByteAcked = conn.sendSeq
	conn.setState(Established)
	return conn, peer
}

// TestOutOfOrderThenInOrderDelivers exercises concrete scenario 4: segments
// [S+1024, S] arrive reversed; the receiver buffers the first, then
// delivers both contiguously on the second.
func TestOutOfOrderThenInOrderDelivers(t *testing.T) {
	cfg := testConfig()
	conn, peer := newEstablishedConnection(t, cfg)
	defer conn.closeSocket()
	defer peer.close()

	const S = uint32(1000)
	second := make([]byte, 1024)
	for i := range second {
		second[i] = byte(i)
	}
	first := make([]byte, 1024)
	for i := range first {
		first[i] = byte(200 + i)
	}

	peer.send(t, Packet{Seq: S + 1024, Ack: conn.sendSeq, Payload: first})

	buf := make([]byte, 4096)
	n, err := Recv(context.Background(), conn, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "the reordered segment must not be delivered yet")
	assert.Equal(t, S, conn.recvSeq, "recv_seq must not advance past the gap")

	peer.send(t, Packet{Seq: S, Ack: conn.sendSeq, Payload: second})
	n, err = Recv(context.Background(), conn, buf)
	require.NoError(t, err)
	assert.Equal(t, 2048, n)
	assert.Equal(t, append(second, first...), buf[:n])
	assert.Equal(t, S+2048, conn.recvSeq)
}

// TestDuplicateBelowRecvSeqIsDropped covers the seq < recv_seq branch: the
// payload is discarded but the receiver still ACKs to keep the peer's
// timer honest.
func TestDuplicateBelowRecvSeqIsDropped(t *testing.T) {
	cfg := testConfig()
	conn, peer := newEstablishedConnection(t, cfg)
	defer conn.closeSocket()
	defer peer.close()

	conn.recvSeq = 2000
	peer.send(t, Packet{Seq: 1000, Ack: conn.sendSeq, Payload: []byte("stale")})

	buf := make([]byte, 64)
	n, err := Recv(context.Background(), conn, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, uint32(2000), conn.recvSeq)
}

// TestRecvBareTimeoutReturnsZeroNil covers the §9 Open Question 2
// resolution: a bare timeout with no peer activity yields (0, nil), never
// io.EOF.
func TestRecvBareTimeoutReturnsZeroNil(t *testing.T) {
	cfg := testConfig()
	conn, peer := newEstablishedConnection(t, cfg)
	defer conn.closeSocket()
	defer peer.close()

	buf := make([]byte, 64)
	n, err := Recv(context.Background(), conn, buf)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}
