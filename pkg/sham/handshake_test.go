package sham

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig mirrors DefaultConfig with simulated loss forced off, so tests
// are deterministic regardless of the defaults.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LossRate = 0
	return cfg
}

func acceptOneInBackground(t *testing.T, l *Listener) <-chan *Connection {
	t.Helper()
	ch := make(chan *Connection, 1)
	go func() {
		conn, err := l.Accept(context.Background())
		require.NoError(t, err)
		ch <- conn
	}()
	return ch
}

// TestCleanHandshake exercises concrete scenario 1 of §8: both endpoints
// reach ESTABLISHED after one SYN / SYN-ACK / ACK exchange.
func TestCleanHandshake(t *testing.T) {
	cfg := testConfig()
	l, err := ListenUDP(0, cfg, nil, nil)
	require.NoError(t, err)
	defer l.Close()

	serverCh := acceptOneInBackground(t, l)

	client, err := CreateConnection(cfg)
	require.NoError(t, err)
	require.NoError(t, Connect(context.Background(), client, "127.0.0.1", l.Addr().Port))

	server := <-serverCh
	assert.Equal(t, Established, client.State())
	assert.Equal(t, Established, server.State())
}

// TestSmallSendNoLoss exercises concrete scenario 2: a short send arrives
// byte-identical at the receiver.
func TestSmallSendNoLoss(t *testing.T) {
	cfg := testConfig()
	l, err := ListenUDP(0, cfg, nil, nil)
	require.NoError(t, err)
	defer l.Close()

	serverCh := acceptOneInBackground(t, l)

	client, err := CreateConnection(cfg)
	require.NoError(t, err)
	require.NoError(t, Connect(context.Background(), client, "127.0.0.1", l.Addr().Port))
	server := <-serverCh

	var wg sync.WaitGroup
	wg.Add(1)
	var received []byte
	go func() {
		defer wg.Done()
		buf := make([]byte, 64)
		total := 0
		for total < len("hello") {
			n, err := Recv(context.Background(), server, buf[total:])
			require.NoError(t, err)
			total += n
		}
		received = buf[:total]
	}()

	n, err := Send(context.Background(), client, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	wg.Wait()
	assert.Equal(t, "hello", string(received))
}

// TestByteStreamFidelityUnderLoad sends enough data to force multiple
// segments, then verifies byte-stream fidelity end to end (P1/P2/P3);
// genuine UDP reordering isn't forced here, and the OOO path of scenario 4
// is covered directly in recv_test.go.
func TestByteStreamFidelityUnderLoad(t *testing.T) {
	cfg := testConfig()
	l, err := ListenUDP(0, cfg, nil, nil)
	require.NoError(t, err)
	defer l.Close()

	serverCh := acceptOneInBackground(t, l)

	client, err := CreateConnection(cfg)
	require.NoError(t, err)
	require.NoError(t, Connect(context.Background(), client, "127.0.0.1", l.Addr().Port))
	server := <-serverCh

	payload := make([]byte, MSS*5+37)
	for i := range payload {
		payload[i] = byte(i)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	received := make([]byte, 0, len(payload))
	go func() {
		defer wg.Done()
		buf := make([]byte, 4096)
		for len(received) < len(payload) {
			n, err := Recv(context.Background(), server, buf)
			require.NoError(t, err)
			received = append(received, buf[:n]...)
		}
	}()

	n, err := Send(context.Background(), client, payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	wg.Wait()
	assert.Equal(t, payload, received)
}

// TestOrderlyShutdown exercises concrete scenario 6: after a transfer both
// sides reach CLOSED via the FIN exchange.
func TestOrderlyShutdown(t *testing.T) {
	cfg := testConfig()
	l, err := ListenUDP(0, cfg, nil, nil)
	require.NoError(t, err)
	defer l.Close()

	serverCh := acceptOneInBackground(t, l)

	client, err := CreateConnection(cfg)
	require.NoError(t, err)
	require.NoError(t, Connect(context.Background(), client, "127.0.0.1", l.Addr().Port))
	server := <-serverCh

	serverDone := make(chan error, 1)
	go func() {
		buf := make([]byte, 16)
		_, err := Recv(context.Background(), server, buf)
		if err == io.EOF {
			serverDone <- Close(context.Background(), server)
			return
		}
		serverDone <- err
	}()

	require.NoError(t, Close(context.Background(), client))

	select {
	case err := <-serverDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not observe shutdown in time")
	}

	assert.Equal(t, Closed, client.State())
	assert.Equal(t, Closed, server.State())
}
