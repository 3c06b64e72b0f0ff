package sham

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesInFlight(t *testing.T) {
	c := &Connection{lastByteSent: 1050, lastByteAcked: 1000}
	assert.Equal(t, uint32(50), c.bytesInFlight())
}

func TestBytesInFlightSaturatesAtZero(t *testing.T) {
	// lastByteAcked ahead of lastByteSent shouldn't happen in practice, but
	// the predicate must not underflow if it ever does.
	c := &Connection{lastByteSent: 1000, lastByteAcked: 1050}
	assert.Equal(t, uint32(0), c.bytesInFlight())
}

func TestAdvertisedWindowClampsToMSS(t *testing.T) {
	cfg := DefaultConfig()
	c := &Connection{cfg: cfg, recvBufferSize: cfg.RecvBufferSize, recvBufferUsed: cfg.RecvBufferSize}
	assert.Equal(t, uint16(cfg.MSS), c.advertisedWindow())
}

func TestAdvertisedWindowReflectsFreeSpace(t *testing.T) {
	cfg := DefaultConfig()
	c := &Connection{cfg: cfg, recvBufferSize: cfg.RecvBufferSize, recvBufferUsed: cfg.RecvBufferSize - 2000}
	assert.Equal(t, uint16(2000), c.advertisedWindow())
}

func TestSetStateTracksEstablishedOnce(t *testing.T) {
	c := &Connection{}
	assert.False(t, c.establishedOnce)
	c.setState(Established)
	assert.True(t, c.establishedOnce)
	c.setState(Closed)
	assert.True(t, c.establishedOnce, "establishedOnce must not reset on a later transition")
}

func TestStateStringers(t *testing.T) {
	assert.Equal(t, "ESTABLISHED", Established.String())
	assert.Equal(t, "CLOSED", Closed.String())
}
