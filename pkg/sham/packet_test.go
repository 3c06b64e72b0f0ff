package sham

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := Packet{
		Seq:        1000,
		Ack:        5001,
		Flags:      FlagACK,
		WindowSize: 4096,
		Payload:    []byte("hello"),
	}
	buf := Encode(p)
	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, p.Seq, got.Seq)
	assert.Equal(t, p.Ack, got.Ack)
	assert.Equal(t, p.Flags, got.Flags)
	assert.Equal(t, p.WindowSize, got.WindowSize)
	assert.Equal(t, p.Payload, got.Payload)
}

func TestDecodeTooShort(t *testing.T) {
	_, err := Decode(make([]byte, headerSize-1))
	require.Error(t, err)
	assert.Equal(t, MalformedDatagram, KindOf(err))
}

func TestDecodeOversizedPayload(t *testing.T) {
	_, err := Decode(make([]byte, headerSize+MSS+1))
	require.Error(t, err)
	assert.Equal(t, MalformedDatagram, KindOf(err))
}

func TestPacketEnd(t *testing.T) {
	p := Packet{Seq: 100, Payload: make([]byte, 50)}
	assert.Equal(t, uint32(150), p.end())
}

func TestPacketEndWraps(t *testing.T) {
	p := Packet{Seq: 0xFFFFFFF0, Payload: make([]byte, 32)}
	assert.Equal(t, uint32(16), p.end())
}

func TestHasFlag(t *testing.T) {
	p := Packet{Flags: FlagSYN | FlagACK}
	assert.True(t, p.HasFlag(FlagSYN))
	assert.True(t, p.HasFlag(FlagACK))
	assert.False(t, p.HasFlag(FlagFIN))
}
