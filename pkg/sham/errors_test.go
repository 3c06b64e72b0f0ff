package sham

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfRoundTrip(t *testing.T) {
	err := PeerUnreachable.Newf("seq=%d exhausted", 42)
	assert.Equal(t, PeerUnreachable, KindOf(err))
	assert.True(t, PeerUnreachable.Is(err))
	assert.False(t, HandshakeFailed.Is(err))
}

func TestKindOfNilIsOK(t *testing.T) {
	assert.Equal(t, OK, KindOf(nil))
}

func TestKindOfUntaggedErrorIsOK(t *testing.T) {
	assert.Equal(t, OK, KindOf(errors.New("plain")))
}

func TestNewWithNilYieldsNil(t *testing.T) {
	assert.NoError(t, SocketFailure.New(nil))
}

func TestKindOfUnwrapsThroughWrapping(t *testing.T) {
	base := MalformedDatagram.New("short header")
	wrapped := fmt.Errorf("decoding packet: %w", base)
	assert.Equal(t, MalformedDatagram, KindOf(wrapped))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "InvalidState", InvalidState.String())
	assert.Equal(t, "OK", OK.String())
}
