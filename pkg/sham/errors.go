// Package sham implements the core engine of the S.H.A.M. protocol: a
// reliable, connection-oriented byte stream layered on UDP.
package sham

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind categorizes the errors the core can report, mirroring the error
// taxonomy in §7 of the protocol spec.
type Kind int

const (
	// OK is the zero value; never attached to a real error.
	OK Kind = iota
	// InvalidState is returned when an API is called in a connection state
	// that forbids it.
	InvalidState
	// MalformedDatagram is returned when a datagram's header cannot be
	// decoded or its fields are out of range.
	MalformedDatagram
	// HandshakeFailed is returned when the three-way handshake mismatches
	// or times out.
	HandshakeFailed
	// PeerUnreachable is returned when an in-flight segment exhausts its
	// retransmission budget.
	PeerUnreachable
	// SocketFailure is returned on a fatal, non-recoverable descriptor
	// error.
	SocketFailure
	// BufferFull names the condition of the out-of-order buffer having no
	// free slot; bufferOOO drops the packet in that case without returning
	// an error, so it never escapes to a caller.
	BufferFull
	// ShutdownFailed is returned when the FIN exchange cannot complete
	// within its retry budget.
	ShutdownFailed
)

func (k Kind) String() string {
	switch k {
	case InvalidState:
		return "InvalidState"
	case MalformedDatagram:
		return "MalformedDatagram"
	case HandshakeFailed:
		return "HandshakeFailed"
	case PeerUnreachable:
		return "PeerUnreachable"
	case SocketFailure:
		return "SocketFailure"
	case BufferFull:
		return "BufferFull"
	case ShutdownFailed:
		return "ShutdownFailed"
	default:
		return "OK"
	}
}

type categorized struct {
	error
	kind Kind
}

// New creates an error with the given Kind from a string or an existing
// error. A nil error argument yields a nil result. HandshakeFailed,
// PeerUnreachable, and ShutdownFailed carry a stack trace via
// github.com/pkg/errors, since those are the kinds that actually surface
// to a driver rather than being recovered internally (§7 propagation
// policy), and a caller debugging a failed connect or a dead peer wants
// to know where in the handshake/RTO machinery it happened.
func (k Kind) New(v interface{}) error {
	var err error
	switch v := v.(type) {
	case nil:
		return nil
	case error:
		err = v
	case string:
		err = errors.New(v)
	default:
		err = fmt.Errorf("%v", v)
	}
	if k == HandshakeFailed || k == PeerUnreachable || k == ShutdownFailed {
		err = pkgerrors.WithStack(err)
	}
	return &categorized{error: err, kind: k}
}

// Newf creates a Kind error from a format string, honoring %w the way
// fmt.Errorf does.
func (k Kind) Newf(format string, a ...interface{}) error {
	err := error(fmt.Errorf(format, a...))
	if k == HandshakeFailed || k == PeerUnreachable || k == ShutdownFailed {
		err = pkgerrors.WithStack(err)
	}
	return &categorized{error: err, kind: k}
}

func (ce *categorized) Unwrap() error {
	return ce.error
}

// KindOf returns the Kind attached to err, or OK if err is nil, or OK if
// err carries no Kind.
func KindOf(err error) Kind {
	if err == nil {
		return OK
	}
	for {
		var ce *categorized
		if errors.As(err, &ce) {
			return ce.kind
		}
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return OK
		}
		err = unwrapped
	}
}

// Is reports whether err was created with the given Kind, i.e. whether
// KindOf(err) == k. Kind is not itself an error value, so callers write
// sham.HandshakeFailed.Is(err) rather than errors.Is(err, ...).
func (k Kind) Is(err error) bool {
	return KindOf(err) == k
}
