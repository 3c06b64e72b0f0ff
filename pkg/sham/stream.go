package sham

import "context"

// Stream adapts a Connection to io.ReadWriteCloser, tying the handshake,
// send/recv, and shutdown pieces together behind the shape Go drivers
// expect (io.Copy, bufio, etc.), the way connpool.Tunnel wraps a raw
// gRPC stream in a narrower interface.
type Stream struct {
	ctx  context.Context
	conn *Connection
}

// NewStream wraps conn for use as an io.ReadWriteCloser. ctx governs every
// blocking operation performed through the returned Stream.
func NewStream(ctx context.Context, conn *Connection) *Stream {
	return &Stream{ctx: ctx, conn: conn}
}

// Read implements io.Reader via Recv. A bare per-packet timeout with no
// data ready yields (0, nil), matching Recv's contract; callers that need
// io.Reader's "never return (0, nil)" convention should retry in a loop,
// which every stdlib consumer (io.Copy, bufio.Reader) already does.
func (s *Stream) Read(p []byte) (int, error) {
	return Recv(s.ctx, s.conn, p)
}

// Write implements io.Writer via Send, which blocks until every byte is
// acknowledged, so Write always reports n == len(p) on success.
func (s *Stream) Write(p []byte) (int, error) {
	return Send(s.ctx, s.conn, p)
}

// Close performs the orderly FIN shutdown.
func (s *Stream) Close() error {
	return Close(s.ctx, s.conn)
}

// Connection exposes the underlying Connection for callers that need
// direct access to ID(), State(), or the file-transfer helpers.
func (s *Stream) Connection() *Connection {
	return s.conn
}
