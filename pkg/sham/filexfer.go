package sham

import (
	"context"
	"encoding/binary"
	"io"
)

// maxFilenameLen is the largest filename the 1-byte length prefix can
// represent (§6 file-transfer framing).
const maxFilenameLen = 255

// SendFile frames name and the contents read from r as a single
// file-transfer unit and writes it over conn via repeated Send calls
// (§6): 1 byte filename length, the filename, a 4-byte network-order
// file size, then the payload itself.
func SendFile(ctx context.Context, c *Connection, name string, size int64, r io.Reader) (int64, error) {
	if len(name) > maxFilenameLen {
		return 0, InvalidState.Newf("filename %q exceeds %d bytes", name, maxFilenameLen)
	}

	header := make([]byte, 1+len(name)+4)
	header[0] = byte(len(name))
	copy(header[1:], name)
	binary.BigEndian.PutUint32(header[1+len(name):], uint32(size))

	if _, err := Send(ctx, c, header); err != nil {
		return 0, err
	}

	var sent int64
	buf := make([]byte, c.cfg.MSS*4)
	for sent < size {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, err := Send(ctx, c, buf[:n]); err != nil {
				return sent, err
			}
			sent += int64(n)
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return sent, rerr
		}
	}
	return sent, nil
}

// FileHeader is the decoded result of RecvFileHeader: the announced name
// and size of an incoming file transfer.
type FileHeader struct {
	Name string
	Size int64
}

// RecvFileHeader reads and decodes the file-transfer framing header
// written by SendFile, blocking via repeated Recv calls until the fixed
// and variable-length portions have both arrived.
func RecvFileHeader(ctx context.Context, c *Connection) (FileHeader, error) {
	lenBuf := make([]byte, 1)
	if err := recvFull(ctx, c, lenBuf); err != nil {
		return FileHeader{}, err
	}
	nameLen := int(lenBuf[0])

	rest := make([]byte, nameLen+4)
	if err := recvFull(ctx, c, rest); err != nil {
		return FileHeader{}, err
	}
	name := string(rest[:nameLen])
	size := binary.BigEndian.Uint32(rest[nameLen:])
	return FileHeader{Name: name, Size: int64(size)}, nil
}

// RecvFile reads exactly hdr.Size bytes following a FileHeader and
// writes them to w, returning the byte count actually written.
func RecvFile(ctx context.Context, c *Connection, hdr FileHeader, w io.Writer) (int64, error) {
	buf := make([]byte, c.cfg.MSS*4)
	var received int64
	for received < hdr.Size {
		chunk := int64(len(buf))
		if remaining := hdr.Size - received; chunk > remaining {
			chunk = remaining
		}
		n, err := Recv(ctx, c, buf[:chunk])
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return received, werr
			}
			received += int64(n)
		}
		if err != nil {
			return received, err
		}
	}
	return received, nil
}

// recvFull calls Recv repeatedly until buf is completely filled,
// tolerating the partial-segment delivery Recv may return per call.
func recvFull(ctx context.Context, c *Connection, buf []byte) error {
	filled := 0
	for filled < len(buf) {
		n, err := Recv(ctx, c, buf[filled:])
		filled += n
		if err != nil {
			return err
		}
	}
	return nil
}
