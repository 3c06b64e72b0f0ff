//go:build unix

package sham

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenConfig sets SO_REUSEADDR on the listening socket before bind, the
// same low-level socket tuning the teacher reaches for in
// pkg/connpool/dialer.go (unix.IPPROTO_UDP) via a raw_conn Control
// callback, so a restarted shamserver can rebind its port immediately
// instead of waiting out TIME_WAIT-like kernel state.
var listenConfig = net.ListenConfig{
	Control: func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		if err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		}); err != nil {
			return err
		}
		return sockErr
	},
}
