//go:build !unix

package sham

import "net"

// listenConfig on non-Unix platforms applies no special socket options;
// SO_REUSEADDR tuning is a Unix-specific affordance (io_unix.go).
var listenConfig = net.ListenConfig{}
