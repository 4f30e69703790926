//go:build linux

package api

import (
	"net"
	"syscall"
)

// reuseAddrListenConfig returns a net.ListenConfig that sets
// SO_REUSEADDR before binding, so the API can rebind immediately to a
// port left in TIME_WAIT by a killed predecessor.
func reuseAddrListenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var opErr error
			err := c.Control(func(fd uintptr) {
				opErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return opErr
		},
	}
}
