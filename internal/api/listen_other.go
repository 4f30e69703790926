//go:build !linux

package api

import "net"

// reuseAddrListenConfig returns the default listen configuration on
// platforms where the SO_REUSEADDR tweak is unnecessary or differs.
func reuseAddrListenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
