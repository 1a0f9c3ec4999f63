package executor

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrPrivateTarget is returned when a call, or one of its redirects, would
// connect to a loopback, private or link-local address.
var ErrPrivateTarget = errors.New("target resolves to a private address")

// IsPrivateIP reports whether ip is loopback, private, unspecified or link-local.
func IsPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// WithBlockPrivateTargets refuses connections to private addresses. The
// check runs on the resolved address of every dial, so redirects and DNS
// changes after a provider was registered are covered too. It only applies
// to the built-in transport, not to a client passed via WithHTTPClient.
func WithBlockPrivateTargets(block bool) Option {
	return func(e *Executor) {
		if block {
			e.denyDial = func(ip net.IP, _ string) bool { return IsPrivateIP(ip) }
		} else {
			e.denyDial = nil
		}
	}
}

// controlDial runs after name resolution and before the socket connects.
func (e *Executor) controlDial(_, address string, _ syscall.RawConn) error {
	if e.denyDial == nil {
		return nil
	}
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPrivateTarget, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || e.denyDial(ip, port) {
		return fmt.Errorf("%w: %s", ErrPrivateTarget, address)
	}
	return nil
}
