package base

import (
	"errors"
	"syscall"
)

// isTransient reports whether a socket error only concerns a single datagram.
// On a connected UDP socket an ICMP port unreachable for an earlier datagram shows
// up as ECONNREFUSED on the next read or write, the socket itself stays usable.
// EMSGSIZE rejects one datagram that is too large for the path.
func isTransient(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EMSGSIZE)
}
