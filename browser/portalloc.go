package browser

import (
	"fmt"
	"net"

	"github.com/phayes/freeport"
)

// AllocatePort returns the lowest port in [start, end] on which a TCP
// listener can be bound and immediately closed. Port choice is advisory
// per spec §4.2: the browser may ultimately announce a different port on
// its stderr, which Process reads and trusts over this value.
func AllocatePort(start, end int) (int, error) {
	if start > end {
		return 0, fmt.Errorf("browser: invalid port range [%d, %d]", start, end)
	}
	for p := start; p <= end; p++ {
		if probe(p) {
			return p, nil
		}
	}
	return 0, ErrNoFreePort
}

// AllocateAnyPort delegates to freeport.GetFreePort, used when the caller
// doesn't care which port in particular is chosen (the common case: the
// browser's own stderr announcement is authoritative regardless).
func AllocateAnyPort() (int, error) {
	p, err := freeport.GetFreePort()
	if err != nil {
		return 0, ErrNoFreePort
	}
	return p, nil
}

func probe(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}
