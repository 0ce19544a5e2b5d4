// ABOUTME: Endpoint URI parsing and formatting for unix:// and tcp:// addresses.
// ABOUTME: Maps endpoint strings to the network/address pair the net package dials.

package transport

import (
	"fmt"
	"strings"
)

// Endpoint schemes understood by this package.
const (
	SchemeUnix = "unix"
	SchemeTCP  = "tcp"
)

// ParseEndpoint splits an endpoint URI into the network and address
// accepted by net.Dial and net.Listen. Supported forms are
// unix:///path/to.sock and tcp://host:port.
func ParseEndpoint(endpoint string) (network, address string, err error) {
	switch {
	case strings.HasPrefix(endpoint, "unix://"):
		path := strings.TrimPrefix(endpoint, "unix://")
		if path == "" || !strings.HasPrefix(path, "/") {
			return "", "", fmt.Errorf("unix endpoint %q must carry an absolute path", endpoint)
		}
		return SchemeUnix, path, nil
	case strings.HasPrefix(endpoint, "tcp://"):
		addr := strings.TrimPrefix(endpoint, "tcp://")
		if addr == "" || !strings.Contains(addr, ":") {
			return "", "", fmt.Errorf("tcp endpoint %q must carry host:port", endpoint)
		}
		return SchemeTCP, addr, nil
	default:
		return "", "", fmt.Errorf("unsupported endpoint scheme in %q (want unix:// or tcp://)", endpoint)
	}
}

// FormatEndpoint builds an endpoint URI from a network and address.
func FormatEndpoint(network, address string) string {
	if network == SchemeUnix {
		return "unix://" + address
	}
	return network + "://" + address
}
