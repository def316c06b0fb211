package scanner

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"
)

// ProbePort attempts a full TCP handshake with host:port bounded by timeout.
// It returns the open connection on success. Refused, timed out, unreachable and
// unresolvable all collapse to (nil, false); the caller owns and must close the connection.
func ProbePort(ctx context.Context, host string, port uint16, timeout time.Duration) (net.Conn, bool) {
	// net treats an empty host as the local system; here it is an unparsable address.
	if strings.TrimSpace(host) == "" {
		return nil, false
	}
	address := net.JoinHostPort(host, strconv.Itoa(int(port)))

	dialer := net.Dialer{Timeout: timeout, KeepAlive: -1}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, false
	}
	return conn, true
}

// scanPort is one probe unit: connect, then read a banner from the live connection.
// The port is reported open whenever the connect succeeded, banner or not.
func scanPort(ctx context.Context, host string, port uint16, timeout time.Duration) (PortResult, bool) {
	conn, ok := ProbePort(ctx, host, port, timeout)
	if !ok {
		return PortResult{}, false
	}
	defer conn.Close()

	banner, _ := ReadBanner(conn, port)
	return PortResult{Port: port, Banner: banner}, true
}
