package scanner

import (
	"net"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// BannerReadTimeout bounds the single banner read, independent of the connect timeout.
	BannerReadTimeout = time.Second
	// BannerBufferSize is the most bytes read from a connection.
	BannerBufferSize = 1024
)

// ReadBanner sends the probe configured for port (if any) and performs one bounded read.
// It returns a single representative line: the first "Server:" header when present,
// otherwise the first line of the response. A write failure, read error or timeout,
// zero bytes, or an empty selected line all yield ("", false).
func ReadBanner(conn net.Conn, port uint16) (string, bool) {
	return readBanner(conn, port, DefaultProbes())
}

func readBanner(conn net.Conn, port uint16, cache *ProbeCache) (string, bool) {
	_ = conn.SetDeadline(time.Now().Add(BannerReadTimeout))

	if probe, ok := cache.ForPort(port); ok && len(probe.Data) > 0 {
		if _, err := conn.Write(probe.Data); err != nil {
			return "", false
		}
	}

	buffer := make([]byte, BannerBufferSize)
	// Bytes returned alongside an error (EOF, reset) are still a usable banner.
	n, _ := conn.Read(buffer)
	if n <= 0 {
		return "", false
	}

	line := selectBannerLine(decodeLossy(buffer[:n]))
	if line == "" {
		return "", false
	}
	return line, true
}

// decodeLossy converts bytes to text. Each maximal invalid subsequence (an invalid byte,
// or a lead byte with the continuation bytes that still fit it) becomes one U+FFFD.
func decodeLossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			size = invalidPrefixLen(b)
		}
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

// invalidPrefixLen returns how many bytes of b, which does not start with a valid
// encoding, form the truncated start of a sequence. It is at least 1.
func invalidPrefixLen(b []byte) int {
	var (
		n      int
		lo, hi byte = 0x80, 0xBF
	)
	switch c := b[0]; {
	case c >= 0xC2 && c <= 0xDF:
		n = 2
	case c == 0xE0:
		n, lo = 3, 0xA0
	case c == 0xED:
		n, hi = 3, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		n = 3
	case c == 0xF0:
		n, lo = 4, 0x90
	case c >= 0xF1 && c <= 0xF3:
		n = 4
	case c == 0xF4:
		n, hi = 4, 0x8F
	default:
		return 1
	}
	if len(b) < 2 || b[1] < lo || b[1] > hi {
		return 1
	}
	i := 2
	for i < n-1 && i < len(b) && b[i] >= 0x80 && b[i] <= 0xBF {
		i++
	}
	return i
}

func selectBannerLine(text string) string {
	lines := splitLines(text)
	if len(lines) == 0 {
		return ""
	}
	selected := lines[0]
	for _, l := range lines {
		if strings.HasPrefix(strings.ToLower(l), "server:") {
			selected = l
			break
		}
	}
	return strings.TrimSpace(selected)
}

// splitLines splits on "\n", dropping a trailing "\r" from each line and the empty
// piece after a final newline.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
