package scanner

import "strings"

// Signature maps a banner substring to a service label. Matching is case-insensitive.
type Signature struct {
	Pattern string
	Service string
}

// signatures is tried in order and the first match wins. Vendor HTTP entries must stay
// ahead of the generic "HTTP/1." entry.
var signatures = []Signature{
	{"SSH", "SSH"},
	{"FTP", "FTP"},
	{"SMTP", "SMTP"},
	{"POP3", "POP3"},
	{"IMAP", "IMAP"},
	{"CUPS", "CUPS (Print Server)"},
	{"Apache", "HTTP (Apache)"},
	{"openresty", "HTTP (OpenResty/nginx)"},
	{"nginx", "HTTP (nginx)"},
	{"Microsoft-IIS", "HTTP (IIS)"},
	{"HTTP/1.", "HTTP"},
	{"RFB", "VNC"},
	{"MySQL", "MySQL"},
	{"PostgreSQL", "PostgreSQL"},
	{"redis", "Redis"},
	{"Telnet", "Telnet"},
}

// PortHint is the conventional service for a well-known port.
type PortHint struct {
	Port    uint16
	Service string
}

var portHints = []PortHint{
	{21, "FTP"},
	{22, "SSH"},
	{23, "Telnet"},
	{25, "SMTP"},
	{53, "DNS"},
	{80, "HTTP"},
	{110, "POP3"},
	{143, "IMAP"},
	{443, "HTTPS"},
	{445, "SMB"},
	{3306, "MySQL"},
	{5432, "PostgreSQL"},
	{6379, "Redis"},
	{5900, "VNC"},
	{631, "CUPS (Print Server)"},
	{8080, "HTTP (alt)"},
}

// UnknownService is returned when neither the banner nor the port identify a service.
const UnknownService = "Unknown"

// Classify labels the service on port. Banner evidence beats the port-number guess.
// An empty banner means no banner was read. The result is never empty.
func Classify(port uint16, banner string) string {
	if banner != "" {
		if svc, ok := matchSignature(banner); ok {
			return svc
		}
	}
	if svc, ok := lookupPortHint(port); ok {
		return svc + " (port-based guess)"
	}
	return UnknownService
}

func matchSignature(banner string) (string, bool) {
	lb := strings.ToLower(banner)
	for _, s := range signatures {
		if strings.Contains(lb, strings.ToLower(s.Pattern)) {
			return s.Service, true
		}
	}
	return "", false
}

func lookupPortHint(port uint16) (string, bool) {
	for _, h := range portHints {
		if h.Port == port {
			return h.Service, true
		}
	}
	return "", false
}
