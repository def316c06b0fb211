package scanner

// Probe is a payload sent right after connecting to elicit a response from
// services that wait for the client to speak first.
type Probe struct {
	Name  string   // Probe name, e.g. "HTTPHead"
	Data  []byte   // Bytes written to the connection
	Ports []uint16 // Ports the probe is sent to; matched exactly
}

// builtinProbes lists every payload the banner reader knows. Ports not listed get a passive read.
var builtinProbes = []Probe{
	{
		Name:  "HTTPHead",
		Data:  []byte("HEAD / HTTP/1.0\r\n\r\n"),
		Ports: []uint16{80, 8080, 443},
	},
	{
		Name:  "CUPSGet",
		Data:  []byte("GET / HTTP/1.0\r\nHost: localhost\r\n\r\n"),
		Ports: []uint16{631},
	},
}

// ProbeCache indexes probes by port and name for lookups during a scan.
// It is never mutated after construction and is safe for concurrent reads.
type ProbeCache struct {
	byPort map[uint16]Probe
	byName map[string]Probe
}

// NewProbeCache indexes probes. When two probes claim the same port the first one wins.
func NewProbeCache(probes []Probe) *ProbeCache {
	cache := &ProbeCache{
		byPort: make(map[uint16]Probe),
		byName: make(map[string]Probe, len(probes)),
	}
	for _, probe := range probes {
		if _, exists := cache.byName[probe.Name]; !exists {
			cache.byName[probe.Name] = probe
		}
		for _, port := range probe.Ports {
			if _, exists := cache.byPort[port]; !exists {
				cache.byPort[port] = probe
			}
		}
	}
	return cache
}

// ForPort returns the probe configured for port, if any.
func (pc *ProbeCache) ForPort(port uint16) (Probe, bool) {
	probe, ok := pc.byPort[port]
	return probe, ok
}

// GetProbeByName returns probe by name
func (pc *ProbeCache) GetProbeByName(name string) (Probe, bool) {
	probe, ok := pc.byName[name]
	return probe, ok
}

var defaultProbes = NewProbeCache(builtinProbes)

// DefaultProbes returns the process-wide probe cache built from the built-in probes.
func DefaultProbes() *ProbeCache {
	return defaultProbes
}
