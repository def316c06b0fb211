package scanner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"portsight/logging"
)

const (
	// DefaultConnectTimeout bounds the connect attempt when ScanConfig.TimeoutMs is zero.
	DefaultConnectTimeout = 500 * time.Millisecond
	// DefaultWorkers caps the number of probes in flight at once.
	DefaultWorkers = 500
)

// ErrInvalidPortRange is returned when the start port is above the end port.
var ErrInvalidPortRange = errors.New("start port must be less than or equal to end port")

// maxTimeoutMs is the largest millisecond count a time.Duration can hold.
const maxTimeoutMs = uint64(math.MaxInt64 / int64(time.Millisecond))

// ScanConfig describes a single-host scan. It is built once from validated input and only read afterwards.
type ScanConfig struct {
	Target    string
	StartPort uint16
	EndPort   uint16
	TimeoutMs uint64
	// Workers caps concurrent probes. Zero or negative means DefaultWorkers.
	Workers int
}

// Validate rejects configurations that must not reach the network.
// The port range is the only rule; a blank or unresolvable target simply yields no open ports.
func (c ScanConfig) Validate() error {
	if c.StartPort > c.EndPort {
		return fmt.Errorf("%w (start=%d, end=%d)", ErrInvalidPortRange, c.StartPort, c.EndPort)
	}
	return nil
}

// Timeout returns the connect timeout as a duration, saturating at the largest Duration.
func (c ScanConfig) Timeout() time.Duration {
	if c.TimeoutMs == 0 {
		return DefaultConnectTimeout
	}
	if c.TimeoutMs > maxTimeoutMs {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// PortCount returns the number of ports in the inclusive range.
func (c ScanConfig) PortCount() int {
	if c.StartPort > c.EndPort {
		return 0
	}
	return int(c.EndPort) - int(c.StartPort) + 1
}

func (c ScanConfig) workers() int {
	w := c.Workers
	if w <= 0 {
		w = DefaultWorkers
	}
	if n := c.PortCount(); n > 0 && w > n {
		w = n
	}
	return w
}

// PortResult is one open port. An empty Banner means no banner was obtained.
type PortResult struct {
	Port   uint16 `json:"port"`
	Banner string `json:"banner,omitempty"`
}

// HasBanner reports whether a banner was read from the port.
func (r PortResult) HasBanner() bool {
	return r.Banner != ""
}

// resultSet collects results from concurrent probe units.
type resultSet struct {
	mu      sync.Mutex
	results []PortResult
}

func (s *resultSet) add(r PortResult) {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
}

// sorted must only be called once every writer has finished.
func (s *resultSet) sorted() []PortResult {
	sort.Slice(s.results, func(i, j int) bool {
		return s.results[i].Port < s.results[j].Port
	})
	return s.results
}

// RunScan probes every port in [StartPort, EndPort] and returns the open ones ordered by port.
// Individual port failures never surface as errors; only an invalid configuration does.
// Cancelling ctx stops new probes from starting and aborts pending connects; RunScan still
// waits for every started probe before returning.
func RunScan(ctx context.Context, cfg ScanConfig) ([]PortResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.Logger()
	start := time.Now()
	workers := cfg.workers()
	logger.Debug("scan started",
		"target", cfg.Target,
		"start_port", cfg.StartPort,
		"end_port", cfg.EndPort,
		"timeout_ms", cfg.Timeout().Milliseconds(),
		"workers", workers,
	)

	var (
		wg  sync.WaitGroup
		set = &resultSet{results: make([]PortResult, 0, 16)}
		sem = semaphore.NewWeighted(int64(workers))
	)

	timeout := cfg.Timeout()
	// int loop variable so EndPort == 65535 terminates.
	for p := int(cfg.StartPort); p <= int(cfg.EndPort); p++ {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(port uint16) {
			defer wg.Done()
			defer sem.Release(1)
			if res, open := scanPort(ctx, cfg.Target, port, timeout); open {
				set.add(res)
			}
		}(uint16(p))
	}

	wg.Wait()
	results := set.sorted()

	logger.Debug("scan finished",
		"target", cfg.Target,
		"open_ports", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

// Finding is a PortResult with its service label derived for presentation.
type Finding struct {
	Port    uint16 `json:"port"`
	Service string `json:"service"`
	Banner  string `json:"banner,omitempty"`
}

// Findings classifies each result. Services are derived here and never stored on PortResult.
func Findings(results []PortResult) []Finding {
	out := make([]Finding, 0, len(results))
	for _, r := range results {
		out = append(out, Finding{
			Port:    r.Port,
			Service: Classify(r.Port, r.Banner),
			Banner:  r.Banner,
		})
	}
	return out
}
