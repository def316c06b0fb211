package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"portsight/logging"
	"portsight/scanner"
)

// Exit codes returned by Run.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// options holds everything parsed from the command line.
type options struct {
	config     scanner.ScanConfig
	jsonOutput bool
	verbose    bool
}

// Run is the main entry point for the CLI application.
// It parses args, validates the port range, runs the scan and writes the report to stdout.
// The returned value is the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitUsage
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logging.Configure(stderr, level)

	cfg := opts.config
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", configMessage(err))
		return ExitError
	}

	if !opts.jsonOutput {
		fmt.Fprintf(stdout, "Scanning %s ports %d to %d (timeout: %s)...\n\n",
			cfg.Target, cfg.StartPort, cfg.EndPort, timeoutLabel(cfg))
	}

	results, err := scanner.RunScan(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", configMessage(err))
		return ExitError
	}

	if opts.jsonOutput {
		if err := outputJSON(stdout, results); err != nil {
			fmt.Fprintf(stderr, "Error encoding to JSON: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
	outputPlainText(stdout, results)
	return ExitOK
}

// timeoutLabel echoes the requested timeout, naming the substituted value when zero selects the default.
func timeoutLabel(cfg scanner.ScanConfig) string {
	if cfg.TimeoutMs == 0 {
		return fmt.Sprintf("%dms (default)", scanner.DefaultConnectTimeout.Milliseconds())
	}
	return fmt.Sprintf("%dms", cfg.TimeoutMs)
}

// configMessage drops the detail suffix from range errors so the user sees the plain rule.
func configMessage(err error) string {
	if errors.Is(err, scanner.ErrInvalidPortRange) {
		return scanner.ErrInvalidPortRange.Error()
	}
	return err.Error()
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("portsight", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(fs) }

	var (
		target           string
		start, end       uint
		timeout          uint64
		workers          int
		jsonOut, verbose bool
	)
	fs.StringVar(&target, "t", "127.0.0.1", "Target hostname or IP address")
	fs.StringVar(&target, "target", "127.0.0.1", "Target hostname or IP address")
	fs.UintVar(&start, "s", 1, "First port to scan")
	fs.UintVar(&start, "start", 1, "First port to scan")
	fs.UintVar(&end, "e", 1024, "Last port to scan")
	fs.UintVar(&end, "end", 1024, "Last port to scan")
	fs.Uint64Var(&timeout, "m", 500, "Connect timeout in milliseconds")
	fs.Uint64Var(&timeout, "timeout", 500, "Connect timeout in milliseconds")
	fs.IntVar(&workers, "w", scanner.DefaultWorkers, "Maximum concurrent probes")
	fs.IntVar(&workers, "workers", scanner.DefaultWorkers, "Maximum concurrent probes")
	fs.BoolVar(&jsonOut, "json", false, "Output results in JSON format")
	fs.BoolVar(&verbose, "v", false, "Verbose (debug) logging to stderr")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if start > math.MaxUint16 || end > math.MaxUint16 {
		return options{}, fmt.Errorf("ports must be within 0-%d range", math.MaxUint16)
	}

	return options{
		config: scanner.ScanConfig{
			Target:    target,
			StartPort: uint16(start),
			EndPort:   uint16(end),
			TimeoutMs: timeout,
			Workers:   workers,
		},
		jsonOutput: jsonOut,
		verbose:    verbose,
	}, nil
}

// printUsage displays the help message.
func printUsage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "Usage: portsight [-t target] [-s start] [-e end] [-m timeoutMs] [-w workers] [--json] [-v]")
	fmt.Fprintln(out, "       portsight serve")
	fmt.Fprintln(out, "Example: portsight -t 192.168.1.10 -s 1 -e 1024 -m 300")
	fmt.Fprintln(out, "Example: portsight --json -t scanme.nmap.org -s 20 -e 80")
	fs.PrintDefaults()
}

// outputJSON writes the findings as an indented JSON array.
func outputJSON(w io.Writer, results []scanner.PortResult) error {
	jsonData, err := json.MarshalIndent(scanner.Findings(results), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

// outputPlainText prints the PORT | SERVICE | BANNER table.
// Services are derived from the fingerprinter at render time.
func outputPlainText(w io.Writer, results []scanner.PortResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No open ports found.")
		return
	}

	fmt.Fprintf(w, "%-8s %-25s %s\n", "PORT", "SERVICE", "BANNER")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, f := range scanner.Findings(results) {
		banner := f.Banner
		if banner == "" {
			banner = "none"
		}
		fmt.Fprintf(w, "%-8d %-25s %s\n", f.Port, f.Service, banner)
	}
	fmt.Fprintf(w, "\nScan complete. %d open port(s) found.\n", len(results))
}
