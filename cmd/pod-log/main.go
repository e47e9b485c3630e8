// Command pod-log reads protocol capture files written by pod-host.
//
// Captures are created by running pod-host with -protocol-log.
//
// Usage:
//
//	pod-log <command> [flags] <file.plog|->
//
// Commands:
//
//	show     Print events in human-readable form
//	stats    Show statistics about the capture
//	export   Export events to JSON lines or CSV
//	filter   Copy matching events to a new capture
//
// Examples:
//
//	# Everything sent to the drone
//	pod-log show -direction out pod.plog
//
//	# Decoded gimbal messages only
//	pod-log show -layer wire -feature gimbal pod.plog
//
//	# Continuous commands of one session
//	pod-log stats -session 3f2a9c1e-... -category noack pod.plog
//
//	# Capture piped from another host
//	ssh pod cat /tmp/pod.plog | pod-log stats -
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Pix4D/pod-arsdkengine/cmd/pod-log/commands"
)

const usage = `pod-log - protocol capture reader

Usage:
  pod-log <command> [flags] <file.plog|->

Commands:
  show     Print events in human-readable form
  stats    Show statistics about the capture
  export   Export events to JSON lines or CSV
  filter   Copy matching events to a new capture

Use "pod-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "show", "view":
		runShow(args)
	case "stats":
		runStats(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet creates the flag set of a command with the shared filter flags.
func newFlagSet(name, summary string) (*flag.FlagSet, *commands.FilterOptions) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "pod-log %s - %s\n\nUsage:\n  pod-log %s [flags] <file.plog|->\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}

	var opts commands.FilterOptions
	fs.StringVar(&opts.SessionID, "session", "", "Filter by session ID")
	fs.StringVar(&opts.DeviceID, "device", "", "Filter by device uid")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, component)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (command, event, noack, state, error)")
	fs.StringVar(&opts.Feature, "feature", "", "Filter by message feature (network, gimbal, followme...)")
	return fs, &opts
}

// parse parses args and returns the capture path.
func parse(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runShow(args []string) {
	fs, opts := newFlagSet("show", "Print events in human-readable form")
	path := parse(fs, args)
	if err := commands.RunShow(path, *opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs, opts := newFlagSet("stats", "Show statistics about the capture")
	path := parse(fs, args)
	if err := commands.RunStats(path, *opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs, opts := newFlagSet("export", "Export events to JSON lines or CSV")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parse(fs, args)
	if err := commands.RunExport(path, *format, *output, *opts); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs, opts := newFlagSet("filter", "Copy matching events to a new capture")
	output := fs.String("o", "", "Output file (required)")
	path := parse(fs, args)
	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	if err := commands.RunFilter(path, *output, *opts, os.Stdout); err != nil {
		fail(err)
	}
}
