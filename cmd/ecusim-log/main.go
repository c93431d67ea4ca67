// Command ecusim-log is a tool for viewing and analyzing simulation event
// logs.
//
// Log files are created by running ecusim with the -event-log flag.
//
// Usage:
//
//	ecusim-log <command> [flags] <file.elog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	ecusim-log view run.elog
//
//	# View only readings of the second radar sensor
//	ecusim-log view --category sample --sensor radar:2 run.elog
//
//	# Export to CSV
//	ecusim-log export --format csv -o run.csv run.elog
//
//	# Keep only events that touched ECU 2
//	ecusim-log filter --ecu 2 -o diag.elog run.elog
//
//	# Show statistics
//	ecusim-log stats run.elog
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mash-protocol/ecusim/cmd/ecusim-log/commands"
)

var errMissingPath = errors.New("log file path required")

// command is one ecusim-log subcommand. setup registers the flags and
// returns the action to run once they are parsed.
type command struct {
	name    string
	summary string
	setup   func(fs *flag.FlagSet, stdout io.Writer) func(path string) error
}

var commandList = []command{
	{"view", "View log file in human-readable format", setupView},
	{"export", "Export log file to JSON or CSV format", setupExport},
	{"filter", "Filter log file and write to new file", setupFilter},
	{"stats", "Show statistics about the log file", setupStats},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 1
	}

	name := args[0]
	switch name {
	case "-h", "-help", "--help", "help":
		printUsage(stdout)
		return 0
	}

	for _, cmd := range commandList {
		if cmd.name != name {
			continue
		}
		if err := cmd.execute(args[1:], stdout, stderr); err != nil {
			if !errors.Is(err, flag.ErrHelp) {
				fmt.Fprintf(stderr, "Error: %v\n", err)
			}
			return 1
		}
		return 0
	}

	fmt.Fprintf(stderr, "Unknown command: %s\n", name)
	printUsage(stderr)
	return 1
}

func (c command) execute(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "ecusim-log %s - %s\n\nUsage:\n  ecusim-log %s [flags] <file.elog>\n\nFlags:\n",
			c.name, c.summary, c.name)
		fs.PrintDefaults()
	}

	action := c.setup(fs, stdout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errMissingPath
	}
	return action(fs.Arg(0))
}

func printUsage(w io.Writer) {
	var b strings.Builder
	b.WriteString("ecusim-log - ECU Simulation Log Analyzer\n\n")
	b.WriteString("Usage:\n  ecusim-log <command> [flags] <file.elog>\n\nCommands:\n")
	for _, cmd := range commandList {
		fmt.Fprintf(&b, "  %-8s %s\n", cmd.name, cmd.summary)
	}
	b.WriteString("\nUse \"ecusim-log <command> -help\" for more information about a command.\n")
	fmt.Fprint(w, b.String())
}

func setupView(fs *flag.FlagSet, stdout io.Writer) func(string) error {
	category := fs.String("category", "", "Filter by category (lifecycle, subscription, notification, sample, vehicle, error)")
	sensorFlag := fs.String("sensor", "", "Filter by sensor (category or category:instance)")
	ecuFlag := fs.String("ecu", "", "Filter by ECU id")

	return func(path string) error {
		filter := commands.ViewFilter{Sensor: *sensorFlag}
		if *category != "" {
			c, err := commands.ParseCategoryFlag(*category)
			if err != nil {
				return err
			}
			filter.Category = &c
		}
		if *ecuFlag != "" {
			id, err := commands.ParseECUFlag(*ecuFlag)
			if err != nil {
				return err
			}
			filter.ECUID = &id
		}
		return commands.RunView(path, filter, stdout)
	}
}

func setupExport(fs *flag.FlagSet, _ io.Writer) func(string) error {
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	return func(path string) error {
		return commands.RunExport(path, *format, *output)
	}
}

func setupFilter(fs *flag.FlagSet, stdout io.Writer) func(string) error {
	var opts commands.FilterOptions
	fs.StringVar(&opts.Output, "o", "", "Output file (required)")
	fs.StringVar(&opts.SessionID, "session", "", "Filter by session ID")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category")
	fs.StringVar(&opts.Sensor, "sensor", "", "Filter by sensor (category or category:instance)")
	fs.StringVar(&opts.ECUID, "ecu", "", "Filter by ECU id")

	return func(path string) error {
		if opts.Output == "" {
			return errors.New("output file (-o) required")
		}
		count, err := commands.RunFilter(path, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Filtered %d events to %s\n", count, opts.Output)
		return nil
	}
}

func setupStats(_ *flag.FlagSet, stdout io.Writer) func(string) error {
	return func(path string) error {
		return commands.RunStats(path, stdout)
	}
}
