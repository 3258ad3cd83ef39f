package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/newtrace/pkg/util"
)

var traceCmd = &cobra.Command{
	Use:   "trace [source] <destination>",
	Short: "Trace every path from a device to a destination",
	Long: `Trace every forwarding path from a source device to a destination.

The destination is an IPv4 address or a CIDR prefix. For a prefix each
device uses the most specific route covering all of it. Equal-cost next
hops fan out into separate paths; each path ends in success, no-route,
loop or unresolved-next-hop. The source defaults to the default_source
setting.

Examples:
  newtrace -i captures/ trace R1 192.168.204.10
  newtrace -i captures/ trace R1 10.20.0.0/16 --json
  newtrace -i captures/ --loop-policy branch trace R1 172.16.5.1`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, rest, err := sourceDevice(args, 2)
		if err != nil {
			return err
		}
		destination := rest[0]

		snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		if _, ok := snap.Device(source); !ok {
			util.WithDevice(source).Warn("Source device is not in the registry")
		}

		paths, err := newTracer(snap).Trace(source, destination)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(os.Stdout, newTraceView(source, destination, paths, nil))
		}
		printTrace(os.Stdout, source, destination, paths)
		return nil
	},
}

var batchFile string

var batchCmd = &cobra.Command{
	Use:   "batch [source] [destination...]",
	Short: "Trace many destinations in parallel",
	Long: `Trace many destinations from one source device in parallel.

Destinations come from the arguments and from -f (one per line; blank
lines and lines starting with '#' are skipped; "-" reads stdin). With -f
or several destinations the first argument is the source device.

Examples:
  newtrace -i lab.yaml batch R1 10.0.0.1 10.20.0.0/16 192.168.204.10
  newtrace -i lab.yaml batch R1 -f destinations.txt --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var fromFile []string
		if batchFile != "" {
			var err error
			fromFile, err = readDestinations(batchFile)
			if err != nil {
				return err
			}
		}

		source := userSettings.DefaultSource
		dests := args
		if len(args) > 0 && (batchFile != "" || len(args) > 1) {
			source, dests = args[0], args[1:]
		}
		if source == "" {
			return fmt.Errorf("source device required: pass it as the first argument or 'newtrace settings set default_source <device>'")
		}
		dests = append(dests, fromFile...)
		if len(dests) == 0 {
			return fmt.Errorf("no destinations: pass them as arguments or with -f <file>")
		}

		snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		results, err := newTracer(snap).TraceBatch(cmd.Context(), source, dests, workers)
		if err != nil {
			return err
		}

		if jsonOutput {
			views := make([]traceView, len(results))
			for i, r := range results {
				views[i] = newTraceView(source, r.Destination, r.Paths, r.Err)
			}
			return writeJSON(os.Stdout, views)
		}
		printBatch(os.Stdout, source, results)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "File of destinations, one per line (- for stdin)")
}

// readDestinations reads a destination list file.
func readDestinations(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading destinations: %w", err)
		}
		defer f.Close()
		r = f
	}
	return parseDestinations(r)
}

func parseDestinations(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, strings.Fields(line)[0])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading destinations: %w", err)
	}
	return out, nil
}
