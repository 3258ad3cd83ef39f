package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/newtrace/pkg/registry"
	"github.com/newtron-network/newtrace/pkg/tracer"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive trace shell",
	Long: `Start an interactive shell over one loaded registry.

The registry is parsed once; "reload" rebuilds it from the same source
and swaps it in without interrupting queries.

Examples:
  newtrace -i captures/ shell
  newtrace --redis shell`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		snap, err := loadSnapshot(ctx)
		if err != nil {
			return err
		}
		policy, _ := tracer.ParseLoopPolicy(loopPolicy)

		sh := NewShell(registry.NewHolder(snap), loadSnapshot, os.Stdin, os.Stdout)
		sh.policy = policy
		sh.source = userSettings.DefaultSource
		return sh.Run(ctx)
	},
}

// Shell is an interactive REPL over a published snapshot.
type Shell struct {
	holder   *registry.Holder
	rebuild  func(context.Context) (*registry.Snapshot, error)
	policy   tracer.LoopPolicy
	source   string // default trace source, "" = none
	reader   *bufio.Reader
	out      io.Writer
	commands map[string]func(ctx context.Context, args []string)
}

// NewShell creates a shell reading commands from in. rebuild is called by
// "reload" to produce a replacement snapshot.
func NewShell(holder *registry.Holder, rebuild func(context.Context) (*registry.Snapshot, error), in io.Reader, out io.Writer) *Shell {
	s := &Shell{
		holder:  holder,
		rebuild: rebuild,
		reader:  bufio.NewReader(in),
		out:     out,
	}
	s.commands = map[string]func(context.Context, []string){
		"trace":     func(_ context.Context, args []string) { s.cmdTrace(args) },
		"source":    func(_ context.Context, args []string) { s.cmdSource(args) },
		"lookup":    func(_ context.Context, args []string) { s.cmdLookup(args) },
		"routes":    func(_ context.Context, args []string) { s.cmdRoutes(args) },
		"devices":   func(context.Context, []string) { printDevices(s.out, s.holder.Load()) },
		"neighbors": func(context.Context, []string) { printNeighbors(s.out, s.holder.Load().Neighbors()) },
		"policy":    func(_ context.Context, args []string) { s.cmdPolicy(args) },
		"reload":    func(ctx context.Context, _ []string) { s.cmdReload(ctx) },
		"help":      func(context.Context, []string) { s.cmdHelp() },
		"?":         func(context.Context, []string) { s.cmdHelp() },
	}
	return s
}

// Run reads and executes commands until exit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintf(s.out, "Loaded %s devices.\n", bold(fmt.Sprint(s.holder.Load().Len())))
	fmt.Fprintln(s.out, "Type 'help' for available commands.")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(s.out, s.prompt())

		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" { // EOF
			fmt.Fprintln(s.out)
			return nil
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit", "q":
			return nil
		default:
			if fn, ok := s.commands[args[0]]; ok {
				fn(ctx, args[1:])
			} else {
				fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", args[0])
			}
		}
	}
}

func (s *Shell) prompt() string {
	if s.source != "" {
		return fmt.Sprintf("newtrace %s> ", s.source)
	}
	return "newtrace> "
}

func (s *Shell) cmdTrace(args []string) {
	source := s.source
	switch {
	case len(args) == 2:
		source, args = args[0], args[1:]
	case len(args) == 1 && source != "":
	default:
		fmt.Fprintln(s.out, "Usage: trace [source] <destination>")
		return
	}

	t := tracer.New(s.holder.Load(), tracer.WithLoopPolicy(s.policy))
	paths, err := t.Trace(source, args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	printTrace(s.out, source, args[0], paths)
}

func (s *Shell) cmdSource(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: source <device>")
		return
	}
	if _, ok := s.holder.Load().Device(args[0]); !ok {
		fmt.Fprintf(s.out, "Device %s is not in the registry\n", args[0])
		return
	}
	s.source = args[0]
}

func (s *Shell) cmdLookup(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "Usage: lookup <device> <destination>")
		return
	}
	dev, err := requireDevice(s.holder.Load(), args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	r, err := lookupRoute(dev, args[1])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	printLookup(s.out, dev, args[1], r)
}

func (s *Shell) cmdRoutes(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: routes <device>")
		return
	}
	dev, err := requireDevice(s.holder.Load(), args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	printRoutes(s.out, dev)
}

func (s *Shell) cmdPolicy(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "Loop policy: %s\n", s.policy)
		return
	}
	p, err := tracer.ParseLoopPolicy(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.policy = p
	fmt.Fprintf(s.out, "Loop policy: %s\n", s.policy)
}

func (s *Shell) cmdReload(ctx context.Context) {
	snap, err := s.holder.Reload(ctx, s.rebuild)
	if err != nil {
		fmt.Fprintf(s.out, "%s %v (keeping current registry)\n", red("Reload failed:"), err)
		return
	}
	fmt.Fprintf(s.out, "Reloaded %d devices (%d excluded).\n", snap.Len(), len(snap.Failures()))
	if s.source != "" {
		if _, ok := snap.Device(s.source); !ok {
			fmt.Fprintf(s.out, "%s source %s is no longer in the registry\n", yellow("Warning:"), s.source)
		}
	}
}

func (s *Shell) cmdHelp() {
	help := map[string]string{
		"trace [source] <dst>":   "Trace every path to an address or prefix",
		"source <device>":        "Set the default trace source",
		"lookup <device> <dst>":  "Longest-prefix match on one device",
		"routes <device>":        "Show a device's routing table",
		"devices":                "List devices and excluded captures",
		"neighbors":              "Show the neighbor index",
		"policy [fanout|branch]": "Show or set the loop policy",
		"reload":                 "Rebuild the registry from its source",
		"exit":                   "Leave the shell",
	}
	names := make([]string, 0, len(help))
	for name := range help {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable(s.out, "COMMAND", "DESCRIPTION").WithPrefix("  ")
	for _, name := range names {
		t.Row(name, help[name])
	}
	t.Flush()
}
