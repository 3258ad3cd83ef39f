// Newtrace - offline routing-path tracer
//
// Newtrace reads "show ip route" captures (Cisco IOS, IOS-XE, ASA), SONiC
// APPL_DB dumps or structured route tables, builds a longest-prefix-match
// table per device plus a global index of interface addresses, and lists
// every forwarding path from a source device to a destination.
//
// Data sources (one per invocation):
//
//	-i, --inventory   YAML inventory, or a directory of *.txt captures
//	                  and *.json APPL_DB dumps
//	    --snapshot    JSON snapshot written by "newtrace snapshot save"
//	    --redis       snapshot cached in Redis (--redis-addr, settings redis_addr)
//
// Examples:
//
//	newtrace -i captures/ trace R1 192.168.204.10
//	newtrace -i lab.yaml trace R1 10.9.0.0/24 --json
//	newtrace -i lab.yaml batch R1 -f destinations.txt
//	newtrace -i lab.yaml routes R2
//	newtrace -i lab.yaml snapshot save --redis
//	newtrace --redis shell
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/newtron-network/newtrace/pkg/cli"
	"github.com/newtron-network/newtrace/pkg/inventory"
	"github.com/newtron-network/newtrace/pkg/registry"
	"github.com/newtron-network/newtrace/pkg/settings"
	"github.com/newtron-network/newtrace/pkg/snapshot"
	"github.com/newtron-network/newtrace/pkg/tracer"
	"github.com/newtron-network/newtrace/pkg/util"
	"github.com/newtron-network/newtrace/pkg/version"
)

var (
	// Data source flags
	inventoryPath string // -i, --inventory
	platformName  string // -p, --platform
	snapshotPath  string // --snapshot
	fromRedis     bool   // --redis
	redisAddr     string // --redis-addr

	// Option flags
	workers    int
	loopPolicy string
	canonical  bool
	verbose    bool
	jsonOutput bool
	noColor    bool
	logJSON    bool

	// Global state
	userSettings *settings.Settings
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("Error:"), err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "newtrace",
	Short:             "Offline routing-path tracer",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Newtrace traces forwarding paths through a set of captured routing tables.

Each device's "show ip route" output is parsed into a longest-prefix-match
table; interface addresses map next hops to neighbor devices. A trace
follows every equal-cost next hop and reports how each path ends:
success, no-route, loop or unresolved-next-hop.

  newtrace -i <inventory> trace <source> <destination>`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if logJSON {
			util.SetJSONFormat()
		}
		if noColor {
			cli.SetColor(false)
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}
		if isSettingsOrHelp(cmd) {
			return nil
		}

		// Apply defaults from settings
		if inventoryPath == "" {
			inventoryPath = userSettings.DefaultInventory
		}
		if platformName == "" {
			platformName = userSettings.DefaultPlatform
		}
		if redisAddr == "" {
			redisAddr = userSettings.RedisAddr
		}
		if redisAddr == "" {
			redisAddr = "localhost:6379"
		}
		if workers <= 0 {
			workers = userSettings.GetWorkers()
		}
		if _, err := tracer.ParseLoopPolicy(loopPolicy); err != nil {
			return err
		}
		if snapshotPath != "" && fromRedis {
			return fmt.Errorf("--snapshot and --redis are mutually exclusive")
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&inventoryPath, "inventory", "i", "", "Inventory file or capture directory")
	flags.StringVarP(&platformName, "platform", "p", "", "Platform for captures that declare none (ios, iosxe, asa, sonic)")
	flags.StringVar(&snapshotPath, "snapshot", "", "Load the registry from a snapshot file instead of parsing")
	flags.BoolVar(&fromRedis, "redis", false, "Load the registry from the Redis snapshot cache")
	flags.StringVar(&redisAddr, "redis-addr", "", "Redis address (default from settings, then localhost:6379)")
	flags.IntVarP(&workers, "workers", "w", 0, "Parallel parse and trace workers (default GOMAXPROCS)")
	flags.StringVar(&loopPolicy, "loop-policy", "fanout", "On a loop, stop the whole fan-out (fanout) or only that next hop (branch)")
	flags.BoolVar(&canonical, "canonical", false, "Expand abbreviated interface names (Gi0/1 -> GigabitEthernet0/1)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	flags.BoolVar(&noColor, "no-color", false, "Disable coloured output")
	flags.BoolVar(&logJSON, "log-json", false, "Write logs to stderr as JSON")

	for _, cmd := range []*cobra.Command{
		traceCmd, batchCmd, devicesCmd, routesCmd, lookupCmd, neighborsCmd, snapshotCmd,
	} {
		addOutputFlags(cmd)
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "trace", Title: "Tracing:"},
		&cobra.Group{ID: "inspect", Title: "Registry Inspection:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{traceCmd, batchCmd, shellCmd} {
		cmd.GroupID = "trace"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{devicesCmd, routesCmd, lookupCmd, neighborsCmd, snapshotCmd} {
		cmd.GroupID = "inspect"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Line("newtrace"))
		if verbose {
			fmt.Println(version.Info())
		}
	},
}

// ============================================================================
// Registry Helpers
// ============================================================================

// buildOptions returns the parse options selected by the global flags.
func buildOptions() registry.Options {
	return registry.Options{Workers: workers, Canonical: canonical}
}

// buildFromInventory parses the inventory named by -i (or settings).
func buildFromInventory(ctx context.Context) (*registry.Snapshot, error) {
	if inventoryPath == "" {
		return nil, fmt.Errorf("inventory required: use -i <file|dir> or 'newtrace settings set default_inventory <path>'")
	}
	inv, err := inventory.Load(inventoryPath, platformName)
	if err != nil {
		return nil, err
	}
	return inv.Build(ctx, buildOptions())
}

// snapshotStore returns the store selected by --snapshot or --redis, or
// nil when the registry comes from the inventory.
func snapshotStore() snapshot.Store {
	switch {
	case snapshotPath != "":
		return &snapshot.FileStore{Path: snapshotPath}
	case fromRedis:
		return snapshot.NewRedisStore(redisAddr, userSettings.GetSnapshotKey())
	default:
		return nil
	}
}

// loadFromStore reads and rebuilds a stored snapshot.
func loadFromStore(ctx context.Context, store snapshot.Store) (*registry.Snapshot, error) {
	if rs, ok := store.(*snapshot.RedisStore); ok {
		defer rs.Close()
	}
	doc, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return doc.Snapshot()
}

// loadSnapshot returns the registry from whichever source the flags select.
func loadSnapshot(ctx context.Context) (*registry.Snapshot, error) {
	if store := snapshotStore(); store != nil {
		return loadFromStore(ctx, store)
	}
	return buildFromInventory(ctx)
}

// newTracer returns a tracer over snap using the --loop-policy flag.
func newTracer(snap *registry.Snapshot) *tracer.Tracer {
	// Validated in PersistentPreRunE.
	policy, _ := tracer.ParseLoopPolicy(loopPolicy)
	return tracer.New(snap, tracer.WithLoopPolicy(policy))
}

// sourceDevice returns args[0] when the command got want arguments, or the
// default_source setting when it got one fewer.
func sourceDevice(args []string, want int) (string, []string, error) {
	if len(args) >= want {
		return args[0], args[1:], nil
	}
	if userSettings.DefaultSource == "" {
		return "", nil, fmt.Errorf("source device required: pass it as the first argument or 'newtrace settings set default_source <device>'")
	}
	return userSettings.DefaultSource, args, nil
}

// ============================================================================
// Flag Helpers
// ============================================================================

// isSettingsOrHelp checks whether cmd (or any ancestor) is a settings, help, or version command.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}

// addOutputFlags registers --json as a local flag.
// For noun-group parent commands, this is a PersistentFlag so subcommands inherit.
func addOutputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVar(&jsonOutput, "json", false, "JSON output")
}

// Color helpers; delegate to pkg/cli
func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }
func dim(s string) string    { return cli.Dim(s) }
