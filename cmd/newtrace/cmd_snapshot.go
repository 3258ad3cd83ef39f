package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/newtrace/pkg/snapshot"
)

var (
	snapshotOut string
	snapshotTTL time.Duration
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save, inspect and compare registry snapshots",
	Long: `A snapshot is the parsed registry as JSON: every device's routes and
interfaces plus the captures that failed to parse. Loading one with
--snapshot or --redis skips parsing entirely.

Examples:
  newtrace -i captures/ snapshot save -o lab.json
  newtrace -i captures/ snapshot save --redis --ttl 24h
  newtrace --snapshot lab.json snapshot show
  newtrace -i captures/ snapshot diff lab.json`,
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Parse the inventory and save a snapshot",
	Long: `Parse the inventory and write a snapshot to a file (-o) or to the
Redis cache (--redis).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if snapshotOut == "" && !fromRedis {
			return fmt.Errorf("destination required: use -o <file> or --redis")
		}

		snap, err := buildFromInventory(ctx)
		if err != nil {
			return err
		}
		doc := snapshot.FromSnapshot(snap)

		if snapshotOut != "" {
			if err := (&snapshot.FileStore{Path: snapshotOut}).Save(ctx, doc); err != nil {
				return err
			}
			fmt.Printf("Saved %d devices to %s\n", len(doc.Devices), snapshotOut)
		}
		if fromRedis {
			if err := saveToRedis(ctx, doc); err != nil {
				return err
			}
			fmt.Printf("Saved %d devices to redis %s key %s\n", len(doc.Devices), redisAddr, userSettings.GetSnapshotKey())
		}
		if n := len(doc.Failures); n > 0 {
			fmt.Println(yellow(fmt.Sprintf("%d devices excluded (see 'newtrace devices')", n)))
		}
		return nil
	},
}

func saveToRedis(ctx context.Context, doc *snapshot.Document) error {
	rs := snapshot.NewRedisStore(redisAddr, userSettings.GetSnapshotKey())
	defer rs.Close()
	rs.TTL = snapshotTTL

	if err := rs.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to redis %s: %w", redisAddr, err)
	}
	return rs.Save(ctx, doc)
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the snapshot selected by --snapshot or --redis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := snapshotStore()
		if store == nil {
			return fmt.Errorf("snapshot required: use --snapshot <file> or --redis")
		}
		if rs, ok := store.(*snapshot.RedisStore); ok {
			defer rs.Close()
		}
		doc, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(os.Stdout, doc)
		}
		printDocument(os.Stdout, doc)
		return nil
	},
}

func printDocument(w io.Writer, doc *snapshot.Document) {
	fmt.Fprintf(w, "Snapshot version %d, built %s\n\n", doc.Version, doc.BuiltAt.Format(time.RFC3339))
	t := newTable(w, "DEVICE", "PLATFORM", "ROUTES", "INTERFACES")
	for _, d := range doc.Devices {
		t.Row(d.ID, d.Platform, fmt.Sprint(len(d.Routes)), fmt.Sprint(len(d.Interfaces)))
	}
	t.Flush()
	for _, f := range doc.Failures {
		fmt.Fprintf(w, "  %s %s: %s\n", yellow("excluded"), f.Device, f.Reason)
	}
}

var snapshotDiffCmd = &cobra.Command{
	Use:   "diff <old.json> [new.json]",
	Short: "Compare two snapshots",
	Long: `Compare route tables device by device. With one file, the current
registry (from -i, --snapshot or --redis) is the new side.

A route counts as changed when its code, next hops or interface differ.

Examples:
  newtrace snapshot diff monday.json tuesday.json
  newtrace -i captures/ snapshot diff monday.json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		old, err := (&snapshot.FileStore{Path: args[0]}).Load(ctx)
		if err != nil {
			return err
		}

		var cur *snapshot.Document
		if len(args) == 2 {
			cur, err = (&snapshot.FileStore{Path: args[1]}).Load(ctx)
		} else {
			cur, err = currentDocument(ctx)
		}
		if err != nil {
			return err
		}

		diffs := snapshot.Diff(old, cur)
		if jsonOutput {
			if diffs == nil {
				diffs = []snapshot.DeviceDiff{}
			}
			return writeJSON(os.Stdout, diffs)
		}
		printDiff(os.Stdout, diffs)
		return nil
	},
}

// currentDocument captures the registry selected by the global flags.
func currentDocument(ctx context.Context) (*snapshot.Document, error) {
	snap, err := loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.FromSnapshot(snap), nil
}

func printDiff(w io.Writer, diffs []snapshot.DeviceDiff) {
	if len(diffs) == 0 {
		fmt.Fprintln(w, green("No route changes"))
		return
	}
	for _, d := range diffs {
		fmt.Fprintf(w, "%s %s\n", bold(d.Device), diffKind(d.Kind))
		for _, p := range d.Added {
			fmt.Fprintf(w, "  %s %s\n", green("+"), p)
		}
		for _, p := range d.Removed {
			fmt.Fprintf(w, "  %s %s\n", red("-"), p)
		}
		for _, p := range d.Changed {
			fmt.Fprintf(w, "  %s %s\n", yellow("~"), p)
		}
	}
}

func diffKind(kind string) string {
	switch kind {
	case snapshot.DeviceAdded:
		return green("(" + kind + ")")
	case snapshot.DeviceRemoved:
		return red("(" + kind + ")")
	default:
		return yellow("(" + kind + ")")
	}
}

func init() {
	snapshotSaveCmd.Flags().StringVarP(&snapshotOut, "output", "o", "", "Write the snapshot to this file")
	snapshotSaveCmd.Flags().DurationVar(&snapshotTTL, "ttl", 0, "Expire the Redis snapshot after this long (0 keeps it)")

	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotShowCmd, snapshotDiffCmd)
}
