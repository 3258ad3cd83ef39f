package main

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/newtrace/pkg/registry"
	"github.com/newtron-network/newtrace/pkg/routetable"
	"github.com/newtron-network/newtrace/pkg/util"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices in the registry",
	Long: `List every device in the registry with its platform, route count and
interface count, followed by the devices whose captures could not be parsed.

Examples:
  newtrace -i captures/ devices
  newtrace --snapshot lab.json devices --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(os.Stdout, newDevicesView(snap))
		}
		printDevices(os.Stdout, snap)
		return nil
	},
}

type deviceRow struct {
	ID         string `json:"id"`
	Platform   string `json:"platform"`
	Routes     int    `json:"routes"`
	Interfaces int    `json:"interfaces"`
}

type devicesView struct {
	BuiltAt  time.Time          `json:"built_at"`
	Devices  []deviceRow        `json:"devices"`
	Failures []registry.Failure `json:"failures,omitempty"`
}

func newDevicesView(snap *registry.Snapshot) devicesView {
	v := devicesView{BuiltAt: snap.BuiltAt(), Devices: []deviceRow{}, Failures: snap.Failures()}
	for _, d := range snap.Devices() {
		v.Devices = append(v.Devices, deviceRow{
			ID:         d.ID,
			Platform:   d.Platform,
			Routes:     d.RouteCount(),
			Interfaces: len(d.Interfaces),
		})
	}
	return v
}

func printDevices(w io.Writer, snap *registry.Snapshot) {
	if snap.Len() == 0 {
		fmt.Fprintln(w, "No devices in registry")
	}
	t := newTable(w, "DEVICE", "PLATFORM", "ROUTES", "INTERFACES")
	for _, d := range snap.Devices() {
		t.Row(d.ID, d.Platform, fmt.Sprint(d.RouteCount()), fmt.Sprint(len(d.Interfaces)))
	}
	t.Flush()

	if failures := snap.Failures(); len(failures) > 0 {
		fmt.Fprintf(w, "\n%s\n", yellow(fmt.Sprintf("Excluded (%d):", len(failures))))
		for _, f := range failures {
			fmt.Fprintf(w, "  %s: %s\n", f.Device, f.Reason)
		}
	}
}

var routesCmd = &cobra.Command{
	Use:   "routes <device>",
	Short: "Show a device's routing table",
	Long: `Show a device's routing table in prefix order.

Examples:
  newtrace -i captures/ routes R1
  newtrace -i captures/ routes R1 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		dev, err := requireDevice(snap, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			specs := make([]routetable.RouteSpec, 0, dev.RouteCount())
			for _, r := range dev.Routes() {
				specs = append(specs, r.Spec())
			}
			return writeJSON(os.Stdout, specs)
		}
		printRoutes(os.Stdout, dev)
		return nil
	},
}

func requireDevice(snap *registry.Snapshot, id string) (*routetable.Device, error) {
	dev, ok := snap.Device(id)
	if !ok {
		return nil, fmt.Errorf("device %s: %w", id, util.ErrNotFound)
	}
	return dev, nil
}

func printRoutes(w io.Writer, dev *routetable.Device) {
	fmt.Fprintf(w, "Device: %s (%s)\n\n", bold(dev.ID), dev.Platform)
	t := newTable(w, "PREFIX", "CODE", "NEXT-HOPS", "INTERFACE")
	for _, r := range dev.Routes() {
		t.Row(r.Prefix.String(), r.Code, nextHopText(r), r.Interface)
	}
	t.Flush()

	if len(dev.Interfaces) > 0 {
		fmt.Fprintln(w, "\nInterfaces:")
		it := newTable(w, "NAME", "ADDRESS").WithPrefix("  ")
		for _, i := range dev.Interfaces {
			it.Row(i.Name, i.Address.String())
		}
		it.Flush()
	}
}

func nextHopText(r *routetable.Route) string {
	if r.Local() {
		return dim("local")
	}
	hops := make([]string, len(r.NextHops))
	for i, nh := range r.NextHops {
		hops[i] = nh.String()
	}
	return strings.Join(hops, ", ")
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <device> <destination>",
	Short: "Longest-prefix match on one device",
	Long: `Show the route a device would use for a destination address or prefix.

Examples:
  newtrace -i captures/ lookup R1 192.168.204.10
  newtrace -i captures/ lookup R2 10.0.0.0/8`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		dev, err := requireDevice(snap, args[0])
		if err != nil {
			return err
		}
		r, err := lookupRoute(dev, args[1])
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(os.Stdout, r)
		}
		printLookup(os.Stdout, dev, args[1], r)
		return nil
	},
}

// lookupRoute matches destination on dev. A missing match is (nil, nil).
func lookupRoute(dev *routetable.Device, destination string) (*routetable.Route, error) {
	dst, err := util.ParseDestination(destination)
	if err != nil {
		return nil, err
	}
	r, ok := dev.LookupPrefix(dst)
	if !ok {
		return nil, nil
	}
	return r, nil
}

func printLookup(w io.Writer, dev *routetable.Device, destination string, r *routetable.Route) {
	if r == nil {
		fmt.Fprintf(w, "%s: %s for %s\n", dev.ID, yellow("no route"), destination)
		return
	}
	fmt.Fprintf(w, "%s: %s matches %s\n", dev.ID, destination, bold(r.Prefix.String()))
	if r.Code != "" {
		fmt.Fprintf(w, "  Code:      %s\n", r.Code)
	}
	if r.Local() {
		fmt.Fprintf(w, "  Delivered: %s\n", green(r.Interface))
	} else {
		fmt.Fprintf(w, "  Next hops: %s\n", nextHopText(r))
	}
	if r.Descriptor != "" {
		fmt.Fprintln(w, "  Route:")
		for _, line := range strings.Split(r.Descriptor, "\n") {
			fmt.Fprintf(w, "    %s\n", dim(strings.TrimSpace(line)))
		}
	}
}

var conflictsOnly bool

var neighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "Show the global neighbor index",
	Long: `Show every interface address and the device that owns it. An address
claimed by several devices resolves to the last one loaded; --conflicts
lists only those addresses with every claimant.

Examples:
  newtrace -i captures/ neighbors
  newtrace -i captures/ neighbors --conflicts`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		idx := snap.Neighbors()

		if conflictsOnly {
			if jsonOutput {
				return writeJSON(os.Stdout, idx.Conflicts())
			}
			printConflicts(os.Stdout, idx.Conflicts())
			return nil
		}
		if jsonOutput {
			return writeJSON(os.Stdout, idx.Entries())
		}
		printNeighbors(os.Stdout, idx)
		return nil
	},
}

func init() {
	neighborsCmd.Flags().BoolVar(&conflictsOnly, "conflicts", false, "Show only addresses claimed by more than one device")
}

func printNeighbors(w io.Writer, idx *registry.NeighborIndex) {
	conflicted := make(map[netip.Addr]bool)
	for _, c := range idx.Conflicts() {
		conflicted[c.Address] = true
	}

	t := newTable(w, "ADDRESS", "DEVICE", "INTERFACE", "")
	for _, e := range idx.Entries() {
		mark := ""
		if conflicted[e.Address] {
			mark = yellow("conflict")
		}
		t.Row(e.Address.String(), e.Device, e.Interface, mark)
	}
	t.Flush()
	fmt.Fprintf(w, "\n%d addresses, %d conflicts\n", idx.Len(), len(conflicted))
}

func printConflicts(w io.Writer, conflicts []registry.Conflict) {
	if len(conflicts) == 0 {
		fmt.Fprintln(w, green("No address conflicts"))
		return
	}
	t := newTable(w, "ADDRESS", "CLAIMANTS", "RESOLVES TO")
	for _, c := range conflicts {
		owners := make([]string, len(c.Owners))
		for i, o := range c.Owners {
			owners[i] = ownerText(o)
		}
		t.Row(c.Address.String(), strings.Join(owners, ", "), c.Owners[len(c.Owners)-1].Device)
	}
	t.Flush()
}
