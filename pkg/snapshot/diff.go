package snapshot

import (
	"slices"
	"sort"

	"github.com/newtron-network/newtrace/pkg/routetable"
)

// Change kinds.
const (
	DeviceAdded   = "added"
	DeviceRemoved = "removed"
	DeviceChanged = "changed"
)

// DeviceDiff lists the route prefixes that differ for one device.
type DeviceDiff struct {
	Device  string   `json:"device"`
	Kind    string   `json:"kind"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Changed []string `json:"changed,omitempty"`
}

// Diff compares two documents device by device. A route is changed when
// its code, next-hops or interface differ; descriptor text is not
// compared because it carries route age timers. Devices only in b are
// added, devices only in a are removed. Results are sorted by device id.
func Diff(a, b *Document) []DeviceDiff {
	before := index(a)
	after := index(b)

	var out []DeviceDiff
	for id, old := range before {
		cur, ok := after[id]
		if !ok {
			out = append(out, DeviceDiff{Device: id, Kind: DeviceRemoved, Removed: prefixes(old)})
			continue
		}
		if d := diffRoutes(old, cur); d != nil {
			d.Device = id
			out = append(out, *d)
		}
	}
	for id, cur := range after {
		if _, ok := before[id]; !ok {
			out = append(out, DeviceDiff{Device: id, Kind: DeviceAdded, Added: prefixes(cur)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Device < out[j].Device })
	return out
}

func index(doc *Document) map[string]map[string]routetable.RouteSpec {
	out := make(map[string]map[string]routetable.RouteSpec)
	if doc == nil {
		return out
	}
	for _, d := range doc.Devices {
		routes := make(map[string]routetable.RouteSpec, len(d.Routes))
		for _, r := range d.Routes {
			routes[r.Prefix] = r
		}
		out[d.ID] = routes
	}
	return out
}

func diffRoutes(old, cur map[string]routetable.RouteSpec) *DeviceDiff {
	d := &DeviceDiff{Kind: DeviceChanged}
	for p, r := range old {
		nr, ok := cur[p]
		switch {
		case !ok:
			d.Removed = append(d.Removed, p)
		case r.Code != nr.Code || r.Interface != nr.Interface || !slices.Equal(r.NextHops, nr.NextHops):
			d.Changed = append(d.Changed, p)
		}
	}
	for p := range cur {
		if _, ok := old[p]; !ok {
			d.Added = append(d.Added, p)
		}
	}
	if len(d.Added)+len(d.Removed)+len(d.Changed) == 0 {
		return nil
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d
}

func prefixes(routes map[string]routetable.RouteSpec) []string {
	out := make([]string, 0, len(routes))
	for p := range routes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
