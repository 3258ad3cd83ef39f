// Package routetable turns one device's routing-table capture into an
// immutable Device: an LPM index of routes plus the device's local
// interface addresses.
package routetable

import (
	"net/netip"
	"strings"

	"github.com/newtron-network/newtrace/pkg/lpm"
)

// Route is one routing-table entry. A local entry (no next-hops) ends at
// its egress interface; a remote entry forwards to one or more next-hops.
type Route struct {
	Prefix netip.Prefix `json:"prefix"`
	Code   string       `json:"code,omitempty"` // protocol code, e.g. "C", "S*", "O IA"

	// NextHops is ordered as listed in the capture, without duplicates.
	NextHops []netip.Addr `json:"next_hops,omitempty"`

	// Interface is the egress interface; required for local entries,
	// informational for remote ones.
	Interface string `json:"interface,omitempty"`

	// Descriptor is the matched text, kept verbatim for display.
	Descriptor string `json:"descriptor"`
}

// Local reports whether the route terminates on this device.
func (r *Route) Local() bool {
	return len(r.NextHops) == 0
}

// hostRoute reports whether the route is a local host ("L") entry.
func (r *Route) hostRoute() bool {
	for _, c := range strings.Fields(r.Code) {
		if strings.Trim(c, "*+%&") == "L" {
			return true
		}
	}
	return false
}

// Interface is a named interface address owned by a device.
type Interface struct {
	Name    string     `json:"name"`
	Address netip.Addr `json:"address"`
}

// Device is a parsed routing table. It is not modified after construction
// and may be read from many goroutines.
type Device struct {
	ID         string
	Platform   string
	Interfaces []Interface

	routes *lpm.Index[*Route]
}

func newDevice(id, platform string) *Device {
	return &Device{ID: id, Platform: platform, routes: lpm.New[*Route]()}
}

// Lookup returns the most specific route containing addr.
func (d *Device) Lookup(addr netip.Addr) (*Route, bool) {
	m, ok := d.routes.Lookup(addr)
	if !ok {
		return nil, false
	}
	return m.Value, true
}

// LookupPrefix returns the most specific route covering all of pfx.
func (d *Device) LookupPrefix(pfx netip.Prefix) (*Route, bool) {
	m, ok := d.routes.LookupPrefix(pfx)
	if !ok {
		return nil, false
	}
	return m.Value, true
}

// RouteCount returns the number of distinct prefixes in the table.
func (d *Device) RouteCount() int {
	return d.routes.Len()
}

// Routes returns every route in prefix order.
func (d *Device) Routes() []*Route {
	out := make([]*Route, 0, d.routes.Len())
	for _, r := range d.routes.All() {
		out = append(out, r)
	}
	return out
}

// insert adds r, replacing any route already stored for the same prefix.
func (d *Device) insert(r *Route) error {
	if err := d.routes.Insert(r.Prefix, r); err != nil {
		return err
	}
	r.Prefix = r.Prefix.Masked()
	return nil
}
