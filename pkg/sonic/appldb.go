// Package sonic reads routing tables from SONiC APPL_DB dumps, the JSON
// written by "sonic-db-dump -n APPL_DB". ROUTE_TABLE entries (written by
// fpmsyncd) become routes; INTF_TABLE address keys become interface
// addresses and their connected subnets.
//
// Both the typed dump form
//
//	{"ROUTE_TABLE:10.1.0.0/24": {"type": "hash", "value": {"nexthop": "10.0.0.1", "ifname": "Ethernet0"}}}
//
// and the bare hash form
//
//	{"ROUTE_TABLE:10.1.0.0/24": {"nexthop": "10.0.0.1", "ifname": "Ethernet0"}}
//
// are accepted.
package sonic

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"sort"
	"strings"

	"github.com/newtron-network/newtrace/pkg/routetable"
	"github.com/newtron-network/newtrace/pkg/util"
)

// Platform is the platform name given to devices read from APPL_DB.
const Platform = "sonic"

// DefaultVRF selects the global routing table.
const DefaultVRF = "default"

const (
	routeTable = "ROUTE_TABLE"
	intfTable  = "INTF_TABLE"
)

// RouteEntry represents a route in APPL_DB's ROUTE_TABLE.
// Multi-path (ECMP) routes use comma-separated values in nexthop and ifname.
type RouteEntry struct {
	NextHop   string `json:"nexthop"`   // "10.0.0.1" or "10.0.0.1,10.0.0.3" (ECMP)
	Interface string `json:"ifname"`    // "Ethernet0" or "Ethernet0,Ethernet4" (ECMP)
	Protocol  string `json:"protocol"`  // "bgp", "static", "kernel"
	Blackhole string `json:"blackhole"` // "true" for discard routes
}

// Dump is the routing state of one VRF read from an APPL_DB dump.
type Dump struct {
	VRF string

	// Routes maps prefix to entry.
	Routes map[netip.Prefix]RouteEntry

	// Interfaces maps interface name to its addresses with prefix length.
	Interfaces map[string][]netip.Prefix

	// Skipped counts keys ignored as non-IPv4 or malformed.
	Skipped int
}

// typed is the sonic-db-dump wrapper around each key's value.
type typed struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// ParseDump reads the ROUTE_TABLE and INTF_TABLE keys of one VRF from r.
// An empty vrf selects DefaultVRF. Other tables are ignored.
func ParseDump(r io.Reader, vrf string) (*Dump, error) {
	if vrf == "" {
		vrf = DefaultVRF
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding APPL_DB dump: %w", err)
	}

	d := &Dump{
		VRF:        vrf,
		Routes:     make(map[netip.Prefix]RouteEntry),
		Interfaces: make(map[string][]netip.Prefix),
	}
	for key, val := range raw {
		table, rest, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		switch table {
		case routeTable:
			d.addRoute(key, rest, val)
		case intfTable:
			d.addInterface(rest)
		}
	}
	return d, nil
}

// addRoute handles "ROUTE_TABLE:<prefix>" and "ROUTE_TABLE:<vrf>:<prefix>".
// SONiC VRF names always start with "Vrf", which keeps IPv6 keys apart.
func (d *Dump) addRoute(key, rest string, val json.RawMessage) {
	vrf, prefix := DefaultVRF, rest
	if strings.HasPrefix(rest, "Vrf") {
		vrf, prefix, _ = strings.Cut(rest, ":")
	}
	if vrf != d.VRF {
		return
	}

	pfx, err := netip.ParsePrefix(prefix)
	if err != nil || !pfx.Addr().Is4() {
		d.Skipped++
		return
	}
	var entry RouteEntry
	if err := unmarshalHash(val, &entry); err != nil {
		util.WithField("key", key).Debugf("Skipping APPL_DB route: %v", err)
		d.Skipped++
		return
	}
	d.Routes[pfx.Masked()] = entry
}

// addInterface handles "INTF_TABLE:<ifname>:<address>/<len>". Keys without
// an address carry interface attributes only.
func (d *Dump) addInterface(rest string) {
	name, addr, ok := strings.Cut(rest, ":")
	if !ok {
		return
	}
	pfx, err := netip.ParsePrefix(addr)
	if err != nil || !pfx.Addr().Is4() {
		d.Skipped++
		return
	}
	d.Interfaces[name] = append(d.Interfaces[name], pfx)
}

func unmarshalHash(val json.RawMessage, v any) error {
	var t typed
	if err := json.Unmarshal(val, &t); err == nil && t.Type != "" {
		if t.Type != "hash" {
			return fmt.Errorf("unexpected type %q", t.Type)
		}
		val = t.Value
	}
	return json.Unmarshal(val, v)
}

// Device builds a routing table named id from the dump. Connected subnets
// come from INTF_TABLE; a ROUTE_TABLE entry for the same prefix replaces
// the connected route.
func (d *Dump) Device(id string) (*routetable.Device, error) {
	var routes []routetable.RouteSpec
	var ifaces []routetable.InterfaceSpec

	for _, name := range sortedKeys(d.Interfaces) {
		for _, pfx := range d.Interfaces[name] {
			ifaces = append(ifaces, routetable.InterfaceSpec{Name: name, Address: pfx.Addr().String()})
			routes = append(routes, routetable.RouteSpec{
				Prefix:     pfx.Masked().String(),
				Code:       "connected",
				Interface:  name,
				Descriptor: fmt.Sprintf("%s:%s:%s", intfTable, name, pfx),
			})
		}
	}

	prefixes := make([]netip.Prefix, 0, len(d.Routes))
	for pfx := range d.Routes {
		prefixes = append(prefixes, pfx)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if prefixes[i].Addr() != prefixes[j].Addr() {
			return prefixes[i].Addr().Less(prefixes[j].Addr())
		}
		return prefixes[i].Bits() < prefixes[j].Bits()
	})
	for _, pfx := range prefixes {
		routes = append(routes, routeSpec(pfx, d.Routes[pfx]))
	}

	if len(routes) == 0 {
		return nil, util.NewParseError(id, "APPL_DB dump has no IPv4 routes or interface addresses")
	}
	return routetable.FromStructured(id, Platform, routes, ifaces)
}

// routeSpec converts one ROUTE_TABLE entry. Next-hops of 0.0.0.0 mark a
// directly attached route, which is local to its first interface.
func routeSpec(pfx netip.Prefix, e RouteEntry) routetable.RouteSpec {
	rs := routetable.RouteSpec{
		Prefix:     pfx.String(),
		Code:       e.Protocol,
		Descriptor: fmt.Sprintf("%s:%s nexthop=%s ifname=%s", routeTable, pfx, e.NextHop, e.Interface),
	}
	ifnames := splitList(e.Interface)
	if len(ifnames) > 0 {
		rs.Interface = ifnames[0]
	}
	if e.Blackhole == "true" {
		rs.Interface = "blackhole"
		return rs
	}
	for _, nh := range splitList(e.NextHop) {
		if nh == "0.0.0.0" {
			continue
		}
		rs.NextHops = append(rs.NextHops, nh)
	}
	if len(rs.NextHops) == 0 && rs.Interface == "" {
		rs.Interface = "unknown"
	}
	return rs
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func sortedKeys(m map[string][]netip.Prefix) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ReadDevice reads a dump from r and builds device id from one VRF.
func ReadDevice(id string, r io.Reader, vrf string) (*routetable.Device, error) {
	dump, err := ParseDump(r, vrf)
	if err != nil {
		return nil, util.NewParseError(id, err.Error())
	}
	if dump.Skipped > 0 {
		util.WithDevice(id).Debugf("Skipped %d non-IPv4 or malformed APPL_DB keys", dump.Skipped)
	}
	return dump.Device(id)
}
