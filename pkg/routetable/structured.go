package routetable

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/newtron-network/newtrace/pkg/util"
)

// RouteSpec is a route given in structured form, as found in an inventory
// file. Prefix accepts CIDR, address/mask or a bare host address.
type RouteSpec struct {
	Prefix     string   `yaml:"prefix" json:"prefix"`
	Code       string   `yaml:"code,omitempty" json:"code,omitempty"`
	NextHops   []string `yaml:"next_hops,omitempty" json:"next_hops,omitempty"`
	Interface  string   `yaml:"interface,omitempty" json:"interface,omitempty"`
	Descriptor string   `yaml:"descriptor,omitempty" json:"descriptor,omitempty"`
}

// InterfaceSpec is an interface address given in structured form.
type InterfaceSpec struct {
	Name    string `yaml:"name" json:"name"`
	Address string `yaml:"address" json:"address"`
}

// FromStructured builds a Device from routes and interfaces that were
// already parsed elsewhere. Unlike Parse, bad input is an error: every
// route and interface problem is collected into one *util.ValidationError.
// Routes are inserted in order, so a repeated prefix keeps the last entry.
func FromStructured(id, platform string, routes []RouteSpec, ifaces []InterfaceSpec) (*Device, error) {
	v := &util.ValidationBuilder{}
	d := newDevice(id, platform)

	for i, rs := range routes {
		r, err := rs.route()
		if err != nil {
			v.AddErrorf("device %s: route %d: %v", id, i, err)
			continue
		}
		if err := d.insert(r); err != nil {
			v.AddErrorf("device %s: route %d: %v", id, i, err)
		}
	}

	for i, is := range ifaces {
		if is.Name == "" {
			v.AddErrorf("device %s: interface %d: name is required", id, i)
			continue
		}
		addr, err := util.ParseAddr(is.Address)
		if err != nil {
			v.AddErrorf("device %s: interface %s: %v", id, is.Name, err)
			continue
		}
		d.Interfaces = append(d.Interfaces, Interface{Name: is.Name, Address: addr})
	}

	if err := v.Build(); err != nil {
		return nil, err
	}
	return d, nil
}

func (rs RouteSpec) route() (*Route, error) {
	pfx, err := util.ParsePrefix(rs.Prefix)
	if err != nil {
		return nil, err
	}
	r := &Route{Prefix: pfx, Code: rs.Code, Interface: rs.Interface, Descriptor: rs.Descriptor}
	for _, nh := range rs.NextHops {
		addr, err := util.ParseAddr(nh)
		if err != nil {
			return nil, fmt.Errorf("next-hop: %w", err)
		}
		r.NextHops = appendUnique(r.NextHops, addr)
	}
	if len(r.NextHops) == 0 && r.Interface == "" {
		return nil, fmt.Errorf("%s: needs next_hops or an interface", pfx)
	}
	if r.Descriptor == "" {
		r.Descriptor = defaultDescriptor(r)
	}
	return r, nil
}

// defaultDescriptor labels a structured route the way a hop is displayed:
// "connected Gi0/0" or "via 10.0.0.1, 10.0.0.5".
func defaultDescriptor(r *Route) string {
	if r.Local() {
		return "connected " + r.Interface
	}
	hops := make([]string, len(r.NextHops))
	for i, nh := range r.NextHops {
		hops[i] = nh.String()
	}
	return "via " + strings.Join(hops, ", ")
}

// Spec converts a route back into structured form.
func (r *Route) Spec() RouteSpec {
	rs := RouteSpec{
		Prefix:     r.Prefix.String(),
		Code:       r.Code,
		Interface:  r.Interface,
		Descriptor: r.Descriptor,
	}
	for _, nh := range r.NextHops {
		rs.NextHops = append(rs.NextHops, nh.String())
	}
	return rs
}

// InterfaceSpecs converts a device's interfaces back into structured form.
func (d *Device) InterfaceSpecs() []InterfaceSpec {
	out := make([]InterfaceSpec, len(d.Interfaces))
	for i, ifc := range d.Interfaces {
		out[i] = InterfaceSpec{Name: ifc.Name, Address: ifc.Address.String()}
	}
	return out
}

// Owns reports whether addr is one of the device's interface addresses.
func (d *Device) Owns(addr netip.Addr) bool {
	for _, ifc := range d.Interfaces {
		if ifc.Address == addr {
			return true
		}
	}
	return false
}
