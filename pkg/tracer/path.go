package tracer

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/newtron-network/newtrace/pkg/registry"
)

// Status tags a hop. Every status except Forward ends a path.
type Status string

const (
	Forward           Status = "forward"
	Success           Status = "success"
	NoRoute           Status = "no-route"
	Loop              Status = "loop"
	UnresolvedNextHop Status = "unresolved-next-hop"
)

// Terminal reports whether a hop with this status ends its path.
func (s Status) Terminal() bool {
	return s != Forward
}

// Hop is one step of a path.
type Hop struct {
	Device string `json:"device,omitempty"`
	Status Status `json:"status"`

	// Descriptor is the matched route's text; empty on marker hops.
	Descriptor string `json:"descriptor,omitempty"`

	// Prefix is the matched route prefix, if any.
	Prefix netip.Prefix `json:"prefix,omitzero"`

	// Via is the next-hop address that led here; zero on the first hop.
	Via netip.Addr `json:"via,omitzero"`

	// Claimants lists every device claiming Via when it is ambiguous.
	Claimants []registry.Owner `json:"claimants,omitempty"`
}

func (h Hop) String() string {
	var b strings.Builder
	if h.Device != "" {
		b.WriteString(h.Device)
	} else {
		b.WriteString("?")
	}
	fmt.Fprintf(&b, " [%s]", h.Status)
	if h.Via.IsValid() {
		fmt.Fprintf(&b, " via %s", h.Via)
	}
	if h.Prefix.IsValid() {
		fmt.Fprintf(&b, " %s", h.Prefix)
	}
	return b.String()
}

// Path is an ordered list of hops from the source device. Paths returned
// by a Tracer never share backing storage.
type Path struct {
	Hops []Hop `json:"hops"`
}

// Status returns the status of the last hop.
func (p Path) Status() Status {
	if len(p.Hops) == 0 {
		return NoRoute
	}
	return p.Hops[len(p.Hops)-1].Status
}

// Devices returns the device of each hop in order.
func (p Path) Devices() []string {
	out := make([]string, len(p.Hops))
	for i, h := range p.Hops {
		out[i] = h.Device
	}
	return out
}

// Contains reports whether device appears anywhere on the path.
func (p Path) Contains(device string) bool {
	for _, h := range p.Hops {
		if h.Device == device {
			return true
		}
	}
	return false
}

// extend returns a new path with h appended. The receiver is not changed.
func (p Path) extend(h Hop) Path {
	hops := make([]Hop, len(p.Hops), len(p.Hops)+1)
	copy(hops, p.Hops)
	return Path{Hops: append(hops, h)}
}

func (p Path) String() string {
	parts := make([]string, len(p.Hops))
	for i, h := range p.Hops {
		parts[i] = h.String()
	}
	return strings.Join(parts, " -> ")
}
