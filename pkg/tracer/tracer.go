// Package tracer computes every forwarding path from a source device to a
// destination using the routing tables and neighbor index in a
// registry.Snapshot.
//
// The walk is recursive. At each device the destination is looked up in
// that device's table: no match ends the path with NoRoute, a local match
// ends it with Success, and a remote match fans out over the route's
// next-hops in recorded order. Each next-hop is resolved to its owning
// device through the neighbor index; an unowned next-hop ends that branch
// with UnresolvedNextHop, and an owner already on the path ends it with
// Loop. Ordinary topology outcomes are returned as data; only an
// unparseable destination is an error.
package tracer

import (
	"context"
	"fmt"
	"net/netip"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/newtron-network/newtrace/pkg/registry"
	"github.com/newtron-network/newtrace/pkg/util"
)

// LoopPolicy decides how much of a fan-out a detected loop cuts off.
type LoopPolicy int

const (
	// LoopStopsFanout ends exploration of the remaining next-hops at the
	// hop where the first repeated device is found.
	LoopStopsFanout LoopPolicy = iota

	// LoopStopsBranch ends only the next-hop that closes the loop; the
	// remaining next-hops at that hop are still explored.
	LoopStopsBranch
)

func (p LoopPolicy) String() string {
	switch p {
	case LoopStopsFanout:
		return "fanout"
	case LoopStopsBranch:
		return "branch"
	default:
		return fmt.Sprintf("LoopPolicy(%d)", int(p))
	}
}

// ParseLoopPolicy accepts "fanout" or "branch".
func ParseLoopPolicy(s string) (LoopPolicy, error) {
	switch strings.ToLower(s) {
	case "", "fanout":
		return LoopStopsFanout, nil
	case "branch":
		return LoopStopsBranch, nil
	default:
		return 0, fmt.Errorf("loop policy %q (want fanout or branch): %w", s, util.ErrInvalidConfig)
	}
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithLoopPolicy sets the loop policy; the default is LoopStopsFanout.
func WithLoopPolicy(p LoopPolicy) Option {
	return func(t *Tracer) { t.loops = p }
}

// Tracer answers path queries against one snapshot. It holds no mutable
// state and is safe for concurrent use.
type Tracer struct {
	snap  *registry.Snapshot
	loops LoopPolicy
}

// New returns a tracer reading snap.
func New(snap *registry.Snapshot, opts ...Option) *Tracer {
	t := &Tracer{snap: snap}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Trace returns every path from source toward destination, an IPv4
// address or CIDR prefix. The error is non-nil only when destination
// cannot be parsed.
func (t *Tracer) Trace(source, destination string) ([]Path, error) {
	dst, err := util.ParseDestination(destination)
	if err != nil {
		return nil, fmt.Errorf("trace %s -> %s: %w", source, destination, err)
	}
	return t.TracePrefix(source, dst), nil
}

// TracePrefix is Trace for an already parsed destination. For a prefix
// shorter than /32 each device uses the most specific route covering the
// whole prefix.
func (t *Tracer) TracePrefix(source string, dst netip.Prefix) []Path {
	paths := t.walk(source, Hop{}, dst, Path{})
	util.WithTrace(source, dst.String()).Debugf("Traced %d paths", len(paths))
	return paths
}

// walk visits device, reached through arrival (zero for the source), with
// path holding the hops before it.
func (t *Tracer) walk(device string, arrival Hop, dst netip.Prefix, path Path) []Path {
	hop := arrival
	hop.Device = device

	d, ok := t.snap.Device(device)
	if !ok {
		hop.Status = UnresolvedNextHop
		return []Path{path.extend(hop)}
	}

	r, ok := d.LookupPrefix(dst)
	if !ok {
		hop.Status = NoRoute
		return []Path{path.extend(hop)}
	}
	hop.Descriptor = r.Descriptor
	hop.Prefix = r.Prefix
	if r.Local() {
		hop.Status = Success
		return []Path{path.extend(hop)}
	}

	hop.Status = Forward
	path = path.extend(hop)

	var out []Path
	for _, nh := range r.NextHops {
		owner, claimants, ok := t.snap.Neighbors().Resolve(nh)
		if !ok {
			out = append(out, path.extend(Hop{Status: UnresolvedNextHop, Via: nh}))
			continue
		}

		next := Hop{Via: nh, Claimants: claimants}
		if path.Contains(owner.Device) {
			next.Device = owner.Device
			next.Status = Loop
			out = append(out, path.extend(next))
			if t.loops == LoopStopsFanout {
				break
			}
			continue
		}
		out = append(out, t.walk(owner.Device, next, dst, path)...)
	}
	return out
}

// Result is one destination's outcome in a batch.
type Result struct {
	Destination string `json:"destination"`
	Paths       []Path `json:"paths,omitempty"`
	Err         error  `json:"-"`
}

// TraceBatch traces every destination from source using up to workers
// goroutines (zero means GOMAXPROCS). Results are in input order; a bad
// destination is reported in its Result and does not stop the batch.
// The returned error is non-nil only when ctx is cancelled.
func (t *Tracer) TraceBatch(ctx context.Context, source string, destinations []string, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(destinations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, dst := range destinations {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			paths, err := t.Trace(source, dst)
			results[i] = Result{Destination: dst, Paths: paths, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch trace from %s: %w", source, err)
	}
	return results, nil
}
