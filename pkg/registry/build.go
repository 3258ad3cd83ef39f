package registry

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/newtron-network/newtrace/pkg/platform"
	"github.com/newtron-network/newtrace/pkg/routetable"
	"github.com/newtron-network/newtrace/pkg/util"
)

// Source is one device's raw routing-table capture.
type Source struct {
	ID       string
	Platform string // empty selects platform.Default
	Text     string
}

// Options control Build.
type Options struct {
	// Workers bounds concurrent parses; zero means GOMAXPROCS.
	Workers int

	// Platforms resolves Source.Platform; nil means platform.Builtin().
	Platforms *platform.Set

	// Canonical expands abbreviated interface names while parsing.
	Canonical bool
}

type parsed struct {
	device  *routetable.Device
	failure *Failure
}

// Build parses every source concurrently and assembles a Snapshot.
//
// A device whose capture cannot be parsed is excluded and reported in
// Snapshot.Failures; the rest of the batch continues. The neighbor index
// is built only after every parse has finished. Build returns an error
// only when ctx is cancelled.
func Build(ctx context.Context, sources []Source, opts Options) (*Snapshot, error) {
	devices, failures, err := Parse(ctx, sources, opts)
	if err != nil {
		return nil, err
	}

	snap := FromDevices(devices, failures)
	util.Logger.Debugf("Registry built: %d devices, %d failures, %d neighbor addresses",
		snap.Len(), len(failures), snap.Neighbors().Len())
	return snap, nil
}

// Parse parses every source concurrently, returning the devices and the
// failures each in source order.
func Parse(ctx context.Context, sources []Source, opts Options) ([]*routetable.Device, []Failure, error) {
	plats := opts.Platforms
	if plats == nil {
		plats = platform.Builtin()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Each worker writes only its own slot.
	results := make([]parsed, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = parseSource(src, plats, opts.Canonical)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("building registry: %w", err)
	}

	var devices []*routetable.Device
	var failures []Failure
	for _, r := range results {
		if r.failure != nil {
			failures = append(failures, *r.failure)
			continue
		}
		devices = append(devices, r.device)
	}
	return devices, failures, nil
}

func parseSource(src Source, plats *platform.Set, canonical bool) parsed {
	log := util.WithDevice(src.ID)

	plat, err := plats.Get(src.Platform)
	if err != nil {
		log.Warnf("Excluding device: %v", err)
		return parsed{failure: &Failure{Device: src.ID, Reason: err.Error()}}
	}

	res, err := routetable.Parse(src.ID, src.Text, routetable.Options{Platform: plat, Canonical: canonical})
	if err != nil {
		reason := err.Error()
		var pe *util.ParseError
		if errors.As(err, &pe) {
			reason = pe.Reason
		}
		log.Warnf("Excluding device: %v", err)
		return parsed{failure: &Failure{Device: src.ID, Reason: reason}}
	}

	for _, w := range res.Warnings {
		log.Debug(w)
	}
	log.Debugf("Parsed %d routes, %d interfaces", res.Device.RouteCount(), len(res.Device.Interfaces))
	return parsed{device: res.Device}
}
