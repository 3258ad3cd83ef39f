// Package registry assembles parsed devices into an immutable Snapshot:
// the device registry plus the global neighbor index built from every
// device's interface addresses.
//
// A Snapshot is never modified after it is built, so any number of
// tracers may read it concurrently. Refreshing the data means building a
// new Snapshot and publishing it through a Holder.
package registry

import (
	"sort"
	"time"

	"github.com/newtron-network/newtrace/pkg/routetable"
	"github.com/newtron-network/newtrace/pkg/util"
)

// Failure records a device that could not be added to the registry.
type Failure struct {
	Device string `json:"device"`
	Reason string `json:"reason"`
}

// Snapshot is a frozen device registry and its neighbor index.
type Snapshot struct {
	devices   map[string]*routetable.Device
	order     []string
	neighbors *NeighborIndex
	failures  []Failure
	builtAt   time.Time
}

// FromDevices builds a snapshot from devices that are already parsed.
// Devices keep the given order, which is also the neighbor-index insertion
// order. A repeated device id replaces the earlier device in place.
func FromDevices(devices []*routetable.Device, failures []Failure) *Snapshot {
	s := &Snapshot{
		devices:  make(map[string]*routetable.Device, len(devices)),
		failures: failures,
		builtAt:  time.Now(),
	}
	for _, d := range devices {
		if _, dup := s.devices[d.ID]; dup {
			util.WithDevice(d.ID).Warn("Duplicate device id, keeping the later table")
		} else {
			s.order = append(s.order, d.ID)
		}
		s.devices[d.ID] = d
	}
	s.neighbors = BuildNeighborIndex(s.Devices())
	return s
}

// Device returns the device with the given id.
func (s *Snapshot) Device(id string) (*routetable.Device, bool) {
	d, ok := s.devices[id]
	return d, ok
}

// Devices returns the devices in registry order.
func (s *Snapshot) Devices() []*routetable.Device {
	out := make([]*routetable.Device, len(s.order))
	for i, id := range s.order {
		out[i] = s.devices[id]
	}
	return out
}

// DeviceIDs returns the device ids in sorted order.
func (s *Snapshot) DeviceIDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	sort.Strings(ids)
	return ids
}

// Len returns the number of devices.
func (s *Snapshot) Len() int { return len(s.order) }

// Neighbors returns the global neighbor index.
func (s *Snapshot) Neighbors() *NeighborIndex { return s.neighbors }

// Failures returns the devices excluded while building.
func (s *Snapshot) Failures() []Failure { return s.failures }

// BuiltAt returns when the snapshot was assembled.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// WithBuiltAt returns a copy of s stamped with t. Used when a snapshot is
// restored from a saved document.
func (s *Snapshot) WithBuiltAt(t time.Time) *Snapshot {
	c := *s
	c.builtAt = t
	return &c
}
