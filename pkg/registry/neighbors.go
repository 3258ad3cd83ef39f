package registry

import (
	"net/netip"
	"sort"

	"github.com/newtron-network/newtrace/pkg/lpm"
	"github.com/newtron-network/newtrace/pkg/routetable"
	"github.com/newtron-network/newtrace/pkg/util"
)

// Owner is the device interface that holds an address.
type Owner struct {
	Device    string `json:"device"`
	Interface string `json:"interface"`
}

// Conflict is an address claimed by more than one device. Owners are in
// insertion order; the last one is the owner Resolve returns.
type Conflict struct {
	Address netip.Addr `json:"address"`
	Owners  []Owner    `json:"owners"`
}

// NeighborIndex maps interface host addresses to the device that owns
// them. It answers "which device is next-hop X" during a trace.
type NeighborIndex struct {
	owners *lpm.Index[Owner]
	claims map[netip.Addr][]Owner
}

// BuildNeighborIndex inserts every interface address of every device as a
// /32, in the order given. When two devices claim the same address the
// later one wins; the collision is logged and kept for Conflicts.
func BuildNeighborIndex(devices []*routetable.Device) *NeighborIndex {
	n := &NeighborIndex{
		owners: lpm.New[Owner](),
		claims: make(map[netip.Addr][]Owner),
	}

	for _, d := range devices {
		for _, ifc := range d.Interfaces {
			owner := Owner{Device: d.ID, Interface: ifc.Name}
			if err := n.owners.Insert(netip.PrefixFrom(ifc.Address, 32), owner); err != nil {
				util.WithDevice(d.ID).Warnf("Skipping interface %s: %v", ifc.Name, err)
				continue
			}

			prev := n.claims[ifc.Address]
			if len(prev) > 0 && prev[len(prev)-1].Device != d.ID {
				util.WithDevice(d.ID).Warnf("Address %s on %s already claimed by %s/%s; %s wins",
					ifc.Address, ifc.Name, prev[len(prev)-1].Device, prev[len(prev)-1].Interface, d.ID)
			}
			n.claims[ifc.Address] = append(prev, owner)
		}
	}
	return n
}

// Resolve returns the owner of addr. When several devices claim it, all
// claimants are returned as well, in insertion order.
func (n *NeighborIndex) Resolve(addr netip.Addr) (owner Owner, claimants []Owner, ok bool) {
	m, ok := n.owners.Get(netip.PrefixFrom(addr, 32))
	if !ok {
		return Owner{}, nil, false
	}
	if c := n.claims[addr]; spansDevices(c) {
		claimants = c
	}
	return m, claimants, true
}

// Len returns the number of distinct addresses indexed.
func (n *NeighborIndex) Len() int {
	return n.owners.Len()
}

// Entries returns every address and its winning owner in address order.
func (n *NeighborIndex) Entries() []Entry {
	out := make([]Entry, 0, n.owners.Len())
	for pfx, o := range n.owners.All() {
		out = append(out, Entry{Address: pfx.Addr(), Owner: o})
	}
	return out
}

// Entry is one row of the neighbor index.
type Entry struct {
	Address netip.Addr `json:"address"`
	Owner
}

// Conflicts returns every address claimed by more than one device, in
// address order.
func (n *NeighborIndex) Conflicts() []Conflict {
	var out []Conflict
	for addr, owners := range n.claims {
		if spansDevices(owners) {
			out = append(out, Conflict{Address: addr, Owners: owners})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Less(out[j].Address) })
	return out
}

func spansDevices(owners []Owner) bool {
	for _, o := range owners {
		if o.Device != owners[0].Device {
			return true
		}
	}
	return false
}
