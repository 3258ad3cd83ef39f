package registry

import (
	"context"
	"sync/atomic"
)

// Holder publishes the current Snapshot. Readers always see a complete
// snapshot, either the one before a swap or the one after it.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder returns a holder publishing s (which may be nil).
func NewHolder(s *Snapshot) *Holder {
	h := &Holder{}
	if s != nil {
		h.current.Store(s)
	}
	return h
}

// Load returns the published snapshot, or nil if none has been published.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Swap publishes s and returns the snapshot it replaced.
func (h *Holder) Swap(s *Snapshot) *Snapshot {
	return h.current.Swap(s)
}

// Reload builds a new snapshot and publishes it. On error the current
// snapshot stays in place.
func (h *Holder) Reload(ctx context.Context, build func(context.Context) (*Snapshot, error)) (*Snapshot, error) {
	s, err := build(ctx)
	if err != nil {
		return nil, err
	}
	h.Swap(s)
	return s, nil
}
