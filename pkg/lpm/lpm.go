// Package lpm provides an IPv4 longest-prefix-match index.
//
// The index is a thin, validating layer over a bart multibit trie: lookup
// cost is bounded by the 32-bit address width and independent of how many
// prefixes are stored. Each exact prefix holds at most one value; inserting
// the same prefix again replaces the previous value.
//
// An Index is safe for concurrent lookups once it is no longer modified.
package lpm

import (
	"iter"
	"net/netip"

	"github.com/gaissmai/bart"

	"github.com/newtron-network/newtrace/pkg/util"
)

// Match is the result of a successful lookup: the most specific stored
// prefix and the value bound to it.
type Match[V any] struct {
	Prefix netip.Prefix
	Value  V
}

// Index maps IPv4 prefixes to values. The zero value is ready to use.
// An Index must not be copied after first use.
type Index[V any] struct {
	table bart.Table[V]
}

// New returns an empty index.
func New[V any]() *Index[V] {
	return &Index[V]{}
}

// Insert binds v to pfx, replacing any value already bound to exactly pfx.
// Host bits are masked off; non-IPv4 or invalid prefixes are rejected.
func (x *Index[V]) Insert(pfx netip.Prefix, v V) error {
	if !pfx.IsValid() {
		return util.NewPrefixError(pfx.String(), "prefix is not valid")
	}
	if !pfx.Addr().Is4() {
		return util.NewPrefixError(pfx.String(), "only IPv4 prefixes are supported")
	}
	x.table.Insert(pfx.Masked(), v)
	return nil
}

// InsertString parses s with util.ParsePrefix and inserts it.
func (x *Index[V]) InsertString(s string, v V) error {
	pfx, err := util.ParsePrefix(s)
	if err != nil {
		return err
	}
	return x.Insert(pfx, v)
}

// Lookup returns the longest stored prefix containing addr. A missing
// match is reported through ok, never as an error.
func (x *Index[V]) Lookup(addr netip.Addr) (m Match[V], ok bool) {
	if !addr.Is4() {
		return m, false
	}
	return x.LookupPrefix(netip.PrefixFrom(addr, 32))
}

// LookupPrefix returns the longest stored prefix that covers all of pfx.
func (x *Index[V]) LookupPrefix(pfx netip.Prefix) (m Match[V], ok bool) {
	if !pfx.IsValid() || !pfx.Addr().Is4() {
		return m, false
	}
	lpmPfx, v, ok := x.table.LookupPrefixLPM(pfx)
	if !ok {
		return m, false
	}
	return Match[V]{Prefix: lpmPfx, Value: v}, true
}

// Contains reports whether any stored prefix contains addr.
func (x *Index[V]) Contains(addr netip.Addr) bool {
	if !addr.Is4() {
		return false
	}
	return x.table.Contains(addr)
}

// Get returns the value bound to exactly pfx.
func (x *Index[V]) Get(pfx netip.Prefix) (v V, ok bool) {
	if !pfx.IsValid() || !pfx.Addr().Is4() {
		return v, false
	}
	return x.table.Get(pfx.Masked())
}

// Len returns the number of stored prefixes.
func (x *Index[V]) Len() int {
	return x.table.Size()
}

// All iterates the stored prefixes in sorted order (by address, then
// shorter prefix first).
func (x *Index[V]) All() iter.Seq2[netip.Prefix, V] {
	return x.table.AllSorted4()
}
