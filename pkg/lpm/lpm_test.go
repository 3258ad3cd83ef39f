package lpm

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/newtron-network/newtrace/pkg/util"
)

func mustInsert(t *testing.T, x *Index[string], cidr, v string) {
	t.Helper()
	if err := x.InsertString(cidr, v); err != nil {
		t.Fatalf("InsertString(%q): %v", cidr, err)
	}
}

func TestLookup_LongestMatch(t *testing.T) {
	x := New[string]()
	mustInsert(t, x, "0.0.0.0/0", "default")
	mustInsert(t, x, "10.0.0.0/8", "ten")
	mustInsert(t, x, "10.1.0.0/16", "ten-one")
	mustInsert(t, x, "10.1.2.0/24", "ten-one-two")
	mustInsert(t, x, "10.1.2.3/32", "host")

	tests := []struct {
		addr       string
		want       string
		wantPrefix string
	}{
		{"10.1.2.3", "host", "10.1.2.3/32"},
		{"10.1.2.4", "ten-one-two", "10.1.2.0/24"},
		{"10.1.9.9", "ten-one", "10.1.0.0/16"},
		{"10.200.0.1", "ten", "10.0.0.0/8"},
		{"8.8.8.8", "default", "0.0.0.0/0"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			m, ok := x.Lookup(netip.MustParseAddr(tt.addr))
			if !ok {
				t.Fatalf("Lookup(%s) found nothing", tt.addr)
			}
			if m.Value != tt.want {
				t.Errorf("Lookup(%s) = %q, want %q", tt.addr, m.Value, tt.want)
			}
			if m.Prefix.String() != tt.wantPrefix {
				t.Errorf("Lookup(%s) prefix = %s, want %s", tt.addr, m.Prefix, tt.wantPrefix)
			}
		})
	}
}

func TestLookup_InsertionOrderIndependent(t *testing.T) {
	prefixes := []string{"10.0.0.0/8", "10.1.0.0/16", "10.1.2.0/24"}

	forward := New[string]()
	for _, p := range prefixes {
		mustInsert(t, forward, p, p)
	}
	reverse := New[string]()
	for i := len(prefixes) - 1; i >= 0; i-- {
		mustInsert(t, reverse, prefixes[i], prefixes[i])
	}

	for _, addr := range []string{"10.1.2.200", "10.1.3.1", "10.9.9.9"} {
		a := netip.MustParseAddr(addr)
		m1, _ := forward.Lookup(a)
		m2, _ := reverse.Lookup(a)
		if m1.Value != m2.Value {
			t.Errorf("Lookup(%s): forward=%q reverse=%q", addr, m1.Value, m2.Value)
		}
	}
}

func TestLookup_NoMatch(t *testing.T) {
	x := New[string]()
	mustInsert(t, x, "192.168.0.0/16", "lan")

	if m, ok := x.Lookup(netip.MustParseAddr("10.0.0.1")); ok {
		t.Errorf("Lookup outside stored prefixes returned %+v", m)
	}
	if x.Contains(netip.MustParseAddr("10.0.0.1")) {
		t.Error("Contains should be false outside stored prefixes")
	}
	if !x.Contains(netip.MustParseAddr("192.168.3.3")) {
		t.Error("Contains should be true inside stored prefix")
	}
	if _, ok := x.Lookup(netip.Addr{}); ok {
		t.Error("Lookup of zero address should not match")
	}
	if _, ok := x.Lookup(netip.MustParseAddr("2001:db8::1")); ok {
		t.Error("Lookup of IPv6 address should not match")
	}
}

func TestInsert_Overwrite(t *testing.T) {
	x := New[string]()
	mustInsert(t, x, "10.0.0.0/24", "first")
	mustInsert(t, x, "10.0.0.99/24", "second")

	if x.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after re-inserting the same prefix", x.Len())
	}
	v, ok := x.Get(netip.MustParsePrefix("10.0.0.0/24"))
	if !ok || v != "second" {
		t.Errorf("Get() = %q, %v; want last write to win", v, ok)
	}
}

func TestInsert_Invalid(t *testing.T) {
	x := New[string]()

	for _, bad := range []string{"10.0.0.0/33", "10.0.0.0 255.0.255.0", "not-a-prefix", "2001:db8::/32"} {
		err := x.InsertString(bad, "x")
		if !errors.Is(err, util.ErrInvalidPrefix) {
			t.Errorf("InsertString(%q) error = %v, want ErrInvalidPrefix", bad, err)
		}
	}
	if err := x.Insert(netip.Prefix{}, "x"); !errors.Is(err, util.ErrInvalidPrefix) {
		t.Errorf("Insert(zero prefix) error = %v, want ErrInvalidPrefix", err)
	}
	if x.Len() != 0 {
		t.Errorf("rejected inserts should not be stored, Len() = %d", x.Len())
	}
}

func TestInsert_MaskAndCIDRAgree(t *testing.T) {
	cidr := New[string]()
	mask := New[string]()
	pairs := [][2]string{
		{"10.0.0.0/24", "10.0.0.0 255.255.255.0"},
		{"172.16.0.0/12", "172.16.0.0 255.240.0.0"},
		{"0.0.0.0/0", "0.0.0.0 0.0.0.0"},
		{"192.168.204.204/32", "192.168.204.204 255.255.255.255"},
	}
	for _, p := range pairs {
		mustInsert(t, cidr, p[0], "v")
		mustInsert(t, mask, p[1], "v")
	}

	var a, b []netip.Prefix
	for p := range cidr.All() {
		a = append(a, p)
	}
	for p := range mask.All() {
		b = append(b, p)
	}
	if len(a) != len(b) {
		t.Fatalf("CIDR index has %d prefixes, mask index has %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("prefix %d: CIDR %s != mask %s", i, a[i], b[i])
		}
	}
}

func TestLookupPrefix(t *testing.T) {
	x := New[string]()
	mustInsert(t, x, "10.0.0.0/8", "ten")
	mustInsert(t, x, "10.1.0.0/16", "ten-one")

	m, ok := x.LookupPrefix(netip.MustParsePrefix("10.1.4.0/24"))
	if !ok || m.Value != "ten-one" {
		t.Errorf("LookupPrefix(10.1.4.0/24) = %+v, %v; want ten-one", m, ok)
	}
	// A /12 is wider than 10.1.0.0/16, so only the /8 covers all of it.
	m, ok = x.LookupPrefix(netip.MustParsePrefix("10.0.0.0/12"))
	if !ok || m.Value != "ten" {
		t.Errorf("LookupPrefix(10.0.0.0/12) = %+v, %v; want ten", m, ok)
	}
	if _, ok := x.LookupPrefix(netip.MustParsePrefix("0.0.0.0/0")); ok {
		t.Error("LookupPrefix(0.0.0.0/0) should not match without a default route")
	}
}
