package routetable

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/newtron-network/newtrace/pkg/util"
)

func TestFromStructured(t *testing.T) {
	d, err := FromStructured("A", "ios",
		[]RouteSpec{
			{Prefix: "10.0.0.0/24", Interface: "ifA"},
			{Prefix: "0.0.0.0 0.0.0.0", NextHops: []string{"10.0.0.1", "10.0.0.2", "10.0.0.1"}},
			{Prefix: "10.0.0.9", Interface: "lo", Descriptor: "host route"},
		},
		[]InterfaceSpec{{Name: "ifA", Address: "10.0.0.5"}},
	)
	if err != nil {
		t.Fatalf("FromStructured: %v", err)
	}

	r, ok := d.Lookup(netip.MustParseAddr("10.0.0.5"))
	if !ok || !r.Local() || r.Descriptor != "connected ifA" {
		t.Errorf("10.0.0.5 -> %+v, want local \"connected ifA\"", r)
	}
	r, _ = d.Lookup(netip.MustParseAddr("8.8.8.8"))
	if r.Descriptor != "via 10.0.0.1, 10.0.0.2" {
		t.Errorf("default descriptor = %q", r.Descriptor)
	}
	r, _ = d.Lookup(netip.MustParseAddr("10.0.0.9"))
	if r.Prefix.Bits() != 32 || r.Descriptor != "host route" {
		t.Errorf("host route = %+v", r)
	}
	if !d.Owns(netip.MustParseAddr("10.0.0.5")) || d.Owns(netip.MustParseAddr("10.0.0.6")) {
		t.Error("Owns() does not reflect the interface list")
	}
}

func TestFromStructured_Invalid(t *testing.T) {
	_, err := FromStructured("A", "ios",
		[]RouteSpec{
			{Prefix: "10.0.0.0/40", Interface: "ifA"},
			{Prefix: "10.1.0.0/16"},
			{Prefix: "10.2.0.0/16", NextHops: []string{"bogus"}},
		},
		[]InterfaceSpec{{Name: "ifA", Address: "10.0.0.300"}, {Address: "10.0.0.1"}},
	)
	if !errors.Is(err, util.ErrValidationFailed) {
		t.Fatalf("error = %v, want ErrValidationFailed", err)
	}
	var ve *util.ValidationError
	if !errors.As(err, &ve) || len(ve.Errors) != 5 {
		t.Errorf("error = %v, want 5 accumulated problems", err)
	}
}

func TestSpecRoundTrip(t *testing.T) {
	d := parse(t, "R", "ios", `
C        10.0.12.0/30 is directly connected, GigabitEthernet0/0
L        10.0.12.1/32 is directly connected, GigabitEthernet0/0
O        10.9.0.0/16 [110/2] via 10.0.12.2, 00:00:01, GigabitEthernet0/0
                     [110/2] via 10.0.12.3, 00:00:01, GigabitEthernet0/0
`).Device

	var specs []RouteSpec
	for _, r := range d.Routes() {
		specs = append(specs, r.Spec())
	}
	back, err := FromStructured(d.ID, d.Platform, specs, d.InterfaceSpecs())
	if err != nil {
		t.Fatalf("FromStructured: %v", err)
	}

	a, b := d.Routes(), back.Routes()
	if len(a) != len(b) {
		t.Fatalf("round trip changed route count: %d -> %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Prefix != b[i].Prefix || a[i].Descriptor != b[i].Descriptor || len(a[i].NextHops) != len(b[i].NextHops) {
			t.Errorf("route %d: %+v -> %+v", i, a[i], b[i])
		}
	}
	if len(back.Interfaces) != 1 || back.Interfaces[0] != d.Interfaces[0] {
		t.Errorf("Interfaces = %v, want %v", back.Interfaces, d.Interfaces)
	}
}
