package util

import (
	"errors"
	"net/netip"
	"testing"
)

func TestParsePrefix(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "cidr", input: "10.0.0.0/24", want: "10.0.0.0/24"},
		{name: "cidr host bits masked", input: "10.0.0.77/24", want: "10.0.0.0/24"},
		{name: "dotted mask", input: "10.0.0.0 255.255.255.0", want: "10.0.0.0/24"},
		{name: "dotted mask after slash", input: "172.16.0.0/255.255.0.0", want: "172.16.0.0/16"},
		{name: "default route", input: "0.0.0.0/0", want: "0.0.0.0/0"},
		{name: "default route mask", input: "0.0.0.0 0.0.0.0", want: "0.0.0.0/0"},
		{name: "bare host", input: "192.168.204.204", want: "192.168.204.204/32"},
		{name: "length out of range", input: "10.0.0.0/33", wantErr: true},
		{name: "negative length", input: "10.0.0.0/-1", wantErr: true},
		{name: "non-contiguous mask", input: "10.0.0.0 255.0.255.0", wantErr: true},
		{name: "bad address", input: "999.1.1.1/8", wantErr: true},
		{name: "ipv6", input: "2001:db8::/32", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrefix(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePrefix(%q) = %v, want error", tt.input, got)
				}
				if !errors.Is(err, ErrInvalidPrefix) {
					t.Errorf("ParsePrefix(%q) error %v should wrap ErrInvalidPrefix", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePrefix(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParsePrefix(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestMaskLengthRoundTrip(t *testing.T) {
	for length := 0; length <= 32; length++ {
		mask := LengthMask(length)
		got, err := MaskLength(mask)
		if err != nil {
			t.Fatalf("MaskLength(%s) error: %v", mask, err)
		}
		if got != length {
			t.Errorf("MaskLength(LengthMask(%d)) = %d", length, got)
		}
	}
}

func TestParseDestination(t *testing.T) {
	pfx, err := ParseDestination("10.10.10.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pfx != netip.MustParsePrefix("10.10.10.0/32") {
		t.Errorf("bare address should become /32, got %s", pfx)
	}

	pfx, err = ParseDestination("10.10.10.0/24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pfx.Bits() != 24 {
		t.Errorf("CIDR destination should keep its length, got %s", pfx)
	}

	for _, bad := range []string{"", "10.10.10", "host-a", "10.0.0.0/40"} {
		if _, err := ParseDestination(bad); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("ParseDestination(%q) error = %v, want ErrInvalidAddress", bad, err)
		}
	}
}

func TestClassfulLength(t *testing.T) {
	tests := []struct {
		addr string
		want int
	}{
		{"10.1.2.3", 8},
		{"172.16.0.0", 16},
		{"192.168.1.0", 24},
		{"224.0.0.5", 32},
	}
	for _, tt := range tests {
		if got := ClassfulLength(netip.MustParseAddr(tt.addr)); got != tt.want {
			t.Errorf("ClassfulLength(%s) = %d, want %d", tt.addr, got, tt.want)
		}
	}
}
