package util

import (
	"fmt"
	"math/bits"
	"net/netip"
	"strconv"
	"strings"
)

// ParseAddr parses a dotted-quad IPv4 address.
func ParseAddr(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || !addr.Is4() {
		return netip.Addr{}, NewAddressError(s)
	}
	return addr, nil
}

// IsIPv4 reports whether s is a dotted-quad IPv4 address.
func IsIPv4(s string) bool {
	_, err := ParseAddr(s)
	return err == nil
}

// MaskLength converts a dotted subnet mask (255.255.255.0) to a prefix
// length by counting set bits. Non-contiguous masks are rejected.
func MaskLength(mask string) (int, error) {
	addr, err := netip.ParseAddr(mask)
	if err != nil || !addr.Is4() {
		return 0, NewPrefixError(mask, "mask is not a dotted-quad")
	}
	b := addr.As4()
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	ones := bits.OnesCount32(v)
	if bits.LeadingZeros32(^v) != ones {
		return 0, NewPrefixError(mask, "mask is not contiguous")
	}
	return ones, nil
}

// LengthMask renders a prefix length as a dotted subnet mask.
func LengthMask(length int) string {
	v := ^uint32(0) << (32 - length)
	return fmt.Sprintf("%d.%d.%d.%d", byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// ParsePrefix parses an IPv4 prefix in CIDR ("10.0.0.0/24"), address/mask
// ("10.0.0.0 255.255.255.0") or bare host ("10.0.0.1", a /32) form.
// Host bits are masked off.
func ParsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Prefix{}, NewPrefixError(s, "empty")
	}

	var addrPart string
	var length int
	switch fields := strings.Fields(s); {
	case len(fields) == 2:
		addrPart = fields[0]
		n, err := MaskLength(fields[1])
		if err != nil {
			return netip.Prefix{}, NewPrefixError(s, "bad mask "+fields[1])
		}
		length = n
	case len(fields) == 1 && strings.Contains(s, "/"):
		parts := strings.SplitN(s, "/", 2)
		addrPart = parts[0]
		n, err := prefixLength(parts[1])
		if err != nil {
			return netip.Prefix{}, NewPrefixError(s, err.Error())
		}
		length = n
	case len(fields) == 1:
		addrPart = s
		length = 32
	default:
		return netip.Prefix{}, NewPrefixError(s, "unrecognised format")
	}

	addr, err := ParseAddr(addrPart)
	if err != nil {
		return netip.Prefix{}, NewPrefixError(s, "bad address "+addrPart)
	}
	return netip.PrefixFrom(addr, length).Masked(), nil
}

// prefixLength accepts either a decimal length or a dotted mask after the slash.
func prefixLength(s string) (int, error) {
	if strings.Contains(s, ".") {
		return MaskLength(s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("prefix length %q is not a number", s)
	}
	if n < 0 || n > 32 {
		return 0, fmt.Errorf("prefix length %d outside [0,32]", n)
	}
	return n, nil
}

// ParseDestination accepts an IPv4 address or CIDR and returns it as a
// prefix; a bare address becomes a /32.
func ParseDestination(s string) (netip.Prefix, error) {
	if !strings.Contains(s, "/") {
		addr, err := ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return netip.PrefixFrom(addr, 32), nil
	}
	pfx, err := ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, NewAddressError(s)
	}
	return pfx, nil
}

// ClassfulLength returns the classful prefix length of addr (A=8, B=16,
// C=24, otherwise 32). Old IOS captures omit lengths under classful headers.
func ClassfulLength(addr netip.Addr) int {
	first := addr.As4()[0]
	switch {
	case first < 128:
		return 8
	case first < 192:
		return 16
	case first < 224:
		return 24
	default:
		return 32
	}
}
