package routetable

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"strings"

	"github.com/newtron-network/newtrace/pkg/platform"
	"github.com/newtron-network/newtrace/pkg/util"
)

// Options tune parsing of one capture.
type Options struct {
	// Platform recognises interface names in "via <name>" position.
	// Nil selects the built-in default platform.
	Platform *platform.Platform

	// Canonical expands abbreviated interface names ("Gi0/0" becomes
	// "GigabitEthernet0/0") before they are stored.
	Canonical bool
}

// Result is a successful parse. Warnings describe lines that were skipped.
type Result struct {
	Device   *Device
	Warnings []string
}

// Parse parses a "show ip route" (IOS, IOS-XE) or "show route" (ASA)
// capture for device id.
//
// A capture with no directly connected routes is rejected with a
// *util.ParseError; individual malformed lines only produce warnings.
func Parse(id, text string, opts Options) (*Result, error) {
	return ParseReader(id, strings.NewReader(text), opts)
}

// ParseReader is Parse over an io.Reader.
func ParseReader(id string, r io.Reader, opts Options) (*Result, error) {
	p := newParser(id, opts)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		p.line(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading capture for %s: %w", id, err)
	}
	p.flush()

	return p.finish()
}

// subnetContext is the state left by a "… is subnetted" header. Old IOS
// prints entries under it as bare addresses that inherit its mask.
type subnetContext struct {
	network netip.Prefix
	length  int // 0 when variably subnetted
}

func (c subnetContext) lengthFor(addr netip.Addr) int {
	if c.length > 0 && c.network.Contains(addr) {
		return c.length
	}
	return util.ClassfulLength(addr)
}

// pendingRoute is a route header whose continuation lines may follow.
type pendingRoute struct {
	route     *Route
	lines     []string
	lineNo    int
	connected bool
}

type parser struct {
	id        string
	plat      *platform.Platform
	canonical bool

	lineNo  int
	subnet  subnetContext
	pending *pendingRoute

	local      []*Route
	remote     []*Route
	connected  int
	interfaces []Interface
	warnings   []string
}

func newParser(id string, opts Options) *parser {
	plat := opts.Platform
	if plat == nil {
		plat, _ = platform.Builtin().Get(platform.Default)
	}
	return &parser{id: id, plat: plat, canonical: opts.Canonical}
}

func (p *parser) warnf(format string, args ...interface{}) {
	p.warnings = append(p.warnings, fmt.Sprintf("line %d: ", p.lineNo)+fmt.Sprintf(format, args...))
}

// line classifies one physical line and advances the state machine:
//
//	blank / other   -> close any pending route
//	continuation    -> extend the pending route ("[110/2] via …")
//	route header    -> close pending route, open a new one
//	subnet header   -> close pending route, set the subnet context
func (p *parser) line(raw string) {
	p.lineNo++
	raw = strings.TrimRight(raw, "\r\t ")
	fields := strings.Fields(raw)

	if len(fields) == 0 {
		p.flush()
		return
	}

	if p.pending != nil && isContinuation(raw, fields) {
		p.pending.lines = append(p.pending.lines, strings.TrimSpace(raw))
		p.absorb(strings.Join(fields, " "))
		return
	}

	if codes, rest, ok := splitCodes(fields); ok {
		p.flush()
		pfx, body, err := p.headerPrefix(rest)
		if err != nil {
			p.warnf("skipping route: %v", err)
			return
		}
		p.pending = &pendingRoute{
			route:  &Route{Prefix: pfx, Code: strings.Join(codes, " ")},
			lines:  []string{strings.TrimSpace(raw)},
			lineNo: p.lineNo,
		}
		p.absorb(strings.Join(body, " "))
		return
	}

	if looksLikeAddress(fields[0]) && strings.Contains(raw, "subnetted") {
		p.flush()
		p.subnetHeader(fields, strings.Contains(raw, "variably"))
		return
	}

	p.flush()
}

// isContinuation reports whether an indented line extends the route above it.
func isContinuation(raw string, fields []string) bool {
	if raw[0] != ' ' && raw[0] != '\t' {
		return false
	}
	return strings.HasPrefix(fields[0], "[") ||
		fields[0] == "via" ||
		strings.Contains(raw, "is directly connected")
}

// splitCodes separates the leading protocol codes ("S*", "O IA", "D EX")
// from the rest of a route header. Legend and banner lines never have a
// short code run followed by an address, so they are rejected here.
func splitCodes(fields []string) (codes, rest []string, ok bool) {
	for i, f := range fields {
		if looksLikeAddress(f) {
			if i == 0 {
				return nil, nil, false
			}
			return fields[:i], fields[i:], true
		}
		if i >= 3 || !isCode(f) {
			return nil, nil, false
		}
	}
	return nil, nil, false
}

func isCode(s string) bool {
	if len(s) == 0 || len(s) > 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '*', c == '+', c == '%', c == '&':
		default:
			return false
		}
	}
	return true
}

func looksLikeAddress(tok string) bool {
	addr, _, _ := strings.Cut(tok, "/")
	return util.IsIPv4(addr)
}

// headerPrefix reads the destination prefix at the start of rest, in CIDR,
// ASA address/mask, or bare-address form, and returns the remaining tokens.
func (p *parser) headerPrefix(rest []string) (netip.Prefix, []string, error) {
	tok := rest[0]
	if strings.Contains(tok, "/") {
		pfx, err := util.ParsePrefix(tok)
		return pfx, rest[1:], err
	}

	addr, err := util.ParseAddr(tok)
	if err != nil {
		return netip.Prefix{}, nil, err
	}
	if len(rest) > 1 && util.IsIPv4(rest[1]) {
		n, err := util.MaskLength(rest[1])
		if err != nil {
			return netip.Prefix{}, nil, util.NewPrefixError(tok+" "+rest[1], "bad mask")
		}
		return netip.PrefixFrom(addr, n).Masked(), rest[2:], nil
	}
	return netip.PrefixFrom(addr, p.subnet.lengthFor(addr)).Masked(), rest[1:], nil
}

func (p *parser) subnetHeader(fields []string, variably bool) {
	pfx, _, err := p.headerPrefix(fields)
	if err != nil {
		p.warnf("ignoring subnet header: %v", err)
		p.subnet = subnetContext{}
		return
	}
	addr := pfx.Addr()
	ctx := subnetContext{network: netip.PrefixFrom(addr, util.ClassfulLength(addr)).Masked()}
	if !variably {
		ctx.length = pfx.Bits()
	}
	p.subnet = ctx
}

// absorb folds the descriptive part of a header or continuation line into
// the pending route: next-hops after "via", or the egress interface of a
// connected, summary or interface-only route.
func (p *parser) absorb(body string) {
	pr := p.pending
	r := pr.route

	if strings.Contains(body, "is directly connected") {
		pr.connected = true
		r.Interface = p.ifname(lastField(body))
		return
	}
	if strings.Contains(body, "is a summary") {
		r.Interface = p.ifname(lastField(body))
		return
	}

	fields := strings.Fields(body)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] != "via" {
			continue
		}
		tok := strings.TrimRight(fields[i+1], ",")
		if addr, err := util.ParseAddr(tok); err == nil {
			r.NextHops = appendUnique(r.NextHops, addr)
		} else if r.Interface == "" && p.plat.IsInterface(tok) {
			r.Interface = p.ifname(tok)
		}
	}
	if last := lastField(body); r.Interface == "" && p.plat.IsInterface(last) {
		r.Interface = p.ifname(last)
	}
}

func (p *parser) ifname(tok string) string {
	if p.canonical {
		if c, ok := p.plat.Canonical(tok); ok {
			return c
		}
	}
	return tok
}

// flush closes the pending route and files it as local or remote.
func (p *parser) flush() {
	pr := p.pending
	if pr == nil {
		return
	}
	p.pending = nil

	r := pr.route
	r.Descriptor = strings.Join(pr.lines, "\n")
	switch {
	case len(r.NextHops) > 0:
		p.remote = append(p.remote, r)
	case r.Interface != "":
		p.local = append(p.local, r)
		if pr.connected {
			p.connected++
			if r.hostRoute() {
				p.interfaces = append(p.interfaces, Interface{Name: r.Interface, Address: r.Prefix.Addr()})
			}
		}
	default:
		p.warnings = append(p.warnings,
			fmt.Sprintf("line %d: route %s has neither next-hop nor interface", pr.lineNo, r.Prefix))
	}
}

// finish builds the device: connected routes first, then everything else,
// so a later remote entry for the same prefix replaces a local one.
func (p *parser) finish() (*Result, error) {
	if p.connected == 0 {
		return nil, util.NewParseError(p.id, "no directly connected routes found (wrong format or empty capture?)")
	}

	d := newDevice(p.id, p.plat.Name)
	for _, group := range [][]*Route{p.local, p.remote} {
		for _, r := range group {
			if err := d.insert(r); err != nil {
				p.warnings = append(p.warnings, fmt.Sprintf("route %s: %v", r.Prefix, err))
			}
		}
	}
	d.Interfaces = p.interfaces

	return &Result{Device: d, Warnings: p.warnings}, nil
}

// lastField returns the text after the last comma, or the last word.
func lastField(s string) string {
	if i := strings.LastIndex(s, ","); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func appendUnique(list []netip.Addr, addr netip.Addr) []netip.Addr {
	for _, a := range list {
		if a == addr {
			return list
		}
	}
	return append(list, addr)
}
