// Package platform holds per-platform knowledge used while parsing
// routing-table captures, chiefly which tokens name an interface.
package platform

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/armon/go-radix"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/newtrace/pkg/util"
)

// Default is the platform assumed when a device does not name one.
const Default = "ios"

// Platform recognises interface names by prefix. Keys are matched
// case-insensitively; a token is an interface name when a known prefix is
// followed by a digit ("Gi0/1", "Tunnel10", "Null0").
type Platform struct {
	Name     string
	prefixes *radix.Tree // lower-cased prefix -> canonical name
}

// New builds a platform from a prefix table (abbreviation or full name ->
// canonical name).
func New(name string, prefixes map[string]string) *Platform {
	p := &Platform{Name: name, prefixes: radix.New()}
	for k, v := range prefixes {
		p.prefixes.Insert(strings.ToLower(k), v)
	}
	return p
}

// IsInterface reports whether token names an interface on this platform.
func (p *Platform) IsInterface(token string) bool {
	_, ok := p.Canonical(token)
	return ok
}

// Canonical expands an interface name to its canonical long form
// ("Gi0/0.100" -> "GigabitEthernet0/0.100"). The boolean is false when the
// token is not an interface name.
func (p *Platform) Canonical(token string) (string, bool) {
	token = strings.TrimSpace(token)
	lower := strings.ToLower(token)
	if lower == "" || len(lower) != len(token) {
		return "", false
	}

	// WalkPath visits every stored key that prefixes the token, shortest
	// first, so the last acceptable one is the longest.
	var canonical string
	var matchLen int
	p.prefixes.WalkPath(lower, func(key string, v interface{}) bool {
		if len(key) < len(lower) && isDigit(lower[len(key)]) {
			canonical = v.(string)
			matchLen = len(key)
		}
		return false
	})
	if matchLen == 0 {
		return "", false
	}
	return canonical + token[matchLen:], true
}

// Prefixes returns the recognised prefixes in sorted order.
func (p *Platform) Prefixes() []string {
	var out []string
	p.prefixes.Walk(func(key string, _ interface{}) bool {
		out = append(out, key)
		return false
	})
	return out
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// iosPrefixes covers Cisco IOS and IOS-XE interface naming.
var iosPrefixes = map[string]string{
	"Gi":                   "GigabitEthernet",
	"Gig":                  "GigabitEthernet",
	"GigabitEthernet":      "GigabitEthernet",
	"Fa":                   "FastEthernet",
	"FastEthernet":         "FastEthernet",
	"Te":                   "TenGigabitEthernet",
	"TenGigabitEthernet":   "TenGigabitEthernet",
	"Twe":                  "TwentyFiveGigE",
	"TwentyFiveGigE":       "TwentyFiveGigE",
	"Fo":                   "FortyGigabitEthernet",
	"FortyGigabitEthernet": "FortyGigabitEthernet",
	"Hu":                   "HundredGigE",
	"HundredGigE":          "HundredGigE",
	"Eth":                  "Ethernet",
	"Ethernet":             "Ethernet",
	"Se":                   "Serial",
	"Serial":               "Serial",
	"Tu":                   "Tunnel",
	"Tunnel":               "Tunnel",
	"Lo":                   "Loopback",
	"Loopback":             "Loopback",
	"Vl":                   "Vlan",
	"Vlan":                 "Vlan",
	"Po":                   "Port-channel",
	"Port-channel":         "Port-channel",
	"Nu":                   "Null",
	"Null":                 "Null",
	"Di":                   "Dialer",
	"Dialer":               "Dialer",
	"Vi":                   "Virtual-Access",
	"Virtual-Access":       "Virtual-Access",
	"BDI":                  "BDI",
}

// asaPrefixes covers ASA physical and logical names. Routes on an ASA
// usually name the interface by nameif ("inside"), which never matches
// here; those are accepted from the "is directly connected" position.
var asaPrefixes = map[string]string{
	"Gi":              "GigabitEthernet",
	"GigabitEthernet": "GigabitEthernet",
	"Te":              "TenGigabitEthernet",
	"Management":      "Management",
	"Ma":              "Management",
	"Po":              "Port-channel",
	"Port-channel":    "Port-channel",
	"Redundant":       "Redundant",
	"Tunnel":          "Tunnel",
	"BVI":             "BVI",
	"Null":            "Null",
}

// sonicPrefixes covers SONiC port, LAG, SVI and loopback names.
var sonicPrefixes = map[string]string{
	"Ethernet":    "Ethernet",
	"Eth":         "Ethernet",
	"PortChannel": "PortChannel",
	"Po":          "PortChannel",
	"Vlan":        "Vlan",
	"Loopback":    "Loopback",
	"Lo":          "Loopback",
}

// ============================================================================
// Platform sets
// ============================================================================

// Set is a named collection of platforms.
type Set struct {
	platforms map[string]*Platform
}

// Builtin returns the built-in ios, iosxe, asa and sonic platforms.
func Builtin() *Set {
	return &Set{platforms: map[string]*Platform{
		"ios":   New("ios", iosPrefixes),
		"iosxe": New("iosxe", iosPrefixes),
		"asa":   New("asa", asaPrefixes),
		"sonic": New("sonic", sonicPrefixes),
	}}
}

// Get returns the named platform; an empty name selects Default.
func (s *Set) Get(name string) (*Platform, error) {
	if name == "" {
		name = Default
	}
	p, ok := s.platforms[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("platform %q: %w", name, util.ErrNotFound)
	}
	return p, nil
}

// Names returns the platform names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.platforms))
	for n := range s.platforms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Spec is the YAML form of a platform definition.
type Spec struct {
	// Extends names a platform whose prefixes are inherited.
	Extends           string            `yaml:"extends,omitempty"`
	InterfacePrefixes map[string]string `yaml:"interface_prefixes"`
}

// Apply merges specs into the set. A spec that extends another platform
// starts from that platform's prefixes; entries in the spec win.
func (s *Set) Apply(specs map[string]Spec) error {
	v := &util.ValidationBuilder{}
	names := make([]string, 0, len(specs))
	for n := range specs {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := specs[name]
		merged := make(map[string]string)
		if spec.Extends != "" {
			base, err := s.Get(spec.Extends)
			if err != nil {
				v.AddErrorf("platform %s: extends unknown platform %q", name, spec.Extends)
				continue
			}
			base.prefixes.Walk(func(key string, val interface{}) bool {
				merged[key] = val.(string)
				return false
			})
		}
		for k, canon := range spec.InterfacePrefixes {
			if k == "" || canon == "" {
				v.AddErrorf("platform %s: empty interface prefix entry", name)
				continue
			}
			merged[k] = canon
		}
		if len(merged) == 0 {
			v.AddErrorf("platform %s: no interface prefixes", name)
			continue
		}
		s.platforms[strings.ToLower(name)] = New(name, merged)
	}
	return v.Build()
}

// LoadFile reads a YAML document of the form
//
//	platforms:
//	  nxos:
//	    extends: ios
//	    interface_prefixes:
//	      mgmt: mgmt
//
// and applies it on top of the built-in platforms.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading platform file: %w", err)
	}
	var doc struct {
		Platforms map[string]Spec `yaml:"platforms"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing platform YAML: %w", err)
	}
	s := Builtin()
	if err := s.Apply(doc.Platforms); err != nil {
		return nil, fmt.Errorf("validating platforms: %w", err)
	}
	return s, nil
}
