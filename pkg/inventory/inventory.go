// Package inventory loads the set of devices to trace over.
//
// An inventory is either a YAML file listing devices, each backed by a
// capture file, a SONiC APPL_DB dump or inline structured routes, or a
// plain directory of "*.txt" captures and "*.json" APPL_DB dumps where the
// file stem is the device id:
//
//	default_platform: ios
//	platforms:
//	  edge:
//	    extends: asa
//	    interface_prefixes: {wan: WanLink}
//	devices:
//	  - id: R1
//	    file: captures/r1.txt
//	  - id: FW1
//	    platform: edge
//	    file: captures/fw1.txt
//	  - id: leaf1
//	    format: sonic-appldb
//	    file: dumps/leaf1.json
//	  - id: LAB
//	    routes:
//	      - {prefix: 10.9.0.0/24, interface: eth0}
//	      - {prefix: 0.0.0.0/0, next_hops: [10.9.0.1]}
//	    interfaces:
//	      - {name: eth0, address: 10.9.0.2}
package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/newtrace/pkg/platform"
	"github.com/newtron-network/newtrace/pkg/registry"
	"github.com/newtron-network/newtrace/pkg/routetable"
	"github.com/newtron-network/newtrace/pkg/sonic"
	"github.com/newtron-network/newtrace/pkg/util"
)

// File extensions recognised in directory inventories.
const (
	CaptureExt = ".txt"
	DumpExt    = ".json"
)

// Device file formats.
const (
	FormatCapture    = "capture"
	FormatSonicAppDB = "sonic-appldb"
)

// File is the YAML form of an inventory.
type File struct {
	DefaultPlatform string                   `yaml:"default_platform,omitempty"`
	Platforms       map[string]platform.Spec `yaml:"platforms,omitempty"`
	Devices         []DeviceSpec             `yaml:"devices"`
}

// DeviceSpec is one inventory device. Exactly one of File or Routes is set.
// Format applies to File and defaults to FormatCapture; VRF selects the
// table read from a SONiC dump.
type DeviceSpec struct {
	ID         string                     `yaml:"id"`
	Platform   string                     `yaml:"platform,omitempty"`
	Format     string                     `yaml:"format,omitempty"`
	VRF        string                     `yaml:"vrf,omitempty"`
	File       string                     `yaml:"file,omitempty"`
	Routes     []routetable.RouteSpec     `yaml:"routes,omitempty"`
	Interfaces []routetable.InterfaceSpec `yaml:"interfaces,omitempty"`
}

// entry is a loaded device: a capture still to be parsed, a device that
// is already built, or a device whose file could not be decoded.
type entry struct {
	id      string
	source  *registry.Source
	device  *routetable.Device
	failure *registry.Failure
}

// Inventory is a validated set of devices, in declaration order.
type Inventory struct {
	// Path is the file or directory the inventory was loaded from.
	Path string

	// Platforms holds the built-in platforms plus any defined inline.
	Platforms *platform.Set

	entries []entry
}

// Load reads path as a capture directory or a YAML inventory file.
// defaultPlatform applies to devices that declare none; empty means
// platform.Default.
func Load(path, defaultPlatform string) (*Inventory, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("inventory %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(path, defaultPlatform)
	}
	return LoadFile(path, defaultPlatform)
}

// LoadDir builds an inventory from every capture and APPL_DB dump in dir,
// sorted by file name.
func LoadDir(dir, defaultPlatform string) (*Inventory, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing captures: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	f := &File{DefaultPlatform: defaultPlatform}
	for _, name := range names {
		ext := filepath.Ext(name)
		id := strings.TrimSuffix(name, ext)
		switch ext {
		case CaptureExt:
			f.Devices = append(f.Devices, DeviceSpec{ID: id, File: name})
		case DumpExt:
			f.Devices = append(f.Devices, DeviceSpec{ID: id, Format: FormatSonicAppDB, File: name})
		}
	}
	if len(f.Devices) == 0 {
		return nil, fmt.Errorf("no *%s captures or *%s dumps in %s: %w", CaptureExt, DumpExt, dir, util.ErrNotFound)
	}
	return FromFile(f, dir, dir)
}

// LoadFile reads a YAML inventory. Capture paths are relative to the
// inventory file's directory.
func LoadFile(path, defaultPlatform string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing inventory YAML: %w", err)
	}
	if f.DefaultPlatform == "" {
		f.DefaultPlatform = defaultPlatform
	}
	return FromFile(&f, filepath.Dir(path), path)
}

// FromFile validates f and reads its captures. Every problem found is
// reported together in one *util.ValidationError.
func FromFile(f *File, baseDir, origin string) (*Inventory, error) {
	plats := platform.Builtin()
	if len(f.Platforms) > 0 {
		if err := plats.Apply(f.Platforms); err != nil {
			return nil, fmt.Errorf("inventory platforms: %w", err)
		}
	}

	inv := &Inventory{Path: origin, Platforms: plats}
	v := &util.ValidationBuilder{}
	seen := make(map[string]bool)

	if f.DefaultPlatform != "" {
		if _, err := plats.Get(f.DefaultPlatform); err != nil {
			v.AddErrorf("default_platform: %v", err)
		}
	}

	for i, d := range f.Devices {
		if d.ID == "" {
			v.AddErrorf("device %d: id is required", i)
			continue
		}
		if seen[d.ID] {
			v.AddErrorf("device %s: duplicate id", d.ID)
			continue
		}
		seen[d.ID] = true

		plat := d.Platform
		if plat == "" && d.Format == FormatSonicAppDB {
			plat = sonic.Platform
		}
		if plat == "" {
			plat = f.DefaultPlatform
		}
		if _, err := plats.Get(plat); err != nil {
			v.AddErrorf("device %s: %v", d.ID, err)
			continue
		}
		if plat == "" {
			plat = platform.Default
		}

		p := d.File
		if p != "" && !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}

		switch {
		case d.File != "" && len(d.Routes) > 0:
			v.AddErrorf("device %s: file and routes are mutually exclusive", d.ID)
		case d.Format != "" && d.Format != FormatCapture && d.Format != FormatSonicAppDB:
			v.AddErrorf("device %s: unknown format %q (want %s or %s)", d.ID, d.Format, FormatCapture, FormatSonicAppDB)
		case d.Format == FormatSonicAppDB && d.File != "":
			data, err := os.ReadFile(p)
			if err != nil {
				v.AddErrorf("device %s: %v", d.ID, err)
				continue
			}
			dev, err := sonic.ReadDevice(d.ID, bytes.NewReader(data), d.VRF)
			if err != nil {
				inv.entries = append(inv.entries, entry{id: d.ID, failure: dumpFailure(d.ID, err)})
				continue
			}
			dev.Platform = plat
			inv.entries = append(inv.entries, entry{id: d.ID, device: dev})
		case d.File != "":
			text, err := os.ReadFile(p)
			if err != nil {
				v.AddErrorf("device %s: %v", d.ID, err)
				continue
			}
			inv.entries = append(inv.entries, entry{
				id:     d.ID,
				source: &registry.Source{ID: d.ID, Platform: plat, Text: string(text)},
			})
		case len(d.Routes) > 0:
			dev, err := routetable.FromStructured(d.ID, plat, d.Routes, d.Interfaces)
			if err != nil {
				v.AddErrorf("device %s: %v", d.ID, err)
				continue
			}
			inv.entries = append(inv.entries, entry{id: d.ID, device: dev})
		default:
			v.AddErrorf("device %s: needs a capture file or routes", d.ID)
		}
	}

	if err := v.Build(); err != nil {
		return nil, fmt.Errorf("inventory %s: %w", origin, err)
	}
	return inv, nil
}

// dumpFailure records an undecodable dump the way registry.Build records an
// unparseable capture.
func dumpFailure(id string, err error) *registry.Failure {
	util.WithDevice(id).Warnf("Excluding device: %v", err)
	reason := err.Error()
	var pe *util.ParseError
	if errors.As(err, &pe) {
		reason = pe.Reason
	}
	return &registry.Failure{Device: id, Reason: reason}
}

// Len returns the number of devices.
func (inv *Inventory) Len() int { return len(inv.entries) }

// IDs returns the device ids in declaration order.
func (inv *Inventory) IDs() []string {
	ids := make([]string, len(inv.entries))
	for i, e := range inv.entries {
		ids[i] = e.id
	}
	return ids
}

// Sources returns the capture-backed devices.
func (inv *Inventory) Sources() []registry.Source {
	var out []registry.Source
	for _, e := range inv.entries {
		if e.source != nil {
			out = append(out, *e.source)
		}
	}
	return out
}

// Build parses the captures in parallel and assembles a snapshot with all
// devices in declaration order. Parse failures are recorded, not fatal.
func (inv *Inventory) Build(ctx context.Context, opts registry.Options) (*registry.Snapshot, error) {
	if opts.Platforms == nil {
		opts.Platforms = inv.Platforms
	}

	parsed, failures, err := registry.Parse(ctx, inv.Sources(), opts)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*routetable.Device, len(parsed))
	for _, d := range parsed {
		byID[d.ID] = d
	}

	devices := make([]*routetable.Device, 0, len(inv.entries))
	for _, e := range inv.entries {
		switch {
		case e.device != nil:
			devices = append(devices, e.device)
		case e.failure != nil:
			failures = append(failures, *e.failure)
		case byID[e.id] != nil:
			devices = append(devices, byID[e.id])
		}
	}

	snap := registry.FromDevices(devices, failures)
	util.WithField("inventory", inv.Path).Infof("Loaded %d devices (%d failed)", snap.Len(), len(failures))
	return snap, nil
}
