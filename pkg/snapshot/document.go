// Package snapshot serialises a registry.Snapshot to a portable JSON
// document and stores documents in a file or in Redis, so a registry can
// be cached, reloaded without re-parsing, and compared across captures.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/newtron-network/newtrace/pkg/registry"
	"github.com/newtron-network/newtrace/pkg/routetable"
	"github.com/newtron-network/newtrace/pkg/util"
)

// Version is the document format written by this package.
const Version = 1

// Document is the serialised form of a snapshot.
type Document struct {
	Version  int                `json:"version"`
	BuiltAt  time.Time          `json:"built_at"`
	Devices  []Device           `json:"devices"`
	Failures []registry.Failure `json:"failures,omitempty"`
}

// Device is one device's table in a Document.
type Device struct {
	ID         string                     `json:"id"`
	Platform   string                     `json:"platform,omitempty"`
	Routes     []routetable.RouteSpec     `json:"routes"`
	Interfaces []routetable.InterfaceSpec `json:"interfaces,omitempty"`
}

// Store saves and loads documents.
type Store interface {
	Save(ctx context.Context, doc *Document) error
	Load(ctx context.Context) (*Document, error)
}

// FromSnapshot captures s as a document. Devices keep registry order and
// routes are in prefix order.
func FromSnapshot(s *registry.Snapshot) *Document {
	doc := &Document{
		Version:  Version,
		BuiltAt:  s.BuiltAt().UTC().Truncate(time.Second),
		Failures: s.Failures(),
	}
	for _, d := range s.Devices() {
		doc.Devices = append(doc.Devices, fromDevice(d))
	}
	return doc
}

func fromDevice(d *routetable.Device) Device {
	out := Device{ID: d.ID, Platform: d.Platform, Interfaces: d.InterfaceSpecs()}
	for _, r := range d.Routes() {
		out.Routes = append(out.Routes, r.Spec())
	}
	return out
}

// Snapshot rebuilds a registry snapshot from the document, including the
// neighbor index.
func (doc *Document) Snapshot() (*registry.Snapshot, error) {
	if doc.Version != Version {
		return nil, fmt.Errorf("snapshot version %d (want %d): %w", doc.Version, Version, util.ErrInvalidConfig)
	}

	devices := make([]*routetable.Device, 0, len(doc.Devices))
	for _, d := range doc.Devices {
		dev, err := routetable.FromStructured(d.ID, d.Platform, d.Routes, d.Interfaces)
		if err != nil {
			return nil, fmt.Errorf("restoring device %s: %w", d.ID, err)
		}
		devices = append(devices, dev)
	}
	return registry.FromDevices(devices, doc.Failures).WithBuiltAt(doc.BuiltAt), nil
}

// Device returns the named device.
func (doc *Document) Device(id string) (Device, bool) {
	for _, d := range doc.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// Decode reads a JSON document.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &doc, nil
}
