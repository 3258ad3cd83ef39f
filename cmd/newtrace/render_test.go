package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/newtron-network/newtrace/internal/testutil"
	"github.com/newtron-network/newtrace/pkg/cli"
	"github.com/newtron-network/newtrace/pkg/registry"
	"github.com/newtron-network/newtrace/pkg/snapshot"
	"github.com/newtron-network/newtrace/pkg/tracer"
)

// plain disables colour for the rest of the test.
func plain(t *testing.T) {
	t.Helper()
	prev := cli.ColorEnabled()
	cli.SetColor(false)
	t.Cleanup(func() { cli.SetColor(prev) })
}

// topology builds the four-router sample registry with colour disabled.
func topology(t *testing.T) *registry.Snapshot {
	t.Helper()
	plain(t)

	var sources []registry.Source
	for _, c := range testutil.Topology() {
		sources = append(sources, registry.Source{ID: c.ID, Platform: c.Platform, Text: c.Text})
	}
	snap, err := registry.Build(context.Background(), sources, registry.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if snap.Len() != 4 {
		t.Fatalf("topology has %d devices, want 4 (failures %v)", snap.Len(), snap.Failures())
	}
	return snap
}

func TestPrintTrace(t *testing.T) {
	snap := topology(t)
	tr := tracer.New(snap)

	tests := []struct {
		name        string
		destination string
		want        []string
	}{
		{
			name:        "ecmp to the LAN",
			destination: "192.168.204.10",
			want: []string{
				"Trace R1 -> 192.168.204.10: 2 paths (2 success)",
				"Path 1: success",
				"Path 2: success",
				"R2      forward  10.0.12.2",
				"R3      forward  10.0.13.2",
				"192.168.204.0/24",
			},
		},
		{
			name:        "default route loops back",
			destination: "172.16.5.1",
			want: []string{
				"Trace R1 -> 172.16.5.1: 1 path (1 loop)",
				"Path 1: loop",
				"R1      loop     10.0.12.1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths, err := tr.Trace("R1", tt.destination)
			if err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			printTrace(&buf, "R1", tt.destination, paths)
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestPrintTrace_Claimants(t *testing.T) {
	plain(t)

	paths := []tracer.Path{{Hops: []tracer.Hop{
		{Device: "A", Status: tracer.Forward},
		{Device: "C", Status: tracer.Success, Claimants: []registry.Owner{
			{Device: "B", Interface: "eth0"}, {Device: "C", Interface: "eth1"},
		}},
	}}}
	paths[0].Hops[1].Via = netip.MustParseAddr("10.0.0.2")

	var buf bytes.Buffer
	printTrace(&buf, "A", "10.9.0.1", paths)
	want := "! 10.0.0.2 is claimed by B (eth0), C (eth1); using C"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("output missing %q:\n%s", want, buf.String())
	}
}

func TestSummarize(t *testing.T) {
	plain(t)

	paths := []tracer.Path{
		{Hops: []tracer.Hop{{Status: tracer.Success}}},
		{Hops: []tracer.Hop{{Status: tracer.Loop}}},
		{Hops: []tracer.Hop{{Status: tracer.Success}}},
	}
	if got := summarize(paths); got != "1 loop, 2 success" {
		t.Errorf("summarize() = %q", got)
	}
	if got := summarize(nil); got != "" {
		t.Errorf("summarize(nil) = %q", got)
	}
}

func TestTraceView_JSON(t *testing.T) {
	snap := topology(t)
	paths, err := tracer.New(snap).Trace("R1", "192.168.204.10")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := writeJSON(&buf, newTraceView("R1", "192.168.204.10", paths, nil)); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Source string `json:"source"`
		Paths  []struct {
			Status string `json:"status"`
			Hops   []struct {
				Device string `json:"device"`
			} `json:"hops"`
		} `json:"paths"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decoding %s: %v", buf.String(), err)
	}
	if got.Source != "R1" || len(got.Paths) != 2 || got.Error != "" {
		t.Fatalf("view = %+v", got)
	}
	for _, p := range got.Paths {
		if p.Status != "success" || len(p.Hops) != 3 || p.Hops[2].Device != "R4" {
			t.Errorf("path = %+v", p)
		}
	}

	v := newTraceView("R1", "bogus", nil, errors.New("bad destination"))
	if v.Error != "bad destination" || v.Paths == nil {
		t.Errorf("error view = %+v", v)
	}
}

func TestPrintBatch(t *testing.T) {
	snap := topology(t)
	results, err := tracer.New(snap).TraceBatch(context.Background(), "R1", []string{"192.168.204.10", "nope"}, 2)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	printBatch(&buf, "R1", results)
	out := buf.String()
	for _, want := range []string{"Batch from R1: 2 destinations", "192.168.204.10  2      2 success", "nope"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestParseDestinations(t *testing.T) {
	in := "# lab checks\n10.0.0.1\n\n  192.168.204.0/24  LAN\n#10.9.9.9\n"
	got, err := parseDestinations(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "10.0.0.1,192.168.204.0/24" {
		t.Errorf("parseDestinations() = %v", got)
	}
}

func TestPrintDevicesAndRoutes(t *testing.T) {
	snap := topology(t)

	var buf bytes.Buffer
	printDevices(&buf, registry.FromDevices(snap.Devices(), []registry.Failure{{Device: "R9", Reason: "empty capture"}}))
	for _, want := range []string{"DEVICE  PLATFORM  ROUTES  INTERFACES", "R3      asa", "Excluded (1):", "R9: empty capture"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("devices output missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	r3, _ := snap.Device("R3")
	printRoutes(&buf, r3)
	for _, want := range []string{"Device: R3 (asa)", "0.0.0.0/0", "10.0.13.1", "local", "outside  10.0.13.2"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("routes output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestLookupRoute(t *testing.T) {
	snap := topology(t)
	r4, _ := snap.Device("R4")

	r, err := lookupRoute(r4, "192.168.204.77")
	if err != nil || r == nil || r.Interface != "Vlan204" {
		t.Fatalf("lookupRoute(R4, LAN host) = %+v, %v", r, err)
	}

	var buf bytes.Buffer
	printLookup(&buf, r4, "192.168.204.77", r)
	if !strings.Contains(buf.String(), "Delivered: Vlan204") {
		t.Errorf("lookup output:\n%s", buf.String())
	}

	r, err = lookupRoute(r4, "8.8.8.8")
	if err != nil || r != nil {
		t.Errorf("lookupRoute(R4, 8.8.8.8) = %+v, %v; want no route", r, err)
	}
	if _, err := lookupRoute(r4, "10.0.0.300"); err == nil {
		t.Error("lookupRoute should reject a bad address")
	}
}

func TestPrintConflicts(t *testing.T) {
	plain(t)

	var buf bytes.Buffer
	printConflicts(&buf, nil)
	if !strings.Contains(buf.String(), "No address conflicts") {
		t.Errorf("empty conflicts output:\n%s", buf.String())
	}

	buf.Reset()
	printConflicts(&buf, []registry.Conflict{{
		Address: netip.MustParseAddr("10.0.0.1"),
		Owners:  []registry.Owner{{Device: "A", Interface: "eth0"}, {Device: "B"}},
	}})
	if !strings.Contains(buf.String(), "10.0.0.1  A (eth0), B  B") {
		t.Errorf("conflicts output:\n%s", buf.String())
	}
}

func TestPrintDiff(t *testing.T) {
	plain(t)

	var buf bytes.Buffer
	printDiff(&buf, []snapshot.DeviceDiff{
		{Device: "R1", Kind: snapshot.DeviceChanged, Added: []string{"10.9.0.0/24"}, Changed: []string{"0.0.0.0/0"}},
		{Device: "R5", Kind: snapshot.DeviceRemoved, Removed: []string{"10.5.0.0/24"}},
	})
	want := "R1 (changed)\n  + 10.9.0.0/24\n  ~ 0.0.0.0/0\nR5 (removed)\n  - 10.5.0.0/24\n"
	if buf.String() != want {
		t.Errorf("printDiff() =\n%s\nwant\n%s", buf.String(), want)
	}

	buf.Reset()
	printDiff(&buf, nil)
	if buf.String() != "No route changes\n" {
		t.Errorf("printDiff(nil) = %q", buf.String())
	}
}
