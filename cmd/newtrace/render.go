package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/newtron-network/newtrace/pkg/cli"
	"github.com/newtron-network/newtrace/pkg/registry"
	"github.com/newtron-network/newtrace/pkg/tracer"
)

// traceView is the JSON form of one trace.
type traceView struct {
	Source      string     `json:"source"`
	Destination string     `json:"destination"`
	Paths       []pathView `json:"paths"`
	Error       string     `json:"error,omitempty"`
}

type pathView struct {
	Status tracer.Status `json:"status"`
	Hops   []tracer.Hop  `json:"hops"`
}

func newTraceView(source, destination string, paths []tracer.Path, err error) traceView {
	v := traceView{Source: source, Destination: destination, Paths: []pathView{}}
	for _, p := range paths {
		v.Paths = append(v.Paths, pathView{Status: p.Status(), Hops: p.Hops})
	}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

// newTable returns a table on w; on stdout it keeps the terminal width cap.
func newTable(w io.Writer, headers ...string) *cli.Table {
	t := cli.NewTable(headers...)
	if w != io.Writer(os.Stdout) {
		t.WithWriter(w)
	}
	return t
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statusText colours a status by outcome.
func statusText(s tracer.Status) string {
	switch s {
	case tracer.Success:
		return green(string(s))
	case tracer.Loop:
		return red(string(s))
	case tracer.NoRoute, tracer.UnresolvedNextHop:
		return yellow(string(s))
	default:
		return string(s)
	}
}

// oneLine collapses a multi-line descriptor onto a single line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// summarize counts paths by final status, e.g. "2 success, 1 loop".
func summarize(paths []tracer.Path) string {
	counts := make(map[tracer.Status]int)
	for _, p := range paths {
		counts[p.Status()]++
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)

	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = fmt.Sprintf("%d %s", counts[tracer.Status(s)], statusText(tracer.Status(s)))
	}
	return strings.Join(parts, ", ")
}

// printTrace writes every path of one trace as a hop table.
func printTrace(w io.Writer, source, destination string, paths []tracer.Path) {
	noun := "paths"
	if len(paths) == 1 {
		noun = "path"
	}
	fmt.Fprintf(w, "Trace %s -> %s: %d %s (%s)\n", bold(source), bold(destination), len(paths), noun, summarize(paths))

	for i, p := range paths {
		fmt.Fprintf(w, "\nPath %d: %s\n", i+1, statusText(p.Status()))

		t := newTable(w, "HOP", "DEVICE", "STATUS", "VIA", "PREFIX", "ROUTE").WithPrefix("  ")
		var notes []string
		for j, h := range p.Hops {
			device := h.Device
			if device == "" {
				device = dim("?")
			}
			via, prefix := "", ""
			if h.Via.IsValid() {
				via = h.Via.String()
			}
			if h.Prefix.IsValid() {
				prefix = h.Prefix.String()
			}
			t.Row(fmt.Sprint(j+1), device, statusText(h.Status), via, prefix, oneLine(h.Descriptor))
			if len(h.Claimants) > 0 {
				notes = append(notes, claimantNote(h))
			}
		}
		t.Flush()
		for _, n := range notes {
			fmt.Fprintf(w, "  %s %s\n", yellow("!"), n)
		}
	}
}

func claimantNote(h tracer.Hop) string {
	owners := make([]string, len(h.Claimants))
	for i, o := range h.Claimants {
		owners[i] = ownerText(o)
	}
	return fmt.Sprintf("%s is claimed by %s; using %s", h.Via, strings.Join(owners, ", "), h.Device)
}

func ownerText(o registry.Owner) string {
	if o.Interface == "" {
		return o.Device
	}
	return fmt.Sprintf("%s (%s)", o.Device, o.Interface)
}

// printBatch writes one summary row per destination.
func printBatch(w io.Writer, source string, results []tracer.Result) {
	fmt.Fprintf(w, "Batch from %s: %d destinations\n\n", bold(source), len(results))
	t := newTable(w, "DESTINATION", "PATHS", "OUTCOME")
	for _, r := range results {
		if r.Err != nil {
			t.Row(r.Destination, "-", red(r.Err.Error()))
			continue
		}
		t.Row(r.Destination, fmt.Sprint(len(r.Paths)), summarize(r.Paths))
	}
	t.Flush()
}
