package cli

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestCapWidths(t *testing.T) {
	tests := []struct {
		name    string
		widths  []int
		headers []string
		term    int
		prefix  int
		want    []int
	}{
		{
			name:    "fits",
			widths:  []int{5, 20, 10},
			headers: []string{"HOP", "DEVICE", "STATUS"},
			term:    80,
			want:    []int{5, 20, 10},
		},
		{
			name:    "shrinks widest column only",
			widths:  []int{8, 40, 14},
			headers: []string{"HOP", "DESCRIPTOR", "STATUS"},
			term:    60,
			want:    []int{8, 34, 14},
		},
		{
			name:    "counts prefix",
			widths:  []int{4, 60},
			headers: []string{"HOP", "INTERFACE-DESCRIPTION"},
			term:    30,
			prefix:  2,
			want:    []int{4, 22},
		},
		{
			name:    "stops at header widths",
			widths:  []int{3, 6},
			headers: []string{"HOP", "STATUS"},
			term:    5,
			want:    []int{3, 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := capWidths(tt.widths, tt.headers, tt.term, tt.prefix)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("capWidths(%v, %d) = %v, want %v", tt.widths, tt.term, got, tt.want)
			}
		})
	}
}

func TestWrapCell(t *testing.T) {
	green := "\x1b[32msuccess\x1b[0m"
	tests := []struct {
		name  string
		in    string
		width int
		want  []string
	}{
		{"fits", "R1", 10, []string{"R1"}},
		{"exact fit", "10.0.0.0/8", 10, []string{"10.0.0.0/8"}},
		{"empty", "", 10, []string{""}},
		{"zero width", "10.0.12.2", 0, []string{"10.0.12.2"}},
		{"word wrap", "via 10.0.12.2 Gi0/1", 13, []string{"via 10.0.12.2", "Gi0/1"}},
		{"boundary", "aa bb cc", 5, []string{"aa bb", "cc"}},
		{"hard break", "GigabitEthernet0/1", 8, []string{"GigabitE", "thernet0", "/1"}},
		{"colour kept when it fits", green, 10, []string{green}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wrapCell(tt.in, tt.width); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("wrapCell(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable("DEVICE", "ROUTES", "PLATFORM").WithWriter(&buf).WithPrefix("  ")
	tbl.Row("R1", "6", "ios")
	tbl.Row("EDGE-FW", "12")
	tbl.Flush()

	want := "" +
		"  DEVICE   ROUTES  PLATFORM\n" +
		"  ------   ------  --------\n" +
		"  R1       6       ios\n" +
		"  EDGE-FW  12\n"
	if got := buf.String(); got != want {
		t.Errorf("table output:\n%s\nwant:\n%s", got, want)
	}
}

func TestTable_EmptyWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	NewTable("A", "B").WithWriter(&buf).Flush()
	if buf.Len() != 0 {
		t.Errorf("empty table wrote %q", buf.String())
	}
}

func TestTable_WrapsToMaxWidth(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable("HOP", "DESCRIPTOR").WithWriter(&buf).WithMaxWidth(24)
	tbl.Row("R1", "O 10.0.0.0/8 via 10.0.12.2")
	tbl.Flush()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) < 4 {
		t.Fatalf("expected the descriptor to wrap, got:\n%s", buf.String())
	}
	for _, l := range lines {
		if visualLen(l) > 24 {
			t.Errorf("line %q exceeds 24 columns", l)
		}
	}
}

func TestVisualLen(t *testing.T) {
	tests := map[string]int{
		"":                         0,
		"plain":                    5,
		"\x1b[31mred\x1b[0m":       3,
		"\x1b[1m\x1b[32mok\x1b[0m": 2,
		"→ R2":                     4,
	}
	for in, want := range tests {
		if got := visualLen(in); got != want {
			t.Errorf("visualLen(%q) = %d, want %d", in, got, want)
		}
	}
}
