package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const columnGap = 2

// Table renders column-aligned output. Rows are buffered until Flush so
// column widths can be fitted to the terminal; cells wider than their
// column wrap onto continuation lines. Empty tables produce no output.
type Table struct {
	out      io.Writer
	headers  []string
	prefix   string
	rows     [][]string
	maxWidth int // 0 means unlimited
}

// NewTable creates a table writing to stdout, capped at the terminal width
// when stdout is a terminal.
func NewTable(headers ...string) *Table {
	return &Table{
		out:      os.Stdout,
		headers:  headers,
		maxWidth: terminalWidth(),
	}
}

// WithPrefix sets a string prepended to each line (headers, divider, rows).
// Useful for indenting sub-tables within larger output.
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// WithWriter redirects output and removes the terminal width cap.
func (t *Table) WithWriter(w io.Writer) *Table {
	t.out = w
	t.maxWidth = 0
	return t
}

// WithMaxWidth caps the total line width; 0 disables the cap.
func (t *Table) WithMaxWidth(n int) *Table {
	t.maxWidth = n
	return t
}

// Row buffers one row. Missing trailing cells are empty.
func (t *Table) Row(values ...string) {
	row := make([]string, len(t.headers))
	copy(row, values)
	t.rows = append(t.rows, row)
}

// Flush writes the headers, a dash divider and every buffered row. If no
// rows were added, nothing is printed.
func (t *Table) Flush() {
	if len(t.rows) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visualLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if n := visualLen(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}
	if t.maxWidth > 0 {
		widths = capWidths(widths, t.headers, t.maxWidth, visualLen(t.prefix))
	}

	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", visualLen(h))
	}
	t.writeLine(t.headers, widths)
	t.writeLine(dividers, widths)

	for _, row := range t.rows {
		wrapped := make([][]string, len(row))
		height := 1
		for i, cell := range row {
			wrapped[i] = wrapCell(cell, widths[i])
			height = max(height, len(wrapped[i]))
		}
		for line := 0; line < height; line++ {
			cells := make([]string, len(row))
			for i := range row {
				if line < len(wrapped[i]) {
					cells[i] = wrapped[i][line]
				}
			}
			t.writeLine(cells, widths)
		}
	}
	t.rows = nil
}

func (t *Table) writeLine(cells []string, widths []int) {
	var b strings.Builder
	b.WriteString(t.prefix)
	for i, cell := range cells {
		b.WriteString(cell)
		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", widths[i]-visualLen(cell)+columnGap))
		}
	}
	fmt.Fprintln(t.out, strings.TrimRight(b.String(), " "))
}

// terminalWidth returns the stdout terminal width, or 0 if stdout is not
// a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}

// capWidths shrinks the widest columns, one character at a time, until the
// line fits termWidth. No column shrinks below its header width.
func capWidths(widths []int, headers []string, termWidth, prefix int) []int {
	out := make([]int, len(widths))
	copy(out, widths)

	total := prefix + columnGap*(len(out)-1)
	for _, w := range out {
		total += w
	}

	for total > termWidth {
		widest := -1
		for i, w := range out {
			if w > visualLen(headers[i]) && (widest < 0 || w > out[widest]) {
				widest = i
			}
		}
		if widest < 0 {
			break
		}
		out[widest]--
		total--
	}
	return out
}

// visualLen is the printed width of s: runes, excluding ANSI SGR sequences.
func visualLen(s string) int {
	n := 0
	for i := 0; i < len(s); {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			i = j + 1
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n++
	}
	return n
}

// wrapCell splits s into lines no wider than width, breaking at spaces and
// hard-breaking words longer than width. A cell that fits is returned
// unchanged, escape sequences included.
func wrapCell(s string, width int) []string {
	if visualLen(s) <= width || width <= 0 {
		return []string{s}
	}

	var lines []string
	cur := ""
	for _, word := range strings.Fields(s) {
		for visualLen(word) > width {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			r := []rune(word)
			lines = append(lines, string(r[:width]))
			word = string(r[width:])
		}
		switch {
		case word == "":
		case cur == "":
			cur = word
		case visualLen(cur)+1+visualLen(word) <= width:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
