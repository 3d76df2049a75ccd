package logger

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
)

// Icons and symbols for different log types
const (
	IconSuccess = "✅"
	IconFolder  = "📁"
	IconFile    = "📄"
	IconRefresh = "🔄"
	IconDot     = "•"
	IconArrow   = "→"
)

var (
	sectionColor    = color.New(color.FgCyan, color.Bold)
	sectionLine     = color.New(color.FgCyan)
	subsectionColor = color.New(color.FgHiBlack)
	keyColor        = color.New(color.FgCyan)
)

// console returns the writer and color setting helpers print with.
func console() (io.Writer, *output) {
	o := defaultOutput()
	if o == nil {
		return os.Stdout, &output{w: os.Stdout}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w, o
}

// Success logs a success message with a green checkmark
func Success(args ...interface{}) {
	defaultLogger.Info(IconSuccess + " " + fmt.Sprint(args...))
}

// Successf logs a formatted success message
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// Progress logs a progress message with a refresh icon
func Progress(args ...interface{}) {
	defaultLogger.Info(IconRefresh + " " + fmt.Sprint(args...))
}

// Progressf logs a formatted progress message
func Progressf(format string, args ...interface{}) {
	Progress(fmt.Sprintf(format, args...))
}

// LogSection creates a visual section separator
func LogSection(title string) {
	w, o := console()
	line := strings.Repeat("=", 50)
	fmt.Fprintln(w, o.paint(sectionLine, line))
	fmt.Fprintln(w, o.paint(sectionColor, title))
	fmt.Fprintln(w, o.paint(sectionLine, line))
}

// LogSubSection creates a visual subsection separator
func LogSubSection(title string) {
	w, o := console()
	line := strings.Repeat("-", 40)
	fmt.Fprintln(w, o.paint(subsectionColor, line))
	fmt.Fprintln(w, o.paint(subsectionColor, title))
	fmt.Fprintln(w, o.paint(subsectionColor, line))
}

// LogList logs a list of items with bullets
func LogList(title string, items []string) {
	Info(title)
	w, _ := console()
	for _, item := range items {
		fmt.Fprintf(w, "  %s %s\n", IconDot, item)
	}
}

// LogKeyValue logs a key-value pair with nice formatting
func LogKeyValue(key string, value interface{}) {
	w, o := console()
	fmt.Fprintf(w, "%s %v\n", o.paint(keyColor, key+":"), value)
}

// LogKeyValues logs multiple key-value pairs in key order
func LogKeyValues(pairs map[string]interface{}) {
	for _, k := range sortedKeys(pairs) {
		LogKeyValue(k, pairs[k])
	}
}

// LogColored prints a line in the given color, honoring --no-color.
func LogColored(c *color.Color, format string, args ...interface{}) {
	w, o := console()
	fmt.Fprintln(w, o.paint(c, fmt.Sprintf(format, args...)))
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Table represents a simple table for logging
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    [][]string{},
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(values ...string) {
	t.rows = append(t.rows, values)
}

// Print prints the table to the console writer
func (t *Table) Print() {
	w, _ := console()
	t.Fprint(w)
}

// Fprint writes the table to w
func (t *Table) Fprint(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow := func(cells []string) {
		var b strings.Builder
		for i, cell := range cells {
			if i < len(widths) {
				fmt.Fprintf(&b, "%-*s  ", widths[i], cell)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}

	writeRow(t.headers)
	sep := make([]string, len(widths))
	for i, width := range widths {
		sep[i] = strings.Repeat("-", width)
	}
	writeRow(sep)
	for _, row := range t.rows {
		writeRow(row)
	}
}
