// Package diag holds the diagnostic model shared by the checker, the store
// and the CLI: lint metadata, severities and the Diagnostic record itself.
package diag

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/jward/knot/internal/ast"
)

// Severity is the level a diagnostic is reported at.
type Severity uint8

const (
	Ignore Severity = iota
	Info
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Ignore:
		return "ignore"
	case Info:
		return "info"
	case Warning:
		return "warning"
	default:
		return "error"
	}
}

// ParseSeverity parses the level names accepted in configuration.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "ignore":
		return Ignore, nil
	case "info":
		return Info, nil
	case "warn", "warning":
		return Warning, nil
	case "error":
		return Error, nil
	}
	return Ignore, fmt.Errorf("unknown severity %q (want ignore, info, warn or error)", s)
}

// Diagnostic is one finding against a file. File is the file's display
// path; Range is zero for file-level findings.
type Diagnostic struct {
	File     string
	Range    ast.Range
	Lint     string
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s[%s] %s", d.File, d.Range.Start.Line, d.Range.Start.Column,
		d.Severity, d.Lint, d.Message)
}

func (d Diagnostic) key() string {
	return fmt.Sprintf("%s\x00%d\x00%d\x00%s\x00%s", d.File, d.Range.Start.Offset, d.Range.End.Offset, d.Lint, d.Message)
}

// Sort orders diagnostics by file, position, then lint name.
func Sort(ds []Diagnostic) {
	slices.SortStableFunc(ds, func(a, b Diagnostic) int {
		if c := cmp.Compare(a.File, b.File); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Range.Start.Offset, b.Range.Start.Offset); c != 0 {
			return c
		}
		return cmp.Compare(a.Lint, b.Lint)
	})
}

// Dedupe removes exact duplicates while preserving order.
func Dedupe(ds []Diagnostic) []Diagnostic {
	seen := make(map[string]bool, len(ds))
	out := ds[:0:0]
	for _, d := range ds {
		k := d.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}

// Collection accumulates diagnostics for one inference region. The zero
// value is ready to use.
type Collection struct {
	items []Diagnostic
	seen  map[string]bool
}

// Add appends d unless an identical diagnostic is already present.
func (c *Collection) Add(d Diagnostic) {
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	k := d.key()
	if c.seen[k] {
		return
	}
	c.seen[k] = true
	c.items = append(c.items, d)
}

// Extend adds every diagnostic of ds.
func (c *Collection) Extend(ds []Diagnostic) {
	for _, d := range ds {
		c.Add(d)
	}
}

func (c *Collection) Items() []Diagnostic { return c.items }
func (c *Collection) Len() int            { return len(c.items) }
