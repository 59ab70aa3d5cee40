package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/jward/knot"
)

// ANSI colors for severities in text output.
const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
	colorBold   = "\x1b[1m"
)

// colorEnabled reports whether text written to f should carry ANSI colors:
// f is a terminal and NO_COLOR is unset.
func colorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func severityColor(severity string) string {
	switch severity {
	case "error":
		return colorRed
	case "warning":
		return colorYellow
	default:
		return colorCyan
	}
}

// formatDiagnosticsText writes one "file:line:col: severity[lint] message"
// line per diagnostic.
func formatDiagnosticsText(w io.Writer, ds []CLIDiagnostic, color bool) {
	for _, d := range ds {
		level := d.Severity
		if color {
			level = severityColor(d.Severity) + colorBold + level + colorReset
		}
		fmt.Fprintf(w, "%s:%d:%d: %s[%s] %s\n", d.File, d.Line, d.Col, level, d.Lint, d.Message)
	}
}

// formatCheckText writes the diagnostics of a check followed by a tally.
func formatCheckText(w io.Writer, r CLICheckResult, color bool) {
	formatDiagnosticsText(w, r.Diagnostics, color)
	counts := map[string]int{}
	for _, d := range r.Diagnostics {
		counts[d.Severity]++
	}
	if len(r.Diagnostics) == 0 {
		fmt.Fprintln(w, "All checks passed!")
		return
	}
	fmt.Fprintf(w, "\nFound %d diagnostics (%d errors, %d warnings, %d info)\n",
		len(r.Diagnostics), counts["error"], counts["warning"], counts["info"])
}

// formatTypesText formats symbol types as aligned columns.
func formatTypesText(w io.Writer, types []knot.SymbolType) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE")
	for _, t := range types {
		typ := t.Type
		if t.PossiblyUnbound {
			typ += " (possibly unbound)"
		}
		fmt.Fprintf(tw, "%s\t%s\n", t.Name, typ)
	}
	tw.Flush()
}

// formatSummaryText formats CLISummary as readable text.
func formatSummaryText(w io.Writer, s CLISummary) {
	fmt.Fprintln(w, "Check Summary")
	fmt.Fprintln(w, "=============")
	fmt.Fprintf(w, "Files: %d (%d without errors)\n", s.Files, s.Clean)

	if len(s.BySeverity) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "By severity:")
		for _, k := range sortedKeys(s.BySeverity) {
			fmt.Fprintf(w, "  %s: %d\n", k, s.BySeverity[k])
		}
	}
	if len(s.ByLint) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "By lint:")
		for _, k := range sortedKeys(s.ByLint) {
			fmt.Fprintf(w, "  %s: %d\n", k, s.ByLint[k])
		}
	}
}

// formatRunsText formats CLIRun results as aligned columns.
func formatRunsText(w io.Writer, runs []CLIRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tCHECKED\tCACHED\tDIAGNOSTICS\tERRORS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status,
			r.FilesChecked, r.FilesCached, r.Diagnostics, r.Errors)
	}
	tw.Flush()
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tMODULE\tLAST CHECKED")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Path, f.Module, f.LastChecked.Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
}

// formatImportsText formats CLIImport results as aligned columns.
func formatImportsText(w io.Writer, imports []CLIImport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tPATH\tDIRECT")
	for _, imp := range imports {
		path := imp.Path
		if path == "" {
			path = "(unresolved)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\n", imp.Module, path, imp.Direct)
	}
	tw.Flush()
}

// formatProjectText formats CLIProject as readable text.
func formatProjectText(w io.Writer, p CLIProject) {
	fmt.Fprintf(w, "Project: %s\n", p.Name)
	fmt.Fprintf(w, "Root: %s\n", p.Root)
	if p.ConfigPath != "" {
		fmt.Fprintf(w, "Config: %s\n", p.ConfigPath)
	} else {
		fmt.Fprintln(w, "Config: (none)")
	}
	if p.UserConfig != "" {
		fmt.Fprintf(w, "User config: %s\n", p.UserConfig)
	}
	fmt.Fprintf(w, "Database: %s\n", p.Database)
	if len(p.ExtraPaths) > 0 {
		fmt.Fprintf(w, "Extra paths: %s\n", strings.Join(p.ExtraPaths, ", "))
	}
	fmt.Fprintf(w, "Src: %s\n", strings.Join(p.Src, ", "))
	if len(p.Rules) > 0 {
		fmt.Fprintln(w, "Rules:")
		for _, k := range sortedKeys(p.Rules) {
			fmt.Fprintf(w, "  %s = %s\n", k, p.Rules[k])
		}
	}
}

// formatLintsText formats CLILint results as aligned columns.
func formatLintsText(w io.Writer, lints []CLILint) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDEFAULT\tSUMMARY")
	for _, l := range lints {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Name, l.Default, l.Summary)
	}
	tw.Flush()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// outputResult writes result to w in the selected format.
func outputResult(w io.Writer, result CLIResult) error {
	switch flagFormat {
	case "text":
		color := false
		if f, ok := w.(*os.File); ok {
			color = colorEnabled(f)
		}
		return outputResultText(w, result, color)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In json and yaml mode the error is written to
// stdout as a CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	_ = outputResult(os.Stdout, CLIResult{Command: command, Error: err.Error()})
	return err
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult, color bool) error {
	switch v := result.Results.(type) {
	case CLICheckResult:
		formatCheckText(w, v, color)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v, color)
	case []knot.SymbolType:
		formatTypesText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case []CLIRun:
		formatRunsText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case []CLIImport:
		formatImportsText(w, v)
	case CLIProject:
		formatProjectText(w, v)
	case []CLILint:
		formatLintsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case CLICheckResult:
		return len(r.Diagnostics)
	case []CLIDiagnostic:
		return len(r)
	case []knot.SymbolType:
		return len(r)
	case []CLIRun:
		return len(r)
	case []CLIFile:
		return len(r)
	case []CLIImport:
		return len(r)
	case []CLILint:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text", "yaml"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(validFormats, ", "))
}
