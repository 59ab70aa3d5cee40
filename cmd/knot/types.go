package main

import (
	"time"

	"github.com/jward/knot"
)

// CLIResult is the top-level envelope for every command in json and yaml
// format.
type CLIResult struct {
	Command    string `json:"command" yaml:"command"`
	Results    any    `json:"results" yaml:"results"`
	TotalCount *int   `json:"total_count,omitempty" yaml:"total_count,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// CLIDiagnostic is a serializable diagnostic. Lines and columns are 1-based.
type CLIDiagnostic struct {
	File     string `json:"file" yaml:"file"`
	Line     int    `json:"line" yaml:"line"`
	Col      int    `json:"col" yaml:"col"`
	EndLine  int    `json:"end_line" yaml:"end_line"`
	EndCol   int    `json:"end_col" yaml:"end_col"`
	Lint     string `json:"lint" yaml:"lint"`
	Severity string `json:"severity" yaml:"severity"`
	Message  string `json:"message" yaml:"message"`
}

// CLICheckResult is the result of `knot check`.
type CLICheckResult struct {
	RunID       string          `json:"run_id" yaml:"run_id"`
	Checked     int             `json:"checked" yaml:"checked"`
	Cached      int             `json:"cached" yaml:"cached"`
	Diagnostics []CLIDiagnostic `json:"diagnostics" yaml:"diagnostics"`
}

// CLISummary counts stored diagnostics.
type CLISummary struct {
	Files      int            `json:"files" yaml:"files"`
	Clean      int            `json:"clean" yaml:"clean"`
	BySeverity map[string]int `json:"by_severity" yaml:"by_severity"`
	ByLint     map[string]int `json:"by_lint" yaml:"by_lint"`
}

// CLIRun is one recorded check run.
type CLIRun struct {
	ID           string     `json:"id" yaml:"id"`
	Root         string     `json:"root" yaml:"root"`
	StartedAt    time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	FilesChecked int        `json:"files_checked" yaml:"files_checked"`
	FilesCached  int        `json:"files_cached" yaml:"files_cached"`
	Diagnostics  int        `json:"diagnostics" yaml:"diagnostics"`
	Errors       int        `json:"errors" yaml:"errors"`
	Status       string     `json:"status" yaml:"status"`
}

// CLIFile is a stored file.
type CLIFile struct {
	Path        string    `json:"path" yaml:"path"`
	Module      string    `json:"module" yaml:"module"`
	LastChecked time.Time `json:"last_checked" yaml:"last_checked"`
	RunID       string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

// CLIImport is one module in a file's import closure. Path is empty when the
// module did not resolve.
type CLIImport struct {
	Module string `json:"module" yaml:"module"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Direct bool   `json:"direct" yaml:"direct"`
}

// CLIProject describes the discovered project.
type CLIProject struct {
	Name           string            `json:"name" yaml:"name"`
	Root           string            `json:"root" yaml:"root"`
	ConfigPath     string            `json:"config_path,omitempty" yaml:"config_path,omitempty"`
	HasKnotSection bool              `json:"has_knot_section" yaml:"has_knot_section"`
	UserConfig     string            `json:"user_config,omitempty" yaml:"user_config,omitempty"`
	ExtraPaths     []string          `json:"extra_paths" yaml:"extra_paths"`
	Src            []string          `json:"src" yaml:"src"`
	Rules          map[string]string `json:"rules,omitempty" yaml:"rules,omitempty"`
	Database       string            `json:"database" yaml:"database"`
}

// CLILint is one registered lint.
type CLILint struct {
	Name    string `json:"name" yaml:"name"`
	Summary string `json:"summary" yaml:"summary"`
	Default string `json:"default" yaml:"default"`
}

func diagnosticToCLI(d knot.Diagnostic) CLIDiagnostic {
	return CLIDiagnostic{
		File:     d.File,
		Line:     d.Range.Start.Line,
		Col:      d.Range.Start.Column,
		EndLine:  d.Range.End.Line,
		EndCol:   d.Range.End.Column,
		Lint:     d.Lint,
		Severity: d.Severity.String(),
		Message:  d.Message,
	}
}

func fileDiagnosticToCLI(d *knot.FileDiagnostic) CLIDiagnostic {
	return CLIDiagnostic{
		File:     d.Path,
		Line:     d.StartLine,
		Col:      d.StartCol,
		EndLine:  d.EndLine,
		EndCol:   d.EndCol,
		Lint:     d.Lint,
		Severity: d.Severity,
		Message:  d.Message,
	}
}

func reportToCLI(r *knot.Report) CLICheckResult {
	checked, cached := r.Counts()
	out := CLICheckResult{
		RunID:       r.RunID,
		Checked:     checked,
		Cached:      cached,
		Diagnostics: []CLIDiagnostic{},
	}
	for _, d := range r.Diagnostics() {
		out.Diagnostics = append(out.Diagnostics, diagnosticToCLI(d))
	}
	return out
}

func runToCLI(r *knot.Run) CLIRun {
	return CLIRun{
		ID:           r.ID,
		Root:         r.Root,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		FilesChecked: r.FilesChecked,
		FilesCached:  r.FilesCached,
		Diagnostics:  r.Diagnostics,
		Errors:       r.Errors,
		Status:       r.Status,
	}
}

func projectToCLI(p *knot.Project, dbPath string) CLIProject {
	out := CLIProject{
		Name:           p.Name,
		Root:           p.Root,
		ConfigPath:     p.ConfigPath,
		HasKnotSection: p.HasKnotSection,
		UserConfig:     p.UserConfigPath,
		ExtraPaths:     p.ExtraPaths,
		Src:            p.Src,
		Database:       dbPath,
	}
	if out.ExtraPaths == nil {
		out.ExtraPaths = []string{}
	}
	if len(p.Rules) > 0 {
		out.Rules = make(map[string]string, len(p.Rules))
		for name, sev := range p.Rules {
			out.Rules[name] = sev.String()
		}
	}
	return out
}
