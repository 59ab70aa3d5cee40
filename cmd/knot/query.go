package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/knot"
)

var (
	flagLimit    int
	flagOffset   int
	flagFile     string
	flagLint     string
	flagSeverity string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query stored check results",
	Long:  "Read diagnostics, runs and import closures recorded by earlier checks. Lines and columns are 1-based.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 0, "maximum results (0 for all)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")

	diagnosticsCmd.Flags().StringVar(&flagFile, "file", "", "only diagnostics for this file")
	diagnosticsCmd.Flags().StringVar(&flagLint, "lint", "", "only diagnostics of this lint")
	diagnosticsCmd.Flags().StringVar(&flagSeverity, "severity", "", "only diagnostics at this level: error|warn|info")

	queryCmd.AddCommand(diagnosticsCmd)
	queryCmd.AddCommand(summaryCmd)
	queryCmd.AddCommand(runsCmd)
	queryCmd.AddCommand(filesCmd)
	queryCmd.AddCommand(depsCmd)
	queryCmd.AddCommand(dependentsCmd)
}

// openQuery opens the existing database for reading.
func openQuery() (*knot.Engine, *knot.QueryBuilder, error) {
	engine, err := openEngine(true)
	if err != nil {
		return nil, nil, err
	}
	return engine, engine.Query(), nil
}

// paginate applies --offset and --limit to a result slice.
func paginate[T any](items []T) []T {
	if flagOffset > 0 {
		if flagOffset >= len(items) {
			return []T{}
		}
		items = items[flagOffset:]
	}
	if flagLimit > 0 && len(items) > flagLimit {
		items = items[:flagLimit]
	}
	return items
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "List stored diagnostics",
	Args:  cobra.NoArgs,
	RunE:  runDiagnostics,
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	engine, qb, err := openQuery()
	if err != nil {
		return outputError("diagnostics", err)
	}
	defer engine.Close()

	filter := knot.DiagnosticFilter{Lint: flagLint, Severity: flagSeverity}
	if flagFile != "" {
		if filter.Path, err = resolveFilePath(flagFile); err != nil {
			return outputError("diagnostics", err)
		}
	}
	stored, err := qb.Diagnostics(filter)
	if err != nil {
		return outputError("diagnostics", err)
	}

	all := make([]CLIDiagnostic, 0, len(stored))
	for _, d := range stored {
		all = append(all, fileDiagnosticToCLI(d))
	}
	total := len(all)
	return outputResult(os.Stdout, CLIResult{Command: "diagnostics", Results: paginate(all), TotalCount: &total})
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count stored diagnostics by level and lint",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	engine, qb, err := openQuery()
	if err != nil {
		return outputError("summary", err)
	}
	defer engine.Close()

	sum, err := qb.Summary()
	if err != nil {
		return outputError("summary", err)
	}
	return outputResult(os.Stdout, CLIResult{Command: "summary", Results: CLISummary{
		Files:      sum.Files,
		Clean:      sum.Clean,
		BySeverity: sum.BySeverity,
		ByLint:     sum.ByLint,
	}})
}

var runsCmd = &cobra.Command{
	Use:   "runs [id]",
	Short: "List recorded check runs, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func runRuns(cmd *cobra.Command, args []string) error {
	engine, qb, err := openQuery()
	if err != nil {
		return outputError("runs", err)
	}
	defer engine.Close()

	if len(args) == 1 {
		r, err := qb.Run(args[0])
		if err != nil {
			return outputError("runs", err)
		}
		return outputResult(os.Stdout, CLIResult{Command: "runs", Results: []CLIRun{runToCLI(r)}})
	}

	runs, err := qb.Runs(0)
	if err != nil {
		return outputError("runs", err)
	}
	all := make([]CLIRun, 0, len(runs))
	for _, r := range runs {
		all = append(all, runToCLI(r))
	}
	total := len(all)
	return outputResult(os.Stdout, CLIResult{Command: "runs", Results: paginate(all), TotalCount: &total})
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List checked files",
	Args:  cobra.NoArgs,
	RunE:  runFiles,
}

func runFiles(cmd *cobra.Command, args []string) error {
	engine, qb, err := openQuery()
	if err != nil {
		return outputError("files", err)
	}
	defer engine.Close()

	files, err := qb.Files()
	if err != nil {
		return outputError("files", err)
	}
	total := len(files)
	return outputResult(os.Stdout, CLIResult{Command: "files", Results: paginate(filesToCLI(files)), TotalCount: &total})
}

var depsCmd = &cobra.Command{
	Use:   "deps <file>",
	Short: "Show the import closure recorded for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeps,
}

func runDeps(cmd *cobra.Command, args []string) error {
	engine, qb, err := openQuery()
	if err != nil {
		return outputError("deps", err)
	}
	defer engine.Close()

	path, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("deps", err)
	}
	imports, err := qb.Dependencies(path)
	if err != nil {
		return outputError("deps", err)
	}
	all := make([]CLIImport, 0, len(imports))
	for _, imp := range imports {
		ci := CLIImport{Module: imp.Module, Direct: imp.Direct}
		if imp.Path != nil {
			ci.Path = *imp.Path
		}
		all = append(all, ci)
	}
	total := len(all)
	return outputResult(os.Stdout, CLIResult{Command: "deps", Results: paginate(all), TotalCount: &total})
}

var dependentsCmd = &cobra.Command{
	Use:   "dependents <file>",
	Short: "List files whose results depend on a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDependents,
}

func runDependents(cmd *cobra.Command, args []string) error {
	engine, qb, err := openQuery()
	if err != nil {
		return outputError("dependents", err)
	}
	defer engine.Close()

	path, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("dependents", err)
	}
	files, err := qb.Dependents(path)
	if err != nil {
		return outputError("dependents", err)
	}
	total := len(files)
	return outputResult(os.Stdout, CLIResult{Command: "dependents", Results: paginate(filesToCLI(files)), TotalCount: &total})
}

func filesToCLI(files []*knot.File) []CLIFile {
	out := make([]CLIFile, 0, len(files))
	for _, f := range files {
		out = append(out, CLIFile{Path: f.Path, Module: f.Module, LastChecked: f.LastChecked, RunID: f.RunID})
	}
	return out
}
