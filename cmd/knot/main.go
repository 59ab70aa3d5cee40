package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/knot"
)

var (
	flagDB           string
	flagFormat       string
	flagVerbose      bool
	flagNoParallel   bool
	flagExtraPaths   []string
	flagSrc          []string
	flagRules        []string
	flagNoUserConfig bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// errDiagnostics is returned by check when error-level diagnostics were
// reported. It only sets the exit code.
var errDiagnostics = errors.New("error diagnostics reported")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled && !errors.Is(err, errDiagnostics) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "knot",
	Short:         "Incremental type checker for Python",
	Long:          "Knot infers types for Python modules, reports diagnostics, and caches results in a SQLite database so unchanged files are not checked again.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .knot/cache.db relative to the project root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text|yaml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&flagNoParallel, "no-parallel", false, "check files on a single goroutine")
	rootCmd.PersistentFlags().StringArrayVar(&flagExtraPaths, "extra-search-path", nil, "module search path searched before first-party code (repeatable)")
	rootCmd.PersistentFlags().StringArrayVar(&flagSrc, "src", nil, "first-party source root (repeatable)")
	rootCmd.PersistentFlags().StringArrayVar(&flagRules, "rule", nil, "lint level override as name=level (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&flagNoUserConfig, "no-user-config", false, "ignore the user-level knot.toml")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(lintsCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(queryCmd)
}

// newLogger builds the stderr logger: warnings and above, or everything with
// --verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// discoverProject finds the project enclosing the working directory and
// layers its options: user config below, command-line flags above.
func discoverProject() (*knot.Project, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	p, err := knot.DiscoverProject(cwd)
	if err != nil {
		return nil, err
	}
	if !flagNoUserConfig {
		if path, err := knot.UserConfigPath(); err == nil {
			if err := p.ApplyUserConfig(path); err != nil {
				return nil, err
			}
		}
	}
	opts, err := cliOptions()
	if err != nil {
		return nil, err
	}
	if err := p.ApplyCLIOptions(opts); err != nil {
		return nil, err
	}
	return p, nil
}

// cliOptions collects the option flags.
func cliOptions() (knot.Options, error) {
	opts := knot.Options{ExtraPaths: flagExtraPaths, Src: flagSrc}
	for _, rule := range flagRules {
		name, level, ok := strings.Cut(rule, "=")
		if !ok || name == "" {
			return knot.Options{}, fmt.Errorf("invalid --rule %q (want name=level)", rule)
		}
		if opts.Rules == nil {
			opts.Rules = make(map[string]string)
		}
		opts.Rules[strings.TrimSpace(name)] = strings.TrimSpace(level)
	}
	return opts, nil
}

// resolveDBPath returns the database path from the --db flag or the default
// under the project root.
func resolveDBPath(projectRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(projectRoot, flagDB)
	}
	return filepath.Join(projectRoot, ".knot", "cache.db")
}

// openEngine discovers the project and opens an Engine over it. With
// mustExist set, a missing database is an error instead of being created.
func openEngine(mustExist bool) (*knot.Engine, error) {
	p, err := discoverProject()
	if err != nil {
		return nil, err
	}
	dbPath := resolveDBPath(p.Root)
	if mustExist {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("database not found: %s (run 'knot check' first)", dbPath)
		}
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	opts := []knot.Option{
		knot.WithProject(p),
		knot.WithLogger(newLogger(os.Stderr, flagVerbose)),
		knot.WithParallel(!flagNoParallel),
	}
	engine, err := knot.New(dbPath, p.Root, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, nil
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// --- check ---

var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Check Python files and directories",
	Long:  "Checks the given files and directories (default: the current directory) and prints their diagnostics. Exits 1 when any error-level diagnostic is reported.",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	start := time.Now()
	if len(args) == 0 {
		args = []string{"."}
	}

	engine, err := openEngine(false)
	if err != nil {
		return outputError("check", err)
	}
	defer engine.Close()

	var files, dirs []string
	for _, arg := range args {
		abs, err := resolveFilePath(arg)
		if err != nil {
			return outputError("check", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return outputError("check", fmt.Errorf("path not found: %s", abs))
		}
		if info.IsDir() {
			dirs = append(dirs, abs)
		} else {
			files = append(files, abs)
		}
	}

	ctx := cmd.Context()
	combined := &knot.Report{}
	merge := func(r *knot.Report) {
		if r == nil {
			return
		}
		combined.RunID = r.RunID
		combined.Files = append(combined.Files, r.Files...)
	}
	for _, dir := range dirs {
		r, err := engine.CheckDirectory(ctx, dir)
		merge(r)
		if err != nil {
			return outputError("check", err)
		}
	}
	if len(files) > 0 {
		r, err := engine.CheckFiles(ctx, files)
		merge(r)
		if err != nil {
			return outputError("check", err)
		}
	}

	result := reportToCLI(combined)
	total := len(result.Diagnostics)
	if err := outputResult(os.Stdout, CLIResult{Command: "check", Results: result, TotalCount: &total}); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Checked %d files (%d cached) in %s\n",
		result.Checked+result.Cached, result.Cached, time.Since(start).Round(time.Millisecond))

	if combined.HasErrors() {
		return errDiagnostics
	}
	return nil
}

// --- types ---

var typesCmd = &cobra.Command{
	Use:   "types <file>",
	Short: "Show the inferred type of every module-level name",
	Args:  cobra.ExactArgs(1),
	RunE:  runTypes,
}

func runTypes(cmd *cobra.Command, args []string) error {
	path, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("types", err)
	}
	engine, err := openEngine(false)
	if err != nil {
		return outputError("types", err)
	}
	defer engine.Close()

	types, err := engine.Types(cmd.Context(), path)
	if err != nil {
		return outputError("types", err)
	}
	if types == nil {
		types = []knot.SymbolType{}
	}
	total := len(types)
	return outputResult(os.Stdout, CLIResult{Command: "types", Results: types, TotalCount: &total})
}

// --- project ---

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Show the project enclosing the current directory",
	Args:  cobra.NoArgs,
	RunE:  runProject,
}

func runProject(cmd *cobra.Command, args []string) error {
	p, err := discoverProject()
	if err != nil {
		return outputError("project", err)
	}
	return outputResult(os.Stdout, CLIResult{Command: "project", Results: projectToCLI(p, resolveDBPath(p.Root))})
}

// --- lints ---

var lintsCmd = &cobra.Command{
	Use:   "lints",
	Short: "List every lint and its default level",
	Args:  cobra.NoArgs,
	RunE:  runLints,
}

func runLints(cmd *cobra.Command, args []string) error {
	var lints []CLILint
	for _, l := range knot.Lints() {
		lints = append(lints, CLILint{Name: l.Name, Summary: l.Summary, Default: l.Default.String()})
	}
	total := len(lints)
	return outputResult(os.Stdout, CLIResult{Command: "lints", Results: lints, TotalCount: &total})
}

// --- script ---

var scriptCmd = &cobra.Command{
	Use:   "script <file.risor>",
	Short: "Run a Risor report script against the checker",
	Long:  "Runs a Risor script with check, types, summary, diagnostics, runs, files, db_query and log available as globals. Sibling scripts can be imported.",
	Args:  cobra.ExactArgs(1),
	RunE:  runScript,
}

func runScript(cmd *cobra.Command, args []string) error {
	path, err := resolveFilePath(args[0])
	if err != nil {
		return err
	}
	p, err := discoverProject()
	if err != nil {
		return err
	}
	dbPath := resolveDBPath(p.Root)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	engine, err := knot.New(dbPath, p.Root,
		knot.WithProject(p),
		knot.WithLogger(newLogger(os.Stderr, flagVerbose)),
		knot.WithParallel(!flagNoParallel),
		knot.WithScriptsDir(filepath.Dir(path)),
	)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()
	return engine.RunScript(cmd.Context(), filepath.Base(path))
}
