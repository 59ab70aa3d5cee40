// Package knot is an incremental type checker for Python. It infers the
// types of a program's definitions and expressions region by region,
// reports diagnostics, and persists results in SQLite so a later run only
// re-checks files whose content or imports changed.
//
// # Pipeline
//
// Checking a file has three layers:
//
//  1. Program: search paths from the project (extra paths, first-party
//     roots, bundled stubs) resolve modules to files, which are parsed with
//     tree-sitter and indexed into scopes, symbols and definitions once.
//
//  2. Inference: a session infers each scope of a file on demand, memoizing
//     every region and iterating cyclic queries to a fixpoint. The session
//     also validates class hierarchies (MRO, metaclasses, final bases).
//
//  3. Engine: results are stored per file together with the file's import
//     closure. A file whose content and closure are unchanged reuses its
//     stored diagnostics.
//
// # Usage
//
//	e, err := knot.New("knot.db", "path/to/project")
//	if err != nil { ... }
//	defer e.Close()
//
//	report, err := e.CheckDirectory(ctx, "path/to/project")
//	for _, d := range report.Diagnostics() {
//		fmt.Println(d)
//	}
//
//	summary, err := e.Query().Summary()
//
// # Projects
//
// [DiscoverProject] finds the enclosing pyproject.toml. The [tool.knot]
// table configures extra-paths, src roots and per-lint rule levels.
package knot
