package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/knot/internal/store"
)

// makeSummaryFn creates the "summary" host function.
//
// summary() → {files, clean, by_severity, by_lint}
func makeSummaryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("summary", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("summary", 0, len(args))
		}
		sum, err := s.Summary()
		if err != nil {
			return object.Errorf("summary: %v", err)
		}
		return object.NewMap(map[string]object.Object{
			"files":       object.NewInt(int64(sum.Files)),
			"clean":       object.NewInt(int64(sum.Clean)),
			"by_severity": countsToMap(sum.BySeverity),
			"by_lint":     countsToMap(sum.ByLint),
		})
	})
}

// makeDiagnosticsFn creates the "diagnostics" host function over stored
// results. The optional filter map accepts path, lint, severity and limit.
//
// diagnostics([filter]) → list of diagnostic maps
func makeDiagnosticsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("diagnostics", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.Errorf("diagnostics: expected at most 1 argument, got %d", len(args))
		}
		var filter store.DiagnosticFilter
		if len(args) == 1 {
			m, err := extractMap(args[0])
			if err != nil {
				return object.Errorf("diagnostics: %v", err)
			}
			filter = store.DiagnosticFilter{
				Path:     getString(m, "path"),
				Lint:     getString(m, "lint"),
				Severity: getString(m, "severity"),
				Limit:    getInt(m, "limit"),
			}
		}
		ds, err := s.Diagnostics(filter)
		if err != nil {
			return object.Errorf("diagnostics: %v", err)
		}
		results := make([]object.Object, 0, len(ds))
		for _, d := range ds {
			results = append(results, object.NewMap(map[string]object.Object{
				"file":       object.NewString(d.Path),
				"lint":       object.NewString(d.Lint),
				"severity":   object.NewString(d.Severity),
				"message":    object.NewString(d.Message),
				"start_line": object.NewInt(int64(d.StartLine)),
				"start_col":  object.NewInt(int64(d.StartCol)),
				"end_line":   object.NewInt(int64(d.EndLine)),
				"end_col":    object.NewInt(int64(d.EndCol)),
			}))
		}
		return object.NewList(results)
	})
}

// makeRunsFn creates the "runs" host function.
//
// runs([limit]) → list of run maps, most recent first
func makeRunsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("runs", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.Errorf("runs: expected at most 1 argument, got %d", len(args))
		}
		limit := 0
		if len(args) == 1 {
			n, err := toInt64(args[0])
			if err != nil {
				return object.Errorf("runs: %v", err)
			}
			limit = int(n)
		}
		runs, err := s.Runs(limit)
		if err != nil {
			return object.Errorf("runs: %v", err)
		}
		results := make([]object.Object, 0, len(runs))
		for _, r := range runs {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":            object.NewString(r.ID),
				"root":          object.NewString(r.Root),
				"status":        object.NewString(r.Status),
				"files_checked": object.NewInt(int64(r.FilesChecked)),
				"files_cached":  object.NewInt(int64(r.FilesCached)),
				"diagnostics":   object.NewInt(int64(r.Diagnostics)),
				"errors":        object.NewInt(int64(r.Errors)),
			}))
		}
		return object.NewList(results)
	})
}

// makeFilesFn creates the "files" host function.
//
// files() → list of {path, module, hash} maps
func makeFilesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("files", 0, len(args))
		}
		files, err := s.Files()
		if err != nil {
			return object.Errorf("files: %v", err)
		}
		results := make([]object.Object, 0, len(files))
		for _, f := range files {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":     object.NewInt(f.ID),
				"path":   object.NewString(f.Path),
				"module": object.NewString(f.Module),
				"hash":   object.NewString(f.Hash),
			}))
		}
		return object.NewList(results)
	})
}

// makeDBQueryFn creates the "db_query" host function: a read-only SQL
// escape hatch over the store.
//
// db_query(sql, args...) → list of row maps
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		// Only allow SELECT statements.
		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		var queryArgs []any
		for _, arg := range args[1:] {
			switch v := arg.(type) {
			case *object.Int:
				queryArgs = append(queryArgs, v.Value())
			case *object.Float:
				queryArgs = append(queryArgs, v.Value())
			case *object.String:
				queryArgs = append(queryArgs, v.Value())
			case *object.Bool:
				queryArgs = append(queryArgs, v.Value())
			case *object.NilType:
				queryArgs = append(queryArgs, nil)
			default:
				queryArgs = append(queryArgs, fmt.Sprintf("%v", arg))
			}
		}

		rows, queryErr := s.DB().QueryContext(ctx, sqlStr, queryArgs...)
		if queryErr != nil {
			return object.Errorf("db_query: %v", queryErr)
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return object.Errorf("db_query: columns: %v", colErr)
		}

		results := []object.Object{}
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		return object.NewList(results)
	})
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

func countsToMap(counts map[string]int) *object.Map {
	m := make(map[string]object.Object, len(counts))
	for k, v := range counts {
		m[k] = object.NewInt(int64(v))
	}
	return object.NewMap(m)
}

// --- Argument helpers ---

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if i, ok := v.(*object.Int); ok {
		return int(i.Value())
	}
	if f, ok := v.(*object.Float); ok {
		return int(f.Value())
	}
	return 0
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
