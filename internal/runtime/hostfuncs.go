package runtime

import (
	"context"
	"log/slog"

	"github.com/risor-io/risor/object"

	"github.com/jward/knot/internal/diag"
)

// makeCheckFn creates the "check" host function.
//
// check(path) → list of diagnostic maps
func makeCheckFn(h Host) *object.Builtin {
	return object.NewBuiltin("check", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("check", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("check: path %v", err)
		}
		ds, err := h.Check(ctx, path)
		if err != nil {
			return object.Errorf("check: %v", err)
		}
		return diagnosticsToList(ds)
	})
}

// makeTypesFn creates the "types" host function.
//
// types(path) → list of {name, type, possibly_unbound} maps
func makeTypesFn(h Host) *object.Builtin {
	return object.NewBuiltin("types", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("types", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("types: path %v", err)
		}
		syms, err := h.Types(ctx, path)
		if err != nil {
			return object.Errorf("types: %v", err)
		}
		results := make([]object.Object, 0, len(syms))
		for _, s := range syms {
			results = append(results, object.NewMap(map[string]object.Object{
				"name":             object.NewString(s.Name),
				"type":             object.NewString(s.Type),
				"possibly_unbound": object.NewBool(s.PossiblyUnbound),
			}))
		}
		return object.NewList(results)
	})
}

func diagnosticsToList(ds []diag.Diagnostic) object.Object {
	results := make([]object.Object, 0, len(ds))
	for _, d := range ds {
		results = append(results, object.NewMap(map[string]object.Object{
			"file":       object.NewString(d.File),
			"lint":       object.NewString(d.Lint),
			"severity":   object.NewString(d.Severity.String()),
			"message":    object.NewString(d.Message),
			"start_line": object.NewInt(int64(d.Range.Start.Line)),
			"start_col":  object.NewInt(int64(d.Range.Start.Column)),
			"end_line":   object.NewInt(int64(d.Range.End.Line)),
			"end_col":    object.NewInt(int64(d.Range.End.Column)),
		}))
	}
	return object.NewList(results)
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "source", "script")
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "source", "script")
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "source", "script")
}
