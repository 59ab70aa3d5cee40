package knot

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/jward/knot/internal/program"
)

// checkFilesParallel checks files using a three-phase pipeline:
//
//	Phase A (serial):   Load files and reuse valid cached results.
//	Phase B (parallel): Infer via a worker pool, one session per worker.
//	Phase C (serial):   Commit each file's batch to SQLite.
//
// Workers share prog, so each file is parsed and indexed once.
func (e *Engine) checkFilesParallel(ctx context.Context, prog *program.Program, paths []string, report *Report) []error {
	var errs []error

	// ---- Phase A: Serial preparation ----
	var items []*program.File
	for _, path := range dedupePaths(paths) {
		f, cached, err := e.prepareFile(prog, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("check %s: %w", path, err))
			continue
		}
		if cached != nil {
			report.Files = append(report.Files, *cached)
			continue
		}
		items = append(items, f)
	}

	if len(items) == 0 {
		return errs
	}

	// ---- Phase B: Parallel inference ----
	numWorkers := min(runtime.NumCPU(), len(items))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan *program.File, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		file *program.File
		res  checkResult
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := e.newSession(prog)
			for f := range workCh {
				if err := ctx.Err(); err != nil {
					resultCh <- result{file: f, err: err}
					continue
				}
				res := e.checkFile(sess, f, report.RunID)
				if res.panicked {
					// Memo state may be mid-query after a panic.
					sess = e.newSession(prog)
				}
				resultCh <- result{file: f, res: res}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	for r := range resultCh {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("check %s: %w", r.file.Path, r.err))
			continue
		}
		if err := e.store.CommitBatch(r.res.batch); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", r.file.Path, err))
			continue
		}
		report.Files = append(report.Files, r.res.report)
	}
	return errs
}
