package ingestion

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guttosm/flexpulse/internal/flexquery"
	"github.com/guttosm/flexpulse/internal/logger"
	"github.com/guttosm/flexpulse/internal/storage"
)

const maxParallelFiles = 8

// repoCtor is an indirection for creating the repository; tests can override this.
var repoCtor = func(db *sql.DB) storage.FillsRepository {
	return storage.NewFillsRepository(db)
}

// Result summarizes a directory import.
type Result struct {
	Files    int
	Imported int
	Skipped  int
	Fills    int
}

// ProcessDirectory imports every Flex Query report found in dir into storage.
//
// Parameters:
//   - dir: directory containing .xml report files.
//   - db:  open *sql.DB (PostgreSQL).
//   - parallel: max files handled at once; <= 0 means min(8, NumCPU).
//   - force: re-import reports already present in the import log.
//
// Behavior:
//   - Reports are identified by content hash; a known report is skipped
//     unless force is set.
//   - Executions already stored under the same exec id are replaced, so
//     overlapping reports do not duplicate fills.
//   - A malformed report fails the whole import and cancels the remaining files.
//
// Returns:
//   - Result: per-run counters.
//   - error: first error encountered (if any).
func ProcessDirectory(ctx context.Context, dir string, db *sql.DB, parallel int, force bool) (Result, error) {
	repo := repoCtor(db)

	files, err := listReports(dir)
	if err != nil {
		return Result{}, err
	}

	maxParallel := clampParallel(parallel)
	logger.L().Info().Int("files", len(files)).Str("dir", dir).Int("max_parallel", maxParallel).Msg("import start")

	var (
		mu  sync.Mutex
		res = Result{Files: len(files)}
	)

	// errgroup will cancel siblings on first error.
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxParallel)

	for i, file := range files {
		idx := i
		f := file
		sem <- struct{}{}

		g.Go(func() error {
			defer func() { <-sem }()
			start := time.Now()
			base := filepath.Base(f)

			if err := gctx.Err(); err != nil {
				return err
			}

			rf, err := readReport(f)
			if err != nil {
				logger.L().Error().Str("file", base).Err(err).Msg("report rejected")
				return fmt.Errorf("file %s: %w", f, err)
			}

			exists, err := repo.HasImport(gctx, rf.reportID)
			if err != nil {
				logger.L().Error().Str("file", base).Err(err).Msg("check import log failed")
				return fmt.Errorf("file %s: check import log: %w", f, err)
			}
			if exists && !force {
				logger.L().Info().Int("idx", idx+1).Int("total", len(files)).Str("file", base).Bool("skipped", true).Msg("already imported")
				mu.Lock()
				res.Skipped++
				mu.Unlock()
				return nil
			}

			fills := rf.report.Fills
			if err := repo.InsertRawFills(gctx, rf.reportID, fills); err != nil {
				logger.L().Error().Str("file", base).Dur("elapsed", time.Since(start)).Err(err).Msg("store fills failed")
				return fmt.Errorf("file %s: store fills: %w", f, err)
			}
			if err := repo.UpsertImportLog(gctx, rf.reportID, "file:"+base, len(fills)); err != nil {
				logger.L().Error().Str("file", base).Err(err).Msg("update import log failed")
				return fmt.Errorf("file %s: update import log: %w", f, err)
			}

			mu.Lock()
			res.Imported++
			res.Fills += len(fills)
			mu.Unlock()

			logger.L().Info().Int("idx", idx+1).Int("total", len(files)).Str("file", base).Int("fills", len(fills)).Dur("elapsed", time.Since(start)).Bool("force", force).Msg("file done")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

// LoadDirectory decodes every report of dir without touching storage and
// returns the union of their executions, deduplicated by exec id. When two
// files carry the same execution, the one from the lexically first file wins.
func LoadDirectory(ctx context.Context, dir string, parallel int) ([]flexquery.RawFill, error) {
	files, err := listReports(dir)
	if err != nil {
		return nil, err
	}

	reports := make([]reportFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(clampParallel(parallel))

	for i, file := range files {
		idx := i
		f := file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rf, err := readReport(f)
			if err != nil {
				return fmt.Errorf("file %s: %w", f, err)
			}
			reports[idx] = rf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []flexquery.RawFill
	for _, rf := range reports {
		for _, fill := range rf.report.Fills {
			if seen[fill.ExecID] {
				continue
			}
			seen[fill.ExecID] = true
			out = append(out, fill)
		}
	}
	logger.L().Info().Int("files", len(files)).Int("fills", len(out)).Str("dir", dir).Msg("reports loaded")
	return out, nil
}

// clampParallel defaults to min(maxParallelFiles, NumCPU) and caps explicit values.
func clampParallel(parallel int) int {
	if parallel > 0 {
		if parallel > maxParallelFiles {
			return maxParallelFiles
		}
		return parallel
	}
	if c := runtime.NumCPU(); c < maxParallelFiles {
		return c
	}
	return maxParallelFiles
}
