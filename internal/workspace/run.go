package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gramgen/internal/batch"
	"gramgen/internal/export"
	"gramgen/internal/grammar"
	"gramgen/internal/session"
	"gramgen/internal/settings"
)

// RunOptions configures Workspace.Run.
type RunOptions struct {
	Settings *settings.Settings
	Logger   *zap.Logger
	// Parallel caps concurrent grammars; 0 means GOMAXPROCS.
	Parallel int
	Now      func() time.Time
}

// EntryResult is the outcome of one grammar's batch.
type EntryResult struct {
	Name       string
	ReportPath string
	Result     *batch.Result
}

// RunSummary is the outcome of a workspace run.
type RunSummary struct {
	// Entries are in ListGrammars order.
	Entries []EntryResult
	// Merged combines every entry; its ElapsedMS is the wall time of the run.
	Merged batch.Statistics
}

// Run executes the batch of every grammar in the workspace concurrently, one
// orchestrator per grammar, and writes one report per grammar. The first
// failure cancels the rest.
func (w *Workspace) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	names, err := w.ListGrammars()
	if err != nil {
		return nil, err
	}

	start := now()
	results := make([]EntryResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Parallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)

	for i, name := range names {
		g.Go(func() error {
			res, err := w.runOne(gctx, name, opts.Settings, logger.With(zap.String("grammar", name)), now)
			if err != nil {
				return fmt.Errorf("grammar %q: %w", name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]*batch.Result, len(results))
	for i, r := range results {
		merged[i] = r.Result
	}
	sum := &RunSummary{Entries: results, Merged: batch.Merge(merged...)}
	sum.Merged.ElapsedMS = batch.ElapsedMS(now().Sub(start))
	return sum, nil
}

func (w *Workspace) runOne(ctx context.Context, name string, s *settings.Settings, logger *zap.Logger, now func() time.Time) (EntryResult, error) {
	m, err := w.LoadManifest(name)
	if err != nil {
		return EntryResult{}, err
	}
	g, err := grammar.LoadFile(w.GrammarPath(name), logger)
	if err != nil {
		return EntryResult{}, err
	}

	format := m.Format
	if format == "" {
		format = s.ReportFormat()
	}
	sink, err := export.Lookup(format)
	if err != nil {
		return EntryResult{}, err
	}

	orch := session.New(g, s, m.Seed, batch.WithLogger(logger))
	res, err := orch.Run(ctx, m.Params)
	if err != nil {
		return EntryResult{}, err
	}

	file := fmt.Sprintf("report-%s-%s%s", now().Format("20060102_150405"), uuid.NewString()[:8], sink.Ext())
	path := filepath.Join(w.ReportDir(name), file)
	if err := export.WriteFile(path, sink, export.FromResult(res)); err != nil {
		return EntryResult{}, err
	}
	logger.Info("report written",
		zap.String("path", path),
		zap.Int("cases", res.Statistics.Total))
	return EntryResult{Name: name, ReportPath: path, Result: res}, nil
}
