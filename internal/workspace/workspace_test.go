package workspace_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"gramgen/internal/batch"
	"gramgen/internal/export"
	"gramgen/internal/settings"
	"gramgen/internal/workspace"
)

// withTempHome redirects os.UserHomeDir to a temp directory for the duration of the test.
func withTempHome(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	return tmp
}

func writeGrammar(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const exprRules = "E -> E + T\nE -> T\nT -> T * F\nT -> F\nF -> numero\nF -> id\n"

func TestInitAndOpen(t *testing.T) {
	tmp := withTempHome(t)

	w, err := workspace.Init("lab")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	dir := filepath.Join(tmp, ".gramgen", "lab")
	if w.Dir != dir {
		t.Errorf("Dir mismatch: got %s want %s", w.Dir, dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("workspace dir not created: %v", err)
	}

	// Init again must fail.
	if _, err := workspace.Init("lab"); err == nil {
		t.Fatal("expected error on duplicate Init")
	}

	o, err := workspace.Open("lab")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if o.Dir != dir || o.Name != "lab" {
		t.Errorf("Open returned %+v", o)
	}
}

func TestOpenMissingAndBadNames(t *testing.T) {
	withTempHome(t)
	if _, err := workspace.Open("notexist"); err == nil {
		t.Fatal("expected error for missing workspace")
	}
	for _, name := range []string{"", "..", "a/b"} {
		if _, err := workspace.Init(name); err == nil {
			t.Errorf("Init(%q) should fail", name)
		}
	}
}

func TestAddGrammarAndLoadManifest(t *testing.T) {
	home := withTempHome(t)
	w, err := workspace.Init("lab")
	if err != nil {
		t.Fatal(err)
	}
	src := writeGrammar(t, home, "expr.txt", exprRules)

	m := workspace.Manifest{Params: batch.Params{Valid: 4, Invalid: 2, Extreme: 1, Depth: 3}, Seed: 11}
	if err := w.AddGrammar("expr", src, m); err != nil {
		t.Fatalf("AddGrammar: %v", err)
	}
	// Duplicate must fail.
	if err := w.AddGrammar("expr", src, m); err == nil {
		t.Fatal("expected error on duplicate AddGrammar")
	}

	got, err := w.LoadManifest("expr")
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if got.Params != m.Params || got.Seed != 11 {
		t.Errorf("unexpected manifest: %+v", got)
	}
	if got.Source != src {
		t.Errorf("Source = %q, want %q", got.Source, src)
	}
	if got.AddedAt.IsZero() {
		t.Error("AddedAt not set")
	}

	copyData, err := os.ReadFile(w.GrammarPath("expr"))
	if err != nil {
		t.Fatal(err)
	}
	if string(copyData) != exprRules {
		t.Errorf("grammar copy differs: %q", copyData)
	}
}

func TestAddGrammarRejectsBadInput(t *testing.T) {
	home := withTempHome(t)
	w, _ := workspace.Init("lab")

	empty := writeGrammar(t, home, "empty.txt", "no rules here\n")
	if err := w.AddGrammar("empty", empty, workspace.Manifest{}); err == nil {
		t.Error("expected error for grammar without rules")
	}
	if err := w.AddGrammar("missing", filepath.Join(home, "nope.txt"), workspace.Manifest{}); err == nil {
		t.Error("expected error for missing grammar file")
	}
	ok := writeGrammar(t, home, "ok.txt", exprRules)
	if err := w.AddGrammar("neg", ok, workspace.Manifest{Params: batch.Params{Valid: -1}}); err == nil {
		t.Error("expected error for negative params")
	}
	names, _ := w.ListGrammars()
	if len(names) != 0 {
		t.Errorf("rejected grammars left manifests behind: %v", names)
	}
}

func TestListAndRemoveGrammars(t *testing.T) {
	home := withTempHome(t)
	w, _ := workspace.Init("lab")
	src := writeGrammar(t, home, "g.txt", exprRules)

	names, err := w.ListGrammars()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Fatalf("expected 0 grammars, got %d", len(names))
	}

	w.AddGrammar("beta", src, workspace.Manifest{})
	w.AddGrammar("alpha", src, workspace.Manifest{})

	names, err = w.ListGrammars()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, ",") != "alpha,beta" {
		t.Fatalf("expected [alpha beta], got %v", names)
	}

	if err := w.RemoveGrammar("alpha"); err != nil {
		t.Fatalf("RemoveGrammar: %v", err)
	}
	if _, err := os.Stat(w.GrammarPath("alpha")); !os.IsNotExist(err) {
		t.Error("grammar copy not removed")
	}
	if err := w.RemoveGrammar("alpha"); err == nil {
		t.Error("expected error removing missing grammar")
	}
}

func TestListAndRemoveWorkspaces(t *testing.T) {
	withTempHome(t)
	if names, err := workspace.List(); err != nil || len(names) != 0 {
		t.Fatalf("List before init = %v, %v", names, err)
	}
	workspace.Init("one")
	workspace.Init("two")
	names, err := workspace.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 workspaces, got %v", names)
	}
	if err := workspace.Remove("one"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := workspace.Open("one"); err == nil {
		t.Error("workspace still present after Remove")
	}
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_AllGrammarsConcurrently(t *testing.T) {
	defer goleak.VerifyNone(t)

	home := withTempHome(t)
	w, _ := workspace.Init("lab")
	expr := writeGrammar(t, home, "expr.txt", exprRules)
	parens := writeGrammar(t, home, "parens.txt", "S -> ( S )\nS -> S S\nS -> x\n")

	if err := w.AddGrammar("expr", expr, workspace.Manifest{Params: batch.Params{Valid: 5, Invalid: 3, Extreme: 1, Depth: 3}, Seed: 1}); err != nil {
		t.Fatal(err)
	}
	if err := w.AddGrammar("parens", parens, workspace.Manifest{Params: batch.Params{Valid: 2, Invalid: 2, Depth: 2}, Seed: 2, Format: "yaml"}); err != nil {
		t.Fatal(err)
	}

	fixed := func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) }
	sum, err := w.Run(context.Background(), workspace.RunOptions{Settings: settings.Default(), Parallel: 2, Now: fixed})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	results := sum.Entries
	if len(results) != 2 || results[0].Name != "expr" || results[1].Name != "parens" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Result.Statistics.Total != 9 || results[1].Result.Statistics.Total != 4 {
		t.Errorf("totals: %d, %d", results[0].Result.Statistics.Total, results[1].Result.Statistics.Total)
	}
	if filepath.Ext(results[1].ReportPath) != ".yaml" {
		t.Errorf("parens report should be yaml, got %s", results[1].ReportPath)
	}

	for _, r := range results {
		if !strings.Contains(filepath.Base(r.ReportPath), "20261018_093000") {
			t.Errorf("report name missing timestamp: %s", r.ReportPath)
		}
		rep, err := export.ReadFile(r.ReportPath)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if len(rep.Cases) != r.Result.Statistics.Total {
			t.Errorf("%s: report has %d cases, want %d", r.Name, len(rep.Cases), r.Result.Statistics.Total)
		}
		reports, err := w.ListReports(r.Name)
		if err != nil || len(reports) != 1 {
			t.Errorf("ListReports(%s) = %v, %v", r.Name, reports, err)
		}
	}

	if sum.Merged.Total != 13 {
		t.Errorf("merged total = %d, want 13", sum.Merged.Total)
	}
	if sum.Merged.ElapsedMS != 0 {
		t.Errorf("merged elapsed = %v, want the wall time of a frozen clock (0)", sum.Merged.ElapsedMS)
	}
}

// TestRun_MergedElapsedIsWallTime checks that concurrent batches report the
// wall time of the whole run rather than the sum of their own times.
func TestRun_MergedElapsedIsWallTime(t *testing.T) {
	defer goleak.VerifyNone(t)

	home := withTempHome(t)
	w, _ := workspace.Init("lab")
	src := writeGrammar(t, home, "expr.txt", exprRules)
	for _, name := range []string{"a", "b", "c"} {
		if err := w.AddGrammar(name, src, workspace.Manifest{Params: batch.Params{Valid: 2, Depth: 2}, Seed: 1}); err != nil {
			t.Fatal(err)
		}
	}

	// The first reading starts the run; every later one is 1.5ms on.
	t0 := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	var mu sync.Mutex
	calls := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return t0
		}
		return t0.Add(1500 * time.Microsecond)
	}

	sum, err := w.Run(context.Background(), workspace.RunOptions{Settings: settings.Default(), Parallel: 3, Now: clock})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Merged.Total != 6 {
		t.Errorf("merged total = %d, want 6", sum.Merged.Total)
	}
	if sum.Merged.ElapsedMS != 1.5 {
		t.Errorf("merged elapsed = %v, want 1.5", sum.Merged.ElapsedMS)
	}
}

func TestRun_FailurePropagates(t *testing.T) {
	defer goleak.VerifyNone(t)

	home := withTempHome(t)
	w, _ := workspace.Init("lab")
	// Every alternative recurses: the ceiling stops the derivation.
	loop := writeGrammar(t, home, "loop.txt", "S -> S a\n")
	if err := w.AddGrammar("loop", loop, workspace.Manifest{Params: batch.Params{Valid: 1, Depth: 2}}); err != nil {
		t.Fatal(err)
	}
	s := settings.Default()
	s.RecursionCeiling = 8

	if _, err := w.Run(context.Background(), workspace.RunOptions{Settings: s}); err == nil {
		t.Fatal("expected error from non-terminating grammar")
	} else if !strings.Contains(err.Error(), `grammar "loop"`) {
		t.Errorf("error should name the grammar: %v", err)
	}
}
