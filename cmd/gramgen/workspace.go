package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"gramgen/internal/logging"
	"gramgen/internal/ui"
	"gramgen/internal/workspace"
)

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func runInit(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: gramgen init <workspace>")
	}
	w, err := workspace.Init(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created workspace %q at %s\n", w.Name, w.Dir)
	return nil
}

// ---------------------------------------------------------------------------
// add
// ---------------------------------------------------------------------------

func runAdd(args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	fs := pflag.NewFlagSet("add", pflag.ContinueOnError)
	bf := addBatchFlags(fs, s.Params())
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	if fs.NArg() < 3 {
		return fmt.Errorf("usage: gramgen add <workspace> <name> <grammar> [flags]")
	}
	wsName, name, src := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	w, err := workspace.Open(wsName)
	if err != nil {
		return err
	}

	params := bf.params
	if !paramsChanged(fs) && isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		params, err = ui.AskParams(params)
		if err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
	}

	m := workspace.Manifest{Params: params, Seed: bf.seed, Format: bf.format}
	if err := w.AddGrammar(name, src, m); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "added grammar %q to workspace %q\n", name, wsName)
	return nil
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func runRun(args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	parallel := fs.IntP("parallel", "p", 0, "grammars run at once (0: one per CPU)")
	verbose := fs.BoolP("verbose", "v", false, "log every generated case")
	noColor := fs.Bool("no-color", false, "disable colored output")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: gramgen run <workspace> [flags]")
	}
	applyColor(*noColor)

	w, err := workspace.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	logger, err := logging.New(*verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	sum, err := w.Run(ctx, workspace.RunOptions{Settings: s, Logger: logger, Parallel: *parallel})
	if err != nil {
		return err
	}
	if len(sum.Entries) == 0 {
		fmt.Fprintf(stdout, "no grammars in workspace %q\n", w.Name)
		return nil
	}

	for _, r := range sum.Entries {
		fmt.Fprintf(stdout, "%s  %d cases → %s\n", color.CyanString("%-16s", r.Name), r.Result.Statistics.Total, r.ReportPath)
	}
	fmt.Fprintln(stdout)
	printSummary(stdout, sum.Merged)
	return nil
}

// ---------------------------------------------------------------------------
// list
// ---------------------------------------------------------------------------

func runList(args []string) error {
	if len(args) == 0 {
		names, err := workspace.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(stdout, "no workspaces (run 'gramgen init <name>')")
			return nil
		}
		for _, n := range names {
			fmt.Fprintln(stdout, n)
		}
		return nil
	}

	w, err := workspace.Open(args[0])
	if err != nil {
		return err
	}
	names, err := w.ListGrammars()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintf(stdout, "no grammars in workspace %q\n", w.Name)
		return nil
	}
	for _, n := range names {
		m, err := w.LoadManifest(n)
		if err != nil {
			return err
		}
		p := m.Params
		fmt.Fprintf(stdout, "%s  valid=%d invalid=%d extreme=%d depth=%d  (%s)\n",
			n, p.Valid, p.Invalid, p.Extreme, p.Depth, m.Source)
		reports, err := w.ListReports(n)
		if err != nil {
			return err
		}
		for _, r := range reports {
			fmt.Fprintf(stdout, "    %s\n", filepath.Base(r))
		}
	}
	return nil
}
