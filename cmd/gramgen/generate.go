package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"gramgen/internal/batch"
	"gramgen/internal/export"
	"gramgen/internal/grammar"
	"gramgen/internal/logging"
	"gramgen/internal/session"
	"gramgen/internal/ui"
)

// parseFlags parses args into fs; --help prints the flag defaults and
// reports done.
func parseFlags(fs *pflag.FlagSet, args []string) (done bool, err error) {
	fs.SetOutput(stdout)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// generate
// ---------------------------------------------------------------------------

func runGenerate(args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	fs := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	bf := addBatchFlags(fs, s.Params())
	out := fs.StringP("out", "o", "", "report path")
	verbose := fs.BoolP("verbose", "v", false, "log every generated case")
	noColor := fs.Bool("no-color", false, "disable colored output")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: gramgen generate <grammar> [flags]")
	}
	applyColor(*noColor)

	logger, err := logging.New(*verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	g, err := grammar.LoadFile(fs.Arg(0), logger)
	if err != nil {
		return err
	}
	path, sink, err := resolveOutput(*out, bf.format, s, time.Now())
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	orch := session.New(g, s, bf.seed, batch.WithLogger(logger))
	res, err := orch.Run(ctx, bf.params)
	if err != nil {
		return err
	}
	if err := export.WriteFile(path, sink, export.FromResult(res)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	printSummary(stdout, res.Statistics)
	fmt.Fprintf(stdout, "\nreport written to %s\n", path)
	return nil
}

// ---------------------------------------------------------------------------
// interactive
// ---------------------------------------------------------------------------

func runInteractive(args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	fs := pflag.NewFlagSet("interactive", pflag.ContinueOnError)
	bf := &batchFlags{}
	addOutputFlags(fs, bf)
	out := fs.StringP("out", "o", "", "report path")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: gramgen interactive <grammar> [flags]")
	}
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return fmt.Errorf("interactive needs a terminal; use 'gramgen generate' instead")
	}

	logger, err := logging.New(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	g, err := grammar.LoadFile(fs.Arg(0), logger)
	if err != nil {
		return err
	}
	params, err := ui.AskParams(s.Params())
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	path, sink, err := resolveOutput(*out, bf.format, s, time.Now())
	if err != nil {
		return err
	}

	res, err := runWithProgress(fs.Arg(0), params, func(ctx context.Context, observe func(batch.Progress)) (*batch.Result, error) {
		orch := session.New(g, s, bf.seed, batch.WithLogger(logger), batch.WithObserver(observe))
		return orch.Run(ctx, params)
	})
	if err != nil {
		return err
	}
	if err := export.WriteFile(path, sink, export.FromResult(res)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	printSummary(stdout, res.Statistics)
	fmt.Fprintf(stdout, "\nreport written to %s\n", path)
	return nil
}

// runWithProgress runs fn in the background while the progress view consumes
// its observer events. Leaving the view early cancels the batch.
func runWithProgress(title string, p batch.Params, fn func(context.Context, func(batch.Progress)) (*batch.Result, error)) (*batch.Result, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan batch.Progress, 16)
	observe := func(ev batch.Progress) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	var res *batch.Result
	var runErr error
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer close(events)
		res, runErr = fn(ctx, observe)
	}()

	uiErr := ui.RunProgress(title, p.Total(), events, cancel)
	cancel()
	<-finished

	if uiErr != nil {
		return nil, fmt.Errorf("progress view: %w", uiErr)
	}
	if errors.Is(runErr, context.Canceled) {
		return nil, fmt.Errorf("batch cancelled")
	}
	return res, runErr
}

// ---------------------------------------------------------------------------
// inspect
// ---------------------------------------------------------------------------

func runInspect(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: gramgen inspect <grammar>")
	}
	logger, err := logging.New(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	g, err := grammar.LoadFile(args[0], logger)
	if err != nil {
		return err
	}
	applyColor(false)
	printGrammar(stdout, g)
	return nil
}

func printGrammar(w io.Writer, g *grammar.Grammar) {
	bold := color.New(color.Bold)
	head := color.New(color.FgCyan)

	bold.Fprintf(w, "start symbol: ")
	fmt.Fprintln(w, g.Start())

	bold.Fprintln(w, "\nnonterminals:")
	for _, nt := range g.Nonterminals() {
		alts := g.Alternatives(nt)
		parts := make([]string, len(alts))
		for i, alt := range alts {
			if len(alt) == 0 {
				parts[i] = "ε"
				continue
			}
			parts[i] = strings.Join(alt, " ")
		}
		fmt.Fprintf(w, "  %s %s %s\n", head.Sprint(nt), grammar.Separator, strings.Join(parts, " | "))
	}

	bold.Fprintln(w, "\nterminals:")
	fmt.Fprintf(w, "  %s\n", strings.Join(g.Terminals(), " "))

	if skipped := g.Skipped(); len(skipped) > 0 {
		color.New(color.FgYellow, color.Bold).Fprintln(w, "\nskipped lines:")
		for _, s := range skipped {
			fmt.Fprintf(w, "  %d: %s\n", s.Line, s.Text)
		}
	}
}

// ---------------------------------------------------------------------------
// show / settings
// ---------------------------------------------------------------------------

func runShow(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: gramgen show <report>")
	}
	rep, err := export.ReadFile(args[0])
	if err != nil {
		return err
	}
	applyColor(false)
	printSummary(stdout, rep.Statistics)
	if n := len(rep.Cases); n > 0 {
		fmt.Fprintf(stdout, "\n%d cases in %s\n", n, args[0])
	}
	return nil
}

func runSettings(args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	data, err := s.YAML()
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = stdout.Write(data)
	return err
}

// ---------------------------------------------------------------------------
// Summary
// ---------------------------------------------------------------------------

func printSummary(w io.Writer, st batch.Statistics) {
	bold := color.New(color.Bold)
	bold.Fprintln(w, "summary")
	fmt.Fprintf(w, "  total generated  %d\n", st.Total)
	fmt.Fprintf(w, "  %s  %d\n", color.GreenString("%-15s", batch.Valid), st.ByCategory.Valid)
	fmt.Fprintf(w, "  %s  %d\n", color.RedString("%-15s", batch.Invalid), st.ByCategory.Invalid)
	fmt.Fprintf(w, "  %s  %d\n", color.MagentaString("%-15s", batch.Extreme), st.ByCategory.Extreme)
	fmt.Fprintf(w, "  average length   %.2f\n", st.AverageLength)

	ops := make([]string, 0, len(batch.Operators))
	for _, op := range batch.Operators {
		ops = append(ops, fmt.Sprintf("%s %d", op, st.Operators[op]))
	}
	fmt.Fprintf(w, "  operators        %s\n", strings.Join(ops, "  "))
	fmt.Fprintf(w, "  elapsed          %.2f ms\n", st.ElapsedMS)
}
