package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"gramgen/internal/batch"
	"gramgen/internal/export"
	"gramgen/internal/settings"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) error
}

var commands = []command{
	{
		name:  "generate",
		short: "Generate a batch of test strings from a grammar",
		usage: "gramgen generate <grammar> [--valid N] [--invalid N] [--extreme N] [--depth N] [--seed N] [--format F] [--out PATH] [--verbose] [--no-color]",
		long: `Load the grammar file, generate valid, invalid and extreme cases, print a
summary and write the report.

Counts and depth default to .gramgen/settings.yaml (or 50/20/5 at depth 6).
Extreme cases are derived at twice the base depth. The report is written to
--out, or to resultado_pruebas_<YYYYMMDD_HHMMSS>.<ext> in the current
directory. Its format comes from --format, the --out extension or the
settings, in that order.
`,
		run: runGenerate,
	},
	{
		name:  "interactive",
		short: "Prompt for batch parameters and watch the batch run",
		usage: "gramgen interactive <grammar> [--seed N] [--format F] [--out PATH]",
		long: `Ask for the number of valid, invalid and extreme cases and the base depth
(prefilled with the configured defaults), then run the batch with a live
progress view and write the report.

Ctrl+C during the run stops the batch; nothing is written.
`,
		run: runInteractive,
	},
	{
		name:  "inspect",
		short: "Show the structure of a grammar",
		usage: "gramgen inspect <grammar>",
		long: `Print the start symbol, every nonterminal with its alternatives, the
terminals, and any lines skipped while loading.
`,
		run: runInspect,
	},
	{
		name:  "show",
		short: "Summarize an existing report",
		usage: "gramgen show <report>",
		long: `Read a report written by generate or run and print its statistics.
The format is chosen from the file extension.
`,
		run: runShow,
	},
	{
		name:  "settings",
		short: "Print the effective settings",
		usage: "gramgen settings",
		long: `Print the configuration in effect: .gramgen/settings.yaml merged over the
built-in defaults.
`,
		run: runSettings,
	},
	{
		name:  "init",
		short: "Create a new gramgen workspace",
		usage: "gramgen init <workspace>",
		long: `Create a new workspace at ~/.gramgen/<workspace>/.

Errors if the workspace already exists.
`,
		run: runInit,
	},
	{
		name:  "add",
		short: "Add a grammar to a workspace",
		usage: "gramgen add <workspace> <name> <grammar> [--valid N] [--invalid N] [--extreme N] [--depth N] [--seed N] [--format F]",
		long: `Copy a grammar file into an existing workspace and store its batch
parameters in ~/.gramgen/<workspace>/<name>.toml.

Without parameter flags on a terminal, prompts for them.
Errors if the name already exists or the grammar does not load.
`,
		run: runAdd,
	},
	{
		name:  "run",
		short: "Run every grammar in a workspace",
		usage: "gramgen run <workspace> [--parallel N] [--verbose] [--no-color]",
		long: `Run the batch of every grammar in the workspace concurrently and write one
report per grammar to ~/.gramgen/<workspace>/<name>/report-<timestamp>-<id>.<ext>.

Prints one line per grammar and the merged totals.
`,
		run: runRun,
	},
	{
		name:  "list",
		short: "List workspaces, or the grammars of one workspace",
		usage: "gramgen list [workspace]",
		long: `Without arguments, list the workspaces under ~/.gramgen/.
With a workspace name, list its grammars and their reports.
`,
		run: runList,
	},
}

var stdout io.Writer = os.Stdout

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "gramgen: grammar-based test string generation\n\n")
	fmt.Fprintf(w, "Usage:\n  gramgen <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'gramgen help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "gramgen: unknown command %q\n\nRun 'gramgen help' for usage.\n", name)
}

func dispatch(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(stdout)
		return nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(stdout, args[1])
		} else {
			printUsage(stdout)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:])
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'gramgen help' for usage.", args[0])
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// loadSettings reads .gramgen/settings.yaml from the working directory.
func loadSettings() (*settings.Settings, error) {
	s, err := settings.Load(".")
	if err != nil {
		return nil, err
	}
	if s == nil {
		return settings.Default(), nil
	}
	return s, nil
}

// batchFlags are the parameter flags shared by generate and add.
type batchFlags struct {
	params batch.Params
	seed   uint64
	format string
}

func addBatchFlags(fs *pflag.FlagSet, def batch.Params) *batchFlags {
	f := &batchFlags{params: def}
	fs.IntVar(&f.params.Valid, "valid", def.Valid, "number of valid cases")
	fs.IntVar(&f.params.Invalid, "invalid", def.Invalid, "number of invalid cases")
	fs.IntVar(&f.params.Extreme, "extreme", def.Extreme, "number of extreme cases")
	fs.IntVarP(&f.params.Depth, "depth", "d", def.Depth, "base derivation depth")
	addOutputFlags(fs, f)
	return f
}

func addOutputFlags(fs *pflag.FlagSet, f *batchFlags) {
	fs.Uint64Var(&f.seed, "seed", 0, "random seed (0 uses the settings seed, then the clock)")
	fs.StringVarP(&f.format, "format", "f", "", "report format: json, yaml, msgpack, markdown")
}

// paramsChanged reports whether any batch parameter flag was given.
func paramsChanged(fs *pflag.FlagSet) bool {
	for _, name := range []string{"valid", "invalid", "extreme", "depth"} {
		if fs.Changed(name) {
			return true
		}
	}
	return false
}

// resolveOutput picks the report path and sink for generate and interactive.
func resolveOutput(out, format string, s *settings.Settings, now time.Time) (string, export.Sink, error) {
	var sink export.Sink
	var err error
	switch {
	case format != "":
		sink, err = export.Lookup(format)
	case out != "":
		sink, err = export.ForPath(out)
		if err != nil {
			sink, err = export.Lookup(s.ReportFormat())
		}
	default:
		sink, err = export.Lookup(s.ReportFormat())
	}
	if err != nil {
		return "", nil, err
	}
	if out == "" {
		out = fmt.Sprintf("resultado_pruebas_%s%s", now.Format("20060102_150405"), sink.Ext())
	}
	return out, sink, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// signalContext is cancelled on the first interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func applyColor(noColor bool) {
	if noColor || !isTerminal(os.Stdout) {
		color.NoColor = true
	}
}

func main() {
	if err := dispatch(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
