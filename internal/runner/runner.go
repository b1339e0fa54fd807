// Package runner drives one jsstack invocation: configuration, assembly,
// execution, and reporting.
package runner

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"

	"jsstack/internal/config"
	"jsstack/internal/dump"
	"jsstack/internal/logger"
	"jsstack/pkg/assembler"
	"jsstack/pkg/color"
	"jsstack/pkg/interpreter"
	"jsstack/pkg/stack"
)

type Runner struct {
	Help       bool   // Show help message
	Verbose    bool   // Print the listing and debug logs
	NoColor    bool   // Disable colored output
	Debug      bool   // Force fence and trap checks on the stack
	ConfigFile string // Path to a jsstack.toml
	DumpFile   string // Where to write a CBOR stack dump on an uncaught exception
	Entry      string // Function to run, overrides the config
	SourceFile string // Path to the source file

	Stdout io.Writer // defaults to os.Stdout
}

// Run loads the configuration, assembles the source file, and runs its entry
// function on a fresh stack.
func (opts *Runner) Run() error {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	cfg, err := opts.config()
	if err != nil {
		return err
	}

	log.Info("Processing file", "file", opts.SourceFile)

	input, err := os.ReadFile(opts.SourceFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.SourceFile, err)
	}

	program, err := assembler.Assemble(string(input))
	if err != nil {
		reportAssembly(out, string(input), err)
		return fmt.Errorf("assembly failed: %w", err)
	}

	if opts.Verbose {
		fmt.Fprintln(out, color.GreenText("=== Program Listing ==="))
		fmt.Fprint(out, program.String())
	}

	stackOpts, err := cfg.StackOptions()
	if err != nil {
		return err
	}
	stackOpts = append(stackOpts, stack.WithLogger(logger.For("stack")))

	s, err := stack.New(cfg.Stack.Capacity, cfg.Stack.Guard, stackOpts...)
	if err != nil {
		return err
	}
	defer s.Close()

	it := interpreter.NewInterpreter(program, s,
		interpreter.WithWriter(out),
		interpreter.WithMaxSteps(cfg.Interpreter.MaxSteps),
		interpreter.WithSnapshots(opts.DumpFile != ""),
		interpreter.WithLogger(logger.For("vm")))

	if opts.Verbose {
		fmt.Fprintln(out, color.GreenText("\n=== Program Output ==="))
	}
	result, runErr := it.Run(cfg.Interpreter.Entry)

	if opts.Verbose {
		fmt.Fprintln(out, color.GreenText("\n=== Stack Statistics ==="))
		printStats(out, s.Stats(), it.Steps())
	}

	if runErr != nil {
		var exc *interpreter.Exception
		if !errors.As(runErr, &exc) && opts.DumpFile != "" {
			fmt.Fprintln(out, color.Warning("no stack dump written: "+runErr.Error()))
		}
		if exc != nil && exc.Snapshot != nil {
			d := &dump.Dump{Reason: exc.Error(), Trace: exc.Trace, Snapshot: *exc.Snapshot}
			if err := dump.WriteFile(opts.DumpFile, d); err != nil {
				log.Error("Failed to write stack dump", "file", opts.DumpFile, "error", err)
			} else {
				log.Warn("Stack dump written", "file", opts.DumpFile, "frames", len(d.Snapshot.Frames))
			}
		}
		return fmt.Errorf("%s: %w", cfg.Interpreter.Entry, runErr)
	}

	log.Debug("Finished", "entry", cfg.Interpreter.Entry, "result", result, "steps", it.Steps())
	return nil
}

func (opts *Runner) config() (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if opts.Debug {
		cfg.Stack.Debug = true
	}
	if opts.Entry != "" {
		cfg.Interpreter.Entry = opts.Entry
	}
	return cfg, cfg.Validate()
}

func reportAssembly(out io.Writer, src string, err error) {
	var errs []error
	var merr *multierror.Error
	if errors.As(err, &merr) {
		errs = merr.Errors
	} else {
		errs = []error{err}
	}

	fmt.Fprintln(out, color.BrightRedText("=== Assembly Errors ==="))
	for _, e := range errs {
		var aerr *assembler.Error
		if !errors.As(e, &aerr) {
			fmt.Fprintln(out, color.Error(e.Error()))
			continue
		}
		fmt.Fprintln(out, color.ErrorWithPosition(aerr.Pos.Line, aerr.Pos.Column, aerr.Msg, aerr.Pos.SourceLine(src)))
	}
}

func printStats(out io.Writer, stats stack.Stats, steps int) {
	row := func(name string, v any) {
		fmt.Fprintf(out, "%s %s\n", color.CyanText(fmt.Sprintf("%-10s", name)), color.BlueText(fmt.Sprint(v)))
	}
	row("steps", steps)
	row("pushes", stats.Pushes)
	row("pops", stats.Pops)
	row("overflows", stats.Overflows)
	row("grows", stats.Grows)
	row("releases", stats.Releases)
	row("highwater", stats.HighWater)
	row("committed", stats.Region.CommittedWords)
}
