package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/profile"

	"gopulse/pkg/compiler"
	"gopulse/pkg/config"
	"gopulse/pkg/pulse"
	"gopulse/pkg/timeline"
	"gopulse/pkg/utils"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run compiles one experiment file. Mutators given on the command line are
// applied, in the order shift, increment, phase, before compiling so a single
// point of a scan can be inspected.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gopulse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inPath := fs.String("in", "", "experiment file (YAML)")
	outPath := fs.String("out", "", "listing output path (default: stdout)")
	shifts := fs.Int("shift", 0, "apply Shift this many times")
	increments := fs.Int("increment", 0, "apply Increment this many times")
	phases := fs.Int("phase", 0, "advance the phase cycle this many times")
	vcdPath := fs.String("vcd", "", `write a VCD trace to this path ("auto": next to the input)`)
	checkpoint := fs.String("checkpoint", "", "save the mutated program as a checkpoint archive")
	profMode := fs.String("profile", "", "profile the run: cpu or mem")
	profDir := fs.String("profile-dir", ".", "directory for profile output")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *inPath == "" {
		fmt.Fprintln(stderr, "nothing to do: provide -in experiment.yaml")
		fs.Usage()
		return 2
	}

	switch *profMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*profDir), profile.NoShutdownHook, profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(*profDir), profile.NoShutdownHook, profile.Quiet).Stop()
	default:
		fmt.Fprintf(stderr, "unknown profile mode %q (want cpu or mem)\n", *profMode)
		return 2
	}

	exp, err := config.Load(*inPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load experiment: %v\n", err)
		return 1
	}
	prog := exp.Program

	if err := repeat(*shifts, prog.Shift); err != nil {
		fmt.Fprintf(stderr, "shift: %v\n", err)
		return 1
	}
	if err := repeat(*increments, prog.Increment); err != nil {
		fmt.Fprintf(stderr, "increment: %v\n", err)
		return 1
	}
	if err := repeat(*phases, prog.AdvancePhase); err != nil {
		fmt.Fprintf(stderr, "phase: %v\n", err)
		return 1
	}

	instrs, err := compiler.Compile(prog)
	if err != nil {
		fmt.Fprintf(stderr, "compilation failed: %v\n", err)
		return 1
	}

	if err := writeListing(*outPath, stdout, instrs); err != nil {
		fmt.Fprintf(stderr, "failed to write listing: %v\n", err)
		return 1
	}

	if *vcdPath != "" {
		path := *vcdPath
		if path == "auto" {
			path = utils.ReplaceExt(*inPath, ".vcd")
		}
		if err := writeVCD(path, prog); err != nil {
			fmt.Fprintf(stderr, "failed to write trace %q: %v\n", path, err)
			return 1
		}
	}

	if *checkpoint != "" {
		if err := prog.CheckpointToFile(*checkpoint); err != nil {
			fmt.Fprintf(stderr, "failed to write checkpoint %q: %v\n", *checkpoint, err)
			return 1
		}
	}

	if *outPath != "" {
		fmt.Fprintf(stdout, "compiled %d instructions -> %s\n", len(instrs), *outPath)
	}
	return 0
}

func repeat(n int, op func(names ...string) error) error {
	for i := 0; i < n; i++ {
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}

func writeListing(path string, stdout io.Writer, instrs []compiler.Instruction) error {
	if path == "" {
		return compiler.FormatListing(stdout, instrs)
	}
	return utils.WriteFileWith(path, func(w io.Writer) error {
		return compiler.FormatListing(w, instrs)
	})
}

func writeVCD(path string, prog *pulse.Program) error {
	tl, err := timeline.Build(prog.Pulses(), prog.Profile())
	if err != nil {
		return err
	}
	return utils.WriteFileWith(path, func(w io.Writer) error {
		return timeline.WriteVCD(w, tl, prog.Profile())
	})
}
