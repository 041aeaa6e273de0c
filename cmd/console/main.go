package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"

	"gopulse/pkg/compiler"
	"gopulse/pkg/config"
	"gopulse/pkg/device"
	"gopulse/pkg/pulse"
	"gopulse/pkg/pulser"
	"gopulse/pkg/timeline"
	"gopulse/pkg/utils"
)

const help = `commands:
  pulse name channel start length [delta_start [length_increment]]
  phases name [label ...]
  rate [text]
  shift|increment|phase|reset|preset [names]
  update | stop | list | show
  vcd path | save path | restore path
  help | q`

type console struct {
	out    io.Writer
	logger *log.Logger
	tr     pulser.Transport
	p      *pulser.Pulser
}

func newConsole(prog *pulse.Program, tr pulser.Transport, out io.Writer, logger *log.Logger) *console {
	return &console{out: out, logger: logger, tr: tr, p: pulser.New(prog, tr, logger)}
}

func (c *console) prog() *pulse.Program { return c.p.Program() }

// durations regroups "100 ns 20 ns" style fields into "<number> <unit>" pairs.
func durations(f []string) ([]string, error) {
	if len(f)%2 != 0 {
		return nil, fmt.Errorf("durations come as <number> <unit> pairs, got %q", strings.Join(f, " "))
	}
	var out []string
	for i := 0; i < len(f); i += 2 {
		out = append(out, f[i]+" "+f[i+1])
	}
	return out, nil
}

// doCommand runs one console line. It returns -1 when the session should end.
func (c *console) doCommand(command string) (int, error) {
	f := strings.Fields(command)
	for i, s := range f {
		if s[0] == '#' {
			f = f[:i]
			break
		}
	}
	if len(f) == 0 {
		return 0, nil
	}
	pr := c.prog()
	switch f[0] {
	case "pulse":
		return 0, c.doPulse(f)
	case "phases":
		if len(f) < 2 {
			return 0, errors.New("phases syntax: phases name [label ...]")
		}
		return 0, pr.SetPhases(f[1], f[2:]...)
	case "rate":
		if len(f) == 1 {
			fmt.Fprintln(c.out, pr.RepetitionRate())
			return 0, nil
		}
		return 0, pr.SetRepetitionRate(strings.Join(f[1:], " "))
	case "shift":
		return 0, pr.Shift(f[1:]...)
	case "increment":
		return 0, pr.Increment(f[1:]...)
	case "phase":
		if err := pr.AdvancePhase(f[1:]...); err != nil {
			return 0, err
		}
		for _, p := range pr.Pulses() {
			if ph := p.Phase(); ph != "" {
				fmt.Fprintf(c.out, "%s %s\n", p.Name, ph)
			}
		}
		return 0, nil
	case "reset":
		return 0, c.p.Reset(f[1:]...)
	case "preset":
		return 0, c.p.PulseReset(f[1:]...)
	case "update":
		return 0, c.p.Update()
	case "stop":
		return 0, c.p.Stop()
	case "list":
		fmt.Fprint(c.out, pr.List())
	case "show":
		instrs, err := compiler.Compile(pr)
		if err != nil {
			return 0, err
		}
		return 0, compiler.FormatListing(c.out, instrs)
	case "vcd":
		return 0, c.doVCD(f)
	case "save":
		if len(f) != 2 {
			return 0, errors.New("save syntax: save path")
		}
		return 0, pr.CheckpointToFile(f[1])
	case "restore":
		if len(f) != 2 {
			return 0, errors.New("restore syntax: restore path")
		}
		restored, err := pulse.RestoreFromFile(f[1], pr.Profile())
		if err != nil {
			return 0, err
		}
		c.p = pulser.New(restored, c.tr, c.logger)
		fmt.Fprintf(c.out, "restored %d pulses at generation %d\n", restored.Len(), restored.Generation())
	case "help":
		fmt.Fprintln(c.out, help)
	case "q":
		return -1, nil
	default:
		return 0, fmt.Errorf("unknown command: %s", command)
	}
	return 0, nil
}

func (c *console) doPulse(f []string) error {
	if len(f) < 6 {
		return errors.New("pulse syntax: pulse name channel start length [delta_start [length_increment]]")
	}
	d, err := durations(f[3:])
	if err != nil {
		return err
	}
	if len(d) > 4 {
		return errors.New("pulse takes at most four durations")
	}
	s := pulse.Spec{Name: f[1], Channel: f[2], Start: d[0], Length: d[1]}
	if len(d) > 2 {
		s.DeltaStart = d[2]
	}
	if len(d) > 3 {
		s.LengthIncrement = d[3]
	}
	return c.prog().AddPulse(s)
}

func (c *console) doVCD(f []string) error {
	if len(f) != 2 {
		return errors.New("vcd syntax: vcd path")
	}
	pr := c.prog()
	if _, err := compiler.Compile(pr); err != nil {
		return err
	}
	tl, err := timeline.Build(pr.Pulses(), pr.Profile())
	if err != nil {
		return err
	}
	return utils.WriteFileWith(f[1], func(w io.Writer) error {
		return timeline.WriteVCD(w, tl, pr.Profile())
	})
}

// run feeds every line of r to doCommand. Errors are reported and the
// session continues, except when stopOnError is set.
func (c *console) run(r io.Reader, showPrompt bool, stopOnError bool) error {
	sc := bufio.NewScanner(r)
	for {
		if showPrompt {
			fmt.Fprint(c.out, "pulser> ")
		}
		if !sc.Scan() {
			break
		}
		code, err := c.doCommand(sc.Text())
		if err != nil {
			if stopOnError {
				return err
			}
			fmt.Fprintln(c.out, "error:", err)
		}
		if code < 0 {
			break
		}
	}
	return sc.Err()
}

var commandSuggestions = []prompt.Suggest{
	{Text: "pulse", Description: "declare a pulse"},
	{Text: "phases", Description: "set a pulse's phase cycle"},
	{Text: "rate", Description: "show or set the repetition rate"},
	{Text: "shift", Description: "apply delta_start"},
	{Text: "increment", Description: "apply length_increment"},
	{Text: "phase", Description: "advance phase cycles"},
	{Text: "reset", Description: "restore and download"},
	{Text: "preset", Description: "restore without download"},
	{Text: "update", Description: "download if changed"},
	{Text: "stop", Description: "halt the board"},
	{Text: "list", Description: "print the pulse list"},
	{Text: "show", Description: "print the compiled listing"},
	{Text: "vcd", Description: "write a VCD trace"},
	{Text: "save", Description: "write a checkpoint"},
	{Text: "restore", Description: "load a checkpoint"},
	{Text: "help"},
	{Text: "q", Description: "quit"},
}

// completer offers command names for the first word and pulse names after.
func (c *console) completer(d prompt.Document) []prompt.Suggest {
	if !strings.Contains(d.TextBeforeCursor(), " ") {
		return prompt.FilterHasPrefix(commandSuggestions, d.GetWordBeforeCursor(), true)
	}
	var names []prompt.Suggest
	for _, p := range c.prog().Pulses() {
		names = append(names, prompt.Suggest{Text: p.Name, Description: c.prog().Profile().Label(p.Channel)})
	}
	return prompt.FilterHasPrefix(names, d.GetWordBeforeCursor(), true)
}

func (c *console) interactive() {
	for {
		line := prompt.Input("pulser> ", c.completer)
		code, err := c.doCommand(line)
		if err != nil {
			fmt.Fprintln(c.out, "error:", err)
		}
		if code < 0 {
			return
		}
	}
}

func main() {
	os.Exit(runMain(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// runMain returns the process exit code. The transport and any script file
// are closed on every path, so a device file sees its last download even
// when a script fails.
func runMain(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "experiment file to preload")
	devicePath := fs.String("device", "", "device node or file receiving downloaded programs (default: dry run)")
	verbose := fs.Bool("v", false, "log downloads to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(stderr, "pulser: ", log.Ltime)
	}

	prog := pulse.NewProgram(device.Default())
	if *configPath != "" {
		exp, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "failed to load experiment: %v\n", err)
			return 1
		}
		prog = exp.Program
	}

	var tr pulser.Transport = pulser.NewStubTransport()
	if *devicePath != "" {
		fp, err := os.OpenFile(*devicePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(stderr, "failed to open device: %v\n", err)
			return 1
		}
		tr = pulser.NewWriterTransport(fp)
	}

	c := newConsole(prog, tr, stdout, logger)
	defer c.p.Close()

	if fs.NArg() > 0 {
		fp, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(stderr, "failed to open script: %v\n", err)
			return 1
		}
		defer fp.Close()
		if err := c.run(fp, false, true); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", fs.Arg(0), err)
			return 1
		}
		return 0
	}
	if isatty.IsTerminal(stdin.Fd()) {
		c.interactive()
		return 0
	}
	if err := c.run(stdin, false, false); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
