// Package pulser drives a pulse generator from a pulse.Program.
//
// A Pulser compiles the program and downloads it through a Transport. It
// remembers the program generation it last downloaded so repeated Update
// calls inside a scan loop cost nothing while the program is unchanged.
package pulser

import (
	"fmt"
	"io"
	"log"

	"gopulse/pkg/compiler"
	"gopulse/pkg/pulse"
)

// stopDelay is the length, in ticks, of the idle instruction loaded by Stop.
const stopDelay = 12

type Pulser struct {
	prog   *pulse.Program
	tr     Transport
	logger *log.Logger

	loaded bool
	gen    uint64
	last   []compiler.Instruction
}

// New returns a Pulser for prog. A nil logger discards output.
func New(prog *pulse.Program, tr Transport, logger *log.Logger) *Pulser {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Pulser{prog: prog, tr: tr, logger: logger}
}

func (p *Pulser) Program() *pulse.Program { return p.prog }

// Name is the device name of the program's profile.
func (p *Pulser) Name() string { return p.prog.Profile().Name() }

// Last returns a copy of the most recently downloaded program.
func (p *Pulser) Last() []compiler.Instruction {
	return append([]compiler.Instruction(nil), p.last...)
}

// Update compiles and downloads the program unless the board already holds
// the current generation. A compile error leaves the board untouched.
func (p *Pulser) Update() error {
	if p.loaded && p.gen == p.prog.Generation() {
		p.logger.Printf("%s: generation %d already loaded", p.Name(), p.gen)
		return nil
	}
	return p.download()
}

// Reset restores the named pulses, or all of them, from the snapshot and
// downloads the result.
func (p *Pulser) Reset(names ...string) error {
	if err := p.prog.Reset(names...); err != nil {
		return err
	}
	return p.download()
}

// PulseReset is Reset without the download; the next Update downloads
// unconditionally.
func (p *Pulser) PulseReset(names ...string) error {
	if err := p.prog.Reset(names...); err != nil {
		return err
	}
	p.loaded = false
	return nil
}

// Stop replaces the running program with a single idle instruction and
// halts the board.
func (p *Pulser) Stop() error {
	idle := []compiler.Instruction{{Mask: 0, Start: 0, Duration: max(stopDelay, p.prog.Profile().MinDelay())}}
	if err := p.tr.Load(idle); err != nil {
		return fmt.Errorf("%s: load stop program: %w", p.Name(), err)
	}
	if err := p.tr.Stop(); err != nil {
		return fmt.Errorf("%s: stop: %w", p.Name(), err)
	}
	p.loaded = false
	p.logger.Printf("%s: stopped", p.Name())
	return nil
}

func (p *Pulser) Close() error { return p.tr.Close() }

func (p *Pulser) download() error {
	instrs, err := compiler.Compile(p.prog)
	if err != nil {
		return err
	}
	if err := p.tr.Load(instrs); err != nil {
		return fmt.Errorf("%s: load: %w", p.Name(), err)
	}
	if err := p.tr.Start(); err != nil {
		return fmt.Errorf("%s: start: %w", p.Name(), err)
	}
	p.loaded = true
	p.gen = p.prog.Generation()
	p.last = instrs
	p.logger.Printf("%s: loaded generation %d (%d instructions)", p.Name(), p.gen, len(instrs))
	return nil
}
