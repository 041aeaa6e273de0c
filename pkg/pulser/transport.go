package pulser

import (
	"fmt"
	"io"

	"gopulse/pkg/compiler"
)

// Transport is the board's programming interface. Load replaces the stored
// program, Start runs it from the first instruction and Stop halts the
// outputs.
type Transport interface {
	Load(instrs []compiler.Instruction) error
	Start() error
	Stop() error
	Close() error
}

// StubTransport records every call and never touches hardware. Tests and
// dry runs use it in place of the board.
type StubTransport struct {
	Loads  [][]compiler.Instruction
	Starts int
	Stops  int
	Closed bool

	// Err, when set, is returned by every call.
	Err error
}

func NewStubTransport() *StubTransport { return &StubTransport{} }

func (s *StubTransport) Load(instrs []compiler.Instruction) error {
	if s.Err != nil {
		return s.Err
	}
	s.Loads = append(s.Loads, append([]compiler.Instruction(nil), instrs...))
	return nil
}

func (s *StubTransport) Start() error {
	if s.Err != nil {
		return s.Err
	}
	s.Starts++
	return nil
}

func (s *StubTransport) Stop() error {
	if s.Err != nil {
		return s.Err
	}
	s.Stops++
	return nil
}

func (s *StubTransport) Close() error {
	s.Closed = true
	return s.Err
}

// Loaded returns the most recent program, or nil before the first Load.
func (s *StubTransport) Loaded() []compiler.Instruction {
	if len(s.Loads) == 0 {
		return nil
	}
	return s.Loads[len(s.Loads)-1]
}

// WriterTransport streams programs as text listings to w, for a device node
// that accepts the listing format or a file kept as a run log.
type WriterTransport struct {
	w io.Writer
}

func NewWriterTransport(w io.Writer) *WriterTransport { return &WriterTransport{w: w} }

func (t *WriterTransport) Load(instrs []compiler.Instruction) error {
	if _, err := fmt.Fprintf(t.w, "PROGRAM %d\n", len(instrs)); err != nil {
		return err
	}
	return compiler.FormatListing(t.w, instrs)
}

func (t *WriterTransport) Start() error {
	_, err := fmt.Fprintln(t.w, "START")
	return err
}

func (t *WriterTransport) Stop() error {
	_, err := fmt.Fprintln(t.w, "STOP")
	return err
}

// Close closes the underlying writer when it is an io.Closer.
func (t *WriterTransport) Close() error {
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
