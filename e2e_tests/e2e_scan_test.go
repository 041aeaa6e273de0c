package main

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"gopulse/pkg/compiler"
	"gopulse/pkg/config"
	"gopulse/pkg/device"
	"gopulse/pkg/pulser"
)

// rising returns the start tick of every run where mask turns on.
func rising(instrs []compiler.Instruction, mask uint32) []int64 {
	var out []int64
	var prev uint32
	for _, in := range instrs {
		if in.Mask&mask != 0 && prev&mask == 0 {
			out = append(out, in.Start)
		}
		prev = in.Mask
	}
	return out
}

func load(t *testing.T, doc string) *config.Experiment {
	t.Helper()
	exp, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	return exp
}

const eseem = `
rate: 1 kHz
pulses:
  - {name: trig, channel: TRIGGER, start: 0 ns, length: 20 ns}
  - {name: p1, channel: MW, start: 100 ns, length: 16 ns, phases: [+x, -x]}
  - {name: p2, channel: MW, start: 300 ns, length: 16 ns, delta_start: 4 ns}
  - {name: p3, channel: MW, start: 500 ns, length: 32 ns, delta_start: 8 ns}
  - {name: det, channel: LNA_PROTECT, start: 90 ns, length: 480 ns, length_increment: 8 ns}
`

func TestESEEMPhaseCycledScan(t *testing.T) {
	exp := load(t, eseem)
	tr := pulser.NewStubTransport()
	p := pulser.New(exp.Program, tr, nil)
	prog := exp.Program
	mw := device.Mask(3)

	const points = 20
	var cycle []string
	for i := 0; i < points; i++ {
		for j := 0; j < 2; j++ {
			if err := p.Update(); err != nil {
				t.Fatalf("point %d phase %d: %v", i, j, err)
			}
			// Acquisition would happen here; a second Update is free.
			if err := p.Update(); err != nil {
				t.Fatal(err)
			}
			ph, err := prog.CurrentPhase("p1")
			if err != nil {
				t.Fatal(err)
			}
			cycle = append(cycle, ph)

			edges := rising(p.Last(), mw)
			want := []int64{50, 150 + int64(i)*2, 250 + int64(i)*4}
			if !reflect.DeepEqual(edges, want) {
				t.Fatalf("point %d: MW edges = %v; want %v", i, edges, want)
			}
			if err := prog.AdvancePhase("p1"); err != nil {
				t.Fatal(err)
			}
		}
		if err := prog.Shift(); err != nil {
			t.Fatal(err)
		}
		if err := prog.Increment("det"); err != nil {
			t.Fatal(err)
		}
	}

	if len(tr.Loads) != points*2 {
		t.Errorf("downloads = %d; want %d", len(tr.Loads), points*2)
	}
	for i, ph := range cycle {
		want := "+x"
		if i%2 == 1 {
			want = "-x"
		}
		if ph != want {
			t.Fatalf("acquisition %d ran with phase %s; want %s", i, ph, want)
		}
	}

	if err := p.Reset(); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tr.Loaded(), tr.Loads[0]) {
		t.Errorf("program after Reset differs from the first download")
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if tr.Stops != 1 {
		t.Errorf("stops = %d", tr.Stops)
	}
}

const hyscore = `
rate: 500 Hz
pulses:
  - {name: trig, channel: TRIGGER, start: 0 ns, length: 20 ns}
  - {name: p1, channel: MW, start: 100 ns, length: 16 ns}
  - {name: t1, channel: MW, start: 200 ns, length: 32 ns, delta_start: 8 ns}
  - {name: t2, channel: MW, start: 400 ns, length: 32 ns, delta_start: 8 ns}
  - {name: p4, channel: MW, start: 600 ns, length: 16 ns, delta_start: 16 ns}
`

func TestHYSCORESweepWithPartialReset(t *testing.T) {
	exp := load(t, hyscore)
	var wire bytes.Buffer
	p := pulser.New(exp.Program, pulser.NewWriterTransport(&wire), nil)
	prog := exp.Program
	mw := device.Mask(3)

	const n = 8
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if err := p.Update(); err != nil {
				t.Fatalf("(%d, %d): %v", i, j, err)
			}
			got := rising(p.Last(), mw)
			want := []int64{50, 100 + int64(i)*4, 200 + int64(j)*4, 300 + int64(j)*8}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("(%d, %d): MW edges = %v; want %v", i, j, got, want)
			}
			if err := prog.Shift("t2", "p4"); err != nil {
				t.Fatal(err)
			}
		}
		// Only the inner axis goes back; t1 keeps its offset.
		if err := prog.Reset("t2", "p4"); err != nil {
			t.Fatal(err)
		}
		if err := prog.Shift("t1"); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}

	out := wire.String()
	if c := strings.Count(out, "START\n"); c != n*n {
		t.Errorf("wire carries %d programs; want %d", c, n*n)
	}
	if !strings.HasSuffix(out, "STOP\n") {
		t.Errorf("wire does not end with STOP")
	}

	// The last streamed point parses back into the last compiled program.
	blocks := strings.Split(out, "PROGRAM ")
	last := blocks[len(blocks)-2]
	listing := last[strings.Index(last, "\n")+1 : strings.Index(last, "START")]
	got, err := compiler.ParseListing(listing)
	if err != nil {
		t.Fatalf("ParseListing: %v", err)
	}
	if !reflect.DeepEqual(got, p.Last()) {
		t.Errorf("streamed listing does not match the compiled program")
	}
}
