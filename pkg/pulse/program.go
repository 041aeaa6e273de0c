// Package pulse holds the ordered pulse declarations of an experiment and the
// mutation operators scan loops apply between acquisitions.
//
// A Program keeps two generations: the snapshot, frozen every time a pulse
// is added, and the current generation that Shift, Increment and
// AdvancePhase edit in place. Reset copies values back from the snapshot.
// The two never share backing storage.
//
// Programs are not safe for concurrent use; callers serialise mutation and
// compilation of one program.
package pulse

import (
	"fmt"
	"strconv"
	"time"

	"gopulse/pkg/device"
	"gopulse/pkg/timing"
)

type Program struct {
	profile  device.Profile
	current  []Pulse
	snapshot []Pulse
	index    map[string]int
	rate     string

	// generation counts effective changes; drivers use it to skip
	// re-downloading an unchanged program.
	generation uint64
}

// NewProgram returns an empty program for profile p, repeating at the
// profile's default rate.
func NewProgram(p device.Profile) *Program {
	return &Program{
		profile: p,
		index:   make(map[string]int),
		rate:    p.DefaultRate(),
	}
}

func (pr *Program) Profile() device.Profile { return pr.profile }
func (pr *Program) Len() int                { return len(pr.current) }
func (pr *Program) Generation() uint64      { return pr.generation }

// Pulses returns a copy of the current generation in insertion order.
func (pr *Program) Pulses() []Pulse { return clonePulses(pr.current) }

// Snapshot returns a copy of the frozen generation.
func (pr *Program) Snapshot() []Pulse { return clonePulses(pr.snapshot) }

// Pulse returns a copy of the named pulse.
func (pr *Program) Pulse(name string) (Pulse, error) {
	i, ok := pr.index[name]
	if !ok {
		return Pulse{}, fmt.Errorf("%w: %q", ErrUnknownPulse, name)
	}
	return pr.current[i].clone(), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// AddPulse validates s against the profile, appends it and re-freezes the
// snapshot so that it mirrors the program as last configured.
func (pr *Program) AddPulse(s Spec) error {
	name := s.Name
	if name == "" {
		name = "P" + strconv.Itoa(len(pr.current))
	}
	if _, dup := pr.index[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	ch, err := pr.profile.Channel(s.Channel)
	if err != nil {
		return fmt.Errorf("pulse %q: %w", name, err)
	}

	p := Pulse{Name: name, Channel: ch}
	fields := []struct {
		label string
		text  string
		dst   *time.Duration
	}{
		{"start", orDefault(s.Start, "0 ns"), &p.Start},
		{"length", orDefault(s.Length, "100 ns"), &p.Length},
		{"delta_start", orDefault(s.DeltaStart, "0 ns"), &p.DeltaStart},
		{"length_increment", orDefault(s.LengthIncrement, "0 ns"), &p.LengthIncrement},
	}
	for _, f := range fields {
		d, err := timing.ParseDuration(f.text)
		if err != nil {
			return fmt.Errorf("pulse %q: %s: %w", name, f.label, err)
		}
		*f.dst = d
	}

	if err := pr.checkBounds(p); err != nil {
		return err
	}
	if len(s.Phases) > 0 {
		p.Phases = append([]string(nil), s.Phases...)
	}

	pr.index[name] = len(pr.current)
	pr.current = append(pr.current, p)
	pr.snapshot = clonePulses(pr.current)
	pr.generation++
	return nil
}

func (pr *Program) checkBounds(p Pulse) error {
	max := pr.profile.MaxWidth()
	if p.Start < 0 {
		return &RangeError{Pulse: p.Name, Field: "start", Value: p.Start}
	}
	if p.DeltaStart < 0 {
		return &RangeError{Pulse: p.Name, Field: "delta_start", Value: p.DeltaStart}
	}
	if p.Length < 0 || p.Length >= max {
		return &RangeError{Pulse: p.Name, Field: "length", Value: p.Length, Max: max}
	}
	if p.LengthIncrement < 0 || p.LengthIncrement >= max {
		return &RangeError{Pulse: p.Name, Field: "length_increment", Value: p.LengthIncrement, Max: max}
	}
	return nil
}

// selection resolves names to indices. No names selects every pulse; repeated
// names are applied once. Unknown names fail before anything is touched.
func (pr *Program) selection(names []string) ([]int, error) {
	if len(names) == 0 {
		all := make([]int, len(pr.current))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	seen := make(map[int]bool, len(names))
	var out []int
	for _, name := range names {
		i, ok := pr.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPulse, name)
		}
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out, nil
}

// Shift moves each selected pulse with a nonzero DeltaStart by that delta.
func (pr *Program) Shift(names ...string) error {
	sel, err := pr.selection(names)
	if err != nil {
		return err
	}
	changed := false
	for _, i := range sel {
		p := &pr.current[i]
		if p.DeltaStart != 0 {
			p.Start += p.DeltaStart
			changed = true
		}
	}
	if changed {
		pr.generation++
	}
	return nil
}

// Increment lengthens each selected pulse with a nonzero LengthIncrement.
// If any result would reach the device's max width nothing is changed.
func (pr *Program) Increment(names ...string) error {
	sel, err := pr.selection(names)
	if err != nil {
		return err
	}
	max := pr.profile.MaxWidth()
	for _, i := range sel {
		p := pr.current[i]
		if p.LengthIncrement == 0 {
			continue
		}
		if next := p.Length + p.LengthIncrement; next >= max {
			return &RangeError{Pulse: p.Name, Field: "length", Value: next, Max: max}
		}
	}
	changed := false
	for _, i := range sel {
		p := &pr.current[i]
		if p.LengthIncrement != 0 {
			p.Length += p.LengthIncrement
			changed = true
		}
	}
	if changed {
		pr.generation++
	}
	return nil
}

// AdvancePhase steps the phase cursor of each selected pulse, wrapping at the
// end of its cycle. Pulses without a phase cycle are left alone.
func (pr *Program) AdvancePhase(names ...string) error {
	sel, err := pr.selection(names)
	if err != nil {
		return err
	}
	changed := false
	for _, i := range sel {
		p := &pr.current[i]
		if n := len(p.Phases); n > 0 {
			p.Cursor = (p.Cursor + 1) % n
			changed = true
		}
	}
	if changed {
		pr.generation++
	}
	return nil
}

// Reset restores Start, Length and the phase cursor of the selected pulses
// from the snapshot. Sweep deltas are configuration and stay as they are.
func (pr *Program) Reset(names ...string) error {
	sel, err := pr.selection(names)
	if err != nil {
		return err
	}
	changed := false
	for _, i := range sel {
		p, s := &pr.current[i], pr.snapshot[i]
		if p.Start != s.Start || p.Length != s.Length || p.Cursor != s.Cursor {
			p.Start, p.Length, p.Cursor = s.Start, s.Length, s.Cursor
			changed = true
		}
	}
	if changed {
		pr.generation++
	}
	return nil
}

// SetPhases replaces the phase cycle of the named pulse in both generations
// and puts its cursor back on the first label. Like AddPulse it changes the
// declaration, so the snapshot follows.
func (pr *Program) SetPhases(name string, phases ...string) error {
	i, ok := pr.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPulse, name)
	}
	var cycle []string
	if len(phases) > 0 {
		cycle = append([]string(nil), phases...)
	}
	pr.current[i].Phases, pr.current[i].Cursor = cycle, 0
	pr.snapshot[i].Phases, pr.snapshot[i].Cursor = append([]string(nil), cycle...), 0
	pr.generation++
	return nil
}

// CurrentPhase returns the phase label the named pulse is at.
func (pr *Program) CurrentPhase(name string) (string, error) {
	i, ok := pr.index[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPulse, name)
	}
	return pr.current[i].Phase(), nil
}

// SetRepetitionRate stores text verbatim after checking that it parses.
func (pr *Program) SetRepetitionRate(text string) error {
	if _, err := timing.ParseRate(text); err != nil {
		return fmt.Errorf("repetition rate: %w", err)
	}
	if text != pr.rate {
		pr.rate = text
		pr.generation++
	}
	return nil
}

func (pr *Program) RepetitionRate() string { return pr.rate }
