package pulse

import (
	"errors"
	"fmt"
	"time"

	"gopulse/pkg/timing"
)

var (
	ErrRange         = errors.New("value out of range")
	ErrUnknownPulse  = errors.New("unknown pulse")
	ErrDuplicateName = errors.New("duplicate pulse name")
)

// RangeError reports a pulse field outside the device bounds [Min, Max).
// A zero Max means the field is only bounded below.
type RangeError struct {
	Pulse string
	Field string
	Value time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (e *RangeError) Error() string {
	if e.Max == 0 {
		return fmt.Sprintf("pulse %q: %s %s must be >= %s",
			e.Pulse, e.Field, timing.FormatDuration(e.Value), timing.FormatDuration(e.Min))
	}
	return fmt.Sprintf("pulse %q: %s %s outside [%s, %s)",
		e.Pulse, e.Field, timing.FormatDuration(e.Value), timing.FormatDuration(e.Min), timing.FormatDuration(e.Max))
}

func (e *RangeError) Unwrap() error { return ErrRange }

// Spec declares a pulse the way experiment scripts write it. Empty duration
// fields take the driver defaults: start "0 ns", length "100 ns", no sweep
// deltas.
type Spec struct {
	Name            string
	Channel         string
	Start           string
	Length          string
	DeltaStart      string
	LengthIncrement string
	Phases          []string
}

// Pulse is one timed output on a single channel.
type Pulse struct {
	Name    string
	Channel int

	Start  time.Duration
	Length time.Duration

	// Applied once per Shift / Increment call.
	DeltaStart      time.Duration
	LengthIncrement time.Duration

	Phases []string
	Cursor int
}

// End is the first instant after the pulse.
func (p Pulse) End() time.Duration { return p.Start + p.Length }

// Phase returns the current phase label, or "" when the pulse has no cycle.
func (p Pulse) Phase() string {
	if len(p.Phases) == 0 {
		return ""
	}
	return p.Phases[p.Cursor]
}

func (p Pulse) clone() Pulse {
	if p.Phases != nil {
		p.Phases = append([]string(nil), p.Phases...)
	}
	return p
}

func clonePulses(src []Pulse) []Pulse {
	out := make([]Pulse, len(src))
	for i, p := range src {
		out[i] = p.clone()
	}
	return out
}
