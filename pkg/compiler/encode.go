package compiler

import (
	"errors"
	"fmt"

	"gopulse/pkg/device"
	"gopulse/pkg/pulse"
	"gopulse/pkg/timeline"
	"gopulse/pkg/timing"
)

var ErrSequenceTooLong = errors.New("pulse sequence longer than the repetition half-period")

// SequenceTooLongError reports a program whose active part leaves less than
// the device's minimum delay before the repetition loop must branch back.
type SequenceTooLongError struct {
	End        int64
	HalfPeriod int64
	MinDelay   int64
}

func (e *SequenceTooLongError) Error() string {
	return fmt.Sprintf("pulse sequence ends at tick %d but the repetition half-period is %d ticks (closing delay must be at least %d)",
		e.End, e.HalfPeriod, e.MinDelay)
}

func (e *SequenceTooLongError) Unwrap() error { return ErrSequenceTooLong }

// Instruction drives the outputs in Mask for Duration ticks starting at Start.
type Instruction struct {
	Mask     uint32
	Start    int64
	Duration int64
}

// End is the tick after the instruction.
func (in Instruction) End() int64 { return in.Start + in.Duration }

// Encode run-length encodes tl and appends the closing delay that pads the
// program to halfPeriod ticks. The result is contiguous from tick 0, never
// holds a zero-length run, and always ends with a Mask 0 instruction.
func Encode(tl *timeline.Timeline, halfPeriod int64, prof device.Profile) ([]Instruction, error) {
	end := tl.End()
	delay := halfPeriod - end
	if delay < prof.MinDelay() {
		return nil, &SequenceTooLongError{End: end, HalfPeriod: halfPeriod, MinDelay: prof.MinDelay()}
	}

	var out []Instruction
	var runStart int64
	for t := int64(1); t <= end; t++ {
		if t < end && tl.At(t) == tl.At(runStart) {
			continue
		}
		if t > runStart {
			out = append(out, Instruction{Mask: tl.At(runStart), Start: runStart, Duration: t - runStart})
		}
		runStart = t
	}
	out = append(out, Instruction{Mask: 0, Start: end, Duration: delay})
	return out, nil
}

// Compile builds the timeline of pr's current generation and encodes it
// against pr's repetition rate. A program that cannot fit the half-period is
// rejected before the per-tick timeline is allocated.
func Compile(pr *pulse.Program) ([]Instruction, error) {
	prof := pr.Profile()
	half, err := timing.HalfPeriodTicks(pr.RepetitionRate(), prof)
	if err != nil {
		return nil, fmt.Errorf("repetition rate: %w", err)
	}
	pulses := pr.Pulses()
	if end := timeline.EndOf(timeline.SpansOf(pulses, prof)); half-end < prof.MinDelay() {
		return nil, &SequenceTooLongError{End: end, HalfPeriod: half, MinDelay: prof.MinDelay()}
	}
	tl, err := timeline.Build(pulses, prof)
	if err != nil {
		return nil, err
	}
	return Encode(tl, half, prof)
}
