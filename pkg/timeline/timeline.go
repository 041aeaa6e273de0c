// Package timeline superimposes the pulses of a program into a dense
// per-tick channel mask.
//
// A tick t is covered by a pulse when start <= t < start+length. Channel masks
// are powers of two, so the value at a tick decodes into the set of active
// channels as long as no channel is driven twice; Build checks that.
package timeline

import (
	"errors"
	"fmt"
	"sort"

	"gopulse/pkg/device"
	"gopulse/pkg/pulse"
)

var ErrOverlap = errors.New("overlapping pulses")

// OverlapError names two pulses active on one channel at the same tick.
// First precedes Second in declaration order.
type OverlapError struct {
	Channel     int
	ChannelName string
	First       string
	Second      string
	Tick        int64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlapping pulses on channel %s: %q and %q at tick %d", e.ChannelName, e.First, e.Second, e.Tick)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// Span is one pulse converted to ticks.
type Span struct {
	Name    string
	Channel int
	Mask    uint32
	Start   int64
	End     int64
	order   int
}

type Timeline struct {
	masks []uint32
	spans []Span
}

// End is the tick after the last active tick: the timeline's length.
func (tl *Timeline) End() int64 { return int64(len(tl.masks)) }

// At returns the summed channel mask at tick t, zero outside the timeline.
func (tl *Timeline) At(t int64) uint32 {
	if t < 0 || t >= int64(len(tl.masks)) {
		return 0
	}
	return tl.masks[t]
}

// Active reports whether ch is driven at tick t.
func (tl *Timeline) Active(t int64, ch int) bool {
	return tl.At(t)&device.Mask(ch) != 0
}

// Masks returns a copy of the dense array.
func (tl *Timeline) Masks() []uint32 { return append([]uint32(nil), tl.masks...) }

// Spans returns the tick intervals in declaration order.
func (tl *Timeline) Spans() []Span { return append([]Span(nil), tl.spans...) }

// Channels returns the sorted set of channels with at least one nonzero span.
func (tl *Timeline) Channels() []int {
	seen := map[int]bool{}
	var out []int
	for _, s := range tl.spans {
		if s.End > s.Start && !seen[s.Channel] {
			seen[s.Channel] = true
			out = append(out, s.Channel)
		}
	}
	sort.Ints(out)
	return out
}

// SpansOf converts pulses to tick intervals without building the array.
func SpansOf(pulses []pulse.Pulse, prof device.Profile) []Span {
	spans := make([]Span, len(pulses))
	for i, p := range pulses {
		start := prof.Ticks(p.Start)
		spans[i] = Span{
			Name:    p.Name,
			Channel: p.Channel,
			Mask:    device.Mask(p.Channel),
			Start:   start,
			End:     start + prof.Ticks(p.Length),
			order:   i,
		}
	}
	return spans
}

// EndOf is the length Build would give spans: the largest End, zero when
// there are none.
func EndOf(spans []Span) int64 {
	var end int64
	for _, s := range spans {
		if s.End > end {
			end = s.End
		}
	}
	return end
}

// Build converts pulses into a timeline, failing on the first same-channel
// overlap (earliest tick, then declaration order).
func Build(pulses []pulse.Pulse, prof device.Profile) (*Timeline, error) {
	spans := SpansOf(pulses, prof)
	if err := checkOverlap(spans, prof); err != nil {
		return nil, err
	}

	masks := make([]uint32, EndOf(spans))
	for _, s := range spans {
		for t := s.Start; t < s.End; t++ {
			masks[t] += s.Mask
		}
	}
	return &Timeline{masks: masks, spans: spans}, nil
}

// checkOverlap sorts each channel's nonempty spans by start and compares
// neighbours. Any intersection on a channel implies one between two spans
// adjacent in that order, so this finds the same violations as a per-tick
// scan of channel contributions.
func checkOverlap(spans []Span, prof device.Profile) error {
	byChannel := map[int][]Span{}
	for _, s := range spans {
		if s.End > s.Start {
			byChannel[s.Channel] = append(byChannel[s.Channel], s)
		}
	}

	var found *OverlapError
	for ch, list := range byChannel {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start < list[j].Start })
		reach := list[0]
		for _, s := range list[1:] {
			if s.Start < reach.End {
				first, second := reach, s
				if second.order < first.order {
					first, second = second, first
				}
				e := &OverlapError{
					Channel:     ch,
					ChannelName: prof.ChannelName(ch),
					First:       first.Name,
					Second:      second.Name,
					Tick:        s.Start,
				}
				if found == nil || e.Tick < found.Tick || (e.Tick == found.Tick && e.Channel < found.Channel) {
					found = e
				}
				break
			}
			if s.End > reach.End {
				reach = s
			}
		}
	}
	if found != nil {
		return found
	}
	return nil
}
