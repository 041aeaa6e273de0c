// Package plot lays out a compiled program as a timing diagram: one lane
// per driven channel, bars where the channel is high, and a time axis.
// It computes geometry only; drawing is left to the caller.
package plot

import (
	"image"
	"math"
	"time"

	"gopulse/pkg/compiler"
	"gopulse/pkg/device"
	"gopulse/pkg/timing"
)

const (
	LabelWidth = 120
	AxisHeight = 24
	LaneGap    = 6
	maxTicks   = 8
)

type Lane struct {
	Channel int
	Label   string
	Box     image.Rectangle
	Bars    []image.Rectangle
}

type Tick struct {
	X     int
	Label string
}

type Diagram struct {
	Lanes []Lane
	Axis  []Tick
	// Span is the number of ticks across the plot area: the active part of
	// the program, without the closing delay.
	Span int64
	Plot image.Rectangle
}

// Layout fits instrs into a width x height canvas. Consecutive instructions
// that keep a channel high produce a single bar.
func Layout(instrs []compiler.Instruction, prof device.Profile, width, height int) Diagram {
	d := Diagram{Plot: image.Rect(LabelWidth, 0, width, height-AxisHeight)}
	if d.Plot.Dx() <= 0 || d.Plot.Dy() <= 0 {
		return d
	}

	var used uint32
	for _, in := range instrs {
		used |= in.Mask
		if in.Mask != 0 && in.End() > d.Span {
			d.Span = in.End()
		}
	}
	if d.Span == 0 {
		d.Span = 1
	}
	x := func(t int64) int {
		return d.Plot.Min.X + int(t*int64(d.Plot.Dx())/d.Span)
	}

	var channels []int
	for ch := 0; ch < device.MaxChannels; ch++ {
		if used&device.Mask(ch) != 0 {
			channels = append(channels, ch)
		}
	}
	if n := len(channels); n > 0 {
		laneH := d.Plot.Dy() / n
		for i, ch := range channels {
			top := d.Plot.Min.Y + i*laneH
			lane := Lane{
				Channel: ch,
				Label:   prof.Label(ch),
				Box:     image.Rect(d.Plot.Min.X, top, d.Plot.Max.X, top+laneH),
			}
			barTop, barBottom := top+LaneGap/2, top+laneH-LaneGap/2
			if barBottom <= barTop {
				barTop, barBottom = top, top+laneH
			}
			m := device.Mask(ch)
			for j := 0; j < len(instrs); j++ {
				if instrs[j].Mask&m == 0 {
					continue
				}
				start := instrs[j].Start
				for j+1 < len(instrs) && instrs[j+1].Mask&m != 0 {
					j++
				}
				x0, x1 := x(start), x(instrs[j].End())
				if x1 <= x0 {
					x1 = x0 + 1
				}
				lane.Bars = append(lane.Bars, image.Rect(x0, barTop, x1, barBottom))
			}
			d.Lanes = append(d.Lanes, lane)
		}
	}

	spanNS := prof.Duration(d.Span)
	step := niceStep(spanNS)
	for v := time.Duration(0); v <= spanNS; v += step {
		d.Axis = append(d.Axis, Tick{
			X:     d.Plot.Min.X + int(int64(v)*int64(d.Plot.Dx())/int64(spanNS)),
			Label: timing.FormatDuration(v),
		})
	}
	return d
}

// niceStep picks a 1, 2 or 5 times a power of ten step giving at most
// maxTicks intervals over span.
func niceStep(span time.Duration) time.Duration {
	if span <= 0 {
		return 1
	}
	raw := float64(span) / maxTicks
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, f := range []float64{1, 2, 5, 10} {
		if s := f * mag; s >= raw {
			return max(time.Duration(math.Round(s)), 1)
		}
	}
	return time.Duration(10 * mag)
}
