// Package timing parses the human duration and repetition-rate strings used
// in pulse declarations, e.g. "16 ns", "2.5 us", "200 Hz", "1.5 kHz".
package timing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopulse/pkg/device"
)

var ErrParse = errors.New("parse error")

// ParseError reports a malformed duration or rate string.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Text, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// durationUnits maps a unit suffix to its size in nanoseconds.
var durationUnits = map[string]float64{
	"s":  1e9,
	"ms": 1e6,
	"us": 1e3,
	"ns": 1,
}

var rateUnits = map[string]float64{
	"Hz":  1,
	"kHz": 1e3,
	"MHz": 1e6,
}

func split(text string) (float64, string, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return 0, "", &ParseError{Text: text, Reason: `want "<number> <unit>"`}
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, "", &ParseError{Text: text, Reason: fmt.Sprintf("malformed number %q", fields[0])}
	}
	return v, fields[1], nil
}

// ParseDuration converts "<number> <unit>" to a duration rounded to the
// nearest nanosecond. Negative values parse; range checks belong to callers.
func ParseDuration(text string) (time.Duration, error) {
	ns, err := nanoseconds(text)
	if err != nil {
		return 0, err
	}
	return time.Duration(math.Round(ns)), nil
}

// nanoseconds is the unrounded value of text in nanoseconds.
func nanoseconds(text string) (float64, error) {
	v, unit, err := split(text)
	if err != nil {
		return 0, err
	}
	scale, ok := durationUnits[unit]
	if !ok {
		return 0, &ParseError{Text: text, Reason: fmt.Sprintf("unknown unit %q (want s, ms, us or ns)", unit)}
	}
	ns := v * scale
	if math.Abs(ns) > math.MaxInt64/2 {
		return 0, &ParseError{Text: text, Reason: "duration out of range"}
	}
	return ns, nil
}

// ParseRate converts "<number> Hz|kHz|MHz" to a frequency in hertz.
func ParseRate(text string) (float64, error) {
	v, unit, err := split(text)
	if err != nil {
		return 0, err
	}
	scale, ok := rateUnits[unit]
	if !ok {
		return 0, &ParseError{Text: text, Reason: fmt.Sprintf("unknown unit %q (want Hz, kHz or MHz)", unit)}
	}
	if v <= 0 {
		return 0, &ParseError{Text: text, Reason: "rate must be positive"}
	}
	return v * scale, nil
}

// Ticks parses text and converts it to clock ticks of p, rounding once to
// the nearest tick with halves away from zero.
func Ticks(text string, p device.Profile) (int64, error) {
	ns, err := nanoseconds(text)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(ns / float64(p.Timebase()))), nil
}

// HalfPeriodTicks parses a repetition rate and returns half of its period in
// ticks of p. The closing delay of a compiled program is sized against this.
func HalfPeriodTicks(text string, p device.Profile) (int64, error) {
	hz, err := ParseRate(text)
	if err != nil {
		return 0, err
	}
	half := 1e9 / hz / 2 / float64(p.Timebase())
	if half > math.MaxInt64/2 {
		return 0, &ParseError{Text: text, Reason: "period out of range"}
	}
	return int64(math.Round(half)), nil
}

// FormatDuration renders d with the largest unit that represents it exactly,
// so FormatDuration(ParseDuration(s)) round-trips for whole-ns values.
func FormatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "0 ns"
	case d%time.Second == 0:
		return strconv.FormatInt(int64(d/time.Second), 10) + " s"
	case d%time.Millisecond == 0:
		return strconv.FormatInt(int64(d/time.Millisecond), 10) + " ms"
	case d%time.Microsecond == 0:
		return strconv.FormatInt(int64(d/time.Microsecond), 10) + " us"
	}
	return strconv.FormatInt(int64(d), 10) + " ns"
}
