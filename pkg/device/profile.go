// Package device describes the pulse generator a program is compiled for.
//
// A Profile is built once and passed by value to the parser, the timeline
// builder and the instruction compiler. Nothing in this package reads global
// configuration.
package device

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxChannels is the widest channel table a uint32 mask can address.
	MaxChannels = 32

	DefaultName     = "PB ESR 500 Pro"
	DefaultTimebase = 2 * time.Nanosecond
	DefaultMaxWidth = 2000 * time.Nanosecond
	DefaultMinDelay = 7 // ticks
	DefaultChannels = 22
	DefaultRate     = "2 Hz"
)

// defaultAliases are the symbolic outputs experiment scripts refer to.
var defaultAliases = map[string]int{
	"TRIGGER":     0,
	"AMP_ON":      1,
	"LNA_PROTECT": 2,
	"MW":          3,
	"-X":          4,
	"+Y":          5,
	"TRIGGER_AWG": 6,
	"AWG":         7,
}

var ErrUnknownChannel = errors.New("unknown channel")

// UnknownChannelError is returned when a channel name is not in the table.
type UnknownChannelError struct {
	Name string
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("unknown channel %q", e.Name)
}

func (e *UnknownChannelError) Unwrap() error { return ErrUnknownChannel }

// Config is the mutable input used to build a Profile.
type Config struct {
	Name        string
	Timebase    time.Duration
	MaxWidth    time.Duration
	MinDelay    int64
	Channels    int
	DefaultRate string
	Aliases     map[string]int
}

// DefaultConfig returns the configuration of the stock board.
func DefaultConfig() Config {
	aliases := make(map[string]int, len(defaultAliases))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	return Config{
		Name:        DefaultName,
		Timebase:    DefaultTimebase,
		MaxWidth:    DefaultMaxWidth,
		MinDelay:    DefaultMinDelay,
		Channels:    DefaultChannels,
		DefaultRate: DefaultRate,
		Aliases:     aliases,
	}
}

// Profile is an immutable device description. The zero value is not usable;
// build one with NewProfile or Default.
type Profile struct {
	name        string
	timebase    time.Duration
	maxWidth    time.Duration
	minDelay    int64
	channels    int
	defaultRate string
	aliases     map[string]int
}

// Default returns the profile of the stock board.
func Default() Profile {
	p, err := NewProfile(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return p
}

// NewProfile validates c and freezes it into a Profile.
func NewProfile(c Config) (Profile, error) {
	if c.Timebase <= 0 {
		return Profile{}, fmt.Errorf("timebase must be positive, got %v", c.Timebase)
	}
	if c.MaxWidth <= 0 {
		return Profile{}, fmt.Errorf("max width must be positive, got %v", c.MaxWidth)
	}
	if c.MinDelay < 1 {
		return Profile{}, fmt.Errorf("min delay must be at least 1 tick, got %d", c.MinDelay)
	}
	if c.Channels < 1 || c.Channels > MaxChannels {
		return Profile{}, fmt.Errorf("channel count must be in [1, %d], got %d", MaxChannels, c.Channels)
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.DefaultRate == "" {
		c.DefaultRate = DefaultRate
	}

	aliases := make(map[string]int, len(c.Aliases))
	for name, ch := range c.Aliases {
		if name == "" {
			return Profile{}, errors.New("empty channel alias")
		}
		if _, ok := parseCH(name, c.Channels); ok {
			return Profile{}, fmt.Errorf("alias %q shadows a hardware channel name", name)
		}
		if ch < 0 || ch >= c.Channels {
			return Profile{}, fmt.Errorf("alias %q points at channel %d outside [0, %d)", name, ch, c.Channels)
		}
		aliases[name] = ch
	}

	return Profile{
		name:        c.Name,
		timebase:    c.Timebase,
		maxWidth:    c.MaxWidth,
		minDelay:    c.MinDelay,
		channels:    c.Channels,
		defaultRate: c.DefaultRate,
		aliases:     aliases,
	}, nil
}

func (p Profile) Name() string            { return p.name }
func (p Profile) Timebase() time.Duration { return p.timebase }
func (p Profile) MaxWidth() time.Duration { return p.maxWidth }
func (p Profile) MinDelay() int64         { return p.minDelay }
func (p Profile) Channels() int           { return p.channels }
func (p Profile) DefaultRate() string     { return p.defaultRate }

// Config returns a copy of the configuration p was built from.
func (p Profile) Config() Config {
	aliases := make(map[string]int, len(p.aliases))
	for k, v := range p.aliases {
		aliases[k] = v
	}
	return Config{
		Name:        p.name,
		Timebase:    p.timebase,
		MaxWidth:    p.maxWidth,
		MinDelay:    p.minDelay,
		Channels:    p.channels,
		DefaultRate: p.defaultRate,
		Aliases:     aliases,
	}
}

// Channel resolves "CH<n>" or an alias to a channel index.
func (p Profile) Channel(name string) (int, error) {
	if ch, ok := parseCH(name, p.channels); ok {
		return ch, nil
	}
	if ch, ok := p.aliases[name]; ok {
		return ch, nil
	}
	return 0, &UnknownChannelError{Name: name}
}

// ChannelName returns the hardware name of ch, e.g. "CH3".
func (p Profile) ChannelName(ch int) string {
	return "CH" + strconv.Itoa(ch)
}

// Label returns the hardware name plus any aliases, e.g. "CH3 (MW)".
func (p Profile) Label(ch int) string {
	names := p.Aliases(ch)
	if len(names) == 0 {
		return p.ChannelName(ch)
	}
	return p.ChannelName(ch) + " (" + strings.Join(names, ", ") + ")"
}

// Aliases returns the sorted alias names of ch.
func (p Profile) Aliases(ch int) []string {
	var names []string
	for name, c := range p.aliases {
		if c == ch {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Mask is the output bit of ch.
func Mask(ch int) uint32 {
	return 1 << uint(ch)
}

// Ticks converts d to clock ticks, rounding to the nearest tick (halves away
// from zero).
func (p Profile) Ticks(d time.Duration) int64 {
	tb := int64(p.timebase)
	n := int64(d)
	q, r := n/tb, n%tb
	if r < 0 {
		r = -r
	}
	if 2*r >= tb {
		if n < 0 {
			q--
		} else {
			q++
		}
	}
	return q
}

// Duration converts a tick count back to wall time.
func (p Profile) Duration(ticks int64) time.Duration {
	return time.Duration(ticks) * p.timebase
}

func parseCH(name string, channels int) (int, bool) {
	if !strings.HasPrefix(name, "CH") || len(name) < 3 {
		return 0, false
	}
	digits := name[2:]
	if len(digits) > 1 && digits[0] == '0' {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	ch, err := strconv.Atoi(digits)
	if err != nil || ch < 0 || ch >= channels {
		return 0, false
	}
	return ch, true
}
