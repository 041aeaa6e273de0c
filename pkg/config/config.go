// Package config loads experiment files: a YAML document describing the
// board, the repetition rate and the pulse declarations.
//
//	device:
//	  name: PB ESR 500 Pro
//	  timebase: 2 ns
//	  aliases: {MW: 3, TRIGGER: 0}
//	rate: 200 Hz
//	pulses:
//	  - {name: P0, channel: TRIGGER, start: 0 ns, length: 20 ns}
//	  - {name: P1, channel: MW, start: 100 ns, length: 16 ns, delta_start: 4 ns, phases: [+x, -x]}
//
// Device fields left out keep the stock board's values. An aliases map, when
// given, replaces the stock alias table.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gopulse/pkg/device"
	"gopulse/pkg/pulse"
	"gopulse/pkg/timing"
)

type File struct {
	Device *Device `yaml:"device,omitempty"`
	Rate   string  `yaml:"rate,omitempty"`
	Pulses []Pulse `yaml:"pulses"`
}

type Device struct {
	Name        string         `yaml:"name,omitempty"`
	Timebase    string         `yaml:"timebase,omitempty"`
	MaxWidth    string         `yaml:"max_width,omitempty"`
	MinDelay    *int64         `yaml:"min_delay,omitempty"`
	Channels    int            `yaml:"channels,omitempty"`
	DefaultRate string         `yaml:"default_rate,omitempty"`
	Aliases     map[string]int `yaml:"aliases,omitempty"`
}

type Pulse struct {
	Name            string   `yaml:"name,omitempty"`
	Channel         string   `yaml:"channel"`
	Start           string   `yaml:"start,omitempty"`
	Length          string   `yaml:"length,omitempty"`
	DeltaStart      string   `yaml:"delta_start,omitempty"`
	LengthIncrement string   `yaml:"length_increment,omitempty"`
	Phases          []string `yaml:"phases,omitempty"`
}

// Experiment is a loaded file: the board profile and a program holding the
// declared pulses, snapshot frozen.
type Experiment struct {
	Profile device.Profile
	Program *pulse.Program
}

// Load reads and parses the experiment file at path.
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	exp, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return exp, nil
}

// Parse builds an experiment from YAML. Unknown keys are errors.
func Parse(data []byte) (*Experiment, error) {
	f, err := decode(data)
	if err != nil {
		return nil, err
	}
	return f.Build()
}

func decode(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, err
	}
	return &f, nil
}

// Profile applies the device section over the stock configuration.
func (f *File) Profile() (device.Profile, error) {
	c := device.DefaultConfig()
	if d := f.Device; d != nil {
		if d.Name != "" {
			c.Name = d.Name
		}
		for _, fld := range []struct {
			label string
			text  string
			dst   *time.Duration
		}{
			{"timebase", d.Timebase, &c.Timebase},
			{"max_width", d.MaxWidth, &c.MaxWidth},
		} {
			if fld.text == "" {
				continue
			}
			v, err := timing.ParseDuration(fld.text)
			if err != nil {
				return device.Profile{}, fmt.Errorf("device: %s: %w", fld.label, err)
			}
			*fld.dst = v
		}
		if d.MinDelay != nil {
			c.MinDelay = *d.MinDelay
		}
		if d.Channels != 0 {
			c.Channels = d.Channels
		}
		if d.DefaultRate != "" {
			if _, err := timing.ParseRate(d.DefaultRate); err != nil {
				return device.Profile{}, fmt.Errorf("device: default_rate: %w", err)
			}
			c.DefaultRate = d.DefaultRate
		}
		if d.Aliases != nil {
			c.Aliases = d.Aliases
		}
	}
	p, err := device.NewProfile(c)
	if err != nil {
		return device.Profile{}, fmt.Errorf("device: %w", err)
	}
	return p, nil
}

// Build creates the profile and the program the file declares.
func (f *File) Build() (*Experiment, error) {
	prof, err := f.Profile()
	if err != nil {
		return nil, err
	}
	pr := pulse.NewProgram(prof)
	if f.Rate != "" {
		if err := pr.SetRepetitionRate(f.Rate); err != nil {
			return nil, err
		}
	}
	for i, p := range f.Pulses {
		err := pr.AddPulse(pulse.Spec{
			Name:            p.Name,
			Channel:         p.Channel,
			Start:           p.Start,
			Length:          p.Length,
			DeltaStart:      p.DeltaStart,
			LengthIncrement: p.LengthIncrement,
			Phases:          p.Phases,
		})
		if err != nil {
			return nil, fmt.Errorf("pulses[%d]: %w", i, err)
		}
	}
	return &Experiment{Profile: prof, Program: pr}, nil
}
