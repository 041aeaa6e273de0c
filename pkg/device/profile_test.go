package device

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestDefaultProfile(t *testing.T) {
	p := Default()
	if p.Name() != DefaultName {
		t.Errorf("Name: got %q, want %q", p.Name(), DefaultName)
	}
	if p.Timebase() != 2*time.Nanosecond {
		t.Errorf("Timebase: got %v, want 2ns", p.Timebase())
	}
	if p.Channels() != 22 {
		t.Errorf("Channels: got %d, want 22", p.Channels())
	}
	if p.MinDelay() != DefaultMinDelay {
		t.Errorf("MinDelay: got %d, want %d", p.MinDelay(), DefaultMinDelay)
	}
}

func TestNewProfileValidation(t *testing.T) {
	base := DefaultConfig()
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero timebase", func(c *Config) { c.Timebase = 0 }},
		{"negative max width", func(c *Config) { c.MaxWidth = -time.Nanosecond }},
		{"zero min delay", func(c *Config) { c.MinDelay = 0 }},
		{"no channels", func(c *Config) { c.Channels = 0 }},
		{"too many channels", func(c *Config) { c.Channels = 33 }},
		{"alias out of range", func(c *Config) { c.Aliases = map[string]int{"MW": 22} }},
		{"alias shadows CH name", func(c *Config) { c.Aliases = map[string]int{"CH4": 1} }},
		{"empty alias", func(c *Config) { c.Aliases = map[string]int{"": 1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			c.Aliases = nil
			tt.mutate(&c)
			if _, err := NewProfile(c); err == nil {
				t.Errorf("NewProfile() accepted %+v", c)
			}
		})
	}
}

func TestProfileIsolatedFromConfig(t *testing.T) {
	c := DefaultConfig()
	p, err := NewProfile(c)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	c.Aliases["MW"] = 9
	if ch, _ := p.Channel("MW"); ch != 3 {
		t.Errorf("profile alias changed through config map: got CH%d", ch)
	}

	out := p.Config()
	out.Aliases["MW"] = 10
	if ch, _ := p.Channel("MW"); ch != 3 {
		t.Errorf("profile alias changed through Config() copy: got CH%d", ch)
	}
}

func TestChannelLookup(t *testing.T) {
	p := Default()
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"CH0", 0, false},
		{"CH21", 21, false},
		{"CH22", 0, true},
		{"CH01", 0, true},
		{"CH+1", 0, true},
		{"CH", 0, true},
		{"MW", 3, false},
		{"TRIGGER", 0, false},
		{"AWG", 7, false},
		{"mw", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := p.Channel(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("Channel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err != nil {
			var uc *UnknownChannelError
			if !errors.As(err, &uc) || uc.Name != tt.name {
				t.Errorf("Channel(%q) error = %#v, want UnknownChannelError", tt.name, err)
			}
			if !errors.Is(err, ErrUnknownChannel) {
				t.Errorf("Channel(%q) error does not match ErrUnknownChannel", tt.name)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("Channel(%q) = %d; want %d", tt.name, got, tt.want)
		}
	}
}

func TestLabelAndAliases(t *testing.T) {
	c := DefaultConfig()
	c.Aliases["MICROWAVE"] = 3
	p, err := NewProfile(c)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	if got, want := p.Aliases(3), []string{"MICROWAVE", "MW"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Aliases(3) = %v; want %v", got, want)
	}
	if got := p.Label(3); got != "CH3 (MICROWAVE, MW)" {
		t.Errorf("Label(3) = %q", got)
	}
	if got := p.Label(20); got != "CH20" {
		t.Errorf("Label(20) = %q", got)
	}
}

func TestMask(t *testing.T) {
	for ch := 0; ch < MaxChannels; ch++ {
		m := Mask(ch)
		if m&(m-1) != 0 || m == 0 {
			t.Errorf("Mask(%d) = %#x is not a power of two", ch, m)
		}
	}
	if Mask(5) != 32 {
		t.Errorf("Mask(5) = %d; want 32", Mask(5))
	}
}

func TestTicksRounding(t *testing.T) {
	c := DefaultConfig()
	c.Timebase = 4 * time.Nanosecond
	p, err := NewProfile(c)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	tests := []struct {
		d    time.Duration
		want int64
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 1},
		{4, 1},
		{5, 1},
		{6, 2},
		{16, 4},
		{-6, -2},
		{-5, -1},
	}
	for _, tt := range tests {
		if got := p.Ticks(tt.d); got != tt.want {
			t.Errorf("Ticks(%v) = %d; want %d", tt.d, got, tt.want)
		}
	}
	if got := p.Duration(4); got != 16*time.Nanosecond {
		t.Errorf("Duration(4) = %v; want 16ns", got)
	}
}
