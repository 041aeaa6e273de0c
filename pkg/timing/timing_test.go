package timing

import (
	"errors"
	"testing"
	"time"

	"gopulse/pkg/device"
)

func profile(t *testing.T, timebase time.Duration) device.Profile {
	t.Helper()
	c := device.DefaultConfig()
	c.Timebase = timebase
	p, err := device.NewProfile(c)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	return p
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		text    string
		want    time.Duration
		wantErr bool
	}{
		{"100 ns", 100 * time.Nanosecond, false},
		{"0 ns", 0, false},
		{"16 ns", 16, false},
		{"2.5 us", 2500, false},
		{"1 ms", time.Millisecond, false},
		{"3 s", 3 * time.Second, false},
		{"0.4 ns", 0, false},
		{"0.5 ns", 1, false},
		{"  10   us ", 10 * time.Microsecond, false},
		{"-8 ns", -8, false},
		{"1e3 ns", time.Microsecond, false},
		{"100ns", 0, true},
		{"100", 0, true},
		{"100 ps", 0, true},
		{"100 NS", 0, true},
		{"abc ns", 0, true},
		{"NaN ns", 0, true},
		{"Inf s", 0, true},
		{"1 2 ns", 0, true},
		{"", 0, true},
		{"1e30 s", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.text)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.text, err, tt.wantErr)
			continue
		}
		if err != nil {
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Text != tt.text {
				t.Errorf("ParseDuration(%q) error = %#v, want *ParseError", tt.text, err)
			}
			if !errors.Is(err, ErrParse) {
				t.Errorf("ParseDuration(%q) error does not match ErrParse", tt.text)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v; want %v", tt.text, got, tt.want)
		}
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		text    string
		want    float64
		wantErr bool
	}{
		{"200 Hz", 200, false},
		{"500 kHz", 500e3, false},
		{"2 MHz", 2e6, false},
		{"0.5 Hz", 0.5, false},
		{"0 Hz", 0, true},
		{"-5 Hz", 0, true},
		{"5 GHz", 0, true},
		{"5 hz", 0, true},
		{"5Hz", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseRate(tt.text)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRate(%q) error = %v, wantErr %v", tt.text, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseRate(%q) = %v; want %v", tt.text, got, tt.want)
		}
		if err != nil && !errors.Is(err, ErrParse) {
			t.Errorf("ParseRate(%q) error does not match ErrParse", tt.text)
		}
	}
}

func TestTicks(t *testing.T) {
	p1 := profile(t, time.Nanosecond)
	p2 := profile(t, 2*time.Nanosecond)

	tests := []struct {
		text string
		p    device.Profile
		want int64
	}{
		{"100 ns", p1, 100},
		{"100 ns", p2, 50},
		{"15 ns", p2, 8},
		{"13 ns", p2, 7},
		{"1 us", p2, 500},
		{"2 ms", p1, 2000000},
		{"2.5 ns", p2, 1},
		{"3.5 ns", p2, 2},
		{"0.4 ns", p1, 0},
	}
	for _, tt := range tests {
		got, err := Ticks(tt.text, tt.p)
		if err != nil {
			t.Errorf("Ticks(%q): %v", tt.text, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Ticks(%q, timebase %v) = %d; want %d", tt.text, tt.p.Timebase(), got, tt.want)
		}
	}

	if _, err := Ticks("5 parsecs", p1); !errors.Is(err, ErrParse) {
		t.Errorf("Ticks with bad unit: got %v, want ErrParse", err)
	}
}

func TestHalfPeriodTicks(t *testing.T) {
	p1 := profile(t, time.Nanosecond)
	p2 := profile(t, 2*time.Nanosecond)

	tests := []struct {
		text string
		p    device.Profile
		want int64
	}{
		{"500 kHz", p1, 1000},
		{"2 MHz", p1, 250},
		{"200 Hz", p1, 2500000},
		{"200 Hz", p2, 1250000},
		{"3 MHz", p1, 167},
	}
	for _, tt := range tests {
		got, err := HalfPeriodTicks(tt.text, tt.p)
		if err != nil {
			t.Errorf("HalfPeriodTicks(%q): %v", tt.text, err)
			continue
		}
		if got != tt.want {
			t.Errorf("HalfPeriodTicks(%q, timebase %v) = %d; want %d", tt.text, tt.p.Timebase(), got, tt.want)
		}
	}

	if _, err := HalfPeriodTicks("10 kHZ", p1); !errors.Is(err, ErrParse) {
		t.Errorf("HalfPeriodTicks with bad unit: got %v, want ErrParse", err)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 ns"},
		{16, "16 ns"},
		{1500, "1500 ns"},
		{2 * time.Microsecond, "2 us"},
		{3 * time.Millisecond, "3 ms"},
		{time.Second, "1 s"},
		{-4 * time.Microsecond, "-4 us"},
	}
	for _, tt := range tests {
		got := FormatDuration(tt.d)
		if got != tt.want {
			t.Errorf("FormatDuration(%v) = %q; want %q", tt.d, got, tt.want)
		}
		back, err := ParseDuration(got)
		if err != nil || back != tt.d {
			t.Errorf("ParseDuration(FormatDuration(%v)) = %v, %v", tt.d, back, err)
		}
	}
}
