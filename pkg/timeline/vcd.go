package timeline

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"gopulse/pkg/device"
)

// WriteVCD dumps the used channels of tl as a Value Change Dump, one 1-bit
// wire per channel, for inspection in a waveform viewer. Times are in
// nanoseconds; the dump ends with every wire low at tl.End().
func WriteVCD(w io.Writer, tl *Timeline, prof device.Profile) error {
	bw := bufio.NewWriter(w)
	channels := tl.Channels()
	ids := make([]string, len(channels))

	fmt.Fprintf(bw, "$version gopulse $end\n")
	fmt.Fprintf(bw, "$timescale 1 ns $end\n")
	fmt.Fprintf(bw, "$scope module %s $end\n", vcdName(prof.Name()))
	for i, ch := range channels {
		ids[i] = vcdID(i)
		name := prof.ChannelName(ch)
		if aliases := prof.Aliases(ch); len(aliases) > 0 {
			name += "_" + vcdName(strings.Join(aliases, "_"))
		}
		fmt.Fprintf(bw, "$var wire 1 %s %s $end\n", ids[i], name)
	}
	fmt.Fprintf(bw, "$upscope $end\n")
	fmt.Fprintf(bw, "$enddefinitions $end\n")

	ns := int64(prof.Timebase() / time.Nanosecond)
	var prev uint32
	for t := int64(0); t <= tl.End(); t++ {
		cur := tl.At(t)
		if t > 0 && cur == prev {
			continue
		}
		fmt.Fprintf(bw, "#%d\n", t*ns)
		if t == 0 {
			fmt.Fprintf(bw, "$dumpvars\n")
		}
		for i, ch := range channels {
			m := device.Mask(ch)
			if t == 0 || (cur^prev)&m != 0 {
				bit := '0'
				if cur&m != 0 {
					bit = '1'
				}
				fmt.Fprintf(bw, "%c%s\n", bit, ids[i])
			}
		}
		if t == 0 {
			fmt.Fprintf(bw, "$end\n")
		}
		prev = cur
	}
	return bw.Flush()
}

// vcdID returns the i-th short identifier from the printable range '!'..'~'.
func vcdID(i int) string {
	const first, span = '!', '~' - '!' + 1
	id := ""
	for {
		id += string(rune(first + i%span))
		i /= span
		if i == 0 {
			return id
		}
		i--
	}
}

func vcdName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		case r == '+':
			return 'p'
		case r == '-':
			return 'm'
		}
		return '_'
	}, s)
}
