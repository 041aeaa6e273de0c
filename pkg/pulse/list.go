package pulse

import (
	"fmt"
	"strings"

	"gopulse/pkg/timing"
)

// List renders the current generation one pulse per line, in the order
// experiment headers record it.
func (pr *Program) List() string {
	var b strings.Builder
	for _, p := range pr.current {
		fmt.Fprintf(&b, "%s: %s, start %s, length %s, delta_start %s, length_increment %s",
			p.Name,
			pr.profile.Label(p.Channel),
			timing.FormatDuration(p.Start),
			timing.FormatDuration(p.Length),
			timing.FormatDuration(p.DeltaStart),
			timing.FormatDuration(p.LengthIncrement),
		)
		if len(p.Phases) > 0 {
			fmt.Fprintf(&b, ", phase %s [%s]", p.Phase(), strings.Join(p.Phases, " "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
