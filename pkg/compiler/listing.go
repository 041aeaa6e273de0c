package compiler

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	opContinue = "CONTINUE"
	opBranch   = "BRANCH"

	// branchTarget labels the first instruction; the closing delay jumps to it.
	branchTarget = "start"
)

// FormatListing writes instrs one per line in the form the board's
// programming interface logs them:
//
//	ON | 0x1, CONTINUE, 0, 0x64 ; start=0
//	ON | 0x0, BRANCH, start, 0x384 ; start=100
func FormatListing(w io.Writer, instrs []Instruction) error {
	bw := bufio.NewWriter(w)
	for i, in := range instrs {
		op, data := opContinue, "0"
		if i == len(instrs)-1 {
			op, data = opBranch, branchTarget
		}
		if _, err := fmt.Fprintf(bw, "ON | 0x%X, %s, %s, 0x%X ; start=%d\n", in.Mask, op, data, in.Duration, in.Start); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Listing returns FormatListing output as a string.
func Listing(instrs []Instruction) string {
	var b strings.Builder
	_ = FormatListing(&b, instrs)
	return b.String()
}

type listingLine struct {
	lineNo   int
	mask     uint32
	op       string
	data     string
	duration int64
}

// parseListingLine splits one listing line, ignoring case. Blank and
// comment-only lines return ok == false.
func parseListingLine(raw string, lineNo int) (listingLine, bool, error) {
	line := raw
	if idx := strings.Index(line, ";"); idx >= 0 {
		line = line[:idx]
	}
	line = strings.ToUpper(strings.TrimSpace(line))
	if line == "" {
		return listingLine{}, false, nil
	}

	rest, ok := strings.CutPrefix(line, "ON")
	if !ok {
		return listingLine{}, false, fmt.Errorf("line %d: expected ON flag, got %q", lineNo, line)
	}
	rest = strings.TrimSpace(rest)
	rest, ok = strings.CutPrefix(rest, "|")
	if !ok {
		return listingLine{}, false, fmt.Errorf("line %d: expected '|' after ON", lineNo)
	}

	parts := strings.Split(rest, ",")
	if len(parts) != 4 {
		return listingLine{}, false, fmt.Errorf("line %d: expected 4 operands, got %d", lineNo, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	mask, err := strconv.ParseUint(parts[0], 0, 32)
	if err != nil {
		return listingLine{}, false, fmt.Errorf("line %d: invalid mask %q", lineNo, parts[0])
	}
	dur, err := strconv.ParseInt(parts[3], 0, 64)
	if err != nil || dur <= 0 {
		return listingLine{}, false, fmt.Errorf("line %d: invalid duration %q", lineNo, parts[3])
	}
	op := parts[1]
	if op != opContinue && op != opBranch {
		return listingLine{}, false, fmt.Errorf("line %d: unknown flow control %q", lineNo, parts[1])
	}

	return listingLine{lineNo: lineNo, mask: uint32(mask), op: op, data: parts[2], duration: dur}, true, nil
}

// ParseListing reads a listing written by FormatListing back into
// instructions. Start ticks are recomputed from the durations; the listing
// must end in exactly one BRANCH with a zero mask.
func ParseListing(text string) ([]Instruction, error) {
	var out []Instruction
	var t int64
	branched := false

	for i, raw := range strings.Split(text, "\n") {
		l, ok, err := parseListingLine(raw, i+1)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if branched {
			return nil, fmt.Errorf("line %d: instruction after BRANCH", l.lineNo)
		}
		if l.op == opBranch {
			if l.mask != 0 {
				return nil, fmt.Errorf("line %d: closing BRANCH must have mask 0x0", l.lineNo)
			}
			branched = true
		}
		out = append(out, Instruction{Mask: l.mask, Start: t, Duration: l.duration})
		t += l.duration
	}

	if !branched {
		return nil, fmt.Errorf("listing has no closing BRANCH")
	}
	return out, nil
}
