package bfopt

import (
	"log"
)

// The peephole optimizer. Rewrites a SourceProgram into an OpcodeStream via
// a fixed sequence of independent passes: move/move-multiply fusion, zero
// fusion, copy-fanout fusion, then run-length compression of whatever
// survives. Each pass only looks at bracket bodies made of bare single-step
// instructions, so a loop rewritten by an earlier pass is never re-scanned
// and idioms never match inside another idiom's parameters.

type OptLevel byte

const (
	OPT_NONE OptLevel = iota
	OPT_BASIC
	OPT_HEAVY
)

func (l OptLevel) String() string {
	switch l {
	case OPT_NONE:
		return "none"
	case OPT_BASIC:
		return "basic"
	case OPT_HEAVY:
		return "heavy"
	default:
		return "unknown"
	}
}

// ParseOptLevel maps the CLI spelling to an OptLevel.
func ParseOptLevel(s string) (OptLevel, bool) {
	switch s {
	case "none":
		return OPT_NONE, true
	case "basic":
		return OPT_BASIC, true
	case "heavy":
		return OPT_HEAVY, true
	}
	return OPT_NONE, false
}

// Optimize produces an OpcodeStream semantically equivalent to the source
// program under the machine's execution rules. OPT_NONE is a one-to-one
// translation, OPT_BASIC only run-length compresses, OPT_HEAVY runs all
// four passes.
func Optimize(program SourceProgram, level OptLevel) OpcodeStream {
	stream := make(OpcodeStream, len(program))
	for i, op := range program {
		stream[i] = NewBare(op)
	}

	switch level {
	case OPT_NONE:
		return stream
	case OPT_BASIC:
		return compressRuns(stream)
	}

	stream = fusePass(stream, matchMove)
	stream = fusePass(stream, matchZero)
	stream = fusePass(stream, matchCopy)
	if DEBUG {
		logUnrecognized(stream)
	}
	return compressRuns(stream)
}

// fusePass scans for innermost plain loops and replaces each body that
// match recognizes with the fused instruction. Loops that don't match are
// left untouched for the next pass.
func fusePass(stream OpcodeStream, match func([]Instruction) (Instruction, bool)) OpcodeStream {
	out := make(OpcodeStream, 0, len(stream))
	i := 0
	for i < len(stream) {
		if stream[i].Op == WHILE_OP {
			if end, ok := scanPlainLoop(stream, i); ok {
				if fused, ok := match(stream[i+1 : end]); ok {
					out = append(out, fused)
					i = end + 1
					continue
				}
			}
		}
		out = append(out, stream[i])
		i++
	}
	return out
}

// scanPlainLoop reports the index of the WHILE_END closing the loop that
// opens at start, provided the body consists solely of bare +, -, <, >
// instructions. Anything else (nesting, IO, an already fused instruction)
// disqualifies the loop as an idiom candidate.
func scanPlainLoop(stream OpcodeStream, start int) (int, bool) {
	for i := start + 1; i < len(stream); i++ {
		switch stream[i].Op {
		case WHILE_END_OP:
			return i, true
		case INC_OP, DEC_OP, POINTER_LEFT_OP, POINTER_RIGHT_OP:
			if stream[i].Amount != 1 {
				return 0, false
			}
		default:
			return 0, false
		}
	}
	return 0, false
}

// matchMove recognizes the balanced-shift move idiom: one decrement, a
// shift of p places in one direction, one-or-more increments (or
// decrements), and the same shift back. The decrement may come first or
// last. Direction of the fused instruction follows the side the first
// shift moves toward.
func matchMove(body []Instruction) (Instruction, bool) {
	if len(body) < 4 {
		return Instruction{}, false
	}

	inner := body
	if body[0].Op == DEC_OP {
		inner = body[1:]
	} else if body[len(body)-1].Op == DEC_OP {
		inner = body[:len(body)-1]
	} else {
		return Instruction{}, false
	}

	outKind := inner[0].Op
	if outKind != POINTER_LEFT_OP && outKind != POINTER_RIGHT_OP {
		return Instruction{}, false
	}
	backKind := POINTER_LEFT_OP
	if outKind == POINTER_LEFT_OP {
		backKind = POINTER_RIGHT_OP
	}

	places, i := takeRun(inner, 0, outKind)
	if i >= len(inner) {
		return Instruction{}, false
	}

	deltaKind := inner[i].Op
	if deltaKind != INC_OP && deltaKind != DEC_OP {
		return Instruction{}, false
	}
	multiplier, i := takeRun(inner, i, deltaKind)

	back, i := takeRun(inner, i, backKind)
	if i != len(inner) || back != places {
		return Instruction{}, false
	}

	right := outKind == POINTER_RIGHT_OP
	if deltaKind == INC_OP {
		if right {
			return NewMoveAddRight(places, multiplier), true
		}
		return NewMoveAddLeft(places, multiplier), true
	}
	if right {
		return NewMoveSubRight(places, multiplier), true
	}
	return NewMoveSubLeft(places, multiplier), true
}

// matchZero recognizes the canonical cell-clearing loop, a body of exactly
// one decrement.
func matchZero(body []Instruction) (Instruction, bool) {
	if len(body) == 1 && body[0].Op == DEC_OP {
		return NewZero(), true
	}
	return Instruction{}, false
}

// matchCopy recognizes the fan-out idiom: one decrement, then two or more
// destinations each reached by a forward shift and bumped by a single
// increment, then shifts back to the source. Destinations past the first
// must be evenly spaced; the first sits at offset+stride from the source.
func matchCopy(body []Instruction) (Instruction, bool) {
	if len(body) < 7 || body[0].Op != DEC_OP {
		return Instruction{}, false
	}

	i := 1
	var spans []int
	total := 0
	for i < len(body) && body[i].Op == POINTER_RIGHT_OP {
		span, next := takeRun(body, i, POINTER_RIGHT_OP)
		if next >= len(body) || body[next].Op != INC_OP {
			return Instruction{}, false
		}
		bumps, next := takeRun(body, next, INC_OP)
		if bumps != 1 {
			return Instruction{}, false
		}
		spans = append(spans, span)
		total += span
		i = next
	}

	if len(spans) < 2 {
		return Instruction{}, false
	}

	back, i := takeRun(body, i, POINTER_LEFT_OP)
	if i != len(body) || back != total {
		return Instruction{}, false
	}

	stride := spans[1]
	for _, span := range spans[2:] {
		if span != stride {
			return Instruction{}, false
		}
	}
	offset := spans[0] - stride
	if offset < 0 {
		return Instruction{}, false
	}

	return NewCopy(len(spans), stride, offset), true
}

// takeRun counts the contiguous bare instructions of the given kind
// starting at idx and returns the count and the index just past the run.
func takeRun(body []Instruction, idx int, kind Opcode) (int, int) {
	count := 0
	for idx < len(body) && body[idx].Op == kind {
		count++
		idx++
	}
	return count, idx
}

// compressRuns collapses maximal runs of identical bare +, -, <, >
// instructions into one parameterized instruction. Runs of length 1 stay
// bare.
func compressRuns(stream OpcodeStream) OpcodeStream {
	out := make(OpcodeStream, 0, len(stream))
	for _, ins := range stream {
		switch ins.Op {
		case INC_OP, DEC_OP, POINTER_LEFT_OP, POINTER_RIGHT_OP:
			if n := len(out); n > 0 && out[n-1].Op == ins.Op {
				out[n-1].Amount += ins.Amount
				continue
			}
		}
		out = append(out, ins)
	}
	return out
}

func logUnrecognized(stream OpcodeStream) {
	for i := 0; i < len(stream); i++ {
		if stream[i].Op != WHILE_OP {
			continue
		}
		if end, ok := scanPlainLoop(stream, i); ok {
			log.Printf("Skipping unrecognized idiom candidate [%s] at position [%d]",
				stream[i:end+1].Encode(), i)
		}
	}
}
