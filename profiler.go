package bfopt

// The profiler turns per-position execution counts into a run-length
// grouped percentage report over the encoded program. Adjacent positions
// merge while their computed percentages are exactly equal. That exactness
// is deliberate: it matches the accounting the machine produces, but large
// programs with many distinct counts will fragment into many groups.

type ProfileGroup struct {
	Percent float64
	Span    string
	Indent  int
}

// Profile groups the counts for stream into (percentage, span, indent)
// entries covering the whole program. total is the run's iteration
// counter; a zero total yields all-zero percentages. The indent is the
// bracket nesting depth at the group's first instruction, for display
// only; it never affects which positions merge.
func Profile(counts []uint, stream OpcodeStream, total uint) []ProfileGroup {
	if len(stream) == 0 {
		return nil
	}

	groups := []ProfileGroup{}
	depth := 0
	for i, ins := range stream {
		indent := depth
		switch ins.Op {
		case WHILE_OP:
			depth++
		case WHILE_END_OP:
			// An unmatched WHILE_END is a no-op for the machine, so the
			// depth never goes below zero here either.
			if depth > 0 {
				depth--
			}
			indent = depth
		}

		var percent float64
		if total > 0 && i < len(counts) {
			percent = float64(counts[i]) / float64(total) * 100
		}

		if n := len(groups); n > 0 && groups[n-1].Percent == percent {
			groups[n-1].Span += ins.Token()
			continue
		}
		groups = append(groups, ProfileGroup{Percent: percent, Span: ins.Token(), Indent: indent})
	}

	return groups
}
