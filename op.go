package bfopt

// The eight OPs of the source language. Everything else in a raw program is
// commentary and gets dropped by FilterToProgram. The optimizer and machine
// never see anything outside this set.

type OP byte

const (
	OP_POINTER_LEFT  = OP('<')
	OP_POINTER_RIGHT = OP('>')
	OP_INC           = OP('+')
	OP_DEC           = OP('-')
	OP_WHILE         = OP('[')
	OP_WHILE_END     = OP(']')
	OP_OUTPUT        = OP('.')
	OP_INPUT         = OP(',')
)

var OP_SET = [...]OP{
	OP_POINTER_LEFT,
	OP_POINTER_RIGHT,
	OP_INC,
	OP_DEC,
	OP_WHILE,
	OP_WHILE_END,
	OP_OUTPUT,
	OP_INPUT,
}

// A SourceProgram is the filtered symbol sequence. Built once, never
// mutated afterward.
type SourceProgram []OP

func IsOP(b byte) bool {
	switch OP(b) {
	case OP_POINTER_LEFT, OP_POINTER_RIGHT, OP_INC, OP_DEC,
		OP_WHILE, OP_WHILE_END, OP_OUTPUT, OP_INPUT:
		return true
	}
	return false
}

// FilterToProgram reduces raw program text to the ordered sequence of
// valid OPs, discarding comments and whitespace.
func FilterToProgram(raw string) SourceProgram {
	program := make(SourceProgram, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if IsOP(raw[i]) {
			program = append(program, OP(raw[i]))
		}
	}
	return program
}

func (p SourceProgram) String() string {
	buf := make([]byte, len(p))
	for i, op := range p {
		buf[i] = byte(op)
	}
	return string(buf)
}
