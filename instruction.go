package bfopt

import (
	"fmt"
	str "strings"
)

// Opcodes are the machine-level instruction set. The first eight mirror the
// source OPs one-to-one; the rest only ever come out of the optimizer (or a
// decoded raw program).

type Opcode byte

const (
	INC_OP Opcode = iota
	DEC_OP
	POINTER_LEFT_OP
	POINTER_RIGHT_OP
	MOVE_ADD_LEFT_OP
	MOVE_ADD_RIGHT_OP
	MOVE_SUB_LEFT_OP
	MOVE_SUB_RIGHT_OP
	ZERO_OP
	COPY_OP
	WHILE_OP
	WHILE_END_OP
	OUTPUT_OP
	INPUT_OP
)

// Instruction is a tagged variant. Which parameter fields are meaningful
// depends on Op:
//
//	INC/DEC                  Amount (cell delta)
//	POINTER_LEFT/RIGHT       Amount (places)
//	MOVE_ADD/MOVE_SUB        Places, Amount (multiplier, always >= 1)
//	COPY                     Copies, Stride, Offset
//	ZERO/WHILE/WHILE_END/
//	OUTPUT/INPUT             none
//
// Unused fields are zero. Parameters are non-negative.
type Instruction struct {
	Op     Opcode
	Amount int
	Places int
	Copies int
	Stride int
	Offset int
}

// An OpcodeStream is immutable once built, either by the optimizer or by
// Decode in raw mode.
type OpcodeStream []Instruction

func NewInc(amount int) Instruction { return Instruction{Op: INC_OP, Amount: amount} }
func NewDec(amount int) Instruction { return Instruction{Op: DEC_OP, Amount: amount} }
func NewPointerLeft(places int) Instruction {
	return Instruction{Op: POINTER_LEFT_OP, Amount: places}
}
func NewPointerRight(places int) Instruction {
	return Instruction{Op: POINTER_RIGHT_OP, Amount: places}
}

func NewMoveAddLeft(places, multiplier int) Instruction {
	return Instruction{Op: MOVE_ADD_LEFT_OP, Places: places, Amount: multiplier}
}
func NewMoveAddRight(places, multiplier int) Instruction {
	return Instruction{Op: MOVE_ADD_RIGHT_OP, Places: places, Amount: multiplier}
}
func NewMoveSubLeft(places, multiplier int) Instruction {
	return Instruction{Op: MOVE_SUB_LEFT_OP, Places: places, Amount: multiplier}
}
func NewMoveSubRight(places, multiplier int) Instruction {
	return Instruction{Op: MOVE_SUB_RIGHT_OP, Places: places, Amount: multiplier}
}

func NewZero() Instruction { return Instruction{Op: ZERO_OP} }

func NewCopy(copies, stride, offset int) Instruction {
	return Instruction{Op: COPY_OP, Copies: copies, Stride: stride, Offset: offset}
}

func NewWhile() Instruction    { return Instruction{Op: WHILE_OP} }
func NewWhileEnd() Instruction { return Instruction{Op: WHILE_END_OP} }
func NewOutput() Instruction   { return Instruction{Op: OUTPUT_OP} }
func NewInput() Instruction    { return Instruction{Op: INPUT_OP} }

// NewBare maps a source OP to its single-step instruction.
func NewBare(op OP) Instruction {
	switch op {
	case OP_INC:
		return NewInc(1)
	case OP_DEC:
		return NewDec(1)
	case OP_POINTER_LEFT:
		return NewPointerLeft(1)
	case OP_POINTER_RIGHT:
		return NewPointerRight(1)
	case OP_WHILE:
		return NewWhile()
	case OP_WHILE_END:
		return NewWhileEnd()
	case OP_OUTPUT:
		return NewOutput()
	case OP_INPUT:
		return NewInput()
	default:
		panic(fmt.Sprintf("Unknown OP [%c] encountered!", op))
	}
}

// Token renders the instruction in the single-line text encoding. Bare
// single-step instructions render as their source symbol; parameterized
// forms carry a leading decimal (or underscore-joined decimals) before the
// instruction letter.
func (i Instruction) Token() string {
	switch i.Op {
	case INC_OP:
		return repeatToken(i.Amount, "+")
	case DEC_OP:
		return repeatToken(i.Amount, "-")
	case POINTER_LEFT_OP:
		return repeatToken(i.Amount, "<")
	case POINTER_RIGHT_OP:
		return repeatToken(i.Amount, ">")
	case MOVE_ADD_LEFT_OP:
		return moveToken(i.Amount, i.Places, "a")
	case MOVE_ADD_RIGHT_OP:
		return moveToken(i.Amount, i.Places, "A")
	case MOVE_SUB_LEFT_OP:
		return moveToken(i.Amount, i.Places, "s")
	case MOVE_SUB_RIGHT_OP:
		return moveToken(i.Amount, i.Places, "S")
	case ZERO_OP:
		return "Z"
	case COPY_OP:
		return fmt.Sprintf("%d_%d_%dC", i.Copies, i.Stride, i.Offset)
	case WHILE_OP:
		return "["
	case WHILE_END_OP:
		return "]"
	case OUTPUT_OP:
		return "."
	case INPUT_OP:
		return ","
	default:
		panic(fmt.Sprintf("Unknown Opcode [%d] encountered!", i.Op))
	}
}

func repeatToken(amount int, letter string) string {
	if amount == 1 {
		return letter
	}
	return fmt.Sprintf("%d%s", amount, letter)
}

func moveToken(multiplier, places int, letter string) string {
	if multiplier == 1 {
		return fmt.Sprintf("%d%s", places, letter)
	}
	return fmt.Sprintf("%d_%d%s", multiplier, places, letter)
}

// Encode renders the whole stream as one line of concatenated tokens. The
// result is what --compile persists and what Decode accepts back.
func (s OpcodeStream) Encode() string {
	var sb str.Builder
	for _, ins := range s {
		sb.WriteString(ins.Token())
	}
	return sb.String()
}

func (s OpcodeStream) String() string {
	return s.Encode()
}
