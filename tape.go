package bfopt

import (
	"fmt"

	cp "github.com/jinzhu/copier"
)

// The data tape. Conceptually infinite to the right, hard-bounded at index
// 0 on the left. Cells are signed host integers; every index up to the
// high-water mark holds a defined value, zero-filled the first time it is
// reached.

var ErrTapeUnderflow error = fmt.Errorf("Tape pointer moved below zero")

type Tape struct {
	Cells   []int
	Pointer int
}

func NewTape() *Tape {
	return &Tape{Cells: make([]int, 1)}
}

// touch extends the tape so index is addressable, zero-filling every newly
// reached cell.
func (t *Tape) touch(index int) {
	for len(t.Cells) <= index {
		t.Cells = append(t.Cells, 0)
	}
}

func (t *Tape) Get() int {
	return t.Cells[t.Pointer]
}

func (t *Tape) Set(val int) {
	t.Cells[t.Pointer] = val
}

func (t *Tape) Add(delta int) {
	t.Cells[t.Pointer] += delta
}

func (t *Tape) MoveRight(places int) {
	t.Pointer += places
	t.touch(t.Pointer)
}

func (t *Tape) MoveLeft(places int) error {
	if t.Pointer-places < 0 {
		return fmt.Errorf("%w: pointer [%d] moved left [%d] places", ErrTapeUnderflow, t.Pointer, places)
	}
	t.Pointer -= places
	return nil
}

// Transfer adds the current cell's value, scaled by multiplier, to the
// cell offset places away, then zeroes the current cell. A negative
// multiplier subtracts. When the current cell is already zero nothing
// happens, matching the bracketed loop the fused instruction replaces:
// no transfer, no tape growth, no underflow check.
func (t *Tape) Transfer(offset, multiplier int) error {
	val := t.Get()
	if val == 0 {
		return nil
	}
	dest := t.Pointer + offset
	if dest < 0 {
		return fmt.Errorf("%w: transfer from pointer [%d] to cell [%d]", ErrTapeUnderflow, t.Pointer, dest)
	}
	t.touch(dest)
	t.Cells[dest] += val * multiplier
	t.Set(0)
	return nil
}

// FanOut adds the current cell's value to copies destination cells, the
// first at offset+stride, each subsequent one stride further right, then
// zeroes the current cell. Destinations are always rightward of the
// source, so no underflow is possible.
func (t *Tape) FanOut(copies, stride, offset int) {
	val := t.Get()
	if val == 0 {
		return
	}
	for i := 1; i <= copies; i++ {
		dest := t.Pointer + offset + stride*i
		t.touch(dest)
		t.Cells[dest] += val
	}
	t.Set(0)
}

func (t *Tape) Clone() *Tape {
	clone := &Tape{}
	cp.CopyWithOption(clone, t, cp.Option{DeepCopy: true})
	return clone
}

func (t *Tape) String() string {
	return fmt.Sprintf("%v @ %d", t.Cells, t.Pointer)
}
