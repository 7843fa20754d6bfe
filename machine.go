package bfopt

import (
	"context"
	"errors"
	"fmt"
	"io"

	cp "github.com/jinzhu/copier"
)

var ErrInputExhausted error = fmt.Errorf("Input source has no more data")

type HaltReason byte

const (
	HALT_COMPLETED HaltReason = iota
	HALT_ITERATION_LIMIT
	HALT_UNDERFLOW
	HALT_INPUT_EXHAUSTED
	HALT_CANCELED
	HALT_FAULT
)

func (h HaltReason) String() string {
	switch h {
	case HALT_COMPLETED:
		return "completed"
	case HALT_ITERATION_LIMIT:
		return "iteration limit reached"
	case HALT_UNDERFLOW:
		return "tape underflow"
	case HALT_INPUT_EXHAUSTED:
		return "input exhausted"
	case HALT_CANCELED:
		return "canceled"
	case HALT_FAULT:
		return "machine fault"
	default:
		return "unknown"
	}
}

// InputSource feeds the INPUT instruction. The machine never guesses a
// default value; a drained source halts the run.
type InputSource interface {
	ReadValue() (int, error)
}

// SliceInput serves a fixed sequence of values.
type SliceInput struct {
	Values []int
	next   int
}

func (s *SliceInput) ReadValue() (int, error) {
	if s.next >= len(s.Values) {
		return 0, ErrInputExhausted
	}
	val := s.Values[s.next]
	s.next++
	return val, nil
}

// ReaderInput serves one byte per read from an io.Reader.
type ReaderInput struct {
	Reader io.Reader
}

func (r *ReaderInput) ReadValue() (int, error) {
	var buf [1]byte
	n, err := r.Reader.Read(buf[:])
	if n == 1 {
		return int(buf[0]), nil
	}
	if err == nil || err == io.EOF {
		return 0, ErrInputExhausted
	}
	return 0, err
}

// TraceFrame is the snapshot handed to a TraceHook once per executed
// (never skip-scanned) instruction. Cells is a copy; hooks may hold it.
type TraceFrame struct {
	Position    int
	Instruction Instruction
	Cells       []int
	Pointer     int
	Iteration   uint
}

type TraceHook func(*TraceFrame)

type MachineConfig struct {
	MaxIterations uint        `toml:"max_iterations"`
	Input         InputSource `toml:"-"`
	Output        io.Writer   `toml:"-"`
	Trace         TraceHook   `toml:"-"`
}

// ExecutionState owns everything mutable about one run: tape, instruction
// pointer, while stack, counters. Created by Run, discarded when it
// returns. Nothing else mutates it.
type ExecutionState struct {
	Tape       *Tape
	Position   int
	WhileStack []int
	SkipDepth  int
	Iterations uint
	Counts     []uint
}

const WHILE_STACK_CAP = 10

func NewExecutionState(programLen int) *ExecutionState {
	return &ExecutionState{
		Tape:       NewTape(),
		WhileStack: make([]int, 0, WHILE_STACK_CAP),
		Counts:     make([]uint, programLen),
	}
}

type RunResult struct {
	Tape            *Tape
	TotalIterations uint
	HaltReason      HaltReason
	Counts          []uint
}

func (r *RunResult) Clone() *RunResult {
	clone := &RunResult{}
	cp.CopyWithOption(clone, r, cp.Option{DeepCopy: true})
	return clone
}

type Machine struct {
	Config *MachineConfig
}

func NewMachine(mc *MachineConfig) *Machine {
	if mc == nil {
		mc = &MachineConfig{}
	}
	if mc.MaxIterations == 0 {
		mc.MaxIterations = DEFAULT_MAX_ITERATIONS
	}
	if mc.Input == nil {
		mc.Input = &SliceInput{}
	}
	if mc.Output == nil {
		mc.Output = io.Discard
	}
	return &Machine{Config: mc}
}

// Run executes the stream against a fresh ExecutionState. Every fetch
// increments the per-position count and the global iteration counter,
// including fetches that only scan over a skipped loop body; the profiler
// depends on that. The returned RunResult is valid even when err is
// non-nil, so callers can always report the final tape and counts.
func (m *Machine) Run(ctx context.Context, stream OpcodeStream) (*RunResult, error) {
	state := NewExecutionState(len(stream))
	reason := HALT_COMPLETED
	var haltErr error

FETCH:
	for state.Position < len(stream) {
		if state.Iterations >= m.Config.MaxIterations {
			reason = HALT_ITERATION_LIMIT
			break
		}

		select {
		case <-ctx.Done():
			reason = HALT_CANCELED
			haltErr = ctx.Err()
			break FETCH
		default:
		}

		state.Counts[state.Position]++
		state.Iterations++

		if state.SkipDepth > 0 {
			switch stream[state.Position].Op {
			case WHILE_OP:
				state.SkipDepth++
			case WHILE_END_OP:
				state.SkipDepth--
			}
			state.Position++
			continue
		}

		ins := stream[state.Position]
		advance, err := m.execute(state, ins)
		if err != nil {
			switch {
			case errors.Is(err, ErrTapeUnderflow):
				reason = HALT_UNDERFLOW
			case errors.Is(err, ErrInputExhausted):
				reason = HALT_INPUT_EXHAUSTED
			default:
				reason = HALT_FAULT
			}
			haltErr = err
			break
		}

		if m.Config.Trace != nil {
			m.Config.Trace(makeFrame(state, ins))
		}

		if advance {
			state.Position++
		}
	}

	result := &RunResult{
		Tape:            state.Tape,
		TotalIterations: state.Iterations,
		HaltReason:      reason,
		Counts:          state.Counts,
	}
	return result, haltErr
}

// execute performs one instruction. It reports whether the instruction
// pointer should advance afterward; a WHILE_END that jumped already moved
// it.
func (m *Machine) execute(state *ExecutionState, ins Instruction) (bool, error) {
	switch ins.Op {
	case INC_OP:
		state.Tape.Add(ins.Amount)
	case DEC_OP:
		state.Tape.Add(-ins.Amount)
	case POINTER_RIGHT_OP:
		state.Tape.MoveRight(ins.Amount)
	case POINTER_LEFT_OP:
		if err := state.Tape.MoveLeft(ins.Amount); err != nil {
			return false, fmt.Errorf("POINTER_LEFT at position [%d] failed: %w", state.Position, err)
		}
	case MOVE_ADD_RIGHT_OP:
		if err := state.Tape.Transfer(ins.Places, ins.Amount); err != nil {
			return false, fmt.Errorf("MOVE_ADD_RIGHT at position [%d] failed: %w", state.Position, err)
		}
	case MOVE_ADD_LEFT_OP:
		if err := state.Tape.Transfer(-ins.Places, ins.Amount); err != nil {
			return false, fmt.Errorf("MOVE_ADD_LEFT at position [%d] failed: %w", state.Position, err)
		}
	case MOVE_SUB_RIGHT_OP:
		if err := state.Tape.Transfer(ins.Places, -ins.Amount); err != nil {
			return false, fmt.Errorf("MOVE_SUB_RIGHT at position [%d] failed: %w", state.Position, err)
		}
	case MOVE_SUB_LEFT_OP:
		if err := state.Tape.Transfer(-ins.Places, -ins.Amount); err != nil {
			return false, fmt.Errorf("MOVE_SUB_LEFT at position [%d] failed: %w", state.Position, err)
		}
	case ZERO_OP:
		state.Tape.Set(0)
	case COPY_OP:
		state.Tape.FanOut(ins.Copies, ins.Stride, ins.Offset)
	case WHILE_OP:
		if state.Tape.Get() != 0 {
			state.WhileStack = append(state.WhileStack, state.Position)
		} else {
			state.SkipDepth = 1
		}
	case WHILE_END_OP:
		// Unconditional jump back to the opening bracket so its
		// condition is re-evaluated. With an empty stack this is a
		// no-op, not an error.
		if n := len(state.WhileStack); n > 0 {
			state.Position = state.WhileStack[n-1]
			state.WhileStack = state.WhileStack[:n-1]
			return false, nil
		}
	case OUTPUT_OP:
		if _, err := m.Config.Output.Write([]byte{byte(state.Tape.Get())}); err != nil {
			return false, fmt.Errorf("OUTPUT at position [%d] failed: %w", state.Position, err)
		}
	case INPUT_OP:
		val, err := m.Config.Input.ReadValue()
		if err != nil {
			return false, fmt.Errorf("INPUT at position [%d] failed: %w", state.Position, err)
		}
		state.Tape.Set(val)
	default:
		panic(fmt.Sprintf("Unknown Opcode [%d] encountered!", ins.Op))
	}
	return true, nil
}

func makeFrame(state *ExecutionState, ins Instruction) *TraceFrame {
	frame := &TraceFrame{
		Position:    state.Position,
		Instruction: ins,
		Pointer:     state.Tape.Pointer,
		Iteration:   state.Iterations,
	}
	cp.CopyWithOption(&frame.Cells, &state.Tape.Cells, cp.Option{DeepCopy: true})
	return frame
}
