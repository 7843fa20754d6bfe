package bfopt

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func sumCounts(counts []uint) uint {
	var total uint
	for _, c := range counts {
		total += c
	}
	return total
}

func TestUnderflowHaltsImmediately(t *testing.T) {
	result, _, err := runStream(t, Optimize(FilterToProgram("<"), OPT_NONE), nil, 0)
	if err == nil {
		t.Fatalf("Unexpected success running a single left shift at pointer 0")
	}
	if !errors.Is(err, ErrTapeUnderflow) {
		t.Errorf("Error [%v] does not wrap ErrTapeUnderflow", err)
	}
	if result.HaltReason != HALT_UNDERFLOW {
		t.Errorf("Halt reason [%s] is not [%s]", result.HaltReason, HALT_UNDERFLOW)
	}
	if result.TotalIterations != 1 {
		t.Errorf("Total iterations [%d] is not [1]; no further instructions may run", result.TotalIterations)
	}
}

func TestIterationCap(t *testing.T) {
	result, _, err := runStream(t, Optimize(FilterToProgram("+[]"), OPT_NONE), nil, 100)
	if err != nil {
		t.Fatalf("Iteration cap must be a soft stop, got error: %v", err)
	}
	if result.HaltReason != HALT_ITERATION_LIMIT {
		t.Errorf("Halt reason [%s] is not [%s]", result.HaltReason, HALT_ITERATION_LIMIT)
	}
	if result.TotalIterations != 100 {
		t.Errorf("Total iterations [%d] is not exactly [100]", result.TotalIterations)
	}
	if result.Tape.Cells[0] != 1 {
		t.Errorf("Cell [0] value [%d] does not reflect partial execution", result.Tape.Cells[0])
	}
}

func TestCountingInvariant(t *testing.T) {
	programs := []string{"+++", "+[]", "[+++]", "++++[-]", "+++++[->>+<<]"}
	for _, source := range programs {
		for _, level := range []OptLevel{OPT_NONE, OPT_BASIC, OPT_HEAVY} {
			result, _, _ := runStream(t, Optimize(FilterToProgram(source), level), nil, 50)
			if got := sumCounts(result.Counts); got != result.TotalIterations {
				t.Errorf("Program [%s] level [%s]: count sum [%d] != total iterations [%d]",
					source, level, got, result.TotalIterations)
			}
		}
	}
}

func TestSkipScannedPositionsStillCount(t *testing.T) {
	// Cell 0 is zero, so the whole body is skip-scanned. Every scanned
	// position still counts toward the profiler and the cap.
	result, _, err := runStream(t, Optimize(FilterToProgram("[+++]"), OPT_NONE), nil, 0)
	if err != nil {
		t.Fatalf("Unexpected failure calling Machine.Run(): %v", err)
	}
	if result.TotalIterations != 5 {
		t.Errorf("Total iterations [%d] is not [5]", result.TotalIterations)
	}
	for i, count := range result.Counts {
		if count != 1 {
			t.Errorf("Position [%d] count [%d] is not [1]", i, count)
		}
	}
}

func TestNestedSkip(t *testing.T) {
	// The outer skip must scan over the inner bracket pair without
	// treating its WHILE_END as the outer one.
	result, _, err := runStream(t, Optimize(FilterToProgram("[[-]+]+"), OPT_NONE), nil, 0)
	if err != nil {
		t.Fatalf("Unexpected failure calling Machine.Run(): %v", err)
	}
	if result.Tape.Cells[0] != 1 {
		t.Errorf("Cell [0] value [%d] is not [1]", result.Tape.Cells[0])
	}
	if result.HaltReason != HALT_COMPLETED {
		t.Errorf("Halt reason [%s] is not [%s]", result.HaltReason, HALT_COMPLETED)
	}
}

func TestWhileEndWithEmptyStackIsNoOp(t *testing.T) {
	result, _, err := runStream(t, Optimize(FilterToProgram("]+"), OPT_NONE), nil, 0)
	if err != nil {
		t.Fatalf("Unexpected failure calling Machine.Run(): %v", err)
	}
	if result.Tape.Cells[0] != 1 {
		t.Errorf("Cell [0] value [%d] is not [1]", result.Tape.Cells[0])
	}
	if result.TotalIterations != 2 {
		t.Errorf("Total iterations [%d] is not [2]", result.TotalIterations)
	}
}

func TestOutputEmitsBytes(t *testing.T) {
	_, out, err := runStream(t, Optimize(FilterToProgram("++++++++[>++++++++<-]>+."), OPT_HEAVY), nil, 0)
	if err != nil {
		t.Fatalf("Unexpected failure calling Machine.Run(): %v", err)
	}
	if out != "A" {
		t.Errorf("Output [%q] is not [A]", out)
	}
}

func TestInputStoredVerbatim(t *testing.T) {
	// No range clamping: values outside byte range land on the tape
	// untouched.
	result, _, err := runStream(t, Optimize(FilterToProgram(","), OPT_NONE), []int{300}, 0)
	if err != nil {
		t.Fatalf("Unexpected failure calling Machine.Run(): %v", err)
	}
	if result.Tape.Cells[0] != 300 {
		t.Errorf("Cell [0] value [%d] is not [300]", result.Tape.Cells[0])
	}
}

func TestInputExhausted(t *testing.T) {
	result, _, err := runStream(t, Optimize(FilterToProgram(",,"), OPT_NONE), []int{7}, 0)
	if err == nil {
		t.Fatalf("Unexpected success with a drained input source")
	}
	if !errors.Is(err, ErrInputExhausted) {
		t.Errorf("Error [%v] does not wrap ErrInputExhausted", err)
	}
	if result.HaltReason != HALT_INPUT_EXHAUSTED {
		t.Errorf("Halt reason [%s] is not [%s]", result.HaltReason, HALT_INPUT_EXHAUSTED)
	}
	if result.Tape.Cells[0] != 7 {
		t.Errorf("Cell [0] value [%d] is not [7]; the first read must have landed", result.Tape.Cells[0])
	}
}

func TestReaderInput(t *testing.T) {
	input := &ReaderInput{Reader: bytes.NewReader([]byte{42})}

	val, err := input.ReadValue()
	if err != nil {
		t.Fatalf("Unexpected failure calling ReaderInput.ReadValue(): %v", err)
	}
	if val != 42 {
		t.Errorf("Value [%d] is not [42]", val)
	}

	if _, err := input.ReadValue(); !errors.Is(err, ErrInputExhausted) {
		t.Errorf("Error [%v] does not wrap ErrInputExhausted", err)
	}
}

func TestTraceHookSeesExecutedInstructionsOnly(t *testing.T) {
	var frames []*TraceFrame
	var out bytes.Buffer
	machine := NewMachine(&MachineConfig{
		Output: &out,
		Trace:  func(f *TraceFrame) { frames = append(frames, f) },
	})

	// Cell 0 is zero: only the opening bracket executes, the body and
	// closing bracket are skip-scanned.
	result, err := machine.Run(context.Background(), Optimize(FilterToProgram("[+++]"), OPT_NONE))
	if err != nil {
		t.Fatalf("Unexpected failure calling Machine.Run(): %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("Trace hook ran [%d] times, not [1]", len(frames))
	}
	if frames[0].Position != 0 || frames[0].Instruction.Op != WHILE_OP {
		t.Errorf("Frame [%v] is not the opening bracket at position [0]", frames[0])
	}
	if result.TotalIterations != 5 {
		t.Errorf("Total iterations [%d] is not [5]", result.TotalIterations)
	}
}

func TestTraceFrameCellsAreASnapshot(t *testing.T) {
	var first *TraceFrame
	machine := NewMachine(&MachineConfig{
		Trace: func(f *TraceFrame) {
			if first == nil {
				first = f
			}
		},
	})

	if _, err := machine.Run(context.Background(), Optimize(FilterToProgram("+++"), OPT_NONE)); err != nil {
		t.Fatalf("Unexpected failure calling Machine.Run(): %v", err)
	}
	if first == nil || first.Cells[0] != 1 {
		t.Errorf("First frame [%v] does not hold the tape as of the first increment", first)
	}
}

func TestCancellationStillFinalizes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	machine := NewMachine(&MachineConfig{})
	result, err := machine.Run(ctx, Optimize(FilterToProgram("+[]"), OPT_NONE))
	if err == nil {
		t.Fatalf("Unexpected success with a canceled context")
	}
	if result == nil {
		t.Fatalf("Canceled run must still return a result for finalization")
	}
	if result.HaltReason != HALT_CANCELED {
		t.Errorf("Halt reason [%s] is not [%s]", result.HaltReason, HALT_CANCELED)
	}
	if sumCounts(result.Counts) != result.TotalIterations {
		t.Errorf("Count sum [%d] != total iterations [%d]", sumCounts(result.Counts), result.TotalIterations)
	}
}

func TestRunResultClone(t *testing.T) {
	machine := NewMachine(nil)
	result, err := machine.Run(context.Background(), Optimize(FilterToProgram("+++"), OPT_NONE))
	if err != nil {
		t.Fatalf("Unexpected failure calling Machine.Run(): %v", err)
	}

	clone := result.Clone()
	clone.Tape.Set(9)
	clone.Counts[0] = 99

	if result.Tape.Get() != 3 {
		t.Errorf("Mutating the clone changed the original tape %v", result.Tape)
	}
	if result.Counts[0] != 1 {
		t.Errorf("Mutating the clone changed the original counts %v", result.Counts)
	}
	if clone.TotalIterations != result.TotalIterations || clone.HaltReason != result.HaltReason {
		t.Errorf("Clone [%v] does not carry the original accounting [%v]", clone, result)
	}
}

func TestDefaultMaxIterations(t *testing.T) {
	machine := NewMachine(nil)
	if machine.Config.MaxIterations != DEFAULT_MAX_ITERATIONS {
		t.Errorf("Default MaxIterations [%d] is not [%d]", machine.Config.MaxIterations, DEFAULT_MAX_ITERATIONS)
	}
}
