package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"nickandperla.net/bfopt"
)

var toolConfigPath *string = flag.String("config", "./config.toml", "The config file for bfopt tools to use. Defaults to './config.toml'")

var (
	programFile   = flag.String("file", "", "Path to a program source file")
	programText   = flag.String("program", "", "Program source as a literal argument")
	optLevel      = flag.String("opt", "heavy", "Optimization level: none, basic, or heavy")
	rawMode       = flag.Bool("raw", false, "Treat the input as an already encoded opcode line; skips the optimizer")
	compileOnly   = flag.Bool("compile", false, "Write the encoded opcode line to <file>.raw and exit")
	maxIterations = flag.Uint("max", 0, "Iteration cap override (0 = config value or the built-in default)")
	profileRun    = flag.Bool("profile", false, "Print the execution profile after the run")
	traceRun      = flag.Bool("trace", false, "Render the tape after every executed instruction")
	traceDelay    = flag.Duration("delay", 250*time.Millisecond, "Pause between trace frames")
	saveName      = flag.String("save", "", "Persist the compiled program and run record under this name (needs [persistence] in the config)")
)

func main() {
	flag.Parse()
	log.SetOutput(os.Stderr)
	log.SetFlags(0)

	toolConfig := loadConfig(*toolConfigPath)

	text := loadSource()
	stream := buildStream(text)

	if *compileOnly {
		outPath := "program.raw"
		if len(*programFile) > 0 {
			outPath = *programFile + ".raw"
		}
		if err := os.WriteFile(outPath, []byte(stream.Encode()), 0644); err != nil {
			log.Fatalf("Failed to write compiled program to [%s]: %v", outPath, err)
		}
		log.Printf("Wrote [%s] (%d instructions)", outPath, len(stream))
		return
	}

	mc := toolConfig.Machine
	if *maxIterations > 0 {
		mc.MaxIterations = *maxIterations
	}
	mc.Input = &bfopt.ReaderInput{Reader: bufio.NewReader(os.Stdin)}

	var outBuf bytes.Buffer
	mc.Output = io.MultiWriter(os.Stdout, &outBuf)

	if *traceRun {
		mc.Trace = renderFrame
	}

	machine := bfopt.NewMachine(mc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := machine.Run(ctx, stream)
	if err != nil {
		log.Printf("Run halted: %v", err)
	}

	// Finalization happens regardless of how the run ended, interrupt
	// included: tape snapshot first, then the profile if asked for.
	fmt.Printf("\nHALT: %s after %d iterations\n", result.HaltReason, result.TotalIterations)
	fmt.Printf("TAPE: %s\n", result.Tape)

	if *profileRun {
		printProfile(result, stream)
	}

	persistRun(toolConfig, text, stream, result, outBuf.Bytes())
}

func loadConfig(path string) *bfopt.ToolConfig {
	if _, err := os.Stat(path); err != nil {
		return &bfopt.ToolConfig{Machine: &bfopt.MachineConfig{}}
	}
	toolConfig, err := bfopt.LoadToolConfig(path)
	if err != nil {
		log.Fatalf("Unable to load bfopt config: %v", err)
	}
	return toolConfig
}

func loadSource() string {
	if len(*programFile) > 0 {
		raw, err := os.ReadFile(*programFile)
		if err != nil {
			log.Fatalf("Unable to read program file [%s]: %v", *programFile, err)
		}
		return string(raw)
	}
	if len(*programText) > 0 {
		return *programText
	}
	if flag.NArg() > 0 {
		return flag.Arg(0)
	}
	log.Fatalf("No program given. Use -file, -program, or a positional argument.")
	return ""
}

func buildStream(text string) bfopt.OpcodeStream {
	if *rawMode {
		stream, err := bfopt.Decode(strings.TrimSpace(text))
		if err != nil {
			log.Fatalf("Failed to decode raw program: %v", err)
		}
		return stream
	}

	level, ok := bfopt.ParseOptLevel(*optLevel)
	if !ok {
		log.Fatalf("Unknown optimization level [%s]. Use none, basic, or heavy.", *optLevel)
	}
	return bfopt.Optimize(bfopt.FilterToProgram(text), level)
}

func printProfile(result *bfopt.RunResult, stream bfopt.OpcodeStream) {
	fmt.Println("PROFILE:")
	for _, group := range bfopt.Profile(result.Counts, stream, result.TotalIterations) {
		fmt.Printf("%7.3f%% %s%s\n", group.Percent, strings.Repeat("  ", group.Indent), group.Span)
	}
}

func persistRun(toolConfig *bfopt.ToolConfig, source string, stream bfopt.OpcodeStream, result *bfopt.RunResult, output []byte) {
	if len(*saveName) == 0 {
		return
	}
	if toolConfig.Persistence == nil {
		log.Fatalf("-save given but the config has no [persistence] table")
	}

	persist, err := bfopt.NewPersistence(toolConfig.Persistence)
	if err != nil {
		log.Fatalf("Failed to create or initialize Persistence: %v", err)
	}
	defer persist.Shutdown()

	programID, err := persist.SaveProgram(&bfopt.CompiledProgram{
		Name:    *saveName,
		Source:  bfopt.FilterToProgram(source).String(),
		Level:   *optLevel,
		Opcodes: stream.Encode(),
	})
	if err != nil {
		log.Fatalf("Failed to persist compiled program: %v", err)
	}

	if _, err := persist.RecordRun(programID, result, output); err != nil {
		log.Fatalf("Failed to persist run record: %v", err)
	}

	if stats, err := persist.QueryRunStats(programID); err == nil {
		log.Printf("Saved program [%s] id [%d]. Runs recorded: %d, avg iterations: %.1f",
			*saveName, programID, stats.RunCount, stats.AvgIterations)
	}
}

func renderFrame(frame *bfopt.TraceFrame) {
	var sb strings.Builder
	for i, cell := range frame.Cells {
		if i == frame.Pointer {
			sb.WriteString(fmt.Sprintf("[%3d]", cell))
		} else {
			sb.WriteString(fmt.Sprintf(" %3d ", cell))
		}
	}
	fmt.Fprintf(os.Stderr, "%s  %s\n", sb.String(), frame.Instruction.Token())
	time.Sleep(*traceDelay)
}
