// Package main provides the mc2litmus command.
// mc2litmus builds a litmus test program, replays it under a seeded
// interleaving, and checks the resulting execution witness against the
// TSO memory consistency model.
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/arch/x86/x86asm"

	"github.com/icsa-caps/mc2lib/codegen"
	"github.com/icsa-caps/mc2lib/codegen/amd64"
	"github.com/icsa-caps/mc2lib/litmus"
	mc "github.com/icsa-caps/mc2lib/memconsistency"
	"github.com/icsa-caps/mc2lib/memconsistency/model14"
)

var (
	pattern    = flag.String("pattern", "sb", "Test pattern: sb, sb+fence, mp, or random")
	seed       = flag.Int64("seed", 0, "Seed for program generation and replay interleaving")
	configPath = flag.String("config", "", "Path to run configuration JSON file (random pattern)")
	dump       = flag.Bool("dump", false, "Hex-dump the emitted code")
	disasm     = flag.Bool("disasm", false, "Disassemble the emitted code")
	verbose    = flag.Bool("v", false, "Verbose output")
)

const (
	addrX mc.Addr = 0x10
	addrY mc.Addr = 0x20
)

func main() {
	flag.Parse()

	ops, err := buildProgram()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building program: %v\n", err)
		os.Exit(1)
	}

	var ew model14.ExecWitness
	arch := &model14.ArchTSO{}
	compiler := codegen.NewCompiler(amd64.NewBackend(arch), arch, &ew)
	exec := litmus.NewExecutor(compiler, codegen.ExtractThreads(ops))

	result, err := exec.Run(*seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error replaying program: %v\n", err)
		os.Exit(1)
	}

	for _, tc := range result.Threads {
		fmt.Printf("Thread %d: %d bytes at 0x%X\n",
			tc.Pid, len(tc.Code), uint64(tc.Base))
		if *dump {
			dumpCode(tc)
		}
		if *disasm {
			if err := disasmCode(tc); err != nil {
				fmt.Fprintf(os.Stderr, "Error disassembling thread %d: %v\n",
					tc.Pid, err)
				os.Exit(1)
			}
		}
	}

	if *verbose {
		fmt.Printf("\nObservations: %d\n", len(result.Observations))
		printRelation("po", &ew.PO)
		printRelation("rf", &ew.RF)
		printRelation("co", &ew.CO)
	}

	checker := model14.NewChecker(arch, &ew)
	if err := checker.ValidExec(); err != nil {
		fmt.Printf("\nWitness is NOT TSO-consistent: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nWitness is TSO-consistent (%d events)\n", ew.Events.Size())
}

func buildProgram() ([]codegen.Op, error) {
	switch *pattern {
	case "sb":
		return litmus.StoreBuffering(addrX, addrY), nil
	case "sb+fence":
		return litmus.StoreBufferingFenced(addrX, addrY), nil
	case "mp":
		return litmus.MessagePassing(addrX, addrY), nil
	case "random":
		cfg := litmus.DefaultRunConfig()
		if *configPath != "" {
			loaded, err := litmus.LoadRunConfig(*configPath)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
		return litmus.BuildRandom(cfg, *seed)
	default:
		return nil, fmt.Errorf("unknown pattern %q", *pattern)
	}
}

func dumpCode(tc litmus.ThreadCode) {
	for i := 0; i < len(tc.Code); i += 8 {
		end := i + 8
		if end > len(tc.Code) {
			end = len(tc.Code)
		}
		fmt.Printf("  0x%X:", uint64(tc.Base)+uint64(i))
		for _, b := range tc.Code[i:end] {
			fmt.Printf(" %02X", b)
		}
		fmt.Println()
	}
}

func disasmCode(tc litmus.ThreadCode) error {
	code := tc.Code
	pc := uint64(tc.Base)
	for len(code) > 0 {
		inst, err := x86asm.Decode(code, 64)
		if err != nil {
			return fmt.Errorf("at 0x%X: %w", pc, err)
		}
		fmt.Printf("  0x%X: %s\n", pc, x86asm.GNUSyntax(inst, pc, nil))
		code = code[inst.Len:]
		pc += uint64(inst.Len)
	}
	return nil
}

func printRelation(name string, rel *mc.EventRel) {
	fmt.Printf("%s:\n", name)
	for _, edge := range rel.Edges() {
		fmt.Printf("  %s -> %s\n", edge.From, edge.To)
	}
}
