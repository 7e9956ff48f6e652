// Command fibervm spawns a single fiber, loads a small demo program
// into it, and runs it to completion, optionally hex-dumping the
// resulting arena state.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/pedramcode/fibers/internal/hexutil"
	"github.com/pedramcode/fibers/internal/machine"
	"github.com/pedramcode/fibers/internal/opcode"
	"github.com/pedramcode/fibers/internal/program"
)

const defaultArenaSize = 16 * 1024 * 1024

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "fibervm:", err)
		os.Exit(1)
	}
}

func run(args []string, out *os.File) error {
	fs := flag.NewFlagSet("fibervm", flag.ExitOnError)
	arenaSize := fs.Uint64("arena-size", envArenaSize(), "size in bytes of the backing memory arena")
	dump := fs.Bool("hexdump", false, "hex dump the arena after execution")
	verbose := fs.Bool("v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	m := machine.New(machine.Config{ArenaSize: *arenaSize, Logger: logger})

	id, err := m.Spawn()
	if err != nil {
		return fmt.Errorf("spawn fiber: %w", err)
	}

	demo := program.New().
		Push(65).
		Push(66).
		Add().
		Pop(opcode.R0).
		Hlt()

	if err := m.WriteBytecodes(id, demo.Pairs()); err != nil {
		return fmt.Errorf("write bytecode: %w", err)
	}

	errs, err := m.Execute(context.Background())
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	if fiberErr, ok := errs[id]; ok {
		return fmt.Errorf("fiber %d: %w", id, fiberErr)
	}

	r0, err := m.Register(id, opcode.R0)
	if err != nil {
		return fmt.Errorf("read R0: %w", err)
	}
	fmt.Fprintf(out, "fiber %d halted, R0 = %d\n", id, r0)

	if *dump {
		if err := hexutil.Dump(out, 0, m.Arena().Raw()); err != nil {
			return fmt.Errorf("hex dump: %w", err)
		}
	}
	return nil
}

func envArenaSize() uint64 {
	if v := os.Getenv("FIBERVM_ARENA_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultArenaSize
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}
