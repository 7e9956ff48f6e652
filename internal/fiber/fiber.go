// Package fiber implements a single cooperatively scheduled execution
// context. Every piece of a Fiber's state — its id, ten registers, flag
// word, run state, stack, and text/data sections — is an Arena-backed
// Pointer; the Fiber struct itself holds no interpreter-side state.
package fiber

import (
	"github.com/pedramcode/fibers/internal/arena"
	"github.com/pedramcode/fibers/internal/opcode"
	"github.com/pedramcode/fibers/internal/section"
	"github.com/pedramcode/fibers/internal/splitmix64"
	"github.com/pedramcode/fibers/internal/vmerr"
)

// State is a fiber's run state, stored as a single byte in the arena.
type State uint8

const (
	Running State = 0
	Halted  State = 1
	Blocked State = 2
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Halted:
		return "Halted"
	case Blocked:
		return "Blocked"
	default:
		return "Invalid"
	}
}

// initialStackSize is the stack region's size at fiber construction.
const initialStackSize = 4 * 1024

// maxStackSize is the hard cap spec'd for stack growth; exceeding it
// raises StackOverflow.
const maxStackSize = 256 * 1024

// stackGrowthStep is how much the stack grows by each time it's full.
const stackGrowthStep = 64

type registers struct {
	pc, sp, r0, r1, r2, r3, r4, r5, r6, r7 arena.Pointer
}

// Fiber bundles the Arena-backed state of one execution context: an id,
// ten registers, a flag byte, a state byte, a growable stack, and a
// text (code) and data Section.
type Fiber struct {
	id    arena.Pointer
	regs  registers
	flag  arena.Pointer
	state arena.Pointer
	stack arena.Pointer
	Text  section.Section
	Data  section.Section
}

// New allocates every Pointer a Fiber owns, zeroes the flag word, sets
// PC=0 and SP=0, sets state=Running, and assigns a random id unique
// against existing. On any allocation failure, Pointers already
// acquired are released before the error is returned.
func New(mem *arena.Arena, rng *splitmix64.Source, existing func(id uint64) bool) (*Fiber, error) {
	var acquired []arena.Pointer
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			_ = mem.Deallocate(acquired[i])
		}
	}
	alloc := func(size uint64) (arena.Pointer, error) {
		p, err := mem.Allocate(size)
		if err != nil {
			release()
			return arena.Pointer{}, err
		}
		acquired = append(acquired, p)
		return p, nil
	}

	f := &Fiber{}

	var err error
	if f.flag, err = alloc(1); err != nil {
		return nil, err
	}
	if f.regs.pc, err = alloc(8); err != nil {
		return nil, err
	}
	if f.regs.sp, err = alloc(8); err != nil {
		return nil, err
	}
	if f.regs.r0, err = alloc(8); err != nil {
		return nil, err
	}
	if f.regs.r1, err = alloc(8); err != nil {
		return nil, err
	}
	if f.regs.r2, err = alloc(8); err != nil {
		return nil, err
	}
	if f.regs.r3, err = alloc(8); err != nil {
		return nil, err
	}
	if f.regs.r4, err = alloc(8); err != nil {
		return nil, err
	}
	if f.regs.r5, err = alloc(8); err != nil {
		return nil, err
	}
	if f.regs.r6, err = alloc(8); err != nil {
		return nil, err
	}
	if f.regs.r7, err = alloc(8); err != nil {
		return nil, err
	}
	if f.state, err = alloc(1); err != nil {
		return nil, err
	}
	if f.stack, err = alloc(initialStackSize); err != nil {
		return nil, err
	}
	if f.id, err = alloc(8); err != nil {
		return nil, err
	}

	textSec, err := section.New(mem)
	if err != nil {
		release()
		return nil, err
	}
	acquired = append(acquired, textSec.DataPointer())
	dataSec, err := section.New(mem)
	if err != nil {
		_ = textSec.Free(mem)
		release()
		return nil, err
	}
	f.Text = textSec
	f.Data = dataSec

	if err := mem.WriteU64(f.regs.pc.Address, 0); err != nil {
		release()
		return nil, err
	}
	if err := mem.WriteU64(f.regs.sp.Address, 0); err != nil {
		release()
		return nil, err
	}
	if err := mem.WriteU8(f.state.Address, uint8(Running)); err != nil {
		release()
		return nil, err
	}

	id := rng.Next()
	for existing != nil && existing(id) {
		id = rng.Next()
	}
	if err := mem.WriteU64(f.id.Address, id); err != nil {
		release()
		return nil, err
	}

	return f, nil
}

// ID reads the fiber's id.
func (f *Fiber) ID(mem *arena.Arena) (uint64, error) {
	return mem.ReadU64(f.id.Address)
}

// Kill deallocates every Pointer the Fiber owns, in the reverse order
// they were acquired in New: data section, text section, id, stack,
// state, registers (r7..r0, sp, pc), flag.
func (f *Fiber) Kill(mem *arena.Arena) error {
	steps := []func() error{
		func() error { return f.Data.Free(mem) },
		func() error { return f.Text.Free(mem) },
		func() error { return mem.Deallocate(f.id) },
		func() error { return mem.Deallocate(f.stack) },
		func() error { return mem.Deallocate(f.state) },
		func() error { return mem.Deallocate(f.regs.r7) },
		func() error { return mem.Deallocate(f.regs.r6) },
		func() error { return mem.Deallocate(f.regs.r5) },
		func() error { return mem.Deallocate(f.regs.r4) },
		func() error { return mem.Deallocate(f.regs.r3) },
		func() error { return mem.Deallocate(f.regs.r2) },
		func() error { return mem.Deallocate(f.regs.r1) },
		func() error { return mem.Deallocate(f.regs.r0) },
		func() error { return mem.Deallocate(f.regs.sp) },
		func() error { return mem.Deallocate(f.regs.pc) },
		func() error { return mem.Deallocate(f.flag) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fiber) regPointer(reg opcode.Reg) (arena.Pointer, error) {
	switch reg {
	case opcode.R0:
		return f.regs.r0, nil
	case opcode.R1:
		return f.regs.r1, nil
	case opcode.R2:
		return f.regs.r2, nil
	case opcode.R3:
		return f.regs.r3, nil
	case opcode.R4:
		return f.regs.r4, nil
	case opcode.R5:
		return f.regs.r5, nil
	case opcode.R6:
		return f.regs.r6, nil
	case opcode.R7:
		return f.regs.r7, nil
	case opcode.PC:
		return f.regs.pc, nil
	case opcode.SP:
		return f.regs.sp, nil
	default:
		return arena.Pointer{}, vmerr.Newf(vmerr.InvalidRegister, "register id %d", reg)
	}
}

// GetRegister reads the named register's u64 value.
func (f *Fiber) GetRegister(mem *arena.Arena, reg opcode.Reg) (uint64, error) {
	ptr, err := f.regPointer(reg)
	if err != nil {
		return 0, err
	}
	return mem.ReadU64(ptr.Address)
}

// SetRegister writes val to the named register.
func (f *Fiber) SetRegister(mem *arena.Arena, reg opcode.Reg, val uint64) error {
	ptr, err := f.regPointer(reg)
	if err != nil {
		return err
	}
	return mem.WriteU64(ptr.Address, val)
}

// GetFlag reports whether the given condition bit is set.
func (f *Fiber) GetFlag(mem *arena.Arena, flag opcode.Flag) (bool, error) {
	word, err := mem.ReadU8(f.flag.Address)
	if err != nil {
		return false, err
	}
	return word&(1<<uint(flag)) != 0, nil
}

// SetFlag sets or clears the given condition bit.
func (f *Fiber) SetFlag(mem *arena.Arena, flag opcode.Flag, val bool) error {
	word, err := mem.ReadU8(f.flag.Address)
	if err != nil {
		return err
	}
	if val {
		word |= 1 << uint(flag)
	} else {
		word &^= 1 << uint(flag)
	}
	return mem.WriteU8(f.flag.Address, word)
}

// GetState reads the fiber's run state.
func (f *Fiber) GetState(mem *arena.Arena) (State, error) {
	raw, err := mem.ReadU8(f.state.Address)
	if err != nil {
		return 0, err
	}
	switch State(raw) {
	case Running, Halted, Blocked:
		return State(raw), nil
	default:
		return 0, vmerr.Newf(vmerr.InvalidFiberState, "state byte %d", raw)
	}
}

// SetState writes the fiber's run state.
func (f *Fiber) SetState(mem *arena.Arena, s State) error {
	return mem.WriteU8(f.state.Address, uint8(s))
}

// StackPointer exposes the live Pointer backing the fiber's stack
// region, for callers (tests, diagnostics) that need the raw range.
func (f *Fiber) StackPointer() arena.Pointer {
	return f.stack
}
