package fiber

import (
	"math/bits"

	"github.com/pedramcode/fibers/internal/arena"
	"github.com/pedramcode/fibers/internal/opcode"
	"github.com/pedramcode/fibers/internal/vmerr"
)

// StepResult reports why Run returned control to the scheduler.
type StepResult int

const (
	// ResultHalted means the fiber executed HLT; it is done forever.
	ResultHalted StepResult = iota
	// ResultYielded means the fiber executed YLD; it may run again.
	ResultYielded
)

// Run executes opcodes starting from the fiber's current PC until it
// hits HLT, YLD, or an error. The fiber's state is set to Running at
// the top of every fetch, matching the per-iteration state reset spec'd
// for the fetch-decode-execute loop.
func (f *Fiber) Run(mem *arena.Arena) (StepResult, error) {
	for {
		if err := f.SetState(mem, Running); err != nil {
			return 0, err
		}

		pc, err := f.GetRegister(mem, opcode.PC)
		if err != nil {
			return 0, err
		}
		rawOp, err := f.Text.ReadU16At(mem, pc)
		if err != nil {
			return 0, vmerr.Newf(vmerr.InvalidAddress, "fetch at pc %d: %v", pc, err)
		}
		op, err := opcode.FromU16(rawOp)
		if err != nil {
			_ = f.SetState(mem, Halted)
			return 0, vmerr.Newf(vmerr.InvalidOpcode, "raw opcode 0x%04x at pc %d", rawOp, pc)
		}
		need := opcode.OperandBytes(op)
		if textLen := f.Text.DataPointer().Size; pc+2+need > textLen {
			_ = f.SetState(mem, Halted)
			return 0, vmerr.Newf(vmerr.InvalidAddress, "opcode %s at pc %d needs %d operand bytes but only %d remain in text section", op, pc, need, textLen-(pc+2))
		}
		if err := f.SetRegister(mem, opcode.PC, pc+2); err != nil {
			return 0, err
		}

		result, halt, err := f.dispatch(mem, op)
		if err != nil {
			return 0, err
		}
		if halt {
			return result, nil
		}
	}
}

// dispatch executes a single decoded opcode. It returns (result, true,
// nil) when the fiber should stop running (HLT/YLD), or (_, false, nil)
// to continue the loop, or a non-nil error on failure.
func (f *Fiber) dispatch(mem *arena.Arena, op opcode.Opcode) (StepResult, bool, error) {
	switch op {
	case opcode.PUSH:
		imm, err := f.fetchU64Operand(mem)
		if err != nil {
			return 0, false, err
		}
		return 0, false, f.Push(mem, imm)

	case opcode.POP:
		reg, err := f.fetchRegOperand(mem)
		if err != nil {
			return 0, false, err
		}
		val, err := f.Pop(mem)
		if err != nil {
			return 0, false, err
		}
		if err := f.SetFlag(mem, opcode.Zero, val == 0); err != nil {
			return 0, false, err
		}
		return 0, false, f.SetRegister(mem, reg, val)

	case opcode.MOV:
		reg, err := f.fetchRegOperand(mem)
		if err != nil {
			return 0, false, err
		}
		imm, err := f.fetchU64Operand(mem)
		if err != nil {
			return 0, false, err
		}
		return 0, false, f.SetRegister(mem, reg, imm)

	case opcode.ADD:
		return 0, false, f.execAdd(mem)

	case opcode.SUB:
		return 0, false, f.execSub(mem)

	case opcode.DROP:
		v, err := f.Pop(mem)
		if err != nil {
			return 0, false, err
		}
		return 0, false, f.SetFlag(mem, opcode.Zero, v == 0)

	case opcode.DUP:
		v, err := f.Peek(mem)
		if err != nil {
			return 0, false, err
		}
		return 0, false, f.Push(mem, v)

	case opcode.SWP:
		return 0, false, f.Swap(mem)

	case opcode.INC:
		reg, err := f.fetchRegOperand(mem)
		if err != nil {
			return 0, false, err
		}
		v, err := f.GetRegister(mem, reg)
		if err != nil {
			return 0, false, err
		}
		return 0, false, f.SetRegister(mem, reg, v+1)

	case opcode.DEC:
		reg, err := f.fetchRegOperand(mem)
		if err != nil {
			return 0, false, err
		}
		v, err := f.GetRegister(mem, reg)
		if err != nil {
			return 0, false, err
		}
		return 0, false, f.SetRegister(mem, reg, v-1)

	case opcode.JMP:
		return 0, false, f.execJump(mem, func() bool { return true })
	case opcode.JZ:
		return 0, false, f.execJumpIfFlag(mem, opcode.Zero, true)
	case opcode.JNZ:
		return 0, false, f.execJumpIfFlag(mem, opcode.Zero, false)
	case opcode.JG:
		return 0, false, f.execJump(mem, func() bool {
			zero, neg, ovf := must3(f.GetFlag(mem, opcode.Zero)), must3(f.GetFlag(mem, opcode.Negative)), must3(f.GetFlag(mem, opcode.Overflow))
			return !zero && neg == ovf
		})
	case opcode.JGE:
		return 0, false, f.execJump(mem, func() bool {
			neg, ovf := must3(f.GetFlag(mem, opcode.Negative)), must3(f.GetFlag(mem, opcode.Overflow))
			return neg == ovf
		})
	case opcode.JL:
		return 0, false, f.execJump(mem, func() bool {
			neg, ovf := must3(f.GetFlag(mem, opcode.Negative)), must3(f.GetFlag(mem, opcode.Overflow))
			return neg != ovf
		})
	case opcode.JLE:
		return 0, false, f.execJump(mem, func() bool {
			zero := must3(f.GetFlag(mem, opcode.Zero))
			neg, ovf := must3(f.GetFlag(mem, opcode.Negative)), must3(f.GetFlag(mem, opcode.Overflow))
			return zero || neg != ovf
		})

	case opcode.AND:
		return 0, false, f.binaryOp(mem, func(a, b uint64) uint64 { return a & b })
	case opcode.OR:
		return 0, false, f.binaryOp(mem, func(a, b uint64) uint64 { return a | b })
	case opcode.XOR:
		return 0, false, f.binaryOp(mem, func(a, b uint64) uint64 { return a ^ b })
	case opcode.NOT:
		v, err := f.Pop(mem)
		if err != nil {
			return 0, false, err
		}
		return 0, false, f.Push(mem, ^v)
	case opcode.SHR:
		return 0, false, f.binaryOp(mem, func(a, b uint64) uint64 { return a >> (b & 63) })
	case opcode.SHL:
		return 0, false, f.binaryOp(mem, func(a, b uint64) uint64 { return a << (b & 63) })
	case opcode.ROL:
		return 0, false, f.binaryOp(mem, func(a, b uint64) uint64 { return bits.RotateLeft64(a, int(b&63)) })
	case opcode.ROR:
		return 0, false, f.binaryOp(mem, func(a, b uint64) uint64 { return bits.RotateLeft64(a, -int(b&63)) })

	case opcode.HLT:
		if err := f.SetState(mem, Halted); err != nil {
			return 0, false, err
		}
		return ResultHalted, true, nil

	case opcode.YLD:
		if err := f.SetState(mem, Blocked); err != nil {
			return 0, false, err
		}
		return ResultYielded, true, nil

	default:
		_ = f.SetState(mem, Halted)
		return 0, false, vmerr.Newf(vmerr.InvalidOpcode, "opcode %s has no dispatch case", op)
	}
}

// must3 panics on error; used only for flag reads after PC/opcode
// decoding has already succeeded, where a flag-read failure would mean
// fiber state was corrupted out from under the interpreter.
func must3(v bool, err error) bool {
	if err != nil {
		panic(err)
	}
	return v
}

func (f *Fiber) fetchU64Operand(mem *arena.Arena) (uint64, error) {
	pc, err := f.GetRegister(mem, opcode.PC)
	if err != nil {
		return 0, err
	}
	val, err := f.Text.ReadU64At(mem, pc)
	if err != nil {
		return 0, err
	}
	return val, f.SetRegister(mem, opcode.PC, pc+8)
}

func (f *Fiber) fetchRegOperand(mem *arena.Arena) (opcode.Reg, error) {
	pc, err := f.GetRegister(mem, opcode.PC)
	if err != nil {
		return 0, err
	}
	raw, err := f.Text.ReadU8At(mem, pc)
	if err != nil {
		return 0, err
	}
	reg := opcode.Reg(raw)
	if !reg.Valid() {
		return 0, vmerr.Newf(vmerr.InvalidRegister, "register id %d", raw)
	}
	return reg, f.SetRegister(mem, opcode.PC, pc+1)
}

// execJump reads the u64 address operand, validates it against the
// text Section's range, and — if cond reports true — sets PC to it.
// The operand is always consumed regardless of whether the branch is
// taken, matching the fixed instruction width of every jump opcode.
func (f *Fiber) execJump(mem *arena.Arena, cond func() bool) error {
	addr, err := f.fetchU64Operand(mem)
	if err != nil {
		return err
	}
	if addr >= f.Text.DataPointer().Size {
		return vmerr.Newf(vmerr.InvalidAddress, "jump target %d outside text section of size %d", addr, f.Text.DataPointer().Size)
	}
	if !cond() {
		return nil
	}
	return f.SetRegister(mem, opcode.PC, addr)
}

func (f *Fiber) execJumpIfFlag(mem *arena.Arena, flag opcode.Flag, want bool) error {
	return f.execJump(mem, func() bool {
		return must3(f.GetFlag(mem, flag)) == want
	})
}

// binaryOp pops a (top of stack) then b, applies fn(a, b), and pushes
// the result. a, the most recently pushed value, is the left-hand
// operand: for non-commutative ops the value must be pushed last, e.g.
// `PUSH 2; PUSH 48; SHR` computes 48 >> 2.
func (f *Fiber) binaryOp(mem *arena.Arena, fn func(a, b uint64) uint64) error {
	a, err := f.Pop(mem)
	if err != nil {
		return err
	}
	b, err := f.Pop(mem)
	if err != nil {
		return err
	}
	return f.Push(mem, fn(a, b))
}

// execAdd implements the signed, wrapping, flag-setting ADD: pops a
// then b, computes c = a + b with two's-complement wraparound, pushes
// c, and sets Zero/Negative/Overflow (signed two's-complement overflow)
// /Carry (unsigned overflow).
func (f *Fiber) execAdd(mem *arena.Arena) error {
	a, err := f.Pop(mem)
	if err != nil {
		return err
	}
	b, err := f.Pop(mem)
	if err != nil {
		return err
	}
	c := a + b
	signedOverflow := (int64(a) >= 0) == (int64(b) >= 0) && (int64(c) >= 0) != (int64(a) >= 0)
	carry := c < a // unsigned wraparound occurred
	if err := f.Push(mem, c); err != nil {
		return err
	}
	if err := f.SetFlag(mem, opcode.Zero, c == 0); err != nil {
		return err
	}
	if err := f.SetFlag(mem, opcode.Negative, int64(c) < 0); err != nil {
		return err
	}
	if err := f.SetFlag(mem, opcode.Overflow, signedOverflow); err != nil {
		return err
	}
	return f.SetFlag(mem, opcode.Carry, carry)
}

// execSub implements the signed, wrapping, flag-setting SUB: pops a
// then b, computes c = a - b, pushes c, and sets Zero/Negative/Overflow
// as for ADD; Carry is set to NOT(unsigned borrow).
func (f *Fiber) execSub(mem *arena.Arena) error {
	a, err := f.Pop(mem)
	if err != nil {
		return err
	}
	b, err := f.Pop(mem)
	if err != nil {
		return err
	}
	c := a - b
	signedOverflow := (int64(a) >= 0) != (int64(b) >= 0) && (int64(c) >= 0) != (int64(a) >= 0)
	borrow := a < b // unsigned borrow occurred
	if err := f.Push(mem, c); err != nil {
		return err
	}
	if err := f.SetFlag(mem, opcode.Zero, c == 0); err != nil {
		return err
	}
	if err := f.SetFlag(mem, opcode.Negative, int64(c) < 0); err != nil {
		return err
	}
	if err := f.SetFlag(mem, opcode.Overflow, signedOverflow); err != nil {
		return err
	}
	return f.SetFlag(mem, opcode.Carry, !borrow)
}
