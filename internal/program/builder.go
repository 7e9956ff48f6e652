// Package program provides a small fluent builder for assembling the
// (tag, value) bytecode pairs Machine.WriteBytecodes expects, so callers
// don't have to hand-encode opcode/operand tags themselves.
package program

import (
	"github.com/pedramcode/fibers/internal/machine"
	"github.com/pedramcode/fibers/internal/opcode"
)

const (
	tagU8 uint64 = iota
	tagU16
	tagU32
	tagU64
)

// Builder accumulates BytecodePairs for one fiber's program.
type Builder struct {
	pairs []machine.BytecodePair
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

func (b *Builder) emitOpcode(op opcode.Opcode) *Builder {
	b.pairs = append(b.pairs, machine.BytecodePair{Tag: tagU16, Value: uint64(op)})
	return b
}

func (b *Builder) emitReg(reg opcode.Reg) *Builder {
	b.pairs = append(b.pairs, machine.BytecodePair{Tag: tagU8, Value: uint64(reg)})
	return b
}

func (b *Builder) emitU64(v uint64) *Builder {
	b.pairs = append(b.pairs, machine.BytecodePair{Tag: tagU64, Value: v})
	return b
}

// Push emits PUSH imm.
func (b *Builder) Push(imm uint64) *Builder {
	return b.emitOpcode(opcode.PUSH).emitU64(imm)
}

// Pop emits POP reg.
func (b *Builder) Pop(reg opcode.Reg) *Builder {
	return b.emitOpcode(opcode.POP).emitReg(reg)
}

// Mov emits MOV reg, imm.
func (b *Builder) Mov(reg opcode.Reg, imm uint64) *Builder {
	return b.emitOpcode(opcode.MOV).emitReg(reg).emitU64(imm)
}

// Add emits ADD.
func (b *Builder) Add() *Builder { return b.emitOpcode(opcode.ADD) }

// Sub emits SUB.
func (b *Builder) Sub() *Builder { return b.emitOpcode(opcode.SUB) }

// Drop emits DROP.
func (b *Builder) Drop() *Builder { return b.emitOpcode(opcode.DROP) }

// Dup emits DUP.
func (b *Builder) Dup() *Builder { return b.emitOpcode(opcode.DUP) }

// Swap emits SWP.
func (b *Builder) Swap() *Builder { return b.emitOpcode(opcode.SWP) }

// Inc emits INC reg.
func (b *Builder) Inc(reg opcode.Reg) *Builder {
	return b.emitOpcode(opcode.INC).emitReg(reg)
}

// Dec emits DEC reg.
func (b *Builder) Dec(reg opcode.Reg) *Builder {
	return b.emitOpcode(opcode.DEC).emitReg(reg)
}

// Jmp emits JMP addr.
func (b *Builder) Jmp(addr uint64) *Builder {
	return b.emitOpcode(opcode.JMP).emitU64(addr)
}

// Jz emits JZ addr.
func (b *Builder) Jz(addr uint64) *Builder {
	return b.emitOpcode(opcode.JZ).emitU64(addr)
}

// Jnz emits JNZ addr.
func (b *Builder) Jnz(addr uint64) *Builder {
	return b.emitOpcode(opcode.JNZ).emitU64(addr)
}

// Jg emits JG addr.
func (b *Builder) Jg(addr uint64) *Builder {
	return b.emitOpcode(opcode.JG).emitU64(addr)
}

// Jge emits JGE addr.
func (b *Builder) Jge(addr uint64) *Builder {
	return b.emitOpcode(opcode.JGE).emitU64(addr)
}

// Jl emits JL addr.
func (b *Builder) Jl(addr uint64) *Builder {
	return b.emitOpcode(opcode.JL).emitU64(addr)
}

// Jle emits JLE addr.
func (b *Builder) Jle(addr uint64) *Builder {
	return b.emitOpcode(opcode.JLE).emitU64(addr)
}

// And emits AND.
func (b *Builder) And() *Builder { return b.emitOpcode(opcode.AND) }

// Or emits OR.
func (b *Builder) Or() *Builder { return b.emitOpcode(opcode.OR) }

// Not emits NOT.
func (b *Builder) Not() *Builder { return b.emitOpcode(opcode.NOT) }

// Xor emits XOR.
func (b *Builder) Xor() *Builder { return b.emitOpcode(opcode.XOR) }

// Shr emits SHR.
func (b *Builder) Shr() *Builder { return b.emitOpcode(opcode.SHR) }

// Shl emits SHL.
func (b *Builder) Shl() *Builder { return b.emitOpcode(opcode.SHL) }

// Rol emits ROL.
func (b *Builder) Rol() *Builder { return b.emitOpcode(opcode.ROL) }

// Ror emits ROR.
func (b *Builder) Ror() *Builder { return b.emitOpcode(opcode.ROR) }

// Hlt emits HLT.
func (b *Builder) Hlt() *Builder { return b.emitOpcode(opcode.HLT) }

// Yld emits YLD.
func (b *Builder) Yld() *Builder { return b.emitOpcode(opcode.YLD) }

// Offset returns the byte offset the next emitted instruction will land
// at, for computing jump targets ahead of time.
func (b *Builder) Offset() uint64 {
	var n uint64
	for _, p := range b.pairs {
		switch p.Tag {
		case tagU8:
			n++
		case tagU16:
			n += 2
		case tagU32:
			n += 4
		case tagU64:
			n += 8
		}
	}
	return n
}

// Pairs returns the accumulated (tag, value) pairs ready for
// Machine.WriteBytecodes.
func (b *Builder) Pairs() []machine.BytecodePair {
	return b.pairs
}
