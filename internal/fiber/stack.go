package fiber

import (
	"github.com/pedramcode/fibers/internal/arena"
	"github.com/pedramcode/fibers/internal/opcode"
	"github.com/pedramcode/fibers/internal/vmerr"
)

// Push writes a 64-bit value at the top of the fiber's stack and
// advances SP by 8. If SP has reached the end of the current stack
// region, the region grows by stackGrowthStep bytes; growth past
// maxStackSize fails with StackOverflow.
func (f *Fiber) Push(mem *arena.Arena, value uint64) error {
	sp, err := f.GetRegister(mem, opcode.SP)
	if err != nil {
		return err
	}
	if sp >= f.stack.Size {
		if f.stack.Size > maxStackSize {
			return vmerr.Newf(vmerr.StackOverflow, "stack size %d exceeds cap %d", f.stack.Size, maxStackSize)
		}
		grown, err := mem.Reallocate(f.stack, f.stack.Size+stackGrowthStep)
		if err != nil {
			return err
		}
		f.stack = grown
	}
	if err := mem.WriteU64(f.stack.Address+sp, value); err != nil {
		return err
	}
	return f.SetRegister(mem, opcode.SP, sp+8)
}

// Pop reads and removes the 64-bit value at the top of the stack,
// decrementing SP by 8. Fails with StackUnderflow on an empty stack.
func (f *Fiber) Pop(mem *arena.Arena) (uint64, error) {
	sp, err := f.GetRegister(mem, opcode.SP)
	if err != nil {
		return 0, err
	}
	if sp == 0 {
		return 0, vmerr.New(vmerr.StackUnderflow, "pop on empty stack")
	}
	val, err := mem.ReadU64(f.stack.Address + sp - 8)
	if err != nil {
		return 0, err
	}
	if err := f.SetRegister(mem, opcode.SP, sp-8); err != nil {
		return 0, err
	}
	return val, nil
}

// Peek reads the 64-bit value at the top of the stack without removing
// it. Fails with StackUnderflow on an empty stack.
func (f *Fiber) Peek(mem *arena.Arena) (uint64, error) {
	sp, err := f.GetRegister(mem, opcode.SP)
	if err != nil {
		return 0, err
	}
	if sp == 0 {
		return 0, vmerr.New(vmerr.StackUnderflow, "peek on empty stack")
	}
	return mem.ReadU64(f.stack.Address + sp - 8)
}

// Swap exchanges the top two values on the stack. Fails with
// StackUnderflow if fewer than two elements are present.
func (f *Fiber) Swap(mem *arena.Arena) error {
	a, err := f.Pop(mem)
	if err != nil {
		return err
	}
	b, err := f.Pop(mem)
	if err != nil {
		return err
	}
	if err := f.Push(mem, a); err != nil {
		return err
	}
	return f.Push(mem, b)
}
