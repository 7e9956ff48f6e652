package fiber

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pedramcode/fibers/internal/arena"
	"github.com/pedramcode/fibers/internal/opcode"
	"github.com/pedramcode/fibers/internal/splitmix64"
)

func newTestFiber(t *testing.T, mem *arena.Arena) *Fiber {
	t.Helper()
	f, err := New(mem, splitmix64.NewSource(), nil)
	require.NoError(t, err)
	return f
}

func TestFiberInitializeAndKill(t *testing.T) {
	mem := arena.New(8 * 1024 * 1024)
	for i := 0; i < 5; i++ {
		f := newTestFiber(t, mem)
		require.NoError(t, f.Kill(mem))
	}

	fibers := make([]*Fiber, 4)
	for i := range fibers {
		fibers[i] = newTestFiber(t, mem)
	}
	for _, f := range fibers {
		require.NoError(t, f.Kill(mem))
	}
}

func TestFiberInitialRegisters(t *testing.T) {
	mem := arena.New(128 * 1024)
	f := newTestFiber(t, mem)

	pc, err := f.GetRegister(mem, opcode.PC)
	require.NoError(t, err)
	require.Zero(t, pc)

	sp, err := f.GetRegister(mem, opcode.SP)
	require.NoError(t, err)
	require.Zero(t, sp)

	state, err := f.GetState(mem)
	require.NoError(t, err)
	require.Equal(t, Running, state)
}

func TestFiberFlags(t *testing.T) {
	mem := arena.New(128 * 1024)
	f := newTestFiber(t, mem)

	assertFlags := func(zero, carry, neg, ovf bool) {
		t.Helper()
		z, err := f.GetFlag(mem, opcode.Zero)
		require.NoError(t, err)
		require.Equal(t, zero, z)
		c, err := f.GetFlag(mem, opcode.Carry)
		require.NoError(t, err)
		require.Equal(t, carry, c)
		n, err := f.GetFlag(mem, opcode.Negative)
		require.NoError(t, err)
		require.Equal(t, neg, n)
		o, err := f.GetFlag(mem, opcode.Overflow)
		require.NoError(t, err)
		require.Equal(t, ovf, o)
	}

	assertFlags(false, false, false, false)

	require.NoError(t, f.SetFlag(mem, opcode.Zero, true))
	assertFlags(true, false, false, false)

	require.NoError(t, f.SetFlag(mem, opcode.Overflow, true))
	assertFlags(true, false, false, true)

	require.NoError(t, f.SetFlag(mem, opcode.Zero, false))
	assertFlags(false, false, false, true)

	require.NoError(t, f.SetFlag(mem, opcode.Carry, true))
	require.NoError(t, f.SetFlag(mem, opcode.Negative, true))
	assertFlags(false, true, true, true)

	require.NoError(t, f.SetFlag(mem, opcode.Negative, false))
	assertFlags(false, true, false, true)
}

func TestFiberUniqueIDs(t *testing.T) {
	mem := arena.New(1024 * 1024)
	rng := splitmix64.NewSource()
	seen := make(map[uint64]bool)

	existing := func(id uint64) bool { return seen[id] }

	for i := 0; i < 50; i++ {
		f, err := New(mem, rng, existing)
		require.NoError(t, err)
		id, err := f.ID(mem)
		require.NoError(t, err)
		require.False(t, seen[id], "id %d reused", id)
		seen[id] = true
	}
}

func TestFiberRegisterRoundTrip(t *testing.T) {
	mem := arena.New(128 * 1024)
	f := newTestFiber(t, mem)

	for _, reg := range []opcode.Reg{opcode.R0, opcode.R1, opcode.R7, opcode.PC, opcode.SP} {
		require.NoError(t, f.SetRegister(mem, reg, uint64(reg)+1000))
	}
	for _, reg := range []opcode.Reg{opcode.R0, opcode.R1, opcode.R7, opcode.PC, opcode.SP} {
		v, err := f.GetRegister(mem, reg)
		require.NoError(t, err)
		require.Equal(t, uint64(reg)+1000, v)
	}

	_, err := f.GetRegister(mem, opcode.Reg(250))
	require.Error(t, err)
}
