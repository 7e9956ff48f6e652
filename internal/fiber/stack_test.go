package fiber

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pedramcode/fibers/internal/arena"
)

func TestStackPushPop(t *testing.T) {
	mem := arena.New(8 * 1024 * 1024)
	f := newTestFiber(t, mem)

	require.NoError(t, f.Push(mem, math.MaxUint64))
	v, err := f.Pop(mem)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), v)
}

func TestStackPushPopSeries(t *testing.T) {
	mem := arena.New(8 * 1024 * 1024)
	f := newTestFiber(t, mem)

	for _, v := range []uint64{1, 2, 3, 4, 5} {
		require.NoError(t, f.Push(mem, v))
	}
	for _, want := range []uint64{5, 4, 3, 2, 1} {
		got, err := f.Pop(mem)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestStackPeek(t *testing.T) {
	mem := arena.New(8 * 1024 * 1024)
	f := newTestFiber(t, mem)

	require.NoError(t, f.Push(mem, 1))
	require.NoError(t, f.Push(mem, 2))

	for i := 0; i < 3; i++ {
		v, err := f.Peek(mem)
		require.NoError(t, err)
		require.Equal(t, uint64(2), v)
	}
	v, err := f.Pop(mem)
	require.NoError(t, err)
	require.Equal(t, uint64(2), v)

	v, err = f.Peek(mem)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v)
}

func TestStackPeekEmptyFails(t *testing.T) {
	mem := arena.New(8 * 1024 * 1024)
	f := newTestFiber(t, mem)

	_, err := f.Peek(mem)
	require.Error(t, err)
}

func TestStackOverflow(t *testing.T) {
	mem := arena.New(8 * 1024 * 1024)
	f := newTestFiber(t, mem)

	var err error
	for i := 0; i < maxStackSize; i++ {
		if err = f.Push(mem, 1); err != nil {
			break
		}
	}
	require.Error(t, err)
}

func TestStackUnderflow(t *testing.T) {
	mem := arena.New(8 * 1024 * 1024)
	f := newTestFiber(t, mem)

	_, err := f.Pop(mem)
	require.Error(t, err)
}

func TestStackSwap(t *testing.T) {
	mem := arena.New(8 * 1024 * 1024)
	f := newTestFiber(t, mem)

	require.NoError(t, f.Push(mem, 1))
	require.NoError(t, f.Push(mem, 2))
	v, err := f.Pop(mem)
	require.NoError(t, err)
	require.Equal(t, uint64(2), v)
	v, err = f.Pop(mem)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v)

	require.NoError(t, f.Push(mem, 3))
	require.NoError(t, f.Push(mem, math.MaxUint64))
	require.NoError(t, f.Swap(mem))

	v, err = f.Pop(mem)
	require.NoError(t, err)
	require.Equal(t, uint64(3), v)
	v, err = f.Pop(mem)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), v)
}

func TestStackSwapEmptyFails(t *testing.T) {
	mem := arena.New(8 * 1024 * 1024)
	f := newTestFiber(t, mem)

	require.Error(t, f.Swap(mem))
}

func TestStackSwapOneFails(t *testing.T) {
	mem := arena.New(8 * 1024 * 1024)
	f := newTestFiber(t, mem)

	require.NoError(t, f.Push(mem, 1))
	require.Error(t, f.Swap(mem))
}
