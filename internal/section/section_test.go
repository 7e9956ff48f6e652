package section

import (
	"testing"

	"github.com/pedramcode/fibers/internal/arena"
)

func TestSectionLenTracksAppends(t *testing.T) {
	mem := arena.New(16 * 1024)
	s, err := New(mem)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n, err := s.Len(mem); err != nil || n != 0 {
		t.Fatalf("Len() = %d, %v, want 0, nil", n, err)
	}
	if err := s.AppendU8(mem, 1); err != nil {
		t.Fatalf("AppendU8: %v", err)
	}
	if err := s.AppendU32(mem, 2); err != nil {
		t.Fatalf("AppendU32: %v", err)
	}
	if n, err := s.Len(mem); err != nil || n != 5 {
		t.Fatalf("Len() = %d, %v, want 5, nil", n, err)
	}
}

func TestSectionReadWriteRoundTrip(t *testing.T) {
	mem := arena.New(16 * 1024)
	s, err := New(mem)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.AppendU8(mem, 0xAB); err != nil {
		t.Fatalf("AppendU8: %v", err)
	}
	if got, err := s.ReadU8(mem, 0); err != nil || got != 0xAB {
		t.Fatalf("ReadU8(0) = %d, %v, want 0xAB, nil", got, err)
	}

	if err := s.AppendU16(mem, 0x1234); err != nil {
		t.Fatalf("AppendU16: %v", err)
	}
	if got, err := s.ReadU16At(mem, 1); err != nil || got != 0x1234 {
		t.Fatalf("ReadU16At(1) = %#x, %v, want 0x1234, nil", got, err)
	}

	if err := s.AppendU32(mem, 0xdeadbeef); err != nil {
		t.Fatalf("AppendU32: %v", err)
	}
	// Bytes written so far: AB (u8) | 12 34 (u16) | de ad be ef (u32), so
	// the u32-element-indexed read at index 0 (byte offset 0) spans the
	// first four of those bytes, not the u32 value just appended.
	if got, err := s.ReadU32(mem, 0); err != nil || got != 0xAB1234de {
		t.Fatalf("ReadU32(0) = %#x, %v, want 0xab1234de, nil", got, err)
	}

	if err := s.AppendU64(mem, 0x0102030405060708); err != nil {
		t.Fatalf("AppendU64: %v", err)
	}
	n, err := s.Len(mem)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if got, err := s.ReadU64At(mem, n-8); err != nil || got != 0x0102030405060708 {
		t.Fatalf("ReadU64At(%d) = %#x, %v, want 0x0102030405060708, nil", n-8, got, err)
	}
}

func TestSectionElementIndexedReadsMatchAppendOrder(t *testing.T) {
	mem := arena.New(16 * 1024)
	s, err := New(mem)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	values := []uint64{1, 2, 3, 4, 5}
	for _, v := range values {
		if err := s.AppendU64(mem, v); err != nil {
			t.Fatalf("AppendU64(%d): %v", v, err)
		}
	}
	for i, want := range values {
		got, err := s.ReadU64(mem, uint64(i))
		if err != nil {
			t.Fatalf("ReadU64(%d): %v", i, err)
		}
		if got != want {
			t.Fatalf("ReadU64(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestSectionAppendBeyondCapacityFails(t *testing.T) {
	mem := arena.New(16 * 1024)
	s, err := New(mem)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := uint64(0); i < DefaultCapacity/8; i++ {
		if err := s.AppendU64(mem, i); err != nil {
			t.Fatalf("AppendU64(%d): %v", i, err)
		}
	}
	if err := s.AppendU8(mem, 1); err == nil {
		t.Fatalf("expected append past capacity to fail")
	}
}

func TestSectionContains(t *testing.T) {
	mem := arena.New(16 * 1024)
	s, err := New(mem)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base := s.DataPointer().Address
	size := s.DataPointer().Size

	if !s.Contains(base) {
		t.Fatalf("Contains(%d) = false, want true (start of range)", base)
	}
	if !s.Contains(base + size - 1) {
		t.Fatalf("Contains(%d) = false, want true (last byte of range)", base+size-1)
	}
	if s.Contains(base + size) {
		t.Fatalf("Contains(%d) = true, want false (one past end)", base+size)
	}
	if base > 0 && s.Contains(base-1) {
		t.Fatalf("Contains(%d) = true, want false (one before start)", base-1)
	}
}

func TestSectionFree(t *testing.T) {
	mem := arena.New(16 * 1024)
	s, err := New(mem)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Free(mem); err != nil {
		t.Fatalf("Free: %v", err)
	}
}
