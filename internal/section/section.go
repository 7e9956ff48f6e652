// Package section implements the growable, append-only byte region used
// by a fiber for its code (text) and literal data. A Section pairs an
// 8-byte write-cursor cell with a fixed-capacity data buffer, both
// backed by Arena allocations.
package section

import (
	"github.com/pedramcode/fibers/internal/arena"
	"github.com/pedramcode/fibers/internal/vmerr"
)

// DefaultCapacity is the data buffer size a Section is given at
// construction.
const DefaultCapacity = 8 * 1024

// Section is a growable append region: dp holds the next-write offset
// as a u64, data is the backing buffer.
//
// Appends advance dp by the width of the value written, while ReadU8,
// ReadU16, ReadU32 and ReadU64 index by elements of their own width, so
// element-indexed reads line up with appended values only when a Section
// holds values of a single width. The width is not tracked or checked.
type Section struct {
	dp   arena.Pointer
	data arena.Pointer
}

// New allocates a Section's dp cell and data buffer from mem. The dp
// cell starts at zero.
func New(mem *arena.Arena) (Section, error) {
	dp, err := mem.Allocate(8)
	if err != nil {
		return Section{}, err
	}
	data, err := mem.Allocate(DefaultCapacity)
	if err != nil {
		_ = mem.Deallocate(dp)
		return Section{}, err
	}
	return Section{dp: dp, data: data}, nil
}

// Free deallocates the Section's two Pointers in reverse acquisition
// order (data, then dp).
func (s Section) Free(mem *arena.Arena) error {
	if err := mem.Deallocate(s.data); err != nil {
		return err
	}
	return mem.Deallocate(s.dp)
}

// DataPointer returns the Pointer covering the Section's data buffer,
// for callers (the fetch loop's bounds checks, hex dump) that need the
// raw range.
func (s Section) DataPointer() arena.Pointer {
	return s.data
}

// Len returns the number of bytes appended to the Section so far.
func (s Section) Len(mem *arena.Arena) (uint64, error) {
	return mem.ReadU64(s.dp.Address)
}

// AppendU8 appends a single byte and advances dp by 1.
func (s Section) AppendU8(mem *arena.Arena, val uint8) error {
	return appendWidth(mem, s, 1, func(addr uint64) error { return mem.WriteU8(addr, val) })
}

// AppendU16 appends a big-endian u16 and advances dp by 2.
func (s Section) AppendU16(mem *arena.Arena, val uint16) error {
	return appendWidth(mem, s, 2, func(addr uint64) error { return mem.WriteU16(addr, val) })
}

// AppendU32 appends a big-endian u32 and advances dp by 4.
func (s Section) AppendU32(mem *arena.Arena, val uint32) error {
	return appendWidth(mem, s, 4, func(addr uint64) error { return mem.WriteU32(addr, val) })
}

// AppendU64 appends a big-endian u64 and advances dp by 8.
func (s Section) AppendU64(mem *arena.Arena, val uint64) error {
	return appendWidth(mem, s, 8, func(addr uint64) error { return mem.WriteU64(addr, val) })
}

func appendWidth(mem *arena.Arena, s Section, width uint64, write func(addr uint64) error) error {
	dp, err := mem.ReadU64(s.dp.Address)
	if err != nil {
		return err
	}
	if dp+width > s.data.Size {
		return vmerr.Newf(vmerr.InvalidAddress, "append of %d bytes at dp %d exceeds section capacity %d", width, dp, s.data.Size)
	}
	if err := write(s.data.Address + dp); err != nil {
		return err
	}
	return mem.WriteU64(s.dp.Address, dp+width)
}

// ReadU8 reads the byte at element index (byte offset index*1).
func (s Section) ReadU8(mem *arena.Arena, index uint64) (uint8, error) {
	return mem.ReadU8(s.data.Address + index*1)
}

// ReadU16 reads the u16 element at index (byte offset index*2).
func (s Section) ReadU16(mem *arena.Arena, index uint64) (uint16, error) {
	return mem.ReadU16(s.data.Address + index*2)
}

// ReadU32 reads the u32 element at index (byte offset index*4).
func (s Section) ReadU32(mem *arena.Arena, index uint64) (uint32, error) {
	return mem.ReadU32(s.data.Address + index*4)
}

// ReadU64 reads the u64 element at index (byte offset index*8).
func (s Section) ReadU64(mem *arena.Arena, index uint64) (uint64, error) {
	return mem.ReadU64(s.data.Address + index*8)
}

// ReadU16At reads a u16 directly from a byte offset within the data
// buffer, used by the fetch loop which addresses code by byte (PC),
// not by element index.
func (s Section) ReadU16At(mem *arena.Arena, byteOffset uint64) (uint16, error) {
	return mem.ReadU16(s.data.Address + byteOffset)
}

// ReadU64At reads a u64 directly from a byte offset within the data
// buffer.
func (s Section) ReadU64At(mem *arena.Arena, byteOffset uint64) (uint64, error) {
	return mem.ReadU64(s.data.Address + byteOffset)
}

// ReadU8At reads a u8 directly from a byte offset within the data
// buffer.
func (s Section) ReadU8At(mem *arena.Arena, byteOffset uint64) (uint8, error) {
	return mem.ReadU8(s.data.Address + byteOffset)
}

// Contains reports whether the byte offset addr lies within the
// Section's data buffer range [data.Address, data.Address+data.Size).
func (s Section) Contains(addr uint64) bool {
	return addr >= s.data.Address && addr < s.data.Address+s.data.Size
}
