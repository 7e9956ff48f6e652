// Package arena implements the byte-arena allocator that backs every
// piece of machine state: registers, flags, stacks, and code/data
// sections are all Arena-allocated ranges of one flat buffer. There is
// no coalescing and no compaction; placement is first-fit over the
// gaps between live ranges, recomputed on every allocation.
package arena

import (
	"encoding/binary"
	"sort"

	"github.com/pedramcode/fibers/internal/vmerr"
)

// Pointer records a live allocation: the range [Address, Address+Size)
// within the Arena that produced it. A Pointer carries no ownership
// semantics beyond this record — it is only meaningful relative to the
// Arena that returned it.
type Pointer struct {
	Address uint64
	Size    uint64
}

// block is a live allocation tracked internally by start/end offsets.
type block struct {
	start uint64
	end   uint64
}

// Arena owns a fixed-size byte buffer and the set of currently live
// allocated ranges within it.
type Arena struct {
	data   []byte
	blocks []block
}

// New allocates an Arena backed by a zeroed buffer of exactly size
// bytes. The size is fixed for the Arena's lifetime.
func New(size uint64) *Arena {
	return &Arena{data: make([]byte, size)}
}

// Len returns the Arena's fixed buffer length.
func (a *Arena) Len() uint64 {
	return uint64(len(a.data))
}

// normalizeSize rounds an allocation request up to the allocator's
// placement granularity. The current granularity is 1 (the identity
// function): normalization must be idempotent, monotonic, and return a
// value >= the request, and the simplest function satisfying that is
// the one that changes nothing. Callers must use the same normalized
// size when later comparing against a stored Pointer.Size.
func normalizeSize(size uint64) uint64 {
	return size
}

// sortedBlocks returns the live blocks ordered by start offset. The
// allocator doesn't keep blocks sorted between calls — insertion order
// comes from allocate()/deallocate()'s swap-removes — so placement
// re-sorts on every call, matching the source's "no coalescing, adjacency
// recomputed on each allocation" design.
func (a *Arena) sortedBlocks() []block {
	sorted := make([]block, len(a.blocks))
	copy(sorted, a.blocks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })
	return sorted
}

// Allocate reserves size bytes using first-fit placement across the
// gaps between live blocks, zeroes the returned range, and returns a
// Pointer describing it.
func (a *Arena) Allocate(size uint64) (Pointer, error) {
	size = normalizeSize(size)
	sorted := a.sortedBlocks()

	if len(sorted) > 0 {
		first := sorted[0]
		if first.start > 0 && first.start > size {
			return a.place(0, size)
		}
	}

	for i := 0; i+1 < len(sorted); i++ {
		gapStart := sorted[i].end
		gapEnd := sorted[i+1].start
		if gapEnd-gapStart > size {
			return a.place(gapStart, size)
		}
	}

	if len(sorted) > 0 {
		last := sorted[len(sorted)-1]
		if last.end+size < uint64(len(a.data)) {
			return a.place(last.end, size)
		}
	} else if size < uint64(len(a.data)) {
		return a.place(0, size)
	}

	return Pointer{}, vmerr.Newf(vmerr.InsufficientMemory, "no gap for %d bytes in arena of %d bytes", size, len(a.data))
}

// place records a new live block at [start, start+size), zeroes it, and
// returns the corresponding Pointer.
func (a *Arena) place(start, size uint64) (Pointer, error) {
	end := start + size
	if end > uint64(len(a.data)) {
		return Pointer{}, vmerr.Newf(vmerr.InsufficientMemory, "placement %d..%d exceeds arena of %d bytes", start, end, len(a.data))
	}
	a.blocks = append(a.blocks, block{start: start, end: end})
	for i := start; i < end; i++ {
		a.data[i] = 0
	}
	return Pointer{Address: start, Size: size}, nil
}

// Deallocate retires the live block starting at ptr.Address. It fails
// with InvalidPointer if no such block exists, which doubles as
// double-free detection.
func (a *Arena) Deallocate(ptr Pointer) error {
	for i, b := range a.blocks {
		if b.start == ptr.Address {
			a.blocks[i] = a.blocks[len(a.blocks)-1]
			a.blocks = a.blocks[:len(a.blocks)-1]
			return nil
		}
	}
	return vmerr.Newf(vmerr.InvalidPointer, "no live block at address %d", ptr.Address)
}

// Reallocate resizes ptr's allocation to newSize. If newSize equals the
// current size the Pointer is returned unchanged. Otherwise a new block
// is allocated, min(newSize, ptr.Size) bytes are copied over, and the
// old block is deallocated.
func (a *Arena) Reallocate(ptr Pointer, newSize uint64) (Pointer, error) {
	if newSize == ptr.Size {
		return ptr, nil
	}
	next, err := a.Allocate(newSize)
	if err != nil {
		return Pointer{}, err
	}
	n := ptr.Size
	if newSize < n {
		n = newSize
	}
	copy(a.data[next.Address:next.Address+n], a.data[ptr.Address:ptr.Address+n])
	if err := a.Deallocate(ptr); err != nil {
		return Pointer{}, err
	}
	return next, nil
}

func (a *Arena) checkBounds(address, width uint64) error {
	if address+width > uint64(len(a.data)) {
		return vmerr.Newf(vmerr.InvalidAddress, "address %d width %d exceeds arena of %d bytes", address, width, len(a.data))
	}
	return nil
}

// ReadU8 reads a single byte at address.
func (a *Arena) ReadU8(address uint64) (uint8, error) {
	if err := a.checkBounds(address, 1); err != nil {
		return 0, err
	}
	return a.data[address], nil
}

// WriteU8 writes a single byte at address.
func (a *Arena) WriteU8(address uint64, val uint8) error {
	if err := a.checkBounds(address, 1); err != nil {
		return err
	}
	a.data[address] = val
	return nil
}

// ReadU16 reads a big-endian u16 at address.
func (a *Arena) ReadU16(address uint64) (uint16, error) {
	if err := a.checkBounds(address, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(a.data[address : address+2]), nil
}

// WriteU16 writes a big-endian u16 at address.
func (a *Arena) WriteU16(address uint64, val uint16) error {
	if err := a.checkBounds(address, 2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(a.data[address:address+2], val)
	return nil
}

// ReadU32 reads a big-endian u32 at address.
func (a *Arena) ReadU32(address uint64) (uint32, error) {
	if err := a.checkBounds(address, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(a.data[address : address+4]), nil
}

// WriteU32 writes a big-endian u32 at address.
func (a *Arena) WriteU32(address uint64, val uint32) error {
	if err := a.checkBounds(address, 4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(a.data[address:address+4], val)
	return nil
}

// ReadU64 reads a big-endian u64 at address.
func (a *Arena) ReadU64(address uint64) (uint64, error) {
	if err := a.checkBounds(address, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(a.data[address : address+8]), nil
}

// WriteU64 writes a big-endian u64 at address.
func (a *Arena) WriteU64(address uint64, val uint64) error {
	if err := a.checkBounds(address, 8); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(a.data[address:address+8], val)
	return nil
}

// View exposes the raw bytes of a live range for diagnostics (hex dump)
// and tests. It does not copy; callers must not retain it past the next
// mutation.
func (a *Arena) View(ptr Pointer) []byte {
	return a.data[ptr.Address : ptr.Address+ptr.Size]
}

// Raw exposes the whole backing buffer for diagnostics. Like View, the
// slice aliases live storage.
func (a *Arena) Raw() []byte {
	return a.data
}

// LiveRanges returns a snapshot of the currently allocated [start,end)
// ranges, sorted by start, for tests asserting non-overlap invariants.
func (a *Arena) LiveRanges() []Pointer {
	sorted := a.sortedBlocks()
	out := make([]Pointer, len(sorted))
	for i, b := range sorted {
		out[i] = Pointer{Address: b.start, Size: b.end - b.start}
	}
	return out
}
