// Package pod implements 8-byte aligned blocks of plain old data with typed
// access at byte offsets.
package pod

import (
	"fmt"
	"unsafe"
)

// Align is the granularity of chunk sizes and bulk copies.
const Align = 8

// Scalar is any fixed-size value that may be stored in a chunk.
type Scalar interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 |
		~int64 | ~uint64 | ~float32 | ~float64
}

// Chunk owns a zero-initialised block backed by 64-bit words, so the base is
// always 8-byte aligned. Two chunks are never the same pointer, even when both
// are empty.
type Chunk struct {
	words    []uint64
	size     int
	released bool
}

// RoundUp returns size rounded up to the next multiple of Align.
func RoundUp(size int) int {
	return (size + Align - 1) &^ (Align - 1)
}

// New allocates a zeroed chunk of at least size bytes.
func New(size int) *Chunk {
	if size < 0 {
		panic(fmt.Sprintf("pod: negative chunk size %d", size))
	}
	size = RoundUp(size)
	return &Chunk{
		words: make([]uint64, size/Align),
		size:  size,
	}
}

// Size returns the usable size in bytes, always a multiple of Align.
func (c *Chunk) Size() int {
	if c == nil {
		return 0
	}
	c.check()
	return c.size
}

// Bytes returns a byte view of the chunk. The view aliases the chunk.
func (c *Chunk) Bytes() []byte {
	c.check()
	if c.size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&c.words[0])), c.size)
}

// Clone returns an independent copy.
func (c *Chunk) Clone() *Chunk {
	c.check()
	out := New(c.size)
	copy(out.words, c.words)
	return out
}

// Release drops the backing memory. Using or releasing the chunk again panics.
func (c *Chunk) Release() {
	c.check()
	c.words = nil
	c.released = true
}

func (c *Chunk) check() {
	if c.released {
		panic("pod: use of released chunk")
	}
}

func (c *Chunk) addr(off int, width int) unsafe.Pointer {
	c.check()
	if off < 0 || off+width > c.size {
		panic(fmt.Sprintf("pod: access [%d,%d) outside chunk of %d bytes", off, off+width, c.size))
	}
	if off%width != 0 {
		panic(fmt.Sprintf("pod: offset %d misaligned for %d-byte value", off, width))
	}
	return unsafe.Add(unsafe.Pointer(&c.words[0]), off)
}

// Get reads a T at the byte offset off, which must be aligned to T's size.
func Get[T Scalar](c *Chunk, off int) T {
	var zero T
	return *(*T)(c.addr(off, int(unsafe.Sizeof(zero))))
}

// Set writes v at the byte offset off, which must be aligned to T's size.
func Set[T Scalar](c *Chunk, off int, v T) {
	*(*T)(c.addr(off, int(unsafe.Sizeof(v)))) = v
}

// Copy moves n bytes from src at srcOff into dst at dstOff. All four values
// must be multiples of Align. A nil src is only valid with n == 0.
func Copy(src *Chunk, srcOff int, dst *Chunk, dstOff int, n int) {
	if srcOff%Align != 0 || dstOff%Align != 0 || n%Align != 0 {
		panic(fmt.Sprintf("pod: unaligned copy src=%d dst=%d n=%d", srcOff, dstOff, n))
	}
	if n == 0 {
		return
	}
	if src == nil {
		panic("pod: copy of non-zero length from nil chunk")
	}
	src.check()
	dst.check()
	if srcOff < 0 || srcOff+n > src.size || dstOff < 0 || dstOff+n > dst.size {
		panic(fmt.Sprintf("pod: copy of %d bytes out of range (src %d/%d, dst %d/%d)",
			n, srcOff, src.size, dstOff, dst.size))
	}
	copy(dst.words[dstOff/Align:(dstOff+n)/Align], src.words[srcOff/Align:(srcOff+n)/Align])
}
