package exprjit

import (
	"encoding/binary"
	"math"
)

// DefaultCodeBufferSize is the capacity of the executable buffer when no
// override is configured.
const DefaultCodeBufferSize = 16 * 1024

// ExecBuffer is a single mmap'd region holding emitted machine code and its
// constant pool. Code grows from offset zero upward; the pool grows from the
// top end downward. Overflow latches ErrCodeBufferFull and turns every later
// write into a no-op, so emission can unwind without checking each byte.
//
// Seal transitions the region from RW to RX and hands out the entry address.
// Close unmaps the region and invalidates any function pointer derived from
// it; the owner must not call a sealed function after Close.
type ExecBuffer struct {
	mem    []byte
	n      int // code write cursor
	pool   int // pool floor; consts live in mem[pool:]
	consts map[uint64]int
	sealed bool
	err    error
}

func NewExecBuffer(capacity int) (*ExecBuffer, error) {
	if capacity < pageSize {
		capacity = pageSize
	}
	capacity = (capacity + pageSize - 1) &^ (pageSize - 1)
	mem, err := osMapRW(capacity)
	if err != nil {
		return nil, err
	}
	return &ExecBuffer{
		mem:    mem,
		pool:   capacity,
		consts: make(map[uint64]int),
	}, nil
}

// Err reports the latched overflow error, if any.
func (b *ExecBuffer) Err() error { return b.err }

// Pos is the current code write offset.
func (b *ExecBuffer) Pos() int { return b.n }

// Cap is the total region size.
func (b *ExecBuffer) Cap() int { return len(b.mem) }

func (b *ExecBuffer) Write(bs ...byte) {
	if b.sealed {
		panic("exprjit: write to sealed buffer")
	}
	if b.err != nil {
		return
	}
	if b.n+len(bs) > b.pool {
		b.err = ErrCodeBufferFull
		return
	}
	copy(b.mem[b.n:], bs)
	b.n += len(bs)
}

func (b *ExecBuffer) WriteU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.Write(tmp[:]...)
}

func (b *ExecBuffer) WriteU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.Write(tmp[:]...)
}

// Patch32 rewrites a previously written 32-bit field in place.
func (b *ExecBuffer) Patch32(off int, v uint32) {
	if b.err != nil {
		return
	}
	binary.LittleEndian.PutUint32(b.mem[off:], v)
}

// Const8 places an 8-byte double in the pool and returns its offset.
// Identical values share one slot.
func (b *ExecBuffer) Const8(v float64) int {
	bits := math.Float64bits(v)
	if off, ok := b.consts[bits]; ok {
		return off
	}
	off := (b.pool - 8) &^ 7
	if off < b.n {
		b.err = ErrCodeBufferFull
		return 0
	}
	b.pool = off
	binary.LittleEndian.PutUint64(b.mem[off:], bits)
	b.consts[bits] = off
	return off
}

// Const16 places a 16-byte-aligned pair of quadwords in the pool, for xorpd
// masks and other full-width SSE operands.
func (b *ExecBuffer) Const16(lo, hi uint64) int {
	off := (b.pool - 16) &^ 15
	if off < b.n {
		b.err = ErrCodeBufferFull
		return 0
	}
	b.pool = off
	binary.LittleEndian.PutUint64(b.mem[off:], lo)
	binary.LittleEndian.PutUint64(b.mem[off+8:], hi)
	return off
}

// Code returns a copy of the emitted instruction bytes.
func (b *ExecBuffer) Code() []byte {
	out := make([]byte, b.n)
	copy(out, b.mem[:b.n])
	return out
}

// Seal flushes the instruction cache abstraction, remaps the region
// executable and returns the address of offset zero.
func (b *ExecBuffer) Seal() (uintptr, error) {
	if b.err != nil {
		return 0, b.err
	}
	flushICache(b.mem)
	if err := osProtectRX(b.mem); err != nil {
		return 0, err
	}
	b.sealed = true
	return bufBase(b.mem), nil
}

// Close unmaps the region. Any function pointer obtained from Seal is dead
// after this returns.
func (b *ExecBuffer) Close() error {
	if b.mem == nil {
		return nil
	}
	mem := b.mem
	b.mem = nil
	return osUnmap(mem)
}

// flushICache is required on architectures with incoherent instruction
// caches. x86-64 keeps them coherent; the call stays so ports only have to
// fill it in.
func flushICache(mem []byte) {}
