package exprjit

// x86-64 instruction encoding for the scalar-double subset the code
// generator needs. All XMM operands are xmm0..xmm7 and all general-purpose
// operands are the low eight registers, so no REX.R/REX.B handling is
// required; REX.W appears only on the 64-bit mov/sub forms.

// General-purpose register encodings
const (
	regRAX = 0
	regRCX = 1
	regRDX = 2
	regRBX = 3
	regRSP = 4
	regRBP = 5
)

// Assembler writes instructions into an ExecBuffer. Encoding failures are
// impossible by construction; buffer overflow latches inside the buffer and
// is checked once after emission.
type Assembler struct {
	b *ExecBuffer
}

func NewAssembler(b *ExecBuffer) *Assembler {
	return &Assembler{b: b}
}

func modrm(mod, reg, rm int) byte {
	return byte(mod<<6 | (reg&7)<<3 | rm&7)
}

func (a *Assembler) Ret() {
	a.b.Write(0xC3)
}

func (a *Assembler) PushReg(r int) {
	a.b.Write(0x50 + byte(r&7))
}

func (a *Assembler) PopReg(r int) {
	a.b.Write(0x58 + byte(r&7))
}

// MovRegToReg - mov dst, src (64-bit)
func (a *Assembler) MovRegToReg(dst, src int) {
	a.b.Write(0x48, 0x89, modrm(3, src, dst))
}

// MovImm64ToReg - mov r, imm64
func (a *Assembler) MovImm64ToReg(r int, v uint64) {
	a.b.Write(0x48, 0xB8+byte(r&7))
	a.b.WriteU64(v)
}

// CallReg - call r
func (a *Assembler) CallReg(r int) {
	a.b.Write(0xFF, 0xD0+byte(r&7))
}

// SubImmFromRsp - sub rsp, imm32; returns the offset of the immediate so
// the frame size can be patched once it is known.
func (a *Assembler) SubImmFromRsp(v uint32) int {
	a.b.Write(0x48, 0x81, 0xEC)
	off := a.b.Pos()
	a.b.WriteU32(v)
	return off
}

// JbShort - jb rel8
func (a *Assembler) JbShort(disp int8) {
	a.b.Write(0x72, byte(disp))
}

// ===== Scalar double arithmetic =====

func (a *Assembler) sse2(op byte, dst, src int) {
	// F2 prefix for scalar double
	a.b.Write(0xF2, 0x0F, op, modrm(3, dst, src))
}

// AddsdXmm - addsd dst, src (F2 0F 58)
func (a *Assembler) AddsdXmm(dst, src int) { a.sse2(0x58, dst, src) }

// SubsdXmm - subsd dst, src (F2 0F 5C)
func (a *Assembler) SubsdXmm(dst, src int) { a.sse2(0x5C, dst, src) }

// MulsdXmm - mulsd dst, src (F2 0F 59)
func (a *Assembler) MulsdXmm(dst, src int) { a.sse2(0x59, dst, src) }

// DivsdXmm - divsd dst, src (F2 0F 5E)
func (a *Assembler) DivsdXmm(dst, src int) { a.sse2(0x5E, dst, src) }

// SqrtsdXmm - sqrtsd dst, src (F2 0F 51)
func (a *Assembler) SqrtsdXmm(dst, src int) { a.sse2(0x51, dst, src) }

// MinsdXmm - minsd dst, src (F2 0F 5D)
func (a *Assembler) MinsdXmm(dst, src int) { a.sse2(0x5D, dst, src) }

// MaxsdXmm - maxsd dst, src (F2 0F 5F)
func (a *Assembler) MaxsdXmm(dst, src int) { a.sse2(0x5F, dst, src) }

// ===== Packed-double helpers =====

// MovapdXmm - movapd dst, src (66 0F 28)
func (a *Assembler) MovapdXmm(dst, src int) {
	a.b.Write(0x66, 0x0F, 0x28, modrm(3, dst, src))
}

// UcomisdXmm - ucomisd x, y (66 0F 2E); sets CF when x < y or unordered
func (a *Assembler) UcomisdXmm(x, y int) {
	a.b.Write(0x66, 0x0F, 0x2E, modrm(3, x, y))
}

// XorpdXmm - xorpd dst, src (66 0F 57)
func (a *Assembler) XorpdXmm(dst, src int) {
	a.b.Write(0x66, 0x0F, 0x57, modrm(3, dst, src))
}

// XorpdXmmConst - xorpd dst, [rip+disp] against a 16-byte pool constant
func (a *Assembler) XorpdXmmConst(dst, poolOff int) {
	a.b.Write(0x66, 0x0F, 0x57, modrm(0, dst, 5))
	a.b.WriteU32(uint32(int32(poolOff - (a.b.Pos() + 4))))
}

// PsllqImm - psllq x, imm8 (66 0F 73 /6)
func (a *Assembler) PsllqImm(x int, imm byte) {
	a.b.Write(0x66, 0x0F, 0x73, modrm(3, 6, x), imm)
}

// PsrlqImm - psrlq x, imm8 (66 0F 73 /2)
func (a *Assembler) PsrlqImm(x int, imm byte) {
	a.b.Write(0x66, 0x0F, 0x73, modrm(3, 2, x), imm)
}

// ===== Scalar double moves =====

// MovsdXmmConst - movsd dst, [rip+disp] loading an 8-byte pool constant
func (a *Assembler) MovsdXmmConst(dst, poolOff int) {
	a.b.Write(0xF2, 0x0F, 0x10, modrm(0, dst, 5))
	a.b.WriteU32(uint32(int32(poolOff - (a.b.Pos() + 4))))
}

// MovsdXmmFromReg - movsd dst, [base]. base must not encode as rsp/rbp.
func (a *Assembler) MovsdXmmFromReg(dst, base int) {
	if base&7 == regRSP || base&7 == regRBP {
		panic("exprjit: movsd base register needs a SIB or displacement form")
	}
	a.b.Write(0xF2, 0x0F, 0x10, modrm(0, dst, base))
}

// MovsdXmmFromFrame - movsd dst, [rbp+disp]
func (a *Assembler) MovsdXmmFromFrame(dst int, disp int32) {
	if disp >= -128 && disp <= 127 {
		a.b.Write(0xF2, 0x0F, 0x10, modrm(1, dst, regRBP), byte(disp))
		return
	}
	a.b.Write(0xF2, 0x0F, 0x10, modrm(2, dst, regRBP))
	a.b.WriteU32(uint32(disp))
}

// MovsdFrameFromXmm - movsd [rbp+disp], src
func (a *Assembler) MovsdFrameFromXmm(src int, disp int32) {
	if disp >= -128 && disp <= 127 {
		a.b.Write(0xF2, 0x0F, 0x11, modrm(1, src, regRBP), byte(disp))
		return
	}
	a.b.Write(0xF2, 0x0F, 0x11, modrm(2, src, regRBP))
	a.b.WriteU32(uint32(disp))
}
