package exprjit

import (
	"bytes"
	"testing"
)

func newTestAsm(t *testing.T) (*Assembler, *ExecBuffer) {
	t.Helper()
	buf, err := NewExecBuffer(pageSize)
	if err != nil {
		t.Fatalf("NewExecBuffer: %v", err)
	}
	t.Cleanup(func() { buf.Close() })
	return NewAssembler(buf), buf
}

func TestEncodings(t *testing.T) {
	tests := []struct {
		name string
		emit func(a *Assembler)
		want []byte
	}{
		{"ret", func(a *Assembler) { a.Ret() }, []byte{0xC3}},
		{"push rbp", func(a *Assembler) { a.PushReg(regRBP) }, []byte{0x55}},
		{"pop rbp", func(a *Assembler) { a.PopReg(regRBP) }, []byte{0x5D}},
		{"mov rbp, rsp", func(a *Assembler) { a.MovRegToReg(regRBP, regRSP) }, []byte{0x48, 0x89, 0xE5}},
		{"mov rsp, rbp", func(a *Assembler) { a.MovRegToReg(regRSP, regRBP) }, []byte{0x48, 0x89, 0xEC}},
		{"call rax", func(a *Assembler) { a.CallReg(regRAX) }, []byte{0xFF, 0xD0}},
		{"jb short", func(a *Assembler) { a.JbShort(7) }, []byte{0x72, 0x07}},
		{"addsd xmm1, xmm2", func(a *Assembler) { a.AddsdXmm(1, 2) }, []byte{0xF2, 0x0F, 0x58, 0xCA}},
		{"subsd xmm3, xmm1", func(a *Assembler) { a.SubsdXmm(3, 1) }, []byte{0xF2, 0x0F, 0x5C, 0xD9}},
		{"mulsd xmm1, xmm1", func(a *Assembler) { a.MulsdXmm(1, 1) }, []byte{0xF2, 0x0F, 0x59, 0xC9}},
		{"divsd xmm0, xmm1", func(a *Assembler) { a.DivsdXmm(0, 1) }, []byte{0xF2, 0x0F, 0x5E, 0xC1}},
		{"sqrtsd xmm0, xmm0", func(a *Assembler) { a.SqrtsdXmm(0, 0) }, []byte{0xF2, 0x0F, 0x51, 0xC0}},
		{"minsd xmm0, xmm1", func(a *Assembler) { a.MinsdXmm(0, 1) }, []byte{0xF2, 0x0F, 0x5D, 0xC1}},
		{"maxsd xmm0, xmm1", func(a *Assembler) { a.MaxsdXmm(0, 1) }, []byte{0xF2, 0x0F, 0x5F, 0xC1}},
		{"movapd xmm0, xmm2", func(a *Assembler) { a.MovapdXmm(0, 2) }, []byte{0x66, 0x0F, 0x28, 0xC2}},
		{"ucomisd xmm0, xmm1", func(a *Assembler) { a.UcomisdXmm(0, 1) }, []byte{0x66, 0x0F, 0x2E, 0xC1}},
		{"xorpd xmm0, xmm0", func(a *Assembler) { a.XorpdXmm(0, 0) }, []byte{0x66, 0x0F, 0x57, 0xC0}},
		{"psllq xmm0, 1", func(a *Assembler) { a.PsllqImm(0, 1) }, []byte{0x66, 0x0F, 0x73, 0xF0, 0x01}},
		{"psrlq xmm0, 1", func(a *Assembler) { a.PsrlqImm(0, 1) }, []byte{0x66, 0x0F, 0x73, 0xD0, 0x01}},
		{"movsd xmm1, [rax]", func(a *Assembler) { a.MovsdXmmFromReg(1, regRAX) }, []byte{0xF2, 0x0F, 0x10, 0x08}},
		{"movsd xmm1, [rbp-8]", func(a *Assembler) { a.MovsdXmmFromFrame(1, -8) }, []byte{0xF2, 0x0F, 0x10, 0x4D, 0xF8}},
		{"movsd [rbp-16], xmm2", func(a *Assembler) { a.MovsdFrameFromXmm(2, -16) }, []byte{0xF2, 0x0F, 0x11, 0x55, 0xF0}},
		{"movsd xmm1, [rbp-200]", func(a *Assembler) { a.MovsdXmmFromFrame(1, -200) },
			[]byte{0xF2, 0x0F, 0x10, 0x8D, 0x38, 0xFF, 0xFF, 0xFF}},
		{"mov rax, imm64", func(a *Assembler) { a.MovImm64ToReg(regRAX, 0x1122334455667788) },
			[]byte{0x48, 0xB8, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, buf := newTestAsm(t)
			tt.emit(a)
			if got := buf.Code(); !bytes.Equal(got, tt.want) {
				t.Errorf("encoded % X, want % X", got, tt.want)
			}
		})
	}
}

func TestMovsdXmmConstRipDisplacement(t *testing.T) {
	a, buf := newTestAsm(t)

	off := buf.Const8(1.5)
	a.MovsdXmmConst(0, off)

	code := buf.Code()
	if len(code) != 8 {
		t.Fatalf("instruction length = %d, want 8", len(code))
	}
	want := []byte{0xF2, 0x0F, 0x10, 0x05}
	if !bytes.Equal(code[:4], want) {
		t.Fatalf("opcode bytes % X, want % X", code[:4], want)
	}
	disp := int32(uint32(code[4]) | uint32(code[5])<<8 | uint32(code[6])<<16 | uint32(code[7])<<24)
	// disp is relative to the end of the instruction, which is offset 8.
	if got := 8 + int(disp); got != off {
		t.Errorf("rip target = %d, want pool offset %d", got, off)
	}
}

func TestSubImmFromRspPatch(t *testing.T) {
	a, buf := newTestAsm(t)

	patch := a.SubImmFromRsp(0)
	buf.Patch32(patch, 0x40)

	want := []byte{0x48, 0x81, 0xEC, 0x40, 0x00, 0x00, 0x00}
	if got := buf.Code(); !bytes.Equal(got, want) {
		t.Errorf("encoded % X, want % X", got, want)
	}
}
