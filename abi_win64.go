//go:build windows

package exprjit

// Windows x64: xmm6..xmm15 are callee-saved, so results stay in xmm1..xmm5
// to keep the prologue free of XMM save/restore pairs, and every call site
// must see 32 bytes of shadow space above rsp. The shadow space is folded
// into the frame permanently; spill slots sit rbp-relative above it.
const (
	abiShadowSpace = 32
	abiResultRegs  = 5 // xmm1..xmm5
)
