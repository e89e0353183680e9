//go:build !windows

package exprjit

// System V AMD64: xmm0..xmm7 pass float arguments and all XMM registers are
// caller-saved, so the full xmm1..xmm7 range is available for results and
// no shadow space is needed at call sites.
const (
	abiShadowSpace = 0
	abiResultRegs  = 7 // xmm1..xmm7
)
