package exprjit

// stubSet is a small executable page built once per engine. It carries the
// zero function Eval runs before the first successful compile, the
// reciprocal helper the Recip node calls (the node vocabulary has no divide
// instruction), and the built-ins whose required comparison semantics map
// onto single SSE2 instructions rather than libm calls.
type stubSet struct {
	buf   *ExecBuffer
	zero  uintptr // func() -> 0.0
	recip uintptr // func(x) -> 1/x
	abs   uintptr // func(x) -> |x|
	sqrt  uintptr // func(x) -> sqrt(x)
	min   uintptr // func(x,y) -> x < y ? x : y
	max   uintptr // func(x,y) -> x > y ? x : y
	clamp uintptr // func(x,a,b) -> x < a ? a : x > b ? b : x
}

func buildStubs() (*stubSet, error) {
	buf, err := NewExecBuffer(pageSize)
	if err != nil {
		return nil, err
	}
	a := NewAssembler(buf)

	zeroOff := buf.Pos()
	a.XorpdXmm(0, 0)
	a.Ret()

	recipOff := buf.Pos()
	one := buf.Const8(1.0)
	a.MovapdXmm(1, 0)
	a.MovsdXmmConst(0, one)
	a.DivsdXmm(0, 1)
	a.Ret()

	// |x| by shifting the sign bit out and back
	absOff := buf.Pos()
	a.PsllqImm(0, 1)
	a.PsrlqImm(0, 1)
	a.Ret()

	sqrtOff := buf.Pos()
	a.SqrtsdXmm(0, 0)
	a.Ret()

	// minsd/maxsd keep the first operand exactly when the comparison holds,
	// which is the < / > selection the table documents.
	minOff := buf.Pos()
	a.MinsdXmm(0, 1)
	a.Ret()

	maxOff := buf.Pos()
	a.MaxsdXmm(0, 1)
	a.Ret()

	// clamp(x,a,b): the lower bound is tested first, matching the documented
	// x < a ? a : x > b ? b : x; with a degenerate a > b range, x < a yields
	// a and any other x yields b.
	clampOff := buf.Pos()
	a.UcomisdXmm(0, 1) // CF when x < a
	a.JbShort(7)
	a.UcomisdXmm(2, 0) // CF when b < x
	a.JbShort(6)
	a.Ret()
	a.MovapdXmm(0, 1)
	a.Ret()
	a.MovapdXmm(0, 2)
	a.Ret()

	base, err := buf.Seal()
	if err != nil {
		buf.Close()
		return nil, err
	}
	return &stubSet{
		buf:   buf,
		zero:  base + uintptr(zeroOff),
		recip: base + uintptr(recipOff),
		abs:   base + uintptr(absOff),
		sqrt:  base + uintptr(sqrtOff),
		min:   base + uintptr(minOff),
		max:   base + uintptr(maxOff),
		clamp: base + uintptr(clampOff),
	}, nil
}

func (s *stubSet) close() error {
	if s.buf == nil {
		return nil
	}
	buf := s.buf
	s.buf = nil
	return buf.Close()
}

// Go-side evaluators for the stub built-ins, used by compile-time folding.

func stubMinEval(x, y float64) float64 {
	if x < y {
		return x
	}
	return y
}

func stubMaxEval(x, y float64) float64 {
	if x > y {
		return x
	}
	return y
}

func stubClampEval(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
