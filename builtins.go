package exprjit

import "math"

// The built-in function set seeded into every symbol table. Each entry
// pairs the libm symbol the generated code calls with the Go mirror the
// folder evaluates at compile time.

var libm1 = []struct {
	name  string
	cname string
	eval  func(float64) float64
}{
	{"exp", "exp", math.Exp},
	{"exp2", "exp2", math.Exp2},
	{"log", "log", math.Log},
	{"log2", "log2", math.Log2},
	{"log10", "log10", math.Log10},
	{"sin", "sin", math.Sin},
	{"cos", "cos", math.Cos},
	{"tan", "tan", math.Tan},
	{"asin", "asin", math.Asin},
	{"acos", "acos", math.Acos},
	{"atan", "atan", math.Atan},
	{"sinh", "sinh", math.Sinh},
	{"cosh", "cosh", math.Cosh},
	{"tanh", "tanh", math.Tanh},
	{"asinh", "asinh", math.Asinh},
	{"acosh", "acosh", math.Acosh},
	{"atanh", "atanh", math.Atanh},
	{"round", "round", math.Round},
	{"ceil", "ceil", math.Ceil},
	{"floor", "floor", math.Floor},
}

var libm2 = []struct {
	name  string
	cname string
	eval  func(float64, float64) float64
}{
	{"pow", "pow", math.Pow},
	{"mod", "fmod", math.Mod},
	{"atan2", "atan2", math.Atan2},
	{"hypot", "hypot", math.Hypot},
}

// seedBuiltins installs the default function set. abs/sqrt/min/max/clamp
// come from the engine's stub page; everything else resolves from the host
// math library. Any built-in may later be shadowed by BindFunc* with the
// same name and arity.
func seedBuiltins(t *SymbolTable, s *stubSet) error {
	for _, f := range libm1 {
		ptr, err := libmResolve(f.cname)
		if err != nil {
			return err
		}
		t.BindFunc(f.name, FuncBinding{Arity: 1, Ptr: ptr, Eval1: f.eval})
	}
	for _, f := range libm2 {
		ptr, err := libmResolve(f.cname)
		if err != nil {
			return err
		}
		t.BindFunc(f.name, FuncBinding{Arity: 2, Ptr: ptr, Eval2: f.eval})
	}

	t.BindFunc("abs", FuncBinding{Arity: 1, Ptr: s.abs, Eval1: math.Abs})
	t.BindFunc("sqrt", FuncBinding{Arity: 1, Ptr: s.sqrt, Eval1: math.Sqrt})
	t.BindFunc("min", FuncBinding{Arity: 2, Ptr: s.min, Eval2: stubMinEval})
	t.BindFunc("max", FuncBinding{Arity: 2, Ptr: s.max, Eval2: stubMaxEval})
	t.BindFunc("clamp", FuncBinding{Arity: 3, Ptr: s.clamp, Eval3: stubClampEval})
	return nil
}
