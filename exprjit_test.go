package exprjit

import (
	"math"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t testing.TB) *Expr {
	t.Helper()
	if runtime.GOARCH != "amd64" {
		t.Skip("generated code targets x86-64")
	}
	e, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func compileEval(t *testing.T, e *Expr, src string) float64 {
	t.Helper()
	require.NoError(t, e.Compile(src), "compile %q: %s", src, e.Err())
	return e.Eval()
}

func TestBasicExpressions(t *testing.T) {
	e := newEngine(t)

	assert.Equal(t, 7.0, compileEval(t, e, "1 + 2*3"))
	assert.Equal(t, 9.0, compileEval(t, e, "(1 + 2)*3"))
	assert.Equal(t, 15.0, compileEval(t, e, "(7 - 2)*(5 - 2)"))
	assert.Equal(t, 0.2, compileEval(t, e, "8/2*0.5*1e-1"))
}

func TestExternalVariables(t *testing.T) {
	e := newEngine(t)

	require.Error(t, e.Compile("x"))
	assert.Contains(t, e.Err(), "x")

	e.BindVar("x", 1.0)
	assert.Equal(t, 1.0, compileEval(t, e, "x"))

	// Updates are visible without recompilation.
	e.BindVar("x", 10.0)
	assert.Equal(t, 10.0, e.Eval())

	e.BindVar("x", 2.0)
	assert.Equal(t, 6.0, compileEval(t, e, "x + x + x"))
	assert.Equal(t, 8.0, compileEval(t, e, "x*x*x"))
	e.BindVar("x", 3.0)
	assert.Equal(t, 27.0, e.Eval())
	e.BindVar("x", 2.0)
	assert.Equal(t, 8.0, e.Eval())
}

func TestStandardFunctions(t *testing.T) {
	e := newEngine(t)

	assert.Equal(t, 4.0, compileEval(t, e, "sqrt(16.0)"))
	assert.Equal(t, 0.0, compileEval(t, e, "sin(0.0)"))
	assert.Equal(t, 1.0, compileEval(t, e, "cos(0.0)"))

	// Through a variable the call happens at run time, not in the folder.
	e.BindVar("x", 16.0)
	assert.Equal(t, 4.0, compileEval(t, e, "sqrt(x)"))
	assert.Equal(t, 32.0, compileEval(t, e, "abs(x) + abs(0 - x)"))
	e.BindVar("x", 2.0)
	assert.InDelta(t, math.Exp(2), compileEval(t, e, "exp(x)"), 1e-12)
	assert.Equal(t, math.Pow(2, 10), compileEval(t, e, "pow(x, 10)"))
	assert.Equal(t, math.Mod(7.5, 2), compileEval(t, e, "mod(7.5, x)"))
}

func TestTwoArgumentFunctions(t *testing.T) {
	e := newEngine(t)
	e.BindVar("a", 5.0)
	e.BindVar("b", 2.0)

	assert.Equal(t, 2.0, compileEval(t, e, "min(a, b)"))
	assert.Equal(t, 2.0, compileEval(t, e, "min(b, a)"))
	assert.Equal(t, 5.0, compileEval(t, e, "max(a, b)"))
	assert.Equal(t, 5.0, compileEval(t, e, "max(b, a)"))
}

func TestClamp(t *testing.T) {
	e := newEngine(t)
	e.BindVar("x", 0.0)

	require.NoError(t, e.Compile("clamp(x, -1, 1)"))
	assert.Equal(t, 0.0, e.Eval())

	e.BindVar("x", 10.0)
	assert.Equal(t, 1.0, e.Eval())

	e.BindVar("x", -10.0)
	assert.Equal(t, -1.0, e.Eval())
}

func TestDivisionChains(t *testing.T) {
	e := newEngine(t)

	e.BindVar("x", 2.0)
	assert.Equal(t, 1.0, compileEval(t, e, "16/x/x/x/x"))
}

func TestDivisionChainBitIdentity(t *testing.T) {
	e := newEngine(t)
	vals := map[string]float64{"a": 3.7, "b": 1.3, "c": 2.9, "d": 0.7, "e": 5.1}
	for name, v := range vals {
		e.BindVar(name, v)
	}

	chained := compileEval(t, e, "a/b/c/d/e")
	explicit := compileEval(t, e, "a*(1/(b*c*d*e))")
	assert.Equal(t, math.Float64bits(explicit), math.Float64bits(chained),
		"a/b/c/d/e must be the single-Recip form bit for bit")
}

func TestComputedValuesWithinOneUlp(t *testing.T) {
	e := newEngine(t)

	e.BindVar("x", 0.5)
	require.NoError(t, e.Compile("sin(x)/x"))

	for x := 0.1; x < 1.0; x += 0.1 {
		e.BindVar("x", x)
		got := e.Eval()
		want := math.Sin(x) / x
		assert.LessOrEqual(t, ulpDiff(got, want), uint64(1), "x=%g got=%g want=%g", x, got, want)
	}
}

func ulpDiff(a, b float64) uint64 {
	ab, bb := math.Float64bits(a), math.Float64bits(b)
	if ab > bb {
		return ab - bb
	}
	return bb - ab
}

func TestEvalBeforeCompile(t *testing.T) {
	e := newEngine(t)
	assert.Equal(t, 0.0, e.Eval())
	assert.Equal(t, "", e.Err())
	assert.False(t, e.Compiled())
}

func TestFailedCompileKeepsPreviousProgram(t *testing.T) {
	e := newEngine(t)

	assert.Equal(t, 2.0, compileEval(t, e, "1 + 1"))

	require.Error(t, e.Compile("undefined(0.0)"))
	assert.Contains(t, e.Err(), "undefined")
	assert.Equal(t, 2.0, e.Eval(), "previous program must stay callable")

	assert.Equal(t, 4.0, compileEval(t, e, "2 + 2"))
	assert.Equal(t, "", e.Err())
}

func TestRecompileIdenticalSourceIsNoop(t *testing.T) {
	e := newEngine(t)
	e.BindVar("x", 2.0)

	assert.Equal(t, 4.0, compileEval(t, e, "x*x"))

	// A failed compile in between must not poison the skip.
	require.Error(t, e.Compile("((("))
	require.NoError(t, e.Compile("x*x"))
	assert.Equal(t, "", e.Err())
	assert.Equal(t, 4.0, e.Eval())
}

func TestConstantExpressionEmitsSingleLoad(t *testing.T) {
	e := newEngine(t)

	assert.Equal(t, 10.0, compileEval(t, e, "2*3 + 4"))
	code := e.Dump()
	require.NotNil(t, code)
	for _, b := range [][]byte{{0xF2, 0x0F, 0x58}, {0xF2, 0x0F, 0x59}, {0xF2, 0x0F, 0x5C}} {
		assert.NotContains(t, string(code), string(b),
			"fully folded expression must carry no arithmetic instructions")
	}
}

func TestBindFunc(t *testing.T) {
	e := newEngine(t)

	e.BindFunc1("twice", func(x float64) float64 { return 2 * x })
	e.BindFunc2("wsum", func(x, y float64) float64 { return 10*x + y })
	e.BindFunc3("lerp", func(a, b, s float64) float64 { return a + (b-a)*s })

	// Constant arguments fold through the Go evaluator at compile time.
	assert.Equal(t, 6.0, compileEval(t, e, "twice(3)"))

	// Variable arguments go through the native callback at run time.
	e.BindVar("x", 4.0)
	assert.Equal(t, 8.0, compileEval(t, e, "twice(x)"))
	assert.Equal(t, 43.0, compileEval(t, e, "wsum(x, 3)"))
	assert.Equal(t, 5.0, compileEval(t, e, "lerp(x, 6, 0.5)"))
}

func TestShadowBuiltin(t *testing.T) {
	e := newEngine(t)

	e.BindFunc1("sin", func(x float64) float64 { return x })
	e.BindVar("x", 2.0)
	assert.Equal(t, 2.0, compileEval(t, e, "sin(x)"))
}

func TestDeepExpressionSpills(t *testing.T) {
	e := newEngine(t)
	e.BindVar("x", 0.0)

	// Right-leaning sum of call results: each level holds a temporary live
	// across the nested subexpression, pushing past the register pool and
	// through the call-site spill path.
	src := "exp(x)"
	for i := 0; i < 12; i++ {
		src = "exp(x) + (" + src + ")"
	}
	assert.Equal(t, 13.0, compileEval(t, e, src))
}

func TestManyVariables(t *testing.T) {
	e := newEngine(t)

	names := []string{"a", "b", "c", "d", "f", "g", "h", "i", "j", "k"}
	src := ""
	want := 0.0
	for n, name := range names {
		e.BindVar(name, float64(n+1))
		want += float64(n + 1)
		if n > 0 {
			src += " + "
		}
		src += name
	}
	assert.Equal(t, want, compileEval(t, e, src))
}

func BenchmarkCompile(b *testing.B) {
	e := newEngine(b)
	e.BindVar("x", 0.5)

	srcs := []string{"sin(x)/x + 1", "sin(x)/x + 2"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.Compile(srcs[i&1]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEval(b *testing.B) {
	e := newEngine(b)
	e.BindVar("x", 0.5)
	if err := e.Compile("2*x*x + 3*x + 1"); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	var sink float64
	for i := 0; i < b.N; i++ {
		sink = e.Eval()
	}
	_ = sink
}

func BenchmarkEvalSin(b *testing.B) {
	e := newEngine(b)
	e.BindVar("x", 0.5)
	if err := e.Compile("sin(x)/x"); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	var sink float64
	for i := 0; i < b.N; i++ {
		sink = e.Eval()
	}
	_ = sink
}
