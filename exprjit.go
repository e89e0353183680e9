// Package exprjit compiles floating-point expressions like
// "sin(x)/x + clamp(y,-1,1)" to native x86-64 code and evaluates them
// repeatedly without recompilation as bound variables change.
//
// A host binds named variables (mutable double cells) and named native
// functions into an engine, compiles an expression once, then calls Eval.
// Compiled code reads variable cells by absolute address, so updates are
// visible immediately. One goroutine owns an engine; compiled functions may
// be called concurrently only while nobody writes the variables it reads
// and nobody recompiles the engine.
package exprjit

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/ebitengine/purego"
	"github.com/xyproto/env/v2"
)

// Expr is one expression engine: a symbol table shared across compilations
// plus the currently installed program. Not safe for concurrent use.
type Expr struct {
	table    *SymbolTable
	arena    *NodeArena
	stubs    *stubSet
	buf      *ExecBuffer // sealed program, nil before the first success
	fn       func() float64
	srcHash  uint64
	compiled bool
	dirty    bool // a binding changed since the last successful compile
	lastErr  error
	capacity int
	maxSpill int
	debug    bool
}

// New creates an engine with the default built-in functions bound. The
// code-buffer capacity honours EXPRJIT_CODE_BUFFER and the debug dump
// EXPRJIT_DEBUG.
func New() (*Expr, error) {
	return NewWithCapacity(env.Int("EXPRJIT_CODE_BUFFER", DefaultCodeBufferSize))
}

// NewWithCapacity creates an engine whose executable buffers hold capacity
// bytes of code and constants.
func NewWithCapacity(capacity int) (*Expr, error) {
	stubs, err := buildStubs()
	if err != nil {
		return nil, err
	}
	table := NewSymbolTable()
	if err := seedBuiltins(table, stubs); err != nil {
		stubs.close()
		table.Close()
		return nil, err
	}

	e := &Expr{
		table:    table,
		arena:    NewNodeArena(),
		stubs:    stubs,
		capacity: capacity,
		maxSpill: DefaultMaxSpillSlots,
		debug:    env.Bool("EXPRJIT_DEBUG"),
	}
	// Eval before any successful compile runs the zero stub.
	purego.RegisterFunc(&e.fn, stubs.zero)
	return e, nil
}

// BindVar creates or updates a variable. Compiled expressions referencing
// it observe the new value on their next evaluation.
func (e *Expr) BindVar(name string, v float64) {
	// Rebinding may change what an identifier means, so it disables the
	// identical-source compile skip. Value updates stay live either way.
	e.dirty = true
	e.table.BindVar(name, v)
}

// Var reads a variable back; unbound names read as 0.
func (e *Expr) Var(name string) float64 {
	return e.table.Var(name)
}

// BindFunc1 binds a 1-ary Go function as a native callable. The function
// must be pure: fully-constant calls are evaluated at compile time.
func (e *Expr) BindFunc1(name string, fn func(float64) float64) {
	e.dirty = true
	e.table.BindFunc(name, FuncBinding{Arity: 1, Ptr: purego.NewCallback(fn), Eval1: fn})
}

// BindFunc2 binds a 2-ary Go function.
func (e *Expr) BindFunc2(name string, fn func(float64, float64) float64) {
	e.dirty = true
	e.table.BindFunc(name, FuncBinding{Arity: 2, Ptr: purego.NewCallback(fn), Eval2: fn})
}

// BindFunc3 binds a 3-ary Go function.
func (e *Expr) BindFunc3(name string, fn func(float64, float64, float64) float64) {
	e.dirty = true
	e.table.BindFunc(name, FuncBinding{Arity: 3, Ptr: purego.NewCallback(fn), Eval3: fn})
}

// BindFunc1Ptr binds a raw C-ABI function pointer of one double argument.
// The folder gains a Go-side view of it through purego.
func (e *Expr) BindFunc1Ptr(name string, ptr uintptr) {
	e.dirty = true
	var eval func(float64) float64
	purego.RegisterFunc(&eval, ptr)
	e.table.BindFunc(name, FuncBinding{Arity: 1, Ptr: ptr, Eval1: eval})
}

// BindFunc2Ptr binds a raw C-ABI function pointer of two double arguments.
func (e *Expr) BindFunc2Ptr(name string, ptr uintptr) {
	e.dirty = true
	var eval func(float64, float64) float64
	purego.RegisterFunc(&eval, ptr)
	e.table.BindFunc(name, FuncBinding{Arity: 2, Ptr: ptr, Eval2: eval})
}

// BindFunc3Ptr binds a raw C-ABI function pointer of three double arguments.
func (e *Expr) BindFunc3Ptr(name string, ptr uintptr) {
	e.dirty = true
	var eval func(float64, float64, float64) float64
	purego.RegisterFunc(&eval, ptr)
	e.table.BindFunc(name, FuncBinding{Arity: 3, Ptr: ptr, Eval3: eval})
}

// Compile parses, folds and lowers src, replacing the installed program on
// success. On failure the previous program (if any) stays callable and Err
// reports the new error. Compiling the byte-identical source that already
// succeeded is a no-op success.
func (e *Expr) Compile(src string) error {
	h := xxhash.Sum64String(src)
	if e.compiled && !e.dirty && h == e.srcHash {
		e.lastErr = nil
		return nil
	}

	e.arena.Reset()
	root, perr := NewParser(src, e.arena, e.table).Parse()
	if perr != nil {
		e.lastErr = perr
		return perr
	}

	buf, err := NewExecBuffer(e.capacity)
	if err != nil {
		e.lastErr = err
		return err
	}
	if err := compileGraph(buf, root, e.stubs.recip, e.maxSpill); err != nil {
		buf.Close()
		e.lastErr = err
		return err
	}

	if e.debug {
		fmt.Fprintf(os.Stderr, "exprjit: %s\n%s", root, hex.Dump(buf.Code()))
	}

	entry, err := buf.Seal()
	if err != nil {
		buf.Close()
		e.lastErr = err
		return err
	}

	var fn func() float64
	purego.RegisterFunc(&fn, entry)

	// The old buffer dies only after the replacement is sealed.
	old := e.buf
	e.buf = buf
	e.fn = fn
	e.srcHash = h
	e.compiled = true
	e.dirty = false
	e.lastErr = nil
	if old != nil {
		old.Close()
	}
	return nil
}

// Err returns the latest compile error message, empty after a success.
func (e *Expr) Err() string {
	if e.lastErr == nil {
		return ""
	}
	return e.lastErr.Error()
}

// Eval runs the installed program. It never fails: before the first
// successful compile it returns 0.
func (e *Expr) Eval() float64 {
	return e.fn()
}

// Compiled reports whether a program is installed.
func (e *Expr) Compiled() bool {
	return e.compiled
}

// Dump returns a copy of the installed program's machine code, or nil.
func (e *Expr) Dump() []byte {
	if e.buf == nil {
		return nil
	}
	return e.buf.Code()
}

// Close releases the program, stub page and variable pages. Function
// pointers obtained from this engine are dead afterwards.
func (e *Expr) Close() error {
	var first error
	if e.buf != nil {
		first = e.buf.Close()
		e.buf = nil
	}
	if err := e.stubs.close(); err != nil && first == nil {
		first = err
	}
	if err := e.table.Close(); err != nil && first == nil {
		first = err
	}
	e.compiled = false
	e.fn = func() float64 { return 0 }
	return first
}
