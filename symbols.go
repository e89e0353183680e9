package exprjit

import "unsafe"

// FuncBinding is one native function attached to a name. Ptr is the C-ABI
// entry the generated code calls; the Eval* field matching the arity is the
// Go-side evaluator the folder runs when every argument is constant at
// compile time. Bound functions must be pure: an impure function observed in
// a fully-constant context yields its compile-time value forever.
type FuncBinding struct {
	Arity int
	Ptr   uintptr
	Eval1 func(float64) float64
	Eval2 func(float64, float64) float64
	Eval3 func(float64, float64, float64) float64
}

// SymbolTable maps identifiers to either a pinned variable cell or a set of
// function bindings keyed by arity. A name holds at most one kind at a time;
// binding the other kind replaces it. Variable cells come from table-owned
// pages and never move while the table lives, which is what lets compiled
// code read them by absolute address.
type SymbolTable struct {
	vars  map[string]*float64
	funcs map[string]map[int]FuncBinding
	cells *pinnedArena
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		vars:  make(map[string]*float64),
		funcs: make(map[string]map[int]FuncBinding),
		cells: newPinnedArena(),
	}
}

// BindVar creates or updates a variable. A previous function binding of the
// same name is dropped. The cell address stays stable across updates.
func (t *SymbolTable) BindVar(name string, v float64) {
	delete(t.funcs, name)
	cell, ok := t.vars[name]
	if !ok {
		cell = t.cells.alloc()
		t.vars[name] = cell
	}
	*cell = v
}

// VarAddr returns the stable cell of a bound variable, or nil.
func (t *SymbolTable) VarAddr(name string) *float64 {
	return t.vars[name]
}

// Var reads a bound variable; unbound names read as 0.
func (t *SymbolTable) Var(name string) float64 {
	if cell, ok := t.vars[name]; ok {
		return *cell
	}
	return 0
}

// BindFunc attaches a native function at the binding's arity. A previous
// variable binding of the same name is dropped; a previous function binding
// at the same arity is replaced, other arities stay.
func (t *SymbolTable) BindFunc(name string, fb FuncBinding) {
	delete(t.vars, name)
	m, ok := t.funcs[name]
	if !ok {
		m = make(map[int]FuncBinding)
		t.funcs[name] = m
	}
	m[fb.Arity] = fb
}

// FuncOf looks up a function binding by name and arity. The arity comes
// from the call site's argument count.
func (t *SymbolTable) FuncOf(name string, arity int) (FuncBinding, bool) {
	fb, ok := t.funcs[name][arity]
	return fb, ok
}

// Close releases the variable pages. Every compiled expression referencing
// this table is dead after this returns.
func (t *SymbolTable) Close() error {
	return t.cells.close()
}

// varAddr exposes the raw cell address the code generator embeds. The cell
// is pinned by the table, never by the Go runtime.
func varAddr(cell *float64) uintptr {
	return uintptr(unsafe.Pointer(cell))
}

// pinnedArena hands out float64 cells from mmap'd pages. Pages are only ever
// added, never released or compacted before close, so a cell address handed
// to the code generator stays valid for the table's lifetime regardless of
// what the Go runtime does with its own heap.
type pinnedArena struct {
	pages [][]byte
	used  int // bytes used in the last page
}

func newPinnedArena() *pinnedArena {
	return &pinnedArena{}
}

func (p *pinnedArena) alloc() *float64 {
	if len(p.pages) == 0 || p.used+8 > pageSize {
		page, err := osMapRW(pageSize)
		if err != nil {
			// A single-page map failing means the process is out of
			// address space; nothing sensible continues from here.
			panic(ErrPageAlloc)
		}
		p.pages = append(p.pages, page)
		p.used = 0
	}
	page := p.pages[len(p.pages)-1]
	cell := (*float64)(unsafe.Pointer(&page[p.used]))
	p.used += 8
	return cell
}

func (p *pinnedArena) close() error {
	var first error
	for _, page := range p.pages {
		if err := osUnmap(page); err != nil && first == nil {
			first = err
		}
	}
	p.pages = nil
	p.used = 0
	return first
}
