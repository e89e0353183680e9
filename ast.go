package exprjit

import (
	"fmt"
	"strings"
)

// Expression node kinds
type NodeKind uint8

const (
	NodeImm NodeKind = iota
	NodeVar
	NodeNeg
	NodeAdd
	NodeSub
	NodeMul
	NodeRecip
	NodeCall1
	NodeCall2
	NodeCall3
)

// Node is one vertex of the residual expression graph. Nodes are allocated
// from a NodeArena, never mutated after creation, and discarded wholesale
// when the arena is reset for the next compilation. The graph may share Var
// nodes (one per identifier per compilation); everything else is unique.
type Node struct {
	Kind NodeKind
	Val  float64 // NodeImm
	Addr uintptr // NodeVar: stable address of the variable cell
	Fn   uintptr // NodeCall*: C-ABI target of the bound function
	Name string  // NodeCall*: bound name, kept for debugging output
	L    *Node
	R    *Node
	C    *Node // third call argument
}

func (n *Node) String() string {
	switch n.Kind {
	case NodeImm:
		return fmt.Sprintf("%g", n.Val)
	case NodeVar:
		return fmt.Sprintf("[%#x]", n.Addr)
	case NodeNeg:
		return "(- " + n.L.String() + ")"
	case NodeAdd:
		return "(" + n.L.String() + " + " + n.R.String() + ")"
	case NodeSub:
		return "(" + n.L.String() + " - " + n.R.String() + ")"
	case NodeMul:
		return "(" + n.L.String() + " * " + n.R.String() + ")"
	case NodeRecip:
		return "(1/ " + n.L.String() + ")"
	case NodeCall1, NodeCall2, NodeCall3:
		var out strings.Builder
		out.WriteString(n.Name)
		out.WriteString("(")
		out.WriteString(n.L.String())
		if n.R != nil {
			out.WriteString(", ")
			out.WriteString(n.R.String())
		}
		if n.C != nil {
			out.WriteString(", ")
			out.WriteString(n.C.String())
		}
		out.WriteString(")")
		return out.String()
	}
	return "?"
}

const nodeArenaChunk = 256

// NodeArena is a bump allocator for expression nodes. One arena backs one
// compilation; Reset drops every node at once.
type NodeArena struct {
	chunks [][]Node
	n      int // used slots in the last chunk
}

func NewNodeArena() *NodeArena {
	return &NodeArena{}
}

func (a *NodeArena) alloc() *Node {
	if len(a.chunks) == 0 || a.n == nodeArenaChunk {
		a.chunks = append(a.chunks, make([]Node, nodeArenaChunk))
		a.n = 0
	}
	last := a.chunks[len(a.chunks)-1]
	n := &last[a.n]
	a.n++
	return n
}

// Reset keeps the first chunk for reuse and drops the rest.
func (a *NodeArena) Reset() {
	if len(a.chunks) > 1 {
		a.chunks = a.chunks[:1]
	}
	if len(a.chunks) == 1 {
		clear(a.chunks[0])
	}
	a.n = 0
}

// Len reports the number of live nodes, for tests and debugging.
func (a *NodeArena) Len() int {
	if len(a.chunks) == 0 {
		return 0
	}
	return (len(a.chunks)-1)*nodeArenaChunk + a.n
}

func (a *NodeArena) Imm(v float64) *Node {
	n := a.alloc()
	n.Kind = NodeImm
	n.Val = v
	return n
}

func (a *NodeArena) Var(addr uintptr) *Node {
	n := a.alloc()
	n.Kind = NodeVar
	n.Addr = addr
	return n
}

func (a *NodeArena) Neg(x *Node) *Node {
	n := a.alloc()
	n.Kind = NodeNeg
	n.L = x
	return n
}

func (a *NodeArena) Add(l, r *Node) *Node {
	n := a.alloc()
	n.Kind = NodeAdd
	n.L = l
	n.R = r
	return n
}

func (a *NodeArena) Sub(l, r *Node) *Node {
	n := a.alloc()
	n.Kind = NodeSub
	n.L = l
	n.R = r
	return n
}

func (a *NodeArena) Mul(l, r *Node) *Node {
	n := a.alloc()
	n.Kind = NodeMul
	n.L = l
	n.R = r
	return n
}

func (a *NodeArena) Recip(x *Node) *Node {
	n := a.alloc()
	n.Kind = NodeRecip
	n.L = x
	return n
}

func (a *NodeArena) Call1(name string, fn uintptr, arg *Node) *Node {
	n := a.alloc()
	n.Kind = NodeCall1
	n.Name = name
	n.Fn = fn
	n.L = arg
	return n
}

func (a *NodeArena) Call2(name string, fn uintptr, x, y *Node) *Node {
	n := a.alloc()
	n.Kind = NodeCall2
	n.Name = name
	n.Fn = fn
	n.L = x
	n.R = y
	return n
}

func (a *NodeArena) Call3(name string, fn uintptr, x, y, z *Node) *Node {
	n := a.alloc()
	n.Kind = NodeCall3
	n.Name = name
	n.Fn = fn
	n.L = x
	n.R = y
	n.C = z
	return n
}
