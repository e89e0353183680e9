package exprjit

// Parser builds the residual expression graph directly, folding constants
// and flattening operator chains as it goes. Every parse function returns
// (node, constant?, value): when constant? is true the true result is the
// value, the node is a placeholder the caller normally discards in favour
// of a fresh Imm. The first error latches; after that the parse functions
// keep returning Imm(0) placeholders so recursion unwinds without crashing.
type Parser struct {
	lx    *Lexer
	tok   Token
	ahead *Token
	err   *SyntaxError
	arena *NodeArena
	table *SymbolTable
	vars  map[string]*Node // one Var node per identifier per compilation
}

func NewParser(input string, arena *NodeArena, table *SymbolTable) *Parser {
	p := &Parser{
		lx:    NewLexer(input),
		arena: arena,
		table: table,
		vars:  make(map[string]*Node),
	}
	p.next()
	return p
}

// Parse consumes the whole input and returns the graph root. Constant
// expressions come back as a single Imm node.
func (p *Parser) Parse() (*Node, *SyntaxError) {
	n, isConst, v := p.parseExpr()
	if p.err == nil && p.tok.Type != TOKEN_EOF {
		p.fail(errUnexpectedChar(p.tok.Off, p.tok.Text[0]))
	}
	if p.err != nil {
		return p.arena.Imm(0), p.err
	}
	if isConst {
		n = p.arena.Imm(v)
	}
	return n, nil
}

func (p *Parser) fail(e *SyntaxError) {
	if p.err == nil {
		p.err = e
	}
}

func (p *Parser) next() {
	if p.ahead != nil {
		p.tok = *p.ahead
		p.ahead = nil
		return
	}
	tok, err := p.lx.NextToken()
	if err != nil {
		p.fail(err)
		p.tok = Token{Type: TOKEN_EOF, Off: err.Off}
		return
	}
	p.tok = tok
}

func (p *Parser) peek() Token {
	if p.ahead == nil {
		tok, err := p.lx.NextToken()
		if err != nil {
			p.fail(err)
			tok = Token{Type: TOKEN_EOF, Off: err.Off}
		}
		p.ahead = &tok
	}
	return *p.ahead
}

func (p *Parser) parseExpr() (*Node, bool, float64) {
	return p.parseAddSub()
}

// parseAddSub collects one additive level into positive and negative
// operand buckets plus a constant accumulator, then emits a left-to-right
// chain with the accumulator appended only when it differs from 0.
func (p *Parser) parseAddSub() (*Node, bool, float64) {
	var adds, subs []*Node
	acc := 0.0

	consume := func(neg bool) {
		n, isConst, v := p.parseMulDiv()
		if p.err != nil {
			return
		}
		switch {
		case isConst && neg:
			acc -= v
		case isConst:
			acc += v
		case neg:
			subs = append(subs, n)
		default:
			adds = append(adds, n)
		}
	}

	consume(false)
	for p.err == nil && (p.tok.Type == TOKEN_PLUS || p.tok.Type == TOKEN_MINUS) {
		neg := p.tok.Type == TOKEN_MINUS
		p.next()
		consume(neg)
	}
	if p.err != nil {
		return p.arena.Imm(0), false, 0
	}

	if len(adds) == 0 && len(subs) == 0 {
		return p.arena.Imm(acc), true, acc
	}

	var n *Node
	if len(adds) > 0 {
		n = adds[0]
		for _, a := range adds[1:] {
			n = p.arena.Add(n, a)
		}
		for _, s := range subs {
			n = p.arena.Sub(n, s)
		}
		if acc != 0 {
			n = p.arena.Add(n, p.arena.Imm(acc))
		}
	} else {
		// Only subtracted terms: the accumulator becomes the base, even
		// when it is zero.
		n = p.arena.Imm(acc)
		for _, s := range subs {
			n = p.arena.Sub(n, s)
		}
	}
	return n, false, 0
}

// parseMulDiv collects one multiplicative level into numerator and
// denominator buckets. Constant factors multiply into the accumulator,
// constant divisors divide it, and all non-constant divisors collapse into
// a single Recip over their product.
func (p *Parser) parseMulDiv() (*Node, bool, float64) {
	var muls, divs []*Node
	acc := 1.0

	consume := func(div bool) {
		n, isConst, v := p.parseTerm()
		if p.err != nil {
			return
		}
		switch {
		case isConst && div:
			acc /= v
		case isConst:
			acc *= v
		case div:
			divs = append(divs, n)
		default:
			muls = append(muls, n)
		}
	}

	consume(false)
	for p.err == nil && (p.tok.Type == TOKEN_STAR || p.tok.Type == TOKEN_SLASH) {
		div := p.tok.Type == TOKEN_SLASH
		p.next()
		consume(div)
	}
	if p.err != nil {
		return p.arena.Imm(0), false, 0
	}

	if len(muls) == 0 && len(divs) == 0 {
		return p.arena.Imm(acc), true, acc
	}

	var num *Node
	if len(muls) > 0 {
		num = muls[0]
		for _, m := range muls[1:] {
			num = p.arena.Mul(num, m)
		}
		if acc != 1 {
			num = p.arena.Mul(num, p.arena.Imm(acc))
		}
	}

	if len(divs) == 0 {
		return num, false, 0
	}

	den := divs[0]
	for _, d := range divs[1:] {
		den = p.arena.Mul(den, d)
	}
	recip := p.arena.Recip(den)
	if num == nil {
		if acc == 1 {
			return recip, false, 0
		}
		num = p.arena.Imm(acc)
	}
	return p.arena.Mul(num, recip), false, 0
}

func (p *Parser) parseTerm() (*Node, bool, float64) {
	if p.err != nil {
		return p.arena.Imm(0), false, 0
	}

	switch p.tok.Type {
	case TOKEN_NUMBER:
		v := p.tok.Val
		p.next()
		return p.arena.Imm(v), true, v

	case TOKEN_MINUS:
		off := p.tok.Off
		// A minus glued to a digit is part of the literal.
		if nt := p.peek(); nt.Type == TOKEN_NUMBER && nt.Off == off+1 {
			p.next()
			v := -p.tok.Val
			p.next()
			return p.arena.Imm(v), true, v
		}
		p.next()
		// Recursing into term, not muldiv: -a*b parses as (-a)*b.
		n, isConst, v := p.parseTerm()
		if p.err != nil {
			return p.arena.Imm(0), false, 0
		}
		if isConst {
			return p.arena.Imm(-v), true, -v
		}
		return p.arena.Sub(p.arena.Imm(0), n), false, 0

	case TOKEN_IDENT:
		name := p.tok.Text
		off := p.tok.Off
		if p.peek().Type == TOKEN_LPAREN {
			return p.parseCall(name, off)
		}
		p.next()
		if cell := p.table.VarAddr(name); cell != nil {
			if n, ok := p.vars[name]; ok {
				return n, false, 0
			}
			n := p.arena.Var(varAddr(cell))
			p.vars[name] = n
			return n, false, 0
		}
		p.fail(errUnknownSymbol(off, name))
		return p.arena.Imm(0), false, 0

	case TOKEN_LPAREN:
		p.next()
		n, isConst, v := p.parseExpr()
		if p.err != nil {
			return p.arena.Imm(0), false, 0
		}
		if p.tok.Type != TOKEN_RPAREN {
			p.fail(errExpectedCloseParen(p.tok.Off))
			return p.arena.Imm(0), false, 0
		}
		p.next()
		return n, isConst, v

	case TOKEN_EOF:
		p.fail(errUnexpectedEnd(p.tok.Off))
		return p.arena.Imm(0), false, 0

	default:
		p.fail(errUnexpectedChar(p.tok.Off, p.tok.Text[0]))
		return p.arena.Imm(0), false, 0
	}
}

// parseCall parses IDENT '(' expr (',' expr){0,2} ')'. The binding is
// selected by the observed argument count; a name bound only at other
// arities reports UnknownSymbol, matching the reference behaviour. A call
// whose arguments all folded is evaluated now through the binding's Go
// evaluator and replaced by its value.
func (p *Parser) parseCall(name string, off int) (*Node, bool, float64) {
	p.next() // identifier
	p.next() // '('

	type arg struct {
		node    *Node
		isConst bool
		val     float64
	}
	var args []arg

	for {
		n, isConst, v := p.parseExpr()
		if p.err != nil {
			return p.arena.Imm(0), false, 0
		}
		args = append(args, arg{n, isConst, v})
		if p.tok.Type != TOKEN_COMMA {
			break
		}
		if len(args) == 3 {
			p.fail(errTooManyArguments(p.tok.Off, name))
			return p.arena.Imm(0), false, 0
		}
		p.next()
	}

	if p.tok.Type != TOKEN_RPAREN {
		p.fail(errExpectedCloseParen(p.tok.Off))
		return p.arena.Imm(0), false, 0
	}
	p.next()

	fb, ok := p.table.FuncOf(name, len(args))
	if !ok {
		p.fail(errUnknownSymbol(off, name))
		return p.arena.Imm(0), false, 0
	}

	allConst := true
	for _, a := range args {
		if !a.isConst {
			allConst = false
			break
		}
	}
	if allConst {
		// Bindings without a Go-side evaluator stay as run-time calls.
		switch {
		case len(args) == 1 && fb.Eval1 != nil:
			v := fb.Eval1(args[0].val)
			return p.arena.Imm(v), true, v
		case len(args) == 2 && fb.Eval2 != nil:
			v := fb.Eval2(args[0].val, args[1].val)
			return p.arena.Imm(v), true, v
		case len(args) == 3 && fb.Eval3 != nil:
			v := fb.Eval3(args[0].val, args[1].val, args[2].val)
			return p.arena.Imm(v), true, v
		}
	}

	switch len(args) {
	case 1:
		return p.arena.Call1(name, fb.Ptr, args[0].node), false, 0
	case 2:
		return p.arena.Call2(name, fb.Ptr, args[0].node, args[1].node), false, 0
	default:
		return p.arena.Call3(name, fb.Ptr, args[0].node, args[1].node, args[2].node), false, 0
	}
}
