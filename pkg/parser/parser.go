// Package parser builds the Hippo AST from a token stream. Like the lexer
// it sits outside the compiler core: the core only ever sees a validated
// tree. Errors are collected and parsing resynchronizes at the next
// top-level keyword so one bad declaration does not hide the rest.
package parser

import (
	"github.com/Naitsabot/hippolang/pkg/ast"
	"github.com/Naitsabot/hippolang/pkg/diag"
	"github.com/Naitsabot/hippolang/pkg/token"
)

type Parser struct {
	toks []token.Token
	pos  int
	r    *diag.Reporter
}

func New(toks []token.Token, r *diag.Reporter) *Parser {
	return &Parser{toks: toks, r: r}
}

func (p *Parser) cur() token.Token { return p.toks[p.pos] }

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) next() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) accept(k token.Kind) (token.Token, bool) {
	if p.at(k) {
		return p.next(), true
	}
	return token.Token{}, false
}

func (p *Parser) expect(k token.Kind) token.Token {
	if p.at(k) {
		return p.next()
	}
	p.r.Errorf(diag.SyntaxError, p.cur().Pos, "expected %s, found %s", k, p.cur().Kind)
	return token.Token{Kind: k, Pos: p.cur().Pos}
}

// sync skips ahead to the next declaration-starting keyword after a parse
// error so sibling declarations still get parsed.
func (p *Parser) sync() {
	for !p.at(token.EOF) {
		switch p.cur().Kind {
		case token.Var, token.Const, token.Proc, token.TypeKeyword:
			return
		}
		p.next()
	}
}

// Parse consumes the stream and returns the program root.
func (p *Parser) Parse() *ast.Program {
	prog := &ast.Program{}
	for p.at(token.PragmaOpen) {
		prog.Pragmas = append(prog.Pragmas, p.parsePragmaGroup()...)
	}
	for !p.at(token.EOF) {
		before := p.pos
		switch p.cur().Kind {
		case token.Var:
			prog.Decls = append(prog.Decls, p.parseVarDecl())
		case token.Const:
			prog.Decls = append(prog.Decls, p.parseConstDecl())
		case token.TypeKeyword:
			prog.Decls = append(prog.Decls, p.parseTypeDecl())
		case token.Proc:
			prog.Decls = append(prog.Decls, p.parseProcDecl())
		default:
			p.r.Errorf(diag.SyntaxError, p.cur().Pos, "expected a declaration, found %s", p.cur().Kind)
			p.next()
			p.sync()
		}
		if p.pos == before {
			p.next() // no progress; avoid spinning on a broken stream
		}
	}
	return prog
}

// parsePragmaGroup parses `{.name.}`, `{.name: arg.}` or a comma list.
func (p *Parser) parsePragmaGroup() []*ast.Pragma {
	p.expect(token.PragmaOpen)
	var out []*ast.Pragma
	for {
		nameTok := p.expect(token.Ident)
		pr := &ast.Pragma{P: nameTok.Pos, Name: nameTok.Value}
		if _, ok := p.accept(token.Colon); ok {
			switch p.cur().Kind {
			case token.Number:
				t := p.next()
				pr.Int, pr.IsInt = t.Num, true
			case token.Ident:
				pr.Arg = p.next().Value
			default:
				p.r.Errorf(diag.SyntaxError, p.cur().Pos, "expected pragma argument, found %s", p.cur().Kind)
				p.next()
			}
		}
		out = append(out, pr)
		if _, ok := p.accept(token.Comma); !ok {
			break
		}
	}
	p.expect(token.PragmaClose)
	return out
}

func (p *Parser) parsePragmas() []*ast.Pragma {
	var out []*ast.Pragma
	for p.at(token.PragmaOpen) {
		out = append(out, p.parsePragmaGroup()...)
	}
	return out
}

// parsePlacement parses the `@ region:addr` / `@ addr` memory location.
func (p *Parser) parsePlacement() *ast.Placement {
	atTok := p.expect(token.At)
	pl := &ast.Placement{P: atTok.Pos}
	if p.at(token.Ident) && p.peek().Kind == token.Colon {
		pl.Region = p.next().Value
		p.next() // colon
	}
	addrTok := p.expect(token.Number)
	pl.Addr = uint16(addrTok.Num)
	return pl
}

func (p *Parser) parseVarDecl() *ast.VarDecl {
	kw := p.expect(token.Var)
	d := &ast.VarDecl{P: kw.Pos, Name: p.expect(token.Ident).Value}
	if _, ok := p.accept(token.Colon); ok {
		d.Type = p.parseTypeExpr()
	}
	if p.at(token.At) {
		d.At = p.parsePlacement()
	}
	if _, ok := p.accept(token.Eq); ok {
		d.Value = p.parseExpr()
	}
	d.Pragmas = p.parsePragmas()
	return d
}

func (p *Parser) parseConstDecl() *ast.ConstDecl {
	kw := p.expect(token.Const)
	d := &ast.ConstDecl{P: kw.Pos, Name: p.expect(token.Ident).Value}
	if _, ok := p.accept(token.Colon); ok {
		d.Type = p.parseTypeExpr()
	}
	if p.at(token.At) {
		d.At = p.parsePlacement()
	}
	p.expect(token.Eq)
	d.Value = p.parseExpr()
	d.Pragmas = p.parsePragmas()
	return d
}

func (p *Parser) parseTypeDecl() *ast.TypeDecl {
	kw := p.expect(token.TypeKeyword)
	d := &ast.TypeDecl{P: kw.Pos, Name: p.expect(token.Ident).Value}
	p.expect(token.Eq)
	d.Type = p.parseTypeExpr()
	return d
}

func (p *Parser) parseTypeExpr() ast.TypeExpr {
	switch p.cur().Kind {
	case token.Object:
		kw := p.next()
		p.expect(token.LBrace)
		obj := &ast.ObjectType{P: kw.Pos}
		for !p.at(token.RBrace) && !p.at(token.EOF) {
			f := &ast.FieldDecl{P: p.cur().Pos, Name: p.expect(token.Ident).Value}
			p.expect(token.Colon)
			f.Type = p.parseTypeExpr()
			obj.Fields = append(obj.Fields, f)
			if _, ok := p.accept(token.Comma); !ok {
				break
			}
		}
		p.expect(token.RBrace)
		return obj
	case token.Array:
		kw := p.next()
		p.expect(token.LBracket)
		arr := &ast.ArrayType{P: kw.Pos}
		arr.Len = p.parseExpr()
		p.expect(token.Comma)
		arr.Elem = p.parseTypeExpr()
		p.expect(token.RBracket)
		return arr
	case token.Ident:
		t := p.next()
		return &ast.NamedType{P: t.Pos, Name: t.Value}
	default:
		p.r.Errorf(diag.SyntaxError, p.cur().Pos, "expected a type, found %s", p.cur().Kind)
		t := p.next()
		return &ast.NamedType{P: t.Pos, Name: "<error>"}
	}
}

func (p *Parser) parseProcDecl() *ast.ProcDecl {
	kw := p.expect(token.Proc)
	d := &ast.ProcDecl{P: kw.Pos, Name: p.expect(token.Ident).Value}
	p.expect(token.LParen)
	for !p.at(token.RParen) && !p.at(token.EOF) {
		f := &ast.FieldDecl{P: p.cur().Pos, Name: p.expect(token.Ident).Value}
		p.expect(token.Colon)
		f.Type = p.parseTypeExpr()
		d.Params = append(d.Params, f)
		if _, ok := p.accept(token.Comma); !ok {
			break
		}
	}
	p.expect(token.RParen)
	if _, ok := p.accept(token.Colon); ok {
		d.Ret = p.parseTypeExpr()
	}
	d.Pragmas = p.parsePragmas()
	d.Body = p.parseBlock()
	return d
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	lb := p.expect(token.LBrace)
	blk := &ast.BlockStmt{P: lb.Pos}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		before := p.pos
		blk.Stmts = append(blk.Stmts, p.parseStmt())
		if p.pos == before {
			p.next()
		}
	}
	p.expect(token.RBrace)
	return blk
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.cur().Kind {
	case token.Var:
		return p.parseVarDecl()
	case token.Const:
		return p.parseConstDecl()
	case token.If:
		return p.parseIf()
	case token.While:
		kw := p.next()
		cond := p.parseExpr()
		return &ast.WhileStmt{P: kw.Pos, Cond: cond, Body: p.parseBlock()}
	case token.For:
		return p.parseFor()
	case token.Return:
		kw := p.next()
		s := &ast.ReturnStmt{P: kw.Pos}
		if !p.at(token.RBrace) && !p.at(token.EOF) && !p.startsStmt() {
			s.Value = p.parseExpr()
		}
		return s
	case token.Asm:
		kw := p.next()
		p.expect(token.LBrace)
		s := &ast.AsmStmt{P: kw.Pos}
		for p.at(token.String) {
			s.Lines = append(s.Lines, p.next().Value)
		}
		p.expect(token.RBrace)
		return s
	default:
		return p.parseSimpleStmt()
	}
}

// startsStmt reports whether the current token can only begin a statement,
// used to decide if `return` stands bare.
func (p *Parser) startsStmt() bool {
	switch p.cur().Kind {
	case token.Var, token.Const, token.If, token.While, token.For, token.Return, token.Asm:
		return true
	}
	return false
}

func (p *Parser) parseIf() ast.Stmt {
	kw := p.next() // if or elif
	s := &ast.IfStmt{P: kw.Pos, Cond: p.parseExpr(), Then: p.parseBlock()}
	switch p.cur().Kind {
	case token.Elif:
		s.Else = p.parseIf()
	case token.Else:
		p.next()
		s.Else = p.parseBlock()
	}
	return s
}

func (p *Parser) parseFor() ast.Stmt {
	kw := p.expect(token.For)
	s := &ast.ForStmt{P: kw.Pos, Var: p.expect(token.Ident).Value}
	p.expect(token.In)
	s.Lo = p.parseExpr()
	p.expect(token.DotDotLess)
	s.Hi = p.parseExpr()
	s.Body = p.parseBlock()
	return s
}

// parseSimpleStmt handles assignments and bare calls, which both begin
// with a postfix expression.
func (p *Parser) parseSimpleStmt() ast.Stmt {
	pos := p.cur().Pos
	lhs := p.parsePostfix()
	switch p.cur().Kind {
	case token.Eq, token.PlusEq, token.MinusEq, token.StarEq:
		op := p.next().Kind
		rhs := p.parseExpr()
		return &ast.AssignStmt{P: pos, Op: op, LHS: lhs, RHS: rhs}
	}
	if call, ok := lhs.(*ast.CallExpr); ok {
		return &ast.CallStmt{P: pos, Call: call}
	}
	p.r.Errorf(diag.SyntaxError, pos, "expression is not a statement")
	return &ast.CallStmt{P: pos, Call: &ast.CallExpr{P: pos, Target: &ast.Ident{P: pos, Name: "<error>"}}}
}

// --- Expressions ---

func (p *Parser) parseExpr() ast.Expr { return p.parseOr() }

func (p *Parser) parseOr() ast.Expr {
	l := p.parseAnd()
	for p.at(token.Or) || p.at(token.Xor) {
		op := p.next()
		r := p.parseAnd()
		l = &ast.BinaryExpr{P: op.Pos, Op: op.Kind, L: l, R: r}
	}
	return l
}

func (p *Parser) parseAnd() ast.Expr {
	l := p.parseComparison()
	for p.at(token.And) {
		op := p.next()
		r := p.parseComparison()
		l = &ast.BinaryExpr{P: op.Pos, Op: op.Kind, L: l, R: r}
	}
	return l
}

func (p *Parser) parseComparison() ast.Expr {
	l := p.parseAdd()
	for {
		switch p.cur().Kind {
		case token.EqEq, token.Neq, token.Lt, token.Gt, token.Lte, token.Gte:
			op := p.next()
			r := p.parseAdd()
			l = &ast.BinaryExpr{P: op.Pos, Op: op.Kind, L: l, R: r}
		default:
			return l
		}
	}
}

func (p *Parser) parseAdd() ast.Expr {
	l := p.parseMul()
	for p.at(token.Plus) || p.at(token.Minus) {
		op := p.next()
		r := p.parseMul()
		l = &ast.BinaryExpr{P: op.Pos, Op: op.Kind, L: l, R: r}
	}
	return l
}

func (p *Parser) parseMul() ast.Expr {
	l := p.parseUnary()
	for {
		switch p.cur().Kind {
		case token.Star, token.Slash, token.Percent, token.Shl, token.Shr:
			op := p.next()
			r := p.parseUnary()
			l = &ast.BinaryExpr{P: op.Pos, Op: op.Kind, L: l, R: r}
		default:
			return l
		}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.cur().Kind {
	case token.Minus, token.Not:
		op := p.next()
		return &ast.UnaryExpr{P: op.Pos, Op: op.Kind, X: p.parseUnary()}
	case token.Amp:
		op := p.next()
		return &ast.AddrExpr{P: op.Pos, X: p.parseUnary()}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	x := p.parsePrimary()
	for {
		switch p.cur().Kind {
		case token.Dot:
			dot := p.next()
			name := p.expect(token.Ident)
			x = &ast.MemberExpr{P: dot.Pos, X: x, Name: name.Value}
		case token.LBracket:
			lb := p.next()
			idx := p.parseExpr()
			p.expect(token.RBracket)
			x = &ast.IndexExpr{P: lb.Pos, X: x, Index: idx}
		case token.Caret:
			c := p.next()
			x = &ast.DerefExpr{P: c.Pos, X: x}
		case token.LParen:
			target, ok := x.(*ast.Ident)
			if !ok {
				p.r.Errorf(diag.SyntaxError, p.cur().Pos, "call target must be a procedure name")
				target = &ast.Ident{P: p.cur().Pos, Name: "<error>"}
			}
			lp := p.next()
			call := &ast.CallExpr{P: lp.Pos, Target: target}
			for !p.at(token.RParen) && !p.at(token.EOF) {
				call.Args = append(call.Args, p.parseExpr())
				if _, ok := p.accept(token.Comma); !ok {
					break
				}
			}
			p.expect(token.RParen)
			x = call
		default:
			return x
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	switch p.cur().Kind {
	case token.Number:
		t := p.next()
		return &ast.IntLit{P: t.Pos, Value: t.Num}
	case token.String:
		t := p.next()
		return &ast.StringLit{P: t.Pos, Value: t.Value}
	case token.True, token.False:
		t := p.next()
		return &ast.BoolLit{P: t.Pos, Value: t.Kind == token.True}
	case token.Hw:
		t := p.next()
		p.expect(token.Dot)
		name := p.expect(token.Ident)
		return &ast.HwRegExpr{P: t.Pos, Name: name.Value}
	case token.Ident:
		t := p.next()
		return &ast.Ident{P: t.Pos, Name: t.Value}
	case token.LParen:
		p.next()
		e := p.parseExpr()
		p.expect(token.RParen)
		return e
	default:
		p.r.Errorf(diag.SyntaxError, p.cur().Pos, "expected an expression, found %s", p.cur().Kind)
		t := p.next()
		return &ast.IntLit{P: t.Pos, Value: 0}
	}
}
