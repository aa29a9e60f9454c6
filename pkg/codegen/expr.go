package codegen

import (
	"fmt"

	"github.com/Naitsabot/hippolang/pkg/ast"
	"github.com/Naitsabot/hippolang/pkg/hw"
	"github.com/Naitsabot/hippolang/pkg/resolver"
	"github.com/Naitsabot/hippolang/pkg/sm83"
	"github.com/Naitsabot/hippolang/pkg/token"
	"github.com/Naitsabot/hippolang/pkg/types"
)

// fold resolves a compile-time value: folded constants, literal
// arithmetic, and sizeof.
func (g *Generator) fold(e ast.Expr) (int64, bool) {
	if call, ok := e.(*ast.CallExpr); ok && resolver.Canon(call.Target.Name) == "sizeof" {
		return g.table.SizeofValue(call, g.table.Module)
	}
	if id, ok := e.(*ast.Ident); ok {
		if sym := g.table.Uses[id]; sym != nil && sym.Kind == resolver.SymConst && sym.Foldable() {
			return sym.Val, true
		}
	}
	return ast.Fold(e, g.table)
}

func (g *Generator) isWord(e ast.Expr) bool {
	t := g.table.ExprTypes[e]
	return t != nil && t.IsWord()
}

// value evaluates e into A (byte-sized) or HL (word-sized).
func (g *Generator) value(e ast.Expr) {
	if v, ok := g.fold(e); ok {
		g.loadImm(v, g.isWord(e))
		return
	}
	switch e := e.(type) {
	case *ast.StringLit:
		label := g.poolBytes([]byte(e.Value))
		g.sec.Ins(sm83.LD, sm83.Pair(sm83.HL), sm83.Sym(label))

	case *ast.Ident:
		sym := g.table.Uses[e]
		if sym == nil || sym.Type == nil {
			return
		}
		a := g.allocs.Of(sym)
		if a == nil {
			return
		}
		if sym.Type.IsWord() {
			g.load16(a.Addr)
		} else {
			g.emitLoad8(a.Addr)
		}

	case *ast.HwRegExpr:
		reg := hw.Registers[resolver.Canon(e.Name)]
		g.sec.Ins(sm83.LDH, sm83.Reg(sm83.A), sm83.Abs(reg.Addr))

	case *ast.BinaryExpr:
		g.binary(e)

	case *ast.UnaryExpr:
		g.unary(e)

	case *ast.CallExpr:
		g.call(e, true)

	case *ast.MemberExpr, *ast.IndexExpr:
		g.address(e)
		g.loadThroughHL(g.table.ExprTypes[e])

	case *ast.DerefExpr:
		g.value(e.X) // pointer into HL
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Ind(sm83.HL))

	case *ast.AddrExpr:
		g.address(e.X)

	default:
		g.ice(e.Pos(), "cannot lower expression")
	}
}

func (g *Generator) loadImm(v int64, word bool) {
	if word {
		g.sec.Ins(sm83.LD, sm83.Pair(sm83.HL), sm83.Imm(v&0xFFFF))
		return
	}
	if v&0xFF == 0 {
		g.sec.Ins(sm83.XOR, sm83.Reg(sm83.A))
		return
	}
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Imm(v&0xFF))
}

// loadThroughHL reads the value addressed by HL, low byte first for
// words.
func (g *Generator) loadThroughHL(t *types.Type) {
	if t != nil && t.IsWord() {
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.HLInc())
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.H), sm83.Ind(sm83.HL))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.L), sm83.Reg(sm83.A))
		return
	}
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Ind(sm83.HL))
}

// --- binary operators ---

func (g *Generator) binary(e *ast.BinaryExpr) {
	switch e.Op {
	case token.EqEq, token.Neq, token.Lt, token.Gt, token.Lte, token.Gte:
		g.compare(e)
		return
	}
	if g.isWord(e.L) {
		g.binary16(e)
		return
	}
	g.binary8(e)
}

// binary8 evaluates left into A, parks it on the CPU stack while the
// right side runs, and combines with left in A and right in B. The
// stack keeps the intermediate safe across calls and interrupts inside
// the right operand.
func (g *Generator) binary8(e *ast.BinaryExpr) {
	g.value(e.L)
	g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.AF))
	g.value(e.R)
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.B), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.POP, sm83.Pair(sm83.AF))

	switch e.Op {
	case token.Plus:
		g.sec.Ins(sm83.ADD, sm83.Reg(sm83.B))
	case token.Minus:
		g.sec.Ins(sm83.SUB, sm83.Reg(sm83.B))
	case token.And:
		g.sec.Ins(sm83.AND, sm83.Reg(sm83.B))
	case token.Or:
		g.sec.Ins(sm83.OR, sm83.Reg(sm83.B))
	case token.Xor:
		g.sec.Ins(sm83.XOR, sm83.Reg(sm83.B))
	case token.Star:
		g.useRuntime("__mul8")
		g.sec.Ins(sm83.CALL, sm83.Sym("__mul8"))
	case token.Slash:
		g.useRuntime("__div8")
		g.sec.Ins(sm83.CALL, sm83.Sym("__div8"))
	case token.Percent:
		g.useRuntime("__div8")
		g.sec.Ins(sm83.CALL, sm83.Sym("__div8"))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.C))
	case token.Shl:
		g.shiftLoop8(sm83.SLA)
	case token.Shr:
		g.shiftLoop8(sm83.SRL)
	default:
		g.ice(e.P, "cannot lower %s", e.Op)
	}
}

// shiftLoop8 shifts A by B bits. A zero count leaves A unchanged.
func (g *Generator) shiftLoop8(op sm83.Mn) {
	top := g.label()
	end := g.label()
	g.sec.Label(top)
	g.sec.Ins(sm83.INC, sm83.Reg(sm83.B))
	g.sec.Ins(sm83.DEC, sm83.Reg(sm83.B))
	g.sec.Ins(sm83.JP, sm83.If(sm83.CondZ), sm83.Sym(end))
	g.sec.Ins(op, sm83.Reg(sm83.A))
	g.sec.Ins(sm83.DEC, sm83.Reg(sm83.B))
	g.sec.Ins(sm83.JP, sm83.Sym(top))
	g.sec.Label(end)
}

// binary16 evaluates left into HL, parks the pair on the stack, and
// combines with left in HL and right in DE.
func (g *Generator) binary16(e *ast.BinaryExpr) {
	g.value(e.L)
	g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.HL))
	g.value(e.R)
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.E), sm83.Reg(sm83.L))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.D), sm83.Reg(sm83.H))
	g.sec.Ins(sm83.POP, sm83.Pair(sm83.HL))

	switch e.Op {
	case token.Plus:
		g.sec.Ins(sm83.ADD, sm83.Pair(sm83.HL), sm83.Pair(sm83.DE))
	case token.Minus:
		g.sub16()
	case token.And, token.Or, token.Xor:
		g.bitwise16(e.Op)
	case token.Star:
		g.useRuntime("__mul16")
		g.sec.Ins(sm83.CALL, sm83.Sym("__mul16"))
	case token.Slash:
		g.useRuntime("__div16")
		g.sec.Ins(sm83.CALL, sm83.Sym("__div16"))
	case token.Percent:
		g.useRuntime("__div16")
		g.sec.Ins(sm83.CALL, sm83.Sym("__div16"))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.L), sm83.Reg(sm83.C))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.H), sm83.Reg(sm83.B))
	case token.Shl:
		g.shiftLoop16(true)
	case token.Shr:
		g.shiftLoop16(false)
	default:
		g.ice(e.P, "cannot lower %s", e.Op)
	}
}

// sub16 computes HL - DE into HL.
func (g *Generator) sub16() {
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.L))
	g.sec.Ins(sm83.SUB, sm83.Reg(sm83.E))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.L), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.H))
	g.sec.Ins(sm83.SBC, sm83.Reg(sm83.D))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.H), sm83.Reg(sm83.A))
}

func (g *Generator) bitwise16(op token.Kind) {
	mn := sm83.AND
	switch op {
	case token.Or:
		mn = sm83.OR
	case token.Xor:
		mn = sm83.XOR
	}
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.L))
	g.sec.Ins(mn, sm83.Reg(sm83.E))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.L), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.H))
	g.sec.Ins(mn, sm83.Reg(sm83.D))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.H), sm83.Reg(sm83.A))
}

// shiftLoop16 shifts HL by E bits.
func (g *Generator) shiftLoop16(left bool) {
	top := g.label()
	end := g.label()
	g.sec.Label(top)
	g.sec.Ins(sm83.INC, sm83.Reg(sm83.E))
	g.sec.Ins(sm83.DEC, sm83.Reg(sm83.E))
	g.sec.Ins(sm83.JP, sm83.If(sm83.CondZ), sm83.Sym(end))
	if left {
		g.sec.Ins(sm83.ADD, sm83.Pair(sm83.HL), sm83.Pair(sm83.HL))
	} else {
		g.sec.Ins(sm83.SRL, sm83.Reg(sm83.H))
		g.sec.Ins(sm83.RR, sm83.Reg(sm83.L))
	}
	g.sec.Ins(sm83.DEC, sm83.Reg(sm83.E))
	g.sec.Ins(sm83.JP, sm83.Sym(top))
	g.sec.Label(end)
}

// --- comparisons ---

// compare leaves a 0/1 bool in A. Integer comparison is unsigned; the
// carry after a subtract ripples the ordering out of the byte pair.
func (g *Generator) compare(e *ast.BinaryExpr) {
	if g.isWord(e.L) || g.isWord(e.R) {
		g.compare16(e)
		return
	}
	g.value(e.L)
	g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.AF))
	g.value(e.R)
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.B), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.POP, sm83.Pair(sm83.AF))
	g.sec.Ins(sm83.CP, sm83.Reg(sm83.B))
	g.boolFromFlags(e.Op)
}

func (g *Generator) compare16(e *ast.BinaryExpr) {
	g.value(e.L)
	g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.HL))
	g.value(e.R)
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.E), sm83.Reg(sm83.L))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.D), sm83.Reg(sm83.H))
	g.sec.Ins(sm83.POP, sm83.Pair(sm83.HL))

	switch e.Op {
	case token.EqEq, token.Neq:
		// Z iff HL == DE.
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.L))
		g.sec.Ins(sm83.XOR, sm83.Reg(sm83.E))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.B), sm83.Reg(sm83.A))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.H))
		g.sec.Ins(sm83.XOR, sm83.Reg(sm83.D))
		g.sec.Ins(sm83.OR, sm83.Reg(sm83.B))
	default:
		// C iff HL < DE.
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.L))
		g.sec.Ins(sm83.SUB, sm83.Reg(sm83.E))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.H))
		g.sec.Ins(sm83.SBC, sm83.Reg(sm83.D))
	}
	g.boolFromFlags(e.Op)
}

// boolFromFlags materializes the comparison result as 0/1 in A from the
// flags left by cp/sub/xor.
func (g *Generator) boolFromFlags(op token.Kind) {
	trueL := g.label()
	endL := g.label()
	switch op {
	case token.EqEq:
		g.sec.Ins(sm83.JP, sm83.If(sm83.CondZ), sm83.Sym(trueL))
	case token.Neq:
		g.sec.Ins(sm83.JP, sm83.If(sm83.CondNZ), sm83.Sym(trueL))
	case token.Lt:
		g.sec.Ins(sm83.JP, sm83.If(sm83.CondC), sm83.Sym(trueL))
	case token.Gte:
		g.sec.Ins(sm83.JP, sm83.If(sm83.CondNC), sm83.Sym(trueL))
	case token.Lte:
		g.sec.Ins(sm83.JP, sm83.If(sm83.CondC), sm83.Sym(trueL))
		g.sec.Ins(sm83.JP, sm83.If(sm83.CondZ), sm83.Sym(trueL))
	case token.Gt:
		falseL := g.label()
		g.sec.Ins(sm83.JP, sm83.If(sm83.CondC), sm83.Sym(falseL))
		g.sec.Ins(sm83.JP, sm83.If(sm83.CondZ), sm83.Sym(falseL))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Imm(1))
		g.sec.Ins(sm83.JP, sm83.Sym(endL))
		g.sec.Label(falseL)
		g.sec.Ins(sm83.XOR, sm83.Reg(sm83.A))
		g.sec.Label(endL)
		return
	}
	g.sec.Ins(sm83.XOR, sm83.Reg(sm83.A))
	g.sec.Ins(sm83.JP, sm83.Sym(endL))
	g.sec.Label(trueL)
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Imm(1))
	g.sec.Label(endL)
}

// --- unary operators ---

func (g *Generator) unary(e *ast.UnaryExpr) {
	g.value(e.X)
	t := g.table.ExprTypes[e.X]
	word := t != nil && t.IsWord()
	switch e.Op {
	case token.Minus:
		if word {
			g.complement16()
			g.sec.Ins(sm83.INC, sm83.Pair(sm83.HL))
		} else {
			g.sec.Ins(sm83.CPL)
			g.sec.Ins(sm83.INC, sm83.Reg(sm83.A))
		}
	case token.Not:
		if t != nil && t.Kind == types.Bool {
			g.sec.Ins(sm83.XOR, sm83.Imm(1))
		} else if word {
			g.complement16()
		} else {
			g.sec.Ins(sm83.CPL)
		}
	}
}

func (g *Generator) complement16() {
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.L))
	g.sec.Ins(sm83.CPL)
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.L), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.H))
	g.sec.Ins(sm83.CPL)
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.H), sm83.Reg(sm83.A))
}

// --- addresses ---

// staticAddr resolves an l-value to a fixed address when the whole access
// path is compile-time constant.
func (g *Generator) staticAddr(e ast.Expr) (uint16, bool) {
	switch e := e.(type) {
	case *ast.Ident:
		sym := g.table.Uses[e]
		if sym == nil {
			return 0, false
		}
		if a := g.allocs.Of(sym); a != nil {
			return a.Addr, true
		}
		return 0, false
	case *ast.HwRegExpr:
		reg, ok := hw.Registers[resolver.Canon(e.Name)]
		if !ok {
			return 0, false
		}
		return reg.Addr, true
	case *ast.MemberExpr:
		base, ok := g.staticAddr(e.X)
		if !ok {
			return 0, false
		}
		t := g.table.ExprTypes[e.X]
		if t == nil {
			return 0, false
		}
		f, ok := t.Field(resolver.Canon(e.Name))
		if !ok {
			return 0, false
		}
		return base + uint16(f.Offset), true
	case *ast.IndexExpr:
		base, ok := g.staticAddr(e.X)
		if !ok {
			return 0, false
		}
		idx, ok := g.fold(e.Index)
		if !ok {
			return 0, false
		}
		t := g.table.ExprTypes[e.X]
		if t == nil || t.Elem == nil {
			return 0, false
		}
		return base + uint16(idx)*uint16(t.Elem.Size()), true
	}
	return 0, false
}

// address computes an l-value address into HL.
func (g *Generator) address(e ast.Expr) {
	if addr, ok := g.staticAddr(e); ok {
		g.sec.Ins(sm83.LD, sm83.Pair(sm83.HL), sm83.Imm(int64(addr)))
		return
	}
	switch e := e.(type) {
	case *ast.Ident:
		// An unallocated identifier here means a prior stage failed.
		g.ice(e.P, "no allocation for '%s'", e.Name)

	case *ast.StringLit:
		label := g.poolBytes([]byte(e.Value))
		g.sec.Ins(sm83.LD, sm83.Pair(sm83.HL), sm83.Sym(label))

	case *ast.MemberExpr:
		g.address(e.X)
		t := g.table.ExprTypes[e.X]
		if t == nil {
			return
		}
		f, ok := t.Field(resolver.Canon(e.Name))
		if !ok {
			return
		}
		g.addOffset(f.Offset)

	case *ast.IndexExpr:
		g.dynamicIndex(e)

	case *ast.DerefExpr:
		g.value(e.X)

	case *ast.AddrExpr:
		g.address(e.X)

	default:
		g.ice(e.Pos(), "expression has no address")
	}
}

func (g *Generator) addOffset(off int) {
	switch {
	case off == 0:
	case off <= 3:
		for i := 0; i < off; i++ {
			g.sec.Ins(sm83.INC, sm83.Pair(sm83.HL))
		}
	default:
		g.sec.Ins(sm83.LD, sm83.Pair(sm83.DE), sm83.Imm(int64(off)))
		g.sec.Ins(sm83.ADD, sm83.Pair(sm83.HL), sm83.Pair(sm83.DE))
	}
}

// dynamicIndex computes base + index*elemSize with a runtime index. The
// base is parked on the stack while the index expression runs.
func (g *Generator) dynamicIndex(e *ast.IndexExpr) {
	t := g.table.ExprTypes[e.X]
	if t == nil || t.Elem == nil {
		return
	}
	elemSize := t.Elem.Size()

	g.address(e.X)
	g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.HL))
	g.value(e.Index)
	if !g.isWord(e.Index) {
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.L), sm83.Reg(sm83.A))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.H), sm83.Imm(0))
	}
	g.mulConst16(elemSize)
	g.sec.Ins(sm83.POP, sm83.Pair(sm83.DE))
	g.sec.Ins(sm83.ADD, sm83.Pair(sm83.HL), sm83.Pair(sm83.DE))
}

// mulConst16 multiplies HL by a compile-time element size. Powers of two
// unroll to shifts; anything else goes through the runtime multiply.
func (g *Generator) mulConst16(n int) {
	switch {
	case n == 1:
	case n > 0 && n&(n-1) == 0:
		for ; n > 1; n >>= 1 {
			g.sec.Ins(sm83.ADD, sm83.Pair(sm83.HL), sm83.Pair(sm83.HL))
		}
	default:
		g.sec.Ins(sm83.LD, sm83.Pair(sm83.DE), sm83.Imm(int64(n)))
		g.useRuntime("__mul16")
		g.sec.Ins(sm83.CALL, sm83.Sym("__mul16"))
	}
}

// poolBytes deduplicates a synthesized blob into the bank 0 data pool and
// returns its label.
func (g *Generator) poolBytes(b []byte) string {
	key := poolKey(b)
	if label, ok := g.pool[key]; ok {
		return label
	}
	label := fmt.Sprintf("_D%d", len(g.poolData)+1)
	g.pool[key] = label
	g.poolData = append(g.poolData, pooled{label: label, bytes: b})
	return label
}
