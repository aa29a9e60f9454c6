// Package codegen lowers resolved procedure bodies to SM83 instructions.
// The register discipline is fixed: 8-bit values live in A, 16-bit values
// and addresses in HL, with intermediates parked on the CPU stack so they
// survive calls and interrupts. The generator consults the symbol table,
// the allocation map and the bank analysis; it never re-derives a binding
// or an address.
package codegen

import (
	"fmt"

	"github.com/Naitsabot/hippolang/pkg/alloc"
	"github.com/Naitsabot/hippolang/pkg/ast"
	"github.com/Naitsabot/hippolang/pkg/bank"
	"github.com/Naitsabot/hippolang/pkg/config"
	"github.com/Naitsabot/hippolang/pkg/diag"
	"github.com/Naitsabot/hippolang/pkg/hw"
	"github.com/Naitsabot/hippolang/pkg/resolver"
	"github.com/Naitsabot/hippolang/pkg/sm83"
	"github.com/Naitsabot/hippolang/pkg/token"
	"github.com/Naitsabot/hippolang/pkg/types"
)

type Generator struct {
	table  *resolver.Table
	allocs *alloc.Map
	banks  *bank.Analysis
	cfg    *config.Config
	r      *diag.Reporter
	prog   *sm83.Program

	cur    *resolver.ProcInfo
	sec    *sm83.Section
	labelN int

	// inlining state: a non-empty end label makes `return` jump instead
	// of ret. Depth is bounded because the call graph is acyclic.
	inlineEnd []string

	pool     map[uint64]string
	poolData []pooled
	need     map[string]bool // runtime helpers referenced so far
}

type pooled struct {
	label string
	bytes []byte
}

// Generate lowers the whole program. The reporter collects anything that
// goes wrong; callers check it before writing output.
func Generate(prog *ast.Program, table *resolver.Table, allocs *alloc.Map,
	banks *bank.Analysis, cfg *config.Config, r *diag.Reporter) *sm83.Program {

	g := &Generator{
		table:  table,
		allocs: allocs,
		banks:  banks,
		cfg:    cfg,
		r:      r,
		prog:   &sm83.Program{},
		pool:   make(map[uint64]string),
		need:   make(map[string]bool),
	}

	g.emitVectors()
	g.emitStartup()
	for _, p := range table.Procs {
		g.procedure(p)
	}
	g.emitConstData(prog)
	g.emitPool()
	g.emitRuntime()
	return g.prog
}

func (g *Generator) label() string {
	g.labelN++
	return fmt.Sprintf("_L%d", g.labelN)
}

// procLabel is the assembly label of a procedure: its canonical name.
func procLabel(p *resolver.ProcInfo) string { return p.Sym.Canon }

func (g *Generator) codeSection(bankIdx int) *sm83.Section {
	return g.prog.Section(fmt.Sprintf("code%d", bankIdx), bankIdx, -1)
}

func (g *Generator) ice(pos token.Pos, format string, args ...any) {
	g.r.Errorf(diag.InternalError, pos, format, args...)
}

// --- program scaffolding ---

// emitVectors pins a jp stub at each bound interrupt vector.
func (g *Generator) emitVectors() {
	for v := hw.Vector(0); v < hw.VecCount; v++ {
		h := g.banks.Handlers[v]
		if h == nil {
			continue
		}
		s := g.prog.Section(fmt.Sprintf("vec_%s", v), 0, int(v.Addr()))
		s.Ins(sm83.JP, sm83.Sym(procLabel(h)))
	}
}

// emitStartup pins the cartridge entry stub at $0100 and the real startup
// at $0150, past the header the packaging stage fills in. Startup selects
// the default switchable bank, seeds the bank shadow, and transfers to the
// entry procedure; if that ever returns, the CPU halts.
func (g *Generator) emitStartup() {
	entry := g.prog.Section("entry", 0, 0x0100)
	entry.Ins(sm83.NOP)
	entry.Ins(sm83.JP, sm83.Sym("_start"))

	s := g.prog.Section("start", 0, 0x0150)
	s.Label("_start")
	s.Ins(sm83.DI)
	startBank := 1
	if g.cfg.DefaultBank != 0 {
		startBank = g.cfg.DefaultBank
	}
	s.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Imm(int64(startBank)))
	s.Ins(sm83.LDH, sm83.Abs(hw.CurBankAddr), sm83.Reg(sm83.A))
	s.Ins(sm83.LD, sm83.Abs(hw.ROMSelect), sm83.Reg(sm83.A))
	if g.banks.Entry != nil {
		s.Ins(sm83.CALL, sm83.Sym(procLabel(g.banks.Entry)))
	}
	halt := g.label()
	s.Label(halt)
	s.Ins(sm83.HALT)
	s.Ins(sm83.JP, sm83.Sym(halt))
}

// --- procedures ---

func (g *Generator) procedure(p *resolver.ProcInfo) {
	g.cur = p
	g.sec = g.codeSection(p.Bank)

	g.sec.Comment(fmt.Sprintf("proc %s (bank %d)", p.Sym.Name, p.Bank))
	g.sec.Label(procLabel(p))
	if p.HasInterrupt {
		g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.AF))
		g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.BC))
		g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.DE))
		g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.HL))
	}
	g.stmts(p.Decl.Body.Stmts)
	if p.HasInterrupt {
		g.sec.Label(g.retLabel(p))
		g.sec.Ins(sm83.POP, sm83.Pair(sm83.HL))
		g.sec.Ins(sm83.POP, sm83.Pair(sm83.DE))
		g.sec.Ins(sm83.POP, sm83.Pair(sm83.BC))
		g.sec.Ins(sm83.POP, sm83.Pair(sm83.AF))
		g.sec.Ins(sm83.RETI)
	} else {
		g.sec.Ins(sm83.RET)
	}
	g.cur = nil
}

func (g *Generator) retLabel(p *resolver.ProcInfo) string {
	return "_ret_" + procLabel(p)
}

// --- statements ---

func (g *Generator) stmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		g.stmt(s)
	}
}

func (g *Generator) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.VarDecl:
		g.varInit(s)
	case *ast.ConstDecl:
		// Constants have no per-statement code; data emission and
		// folding cover them.
	case *ast.BlockStmt:
		g.stmts(s.Stmts)
	case *ast.IfStmt:
		g.ifStmt(s)
	case *ast.WhileStmt:
		g.whileStmt(s)
	case *ast.ForStmt:
		g.forStmt(s)
	case *ast.ReturnStmt:
		g.returnStmt(s)
	case *ast.AssignStmt:
		g.assign(s)
	case *ast.CallStmt:
		g.call(s.Call, false)
	case *ast.AsmStmt:
		for _, line := range s.Lines {
			g.sec.Verbatim(line)
		}
	}
}

func (g *Generator) varInit(s *ast.VarDecl) {
	if s.Value == nil {
		return
	}
	sym := g.table.DeclSyms[s]
	if sym == nil || sym.Type == nil {
		return
	}
	a := g.allocs.Of(sym)
	if a == nil {
		return
	}
	g.value(s.Value)
	g.storeTo(a.Addr, sym.Type)
}

// storeTo writes the current value (A or HL per width) to a fixed address.
func (g *Generator) storeTo(addr uint16, t *types.Type) {
	if t.IsWord() {
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.L))
		g.emitStore8(addr)
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.H))
		g.emitStore8(addr + 1)
		return
	}
	g.emitStore8(addr)
}

// emitStore8 stores A, using the short ldh form for the high page.
func (g *Generator) emitStore8(addr uint16) {
	if addr >= 0xFF00 {
		g.sec.Ins(sm83.LDH, sm83.Abs(addr), sm83.Reg(sm83.A))
	} else {
		g.sec.Ins(sm83.LD, sm83.Abs(addr), sm83.Reg(sm83.A))
	}
}

func (g *Generator) emitLoad8(addr uint16) {
	if addr >= 0xFF00 {
		g.sec.Ins(sm83.LDH, sm83.Reg(sm83.A), sm83.Abs(addr))
	} else {
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Abs(addr))
	}
}

func (g *Generator) ifStmt(s *ast.IfStmt) {
	elseL := g.label()
	g.condFalseJump(s.Cond, elseL)
	g.stmts(s.Then.Stmts)
	if s.Else == nil {
		g.sec.Label(elseL)
		return
	}
	endL := g.label()
	g.sec.Ins(sm83.JP, sm83.Sym(endL))
	g.sec.Label(elseL)
	g.stmt(s.Else)
	g.sec.Label(endL)
}

func (g *Generator) whileStmt(s *ast.WhileStmt) {
	top := g.label()
	end := g.label()
	g.sec.Label(top)
	g.condFalseJump(s.Cond, end)
	g.stmts(s.Body.Stmts)
	g.sec.Ins(sm83.JP, sm83.Sym(top))
	g.sec.Label(end)
}

// condFalseJump evaluates a bool condition into A and branches to target
// when it is zero.
func (g *Generator) condFalseJump(cond ast.Expr, target string) {
	g.value(cond)
	g.sec.Ins(sm83.OR, sm83.Reg(sm83.A))
	g.sec.Ins(sm83.JP, sm83.If(sm83.CondZ), sm83.Sym(target))
}

// forStmt lowers the counted loop. The upper bound is evaluated exactly
// once, into the hidden bound cell, before the first iteration.
func (g *Generator) forStmt(s *ast.ForStmt) {
	loopVar := g.table.ForVars[s]
	boundVar := g.table.ForBounds[s]
	if loopVar == nil || boundVar == nil {
		return
	}
	va := g.allocs.Of(loopVar)
	ba := g.allocs.Of(boundVar)
	if va == nil || ba == nil {
		return
	}
	word := loopVar.Type.IsWord()

	g.value(s.Lo)
	g.storeTo(va.Addr, loopVar.Type)
	g.value(s.Hi)
	g.storeTo(ba.Addr, boundVar.Type)

	top := g.label()
	end := g.label()
	g.sec.Label(top)
	if word {
		// 16-bit compare: var - bound, carry clear means var >= bound.
		g.load16(va.Addr)
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.E), sm83.Reg(sm83.L))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.D), sm83.Reg(sm83.H))
		g.load16(ba.Addr)
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.E))
		g.sec.Ins(sm83.SUB, sm83.Reg(sm83.L))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.D))
		g.sec.Ins(sm83.SBC, sm83.Reg(sm83.H))
		g.sec.Ins(sm83.JP, sm83.If(sm83.CondNC), sm83.Sym(end))
	} else {
		g.emitLoad8(ba.Addr)
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.B), sm83.Reg(sm83.A))
		g.emitLoad8(va.Addr)
		g.sec.Ins(sm83.CP, sm83.Reg(sm83.B))
		g.sec.Ins(sm83.JP, sm83.If(sm83.CondNC), sm83.Sym(end))
	}

	g.stmts(s.Body.Stmts)

	if word {
		g.load16(va.Addr)
		g.sec.Ins(sm83.INC, sm83.Pair(sm83.HL))
		g.storeTo(va.Addr, loopVar.Type)
	} else {
		g.emitLoad8(va.Addr)
		g.sec.Ins(sm83.INC, sm83.Reg(sm83.A))
		g.emitStore8(va.Addr)
	}
	g.sec.Ins(sm83.JP, sm83.Sym(top))
	g.sec.Label(end)
}

// load16 loads a 16-bit value from a fixed address into HL, low byte
// first.
func (g *Generator) load16(addr uint16) {
	g.emitLoad8(addr)
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.L), sm83.Reg(sm83.A))
	g.emitLoad8(addr + 1)
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.H), sm83.Reg(sm83.A))
}

func (g *Generator) returnStmt(s *ast.ReturnStmt) {
	if s.Value != nil {
		g.value(s.Value)
	}
	if n := len(g.inlineEnd); n > 0 {
		g.sec.Ins(sm83.JP, sm83.Sym(g.inlineEnd[n-1]))
		return
	}
	if g.cur != nil && g.cur.HasInterrupt {
		g.sec.Ins(sm83.JP, sm83.Sym(g.retLabel(g.cur)))
		return
	}
	g.sec.Ins(sm83.RET)
}

// --- assignment ---

func (g *Generator) assign(s *ast.AssignStmt) {
	lt := g.table.ExprTypes[s.LHS]
	if lt == nil {
		return
	}
	if !lt.IsScalar() {
		g.copyAggregate(s)
		return
	}
	if s.Op == token.Eq {
		g.assignSimple(s, lt)
		return
	}
	g.assignCompound(s, lt)
}

// assignSimple stores RHS into the target. Targets with a fixed address
// store directly; computed targets hold the address on the stack across
// the RHS evaluation.
func (g *Generator) assignSimple(s *ast.AssignStmt, lt *types.Type) {
	if addr, ok := g.staticAddr(s.LHS); ok {
		g.value(s.RHS)
		g.storeTo(addr, lt)
		return
	}
	g.address(s.LHS)
	g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.HL))
	g.value(s.RHS)
	g.sec.Ins(sm83.POP, sm83.Pair(sm83.DE))
	g.storeIndirect(lt)
}

// storeIndirect writes the current value to the address in DE.
func (g *Generator) storeIndirect(t *types.Type) {
	if t.IsWord() {
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.L))
		g.sec.Ins(sm83.LD, sm83.Ind(sm83.DE), sm83.Reg(sm83.A))
		g.sec.Ins(sm83.INC, sm83.Pair(sm83.DE))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.H))
		g.sec.Ins(sm83.LD, sm83.Ind(sm83.DE), sm83.Reg(sm83.A))
		return
	}
	g.sec.Ins(sm83.LD, sm83.Ind(sm83.DE), sm83.Reg(sm83.A))
}

// assignCompound lowers += -= *=. The l-value address is computed exactly
// once and parked on the CPU stack while the RHS runs.
func (g *Generator) assignCompound(s *ast.AssignStmt, lt *types.Type) {
	g.address(s.LHS)
	g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.HL))
	g.value(s.RHS)

	if lt.IsWord() {
		// RHS in HL; reload target into DE-addressed bytes.
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.E), sm83.Reg(sm83.L))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.D), sm83.Reg(sm83.H))
		g.sec.Ins(sm83.POP, sm83.Pair(sm83.HL))
		g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.HL))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.HLInc())
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.C), sm83.Reg(sm83.A))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.B), sm83.Ind(sm83.HL))
		// BC = old value, DE = RHS.
		switch s.Op {
		case token.PlusEq:
			g.sec.Ins(sm83.LD, sm83.Reg(sm83.L), sm83.Reg(sm83.C))
			g.sec.Ins(sm83.LD, sm83.Reg(sm83.H), sm83.Reg(sm83.B))
			g.sec.Ins(sm83.ADD, sm83.Pair(sm83.HL), sm83.Pair(sm83.DE))
		case token.MinusEq:
			g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.C))
			g.sec.Ins(sm83.SUB, sm83.Reg(sm83.E))
			g.sec.Ins(sm83.LD, sm83.Reg(sm83.L), sm83.Reg(sm83.A))
			g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.B))
			g.sec.Ins(sm83.SBC, sm83.Reg(sm83.D))
			g.sec.Ins(sm83.LD, sm83.Reg(sm83.H), sm83.Reg(sm83.A))
		case token.StarEq:
			g.sec.Ins(sm83.LD, sm83.Reg(sm83.L), sm83.Reg(sm83.C))
			g.sec.Ins(sm83.LD, sm83.Reg(sm83.H), sm83.Reg(sm83.B))
			g.useRuntime("__mul16")
			g.sec.Ins(sm83.CALL, sm83.Sym("__mul16"))
		}
		g.sec.Ins(sm83.POP, sm83.Pair(sm83.DE))
		g.storeIndirect(lt)
		return
	}

	// 8-bit: RHS in A, target address on the stack.
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.B), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.POP, sm83.Pair(sm83.HL))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Ind(sm83.HL))
	switch s.Op {
	case token.PlusEq:
		g.sec.Ins(sm83.ADD, sm83.Reg(sm83.B))
	case token.MinusEq:
		g.sec.Ins(sm83.SUB, sm83.Reg(sm83.B))
	case token.StarEq:
		g.useRuntime("__mul8")
		g.sec.Ins(sm83.CALL, sm83.Sym("__mul8"))
	}
	g.sec.Ins(sm83.LD, sm83.Ind(sm83.HL), sm83.Reg(sm83.A))
}

// copyAggregate lowers whole array/object assignment as a block copy.
func (g *Generator) copyAggregate(s *ast.AssignStmt) {
	lt := g.table.ExprTypes[s.LHS]
	size := lt.Size()
	if size > 32 && g.cfg.IsWarningEnabled(config.WarnLargeCopy) {
		g.r.Warnf(diag.LargeCopy, s.P, "assignment copies %d bytes", size)
	}
	g.address(s.RHS)
	g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.HL))
	g.address(s.LHS)
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.E), sm83.Reg(sm83.L))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.D), sm83.Reg(sm83.H))
	g.sec.Ins(sm83.POP, sm83.Pair(sm83.HL))
	g.emitCopyLoop(size)
}

// emitCopyLoop copies size bytes from [HL] to [DE].
func (g *Generator) emitCopyLoop(size int) {
	g.sec.Ins(sm83.LD, sm83.Pair(sm83.BC), sm83.Imm(int64(size)))
	g.emitCopyBody()
}

// emitCopyBody copies BC bytes from [HL] to [DE].
func (g *Generator) emitCopyBody() {
	top := g.label()
	g.sec.Label(top)
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.HLInc())
	g.sec.Ins(sm83.LD, sm83.Ind(sm83.DE), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.INC, sm83.Pair(sm83.DE))
	g.sec.Ins(sm83.DEC, sm83.Pair(sm83.BC))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.B))
	g.sec.Ins(sm83.OR, sm83.Reg(sm83.C))
	g.sec.Ins(sm83.JP, sm83.If(sm83.CondNZ), sm83.Sym(top))
}

// --- calls ---

// call lowers a procedure call. Arguments are stored into the callee's
// statically allocated parameter cells before control transfers; the
// result, if any, comes back in A or HL.
func (g *Generator) call(e *ast.CallExpr, wantValue bool) {
	if g.builtin(e) {
		return
	}
	callee := g.banks.Callees[e]
	if callee == nil {
		return
	}
	for i, arg := range e.Args {
		if i >= len(callee.Params) {
			break
		}
		param := callee.Params[i]
		pa := g.allocs.Of(param)
		if pa == nil || param.Type == nil {
			continue
		}
		g.value(arg)
		g.storeTo(pa.Addr, param.Type)
	}

	cross := g.banks.CrossBank[e]
	if callee.Inline {
		if cross {
			if g.cfg.IsWarningEnabled(config.WarnInlineIgnored) {
				g.r.Warnf(diag.InlineIgnored, e.P,
					"inline hint on '%s' ignored at cross-bank call site", callee.Sym.Name)
			}
		} else {
			g.inline(callee)
			return
		}
	}

	if cross {
		g.emitBankSwitch(callee.Bank)
		g.sec.Ins(sm83.CALL, sm83.Sym(procLabel(callee)))
		g.emitBankRestore()
	} else {
		g.sec.Ins(sm83.CALL, sm83.Sym(procLabel(callee)))
	}
	_ = wantValue // result already sits in A or HL
}

// inline splices the callee body at the call site. Arguments were already
// stored to the callee's cells; returns jump to a per-site end label.
func (g *Generator) inline(callee *resolver.ProcInfo) {
	end := g.label()
	g.inlineEnd = append(g.inlineEnd, end)
	g.sec.Comment("inline " + callee.Sym.Name)
	g.stmts(callee.Decl.Body.Stmts)
	g.inlineEnd = g.inlineEnd[:len(g.inlineEnd)-1]
	g.sec.Label(end)
}

// emitBankSwitch saves the current bank on the stack and selects bank n.
// Exactly one switch precedes and one restore follows a cross-bank call.
func (g *Generator) emitBankSwitch(n int) {
	g.sec.Ins(sm83.LDH, sm83.Reg(sm83.A), sm83.Abs(hw.CurBankAddr))
	g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.AF))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Imm(int64(n)))
	g.sec.Ins(sm83.LDH, sm83.Abs(hw.CurBankAddr), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.LD, sm83.Abs(hw.ROMSelect), sm83.Reg(sm83.A))
}

// emitBankRestore reselects the bank saved by emitBankSwitch. The callee's
// result rides in A (bytes, bools) or HL (words); A is parked in B while
// the saved bank pops through it.
func (g *Generator) emitBankRestore() {
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.B), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.POP, sm83.Pair(sm83.AF))
	g.sec.Ins(sm83.LDH, sm83.Abs(hw.CurBankAddr), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.LD, sm83.Abs(hw.ROMSelect), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.B))
}

func (g *Generator) useRuntime(name string) { g.need[name] = true }
