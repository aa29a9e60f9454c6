package codegen

import (
	"github.com/Naitsabot/hippolang/pkg/ast"
	"github.com/Naitsabot/hippolang/pkg/hw"
	"github.com/Naitsabot/hippolang/pkg/resolver"
	"github.com/Naitsabot/hippolang/pkg/sm83"
	"github.com/Naitsabot/hippolang/pkg/types"
)

// builtin lowers the built-in operations. It reports whether the call was
// one of them. sizeof never reaches here with a value context — fold
// handles it — so a bare sizeof statement is simply dropped.
func (g *Generator) builtin(e *ast.CallExpr) bool {
	switch resolver.Canon(e.Target.Name) {
	case "memcpy":
		g.memcpy(e)
	case "memset":
		g.memset(e)
	case "switchbank":
		g.switchBank(e)
	case "switchbankrestore":
		g.sec.Ins(sm83.POP, sm83.Pair(sm83.AF))
		g.sec.Ins(sm83.LDH, sm83.Abs(hw.CurBankAddr), sm83.Reg(sm83.A))
		g.sec.Ins(sm83.LD, sm83.Abs(hw.ROMSelect), sm83.Reg(sm83.A))
	case "sizeof":
	default:
		return false
	}
	return true
}

// addrArg evaluates a pointer-or-aggregate argument to an address in HL.
func (g *Generator) addrArg(e ast.Expr) {
	t := g.table.ExprTypes[e]
	if t != nil && t.Kind == types.Ptr {
		g.value(e)
		return
	}
	g.address(e)
}

// memcpy(dst, src, n): length parked on the stack, source in HL,
// destination in DE, then the shared copy loop.
func (g *Generator) memcpy(e *ast.CallExpr) {
	if len(e.Args) != 3 {
		return
	}
	g.lengthToStack(e.Args[2])
	g.addrArg(e.Args[1])
	g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.HL))
	g.addrArg(e.Args[0])
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.E), sm83.Reg(sm83.L))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.D), sm83.Reg(sm83.H))
	g.sec.Ins(sm83.POP, sm83.Pair(sm83.HL))
	g.sec.Ins(sm83.POP, sm83.Pair(sm83.BC))
	g.emitCopyBody()
}

// memset(dst, value, n).
func (g *Generator) memset(e *ast.CallExpr) {
	if len(e.Args) != 3 {
		return
	}
	g.lengthToStack(e.Args[2])
	g.value(e.Args[1])
	g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.AF))
	g.addrArg(e.Args[0])
	g.sec.Ins(sm83.POP, sm83.Pair(sm83.AF))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.E), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.POP, sm83.Pair(sm83.BC))

	top := g.label()
	g.sec.Label(top)
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.E))
	g.sec.Ins(sm83.LD, sm83.HLInc(), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.DEC, sm83.Pair(sm83.BC))
	g.sec.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.B))
	g.sec.Ins(sm83.OR, sm83.Reg(sm83.C))
	g.sec.Ins(sm83.JP, sm83.If(sm83.CondNZ), sm83.Sym(top))
}

// lengthToStack evaluates a byte count, widens it to 16 bits, and parks
// it on the stack so later address computations can clobber the
// registers. The matching pop lands the count in BC.
func (g *Generator) lengthToStack(e ast.Expr) {
	g.value(e)
	if !g.isWord(e) {
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.L), sm83.Reg(sm83.A))
		g.sec.Ins(sm83.LD, sm83.Reg(sm83.H), sm83.Imm(0))
	}
	g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.HL))
}

// switchBank saves the current bank on the stack and selects the new one;
// switchBankRestore is its inverse. The pair expands the same template
// the generator uses around cross-bank calls.
func (g *Generator) switchBank(e *ast.CallExpr) {
	if len(e.Args) != 1 {
		return
	}
	g.sec.Ins(sm83.LDH, sm83.Reg(sm83.A), sm83.Abs(hw.CurBankAddr))
	g.sec.Ins(sm83.PUSH, sm83.Pair(sm83.AF))
	g.value(e.Args[0])
	g.sec.Ins(sm83.LDH, sm83.Abs(hw.CurBankAddr), sm83.Reg(sm83.A))
	g.sec.Ins(sm83.LD, sm83.Abs(hw.ROMSelect), sm83.Reg(sm83.A))
}

// --- runtime helpers ---

// emitRuntime writes the referenced helper routines into bank 0, once,
// in fixed order.
func (g *Generator) emitRuntime() {
	order := []string{"__mul8", "__mul16", "__div8", "__div16", "__rle_unpack"}
	emit := map[string]func(*sm83.Section){
		"__mul8":       emitMul8,
		"__mul16":      emitMul16,
		"__div8":       emitDiv8,
		"__div16":      emitDiv16,
		"__rle_unpack": emitRLEUnpack,
	}
	var s *sm83.Section
	for _, name := range order {
		if !g.need[name] {
			continue
		}
		if s == nil {
			s = g.prog.Section("runtime", 0, -1)
		}
		emit[name](s)
	}
}

// A * B -> A. Preserves HL and DE, zeroes B.
func emitMul8(s *sm83.Section) {
	s.Label("__mul8")
	s.Ins(sm83.PUSH, sm83.Pair(sm83.DE))
	s.Ins(sm83.LD, sm83.Reg(sm83.D), sm83.Reg(sm83.A))
	s.Ins(sm83.XOR, sm83.Reg(sm83.A))
	s.Label("__mul8_loop")
	s.Ins(sm83.INC, sm83.Reg(sm83.B))
	s.Ins(sm83.DEC, sm83.Reg(sm83.B))
	s.Ins(sm83.JP, sm83.If(sm83.CondZ), sm83.Sym("__mul8_done"))
	s.Ins(sm83.ADD, sm83.Reg(sm83.D))
	s.Ins(sm83.DEC, sm83.Reg(sm83.B))
	s.Ins(sm83.JP, sm83.Sym("__mul8_loop"))
	s.Label("__mul8_done")
	s.Ins(sm83.POP, sm83.Pair(sm83.DE))
	s.Ins(sm83.RET)
}

// HL * DE -> HL by shift-and-add. Clobbers A, BC, DE.
func emitMul16(s *sm83.Section) {
	s.Label("__mul16")
	s.Ins(sm83.LD, sm83.Reg(sm83.B), sm83.Reg(sm83.H))
	s.Ins(sm83.LD, sm83.Reg(sm83.C), sm83.Reg(sm83.L))
	s.Ins(sm83.LD, sm83.Pair(sm83.HL), sm83.Imm(0))
	s.Label("__mul16_loop")
	s.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.B))
	s.Ins(sm83.OR, sm83.Reg(sm83.C))
	s.Ins(sm83.RET, sm83.If(sm83.CondZ))
	s.Ins(sm83.SRL, sm83.Reg(sm83.B))
	s.Ins(sm83.RR, sm83.Reg(sm83.C))
	s.Ins(sm83.JP, sm83.If(sm83.CondNC), sm83.Sym("__mul16_skip"))
	s.Ins(sm83.ADD, sm83.Pair(sm83.HL), sm83.Pair(sm83.DE))
	s.Label("__mul16_skip")
	s.Ins(sm83.SLA, sm83.Reg(sm83.E))
	s.Ins(sm83.RL, sm83.Reg(sm83.D))
	s.Ins(sm83.JP, sm83.Sym("__mul16_loop"))
}

// A / B -> quotient A, remainder C. Restoring division; clobbers B's
// pairmate only through the push/pop. Preserves HL and DE.
func emitDiv8(s *sm83.Section) {
	s.Label("__div8")
	s.Ins(sm83.PUSH, sm83.Pair(sm83.DE))
	s.Ins(sm83.LD, sm83.Reg(sm83.C), sm83.Reg(sm83.A))
	s.Ins(sm83.XOR, sm83.Reg(sm83.A))
	s.Ins(sm83.LD, sm83.Reg(sm83.D), sm83.Imm(8))
	s.Label("__div8_loop")
	s.Ins(sm83.SLA, sm83.Reg(sm83.C))
	s.Ins(sm83.RL, sm83.Reg(sm83.A))
	s.Ins(sm83.CP, sm83.Reg(sm83.B))
	s.Ins(sm83.JP, sm83.If(sm83.CondC), sm83.Sym("__div8_next"))
	s.Ins(sm83.SUB, sm83.Reg(sm83.B))
	s.Ins(sm83.INC, sm83.Reg(sm83.C))
	s.Label("__div8_next")
	s.Ins(sm83.DEC, sm83.Reg(sm83.D))
	s.Ins(sm83.JP, sm83.If(sm83.CondNZ), sm83.Sym("__div8_loop"))
	s.Ins(sm83.LD, sm83.Reg(sm83.B), sm83.Reg(sm83.A))
	s.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.C))
	s.Ins(sm83.LD, sm83.Reg(sm83.C), sm83.Reg(sm83.B))
	s.Ins(sm83.POP, sm83.Pair(sm83.DE))
	s.Ins(sm83.RET)
}

// HL / DE -> quotient HL, remainder BC. The bit counter rides on the
// stack in A so an interrupt firing mid-division cannot disturb it.
func emitDiv16(s *sm83.Section) {
	s.Label("__div16")
	s.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Imm(16))
	s.Ins(sm83.LD, sm83.Pair(sm83.BC), sm83.Imm(0))
	s.Label("__div16_loop")
	s.Ins(sm83.PUSH, sm83.Pair(sm83.AF))
	s.Ins(sm83.ADD, sm83.Pair(sm83.HL), sm83.Pair(sm83.HL))
	s.Ins(sm83.RL, sm83.Reg(sm83.C))
	s.Ins(sm83.RL, sm83.Reg(sm83.B))
	s.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.C))
	s.Ins(sm83.SUB, sm83.Reg(sm83.E))
	s.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.B))
	s.Ins(sm83.SBC, sm83.Reg(sm83.D))
	s.Ins(sm83.JP, sm83.If(sm83.CondC), sm83.Sym("__div16_next"))
	s.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.C))
	s.Ins(sm83.SUB, sm83.Reg(sm83.E))
	s.Ins(sm83.LD, sm83.Reg(sm83.C), sm83.Reg(sm83.A))
	s.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.B))
	s.Ins(sm83.SBC, sm83.Reg(sm83.D))
	s.Ins(sm83.LD, sm83.Reg(sm83.B), sm83.Reg(sm83.A))
	s.Ins(sm83.INC, sm83.Reg(sm83.L))
	s.Label("__div16_next")
	s.Ins(sm83.POP, sm83.Pair(sm83.AF))
	s.Ins(sm83.DEC, sm83.Reg(sm83.A))
	s.Ins(sm83.JP, sm83.If(sm83.CondNZ), sm83.Sym("__div16_loop"))
	s.Ins(sm83.RET)
}

// Unpacks the RLE packet stream at HL to DE. Stops at the 0x00 packet.
func emitRLEUnpack(s *sm83.Section) {
	s.Label("__rle_unpack")
	s.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.HLInc())
	s.Ins(sm83.OR, sm83.Reg(sm83.A))
	s.Ins(sm83.RET, sm83.If(sm83.CondZ))
	s.Ins(sm83.CP, sm83.Imm(0x80))
	s.Ins(sm83.JP, sm83.If(sm83.CondC), sm83.Sym("__rle_lit"))
	s.Ins(sm83.SUB, sm83.Imm(0x7F))
	s.Ins(sm83.LD, sm83.Reg(sm83.B), sm83.Reg(sm83.A))
	s.Ins(sm83.LD, sm83.Reg(sm83.C), sm83.Ind(sm83.HL))
	s.Ins(sm83.INC, sm83.Pair(sm83.HL))
	s.Label("__rle_rep")
	s.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.Reg(sm83.C))
	s.Ins(sm83.LD, sm83.Ind(sm83.DE), sm83.Reg(sm83.A))
	s.Ins(sm83.INC, sm83.Pair(sm83.DE))
	s.Ins(sm83.DEC, sm83.Reg(sm83.B))
	s.Ins(sm83.JP, sm83.If(sm83.CondNZ), sm83.Sym("__rle_rep"))
	s.Ins(sm83.JP, sm83.Sym("__rle_unpack"))
	s.Label("__rle_lit")
	s.Ins(sm83.LD, sm83.Reg(sm83.B), sm83.Reg(sm83.A))
	s.Label("__rle_copy")
	s.Ins(sm83.LD, sm83.Reg(sm83.A), sm83.HLInc())
	s.Ins(sm83.LD, sm83.Ind(sm83.DE), sm83.Reg(sm83.A))
	s.Ins(sm83.INC, sm83.Pair(sm83.DE))
	s.Ins(sm83.DEC, sm83.Reg(sm83.B))
	s.Ins(sm83.JP, sm83.If(sm83.CondNZ), sm83.Sym("__rle_copy"))
	s.Ins(sm83.JP, sm83.Sym("__rle_unpack"))
}
