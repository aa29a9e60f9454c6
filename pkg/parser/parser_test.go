package parser

import (
	"testing"

	"github.com/Naitsabot/hippolang/pkg/ast"
	"github.com/Naitsabot/hippolang/pkg/diag"
	"github.com/Naitsabot/hippolang/pkg/lexer"
	"github.com/Naitsabot/hippolang/pkg/token"
)

func parse(t *testing.T, src string) (*ast.Program, *diag.Reporter) {
	t.Helper()
	r := diag.NewReporter()
	runes := []rune(src)
	file := r.AddFile("test.hip", runes)
	toks := lexer.New(runes, file, r).Tokenize()
	if r.HasErrors() {
		t.Fatalf("lex failed: %v", r.Diagnostics())
	}
	return New(toks, r).Parse(), r
}

func parseOK(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, r := parse(t, src)
	if r.HasErrors() {
		t.Fatalf("parse failed: %v", r.Diagnostics())
	}
	return prog
}

func TestModulePragmas(t *testing.T) {
	prog := parseOK(t, `
{.mbc: mbc5.}
{.romBanks: 8.}
`)
	if len(prog.Pragmas) != 2 {
		t.Fatalf("got %d module pragmas, want 2", len(prog.Pragmas))
	}
	if prog.Pragmas[0].Name != "mbc" || prog.Pragmas[0].Arg != "mbc5" {
		t.Errorf("pragma 0: %+v", prog.Pragmas[0])
	}
	if prog.Pragmas[1].Name != "romBanks" || !prog.Pragmas[1].IsInt || prog.Pragmas[1].Int != 8 {
		t.Errorf("pragma 1: %+v", prog.Pragmas[1])
	}
}

func TestVarDeclForms(t *testing.T) {
	prog := parseOK(t, `
var a: uint8
var b = 3
var c: uint16 @ wram:0xC000 = 0x1234
`)
	if len(prog.Decls) != 3 {
		t.Fatalf("got %d decls, want 3", len(prog.Decls))
	}
	c := prog.Decls[2].(*ast.VarDecl)
	if c.At == nil || c.At.Region != "wram" || c.At.Addr != 0xC000 {
		t.Errorf("placement not parsed: %+v", c.At)
	}
	if c.Value == nil || c.Type == nil {
		t.Error("type or initializer missing")
	}
}

func TestPlacementWithoutRegion(t *testing.T) {
	prog := parseOK(t, `var x: uint8 @ 0xFF80`)
	d := prog.Decls[0].(*ast.VarDecl)
	if d.At == nil || d.At.Region != "" || d.At.Addr != 0xFF80 {
		t.Errorf("bare placement: %+v", d.At)
	}
}

func TestTypeDecls(t *testing.T) {
	prog := parseOK(t, `
type Vec = object { x: uint8, y: uint8 }
type Row = array[32, uint8]
`)
	vec := prog.Decls[0].(*ast.TypeDecl)
	obj, ok := vec.Type.(*ast.ObjectType)
	if !ok || len(obj.Fields) != 2 {
		t.Fatalf("object type: %+v", vec.Type)
	}
	row := prog.Decls[1].(*ast.TypeDecl)
	arr, ok := row.Type.(*ast.ArrayType)
	if !ok {
		t.Fatalf("array type: %+v", row.Type)
	}
	if n, k := arr.Len.(*ast.IntLit); !k || n.Value != 32 {
		t.Errorf("array length: %+v", arr.Len)
	}
}

func TestProcDecl(t *testing.T) {
	prog := parseOK(t, `
proc update(dx: uint8, dy: uint8): uint8 {.bank: 3.} {
    return dx
}
`)
	p := prog.Decls[0].(*ast.ProcDecl)
	if len(p.Params) != 2 {
		t.Errorf("got %d params, want 2", len(p.Params))
	}
	if p.Ret == nil {
		t.Error("return type missing")
	}
	if len(p.Pragmas) != 1 || p.Pragmas[0].Name != "bank" || p.Pragmas[0].Int != 3 {
		t.Errorf("pragmas: %+v", p.Pragmas)
	}
	if len(p.Body.Stmts) != 1 {
		t.Errorf("body: %d stmts", len(p.Body.Stmts))
	}
}

func TestIfElifElse(t *testing.T) {
	prog := parseOK(t, `
proc run(x: uint8) {
    if x == 0 { x = 1 } elif x == 1 { x = 2 } else { x = 3 }
}
`)
	p := prog.Decls[0].(*ast.ProcDecl)
	s := p.Body.Stmts[0].(*ast.IfStmt)
	elif, ok := s.Else.(*ast.IfStmt)
	if !ok {
		t.Fatalf("elif not chained: %T", s.Else)
	}
	if _, ok := elif.Else.(*ast.BlockStmt); !ok {
		t.Errorf("else arm: %T", elif.Else)
	}
}

func TestForRange(t *testing.T) {
	prog := parseOK(t, `
proc run() {
    for i in 0 ..< 10 {
        return
    }
}
`)
	p := prog.Decls[0].(*ast.ProcDecl)
	f := p.Body.Stmts[0].(*ast.ForStmt)
	if f.Var != "i" {
		t.Errorf("loop var %q", f.Var)
	}
	lo, ok := f.Lo.(*ast.IntLit)
	if !ok || lo.Value != 0 {
		t.Errorf("lo: %+v", f.Lo)
	}
	hi, ok := f.Hi.(*ast.IntLit)
	if !ok || hi.Value != 10 {
		t.Errorf("hi: %+v", f.Hi)
	}
}

func TestPrecedence(t *testing.T) {
	prog := parseOK(t, `
proc run(a: uint8, b: uint8, c: uint8) {
    a = a + b * c
}
`)
	p := prog.Decls[0].(*ast.ProcDecl)
	assign := p.Body.Stmts[0].(*ast.AssignStmt)
	add, ok := assign.RHS.(*ast.BinaryExpr)
	if !ok || add.Op != token.Plus {
		t.Fatalf("top op: %+v", assign.RHS)
	}
	mul, ok := add.R.(*ast.BinaryExpr)
	if !ok || mul.Op != token.Star {
		t.Errorf("b * c should bind tighter: %+v", add.R)
	}
}

func TestPostfixChain(t *testing.T) {
	prog := parseOK(t, `
proc run() {
    things[2].count += 1
}
`)
	p := prog.Decls[0].(*ast.ProcDecl)
	assign := p.Body.Stmts[0].(*ast.AssignStmt)
	if assign.Op != token.PlusEq {
		t.Errorf("op: %v", assign.Op)
	}
	member, ok := assign.LHS.(*ast.MemberExpr)
	if !ok {
		t.Fatalf("lhs: %T", assign.LHS)
	}
	if _, ok := member.X.(*ast.IndexExpr); !ok {
		t.Errorf("member base: %T", member.X)
	}
}

func TestHwReference(t *testing.T) {
	prog := parseOK(t, `
proc run() {
    hw.bgp = 0xE4
}
`)
	p := prog.Decls[0].(*ast.ProcDecl)
	assign := p.Body.Stmts[0].(*ast.AssignStmt)
	reg, ok := assign.LHS.(*ast.HwRegExpr)
	if !ok || reg.Name != "bgp" {
		t.Errorf("lhs: %+v", assign.LHS)
	}
}

func TestDerefAndAddrOf(t *testing.T) {
	prog := parseOK(t, `
proc run(p: ptr) {
    p^ = 1
    var q = &p
}
`)
	proc := prog.Decls[0].(*ast.ProcDecl)
	assign := proc.Body.Stmts[0].(*ast.AssignStmt)
	if _, ok := assign.LHS.(*ast.DerefExpr); !ok {
		t.Errorf("deref lhs: %T", assign.LHS)
	}
	v := proc.Body.Stmts[1].(*ast.VarDecl)
	if _, ok := v.Value.(*ast.AddrExpr); !ok {
		t.Errorf("addr-of: %T", v.Value)
	}
}

func TestAsmStmt(t *testing.T) {
	prog := parseOK(t, `
proc run() {
    asm { "nop" "halt" }
}
`)
	p := prog.Decls[0].(*ast.ProcDecl)
	s := p.Body.Stmts[0].(*ast.AsmStmt)
	if len(s.Lines) != 2 || s.Lines[0] != "nop" {
		t.Errorf("asm lines: %v", s.Lines)
	}
}

func TestSyntaxErrorRecoversAtNextDecl(t *testing.T) {
	prog, r := parse(t, `
var broken: = 3
proc stillHere() {
    return
}
`)
	if !r.HasErrors() {
		t.Fatal("expected a syntax error")
	}
	found := false
	for _, d := range prog.Decls {
		if p, ok := d.(*ast.ProcDecl); ok && p.Name == "stillHere" {
			found = true
		}
	}
	if !found {
		t.Error("parser did not recover to the following declaration")
	}
}

func TestCallTargetMustBeIdent(t *testing.T) {
	_, r := parse(t, `
proc run() {
    things[0]()
}
`)
	if !r.HasErrors() {
		t.Fatal("expected an error for a non-identifier call target")
	}
}

func TestPositionsAttached(t *testing.T) {
	prog := parseOK(t, `var x: uint8`)
	if !prog.Decls[0].Pos().IsValid() {
		t.Error("declaration carries no position")
	}
}
