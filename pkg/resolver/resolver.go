// Package resolver builds the symbol table and types every expression.
// It is the first core stage: everything downstream (allocator, bank
// analyzer, code generator) consults the Table it produces and never
// re-derives a binding. The AST is left untouched; all results live in
// side tables keyed by node pointer.
package resolver

import (
	"fmt"

	"github.com/Naitsabot/hippolang/pkg/ast"
	"github.com/Naitsabot/hippolang/pkg/config"
	"github.com/Naitsabot/hippolang/pkg/diag"
	"github.com/Naitsabot/hippolang/pkg/hw"
	"github.com/Naitsabot/hippolang/pkg/token"
	"github.com/Naitsabot/hippolang/pkg/types"
)

type SymKind int

const (
	SymVar SymKind = iota
	SymConst
	SymType
	SymProc
)

func (k SymKind) String() string {
	switch k {
	case SymVar:
		return "variable"
	case SymConst:
		return "constant"
	case SymType:
		return "type"
	case SymProc:
		return "procedure"
	}
	return "symbol"
}

// Symbol is one declared name. The first-seen spelling is retained for
// diagnostics; identity is the canon key.
type Symbol struct {
	Name  string // original spelling
	Canon string
	Kind  SymKind
	Type  *types.Type
	Pos   token.Pos

	At      *ast.Placement // explicit placement, nil for allocator choice
	Pragmas []*ast.Pragma
	Bank    int // rom bank for constants ({.bank: N.}); 0 = fixed bank

	// Constants only.
	Val    int64 // folded scalar value
	HasVal bool
	Blob   []byte   // opaque data constants
	Init   ast.Expr // original initializer

	Proc *ProcInfo // procedures only
}

// Foldable reports whether references to this constant may be replaced by
// its value. {.patchable.} and {.lut.} data keeps its memory identity.
func (s *Symbol) Foldable() bool {
	if !s.HasVal {
		return false
	}
	return ast.FindPragma(s.Pragmas, "patchable") == nil && ast.FindPragma(s.Pragmas, "lut") == nil
}

// ProcInfo is the per-procedure record: signature, flags from pragmas,
// and the body scope. Index is the procedure's handle in Table.Procs,
// used by the bank analyzer's graph.
type ProcInfo struct {
	Sym        *Symbol
	Index      int
	Decl       *ast.ProcDecl
	Params     []*Symbol
	ParamTypes []*types.Type // resolved with the signature, before any body
	Ret        *types.Type   // nil for no return value

	Bank         int
	Interrupt    hw.Vector
	HasInterrupt bool
	Entry        bool
	Inline       bool
	NoBankSwitch bool
}

// Scope is one lexical scope. Lookup walks the parent chain; the
// no-shadowing rule means declaration also walks it.
type Scope struct {
	Parent  *Scope
	symbols map[string]*Symbol
}

func newScope(parent *Scope) *Scope {
	return &Scope{Parent: parent, symbols: make(map[string]*Symbol)}
}

func (s *Scope) lookup(canon string) *Symbol {
	for sc := s; sc != nil; sc = sc.Parent {
		if sym, ok := sc.symbols[canon]; ok {
			return sym
		}
	}
	return nil
}

// Table is the resolver's output, handed read-only to later stages.
type Table struct {
	Module *Scope
	Procs  []*ProcInfo

	// Side tables. The AST is immutable after parsing; types and
	// bindings attach here instead.
	ExprTypes map[ast.Expr]*types.Type
	Uses      map[*ast.Ident]*Symbol
	DeclSyms  map[ast.Node]*Symbol
	ForVars   map[*ast.ForStmt]*Symbol
	ForBounds map[*ast.ForStmt]*Symbol
}

// ConstValue implements ast.ConstEnv over the module scope's foldable
// scalar constants.
func (t *Table) ConstValue(name string) (int64, bool) {
	sym := t.Module.lookup(Canon(name))
	if sym == nil || sym.Kind != SymConst || !sym.Foldable() {
		return 0, false
	}
	return sym.Val, true
}

// Lookup finds a module-scope symbol by any spelling of its name.
func (t *Table) Lookup(name string) *Symbol {
	return t.Module.lookup(Canon(name))
}

// builtinNames are callable without declaration and may not be redeclared.
var builtinNames = map[string]bool{
	"memcpy":            true,
	"memset":            true,
	"switchbank":        true,
	"switchbankrestore": true,
	"sizeof":            true,
}

type resolver struct {
	r     *diag.Reporter
	cfg   *config.Config
	table *Table
	scope *Scope
	proc  *ProcInfo // enclosing procedure while checking a body
}

// Resolve builds the symbol table for prog, filling cfg from the module
// pragmas. On error the returned table is partial and the reporter holds
// the diagnostics; callers must not start the next stage.
func Resolve(prog *ast.Program, cfg *config.Config, r *diag.Reporter) *Table {
	t := &Table{
		Module:    newScope(nil),
		ExprTypes: make(map[ast.Expr]*types.Type),
		Uses:      make(map[*ast.Ident]*Symbol),
		DeclSyms:  make(map[ast.Node]*Symbol),
		ForVars:   make(map[*ast.ForStmt]*Symbol),
		ForBounds: make(map[*ast.ForStmt]*Symbol),
	}
	res := &resolver{r: r, cfg: cfg, table: t, scope: t.Module}

	res.modulePragmas(prog.Pragmas)

	// Module-level declarations resolve in source order, except that
	// procedure signatures are all declared before any body is checked,
	// so procedures may call forward.
	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *ast.TypeDecl:
			res.typeDecl(d)
		case *ast.VarDecl:
			res.varDecl(d)
		case *ast.ConstDecl:
			res.constDecl(d)
		case *ast.ProcDecl:
			res.procSignature(d)
		}
	}
	for _, p := range t.Procs {
		res.procBody(p)
	}
	return t
}

// modulePragmas extracts cartridge configuration. A bad value here is
// fatal for the whole run since every later bank check depends on it.
func (res *resolver) modulePragmas(pragmas []*ast.Pragma) {
	for _, p := range pragmas {
		switch Canon(p.Name) {
		case "mbc":
			m, ok := config.MBCByName(p.Arg)
			if !ok {
				res.r.Errorf(diag.BankIndexOutOfRange, p.P, "unknown memory bank controller '%s'", p.Arg)
				continue
			}
			res.cfg.MBC = m
		case "rombanks":
			if !p.IsInt || p.Int < 2 {
				res.r.Errorf(diag.BankIndexOutOfRange, p.P, "romBanks needs an integer argument of at least 2")
				continue
			}
			res.cfg.ROMBanks = int(p.Int)
		case "rambanks":
			if !p.IsInt || p.Int < 0 {
				res.r.Errorf(diag.BankIndexOutOfRange, p.P, "ramBanks needs a non-negative integer argument")
				continue
			}
			res.cfg.RAMBanks = int(p.Int)
		case "bank":
			if !p.IsInt {
				res.r.Errorf(diag.BankIndexOutOfRange, p.P, "bank needs an integer argument")
				continue
			}
			res.cfg.DefaultBank = int(p.Int)
		default:
			res.r.Errorf(diag.SyntaxError, p.P, "unknown module pragma '%s'", p.Name)
		}
	}
	if max := res.cfg.MBC.MaxROMBanks(); res.cfg.ROMBanks > max {
		res.r.Errorf(diag.BankIndexOutOfRange, token.Pos{},
			"%d rom banks exceed the %s limit of %d", res.cfg.ROMBanks, res.cfg.MBC, max)
	}
	if !res.cfg.ValidBank(res.cfg.DefaultBank) {
		res.r.Errorf(diag.BankIndexOutOfRange, token.Pos{},
			"default bank %d is outside 0..%d", res.cfg.DefaultBank, res.cfg.ROMBanks-1)
	}
}

// declare inserts a symbol, enforcing the no-shadowing rule: a name
// visible in any enclosing scope may not be declared again.
func (res *resolver) declare(sym *Symbol) bool {
	if builtinNames[sym.Canon] {
		res.r.Errorf(diag.Redeclaration, sym.Pos, "'%s' is a built-in and cannot be redeclared", sym.Name)
		return false
	}
	if prev := res.scope.lookup(sym.Canon); prev != nil {
		if res.cfg.IsWarningEnabled(config.WarnShadowHint) {
			res.r.ErrorWithHint(diag.Redeclaration, sym.Pos,
				fmt.Sprintf("previously declared as '%s' at line %d", prev.Name, prev.Pos.Line),
				"redeclaration of '%s'", sym.Name)
		} else {
			res.r.Errorf(diag.Redeclaration, sym.Pos, "redeclaration of '%s'", sym.Name)
		}
		return false
	}
	res.scope.symbols[sym.Canon] = sym
	return true
}

// resolveType turns a type expression into a concrete, sized Type.
func (res *resolver) resolveType(te ast.TypeExpr) *types.Type {
	switch te := te.(type) {
	case *ast.NamedType:
		if t, ok := types.Primitives[Canon(te.Name)]; ok {
			return t
		}
		sym := res.scope.lookup(Canon(te.Name))
		if sym == nil || sym.Kind != SymType {
			res.r.Errorf(diag.UnresolvedType, te.P, "unresolved type '%s'", te.Name)
			return nil
		}
		return sym.Type
	case *ast.ArrayType:
		elem := res.resolveType(te.Elem)
		n, ok := ast.Fold(te.Len, res.table)
		if !ok || n <= 0 {
			res.r.Errorf(diag.UnresolvedType, te.P, "array length must be a positive compile-time constant")
			return nil
		}
		if elem == nil {
			return nil
		}
		return types.NewArray(elem, int(n))
	case *ast.ObjectType:
		fields := make([]types.Field, 0, len(te.Fields))
		for _, f := range te.Fields {
			ft := res.resolveType(f.Type)
			if ft == nil {
				return nil
			}
			for _, prev := range fields {
				if prev.Name == Canon(f.Name) {
					res.r.Errorf(diag.Redeclaration, f.P, "duplicate field '%s'", f.Name)
				}
			}
			fields = append(fields, types.Field{Name: Canon(f.Name), Type: ft})
		}
		return types.NewObject("", fields)
	}
	return nil
}

func (res *resolver) typeDecl(d *ast.TypeDecl) {
	t := res.resolveType(d.Type)
	if t != nil && t.Kind == types.Object && t.Name == "" {
		t.Name = d.Name
	}
	sym := &Symbol{Name: d.Name, Canon: Canon(d.Name), Kind: SymType, Type: t, Pos: d.P}
	if res.declare(sym) {
		res.table.DeclSyms[d] = sym
	}
}

func (res *resolver) varDecl(d *ast.VarDecl) {
	var t *types.Type
	if d.Type != nil {
		t = res.resolveType(d.Type)
	}
	if d.Value != nil {
		vt := res.checkExpr(d.Value, t)
		if t == nil {
			t = vt
		} else if vt != nil && !vt.AssignableTo(t) {
			res.r.Errorf(diag.TypeMismatch, d.Value.Pos(),
				"cannot initialize %s variable with %s value", t, vt)
		}
	}
	if t == nil && d.Type == nil && d.Value == nil {
		res.r.Errorf(diag.CannotInferType, d.P,
			"cannot infer type of '%s': no type annotation and no initializer", d.Name)
	}
	res.checkPlacement(d.At, t)
	sym := &Symbol{
		Name: d.Name, Canon: Canon(d.Name), Kind: SymVar,
		Type: t, Pos: d.P, At: d.At, Pragmas: d.Pragmas, Init: d.Value,
	}
	if res.declare(sym) {
		res.table.DeclSyms[d] = sym
	}
}

func (res *resolver) constDecl(d *ast.ConstDecl) {
	var t *types.Type
	if d.Type != nil {
		t = res.resolveType(d.Type)
	}
	sym := &Symbol{
		Name: d.Name, Canon: Canon(d.Name), Kind: SymConst,
		Pos: d.P, At: d.At, Pragmas: d.Pragmas, Init: d.Value, Blob: d.Blob,
	}
	if bp := ast.FindPragma(d.Pragmas, "bank"); bp != nil {
		if !bp.IsInt || !res.cfg.ValidBank(int(bp.Int)) {
			res.r.Errorf(diag.BankIndexOutOfRange, bp.P,
				"constant bank index is outside 0..%d", res.cfg.ROMBanks-1)
		} else {
			sym.Bank = int(bp.Int)
		}
	}

	switch {
	case d.Blob != nil:
		if t == nil {
			t = types.NewArray(types.TypeU8, len(d.Blob))
		}
	case d.Value != nil:
		vt := res.checkExpr(d.Value, t)
		if t == nil {
			t = vt
		} else if vt != nil && !vt.AssignableTo(t) {
			res.r.Errorf(diag.TypeMismatch, d.Value.Pos(),
				"cannot initialize %s constant with %s value", t, vt)
		}
		if s, ok := d.Value.(*ast.StringLit); ok {
			sym.Blob = []byte(s.Value)
		} else if t != nil && t.IsScalar() {
			if v, ok := ast.Fold(d.Value, res.table); ok {
				sym.Val, sym.HasVal = v, true
			} else {
				res.r.Errorf(diag.TypeMismatch, d.Value.Pos(),
					"constant initializer for '%s' is not a compile-time constant", d.Name)
			}
		}
	default:
		res.r.Errorf(diag.CannotInferType, d.P, "constant '%s' needs an initializer", d.Name)
	}
	sym.Type = t
	res.checkPlacement(d.At, t)
	if res.declare(sym) {
		res.table.DeclSyms[d] = sym
	}
}

// checkPlacement validates the region name and range of an explicit
// placement. Liveness conflicts are the allocator's business.
func (res *resolver) checkPlacement(at *ast.Placement, t *types.Type) {
	if at == nil {
		return
	}
	size := 1
	if t != nil {
		size = t.Size()
	}
	if at.Region != "" {
		reg, ok := hw.Regions[Canon(at.Region)]
		if !ok {
			res.r.Errorf(diag.AddressOutOfRegion, at.P, "unknown memory region '%s'", at.Region)
			return
		}
		if !reg.Contains(at.Addr, size) {
			res.r.Errorf(diag.AddressOutOfRegion, at.P,
				"address $%04X (+%d) is outside region %s ($%04X-$%04X)",
				at.Addr, size, reg.Name, reg.Base, reg.End()-1)
		}
		return
	}
	for _, reg := range hw.Regions {
		if reg.Contains(at.Addr, size) {
			return
		}
	}
	res.r.Errorf(diag.AddressOutOfRegion, at.P, "address $%04X lies in no known memory region", at.Addr)
}

func (res *resolver) procSignature(d *ast.ProcDecl) {
	info := &ProcInfo{Decl: d, Bank: res.cfg.DefaultBank}
	sym := &Symbol{Name: d.Name, Canon: Canon(d.Name), Kind: SymProc, Pos: d.P, Pragmas: d.Pragmas, Proc: info}
	info.Sym = sym
	if d.Ret != nil {
		info.Ret = res.resolveType(d.Ret)
	}
	for _, param := range d.Params {
		info.ParamTypes = append(info.ParamTypes, res.resolveType(param.Type))
	}
	for _, p := range d.Pragmas {
		switch Canon(p.Name) {
		case "bank":
			if !p.IsInt || !res.cfg.ValidBank(int(p.Int)) {
				res.r.Errorf(diag.BankIndexOutOfRange, p.P,
					"bank index is outside 0..%d", res.cfg.ROMBanks-1)
			} else {
				info.Bank = int(p.Int)
			}
		case "interrupt":
			v, ok := hw.VectorByName(Canon(p.Arg))
			if !ok {
				res.r.Errorf(diag.InterruptContractViolation, p.P,
					"unknown interrupt vector '%s'", p.Arg)
				continue
			}
			info.Interrupt, info.HasInterrupt = v, true
		case "entry":
			info.Entry = true
		case "inline":
			info.Inline = true
		case "nobankswitch":
			info.NoBankSwitch = true
		default:
			res.r.Errorf(diag.SyntaxError, p.P, "unknown procedure pragma '%s'", p.Name)
		}
	}
	if info.HasInterrupt && (len(d.Params) > 0 || info.Ret != nil) {
		res.r.Errorf(diag.InterruptContractViolation, d.P,
			"interrupt handler '%s' must not take parameters or return a value", d.Name)
	}
	if res.declare(sym) {
		res.table.DeclSyms[d] = sym
		info.Index = len(res.table.Procs)
		res.table.Procs = append(res.table.Procs, info)
	}
}

// procBody opens the procedure scope, declares the parameters, and checks
// the statements.
func (res *resolver) procBody(info *ProcInfo) {
	res.proc = info
	res.scope = newScope(res.table.Module)
	for i, param := range info.Decl.Params {
		sym := &Symbol{Name: param.Name, Canon: Canon(param.Name), Kind: SymVar, Type: info.ParamTypes[i], Pos: param.P}
		if res.declare(sym) {
			res.table.DeclSyms[param] = sym
			info.Params = append(info.Params, sym)
		}
	}
	res.checkBlock(info.Decl.Body)
	res.scope = res.table.Module
	res.proc = nil
}

func (res *resolver) checkBlock(b *ast.BlockStmt) {
	res.scope = newScope(res.scope)
	for _, s := range b.Stmts {
		res.checkStmt(s)
	}
	res.scope = res.scope.Parent
}

func (res *resolver) checkStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.VarDecl:
		res.varDecl(s)
	case *ast.ConstDecl:
		res.constDecl(s)
	case *ast.BlockStmt:
		res.checkBlock(s)
	case *ast.IfStmt:
		res.checkCond(s.Cond)
		res.checkBlock(s.Then)
		if s.Else != nil {
			res.checkStmt(s.Else)
		}
	case *ast.WhileStmt:
		res.checkCond(s.Cond)
		res.checkBlock(s.Body)
	case *ast.ForStmt:
		res.checkFor(s)
	case *ast.ReturnStmt:
		res.checkReturn(s)
	case *ast.AssignStmt:
		res.checkAssign(s)
	case *ast.CallStmt:
		res.checkCall(s.Call, true)
	case *ast.AsmStmt:
		// Verbatim text; nothing to resolve.
	}
}

func (res *resolver) checkCond(e ast.Expr) {
	t := res.checkExpr(e, types.TypeBool)
	if t != nil && t.Kind != types.Bool {
		res.r.Errorf(diag.TypeMismatch, e.Pos(), "condition must be bool, got %s", t)
	}
}

// checkFor opens the loop scope, declares the loop variable and a hidden
// symbol holding the snapshotted upper bound. The bound cell gives the
// generator a stable address so the bound is evaluated exactly once.
func (res *resolver) checkFor(s *ast.ForStmt) {
	lt := res.checkExpr(s.Lo, nil)
	if lt == nil || !lt.IsInteger() {
		if lt != nil {
			res.r.Errorf(diag.TypeMismatch, s.Lo.Pos(), "for-loop bounds must be integers, got %s", lt)
		}
		lt = types.TypeU8
	}
	ht := res.checkExpr(s.Hi, lt)
	if ht != nil && !ht.AssignableTo(lt) {
		res.r.Errorf(diag.TypeMismatch, s.Hi.Pos(),
			"for-loop upper bound %s does not match lower bound %s", ht, lt)
	}

	res.scope = newScope(res.scope)
	loopVar := &Symbol{Name: s.Var, Canon: Canon(s.Var), Kind: SymVar, Type: lt, Pos: s.P}
	if res.declare(loopVar) {
		res.table.ForVars[s] = loopVar
	}
	bound := &Symbol{Name: s.Var + "__bound", Canon: Canon(s.Var) + "__bound", Kind: SymVar, Type: lt, Pos: s.P}
	res.table.ForBounds[s] = bound

	for _, st := range s.Body.Stmts {
		res.checkStmt(st)
	}
	res.scope = res.scope.Parent
}

func (res *resolver) checkReturn(s *ast.ReturnStmt) {
	if res.proc == nil {
		return
	}
	switch {
	case s.Value == nil && res.proc.Ret != nil:
		res.r.Errorf(diag.TypeMismatch, s.P, "'%s' must return a %s value", res.proc.Sym.Name, res.proc.Ret)
	case s.Value != nil && res.proc.Ret == nil:
		res.r.Errorf(diag.TypeMismatch, s.P, "'%s' has no return type", res.proc.Sym.Name)
	case s.Value != nil:
		t := res.checkExpr(s.Value, res.proc.Ret)
		if t != nil && !t.AssignableTo(res.proc.Ret) {
			res.r.Errorf(diag.TypeMismatch, s.Value.Pos(),
				"cannot return %s from a procedure returning %s", t, res.proc.Ret)
		}
	}
}

func (res *resolver) checkAssign(s *ast.AssignStmt) {
	lt := res.checkLValue(s.LHS)
	rt := res.checkExpr(s.RHS, lt)
	if lt == nil || rt == nil {
		return
	}
	if !rt.AssignableTo(lt) {
		res.r.Errorf(diag.TypeMismatch, s.P, "cannot assign %s value to %s location", rt, lt)
	}
	if s.Op != token.Eq && !lt.IsInteger() {
		res.r.Errorf(diag.TypeMismatch, s.P, "compound assignment needs an integer location, got %s", lt)
	}
}

// checkLValue types an assignment target and rejects non-assignable
// expressions (constants, r-values).
func (res *resolver) checkLValue(e ast.Expr) *types.Type {
	switch e := e.(type) {
	case *ast.Ident:
		t := res.checkExpr(e, nil)
		if sym := res.table.Uses[e]; sym != nil && sym.Kind != SymVar {
			res.r.Errorf(diag.TypeMismatch, e.P, "cannot assign to %s '%s'", sym.Kind, sym.Name)
		}
		return t
	case *ast.MemberExpr, *ast.IndexExpr, *ast.DerefExpr, *ast.HwRegExpr:
		return res.checkExpr(e, nil)
	default:
		res.r.Errorf(diag.TypeMismatch, e.Pos(), "expression is not assignable")
		return res.checkExpr(e, nil)
	}
}
