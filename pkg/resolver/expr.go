package resolver

import (
	"github.com/Naitsabot/hippolang/pkg/ast"
	"github.com/Naitsabot/hippolang/pkg/diag"
	"github.com/Naitsabot/hippolang/pkg/hw"
	"github.com/Naitsabot/hippolang/pkg/token"
	"github.com/Naitsabot/hippolang/pkg/types"
)

// checkExpr types e and records the result in the ExprTypes side table.
// want is a contextual hint used to give integer literals the width of
// their destination; it never suppresses a genuine mismatch. A nil result
// means the expression was broken and a diagnostic is already filed.
func (res *resolver) checkExpr(e ast.Expr, want *types.Type) *types.Type {
	t := res.exprType(e, want)
	if t != nil {
		res.table.ExprTypes[e] = t
	}
	return t
}

func (res *resolver) exprType(e ast.Expr, want *types.Type) *types.Type {
	switch e := e.(type) {
	case *ast.IntLit:
		return res.intLit(e, want)

	case *ast.StringLit:
		return types.NewArray(types.TypeU8, len(e.Value))

	case *ast.BoolLit:
		return types.TypeBool

	case *ast.Ident:
		sym := res.scope.lookup(Canon(e.Name))
		if sym == nil {
			res.r.Errorf(diag.UnresolvedSymbol, e.P, "unresolved symbol '%s'", e.Name)
			return nil
		}
		res.table.Uses[e] = sym
		switch sym.Kind {
		case SymType:
			res.r.Errorf(diag.TypeMismatch, e.P, "type '%s' used as a value", sym.Name)
			return nil
		case SymProc:
			res.r.Errorf(diag.TypeMismatch, e.P, "procedure '%s' used as a value", sym.Name)
			return nil
		}
		return sym.Type

	case *ast.BinaryExpr:
		return res.binary(e, want)

	case *ast.UnaryExpr:
		t := res.checkExpr(e.X, want)
		if t == nil {
			return nil
		}
		switch e.Op {
		case token.Minus:
			if !t.IsInteger() {
				res.r.Errorf(diag.TypeMismatch, e.P, "unary '-' needs an integer, got %s", t)
				return nil
			}
		case token.Not:
			if t.Kind != types.Bool && !t.IsInteger() {
				res.r.Errorf(diag.TypeMismatch, e.P, "'not' needs a bool or integer, got %s", t)
				return nil
			}
		}
		return t

	case *ast.CallExpr:
		return res.checkCall(e, false)

	case *ast.MemberExpr:
		t := res.checkExpr(e.X, nil)
		if t == nil {
			return nil
		}
		if t.Kind != types.Object {
			res.r.Errorf(diag.TypeMismatch, e.P, "%s has no fields", t)
			return nil
		}
		f, ok := t.Field(Canon(e.Name))
		if !ok {
			res.r.Errorf(diag.TypeMismatch, e.P, "%s has no field '%s'", t, e.Name)
			return nil
		}
		return f.Type

	case *ast.IndexExpr:
		t := res.checkExpr(e.X, nil)
		it := res.checkExpr(e.Index, nil)
		if it != nil && !it.IsInteger() {
			res.r.Errorf(diag.TypeMismatch, e.Index.Pos(), "array index must be an integer, got %s", it)
		}
		if t == nil {
			return nil
		}
		if t.Kind != types.Array {
			res.r.Errorf(diag.TypeMismatch, e.P, "%s is not indexable", t)
			return nil
		}
		return t.Elem

	case *ast.DerefExpr:
		t := res.checkExpr(e.X, nil)
		if t == nil {
			return nil
		}
		if t.Kind != types.Ptr {
			res.r.Errorf(diag.TypeMismatch, e.P, "cannot dereference %s", t)
			return nil
		}
		return types.TypeU8

	case *ast.AddrExpr:
		return res.addrOf(e)

	case *ast.HwRegExpr:
		if _, ok := hw.Registers[Canon(e.Name)]; !ok {
			res.r.Errorf(diag.UnknownHardwareRegister, e.P, "unknown hardware register 'hw.%s'", e.Name)
			return nil
		}
		return types.TypeU8
	}
	return nil
}

// intLit gives a literal the width of its destination when one is known,
// otherwise the narrowest unsigned type that holds it.
func (res *resolver) intLit(e *ast.IntLit, want *types.Type) *types.Type {
	if want != nil && (want.IsInteger() || want.Kind == types.Ptr) {
		if literalFits(e.Value, want) {
			return want
		}
		res.r.Errorf(diag.TypeMismatch, e.P, "literal %d does not fit in %s", e.Value, want)
		return nil
	}
	switch {
	case e.Value >= 0 && e.Value <= 0xFF:
		return types.TypeU8
	case e.Value >= 0 && e.Value <= 0xFFFF:
		return types.TypeU16
	default:
		res.r.Errorf(diag.TypeMismatch, e.P, "literal %d does not fit in 16 bits", e.Value)
		return nil
	}
}

func literalFits(v int64, t *types.Type) bool {
	switch t.Kind {
	case types.U8:
		return v >= 0 && v <= 0xFF
	case types.I8:
		return v >= -0x80 && v <= 0x7F
	case types.U16, types.Ptr:
		return v >= 0 && v <= 0xFFFF
	case types.I16:
		return v >= -0x8000 && v <= 0x7FFF
	}
	return false
}

func (res *resolver) binary(e *ast.BinaryExpr, want *types.Type) *types.Type {
	switch e.Op {
	case token.EqEq, token.Neq, token.Lt, token.Gt, token.Lte, token.Gte:
		lt := res.checkExpr(e.L, nil)
		rt := res.checkExpr(e.R, lt)
		if lt != nil && rt != nil && !rt.AssignableTo(lt) && !lt.AssignableTo(rt) {
			res.r.Errorf(diag.TypeMismatch, e.P, "cannot compare %s with %s", lt, rt)
		}
		return types.TypeBool

	case token.And, token.Or, token.Xor:
		lt := res.checkExpr(e.L, want)
		rt := res.checkExpr(e.R, lt)
		if lt == nil || rt == nil {
			return nil
		}
		if lt.Kind == types.Bool && rt.Kind == types.Bool {
			return types.TypeBool
		}
		if lt.IsInteger() && rt.AssignableTo(lt) {
			return lt
		}
		res.r.Errorf(diag.TypeMismatch, e.P, "operands of %s must both be bool or matching integers, got %s and %s",
			e.Op, lt, rt)
		return nil

	case token.Shl, token.Shr:
		lt := res.checkExpr(e.L, want)
		rt := res.checkExpr(e.R, types.TypeU8)
		if lt == nil {
			return nil
		}
		if !lt.IsInteger() {
			res.r.Errorf(diag.TypeMismatch, e.P, "shift needs an integer, got %s", lt)
			return nil
		}
		if rt != nil && !rt.IsInteger() {
			res.r.Errorf(diag.TypeMismatch, e.R.Pos(), "shift amount must be an integer, got %s", rt)
		}
		return lt

	default: // + - * / %
		lt := res.checkExpr(e.L, want)
		rt := res.checkExpr(e.R, lt)
		if lt == nil || rt == nil {
			return nil
		}
		// Pointer arithmetic: ptr plus/minus integer offset stays ptr.
		if lt.Kind == types.Ptr && (e.Op == token.Plus || e.Op == token.Minus) && rt.IsInteger() {
			return types.TypePtr
		}
		if !lt.IsInteger() || !rt.AssignableTo(lt) {
			res.r.Errorf(diag.TypeMismatch, e.P, "operands of %s must be matching integers, got %s and %s",
				e.Op, lt, rt)
			return nil
		}
		return lt
	}
}

// addrOf checks `&x`. Hardware registers are read/write but never
// addressable; everything else must bottom out at an allocated symbol.
func (res *resolver) addrOf(e *ast.AddrExpr) *types.Type {
	root := e.X
	for {
		switch x := root.(type) {
		case *ast.MemberExpr:
			root = x.X
			continue
		case *ast.IndexExpr:
			root = x.X
			continue
		}
		break
	}
	if _, ok := root.(*ast.HwRegExpr); ok {
		res.checkExpr(e.X, nil)
		res.r.Errorf(diag.HardwareRegisterAddress, e.P, "cannot take the address of a hardware register")
		return nil
	}
	if _, ok := root.(*ast.Ident); !ok {
		res.r.Errorf(diag.TypeMismatch, e.P, "cannot take the address of this expression")
		return nil
	}
	if res.checkExpr(e.X, nil) == nil {
		return nil
	}
	return types.TypePtr
}

// checkCall validates a call's target and arguments. stmtCtx marks a
// bare call statement, where a discarded return value is fine.
func (res *resolver) checkCall(call *ast.CallExpr, stmtCtx bool) *types.Type {
	switch Canon(call.Target.Name) {
	case "memcpy":
		return res.checkMemOp(call, "memcpy", true)
	case "memset":
		return res.checkMemOp(call, "memset", false)
	case "switchbank":
		if len(call.Args) != 1 {
			res.r.Errorf(diag.TypeMismatch, call.P, "switchBank takes exactly one argument")
			return nil
		}
		t := res.checkExpr(call.Args[0], types.TypeU8)
		if t != nil && !t.IsInteger() {
			res.r.Errorf(diag.TypeMismatch, call.Args[0].Pos(), "switchBank needs an integer bank index, got %s", t)
		}
		if n, ok := ast.Fold(call.Args[0], res.table); ok && !res.cfg.ValidBank(int(n)) {
			res.r.Errorf(diag.BankIndexOutOfRange, call.Args[0].Pos(),
				"bank index %d is outside 0..%d", n, res.cfg.ROMBanks-1)
		}
		return nil
	case "switchbankrestore":
		if len(call.Args) != 0 {
			res.r.Errorf(diag.TypeMismatch, call.P, "switchBankRestore takes no arguments")
		}
		return nil
	case "sizeof":
		return res.checkSizeof(call)
	}

	sym := res.scope.lookup(Canon(call.Target.Name))
	if sym == nil || sym.Kind != SymProc {
		res.r.Errorf(diag.UnknownProcedure, call.Target.P, "unknown procedure '%s'", call.Target.Name)
		return nil
	}
	res.table.Uses[call.Target] = sym
	info := sym.Proc
	if len(call.Args) != len(info.ParamTypes) {
		res.r.Errorf(diag.TypeMismatch, call.P, "'%s' takes %d argument(s), got %d",
			sym.Name, len(info.ParamTypes), len(call.Args))
	}
	for i, arg := range call.Args {
		if i >= len(info.ParamTypes) {
			res.checkExpr(arg, nil)
			continue
		}
		at := res.checkExpr(arg, info.ParamTypes[i])
		if at != nil && info.ParamTypes[i] != nil && !at.AssignableTo(info.ParamTypes[i]) {
			res.r.Errorf(diag.TypeMismatch, arg.Pos(), "argument %d of '%s' wants %s, got %s",
				i+1, sym.Name, info.ParamTypes[i], at)
		}
	}
	if !stmtCtx && info.Ret == nil {
		res.r.Errorf(diag.TypeMismatch, call.P, "procedure '%s' does not return a value", sym.Name)
		return nil
	}
	return info.Ret
}

// checkMemOp handles memcpy(dst, src, n) and memset(dst, value, n).
func (res *resolver) checkMemOp(call *ast.CallExpr, name string, srcIsAddr bool) *types.Type {
	if len(call.Args) != 3 {
		res.r.Errorf(diag.TypeMismatch, call.P, "%s takes exactly three arguments", name)
		return nil
	}
	res.checkAddrArg(call.Args[0], name)
	if srcIsAddr {
		res.checkAddrArg(call.Args[1], name)
	} else {
		if t := res.checkExpr(call.Args[1], types.TypeU8); t != nil && !t.IsInteger() {
			res.r.Errorf(diag.TypeMismatch, call.Args[1].Pos(), "%s fill value must be an integer, got %s", name, t)
		}
	}
	if t := res.checkExpr(call.Args[2], types.TypeU16); t != nil && !t.IsInteger() {
		res.r.Errorf(diag.TypeMismatch, call.Args[2].Pos(), "%s length must be an integer, got %s", name, t)
	}
	return nil
}

// checkAddrArg accepts a pointer value or an aggregate l-value, which
// decays to its address.
func (res *resolver) checkAddrArg(e ast.Expr, name string) {
	t := res.checkExpr(e, nil)
	if t == nil {
		return
	}
	if t.Kind == types.Ptr || t.Kind == types.Array || t.Kind == types.Object {
		return
	}
	res.r.Errorf(diag.TypeMismatch, e.Pos(), "%s wants a pointer or an array/object, got %s", name, t)
}

// checkSizeof accepts a type name or any typed expression. The result is
// a compile-time u16; the generator folds it, no code is ever emitted.
func (res *resolver) checkSizeof(call *ast.CallExpr) *types.Type {
	if len(call.Args) != 1 {
		res.r.Errorf(diag.TypeMismatch, call.P, "sizeof takes exactly one argument")
		return nil
	}
	if id, ok := call.Args[0].(*ast.Ident); ok {
		if _, isPrim := types.Primitives[Canon(id.Name)]; isPrim {
			return types.TypeU16
		}
		if sym := res.scope.lookup(Canon(id.Name)); sym != nil && sym.Kind == SymType {
			res.table.Uses[id] = sym
			return types.TypeU16
		}
	}
	if res.checkExpr(call.Args[0], nil) == nil {
		return nil
	}
	return types.TypeU16
}

// SizeofValue resolves the compile-time value of a sizeof call. Shared
// with constant folding and the generator.
func (t *Table) SizeofValue(call *ast.CallExpr, scope *Scope) (int64, bool) {
	if len(call.Args) != 1 {
		return 0, false
	}
	if id, ok := call.Args[0].(*ast.Ident); ok {
		if p, isPrim := types.Primitives[Canon(id.Name)]; isPrim {
			return int64(p.Size()), true
		}
		if sym := scope.lookup(Canon(id.Name)); sym != nil && sym.Type != nil {
			return int64(sym.Type.Size()), true
		}
	}
	if at := t.ExprTypes[call.Args[0]]; at != nil {
		return int64(at.Size()), true
	}
	return 0, false
}
