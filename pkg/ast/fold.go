package ast

import "github.com/Naitsabot/hippolang/pkg/token"

// ConstEnv supplies compile-time values for identifiers during folding.
// The resolver implements it over its scalar constant table; a nil env
// folds literals only.
type ConstEnv interface {
	ConstValue(name string) (int64, bool)
}

// Fold evaluates e at compile time if possible. It never mutates the tree;
// the folded value is returned out of band.
func Fold(e Expr, env ConstEnv) (int64, bool) {
	switch n := e.(type) {
	case *IntLit:
		return n.Value, true
	case *BoolLit:
		if n.Value {
			return 1, true
		}
		return 0, true
	case *Ident:
		if env != nil {
			return env.ConstValue(n.Name)
		}
		return 0, false
	case *UnaryExpr:
		v, ok := Fold(n.X, env)
		if !ok {
			return 0, false
		}
		switch n.Op {
		case token.Minus:
			return -v, true
		case token.Not:
			if v == 0 {
				return 1, true
			}
			return 0, true
		}
		return 0, false
	case *BinaryExpr:
		l, ok := Fold(n.L, env)
		if !ok {
			return 0, false
		}
		r, ok := Fold(n.R, env)
		if !ok {
			return 0, false
		}
		return foldBinary(n.Op, l, r)
	}
	return 0, false
}

func foldBinary(op token.Kind, l, r int64) (int64, bool) {
	b2i := func(b bool) int64 {
		if b {
			return 1
		}
		return 0
	}
	switch op {
	case token.Plus:
		return l + r, true
	case token.Minus:
		return l - r, true
	case token.Star:
		return l * r, true
	case token.Slash:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case token.Percent:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case token.And:
		return l & r, true
	case token.Or:
		return l | r, true
	case token.Xor:
		return l ^ r, true
	case token.Shl:
		return l << uint64(r), true
	case token.Shr:
		return l >> uint64(r), true
	case token.EqEq:
		return b2i(l == r), true
	case token.Neq:
		return b2i(l != r), true
	case token.Lt:
		return b2i(l < r), true
	case token.Gt:
		return b2i(l > r), true
	case token.Lte:
		return b2i(l <= r), true
	case token.Gte:
		return b2i(l >= r), true
	}
	return 0, false
}
