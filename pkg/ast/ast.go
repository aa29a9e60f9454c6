// Package ast defines the syntax tree handed to the compiler core. The
// node set is closed: one struct per node kind, grouped under the Decl,
// Stmt, Expr and TypeExpr interfaces, with exhaustive switches at every
// consumer. Nodes are immutable once parsing finishes; later stages attach
// information through side tables, never by mutating the tree.
package ast

import "github.com/Naitsabot/hippolang/pkg/token"

type Node interface {
	Pos() token.Pos
}

type Decl interface {
	Node
	declNode()
}

type Stmt interface {
	Node
	stmtNode()
}

type Expr interface {
	Node
	exprNode()
}

type TypeExpr interface {
	Node
	typeExprNode()
}

// Program is the root: module-level pragmas followed by declarations.
type Program struct {
	Pragmas []*Pragma
	Decls   []Decl
}

// Pragma is a `{.name.}`, `{.name: ident.}` or `{.name: N.}` annotation.
type Pragma struct {
	P     token.Pos
	Name  string
	Arg   string // identifier argument, "" if none
	Int   int64  // integer argument
	IsInt bool
}

func (p *Pragma) Pos() token.Pos { return p.P }

// Placement is an explicit memory location: `@ region:addr` or `@ addr`.
type Placement struct {
	P      token.Pos
	Region string // "" when only an address was given
	Addr   uint16
}

func (p *Placement) Pos() token.Pos { return p.P }

// --- Declarations ---

type VarDecl struct {
	P       token.Pos
	Name    string
	Type    TypeExpr // nil when inferred from Value
	Value   Expr     // nil when uninitialized
	At      *Placement
	Pragmas []*Pragma
}

type ConstDecl struct {
	P       token.Pos
	Name    string
	Type    TypeExpr
	Value   Expr   // nil when Blob constant
	Blob    []byte // opaque data supplied by a collaborator (file inclusion)
	At      *Placement
	Pragmas []*Pragma
}

type TypeDecl struct {
	P    token.Pos
	Name string
	Type TypeExpr
}

type FieldDecl struct {
	P    token.Pos
	Name string
	Type TypeExpr
}

type ProcDecl struct {
	P       token.Pos
	Name    string
	Params  []*FieldDecl
	Ret     TypeExpr // nil for no return value
	Body    *BlockStmt
	Pragmas []*Pragma
}

func (d *VarDecl) Pos() token.Pos   { return d.P }
func (d *ConstDecl) Pos() token.Pos { return d.P }
func (d *TypeDecl) Pos() token.Pos  { return d.P }
func (d *FieldDecl) Pos() token.Pos { return d.P }
func (d *ProcDecl) Pos() token.Pos  { return d.P }

func (*VarDecl) declNode()   {}
func (*ConstDecl) declNode() {}
func (*TypeDecl) declNode()  {}
func (*FieldDecl) declNode() {}
func (*ProcDecl) declNode()  {}

// Var and const declarations are also legal as block statements.
func (*VarDecl) stmtNode()   {}
func (*ConstDecl) stmtNode() {}

// Pragma returns the declaration pragma with the given name, or nil.
func FindPragma(pragmas []*Pragma, name string) *Pragma {
	for _, p := range pragmas {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// --- Type expressions ---

type NamedType struct {
	P    token.Pos
	Name string
}

type ArrayType struct {
	P    token.Pos
	Len  Expr // compile-time constant length
	Elem TypeExpr
}

type ObjectType struct {
	P      token.Pos
	Fields []*FieldDecl
}

func (t *NamedType) Pos() token.Pos  { return t.P }
func (t *ArrayType) Pos() token.Pos  { return t.P }
func (t *ObjectType) Pos() token.Pos { return t.P }

func (*NamedType) typeExprNode()  {}
func (*ArrayType) typeExprNode()  {}
func (*ObjectType) typeExprNode() {}

// --- Statements ---

type BlockStmt struct {
	P     token.Pos
	Stmts []Stmt
}

type IfStmt struct {
	P    token.Pos
	Cond Expr
	Then *BlockStmt
	Else Stmt // *BlockStmt, *IfStmt (elif chain), or nil
}

type WhileStmt struct {
	P    token.Pos
	Cond Expr
	Body *BlockStmt
}

// ForStmt is the bounded `for i in lo ..< hi` form. The bound hi is
// evaluated once, before the loop.
type ForStmt struct {
	P    token.Pos
	Var  string
	Lo   Expr
	Hi   Expr
	Body *BlockStmt
}

type ReturnStmt struct {
	P     token.Pos
	Value Expr // nil for bare return
}

// AssignStmt covers `=`, `+=`, `-=` and `*=`. Compound forms evaluate the
// l-value exactly once.
type AssignStmt struct {
	P   token.Pos
	Op  token.Kind
	LHS Expr
	RHS Expr
}

type CallStmt struct {
	P    token.Pos
	Call *CallExpr
}

// AsmStmt is verbatim inline assembly.
type AsmStmt struct {
	P     token.Pos
	Lines []string
}

func (s *BlockStmt) Pos() token.Pos  { return s.P }
func (s *IfStmt) Pos() token.Pos     { return s.P }
func (s *WhileStmt) Pos() token.Pos  { return s.P }
func (s *ForStmt) Pos() token.Pos    { return s.P }
func (s *ReturnStmt) Pos() token.Pos { return s.P }
func (s *AssignStmt) Pos() token.Pos { return s.P }
func (s *CallStmt) Pos() token.Pos   { return s.P }
func (s *AsmStmt) Pos() token.Pos    { return s.P }

func (*BlockStmt) stmtNode()  {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*ForStmt) stmtNode()    {}
func (*ReturnStmt) stmtNode() {}
func (*AssignStmt) stmtNode() {}
func (*CallStmt) stmtNode()   {}
func (*AsmStmt) stmtNode()    {}

// --- Expressions ---

type Ident struct {
	P    token.Pos
	Name string
}

type IntLit struct {
	P     token.Pos
	Value int64
}

type StringLit struct {
	P     token.Pos
	Value string
}

type BoolLit struct {
	P     token.Pos
	Value bool
}

type BinaryExpr struct {
	P    token.Pos
	Op   token.Kind
	L, R Expr
}

type UnaryExpr struct {
	P  token.Pos
	Op token.Kind // token.Minus or token.Not
	X  Expr
}

// CallExpr covers user procedure calls and the built-ins (memcpy, memset,
// switchBank, switchBankRestore, sizeof).
type CallExpr struct {
	P      token.Pos
	Target *Ident
	Args   []Expr
}

type MemberExpr struct {
	P    token.Pos
	X    Expr
	Name string
}

type IndexExpr struct {
	P     token.Pos
	X     Expr
	Index Expr
}

// DerefExpr is `x^`, reading through a raw pointer.
type DerefExpr struct {
	P token.Pos
	X Expr
}

// AddrExpr is `&x`, the address of an allocated l-value.
type AddrExpr struct {
	P token.Pos
	X Expr
}

// HwRegExpr is a `hw.<name>` hardware register reference.
type HwRegExpr struct {
	P    token.Pos
	Name string
}

func (e *Ident) Pos() token.Pos      { return e.P }
func (e *IntLit) Pos() token.Pos     { return e.P }
func (e *StringLit) Pos() token.Pos  { return e.P }
func (e *BoolLit) Pos() token.Pos    { return e.P }
func (e *BinaryExpr) Pos() token.Pos { return e.P }
func (e *UnaryExpr) Pos() token.Pos  { return e.P }
func (e *CallExpr) Pos() token.Pos   { return e.P }
func (e *MemberExpr) Pos() token.Pos { return e.P }
func (e *IndexExpr) Pos() token.Pos  { return e.P }
func (e *DerefExpr) Pos() token.Pos  { return e.P }
func (e *AddrExpr) Pos() token.Pos   { return e.P }
func (e *HwRegExpr) Pos() token.Pos  { return e.P }

func (*Ident) exprNode()      {}
func (*IntLit) exprNode()     {}
func (*StringLit) exprNode()  {}
func (*BoolLit) exprNode()    {}
func (*BinaryExpr) exprNode() {}
func (*UnaryExpr) exprNode()  {}
func (*CallExpr) exprNode()   {}
func (*MemberExpr) exprNode() {}
func (*IndexExpr) exprNode()  {}
func (*DerefExpr) exprNode()  {}
func (*AddrExpr) exprNode()   {}
func (*HwRegExpr) exprNode()  {}
