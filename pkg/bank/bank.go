// Package bank builds the procedure call graph and validates everything
// that depends on bank placement: recursion, interrupt contracts, entry
// point multiplicity, and which call sites need automatic bank switching.
// Procedures are integer handles into Table.Procs; the graph is a plain
// adjacency list over those handles.
package bank

import (
	"strings"

	"github.com/Naitsabot/hippolang/pkg/ast"
	"github.com/Naitsabot/hippolang/pkg/diag"
	"github.com/Naitsabot/hippolang/pkg/hw"
	"github.com/Naitsabot/hippolang/pkg/resolver"
	"github.com/Naitsabot/hippolang/pkg/token"
)

// Edge is one static call site.
type Edge struct {
	Caller    int
	Callee    int
	CrossBank bool
	Pos       token.Pos
}

// Analysis is the bank stage's output. Callees and CrossBank are keyed by
// call site so the generator can decide per call whether to synthesize a
// switch/restore pair.
type Analysis struct {
	Edges     []Edge
	Adj       [][]int // caller handle -> callee handles, in source order
	Entry     *resolver.ProcInfo
	Handlers  [hw.VecCount]*resolver.ProcInfo
	Callees   map[*ast.CallExpr]*resolver.ProcInfo
	CrossBank map[*ast.CallExpr]bool
}

type analyzer struct {
	table *resolver.Table
	r     *diag.Reporter
	out   *Analysis
	cur   *resolver.ProcInfo
}

// Analyze builds and validates the call graph.
func Analyze(table *resolver.Table, r *diag.Reporter) *Analysis {
	a := &analyzer{
		table: table,
		r:     r,
		out: &Analysis{
			Adj:       make([][]int, len(table.Procs)),
			Callees:   make(map[*ast.CallExpr]*resolver.ProcInfo),
			CrossBank: make(map[*ast.CallExpr]bool),
		},
	}

	for _, p := range table.Procs {
		a.cur = p
		a.walkStmts(p.Decl.Body.Stmts)
	}
	a.checkInterrupts()
	a.checkEntry()
	a.checkCycles()
	return a.out
}

// --- call site collection ---

func (a *analyzer) walkStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		a.walkStmt(s)
	}
}

func (a *analyzer) walkStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.VarDecl:
		a.walkExpr(s.Value)
	case *ast.ConstDecl:
		a.walkExpr(s.Value)
	case *ast.BlockStmt:
		a.walkStmts(s.Stmts)
	case *ast.IfStmt:
		a.walkExpr(s.Cond)
		a.walkStmts(s.Then.Stmts)
		if s.Else != nil {
			a.walkStmt(s.Else)
		}
	case *ast.WhileStmt:
		a.walkExpr(s.Cond)
		a.walkStmts(s.Body.Stmts)
	case *ast.ForStmt:
		a.walkExpr(s.Lo)
		a.walkExpr(s.Hi)
		a.walkStmts(s.Body.Stmts)
	case *ast.ReturnStmt:
		a.walkExpr(s.Value)
	case *ast.AssignStmt:
		a.walkExpr(s.LHS)
		a.walkExpr(s.RHS)
	case *ast.CallStmt:
		a.walkExpr(s.Call)
	}
}

func (a *analyzer) walkExpr(e ast.Expr) {
	switch e := e.(type) {
	case nil:
	case *ast.BinaryExpr:
		a.walkExpr(e.L)
		a.walkExpr(e.R)
	case *ast.UnaryExpr:
		a.walkExpr(e.X)
	case *ast.MemberExpr:
		a.walkExpr(e.X)
	case *ast.IndexExpr:
		a.walkExpr(e.X)
		a.walkExpr(e.Index)
	case *ast.DerefExpr:
		a.walkExpr(e.X)
	case *ast.AddrExpr:
		a.walkExpr(e.X)
	case *ast.CallExpr:
		a.callSite(e)
		for _, arg := range e.Args {
			a.walkExpr(arg)
		}
	}
}

// callSite records one edge. Built-ins have no callee procedure and no
// edge; unresolved targets were already reported by the resolver.
func (a *analyzer) callSite(call *ast.CallExpr) {
	sym := a.table.Uses[call.Target]
	if sym == nil || sym.Kind != resolver.SymProc {
		return
	}
	callee := sym.Proc
	cross := a.cur.Bank != callee.Bank
	a.out.Callees[call] = callee
	a.out.CrossBank[call] = cross && !callee.NoBankSwitch
	a.out.Edges = append(a.out.Edges, Edge{
		Caller: a.cur.Index, Callee: callee.Index, CrossBank: cross, Pos: call.P,
	})
	a.out.Adj[a.cur.Index] = append(a.out.Adj[a.cur.Index], callee.Index)

	if callee.NoBankSwitch && cross {
		a.r.Errorf(diag.NoBankSwitchViolation, call.P,
			"noBankSwitch procedure '%s' (bank %d) called from '%s' (bank %d)",
			callee.Sym.Name, callee.Bank, a.cur.Sym.Name, a.cur.Bank)
	}
	if a.cur.HasInterrupt && cross {
		a.r.Errorf(diag.InterruptContractViolation, call.P,
			"interrupt handler '%s' cannot call cross-bank procedure '%s'",
			a.cur.Sym.Name, callee.Sym.Name)
	}
}

// --- whole-graph checks ---

func (a *analyzer) checkInterrupts() {
	for _, p := range a.table.Procs {
		if !p.HasInterrupt {
			continue
		}
		if prev := a.out.Handlers[p.Interrupt]; prev != nil {
			a.r.ErrorWithHint(diag.DuplicateInterruptVector, p.Decl.P,
				"'"+prev.Sym.Name+"' is already bound to this vector",
				"duplicate interrupt handler for vector %s", p.Interrupt)
			continue
		}
		a.out.Handlers[p.Interrupt] = p
	}
}

func (a *analyzer) checkEntry() {
	for _, p := range a.table.Procs {
		if !p.Entry {
			continue
		}
		if a.out.Entry != nil {
			a.r.ErrorWithHint(diag.MissingOrDuplicateEntryPoint, p.Decl.P,
				"'"+a.out.Entry.Sym.Name+"' is already the entry point",
				"duplicate {.entry.} procedure '%s'", p.Sym.Name)
			continue
		}
		a.out.Entry = p
	}
	if a.out.Entry == nil {
		a.r.Errorf(diag.MissingOrDuplicateEntryPoint, token.Pos{},
			"no procedure carries the {.entry.} pragma")
	}
}

// checkCycles runs a three-color DFS over the adjacency list. A back edge
// to a gray node is a cycle, reported once with the full path.
func (a *analyzer) checkCycles() {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(a.table.Procs))
	var stack []int

	var visit func(n int)
	visit = func(n int) {
		color[n] = gray
		stack = append(stack, n)
		for _, m := range a.out.Adj[n] {
			switch color[m] {
			case white:
				visit(m)
			case gray:
				a.reportCycle(stack, m)
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
	}
	for i := range a.table.Procs {
		if color[i] == white {
			visit(i)
		}
	}
}

func (a *analyzer) reportCycle(stack []int, start int) {
	i := 0
	for ; i < len(stack); i++ {
		if stack[i] == start {
			break
		}
	}
	var names []string
	for _, h := range stack[i:] {
		names = append(names, a.table.Procs[h].Sym.Name)
	}
	first := a.table.Procs[start]
	names = append(names, first.Sym.Name)
	a.r.Errorf(diag.RecursiveCall, first.Decl.P,
		"recursive call not permitted: %s", strings.Join(names, " -> "))
}
