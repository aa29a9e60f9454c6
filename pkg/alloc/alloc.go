// Package alloc assigns a concrete address to every variable and
// constant. Allocation is deterministic: declarations are processed in
// source order, module scope first, then each procedure depth-first, and
// unplaced symbols take the first sufficient gap in address order, so the
// same input always produces the same layout.
//
// Live allocations are a per-region list with a scope watermark: block
// entry records the list length, block exit truncates back to it. A
// procedure's top-level scope is never truncated — the allocator runs
// before the call graph exists, so locals of different procedures must
// not overlay each other.
package alloc

import (
	"sort"
	"strconv"

	"github.com/Naitsabot/hippolang/pkg/ast"
	"github.com/Naitsabot/hippolang/pkg/diag"
	"github.com/Naitsabot/hippolang/pkg/hw"
	"github.com/Naitsabot/hippolang/pkg/resolver"
)

// Allocation binds a symbol to its byte span. Bank is meaningful only in
// the switchable ROM region, where each bank has its own timeline.
type Allocation struct {
	Sym    *resolver.Symbol
	Region hw.Region
	Bank   int
	Addr   uint16
	Size   int
}

func (a *Allocation) end() uint32 { return uint32(a.Addr) + uint32(a.Size) }

// Map is the allocator's output: every allocation in allocation order,
// plus a by-symbol index for the generator.
type Map struct {
	Allocs []*Allocation
	bySym  map[*resolver.Symbol]*Allocation
}

// Of returns the allocation of sym, or nil when sym never got one (a
// prior diagnostic covers that case).
func (m *Map) Of(sym *resolver.Symbol) *Allocation { return m.bySym[sym] }

type allocator struct {
	table *resolver.Table
	r     *diag.Reporter
	out   *Map

	// live allocations keyed by region (romx keys carry the bank index).
	live map[string][]*Allocation
}

type mark map[string]int

// Allocate walks the resolved program and places every symbol.
func Allocate(prog *ast.Program, table *resolver.Table, r *diag.Reporter) *Map {
	a := &allocator{
		table: table,
		r:     r,
		out:   &Map{bySym: make(map[*resolver.Symbol]*Allocation)},
		live:  make(map[string][]*Allocation),
	}

	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *ast.VarDecl:
			a.place(a.table.DeclSyms[d])
		case *ast.ConstDecl:
			a.place(a.table.DeclSyms[d])
		}
	}
	for _, p := range table.Procs {
		for _, param := range p.Params {
			a.place(param)
		}
		// The procedure scope stays live for the rest of the run, so no
		// snapshot/release around the body's top level.
		a.stmts(p.Decl.Body.Stmts)
	}
	return a.out
}

func (a *allocator) snapshot() mark {
	m := make(mark, len(a.live))
	for k, v := range a.live {
		m[k] = len(v)
	}
	return m
}

// release truncates every live list back to its watermark, freeing all
// allocations made since the snapshot in O(keys).
func (a *allocator) release(m mark) {
	for k, v := range a.live {
		if n, ok := m[k]; ok {
			a.live[k] = v[:n]
		} else {
			delete(a.live, k)
		}
	}
}

func (a *allocator) stmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		a.stmt(s)
	}
}

func (a *allocator) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.VarDecl:
		a.place(a.table.DeclSyms[s])
	case *ast.ConstDecl:
		a.place(a.table.DeclSyms[s])
	case *ast.BlockStmt:
		m := a.snapshot()
		a.stmts(s.Stmts)
		a.release(m)
	case *ast.IfStmt:
		m := a.snapshot()
		a.stmts(s.Then.Stmts)
		a.release(m)
		if s.Else != nil {
			a.stmt(s.Else)
		}
	case *ast.WhileStmt:
		m := a.snapshot()
		a.stmts(s.Body.Stmts)
		a.release(m)
	case *ast.ForStmt:
		m := a.snapshot()
		a.place(a.table.ForVars[s])
		a.place(a.table.ForBounds[s])
		a.stmts(s.Body.Stmts)
		a.release(m)
	}
}

func regionKey(region hw.Region, bank int) string {
	if region.Name == hw.ROMX.Name {
		return region.Name + ":" + strconv.Itoa(bank)
	}
	return region.Name
}

// place allocates one symbol: explicit placements are validated against
// the live set, everything else is first-fit in the symbol's home region.
func (a *allocator) place(sym *resolver.Symbol) {
	if sym == nil || sym.Type == nil {
		return
	}
	// Foldable scalar constants have no memory identity unless pinned.
	if sym.Kind == resolver.SymConst && sym.Foldable() && sym.At == nil && sym.Blob == nil {
		return
	}
	size := sym.Type.Size()

	if sym.At != nil {
		a.placeExplicit(sym, size)
		return
	}

	region := hw.WRAM
	bank := 0
	if sym.Kind == resolver.SymConst {
		if sym.Bank > 0 {
			region, bank = hw.ROMX, sym.Bank
		} else {
			region = hw.ROM0
		}
	}
	a.firstFit(sym, region, bank, size)
}

func (a *allocator) placeExplicit(sym *resolver.Symbol, size int) {
	var region hw.Region
	if sym.At.Region != "" {
		reg, ok := hw.Regions[resolver.Canon(sym.At.Region)]
		if !ok {
			return // resolver already reported the bad region name
		}
		region = reg
	} else {
		found := false
		for _, reg := range regionScanOrder() {
			if reg.Contains(sym.At.Addr, size) {
				region, found = reg, true
				break
			}
		}
		if !found {
			a.r.Errorf(diag.AddressOutOfRegion, sym.Pos,
				"address $%04X lies in no known memory region", sym.At.Addr)
			return
		}
	}
	if !region.Contains(sym.At.Addr, size) {
		a.r.Errorf(diag.AddressOutOfRegion, sym.Pos,
			"address $%04X (+%d) is outside region %s", sym.At.Addr, size, region.Name)
		return
	}
	bank := sym.Bank
	key := regionKey(region, bank)
	for _, other := range a.live[key] {
		if overlaps(sym.At.Addr, size, other) {
			a.r.ErrorWithHint(diag.OverlappingAllocation, sym.Pos,
				"'"+other.Sym.Name+"' occupies this span",
				"allocation of '%s' at $%04X overlaps '%s' at $%04X",
				sym.Name, sym.At.Addr, other.Sym.Name, other.Addr)
			return
		}
	}
	a.commit(sym, region, bank, sym.At.Addr, size)
}

func overlaps(addr uint16, size int, other *Allocation) bool {
	return uint32(addr) < other.end() && uint32(addr)+uint32(size) > uint32(other.Addr)
}

// firstFit scans the region in address order for the first live gap that
// holds size bytes.
func (a *allocator) firstFit(sym *resolver.Symbol, region hw.Region, bank, size int) {
	key := regionKey(region, bank)
	spans := make([]*Allocation, len(a.live[key]))
	copy(spans, a.live[key])
	sort.Slice(spans, func(i, j int) bool { return spans[i].Addr < spans[j].Addr })

	addr := uint32(region.Base)
	for _, sp := range spans {
		if addr+uint32(size) <= uint32(sp.Addr) {
			break
		}
		if sp.end() > addr {
			addr = sp.end()
		}
	}
	if addr+uint32(size) > region.End() {
		a.r.Errorf(diag.OutOfMemoryInRegion, sym.Pos,
			"out of memory in region %s: no %d-byte gap for '%s'", key, size, sym.Name)
		return
	}
	a.commit(sym, region, bank, uint16(addr), size)
}

func (a *allocator) commit(sym *resolver.Symbol, region hw.Region, bank int, addr uint16, size int) {
	alloc := &Allocation{Sym: sym, Region: region, Bank: bank, Addr: addr, Size: size}
	key := regionKey(region, bank)
	a.live[key] = append(a.live[key], alloc)
	a.out.Allocs = append(a.out.Allocs, alloc)
	a.out.bySym[sym] = alloc
}

func regionScanOrder() []hw.Region {
	return []hw.Region{hw.ROM0, hw.ROMX, hw.WRAM, hw.HRAM}
}
