package alloc

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/Naitsabot/hippolang/pkg/config"
	"github.com/Naitsabot/hippolang/pkg/diag"
	"github.com/Naitsabot/hippolang/pkg/lexer"
	"github.com/Naitsabot/hippolang/pkg/parser"
	"github.com/Naitsabot/hippolang/pkg/resolver"
)

func allocate(t *testing.T, src string) (*Map, *diag.Reporter) {
	t.Helper()
	r := diag.NewReporter()
	runes := []rune(src)
	file := r.AddFile("test.hip", runes)
	toks := lexer.New(runes, file, r).Tokenize()
	prog := parser.New(toks, r).Parse()
	if r.HasErrors() {
		t.Fatalf("front end failed: %v", r.Diagnostics())
	}
	table := resolver.Resolve(prog, config.New(), r)
	if r.HasErrors() {
		t.Fatalf("resolve failed: %v", r.Diagnostics())
	}
	return Allocate(prog, table, r), r
}

func allocOf(t *testing.T, m *Map, name string) *Allocation {
	t.Helper()
	canon := resolver.Canon(name)
	for _, a := range m.Allocs {
		if a.Sym.Canon == canon {
			return a
		}
	}
	t.Fatalf("no allocation for %q", name)
	return nil
}

func TestExplicitPlacement(t *testing.T) {
	m, r := allocate(t, `
var health: uint8 @ wram:0xC000
var score: uint16 @ 0xC010
`)
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics())
	}
	if a := allocOf(t, m, "health"); a.Addr != 0xC000 {
		t.Errorf("health at $%04X, want $C000", a.Addr)
	}
	if a := allocOf(t, m, "score"); a.Addr != 0xC010 || a.Size != 2 {
		t.Errorf("score at $%04X size %d, want $C010 size 2", a.Addr, a.Size)
	}
}

func TestOverlapNamesBothSymbols(t *testing.T) {
	_, r := allocate(t, `
var a: uint8 @ wram:0xC000
var b: uint8 @ wram:0xC000
`)
	var found *diag.Diagnostic
	for i, d := range r.Diagnostics() {
		if d.Kind == diag.OverlappingAllocation {
			found = &r.Diagnostics()[i]
		}
	}
	if found == nil {
		t.Fatalf("expected overlapping-allocation, got %v", r.Diagnostics())
	}
	if !strings.Contains(found.Msg, "'b'") || !strings.Contains(found.Msg, "'a'") {
		t.Errorf("diagnostic should name both symbols, got %q", found.Msg)
	}
}

func TestPartialOverlapRejected(t *testing.T) {
	_, r := allocate(t, `
var wide: uint16 @ wram:0xC000
var clash: uint8 @ wram:0xC001
`)
	for _, d := range r.Diagnostics() {
		if d.Kind == diag.OverlappingAllocation {
			return
		}
	}
	t.Fatalf("expected overlapping-allocation, got %v", r.Diagnostics())
}

func TestAddressOutOfRegion(t *testing.T) {
	_, r := allocate(t, `
var x: uint8 @ wram:0x8000
`)
	for _, d := range r.Diagnostics() {
		if d.Kind == diag.AddressOutOfRegion {
			return
		}
	}
	t.Fatalf("expected address-out-of-region, got %v", r.Diagnostics())
}

func TestFirstFitIsDeterministic(t *testing.T) {
	src := `
var a: uint8
var b: uint16
var c: uint8
`
	m1, r1 := allocate(t, src)
	m2, r2 := allocate(t, src)
	if r1.HasErrors() || r2.HasErrors() {
		t.Fatal("unexpected errors")
	}
	for i := range m1.Allocs {
		if m1.Allocs[i].Addr != m2.Allocs[i].Addr {
			t.Errorf("run 2 placed %s at $%04X, run 1 at $%04X",
				m1.Allocs[i].Sym.Name, m2.Allocs[i].Addr, m1.Allocs[i].Addr)
		}
	}
	// First fit packs the default region from its base.
	if a := allocOf(t, m1, "a"); a.Addr != 0xC000 {
		t.Errorf("a at $%04X, want $C000", a.Addr)
	}
	if b := allocOf(t, m1, "b"); b.Addr != 0xC001 {
		t.Errorf("b at $%04X, want $C001", b.Addr)
	}
}

func TestFirstFitSkipsExplicitAllocations(t *testing.T) {
	m, r := allocate(t, `
var pinned: uint8 @ wram:0xC000
var next: uint8
`)
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics())
	}
	if a := allocOf(t, m, "next"); a.Addr != 0xC001 {
		t.Errorf("next at $%04X, want $C001", a.Addr)
	}
}

func TestSiblingBlockReusesAddresses(t *testing.T) {
	m, r := allocate(t, `
proc run(flag: bool) {
    if flag {
        var inner: uint8
        inner = 1
    }
    var after: uint8
    after = 2
}
`)
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics())
	}
	inner := allocOf(t, m, "inner")
	after := allocOf(t, m, "after")
	if inner.Addr != after.Addr {
		t.Errorf("sibling block address not reused: inner $%04X, after $%04X",
			inner.Addr, after.Addr)
	}
}

func TestProcLocalsDoNotAlias(t *testing.T) {
	// Locals of different procedures keep distinct cells: any procedure
	// may be live when an interrupt handler runs.
	m, r := allocate(t, `
proc one() {
    var x: uint8
    x = 1
}

proc two() {
    var y: uint8
    y = 2
}
`)
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics())
	}
	x := allocOf(t, m, "x")
	y := allocOf(t, m, "y")
	if x.Addr == y.Addr {
		t.Errorf("locals of distinct procedures share $%04X", x.Addr)
	}
}

func TestAggregatesAreContiguous(t *testing.T) {
	m, r := allocate(t, `
type Vec = object { x: uint8, y: uint8 }

var pos: Vec
var row: array[16, uint16]
`)
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics())
	}
	if a := allocOf(t, m, "pos"); a.Size != 2 {
		t.Errorf("pos size %d, want 2", a.Size)
	}
	if a := allocOf(t, m, "row"); a.Size != 32 {
		t.Errorf("row size %d, want 32", a.Size)
	}
}

func TestConstsGoToROM(t *testing.T) {
	m, r := allocate(t, `
const msg = "HELLO" {.lut.}
`)
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics())
	}
	a := allocOf(t, m, "msg")
	if a.Region.Name != "rom0" {
		t.Errorf("const placed in %s, want rom0", a.Region.Name)
	}
	if a.Size != 5 {
		t.Errorf("const size %d, want 5", a.Size)
	}
}

func TestFoldableConstGetsNoMemory(t *testing.T) {
	m, r := allocate(t, `
const speed: uint8 = 3
`)
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics())
	}
	for _, a := range m.Allocs {
		if a.Sym.Canon == "speed" {
			t.Errorf("foldable scalar const got memory at $%04X", a.Addr)
		}
	}
}

func TestOutOfMemoryInRegion(t *testing.T) {
	// wram holds 0x2000 bytes; the second declaration cannot fit.
	_, r := allocate(t, `
var big: array[8192, uint8]
var one: uint8
`)
	for _, d := range r.Diagnostics() {
		if d.Kind == diag.OutOfMemoryInRegion {
			return
		}
	}
	t.Fatalf("expected out-of-memory-in-region, got %v", r.Diagnostics())
}

func TestRandomPlacementsNeverOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		// Explicit placements live above $D000 so they can never collide
		// with the first-fit symbols packing upward from the region base.
		var sb strings.Builder
		addr := 0xD000
		for i := 0; i < 20; i++ {
			size := 1 + rng.Intn(4)
			if rng.Intn(2) == 0 {
				fmt.Fprintf(&sb, "var v%d_%d: array[%d, uint8] @ wram:0x%04X\n", trial, i, size, addr)
				addr += size + rng.Intn(3)
			} else {
				fmt.Fprintf(&sb, "var w%d_%d: array[%d, uint8]\n", trial, i, size)
			}
		}
		m, r := allocate(t, sb.String())
		if r.HasErrors() {
			// Explicit placements were spaced apart; only first-fit
			// could fail, and wram is far from full.
			t.Fatalf("trial %d: unexpected errors: %v", trial, r.Diagnostics())
		}
		for i, a := range m.Allocs {
			for _, b := range m.Allocs[i+1:] {
				if a.Region.Name != b.Region.Name {
					continue
				}
				if uint32(a.Addr) < b.end() && uint32(b.Addr) < a.end() {
					t.Fatalf("trial %d: %s [$%04X,+%d) overlaps %s [$%04X,+%d)",
						trial, a.Sym.Name, a.Addr, a.Size, b.Sym.Name, b.Addr, b.Size)
				}
			}
		}
	}
}
