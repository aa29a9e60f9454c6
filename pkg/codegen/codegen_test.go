package codegen

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Naitsabot/hippolang/pkg/alloc"
	"github.com/Naitsabot/hippolang/pkg/bank"
	"github.com/Naitsabot/hippolang/pkg/config"
	"github.com/Naitsabot/hippolang/pkg/diag"
	"github.com/Naitsabot/hippolang/pkg/lexer"
	"github.com/Naitsabot/hippolang/pkg/parser"
	"github.com/Naitsabot/hippolang/pkg/resolver"
	"github.com/Naitsabot/hippolang/pkg/sm83"
)

// compile runs the whole pipeline and renders every bank into one listing.
func compile(t *testing.T, src string) (string, *diag.Reporter) {
	t.Helper()
	prog, r := generate(t, src)
	var buf bytes.Buffer
	for _, b := range prog.Banks() {
		if err := prog.WriteBank(&buf, b); err != nil {
			t.Fatalf("WriteBank: %v", err)
		}
	}
	return buf.String(), r
}

func generate(t *testing.T, src string) (*sm83.Program, *diag.Reporter) {
	t.Helper()
	r := diag.NewReporter()
	runes := []rune(src)
	file := r.AddFile("test.hip", runes)
	toks := lexer.New(runes, file, r).Tokenize()
	prog := parser.New(toks, r).Parse()
	if r.HasErrors() {
		t.Fatalf("front end failed: %v", r.Diagnostics())
	}
	cfg := config.New()
	table := resolver.Resolve(prog, cfg, r)
	if r.HasErrors() {
		t.Fatalf("resolve failed: %v", r.Diagnostics())
	}
	allocs := alloc.Allocate(prog, table, r)
	if r.HasErrors() {
		t.Fatalf("allocate failed: %v", r.Diagnostics())
	}
	banks := bank.Analyze(table, r)
	if r.HasErrors() {
		t.Fatalf("bank analysis failed: %v", r.Diagnostics())
	}
	out := Generate(prog, table, allocs, banks, cfg, r)
	if r.HasErrors() {
		t.Fatalf("generate failed: %v", r.Diagnostics())
	}
	return out, r
}

func assertContains(t *testing.T, listing, want string) {
	t.Helper()
	if !strings.Contains(listing, want) {
		t.Errorf("listing missing %q\n%s", want, listing)
	}
}

func assertOrder(t *testing.T, listing string, first, second string) {
	t.Helper()
	i := strings.Index(listing, first)
	j := strings.Index(listing, second)
	if i < 0 || j < 0 {
		t.Fatalf("listing missing %q or %q\n%s", first, second, listing)
	}
	if i > j {
		t.Errorf("%q should precede %q\n%s", first, second, listing)
	}
}

const banked = "{.mbc: mbc5.}\n{.romBanks: 8.}\n"

func TestCrossBankCallSwitchAndRestore(t *testing.T) {
	listing, _ := compile(t, banked+`
proc far() {.bank: 3.} {
    return
}

proc main() {.entry.} {
    far()
}
`)
	// Save current bank, select 3, call, restore.
	assertOrder(t, listing, "ldh a, [$FFFE]", "call far")
	assertOrder(t, listing, "push af", "call far")
	assertOrder(t, listing, "ld a, $03", "call far")
	assertOrder(t, listing, "call far", "pop af")
	assertContains(t, listing, "ld [$2100], a")

	// The callee lands in a switchable bank section.
	assertContains(t, listing, "BANK[3]")
}

func TestCrossBankCallPreservesByteResult(t *testing.T) {
	listing, _ := compile(t, banked+`
var x: uint8 @ wram:0xC000

proc far(): uint8 {.bank: 3.} {
    return 7
}

proc main() {.entry.} {
    x = far()
}
`)
	// The restore pops the saved bank through A, so the return value is
	// parked in B for the duration and comes back before the store.
	assertOrder(t, listing, "call far", "ld b, a")
	assertOrder(t, listing, "ld b, a", "pop af")
	assertOrder(t, listing, "pop af", "ld a, b")
	assertOrder(t, listing, "ld a, b", "ld [$C000], a")
}

func TestBinaryOperandSurvivesCallInRightSide(t *testing.T) {
	listing, _ := compile(t, `
var u: uint8 @ wram:0xC001
var v: uint8
var x: uint8

proc f(): uint8 {
    return v * u
}

proc main() {.entry.} {
    x = u + f()
}
`)
	head := strings.Index(listing, "main:")
	if head < 0 {
		t.Fatalf("main not emitted\n%s", listing)
	}
	body := listing[head:]
	// The left operand rides the CPU stack across the call, where the
	// callee's own expressions cannot touch it.
	assertOrder(t, body, "ld a, [$C001]", "push af")
	assertOrder(t, body, "push af", "call f")
	assertOrder(t, body, "call f", "pop af")
	assertOrder(t, body, "pop af", "add b")
	if strings.Contains(listing, "$FFF0") {
		t.Errorf("intermediate written to a fixed scratch byte\n%s", listing)
	}
}

func TestSameBankCallHasNoSwitch(t *testing.T) {
	listing, _ := compile(t, `
proc near() {
    return
}

proc main() {.entry.} {
    near()
}
`)
	assertContains(t, listing, "call near")
	if strings.Contains(listing, "push af") {
		t.Errorf("same-bank call emitted bank bookkeeping\n%s", listing)
	}
}

func TestStartupSequence(t *testing.T) {
	listing, _ := compile(t, `
proc main() {.entry.} {
    return
}
`)
	assertContains(t, listing, `SECTION "entry", ROM0[$0100]`)
	assertContains(t, listing, "jp _start")
	assertContains(t, listing, "_start:")
	assertContains(t, listing, "di")
	assertContains(t, listing, "call main")
}

func TestInterruptVectorStubAndFrame(t *testing.T) {
	listing, _ := compile(t, `
proc onVblank() {.interrupt: vblank.} {
    hw.bgp = 0xE4
}

proc main() {.entry.} {
    return
}
`)
	assertContains(t, listing, `SECTION "vec_vblank", ROM0[$0040]`)
	assertContains(t, listing, "jp onvblank")
	// Full register frame around the body, reti to return.
	assertOrder(t, listing, "onvblank:", "push af")
	assertOrder(t, listing, "push hl", "pop hl")
	assertContains(t, listing, "reti")
}

func TestForLoopBoundEvaluatedOnce(t *testing.T) {
	listing, _ := compile(t, `
var limit: uint8 @ wram:0xC000
var n: uint8

proc main() {.entry.} {
    for i in 0 ..< limit {
        limit += 1
        n += 1
    }
}
`)
	if !strings.Contains(listing, "cp b") {
		t.Fatalf("no loop comparison emitted\n%s", listing)
	}
	// The bound is copied to its hidden cell before the first iteration;
	// every later comparison reads that cell, so limit itself is read
	// exactly once even though the body mutates it.
	if n := strings.Count(listing, "ld a, [$C000]"); n != 1 {
		t.Errorf("bound read %d times, want 1\n%s", n, listing)
	}
}

func TestCompoundAssignIndexEvaluatedOnce(t *testing.T) {
	listing, _ := compile(t, `
var things: array[8, uint8]

proc pick(): uint8 {
    return 2
}

proc main() {.entry.} {
    things[pick()] += 1
}
`)
	if n := strings.Count(listing, "call pick"); n != 1 {
		t.Errorf("index expression called %d times, want 1\n%s", n, listing)
	}
}

func TestStaticAssignment(t *testing.T) {
	listing, _ := compile(t, `
var health: uint8 @ wram:0xC000

proc main() {.entry.} {
    health = 5
}
`)
	assertOrder(t, listing, "ld a, $05", "ld [$C000], a")
}

func TestCompoundAssignLoadModifyStore(t *testing.T) {
	listing, _ := compile(t, `
var health: uint8 @ wram:0xC000

proc main() {.entry.} {
    health += 3
}
`)
	assertContains(t, listing, "ld a, [hl]")
	assertContains(t, listing, "add b")
	assertContains(t, listing, "ld [hl], a")
}

func TestHramAccessUsesLdh(t *testing.T) {
	listing, _ := compile(t, `
var fast: uint8 @ hram:0xFF80

proc main() {.entry.} {
    fast = 1
    hw.bgp = 0xE4
}
`)
	assertContains(t, listing, "ldh [$FF80], a")
	assertContains(t, listing, "ldh [$FF47], a")
}

func TestSizeofFoldsToImmediate(t *testing.T) {
	listing, _ := compile(t, `
type Vec = object { x: uint8, y: uint8 }

var n: uint16 @ wram:0xC000

proc main() {.entry.} {
    n = sizeof(Vec)
}
`)
	assertContains(t, listing, "ld hl, $02")
	if strings.Contains(listing, "call sizeof") {
		t.Errorf("sizeof emitted runtime code\n%s", listing)
	}
}

func TestConstantIndexFoldsIntoAddress(t *testing.T) {
	listing, _ := compile(t, `
var row: array[8, uint8] @ wram:0xC000

proc main() {.entry.} {
    row[3] = 7
}
`)
	assertContains(t, listing, "ld [$C003], a")
}

func TestDynamicIndexComputesAddress(t *testing.T) {
	listing, _ := compile(t, `
var row: array[8, uint8] @ wram:0xC000
var idx: uint8

proc main() {.entry.} {
    row[idx] = 7
}
`)
	assertContains(t, listing, "add hl, de")
}

func TestWordArithmetic(t *testing.T) {
	listing, _ := compile(t, `
var a: uint16 @ wram:0xC000
var b: uint16 @ wram:0xC002

proc main() {.entry.} {
    a = a + b
}
`)
	assertContains(t, listing, "add hl, de")
	// Word stores write both halves.
	assertContains(t, listing, "ld [$C000], a")
	assertContains(t, listing, "ld [$C001], a")
}

func TestMultiplyUsesRuntimeHelper(t *testing.T) {
	listing, _ := compile(t, `
var x: uint8 @ wram:0xC000

proc main() {.entry.} {
    x = x * x
}
`)
	assertContains(t, listing, "call __mul8")
	assertContains(t, listing, "__mul8:")
	assertContains(t, listing, `SECTION "runtime", ROM0`)
}

func TestRuntimeHelpersOnlyWhenUsed(t *testing.T) {
	listing, _ := compile(t, `
proc main() {.entry.} {
    return
}
`)
	if strings.Contains(listing, "__mul8:") || strings.Contains(listing, "__div8:") {
		t.Errorf("unused runtime helper emitted\n%s", listing)
	}
}

func TestInlineProcSplicedSameBank(t *testing.T) {
	listing, _ := compile(t, `
var x: uint8 @ wram:0xC000

proc bump() {.inline.} {
    x += 1
}

proc main() {.entry.} {
    bump()
}
`)
	assertContains(t, listing, "inline bump")
	// The call site splices the body instead of calling.
	head := strings.Index(listing, "main:")
	tail := strings.Index(listing[head:], "ret")
	if strings.Contains(listing[head:head+tail], "call bump") {
		t.Errorf("inline proc was called\n%s", listing)
	}
}

func TestInlineIgnoredCrossBank(t *testing.T) {
	prog, r := generate(t, banked+`
var x: uint8 @ wram:0xC000

proc bump() {.bank: 2, inline.} {
    x += 1
}

proc main() {.entry.} {
    bump()
}
`)
	_ = prog
	for _, w := range r.Warnings() {
		if w.Kind == diag.InlineIgnored {
			return
		}
	}
	t.Fatalf("expected inline-ignored warning, got %v", r.Warnings())
}

func TestMemcpyTemplate(t *testing.T) {
	listing, _ := compile(t, `
var src: array[8, uint8] @ wram:0xC000
var dst: array[8, uint8] @ wram:0xC010

proc main() {.entry.} {
    memcpy(&dst, &src, 8)
}
`)
	assertContains(t, listing, "ld a, [hl+]")
	assertContains(t, listing, "ld [de], a")
	assertContains(t, listing, "dec bc")
}

func TestSwitchBankBuiltin(t *testing.T) {
	listing, _ := compile(t, banked+`
proc main() {.entry.} {
    switchBank(4)
    switchBankRestore()
}
`)
	assertContains(t, listing, "ld a, $04")
	assertContains(t, listing, "ld [$2100], a")
	assertContains(t, listing, "pop af")
}

func TestConstDataPinnedInROM(t *testing.T) {
	listing, _ := compile(t, `
const msg = "HI" {.lut.}

proc main() {.entry.} {
    return
}
`)
	assertContains(t, listing, "db $48, $49")
}

func TestStringLiteralPooling(t *testing.T) {
	prog, _ := generate(t, `
var buf: array[2, uint8] @ wram:0xC000

proc main() {.entry.} {
    buf = "AB"
    buf = "AB"
}
`)
	var buf bytes.Buffer
	for _, b := range prog.Banks() {
		prog.WriteBank(&buf, b)
	}
	listing := buf.String()
	if strings.Count(listing, "db $41, $42") != 1 {
		t.Errorf("identical literals not pooled once\n%s", listing)
	}
}

func TestAsmPassthrough(t *testing.T) {
	listing, _ := compile(t, `
proc main() {.entry.} {
    asm { "nop" "halt" }
}
`)
	assertContains(t, listing, "nop")
	assertContains(t, listing, "halt")
}

func TestPlacementsListing(t *testing.T) {
	r := diag.NewReporter()
	src := []rune(`
var health: uint8 @ wram:0xC000
var score: uint16

proc main() {.entry.} {
    health = 1
    score = 2
}
`)
	file := r.AddFile("test.hip", src)
	toks := lexer.New(src, file, r).Tokenize()
	prog := parser.New(toks, r).Parse()
	table := resolver.Resolve(prog, config.New(), r)
	allocs := alloc.Allocate(prog, table, r)
	if r.HasErrors() {
		t.Fatalf("pipeline failed: %v", r.Diagnostics())
	}

	var buf bytes.Buffer
	if err := WritePlacements(&buf, allocs); err != nil {
		t.Fatalf("WritePlacements: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "$C000") || !strings.Contains(out, "health") {
		t.Errorf("placement listing missing health row:\n%s", out)
	}
	if !strings.Contains(out, "wram") {
		t.Errorf("placement listing missing region name:\n%s", out)
	}
}

func TestIfElifElseConverges(t *testing.T) {
	listing, _ := compile(t, `
var x: uint8 @ wram:0xC000

proc main() {.entry.} {
    if x == 0 {
        x = 1
    } elif x == 1 {
        x = 2
    } else {
        x = 3
    }
}
`)
	assertContains(t, listing, "jp z,")
	assertContains(t, listing, "jp _L")
}

func TestWhileLoopBranchesBack(t *testing.T) {
	listing, _ := compile(t, `
var x: uint8 @ wram:0xC000

proc main() {.entry.} {
    while x > 0 {
        x -= 1
    }
}
`)
	head := strings.Index(listing, "main:")
	body := listing[head:]
	if !strings.Contains(body, "jp _L") {
		t.Errorf("while loop has no back branch\n%s", body)
	}
}
