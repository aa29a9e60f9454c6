package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Naitsabot/hippolang/pkg/token"
)

func TestReporterAccumulates(t *testing.T) {
	r := NewReporter()
	if r.HasErrors() {
		t.Fatal("fresh reporter has errors")
	}
	r.Errorf(SyntaxError, token.Pos{Line: 1, Col: 1}, "first")
	r.Errorf(TypeMismatch, token.Pos{Line: 2, Col: 1}, "second")
	r.Warnf(LargeCopy, token.Pos{Line: 3, Col: 1}, "just a warning")
	if r.Count() != 2 {
		t.Errorf("Count = %d, want 2", r.Count())
	}
	if len(r.Warnings()) != 1 {
		t.Errorf("Warnings = %d, want 1", len(r.Warnings()))
	}
	if !r.HasErrors() {
		t.Error("errors not registered")
	}
}

func TestWarningsAloneAreNotErrors(t *testing.T) {
	r := NewReporter()
	r.Warnf(UnusedSymbol, token.Pos{Line: 1, Col: 1}, "unused")
	if r.HasErrors() {
		t.Error("a warning made HasErrors true")
	}
}

func TestPrintFormat(t *testing.T) {
	r := NewReporter()
	r.AddFile("game.hip", []rune("var x: thing\nvar y: uint8\n"))
	r.Errorf(UnresolvedType, token.Pos{File: 0, Line: 1, Col: 8}, "unresolved type 'thing'")

	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()

	if !strings.Contains(out, "game.hip:1:8: error: unresolved type 'thing' [unresolved-type]") {
		t.Errorf("header line wrong:\n%s", out)
	}
	if !strings.Contains(out, "var x: thing") {
		t.Errorf("source line missing:\n%s", out)
	}
	// Caret under column 8.
	if !strings.Contains(out, "  "+strings.Repeat(" ", 7)+"^") {
		t.Errorf("caret misplaced:\n%s", out)
	}
	if !strings.Contains(out, "1 error(s)") {
		t.Errorf("summary missing:\n%s", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("color emitted for a non-terminal writer:\n%s", out)
	}
}

func TestPrintUnderlineSpansToken(t *testing.T) {
	r := NewReporter()
	r.AddFile("game.hip", []rune("var x: thing\n"))
	r.Errorf(UnresolvedType, token.Pos{File: 0, Line: 1, Col: 8, Len: 5}, "unresolved type 'thing'")

	var buf bytes.Buffer
	r.Print(&buf)
	if !strings.Contains(buf.String(), "  "+strings.Repeat(" ", 7)+"^~~~~\n") {
		t.Errorf("underline does not span the token:\n%s", buf.String())
	}
}

func TestPrintUnderlineClampsToLineEnd(t *testing.T) {
	r := NewReporter()
	r.AddFile("game.hip", []rune("var x: thing\n"))
	r.Errorf(UnresolvedType, token.Pos{File: 0, Line: 1, Col: 8, Len: 40}, "unresolved type 'thing'")

	var buf bytes.Buffer
	r.Print(&buf)
	if !strings.Contains(buf.String(), "^~~~~\n") {
		t.Errorf("underline not clamped to the line end:\n%s", buf.String())
	}
}

func TestPrintHint(t *testing.T) {
	r := NewReporter()
	r.AddFile("game.hip", []rune("var a: uint8\nvar A: uint8\n"))
	r.ErrorWithHint(Redeclaration, token.Pos{File: 0, Line: 2, Col: 5},
		"previously declared as 'a' at line 1", "redeclaration of 'A'")

	var buf bytes.Buffer
	r.Print(&buf)
	if !strings.Contains(buf.String(), "hint: previously declared as 'a' at line 1") {
		t.Errorf("hint missing:\n%s", buf.String())
	}
}

func TestPrintWithoutPosition(t *testing.T) {
	r := NewReporter()
	r.Errorf(MissingOrDuplicateEntryPoint, token.Pos{}, "no procedure marked as entry point")

	var buf bytes.Buffer
	r.Print(&buf)
	if !strings.Contains(buf.String(), "error: no procedure marked as entry point") {
		t.Errorf("positionless diagnostic wrong:\n%s", buf.String())
	}
}

func TestKindStrings(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{SyntaxError, "syntax-error"},
		{OverlappingAllocation, "overlapping-allocation"},
		{RecursiveCall, "recursive-call"},
		{NoBankSwitchViolation, "no-bank-switch-violation"},
		{InlineIgnored, "inline-ignored"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}
