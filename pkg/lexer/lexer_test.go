package lexer

import (
	"testing"

	"github.com/Naitsabot/hippolang/pkg/diag"
	"github.com/Naitsabot/hippolang/pkg/token"
)

func lex(t *testing.T, src string) ([]token.Token, *diag.Reporter) {
	t.Helper()
	r := diag.NewReporter()
	runes := []rune(src)
	file := r.AddFile("test.hip", runes)
	return New(runes, file, r).Tokenize(), r
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, tk := range toks {
		out[i] = tk.Kind
	}
	return out
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		src  string
		want int64
	}{
		{"0", 0},
		{"255", 255},
		{"0xFF", 255},
		{"0xc000", 0xC000},
		{"0b1010", 10},
		{"1_000", 1000},
		{"0xFF_FF", 0xFFFF},
	}
	for _, tt := range tests {
		toks, r := lex(t, tt.src)
		if r.HasErrors() {
			t.Errorf("%q: unexpected errors: %v", tt.src, r.Diagnostics())
			continue
		}
		if toks[0].Kind != token.Number || toks[0].Num != tt.want {
			t.Errorf("%q: got kind %v num %d, want Number %d", tt.src, toks[0].Kind, toks[0].Num, tt.want)
		}
	}
}

func TestKeywordsAndIdents(t *testing.T) {
	toks, r := lex(t, "proc player_health var if elif hw")
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics())
	}
	want := []token.Kind{token.Proc, token.Ident, token.Var, token.If, token.Elif, token.Hw, token.EOF}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if toks[1].Value != "player_health" {
		t.Errorf("identifier spelling not preserved: %q", toks[1].Value)
	}
}

func TestPragmaBrackets(t *testing.T) {
	toks, r := lex(t, "{.bank: 3.}")
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics())
	}
	want := []token.Kind{token.PragmaOpen, token.Ident, token.Colon, token.Number, token.PragmaClose, token.EOF}
	got := kinds(toks)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRangeOperator(t *testing.T) {
	toks, r := lex(t, "0 ..< 10")
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics())
	}
	if toks[1].Kind != token.DotDotLess {
		t.Errorf("got %v, want DotDotLess", toks[1].Kind)
	}
}

func TestComments(t *testing.T) {
	toks, r := lex(t, "a # the rest is ignored\nb")
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics())
	}
	if len(toks) != 3 || toks[0].Value != "a" || toks[1].Value != "b" {
		t.Errorf("comment not skipped: %v", toks)
	}
	if toks[1].Pos.Line != 2 {
		t.Errorf("line tracking across comment: got line %d, want 2", toks[1].Pos.Line)
	}
}

func TestStringEscapes(t *testing.T) {
	toks, r := lex(t, `"a\n\t\\\"z"`)
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics())
	}
	if toks[0].Kind != token.String || toks[0].Value != "a\n\t\\\"z" {
		t.Errorf("got %q", toks[0].Value)
	}
}

func TestCompoundOperators(t *testing.T) {
	toks, r := lex(t, "+= -= *= == != <= >=")
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics())
	}
	want := []token.Kind{token.PlusEq, token.MinusEq, token.StarEq,
		token.EqEq, token.Neq, token.Lte, token.Gte, token.EOF}
	got := kinds(toks)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	_, r := lex(t, `"oops`)
	if !r.HasErrors() {
		t.Fatal("expected an error for an unterminated string")
	}
}

func TestPositionsCarryTokenLength(t *testing.T) {
	toks, _ := lex(t, "health 0xFF")
	if toks[0].Pos.Len != 6 {
		t.Errorf("ident length = %d, want 6", toks[0].Pos.Len)
	}
	if toks[1].Pos.Len != 4 {
		t.Errorf("number length = %d, want 4", toks[1].Pos.Len)
	}
}

func TestPositions(t *testing.T) {
	toks, _ := lex(t, "a\n  b")
	if toks[0].Pos.Line != 1 || toks[0].Pos.Col != 1 {
		t.Errorf("a at %d:%d, want 1:1", toks[0].Pos.Line, toks[0].Pos.Col)
	}
	if toks[1].Pos.Line != 2 || toks[1].Pos.Col != 3 {
		t.Errorf("b at %d:%d, want 2:3", toks[1].Pos.Line, toks[1].Pos.Col)
	}
}
