// Package lexer turns Hippo source text into a token stream. Lexing is an
// outer collaborator of the compiler core: it either yields a clean stream
// or reports syntax diagnostics and the run stops before the core stages.
package lexer

import (
	"strconv"

	"github.com/Naitsabot/hippolang/pkg/diag"
	"github.com/Naitsabot/hippolang/pkg/token"
)

type Lexer struct {
	src   []rune
	file  int
	pos   int
	line  int
	col   int
	r     *diag.Reporter
	toks  []token.Token
}

func New(src []rune, file int, r *diag.Reporter) *Lexer {
	return &Lexer{src: src, file: file, line: 1, col: 1, r: r}
}

// Tokenize consumes the whole input and returns the token stream,
// terminated by an EOF token.
func (lx *Lexer) Tokenize() []token.Token {
	for {
		lx.skipSpaceAndComments()
		if lx.pos >= len(lx.src) {
			lx.emit(token.Token{Kind: token.EOF, Pos: lx.here(), Len: 0})
			return lx.toks
		}
		ch := lx.src[lx.pos]
		switch {
		case isIdentStart(ch):
			lx.lexIdent()
		case ch >= '0' && ch <= '9':
			lx.lexNumber()
		case ch == '"':
			lx.lexString()
		default:
			lx.lexOperator()
		}
	}
}

func (lx *Lexer) here() token.Pos {
	return token.Pos{File: lx.file, Line: lx.line, Col: lx.col}
}

func (lx *Lexer) emit(t token.Token) {
	t.Pos.Len = t.Len
	lx.toks = append(lx.toks, t)
}

func (lx *Lexer) advance() rune {
	ch := lx.src[lx.pos]
	lx.pos++
	if ch == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return ch
}

func (lx *Lexer) peek(off int) rune {
	if lx.pos+off >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+off]
}

func (lx *Lexer) skipSpaceAndComments() {
	for lx.pos < len(lx.src) {
		ch := lx.src[lx.pos]
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' {
			lx.advance()
			continue
		}
		if ch == '#' {
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.advance()
			}
			continue
		}
		return
	}
}

func isIdentStart(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

func (lx *Lexer) lexIdent() {
	pos := lx.here()
	start := lx.pos
	for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
		lx.advance()
	}
	word := string(lx.src[start:lx.pos])
	if kw, ok := token.KeywordMap[word]; ok {
		lx.emit(token.Token{Kind: kw, Value: word, Pos: pos, Len: len(word)})
		return
	}
	lx.emit(token.Token{Kind: token.Ident, Value: word, Pos: pos, Len: len(word)})
}

func (lx *Lexer) lexNumber() {
	pos := lx.here()
	start := lx.pos
	base := 10
	digits := "0123456789"
	if lx.src[lx.pos] == '0' && (lx.peek(1) == 'x' || lx.peek(1) == 'X') {
		base, digits = 16, "0123456789abcdefABCDEF"
		lx.advance()
		lx.advance()
	} else if lx.src[lx.pos] == '0' && (lx.peek(1) == 'b' || lx.peek(1) == 'B') {
		base, digits = 2, "01"
		lx.advance()
		lx.advance()
	}
	digStart := lx.pos
	for lx.pos < len(lx.src) && (containsRune(digits, lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
		lx.advance()
	}
	text := ""
	for _, ch := range lx.src[digStart:lx.pos] {
		if ch != '_' {
			text += string(ch)
		}
	}
	if text == "" {
		lx.r.Errorf(diag.SyntaxError, pos, "malformed numeric literal")
		lx.emit(token.Token{Kind: token.Number, Pos: pos, Len: lx.pos - start})
		return
	}
	val, err := strconv.ParseInt(text, base, 64)
	if err != nil {
		lx.r.Errorf(diag.SyntaxError, pos, "numeric literal out of range")
	}
	lx.emit(token.Token{Kind: token.Number, Value: string(lx.src[start:lx.pos]), Num: val, Pos: pos, Len: lx.pos - start})
}

func containsRune(s string, ch rune) bool {
	for _, c := range s {
		if c == ch {
			return true
		}
	}
	return false
}

func (lx *Lexer) lexString() {
	pos := lx.here()
	lx.advance() // opening quote
	var out []rune
	for {
		if lx.pos >= len(lx.src) || lx.src[lx.pos] == '\n' {
			lx.r.Errorf(diag.SyntaxError, pos, "unterminated string literal")
			break
		}
		ch := lx.advance()
		if ch == '"' {
			break
		}
		if ch == '\\' && lx.pos < len(lx.src) {
			esc := lx.advance()
			switch esc {
			case 'n':
				ch = '\n'
			case 't':
				ch = '\t'
			case '0':
				ch = 0
			case '\\', '"':
				ch = esc
			default:
				lx.r.Errorf(diag.SyntaxError, pos, "unrecognized escape '\\%c'", esc)
				ch = esc
			}
		}
		out = append(out, ch)
	}
	lx.emit(token.Token{Kind: token.String, Value: string(out), Pos: pos, Len: len(out) + 2})
}

func (lx *Lexer) lexOperator() {
	pos := lx.here()
	ch := lx.advance()

	two := func(next rune, kind token.Kind, text string) bool {
		if lx.pos < len(lx.src) && lx.src[lx.pos] == next {
			lx.advance()
			lx.emit(token.Token{Kind: kind, Value: text, Pos: pos, Len: 2})
			return true
		}
		return false
	}

	switch ch {
	case '(':
		lx.emit(token.Token{Kind: token.LParen, Value: "(", Pos: pos, Len: 1})
	case ')':
		lx.emit(token.Token{Kind: token.RParen, Value: ")", Pos: pos, Len: 1})
	case '{':
		if two('.', token.PragmaOpen, "{.") {
			return
		}
		lx.emit(token.Token{Kind: token.LBrace, Value: "{", Pos: pos, Len: 1})
	case '}':
		lx.emit(token.Token{Kind: token.RBrace, Value: "}", Pos: pos, Len: 1})
	case '[':
		lx.emit(token.Token{Kind: token.LBracket, Value: "[", Pos: pos, Len: 1})
	case ']':
		lx.emit(token.Token{Kind: token.RBracket, Value: "]", Pos: pos, Len: 1})
	case ',':
		lx.emit(token.Token{Kind: token.Comma, Value: ",", Pos: pos, Len: 1})
	case ':':
		lx.emit(token.Token{Kind: token.Colon, Value: ":", Pos: pos, Len: 1})
	case ';':
		lx.emit(token.Token{Kind: token.Semi, Value: ";", Pos: pos, Len: 1})
	case '@':
		lx.emit(token.Token{Kind: token.At, Value: "@", Pos: pos, Len: 1})
	case '&':
		lx.emit(token.Token{Kind: token.Amp, Value: "&", Pos: pos, Len: 1})
	case '^':
		lx.emit(token.Token{Kind: token.Caret, Value: "^", Pos: pos, Len: 1})
	case '.':
		if lx.pos+1 < len(lx.src) && lx.src[lx.pos] == '.' && lx.src[lx.pos+1] == '<' {
			lx.advance()
			lx.advance()
			lx.emit(token.Token{Kind: token.DotDotLess, Value: "..<", Pos: pos, Len: 3})
			return
		}
		if two('}', token.PragmaClose, ".}") {
			return
		}
		lx.emit(token.Token{Kind: token.Dot, Value: ".", Pos: pos, Len: 1})
	case '=':
		if two('=', token.EqEq, "==") {
			return
		}
		lx.emit(token.Token{Kind: token.Eq, Value: "=", Pos: pos, Len: 1})
	case '+':
		if two('=', token.PlusEq, "+=") {
			return
		}
		lx.emit(token.Token{Kind: token.Plus, Value: "+", Pos: pos, Len: 1})
	case '-':
		if two('=', token.MinusEq, "-=") {
			return
		}
		lx.emit(token.Token{Kind: token.Minus, Value: "-", Pos: pos, Len: 1})
	case '*':
		if two('=', token.StarEq, "*=") {
			return
		}
		lx.emit(token.Token{Kind: token.Star, Value: "*", Pos: pos, Len: 1})
	case '/':
		lx.emit(token.Token{Kind: token.Slash, Value: "/", Pos: pos, Len: 1})
	case '%':
		lx.emit(token.Token{Kind: token.Percent, Value: "%", Pos: pos, Len: 1})
	case '!':
		if two('=', token.Neq, "!=") {
			return
		}
		lx.r.Errorf(diag.SyntaxError, pos, "unexpected character '!'")
	case '<':
		if two('=', token.Lte, "<=") {
			return
		}
		lx.emit(token.Token{Kind: token.Lt, Value: "<", Pos: pos, Len: 1})
	case '>':
		if two('=', token.Gte, ">=") {
			return
		}
		lx.emit(token.Token{Kind: token.Gt, Value: ">", Pos: pos, Len: 1})
	default:
		lx.r.Errorf(diag.SyntaxError, pos, "unexpected character '%c'", ch)
	}
}
