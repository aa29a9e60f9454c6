// Package token defines the lexical token kinds of the Hippo language and
// the source positions carried by every token and AST node.
package token

import "fmt"

type Kind int

const (
	EOF Kind = iota
	Ident
	Number
	String

	// Keywords
	Var
	Const
	Proc
	TypeKeyword
	Object
	Array
	If
	Elif
	Else
	While
	For
	In
	Return
	Asm
	True
	False
	And
	Or
	Xor
	Not
	Shl
	Shr
	Hw

	// Punctuation and operators
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	PragmaOpen  // {.
	PragmaClose // .}
	Comma
	Colon
	Semi
	Dot
	DotDotLess // ..<
	At
	Amp
	Caret
	Eq
	PlusEq
	MinusEq
	StarEq
	Plus
	Minus
	Star
	Slash
	Percent
	EqEq
	Neq
	Lt
	Gt
	Lte
	Gte
)

var KeywordMap = map[string]Kind{
	"var":    Var,
	"const":  Const,
	"proc":   Proc,
	"type":   TypeKeyword,
	"object": Object,
	"array":  Array,
	"if":     If,
	"elif":   Elif,
	"else":   Else,
	"while":  While,
	"for":    For,
	"in":     In,
	"return": Return,
	"asm":    Asm,
	"true":   True,
	"false":  False,
	"and":    And,
	"or":     Or,
	"xor":    Xor,
	"not":    Not,
	"shl":    Shl,
	"shr":    Shr,
	"hw":     Hw,
}

var kindNames = map[Kind]string{
	EOF:         "end of file",
	Ident:       "identifier",
	Number:      "number",
	String:      "string",
	LParen:      "'('",
	RParen:      "')'",
	LBrace:      "'{'",
	RBrace:      "'}'",
	LBracket:    "'['",
	RBracket:    "']'",
	PragmaOpen:  "'{.'",
	PragmaClose: "'.}'",
	Comma:       "','",
	Colon:       "':'",
	Semi:        "';'",
	Dot:         "'.'",
	DotDotLess:  "'..<'",
	At:          "'@'",
	Amp:         "'&'",
	Caret:       "'^'",
	Eq:          "'='",
	PlusEq:      "'+='",
	MinusEq:     "'-='",
	StarEq:      "'*='",
	Plus:        "'+'",
	Minus:       "'-'",
	Star:        "'*'",
	Slash:       "'/'",
	Percent:     "'%'",
	EqEq:        "'=='",
	Neq:         "'!='",
	Lt:          "'<'",
	Gt:          "'>'",
	Lte:         "'<='",
	Gte:         "'>='",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	for str, kw := range KeywordMap {
		if kw == k {
			return "'" + str + "'"
		}
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Pos is a source location. File indexes the source records registered with
// the diagnostic reporter. Len is the width of the token the position
// names, in runes; zero means unknown.
type Pos struct {
	File int
	Line int
	Col  int
	Len  int
}

func (p Pos) IsValid() bool { return p.Line > 0 }

type Token struct {
	Kind  Kind
	Value string
	Num   int64
	Pos   Pos
	Len   int
}
