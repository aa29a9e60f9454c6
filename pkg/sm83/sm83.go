// Package sm83 models the target instruction set: registers, conditions,
// operands, instructions, and the sectioned per-bank program the code
// generator fills. The model carries symbolic references so the generator
// never has to know final code addresses; the listing writer renders
// everything in RGBDS-flavored syntax for the downstream assembler.
package sm83

import "fmt"

// R8 is an 8-bit CPU register.
type R8 int

const (
	A R8 = iota
	B
	C
	D
	E
	H
	L
)

var r8Names = [...]string{"a", "b", "c", "d", "e", "h", "l"}

func (r R8) String() string { return r8Names[r] }

// R16 is a register pair.
type R16 int

const (
	AF R16 = iota
	BC
	DE
	HL
	SP
)

var r16Names = [...]string{"af", "bc", "de", "hl", "sp"}

func (r R16) String() string { return r16Names[r] }

// Cond is a branch condition.
type Cond int

const (
	CondNone Cond = iota
	CondZ
	CondNZ
	CondC
	CondNC
)

var condNames = [...]string{"", "z", "nz", "c", "nc"}

func (c Cond) String() string { return condNames[c] }

// Mn is an instruction mnemonic.
type Mn int

const (
	NOP Mn = iota
	LD
	LDH
	PUSH
	POP
	ADD
	ADC
	SUB
	SBC
	AND
	OR
	XOR
	CP
	INC
	DEC
	JP
	JR
	CALL
	RET
	RETI
	RST
	DI
	EI
	HALT
	CPL
	SLA
	SRA
	SRL
	RR
	RL
	SWAP
)

var mnNames = [...]string{
	"nop", "ld", "ldh", "push", "pop", "add", "adc", "sub", "sbc",
	"and", "or", "xor", "cp", "inc", "dec", "jp", "jr", "call", "ret",
	"reti", "rst", "di", "ei", "halt", "cpl", "sla", "sra", "srl",
	"rr", "rl", "swap",
}

func (m Mn) String() string { return mnNames[m] }

// OpKind discriminates Operand.
type OpKind int

const (
	OpR8 OpKind = iota
	OpR16
	OpImm     // n / nn
	OpAbs     // [nn]
	OpIndR16  // [hl], [bc], [de]
	OpHLInc   // [hl+]
	OpHLDec   // [hl-]
	OpSym     // label
	OpSymAbs  // [label]
	OpCond    // z / nz / c / nc
	OpSymLow  // LOW(label)  — 8-bit half of a symbol address
	OpSymHigh // HIGH(label)
)

// Operand is one instruction operand. Exactly the fields for its kind are
// meaningful.
type Operand struct {
	Kind OpKind
	R8   R8
	R16  R16
	Imm  int64
	Sym  string
	Cond Cond
}

func Reg(r R8) Operand            { return Operand{Kind: OpR8, R8: r} }
func Pair(r R16) Operand          { return Operand{Kind: OpR16, R16: r} }
func Imm(v int64) Operand         { return Operand{Kind: OpImm, Imm: v} }
func Abs(addr uint16) Operand     { return Operand{Kind: OpAbs, Imm: int64(addr)} }
func Ind(r R16) Operand           { return Operand{Kind: OpIndR16, R16: r} }
func HLInc() Operand              { return Operand{Kind: OpHLInc} }
func HLDec() Operand              { return Operand{Kind: OpHLDec} }
func Sym(label string) Operand    { return Operand{Kind: OpSym, Sym: label} }
func SymAbs(label string) Operand { return Operand{Kind: OpSymAbs, Sym: label} }
func If(c Cond) Operand           { return Operand{Kind: OpCond, Cond: c} }
func Low(label string) Operand    { return Operand{Kind: OpSymLow, Sym: label} }
func High(label string) Operand   { return Operand{Kind: OpSymHigh, Sym: label} }

func (o Operand) String() string {
	switch o.Kind {
	case OpR8:
		return o.R8.String()
	case OpR16:
		return o.R16.String()
	case OpImm:
		if o.Imm < 0 {
			return fmt.Sprintf("-$%02X", -o.Imm)
		}
		if o.Imm > 0xFF {
			return fmt.Sprintf("$%04X", o.Imm)
		}
		return fmt.Sprintf("$%02X", o.Imm)
	case OpAbs:
		return fmt.Sprintf("[$%04X]", uint16(o.Imm))
	case OpIndR16:
		return "[" + o.R16.String() + "]"
	case OpHLInc:
		return "[hl+]"
	case OpHLDec:
		return "[hl-]"
	case OpSym:
		return o.Sym
	case OpSymAbs:
		return "[" + o.Sym + "]"
	case OpCond:
		return o.Cond.String()
	case OpSymLow:
		return "LOW(" + o.Sym + ")"
	case OpSymHigh:
		return "HIGH(" + o.Sym + ")"
	}
	return "?"
}

// Inst is one instruction.
type Inst struct {
	Mn  Mn
	Ops []Operand
}

func (i *Inst) String() string {
	s := i.Mn.String()
	for n, op := range i.Ops {
		if n == 0 {
			s += " " + op.String()
		} else {
			s += ", " + op.String()
		}
	}
	return s
}

// Item is one listing line: a label, an instruction, a data directive, or
// a verbatim line of inline assembly.
type Item struct {
	Label    string
	Inst     *Inst
	Bytes    []byte
	Verbatim string
	Comment  string
}

// Section is a contiguous run of items placed in one bank, optionally at
// a fixed address (interrupt vector stubs).
type Section struct {
	Name  string
	Bank  int
	Org   int // fixed address, or -1 for assembler placement
	Items []Item
}

func (s *Section) Label(name string)        { s.Items = append(s.Items, Item{Label: name}) }
func (s *Section) Ins(m Mn, ops ...Operand) { s.Items = append(s.Items, Item{Inst: &Inst{Mn: m, Ops: ops}}) }
func (s *Section) Comment(text string)      { s.Items = append(s.Items, Item{Comment: text}) }
func (s *Section) Verbatim(line string)     { s.Items = append(s.Items, Item{Verbatim: line}) }
func (s *Section) Data(label string, b []byte) {
	s.Items = append(s.Items, Item{Label: label}, Item{Bytes: b})
}

// Program is the generator's output: sections in emission order.
type Program struct {
	Sections []*Section
}

// Section finds or creates a section by name.
func (p *Program) Section(name string, bank, org int) *Section {
	for _, s := range p.Sections {
		if s.Name == name {
			return s
		}
	}
	s := &Section{Name: name, Bank: bank, Org: org}
	p.Sections = append(p.Sections, s)
	return s
}

// Banks returns the sorted list of bank indexes that have sections.
func (p *Program) Banks() []int {
	seen := make(map[int]bool)
	var out []int
	for _, s := range p.Sections {
		if !seen[s.Bank] {
			seen[s.Bank] = true
			out = append(out, s.Bank)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
