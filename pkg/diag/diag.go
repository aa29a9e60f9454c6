// Package diag collects and renders compiler diagnostics. Each pipeline
// stage accumulates every defect it can find before the run is aborted, so
// a single run reports a whole stage's worth of errors at once.
package diag

import (
	"fmt"

	"github.com/Naitsabot/hippolang/pkg/token"
)

type Kind int

const (
	SyntaxError Kind = iota
	UnresolvedType
	UnresolvedSymbol
	Redeclaration
	CannotInferType
	UnknownHardwareRegister
	HardwareRegisterAddress
	TypeMismatch
	AddressOutOfRegion
	OverlappingAllocation
	OutOfMemoryInRegion
	UnknownProcedure
	RecursiveCall
	InterruptContractViolation
	DuplicateInterruptVector
	MissingOrDuplicateEntryPoint
	BankIndexOutOfRange
	NoBankSwitchViolation
	InternalError

	// Warning-only kinds.
	LargeCopy
	InlineIgnored
	UnusedSymbol
	UnreachableCode
)

var kindNames = map[Kind]string{
	SyntaxError:                  "syntax-error",
	UnresolvedType:               "unresolved-type",
	UnresolvedSymbol:             "unresolved-symbol",
	Redeclaration:                "redeclaration",
	CannotInferType:              "cannot-infer-type",
	UnknownHardwareRegister:      "unknown-hardware-register",
	HardwareRegisterAddress:      "hardware-register-address",
	TypeMismatch:                 "type-mismatch",
	AddressOutOfRegion:           "address-out-of-region",
	OverlappingAllocation:        "overlapping-allocation",
	OutOfMemoryInRegion:          "out-of-memory-in-region",
	UnknownProcedure:             "unknown-procedure",
	RecursiveCall:                "recursive-call",
	InterruptContractViolation:   "interrupt-contract-violation",
	DuplicateInterruptVector:     "duplicate-interrupt-vector",
	MissingOrDuplicateEntryPoint: "missing-or-duplicate-entry-point",
	BankIndexOutOfRange:          "bank-index-out-of-range",
	NoBankSwitchViolation:        "no-bank-switch-violation",
	InternalError:                "internal-error",
	LargeCopy:                    "large-copy",
	InlineIgnored:                "inline-ignored",
	UnusedSymbol:                 "unused-symbol",
	UnreachableCode:              "unreachable-code",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("diag(%d)", int(k))
}

type Diagnostic struct {
	Kind Kind
	Pos  token.Pos
	Msg  string
	Hint string
}

// SourceFile tracks the name and content of one input file for rendering
// the offending line under a diagnostic.
type SourceFile struct {
	Name    string
	Content []rune
}

// Reporter accumulates diagnostics across the pipeline. Every error is
// fatal for the run as a whole; stages keep going so sibling declarations
// still get checked, but no stage starts after a prior stage reported.
type Reporter struct {
	files []SourceFile
	diags []Diagnostic
	warns []Diagnostic
}

func NewReporter() *Reporter { return &Reporter{} }

// AddFile registers a source file and returns its index for token.Pos.File.
func (r *Reporter) AddFile(name string, content []rune) int {
	r.files = append(r.files, SourceFile{Name: name, Content: content})
	return len(r.files) - 1
}

func (r *Reporter) Errorf(kind Kind, pos token.Pos, format string, args ...any) {
	r.diags = append(r.diags, Diagnostic{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (r *Reporter) ErrorWithHint(kind Kind, pos token.Pos, hint, format string, args ...any) {
	r.diags = append(r.diags, Diagnostic{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...), Hint: hint})
}

// Warnf records a non-fatal diagnostic. Warnings are printed alongside
// errors but never fail the run.
func (r *Reporter) Warnf(kind Kind, pos token.Pos, format string, args ...any) {
	r.warns = append(r.warns, Diagnostic{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (r *Reporter) HasErrors() bool { return len(r.diags) > 0 }

func (r *Reporter) Count() int { return len(r.diags) }

func (r *Reporter) Diagnostics() []Diagnostic { return r.diags }

func (r *Reporter) Warnings() []Diagnostic { return r.warns }

func (r *Reporter) fileName(idx int) string {
	if idx < 0 || idx >= len(r.files) {
		return "<unknown>"
	}
	return r.files[idx].Name
}
