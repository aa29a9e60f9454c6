// Package types is the concrete, sized type model. Every type has a
// compile-time-known byte size and alignment of 1; composite types cache
// their size on first computation.
package types

import (
	"fmt"
	"strings"
)

type Kind int

const (
	U8 Kind = iota
	I8
	U16
	I16
	Bool
	Ptr
	Array
	Object
)

// Field is a named, typed member of an object type. Offsets are assigned
// in declaration order with no padding.
type Field struct {
	Name   string
	Type   *Type
	Offset int
}

type Type struct {
	Kind   Kind
	Name   string // declared alias name, if any
	Elem   *Type  // array element
	Len    int    // array length (compile-time constant)
	Fields []Field

	size int // cached byte size; 0 means not yet computed
}

// Predefined primitive types. These are shared singletons; composite types
// are built per declaration.
var (
	TypeU8   = &Type{Kind: U8, Name: "uint8", size: 1}
	TypeI8   = &Type{Kind: I8, Name: "int8", size: 1}
	TypeU16  = &Type{Kind: U16, Name: "uint16", size: 2}
	TypeI16  = &Type{Kind: I16, Name: "int16", size: 2}
	TypeBool = &Type{Kind: Bool, Name: "bool", size: 1}
	TypePtr  = &Type{Kind: Ptr, Name: "ptr", size: 2}
)

// Primitives maps source-level primitive names to their singleton types.
var Primitives = map[string]*Type{
	"uint8":  TypeU8,
	"int8":   TypeI8,
	"uint16": TypeU16,
	"int16":  TypeI16,
	"bool":   TypeBool,
	"ptr":    TypePtr,
}

// NewArray builds an array type of n elements.
func NewArray(elem *Type, n int) *Type {
	return &Type{Kind: Array, Elem: elem, Len: n}
}

// NewObject builds an object type, assigning byte offsets in field order.
func NewObject(name string, fields []Field) *Type {
	off := 0
	for i := range fields {
		fields[i].Offset = off
		off += fields[i].Type.Size()
	}
	return &Type{Kind: Object, Name: name, Fields: fields, size: off}
}

// Size returns the byte size of t. Composite sizes are computed once and
// cached.
func (t *Type) Size() int {
	if t.size != 0 {
		return t.size
	}
	switch t.Kind {
	case Array:
		t.size = t.Elem.Size() * t.Len
	case Object:
		sum := 0
		for _, f := range t.Fields {
			sum += f.Type.Size()
		}
		t.size = sum
	default:
		t.size = 1
	}
	return t.size
}

// IsInteger reports whether t is one of the fixed-width integer types.
func (t *Type) IsInteger() bool {
	switch t.Kind {
	case U8, I8, U16, I16:
		return true
	}
	return false
}

// IsWord reports whether values of t occupy two bytes in registers.
func (t *Type) IsWord() bool {
	switch t.Kind {
	case U16, I16, Ptr:
		return true
	}
	return false
}

// IsScalar reports whether t fits the accumulator/register-pair discipline
// (everything except arrays and objects).
func (t *Type) IsScalar() bool {
	return t.Kind != Array && t.Kind != Object
}

// Signed reports whether t is a signed integer type.
func (t *Type) Signed() bool { return t.Kind == I8 || t.Kind == I16 }

// Field looks up an object field by name.
func (t *Type) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// AssignableTo reports whether a value of type t can be assigned to a
// location of type dst. Integer types assign only to the identical width
// and signedness; ptr accepts any 16-bit integer and vice versa.
func (t *Type) AssignableTo(dst *Type) bool {
	if t == nil || dst == nil {
		return true // a prior diagnostic already covers this expression
	}
	if t == dst {
		return true
	}
	if t.Kind == dst.Kind {
		switch t.Kind {
		case Array:
			return t.Len == dst.Len && t.Elem.AssignableTo(dst.Elem)
		case Object:
			return t.Name == dst.Name
		default:
			return true
		}
	}
	if dst.Kind == Ptr && (t.Kind == U16 || t.Kind == I16) {
		return true
	}
	if t.Kind == Ptr && (dst.Kind == U16 || dst.Kind == I16) {
		return true
	}
	return false
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case Array:
		return fmt.Sprintf("array[%d, %s]", t.Len, t.Elem)
	case Object:
		if t.Name != "" {
			return t.Name
		}
		var b strings.Builder
		b.WriteString("object {")
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", f.Name, f.Type)
		}
		b.WriteString("}")
		return b.String()
	default:
		return t.Name
	}
}
