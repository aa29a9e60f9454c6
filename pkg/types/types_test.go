package types

import "testing"

func TestSizes(t *testing.T) {
	tests := []struct {
		typ  *Type
		want int
	}{
		{TypeU8, 1},
		{TypeI8, 1},
		{TypeU16, 2},
		{TypeI16, 2},
		{TypeBool, 1},
		{TypePtr, 2},
		{NewArray(TypeU8, 32), 32},
		{NewArray(TypeU16, 16), 32},
		{NewArray(NewArray(TypeU8, 4), 4), 16},
	}
	for _, tt := range tests {
		if got := tt.typ.Size(); got != tt.want {
			t.Errorf("%s size = %d, want %d", tt.typ, got, tt.want)
		}
	}
}

func TestObjectOffsets(t *testing.T) {
	obj := NewObject("Sprite", []Field{
		{Name: "y", Type: TypeU8},
		{Name: "x", Type: TypeU8},
		{Name: "tile", Type: TypeU16},
	})
	if obj.Size() != 4 {
		t.Errorf("size = %d, want 4", obj.Size())
	}
	wantOffsets := map[string]int{"y": 0, "x": 1, "tile": 2}
	for name, off := range wantOffsets {
		f, ok := obj.Field(name)
		if !ok {
			t.Fatalf("field %q missing", name)
		}
		if f.Offset != off {
			t.Errorf("field %q at offset %d, want %d", name, f.Offset, off)
		}
	}
	if _, ok := obj.Field("absent"); ok {
		t.Error("nonexistent field found")
	}
}

func TestAssignability(t *testing.T) {
	vec := NewObject("Vec", []Field{{Name: "x", Type: TypeU8}})
	other := NewObject("Other", []Field{{Name: "x", Type: TypeU8}})
	tests := []struct {
		src, dst *Type
		want     bool
	}{
		{TypeU8, TypeU8, true},
		{TypeU8, TypeU16, false},
		{TypeU16, TypePtr, true},
		{TypePtr, TypeU16, true},
		{TypePtr, TypeU8, false},
		{TypeBool, TypeU8, false},
		{NewArray(TypeU8, 4), NewArray(TypeU8, 4), true},
		{NewArray(TypeU8, 4), NewArray(TypeU8, 5), false},
		{vec, vec, true},
		{vec, other, false},
	}
	for _, tt := range tests {
		if got := tt.src.AssignableTo(tt.dst); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.src, tt.dst, got, tt.want)
		}
	}
}

func TestPredicates(t *testing.T) {
	if !TypeU16.IsInteger() || TypeBool.IsInteger() || TypePtr.IsInteger() {
		t.Error("IsInteger misclassifies")
	}
	if !TypeU16.IsWord() || !TypePtr.IsWord() || TypeU8.IsWord() {
		t.Error("IsWord misclassifies")
	}
	if !TypeI8.Signed() || TypeU8.Signed() {
		t.Error("Signed misclassifies")
	}
	if NewArray(TypeU8, 2).IsScalar() {
		t.Error("array is not scalar")
	}
}

func TestStringForms(t *testing.T) {
	if s := NewArray(TypeU16, 8).String(); s != "array[8, uint16]" {
		t.Errorf("array string: %q", s)
	}
	if s := NewObject("Vec", nil).String(); s != "Vec" {
		t.Errorf("named object string: %q", s)
	}
}
