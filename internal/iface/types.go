// Package iface implements forge's interface model (spec §3, §4.9, C9): a
// typed, language-agnostic description of a module's exported and imported
// FFI symbols, with bidirectional JSON serialization honouring the
// round-trip law (a type parsed and re-serialized is bit-equal to the
// original).
//
// Grounded on distr1-distri's pb package, which defines a serializable
// descriptor (Build/Meta protos) read and written at well-known paths;
// this package generalizes the shape from a single flat proto to the
// tagged-union Type tree spec §3/§6 requires, and swaps protobuf text
// format for the JSON schema spec §6 mandates.
package iface

import (
	"encoding/json"
	"fmt"
)

// PrimitiveKind enumerates the internal primitive type set.
type PrimitiveKind string

const (
	Void  PrimitiveKind = "void"
	Bool  PrimitiveKind = "bool"
	I8    PrimitiveKind = "i8"
	I16   PrimitiveKind = "i16"
	I32   PrimitiveKind = "i32"
	I64   PrimitiveKind = "i64"
	U8    PrimitiveKind = "u8"
	U16   PrimitiveKind = "u16"
	U32   PrimitiveKind = "u32"
	U64   PrimitiveKind = "u64"
	F32   PrimitiveKind = "f32"
	F64   PrimitiveKind = "f64"
	ISize PrimitiveKind = "isize"
	USize PrimitiveKind = "usize"
)

var validPrimitives = map[PrimitiveKind]bool{
	Void: true, Bool: true, I8: true, I16: true, I32: true, I64: true,
	U8: true, U16: true, U32: true, U64: true, F32: true, F64: true,
	ISize: true, USize: true,
}

// TypeKind discriminates the Type tagged union's "kind" field.
type TypeKind string

const (
	KindPrimitive     TypeKind = "primitive"
	KindPointer       TypeKind = "ptr"
	KindArray         TypeKind = "array"
	KindStruct        TypeKind = "struct"
	KindFunctionPtr   TypeKind = "fn_ptr"
)

// Type is the tagged-union FFI type tree of spec §3. Exactly one of the
// payload fields is meaningful, selected by Kind; a primitive carries its
// primitive name as Kind (e.g. "i32", not "primitive") with Prim set to the
// same value, matching the wire schema's "kind" values ("void", "bool", "i8", ... for primitives; "ptr", "array",
// "struct", "fn_ptr" for composites, per spec §6).
type Type struct {
	Kind TypeKind `json:"kind"`

	// Primitive
	Prim PrimitiveKind `json:"-"`

	// Pointer
	Pointee  *Type `json:"pointee,omitempty"`
	Nullable bool  `json:"nullable,omitempty"`
	Mutable  bool  `json:"mutable,omitempty"`

	// Array
	Element *Type `json:"element,omitempty"`
	Length  *int  `json:"length,omitempty"`

	// Struct
	StructName string `json:"name,omitempty"`

	// FunctionPointer
	Signature *Signature `json:"signature,omitempty"`
}

// Primitive constructs a primitive Type.
func Primitive(kind PrimitiveKind) Type { return Type{Kind: TypeKind(kind), Prim: kind} }

// Pointer constructs a pointer Type.
func Pointer(pointee Type, nullable, mutable bool) Type {
	p := pointee
	return Type{Kind: KindPointer, Pointee: &p, Nullable: nullable, Mutable: mutable}
}

// ArrayOf constructs a fixed- or dynamic-length array Type. length == nil
// means dynamic.
func ArrayOf(element Type, length *int) Type {
	e := element
	return Type{Kind: KindArray, Element: &e, Length: length}
}

// StructRef constructs a named-struct reference Type.
func StructRef(name string) Type { return Type{Kind: KindStruct, StructName: name} }

// FunctionPointer constructs a function-pointer Type.
func FunctionPointer(sig Signature) Type { return Type{Kind: KindFunctionPtr, Signature: &sig} }

// IsPrimitive reports whether t is a primitive type, distinct from the
// composite kinds.
func (t Type) IsPrimitive() bool {
	return validPrimitives[PrimitiveKind(t.Kind)]
}

// MarshalJSON renders Type per spec §6: primitives as their bare kind
// string, composites as {"kind": "...", ...payload}.
func (t Type) MarshalJSON() ([]byte, error) {
	if validPrimitives[PrimitiveKind(t.Kind)] {
		return json.Marshal(string(t.Kind))
	}
	type alias Type
	return json.Marshal(alias(t))
}

// UnmarshalJSON parses either a bare primitive-kind string or a composite
// object. Unknown discriminators surface as a typed error (spec §4.9);
// unknown optional fields are silently ignored by encoding/json's default
// behaviour.
func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if !validPrimitives[PrimitiveKind(s)] {
			return &UnknownTypeKindError{Kind: s}
		}
		*t = Primitive(PrimitiveKind(s))
		return nil
	}
	type alias Type
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	switch a.Kind {
	case KindPointer, KindArray, KindStruct, KindFunctionPtr:
		*t = Type(a)
		return nil
	default:
		return &UnknownTypeKindError{Kind: string(a.Kind)}
	}
}

// UnknownTypeKindError is returned when a Type's "kind" discriminator is
// not one forge recognizes.
type UnknownTypeKindError struct{ Kind string }

func (e *UnknownTypeKindError) Error() string {
	return fmt.Sprintf("iface: unknown type kind %q", e.Kind)
}

// Equal reports structural equality between two Types, used to verify the
// round-trip law (spec §8).
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindPointer:
		return t.Nullable == o.Nullable && t.Mutable == o.Mutable && t.Pointee.Equal(*o.Pointee)
	case KindArray:
		if (t.Length == nil) != (o.Length == nil) {
			return false
		}
		if t.Length != nil && *t.Length != *o.Length {
			return false
		}
		return t.Element.Equal(*o.Element)
	case KindStruct:
		return t.StructName == o.StructName
	case KindFunctionPtr:
		return t.Signature.Equal(*o.Signature)
	default:
		return t.Prim == o.Prim
	}
}

// Direction is a parameter's data-flow direction.
type Direction string

const (
	DirIn    Direction = "in"
	DirOut   Direction = "out"
	DirInOut Direction = "inout"
)

// CallingConvention names an ABI calling convention.
type CallingConvention string

const (
	ConvCDecl    CallingConvention = "cdecl"
	ConvStdCall  CallingConvention = "stdcall"
	ConvFastCall CallingConvention = "fastcall"
	ConvThisCall CallingConvention = "thiscall"
)

// Parameter is one function parameter.
type Parameter struct {
	Name      string    `json:"name"`
	Type      Type      `json:"type"`
	Direction Direction `json:"direction"`
}

func (p Parameter) Equal(o Parameter) bool {
	return p.Name == o.Name && p.Direction == o.Direction && p.Type.Equal(o.Type)
}

// Signature is a function's parameter list, return type, and calling
// convention.
type Signature struct {
	Parameters []Parameter       `json:"params"`
	ReturnType Type              `json:"return"`
	Convention CallingConvention `json:"convention"`
}

func (s Signature) Equal(o Signature) bool {
	if s.Convention != o.Convention || len(s.Parameters) != len(o.Parameters) {
		return false
	}
	if !s.ReturnType.Equal(o.ReturnType) {
		return false
	}
	for i := range s.Parameters {
		if !s.Parameters[i].Equal(o.Parameters[i]) {
			return false
		}
	}
	return true
}

// Export describes one exported symbol.
type Export struct {
	Name       string     `json:"name"`
	Signature  Signature  `json:"signature"`
	Attributes []string   `json:"attributes,omitempty"`
}

// Import describes one imported (external) symbol a module expects to be
// provided by another.
type Import struct {
	Name      string    `json:"name"`
	Signature Signature `json:"signature"`
}

// ABI names the binary interface a module's artifact exposes.
type ABI string

const (
	ABIC   ABI = "c"
	ABICLR ABI = "clr"
)

// Mode names whether a module compiles to native code or managed (CLR)
// bytecode.
type Mode string

const (
	ModeNative Mode = "native"
	ModeCLR    Mode = "clr"
)

// ModuleVersion names the module producing this interface and its semver.
type ModuleVersion struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Language names the source language and its ABI/mode.
type Language struct {
	Name string `json:"name"`
	ABI  ABI    `json:"abi"`
	Mode Mode   `json:"mode"`
}

// ModuleInterface is the complete, serializable FFI description of one
// module (spec §3, wire schema spec §6).
type ModuleInterface struct {
	SchemaVersion string        `json:"version"`
	Module        ModuleVersion `json:"module"`
	Language      Language      `json:"language"`
	Exports       []Export      `json:"exports"`
	Imports       []Import      `json:"imports,omitempty"`
}

const SchemaVersion = "1.0"
