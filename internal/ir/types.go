// Package ir implements the typed SSA intermediate representation shared by
// the SH4 frontend, the optimizer pipeline and the interpreter/x86-64
// backends. Values carry an integer or float type; instructions produce at
// most one value and reference up to three arguments; instructions belong to
// blocks; blocks belong to a Builder, which owns every node transitively and
// frees the whole graph when discarded.
package ir

import "fmt"

// Type is the tagged-union discriminant carried by every Value.
type Type uint8

const (
	TypeNone Type = iota
	I8
	I16
	I32
	I64
	F32
	F64
	TypeBlock // a block-ref value used as a branch target
	numTypes  // sentinel: one past the last Type
)

// NumTypes is the number of Type values, TypeNone and TypeBlock included.
const NumTypes = int(numTypes)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "void"
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case TypeBlock:
		return "blk"
	default:
		return fmt.Sprintf("type(%d)", t)
	}
}

// IsFloat reports whether t is one of the floating-point element types.
func (t Type) IsFloat() bool {
	return t == F32 || t == F64
}

// IsInt reports whether t is one of the integer element types.
func (t Type) IsInt() bool {
	switch t {
	case I8, I16, I32, I64:
		return true
	default:
		return false
	}
}

// Size returns the width of t in bytes. Panics for TypeNone/TypeBlock, which
// carry no storage of their own.
func (t Type) Size() int {
	switch t {
	case I8:
		return 1
	case I16:
		return 2
	case I32, F32:
		return 4
	case I64, F64:
		return 8
	default:
		panic(fmt.Sprintf("ir: Size of sizeless type %v", t))
	}
}

// Wider reports whether t has a width greater than or equal to other's,
// comparing only storage size (used by load/store elimination's dead-store
// check, which requires the surviving store to be "at least as wide").
func (t Type) Wider(other Type) bool {
	return t.Size() >= other.Size()
}
