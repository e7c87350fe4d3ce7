package vm

import (
	"fmt"
	"math"
)

// Value represents a single runtime value as a closed tagged union.
//
// Every opcode handler switches exhaustively over the kind, so a
// category-width mismatch is caught at the accessor rather than silently
// corrupting slots. Long and Double are category-2: they occupy two
// consecutive slots in locals and on the operand stack, the second slot
// being a Padding marker that is never independently addressed.
type Value struct {
	kind Kind
	bits uint64
}

// Kind discriminates the Value union.
type Kind uint8

const (
	KindInt     Kind = iota // 32-bit signed integer
	KindLong                // 64-bit signed integer (category 2)
	KindFloat               // 32-bit IEEE 754
	KindDouble              // 64-bit IEEE 754 (category 2)
	KindRef                 // object/array handle, nullable
	KindRetAddr             // jsr/ret return address
	KindPadding             // reserved second slot of a category-2 value
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindRef:
		return "ref"
	case KindRetAddr:
		return "retaddr"
	case KindPadding:
		return "padding"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Ref is an opaque handle into the heap arena. The zero handle is null.
type Ref uint32

// Null is the null reference.
const Null Ref = 0

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// FromInt creates an int value.
func FromInt(n int32) Value {
	return Value{kind: KindInt, bits: uint64(uint32(n))}
}

// FromLong creates a long value.
func FromLong(n int64) Value {
	return Value{kind: KindLong, bits: uint64(n)}
}

// FromFloat creates a float value.
func FromFloat(f float32) Value {
	return Value{kind: KindFloat, bits: uint64(math.Float32bits(f))}
}

// FromDouble creates a double value.
func FromDouble(d float64) Value {
	return Value{kind: KindDouble, bits: math.Float64bits(d)}
}

// FromRef creates a reference value.
func FromRef(r Ref) Value {
	return Value{kind: KindRef, bits: uint64(r)}
}

// FromRetAddr creates a return-address value for jsr/ret.
func FromRetAddr(pc int) Value {
	return Value{kind: KindRetAddr, bits: uint64(pc)}
}

// Padding returns the reserved second slot of a category-2 value.
func Padding() Value {
	return Value{kind: KindPadding}
}

// ---------------------------------------------------------------------------
// Accessors (engine faults on kind mismatch)
// ---------------------------------------------------------------------------

// Kind returns the value's kind tag.
func (v Value) Kind() Kind { return v.kind }

// IsWide returns true for category-2 values (long, double).
func (v Value) IsWide() bool {
	return v.kind == KindLong || v.kind == KindDouble
}

// Int returns the value as an int32. Faults if the kind is not int.
func (v Value) Int() int32 {
	if v.kind != KindInt {
		panic(&EngineFault{Msg: fmt.Sprintf("Value.Int on %s", v.kind)})
	}
	return int32(uint32(v.bits))
}

// Long returns the value as an int64. Faults if the kind is not long.
func (v Value) Long() int64 {
	if v.kind != KindLong {
		panic(&EngineFault{Msg: fmt.Sprintf("Value.Long on %s", v.kind)})
	}
	return int64(v.bits)
}

// Float returns the value as a float32. Faults if the kind is not float.
func (v Value) Float() float32 {
	if v.kind != KindFloat {
		panic(&EngineFault{Msg: fmt.Sprintf("Value.Float on %s", v.kind)})
	}
	return math.Float32frombits(uint32(v.bits))
}

// Double returns the value as a float64. Faults if the kind is not double.
func (v Value) Double() float64 {
	if v.kind != KindDouble {
		panic(&EngineFault{Msg: fmt.Sprintf("Value.Double on %s", v.kind)})
	}
	return math.Float64frombits(v.bits)
}

// Ref returns the value as a heap handle. Faults if the kind is not ref.
func (v Value) Ref() Ref {
	if v.kind != KindRef {
		panic(&EngineFault{Msg: fmt.Sprintf("Value.Ref on %s", v.kind)})
	}
	return Ref(v.bits)
}

// RetAddr returns the value as a jsr return address.
func (v Value) RetAddr() int {
	if v.kind != KindRetAddr {
		panic(&EngineFault{Msg: fmt.Sprintf("Value.RetAddr on %s", v.kind)})
	}
	return int(v.bits)
}

// IsNull returns true if v is a null reference.
func (v Value) IsNull() bool {
	return v.kind == KindRef && Ref(v.bits) == Null
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("int:%d", v.Int())
	case KindLong:
		return fmt.Sprintf("long:%d", v.Long())
	case KindFloat:
		return fmt.Sprintf("float:%g", v.Float())
	case KindDouble:
		return fmt.Sprintf("double:%g", v.Double())
	case KindRef:
		if v.IsNull() {
			return "null"
		}
		return fmt.Sprintf("ref:%d", v.Ref())
	case KindRetAddr:
		return fmt.Sprintf("retaddr:%d", v.RetAddr())
	case KindPadding:
		return "padding"
	}
	return "invalid"
}

// zeroValue returns the default value for a field/element descriptor.
func zeroValue(descriptor string) Value {
	switch descriptor[0] {
	case 'J':
		return FromLong(0)
	case 'F':
		return FromFloat(0)
	case 'D':
		return FromDouble(0)
	case 'L', '[':
		return FromRef(Null)
	default: // B, C, I, S, Z share the int kind
		return FromInt(0)
	}
}
