package vm

import (
	"fmt"
	"strings"
)

// MethodFlags mirrors the access flags the engine cares about.
type MethodFlags uint16

const (
	FlagStatic   MethodFlags = 1 << 0
	FlagNative   MethodFlags = 1 << 1
	FlagAbstract MethodFlags = 1 << 2
)

// ExceptionHandler is one exception-table entry. The range is
// [StartPC, EndPC); CatchType is a class name, or empty for catch-all.
type ExceptionHandler struct {
	StartPC   int
	EndPC     int
	HandlerPC int
	CatchType string
}

// Method is a resolved method: metadata is trusted and consumed read-only.
type Method struct {
	Class      *Class
	Name       string
	Descriptor string
	Flags      MethodFlags

	MaxStack       int
	MaxLocals      int
	Code           []byte
	ExceptionTable []ExceptionHandler

	// Derived at link time.
	ArgSlots   int  // operand-stack slots for declared parameters (no receiver)
	ReturnKind byte // descriptor type char: V I J F D L [ etc.
	selector   int
	native     NativeFunc // bound for native methods
}

// IsStatic reports whether the method is static.
func (m *Method) IsStatic() bool { return m.Flags&FlagStatic != 0 }

// IsNative reports whether the method dispatches to the native bridge.
func (m *Method) IsNative() bool { return m.Flags&FlagNative != 0 }

// IsAbstract reports whether the method has no implementation.
func (m *Method) IsAbstract() bool { return m.Flags&FlagAbstract != 0 }

func (m *Method) String() string {
	return m.Class.Name + "." + m.Name + m.Descriptor
}

// InvokeSlots returns the operand-stack slots an invocation consumes,
// including the receiver for instance methods.
func (m *Method) InvokeSlots() int {
	if m.IsStatic() {
		return m.ArgSlots
	}
	return m.ArgSlots + 1
}

// parseDescriptor computes the argument slot count and return type char of
// a method descriptor like (IJLjava/lang/String;)V. Category-2 parameter
// types count two slots.
func parseDescriptor(desc string) (argSlots int, returnKind byte, err error) {
	if len(desc) < 3 || desc[0] != '(' {
		return 0, 0, fmt.Errorf("malformed method descriptor %q", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		switch desc[i] {
		case 'B', 'C', 'F', 'I', 'S', 'Z':
			argSlots++
			i++
		case 'J', 'D':
			argSlots += 2
			i++
		case 'L':
			end := strings.IndexByte(desc[i:], ';')
			if end < 0 {
				return 0, 0, fmt.Errorf("unterminated class type in descriptor %q", desc)
			}
			argSlots++
			i += end + 1
		case '[':
			j := i
			for j < len(desc) && desc[j] == '[' {
				j++
			}
			if j >= len(desc) {
				return 0, 0, fmt.Errorf("truncated array type in descriptor %q", desc)
			}
			if desc[j] == 'L' {
				end := strings.IndexByte(desc[j:], ';')
				if end < 0 {
					return 0, 0, fmt.Errorf("unterminated class type in descriptor %q", desc)
				}
				j += end
			}
			argSlots++
			i = j + 1
		default:
			return 0, 0, fmt.Errorf("bad type char %q in descriptor %q", desc[i], desc)
		}
	}
	if i >= len(desc)-1 || desc[i] != ')' {
		return 0, 0, fmt.Errorf("malformed method descriptor %q", desc)
	}
	return argSlots, desc[i+1], nil
}

// returnWidth returns the slot width of a return kind (0 for void).
func returnWidth(kind byte) int {
	switch kind {
	case 'V':
		return 0
	case 'J', 'D':
		return 2
	}
	return 1
}
