package vm

import (
	"fmt"

	"github.com/javelin-vm/javelin/classfile"
)

// InitState is the explicit class-initialization state machine. The
// once-only guarantee hangs off this field rather than implicit
// first-touch side effects, so it is independently testable.
type InitState uint8

const (
	StateUninitialized InitState = iota
	StateInitializing
	StateInitialized
	StateFailed
)

func (s InitState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Field is a resolved field with its storage slot assigned at link time.
type Field struct {
	Class      *Class
	Name       string
	Descriptor string
	Static     bool
	Index      int // index into Statics or the instance layout
}

// Class is linked runtime class metadata. Instances reference their class
// and classes reference super/interface classes, so the graph is cyclic;
// the heap side of that graph is handle-based (see Heap) and this side is
// plain pointers owned by the registry for the life of the engine.
type Class struct {
	Name       string
	Superclass *Class
	Interfaces []*Class
	Interface  bool

	// Array classes are synthetic: no pool, no methods of their own.
	Array    bool
	ElemDesc string // element descriptor for array classes

	Pool    []classfile.Constant
	Methods []*Method

	// layout is every instance field, inherited first, declared last;
	// Field.Index is the position within an instance's slot array.
	layout  []*Field
	statics []*Field
	Statics []Value

	vtable *VTable
	State  InitState
}

// Constant returns pool entry idx (1-based, as encoded in bytecode).
func (c *Class) Constant(idx int) (*classfile.Constant, error) {
	if idx < 1 || idx > len(c.Pool) {
		return nil, fmt.Errorf("constant index %d out of range for %s (pool size %d)",
			idx, c.Name, len(c.Pool))
	}
	k := &c.Pool[idx-1]
	if k.Kind == classfile.ConstUnused {
		return nil, fmt.Errorf("constant index %d of %s is a wide-entry placeholder", idx, c.Name)
	}
	return k, nil
}

// IsSubclassOf returns true if c is other or a subclass of other.
func (c *Class) IsSubclassOf(other *Class) bool {
	for cur := c; cur != nil; cur = cur.Superclass {
		if cur == other {
			return true
		}
	}
	return false
}

// Implements returns true if c or any superclass lists iface (directly or
// through a superinterface).
func (c *Class) Implements(iface *Class) bool {
	for cur := c; cur != nil; cur = cur.Superclass {
		for _, in := range cur.Interfaces {
			if in == iface || in.Implements(iface) {
				return true
			}
		}
	}
	return false
}

// InstanceSlots returns the slot count of an instance layout.
func (c *Class) InstanceSlots() int { return len(c.layout) }

// FieldByName resolves an instance field by name, walking the hierarchy.
func (c *Class) FieldByName(name string) *Field {
	for i := len(c.layout) - 1; i >= 0; i-- {
		if c.layout[i].Name == name {
			return c.layout[i]
		}
	}
	return nil
}

// StaticField resolves a static field by name on c or a superclass,
// returning the declaring class alongside the field.
func (c *Class) StaticField(name string) (*Field, *Class) {
	for cur := c; cur != nil; cur = cur.Superclass {
		for _, f := range cur.statics {
			if f.Name == name {
				return f, cur
			}
		}
	}
	return nil, nil
}

// DeclaredMethod finds a method declared by c itself.
func (c *Class) DeclaredMethod(name, descriptor string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Descriptor == descriptor {
			return m
		}
	}
	return nil
}

// ResolveMethod finds a method on c or a superclass (static resolution,
// used by invokestatic/invokespecial and as the first step of dispatch).
func (c *Class) ResolveMethod(name, descriptor string) *Method {
	for cur := c; cur != nil; cur = cur.Superclass {
		if m := cur.DeclaredMethod(name, descriptor); m != nil {
			return m
		}
	}
	return nil
}

// VTable returns the dispatch table built at link time.
func (c *Class) VTable() *VTable { return c.vtable }

func (c *Class) String() string { return c.Name }
