package vm

import (
	"fmt"
	"sync"
)

// Condition is a runtime-condition failure destined to become a JVM
// throwable: the collaborator that detects it (heap, resolver) reports
// the throwable class and message, and the engine materializes the
// object and runs the normal unwind path.
type Condition struct {
	Class string
	Msg   string
}

func (c *Condition) Error() string {
	return c.Class + ": " + c.Msg
}

// Throwable class names for engine-raised conditions.
const (
	ExArithmetic        = "java/lang/ArithmeticException"
	ExNullPointer       = "java/lang/NullPointerException"
	ExArrayIndex        = "java/lang/ArrayIndexOutOfBoundsException"
	ExArrayStore        = "java/lang/ArrayStoreException"
	ExClassCast         = "java/lang/ClassCastException"
	ExNegativeArraySize = "java/lang/NegativeArraySizeException"
	ExStackOverflow     = "java/lang/StackOverflowError"
	ExNoClassDef        = "java/lang/NoClassDefFoundError"
	ExNoSuchMethod      = "java/lang/NoSuchMethodError"
	ExNoSuchField       = "java/lang/NoSuchFieldError"
	ExAbstractMethod    = "java/lang/AbstractMethodError"
	ExUnsatisfiedLink   = "java/lang/UnsatisfiedLinkError"
	ExInitializerError  = "java/lang/ExceptionInInitializerError"
	ExIncompatibleClass = "java/lang/IncompatibleClassChangeError"
)

// Heap is the object/array arena. The engine only ever holds opaque Ref
// handles into it, so cyclic object graphs carry no ownership ambiguity.
// Handle 0 is null and never allocated. The arena is safe for use by
// several engine instances sharing one heap.
type Heap struct {
	mu    sync.RWMutex
	cells []heapCell
}

type heapCell struct {
	class *Class  // instance class, or the synthetic array class
	slots []Value // field layout slots, or array elements
}

// NewHeap creates an empty heap with the null handle reserved.
func NewHeap() *Heap {
	return &Heap{cells: make([]heapCell, 1)}
}

// AllocateInstance allocates a zeroed instance of a class.
func (h *Heap) AllocateInstance(c *Class) Ref {
	slots := make([]Value, c.InstanceSlots())
	for i, f := range c.layout {
		slots[i] = zeroValue(f.Descriptor)
	}
	return h.store(c, slots)
}

// AllocateArray allocates a zeroed array of the given synthetic array
// class. Fails with a negative-size condition when length < 0.
func (h *Heap) AllocateArray(arrayClass *Class, length int32) (Ref, *Condition) {
	if length < 0 {
		return Null, &Condition{ExNegativeArraySize, fmt.Sprintf("%d", length)}
	}
	slots := make([]Value, length)
	zero := zeroValue(arrayClass.ElemDesc)
	for i := range slots {
		slots[i] = zero
	}
	return h.store(arrayClass, slots), nil
}

func (h *Heap) store(c *Class, slots []Value) Ref {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cells = append(h.cells, heapCell{class: c, slots: slots})
	return Ref(len(h.cells) - 1)
}

// ClassOf returns the runtime class of a handle, or nil for null.
func (h *Heap) ClassOf(r Ref) *Class {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r == Null || int(r) < 0 || int(r) >= len(h.cells) {
		return nil
	}
	return h.cells[r].class
}

// cell returns the cell behind a non-null handle. The caller holds the
// lock. A handle outside the arena is engine corruption, not a JVM
// condition.
func (h *Heap) cell(r Ref) *heapCell {
	if int(r) <= 0 || int(r) >= len(h.cells) {
		panic(&EngineFault{Msg: fmt.Sprintf("dangling heap handle %d (arena size %d)", r, len(h.cells))})
	}
	return &h.cells[r]
}

// GetField reads an instance field.
func (h *Heap) GetField(r Ref, f *Field) (Value, *Condition) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r == Null {
		return Value{}, &Condition{ExNullPointer, "field read of " + f.Name + " on null"}
	}
	return h.cell(r).slots[f.Index], nil
}

// PutField writes an instance field.
func (h *Heap) PutField(r Ref, f *Field, v Value) *Condition {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r == Null {
		return &Condition{ExNullPointer, "field write of " + f.Name + " on null"}
	}
	h.cell(r).slots[f.Index] = v
	return nil
}

// ArrayLength returns the element count of an array.
func (h *Heap) ArrayLength(r Ref) (int32, *Condition) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r == Null {
		return 0, &Condition{ExNullPointer, "arraylength on null"}
	}
	return int32(len(h.cell(r).slots)), nil
}

// ArrayGet reads an array element with null and bounds checks.
func (h *Heap) ArrayGet(r Ref, idx int32) (Value, *Condition) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r == Null {
		return Value{}, &Condition{ExNullPointer, "array read on null"}
	}
	slots := h.cell(r).slots
	if idx < 0 || int(idx) >= len(slots) {
		return Value{}, &Condition{ExArrayIndex,
			fmt.Sprintf("index %d out of bounds for length %d", idx, len(slots))}
	}
	return slots[idx], nil
}

// ArrayPut writes an array element with null and bounds checks.
func (h *Heap) ArrayPut(r Ref, idx int32, v Value) *Condition {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r == Null {
		return &Condition{ExNullPointer, "array write on null"}
	}
	slots := h.cell(r).slots
	if idx < 0 || int(idx) >= len(slots) {
		return &Condition{ExArrayIndex,
			fmt.Sprintf("index %d out of bounds for length %d", idx, len(slots))}
	}
	slots[idx] = v
	return nil
}
