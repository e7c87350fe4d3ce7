package vm

import "fmt"

// Frame is one method activation: program counter, local variable slots,
// and a bounded operand stack, plus the owning method and its class's
// constant pool. Frames are created on invocation, destroyed on return or
// unwind, and exclusively owned by their call-stack slot.
//
// Category-2 values occupy two consecutive slots in both locals and the
// operand stack; the second slot holds a Padding marker that must never be
// addressed on its own. Slot bookkeeping violations are engine faults.
type Frame struct {
	Method *Method
	Class  *Class
	PC     int

	// resume is where this frame continues once a callee frame it pushed
	// returns. PC itself stays on the invoke instruction while the callee
	// runs, so handler ranges and traces see the invoke's own address.
	resume int

	locals []Value
	stack  []Value // one entry per slot; a wide value is [value, padding]
}

func newFrame(m *Method) *Frame {
	locals := make([]Value, m.MaxLocals)
	for i := range locals {
		locals[i] = Padding()
	}
	return &Frame{
		Method: m,
		Class:  m.Class,
		locals: locals,
		stack:  make([]Value, 0, m.MaxStack),
	}
}

func (f *Frame) fault(format string, args ...any) {
	panic(&EngineFault{
		Class:  f.Class.Name,
		Method: f.Method.Name,
		PC:     f.PC,
		Msg:    fmt.Sprintf(format, args...),
	})
}

// ---------------------------------------------------------------------------
// Operand stack
// ---------------------------------------------------------------------------

// Push pushes a value, occupying two slots for category-2 kinds.
func (f *Frame) Push(v Value) {
	width := 1
	if v.IsWide() {
		width = 2
	}
	if len(f.stack)+width > f.Method.MaxStack {
		f.fault("operand stack overflow (max_stack=%d)", f.Method.MaxStack)
	}
	f.stack = append(f.stack, v)
	if width == 2 {
		f.stack = append(f.stack, Padding())
	}
}

// Pop pops a category-1 value.
func (f *Frame) Pop() Value {
	v := f.popSlot()
	if v.Kind() == KindPadding || v.IsWide() {
		f.fault("category mismatch: popped %s as category-1", v.Kind())
	}
	return v
}

// PopWide pops a category-2 value (its padding slot first).
func (f *Frame) PopWide() Value {
	pad := f.popSlot()
	if pad.Kind() != KindPadding {
		f.fault("category mismatch: expected padding slot, got %s", pad.Kind())
	}
	v := f.popSlot()
	if !v.IsWide() {
		f.fault("category mismatch: popped %s as category-2", v.Kind())
	}
	return v
}

// PopValue pops a value of either category, inspecting the top slot.
func (f *Frame) PopValue() Value {
	if len(f.stack) == 0 {
		f.fault("operand stack underflow")
	}
	if f.stack[len(f.stack)-1].Kind() == KindPadding {
		return f.PopWide()
	}
	return f.Pop()
}

// PopInt pops an int operand.
func (f *Frame) PopInt() int32 { return f.Pop().Int() }

// PopLong pops a long operand.
func (f *Frame) PopLong() int64 { return f.PopWide().Long() }

// PopFloat pops a float operand.
func (f *Frame) PopFloat() float32 { return f.Pop().Float() }

// PopDouble pops a double operand.
func (f *Frame) PopDouble() float64 { return f.PopWide().Double() }

// PopRef pops a reference operand.
func (f *Frame) PopRef() Ref { return f.Pop().Ref() }

// PushInt pushes an int.
func (f *Frame) PushInt(n int32) { f.Push(FromInt(n)) }

// PushLong pushes a long.
func (f *Frame) PushLong(n int64) { f.Push(FromLong(n)) }

// PushFloat pushes a float.
func (f *Frame) PushFloat(x float32) { f.Push(FromFloat(x)) }

// PushDouble pushes a double.
func (f *Frame) PushDouble(x float64) { f.Push(FromDouble(x)) }

// PushRef pushes a reference.
func (f *Frame) PushRef(r Ref) { f.Push(FromRef(r)) }

// StackDepth returns the operand stack depth in slots.
func (f *Frame) StackDepth() int { return len(f.stack) }

// ClearStack discards the whole operand stack (handler entry).
func (f *Frame) ClearStack() { f.stack = f.stack[:0] }

// popSlot removes one raw slot. Used by the dup/pop/swap family, which is
// specified in slots rather than values.
func (f *Frame) popSlot() Value {
	if len(f.stack) == 0 {
		f.fault("operand stack underflow")
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *Frame) pushSlot(v Value) {
	if len(f.stack) >= f.Method.MaxStack {
		f.fault("operand stack overflow (max_stack=%d)", f.Method.MaxStack)
	}
	f.stack = append(f.stack, v)
}

// popSlots removes the top n slots and returns them in stack order
// (deepest first). Used to transfer argument slots into a callee frame.
func (f *Frame) popSlots(n int) []Value {
	if len(f.stack) < n {
		f.fault("operand stack underflow: need %d slots, have %d", n, len(f.stack))
	}
	start := len(f.stack) - n
	out := make([]Value, n)
	copy(out, f.stack[start:])
	f.stack = f.stack[:start]
	return out
}

// peekSlot returns the slot at depth d (0 = top) without popping.
func (f *Frame) peekSlot(d int) Value {
	if len(f.stack) <= d {
		f.fault("operand stack underflow")
	}
	return f.stack[len(f.stack)-1-d]
}

// ---------------------------------------------------------------------------
// Local variables
// ---------------------------------------------------------------------------

// Local reads local slot i as a category-1 value.
func (f *Frame) Local(i int) Value {
	v := f.localAt(i)
	if v.Kind() == KindPadding || v.IsWide() {
		f.fault("category mismatch: local %d holds %s, read as category-1", i, v.Kind())
	}
	return v
}

// LocalWide reads local slots i,i+1 as a category-2 value.
func (f *Frame) LocalWide(i int) Value {
	v := f.localAt(i)
	if !v.IsWide() {
		f.fault("category mismatch: local %d holds %s, read as category-2", i, v.Kind())
	}
	return v
}

// SetLocal writes a value into local slot i, reserving slot i+1 for
// category-2 kinds. A write invalidates any wide value whose pair the
// slot previously belonged to.
func (f *Frame) SetLocal(i int, v Value) {
	if i < 0 || i >= len(f.locals) {
		f.fault("local index %d out of range (max_locals=%d)", i, len(f.locals))
	}
	// Writing over the second slot of a wide pair kills the pair.
	if i > 0 && f.locals[i].Kind() == KindPadding && f.locals[i-1].IsWide() {
		f.locals[i-1] = Padding()
	}
	if f.locals[i].IsWide() && i+1 < len(f.locals) {
		f.locals[i+1] = Padding()
	}
	f.locals[i] = v
	if v.IsWide() {
		if i+1 >= len(f.locals) {
			f.fault("category-2 local %d has no second slot (max_locals=%d)", i, len(f.locals))
		}
		f.locals[i+1] = Padding()
	}
}

func (f *Frame) localAt(i int) Value {
	if i < 0 || i >= len(f.locals) {
		f.fault("local index %d out of range (max_locals=%d)", i, len(f.locals))
	}
	return f.locals[i]
}

// storeArgs lays argument slots into locals starting at index 0, exactly
// as they sat on the invoker's operand stack.
func (f *Frame) storeArgs(slots []Value) {
	if len(slots) > len(f.locals) {
		f.fault("argument slots (%d) exceed max_locals (%d)", len(slots), len(f.locals))
	}
	copy(f.locals, slots)
}
