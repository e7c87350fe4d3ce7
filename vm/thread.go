package vm

import (
	"fmt"

	"github.com/google/uuid"
)

// Thread is one logical thread of control: a bounded LIFO frame stack
// driven by the interpreter loop. An engine drives exactly one thread;
// multiple threads are modeled as independent Thread instances sharing
// only the heap and class registry.
type Thread struct {
	ID uuid.UUID

	vm     *VM
	frames []*Frame
	trace  []TraceEntry // unwound frames of the last uncaught throwable
}

// TraceEntry is one unwound frame in an uncaught-throwable report.
type TraceEntry struct {
	Class  string
	Method string
	PC     int
}

func (e TraceEntry) String() string {
	return fmt.Sprintf("at %s.%s (pc=%d)", e.Class, e.Method, e.PC)
}

// NewThread creates a fresh thread on the engine.
func (vm *VM) NewThread() *Thread {
	return &Thread{ID: uuid.New(), vm: vm}
}

func (t *Thread) top() *Frame {
	if len(t.frames) == 0 {
		panic(&EngineFault{Msg: "no frame on call stack"})
	}
	return t.frames[len(t.frames)-1]
}

// Depth returns the current call-stack depth in frames.
func (t *Thread) Depth() int { return len(t.frames) }

// Trace returns the unwound frames of the last uncaught throwable.
func (t *Thread) Trace() []TraceEntry { return t.trace }

// pushFrame creates and pushes the activation for a method call. It
// raises a stack-overflow condition (a JVM throwable, not an engine
// fault) when the configured depth bound would be exceeded.
func (t *Thread) pushFrame(m *Method, argSlots []Value) *Condition {
	if len(t.frames) >= t.vm.MaxFrames {
		return &Condition{ExStackOverflow,
			fmt.Sprintf("call depth %d exceeds limit invoking %s", len(t.frames), m)}
	}
	f := newFrame(m)
	f.storeArgs(argSlots)
	t.frames = append(t.frames, f)
	return nil
}

func (t *Thread) popFrame() *Frame {
	f := t.top()
	t.frames[len(t.frames)-1] = nil
	t.frames = t.frames[:len(t.frames)-1]
	return f
}

// Call executes a method to completion with the given argument slots.
// It returns the result value (meaningful only for non-void methods) and
// the uncaught throwable's handle, Null when the call completed normally.
func (t *Thread) Call(m *Method, argSlots []Value) (Value, Ref) {
	if m.IsNative() {
		return t.callNative(m, argSlots)
	}
	base := len(t.frames)
	if cond := t.pushFrame(m, argSlots); cond != nil {
		return Value{}, t.vm.materialize(cond)
	}
	return t.run(base)
}

// callNative dispatches through the native bridge in place of bytecode.
func (t *Thread) callNative(m *Method, argSlots []Value) (Value, Ref) {
	if m.native == nil {
		return Value{}, t.vm.NewThrowable(ExUnsatisfiedLink, m.String())
	}
	return m.native(t, argSlots)
}
