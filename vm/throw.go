package vm

// deliver routes a pending throwable to the nearest matching handler,
// popping frames from the raising one outward but never below floor (the
// base of the current activation; an unhandled throwable propagates to
// the activation's caller instead). On a match the target frame's stack
// is cleared, the throwable handle is pushed, and control resumes at the
// handler. Returns false when no frame at or above floor handles it.
func (t *Thread) deliver(thrown Ref, floor int) bool {
	cls := t.vm.Heap.ClassOf(thrown)
	if cls == nil {
		panic(&EngineFault{Msg: "deliver of null or dangling throwable handle"})
	}

	var unwound []TraceEntry
	for len(t.frames) > floor {
		f := t.top()
		if pc, ok := t.handlerFor(f, cls); ok {
			f.ClearStack()
			f.PushRef(thrown)
			f.PC = pc
			t.trace = nil
			return true
		}
		unwound = append(unwound, TraceEntry{f.Class.Name, f.Method.Name, f.PC})
		t.popFrame()
	}
	t.trace = append(t.trace, unwound...)
	return false
}

// handlerFor searches a frame's exception table in declaration order for
// the first entry covering the raising instruction whose catch type is a
// superclass of (or exactly) the thrown class. An empty catch type is a
// catch-all. Ranges are half-open: [StartPC, EndPC).
func (t *Thread) handlerFor(f *Frame, thrownClass *Class) (int, bool) {
	for _, h := range f.Method.ExceptionTable {
		if f.PC < h.StartPC || f.PC >= h.EndPC {
			continue
		}
		if h.CatchType == "" {
			return h.HandlerPC, true
		}
		catch, err := t.vm.Registry.Resolve(h.CatchType)
		if err != nil {
			// An unloadable catch type cannot match anything thrown.
			continue
		}
		if thrownClass.IsSubclassOf(catch) {
			return h.HandlerPC, true
		}
	}
	return 0, false
}

// raise materializes a condition as a throwable for delivery.
func (t *Thread) raise(cond *Condition) Ref {
	return t.vm.materialize(cond)
}
