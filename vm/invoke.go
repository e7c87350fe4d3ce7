package vm

import "github.com/javelin-vm/javelin/classfile"

// Invocation: each invoke* helper resolves the callee, transfers argument
// slots from the invoker's operand stack, and either pushes a frame
// (bytecode methods) or runs the native bridge in place. Each returns the
// pending throwable's handle, Null on success.

// resolveCallee resolves a method reference against the registry.
func (t *Thread) resolveCallee(ref *classfile.Constant) (*Method, Ref) {
	cls, err := t.vm.Registry.Resolve(ref.ClassName)
	if err != nil {
		return nil, t.raise(&Condition{ExNoClassDef, ref.ClassName})
	}
	m := cls.ResolveMethod(ref.Name, ref.Descriptor)
	if m == nil {
		m = t.vm.defaultMethod(cls, ref.Name, ref.Descriptor)
	}
	if m == nil {
		return nil, t.raise(&Condition{ExNoSuchMethod,
			ref.ClassName + "." + ref.Name + ref.Descriptor})
	}
	return m, Null
}

// dispatch runs a selected method with argument slots already popped.
func (t *Thread) dispatch(m *Method, argSlots []Value) Ref {
	if m.IsNative() {
		result, pend := t.callNative(m, argSlots)
		if pend != Null {
			return pend
		}
		if m.ReturnKind != 'V' {
			t.top().Push(result)
		}
		return Null
	}
	if m.IsAbstract() {
		return t.raise(&Condition{ExAbstractMethod, m.String()})
	}
	if cond := t.pushFrame(m, argSlots); cond != nil {
		return t.raise(cond)
	}
	return Null
}

// invokeStatic resolves and runs a static method. The declaring class is
// initialized first; a throwable escaping <clinit> preempts the call.
func (t *Thread) invokeStatic(ref *classfile.Constant) Ref {
	m, pend := t.resolveCallee(ref)
	if pend != Null {
		return pend
	}
	if !m.IsStatic() {
		return t.raise(&Condition{ExIncompatibleClass, "invokestatic of instance method " + m.String()})
	}
	if pend := t.vm.EnsureInitialized(t, m.Class); pend != Null {
		return pend
	}
	return t.dispatch(m, t.top().popSlots(m.ArgSlots))
}

// invokeSpecial runs the statically resolved method: constructors,
// superclass calls, and other non-virtual instance calls.
func (t *Thread) invokeSpecial(ref *classfile.Constant) Ref {
	m, pend := t.resolveCallee(ref)
	if pend != Null {
		return pend
	}
	if m.IsStatic() {
		return t.raise(&Condition{ExIncompatibleClass, "invokespecial of static method " + m.String()})
	}
	args := t.top().popSlots(m.InvokeSlots())
	if args[0].Ref() == Null {
		return t.raise(&Condition{ExNullPointer, "invokespecial " + m.String() + " on null"})
	}
	return t.dispatch(m, args)
}

// invokeVirtual selects the override by the receiver's runtime class,
// through the dispatch table chain built at link time.
func (t *Thread) invokeVirtual(ref *classfile.Constant) Ref {
	m, pend := t.resolveCallee(ref)
	if pend != Null {
		return pend
	}
	if m.IsStatic() {
		return t.raise(&Condition{ExIncompatibleClass, "invokevirtual of static method " + m.String()})
	}
	args := t.top().popSlots(m.InvokeSlots())
	receiver := args[0].Ref()
	if receiver == Null {
		return t.raise(&Condition{ExNullPointer, "invokevirtual " + m.String() + " on null"})
	}
	runtime := t.vm.Heap.ClassOf(receiver)
	target := runtime.VTable().Lookup(m.selector)
	if target == nil {
		target = m
	}
	return t.dispatch(target, args)
}

// invokeInterface resolves against the interface, then selects by the
// receiver's runtime class like invokevirtual, falling back to an
// interface default method when no class in the chain implements it.
func (t *Thread) invokeInterface(ref *classfile.Constant) Ref {
	iface, err := t.vm.Registry.Resolve(ref.ClassName)
	if err != nil {
		return t.raise(&Condition{ExNoClassDef, ref.ClassName})
	}
	resolved := t.vm.interfaceMethod(iface, ref.Name, ref.Descriptor)
	if resolved == nil {
		return t.raise(&Condition{ExNoSuchMethod,
			ref.ClassName + "." + ref.Name + ref.Descriptor})
	}

	args := t.top().popSlots(resolved.InvokeSlots())
	receiver := args[0].Ref()
	if receiver == Null {
		return t.raise(&Condition{ExNullPointer, "invokeinterface " + resolved.String() + " on null"})
	}
	runtime := t.vm.Heap.ClassOf(receiver)
	if !runtime.Implements(iface) && !runtime.IsSubclassOf(iface) {
		return t.raise(&Condition{ExIncompatibleClass,
			runtime.Name + " does not implement " + iface.Name})
	}
	target := runtime.VTable().Lookup(resolved.selector)
	if target == nil {
		target = t.vm.defaultMethod(runtime, ref.Name, ref.Descriptor)
	}
	if target == nil || target.IsAbstract() {
		return t.raise(&Condition{ExAbstractMethod,
			runtime.Name + "." + ref.Name + ref.Descriptor})
	}
	return t.dispatch(target, args)
}
