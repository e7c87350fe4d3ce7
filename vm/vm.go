package vm

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
)

// DefaultMaxFrames bounds call-stack depth unless configured otherwise.
const DefaultMaxFrames = 1024

// VM is the execution engine: class registry, heap, selector table and
// native bridge, plus the interned-string and class-mirror caches. One VM
// hosts any number of threads; construction wires the collaborators
// together and installs the bootstrap classes.
type VM struct {
	Selectors *SelectorTable
	Registry  *Registry
	Heap      *Heap
	Natives   *NativeSet

	MaxFrames int
	Stdout    io.Writer

	log commonlog.Logger

	mu      sync.Mutex
	strings map[string]Ref
	mirrors map[string]Ref
	mirror  map[Ref]*Class
}

// New creates an engine backed by the given class source.
func New(source Source) *VM {
	selectors := NewSelectorTable()
	natives := builtinNatives()
	vm := &VM{
		Selectors: selectors,
		Registry:  NewRegistry(source, selectors, natives),
		Heap:      NewHeap(),
		Natives:   natives,
		MaxFrames: DefaultMaxFrames,
		Stdout:    os.Stdout,
		log:       commonlog.GetLogger("javelin.vm"),
		strings:   make(map[string]Ref),
		mirrors:   make(map[string]Ref),
		mirror:    make(map[Ref]*Class),
	}
	return vm
}

// UncaughtThrowable reports a throwable that escaped the outermost frame.
type UncaughtThrowable struct {
	ClassName string
	Message   string
	Trace     []TraceEntry
}

func (u *UncaughtThrowable) Error() string {
	if u.Message == "" {
		return u.ClassName
	}
	return u.ClassName + ": " + u.Message
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// RunMain resolves a class, initializes it, and runs its
// main([Ljava/lang/String;)V with the given arguments. A throwable that
// escapes main is returned as *UncaughtThrowable; engine faults surface
// as errors rather than panics.
func (vm *VM) RunMain(className string, args []string) (err error) {
	defer vm.guard(&err)

	cls, rerr := vm.Registry.Resolve(className)
	if rerr != nil {
		return rerr
	}
	m := cls.DeclaredMethod("main", "([Ljava/lang/String;)V")
	if m == nil || !m.IsStatic() {
		return fmt.Errorf("class %s has no static main([Ljava/lang/String;)V", className)
	}

	t := vm.NewThread()
	if pend := vm.EnsureInitialized(t, cls); pend != Null {
		return vm.uncaught(t, pend)
	}

	argArr, uerr := vm.newStringArray(args)
	if uerr != nil {
		return uerr
	}
	_, pend := t.Call(m, []Value{FromRef(argArr)})
	if pend != Null {
		return vm.uncaught(t, pend)
	}
	return nil
}

// Call runs a method to completion on a fresh thread, converting an
// uncaught throwable or engine fault into an error. Intended for
// embedders and tests; bytecode-to-bytecode calls go through the
// interpreter's own invoke path.
func (vm *VM) Call(m *Method, args []Value) (result Value, err error) {
	defer vm.guard(&err)
	t := vm.NewThread()
	result, pend := t.Call(m, args)
	if pend != Null {
		return Value{}, vm.uncaught(t, pend)
	}
	return result, nil
}

func (vm *VM) uncaught(t *Thread, thrown Ref) *UncaughtThrowable {
	cls := vm.Heap.ClassOf(thrown)
	name := "java/lang/Throwable"
	if cls != nil {
		name = cls.Name
	}
	u := &UncaughtThrowable{
		ClassName: name,
		Message:   vm.ThrowableMessage(thrown),
		Trace:     append([]TraceEntry(nil), t.Trace()...),
	}
	vm.log.Errorf("uncaught %s in thread %s", u.Error(), t.ID)
	return u
}

// guard converts an engine fault escaping an entry point into an error.
// Only *EngineFault is recovered; anything else is a genuine bug and
// keeps panicking.
func (vm *VM) guard(err *error) {
	if r := recover(); r != nil {
		fault, ok := r.(*EngineFault)
		if !ok {
			panic(r)
		}
		vm.log.Criticalf("engine fault: %v", fault)
		*err = fault
	}
}

// ---------------------------------------------------------------------------
// Class initialization
// ---------------------------------------------------------------------------

// EnsureInitialized drives the class-initialization state machine:
// superclass first, then <clinit> exactly once, run on the triggering
// thread so initializer frames appear in its trace when they unwind. A
// throwable escaping <clinit> latches the Failed state; later triggers
// report the prior failure without re-running anything. Returns the
// pending throwable handle, Null on success.
func (vm *VM) EnsureInitialized(t *Thread, c *Class) Ref {
	switch c.State {
	case StateInitialized, StateInitializing:
		return Null
	case StateFailed:
		return vm.NewThrowable(ExNoClassDef, "could not initialize class "+c.Name)
	}

	if c.Superclass != nil {
		if pend := vm.EnsureInitialized(t, c.Superclass); pend != Null {
			c.State = StateFailed
			return pend
		}
	}

	c.State = StateInitializing
	clinit := c.DeclaredMethod("<clinit>", "()V")
	if clinit == nil {
		c.State = StateInitialized
		return Null
	}

	vm.log.Debugf("initializing %s", c.Name)
	_, pend := t.Call(clinit, nil)
	if pend != Null {
		c.State = StateFailed
		return vm.wrapInitFailure(pend)
	}
	c.State = StateInitialized
	return Null
}

// wrapInitFailure applies the <clinit> escape rule: Error and its
// subclasses propagate as-is, anything else is wrapped in
// ExceptionInInitializerError.
func (vm *VM) wrapInitFailure(thrown Ref) Ref {
	thrownClass := vm.Heap.ClassOf(thrown)
	if errCls := vm.Registry.Lookup("java/lang/Error"); errCls != nil && thrownClass.IsSubclassOf(errCls) {
		return thrown
	}
	return vm.NewThrowable(ExInitializerError, thrownClass.Name)
}

// ---------------------------------------------------------------------------
// Throwables
// ---------------------------------------------------------------------------

// NewThrowable allocates a throwable of the named class with a detail
// message, without running its constructor.
func (vm *VM) NewThrowable(className, msg string) Ref {
	return vm.materialize(&Condition{className, msg})
}

// materialize turns a condition into a throwable object. The condition
// classes are all bootstrap classes, so resolution cannot fail for
// engine-raised conditions; an unknown class degrades to the root
// throwable rather than faulting.
func (vm *VM) materialize(cond *Condition) Ref {
	cls, err := vm.Registry.Resolve(cond.Class)
	if err != nil {
		vm.log.Warningf("throwable class %s unavailable, using java/lang/Throwable", cond.Class)
		cls, err = vm.Registry.Resolve("java/lang/Throwable")
		if err != nil {
			panic(&EngineFault{Msg: "bootstrap throwable class missing"})
		}
	}
	r := vm.Heap.AllocateInstance(cls)
	if cond.Msg != "" {
		if field := cls.FieldByName("detailMessage"); field != nil {
			vm.Heap.PutField(r, field, FromRef(vm.InternString(cond.Msg)))
		}
	}
	return r
}

// ThrowableMessage reads a throwable's detail message, "" if unset.
func (vm *VM) ThrowableMessage(r Ref) string {
	cls := vm.Heap.ClassOf(r)
	if cls == nil {
		return ""
	}
	field := cls.FieldByName("detailMessage")
	if field == nil {
		return ""
	}
	v, cond := vm.Heap.GetField(r, field)
	if cond != nil || v.Kind() != KindRef {
		return ""
	}
	s, _ := vm.GoString(v.Ref())
	return s
}

// ---------------------------------------------------------------------------
// Strings and mirrors
// ---------------------------------------------------------------------------

// InternString returns the canonical String object for a Go string,
// allocating it on first use. Identical literals share one object, so
// reference equality works for interned strings.
func (vm *VM) InternString(s string) Ref {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if r, ok := vm.strings[s]; ok {
		return r
	}

	strCls, err := vm.Registry.Resolve("java/lang/String")
	if err != nil {
		panic(&EngineFault{Msg: "bootstrap class java/lang/String missing"})
	}
	arrCls, err := vm.Registry.ArrayClass("[B")
	if err != nil {
		panic(&EngineFault{Msg: "array class [B unavailable"})
	}

	bytes := []byte(s)
	arr, cond := vm.Heap.AllocateArray(arrCls, int32(len(bytes)))
	if cond != nil {
		panic(&EngineFault{Msg: cond.Error()})
	}
	for i, b := range bytes {
		vm.Heap.ArrayPut(arr, int32(i), FromInt(int32(int8(b))))
	}

	r := vm.Heap.AllocateInstance(strCls)
	vm.Heap.PutField(r, strCls.FieldByName("value"), FromRef(arr))
	vm.strings[s] = r
	return r
}

// GoString reads a String object's bytes back into a Go string.
func (vm *VM) GoString(r Ref) (string, bool) {
	cls := vm.Heap.ClassOf(r)
	if cls == nil || cls.Name != "java/lang/String" {
		return "", false
	}
	v, cond := vm.Heap.GetField(r, cls.FieldByName("value"))
	if cond != nil {
		return "", false
	}
	arr := v.Ref()
	n, cond := vm.Heap.ArrayLength(arr)
	if cond != nil {
		return "", false
	}
	bytes := make([]byte, n)
	for i := int32(0); i < n; i++ {
		ev, _ := vm.Heap.ArrayGet(arr, i)
		bytes[i] = byte(ev.Int())
	}
	return string(bytes), true
}

// MirrorFor returns the java/lang/Class mirror object for a class or
// array descriptor name, creating it on first use.
func (vm *VM) MirrorFor(name string) (Ref, *Condition) {
	cls, err := vm.ResolveAny(name)
	if err != nil {
		return Null, &Condition{ExNoClassDef, name}
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if r, ok := vm.mirrors[cls.Name]; ok {
		return r, nil
	}
	mirrorCls, err := vm.Registry.Resolve("java/lang/Class")
	if err != nil {
		panic(&EngineFault{Msg: "bootstrap class java/lang/Class missing"})
	}
	r := vm.Heap.AllocateInstance(mirrorCls)
	vm.mirrors[cls.Name] = r
	vm.mirror[r] = cls
	return r, nil
}

// MirroredClass returns the class a mirror object reflects, or nil.
func (vm *VM) MirroredClass(r Ref) *Class {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.mirror[r]
}

// newStringArray builds a [Ljava/lang/String; of interned strings.
func (vm *VM) newStringArray(elems []string) (Ref, error) {
	arrCls, err := vm.Registry.ArrayClass("[Ljava/lang/String;")
	if err != nil {
		return Null, err
	}
	arr, cond := vm.Heap.AllocateArray(arrCls, int32(len(elems)))
	if cond != nil {
		return Null, cond
	}
	for i, s := range elems {
		vm.Heap.ArrayPut(arr, int32(i), FromRef(vm.InternString(s)))
	}
	return arr, nil
}

// ---------------------------------------------------------------------------
// Assignability
// ---------------------------------------------------------------------------

// ResolveAny resolves a plain class name or an array descriptor.
func (vm *VM) ResolveAny(name string) (*Class, error) {
	if len(name) > 0 && name[0] == '[' {
		return vm.Registry.ArrayClass(name)
	}
	return vm.Registry.Resolve(name)
}

// isInstance reports whether the object behind r is assignable to target.
// Null is an instance of nothing (instanceof semantics; checkcast handles
// null before asking).
func (vm *VM) isInstance(r Ref, target *Class) bool {
	if r == Null {
		return false
	}
	return vm.isAssignable(vm.Heap.ClassOf(r), target)
}

// isAssignable implements the runtime subtyping relation, including
// array covariance for reference element types.
func (vm *VM) isAssignable(src, target *Class) bool {
	if src == target {
		return true
	}
	if src.Array {
		if !target.Array {
			// Arrays are Objects; the marker interfaces are the only
			// interfaces they carry.
			return target.Name == "java/lang/Object" ||
				target.Name == "java/lang/Cloneable" ||
				target.Name == "java/io/Serializable"
		}
		if src.ElemDesc == target.ElemDesc {
			return true
		}
		se, serr := vm.elementClass(src)
		te, terr := vm.elementClass(target)
		if serr != nil || terr != nil || se == nil || te == nil {
			return false
		}
		return vm.isAssignable(se, te)
	}
	if target.Array {
		return false
	}
	return src.IsSubclassOf(target) || src.Implements(target)
}

// elementClass resolves an array class's element class; nil for
// primitive elements.
func (vm *VM) elementClass(arr *Class) (*Class, error) {
	desc := arr.ElemDesc
	switch desc[0] {
	case 'L':
		return vm.Registry.Resolve(desc[1 : len(desc)-1])
	case '[':
		return vm.Registry.ArrayClass(desc)
	}
	return nil, nil
}

// checkArrayStore enforces aastore's runtime element-type check.
func (vm *VM) checkArrayStore(arr, val Ref) *Condition {
	if arr == Null || val == Null {
		return nil
	}
	arrCls := vm.Heap.ClassOf(arr)
	if arrCls == nil || !arrCls.Array {
		panic(&EngineFault{Msg: "aastore on non-array object"})
	}
	elem, err := vm.elementClass(arrCls)
	if err != nil || elem == nil {
		return &Condition{ExArrayStore, arrCls.Name}
	}
	valCls := vm.Heap.ClassOf(val)
	if !vm.isAssignable(valCls, elem) {
		return &Condition{ExArrayStore,
			valCls.Name + " into " + arrCls.Name}
	}
	return nil
}

// allocateMulti allocates a multi-dimensional array from an outermost
// descriptor and per-dimension counts, filling nested arrays depth-first.
// A zero count stops nesting at that level, leaving null elements below.
func (vm *VM) allocateMulti(descriptor string, counts []int32) (Ref, *Condition) {
	arrCls, err := vm.Registry.ArrayClass(descriptor)
	if err != nil {
		return Null, &Condition{ExNoClassDef, descriptor}
	}
	r, cond := vm.Heap.AllocateArray(arrCls, counts[0])
	if cond != nil {
		return Null, cond
	}
	if len(counts) > 1 && counts[0] > 0 {
		for i := int32(0); i < counts[0]; i++ {
			inner, cond := vm.allocateMulti(descriptor[1:], counts[1:])
			if cond != nil {
				return Null, cond
			}
			vm.Heap.ArrayPut(r, i, FromRef(inner))
		}
	}
	return r, nil
}

// ---------------------------------------------------------------------------
// Interface method resolution
// ---------------------------------------------------------------------------

// interfaceMethod resolves a method against an interface: the interface
// itself, its superinterfaces, then Object.
func (vm *VM) interfaceMethod(iface *Class, name, desc string) *Method {
	if m := iface.DeclaredMethod(name, desc); m != nil {
		return m
	}
	for _, super := range iface.Interfaces {
		if m := vm.interfaceMethod(super, name, desc); m != nil {
			return m
		}
	}
	if iface.Superclass != nil {
		return iface.Superclass.ResolveMethod(name, desc)
	}
	return nil
}

// defaultMethod searches the interfaces of a class hierarchy for a
// non-abstract declaration, the fallback when no class implements an
// interface-dispatched selector.
func (vm *VM) defaultMethod(cls *Class, name, desc string) *Method {
	for cur := cls; cur != nil; cur = cur.Superclass {
		for _, iface := range cur.Interfaces {
			if m := vm.searchDefault(iface, name, desc); m != nil {
				return m
			}
		}
	}
	return nil
}

func (vm *VM) searchDefault(iface *Class, name, desc string) *Method {
	if m := iface.DeclaredMethod(name, desc); m != nil && !m.IsAbstract() {
		return m
	}
	for _, super := range iface.Interfaces {
		if m := vm.searchDefault(super, name, desc); m != nil {
			return m
		}
	}
	return nil
}

// DescribeRef formats a reference for diagnostics.
func (vm *VM) DescribeRef(r Ref) string {
	if r == Null {
		return "null"
	}
	cls := vm.Heap.ClassOf(r)
	if cls == nil {
		return fmt.Sprintf("dangling(%d)", r)
	}
	if s, ok := vm.GoString(r); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%s@%d", strings.ReplaceAll(cls.Name, "/", "."), r)
}
