package vm

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// NativeFunc implements a native method. It receives the argument slots
// exactly as the invoker pushed them (receiver first for instance
// methods) and returns the result value plus a pending throwable handle,
// Null when none.
type NativeFunc func(t *Thread, args []Value) (Value, Ref)

// NativeSet is the native-method registry, keyed by declaring class,
// name and descriptor. A native method with no registered function
// raises UnsatisfiedLinkError when called.
type NativeSet struct {
	mu    sync.RWMutex
	funcs map[nativeKey]NativeFunc
}

type nativeKey struct {
	class string
	name  string
	desc  string
}

// NewNativeSet creates an empty native registry.
func NewNativeSet() *NativeSet {
	return &NativeSet{funcs: make(map[nativeKey]NativeFunc)}
}

// Register binds a native function. Later registrations win, so
// embedders can override builtins before classes link.
func (ns *NativeSet) Register(class, name, desc string, fn NativeFunc) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.funcs[nativeKey{class, name, desc}] = fn
}

// Lookup returns the bound function, or nil.
func (ns *NativeSet) Lookup(class, name, desc string) NativeFunc {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.funcs[nativeKey{class, name, desc}]
}

// ---------------------------------------------------------------------------
// Builtins
// ---------------------------------------------------------------------------

// builtinNatives binds the bootstrap classes' native methods.
func builtinNatives() *NativeSet {
	ns := NewNativeSet()

	// java/lang/Object
	ns.Register("java/lang/Object", "<init>", "()V", nativeNop)
	ns.Register("java/lang/Object", "hashCode", "()I",
		func(t *Thread, args []Value) (Value, Ref) {
			return FromInt(int32(args[0].Ref())), Null
		})
	ns.Register("java/lang/Object", "equals", "(Ljava/lang/Object;)Z",
		func(t *Thread, args []Value) (Value, Ref) {
			return boolValue(args[0].Ref() == args[1].Ref()), Null
		})
	ns.Register("java/lang/Object", "getClass", "()Ljava/lang/Class;",
		func(t *Thread, args []Value) (Value, Ref) {
			cls := t.vm.Heap.ClassOf(args[0].Ref())
			mirror, cond := t.vm.MirrorFor(cls.Name)
			if cond != nil {
				return Value{}, t.raise(cond)
			}
			return FromRef(mirror), Null
		})
	ns.Register("java/lang/Object", "toString", "()Ljava/lang/String;",
		func(t *Thread, args []Value) (Value, Ref) {
			r := args[0].Ref()
			cls := t.vm.Heap.ClassOf(r)
			name := strings.ReplaceAll(cls.Name, "/", ".")
			return FromRef(t.vm.InternString(fmt.Sprintf("%s@%x", name, uint32(r)))), Null
		})

	// java/lang/Class
	ns.Register("java/lang/Class", "getName", "()Ljava/lang/String;",
		func(t *Thread, args []Value) (Value, Ref) {
			cls := t.vm.MirroredClass(args[0].Ref())
			if cls == nil {
				panic(&EngineFault{Msg: "getName on non-mirror object"})
			}
			return FromRef(t.vm.InternString(strings.ReplaceAll(cls.Name, "/", "."))), Null
		})

	// java/lang/String
	ns.Register("java/lang/String", "length", "()I",
		func(t *Thread, args []Value) (Value, Ref) {
			s, _ := t.vm.GoString(args[0].Ref())
			return FromInt(int32(len(s))), Null
		})
	ns.Register("java/lang/String", "charAt", "(I)C",
		func(t *Thread, args []Value) (Value, Ref) {
			s, _ := t.vm.GoString(args[0].Ref())
			idx := args[1].Int()
			if idx < 0 || int(idx) >= len(s) {
				return Value{}, t.raise(&Condition{"java/lang/IndexOutOfBoundsException",
					fmt.Sprintf("index %d, length %d", idx, len(s))})
			}
			return FromInt(int32(s[idx])), Null
		})
	ns.Register("java/lang/String", "equals", "(Ljava/lang/Object;)Z",
		func(t *Thread, args []Value) (Value, Ref) {
			a, _ := t.vm.GoString(args[0].Ref())
			b, ok := t.vm.GoString(args[1].Ref())
			return boolValue(ok && a == b), Null
		})
	ns.Register("java/lang/String", "hashCode", "()I",
		func(t *Thread, args []Value) (Value, Ref) {
			s, _ := t.vm.GoString(args[0].Ref())
			var h int32
			for i := 0; i < len(s); i++ {
				h = 31*h + int32(s[i])
			}
			return FromInt(h), Null
		})

	// java/lang/Throwable
	ns.Register("java/lang/Throwable", "<init>", "()V", nativeNop)
	ns.Register("java/lang/Throwable", "<init>", "(Ljava/lang/String;)V",
		func(t *Thread, args []Value) (Value, Ref) {
			r := args[0].Ref()
			cls := t.vm.Heap.ClassOf(r)
			if field := cls.FieldByName("detailMessage"); field != nil {
				t.vm.Heap.PutField(r, field, args[1])
			}
			return Value{}, Null
		})
	ns.Register("java/lang/Throwable", "getMessage", "()Ljava/lang/String;",
		func(t *Thread, args []Value) (Value, Ref) {
			r := args[0].Ref()
			cls := t.vm.Heap.ClassOf(r)
			v, cond := t.vm.Heap.GetField(r, cls.FieldByName("detailMessage"))
			if cond != nil {
				return Value{}, t.raise(cond)
			}
			return v, Null
		})
	ns.Register("java/lang/Throwable", "fillInStackTrace", "()Ljava/lang/Throwable;",
		func(t *Thread, args []Value) (Value, Ref) {
			return args[0], Null
		})

	// java/lang/System
	ns.Register("java/lang/System", "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", nativeArraycopy)
	ns.Register("java/lang/System", "currentTimeMillis", "()J",
		func(t *Thread, args []Value) (Value, Ref) {
			return FromLong(time.Now().UnixMilli()), Null
		})
	ns.Register("java/lang/System", "nanoTime", "()J",
		func(t *Thread, args []Value) (Value, Ref) {
			return FromLong(time.Now().UnixNano()), Null
		})

	registerConsole(ns)
	return ns
}

func nativeNop(t *Thread, args []Value) (Value, Ref) {
	return Value{}, Null
}

func boolValue(b bool) Value {
	if b {
		return FromInt(1)
	}
	return FromInt(0)
}

// nativeArraycopy copies a region between arrays with the JVM's null,
// type and bounds checks. The copy is element-wise through the heap so
// overlapping self-copies behave like memmove.
func nativeArraycopy(t *Thread, args []Value) (Value, Ref) {
	src, srcPos := args[0].Ref(), args[1].Int()
	dst, dstPos := args[2].Ref(), args[3].Int()
	length := args[4].Int()

	if src == Null || dst == Null {
		return Value{}, t.raise(&Condition{ExNullPointer, "arraycopy"})
	}
	srcCls, dstCls := t.vm.Heap.ClassOf(src), t.vm.Heap.ClassOf(dst)
	if !srcCls.Array || !dstCls.Array {
		return Value{}, t.raise(&Condition{ExArrayStore, "arraycopy of non-array"})
	}
	srcLen, _ := t.vm.Heap.ArrayLength(src)
	dstLen, _ := t.vm.Heap.ArrayLength(dst)
	if srcPos < 0 || dstPos < 0 || length < 0 ||
		srcPos > srcLen-length || dstPos > dstLen-length {
		return Value{}, t.raise(&Condition{ExArrayIndex,
			fmt.Sprintf("arraycopy [%d..%d) into [%d..%d)", srcPos, srcPos+length, dstPos, dstPos+length)})
	}

	elems := make([]Value, length)
	for i := int32(0); i < length; i++ {
		v, cond := t.vm.Heap.ArrayGet(src, srcPos+i)
		if cond != nil {
			return Value{}, t.raise(cond)
		}
		elems[i] = v
	}
	for i := int32(0); i < length; i++ {
		if dstCls.ElemDesc[0] == 'L' || dstCls.ElemDesc[0] == '[' {
			if cond := t.vm.checkArrayStore(dst, elems[i].Ref()); cond != nil {
				return Value{}, t.raise(cond)
			}
		}
		if cond := t.vm.Heap.ArrayPut(dst, dstPos+i, elems[i]); cond != nil {
			return Value{}, t.raise(cond)
		}
	}
	return Value{}, Null
}

// registerConsole binds the javelin/io/Console print surface. Output
// goes to the engine's Stdout writer, so tests can capture it.
func registerConsole(ns *NativeSet) {
	const console = "javelin/io/Console"

	emit := func(t *Thread, s string, newline bool) {
		if newline {
			s += "\n"
		}
		fmt.Fprint(t.vm.Stdout, s)
	}
	format := func(t *Thread, desc string, v Value) string {
		switch desc {
		case "(I)V":
			return fmt.Sprintf("%d", v.Int())
		case "(J)V":
			return fmt.Sprintf("%d", v.Long())
		case "(F)V":
			return formatFloat(float64(v.Float()))
		case "(D)V":
			return formatFloat(v.Double())
		case "(Z)V":
			if v.Int() != 0 {
				return "true"
			}
			return "false"
		case "(C)V":
			return string(rune(uint16(v.Int())))
		default:
			if v.Ref() == Null {
				return "null"
			}
			s, ok := t.vm.GoString(v.Ref())
			if !ok {
				return t.vm.DescribeRef(v.Ref())
			}
			return s
		}
	}

	for _, desc := range []string{"(I)V", "(J)V", "(F)V", "(D)V", "(Z)V", "(C)V", "(Ljava/lang/String;)V"} {
		desc := desc
		ns.Register(console, "print", desc,
			func(t *Thread, args []Value) (Value, Ref) {
				emit(t, format(t, desc, args[0]), false)
				return Value{}, Null
			})
		ns.Register(console, "println", desc,
			func(t *Thread, args []Value) (Value, Ref) {
				emit(t, format(t, desc, args[0]), true)
				return Value{}, Null
			})
	}
	ns.Register(console, "println", "()V",
		func(t *Thread, args []Value) (Value, Ref) {
			emit(t, "", true)
			return Value{}, Null
		})
}

// formatFloat prints like Java: integral values keep a trailing ".0".
func formatFloat(x float64) string {
	s := fmt.Sprintf("%g", x)
	if !strings.ContainsAny(s, ".eENI") {
		s += ".0"
	}
	return s
}
