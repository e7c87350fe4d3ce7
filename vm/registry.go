package vm

import (
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/javelin-vm/javelin/classfile"
)

// Source supplies class metadata by name. The classfile.Loader is the
// production implementation; tests register classes directly instead.
type Source interface {
	Load(name string) (*classfile.ClassFile, error)
}

// Registry owns every linked class for the life of the engine. Loading is
// recursive (superclasses and interfaces link first) and memoized; a class
// links exactly once. Bootstrap classes (java/lang/Object, the throwable
// hierarchy, the string machinery) are installed at construction and
// shadow anything on the classpath.
type Registry struct {
	mu        sync.Mutex
	classes   map[string]*Class
	loading   map[string]bool
	source    Source
	selectors *SelectorTable
	natives   *NativeSet
	log       commonlog.Logger
}

// NewRegistry creates a registry with the bootstrap classes installed.
func NewRegistry(source Source, selectors *SelectorTable, natives *NativeSet) *Registry {
	r := &Registry{
		classes:   make(map[string]*Class),
		loading:   make(map[string]bool),
		source:    source,
		selectors: selectors,
		natives:   natives,
		log:       commonlog.GetLogger("javelin.registry"),
	}
	r.bootstrap()
	return r
}

// Resolve returns the linked class for a name, loading it if needed.
func (r *Registry) Resolve(name string) (*Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(name)
}

// ArrayClass returns the synthetic class for an array descriptor like
// "[I" or "[Ljava/lang/String;", creating it on first use.
func (r *Registry) ArrayClass(descriptor string) (*Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.arrayClassLocked(descriptor)
}

// Register installs an already-built class file, linking it immediately.
// Used by tests and by tools that synthesize classes.
func (r *Registry) Register(cf *classfile.ClassFile) (*Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.classes[cf.Name]; ok {
		return nil, fmt.Errorf("class %s already registered", cf.Name)
	}
	return r.linkLocked(cf)
}

// Lookup returns an already-linked class, or nil.
func (r *Registry) Lookup(name string) *Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.classes[name]
}

func (r *Registry) resolveLocked(name string) (*Class, error) {
	if c, ok := r.classes[name]; ok {
		return c, nil
	}
	if len(name) > 0 && name[0] == '[' {
		return r.arrayClassLocked(name)
	}
	if r.loading[name] {
		return nil, fmt.Errorf("circular superclass chain through %s", name)
	}
	if r.source == nil {
		return nil, fmt.Errorf("class %s not found (no class source)", name)
	}

	r.loading[name] = true
	defer delete(r.loading, name)

	cf, err := r.source.Load(name)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	c, err := r.linkLocked(cf)
	if err != nil {
		return nil, err
	}
	r.log.Infof("linked %s (%d methods, %d fields)", name, len(c.Methods), len(cf.Fields))
	return c, nil
}

// linkLocked turns metadata into a runtime class: superclass and
// interface links, the instance layout (inherited slots first), static
// storage, parsed method descriptors, and the dispatch table.
func (r *Registry) linkLocked(cf *classfile.ClassFile) (*Class, error) {
	var super *Class
	superName := cf.Superclass
	if superName == "" && cf.Name != "java/lang/Object" {
		superName = "java/lang/Object"
	}
	if superName != "" {
		var err error
		super, err = r.resolveLocked(superName)
		if err != nil {
			return nil, fmt.Errorf("superclass of %s: %w", cf.Name, err)
		}
	}

	ifaces := make([]*Class, 0, len(cf.Interfaces))
	for _, in := range cf.Interfaces {
		ic, err := r.resolveLocked(in)
		if err != nil {
			return nil, fmt.Errorf("interface of %s: %w", cf.Name, err)
		}
		if !ic.Interface {
			return nil, fmt.Errorf("%s implements non-interface %s", cf.Name, in)
		}
		ifaces = append(ifaces, ic)
	}

	c := &Class{
		Name:       cf.Name,
		Superclass: super,
		Interfaces: ifaces,
		Interface:  cf.Interface,
		Pool:       cf.Pool,
		State:      StateUninitialized,
	}

	if super != nil {
		c.layout = append(c.layout, super.layout...)
	}
	for i := range cf.Fields {
		fi := &cf.Fields[i]
		field := &Field{Class: c, Name: fi.Name, Descriptor: fi.Descriptor, Static: fi.Static}
		if fi.Static {
			field.Index = len(c.statics)
			c.statics = append(c.statics, field)
		} else {
			field.Index = len(c.layout)
			c.layout = append(c.layout, field)
		}
	}
	c.Statics = make([]Value, len(c.statics))
	for _, sf := range c.statics {
		c.Statics[sf.Index] = zeroValue(sf.Descriptor)
	}

	var parentVT *VTable
	if super != nil {
		parentVT = super.vtable
	}
	c.vtable = NewVTable(c, parentVT)

	for i := range cf.Methods {
		mi := &cf.Methods[i]
		argSlots, retKind, err := parseDescriptor(mi.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("method %s.%s: %w", cf.Name, mi.Name, err)
		}
		m := &Method{
			Class:      c,
			Name:       mi.Name,
			Descriptor: mi.Descriptor,
			MaxStack:   mi.MaxStack,
			MaxLocals:  mi.MaxLocals,
			Code:       mi.Code,
			ArgSlots:   argSlots,
			ReturnKind: retKind,
			selector:   r.selectors.Intern(mi.Name, mi.Descriptor),
		}
		if mi.Static {
			m.Flags |= FlagStatic
		}
		if mi.Native {
			m.Flags |= FlagNative
			m.native = r.natives.Lookup(cf.Name, mi.Name, mi.Descriptor)
		}
		if mi.Abstract {
			m.Flags |= FlagAbstract
		}
		for _, h := range mi.ExceptionTable {
			m.ExceptionTable = append(m.ExceptionTable, ExceptionHandler{
				StartPC:   h.StartPC,
				EndPC:     h.EndPC,
				HandlerPC: h.HandlerPC,
				CatchType: h.CatchType,
			})
		}
		c.Methods = append(c.Methods, m)

		// Instance methods enter the dispatch table; constructors and
		// initializers are invokespecial-only.
		if !m.IsStatic() && mi.Name != "<init>" && mi.Name != "<clinit>" {
			c.vtable.Add(m.selector, m)
		}
	}

	r.classes[cf.Name] = c
	return c, nil
}

// arrayClassLocked builds the synthetic class for an array descriptor.
// Array classes have no metadata of their own: they subclass Object,
// carry their element descriptor, and are born initialized.
func (r *Registry) arrayClassLocked(descriptor string) (*Class, error) {
	if c, ok := r.classes[descriptor]; ok {
		return c, nil
	}
	if len(descriptor) < 2 || descriptor[0] != '[' {
		return nil, fmt.Errorf("malformed array descriptor %q", descriptor)
	}
	elem := descriptor[1:]
	switch elem[0] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		if len(elem) != 1 {
			return nil, fmt.Errorf("malformed array descriptor %q", descriptor)
		}
	case 'L':
		if elem[len(elem)-1] != ';' {
			return nil, fmt.Errorf("malformed array descriptor %q", descriptor)
		}
		// Element class must be loadable.
		if _, err := r.resolveLocked(elem[1 : len(elem)-1]); err != nil {
			return nil, err
		}
	case '[':
		if _, err := r.arrayClassLocked(elem); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("malformed array descriptor %q", descriptor)
	}

	object, err := r.resolveLocked("java/lang/Object")
	if err != nil {
		return nil, err
	}
	c := &Class{
		Name:       descriptor,
		Superclass: object,
		Array:      true,
		ElemDesc:   elem,
		State:      StateInitialized,
	}
	c.vtable = NewVTable(c, object.vtable)
	r.classes[descriptor] = c
	return c, nil
}

// ---------------------------------------------------------------------------
// Bootstrap classes
// ---------------------------------------------------------------------------

// bootstrap installs the minimal runtime library the engine itself
// depends on: Object, Class, String, the throwable hierarchy, System and
// the console. All of their methods are native-bridged; subclasses in the
// hierarchy inherit Throwable's members through normal resolution.
func (r *Registry) bootstrap() {
	nm := func(name, desc string) classfile.MethodInfo {
		return classfile.MethodInfo{Name: name, Descriptor: desc, Native: true}
	}
	ns := func(name, desc string) classfile.MethodInfo {
		return classfile.MethodInfo{Name: name, Descriptor: desc, Static: true, Native: true}
	}

	defs := []*classfile.ClassFile{
		{
			Name: "java/lang/Object",
			Methods: []classfile.MethodInfo{
				nm("<init>", "()V"),
				nm("hashCode", "()I"),
				nm("equals", "(Ljava/lang/Object;)Z"),
				nm("getClass", "()Ljava/lang/Class;"),
				nm("toString", "()Ljava/lang/String;"),
			},
		},
		{
			Name: "java/lang/Class",
			Methods: []classfile.MethodInfo{
				nm("getName", "()Ljava/lang/String;"),
			},
		},
		{
			Name: "java/lang/String",
			Fields: []classfile.FieldInfo{
				{Name: "value", Descriptor: "[B"},
			},
			Methods: []classfile.MethodInfo{
				nm("length", "()I"),
				nm("charAt", "(I)C"),
				nm("equals", "(Ljava/lang/Object;)Z"),
				nm("hashCode", "()I"),
			},
		},
		{
			Name: "java/lang/Throwable",
			Fields: []classfile.FieldInfo{
				{Name: "detailMessage", Descriptor: "Ljava/lang/String;"},
			},
			Methods: []classfile.MethodInfo{
				nm("<init>", "()V"),
				nm("<init>", "(Ljava/lang/String;)V"),
				nm("getMessage", "()Ljava/lang/String;"),
				nm("fillInStackTrace", "()Ljava/lang/Throwable;"),
			},
		},
		{Name: "java/lang/Exception", Superclass: "java/lang/Throwable"},
		{Name: "java/lang/RuntimeException", Superclass: "java/lang/Exception"},
		{Name: "java/lang/ArithmeticException", Superclass: "java/lang/RuntimeException"},
		{Name: "java/lang/NullPointerException", Superclass: "java/lang/RuntimeException"},
		{Name: "java/lang/ClassCastException", Superclass: "java/lang/RuntimeException"},
		{Name: "java/lang/ArrayStoreException", Superclass: "java/lang/RuntimeException"},
		{Name: "java/lang/NegativeArraySizeException", Superclass: "java/lang/RuntimeException"},
		{Name: "java/lang/IndexOutOfBoundsException", Superclass: "java/lang/RuntimeException"},
		{Name: "java/lang/ArrayIndexOutOfBoundsException", Superclass: "java/lang/IndexOutOfBoundsException"},
		{Name: "java/lang/Error", Superclass: "java/lang/Throwable"},
		{Name: "java/lang/VirtualMachineError", Superclass: "java/lang/Error"},
		{Name: "java/lang/StackOverflowError", Superclass: "java/lang/VirtualMachineError"},
		{Name: "java/lang/LinkageError", Superclass: "java/lang/Error"},
		{Name: "java/lang/NoClassDefFoundError", Superclass: "java/lang/LinkageError"},
		{Name: "java/lang/UnsatisfiedLinkError", Superclass: "java/lang/LinkageError"},
		{Name: "java/lang/ExceptionInInitializerError", Superclass: "java/lang/LinkageError"},
		{Name: "java/lang/IncompatibleClassChangeError", Superclass: "java/lang/LinkageError"},
		{Name: "java/lang/NoSuchMethodError", Superclass: "java/lang/IncompatibleClassChangeError"},
		{Name: "java/lang/NoSuchFieldError", Superclass: "java/lang/IncompatibleClassChangeError"},
		{Name: "java/lang/AbstractMethodError", Superclass: "java/lang/IncompatibleClassChangeError"},
		{
			Name: "java/lang/System",
			Methods: []classfile.MethodInfo{
				ns("arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V"),
				ns("currentTimeMillis", "()J"),
				ns("nanoTime", "()J"),
			},
		},
		{
			Name: "javelin/io/Console",
			Methods: []classfile.MethodInfo{
				ns("print", "(I)V"),
				ns("print", "(J)V"),
				ns("print", "(F)V"),
				ns("print", "(D)V"),
				ns("print", "(Z)V"),
				ns("print", "(C)V"),
				ns("print", "(Ljava/lang/String;)V"),
				ns("println", "(I)V"),
				ns("println", "(J)V"),
				ns("println", "(F)V"),
				ns("println", "(D)V"),
				ns("println", "(Z)V"),
				ns("println", "(C)V"),
				ns("println", "(Ljava/lang/String;)V"),
				ns("println", "()V"),
			},
		},
	}

	for _, cf := range defs {
		c, err := r.linkLocked(cf)
		if err != nil {
			panic(&EngineFault{Msg: fmt.Sprintf("bootstrap of %s: %v", cf.Name, err)})
		}
		c.State = StateInitialized
	}
}
