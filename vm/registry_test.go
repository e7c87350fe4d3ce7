package vm

import (
	"testing"

	"github.com/javelin-vm/javelin/classfile"
)

func TestFieldLayoutInheritsSuperclassSlots(t *testing.T) {
	base := &classfile.ClassFile{
		Name:   "Base",
		Fields: []classfile.FieldInfo{{Name: "x", Descriptor: "I"}},
	}
	sub := &classfile.ClassFile{
		Name:       "Sub",
		Superclass: "Base",
		Fields: []classfile.FieldInfo{
			{Name: "y", Descriptor: "J"},
			{Name: "x", Descriptor: "D"}, // shadows Base.x
		},
	}
	engine := newTestVM(t, base, sub)

	cls, err := engine.Registry.Resolve("Sub")
	if err != nil {
		t.Fatalf("resolve Sub: %v", err)
	}
	if got := cls.InstanceSlots(); got != 3 {
		t.Errorf("InstanceSlots = %d, want 3", got)
	}
	fx := cls.FieldByName("x")
	if fx == nil || fx.Descriptor != "D" || fx.Index != 2 {
		t.Errorf("x resolves to %+v, want shadowing double at index 2", fx)
	}
	fy := cls.FieldByName("y")
	if fy == nil || fy.Index != 1 {
		t.Errorf("y resolves to %+v, want index 1", fy)
	}

	// The base class still sees its own x at slot 0.
	baseCls, _ := engine.Registry.Resolve("Base")
	bx := baseCls.FieldByName("x")
	if bx == nil || bx.Index != 0 || bx.Descriptor != "I" {
		t.Errorf("Base.x resolves to %+v, want int at index 0", bx)
	}
}

func TestCircularSuperclassFails(t *testing.T) {
	a := &classfile.ClassFile{Name: "A", Superclass: "B"}
	b := &classfile.ClassFile{Name: "B", Superclass: "A"}
	engine := newTestVM(t, a, b)

	if _, err := engine.Registry.Resolve("A"); err == nil {
		t.Fatal("resolving a circular hierarchy succeeded")
	}
}

func TestBootstrapHierarchy(t *testing.T) {
	engine := newTestVM(t)

	tests := []struct {
		class string
		super string
	}{
		{ExArithmetic, "java/lang/RuntimeException"},
		{ExNullPointer, "java/lang/RuntimeException"},
		{ExArrayIndex, "java/lang/IndexOutOfBoundsException"},
		{ExStackOverflow, "java/lang/VirtualMachineError"},
		{ExNoSuchMethod, "java/lang/IncompatibleClassChangeError"},
		{"java/lang/RuntimeException", "java/lang/Exception"},
		{"java/lang/Error", "java/lang/Throwable"},
	}
	throwable, _ := engine.Registry.Resolve("java/lang/Throwable")
	for _, tt := range tests {
		cls, err := engine.Registry.Resolve(tt.class)
		if err != nil {
			t.Fatalf("resolve %s: %v", tt.class, err)
		}
		if cls.Superclass == nil || cls.Superclass.Name != tt.super {
			t.Errorf("%s extends %v, want %s", tt.class, cls.Superclass, tt.super)
		}
		if !cls.IsSubclassOf(throwable) {
			t.Errorf("%s is not a Throwable", tt.class)
		}
		if cls.State != StateInitialized {
			t.Errorf("%s state = %s, want initialized", tt.class, cls.State)
		}
	}
}

func TestArrayClassSynthesis(t *testing.T) {
	engine := newTestVM(t, &classfile.ClassFile{Name: "Point"})

	ints, err := engine.Registry.ArrayClass("[I")
	if err != nil {
		t.Fatalf("[I: %v", err)
	}
	if !ints.Array || ints.ElemDesc != "I" || ints.Superclass.Name != "java/lang/Object" {
		t.Errorf("[I linked wrong: %+v", ints)
	}
	if ints.State != StateInitialized {
		t.Errorf("[I state = %s, want initialized", ints.State)
	}

	again, _ := engine.Registry.ArrayClass("[I")
	if again != ints {
		t.Error("array classes are not memoized")
	}

	points, err := engine.Registry.ArrayClass("[[LPoint;")
	if err != nil {
		t.Fatalf("[[LPoint;: %v", err)
	}
	if points.ElemDesc != "[LPoint;" {
		t.Errorf("ElemDesc = %q, want %q", points.ElemDesc, "[LPoint;")
	}

	if _, err := engine.Registry.ArrayClass("[LGhost;"); err == nil {
		t.Error("array of a missing class linked")
	}
	if _, err := engine.Registry.ArrayClass("[Q"); err == nil {
		t.Error("malformed descriptor linked")
	}
}

func TestAssignability(t *testing.T) {
	animal := &classfile.ClassFile{Name: "Animal"}
	dog := &classfile.ClassFile{Name: "Dog", Superclass: "Animal"}
	engine := newTestVM(t, animal, dog)

	resolve := func(name string) *Class {
		c, err := engine.ResolveAny(name)
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		return c
	}

	tests := []struct {
		src, dst string
		want     bool
	}{
		{"Dog", "Animal", true},
		{"Animal", "Dog", false},
		{"Dog", "java/lang/Object", true},
		{"[LDog;", "[LAnimal;", true}, // covariant reference arrays
		{"[LAnimal;", "[LDog;", false},
		{"[I", "[LAnimal;", false},
		{"[I", "java/lang/Object", true},
		{"[[I", "[Ljava/lang/Object;", false},
		{"[I", "[I", true},
	}
	for _, tt := range tests {
		if got := engine.isAssignable(resolve(tt.src), resolve(tt.dst)); got != tt.want {
			t.Errorf("isAssignable(%s, %s) = %v, want %v", tt.src, tt.dst, got, tt.want)
		}
	}
}

func clinitCountingClass() *classfile.ClassFile {
	// static int count; static { count = count + 1; }
	return &classfile.ClassFile{
		Name:   "Once",
		Fields: []classfile.FieldInfo{{Name: "count", Descriptor: "I", Static: true}},
		Pool: []classfile.Constant{
			{Kind: classfile.ConstFieldRef, ClassName: "Once", Name: "count", Descriptor: "I"},
		},
		Methods: []classfile.MethodInfo{
			{
				Name: "<clinit>", Descriptor: "()V", Static: true,
				MaxStack: 2, MaxLocals: 0,
				Code: []byte{
					byte(OpGetstatic), 0, 1,
					byte(OpIconst1), byte(OpIadd),
					byte(OpPutstatic), 0, 1,
					byte(OpReturn),
				},
			},
			{
				Name: "count", Descriptor: "()I", Static: true,
				MaxStack: 1, MaxLocals: 0,
				Code: []byte{byte(OpGetstatic), 0, 1, byte(OpIreturn)},
			},
		},
	}
}

func TestClassInitializesOnce(t *testing.T) {
	engine := newTestVM(t, clinitCountingClass())

	// Two explicit triggers plus two static calls: <clinit> runs once.
	cls, _ := engine.Registry.Resolve("Once")
	if pend := engine.EnsureInitialized(engine.NewThread(), cls); pend != Null {
		t.Fatalf("first init raised %s", engine.Heap.ClassOf(pend).Name)
	}
	if pend := engine.EnsureInitialized(engine.NewThread(), cls); pend != Null {
		t.Fatalf("second init raised %s", engine.Heap.ClassOf(pend).Name)
	}
	for i := 0; i < 2; i++ {
		got := mustCall(t, engine, "Once", "count", "()I")
		if got.Int() != 1 {
			t.Fatalf("count = %d after %d calls, want 1", got.Int(), i+1)
		}
	}
	if cls.State != StateInitialized {
		t.Errorf("state = %s, want initialized", cls.State)
	}
}

func TestGetstaticTriggersInit(t *testing.T) {
	reader := &classfile.ClassFile{
		Name: "Reader",
		Pool: []classfile.Constant{
			{Kind: classfile.ConstFieldRef, ClassName: "Once", Name: "count", Descriptor: "I"},
		},
		Methods: []classfile.MethodInfo{{
			Name: "read", Descriptor: "()I", Static: true,
			MaxStack: 1, MaxLocals: 0,
			Code: []byte{byte(OpGetstatic), 0, 1, byte(OpIreturn)},
		}},
	}
	engine := newTestVM(t, clinitCountingClass(), reader)

	got := mustCall(t, engine, "Reader", "read", "()I")
	if got.Int() != 1 {
		t.Errorf("read = %d, want 1 (getstatic ran <clinit>)", got.Int())
	}
}

func TestFailedInitLatches(t *testing.T) {
	bad := &classfile.ClassFile{
		Name: "Bad",
		Methods: []classfile.MethodInfo{
			{
				Name: "<clinit>", Descriptor: "()V", Static: true,
				MaxStack: 2, MaxLocals: 0,
				Code: []byte{byte(OpIconst1), byte(OpIconst0), byte(OpIdiv), byte(OpPop), byte(OpReturn)},
			},
			{
				Name: "touch", Descriptor: "()V", Static: true,
				MaxStack: 0, MaxLocals: 0,
				Code: []byte{byte(OpReturn)},
			},
		},
	}
	caller := &classfile.ClassFile{
		Name: "Caller",
		Pool: []classfile.Constant{
			{Kind: classfile.ConstMethodRef, ClassName: "Bad", Name: "touch", Descriptor: "()V"},
		},
		Methods: []classfile.MethodInfo{{
			Name: "poke", Descriptor: "()V", Static: true,
			MaxStack: 0, MaxLocals: 0,
			Code: []byte{byte(OpInvokestatic), 0, 1, byte(OpReturn)},
		}},
	}
	engine := newTestVM(t, bad, caller)

	// First trigger: the throwable escaping <clinit> is wrapped.
	wantUncaught(t, engine, "Caller", "poke", "()V", ExInitializerError)

	cls, _ := engine.Registry.Resolve("Bad")
	if cls.State != StateFailed {
		t.Fatalf("state = %s, want failed", cls.State)
	}

	// Later triggers report the latched failure without re-running.
	wantUncaught(t, engine, "Caller", "poke", "()V", ExNoClassDef)
}

func TestClinitFailureTraceListsInitializerFrames(t *testing.T) {
	bad := &classfile.ClassFile{
		Name:   "Bad",
		Fields: []classfile.FieldInfo{{Name: "x", Descriptor: "I", Static: true}},
		Methods: []classfile.MethodInfo{{
			Name: "<clinit>", Descriptor: "()V", Static: true,
			MaxStack: 2, MaxLocals: 0,
			Code: []byte{byte(OpIconst1), byte(OpIconst0), byte(OpIdiv), byte(OpPop), byte(OpReturn)},
		}},
	}
	user := &classfile.ClassFile{
		Name: "User",
		Pool: []classfile.Constant{
			{Kind: classfile.ConstFieldRef, ClassName: "Bad", Name: "x", Descriptor: "I"},
		},
		Methods: []classfile.MethodInfo{{
			Name: "run", Descriptor: "()I", Static: true,
			MaxStack: 1, MaxLocals: 0,
			Code: []byte{byte(OpGetstatic), 0, 1, byte(OpIreturn)},
		}},
	}
	engine := newTestVM(t, bad, user)
	u := wantUncaught(t, engine, "User", "run", "()I", ExInitializerError)

	// The initializer's own frames unwind on the triggering thread, so
	// the report names both the failed <clinit> and the trigger site.
	if len(u.Trace) != 2 {
		t.Fatalf("trace has %d entries, want 2: %v", len(u.Trace), u.Trace)
	}
	if u.Trace[0].Class != "Bad" || u.Trace[0].Method != "<clinit>" || u.Trace[0].PC != 2 {
		t.Errorf("trace[0] = %v, want Bad.<clinit> at pc=2", u.Trace[0])
	}
	if u.Trace[1].Class != "User" || u.Trace[1].Method != "run" || u.Trace[1].PC != 0 {
		t.Errorf("trace[1] = %v, want User.run at pc=0", u.Trace[1])
	}
}

func TestErrorEscapesClinitUnwrapped(t *testing.T) {
	bad := &classfile.ClassFile{
		Name: "BadErr",
		Pool: []classfile.Constant{
			{Kind: classfile.ConstClass, ClassName: "java/lang/Error"},
			{Kind: classfile.ConstMethodRef, ClassName: "java/lang/Error", Name: "<init>", Descriptor: "()V"},
		},
		Methods: []classfile.MethodInfo{
			{
				Name: "<clinit>", Descriptor: "()V", Static: true,
				MaxStack: 2, MaxLocals: 0,
				Code: []byte{
					byte(OpNew), 0, 1,
					byte(OpDup), byte(OpInvokespecial), 0, 2,
					byte(OpAthrow),
				},
			},
			{
				Name: "touch", Descriptor: "()V", Static: true,
				MaxStack: 0, MaxLocals: 0,
				Code: []byte{byte(OpReturn)},
			},
		},
	}
	caller := &classfile.ClassFile{
		Name: "Caller",
		Pool: []classfile.Constant{
			{Kind: classfile.ConstMethodRef, ClassName: "BadErr", Name: "touch", Descriptor: "()V"},
		},
		Methods: []classfile.MethodInfo{{
			Name: "poke", Descriptor: "()V", Static: true,
			MaxStack: 0, MaxLocals: 0,
			Code: []byte{byte(OpInvokestatic), 0, 1, byte(OpReturn)},
		}},
	}
	engine := newTestVM(t, bad, caller)
	wantUncaught(t, engine, "Caller", "poke", "()V", "java/lang/Error")
}

func TestSelectorInterning(t *testing.T) {
	st := NewSelectorTable()
	a := st.Intern("run", "()V")
	b := st.Intern("run", "()V")
	c := st.Intern("run", "()I")
	if a != b {
		t.Errorf("same selector interned twice: %d vs %d", a, b)
	}
	if a == c {
		t.Error("distinct descriptors share a selector")
	}
	if got := st.Lookup("run", "()I"); got != c {
		t.Errorf("Lookup = %d, want %d", got, c)
	}
	if got := st.Lookup("walk", "()V"); got != -1 {
		t.Errorf("Lookup of unknown selector = %d, want -1", got)
	}
	if name, desc := st.Name(c); name != "run" || desc != "()I" {
		t.Errorf("Name(%d) = %s%s", c, name, desc)
	}
}

func TestVTableOverrideShadowsParent(t *testing.T) {
	base := &classfile.ClassFile{
		Name: "VBase",
		Methods: []classfile.MethodInfo{
			returning("f", OpIconst1),
			returning("g", OpIconst2),
		},
	}
	sub := &classfile.ClassFile{
		Name:       "VSub",
		Superclass: "VBase",
		Methods:    []classfile.MethodInfo{returning("f", OpIconst3)},
	}
	engine := newTestVM(t, base, sub)

	subCls, _ := engine.Registry.Resolve("VSub")
	fSel := engine.Selectors.Lookup("f", "()I")
	gSel := engine.Selectors.Lookup("g", "()I")

	if m := subCls.VTable().Lookup(fSel); m == nil || m.Class.Name != "VSub" {
		t.Errorf("f dispatches to %v, want VSub's override", m)
	}
	if m := subCls.VTable().Lookup(gSel); m == nil || m.Class.Name != "VBase" {
		t.Errorf("g dispatches to %v, want the inherited VBase method", m)
	}
	if m := subCls.VTable().LookupLocal(gSel); m != nil {
		t.Errorf("LookupLocal(g) = %v, want nil", m)
	}
}
