package vm

import (
	"testing"

	"github.com/javelin-vm/javelin/classfile"
)

func TestInstanceFieldsStartZeroed(t *testing.T) {
	cf := &classfile.ClassFile{
		Name: "Mixed",
		Fields: []classfile.FieldInfo{
			{Name: "i", Descriptor: "I"},
			{Name: "j", Descriptor: "J"},
			{Name: "d", Descriptor: "D"},
			{Name: "ref", Descriptor: "Ljava/lang/Object;"},
		},
	}
	engine := newTestVM(t, cf)
	cls, _ := engine.Registry.Resolve("Mixed")
	r := engine.Heap.AllocateInstance(cls)

	read := func(name string) Value {
		v, cond := engine.Heap.GetField(r, cls.FieldByName(name))
		if cond != nil {
			t.Fatalf("read %s: %v", name, cond)
		}
		return v
	}
	if v := read("i"); v.Int() != 0 {
		t.Errorf("i = %v, want int 0", v)
	}
	if v := read("j"); v.Long() != 0 {
		t.Errorf("j = %v, want long 0", v)
	}
	if v := read("d"); v.Double() != 0 {
		t.Errorf("d = %v, want double 0", v)
	}
	if v := read("ref"); !v.IsNull() {
		t.Errorf("ref = %v, want null", v)
	}
	if got := engine.Heap.ClassOf(r); got != cls {
		t.Errorf("ClassOf = %v, want Mixed", got)
	}
}

func TestFieldWriteReadBack(t *testing.T) {
	cf := &classfile.ClassFile{
		Name:   "Box",
		Fields: []classfile.FieldInfo{{Name: "v", Descriptor: "J"}},
	}
	engine := newTestVM(t, cf)
	cls, _ := engine.Registry.Resolve("Box")
	r := engine.Heap.AllocateInstance(cls)
	f := cls.FieldByName("v")

	if cond := engine.Heap.PutField(r, f, FromLong(-42)); cond != nil {
		t.Fatalf("put: %v", cond)
	}
	v, cond := engine.Heap.GetField(r, f)
	if cond != nil || v.Long() != -42 {
		t.Errorf("get = %v, %v, want long -42", v, cond)
	}

	// Null handles fail with a null-pointer condition.
	if cond := engine.Heap.PutField(Null, f, FromLong(1)); cond == nil || cond.Class != ExNullPointer {
		t.Errorf("put on null = %v, want null-pointer condition", cond)
	}
	if _, cond := engine.Heap.GetField(Null, f); cond == nil || cond.Class != ExNullPointer {
		t.Errorf("get on null = %v, want null-pointer condition", cond)
	}
}

func TestArrayConditions(t *testing.T) {
	engine := newTestVM(t)
	ints, _ := engine.Registry.ArrayClass("[I")

	if _, cond := engine.Heap.AllocateArray(ints, -1); cond == nil || cond.Class != ExNegativeArraySize {
		t.Errorf("negative size = %v, want negative-array-size condition", cond)
	}

	arr, cond := engine.Heap.AllocateArray(ints, 3)
	if cond != nil {
		t.Fatalf("allocate: %v", cond)
	}
	if n, _ := engine.Heap.ArrayLength(arr); n != 3 {
		t.Errorf("length = %d, want 3", n)
	}
	for _, idx := range []int32{-1, 3, 100} {
		if _, cond := engine.Heap.ArrayGet(arr, idx); cond == nil || cond.Class != ExArrayIndex {
			t.Errorf("get[%d] = %v, want bounds condition", idx, cond)
		}
		if cond := engine.Heap.ArrayPut(arr, idx, FromInt(1)); cond == nil || cond.Class != ExArrayIndex {
			t.Errorf("put[%d] = %v, want bounds condition", idx, cond)
		}
	}
	if _, cond := engine.Heap.ArrayGet(Null, 0); cond == nil || cond.Class != ExNullPointer {
		t.Errorf("get on null = %v, want null-pointer condition", cond)
	}
	if _, cond := engine.Heap.ArrayLength(Null); cond == nil || cond.Class != ExNullPointer {
		t.Errorf("length on null = %v, want null-pointer condition", cond)
	}

	// Elements start zeroed.
	v, _ := engine.Heap.ArrayGet(arr, 1)
	if v.Int() != 0 {
		t.Errorf("fresh element = %v, want 0", v)
	}
}

func TestDanglingHandleFaults(t *testing.T) {
	cf := &classfile.ClassFile{
		Name:   "Box",
		Fields: []classfile.FieldInfo{{Name: "v", Descriptor: "I"}},
	}
	engine := newTestVM(t, cf)
	cls, _ := engine.Registry.Resolve("Box")
	f := cls.FieldByName("v")
	ints, _ := engine.Registry.ArrayClass("[I")
	arr, _ := engine.Heap.AllocateArray(ints, 1)
	bogus := arr + 1000

	func() {
		defer wantFault(t, "field read through a dangling handle")
		engine.Heap.GetField(bogus, f)
	}()
	func() {
		defer wantFault(t, "field write through a dangling handle")
		engine.Heap.PutField(bogus, f, FromInt(1))
	}()
	func() {
		defer wantFault(t, "array read through a dangling handle")
		engine.Heap.ArrayGet(bogus, 0)
	}()
	func() {
		defer wantFault(t, "array write through a dangling handle")
		engine.Heap.ArrayPut(bogus, 0, FromInt(1))
	}()
	func() {
		defer wantFault(t, "arraylength through a dangling handle")
		engine.Heap.ArrayLength(bogus)
	}()
}

func TestNullHandleIsNeverAllocated(t *testing.T) {
	engine := newTestVM(t)
	cls, _ := engine.Registry.Resolve("java/lang/Object")
	if r := engine.Heap.AllocateInstance(cls); r == Null {
		t.Fatal("allocation returned the null handle")
	}
	if engine.Heap.ClassOf(Null) != nil {
		t.Error("ClassOf(Null) is not nil")
	}
}
