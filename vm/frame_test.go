package vm

import "testing"

func testFrame(maxStack, maxLocals int) *Frame {
	cls := &Class{Name: "Test"}
	m := &Method{Class: cls, Name: "frame", Descriptor: "()V",
		MaxStack: maxStack, MaxLocals: maxLocals}
	return newFrame(m)
}

func wantFault(t *testing.T, what string) {
	t.Helper()
	r := recover()
	if r == nil {
		t.Fatalf("%s did not fault", what)
	}
	if _, ok := r.(*EngineFault); !ok {
		t.Fatalf("%s recovered %T, want *EngineFault", what, r)
	}
}

func TestWideValuesOccupyTwoStackSlots(t *testing.T) {
	f := testFrame(4, 0)
	f.PushLong(1)
	f.PushInt(2)
	if got := f.StackDepth(); got != 3 {
		t.Errorf("depth = %d, want 3", got)
	}
	if got := f.PopInt(); got != 2 {
		t.Errorf("int = %d, want 2", got)
	}
	if got := f.PopLong(); got != 1 {
		t.Errorf("long = %d, want 1", got)
	}
	if f.StackDepth() != 0 {
		t.Errorf("depth = %d, want 0", f.StackDepth())
	}
}

func TestOperandStackOverflowFaults(t *testing.T) {
	f := testFrame(2, 0)
	f.PushLong(1)
	defer wantFault(t, "push past max_stack")
	f.PushInt(2)
}

func TestPopCategoryMismatchFaults(t *testing.T) {
	f := testFrame(2, 0)
	f.PushLong(1)
	defer wantFault(t, "category-1 pop of a wide value")
	f.Pop()
}

func TestPopWideOfNarrowFaults(t *testing.T) {
	f := testFrame(2, 0)
	f.PushInt(1)
	f.PushInt(2)
	defer wantFault(t, "category-2 pop of narrow values")
	f.PopWide()
}

func TestUnderflowFaults(t *testing.T) {
	f := testFrame(2, 0)
	defer wantFault(t, "pop of empty stack")
	f.Pop()
}

func TestWideLocalReservesSecondSlot(t *testing.T) {
	f := testFrame(0, 3)
	f.SetLocal(0, FromLong(9))
	if got := f.LocalWide(0).Long(); got != 9 {
		t.Errorf("local 0 = %d, want 9", got)
	}
	// Slot 1 is the pair's padding; category-1 reads fault.
	func() {
		defer wantFault(t, "read of a padding slot")
		f.Local(1)
	}()
}

func TestWritingSecondSlotKillsThePair(t *testing.T) {
	f := testFrame(0, 3)
	f.SetLocal(0, FromLong(9))
	f.SetLocal(1, FromInt(5))
	if got := f.Local(1).Int(); got != 5 {
		t.Errorf("local 1 = %d, want 5", got)
	}
	defer wantFault(t, "wide read of a broken pair")
	f.LocalWide(0)
}

func TestOverwritingWideInvalidatesPadding(t *testing.T) {
	f := testFrame(0, 3)
	f.SetLocal(0, FromLong(9))
	f.SetLocal(0, FromInt(1))
	if got := f.Local(0).Int(); got != 1 {
		t.Errorf("local 0 = %d, want 1", got)
	}
	// The old padding at slot 1 must not read as a value.
	defer wantFault(t, "read of stale padding")
	f.Local(1)
}

func TestPopSlotsReturnsStackOrder(t *testing.T) {
	f := testFrame(4, 0)
	f.PushInt(1)
	f.PushLong(2)
	f.PushInt(3)
	slots := f.popSlots(4)
	if len(slots) != 4 {
		t.Fatalf("popped %d slots, want 4", len(slots))
	}
	if slots[0].Int() != 1 || slots[1].Long() != 2 ||
		slots[2].Kind() != KindPadding || slots[3].Int() != 3 {
		t.Errorf("slots = %v, want [1, 2L, padding, 3]", slots)
	}
}

func TestStoreArgsLaysSlotsIntoLocals(t *testing.T) {
	f := testFrame(0, 4)
	f.storeArgs([]Value{FromInt(1), FromLong(2), Padding(), FromInt(3)})
	if f.Local(0).Int() != 1 || f.LocalWide(1).Long() != 2 || f.Local(3).Int() != 3 {
		t.Error("argument slots not laid out as pushed")
	}
}

func TestFreshLocalsAreUnreadable(t *testing.T) {
	f := testFrame(0, 2)
	defer wantFault(t, "read of an unwritten local")
	f.Local(0)
}
