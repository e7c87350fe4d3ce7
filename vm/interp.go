package vm

import (
	"math"

	"github.com/javelin-vm/javelin/classfile"
)

// ---------------------------------------------------------------------------
// Code stream readers
// ---------------------------------------------------------------------------

func (f *Frame) byteAt(at int) byte {
	code := f.Method.Code
	if at < 0 || at >= len(code) {
		f.fault("code offset %d out of range (code length %d)", at, len(code))
	}
	return code[at]
}

func (f *Frame) u8(at int) int   { return int(f.byteAt(at)) }
func (f *Frame) s8(at int) int32 { return int32(int8(f.byteAt(at))) }

func (f *Frame) u16(at int) int {
	return int(f.byteAt(at))<<8 | int(f.byteAt(at+1))
}

func (f *Frame) s16(at int) int32 {
	return int32(int16(uint16(f.byteAt(at))<<8 | uint16(f.byteAt(at+1))))
}

func (f *Frame) s32(at int) int32 {
	return int32(uint32(f.byteAt(at))<<24 | uint32(f.byteAt(at+1))<<16 |
		uint32(f.byteAt(at+2))<<8 | uint32(f.byteAt(at+3)))
}

func (f *Frame) constant(idx int) *classfile.Constant {
	k, err := f.Class.Constant(idx)
	if err != nil {
		f.fault("%v", err)
	}
	return k
}

// atypeDescriptor maps a newarray type code to an element descriptor.
func atypeDescriptor(atype int) string {
	switch atype {
	case ArrayTypeBoolean:
		return "Z"
	case ArrayTypeChar:
		return "C"
	case ArrayTypeFloat:
		return "F"
	case ArrayTypeDouble:
		return "D"
	case ArrayTypeByte:
		return "B"
	case ArrayTypeShort:
		return "S"
	case ArrayTypeInt:
		return "I"
	case ArrayTypeLong:
		return "J"
	}
	return ""
}

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

// run executes frames until the activation that began at depth base
// returns. The loop is iterative: calls push frames, returns pop them, so
// deep bytecode recursion never grows the Go stack. The frame's PC stays
// on the current instruction until it completes; a raising instruction is
// therefore its own address for exception-table range checks. An invoke
// holds the invoker's PC for the whole callee call (the successor lands
// in Frame.resume and is applied when the callee returns), so a throwable
// propagating out of the callee is attributed to the invoke itself.
func (t *Thread) run(base int) (Value, Ref) {
	for {
		f := t.top()
		op := Opcode(f.byteAt(f.PC))
		next := f.PC + 1
		var pend Ref

		switch op {

		// --- constants ---

		case OpNop:

		case OpAconstNull:
			f.PushRef(Null)

		case OpIconstM1, OpIconst0, OpIconst1, OpIconst2, OpIconst3, OpIconst4, OpIconst5:
			f.PushInt(int32(op) - int32(OpIconst0))

		case OpLconst0, OpLconst1:
			f.PushLong(int64(op - OpLconst0))

		case OpFconst0, OpFconst1, OpFconst2:
			f.PushFloat(float32(op - OpFconst0))

		case OpDconst0, OpDconst1:
			f.PushDouble(float64(op - OpDconst0))

		case OpBipush:
			f.PushInt(f.s8(f.PC + 1))
			next = f.PC + 2

		case OpSipush:
			f.PushInt(f.s16(f.PC + 1))
			next = f.PC + 3

		case OpLdc:
			pend = t.loadConstant(f, f.u8(f.PC+1))
			next = f.PC + 2

		case OpLdcW:
			pend = t.loadConstant(f, f.u16(f.PC+1))
			next = f.PC + 3

		case OpLdc2W:
			k := f.constant(f.u16(f.PC + 1))
			switch k.Kind {
			case classfile.ConstLong:
				f.PushLong(k.Long)
			case classfile.ConstDouble:
				f.PushDouble(k.Double)
			default:
				f.fault("ldc2_w of non-wide constant kind %d", k.Kind)
			}
			next = f.PC + 3

		// --- loads ---

		case OpIload, OpFload, OpAload:
			f.Push(f.Local(f.u8(f.PC + 1)))
			next = f.PC + 2

		case OpLload, OpDload:
			f.Push(f.LocalWide(f.u8(f.PC + 1)))
			next = f.PC + 2

		case OpIload0, OpIload1, OpIload2, OpIload3:
			f.Push(f.Local(int(op - OpIload0)))
		case OpLload0, OpLload1, OpLload2, OpLload3:
			f.Push(f.LocalWide(int(op - OpLload0)))
		case OpFload0, OpFload1, OpFload2, OpFload3:
			f.Push(f.Local(int(op - OpFload0)))
		case OpDload0, OpDload1, OpDload2, OpDload3:
			f.Push(f.LocalWide(int(op - OpDload0)))
		case OpAload0, OpAload1, OpAload2, OpAload3:
			f.Push(f.Local(int(op - OpAload0)))

		case OpIaload, OpLaload, OpFaload, OpDaload, OpAaload, OpBaload, OpCaload, OpSaload:
			idx := f.PopInt()
			arr := f.PopRef()
			v, cond := t.vm.Heap.ArrayGet(arr, idx)
			if cond != nil {
				pend = t.raise(cond)
				break
			}
			f.Push(v)

		// --- stores ---

		case OpIstore, OpFstore, OpAstore:
			f.SetLocal(f.u8(f.PC+1), f.Pop())
			next = f.PC + 2

		case OpLstore, OpDstore:
			f.SetLocal(f.u8(f.PC+1), f.PopWide())
			next = f.PC + 2

		case OpIstore0, OpIstore1, OpIstore2, OpIstore3:
			f.SetLocal(int(op-OpIstore0), f.Pop())
		case OpLstore0, OpLstore1, OpLstore2, OpLstore3:
			f.SetLocal(int(op-OpLstore0), f.PopWide())
		case OpFstore0, OpFstore1, OpFstore2, OpFstore3:
			f.SetLocal(int(op-OpFstore0), f.Pop())
		case OpDstore0, OpDstore1, OpDstore2, OpDstore3:
			f.SetLocal(int(op-OpDstore0), f.PopWide())
		case OpAstore0, OpAstore1, OpAstore2, OpAstore3:
			f.SetLocal(int(op-OpAstore0), f.Pop())

		case OpIastore, OpFastore, OpAastore:
			v := f.Pop()
			idx := f.PopInt()
			arr := f.PopRef()
			if op == OpAastore {
				if cond := t.vm.checkArrayStore(arr, v.Ref()); cond != nil {
					pend = t.raise(cond)
					break
				}
			}
			if cond := t.vm.Heap.ArrayPut(arr, idx, v); cond != nil {
				pend = t.raise(cond)
			}

		case OpLastore, OpDastore:
			v := f.PopWide()
			idx := f.PopInt()
			arr := f.PopRef()
			if cond := t.vm.Heap.ArrayPut(arr, idx, v); cond != nil {
				pend = t.raise(cond)
			}

		case OpBastore:
			v := int32(int8(f.PopInt()))
			idx := f.PopInt()
			arr := f.PopRef()
			if cond := t.vm.Heap.ArrayPut(arr, idx, FromInt(v)); cond != nil {
				pend = t.raise(cond)
			}

		case OpCastore:
			v := int32(uint16(f.PopInt()))
			idx := f.PopInt()
			arr := f.PopRef()
			if cond := t.vm.Heap.ArrayPut(arr, idx, FromInt(v)); cond != nil {
				pend = t.raise(cond)
			}

		case OpSastore:
			v := int32(int16(f.PopInt()))
			idx := f.PopInt()
			arr := f.PopRef()
			if cond := t.vm.Heap.ArrayPut(arr, idx, FromInt(v)); cond != nil {
				pend = t.raise(cond)
			}

		// --- stack manipulation (slot-exact) ---

		case OpPop:
			f.Pop()

		case OpPop2:
			f.popSlot()
			f.popSlot()

		case OpDup:
			v := f.Pop()
			f.pushSlot(v)
			f.pushSlot(v)

		case OpDupX1:
			v1 := f.Pop()
			v2 := f.Pop()
			f.pushSlot(v1)
			f.pushSlot(v2)
			f.pushSlot(v1)

		case OpDupX2:
			v1 := f.Pop()
			s2 := f.popSlot()
			s3 := f.popSlot()
			f.pushSlot(v1)
			f.pushSlot(s3)
			f.pushSlot(s2)
			f.pushSlot(v1)

		case OpDup2:
			s1 := f.popSlot()
			s2 := f.popSlot()
			f.pushSlot(s2)
			f.pushSlot(s1)
			f.pushSlot(s2)
			f.pushSlot(s1)

		case OpDup2X1:
			s1 := f.popSlot()
			s2 := f.popSlot()
			v3 := f.Pop()
			f.pushSlot(s2)
			f.pushSlot(s1)
			f.pushSlot(v3)
			f.pushSlot(s2)
			f.pushSlot(s1)

		case OpDup2X2:
			s1 := f.popSlot()
			s2 := f.popSlot()
			s3 := f.popSlot()
			s4 := f.popSlot()
			f.pushSlot(s2)
			f.pushSlot(s1)
			f.pushSlot(s4)
			f.pushSlot(s3)
			f.pushSlot(s2)
			f.pushSlot(s1)

		case OpSwap:
			v1 := f.Pop()
			v2 := f.Pop()
			f.pushSlot(v1)
			f.pushSlot(v2)

		// --- arithmetic ---

		case OpIadd:
			b, a := f.PopInt(), f.PopInt()
			f.PushInt(a + b)
		case OpLadd:
			b, a := f.PopLong(), f.PopLong()
			f.PushLong(a + b)
		case OpFadd:
			b, a := f.PopFloat(), f.PopFloat()
			f.PushFloat(a + b)
		case OpDadd:
			b, a := f.PopDouble(), f.PopDouble()
			f.PushDouble(a + b)

		case OpIsub:
			b, a := f.PopInt(), f.PopInt()
			f.PushInt(a - b)
		case OpLsub:
			b, a := f.PopLong(), f.PopLong()
			f.PushLong(a - b)
		case OpFsub:
			b, a := f.PopFloat(), f.PopFloat()
			f.PushFloat(a - b)
		case OpDsub:
			b, a := f.PopDouble(), f.PopDouble()
			f.PushDouble(a - b)

		case OpImul:
			b, a := f.PopInt(), f.PopInt()
			f.PushInt(a * b)
		case OpLmul:
			b, a := f.PopLong(), f.PopLong()
			f.PushLong(a * b)
		case OpFmul:
			b, a := f.PopFloat(), f.PopFloat()
			f.PushFloat(a * b)
		case OpDmul:
			b, a := f.PopDouble(), f.PopDouble()
			f.PushDouble(a * b)

		case OpIdiv:
			b, a := f.PopInt(), f.PopInt()
			q, ok := intDiv(a, b)
			if !ok {
				pend = t.raise(&Condition{ExArithmetic, "/ by zero"})
				break
			}
			f.PushInt(q)
		case OpLdiv:
			b, a := f.PopLong(), f.PopLong()
			q, ok := longDiv(a, b)
			if !ok {
				pend = t.raise(&Condition{ExArithmetic, "/ by zero"})
				break
			}
			f.PushLong(q)
		case OpFdiv:
			b, a := f.PopFloat(), f.PopFloat()
			f.PushFloat(a / b)
		case OpDdiv:
			b, a := f.PopDouble(), f.PopDouble()
			f.PushDouble(a / b)

		case OpIrem:
			b, a := f.PopInt(), f.PopInt()
			r, ok := intRem(a, b)
			if !ok {
				pend = t.raise(&Condition{ExArithmetic, "% by zero"})
				break
			}
			f.PushInt(r)
		case OpLrem:
			b, a := f.PopLong(), f.PopLong()
			r, ok := longRem(a, b)
			if !ok {
				pend = t.raise(&Condition{ExArithmetic, "% by zero"})
				break
			}
			f.PushLong(r)
		case OpFrem:
			b, a := f.PopFloat(), f.PopFloat()
			f.PushFloat(float32(math.Mod(float64(a), float64(b))))
		case OpDrem:
			b, a := f.PopDouble(), f.PopDouble()
			f.PushDouble(math.Mod(a, b))

		case OpIneg:
			f.PushInt(-f.PopInt())
		case OpLneg:
			f.PushLong(-f.PopLong())
		case OpFneg:
			f.PushFloat(-f.PopFloat())
		case OpDneg:
			f.PushDouble(-f.PopDouble())

		case OpIshl:
			d, a := f.PopInt(), f.PopInt()
			f.PushInt(intShl(a, d))
		case OpLshl:
			d, a := f.PopInt(), f.PopLong()
			f.PushLong(longShl(a, d))
		case OpIshr:
			d, a := f.PopInt(), f.PopInt()
			f.PushInt(intShr(a, d))
		case OpLshr:
			d, a := f.PopInt(), f.PopLong()
			f.PushLong(longShr(a, d))
		case OpIushr:
			d, a := f.PopInt(), f.PopInt()
			f.PushInt(intUshr(a, d))
		case OpLushr:
			d, a := f.PopInt(), f.PopLong()
			f.PushLong(longUshr(a, d))

		case OpIand:
			b, a := f.PopInt(), f.PopInt()
			f.PushInt(a & b)
		case OpLand:
			b, a := f.PopLong(), f.PopLong()
			f.PushLong(a & b)
		case OpIor:
			b, a := f.PopInt(), f.PopInt()
			f.PushInt(a | b)
		case OpLor:
			b, a := f.PopLong(), f.PopLong()
			f.PushLong(a | b)
		case OpIxor:
			b, a := f.PopInt(), f.PopInt()
			f.PushInt(a ^ b)
		case OpLxor:
			b, a := f.PopLong(), f.PopLong()
			f.PushLong(a ^ b)

		case OpIinc:
			idx := f.u8(f.PC + 1)
			f.SetLocal(idx, FromInt(f.Local(idx).Int()+f.s8(f.PC+2)))
			next = f.PC + 3

		// --- conversions ---

		case OpI2l:
			f.PushLong(int64(f.PopInt()))
		case OpI2f:
			f.PushFloat(float32(f.PopInt()))
		case OpI2d:
			f.PushDouble(float64(f.PopInt()))
		case OpL2i:
			f.PushInt(int32(f.PopLong()))
		case OpL2f:
			f.PushFloat(float32(f.PopLong()))
		case OpL2d:
			f.PushDouble(float64(f.PopLong()))
		case OpF2i:
			f.PushInt(floatToInt(f.PopFloat()))
		case OpF2l:
			f.PushLong(floatToLong(f.PopFloat()))
		case OpF2d:
			f.PushDouble(float64(f.PopFloat()))
		case OpD2i:
			f.PushInt(doubleToInt(f.PopDouble()))
		case OpD2l:
			f.PushLong(doubleToLong(f.PopDouble()))
		case OpD2f:
			f.PushFloat(float32(f.PopDouble()))
		case OpI2b:
			f.PushInt(int32(int8(f.PopInt())))
		case OpI2c:
			f.PushInt(int32(uint16(f.PopInt())))
		case OpI2s:
			f.PushInt(int32(int16(f.PopInt())))

		// --- comparisons ---

		case OpLcmp:
			b, a := f.PopLong(), f.PopLong()
			f.PushInt(longCmp(a, b))
		case OpFcmpl:
			b, a := f.PopFloat(), f.PopFloat()
			f.PushInt(floatCmp(a, b, -1))
		case OpFcmpg:
			b, a := f.PopFloat(), f.PopFloat()
			f.PushInt(floatCmp(a, b, 1))
		case OpDcmpl:
			b, a := f.PopDouble(), f.PopDouble()
			f.PushInt(doubleCmp(a, b, -1))
		case OpDcmpg:
			b, a := f.PopDouble(), f.PopDouble()
			f.PushInt(doubleCmp(a, b, 1))

		// --- branches ---

		case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle:
			v := f.PopInt()
			taken := false
			switch op {
			case OpIfeq:
				taken = v == 0
			case OpIfne:
				taken = v != 0
			case OpIflt:
				taken = v < 0
			case OpIfge:
				taken = v >= 0
			case OpIfgt:
				taken = v > 0
			case OpIfle:
				taken = v <= 0
			}
			if taken {
				next = f.PC + int(f.s16(f.PC+1))
			} else {
				next = f.PC + 3
			}

		case OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple:
			b, a := f.PopInt(), f.PopInt()
			taken := false
			switch op {
			case OpIfIcmpeq:
				taken = a == b
			case OpIfIcmpne:
				taken = a != b
			case OpIfIcmplt:
				taken = a < b
			case OpIfIcmpge:
				taken = a >= b
			case OpIfIcmpgt:
				taken = a > b
			case OpIfIcmple:
				taken = a <= b
			}
			if taken {
				next = f.PC + int(f.s16(f.PC+1))
			} else {
				next = f.PC + 3
			}

		case OpIfAcmpeq, OpIfAcmpne:
			b, a := f.PopRef(), f.PopRef()
			if (op == OpIfAcmpeq) == (a == b) {
				next = f.PC + int(f.s16(f.PC+1))
			} else {
				next = f.PC + 3
			}

		case OpIfnull, OpIfnonnull:
			r := f.PopRef()
			if (op == OpIfnull) == (r == Null) {
				next = f.PC + int(f.s16(f.PC+1))
			} else {
				next = f.PC + 3
			}

		case OpGoto:
			next = f.PC + int(f.s16(f.PC+1))

		case OpGotoW:
			next = f.PC + int(f.s32(f.PC+1))

		case OpJsr:
			f.Push(FromRetAddr(f.PC + 3))
			next = f.PC + int(f.s16(f.PC+1))

		case OpJsrW:
			f.Push(FromRetAddr(f.PC + 5))
			next = f.PC + int(f.s32(f.PC+1))

		case OpRet:
			next = f.Local(f.u8(f.PC + 1)).RetAddr()

		case OpTableswitch:
			at := alignPad(f.PC)
			def := f.s32(at)
			low := f.s32(at + 4)
			high := f.s32(at + 8)
			idx := f.PopInt()
			if idx < low || idx > high {
				next = f.PC + int(def)
			} else {
				next = f.PC + int(f.s32(at+12+4*int(idx-low)))
			}

		case OpLookupswitch:
			at := alignPad(f.PC)
			def := f.s32(at)
			npairs := int(f.s32(at + 4))
			key := f.PopInt()
			next = f.PC + int(def)
			for i := 0; i < npairs; i++ {
				if f.s32(at+8+8*i) == key {
					next = f.PC + int(f.s32(at+12+8*i))
					break
				}
			}

		// --- returns ---

		case OpIreturn, OpFreturn, OpAreturn:
			result := f.Pop()
			t.popFrame()
			if len(t.frames) == base {
				return result, Null
			}
			caller := t.top()
			caller.PC = caller.resume
			caller.Push(result)
			continue

		case OpLreturn, OpDreturn:
			result := f.PopWide()
			t.popFrame()
			if len(t.frames) == base {
				return result, Null
			}
			caller := t.top()
			caller.PC = caller.resume
			caller.Push(result)
			continue

		case OpReturn:
			t.popFrame()
			if len(t.frames) == base {
				return Value{}, Null
			}
			caller := t.top()
			caller.PC = caller.resume
			continue

		// --- fields ---

		case OpGetstatic:
			k := f.constant(f.u16(f.PC + 1))
			next = f.PC + 3
			field, decl, p := t.resolveStatic(k)
			if p != Null {
				pend = p
				break
			}
			f.Push(decl.Statics[field.Index])

		case OpPutstatic:
			k := f.constant(f.u16(f.PC + 1))
			next = f.PC + 3
			field, decl, p := t.resolveStatic(k)
			if p != Null {
				pend = p
				break
			}
			decl.Statics[field.Index] = f.PopValue()

		case OpGetfield:
			k := f.constant(f.u16(f.PC + 1))
			next = f.PC + 3
			field, p := t.resolveField(k)
			if p != Null {
				pend = p
				break
			}
			obj := f.PopRef()
			v, cond := t.vm.Heap.GetField(obj, field)
			if cond != nil {
				pend = t.raise(cond)
				break
			}
			f.Push(v)

		case OpPutfield:
			k := f.constant(f.u16(f.PC + 1))
			next = f.PC + 3
			field, p := t.resolveField(k)
			if p != Null {
				pend = p
				break
			}
			v := f.PopValue()
			obj := f.PopRef()
			if cond := t.vm.Heap.PutField(obj, field, v); cond != nil {
				pend = t.raise(cond)
			}

		// --- invocation ---

		case OpInvokevirtual:
			next = f.PC + 3
			pend = t.invokeVirtual(f.constant(f.u16(f.PC + 1)))

		case OpInvokespecial:
			next = f.PC + 3
			pend = t.invokeSpecial(f.constant(f.u16(f.PC + 1)))

		case OpInvokestatic:
			next = f.PC + 3
			pend = t.invokeStatic(f.constant(f.u16(f.PC + 1)))

		case OpInvokeinterface:
			next = f.PC + 5
			pend = t.invokeInterface(f.constant(f.u16(f.PC + 1)))

		case OpInvokedynamic:
			pend = t.raise(&Condition{ExUnsatisfiedLink, "invokedynamic is not supported"})

		// --- objects and arrays ---

		case OpNew:
			k := f.constant(f.u16(f.PC + 1))
			next = f.PC + 3
			cls, err := t.vm.Registry.Resolve(k.ClassName)
			if err != nil {
				pend = t.raise(&Condition{ExNoClassDef, k.ClassName})
				break
			}
			if cls.Interface {
				pend = t.raise(&Condition{ExIncompatibleClass, "new of interface " + cls.Name})
				break
			}
			if pend = t.vm.EnsureInitialized(t, cls); pend != Null {
				break
			}
			f.PushRef(t.vm.Heap.AllocateInstance(cls))

		case OpNewarray:
			desc := atypeDescriptor(f.u8(f.PC + 1))
			next = f.PC + 2
			if desc == "" {
				f.fault("newarray with bad atype %d", f.u8(f.PC+1))
			}
			length := f.PopInt()
			arrCls, err := t.vm.Registry.ArrayClass("[" + desc)
			if err != nil {
				pend = t.raise(&Condition{ExNoClassDef, "[" + desc})
				break
			}
			r, cond := t.vm.Heap.AllocateArray(arrCls, length)
			if cond != nil {
				pend = t.raise(cond)
				break
			}
			f.PushRef(r)

		case OpAnewarray:
			k := f.constant(f.u16(f.PC + 1))
			next = f.PC + 3
			desc := "[" + refDescriptor(k.ClassName)
			length := f.PopInt()
			arrCls, err := t.vm.Registry.ArrayClass(desc)
			if err != nil {
				pend = t.raise(&Condition{ExNoClassDef, k.ClassName})
				break
			}
			r, cond := t.vm.Heap.AllocateArray(arrCls, length)
			if cond != nil {
				pend = t.raise(cond)
				break
			}
			f.PushRef(r)

		case OpMultianewarray:
			k := f.constant(f.u16(f.PC + 1))
			dims := f.u8(f.PC + 3)
			next = f.PC + 4
			if dims < 1 {
				f.fault("multianewarray with %d dimensions", dims)
			}
			counts := make([]int32, dims)
			for i := dims - 1; i >= 0; i-- {
				counts[i] = f.PopInt()
			}
			r, cond := t.vm.allocateMulti(k.ClassName, counts)
			if cond != nil {
				pend = t.raise(cond)
				break
			}
			f.PushRef(r)

		case OpArraylength:
			n, cond := t.vm.Heap.ArrayLength(f.PopRef())
			if cond != nil {
				pend = t.raise(cond)
				break
			}
			f.PushInt(n)

		case OpAthrow:
			r := f.PopRef()
			if r == Null {
				pend = t.raise(&Condition{ExNullPointer, "athrow of null"})
				break
			}
			pend = r

		case OpCheckcast:
			k := f.constant(f.u16(f.PC + 1))
			next = f.PC + 3
			r := f.Pop().Ref()
			if r != Null {
				target, err := t.vm.ResolveAny(k.ClassName)
				if err != nil {
					pend = t.raise(&Condition{ExNoClassDef, k.ClassName})
					break
				}
				if !t.vm.isInstance(r, target) {
					pend = t.raise(&Condition{ExClassCast,
						t.vm.Heap.ClassOf(r).Name + " cannot be cast to " + k.ClassName})
					break
				}
			}
			f.PushRef(r)

		case OpInstanceof:
			k := f.constant(f.u16(f.PC + 1))
			next = f.PC + 3
			r := f.PopRef()
			result := int32(0)
			if r != Null {
				target, err := t.vm.ResolveAny(k.ClassName)
				if err != nil {
					pend = t.raise(&Condition{ExNoClassDef, k.ClassName})
					break
				}
				if t.vm.isInstance(r, target) {
					result = 1
				}
			}
			f.PushInt(result)

		case OpMonitorenter, OpMonitorexit:
			// Single-threaded execution model: monitors degenerate to the
			// null check.
			if f.PopRef() == Null {
				pend = t.raise(&Condition{ExNullPointer, op.String() + " on null"})
			}

		case OpWide:
			sub := Opcode(f.byteAt(f.PC + 1))
			idx := f.u16(f.PC + 2)
			next = f.PC + 4
			switch sub {
			case OpIload, OpFload, OpAload:
				f.Push(f.Local(idx))
			case OpLload, OpDload:
				f.Push(f.LocalWide(idx))
			case OpIstore, OpFstore, OpAstore:
				f.SetLocal(idx, f.Pop())
			case OpLstore, OpDstore:
				f.SetLocal(idx, f.PopWide())
			case OpRet:
				next = f.Local(idx).RetAddr()
			case OpIinc:
				f.SetLocal(idx, FromInt(f.Local(idx).Int()+f.s16(f.PC+4)))
				next = f.PC + 6
			default:
				f.fault("wide prefix on %s", sub)
			}

		default:
			f.fault("unimplemented opcode %s", op)
		}

		if pend != Null {
			if !t.deliver(pend, base) {
				return Value{}, pend
			}
			continue
		}
		if t.top() != f {
			// An invoke pushed a callee frame; hold this frame's PC on
			// the invoke until the callee returns.
			f.resume = next
			continue
		}
		f.PC = next
	}
}

// alignPad returns the operand start of a switch at pc: the first byte
// after the opcode rounded up to a 4-byte boundary.
func alignPad(pc int) int {
	at := pc + 1
	return at + (4-at%4)%4
}

// refDescriptor turns a constant-pool class name into a field descriptor.
// Array class names are already descriptors.
func refDescriptor(name string) string {
	if len(name) > 0 && name[0] == '[' {
		return name
	}
	return "L" + name + ";"
}

// loadConstant handles ldc/ldc_w for category-1 pool entries.
func (t *Thread) loadConstant(f *Frame, idx int) Ref {
	k := f.constant(idx)
	switch k.Kind {
	case classfile.ConstInt:
		f.PushInt(k.Int)
	case classfile.ConstFloat:
		f.PushFloat(k.Float)
	case classfile.ConstString:
		f.PushRef(t.vm.InternString(k.Str))
	case classfile.ConstClass:
		mirror, cond := t.vm.MirrorFor(k.ClassName)
		if cond != nil {
			return t.raise(cond)
		}
		f.PushRef(mirror)
	default:
		f.fault("ldc of constant kind %d", k.Kind)
	}
	return Null
}

// resolveStatic resolves a static field reference and initializes the
// declaring class.
func (t *Thread) resolveStatic(k *classfile.Constant) (*Field, *Class, Ref) {
	cls, err := t.vm.Registry.Resolve(k.ClassName)
	if err != nil {
		return nil, nil, t.raise(&Condition{ExNoClassDef, k.ClassName})
	}
	field, decl := cls.StaticField(k.Name)
	if field == nil {
		return nil, nil, t.raise(&Condition{ExNoSuchField, k.ClassName + "." + k.Name})
	}
	if pend := t.vm.EnsureInitialized(t, decl); pend != Null {
		return nil, nil, pend
	}
	return field, decl, Null
}

// resolveField resolves an instance field reference.
func (t *Thread) resolveField(k *classfile.Constant) (*Field, Ref) {
	cls, err := t.vm.Registry.Resolve(k.ClassName)
	if err != nil {
		return nil, t.raise(&Condition{ExNoClassDef, k.ClassName})
	}
	field := cls.FieldByName(k.Name)
	if field == nil {
		return nil, t.raise(&Condition{ExNoSuchField, k.ClassName + "." + k.Name})
	}
	return field, Null
}
