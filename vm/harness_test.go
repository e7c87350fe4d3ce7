package vm

import (
	"fmt"
	"testing"

	"github.com/javelin-vm/javelin/classfile"
)

// mapSource serves class metadata straight from memory.
type mapSource map[string]*classfile.ClassFile

func (s mapSource) Load(name string) (*classfile.ClassFile, error) {
	if cf, ok := s[name]; ok {
		return cf, nil
	}
	return nil, fmt.Errorf("class %s not on test classpath", name)
}

func newTestVM(t *testing.T, classes ...*classfile.ClassFile) *VM {
	t.Helper()
	src := mapSource{}
	for _, cf := range classes {
		src[cf.Name] = cf
	}
	return New(src)
}

func callStatic(t *testing.T, engine *VM, class, name, desc string, args ...Value) (Value, error) {
	t.Helper()
	cls, err := engine.Registry.Resolve(class)
	if err != nil {
		t.Fatalf("resolve %s: %v", class, err)
	}
	m := cls.DeclaredMethod(name, desc)
	if m == nil {
		t.Fatalf("no method %s.%s%s", class, name, desc)
	}
	return engine.Call(m, args)
}

func mustCall(t *testing.T, engine *VM, class, name, desc string, args ...Value) Value {
	t.Helper()
	v, err := callStatic(t, engine, class, name, desc, args...)
	if err != nil {
		t.Fatalf("%s.%s%s: %v", class, name, desc, err)
	}
	return v
}

// wantUncaught runs a static method and asserts an uncaught throwable of
// the given class escapes.
func wantUncaught(t *testing.T, engine *VM, class, name, desc string, throwable string, args ...Value) *UncaughtThrowable {
	t.Helper()
	_, err := callStatic(t, engine, class, name, desc, args...)
	if err == nil {
		t.Fatalf("%s.%s%s: completed normally, want uncaught %s", class, name, desc, throwable)
	}
	u, ok := err.(*UncaughtThrowable)
	if !ok {
		t.Fatalf("%s.%s%s: error %v, want uncaught throwable", class, name, desc, err)
	}
	if u.ClassName != throwable {
		t.Fatalf("%s.%s%s: uncaught %s, want %s", class, name, desc, u.ClassName, throwable)
	}
	return u
}

// s16be / s32be append big-endian operands when hand-assembling code.
func s16be(code []byte, v int32) []byte {
	return append(code, byte(uint16(v)>>8), byte(uint16(v)))
}

func s32be(code []byte, v int32) []byte {
	return append(code, byte(uint32(v)>>24), byte(uint32(v)>>16), byte(uint32(v)>>8), byte(uint32(v)))
}
