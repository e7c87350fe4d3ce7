package vm

import "fmt"

// EngineFault reports an engine-invariant violation: a state that trusted
// metadata should make unreachable (operand-stack underflow/overflow,
// category-width mismatch, malformed instruction stream). Faults are not
// JVM throwables; they are raised as panics inside the interpreter and
// recovered at the engine boundary, aborting the run with a diagnostic.
type EngineFault struct {
	Class  string // owning class of the faulting frame, if known
	Method string // method name, if known
	PC     int    // program counter of the faulting instruction
	Msg    string
}

func (f *EngineFault) Error() string {
	if f.Class == "" {
		return fmt.Sprintf("engine fault: %s", f.Msg)
	}
	return fmt.Sprintf("engine fault in %s.%s at pc=%d: %s", f.Class, f.Method, f.PC, f.Msg)
}
