// Package classfile defines the resolved class metadata the engine
// executes, its CBOR image encoding (.jbc files), and the classpath
// loader that finds images by class name. Raw .class parsing happens
// upstream; by the time metadata reaches this package every symbolic
// reference has been resolved to names and descriptors.
package classfile

// ConstKind tags a constant-pool entry.
type ConstKind uint8

const (
	ConstUnused    ConstKind = 0 // placeholder after a long/double entry
	ConstInt       ConstKind = 1
	ConstLong      ConstKind = 2
	ConstFloat     ConstKind = 3
	ConstDouble    ConstKind = 4
	ConstString    ConstKind = 5
	ConstClass     ConstKind = 6
	ConstFieldRef  ConstKind = 7
	ConstMethodRef ConstKind = 8
	// ConstInterfaceMethodRef resolves like ConstMethodRef but is produced
	// by interface references; the engine treats both identically.
	ConstInterfaceMethodRef ConstKind = 9
)

// Constant is one resolved constant-pool entry. Indexing is 1-based as in
// bytecode operands; long and double entries are followed by a ConstUnused
// placeholder so instruction-encoded indices stay valid.
type Constant struct {
	Kind   ConstKind `cbor:"1,keyasint"`
	Int    int32     `cbor:"2,keyasint,omitempty"`
	Long   int64     `cbor:"3,keyasint,omitempty"`
	Float  float32   `cbor:"4,keyasint,omitempty"`
	Double float64   `cbor:"5,keyasint,omitempty"`
	Str    string    `cbor:"6,keyasint,omitempty"` // string literal

	// Symbolic reference parts (class, field and method refs).
	ClassName  string `cbor:"7,keyasint,omitempty"`
	Name       string `cbor:"8,keyasint,omitempty"`
	Descriptor string `cbor:"9,keyasint,omitempty"`
}

// FieldInfo is one declared field.
type FieldInfo struct {
	Name       string `cbor:"1,keyasint"`
	Descriptor string `cbor:"2,keyasint"`
	Static     bool   `cbor:"3,keyasint,omitempty"`
}

// HandlerInfo is one exception-table entry; the range is [StartPC, EndPC).
// An empty CatchType is a catch-all.
type HandlerInfo struct {
	StartPC   int    `cbor:"1,keyasint"`
	EndPC     int    `cbor:"2,keyasint"`
	HandlerPC int    `cbor:"3,keyasint"`
	CatchType string `cbor:"4,keyasint,omitempty"`
}

// MethodInfo is one declared method body plus its frame requirements.
type MethodInfo struct {
	Name           string        `cbor:"1,keyasint"`
	Descriptor     string        `cbor:"2,keyasint"`
	Static         bool          `cbor:"3,keyasint,omitempty"`
	Native         bool          `cbor:"4,keyasint,omitempty"`
	Abstract       bool          `cbor:"5,keyasint,omitempty"`
	MaxStack       int           `cbor:"6,keyasint,omitempty"`
	MaxLocals      int           `cbor:"7,keyasint,omitempty"`
	Code           []byte        `cbor:"8,keyasint,omitempty"`
	ExceptionTable []HandlerInfo `cbor:"9,keyasint,omitempty"`
}

// ClassFile is one resolved class image.
type ClassFile struct {
	Name       string       `cbor:"1,keyasint"`
	Superclass string       `cbor:"2,keyasint,omitempty"` // empty only for the root class
	Interfaces []string     `cbor:"3,keyasint,omitempty"`
	Interface  bool         `cbor:"4,keyasint,omitempty"`
	Fields     []FieldInfo  `cbor:"5,keyasint,omitempty"`
	Methods    []MethodInfo `cbor:"6,keyasint,omitempty"`
	Pool       []Constant   `cbor:"7,keyasint,omitempty"` // entry i serves index i+1
}

// Method returns the method with the given name and descriptor, or nil.
func (cf *ClassFile) Method(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}
