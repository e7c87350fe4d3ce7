package classfile

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Magic prefixes every class image so the loader can reject foreign files
// before decoding.
var Magic = [4]byte{'J', 'B', 'C', 1}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("classfile: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a class image to its wire form (magic + CBOR body).
func Marshal(cf *ClassFile) ([]byte, error) {
	body, err := cborEncMode.Marshal(cf)
	if err != nil {
		return nil, fmt.Errorf("classfile: marshal %s: %w", cf.Name, err)
	}
	out := make([]byte, 0, len(Magic)+len(body))
	out = append(out, Magic[:]...)
	return append(out, body...), nil
}

// Unmarshal deserializes a class image from its wire form.
func Unmarshal(data []byte) (*ClassFile, error) {
	if len(data) < len(Magic) || [4]byte(data[:4]) != Magic {
		return nil, fmt.Errorf("classfile: bad magic (not a class image)")
	}
	var cf ClassFile
	if err := cbor.Unmarshal(data[4:], &cf); err != nil {
		return nil, fmt.Errorf("classfile: unmarshal: %w", err)
	}
	if cf.Name == "" {
		return nil, fmt.Errorf("classfile: image has no class name")
	}
	return &cf, nil
}
