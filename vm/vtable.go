package vm

// VTable is a class's dispatch table: an array of methods indexed by
// selector ID, chained to the superclass table. Overriding works by
// shadowing: the most-derived table is consulted first, so the first hit
// walking parents is the override that wins. Tables are built once when a
// class links and never re-searched by name at call time.
type VTable struct {
	class   *Class
	parent  *VTable
	methods []*Method
}

// NewVTable creates a dispatch table for a class.
func NewVTable(class *Class, parent *VTable) *VTable {
	return &VTable{class: class, parent: parent}
}

// Lookup finds the method for a selector ID, walking the parent chain.
// Returns nil when no class in the chain implements the selector.
func (vt *VTable) Lookup(selector int) *Method {
	for v := vt; v != nil; v = v.parent {
		if selector >= 0 && selector < len(v.methods) {
			if m := v.methods[selector]; m != nil {
				return m
			}
		}
	}
	return nil
}

// LookupLocal finds a method in this table only.
func (vt *VTable) LookupLocal(selector int) *Method {
	if selector >= 0 && selector < len(vt.methods) {
		return vt.methods[selector]
	}
	return nil
}

// Add installs a method at its selector slot, growing the table as needed.
func (vt *VTable) Add(selector int, m *Method) {
	if selector >= len(vt.methods) {
		grown := make([]*Method, selector+1)
		copy(grown, vt.methods)
		vt.methods = grown
	}
	vt.methods[selector] = m
}

// Class returns the owning class.
func (vt *VTable) Class() *Class { return vt.class }

// Parent returns the superclass table.
func (vt *VTable) Parent() *VTable { return vt.parent }
