package vm

import "sync"

// SelectorTable interns (name, descriptor) pairs into stable slot IDs.
// Dispatch tables are arrays indexed by these IDs, so virtual and
// interface dispatch is an array read instead of a per-call name search.
type SelectorTable struct {
	mu   sync.RWMutex
	ids  map[selKey]int
	keys []selKey
}

type selKey struct {
	name string
	desc string
}

// NewSelectorTable creates an empty selector table.
func NewSelectorTable() *SelectorTable {
	return &SelectorTable{ids: make(map[selKey]int)}
}

// Intern returns the ID for (name, descriptor), assigning one if new.
func (st *SelectorTable) Intern(name, descriptor string) int {
	key := selKey{name, descriptor}
	st.mu.RLock()
	id, ok := st.ids[key]
	st.mu.RUnlock()
	if ok {
		return id
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if id, ok := st.ids[key]; ok {
		return id
	}
	id = len(st.keys)
	st.ids[key] = id
	st.keys = append(st.keys, key)
	return id
}

// Lookup returns the ID for (name, descriptor), or -1 if never interned.
func (st *SelectorTable) Lookup(name, descriptor string) int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if id, ok := st.ids[selKey{name, descriptor}]; ok {
		return id
	}
	return -1
}

// Name returns the (name, descriptor) pair for an ID.
func (st *SelectorTable) Name(id int) (string, string) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if id < 0 || id >= len(st.keys) {
		return "", ""
	}
	return st.keys[id].name, st.keys[id].desc
}

// Len returns the number of interned selectors.
func (st *SelectorTable) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.keys)
}
